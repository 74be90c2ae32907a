package model

import "github.com/shopspring/decimal"

// StakeRequest represents the incoming JSON body for POST /v1/stakes
type StakeRequest struct {
	TierID uint32 `json:"tier_id" binding:"required"`
	Amount string `json:"amount" binding:"required"` // decimal string, e.g. "1000"
}

// WithdrawRequest represents the incoming JSON body for POST /v1/withdrawals
type WithdrawRequest struct {
	TierID uint32 `json:"tier_id" binding:"required"`
}

// ModifyTierRequest upserts a tier configuration (owner only)
type ModifyTierRequest struct {
	RewardRateBps       int64 `json:"reward_rate_bps"`
	LockDurationSeconds int64 `json:"lock_duration_seconds"`
}

// AllowListRequest sets allow-list membership for an account (owner only)
type AllowListRequest struct {
	Status *bool `json:"status" binding:"required"`
}

// RegisterAccountRequest binds a gateway API key to an account address
type RegisterAccountRequest struct {
	Address string  `json:"address" binding:"required"`
	Name    string  `json:"name"`
	ApiKey  string  `json:"api_key" binding:"required"`
	QPS     float64 `json:"qps"`
	Burst   int     `json:"burst"`
}

type StakeResponse struct {
	Account      string          `json:"account"`
	TierID       uint32          `json:"tier_id"`
	Amount       decimal.Decimal `json:"amount"`
	Reward       decimal.Decimal `json:"reward"`
	StakedAmount decimal.Decimal `json:"staked_amount"`
	EarnedReward decimal.Decimal `json:"earned_reward"`
	ReleaseTime  int64           `json:"release_time"`
	DailyVolume  float64         `json:"daily_volume,omitempty"`
	DailyStakes  int             `json:"daily_stakes,omitempty"`
}

type WithdrawResponse struct {
	Account string          `json:"account"`
	TierID  uint32          `json:"tier_id"`
	Total   decimal.Decimal `json:"total"`
}

type StakeDetailsResponse struct {
	Account      string          `json:"account"`
	TierID       uint32          `json:"tier_id"`
	StakedAmount decimal.Decimal `json:"staked_amount"`
	EarnedReward decimal.Decimal `json:"earned_reward"`
	ReleaseTime  int64           `json:"release_time"`
	Withdrawn    bool            `json:"withdrawn"`
}

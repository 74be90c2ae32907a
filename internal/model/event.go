package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type EventKind string

const (
	EventTierModified     EventKind = "TIER_MODIFIED"
	EventAllowListUpdated EventKind = "ALLOWLIST_STATUS_UPDATED"
	EventStaked           EventKind = "STAKED"
	EventWithdrawn        EventKind = "WITHDRAWN"
)

// LedgerEvent is one structured notification emitted by the ledger.
// Fields beyond Kind/CreatedAt are populated per kind and omitted otherwise.
type LedgerEvent struct {
	ID      string    `json:"id"` // unique event ID (UUID)
	Kind    EventKind `json:"kind"`
	Account string    `json:"account,omitempty"`
	TierID  uint32    `json:"tier_id,omitempty"`

	// STAKED
	Amount *decimal.Decimal `json:"amount,omitempty"`
	Reward *decimal.Decimal `json:"reward,omitempty"`
	// WITHDRAWN
	Total *decimal.Decimal `json:"total,omitempty"`
	// STAKED / TIER_MODIFIED
	ReleaseTime         int64 `json:"release_time,omitempty"`
	RewardRateBps       int64 `json:"reward_rate_bps,omitempty"`
	LockDurationSeconds int64 `json:"lock_duration_seconds,omitempty"`
	// ALLOWLIST_STATUS_UPDATED
	Status *bool `json:"status,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

package model

// RateLimitConfig defines per-account request throttling
type RateLimitConfig struct {
	QPS   float64 `json:"qps"`
	Burst int     `json:"burst"`
}

// Account represents a staking participant known to the gateway.
// Allow-list membership lives in the ledger, not here; this is only the
// API-key identity binding plus edge concerns (rate limits).
type Account struct {
	Address string          `json:"address"`
	Name    string          `json:"name"`
	ApiKey  string          `json:"api_key"` // gateway access key issued to the holder
	Rate    RateLimitConfig `json:"rate_limit"`
}

package service

import (
	"context"
	"sync"
	"time"
)

// UsageRepo tracks informational per-account daily stake volume.
type UsageRepo interface {
	GetDailyUsage(ctx context.Context, account string) (int, float64, error)
	AddDailyUsage(ctx context.Context, account string, stakes int, amount float64) error
}

// StakeUsageStore is the in-memory UsageRepo fallback.
type StakeUsageStore struct {
	mu          sync.RWMutex
	dailyVolume map[string]float64 // Key: account:YYYY-MM-DD
	dailyStakes map[string]int
}

func NewStakeUsageStore() *StakeUsageStore {
	return &StakeUsageStore{
		dailyVolume: make(map[string]float64),
		dailyStakes: make(map[string]int),
	}
}

func (s *StakeUsageStore) GetDailyUsage(ctx context.Context, account string) (int, float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key := s.makeKey(account)
	return s.dailyStakes[key], s.dailyVolume[key], nil
}

func (s *StakeUsageStore) AddDailyUsage(ctx context.Context, account string, stakes int, amount float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := s.makeKey(account)
	s.dailyVolume[key] += amount
	s.dailyStakes[key] += stakes
	return nil
}

func (s *StakeUsageStore) makeKey(account string) string {
	// Split by UTC date
	return account + ":" + time.Now().UTC().Format("2006-01-02")
}

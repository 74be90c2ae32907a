package service

import (
	"sync"

	"github.com/GoStakeVault/stakegate/internal/config"
	"github.com/GoStakeVault/stakegate/internal/model"
	"golang.org/x/time/rate"
)

// AccountRegistry maps gateway API keys to staking accounts and holds the
// per-account request limiters. Allow-list membership is the ledger's state,
// not the registry's; this is edge identity only.
type AccountRegistry struct {
	mu             sync.RWMutex
	accounts       map[string]*model.Account // Key: gateway ApiKey
	limiters       map[string]*rate.Limiter  // Key: account address
	defaultAccount *model.Account
}

func NewAccountRegistry(cfg *config.Config) *AccountRegistry {
	r := &AccountRegistry{
		accounts: make(map[string]*model.Account),
		limiters: make(map[string]*rate.Limiter),
	}

	for _, seed := range cfg.Accounts {
		account := &model.Account{
			Address: seed.Address,
			Name:    seed.Name,
			ApiKey:  seed.APIKey,
			Rate: model.RateLimitConfig{
				QPS:   seed.QPS,
				Burst: seed.Burst,
			},
		}
		if account.Rate.QPS == 0 {
			account.Rate.QPS = 10
		}
		if account.Rate.Burst == 0 {
			account.Rate.Burst = 20
		}
		r.Register(account)
	}

	// Single-holder mode: without API key enforcement, unauthenticated
	// requests act as the first configured account.
	if !cfg.Auth.RequireAPIKey && len(cfg.Accounts) > 0 {
		if account, ok := r.GetByApiKey(cfg.Accounts[0].APIKey); ok {
			r.defaultAccount = account
		}
	}

	return r
}

func (r *AccountRegistry) Register(account *model.Account) {
	if account == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[account.ApiKey] = account

	limit := rate.Limit(account.Rate.QPS)
	if limit == 0 {
		limit = rate.Inf
	}
	burst := account.Rate.Burst
	if burst == 0 {
		burst = 1
	}
	r.limiters[account.Address] = rate.NewLimiter(limit, burst)
}

func (r *AccountRegistry) GetByApiKey(apiKey string) (*model.Account, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	account, ok := r.accounts[apiKey]
	return account, ok
}

func (r *AccountRegistry) GetByAddress(address string) (*model.Account, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, account := range r.accounts {
		if account != nil && account.Address == address {
			return account, true
		}
	}
	return nil, false
}

func (r *AccountRegistry) List() []*model.Account {
	r.mu.RLock()
	defer r.mu.RUnlock()
	results := make([]*model.Account, 0, len(r.accounts))
	seen := make(map[string]struct{})
	for _, account := range r.accounts {
		if account == nil {
			continue
		}
		if _, ok := seen[account.Address]; ok {
			continue
		}
		seen[account.Address] = struct{}{}
		results = append(results, account)
	}
	return results
}

func (r *AccountRegistry) Default() *model.Account {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultAccount
}

// GetLimiterForAccount returns the account's request limiter.
func (r *AccountRegistry) GetLimiterForAccount(address string) *rate.Limiter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.limiters[address]
}

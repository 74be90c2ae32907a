package asset

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// Vault is an in-process token book used when no chain RPC is configured.
// It tracks per-account balances plus the custody pool the ledger owns.
type Vault struct {
	mu       sync.Mutex
	balances map[string]decimal.Decimal
	custody  decimal.Decimal
}

func NewVault() *Vault {
	return &Vault{
		balances: make(map[string]decimal.Decimal),
		custody:  decimal.Zero,
	}
}

// Mint credits an account. Supply policy is the operator's concern; the
// gateway only calls this from config seeding and tests.
func (v *Vault) Mint(account string, amount decimal.Decimal) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.balances[account] = v.balances[account].Add(amount)
}

func (v *Vault) Balance(account string) decimal.Decimal {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.balances[account]
}

func (v *Vault) CustodyBalance() decimal.Decimal {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.custody
}

func (v *Vault) TransferFrom(ctx context.Context, payer string, amount decimal.Decimal) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	bal := v.balances[payer]
	if bal.LessThan(amount) {
		return fmt.Errorf("vault: insufficient balance for %s (have %s, need %s)", payer, bal, amount)
	}
	v.balances[payer] = bal.Sub(amount)
	v.custody = v.custody.Add(amount)
	return nil
}

func (v *Vault) Transfer(ctx context.Context, payee string, amount decimal.Decimal) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.custody.LessThan(amount) {
		return fmt.Errorf("vault: custody pool short (have %s, need %s)", v.custody, amount)
	}
	v.custody = v.custody.Sub(amount)
	v.balances[payee] = v.balances[payee].Add(amount)
	return nil
}

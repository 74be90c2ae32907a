package ledger

import (
	"github.com/GoStakeVault/stakegate/internal/pkg/apperrors"
	"github.com/GoStakeVault/stakegate/internal/pkg/metrics"
)

// Guard predicates. Each is a pure check over current state with no side
// effect beyond the reject counter; operations compose them explicitly in
// order at the top of each call. Callers must hold l.mu.

func (l *Ledger) requireOwner(caller string) error {
	if caller != l.owner {
		metrics.GuardRejects.WithLabelValues("unauthorized").Inc()
		return apperrors.New(apperrors.ErrUnauthorized, "caller is not the owner", nil)
	}
	return nil
}

func (l *Ledger) requireAllowListed(caller string) error {
	if !l.allowList[caller] {
		metrics.GuardRejects.WithLabelValues("not_allow_listed").Inc()
		return apperrors.New(apperrors.ErrNotAllowListed, "account is not allow-listed", nil)
	}
	return nil
}

// requireCooldownElapsed enforces the account-scoped stake spacing: the
// cooldown clock is per account, not per tier, so staking into tier A starts
// the clock for tier B as well.
func (l *Ledger) requireCooldownElapsed(caller string, now int64) error {
	last, ok := l.lastStakeAt[caller]
	if ok && now < last+l.cooldown {
		metrics.GuardRejects.WithLabelValues("cooldown_active").Inc()
		return apperrors.New(apperrors.ErrCooldownActive, "cooldown interval has not elapsed", nil)
	}
	return nil
}

// requireNotAlreadyWithdrawn checks the account-global flag: one completed
// withdrawal in any tier blocks withdrawals in every tier for that account.
func (l *Ledger) requireNotAlreadyWithdrawn(caller string) error {
	if l.withdrawn[caller] {
		metrics.GuardRejects.WithLabelValues("already_withdrawn").Inc()
		return apperrors.New(apperrors.ErrAlreadyWithdrawn, "account has already withdrawn", nil)
	}
	return nil
}

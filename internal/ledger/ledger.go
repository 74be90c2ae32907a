package ledger

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/GoStakeVault/stakegate/internal/asset"
	"github.com/GoStakeVault/stakegate/internal/model"
	"github.com/GoStakeVault/stakegate/internal/pkg/apperrors"
	"github.com/GoStakeVault/stakegate/internal/pkg/logger"
	"github.com/GoStakeVault/stakegate/internal/pkg/metrics"
	"github.com/shopspring/decimal"
)

// Tier is one staking configuration, keyed by a small positive id.
// A zero lock duration means "not configured"; id 0 is reserved.
type Tier struct {
	RewardRateBps       int64 `json:"reward_rate_bps"`
	LockDurationSeconds int64 `json:"lock_duration_seconds"`
}

// StakeRecord is the authoritative state for one (account, tier) pair.
type StakeRecord struct {
	StakedAmount decimal.Decimal `json:"staked_amount"`
	EarnedReward decimal.Decimal `json:"earned_reward"`
	ReleaseTime  int64           `json:"release_time"`
	Withdrawn    bool            `json:"withdrawn"`
}

type recordKey struct {
	account string
	tier    uint32
}

// Notifier receives structured ledger events. Delivery must not block.
type Notifier interface {
	Notify(event *model.LedgerEvent)
}

// DefaultCooldownSeconds is the minimum spacing between two stake calls by
// the same account, fixed at construction.
const DefaultCooldownSeconds int64 = 86400

// Ledger owns the full staking state: tier table, stake records, allow-list,
// per-account cooldown clocks and the account-global withdrawn flags. Every
// public operation runs to completion under one mutex and is all-or-nothing.
type Ledger struct {
	mu sync.Mutex

	owner    string
	cooldown int64

	tiers       map[uint32]Tier
	records     map[recordKey]StakeRecord
	allowList   map[string]bool
	lastStakeAt map[string]int64
	withdrawn   map[string]bool

	clock    Clock
	transfer asset.Transferrer
	notifier Notifier
	persist  Snapshotter

	persistCh   chan *Snapshot
	persistDone chan struct{}
}

type Params struct {
	Owner           string
	CooldownSeconds int64
	Clock           Clock
	Transferrer     asset.Transferrer
	Notifier        Notifier
	Snapshots       Snapshotter
}

func New(p Params) *Ledger {
	if p.Clock == nil {
		p.Clock = SystemClock()
	}
	if p.CooldownSeconds <= 0 {
		p.CooldownSeconds = DefaultCooldownSeconds
	}
	l := &Ledger{
		owner:       p.Owner,
		cooldown:    p.CooldownSeconds,
		tiers:       make(map[uint32]Tier),
		records:     make(map[recordKey]StakeRecord),
		allowList:   make(map[string]bool),
		lastStakeAt: make(map[string]int64),
		withdrawn:   make(map[string]bool),
		clock:       p.Clock,
		transfer:    p.Transferrer,
		notifier:    p.Notifier,
		persist:     p.Snapshots,
	}

	// Seeded tier table; the owner may overwrite these via ModifyTier.
	l.tiers[1] = Tier{RewardRateBps: 500, LockDurationSeconds: 7 * 24 * 3600}
	l.tiers[2] = Tier{RewardRateBps: 1000, LockDurationSeconds: 14 * 24 * 3600}
	l.tiers[3] = Tier{RewardRateBps: 1500, LockDurationSeconds: 30 * 24 * 3600}

	if l.persist != nil {
		l.persistCh = make(chan *Snapshot, 1)
		l.persistDone = make(chan struct{})
		go l.persistLoop()
	}

	return l
}

// Close stops the persist worker after flushing any pending snapshot. Call
// only once no more operations are running.
func (l *Ledger) Close() {
	if l.persistCh == nil {
		return
	}
	close(l.persistCh)
	<-l.persistDone
}

func (l *Ledger) Owner() string { return l.owner }

// ModifyTier inserts or overwrites a tier. Tiers are never deleted. Rate and
// duration are not bounds-checked; a zero duration leaves the tier rejected
// by stake validation.
func (l *Ledger) ModifyTier(caller string, tierID uint32, rateBps, lockSeconds int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.requireOwner(caller); err != nil {
		return err
	}
	if tierID == 0 {
		metrics.GuardRejects.WithLabelValues("invalid_tier").Inc()
		return apperrors.New(apperrors.ErrInvalidTier, "tier id 0 is reserved", nil)
	}

	l.tiers[tierID] = Tier{RewardRateBps: rateBps, LockDurationSeconds: lockSeconds}
	l.notify(&model.LedgerEvent{
		Kind:                model.EventTierModified,
		TierID:              tierID,
		RewardRateBps:       rateBps,
		LockDurationSeconds: lockSeconds,
	})
	l.persistLocked()
	return nil
}

// GetTier returns the tier configuration; absent ids yield a zero value.
func (l *Ledger) GetTier(tierID uint32) Tier {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tiers[tierID]
}

// UpdateAllowListStatus sets allow-list membership for an account.
func (l *Ledger) UpdateAllowListStatus(caller, account string, status bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.requireOwner(caller); err != nil {
		return err
	}

	l.allowList[account] = status
	l.notify(&model.LedgerEvent{
		Kind:    model.EventAllowListUpdated,
		Account: account,
		Status:  &status,
	})
	l.persistLocked()
	return nil
}

// Stake moves amount into custody and books it against (caller, tierID).
// The inbound transfer happens before any ledger mutation so a declined
// transfer leaves no phantom stake.
func (l *Ledger) Stake(ctx context.Context, caller string, tierID uint32, amount decimal.Decimal) (StakeRecord, decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	tierLabel := strconv.FormatUint(uint64(tierID), 10)

	if err := l.requireAllowListed(caller); err != nil {
		metrics.StakesTotal.WithLabelValues("rejected", tierLabel).Inc()
		return StakeRecord{}, decimal.Zero, err
	}
	if err := l.requireCooldownElapsed(caller, now); err != nil {
		metrics.StakesTotal.WithLabelValues("rejected", tierLabel).Inc()
		return StakeRecord{}, decimal.Zero, err
	}
	if amount.Sign() <= 0 {
		metrics.GuardRejects.WithLabelValues("invalid_amount").Inc()
		metrics.StakesTotal.WithLabelValues("rejected", tierLabel).Inc()
		return StakeRecord{}, decimal.Zero, apperrors.New(apperrors.ErrInvalidAmount, "stake amount must be positive", nil)
	}
	tier := l.tiers[tierID]
	if tier.LockDurationSeconds == 0 {
		metrics.GuardRejects.WithLabelValues("invalid_tier").Inc()
		metrics.StakesTotal.WithLabelValues("rejected", tierLabel).Inc()
		return StakeRecord{}, decimal.Zero, apperrors.New(apperrors.ErrInvalidTier, "tier not configured", nil)
	}

	reward := CalculateReward(amount, tier.RewardRateBps)

	if err := l.transfer.TransferFrom(ctx, caller, amount); err != nil {
		metrics.TransferFailures.WithLabelValues("in").Inc()
		metrics.StakesTotal.WithLabelValues("transfer_failed", tierLabel).Inc()
		return StakeRecord{}, decimal.Zero, apperrors.NewTransferFailed(err)
	}

	key := recordKey{account: caller, tier: tierID}
	rec := l.records[key]
	if rec.StakedAmount.IsZero() {
		rec.StakedAmount = decimal.Zero
		rec.EarnedReward = decimal.Zero
	}
	rec.StakedAmount = rec.StakedAmount.Add(amount)
	rec.EarnedReward = rec.EarnedReward.Add(reward)
	// Deliberately adds the previous releaseTime into the new one. Repeat
	// stakes therefore compound the lock instead of resetting it; this is
	// the ledger's documented historical behavior and on-chain deployments
	// depend on it, so it is preserved verbatim.
	rec.ReleaseTime = rec.ReleaseTime + now + tier.LockDurationSeconds
	rec.Withdrawn = false
	l.records[key] = rec

	l.lastStakeAt[caller] = now

	metrics.StakesTotal.WithLabelValues("success", tierLabel).Inc()
	l.notify(&model.LedgerEvent{
		Kind:        model.EventStaked,
		Account:     caller,
		TierID:      tierID,
		Amount:      decPtr(amount),
		Reward:      decPtr(reward),
		ReleaseTime: rec.ReleaseTime,
	})
	l.persistLocked()
	return rec, reward, nil
}

// Withdraw pays out principal plus accrued reward once the lock has expired.
// State is committed before the outbound transfer (checks-effects-
// interactions); if the transfer then declines, the staged state is restored
// and the operation reports TransferFailed with no net effect.
func (l *Ledger) Withdraw(ctx context.Context, caller string, tierID uint32) (decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()

	if err := l.requireAllowListed(caller); err != nil {
		metrics.WithdrawalsTotal.WithLabelValues("rejected").Inc()
		return decimal.Zero, err
	}
	key := recordKey{account: caller, tier: tierID}
	rec, ok := l.records[key]
	if !ok || rec.StakedAmount.IsZero() {
		metrics.GuardRejects.WithLabelValues("no_active_stake").Inc()
		metrics.WithdrawalsTotal.WithLabelValues("rejected").Inc()
		return decimal.Zero, apperrors.New(apperrors.ErrNoActiveStake, "no active stake for this tier", nil)
	}
	if err := l.requireNotAlreadyWithdrawn(caller); err != nil {
		metrics.WithdrawalsTotal.WithLabelValues("rejected").Inc()
		return decimal.Zero, err
	}
	// Strict inequality: at now == releaseTime the stake is still locked.
	if now <= rec.ReleaseTime {
		metrics.GuardRejects.WithLabelValues("stake_still_locked").Inc()
		metrics.WithdrawalsTotal.WithLabelValues("rejected").Inc()
		return decimal.Zero, apperrors.NewStakeStillLocked(rec.ReleaseTime)
	}

	total := rec.StakedAmount.Add(rec.EarnedReward)

	// Effects before the external call: a re-entrant withdrawal must observe
	// the record as already withdrawn.
	l.withdrawn[caller] = true
	l.records[key] = StakeRecord{
		StakedAmount: decimal.Zero,
		EarnedReward: decimal.Zero,
		ReleaseTime:  0,
		Withdrawn:    true,
	}

	if err := l.transfer.Transfer(ctx, caller, total); err != nil {
		// Roll back the staged mutation; the guard chain proved the flag was
		// clear before this operation.
		l.records[key] = rec
		delete(l.withdrawn, caller)
		metrics.TransferFailures.WithLabelValues("out").Inc()
		metrics.WithdrawalsTotal.WithLabelValues("transfer_failed").Inc()
		return decimal.Zero, apperrors.NewTransferFailed(err)
	}

	metrics.WithdrawalsTotal.WithLabelValues("success").Inc()
	l.notify(&model.LedgerEvent{
		Kind:    model.EventWithdrawn,
		Account: caller,
		TierID:  tierID,
		Total:   decPtr(total),
	})
	l.persistLocked()
	return total, nil
}

// GetStakeDetails is a pure read; unknown pairs yield the zero record.
func (l *Ledger) GetStakeDetails(account string, tierID uint32) StakeRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[recordKey{account: account, tier: tierID}]
	if !ok {
		return StakeRecord{StakedAmount: decimal.Zero, EarnedReward: decimal.Zero}
	}
	return rec
}

// HasWithdrawn reports the account-global withdrawn flag.
func (l *Ledger) HasWithdrawn(account string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.withdrawn[account]
}

// IsAllowListed reports allow-list membership.
func (l *Ledger) IsAllowListed(account string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.allowList[account]
}

func (l *Ledger) notify(event *model.LedgerEvent) {
	if l.notifier == nil {
		return
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Unix(l.clock.Now(), 0).UTC()
	}
	l.notifier.Notify(event)
}

// persistLocked hands a consistent copy of the state to the persist worker.
// Persistence is write-behind and best-effort: a failing store never fails
// or delays a ledger operation. Snapshots coalesce to the newest pending one;
// the single worker guarantees saves commit in mutation order, so a restart
// never restores state older than the last completed save.
func (l *Ledger) persistLocked() {
	if l.persist == nil {
		return
	}
	snap := l.snapshotLocked()
	select {
	case l.persistCh <- snap:
	default:
		// A snapshot is already pending; it is a strict prefix of this one.
		select {
		case <-l.persistCh:
		default:
		}
		l.persistCh <- snap
	}
}

func (l *Ledger) persistLoop() {
	defer close(l.persistDone)
	for snap := range l.persistCh {
		if err := l.persist.Save(context.Background(), snap); err != nil {
			logger.Error("failed to persist ledger snapshot", "error", err)
		}
	}
}

func decPtr(d decimal.Decimal) *decimal.Decimal { return &d }

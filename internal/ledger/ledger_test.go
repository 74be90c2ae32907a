package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/GoStakeVault/stakegate/internal/pkg/apperrors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const (
	owner = "0xowner"
	alice = "0xalice"
	bob   = "0xbob"

	day  = int64(86400)
	week = 7 * day
)

type fakeClock struct {
	now int64
}

func (c *fakeClock) Now() int64 { return c.now }

func (c *fakeClock) advance(seconds int64) { c.now += seconds }

type fakeTransferrer struct {
	failIn  bool
	failOut bool
	ins     []decimal.Decimal
	outs    []decimal.Decimal
}

func (t *fakeTransferrer) TransferFrom(ctx context.Context, payer string, amount decimal.Decimal) error {
	if t.failIn {
		return errors.New("declined")
	}
	t.ins = append(t.ins, amount)
	return nil
}

func (t *fakeTransferrer) Transfer(ctx context.Context, payee string, amount decimal.Decimal) error {
	if t.failOut {
		return errors.New("declined")
	}
	t.outs = append(t.outs, amount)
	return nil
}

func newTestLedger(t *testing.T) (*Ledger, *fakeClock, *fakeTransferrer) {
	t.Helper()
	clock := &fakeClock{now: 1_000_000}
	transfer := &fakeTransferrer{}
	l := New(Params{
		Owner:       owner,
		Clock:       clock,
		Transferrer: transfer,
	})
	require.NoError(t, l.UpdateAllowListStatus(owner, alice, true))
	return l, clock, transfer
}

func requireErrType(t *testing.T, err error, want apperrors.ErrorType) {
	t.Helper()
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, want, appErr.Type)
}

func TestStakeHappyPath(t *testing.T) {
	l, clock, transfer := newTestLedger(t)

	rec, reward, err := l.Stake(context.Background(), alice, 1, decimal.NewFromInt(1000))
	require.NoError(t, err)

	// Tier 1 is 500 bps over a week: 1000 * 0.05 = 50.
	require.True(t, reward.Equal(decimal.NewFromInt(50)))
	require.True(t, rec.StakedAmount.Equal(decimal.NewFromInt(1000)))
	require.True(t, rec.EarnedReward.Equal(decimal.NewFromInt(50)))
	require.Equal(t, clock.now+week, rec.ReleaseTime)
	require.False(t, rec.Withdrawn)

	require.Len(t, transfer.ins, 1)
	require.True(t, transfer.ins[0].Equal(decimal.NewFromInt(1000)))
}

func TestStakeRequiresAllowList(t *testing.T) {
	l, _, _ := newTestLedger(t)

	_, _, err := l.Stake(context.Background(), bob, 1, decimal.NewFromInt(100))
	requireErrType(t, err, apperrors.ErrNotAllowListed)

	_, err2 := l.Withdraw(context.Background(), bob, 1)
	requireErrType(t, err2, apperrors.ErrNotAllowListed)
}

func TestStakeRejectsNonPositiveAmount(t *testing.T) {
	l, _, _ := newTestLedger(t)

	_, _, err := l.Stake(context.Background(), alice, 1, decimal.Zero)
	requireErrType(t, err, apperrors.ErrInvalidAmount)

	_, _, err = l.Stake(context.Background(), alice, 1, decimal.NewFromInt(-5))
	requireErrType(t, err, apperrors.ErrInvalidAmount)
}

func TestStakeRejectsUnconfiguredTier(t *testing.T) {
	l, _, _ := newTestLedger(t)

	_, _, err := l.Stake(context.Background(), alice, 99, decimal.NewFromInt(100))
	requireErrType(t, err, apperrors.ErrInvalidTier)

	// A tier configured with zero lock duration behaves like an absent tier.
	require.NoError(t, l.ModifyTier(owner, 7, 500, 0))
	_, _, err = l.Stake(context.Background(), alice, 7, decimal.NewFromInt(100))
	requireErrType(t, err, apperrors.ErrInvalidTier)
}

func TestCooldownIsAccountScoped(t *testing.T) {
	l, clock, _ := newTestLedger(t)

	_, _, err := l.Stake(context.Background(), alice, 1, decimal.NewFromInt(100))
	require.NoError(t, err)

	// The clock started on tier 1 also gates tier 2.
	clock.advance(day - 1)
	_, _, err = l.Stake(context.Background(), alice, 2, decimal.NewFromInt(100))
	requireErrType(t, err, apperrors.ErrCooldownActive)

	clock.advance(1)
	_, _, err = l.Stake(context.Background(), alice, 2, decimal.NewFromInt(100))
	require.NoError(t, err)
}

func TestCooldownDoesNotGateOtherAccounts(t *testing.T) {
	l, _, _ := newTestLedger(t)
	require.NoError(t, l.UpdateAllowListStatus(owner, bob, true))

	_, _, err := l.Stake(context.Background(), alice, 1, decimal.NewFromInt(100))
	require.NoError(t, err)
	_, _, err = l.Stake(context.Background(), bob, 1, decimal.NewFromInt(100))
	require.NoError(t, err)
}

func TestRepeatStakeCompoundsReleaseTime(t *testing.T) {
	l, clock, _ := newTestLedger(t)

	rec1, _, err := l.Stake(context.Background(), alice, 1, decimal.NewFromInt(1000))
	require.NoError(t, err)
	firstRelease := rec1.ReleaseTime

	clock.advance(day)
	rec2, _, err := l.Stake(context.Background(), alice, 1, decimal.NewFromInt(500))
	require.NoError(t, err)

	// The previous release time folds into the new one rather than being
	// replaced: release2 = release1 + now2 + lock.
	require.Equal(t, firstRelease+clock.now+week, rec2.ReleaseTime)
	require.True(t, rec2.StakedAmount.Equal(decimal.NewFromInt(1500)))
	require.True(t, rec2.EarnedReward.Equal(decimal.NewFromInt(75)))
}

func TestWithdrawStillLockedAtBoundary(t *testing.T) {
	l, clock, _ := newTestLedger(t)

	rec, _, err := l.Stake(context.Background(), alice, 1, decimal.NewFromInt(1000))
	require.NoError(t, err)

	// Exactly at the release time the stake is still locked.
	clock.now = rec.ReleaseTime
	_, err = l.Withdraw(context.Background(), alice, 1)
	requireErrType(t, err, apperrors.ErrStakeStillLocked)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, rec.ReleaseTime, appErr.ReleaseTime)

	clock.advance(1)
	total, err := l.Withdraw(context.Background(), alice, 1)
	require.NoError(t, err)
	require.True(t, total.Equal(decimal.NewFromInt(1050)))
}

func TestWithdrawNoActiveStake(t *testing.T) {
	l, _, _ := newTestLedger(t)

	_, err := l.Withdraw(context.Background(), alice, 1)
	requireErrType(t, err, apperrors.ErrNoActiveStake)
}

func TestWithdrawClearsRecord(t *testing.T) {
	l, clock, transfer := newTestLedger(t)

	rec, _, err := l.Stake(context.Background(), alice, 1, decimal.NewFromInt(1000))
	require.NoError(t, err)

	clock.now = rec.ReleaseTime + 1
	total, err := l.Withdraw(context.Background(), alice, 1)
	require.NoError(t, err)
	require.Len(t, transfer.outs, 1)
	require.True(t, transfer.outs[0].Equal(total))

	after := l.GetStakeDetails(alice, 1)
	require.True(t, after.StakedAmount.IsZero())
	require.True(t, after.EarnedReward.IsZero())
	require.Equal(t, int64(0), after.ReleaseTime)
	require.True(t, after.Withdrawn)
	require.True(t, l.HasWithdrawn(alice))
}

func TestWithdrawnFlagIsAccountGlobal(t *testing.T) {
	l, clock, _ := newTestLedger(t)

	rec1, _, err := l.Stake(context.Background(), alice, 1, decimal.NewFromInt(1000))
	require.NoError(t, err)
	clock.advance(day)
	rec2, _, err := l.Stake(context.Background(), alice, 2, decimal.NewFromInt(1000))
	require.NoError(t, err)

	clock.now = rec1.ReleaseTime + 1
	if rec2.ReleaseTime >= clock.now {
		clock.now = rec2.ReleaseTime + 1
	}

	_, err = l.Withdraw(context.Background(), alice, 1)
	require.NoError(t, err)

	// One completed withdrawal blocks the account everywhere, even though
	// tier 2 still holds an unlocked balance.
	_, err = l.Withdraw(context.Background(), alice, 2)
	requireErrType(t, err, apperrors.ErrAlreadyWithdrawn)
}

func TestWithdrawTransferFailureRollsBack(t *testing.T) {
	l, clock, transfer := newTestLedger(t)

	rec, _, err := l.Stake(context.Background(), alice, 1, decimal.NewFromInt(1000))
	require.NoError(t, err)
	clock.now = rec.ReleaseTime + 1

	transfer.failOut = true
	_, err = l.Withdraw(context.Background(), alice, 1)
	requireErrType(t, err, apperrors.ErrTransferFailed)

	// The staged mutation must be fully restored.
	restored := l.GetStakeDetails(alice, 1)
	require.True(t, restored.StakedAmount.Equal(rec.StakedAmount))
	require.True(t, restored.EarnedReward.Equal(rec.EarnedReward))
	require.Equal(t, rec.ReleaseTime, restored.ReleaseTime)
	require.False(t, restored.Withdrawn)
	require.False(t, l.HasWithdrawn(alice))

	// A retry after the backend recovers succeeds.
	transfer.failOut = false
	total, err := l.Withdraw(context.Background(), alice, 1)
	require.NoError(t, err)
	require.True(t, total.Equal(decimal.NewFromInt(1050)))
}

func TestStakeTransferFailureLeavesNoState(t *testing.T) {
	l, _, transfer := newTestLedger(t)

	transfer.failIn = true
	_, _, err := l.Stake(context.Background(), alice, 1, decimal.NewFromInt(1000))
	requireErrType(t, err, apperrors.ErrTransferFailed)

	require.True(t, l.GetStakeDetails(alice, 1).StakedAmount.IsZero())

	// The cooldown clock must not have started either.
	transfer.failIn = false
	_, _, err = l.Stake(context.Background(), alice, 1, decimal.NewFromInt(1000))
	require.NoError(t, err)
}

func TestModifyTierOwnerOnly(t *testing.T) {
	l, _, _ := newTestLedger(t)

	err := l.ModifyTier(alice, 4, 2000, week)
	requireErrType(t, err, apperrors.ErrUnauthorized)

	require.NoError(t, l.ModifyTier(owner, 4, 2000, week))
	tier := l.GetTier(4)
	require.Equal(t, int64(2000), tier.RewardRateBps)
	require.Equal(t, week, tier.LockDurationSeconds)
}

func TestModifyTierRejectsReservedID(t *testing.T) {
	l, _, _ := newTestLedger(t)

	err := l.ModifyTier(owner, 0, 500, week)
	requireErrType(t, err, apperrors.ErrInvalidTier)
}

func TestModifyTierAppliesToNextStake(t *testing.T) {
	l, _, _ := newTestLedger(t)

	require.NoError(t, l.ModifyTier(owner, 1, 750, week))
	_, reward, err := l.Stake(context.Background(), alice, 1, decimal.NewFromInt(1000))
	require.NoError(t, err)
	require.True(t, reward.Equal(decimal.NewFromInt(75)))
}

func TestUpdateAllowListOwnerOnly(t *testing.T) {
	l, _, _ := newTestLedger(t)

	err := l.UpdateAllowListStatus(alice, bob, true)
	requireErrType(t, err, apperrors.ErrUnauthorized)
	require.False(t, l.IsAllowListed(bob))

	require.NoError(t, l.UpdateAllowListStatus(owner, bob, true))
	require.True(t, l.IsAllowListed(bob))

	// Revocation takes effect on the next call.
	require.NoError(t, l.UpdateAllowListStatus(owner, alice, false))
	_, _, err = l.Stake(context.Background(), alice, 1, decimal.NewFromInt(100))
	requireErrType(t, err, apperrors.ErrNotAllowListed)
}

func TestSnapshotRoundTrip(t *testing.T) {
	l, clock, _ := newTestLedger(t)

	rec, _, err := l.Stake(context.Background(), alice, 1, decimal.NewFromInt(1000))
	require.NoError(t, err)

	snap := l.Snapshot()

	restored := New(Params{
		Owner:       owner,
		Clock:       clock,
		Transferrer: &fakeTransferrer{},
	})
	restored.Restore(snap)

	got := restored.GetStakeDetails(alice, 1)
	require.True(t, got.StakedAmount.Equal(rec.StakedAmount))
	require.Equal(t, rec.ReleaseTime, got.ReleaseTime)
	require.True(t, restored.IsAllowListed(alice))

	// The cooldown clock survives the round trip.
	_, _, err = restored.Stake(context.Background(), alice, 2, decimal.NewFromInt(100))
	requireErrType(t, err, apperrors.ErrCooldownActive)
}

type stallingSnapshotter struct {
	release chan struct{}
	mu      sync.Mutex
	saved   []*Snapshot
}

func (s *stallingSnapshotter) Save(ctx context.Context, snap *Snapshot) error {
	<-s.release
	s.mu.Lock()
	s.saved = append(s.saved, snap)
	s.mu.Unlock()
	return nil
}

func (s *stallingSnapshotter) Load(ctx context.Context) (*Snapshot, error) { return nil, nil }

func (s *stallingSnapshotter) last() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.saved) == 0 {
		return nil
	}
	return s.saved[len(s.saved)-1]
}

func TestPersistCommitsInMutationOrder(t *testing.T) {
	clock := &fakeClock{now: 1_000_000}
	store := &stallingSnapshotter{release: make(chan struct{})}
	l := New(Params{
		Owner:       owner,
		Clock:       clock,
		Transferrer: &fakeTransferrer{},
		Snapshots:   store,
	})
	require.NoError(t, l.UpdateAllowListStatus(owner, alice, true))

	rec, _, err := l.Stake(context.Background(), alice, 1, decimal.NewFromInt(1000))
	require.NoError(t, err)
	clock.now = rec.ReleaseTime + 1
	_, err = l.Withdraw(context.Background(), alice, 1)
	require.NoError(t, err)

	// The store was stalled across both mutations; whatever commits, the
	// final persisted state must include the withdrawal.
	close(store.release)
	l.Close()

	last := store.last()
	require.NotNil(t, last)
	require.True(t, last.Withdrawn[alice], "persisted state lost the withdrawn flag")
	for _, entry := range last.Records {
		if entry.Account == alice && entry.TierID == 1 {
			require.True(t, entry.Record.StakedAmount.IsZero())
			require.True(t, entry.Record.Withdrawn)
		}
	}
}

func TestConcurrentStakesSerialize(t *testing.T) {
	l, clock, _ := newTestLedger(t)

	accounts := make([]string, 10)
	for i := range accounts {
		accounts[i] = fmt.Sprintf("0xacct%d", i)
		require.NoError(t, l.UpdateAllowListStatus(owner, accounts[i], true))
	}

	done := make(chan error, len(accounts))
	for _, account := range accounts {
		go func(account string) {
			_, _, err := l.Stake(context.Background(), account, 1, decimal.NewFromInt(100))
			done <- err
		}(account)
	}
	for range accounts {
		require.NoError(t, <-done)
	}

	clock.advance(week + 1)
	for _, account := range accounts {
		total, err := l.Withdraw(context.Background(), account, 1)
		require.NoError(t, err)
		require.True(t, total.Equal(decimal.NewFromInt(105)))
	}
}

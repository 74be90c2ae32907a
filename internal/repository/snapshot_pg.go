package repository

import (
	"context"

	"github.com/GoStakeVault/stakegate/internal/ledger"
	"github.com/jmoiron/sqlx"
)

// PostgresSnapshotRepo persists full ledger snapshots. The ledger remains
// the authority; this store only has to survive restarts.
type PostgresSnapshotRepo struct {
	db *sqlx.DB
}

func NewPostgresSnapshotRepo(db *sqlx.DB) *PostgresSnapshotRepo {
	repo := &PostgresSnapshotRepo{db: db}
	_ = repo.ensureSchema(context.Background())
	return repo
}

func (r *PostgresSnapshotRepo) Save(ctx context.Context, snap *ledger.Snapshot) error {
	if snap == nil {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Full rewrite per snapshot; the tables are small (one row per tier,
	// record and account).
	for _, table := range []string{"stake_records", "ledger_tiers", "ledger_accounts"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}

	for id, tier := range snap.Tiers {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO ledger_tiers (id, reward_rate_bps, lock_duration_seconds)
			VALUES ($1, $2, $3)
		`, id, tier.RewardRateBps, tier.LockDurationSeconds); err != nil {
			return err
		}
	}

	for _, entry := range snap.Records {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO stake_records (account, tier_id, staked_amount, earned_reward, release_time, withdrawn)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, entry.Account, entry.TierID, entry.Record.StakedAmount, entry.Record.EarnedReward,
			entry.Record.ReleaseTime, entry.Record.Withdrawn); err != nil {
			return err
		}
	}

	accounts := make(map[string]struct{})
	for account := range snap.AllowList {
		accounts[account] = struct{}{}
	}
	for account := range snap.LastStakeAt {
		accounts[account] = struct{}{}
	}
	for account := range snap.Withdrawn {
		accounts[account] = struct{}{}
	}
	for account := range accounts {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO ledger_accounts (account, allow_listed, last_stake_at, withdrawn)
			VALUES ($1, $2, $3, $4)
		`, account, snap.AllowList[account], snap.LastStakeAt[account], snap.Withdrawn[account]); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *PostgresSnapshotRepo) Load(ctx context.Context) (*ledger.Snapshot, error) {
	snap := &ledger.Snapshot{
		Tiers:       make(map[uint32]ledger.Tier),
		AllowList:   make(map[string]bool),
		LastStakeAt: make(map[string]int64),
		Withdrawn:   make(map[string]bool),
	}

	rows, err := r.db.QueryxContext(ctx, `SELECT id, reward_rate_bps, lock_duration_seconds FROM ledger_tiers`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var id uint32
		var tier ledger.Tier
		if err := rows.Scan(&id, &tier.RewardRateBps, &tier.LockDurationSeconds); err != nil {
			rows.Close()
			return nil, err
		}
		snap.Tiers[id] = tier
	}
	rows.Close()

	rows, err = r.db.QueryxContext(ctx, `SELECT account, tier_id, staked_amount, earned_reward, release_time, withdrawn FROM stake_records`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var entry ledger.RecordEntry
		if err := rows.Scan(&entry.Account, &entry.TierID, &entry.Record.StakedAmount,
			&entry.Record.EarnedReward, &entry.Record.ReleaseTime, &entry.Record.Withdrawn); err != nil {
			rows.Close()
			return nil, err
		}
		snap.Records = append(snap.Records, entry)
	}
	rows.Close()

	rows, err = r.db.QueryxContext(ctx, `SELECT account, allow_listed, last_stake_at, withdrawn FROM ledger_accounts`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var account string
		var allowed, withdrawn bool
		var lastStakeAt int64
		if err := rows.Scan(&account, &allowed, &lastStakeAt, &withdrawn); err != nil {
			return nil, err
		}
		if allowed {
			snap.AllowList[account] = true
		}
		if lastStakeAt != 0 {
			snap.LastStakeAt[account] = lastStakeAt
		}
		if withdrawn {
			snap.Withdrawn[account] = true
		}
	}

	return snap, nil
}

func (r *PostgresSnapshotRepo) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ledger_tiers (
			id INTEGER PRIMARY KEY,
			reward_rate_bps BIGINT NOT NULL DEFAULT 0,
			lock_duration_seconds BIGINT NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS stake_records (
			account TEXT NOT NULL,
			tier_id INTEGER NOT NULL,
			staked_amount NUMERIC NOT NULL DEFAULT 0,
			earned_reward NUMERIC NOT NULL DEFAULT 0,
			release_time BIGINT NOT NULL DEFAULT 0,
			withdrawn BOOLEAN NOT NULL DEFAULT false,
			PRIMARY KEY (account, tier_id)
		)`,
		`CREATE TABLE IF NOT EXISTS ledger_accounts (
			account TEXT PRIMARY KEY,
			allow_listed BOOLEAN NOT NULL DEFAULT false,
			last_stake_at BIGINT NOT NULL DEFAULT 0,
			withdrawn BOOLEAN NOT NULL DEFAULT false
		)`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/GoStakeVault/stakegate/internal/model"
	"github.com/jmoiron/sqlx"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ledgerEventRow is the journal row; the full event is kept as JSON payload
// so the schema survives event shape changes.
type ledgerEventRow struct {
	ID        string    `gorm:"primaryKey"`
	Kind      string    `gorm:"index"`
	Account   string    `gorm:"index:idx_ledger_events_account"`
	TierID    uint32    `gorm:"column:tier_id"`
	Payload   string    `gorm:"type:jsonb"`
	CreatedAt time.Time `gorm:"index"`
}

func (ledgerEventRow) TableName() string { return "ledger_events" }

type GormEventRepo struct {
	db *gorm.DB
}

// NewGormEventRepo journals ledger events over the shared sql connection.
func NewGormEventRepo(db *sqlx.DB) (*GormEventRepo, error) {
	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: db.DB}), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := gdb.AutoMigrate(&ledgerEventRow{}); err != nil {
		return nil, err
	}
	return &GormEventRepo{db: gdb}, nil
}

func (r *GormEventRepo) Insert(ctx context.Context, event *model.LedgerEvent) error {
	if event == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	row := &ledgerEventRow{
		ID:        event.ID,
		Kind:      string(event.Kind),
		Account:   event.Account,
		TierID:    event.TierID,
		Payload:   string(payload),
		CreatedAt: event.CreatedAt,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(row).Error
}

func (r *GormEventRepo) List(ctx context.Context, account string, limit int, from, to *time.Time) ([]*model.LedgerEvent, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	query := r.db.WithContext(ctx).Model(&ledgerEventRow{})
	if account != "" {
		query = query.Where("account = ?", account)
	}
	if from != nil {
		query = query.Where("created_at >= ?", *from)
	}
	if to != nil {
		query = query.Where("created_at <= ?", *to)
	}

	var rows []ledgerEventRow
	if err := query.Order("created_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}

	events := make([]*model.LedgerEvent, 0, len(rows))
	for _, row := range rows {
		var event model.LedgerEvent
		if err := json.Unmarshal([]byte(row.Payload), &event); err != nil {
			continue
		}
		events = append(events, &event)
	}
	return events, nil
}

func (r *GormEventRepo) Cleanup(ctx context.Context, olderThan time.Duration) error {
	if olderThan <= 0 {
		return nil
	}
	cutoff := time.Now().UTC().Add(-olderThan)
	return r.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&ledgerEventRow{}).Error
}

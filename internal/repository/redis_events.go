package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/GoStakeVault/stakegate/internal/model"
)

// RedisEventRepo keeps a capped list of recent ledger events for quick
// inspection without hitting Postgres.
type RedisEventRepo struct {
	client  *RedisClient
	listKey string
	listMax int
}

func NewRedisEventRepo(client *RedisClient, listKey string, listMax int) *RedisEventRepo {
	if listKey == "" {
		listKey = "ledger_events"
	}
	if listMax <= 0 {
		listMax = 10000
	}
	return &RedisEventRepo{
		client:  client,
		listKey: listKey,
		listMax: listMax,
	}
}

func (r *RedisEventRepo) Insert(ctx context.Context, event *model.LedgerEvent) error {
	if event == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := r.client.Client.LPush(ctx, r.listKey, string(payload)).Err(); err != nil {
		return err
	}
	_ = r.client.Client.LTrim(ctx, r.listKey, 0, int64(r.listMax-1)).Err()
	return nil
}

func (r *RedisEventRepo) List(ctx context.Context, account string, limit int, from, to *time.Time) ([]*model.LedgerEvent, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	fetch := limit * 5
	if fetch < 100 {
		fetch = 100
	}
	if fetch > r.listMax {
		fetch = r.listMax
	}
	items, err := r.client.Client.LRange(ctx, r.listKey, 0, int64(fetch-1)).Result()
	if err != nil {
		return nil, err
	}
	results := make([]*model.LedgerEvent, 0, limit)
	for _, item := range items {
		var event model.LedgerEvent
		if err := json.Unmarshal([]byte(item), &event); err != nil {
			continue
		}
		if account != "" && event.Account != account {
			continue
		}
		if from != nil && event.CreatedAt.Before(*from) {
			continue
		}
		if to != nil && event.CreatedAt.After(*to) {
			continue
		}
		results = append(results, &event)
		if len(results) >= limit {
			break
		}
	}
	return results, nil
}

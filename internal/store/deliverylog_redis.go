package store

import (
	"context"
	"encoding/json"
	"fmt"

	redis "github.com/redis/go-redis/v9"

	"hookrelay/internal/model"
)

// RedisLog stores delivery history in a Redis list per subscription
// (LPUSH + LTRIM), so the newest record is always at index 0.
type RedisLog struct {
	rdb       redis.UniversalClient
	retention int
	prefix    string
}

func NewRedisLog(rdb redis.UniversalClient, retention int) *RedisLog {
	if retention <= 0 {
		retention = LogRetention
	}
	return &RedisLog{rdb: rdb, retention: retention, prefix: "webhook:deliveries:"}
}

// NewRedisLogFromURL parses a redis:// URL and connects.
func NewRedisLogFromURL(ctx context.Context, url string, retention int) (*RedisLog, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisLog(rdb, retention), nil
}

func (l *RedisLog) key(subscriptionID string) string { return l.prefix + subscriptionID }

func (l *RedisLog) Push(ctx context.Context, subscriptionID string, rec model.DeliveryRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	k := l.key(subscriptionID)
	_, err = l.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.LPush(ctx, k, data)
		p.LTrim(ctx, k, 0, int64(l.retention-1))
		return nil
	})
	if err != nil {
		return fmt.Errorf("push delivery record: %w", err)
	}
	return nil
}

func (l *RedisLog) List(ctx context.Context, subscriptionID string, limit int) ([]model.DeliveryRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	raw, err := l.rdb.LRange(ctx, l.key(subscriptionID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("list delivery records: %w", err)
	}
	out := make([]model.DeliveryRecord, 0, len(raw))
	for _, s := range raw {
		var rec model.DeliveryRecord
		if err := json.Unmarshal([]byte(s), &rec); err != nil {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (l *RedisLog) Ping(ctx context.Context) error { return l.rdb.Ping(ctx).Err() }

func (l *RedisLog) Close() error { return l.rdb.Close() }

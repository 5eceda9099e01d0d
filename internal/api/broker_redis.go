package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"

	"hookrelay/internal/model"
)

// RedisBroker implements EventBroker over Redis Pub/Sub so every API replica
// sees deliveries made by any other replica.
type RedisBroker struct {
	rdb    *redis.Client
	logger *slog.Logger
	mu     sync.Mutex
	ps     map[chan model.DeliveryRecord]*redis.PubSub
}

func NewRedisBroker(rdb *redis.Client, logger *slog.Logger) *RedisBroker {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisBroker{rdb: rdb, logger: logger, ps: map[chan model.DeliveryRecord]*redis.PubSub{}}
}

func (b *RedisBroker) Subscribe(orgID string) chan model.DeliveryRecord {
	ch := make(chan model.DeliveryRecord, 16)
	ctx := context.Background()
	ps := b.rdb.Subscribe(ctx, b.chanName(orgID))
	// Wait for the subscription confirmation. On failure the client keeps
	// reconnecting in the background, so the feed may still recover.
	rctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if _, err := ps.Receive(rctx); err != nil {
		b.logger.Warn("redis feed subscribe", "org", orgID, "err", err)
	}
	cancel()
	b.mu.Lock()
	b.ps[ch] = ps
	b.mu.Unlock()
	go func() {
		defer close(ch)
		for msg := range ps.Channel() {
			var rec model.DeliveryRecord
			if err := json.Unmarshal([]byte(msg.Payload), &rec); err == nil {
				select {
				case ch <- rec:
				default:
				}
			}
		}
	}()
	return ch
}

// Unsubscribe closes the Redis subscription; the reader goroutine then closes ch.
func (b *RedisBroker) Unsubscribe(orgID string, ch chan model.DeliveryRecord) {
	b.mu.Lock()
	ps := b.ps[ch]
	delete(b.ps, ch)
	b.mu.Unlock()
	if ps != nil {
		_ = ps.Close()
	}
}

func (b *RedisBroker) Publish(orgID string, rec model.DeliveryRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	data, _ := json.Marshal(rec)
	if err := b.rdb.Publish(ctx, b.chanName(orgID), data).Err(); err != nil {
		b.logger.Warn("redis feed publish", "org", orgID, "err", err)
	}
}

func (b *RedisBroker) chanName(orgID string) string { return "webhook:deliveries:feed:" + orgID }

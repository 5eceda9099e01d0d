package store

import (
	"context"
	"sync"

	"hookrelay/internal/model"
)

const (
	// LogRetention is how many delivery records are kept per subscription.
	LogRetention = 100
	// DefaultListLimit applies when List is called with limit <= 0.
	DefaultListLimit = 20
)

// DeliveryLog is a capped, most-recent-first delivery history per subscription.
// It is an operational view, not an audit trail.
type DeliveryLog interface {
	Push(ctx context.Context, subscriptionID string, rec model.DeliveryRecord) error
	List(ctx context.Context, subscriptionID string, limit int) ([]model.DeliveryRecord, error)
}

// MemoryLog keeps delivery history in process memory.
type MemoryLog struct {
	mu        sync.RWMutex
	retention int
	entries   map[string][]model.DeliveryRecord // newest first
}

func NewMemoryLog(retention int) *MemoryLog {
	if retention <= 0 {
		retention = LogRetention
	}
	return &MemoryLog{retention: retention, entries: map[string][]model.DeliveryRecord{}}
}

func (l *MemoryLog) Push(ctx context.Context, subscriptionID string, rec model.DeliveryRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	cur := l.entries[subscriptionID]
	n := len(cur) + 1
	if n > l.retention {
		n = l.retention
	}
	next := make([]model.DeliveryRecord, n)
	next[0] = rec
	copy(next[1:], cur)
	l.entries[subscriptionID] = next
	return nil
}

func (l *MemoryLog) List(ctx context.Context, subscriptionID string, limit int) ([]model.DeliveryRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	cur := l.entries[subscriptionID]
	if limit > len(cur) {
		limit = len(cur)
	}
	return append([]model.DeliveryRecord{}, cur[:limit]...), nil
}

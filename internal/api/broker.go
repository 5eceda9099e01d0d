package api

import (
	"sync"

	"hookrelay/internal/model"
)

// EventBroker fans delivery records out to live listeners, per organization.
type EventBroker interface {
	Subscribe(orgID string) chan model.DeliveryRecord
	Unsubscribe(orgID string, ch chan model.DeliveryRecord)
	Publish(orgID string, rec model.DeliveryRecord)
}

type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan model.DeliveryRecord]struct{} // orgId -> set of channels
}

func NewBroker() *Broker {
	return &Broker{subs: map[string]map[chan model.DeliveryRecord]struct{}{}}
}

func (b *Broker) Subscribe(orgID string) chan model.DeliveryRecord {
	ch := make(chan model.DeliveryRecord, 16)
	b.mu.Lock()
	if b.subs[orgID] == nil {
		b.subs[orgID] = map[chan model.DeliveryRecord]struct{}{}
	}
	b.subs[orgID][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broker) Unsubscribe(orgID string, ch chan model.DeliveryRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m := b.subs[orgID]
	if _, ok := m[ch]; !ok {
		return
	}
	delete(m, ch)
	if len(m) == 0 {
		delete(b.subs, orgID)
	}
	close(ch)
}

// Publish never blocks; slow listeners miss records.
func (b *Broker) Publish(orgID string, rec model.DeliveryRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[orgID] {
		select {
		case ch <- rec:
		default:
		}
	}
}

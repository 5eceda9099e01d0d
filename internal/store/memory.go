package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"hookrelay/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
	mu    sync.Mutex
	subs  map[string]*model.Subscription // id -> subscription
	byOrg map[string][]string            // org -> subscription ids, creation order
	now   func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		subs:  map[string]*model.Subscription{},
		byOrg: map[string][]string{},
		now:   time.Now,
	}
}

func (m *Memory) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
	if err := ValidateRequest(&req); err != nil {
		return model.Subscription{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now().UTC()
	s := &model.Subscription{
		ID:             uuid.New().String(),
		OrganizationID: req.OrganizationID,
		URL:            req.URL,
		Secret:         req.Secret,
		Events:         append([]string(nil), req.Events...),
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	m.subs[s.ID] = s
	m.byOrg[s.OrganizationID] = append(m.byOrg[s.OrganizationID], s.ID)
	return clone(s), nil
}

// Put stores a subscription as given, overwriting any existing one with the same id.
func (m *Memory) Put(s model.Subscription) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subs[s.ID]; !ok {
		m.byOrg[s.OrganizationID] = append(m.byOrg[s.OrganizationID], s.ID)
	}
	c := clone(&s)
	m.subs[s.ID] = &c
}

func (m *Memory) FindActiveByOrgAndEvent(ctx context.Context, orgID, eventType string) ([]model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Subscription{}
	for _, id := range m.byOrg[orgID] {
		s := m.subs[id]
		if s == nil || !s.IsActive || !s.Wants(eventType) {
			continue
		}
		out = append(out, clone(s))
	}
	return out, nil
}

func (m *Memory) GetByID(ctx context.Context, id string) (model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.subs[id]
	if s == nil {
		return model.Subscription{}, ErrNotFound
	}
	return clone(s), nil
}

func (m *Memory) UpdateFailureState(ctx context.Context, id string, expectedFailureCount int, st FailureState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.subs[id]
	if s == nil {
		return ErrNotFound
	}
	if s.FailureCount != expectedFailureCount {
		return ErrConflict
	}
	s.FailureCount = st.FailureCount
	s.IsActive = s.IsActive && !st.Disable
	if st.LastTriggeredAt != nil {
		t := st.LastTriggeredAt.UTC()
		s.LastTriggeredAt = &t
	}
	s.UpdatedAt = m.now().UTC()
	return nil
}

func (m *Memory) ListSubscriptions(ctx context.Context, orgID, cursor string, limit int) ([]model.Subscription, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := append([]string(nil), m.byOrg[orgID]...)
	sort.Strings(ids)
	start := 0
	if cursor != "" {
		start = sort.SearchStrings(ids, cursor)
		if start < len(ids) && ids[start] == cursor {
			start++
		}
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	end := start + limit
	if end > len(ids) {
		end = len(ids)
	}
	items := make([]model.Subscription, 0, end-start)
	for _, id := range ids[start:end] {
		items = append(items, clone(m.subs[id]))
	}
	next := ""
	if end < len(ids) {
		next = ids[end-1]
	}
	return items, next, nil
}

func (m *Memory) DeleteSubscription(ctx context.Context, orgID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.subs[id]
	if s == nil || s.OrganizationID != orgID {
		return ErrNotFound
	}
	delete(m.subs, id)
	arr := m.byOrg[orgID]
	out := make([]string, 0, len(arr))
	for _, v := range arr {
		if v != id {
			out = append(out, v)
		}
	}
	m.byOrg[orgID] = out
	return nil
}

func (m *Memory) RotateSecret(ctx context.Context, orgID, id string) (model.Subscription, error) {
	secret, err := NewSecret()
	if err != nil {
		return model.Subscription{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.subs[id]
	if s == nil || s.OrganizationID != orgID {
		return model.Subscription{}, ErrNotFound
	}
	s.Secret = secret
	s.UpdatedAt = m.now().UTC()
	return clone(s), nil
}

func (m *Memory) SetActive(ctx context.Context, orgID, id string, active bool) (model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.subs[id]
	if s == nil || s.OrganizationID != orgID {
		return model.Subscription{}, ErrNotFound
	}
	if active && !s.IsActive {
		s.FailureCount = 0
	}
	s.IsActive = active
	s.UpdatedAt = m.now().UTC()
	return clone(s), nil
}

func clone(s *model.Subscription) model.Subscription {
	c := *s
	c.Events = append([]string(nil), s.Events...)
	if s.LastTriggeredAt != nil {
		t := *s.LastTriggeredAt
		c.LastTriggeredAt = &t
	}
	return c
}

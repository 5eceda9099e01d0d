package store

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"hookrelay/internal/model"
)

func TestMemoryCreateValidates(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	if _, err := m.CreateSubscription(ctx, model.SubscriptionRequest{OrganizationID: "A", URL: "not a url", Events: []string{"meeting.created"}}); !errors.Is(err, ErrInvalidURL) {
		t.Fatalf("want ErrInvalidURL, got %v", err)
	}
	if _, err := m.CreateSubscription(ctx, model.SubscriptionRequest{OrganizationID: "A", URL: "ftp://x.example/hook", Events: []string{"meeting.created"}}); !errors.Is(err, ErrInvalidURL) {
		t.Fatalf("want ErrInvalidURL for ftp, got %v", err)
	}
	if _, err := m.CreateSubscription(ctx, model.SubscriptionRequest{OrganizationID: "A", URL: "https://x.example/hook"}); !errors.Is(err, ErrNoEvents) {
		t.Fatalf("want ErrNoEvents, got %v", err)
	}
	s, err := m.CreateSubscription(ctx, model.SubscriptionRequest{OrganizationID: "A", URL: "https://x.example/hook", Events: []string{"meeting.created"}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.HasPrefix(s.Secret, "whsec_") || len(s.Secret) != len("whsec_")+32 {
		t.Fatalf("unexpected generated secret %q", s.Secret)
	}
	if !s.IsActive || s.FailureCount != 0 {
		t.Fatalf("new subscription should be active with zero failures: %+v", s)
	}
}

func TestMemoryFindActiveByOrgAndEvent(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	m.Put(model.Subscription{ID: "s1", OrganizationID: "A", Events: []string{"meeting.created"}, IsActive: true})
	m.Put(model.Subscription{ID: "s2", OrganizationID: "A", Events: []string{"summary.created"}, IsActive: true})
	m.Put(model.Subscription{ID: "s3", OrganizationID: "A", Events: []string{"meeting.created"}, IsActive: false})
	m.Put(model.Subscription{ID: "s4", OrganizationID: "B", Events: []string{"meeting.created"}, IsActive: true})
	m.Put(model.Subscription{ID: "s5", OrganizationID: "A", Events: []string{"meeting.*"}, IsActive: true})

	got, err := m.FindActiveByOrgAndEvent(ctx, "A", "meeting.created")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "s1" {
		t.Fatalf("want only s1, got %+v", got)
	}
	none, _ := m.FindActiveByOrgAndEvent(ctx, "A", "unknown.event")
	if len(none) != 0 {
		t.Fatalf("unknown event should match nothing, got %d", len(none))
	}
}

func TestMemoryUpdateFailureStateCompareAndSet(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	m.Put(model.Subscription{ID: "s1", OrganizationID: "A", IsActive: true, FailureCount: 9})

	if err := m.UpdateFailureState(ctx, "s1", 8, FailureState{FailureCount: 9}); !errors.Is(err, ErrConflict) {
		t.Fatalf("stale expected count must conflict, got %v", err)
	}
	if err := m.UpdateFailureState(ctx, "s1", 9, FailureState{FailureCount: 10, Disable: true}); err != nil {
		t.Fatalf("update: %v", err)
	}
	s, _ := m.GetByID(ctx, "s1")
	if s.FailureCount != 10 || s.IsActive {
		t.Fatalf("want disabled at 10, got %+v", s)
	}
	// A success afterwards resets the counter but never re-activates.
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	if err := m.UpdateFailureState(ctx, "s1", 10, FailureState{FailureCount: 0, LastTriggeredAt: &now}); err != nil {
		t.Fatalf("update: %v", err)
	}
	s, _ = m.GetByID(ctx, "s1")
	if s.IsActive || s.FailureCount != 0 || s.LastTriggeredAt == nil || !s.LastTriggeredAt.Equal(now) {
		t.Fatalf("unexpected state %+v", s)
	}
	if err := m.UpdateFailureState(ctx, "missing", 0, FailureState{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestMemoryRotateSecretReplaces(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	s, _ := m.CreateSubscription(ctx, model.SubscriptionRequest{OrganizationID: "A", URL: "https://x.example", Events: []string{"meeting.created"}, Secret: "old"})
	r, err := m.RotateSecret(ctx, "A", s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if r.Secret == "old" || r.Secret == "" {
		t.Fatalf("secret not replaced: %q", r.Secret)
	}
	got, _ := m.GetByID(ctx, s.ID)
	if got.Secret != r.Secret {
		t.Fatalf("stored secret %q != returned %q", got.Secret, r.Secret)
	}
	if _, err := m.RotateSecret(ctx, "B", s.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("other org must not rotate, got %v", err)
	}
}

func TestMemorySetActiveResetsOnReenable(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	m.Put(model.Subscription{ID: "s1", OrganizationID: "A", IsActive: false, FailureCount: 10})
	s, err := m.SetActive(ctx, "A", "s1", true)
	if err != nil {
		t.Fatal(err)
	}
	if !s.IsActive || s.FailureCount != 0 {
		t.Fatalf("re-enable should reset counter: %+v", s)
	}
}

func TestMemoryListSubscriptionsPaginates(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	for _, id := range []string{"c", "a", "b"} {
		m.Put(model.Subscription{ID: id, OrganizationID: "A", IsActive: true})
	}
	page, next, err := m.ListSubscriptions(ctx, "A", "", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 2 || page[0].ID != "a" || page[1].ID != "b" || next != "b" {
		t.Fatalf("first page: %+v next=%q", page, next)
	}
	page, next, _ = m.ListSubscriptions(ctx, "A", next, 2)
	if len(page) != 1 || page[0].ID != "c" || next != "" {
		t.Fatalf("second page: %+v next=%q", page, next)
	}
}

func TestMemoryDeleteSubscription(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	m.Put(model.Subscription{ID: "s1", OrganizationID: "A", IsActive: true})
	if err := m.DeleteSubscription(ctx, "B", "s1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-org delete should be not found, got %v", err)
	}
	if err := m.DeleteSubscription(ctx, "A", "s1"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.GetByID(ctx, "s1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound after delete, got %v", err)
	}
}

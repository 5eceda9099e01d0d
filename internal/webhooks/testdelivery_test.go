package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"hookrelay/internal/model"
	"hookrelay/internal/store"
)

func TestTestDeliverSendsSyntheticEvent(t *testing.T) {
	mem := store.NewMemory()
	mem.Put(model.Subscription{ID: "s1", OrganizationID: "A", URL: "https://x.example", Secret: "k", Events: []string{model.EventMeetingCreated}, IsActive: true, FailureCount: 2})
	fd := &fakeDeliverer{}
	d, l := newTestDispatcher(mem, fd)

	out, err := d.TestDeliver(context.Background(), "s1")
	if err != nil {
		t.Fatal(err)
	}
	if !out.Success {
		t.Fatalf("want success, got %+v", out)
	}
	req := fd.calls[0]
	if req.EventType != model.EventWebhookTest {
		t.Fatalf("want webhook.test, got %s", req.EventType)
	}
	var env struct {
		Event string      `json:"event"`
		Data  TestPayload `json:"data"`
	}
	if err := json.Unmarshal(req.Body, &env); err != nil {
		t.Fatal(err)
	}
	if env.Event != model.EventWebhookTest || env.Data.SubscriptionID != "s1" || env.Data.Message == "" {
		t.Fatalf("unexpected envelope %+v", env)
	}
	recs, _ := l.List(context.Background(), "s1", 5)
	if len(recs) != 1 || recs[0].EventType != model.EventWebhookTest {
		t.Fatalf("test delivery not recorded: %+v", recs)
	}
	s, _ := mem.GetByID(context.Background(), "s1")
	if s.FailureCount != 0 {
		t.Fatalf("successful test should reset failures, got %d", s.FailureCount)
	}
}

func TestTestDeliverFailureCountsTowardThreshold(t *testing.T) {
	mem := store.NewMemory()
	mem.Put(model.Subscription{ID: "s1", OrganizationID: "A", URL: "https://x.example", Secret: "k", Events: []string{model.EventMeetingCreated}, IsActive: true, FailureCount: 9})
	fd := &fakeDeliverer{fn: func(Request) model.DeliveryOutcome {
		return model.DeliveryOutcome{ErrorMessage: "dial tcp: connection refused"}
	}}
	d, _ := newTestDispatcher(mem, fd)
	out, err := d.TestDeliver(context.Background(), "s1")
	if err != nil {
		t.Fatal(err)
	}
	if out.Success || out.ErrorMessage == "" {
		t.Fatalf("unexpected outcome %+v", out)
	}
	s, _ := mem.GetByID(context.Background(), "s1")
	if s.IsActive || s.FailureCount != 10 {
		t.Fatalf("failed test should trip the breaker: %+v", s)
	}
}

func TestTestDeliverInactiveAndMissing(t *testing.T) {
	mem := store.NewMemory()
	mem.Put(model.Subscription{ID: "off", OrganizationID: "A", URL: "https://x.example", Secret: "k", IsActive: false, FailureCount: 10})
	fd := &fakeDeliverer{}
	d, _ := newTestDispatcher(mem, fd)
	if _, err := d.TestDeliver(context.Background(), "off"); err != nil {
		t.Fatal(err)
	}
	if fd.count() != 1 {
		t.Fatal("inactive subscriptions can still be tested")
	}
	s, _ := mem.GetByID(context.Background(), "off")
	if s.IsActive || s.FailureCount != 0 {
		t.Fatalf("a passing test resets the counter but never re-enables: %+v", s)
	}
	if _, err := d.TestDeliver(context.Background(), "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestTestDeliverOutlivesCallerDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	mem := store.NewMemory()
	mem.Put(model.Subscription{ID: "s1", OrganizationID: "A", URL: srv.URL, Secret: "k", Events: []string{model.EventMeetingCreated}, IsActive: true, FailureCount: 9})
	exec := NewExecutor(10 * time.Second)
	exec.HTTP = srv.Client()
	d, _ := newTestDispatcher(mem, exec)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	out, err := d.TestDeliver(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if !out.Success {
		t.Fatalf("slow healthy endpoint should succeed, got %+v", out)
	}
	got, _ := mem.GetByID(context.Background(), "s1")
	if got.FailureCount != 0 || !got.IsActive {
		t.Fatalf("want count reset and active, got %+v", got)
	}
}

package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"hookrelay/internal/metrics"
	"hookrelay/internal/model"
	"hookrelay/internal/store"
)

// TimestampFormat is the envelope timestamp layout (ISO-8601, UTC, millis).
const TimestampFormat = "2006-01-02T15:04:05.000Z07:00"

const (
	// DefaultMaxInFlight caps concurrent deliveries within one dispatch.
	DefaultMaxInFlight = 16
	// persistAttempts bounds compare-and-set retries when the failure state
	// was changed underneath a delivery branch.
	persistAttempts = 5
)

// Notifier receives every recorded delivery, e.g. to feed a live view.
type Notifier interface {
	Publish(orgID string, rec model.DeliveryRecord)
}

// Dispatcher fans an event out to the matching active subscriptions of an
// organization. Each subscription is handled independently: sign, deliver,
// record, apply the failure policy, persist.
type Dispatcher struct {
	Store       store.Store
	Log         store.DeliveryLog
	Exec        Deliverer
	Policy      Policy
	Notifier    Notifier
	Logger      *slog.Logger
	MaxInFlight int
	Now         func() time.Time

	wg sync.WaitGroup
}

func NewDispatcher(s store.Store, l store.DeliveryLog, exec Deliverer, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		Store:       s,
		Log:         l,
		Exec:        exec,
		Policy:      Policy{Threshold: DefaultFailureThreshold},
		Logger:      logger,
		MaxInFlight: DefaultMaxInFlight,
		Now:         time.Now,
	}
}

func (d *Dispatcher) now() time.Time {
	if d.Now == nil {
		return time.Now()
	}
	return d.Now()
}

// Raise dispatches in the background. Errors are logged, never returned:
// a subscriber being down must not fail the code that raised the event.
func (d *Dispatcher) Raise(orgID, eventType string, data any) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.Dispatch(context.Background(), orgID, eventType, data); err != nil {
			d.Logger.Error("dispatch failed", "org", orgID, "event", eventType, "err", err)
		}
	}()
}

// Wait blocks until every dispatch started by Raise has finished.
func (d *Dispatcher) Wait() { d.wg.Wait() }

// Dispatch delivers one event and returns once every matching subscription has
// been attempted. Only a failed subscription lookup (or an unencodable payload)
// is returned; per-subscription problems are logged.
func (d *Dispatcher) Dispatch(ctx context.Context, orgID, eventType string, data any) error {
	subs, err := d.Store.FindActiveByOrgAndEvent(ctx, orgID, eventType)
	if err != nil {
		metrics.DispatchErrors.WithLabelValues("lookup").Inc()
		return fmt.Errorf("find subscriptions for %s/%s: %w", orgID, eventType, err)
	}
	if len(subs) == 0 {
		d.Logger.Debug("no subscribers", "org", orgID, "event", eventType)
		return nil
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", eventType, err)
	}

	limit := d.MaxInFlight
	if limit <= 0 {
		limit = DefaultMaxInFlight
	}
	var g errgroup.Group
	g.SetLimit(limit)
	for _, sub := range subs {
		g.Go(func() error {
			d.deliver(ctx, sub, eventType, payload)
			return nil
		})
	}
	return g.Wait()
}

// deliver runs the full pipeline for one subscription. It never panics the
// group and never returns an error: failures are recorded or logged here.
// The caller's cancellation does not reach the attempt; the executor timeout
// is its only bound.
func (d *Dispatcher) deliver(ctx context.Context, sub model.Subscription, eventType string, payload json.RawMessage) model.DeliveryOutcome {
	ctx = context.WithoutCancel(ctx)
	log := d.Logger.With("subscription", sub.ID, "org", sub.OrganizationID, "event", eventType)

	body, err := json.Marshal(model.Envelope{
		Event:     eventType,
		Timestamp: d.now().UTC().Format(TimestampFormat),
		Data:      payload,
	})
	if err != nil {
		// Data was already marshalled once, so this only fails on a broken Envelope.
		log.Error("encode envelope", "err", err)
		return model.DeliveryOutcome{ErrorMessage: err.Error()}
	}

	out := d.Exec.Deliver(ctx, Request{
		URL:            sub.URL,
		SubscriptionID: sub.ID,
		EventType:      eventType,
		Signature:      SignHMAC(sub.Secret, body),
		Body:           body,
	})
	finished := d.now()

	status := metrics.Status(out.Success)
	metrics.WebhookDeliveries.WithLabelValues(eventType, status).Inc()
	metrics.WebhookLatency.WithLabelValues(eventType, status).Observe(float64(out.Duration.Milliseconds()))

	rec := model.NewDeliveryRecord(sub.ID, eventType, finished, out)
	if err := d.Log.Push(ctx, sub.ID, rec); err != nil {
		metrics.DispatchErrors.WithLabelValues("log").Inc()
		log.Warn("record delivery", "err", err)
	}
	if d.Notifier != nil {
		d.Notifier.Publish(sub.OrganizationID, rec)
	}

	if out.Success {
		log.Debug("delivered", "status", statusCode(out), "duration_ms", rec.DurationMs)
	} else {
		log.Info("delivery failed", "status", statusCode(out), "error", out.ErrorMessage, "failures", sub.FailureCount+1)
	}

	if err := d.persist(ctx, sub, out, finished); err != nil {
		metrics.DispatchErrors.WithLabelValues("persist").Inc()
		log.Warn("persist failure state", "err", err)
	}
	return out
}

// persist writes the policy decision with compare-and-set on the failure
// count, re-reading and re-applying on conflict.
func (d *Dispatcher) persist(ctx context.Context, sub model.Subscription, out model.DeliveryOutcome, at time.Time) error {
	for i := 0; i < persistAttempts; i++ {
		dec := d.Policy.Apply(sub, out, at)
		err := d.Store.UpdateFailureState(ctx, sub.ID, sub.FailureCount, dec.State())
		if err == nil {
			if dec.Disable && sub.IsActive {
				metrics.SubscriptionsDisabled.Inc()
				d.Logger.Warn("subscription auto-disabled", "subscription", sub.ID, "org", sub.OrganizationID, "failures", dec.FailureCount)
			}
			return nil
		}
		if !errors.Is(err, store.ErrConflict) {
			return err
		}
		sub, err = d.Store.GetByID(ctx, sub.ID)
		if err != nil {
			return fmt.Errorf("reload after conflict: %w", err)
		}
	}
	return fmt.Errorf("gave up after %d attempts: %w", persistAttempts, store.ErrConflict)
}

func statusCode(out model.DeliveryOutcome) int {
	if out.StatusCode == nil {
		return 0
	}
	return *out.StatusCode
}

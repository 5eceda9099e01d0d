package webhooks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"hookrelay/internal/buildinfo"
	"hookrelay/internal/metrics"
	"hookrelay/internal/model"
)

// Headers set on every outbound delivery.
const (
	HeaderSignature    = "X-Webhook-Signature"
	HeaderEvent        = "X-Webhook-Event"
	HeaderSubscription = "X-Webhook-Subscription-Id"
)

// DefaultTimeout bounds a single delivery attempt.
const DefaultTimeout = 10 * time.Second

const maxDrain = 64 << 10

// Request is one signed delivery to one subscriber.
type Request struct {
	URL            string
	SubscriptionID string
	EventType      string
	Signature      string
	Body           []byte
}

// Deliverer performs a single delivery attempt.
type Deliverer interface {
	Deliver(ctx context.Context, req Request) model.DeliveryOutcome
}

// Executor posts signed payloads over HTTP. It never retries.
type Executor struct {
	HTTP      *http.Client
	Timeout   time.Duration
	UserAgent string
}

func NewExecutor(timeout time.Duration) *Executor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Executor{HTTP: &http.Client{}, Timeout: timeout, UserAgent: buildinfo.UserAgent()}
}

func (e *Executor) Deliver(ctx context.Context, req Request) model.DeliveryOutcome {
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	hr, err := http.NewRequestWithContext(ctx, http.MethodPost, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return model.DeliveryOutcome{ErrorMessage: fmt.Sprintf("build request: %v", err)}
	}
	hr.Header.Set("Content-Type", "application/json")
	hr.Header.Set(HeaderSignature, req.Signature)
	hr.Header.Set(HeaderEvent, req.EventType)
	hr.Header.Set(HeaderSubscription, req.SubscriptionID)
	if e.UserAgent != "" {
		hr.Header.Set("User-Agent", e.UserAgent)
	}

	metrics.WebhookInFlight.Inc()
	defer metrics.WebhookInFlight.Dec()

	client := e.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(hr)
	out := model.DeliveryOutcome{}
	if err != nil {
		out.Duration = time.Since(start)
		if parent.Err() == nil && isTimeout(ctx, err) {
			out.ErrorMessage = fmt.Sprintf("timeout after %s", timeout)
		} else {
			out.ErrorMessage = err.Error()
		}
		return out
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrain))
	_ = resp.Body.Close()
	out.Duration = time.Since(start)
	code := resp.StatusCode
	out.StatusCode = &code
	if code >= 200 && code < 300 {
		out.Success = true
	} else {
		out.ErrorMessage = fmt.Sprintf("unexpected status %d", code)
	}
	return out
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

package store

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	nanoid "github.com/matoous/go-nanoid/v2"

	"hookrelay/internal/model"
)

// Store is the subscription persistence interface used by the delivery engine
// and the admin API.
type Store interface {
	// Engine
	FindActiveByOrgAndEvent(ctx context.Context, orgID, eventType string) ([]model.Subscription, error)
	GetByID(ctx context.Context, id string) (model.Subscription, error)
	// UpdateFailureState persists a policy decision only if the stored failure
	// count still equals expectedFailureCount; otherwise it returns ErrConflict.
	// IsActive is only ever cleared, never set.
	UpdateFailureState(ctx context.Context, id string, expectedFailureCount int, st FailureState) error

	// Owner operations
	CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error)
	ListSubscriptions(ctx context.Context, orgID, cursor string, limit int) ([]model.Subscription, string, error)
	DeleteSubscription(ctx context.Context, orgID, id string) error
	RotateSecret(ctx context.Context, orgID, id string) (model.Subscription, error)
	SetActive(ctx context.Context, orgID, id string, active bool) (model.Subscription, error)
}

// FailureState is the persisted part of a failure policy decision.
type FailureState struct {
	FailureCount    int
	Disable         bool
	LastTriggeredAt *time.Time
}

var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("failure state changed concurrently")
	ErrInvalidURL = errors.New("url must be an absolute http or https url")
	ErrNoEvents   = errors.New("at least one event type is required")
	// ErrInvalidCursor is returned for a list cursor that is not a subscription id.
	ErrInvalidCursor = errors.New("invalid cursor")
)

const secretAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewSecret returns a fresh signing secret.
func NewSecret() (string, error) {
	s, err := nanoid.Generate(secretAlphabet, 32)
	if err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return "whsec_" + s, nil
}

// ValidateRequest checks a create request and fills in a secret when missing.
func ValidateRequest(req *model.SubscriptionRequest) error {
	u, err := url.Parse(strings.TrimSpace(req.URL))
	if err != nil || !u.IsAbs() || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ErrInvalidURL
	}
	req.URL = u.String()
	if len(req.Events) == 0 {
		return ErrNoEvents
	}
	if req.Secret == "" {
		s, err := NewSecret()
		if err != nil {
			return err
		}
		req.Secret = s
	}
	return nil
}

package webhooks

import (
	"time"

	"hookrelay/internal/model"
	"hookrelay/internal/store"
)

// DefaultFailureThreshold is the consecutive-failure count that disables a subscription.
const DefaultFailureThreshold = 10

// Policy is the auto-disable circuit breaker. Apply has no side effects.
type Policy struct {
	Threshold int
}

// Decision is the next failure state for a subscription.
type Decision struct {
	FailureCount    int
	Disable         bool
	LastTriggeredAt *time.Time
}

// threshold never exceeds DefaultFailureThreshold, so ten consecutive
// failures always disable.
func (p Policy) threshold() int {
	if p.Threshold <= 0 || p.Threshold > DefaultFailureThreshold {
		return DefaultFailureThreshold
	}
	return p.Threshold
}

// Apply computes the state after outcome. Success resets the counter and stamps
// now; failure increments and disables at the threshold. It never re-enables.
func (p Policy) Apply(sub model.Subscription, out model.DeliveryOutcome, now time.Time) Decision {
	if out.Success {
		t := now.UTC()
		return Decision{FailureCount: 0, LastTriggeredAt: &t}
	}
	n := sub.FailureCount + 1
	return Decision{FailureCount: n, Disable: n >= p.threshold()}
}

func (d Decision) State() store.FailureState {
	return store.FailureState{FailureCount: d.FailureCount, Disable: d.Disable, LastTriggeredAt: d.LastTriggeredAt}
}

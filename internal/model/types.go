package model

import (
	"encoding/json"
	"time"
)

// Event types raised by the platform. Subscriptions match them by exact string.
const (
	EventMeetingCreated    = "meeting.created"
	EventMeetingUpdated    = "meeting.updated"
	EventMeetingDeleted    = "meeting.deleted"
	EventTranscriptCreated = "transcript.created"
	EventSummaryCreated    = "summary.created"
	EventWebhookTest       = "webhook.test"
)

// KnownEvents lists the event types a subscription may ask for.
var KnownEvents = []string{
	EventMeetingCreated,
	EventMeetingUpdated,
	EventMeetingDeleted,
	EventTranscriptCreated,
	EventSummaryCreated,
	EventWebhookTest,
}

type SubscriptionRequest struct {
	OrganizationID string   `json:"organizationId"`
	URL            string   `json:"url"`
	Events         []string `json:"events"`
	Secret         string   `json:"secret,omitempty"`
}

// Subscription is a configured webhook endpoint plus its health state.
type Subscription struct {
	ID              string     `json:"id"`
	OrganizationID  string     `json:"organizationId"`
	URL             string     `json:"url"`
	Secret          string     `json:"secret,omitempty"`
	Events          []string   `json:"events"`
	IsActive        bool       `json:"isActive"`
	FailureCount    int        `json:"failureCount"`
	LastTriggeredAt *time.Time `json:"lastTriggeredAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// Wants reports whether the subscription lists eventType.
func (s Subscription) Wants(eventType string) bool {
	for _, e := range s.Events {
		if e == eventType {
			return true
		}
	}
	return false
}

// Redacted returns a copy without the signing secret, for read APIs.
func (s Subscription) Redacted() Subscription {
	s.Secret = ""
	return s
}

// DeliveryOutcome is the result of one HTTP attempt to one subscriber.
type DeliveryOutcome struct {
	Success      bool          `json:"success"`
	StatusCode   *int          `json:"statusCode,omitempty"`
	ErrorMessage string        `json:"errorMessage,omitempty"`
	Duration     time.Duration `json:"-"`
}

// DeliveryRecord is one entry of a subscription's recent delivery history.
type DeliveryRecord struct {
	SubscriptionID string    `json:"subscriptionId"`
	EventType      string    `json:"eventType"`
	Timestamp      time.Time `json:"timestamp"`
	Success        bool      `json:"success"`
	StatusCode     *int      `json:"statusCode,omitempty"`
	ErrorMessage   string    `json:"errorMessage,omitempty"`
	DurationMs     int64     `json:"durationMs"`
}

// NewDeliveryRecord builds the history entry for an attempt that finished at ts.
func NewDeliveryRecord(subscriptionID, eventType string, ts time.Time, out DeliveryOutcome) DeliveryRecord {
	return DeliveryRecord{
		SubscriptionID: subscriptionID,
		EventType:      eventType,
		Timestamp:      ts.UTC(),
		Success:        out.Success,
		StatusCode:     out.StatusCode,
		ErrorMessage:   out.ErrorMessage,
		DurationMs:     out.Duration.Milliseconds(),
	}
}

// Envelope is the JSON body posted to subscribers.
type Envelope struct {
	Event     string          `json:"event"`
	Timestamp string          `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// EventMessage is the inbound shape of an event raised over HTTP or the bus.
type EventMessage struct {
	OrganizationID string          `json:"organizationId"`
	EventType      string          `json:"eventType"`
	Data           json.RawMessage `json:"data"`
}

package webhooks

import (
	"context"
	"encoding/json"
	"fmt"

	"hookrelay/internal/model"
)

// TestPayload is the fixed data sent by TestDeliver.
type TestPayload struct {
	Message        string `json:"message"`
	SubscriptionID string `json:"subscriptionId"`
}

// TestDeliver sends a synthetic webhook.test event to one subscription and
// returns the outcome. It runs even for inactive subscriptions, and the result
// goes through the failure policy like any other delivery, so repeated failed
// tests can disable a subscription.
func (d *Dispatcher) TestDeliver(ctx context.Context, subscriptionID string) (model.DeliveryOutcome, error) {
	sub, err := d.Store.GetByID(ctx, subscriptionID)
	if err != nil {
		return model.DeliveryOutcome{}, fmt.Errorf("load subscription %s: %w", subscriptionID, err)
	}
	payload, err := json.Marshal(TestPayload{Message: "This is a test webhook delivery", SubscriptionID: sub.ID})
	if err != nil {
		return model.DeliveryOutcome{}, err
	}
	return d.deliver(ctx, sub, model.EventWebhookTest, payload), nil
}

package stripe

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	stripego "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// DefaultTolerance is the maximum age of a signed webhook.
const DefaultTolerance = 5 * time.Minute

// Event types the marketplace acts on.
const (
	EventPaymentSucceeded = string(stripego.EventTypePaymentIntentSucceeded)
	EventPaymentFailed    = string(stripego.EventTypePaymentIntentPaymentFailed)
)

var (
	ErrMissingSignature = webhook.ErrNotSigned
	ErrInvalidSignature = webhook.ErrNoValidSignature
	ErrStaleSignature   = webhook.ErrTooOld
)

// Event is a verified webhook notification.
type Event struct {
	ID      string
	Type    string
	Created int64
	Object  json.RawMessage
}

// PaymentIntent decodes the event object as a payment intent.
func (e Event) PaymentIntent() (*PaymentIntent, error) {
	var pi stripego.PaymentIntent
	if err := json.Unmarshal(e.Object, &pi); err != nil {
		return nil, fmt.Errorf("failed to decode payment intent: %w", err)
	}
	if pi.ID == "" {
		return nil, errors.New("event object has no id")
	}
	return fromAPI(&pi), nil
}

// ConstructEvent verifies the Stripe-Signature header against the raw payload and
// decodes the event. Events pinned to another API version are still accepted.
func (c *Client) ConstructEvent(payload []byte, header string) (*Event, error) {
	if c.webhookSecret == "" {
		return nil, ErrNotConfigured
	}

	evt, err := webhook.ConstructEventWithOptions(payload, header, c.webhookSecret, webhook.ConstructEventOptions{
		Tolerance:                DefaultTolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, err
	}

	event := &Event{ID: evt.ID, Type: string(evt.Type), Created: evt.Created}
	if evt.Data != nil {
		event.Object = evt.Data.Raw
	}
	return event, nil
}

// SignatureHeader builds a header value as the gateway would send it.
func SignatureHeader(payload []byte, secret string, timestamp int64) string {
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Unix(timestamp, 0),
	})
	return signed.Header
}

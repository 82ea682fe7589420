package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripego "github.com/stripe/stripe-go/v82"
)

func TestCreatePaymentIntent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/payment_intents", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))

		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "999", r.PostForm.Get("amount"))
		assert.Equal(t, "inr", r.PostForm.Get("currency"))
		assert.Equal(t, "c-1", r.PostForm.Get("metadata[courseId]"))
		assert.Equal(t, "true", r.PostForm.Get("automatic_payment_methods[enabled]"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":            "pi_123",
			"object":        "payment_intent",
			"amount":        999,
			"currency":      "inr",
			"client_secret": "pi_123_secret",
			"status":        "requires_payment_method",
		})
	}))
	defer server.Close()

	client := NewClient("sk_test", "whsec", server.URL, nil)
	intent, err := client.CreatePaymentIntent(context.Background(), 999, "INR", map[string]string{"courseId": "c-1"})
	require.NoError(t, err)
	assert.Equal(t, "pi_123", intent.ID)
	assert.Equal(t, int64(999), intent.Amount)
	assert.Equal(t, "pi_123_secret", intent.ClientSecret)
	assert.Equal(t, StatusPending, intent.Status())
}

func TestGetPaymentIntentErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","code":"resource_missing","message":"No such payment_intent"}}`))
	}))
	defer server.Close()

	client := NewClient("sk_test", "", server.URL, nil)
	_, err := client.GetPaymentIntent(context.Background(), "pi_missing")

	var apiErr *stripego.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.HTTPStatusCode)
	assert.Equal(t, stripego.ErrorCodeResourceMissing, apiErr.Code)

	_, err = NewClient("", "", server.URL, nil).GetPaymentIntent(context.Background(), "pi_1")
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.ErrorIs(t, NewClient("", "", server.URL, nil).CancelPaymentIntent(context.Background(), "pi_1"), ErrNotConfigured)
}

func TestIntentStatus(t *testing.T) {
	assert.Equal(t, StatusSucceeded, PaymentIntent{RawStatus: "succeeded"}.Status())
	assert.Equal(t, StatusPending, PaymentIntent{RawStatus: "processing"}.Status())
	assert.Equal(t, StatusPending, PaymentIntent{RawStatus: "requires_action"}.Status())
	assert.Equal(t, StatusFailed, PaymentIntent{RawStatus: "canceled"}.Status())

	declined := PaymentIntent{RawStatus: "requires_payment_method", LastError: &PaymentError{Message: "card declined"}}
	assert.Equal(t, StatusFailed, declined.Status())
	assert.Equal(t, "card declined", declined.FailureMessage())
}

func TestConstructEvent(t *testing.T) {
	payload := []byte(`{"id":"evt_1","object":"event","type":"payment_intent.succeeded","data":{"object":{"id":"pi_123","object":"payment_intent","status":"succeeded","last_payment_error":null}}}`)
	client := NewClient("", "whsec", "", nil)
	now := time.Now()

	event, err := client.ConstructEvent(payload, SignatureHeader(payload, "whsec", now.Unix()))
	require.NoError(t, err)
	assert.Equal(t, "evt_1", event.ID)
	assert.Equal(t, EventPaymentSucceeded, event.Type)

	intent, err := event.PaymentIntent()
	require.NoError(t, err)
	assert.Equal(t, "pi_123", intent.ID)
	assert.Equal(t, StatusSucceeded, intent.Status())

	_, err = client.ConstructEvent(payload, SignatureHeader(payload, "other", now.Unix()))
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = client.ConstructEvent([]byte(`{"id":"evt_2"}`), SignatureHeader(payload, "whsec", now.Unix()))
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = client.ConstructEvent(payload, SignatureHeader(payload, "whsec", now.Add(-6*time.Minute).Unix()))
	assert.ErrorIs(t, err, ErrStaleSignature)

	_, err = client.ConstructEvent(payload, "")
	assert.ErrorIs(t, err, ErrMissingSignature)

	_, err = NewClient("", "", "", nil).ConstructEvent(payload, "t=1,v1=abc")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestPaymentIntentFromEventWithoutID(t *testing.T) {
	event := Event{Object: json.RawMessage(`{"status":"succeeded"}`)}
	_, err := event.PaymentIntent()
	assert.Error(t, err)
}

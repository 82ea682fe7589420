// Package stripe adapts the card gateway SDK to the payment intent operations the
// marketplace settles against.
package stripe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	stripego "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
)

// IntentStatus is the normalised state of a payment intent.
type IntentStatus string

const (
	StatusSucceeded IntentStatus = "succeeded"
	StatusPending   IntentStatus = "pending"
	StatusFailed    IntentStatus = "failed"
)

// ErrNotConfigured is returned when no secret key is set.
var ErrNotConfigured = errors.New("payment gateway is not configured")

// PaymentIntent is the subset of the gateway intent the marketplace uses.
type PaymentIntent struct {
	ID           string
	Amount       int64
	Currency     string
	ClientSecret string
	RawStatus    string
	Metadata     map[string]string
	LastError    *PaymentError
}

// PaymentError describes why the last charge attempt failed.
type PaymentError struct {
	Code    string
	Message string
}

// Status maps the gateway's many intent states onto succeeded, pending or failed.
func (p PaymentIntent) Status() IntentStatus {
	switch stripego.PaymentIntentStatus(p.RawStatus) {
	case stripego.PaymentIntentStatusSucceeded:
		return StatusSucceeded
	case stripego.PaymentIntentStatusCanceled:
		return StatusFailed
	case stripego.PaymentIntentStatusRequiresPaymentMethod:
		if p.LastError != nil {
			return StatusFailed
		}
		return StatusPending
	default:
		return StatusPending
	}
}

// FailureMessage returns the gateway's last payment error, if any.
func (p PaymentIntent) FailureMessage() string {
	if p.LastError == nil {
		return ""
	}
	return p.LastError.Message
}

func fromAPI(pi *stripego.PaymentIntent) *PaymentIntent {
	intent := &PaymentIntent{
		ID:           pi.ID,
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
		ClientSecret: pi.ClientSecret,
		RawStatus:    string(pi.Status),
		Metadata:     pi.Metadata,
	}
	if pi.LastPaymentError != nil {
		intent.LastError = &PaymentError{
			Code:    string(pi.LastPaymentError.Code),
			Message: pi.LastPaymentError.Msg,
		}
	}
	return intent
}

// Client wraps the SDK's payment intent client and webhook verification.
type Client struct {
	secretKey     string
	webhookSecret string
	intents       *paymentintent.Client
}

// NewClient creates a gateway client. An empty baseURL keeps the SDK's API host.
func NewClient(secretKey, webhookSecret, baseURL string, logger *slog.Logger) *Client {
	config := &stripego.BackendConfig{
		HTTPClient:        &http.Client{Timeout: 30 * time.Second},
		MaxNetworkRetries: stripego.Int64(2),
	}
	if baseURL != "" {
		config.URL = stripego.String(strings.TrimRight(baseURL, "/"))
	}
	if logger != nil {
		config.LeveledLogger = leveledLogger{logger: logger.With("component", "stripe")}
	}

	return &Client{
		secretKey:     secretKey,
		webhookSecret: webhookSecret,
		intents: &paymentintent.Client{
			B:   stripego.GetBackendWithConfig(stripego.APIBackend, config),
			Key: secretKey,
		},
	}
}

// CreatePaymentIntent opens an intent for amountMinor in the given currency.
func (c *Client) CreatePaymentIntent(ctx context.Context, amountMinor int64, currency string, metadata map[string]string) (*PaymentIntent, error) {
	if c.secretKey == "" {
		return nil, ErrNotConfigured
	}

	params := &stripego.PaymentIntentParams{
		Amount:   stripego.Int64(amountMinor),
		Currency: stripego.String(strings.ToLower(currency)),
		AutomaticPaymentMethods: &stripego.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripego.Bool(true),
		},
	}
	params.Context = ctx
	for key, value := range metadata {
		params.AddMetadata(key, value)
	}

	pi, err := c.intents.New(params)
	if err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}
	return fromAPI(pi), nil
}

// GetPaymentIntent fetches the current state of an intent.
func (c *Client) GetPaymentIntent(ctx context.Context, intentID string) (*PaymentIntent, error) {
	if c.secretKey == "" {
		return nil, ErrNotConfigured
	}

	params := &stripego.PaymentIntentParams{}
	params.Context = ctx

	pi, err := c.intents.Get(intentID, params)
	if err != nil {
		return nil, fmt.Errorf("get payment intent %s: %w", intentID, err)
	}
	return fromAPI(pi), nil
}

// CancelPaymentIntent cancels an intent that has not succeeded.
func (c *Client) CancelPaymentIntent(ctx context.Context, intentID string) error {
	if c.secretKey == "" {
		return ErrNotConfigured
	}

	params := &stripego.PaymentIntentCancelParams{}
	params.Context = ctx

	if _, err := c.intents.Cancel(intentID, params); err != nil {
		return fmt.Errorf("cancel payment intent %s: %w", intentID, err)
	}
	return nil
}

// leveledLogger routes SDK logs through slog.
type leveledLogger struct {
	logger *slog.Logger
}

func (l leveledLogger) Debugf(format string, v ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, v...))
}

func (l leveledLogger) Infof(format string, v ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, v...))
}

func (l leveledLogger) Warnf(format string, v ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, v...))
}

func (l leveledLogger) Errorf(format string, v ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, v...))
}

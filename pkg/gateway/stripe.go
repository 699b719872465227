package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/client"
	"github.com/stripe/stripe-go/v75/webhook"
)

// Config holds the Stripe client settings
type Config struct {
	SecretKey     string
	WebhookSecret string
	// APIVersion pinned on ephemeral keys; must match the mobile SDK. Defaults
	// to the version this library was built against.
	APIVersion string
	// Tolerance bounds the age of a webhook signature timestamp
	Tolerance time.Duration
	// BackendURL overrides the API endpoint (tests, stripe-mock)
	BackendURL string
}

// StripeGateway implements Gateway and WebhookVerifier on the Stripe API
type StripeGateway struct {
	api           *client.API
	webhookSecret string
	apiVersion    string
	tolerance     time.Duration
	logger        *logrus.Logger
}

// NewStripeGateway creates a Stripe client. It does not touch the global stripe.Key.
func NewStripeGateway(cfg Config, logger *logrus.Logger) *StripeGateway {
	var backends *stripe.Backends
	if cfg.BackendURL != "" {
		backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
			URL:               stripe.String(cfg.BackendURL),
			MaxNetworkRetries: stripe.Int64(0),
			LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
		})
		backends = &stripe.Backends{API: backend, Connect: backend, Uploads: backend}
	}

	apiVersion := cfg.APIVersion
	if apiVersion == "" {
		apiVersion = stripe.APIVersion
	}
	tolerance := cfg.Tolerance
	if tolerance <= 0 {
		tolerance = webhook.DefaultTolerance
	}

	return &StripeGateway{
		api:           client.New(cfg.SecretKey, backends),
		webhookSecret: cfg.WebhookSecret,
		apiVersion:    apiVersion,
		tolerance:     tolerance,
		logger:        logger,
	}
}

// CreateChargeHandle creates a PaymentIntent carrying req.Metadata
func (g *StripeGateway) CreateChargeHandle(ctx context.Context, req ChargeRequest) (*ChargeHandle, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.Amount),
		Currency: stripe.String(req.Currency),
		Customer: stripe.String(req.CustomerID),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		g.logStripeError(err, "create payment intent")
		return nil, fmt.Errorf("%w: create payment intent: %v", ErrUnavailable, err)
	}
	if pi.ClientSecret == "" {
		return nil, fmt.Errorf("%w: payment intent %s has no client secret", ErrUnavailable, pi.ID)
	}

	return &ChargeHandle{IntentID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

// CreateClientCredential issues an ephemeral key scoped to customerID
func (g *StripeGateway) CreateClientCredential(ctx context.Context, customerID string) (string, error) {
	params := &stripe.EphemeralKeyParams{
		Customer:      stripe.String(customerID),
		StripeVersion: stripe.String(g.apiVersion),
	}
	params.Context = ctx

	key, err := g.api.EphemeralKeys.New(params)
	if err != nil {
		g.logStripeError(err, "create ephemeral key")
		return "", fmt.Errorf("%w: create ephemeral key: %v", ErrUnavailable, err)
	}
	return key.Secret, nil
}

// stripeObject is the part of a charge or payment intent the webhook needs
type stripeObject struct {
	ID            string            `json:"id"`
	Metadata      map[string]string `json:"metadata"`
	PaymentIntent json.RawMessage   `json:"payment_intent"`
}

// VerifyEvent checks the Stripe-Signature header against the raw payload
// before anything is decoded
func (g *StripeGateway) VerifyEvent(payload []byte, signatureHeader string) (*Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, g.webhookSecret, webhook.ConstructEventOptions{
		Tolerance:                g.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	out := &Event{
		ID:   event.ID,
		Type: string(event.Type),
		Raw:  payload,
	}
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return out, nil
	}

	var obj stripeObject
	if err := json.Unmarshal(event.Data.Raw, &obj); err != nil {
		// Signed but not an object we understand; the caller decides what to do
		// with an event that carries no metadata.
		return out, nil
	}
	out.ObjectID = obj.ID
	out.Metadata = obj.Metadata
	out.PaymentIntentID = expandableID(obj.PaymentIntent)

	return out, nil
}

// expandableID reads a field that is either an id string or an expanded object
func expandableID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return id
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.ID
	}
	return ""
}

func (g *StripeGateway) logStripeError(err error, op string) {
	fields := logrus.Fields{"operation": op}
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		fields["stripe_code"] = stripeErr.Code
		fields["stripe_type"] = stripeErr.Type
		fields["http_status"] = stripeErr.HTTPStatusCode
		fields["request_id"] = stripeErr.RequestID
	}
	g.logger.WithError(err).WithFields(fields).Error("Stripe request failed")
}

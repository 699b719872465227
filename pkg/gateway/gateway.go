// Package gateway wraps the card payment provider: charge handle creation,
// client credentials for the mobile payment sheet, and webhook verification.
package gateway

import (
	"context"
	"errors"
)

var (
	// ErrUnavailable is returned when the provider could not serve a request.
	// Callers may retry.
	ErrUnavailable = errors.New("payment gateway unavailable")

	// ErrInvalidSignature is returned when a webhook body does not match its
	// signature header, or the header is missing, malformed or too old.
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// ChargeRequest describes a charge the client will confirm directly with the provider
type ChargeRequest struct {
	Amount     int64 // minor units
	Currency   string
	CustomerID string
	Metadata   map[string]string
}

// ChargeHandle is the provider-side object the client confirms
type ChargeHandle struct {
	IntentID     string
	ClientSecret string
}

// Event is a verified webhook delivery
type Event struct {
	ID       string
	Type     string
	ObjectID string
	// PaymentIntentID is set for charge objects created from a payment intent
	PaymentIntentID string
	Metadata        map[string]string
	Raw             []byte
}

// Gateway creates charge handles and client credentials
type Gateway interface {
	CreateChargeHandle(ctx context.Context, req ChargeRequest) (*ChargeHandle, error)
	CreateClientCredential(ctx context.Context, customerID string) (string, error)
}

// WebhookVerifier authenticates raw webhook deliveries
type WebhookVerifier interface {
	VerifyEvent(payload []byte, signatureHeader string) (*Event, error)
}

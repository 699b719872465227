package models

import (
	"strings"

	"github.com/google/uuid"
)

// Gateway event types that drive reconciliation
const (
	EventChargeSucceeded        = "charge.succeeded"
	EventChargeCanceled         = "charge.canceled"
	EventPaymentIntentSucceeded = "payment_intent.succeeded"
	EventPaymentIntentCanceled  = "payment_intent.canceled"
)

// ReconciliationOutcome is the transition a gateway event requests
type ReconciliationOutcome string

const (
	OutcomeSuccess ReconciliationOutcome = "success"
	OutcomeCancel  ReconciliationOutcome = "cancel"
	OutcomeIgnore  ReconciliationOutcome = "ignore"
)

// GatewayEvent is a verified webhook delivery. It is never persisted as such.
type GatewayEvent struct {
	ID       string
	Type     string
	ObjectID string
	// PaymentIntentID is the intent behind a charge object; empty for intent events
	PaymentIntentID string
	Metadata        map[string]string
	Raw             []byte
}

// IntentID returns the payment intent the event concerns, if any
func (e *GatewayEvent) IntentID() string {
	if e.PaymentIntentID != "" {
		return e.PaymentIntentID
	}
	if strings.HasPrefix(e.Type, "payment_intent.") {
		return e.ObjectID
	}
	return ""
}

// Outcome classifies the event by type
func (e *GatewayEvent) Outcome() ReconciliationOutcome {
	switch e.Type {
	case EventChargeSucceeded, EventPaymentIntentSucceeded:
		return OutcomeSuccess
	case EventChargeCanceled, EventPaymentIntentCanceled:
		return OutcomeCancel
	default:
		return OutcomeIgnore
	}
}

// ReconciliationResult reports what a transition did
type ReconciliationResult struct {
	Outcome ReconciliationOutcome
	// Applied is false when the charge was no longer pending (duplicate or late delivery)
	Applied        bool
	Booking        BookingReference
	SessionID      *uuid.UUID
	NotificationID *uuid.UUID
}

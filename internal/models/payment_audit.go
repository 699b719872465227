package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentEventType represents the type of payment event
type PaymentEventType string

const (
	PaymentEventInitiated            PaymentEventType = "payment_initiated"
	PaymentEventInitiationFailed     PaymentEventType = "payment_initiation_failed"
	PaymentEventWebhookReceived      PaymentEventType = "webhook_received"
	PaymentEventWebhookRejected      PaymentEventType = "webhook_rejected"
	PaymentEventSuccess              PaymentEventType = "payment_success"
	PaymentEventCancelled            PaymentEventType = "payment_cancelled"
	PaymentEventBookingConfirmed     PaymentEventType = "booking_confirmed"
	PaymentEventBookingConfirmFailed PaymentEventType = "booking_confirmation_failed"
	PaymentEventError                PaymentEventType = "error"
)

// PaymentEventSource identifies where the event originated
type PaymentEventSource string

const (
	PaymentSourceBackend       PaymentEventSource = "backend"
	PaymentSourceStripeWebhook PaymentEventSource = "stripe_webhook"
	PaymentSourceStripeAPI     PaymentEventSource = "stripe_api"
	PaymentSourceUser          PaymentEventSource = "user"
)

// PaymentAudit is an append-only audit entry. It is written outside the
// reconciliation transaction and never affects its outcome.
type PaymentAudit struct {
	ID       uuid.UUID  `json:"id" db:"id"`
	ChargeID *uuid.UUID `json:"charge_id,omitempty" db:"charge_id"`

	// Booking the event concerns, if known
	BookingKind *string    `json:"booking_kind,omitempty" db:"booking_kind"`
	BookingID   *uuid.UUID `json:"booking_id,omitempty" db:"booking_id"`

	// Gateway identifiers, used for idempotency tracing only
	GatewayObjectID *string `json:"gateway_object_id,omitempty" db:"gateway_object_id"`
	GatewayIntentID *string `json:"gateway_intent_id,omitempty" db:"gateway_intent_id"`
	GatewayEventID  *string `json:"gateway_event_id,omitempty" db:"gateway_event_id"`

	EventType   PaymentEventType   `json:"event_type" db:"event_type"`
	EventSource PaymentEventSource `json:"event_source" db:"event_source"`

	Amount        *int64  `json:"amount,omitempty" db:"amount"`
	Currency      *string `json:"currency,omitempty" db:"currency"`
	PaymentStatus *string `json:"payment_status,omitempty" db:"payment_status"`

	RawBody      *string `json:"raw_body,omitempty" db:"raw_body"`
	ErrorMessage *string `json:"error_message,omitempty" db:"error_message"`

	ProcessingTimeMs *int `json:"processing_time_ms,omitempty" db:"processing_time_ms"`
	IsDuplicate      bool `json:"is_duplicate" db:"is_duplicate"`

	// Client details
	IPAddress  *string `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent  *string `json:"user_agent,omitempty" db:"user_agent"`
	DeviceType *string `json:"device_type,omitempty" db:"device_type"`
	Platform   *string `json:"platform,omitempty" db:"platform"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// NewPaymentAudit creates a new payment audit entry with required fields
func NewPaymentAudit(eventType PaymentEventType, source PaymentEventSource) *PaymentAudit {
	return &PaymentAudit{
		ID:          uuid.New(),
		EventType:   eventType,
		EventSource: source,
		CreatedAt:   time.Now().UTC(),
	}
}

// SetCharge records the charge id and amount
func (pa *PaymentAudit) SetCharge(charge *PendingCharge) *PaymentAudit {
	if charge == nil {
		return pa
	}
	id := charge.ID
	amount := charge.TotalAmount
	currency := charge.Currency
	status := string(charge.Status)
	pa.ChargeID = &id
	pa.Amount = &amount
	pa.Currency = &currency
	pa.PaymentStatus = &status
	return pa.SetBooking(charge.BookingReference())
}

// SetBooking records the booking reference
func (pa *PaymentAudit) SetBooking(ref BookingReference) *PaymentAudit {
	if !ref.Valid() {
		return pa
	}
	kind := string(ref.Kind)
	id := ref.ID
	pa.BookingKind = &kind
	pa.BookingID = &id
	return pa
}

// SetGatewayEvent records gateway ids of a webhook delivery
func (pa *PaymentAudit) SetGatewayEvent(event *GatewayEvent) *PaymentAudit {
	if event == nil {
		return pa
	}
	if event.ID != "" {
		id := event.ID
		pa.GatewayEventID = &id
	}
	if event.ObjectID != "" {
		obj := event.ObjectID
		pa.GatewayObjectID = &obj
	}
	return pa.SetGatewayIntent(event.IntentID())
}

// SetGatewayIntent records the payment intent id, which links an initiation
// to the webhook deliveries that settle it
func (pa *PaymentAudit) SetGatewayIntent(intentID string) *PaymentAudit {
	if intentID != "" {
		pa.GatewayIntentID = &intentID
	}
	return pa
}

// SetPaymentStatus sets the payment status
func (pa *PaymentAudit) SetPaymentStatus(status string) *PaymentAudit {
	pa.PaymentStatus = &status
	return pa
}

// SetError sets error information
func (pa *PaymentAudit) SetError(err error) *PaymentAudit {
	if err != nil {
		msg := err.Error()
		pa.ErrorMessage = &msg
	}
	return pa
}

// SetRawBody stores the raw webhook body
func (pa *PaymentAudit) SetRawBody(body []byte) *PaymentAudit {
	if len(body) > 0 {
		s := string(body)
		pa.RawBody = &s
	}
	return pa
}

// SetClient records ip, user agent and parsed device info
func (pa *PaymentAudit) SetClient(meta RequestMeta, deviceType, platform string) *PaymentAudit {
	if meta.IPAddress != "" {
		pa.IPAddress = &meta.IPAddress
	}
	if meta.UserAgent != "" {
		pa.UserAgent = &meta.UserAgent
	}
	if deviceType != "" {
		pa.DeviceType = &deviceType
	}
	if platform != "" {
		pa.Platform = &platform
	}
	return pa
}

// SetProcessingTime sets elapsed milliseconds since startTime
func (pa *PaymentAudit) SetProcessingTime(startTime time.Time) *PaymentAudit {
	durationMs := int(time.Since(startTime).Milliseconds())
	pa.ProcessingTimeMs = &durationMs
	return pa
}

// MarkAsDuplicate marks this event as a duplicate delivery
func (pa *PaymentAudit) MarkAsDuplicate() *PaymentAudit {
	pa.IsDuplicate = true
	return pa
}

package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ChargeStatus is the lifecycle state of a pending charge
type ChargeStatus string

const (
	ChargeStatusPending  ChargeStatus = "pending"
	ChargeStatusSuccess  ChargeStatus = "success"
	ChargeStatusCanceled ChargeStatus = "canceled"
	// ChargeStatusNone is reported when a booking has no charge row (never
	// initiated, or canceled and removed).
	ChargeStatusNone ChargeStatus = "none"
)

// PendingCharge is the payment ledger row of one tentative booking.
// Exactly one of TrainerBookingID and FacilityBookingID is set.
type PendingCharge struct {
	ID                   uuid.UUID    `json:"id" db:"id"`
	TrainerBookingID     *uuid.UUID   `json:"trainer_booking_id,omitempty" db:"trainer_booking_id"`
	FacilityBookingID    *uuid.UUID   `json:"facility_booking_id,omitempty" db:"facility_booking_id"`
	TotalAmount          int64        `json:"total_amount" db:"total_amount"`
	Currency             string       `json:"currency" db:"currency"`
	Status               ChargeStatus `json:"status" db:"status"`
	GatewayIntentID      *string      `json:"gateway_intent_id,omitempty" db:"gateway_intent_id"`
	GatewayTransactionID *string      `json:"gateway_transaction_id,omitempty" db:"gateway_transaction_id"`
	CreatedAt            time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time    `json:"updated_at" db:"updated_at"`
}

// NewPendingCharge creates a pending charge for ref
func NewPendingCharge(ref BookingReference, amount int64, currency string) *PendingCharge {
	c := &PendingCharge{
		ID:          uuid.New(),
		TotalAmount: amount,
		Currency:    currency,
		Status:      ChargeStatusPending,
	}
	id := ref.ID
	if ref.IsTrainer() {
		c.TrainerBookingID = &id
	} else {
		c.FacilityBookingID = &id
	}
	return c
}

// BookingReference returns the booking the charge belongs to
func (c *PendingCharge) BookingReference() BookingReference {
	if c.TrainerBookingID != nil {
		return BookingReference{Kind: BookingKindTrainer, ID: *c.TrainerBookingID}
	}
	if c.FacilityBookingID != nil {
		return BookingReference{Kind: BookingKindFacility, ID: *c.FacilityBookingID}
	}
	return BookingReference{}
}

// IsPending reports whether the charge can still be reconciled
func (c *PendingCharge) IsPending() bool {
	return c.Status == ChargeStatusPending
}

// ============================================================================
// REQUEST/RESPONSE DTOs
// ============================================================================

// InitiatePaymentRequest is the body of POST /payments/intent
type InitiatePaymentRequest struct {
	Currency          string     `json:"currency"`
	CustomerID        string     `json:"customer_id"`
	TrainerBookingID  *uuid.UUID `json:"trainer_booking_id,omitempty"`
	FacilityBookingID *uuid.UUID `json:"facility_booking_id,omitempty"`
}

// Validate checks the request and returns the normalized booking reference
func (r *InitiatePaymentRequest) Validate() (BookingReference, error) {
	ref, err := NewBookingReference(r.TrainerBookingID, r.FacilityBookingID)
	if err != nil {
		return BookingReference{}, err
	}

	r.Currency = strings.ToLower(strings.TrimSpace(r.Currency))
	if len(r.Currency) != 3 || !isASCIILetters(r.Currency) {
		return BookingReference{}, NewValidationError("currency", "must be a 3-letter ISO 4217 code")
	}

	r.CustomerID = strings.TrimSpace(r.CustomerID)
	if r.CustomerID == "" {
		return BookingReference{}, NewValidationError("customer_id", "is required")
	}

	return ref, nil
}

// InitiatePaymentResponse is returned to the mobile client to present the payment sheet
type InitiatePaymentResponse struct {
	ClientSecret     string `json:"client_secret"`
	ClientCredential string `json:"client_credential"`
	CustomerID       string `json:"customer_id"`
	ChargeID         string `json:"charge_id"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
}

// ChargeStatusResponse is returned by the status polling endpoint
type ChargeStatusResponse struct {
	Booking  BookingReference `json:"booking"`
	Status   ChargeStatus     `json:"status"`
	ChargeID *uuid.UUID       `json:"charge_id,omitempty"`
	Amount   *int64           `json:"amount,omitempty"`
	Currency *string          `json:"currency,omitempty"`
}

// RequestMeta carries client details recorded on payment audits
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

func isASCIILetters(s string) bool {
	for _, r := range s {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}

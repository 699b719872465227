package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BookingKind discriminates the two tentative booking tables
type BookingKind string

const (
	BookingKindTrainer  BookingKind = "trainer"
	BookingKindFacility BookingKind = "facility"
)

// BookingReference identifies exactly one tentative booking: a trainer session
// booking or a facility-only booking.
type BookingReference struct {
	Kind BookingKind `json:"kind"`
	ID   uuid.UUID   `json:"id"`
}

// NewBookingReference builds a reference from the two optional ids of a request.
// Exactly one of them must be set.
func NewBookingReference(trainerBookingID, facilityBookingID *uuid.UUID) (BookingReference, error) {
	switch {
	case trainerBookingID != nil && facilityBookingID != nil:
		return BookingReference{}, NewValidationError("booking", "provide either trainer_booking_id or facility_booking_id, not both")
	case trainerBookingID == nil && facilityBookingID == nil:
		return BookingReference{}, NewValidationError("booking", "trainer_booking_id or facility_booking_id is required")
	case trainerBookingID != nil:
		if *trainerBookingID == uuid.Nil {
			return BookingReference{}, NewValidationError("trainer_booking_id", "must not be empty")
		}
		return BookingReference{Kind: BookingKindTrainer, ID: *trainerBookingID}, nil
	default:
		if *facilityBookingID == uuid.Nil {
			return BookingReference{}, NewValidationError("facility_booking_id", "must not be empty")
		}
		return BookingReference{Kind: BookingKindFacility, ID: *facilityBookingID}, nil
	}
}

// IsTrainer reports whether the booking includes a trainer
func (r BookingReference) IsTrainer() bool {
	return r.Kind == BookingKindTrainer
}

// Valid reports whether r names a known booking table and a non-nil id
func (r BookingReference) Valid() bool {
	return (r.Kind == BookingKindTrainer || r.Kind == BookingKindFacility) && r.ID != uuid.Nil
}

// Table returns the booking table r points into
func (r BookingReference) Table() string {
	if r.IsTrainer() {
		return "trainer_bookings"
	}
	return "facility_bookings"
}

// ChargeColumn returns the pending_charges column holding r
func (r BookingReference) ChargeColumn() string {
	if r.IsTrainer() {
		return "trainer_booking_id"
	}
	return "facility_booking_id"
}

func (r BookingReference) String() string {
	return string(r.Kind) + ":" + r.ID.String()
}

// BookingSnapshot is the price quote of a tentative booking at the time of lookup
type BookingSnapshot struct {
	UserID        uuid.UUID           `json:"user_id" db:"user_id"`
	FacilityID    uuid.UUID           `json:"facility_id" db:"facility_id"`
	TrainerID     *uuid.UUID          `json:"trainer_id,omitempty" db:"trainer_id"`
	FacilityPrice decimal.Decimal     `json:"facility_price" db:"facility_price"`
	TrainerPrice  decimal.NullDecimal `json:"trainer_price" db:"trainer_price"`
}

// Total returns facility price plus trainer price (zero when there is no trainer)
func (s *BookingSnapshot) Total() decimal.Decimal {
	total := s.FacilityPrice
	if s.TrainerPrice.Valid {
		total = total.Add(s.TrainerPrice.Decimal)
	}
	return total
}

// BookingSessionDetails holds what a confirmed session is built from
type BookingSessionDetails struct {
	UserID       uuid.UUID `db:"user_id"`
	FacilityID   uuid.UUID `db:"facility_id"`
	StartTime    time.Time `db:"start_time"`
	EndTime      time.Time `db:"end_time"`
	RenterName   string    `db:"renter_name"`
	FacilityName string    `db:"facility_name"`
}

// SessionName composes the display name of the confirmed session
func (d *BookingSessionDetails) SessionName() string {
	return d.RenterName + "'s session at " + d.FacilityName
}

// ToMinorUnits converts a decimal amount into integer minor units (cents)
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

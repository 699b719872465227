package models

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Metadata keys of the reconciliation descriptor as echoed by the gateway
const (
	MetaUserID        = "user_id"
	MetaFacilityID    = "facility_id"
	MetaTrainerID     = "trainer_id"
	MetaFacilityPrice = "facility_price"
	MetaTrainerPrice  = "trainer_price"
	MetaBookingKind   = "booking_kind"
	MetaBookingID     = "booking_id"
)

// ReconciliationDescriptor is attached to a gateway charge as metadata when the
// intent is created and is the only business key carried back by webhooks.
type ReconciliationDescriptor struct {
	UserID        uuid.UUID
	FacilityID    uuid.UUID
	TrainerID     *uuid.UUID
	FacilityPrice decimal.Decimal
	TrainerPrice  decimal.Decimal
	Booking       BookingReference
}

// NewReconciliationDescriptor captures the snapshot of ref for userID
func NewReconciliationDescriptor(userID uuid.UUID, ref BookingReference, snapshot *BookingSnapshot) *ReconciliationDescriptor {
	d := &ReconciliationDescriptor{
		UserID:        userID,
		FacilityID:    snapshot.FacilityID,
		TrainerID:     snapshot.TrainerID,
		FacilityPrice: snapshot.FacilityPrice,
		TrainerPrice:  decimal.Zero,
		Booking:       ref,
	}
	if snapshot.TrainerPrice.Valid {
		d.TrainerPrice = snapshot.TrainerPrice.Decimal
	}
	return d
}

// HasTrainer reports whether a trainer assignment must be created on success
func (d *ReconciliationDescriptor) HasTrainer() bool {
	return d.TrainerID != nil && *d.TrainerID != uuid.Nil
}

// Metadata flattens the descriptor into gateway metadata
func (d *ReconciliationDescriptor) Metadata() map[string]string {
	md := map[string]string{
		MetaUserID:        d.UserID.String(),
		MetaFacilityID:    d.FacilityID.String(),
		MetaFacilityPrice: d.FacilityPrice.StringFixed(2),
		MetaTrainerPrice:  d.TrainerPrice.StringFixed(2),
		MetaBookingKind:   string(d.Booking.Kind),
		MetaBookingID:     d.Booking.ID.String(),
	}
	if d.HasTrainer() {
		md[MetaTrainerID] = d.TrainerID.String()
	}
	return md
}

// ParseReconciliationDescriptor rebuilds a descriptor from gateway metadata.
// Errors wrap ErrInvalidDescriptor.
func ParseReconciliationDescriptor(md map[string]string) (*ReconciliationDescriptor, error) {
	if len(md) == 0 {
		return nil, fmt.Errorf("%w: metadata is empty", ErrInvalidDescriptor)
	}

	userID, err := parseMetaUUID(md, MetaUserID)
	if err != nil {
		return nil, err
	}
	facilityID, err := parseMetaUUID(md, MetaFacilityID)
	if err != nil {
		return nil, err
	}
	bookingID, err := parseMetaUUID(md, MetaBookingID)
	if err != nil {
		return nil, err
	}

	ref := BookingReference{Kind: BookingKind(md[MetaBookingKind]), ID: bookingID}
	if !ref.Valid() {
		return nil, fmt.Errorf("%w: unknown booking kind %q", ErrInvalidDescriptor, md[MetaBookingKind])
	}

	d := &ReconciliationDescriptor{
		UserID:       userID,
		FacilityID:   facilityID,
		TrainerPrice: decimal.Zero,
		Booking:      ref,
	}

	if d.FacilityPrice, err = decimal.NewFromString(md[MetaFacilityPrice]); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidDescriptor, MetaFacilityPrice, err)
	}
	if raw := md[MetaTrainerPrice]; raw != "" {
		if d.TrainerPrice, err = decimal.NewFromString(raw); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidDescriptor, MetaTrainerPrice, err)
		}
	}
	if raw := md[MetaTrainerID]; raw != "" {
		trainerID, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidDescriptor, MetaTrainerID, err)
		}
		d.TrainerID = &trainerID
	}

	if ref.IsTrainer() && !d.HasTrainer() {
		return nil, fmt.Errorf("%w: trainer booking without trainer_id", ErrInvalidDescriptor)
	}

	return d, nil
}

func parseMetaUUID(md map[string]string, key string) (uuid.UUID, error) {
	raw, ok := md[key]
	if !ok || raw == "" {
		return uuid.Nil, fmt.Errorf("%w: missing %s", ErrInvalidDescriptor, key)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s: %v", ErrInvalidDescriptor, key, err)
	}
	return id, nil
}

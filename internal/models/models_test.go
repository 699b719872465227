package models

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBookingReference(t *testing.T) {
	trainerBooking := uuid.New()
	facilityBooking := uuid.New()

	t.Run("Trainer booking", func(t *testing.T) {
		ref, err := NewBookingReference(&trainerBooking, nil)
		require.NoError(t, err)
		assert.Equal(t, BookingKindTrainer, ref.Kind)
		assert.Equal(t, "trainer_bookings", ref.Table())
		assert.Equal(t, "trainer_booking_id", ref.ChargeColumn())
	})

	t.Run("Facility booking", func(t *testing.T) {
		ref, err := NewBookingReference(nil, &facilityBooking)
		require.NoError(t, err)
		assert.Equal(t, BookingKindFacility, ref.Kind)
		assert.Equal(t, "facility_bookings", ref.Table())
		assert.Equal(t, "facility_booking_id", ref.ChargeColumn())
	})

	t.Run("Both set", func(t *testing.T) {
		_, err := NewBookingReference(&trainerBooking, &facilityBooking)
		assert.True(t, IsValidationError(err))
	})

	t.Run("Neither set", func(t *testing.T) {
		_, err := NewBookingReference(nil, nil)
		assert.True(t, IsValidationError(err))
	})

	t.Run("Nil uuid", func(t *testing.T) {
		nilID := uuid.Nil
		_, err := NewBookingReference(&nilID, nil)
		assert.True(t, IsValidationError(err))
	})
}

func TestBookingSnapshotTotal(t *testing.T) {
	t.Run("Facility and trainer prices are summed exactly", func(t *testing.T) {
		snapshot := &BookingSnapshot{
			FacilityPrice: decimal.RequireFromString("45.00"),
			TrainerPrice:  decimal.NewNullDecimal(decimal.RequireFromString("30.00")),
		}
		assert.Equal(t, int64(7500), ToMinorUnits(snapshot.Total()))
	})

	t.Run("No trainer counts as zero", func(t *testing.T) {
		snapshot := &BookingSnapshot{FacilityPrice: decimal.RequireFromString("20.00")}
		assert.Equal(t, int64(2000), ToMinorUnits(snapshot.Total()))
	})

	t.Run("Values that are inexact in binary floating point", func(t *testing.T) {
		snapshot := &BookingSnapshot{
			FacilityPrice: decimal.RequireFromString("0.10"),
			TrainerPrice:  decimal.NewNullDecimal(decimal.RequireFromString("0.20")),
		}
		assert.Equal(t, int64(30), ToMinorUnits(snapshot.Total()))
	})
}

func TestInitiatePaymentRequestValidate(t *testing.T) {
	bookingID := uuid.New()

	t.Run("Normalizes currency", func(t *testing.T) {
		req := &InitiatePaymentRequest{Currency: " USD ", CustomerID: "cus_123", FacilityBookingID: &bookingID}
		ref, err := req.Validate()
		require.NoError(t, err)
		assert.Equal(t, "usd", req.Currency)
		assert.Equal(t, bookingID, ref.ID)
	})

	t.Run("Rejects bad currency", func(t *testing.T) {
		for _, currency := range []string{"", "us", "usdd", "u$d"} {
			req := &InitiatePaymentRequest{Currency: currency, CustomerID: "cus_123", FacilityBookingID: &bookingID}
			_, err := req.Validate()
			var ve *ValidationError
			require.True(t, errors.As(err, &ve), currency)
			assert.Equal(t, "currency", ve.Field)
		}
	})

	t.Run("Requires customer", func(t *testing.T) {
		req := &InitiatePaymentRequest{Currency: "usd", CustomerID: "  ", FacilityBookingID: &bookingID}
		_, err := req.Validate()
		var ve *ValidationError
		require.True(t, errors.As(err, &ve))
		assert.Equal(t, "customer_id", ve.Field)
	})
}

func TestReconciliationDescriptor(t *testing.T) {
	userID := uuid.New()
	facilityID := uuid.New()
	trainerID := uuid.New()
	bookingID := uuid.New()

	t.Run("Metadata round trip with trainer", func(t *testing.T) {
		ref := BookingReference{Kind: BookingKindTrainer, ID: bookingID}
		snapshot := &BookingSnapshot{
			FacilityID:    facilityID,
			TrainerID:     &trainerID,
			FacilityPrice: decimal.RequireFromString("45"),
			TrainerPrice:  decimal.NewNullDecimal(decimal.RequireFromString("30.5")),
		}

		md := NewReconciliationDescriptor(userID, ref, snapshot).Metadata()
		assert.Equal(t, "45.00", md[MetaFacilityPrice])
		assert.Equal(t, "30.50", md[MetaTrainerPrice])
		assert.Equal(t, "trainer", md[MetaBookingKind])

		parsed, err := ParseReconciliationDescriptor(md)
		require.NoError(t, err)
		assert.Equal(t, userID, parsed.UserID)
		assert.Equal(t, ref, parsed.Booking)
		require.True(t, parsed.HasTrainer())
		assert.Equal(t, trainerID, *parsed.TrainerID)
		assert.True(t, parsed.TrainerPrice.Equal(decimal.RequireFromString("30.50")))
	})

	t.Run("Facility only has no trainer", func(t *testing.T) {
		ref := BookingReference{Kind: BookingKindFacility, ID: bookingID}
		snapshot := &BookingSnapshot{FacilityID: facilityID, FacilityPrice: decimal.RequireFromString("20.00")}

		md := NewReconciliationDescriptor(userID, ref, snapshot).Metadata()
		_, hasTrainer := md[MetaTrainerID]
		assert.False(t, hasTrainer)
		assert.Equal(t, "0.00", md[MetaTrainerPrice])

		parsed, err := ParseReconciliationDescriptor(md)
		require.NoError(t, err)
		assert.False(t, parsed.HasTrainer())
	})

	t.Run("Rejects malformed metadata", func(t *testing.T) {
		valid := map[string]string{
			MetaUserID:        userID.String(),
			MetaFacilityID:    facilityID.String(),
			MetaFacilityPrice: "20.00",
			MetaBookingKind:   "facility",
			MetaBookingID:     bookingID.String(),
		}

		cases := map[string]func(md map[string]string){
			"empty":             func(md map[string]string) { clear(md) },
			"missing user":      func(md map[string]string) { delete(md, MetaUserID) },
			"bad booking id":    func(md map[string]string) { md[MetaBookingID] = "B123" },
			"unknown kind":      func(md map[string]string) { md[MetaBookingKind] = "lounge" },
			"bad price":         func(md map[string]string) { md[MetaFacilityPrice] = "twenty" },
			"trainer w/o id":    func(md map[string]string) { md[MetaBookingKind] = "trainer" },
			"bad trainer price": func(md map[string]string) { md[MetaTrainerPrice] = "x" },
		}

		for name, mutate := range cases {
			t.Run(name, func(t *testing.T) {
				md := make(map[string]string, len(valid))
				for k, v := range valid {
					md[k] = v
				}
				mutate(md)
				_, err := ParseReconciliationDescriptor(md)
				assert.ErrorIs(t, err, ErrInvalidDescriptor)
			})
		}
	})
}

func TestGatewayEventOutcome(t *testing.T) {
	cases := map[string]ReconciliationOutcome{
		EventChargeSucceeded:          OutcomeSuccess,
		EventPaymentIntentSucceeded:   OutcomeSuccess,
		EventChargeCanceled:           OutcomeCancel,
		EventPaymentIntentCanceled:    OutcomeCancel,
		"payment_intent.created":      OutcomeIgnore,
		"customer.subscription.trial": OutcomeIgnore,
	}
	for eventType, want := range cases {
		event := &GatewayEvent{Type: eventType}
		assert.Equal(t, want, event.Outcome(), eventType)
	}
}

func TestGatewayEventIntentID(t *testing.T) {
	charge := &GatewayEvent{Type: EventChargeSucceeded, ObjectID: "ch_1", PaymentIntentID: "pi_1"}
	assert.Equal(t, "pi_1", charge.IntentID())

	intent := &GatewayEvent{Type: EventPaymentIntentSucceeded, ObjectID: "pi_2"}
	assert.Equal(t, "pi_2", intent.IntentID())

	bare := &GatewayEvent{Type: EventChargeCanceled, ObjectID: "ch_3"}
	assert.Empty(t, bare.IntentID())

	audit := NewPaymentAudit(PaymentEventSuccess, PaymentSourceStripeWebhook).SetGatewayEvent(charge)
	require.NotNil(t, audit.GatewayObjectID)
	assert.Equal(t, "ch_1", *audit.GatewayObjectID)
	require.NotNil(t, audit.GatewayIntentID)
	assert.Equal(t, "pi_1", *audit.GatewayIntentID)
}

func TestNewSessionConfirmedNotification(t *testing.T) {
	ref := BookingReference{Kind: BookingKindFacility, ID: uuid.New()}
	details := &BookingSessionDetails{UserID: uuid.New(), FacilityID: uuid.New(), RenterName: "Dana", FacilityName: "Court 3"}

	session := NewConfirmedSession(ref, details)
	assert.Equal(t, "Dana's session at Court 3", session.Name)
	assert.Equal(t, SessionStatusUpcoming, session.Status)
	require.NotNil(t, session.FacilityBookingID)
	assert.Nil(t, session.TrainerBookingID)

	n := NewSessionConfirmedNotification(details.UserID, session)
	assert.Equal(t, "/sessions/"+session.ID.String(), n.DeepLink)
	assert.False(t, n.IsRead)
}

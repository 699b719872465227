package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus represents the status of a confirmed session
type SessionStatus string

const (
	SessionStatusUpcoming  SessionStatus = "upcoming"
	SessionStatusOngoing   SessionStatus = "ongoing"
	SessionStatusCompleted SessionStatus = "completed"
)

// ConfirmedSession is a paid booking promoted by a successful reconciliation
type ConfirmedSession struct {
	ID                uuid.UUID     `json:"id" db:"id"`
	UserID            uuid.UUID     `json:"user_id" db:"user_id"`
	FacilityID        uuid.UUID     `json:"facility_id" db:"facility_id"`
	TrainerBookingID  *uuid.UUID    `json:"trainer_booking_id,omitempty" db:"trainer_booking_id"`
	FacilityBookingID *uuid.UUID    `json:"facility_booking_id,omitempty" db:"facility_booking_id"`
	Name              string        `json:"name" db:"name"`
	StartTime         time.Time     `json:"start_time" db:"start_time"`
	EndTime           time.Time     `json:"end_time" db:"end_time"`
	Status            SessionStatus `json:"status" db:"status"`
	CreatedAt         time.Time     `json:"created_at" db:"created_at"`
}

// NewConfirmedSession builds an upcoming session for ref from the booking details
func NewConfirmedSession(ref BookingReference, details *BookingSessionDetails) *ConfirmedSession {
	s := &ConfirmedSession{
		ID:         uuid.New(),
		UserID:     details.UserID,
		FacilityID: details.FacilityID,
		Name:       details.SessionName(),
		StartTime:  details.StartTime,
		EndTime:    details.EndTime,
		Status:     SessionStatusUpcoming,
		CreatedAt:  time.Now().UTC(),
	}
	id := ref.ID
	if ref.IsTrainer() {
		s.TrainerBookingID = &id
	} else {
		s.FacilityBookingID = &id
	}
	return s
}

// TrainerAssignment links a trainer to a confirmed session
type TrainerAssignment struct {
	ID        uuid.UUID `json:"id" db:"id"`
	SessionID uuid.UUID `json:"session_id" db:"session_id"`
	TrainerID uuid.UUID `json:"trainer_id" db:"trainer_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// SessionConfirmedEvent is published after a successful reconciliation commits
type SessionConfirmedEvent struct {
	SessionID   uuid.UUID        `json:"session_id"`
	UserID      uuid.UUID        `json:"user_id"`
	FacilityID  uuid.UUID        `json:"facility_id"`
	TrainerID   *uuid.UUID       `json:"trainer_id,omitempty"`
	Booking     BookingReference `json:"booking"`
	StartTime   time.Time        `json:"start_time"`
	EndTime     time.Time        `json:"end_time"`
	ConfirmedAt time.Time        `json:"confirmed_at"`
}

// BookingCanceledEvent is published after a canceled charge removes its booking
type BookingCanceledEvent struct {
	UserID     uuid.UUID        `json:"user_id"`
	Booking    BookingReference `json:"booking"`
	CanceledAt time.Time        `json:"canceled_at"`
}

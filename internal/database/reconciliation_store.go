package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/playfield/marketplace-backend/internal/models"
)

// ReconciliationUnit is the set of writes one reconciliation transition may
// perform. All calls on a unit share one transaction.
type ReconciliationUnit interface {
	MarkChargeSucceeded(ctx context.Context, ref models.BookingReference, gatewayTransactionID string) (bool, error)
	DeletePendingCharge(ctx context.Context, ref models.BookingReference) (bool, error)
	GetSessionDetails(ctx context.Context, ref models.BookingReference) (*models.BookingSessionDetails, error)
	CreateSession(ctx context.Context, session *models.ConfirmedSession) error
	AssignTrainer(ctx context.Context, assignment *models.TrainerAssignment) error
	CreateNotification(ctx context.Context, n *models.Notification) error
	DeleteBooking(ctx context.Context, ref models.BookingReference) error
}

// ReconciliationStore opens reconciliation units on PostgreSQL
type ReconciliationStore struct {
	db            *sqlx.DB
	charges       *PendingChargeRepository
	bookings      *BookingRepository
	sessions      *SessionRepository
	notifications *NotificationRepository
}

// NewReconciliationStore creates a new reconciliation store
func NewReconciliationStore(db *sqlx.DB) *ReconciliationStore {
	return &ReconciliationStore{
		db:            db,
		charges:       NewPendingChargeRepository(db),
		bookings:      NewBookingRepository(db),
		sessions:      NewSessionRepository(db),
		notifications: NewNotificationRepository(db),
	}
}

// Transact runs fn on a unit bound to a fresh transaction. The unit commits
// only if fn returns nil.
func (s *ReconciliationStore) Transact(ctx context.Context, fn func(unit ReconciliationUnit) error) error {
	return WithTransaction(ctx, s.db, func(tx *sqlx.Tx) error {
		return fn(&txUnit{
			charges:       s.charges.WithTx(tx),
			bookings:      s.bookings.WithTx(tx),
			sessions:      s.sessions.WithTx(tx),
			notifications: s.notifications.WithTx(tx),
		})
	})
}

type txUnit struct {
	charges       *PendingChargeRepository
	bookings      *BookingRepository
	sessions      *SessionRepository
	notifications *NotificationRepository
}

func (u *txUnit) MarkChargeSucceeded(ctx context.Context, ref models.BookingReference, gatewayTransactionID string) (bool, error) {
	return u.charges.MarkSucceeded(ctx, ref, gatewayTransactionID)
}

func (u *txUnit) DeletePendingCharge(ctx context.Context, ref models.BookingReference) (bool, error) {
	return u.charges.DeletePending(ctx, ref)
}

func (u *txUnit) GetSessionDetails(ctx context.Context, ref models.BookingReference) (*models.BookingSessionDetails, error) {
	return u.bookings.GetSessionDetails(ctx, ref)
}

func (u *txUnit) CreateSession(ctx context.Context, session *models.ConfirmedSession) error {
	return u.sessions.Create(ctx, session)
}

func (u *txUnit) AssignTrainer(ctx context.Context, assignment *models.TrainerAssignment) error {
	return u.sessions.AssignTrainer(ctx, assignment)
}

func (u *txUnit) CreateNotification(ctx context.Context, n *models.Notification) error {
	return u.notifications.Create(ctx, n)
}

// DeleteBooking treats a missing booking as done: the charge row was the
// authority and is already gone in this transaction.
func (u *txUnit) DeleteBooking(ctx context.Context, ref models.BookingReference) error {
	if _, err := u.bookings.Delete(ctx, ref); err != nil {
		return fmt.Errorf("cancel %s: %w", ref, err)
	}
	return nil
}

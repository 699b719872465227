package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/playfield/marketplace-backend/internal/database"
	"github.com/playfield/marketplace-backend/internal/models"
	"github.com/playfield/marketplace-backend/pkg/mq"
	"github.com/sirupsen/logrus"
)

// ReconciliationService applies gateway outcomes to pending charges. Each
// transition runs as one unit of work and is idempotent: once a charge has left
// pending, further deliveries are no-ops.
type ReconciliationService struct {
	store          ReconciliationStore
	emitter        *NotificationEmitter
	publisher      EventPublisher
	publishTimeout time.Duration
	logger         *logrus.Logger
}

// NewReconciliationService creates a new reconciliation service. emitter and
// publisher may be nil. publishTimeout bounds each domain event publish and
// defaults to 2s.
func NewReconciliationService(
	store ReconciliationStore,
	emitter *NotificationEmitter,
	publisher EventPublisher,
	publishTimeout time.Duration,
	logger *logrus.Logger,
) *ReconciliationService {
	if publishTimeout <= 0 {
		publishTimeout = 2 * time.Second
	}
	return &ReconciliationService{
		store:          store,
		emitter:        emitter,
		publisher:      publisher,
		publishTimeout: publishTimeout,
		logger:         logger,
	}
}

// ApplySuccess marks the charge paid and promotes the booking to a confirmed
// session. gatewayEventID is stored as the gateway transaction id.
func (s *ReconciliationService) ApplySuccess(ctx context.Context, d *models.ReconciliationDescriptor, gatewayEventID string) (*models.ReconciliationResult, error) {
	result := &models.ReconciliationResult{Outcome: models.OutcomeSuccess, Booking: d.Booking}
	log := s.logger.WithFields(logrus.Fields{
		"booking":          d.Booking.String(),
		"user_id":          d.UserID,
		"gateway_event_id": gatewayEventID,
	})

	var (
		session      *models.ConfirmedSession
		notification *models.Notification
	)

	err := s.store.Transact(ctx, func(unit database.ReconciliationUnit) error {
		// 1. Conditional status flip; the sole guard against duplicates
		won, err := unit.MarkChargeSucceeded(ctx, d.Booking, gatewayEventID)
		if err != nil {
			return err
		}
		if !won {
			return models.ErrReconciliationConflict
		}

		// 2. Session from the booking window
		details, err := unit.GetSessionDetails(ctx, d.Booking)
		if err != nil {
			return err
		}
		session = models.NewConfirmedSession(d.Booking, details)
		if err := unit.CreateSession(ctx, session); err != nil {
			return err
		}

		// 3. Trainer assignment
		if d.HasTrainer() {
			if err := unit.AssignTrainer(ctx, &models.TrainerAssignment{
				ID:        uuid.New(),
				SessionID: session.ID,
				TrainerID: *d.TrainerID,
				CreatedAt: time.Now().UTC(),
			}); err != nil {
				return err
			}
		}

		// 4. In-app notification for the paying user
		notification = models.NewSessionConfirmedNotification(d.UserID, session)
		return unit.CreateNotification(ctx, notification)
	})
	if errors.Is(err, models.ErrReconciliationConflict) {
		log.Info("Charge no longer pending; success delivery ignored")
		return result, nil
	}
	if err != nil {
		log.WithError(err).Error("Success reconciliation rolled back")
		return nil, persistenceError(err)
	}

	result.Applied = true
	result.SessionID = &session.ID
	result.NotificationID = &notification.ID
	log.WithField("session_id", session.ID).Info("Booking confirmed")

	// Side effects strictly after commit
	s.emitter.Deliver(ctx, d.UserID, notification)
	s.publish(ctx, log, mq.KeySessionConfirmed, models.SessionConfirmedEvent{
		SessionID:   session.ID,
		UserID:      session.UserID,
		FacilityID:  session.FacilityID,
		TrainerID:   d.TrainerID,
		Booking:     d.Booking,
		StartTime:   session.StartTime,
		EndTime:     session.EndTime,
		ConfirmedAt: time.Now().UTC(),
	})

	return result, nil
}

// ApplyCancel removes a still-pending charge together with its booking. A
// charge that already succeeded is left untouched.
func (s *ReconciliationService) ApplyCancel(ctx context.Context, d *models.ReconciliationDescriptor) (*models.ReconciliationResult, error) {
	result := &models.ReconciliationResult{Outcome: models.OutcomeCancel, Booking: d.Booking}
	log := s.logger.WithFields(logrus.Fields{
		"booking": d.Booking.String(),
		"user_id": d.UserID,
	})

	err := s.store.Transact(ctx, func(unit database.ReconciliationUnit) error {
		won, err := unit.DeletePendingCharge(ctx, d.Booking)
		if err != nil {
			return err
		}
		if !won {
			return models.ErrReconciliationConflict
		}
		return unit.DeleteBooking(ctx, d.Booking)
	})
	if errors.Is(err, models.ErrReconciliationConflict) {
		log.Info("Charge no longer pending; cancel delivery ignored")
		return result, nil
	}
	if err != nil {
		log.WithError(err).Error("Cancel reconciliation rolled back")
		return nil, persistenceError(err)
	}

	result.Applied = true
	log.Info("Booking canceled")

	s.publish(ctx, log, mq.KeyBookingCanceled, models.BookingCanceledEvent{
		UserID:     d.UserID,
		Booking:    d.Booking,
		CanceledAt: time.Now().UTC(),
	})

	return result, nil
}

func (s *ReconciliationService) publish(ctx context.Context, log *logrus.Entry, key string, event any) {
	if s.publisher == nil {
		return
	}
	// Runs on the webhook response path after commit; a stalled broker must
	// not hold the gateway's delivery open
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	defer cancel()

	if err := s.publisher.PublishJSON(ctx, key, event); err != nil {
		log.WithError(err).WithField("routing_key", key).Warn("Domain event not published")
	}
}

func persistenceError(err error) error {
	if errors.Is(err, models.ErrPersistence) {
		return err
	}
	return fmt.Errorf("%w: %w", models.ErrPersistence, err)
}

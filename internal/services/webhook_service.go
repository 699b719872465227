package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/playfield/marketplace-backend/internal/models"
	"github.com/playfield/marketplace-backend/pkg/gateway"
	"github.com/sirupsen/logrus"
)

// WebhookService authenticates gateway deliveries and dispatches them to the
// reconciliation state machine
type WebhookService struct {
	verifier   gateway.WebhookVerifier
	reconciler *ReconciliationService
	audits     *PaymentAuditService
	logger     *logrus.Logger
}

// NewWebhookService creates a new webhook service
func NewWebhookService(
	verifier gateway.WebhookVerifier,
	reconciler *ReconciliationService,
	audits *PaymentAuditService,
	logger *logrus.Logger,
) *WebhookService {
	return &WebhookService{
		verifier:   verifier,
		reconciler: reconciler,
		audits:     audits,
		logger:     logger,
	}
}

// Handle verifies payload against signature and applies the event it carries.
// It returns models.ErrSignatureInvalid for unauthenticated deliveries and
// models.ErrPersistence when a transition rolled back and should be retried.
// Every other delivery, including unknown types and undecodable descriptors,
// is acknowledged with nil.
func (s *WebhookService) Handle(ctx context.Context, payload []byte, signature string, meta models.RequestMeta) error {
	startTime := time.Now()

	verified, err := s.verifier.VerifyEvent(payload, signature)
	if err != nil {
		s.logger.WithError(err).WithField("body_bytes", len(payload)).Warn("Webhook signature rejected")
		s.audits.Record(ctx, models.NewPaymentAudit(models.PaymentEventWebhookRejected, models.PaymentSourceStripeWebhook).
			SetError(err).
			SetProcessingTime(startTime), &meta)
		return fmt.Errorf("%w: %v", models.ErrSignatureInvalid, err)
	}

	event := toGatewayEvent(verified)
	log := s.logger.WithFields(logrus.Fields{
		"event_id":   event.ID,
		"event_type": event.Type,
		"object_id":  event.ObjectID,
		"intent_id":  event.IntentID(),
	})

	outcome := event.Outcome()
	if outcome == models.OutcomeIgnore {
		log.Debug("Webhook event type not handled; acknowledged")
		return nil
	}

	s.audits.Record(ctx, models.NewPaymentAudit(models.PaymentEventWebhookReceived, models.PaymentSourceStripeWebhook).
		SetGatewayEvent(event).
		SetRawBody(event.Raw), &meta)

	descriptor, err := models.ParseReconciliationDescriptor(event.Metadata)
	if err != nil {
		log.WithError(err).Error("Webhook event carries an undecodable descriptor; acknowledged")
		s.audits.Record(ctx, models.NewPaymentAudit(models.PaymentEventError, models.PaymentSourceStripeWebhook).
			SetGatewayEvent(event).
			SetError(err).
			SetProcessingTime(startTime), nil)
		return nil
	}
	log = log.WithField("booking", descriptor.Booking.String())

	var result *models.ReconciliationResult
	switch outcome {
	case models.OutcomeSuccess:
		result, err = s.reconciler.ApplySuccess(ctx, descriptor, event.ID)
	case models.OutcomeCancel:
		result, err = s.reconciler.ApplyCancel(ctx, descriptor)
	}
	if err != nil {
		failure := models.PaymentEventError
		if outcome == models.OutcomeSuccess {
			failure = models.PaymentEventBookingConfirmFailed
		}
		s.audits.Record(ctx, models.NewPaymentAudit(failure, models.PaymentSourceBackend).
			SetBooking(descriptor.Booking).
			SetGatewayEvent(event).
			SetError(err).
			SetProcessingTime(startTime), nil)
		if errors.Is(err, models.ErrPersistence) {
			return err
		}
		return fmt.Errorf("%w: %w", models.ErrPersistence, err)
	}

	s.recordOutcome(ctx, event, result, startTime)
	log.WithFields(logrus.Fields{
		"outcome": result.Outcome,
		"applied": result.Applied,
	}).Info("Webhook event reconciled")

	return nil
}

func (s *WebhookService) recordOutcome(ctx context.Context, event *models.GatewayEvent, result *models.ReconciliationResult, startTime time.Time) {
	eventType := models.PaymentEventSuccess
	status := string(models.ChargeStatusSuccess)
	if result.Outcome == models.OutcomeCancel {
		eventType = models.PaymentEventCancelled
		status = string(models.ChargeStatusCanceled)
	}

	audit := models.NewPaymentAudit(eventType, models.PaymentSourceStripeWebhook).
		SetBooking(result.Booking).
		SetGatewayEvent(event).
		SetPaymentStatus(status).
		SetProcessingTime(startTime)
	if !result.Applied {
		audit.MarkAsDuplicate()
	}
	s.audits.Record(ctx, audit, nil)

	if result.Applied && result.SessionID != nil {
		s.audits.Record(ctx, models.NewPaymentAudit(models.PaymentEventBookingConfirmed, models.PaymentSourceBackend).
			SetBooking(result.Booking).
			SetGatewayEvent(event).
			SetPaymentStatus(status), nil)
	}
}

func toGatewayEvent(e *gateway.Event) *models.GatewayEvent {
	return &models.GatewayEvent{
		ID:              e.ID,
		Type:            e.Type,
		ObjectID:        e.ObjectID,
		PaymentIntentID: e.PaymentIntentID,
		Metadata:        e.Metadata,
		Raw:             e.Raw,
	}
}

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/playfield/marketplace-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// PaymentAuditRepository appends payment audit entries
type PaymentAuditRepository struct {
	db     Querier
	logger *logrus.Logger
}

// NewPaymentAuditRepository creates a new payment audit repository
func NewPaymentAuditRepository(db *sqlx.DB, logger *logrus.Logger) *PaymentAuditRepository {
	return &PaymentAuditRepository{
		db:     db,
		logger: logger,
	}
}

// Log writes one audit entry. Callers treat failures as non-fatal, so the
// failure is logged here with enough context to rebuild the entry.
func (r *PaymentAuditRepository) Log(ctx context.Context, audit *models.PaymentAudit) error {
	if audit == nil {
		return fmt.Errorf("audit entry cannot be nil")
	}

	if audit.ID == uuid.Nil {
		audit.ID = uuid.New()
	}
	if audit.CreatedAt.IsZero() {
		audit.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO payment_audits (
			id, charge_id, booking_kind, booking_id,
			gateway_object_id, gateway_intent_id, gateway_event_id,
			event_type, event_source,
			amount, currency, payment_status,
			raw_body, error_message,
			processing_time_ms, is_duplicate,
			ip_address, user_agent, device_type, platform,
			created_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7,
			$8, $9,
			$10, $11, $12,
			$13, $14,
			$15, $16,
			$17, $18, $19, $20,
			$21
		)`

	_, err := r.db.ExecContext(ctx, query,
		audit.ID, audit.ChargeID, audit.BookingKind, audit.BookingID,
		audit.GatewayObjectID, audit.GatewayIntentID, audit.GatewayEventID,
		audit.EventType, audit.EventSource,
		audit.Amount, audit.Currency, audit.PaymentStatus,
		audit.RawBody, audit.ErrorMessage,
		audit.ProcessingTimeMs, audit.IsDuplicate,
		audit.IPAddress, audit.UserAgent, audit.DeviceType, audit.Platform,
		audit.CreatedAt,
	)
	if err != nil {
		r.logger.WithError(err).WithFields(logrus.Fields{
			"event_type":        audit.EventType,
			"gateway_object_id": audit.GatewayObjectID,
			"gateway_intent_id": audit.GatewayIntentID,
			"gateway_event_id":  audit.GatewayEventID,
			"booking_id":        audit.BookingID,
		}).Error("Failed to write payment audit")
		return fmt.Errorf("failed to log payment audit: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"audit_id":   audit.ID,
		"event_type": audit.EventType,
	}).Debug("Payment audit logged")

	return nil
}

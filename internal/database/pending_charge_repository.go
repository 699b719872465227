package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/playfield/marketplace-backend/internal/models"
)

const pendingChargeColumns = `
	id, trainer_booking_id, facility_booking_id, total_amount, currency,
	status, gateway_intent_id, gateway_transaction_id, created_at, updated_at
`

// PendingChargeRepository handles the payment ledger rows of tentative bookings.
// Every status change is a conditional statement on status = 'pending'; the
// affected-row count tells the caller whether it won.
type PendingChargeRepository struct {
	db Querier
}

// NewPendingChargeRepository creates a new pending charge repository
func NewPendingChargeRepository(db *sqlx.DB) *PendingChargeRepository {
	return &PendingChargeRepository{db: db}
}

// WithTx returns a copy of the repository bound to tx
func (r *PendingChargeRepository) WithTx(tx *sqlx.Tx) *PendingChargeRepository {
	return &PendingChargeRepository{db: tx}
}

// ============================================================================
// READS
// ============================================================================

// GetPending returns the pending charge of ref, or nil if there is none
func (r *PendingChargeRepository) GetPending(ctx context.Context, ref models.BookingReference) (*models.PendingCharge, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM pending_charges
		WHERE %s = $1 AND status = 'pending'
	`, pendingChargeColumns, ref.ChargeColumn())

	var charge models.PendingCharge
	err := r.db.GetContext(ctx, &charge, query, ref.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get pending charge: %w", err)
	}
	return &charge, nil
}

// GetLatest returns the most relevant charge of ref: a succeeded charge if one
// exists, otherwise the newest row. Returns nil if the booking has no charge.
func (r *PendingChargeRepository) GetLatest(ctx context.Context, ref models.BookingReference) (*models.PendingCharge, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM pending_charges
		WHERE %s = $1
		ORDER BY (status = 'success') DESC, created_at DESC
		LIMIT 1
	`, pendingChargeColumns, ref.ChargeColumn())

	var charge models.PendingCharge
	err := r.db.GetContext(ctx, &charge, query, ref.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get charge: %w", err)
	}
	return &charge, nil
}

// ============================================================================
// WRITES
// ============================================================================

// Create inserts a pending charge. Returns models.ErrDuplicatePendingCharge when
// another pending charge for the same booking already exists.
func (r *PendingChargeRepository) Create(ctx context.Context, charge *models.PendingCharge) error {
	if charge.ID == uuid.Nil {
		charge.ID = uuid.New()
	}

	query := `
		INSERT INTO pending_charges (
			id, trainer_booking_id, facility_booking_id, total_amount, currency,
			status, gateway_intent_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		charge.ID, charge.TrainerBookingID, charge.FacilityBookingID,
		charge.TotalAmount, charge.Currency, charge.Status, charge.GatewayIntentID,
	).Scan(&charge.CreatedAt, &charge.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return models.ErrDuplicatePendingCharge
		}
		return fmt.Errorf("failed to create pending charge: %w", err)
	}
	return nil
}

// AttachGatewayIntent records the gateway charge handle on a pending row.
// Returns false when the row is gone or no longer pending.
func (r *PendingChargeRepository) AttachGatewayIntent(ctx context.Context, chargeID uuid.UUID, intentID string) (bool, error) {
	query := `
		UPDATE pending_charges
		SET gateway_intent_id = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`
	return r.execAffected(ctx, "attach gateway intent", query, chargeID, intentID)
}

// DeleteUnattached removes a pending row that never received a gateway
// charge handle. Used to compensate a failed gateway call.
func (r *PendingChargeRepository) DeleteUnattached(ctx context.Context, chargeID uuid.UUID) (bool, error) {
	query := `
		DELETE FROM pending_charges
		WHERE id = $1 AND status = 'pending' AND gateway_intent_id IS NULL
	`
	return r.execAffected(ctx, "delete unattached pending charge", query, chargeID)
}

// MarkSucceeded moves the pending charge of ref to success.
// Returns false when no pending charge exists (already reconciled or canceled).
func (r *PendingChargeRepository) MarkSucceeded(ctx context.Context, ref models.BookingReference, gatewayTransactionID string) (bool, error) {
	query := fmt.Sprintf(`
		UPDATE pending_charges
		SET status = 'success', gateway_transaction_id = $2, updated_at = NOW()
		WHERE %s = $1 AND status = 'pending'
	`, ref.ChargeColumn())

	var txnID *string
	if gatewayTransactionID != "" {
		txnID = &gatewayTransactionID
	}
	return r.execAffected(ctx, "mark charge succeeded", query, ref.ID, txnID)
}

// DeletePending removes the pending charge of ref.
// Returns false when no pending charge exists, leaving succeeded charges untouched.
func (r *PendingChargeRepository) DeletePending(ctx context.Context, ref models.BookingReference) (bool, error) {
	query := fmt.Sprintf(`
		DELETE FROM pending_charges
		WHERE %s = $1 AND status = 'pending'
	`, ref.ChargeColumn())
	return r.execAffected(ctx, "delete pending charge", query, ref.ID)
}

func (r *PendingChargeRepository) execAffected(ctx context.Context, op, query string, args ...interface{}) (bool, error) {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to %s: %w", op, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

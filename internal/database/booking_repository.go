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

// BookingRepository reads and removes tentative bookings.
// Booking creation belongs to the booking CRUD service.
type BookingRepository struct {
	db Querier
}

// NewBookingRepository creates a new booking repository
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// WithTx returns a copy of the repository bound to tx
func (r *BookingRepository) WithTx(tx *sqlx.Tx) *BookingRepository {
	return &BookingRepository{db: tx}
}

// GetSnapshot returns the current price quote of ref if it belongs to userID.
// Returns models.ErrNotFound when the booking is missing or owned by someone else.
func (r *BookingRepository) GetSnapshot(ctx context.Context, userID uuid.UUID, ref models.BookingReference) (*models.BookingSnapshot, error) {
	var query string
	if ref.IsTrainer() {
		query = `
			SELECT
				tb.user_id, tb.facility_id, tb.trainer_id,
				f.price AS facility_price,
				t.price AS trainer_price
			FROM trainer_bookings tb
			JOIN facilities f ON f.id = tb.facility_id
			JOIN trainers t ON t.id = tb.trainer_id
			WHERE tb.id = $1 AND tb.user_id = $2
		`
	} else {
		query = `
			SELECT
				fb.user_id, fb.facility_id,
				f.price AS facility_price
			FROM facility_bookings fb
			JOIN facilities f ON f.id = fb.facility_id
			WHERE fb.id = $1 AND fb.user_id = $2
		`
	}

	var snapshot models.BookingSnapshot
	err := r.db.GetContext(ctx, &snapshot, query, ref.ID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("booking %s: %w", ref, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get booking snapshot: %w", err)
	}

	return &snapshot, nil
}

// GetSessionDetails loads the time window, renter name and facility name of ref.
// Returns models.ErrNotFound when the booking no longer exists.
func (r *BookingRepository) GetSessionDetails(ctx context.Context, ref models.BookingReference) (*models.BookingSessionDetails, error) {
	query := fmt.Sprintf(`
		SELECT
			b.user_id, b.facility_id, b.start_time, b.end_time,
			COALESCE(NULLIF(TRIM(CONCAT(u.first_name, ' ', u.last_name)), ''), 'Guest') AS renter_name,
			f.name AS facility_name
		FROM %s b
		JOIN users u ON u.id = b.user_id
		JOIN facilities f ON f.id = b.facility_id
		WHERE b.id = $1
	`, ref.Table())

	var details models.BookingSessionDetails
	err := r.db.GetContext(ctx, &details, query, ref.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("booking %s: %w", ref, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get booking session details: %w", err)
	}

	return &details, nil
}

// Delete removes the tentative booking row and returns the number of rows deleted
func (r *BookingRepository) Delete(ctx context.Context, ref models.BookingReference) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, ref.Table())

	result, err := r.db.ExecContext(ctx, query, ref.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete booking: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows, nil
}

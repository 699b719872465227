package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/playfield/marketplace-backend/internal/models"
)

// SessionRepository handles confirmed sessions and their trainer assignments
type SessionRepository struct {
	db Querier
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// WithTx returns a copy of the repository bound to tx
func (r *SessionRepository) WithTx(tx *sqlx.Tx) *SessionRepository {
	return &SessionRepository{db: tx}
}

// Create inserts a confirmed session
func (r *SessionRepository) Create(ctx context.Context, session *models.ConfirmedSession) error {
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO confirmed_sessions (
			id, user_id, facility_id, trainer_booking_id, facility_booking_id,
			name, start_time, end_time, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.ExecContext(ctx, query,
		session.ID, session.UserID, session.FacilityID,
		session.TrainerBookingID, session.FacilityBookingID,
		session.Name, session.StartTime, session.EndTime,
		session.Status, session.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create confirmed session: %w", err)
	}
	return nil
}

// AssignTrainer inserts the trainer assignment of a session
func (r *SessionRepository) AssignTrainer(ctx context.Context, assignment *models.TrainerAssignment) error {
	if assignment.ID == uuid.Nil {
		assignment.ID = uuid.New()
	}
	if assignment.CreatedAt.IsZero() {
		assignment.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO trainer_assignments (id, session_id, trainer_id, created_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.db.ExecContext(ctx, query,
		assignment.ID, assignment.SessionID, assignment.TrainerID, assignment.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to assign trainer: %w", err)
	}
	return nil
}

// AdvanceStatuses moves sessions along upcoming -> ongoing -> completed based on now.
// Returns how many sessions started and how many completed.
func (r *SessionRepository) AdvanceStatuses(ctx context.Context, now time.Time) (started int64, completed int64, err error) {
	completeQuery := `
		UPDATE confirmed_sessions
		SET status = 'completed'
		WHERE status IN ('upcoming', 'ongoing') AND end_time <= $1
	`
	result, err := r.db.ExecContext(ctx, completeQuery, now)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to complete sessions: %w", err)
	}
	if completed, err = result.RowsAffected(); err != nil {
		return 0, 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	startQuery := `
		UPDATE confirmed_sessions
		SET status = 'ongoing'
		WHERE status = 'upcoming' AND start_time <= $1 AND end_time > $1
	`
	result, err = r.db.ExecContext(ctx, startQuery, now)
	if err != nil {
		return 0, completed, fmt.Errorf("failed to start sessions: %w", err)
	}
	if started, err = result.RowsAffected(); err != nil {
		return 0, completed, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return started, completed, nil
}

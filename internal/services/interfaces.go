package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/playfield/marketplace-backend/internal/database"
	"github.com/playfield/marketplace-backend/internal/models"
)

// Collaborators are declared where they are consumed. The database package
// provides the PostgreSQL implementations; tests substitute fakes.

// BookingSnapshotReader loads booking price quotes
type BookingSnapshotReader interface {
	GetSnapshot(ctx context.Context, userID uuid.UUID, ref models.BookingReference) (*models.BookingSnapshot, error)
}

// ChargeStore persists pending charges outside the reconciliation unit of work
type ChargeStore interface {
	GetPending(ctx context.Context, ref models.BookingReference) (*models.PendingCharge, error)
	GetLatest(ctx context.Context, ref models.BookingReference) (*models.PendingCharge, error)
	Create(ctx context.Context, charge *models.PendingCharge) error
	AttachGatewayIntent(ctx context.Context, chargeID uuid.UUID, intentID string) (bool, error)
	DeleteUnattached(ctx context.Context, chargeID uuid.UUID) (bool, error)
}

// ReconciliationStore runs one reconciliation transition as a unit of work
type ReconciliationStore interface {
	Transact(ctx context.Context, fn func(unit database.ReconciliationUnit) error) error
}

// ChannelRegistry finds and pushes to a user's live real-time channel
type ChannelRegistry interface {
	Lookup(ctx context.Context, userID uuid.UUID) (handle string, ok bool, err error)
	Push(ctx context.Context, handle string, payload []byte) error
}

// EventPublisher publishes domain events to the message broker
type EventPublisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

// AuditLogger appends payment audit entries
type AuditLogger interface {
	Log(ctx context.Context, audit *models.PaymentAudit) error
}

// SessionStatusAdvancer moves confirmed sessions through their time-based states
type SessionStatusAdvancer interface {
	AdvanceStatuses(ctx context.Context, now time.Time) (started int64, completed int64, err error)
}

var (
	_ BookingSnapshotReader = (*database.BookingRepository)(nil)
	_ ChargeStore           = (*database.PendingChargeRepository)(nil)
	_ ReconciliationStore   = (*database.ReconciliationStore)(nil)
	_ AuditLogger           = (*database.PaymentAuditRepository)(nil)
	_ SessionStatusAdvancer = (*database.SessionRepository)(nil)
)

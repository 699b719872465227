package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/playfield/marketplace-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// BookingSnapshotService resolves a tentative booking into its price quote.
// It is read-only.
type BookingSnapshotService struct {
	bookings BookingSnapshotReader
	logger   *logrus.Logger
}

// NewBookingSnapshotService creates a new booking snapshot service
func NewBookingSnapshotService(bookings BookingSnapshotReader, logger *logrus.Logger) *BookingSnapshotService {
	return &BookingSnapshotService{bookings: bookings, logger: logger}
}

// Resolve returns the price quote of ref. Fails with models.ErrNotFound when
// the booking does not exist or belongs to another user.
func (s *BookingSnapshotService) Resolve(ctx context.Context, userID uuid.UUID, ref models.BookingReference) (*models.BookingSnapshot, error) {
	if !ref.Valid() {
		return nil, models.NewValidationError("booking", "unknown booking reference")
	}

	snapshot, err := s.bookings.GetSnapshot(ctx, userID, ref)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"user_id": userID,
				"booking": ref.String(),
			}).Error("Failed to resolve booking snapshot")
		}
		return nil, err
	}

	if snapshot.FacilityPrice.IsNegative() || (snapshot.TrainerPrice.Valid && snapshot.TrainerPrice.Decimal.IsNegative()) {
		return nil, fmt.Errorf("booking %s has a negative price", ref)
	}
	if ref.IsTrainer() && (snapshot.TrainerID == nil || !snapshot.TrainerPrice.Valid) {
		return nil, fmt.Errorf("trainer booking %s has no trainer quote", ref)
	}

	return snapshot, nil
}

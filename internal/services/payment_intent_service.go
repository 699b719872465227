package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/playfield/marketplace-backend/internal/models"
	"github.com/playfield/marketplace-backend/pkg/gateway"
	"github.com/sirupsen/logrus"
)

// PaymentIntentConfig holds configuration for payment initiation
type PaymentIntentConfig struct {
	DefaultCurrency string // used when the client omits currency
}

// DefaultPaymentIntentConfig returns default configuration
func DefaultPaymentIntentConfig() PaymentIntentConfig {
	return PaymentIntentConfig{DefaultCurrency: "usd"}
}

// PaymentIntentService creates or reuses the pending charge of a booking and
// hands the client what it needs to pay the gateway directly
type PaymentIntentService struct {
	resolver *BookingSnapshotService
	charges  ChargeStore
	gateway  gateway.Gateway
	audits   *PaymentAuditService
	config   PaymentIntentConfig
	logger   *logrus.Logger
}

// NewPaymentIntentService creates a new payment intent service
func NewPaymentIntentService(
	resolver *BookingSnapshotService,
	charges ChargeStore,
	gw gateway.Gateway,
	audits *PaymentAuditService,
	config PaymentIntentConfig,
	logger *logrus.Logger,
) *PaymentIntentService {
	return &PaymentIntentService{
		resolver: resolver,
		charges:  charges,
		gateway:  gw,
		audits:   audits,
		config:   config,
		logger:   logger,
	}
}

// ============================================================================
// INITIATE
// ============================================================================

// Initiate returns a client secret and client credential for the booking in req
func (s *PaymentIntentService) Initiate(
	ctx context.Context,
	userID uuid.UUID,
	req *models.InitiatePaymentRequest,
	meta models.RequestMeta,
) (*models.InitiatePaymentResponse, error) {
	startTime := time.Now()

	if req.Currency == "" {
		req.Currency = s.config.DefaultCurrency
	}
	ref, err := req.Validate()
	if err != nil {
		return nil, err
	}

	log := s.logger.WithFields(logrus.Fields{
		"user_id": userID,
		"booking": ref.String(),
	})

	// 1. Price quote
	snapshot, err := s.resolver.Resolve(ctx, userID, ref)
	if err != nil {
		return nil, err
	}
	amount := models.ToMinorUnits(snapshot.Total())

	// 2-3. Reuse the pending charge or create it
	charge, created, err := s.obtainPendingCharge(ctx, ref, amount, req.Currency)
	if err != nil {
		return nil, err
	}
	log = log.WithFields(logrus.Fields{
		"charge_id": charge.ID,
		"amount":    charge.TotalAmount,
		"currency":  charge.Currency,
		"reused":    !created,
	})

	// 4. Gateway charge handle carrying the reconciliation descriptor
	descriptor := models.NewReconciliationDescriptor(userID, ref, snapshot)
	handle, err := s.gateway.CreateChargeHandle(ctx, gateway.ChargeRequest{
		Amount:     charge.TotalAmount,
		Currency:   charge.Currency,
		CustomerID: req.CustomerID,
		Metadata:   descriptor.Metadata(),
	})
	if err != nil {
		return nil, s.failInitiation(ctx, log, charge, created, meta, startTime, "create charge handle", err)
	}

	if err := s.attachIntent(ctx, log, userID, charge, handle.IntentID); err != nil {
		return nil, err
	}

	// 5. Short-lived credential scoped to the customer
	credential, err := s.gateway.CreateClientCredential(ctx, req.CustomerID)
	if err != nil {
		return nil, s.failInitiation(ctx, log, charge, created, meta, startTime, "create client credential", err)
	}

	s.audits.Record(ctx, models.NewPaymentAudit(models.PaymentEventInitiated, models.PaymentSourceBackend).
		SetCharge(charge).
		SetGatewayIntent(handle.IntentID).
		SetProcessingTime(startTime), &meta)

	log.WithField("gateway_intent_id", handle.IntentID).Info("Payment intent initiated")

	return &models.InitiatePaymentResponse{
		ClientSecret:     handle.ClientSecret,
		ClientCredential: credential,
		CustomerID:       req.CustomerID,
		ChargeID:         charge.ID.String(),
		Amount:           charge.TotalAmount,
		Currency:         charge.Currency,
	}, nil
}

// obtainPendingCharge returns the booking's pending charge, creating it when
// absent. created reports whether this call inserted the row.
func (s *PaymentIntentService) obtainPendingCharge(
	ctx context.Context,
	ref models.BookingReference,
	amount int64,
	currency string,
) (charge *models.PendingCharge, created bool, err error) {
	existing, err := s.charges.GetLatest(ctx, ref)
	if err != nil {
		return nil, false, fmt.Errorf("failed to look up charge: %w", err)
	}

	if existing != nil {
		switch existing.Status {
		case models.ChargeStatusSuccess:
			return nil, false, models.ErrAlreadyPaid
		case models.ChargeStatusPending:
			if existing.Currency != currency {
				return nil, false, models.NewValidationError("currency",
					fmt.Sprintf("a pending charge in %s already exists for this booking", existing.Currency))
			}
			return existing, false, nil
		}
	}

	charge = models.NewPendingCharge(ref, amount, currency)
	err = s.charges.Create(ctx, charge)
	if err == nil {
		return charge, true, nil
	}
	if !errors.Is(err, models.ErrDuplicatePendingCharge) {
		return nil, false, fmt.Errorf("failed to create pending charge: %w", err)
	}

	// Lost the insert race: reuse the winner's row
	winner, err := s.charges.GetPending(ctx, ref)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load concurrent pending charge: %w", err)
	}
	if winner == nil {
		return nil, false, fmt.Errorf("pending charge for %s changed concurrently", ref)
	}
	return winner, false, nil
}

// attachIntent records intentID on the charge. If the row vanished in the
// meantime and the booking still exists, a fresh pending row is inserted so the
// handle has a charge to settle. A committed cancel deletes the booking too, in
// which case models.ErrNotFound is returned and nothing is inserted.
func (s *PaymentIntentService) attachIntent(
	ctx context.Context,
	log *logrus.Entry,
	userID uuid.UUID,
	charge *models.PendingCharge,
	intentID string,
) error {
	attached, err := s.charges.AttachGatewayIntent(ctx, charge.ID, intentID)
	if err != nil {
		log.WithError(err).Error("Failed to attach gateway intent")
		return fmt.Errorf("failed to attach gateway intent: %w", err)
	}
	if attached {
		charge.GatewayIntentID = &intentID
		return nil
	}

	ref := charge.BookingReference()
	latest, err := s.charges.GetLatest(ctx, ref)
	if err != nil {
		return fmt.Errorf("failed to look up charge: %w", err)
	}
	if latest != nil && latest.Status == models.ChargeStatusSuccess {
		return models.ErrAlreadyPaid
	}
	if latest != nil && latest.IsPending() {
		log.WithField("replacement_charge_id", latest.ID).Warn("Pending charge replaced concurrently; reusing replacement")
		*charge = *latest
		return nil
	}

	if _, err := s.resolver.Resolve(ctx, userID, ref); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			log.WithField("gateway_intent_id", intentID).Warn("Booking canceled during payment initiation; charge handle abandoned")
		}
		return err
	}

	fresh := models.NewPendingCharge(ref, charge.TotalAmount, charge.Currency)
	fresh.GatewayIntentID = &intentID
	err = s.charges.Create(ctx, fresh)
	if errors.Is(err, models.ErrDuplicatePendingCharge) {
		winner, getErr := s.charges.GetPending(ctx, ref)
		if getErr != nil {
			return fmt.Errorf("failed to load concurrent pending charge: %w", getErr)
		}
		if winner == nil {
			return fmt.Errorf("pending charge for %s changed concurrently", ref)
		}
		*charge = *winner
		return nil
	}
	if err != nil {
		log.WithError(err).Error("Failed to re-insert pending charge")
		return fmt.Errorf("failed to re-insert pending charge: %w", err)
	}

	log.WithField("replacement_charge_id", fresh.ID).Warn("Pending charge vanished before gateway intent was attached; re-inserted")
	*charge = *fresh
	return nil
}

// failInitiation compensates a row this call created and maps err to
// models.ErrGatewayUnavailable
func (s *PaymentIntentService) failInitiation(
	ctx context.Context,
	log *logrus.Entry,
	charge *models.PendingCharge,
	created bool,
	meta models.RequestMeta,
	startTime time.Time,
	step string,
	err error,
) error {
	log.WithError(err).WithField("step", step).Error("Gateway call failed during payment initiation")

	if created {
		deleted, delErr := s.charges.DeleteUnattached(context.WithoutCancel(ctx), charge.ID)
		switch {
		case delErr != nil:
			log.WithError(delErr).Error("Compensating delete of pending charge failed")
		case deleted:
			log.Info("Compensating delete removed pending charge")
		}
	}

	s.audits.Record(ctx, models.NewPaymentAudit(models.PaymentEventInitiationFailed, models.PaymentSourceStripeAPI).
		SetCharge(charge).
		SetError(err).
		SetProcessingTime(startTime), &meta)

	return fmt.Errorf("%w: %s: %v", models.ErrGatewayUnavailable, step, err)
}

// ============================================================================
// STATUS
// ============================================================================

// GetStatus reports the charge status of a booking owned by userID
func (s *PaymentIntentService) GetStatus(ctx context.Context, userID uuid.UUID, ref models.BookingReference) (*models.ChargeStatusResponse, error) {
	if _, err := s.resolver.Resolve(ctx, userID, ref); err != nil {
		return nil, err
	}

	charge, err := s.charges.GetLatest(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to look up charge: %w", err)
	}

	resp := &models.ChargeStatusResponse{Booking: ref, Status: models.ChargeStatusNone}
	if charge != nil {
		resp.Status = charge.Status
		resp.ChargeID = &charge.ID
		resp.Amount = &charge.TotalAmount
		resp.Currency = &charge.Currency
	}
	return resp, nil
}

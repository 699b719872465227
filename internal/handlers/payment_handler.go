package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/playfield/marketplace-backend/internal/middleware"
	"github.com/playfield/marketplace-backend/internal/models"
	"github.com/playfield/marketplace-backend/internal/utils"
	"github.com/sirupsen/logrus"
)

// StripeSignatureHeader carries the webhook signature
const StripeSignatureHeader = "Stripe-Signature"

// PaymentInitiator starts payments and reports their status
type PaymentInitiator interface {
	Initiate(ctx context.Context, userID uuid.UUID, req *models.InitiatePaymentRequest, meta models.RequestMeta) (*models.InitiatePaymentResponse, error)
	GetStatus(ctx context.Context, userID uuid.UUID, ref models.BookingReference) (*models.ChargeStatusResponse, error)
}

// WebhookProcessor verifies and applies gateway webhooks
type WebhookProcessor interface {
	Handle(ctx context.Context, payload []byte, signature string, meta models.RequestMeta) error
}

// PaymentHandler handles payment intent, status and webhook endpoints
type PaymentHandler struct {
	payments        PaymentInitiator
	webhooks        WebhookProcessor
	maxWebhookBytes int64
	logger          *logrus.Logger
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(
	payments PaymentInitiator,
	webhooks WebhookProcessor,
	maxWebhookBytes int64,
	logger *logrus.Logger,
) *PaymentHandler {
	if maxWebhookBytes <= 0 {
		maxWebhookBytes = 64 << 10
	}
	return &PaymentHandler{
		payments:        payments,
		webhooks:        webhooks,
		maxWebhookBytes: maxWebhookBytes,
		logger:          logger,
	}
}

// ============================================================================
// CREATE INTENT - POST /api/v1/payments/intent
// ============================================================================

// CreateIntent creates or reuses the pending charge of a booking
// @Summary Create payment intent
// @Tags Payments
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Param request body models.InitiatePaymentRequest true "Booking to pay"
// @Success 200 {object} models.InitiatePaymentResponse
// @Failure 400 {object} map[string]interface{} "Validation error"
// @Failure 404 {object} map[string]interface{} "Booking not found"
// @Failure 409 {object} map[string]interface{} "Booking already paid"
// @Failure 503 {object} map[string]interface{} "Payment gateway unavailable"
// @Router /payments/intent [post]
func (h *PaymentHandler) CreateIntent(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	var req models.InitiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error(), "code": "VALIDATION_ERROR"})
		return
	}

	response, err := h.payments.Initiate(c.Request.Context(), userCtx.UserID, &req, utils.RequestMetaFromContext(c))
	if err != nil {
		h.respondPaymentError(c, err, "Failed to initiate payment")
		return
	}

	c.JSON(http.StatusOK, response)
}

// ============================================================================
// CHARGE STATUS - GET /api/v1/payments/status
// ============================================================================

// GetChargeStatus reports the charge status of one booking
// @Summary Get charge status
// @Tags Payments
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Param trainer_booking_id query string false "Trainer booking ID"
// @Param facility_booking_id query string false "Facility booking ID"
// @Success 200 {object} models.ChargeStatusResponse
// @Failure 400 {object} map[string]interface{} "Validation error"
// @Failure 404 {object} map[string]interface{} "Booking not found"
// @Router /payments/status [get]
func (h *PaymentHandler) GetChargeStatus(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	trainerBookingID, err := optionalUUIDQuery(c, "trainer_booking_id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid trainer_booking_id", "code": "VALIDATION_ERROR"})
		return
	}
	facilityBookingID, err := optionalUUIDQuery(c, "facility_booking_id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid facility_booking_id", "code": "VALIDATION_ERROR"})
		return
	}

	ref, err := models.NewBookingReference(trainerBookingID, facilityBookingID)
	if err != nil {
		h.respondPaymentError(c, err, "Invalid booking reference")
		return
	}

	status, err := h.payments.GetStatus(c.Request.Context(), userCtx.UserID, ref)
	if err != nil {
		h.respondPaymentError(c, err, "Failed to get charge status")
		return
	}

	c.JSON(http.StatusOK, status)
}

// ============================================================================
// WEBHOOK - POST /api/v1/payments/webhook
// ============================================================================

// Webhook receives payment gateway events. It is authenticated by signature only.
// @Summary Payment gateway webhook
// @Tags Payments
// @Accept json
// @Produce json
// @Param Stripe-Signature header string true "Webhook signature"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{} "Signature verification failed"
// @Failure 500 {object} map[string]interface{} "Store failure, retry later"
// @Router /payments/webhook [post]
func (h *PaymentHandler) Webhook(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxWebhookBytes)
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.logger.WithField("limit", maxErr.Limit).Warn("Webhook body too large")
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "payload too large"})
			return
		}
		h.logger.WithError(err).Warn("Failed to read webhook body")
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	err = h.webhooks.Handle(c.Request.Context(), payload, c.GetHeader(StripeSignatureHeader), utils.RequestMetaFromContext(c))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"received": true})
	case errors.Is(err, models.ErrSignatureInvalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature", "code": "SIGNATURE_INVALID"})
	default:
		h.logger.WithError(err).Error("Webhook processing failed; gateway will retry")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "processing failed"})
	}
}

// respondPaymentError maps service errors to HTTP responses
func (h *PaymentHandler) respondPaymentError(c *gin.Context, err error, msg string) {
	var validationErr *models.ValidationError
	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Error(), "field": validationErr.Field, "code": "VALIDATION_ERROR"})
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "booking not found", "code": "NOT_FOUND"})
	case errors.Is(err, models.ErrAlreadyPaid):
		c.JSON(http.StatusConflict, gin.H{"error": "booking already paid", "code": "ALREADY_PAID"})
	case errors.Is(err, models.ErrGatewayUnavailable):
		h.logger.WithError(err).Warn(msg)
		c.Header("Retry-After", "5")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "payment gateway unavailable, please retry", "code": "GATEWAY_UNAVAILABLE"})
	default:
		h.logger.WithError(err).Error(msg)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func optionalUUIDQuery(c *gin.Context, key string) (*uuid.UUID, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

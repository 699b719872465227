package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/playfield/marketplace-backend/internal/middleware"
	"github.com/playfield/marketplace-backend/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	defaultNotificationLimit = 20
	maxNotificationLimit     = 100
)

// NotificationLister reads a user's notifications
type NotificationLister interface {
	ListByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]models.Notification, error)
}

// NotificationHandler serves pull-based notification retrieval
type NotificationHandler struct {
	notifications NotificationLister
	logger        *logrus.Logger
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(notifications NotificationLister, logger *logrus.Logger) *NotificationHandler {
	return &NotificationHandler{notifications: notifications, logger: logger}
}

// List returns the caller's notifications, newest first
// @Summary List notifications
// @Tags Notifications
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Param limit query int false "Page size (max 100)"
// @Param offset query int false "Offset"
// @Param unread_only query bool false "Only unread notifications"
// @Success 200 {object} models.NotificationListResponse
// @Router /notifications [get]
func (h *NotificationHandler) List(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultNotificationLimit)))
	if err != nil || limit < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer", "code": "VALIDATION_ERROR"})
		return
	}
	if limit > maxNotificationLimit {
		limit = maxNotificationLimit
	}

	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "offset must be a non-negative integer", "code": "VALIDATION_ERROR"})
		return
	}

	unreadOnly, err := strconv.ParseBool(c.DefaultQuery("unread_only", "false"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unread_only must be a boolean", "code": "VALIDATION_ERROR"})
		return
	}

	notifications, err := h.notifications.ListByUser(c.Request.Context(), userCtx.UserID, unreadOnly, limit, offset)
	if err != nil {
		h.logger.WithError(err).WithField("user_id", userCtx.UserID).Error("Failed to list notifications")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, models.NotificationListResponse{
		Notifications: notifications,
		Limit:         limit,
		Offset:        offset,
	})
}

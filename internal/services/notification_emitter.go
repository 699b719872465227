package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/playfield/marketplace-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// notificationPush is the payload sent over a user's real-time channel
type notificationPush struct {
	Type         string               `json:"type"`
	Notification *models.Notification `json:"notification"`
}

// NotificationEmitter pushes committed notifications to connected users.
// Delivery is fire-and-forget: offline users pick notifications up through the
// list endpoint.
type NotificationEmitter struct {
	channels ChannelRegistry
	timeout  time.Duration
	logger   *logrus.Logger
}

// NewNotificationEmitter creates a new notification emitter. A nil registry
// treats every user as offline.
func NewNotificationEmitter(channels ChannelRegistry, timeout time.Duration, logger *logrus.Logger) *NotificationEmitter {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &NotificationEmitter{channels: channels, timeout: timeout, logger: logger}
}

// Deliver pushes n to userID's live channel if there is one. It never returns
// an error and never panics.
func (e *NotificationEmitter) Deliver(ctx context.Context, userID uuid.UUID, n *models.Notification) {
	if e == nil || e.channels == nil || n == nil {
		return
	}

	log := e.logger.WithFields(logrus.Fields{
		"user_id":         userID,
		"notification_id": n.ID,
	})
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("Notification push panicked")
		}
	}()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
	defer cancel()

	handle, ok, err := e.channels.Lookup(ctx, userID)
	if err != nil {
		log.WithError(err).Warn("Channel lookup failed")
		return
	}
	if !ok {
		log.Debug("User offline; notification left for pull retrieval")
		return
	}

	payload, err := json.Marshal(notificationPush{Type: "notification", Notification: n})
	if err != nil {
		log.WithError(err).Error("Failed to encode notification")
		return
	}

	if err := e.channels.Push(ctx, handle, payload); err != nil {
		log.WithError(err).WithField("channel", handle).Warn("Notification push failed")
		return
	}
	log.WithField("channel", handle).Debug("Notification pushed")
}

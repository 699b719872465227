package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/playfield/marketplace-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testNotification(userID uuid.UUID) *models.Notification {
	session := &models.ConfirmedSession{
		ID:        uuid.New(),
		Name:      "Ana Silva's session at Court 3",
		StartTime: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
	}
	return models.NewSessionConfirmedNotification(userID, session)
}

func TestNotificationEmitter_PushesToOnlineUser(t *testing.T) {
	userID := uuid.New()
	registry := &fakeRegistry{handles: map[uuid.UUID]string{userID: "presence:user:abc"}}
	emitter := NewNotificationEmitter(registry, time.Second, quietLogger())
	n := testNotification(userID)

	emitter.Deliver(context.Background(), userID, n)

	require.Len(t, registry.pushes, 1)
	assert.Equal(t, "presence:user:abc", registry.pushes[0].handle)

	var payload struct {
		Type         string              `json:"type"`
		Notification models.Notification `json:"notification"`
	}
	require.NoError(t, json.Unmarshal(registry.pushes[0].payload, &payload))
	assert.Equal(t, "notification", payload.Type)
	assert.Equal(t, n.ID, payload.Notification.ID)
	assert.Equal(t, n.DeepLink, payload.Notification.DeepLink)
}

func TestNotificationEmitter_OfflineUserIsNoOp(t *testing.T) {
	registry := &fakeRegistry{handles: map[uuid.UUID]string{}}
	emitter := NewNotificationEmitter(registry, time.Second, quietLogger())

	emitter.Deliver(context.Background(), uuid.New(), testNotification(uuid.New()))

	assert.Zero(t, registry.pushCount())
}

func TestNotificationEmitter_NeverFails(t *testing.T) {
	userID := uuid.New()
	ctx := context.Background()

	tests := []struct {
		name     string
		registry *fakeRegistry
	}{
		{name: "Lookup error", registry: &fakeRegistry{lookupErr: errors.New("redis: connection refused")}},
		{name: "Push error", registry: &fakeRegistry{handles: map[uuid.UUID]string{userID: "h"}, pushErr: errors.New("redis: timeout")}},
		{name: "Registry panic", registry: &fakeRegistry{panicOn: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			emitter := NewNotificationEmitter(tt.registry, time.Second, quietLogger())
			assert.NotPanics(t, func() {
				emitter.Deliver(ctx, userID, testNotification(userID))
			})
		})
	}
}

func TestNotificationEmitter_CanceledCallerContext(t *testing.T) {
	userID := uuid.New()
	registry := &fakeRegistry{handles: map[uuid.UUID]string{userID: "h"}}
	emitter := NewNotificationEmitter(registry, time.Second, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	emitter.Deliver(ctx, userID, testNotification(userID))

	assert.Equal(t, 1, registry.pushCount())
}

func TestNotificationEmitter_NilRegistry(t *testing.T) {
	emitter := NewNotificationEmitter(nil, 0, quietLogger())
	assert.NotPanics(t, func() {
		emitter.Deliver(context.Background(), uuid.New(), testNotification(uuid.New()))
	})

	var nilEmitter *NotificationEmitter
	assert.NotPanics(t, func() {
		nilEmitter.Deliver(context.Background(), uuid.New(), testNotification(uuid.New()))
	})
}

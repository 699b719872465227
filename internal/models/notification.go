package models

import (
	"time"

	"github.com/google/uuid"
)

// Notification is an in-app message for one user
type Notification struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	Title     string    `json:"title" db:"title"`
	Body      string    `json:"body" db:"body"`
	DeepLink  string    `json:"deep_link" db:"deep_link"`
	IsRead    bool      `json:"is_read" db:"is_read"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// NewSessionConfirmedNotification tells the paying user their session is booked
func NewSessionConfirmedNotification(userID uuid.UUID, session *ConfirmedSession) *Notification {
	return &Notification{
		ID:        uuid.New(),
		UserID:    userID,
		Title:     "Session confirmed",
		Body:      "Your payment went through. " + session.Name + " on " + session.StartTime.Format("Mon Jan 2, 15:04") + " is booked.",
		DeepLink:  "/sessions/" + session.ID.String(),
		IsRead:    false,
		CreatedAt: time.Now().UTC(),
	}
}

// NotificationListResponse is returned by GET /notifications
type NotificationListResponse struct {
	Notifications []Notification `json:"notifications"`
	Limit         int            `json:"limit"`
	Offset        int            `json:"offset"`
}

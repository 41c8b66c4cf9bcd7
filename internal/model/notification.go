package model

import "github.com/google/uuid"

type NotificationStatus string

const (
	NotificationStatusSent    NotificationStatus = "sent"
	NotificationStatusSkipped NotificationStatus = "skipped"
	NotificationStatusFailed  NotificationStatus = "failed"
)

// Notification is one e-mail rendered from a domain event.
type Notification struct {
	EventID   uuid.UUID
	EventType string
	Recipient string
	Subject   string
	Body      string
}

package events

import (
	"time"

	"github.com/google/uuid"
)

// Notification is the payload of notification:new. Clients filter on Recipient.
type Notification struct {
	ID        string    `json:"id"`
	Recipient string    `json:"recipient"`
	Kind      string    `json:"kind"`
	RecordID  string    `json:"recordId"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// StatusNotification tells the record's creator that its status changed.
func StatusNotification(recipient, kind, recordID, title, fromLabel, toLabel, reason string, now time.Time) Notification {
	msg := kind + " moved from " + fromLabel + " to " + toLabel
	if reason != "" {
		msg += ": " + reason
	}
	return Notification{
		ID:        uuid.NewString(),
		Recipient: recipient,
		Kind:      kind,
		RecordID:  recordID,
		Title:     title,
		Message:   msg,
		CreatedAt: now,
	}
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// Conversation statuses.
const (
	ConversationActive   = "active"
	ConversationArchived = "archived"
)

// Conversation is a guest-host message thread tied to a property.
type Conversation struct {
	ID            uuid.UUID  `json:"id"`
	PropertyID    uuid.UUID  `json:"property_id"`
	GuestName     string     `json:"guest_name"`
	GuestPhone    string     `json:"guest_phone"`
	GuestNumber   string     `json:"guest_number"`
	CheckInDate   *string    `json:"check_in_date"`  // YYYY-MM-DD
	CheckOutDate  *string    `json:"check_out_date"` // YYYY-MM-DD
	Status        string     `json:"status"`
	LastMessage   string     `json:"last_message,omitempty"`
	LastMessageAt *time.Time `json:"last_message_at"`
	UnreadCount   int        `json:"unread_count"`
	CreatedAt     time.Time  `json:"created_at"`
}

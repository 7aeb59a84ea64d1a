package models

import (
	"time"

	"github.com/google/uuid"
)

// Emergency severities, most severe first.
const (
	SeverityImmediate = "immediate"
	SeverityUrgent    = "urgent"
	SeverityStandard  = "standard"
)

// Emergency notification statuses.
const (
	NotificationPending = "pending"
	NotificationSent    = "sent"
	NotificationFailed  = "failed"
)

// EmergencyDetails is the payload a manager alert is built from.
type EmergencyDetails struct {
	Message          string   `json:"message"`
	Severity         string   `json:"severity"`
	DetectedKeywords []string `json:"detectedKeywords"`
}

// EmergencyNotification records an alert sent to a property manager.
type EmergencyNotification struct {
	ID           uuid.UUID        `json:"id"`
	PropertyID   uuid.UUID        `json:"property_id"`
	ManagerEmail string           `json:"manager_email"`
	ManagerPhone string           `json:"manager_phone"`
	Details      EmergencyDetails `json:"emergency_details"`
	Status       string           `json:"status"`
	CreatedAt    time.Time        `json:"created_at"`
}

// EmergencyLog records a guest message flagged by keyword detection.
type EmergencyLog struct {
	ID               uuid.UUID  `json:"id"`
	ConversationID   *uuid.UUID `json:"conversation_id,omitempty"`
	Message          string     `json:"message"`
	Severity         string     `json:"severity"`
	DetectedKeywords []string   `json:"detected_keywords"`
	CreatedAt        time.Time  `json:"created_at"`
}

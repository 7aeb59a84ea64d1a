package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Property represents a managed rental unit.
type Property struct {
	ID             uuid.UUID       `json:"id"`
	HostID         uuid.UUID       `json:"host_id"`
	Name           string          `json:"name"`
	Address        string          `json:"address"`
	Description    string          `json:"description,omitempty"`
	AIInstructions string          `json:"ai_instructions,omitempty"`
	Language       string          `json:"language,omitempty"`
	Amenities      json.RawMessage `json:"amenities,omitempty"`
	Rules          json.RawMessage `json:"rules,omitempty"`
	FAQ            json.RawMessage `json:"faq,omitempty"`
	ManagerEmail   string          `json:"manager_email,omitempty"`
	ManagerPhone   string          `json:"manager_phone,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

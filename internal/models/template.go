package models

import (
	"time"

	"github.com/google/uuid"
)

// Template is a pre-approved WhatsApp message template.
type Template struct {
	ID        uuid.UUID  `json:"id"`
	HostID    *uuid.UUID `json:"host_id,omitempty"`
	Namespace string     `json:"namespace,omitempty"`
	Name      string     `json:"name"`
	Language  string     `json:"language"`
	Content   string     `json:"content"`
	CreatedAt time.Time  `json:"created_at"`
}

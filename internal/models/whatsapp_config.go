package models

import (
	"time"

	"github.com/google/uuid"
)

// WhatsAppConfig stores the Cloud API credentials used for outbound sends.
// The most recently created row is the active one.
type WhatsAppConfig struct {
	ID            uuid.UUID `json:"id"`
	PhoneNumberID string    `json:"phone_number_id"`
	Token         string    `json:"token"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Complete reports whether both credentials are present.
func (c *WhatsAppConfig) Complete() bool {
	return c.PhoneNumberID != "" && c.Token != ""
}

// MaskedToken returns the token with everything but the first and last four
// characters elided.
func (c *WhatsAppConfig) MaskedToken() string {
	if len(c.Token) <= 8 {
		return "****"
	}
	return c.Token[:4] + "..." + c.Token[len(c.Token)-4:]
}

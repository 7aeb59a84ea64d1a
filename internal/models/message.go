package models

import (
	"time"

	"github.com/google/uuid"
)

// Message directions.
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
	DirectionSystem   = "system"
)

// Message types.
const (
	MessageTypeText     = "text"
	MessageTypeTemplate = "template"
	MessageTypeOther    = "other"
)

// Message delivery statuses. Outbound statuses follow the WhatsApp status callbacks.
const (
	StatusReceived  = "received"
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusRead      = "read"
	StatusFailed    = "failed"
)

// StatusRank orders outbound delivery statuses. A status callback only moves a
// message to a higher rank, so failed is final. Unknown statuses rank 0.
func StatusRank(status string) int {
	switch status {
	case StatusSent:
		return 1
	case StatusDelivered:
		return 2
	case StatusRead:
		return 3
	case StatusFailed:
		return 4
	}
	return 0
}

// Metadata keys shared between the webhook, the senders and the analyzer.
const (
	MetaWhatsAppMessageID = "whatsapp_message_id"
	MetaAnalysis          = "analysis"
)

// TemplatePreviewPrefix starts the content stored for template sends.
const TemplatePreviewPrefix = "Template envoyé: "

// Message is a single entry of a conversation. ConversationID is nil for
// sends that were not attached to a known thread.
type Message struct {
	ID             uuid.UUID      `json:"id"`
	ConversationID *uuid.UUID     `json:"conversation_id"`
	Content        string         `json:"content"`
	Direction      string         `json:"direction"`
	Type           string         `json:"type"`
	Status         string         `json:"status"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

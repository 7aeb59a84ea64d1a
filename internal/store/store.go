package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/rukayathamzat/Airhost2402-sub001/internal/crypto"
	"github.com/rukayathamzat/Airhost2402-sub001/internal/models"
)

// DataStore defines the interface for persistent storage of the messaging records.
// Both PostgresStore and SQLiteStore implement this interface.
//
// Lookups return (nil, nil) when the record does not exist. Host-scoped
// queries take a nil host to mean "every host" (service role callers).
type DataStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// Property operations
	CreateProperty(ctx context.Context, p *models.Property) error
	GetProperty(ctx context.Context, id uuid.UUID) (*models.Property, error)
	ListProperties(ctx context.Context, hostID *uuid.UUID) ([]models.Property, error)
	FirstProperty(ctx context.Context) (*models.Property, error)

	// Conversation operations
	CreateConversation(ctx context.Context, c *models.Conversation) error
	GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
	FindConversationByPhone(ctx context.Context, phone string) (*models.Conversation, error)
	FindSimilarConversation(ctx context.Context, propertyID uuid.UUID, guestPhone string, checkIn, checkOut *string) (*models.Conversation, error)
	ListConversations(ctx context.Context, hostID *uuid.UUID, limit, offset int) ([]models.Conversation, error)
	RecordInbound(ctx context.Context, id uuid.UUID, preview string) error
	RecordOutbound(ctx context.Context, id uuid.UUID, preview string) error
	MarkConversationRead(ctx context.Context, id uuid.UUID) error

	// Message operations
	CreateMessage(ctx context.Context, m *models.Message) error
	GetMessage(ctx context.Context, id uuid.UUID) (*models.Message, error)
	ListMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]models.Message, error)
	UpdateMessageStatusByWhatsAppID(ctx context.Context, whatsappID, status string) (bool, *uuid.UUID, error)
	SetMessageMetadata(ctx context.Context, id uuid.UUID, key string, value any) error
	SearchMessages(ctx context.Context, hostID *uuid.UUID, query string, limit int) ([]models.Message, error)

	// Template operations
	ListTemplates(ctx context.Context) ([]models.Template, error)
	CreateTemplate(ctx context.Context, t *models.Template) error

	// WhatsApp configuration
	LatestWhatsAppConfig(ctx context.Context) (*models.WhatsAppConfig, error)
	SaveWhatsAppConfig(ctx context.Context, phoneNumberID, token string) (*models.WhatsAppConfig, error)
	ListWhatsAppConfigs(ctx context.Context) ([]models.WhatsAppConfig, error)
	DeleteWhatsAppConfigs(ctx context.Context, ids []uuid.UUID) (int64, error)

	// Emergency operations
	CreateEmergencyNotification(ctx context.Context, n *models.EmergencyNotification) error
	UpdateEmergencyNotificationStatus(ctx context.Context, id uuid.UUID, status string) error
	CreateEmergencyLog(ctx context.Context, l *models.EmergencyLog) error

	// Push subscriptions
	SavePushSubscription(ctx context.Context, s *models.PushSubscription) error
	ListPushSubscriptions(ctx context.Context, userID uuid.UUID) ([]models.PushSubscription, error)
	GetPushSubscription(ctx context.Context, userID uuid.UUID, token string) (*models.PushSubscription, error)

	// Dashboard
	HostStats(ctx context.Context, hostID *uuid.UUID) (*models.HostStats, error)
}

// assignID fills a zero ID with a fresh UUIDv7 and returns the insert time.
func assignID(id *uuid.UUID) time.Time {
	if *id == uuid.Nil {
		*id = crypto.NewUUIDv7()
	}
	return time.Now().UTC()
}

// whatsappIDOf extracts the provider message ID kept alongside the metadata.
func whatsappIDOf(m *models.Message) *string {
	if m.Metadata == nil {
		return nil
	}
	id, ok := m.Metadata[models.MetaWhatsAppMessageID].(string)
	if !ok || id == "" {
		return nil
	}
	return &id
}

// searchPattern wraps a user query for a LIKE match, escaping wildcards.
func searchPattern(query string) string {
	r := []rune{}
	for _, c := range query {
		if c == '%' || c == '_' || c == '\\' {
			r = append(r, '\\')
		}
		r = append(r, c)
	}
	return "%" + string(r) + "%"
}

// statusRankSQL mirrors models.StatusRank for the stored status column.
const statusRankSQL = `CASE status
	WHEN 'sent' THEN 1 WHEN 'delivered' THEN 2 WHEN 'read' THEN 3 WHEN 'failed' THEN 4
	ELSE 0 END`

var (
	_ DataStore = (*PostgresStore)(nil)
	_ DataStore = (*SQLiteStore)(nil)
)

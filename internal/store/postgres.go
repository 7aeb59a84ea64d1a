package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rukayathamzat/Airhost2402-sub001/internal/models"
)

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const pgPropertyColumns = `id, host_id, name, address, description, ai_instructions, language,
	amenities, rules, faq, manager_email, manager_phone, created_at, updated_at`

func scanPGProperty(row pgx.Row) (*models.Property, error) {
	p := &models.Property{}
	err := row.Scan(
		&p.ID,
		&p.HostID,
		&p.Name,
		&p.Address,
		&p.Description,
		&p.AIInstructions,
		&p.Language,
		&p.Amenities,
		&p.Rules,
		&p.FAQ,
		&p.ManagerEmail,
		&p.ManagerPhone,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// CreateProperty inserts a property.
func (s *PostgresStore) CreateProperty(ctx context.Context, p *models.Property) error {
	now := assignID(&p.ID)
	p.CreatedAt, p.UpdatedAt = now, now
	if p.Language == "" {
		p.Language = "fr"
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO properties (id, host_id, name, address, description, ai_instructions, language,
			amenities, rules, faq, manager_email, manager_phone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, p.ID, p.HostID, p.Name, p.Address, p.Description, p.AIInstructions, p.Language,
		jsonOrNil(p.Amenities), jsonOrNil(p.Rules), jsonOrNil(p.FAQ),
		p.ManagerEmail, p.ManagerPhone, p.CreatedAt, p.UpdatedAt)
	return err
}

// GetProperty retrieves a property by ID.
func (s *PostgresStore) GetProperty(ctx context.Context, id uuid.UUID) (*models.Property, error) {
	p, err := scanPGProperty(s.pool.QueryRow(ctx,
		`SELECT `+pgPropertyColumns+` FROM properties WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

// ListProperties returns the properties of a host, or all of them when hostID is nil.
func (s *PostgresStore) ListProperties(ctx context.Context, hostID *uuid.UUID) ([]models.Property, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+pgPropertyColumns+`
		FROM properties
		WHERE $1::uuid IS NULL OR host_id = $1
		ORDER BY name
	`, hostID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var properties []models.Property
	for rows.Next() {
		p, err := scanPGProperty(rows)
		if err != nil {
			return nil, err
		}
		properties = append(properties, *p)
	}
	return properties, rows.Err()
}

// FirstProperty returns the oldest property, used as the fallback owner of
// conversations opened by unknown numbers.
func (s *PostgresStore) FirstProperty(ctx context.Context) (*models.Property, error) {
	p, err := scanPGProperty(s.pool.QueryRow(ctx,
		`SELECT `+pgPropertyColumns+` FROM properties ORDER BY created_at LIMIT 1`))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

const pgConversationColumns = `c.id, c.property_id, c.guest_name, c.guest_phone, c.guest_number,
	c.check_in_date, c.check_out_date, c.status, c.last_message, c.last_message_at,
	c.unread_count, c.created_at`

func scanPGConversation(row pgx.Row) (*models.Conversation, error) {
	c := &models.Conversation{}
	err := row.Scan(
		&c.ID,
		&c.PropertyID,
		&c.GuestName,
		&c.GuestPhone,
		&c.GuestNumber,
		&c.CheckInDate,
		&c.CheckOutDate,
		&c.Status,
		&c.LastMessage,
		&c.LastMessageAt,
		&c.UnreadCount,
		&c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *PostgresStore) queryConversation(ctx context.Context, query string, args ...any) (*models.Conversation, error) {
	c, err := scanPGConversation(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

// CreateConversation inserts a conversation.
func (s *PostgresStore) CreateConversation(ctx context.Context, c *models.Conversation) error {
	c.CreatedAt = assignID(&c.ID)
	if c.Status == "" {
		c.Status = models.ConversationActive
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO conversations (id, property_id, guest_name, guest_phone, guest_number,
			check_in_date, check_out_date, status, last_message, last_message_at, unread_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, c.ID, c.PropertyID, c.GuestName, c.GuestPhone, c.GuestNumber,
		c.CheckInDate, c.CheckOutDate, c.Status, c.LastMessage, c.LastMessageAt, c.UnreadCount, c.CreatedAt)
	return err
}

// GetConversation retrieves a conversation by ID.
func (s *PostgresStore) GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	return s.queryConversation(ctx,
		`SELECT `+pgConversationColumns+` FROM conversations c WHERE c.id = $1`, id)
}

// FindConversationByPhone returns the most recently active conversation whose
// guest phone or guest number matches.
func (s *PostgresStore) FindConversationByPhone(ctx context.Context, phone string) (*models.Conversation, error) {
	return s.queryConversation(ctx, `
		SELECT `+pgConversationColumns+`
		FROM conversations c
		WHERE c.guest_phone = $1 OR c.guest_number = $1
		ORDER BY c.last_message_at DESC NULLS LAST, c.created_at DESC
		LIMIT 1
	`, phone)
}

// FindSimilarConversation looks for a conversation with the same property,
// guest phone and stay dates. Nil dates match NULL columns.
func (s *PostgresStore) FindSimilarConversation(ctx context.Context, propertyID uuid.UUID, guestPhone string, checkIn, checkOut *string) (*models.Conversation, error) {
	return s.queryConversation(ctx, `
		SELECT `+pgConversationColumns+`
		FROM conversations c
		WHERE c.property_id = $1
			AND c.guest_phone = $2
			AND c.check_in_date IS NOT DISTINCT FROM $3::text
			AND c.check_out_date IS NOT DISTINCT FROM $4::text
		ORDER BY c.created_at DESC
		LIMIT 1
	`, propertyID, guestPhone, checkIn, checkOut)
}

// ListConversations returns conversations newest activity first.
func (s *PostgresStore) ListConversations(ctx context.Context, hostID *uuid.UUID, limit, offset int) ([]models.Conversation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+pgConversationColumns+`
		FROM conversations c
		JOIN properties p ON p.id = c.property_id
		WHERE $1::uuid IS NULL OR p.host_id = $1
		ORDER BY c.last_message_at DESC NULLS LAST, c.created_at DESC
		LIMIT $2 OFFSET $3
	`, hostID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conversations []models.Conversation
	for rows.Next() {
		c, err := scanPGConversation(rows)
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, *c)
	}
	return conversations, rows.Err()
}

// RecordInbound bumps the unread counter and the preview in one statement.
func (s *PostgresStore) RecordInbound(ctx context.Context, id uuid.UUID, preview string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE conversations
		SET unread_count = unread_count + 1, last_message = $2, last_message_at = NOW()
		WHERE id = $1
	`, id, preview)
	return err
}

// RecordOutbound updates the preview without touching the unread counter.
func (s *PostgresStore) RecordOutbound(ctx context.Context, id uuid.UUID, preview string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE conversations
		SET last_message = $2, last_message_at = NOW()
		WHERE id = $1
	`, id, preview)
	return err
}

// MarkConversationRead resets the unread counter.
func (s *PostgresStore) MarkConversationRead(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `UPDATE conversations SET unread_count = 0 WHERE id = $1`, id)
	return err
}

const pgMessageColumns = `m.id, m.conversation_id, m.content, m.direction, m.type, m.status, m.metadata, m.created_at`

func scanPGMessage(row pgx.Row) (*models.Message, error) {
	m := &models.Message{}
	err := row.Scan(
		&m.ID,
		&m.ConversationID,
		&m.Content,
		&m.Direction,
		&m.Type,
		&m.Status,
		&m.Metadata,
		&m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// CreateMessage inserts a message.
func (s *PostgresStore) CreateMessage(ctx context.Context, m *models.Message) error {
	m.CreatedAt = assignID(&m.ID)
	if m.Type == "" {
		m.Type = models.MessageTypeText
	}
	if m.Metadata == nil {
		m.Metadata = map[string]any{}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO messages (id, conversation_id, content, direction, type, status, whatsapp_message_id, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, m.ID, m.ConversationID, m.Content, m.Direction, m.Type, m.Status, whatsappIDOf(m), m.Metadata, m.CreatedAt)
	return err
}

// ListMessages returns the newest messages of a conversation in chronological order.
func (s *PostgresStore) ListMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]models.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT * FROM (
			SELECT `+pgMessageColumns+`
			FROM messages m
			WHERE m.conversation_id = $1
			ORDER BY m.created_at DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC
	`, conversationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectPGMessages(rows)
}

func collectPGMessages(rows pgx.Rows) ([]models.Message, error) {
	var messages []models.Message
	for rows.Next() {
		m, err := scanPGMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *m)
	}
	return messages, rows.Err()
}

// GetMessage looks up a message by ID.
func (s *PostgresStore) GetMessage(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	m, err := scanPGMessage(s.pool.QueryRow(ctx,
		`SELECT `+pgMessageColumns+` FROM messages m WHERE m.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return m, nil
}

// UpdateMessageStatusByWhatsAppID applies a delivery status callback when it
// moves the message forward. It reports whether a message changed and the
// conversation it belongs to.
func (s *PostgresStore) UpdateMessageStatusByWhatsAppID(ctx context.Context, whatsappID, status string) (bool, *uuid.UUID, error) {
	rank := models.StatusRank(status)
	if rank == 0 {
		return false, nil, nil
	}
	rows, err := s.pool.Query(ctx, `
		UPDATE messages SET status = $2
		WHERE whatsapp_message_id = $1 AND `+statusRankSQL+` < $3
		RETURNING conversation_id
	`, whatsappID, status, rank)
	if err != nil {
		return false, nil, err
	}
	defer rows.Close()

	updated := false
	var conversationID *uuid.UUID
	for rows.Next() {
		var id *uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return false, nil, err
		}
		updated = true
		if conversationID == nil {
			conversationID = id
		}
	}
	return updated, conversationID, rows.Err()
}

// SetMessageMetadata merges a single key into the message metadata.
func (s *PostgresStore) SetMessageMetadata(ctx context.Context, id uuid.UUID, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		UPDATE messages
		SET metadata = COALESCE(metadata, '{}'::jsonb) || jsonb_build_object($2::text, $3::jsonb)
		WHERE id = $1
	`, id, key, string(raw))
	return err
}

// SearchMessages finds messages whose content contains query, newest first.
func (s *PostgresStore) SearchMessages(ctx context.Context, hostID *uuid.UUID, query string, limit int) ([]models.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+pgMessageColumns+`
		FROM messages m
		JOIN conversations c ON c.id = m.conversation_id
		JOIN properties p ON p.id = c.property_id
		WHERE m.content ILIKE $2
			AND ($1::uuid IS NULL OR p.host_id = $1)
		ORDER BY m.created_at DESC
		LIMIT $3
	`, hostID, searchPattern(query), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectPGMessages(rows)
}

// ListTemplates returns all templates by name.
func (s *PostgresStore) ListTemplates(ctx context.Context) ([]models.Template, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, host_id, namespace, name, language, content, created_at
		FROM templates
		ORDER BY name, language
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var templates []models.Template
	for rows.Next() {
		var t models.Template
		if err := rows.Scan(&t.ID, &t.HostID, &t.Namespace, &t.Name, &t.Language, &t.Content, &t.CreatedAt); err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

// CreateTemplate inserts a template.
func (s *PostgresStore) CreateTemplate(ctx context.Context, t *models.Template) error {
	t.CreatedAt = assignID(&t.ID)
	_, err := s.pool.Exec(ctx, `
		INSERT INTO templates (id, host_id, namespace, name, language, content, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, t.ID, t.HostID, t.Namespace, t.Name, t.Language, t.Content, t.CreatedAt)
	return err
}

// LatestWhatsAppConfig returns the most recently saved credentials.
func (s *PostgresStore) LatestWhatsAppConfig(ctx context.Context) (*models.WhatsAppConfig, error) {
	c := &models.WhatsAppConfig{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, phone_number_id, token, created_at, updated_at
		FROM whatsapp_config
		ORDER BY updated_at DESC
		LIMIT 1
	`).Scan(&c.ID, &c.PhoneNumberID, &c.Token, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

// SaveWhatsAppConfig upserts credentials keyed on the phone number ID.
func (s *PostgresStore) SaveWhatsAppConfig(ctx context.Context, phoneNumberID, token string) (*models.WhatsAppConfig, error) {
	c := &models.WhatsAppConfig{}
	now := assignID(&c.ID)
	err := s.pool.QueryRow(ctx, `
		INSERT INTO whatsapp_config (id, phone_number_id, token, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (phone_number_id) DO UPDATE
		SET token = EXCLUDED.token, updated_at = EXCLUDED.updated_at
		RETURNING id, phone_number_id, token, created_at, updated_at
	`, c.ID, phoneNumberID, token, now).Scan(&c.ID, &c.PhoneNumberID, &c.Token, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ListWhatsAppConfigs returns every stored configuration, newest first.
func (s *PostgresStore) ListWhatsAppConfigs(ctx context.Context) ([]models.WhatsAppConfig, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, phone_number_id, token, created_at, updated_at
		FROM whatsapp_config
		ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []models.WhatsAppConfig
	for rows.Next() {
		var c models.WhatsAppConfig
		if err := rows.Scan(&c.ID, &c.PhoneNumberID, &c.Token, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		configs = append(configs, c)
	}
	return configs, rows.Err()
}

// DeleteWhatsAppConfigs removes the given configurations.
func (s *PostgresStore) DeleteWhatsAppConfigs(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	idStrs := make([]string, len(ids))
	for i, id := range ids {
		idStrs[i] = id.String()
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM whatsapp_config WHERE id = ANY($1::uuid[])`, idStrs)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// CreateEmergencyNotification records a manager alert.
func (s *PostgresStore) CreateEmergencyNotification(ctx context.Context, n *models.EmergencyNotification) error {
	n.CreatedAt = assignID(&n.ID)
	if n.Status == "" {
		n.Status = models.NotificationPending
	}
	details, err := json.Marshal(n.Details)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO emergency_notifications (id, property_id, manager_email, manager_phone, emergency_details, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, n.ID, n.PropertyID, n.ManagerEmail, n.ManagerPhone, string(details), n.Status, n.CreatedAt)
	return err
}

// UpdateEmergencyNotificationStatus sets the delivery status of an alert.
func (s *PostgresStore) UpdateEmergencyNotificationStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := s.pool.Exec(ctx, `UPDATE emergency_notifications SET status = $2 WHERE id = $1`, id, status)
	return err
}

// CreateEmergencyLog records a flagged guest message.
func (s *PostgresStore) CreateEmergencyLog(ctx context.Context, l *models.EmergencyLog) error {
	l.CreatedAt = assignID(&l.ID)
	keywords, err := json.Marshal(nonNilStrings(l.DetectedKeywords))
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO emergency_logs (id, conversation_id, message, severity, detected_keywords, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, l.ID, l.ConversationID, l.Message, l.Severity, string(keywords), l.CreatedAt)
	return err
}

// SavePushSubscription registers a device token. A token already known is
// reassigned to the caller.
func (s *PostgresStore) SavePushSubscription(ctx context.Context, sub *models.PushSubscription) error {
	now := assignID(&sub.ID)
	if sub.Platform == "" {
		sub.Platform = models.PlatformWeb
	}
	return s.pool.QueryRow(ctx, `
		INSERT INTO push_subscriptions (id, user_id, token, platform, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (token) DO UPDATE
		SET user_id = EXCLUDED.user_id, platform = EXCLUDED.platform
		RETURNING id, created_at
	`, sub.ID, sub.UserID, sub.Token, sub.Platform, now).Scan(&sub.ID, &sub.CreatedAt)
}

// ListPushSubscriptions returns every device registered by a user.
func (s *PostgresStore) ListPushSubscriptions(ctx context.Context, userID uuid.UUID) ([]models.PushSubscription, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, token, platform, created_at
		FROM push_subscriptions
		WHERE user_id = $1
		ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []models.PushSubscription
	for rows.Next() {
		var sub models.PushSubscription
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.Token, &sub.Platform, &sub.CreatedAt); err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// GetPushSubscription returns the subscription for a token owned by userID.
func (s *PostgresStore) GetPushSubscription(ctx context.Context, userID uuid.UUID, token string) (*models.PushSubscription, error) {
	sub := &models.PushSubscription{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, user_id, token, platform, created_at
		FROM push_subscriptions
		WHERE user_id = $1 AND token = $2
	`, userID, token).Scan(&sub.ID, &sub.UserID, &sub.Token, &sub.Platform, &sub.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return sub, nil
}

// HostStats computes the dashboard counters.
func (s *PostgresStore) HostStats(ctx context.Context, hostID *uuid.UUID) (*models.HostStats, error) {
	stats := &models.HostStats{}
	since := time.Now().UTC().Add(-24 * time.Hour)
	err := s.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM properties p WHERE $1::uuid IS NULL OR p.host_id = $1),
			(SELECT COUNT(*) FROM conversations c JOIN properties p ON p.id = c.property_id
				WHERE $1::uuid IS NULL OR p.host_id = $1),
			(SELECT COALESCE(SUM(c.unread_count), 0) FROM conversations c JOIN properties p ON p.id = c.property_id
				WHERE $1::uuid IS NULL OR p.host_id = $1),
			(SELECT COUNT(*) FROM messages m JOIN conversations c ON c.id = m.conversation_id
				JOIN properties p ON p.id = c.property_id
				WHERE m.created_at > $2 AND ($1::uuid IS NULL OR p.host_id = $1)),
			(SELECT MAX(c.last_message_at) FROM conversations c JOIN properties p ON p.id = c.property_id
				WHERE $1::uuid IS NULL OR p.host_id = $1)
	`, hostID, since).Scan(
		&stats.Properties,
		&stats.Conversations,
		&stats.Unread,
		&stats.Messages24h,
		&stats.LastActivity,
	)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// jsonOrNil stores empty documents as NULL.
func jsonOrNil(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func nonNilStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

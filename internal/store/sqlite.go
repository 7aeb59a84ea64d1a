package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/rukayathamzat/Airhost2402-sub001/internal/models"
)

// SQLiteStore handles SQLite database operations.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/airhost.db". ":memory:" opens a
// throwaway database.
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/airhost.db"
	}

	dsn := dbPath + "?_foreign_keys=on"
	if dbPath != ":memory:" {
		// Ensure directory exists
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
		dsn += "&_journal_mode=WAL"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	// One connection: writers are serialized by SQLite anyway and an
	// in-memory database lives only as long as its connection.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}

	// Initialize schema
	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS properties (
		id TEXT PRIMARY KEY,
		host_id TEXT NOT NULL,
		name TEXT NOT NULL,
		address TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		ai_instructions TEXT NOT NULL DEFAULT '',
		language TEXT NOT NULL DEFAULT 'fr',
		amenities TEXT,
		rules TEXT,
		faq TEXT,
		manager_email TEXT NOT NULL DEFAULT '',
		manager_phone TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		property_id TEXT NOT NULL REFERENCES properties(id) ON DELETE CASCADE,
		guest_name TEXT NOT NULL DEFAULT '',
		guest_phone TEXT NOT NULL,
		guest_number TEXT NOT NULL DEFAULT '',
		check_in_date TEXT,
		check_out_date TEXT,
		status TEXT NOT NULL DEFAULT 'active',
		last_message TEXT NOT NULL DEFAULT '',
		last_message_at DATETIME,
		unread_count INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		conversation_id TEXT REFERENCES conversations(id) ON DELETE CASCADE,
		content TEXT NOT NULL,
		direction TEXT NOT NULL,
		type TEXT NOT NULL DEFAULT 'text',
		status TEXT NOT NULL DEFAULT 'received',
		whatsapp_message_id TEXT,
		metadata TEXT NOT NULL DEFAULT '{}',
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS templates (
		id TEXT PRIMARY KEY,
		host_id TEXT,
		namespace TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL,
		language TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS whatsapp_config (
		id TEXT PRIMARY KEY,
		phone_number_id TEXT NOT NULL UNIQUE,
		token TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS emergency_notifications (
		id TEXT PRIMARY KEY,
		property_id TEXT NOT NULL REFERENCES properties(id) ON DELETE CASCADE,
		manager_email TEXT NOT NULL DEFAULT '',
		manager_phone TEXT NOT NULL DEFAULT '',
		emergency_details TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS emergency_logs (
		id TEXT PRIMARY KEY,
		conversation_id TEXT REFERENCES conversations(id) ON DELETE SET NULL,
		message TEXT NOT NULL,
		severity TEXT NOT NULL,
		detected_keywords TEXT NOT NULL DEFAULT '[]',
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS push_subscriptions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		token TEXT NOT NULL UNIQUE,
		platform TEXT NOT NULL DEFAULT 'web',
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_properties_host_id ON properties(host_id);
	CREATE INDEX IF NOT EXISTS idx_conversations_property_id ON conversations(property_id);
	CREATE INDEX IF NOT EXISTS idx_conversations_guest_phone ON conversations(guest_phone);
	CREATE INDEX IF NOT EXISTS idx_messages_conversation_created ON messages(conversation_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_messages_whatsapp_message_id ON messages(whatsapp_message_id);
	CREATE INDEX IF NOT EXISTS idx_push_subscriptions_user_id ON push_subscriptions(user_id);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

const sqlitePropertyColumns = `id, host_id, name, address, description, ai_instructions, language,
	amenities, rules, faq, manager_email, manager_phone, created_at, updated_at`

func scanSQLiteProperty(row rowScanner) (*models.Property, error) {
	p := &models.Property{}
	var amenities, rules, faq sql.NullString
	err := row.Scan(
		&p.ID,
		&p.HostID,
		&p.Name,
		&p.Address,
		&p.Description,
		&p.AIInstructions,
		&p.Language,
		&amenities,
		&rules,
		&faq,
		&p.ManagerEmail,
		&p.ManagerPhone,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Amenities = rawJSON(amenities)
	p.Rules = rawJSON(rules)
	p.FAQ = rawJSON(faq)
	return p, nil
}

// CreateProperty inserts a property.
func (s *SQLiteStore) CreateProperty(ctx context.Context, p *models.Property) error {
	now := assignID(&p.ID)
	p.CreatedAt, p.UpdatedAt = now, now
	if p.Language == "" {
		p.Language = "fr"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO properties (id, host_id, name, address, description, ai_instructions, language,
			amenities, rules, faq, manager_email, manager_phone, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID.String(), p.HostID.String(), p.Name, p.Address, p.Description, p.AIInstructions, p.Language,
		jsonOrNil(p.Amenities), jsonOrNil(p.Rules), jsonOrNil(p.FAQ),
		p.ManagerEmail, p.ManagerPhone, p.CreatedAt, p.UpdatedAt)
	return err
}

// GetProperty retrieves a property by ID.
func (s *SQLiteStore) GetProperty(ctx context.Context, id uuid.UUID) (*models.Property, error) {
	p, err := scanSQLiteProperty(s.db.QueryRowContext(ctx,
		`SELECT `+sqlitePropertyColumns+` FROM properties WHERE id = ?`, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

// ListProperties returns the properties of a host, or all of them when hostID is nil.
func (s *SQLiteStore) ListProperties(ctx context.Context, hostID *uuid.UUID) ([]models.Property, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sqlitePropertyColumns+`
		FROM properties
		WHERE ?1 IS NULL OR host_id = ?1
		ORDER BY name
	`, nullableID(hostID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var properties []models.Property
	for rows.Next() {
		p, err := scanSQLiteProperty(rows)
		if err != nil {
			return nil, err
		}
		properties = append(properties, *p)
	}
	return properties, rows.Err()
}

// FirstProperty returns the oldest property.
func (s *SQLiteStore) FirstProperty(ctx context.Context) (*models.Property, error) {
	p, err := scanSQLiteProperty(s.db.QueryRowContext(ctx,
		`SELECT `+sqlitePropertyColumns+` FROM properties ORDER BY created_at LIMIT 1`))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

const sqliteConversationColumns = `c.id, c.property_id, c.guest_name, c.guest_phone, c.guest_number,
	c.check_in_date, c.check_out_date, c.status, c.last_message, c.last_message_at,
	c.unread_count, c.created_at`

func scanSQLiteConversation(row rowScanner) (*models.Conversation, error) {
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

func (s *SQLiteStore) queryConversation(ctx context.Context, query string, args ...any) (*models.Conversation, error) {
	c, err := scanSQLiteConversation(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

// CreateConversation inserts a conversation.
func (s *SQLiteStore) CreateConversation(ctx context.Context, c *models.Conversation) error {
	c.CreatedAt = assignID(&c.ID)
	if c.Status == "" {
		c.Status = models.ConversationActive
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, property_id, guest_name, guest_phone, guest_number,
			check_in_date, check_out_date, status, last_message, last_message_at, unread_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID.String(), c.PropertyID.String(), c.GuestName, c.GuestPhone, c.GuestNumber,
		c.CheckInDate, c.CheckOutDate, c.Status, c.LastMessage, c.LastMessageAt, c.UnreadCount, c.CreatedAt)
	return err
}

// GetConversation retrieves a conversation by ID.
func (s *SQLiteStore) GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	return s.queryConversation(ctx,
		`SELECT `+sqliteConversationColumns+` FROM conversations c WHERE c.id = ?`, id.String())
}

// FindConversationByPhone returns the most recently active conversation whose
// guest phone or guest number matches.
func (s *SQLiteStore) FindConversationByPhone(ctx context.Context, phone string) (*models.Conversation, error) {
	return s.queryConversation(ctx, `
		SELECT `+sqliteConversationColumns+`
		FROM conversations c
		WHERE c.guest_phone = ?1 OR c.guest_number = ?1
		ORDER BY c.last_message_at DESC NULLS LAST, c.created_at DESC
		LIMIT 1
	`, phone)
}

// FindSimilarConversation looks for a conversation with the same property,
// guest phone and stay dates.
func (s *SQLiteStore) FindSimilarConversation(ctx context.Context, propertyID uuid.UUID, guestPhone string, checkIn, checkOut *string) (*models.Conversation, error) {
	return s.queryConversation(ctx, `
		SELECT `+sqliteConversationColumns+`
		FROM conversations c
		WHERE c.property_id = ? AND c.guest_phone = ?
			AND c.check_in_date IS ? AND c.check_out_date IS ?
		ORDER BY c.created_at DESC
		LIMIT 1
	`, propertyID.String(), guestPhone, checkIn, checkOut)
}

// ListConversations returns conversations newest activity first.
func (s *SQLiteStore) ListConversations(ctx context.Context, hostID *uuid.UUID, limit, offset int) ([]models.Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sqliteConversationColumns+`
		FROM conversations c
		JOIN properties p ON p.id = c.property_id
		WHERE ?1 IS NULL OR p.host_id = ?1
		ORDER BY c.last_message_at DESC NULLS LAST, c.created_at DESC
		LIMIT ?2 OFFSET ?3
	`, nullableID(hostID), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conversations []models.Conversation
	for rows.Next() {
		c, err := scanSQLiteConversation(rows)
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, *c)
	}
	return conversations, rows.Err()
}

// RecordInbound bumps the unread counter and the preview in one statement.
func (s *SQLiteStore) RecordInbound(ctx context.Context, id uuid.UUID, preview string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE conversations
		SET unread_count = unread_count + 1, last_message = ?, last_message_at = ?
		WHERE id = ?
	`, preview, time.Now().UTC(), id.String())
	return err
}

// RecordOutbound updates the preview without touching the unread counter.
func (s *SQLiteStore) RecordOutbound(ctx context.Context, id uuid.UUID, preview string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE conversations SET last_message = ?, last_message_at = ? WHERE id = ?
	`, preview, time.Now().UTC(), id.String())
	return err
}

// MarkConversationRead resets the unread counter.
func (s *SQLiteStore) MarkConversationRead(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `UPDATE conversations SET unread_count = 0 WHERE id = ?`, id.String())
	return err
}

const sqliteMessageColumns = `m.id, m.conversation_id, m.content, m.direction, m.type, m.status, m.metadata, m.created_at`

func scanSQLiteMessage(row rowScanner) (*models.Message, error) {
	m := &models.Message{}
	var metadata string
	err := row.Scan(
		&m.ID,
		&m.ConversationID,
		&m.Content,
		&m.Direction,
		&m.Type,
		&m.Status,
		&metadata,
		&m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if metadata != "" {
		if err := json.Unmarshal([]byte(metadata), &m.Metadata); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func collectSQLiteMessages(rows *sql.Rows) ([]models.Message, error) {
	var messages []models.Message
	for rows.Next() {
		m, err := scanSQLiteMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *m)
	}
	return messages, rows.Err()
}

// CreateMessage inserts a message.
func (s *SQLiteStore) CreateMessage(ctx context.Context, m *models.Message) error {
	m.CreatedAt = assignID(&m.ID)
	if m.Type == "" {
		m.Type = models.MessageTypeText
	}
	if m.Metadata == nil {
		m.Metadata = map[string]any{}
	}
	metadata, err := json.Marshal(m.Metadata)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, content, direction, type, status, whatsapp_message_id, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ID.String(), nullableID(m.ConversationID), m.Content, m.Direction, m.Type, m.Status,
		whatsappIDOf(m), string(metadata), m.CreatedAt)
	return err
}

// ListMessages returns the newest messages of a conversation in chronological order.
func (s *SQLiteStore) ListMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sqliteMessageColumns+`
		FROM messages m
		WHERE m.conversation_id = ?
		ORDER BY m.created_at DESC, m.id DESC
		LIMIT ?
	`, conversationID.String(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages, err := collectSQLiteMessages(rows)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// GetMessage looks up a message by ID.
func (s *SQLiteStore) GetMessage(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	m, err := scanSQLiteMessage(s.db.QueryRowContext(ctx,
		`SELECT `+sqliteMessageColumns+` FROM messages m WHERE m.id = ?`, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return m, nil
}

// UpdateMessageStatusByWhatsAppID applies a delivery status callback when it
// moves the message forward. It reports whether a message changed and the
// conversation it belongs to.
func (s *SQLiteStore) UpdateMessageStatusByWhatsAppID(ctx context.Context, whatsappID, status string) (bool, *uuid.UUID, error) {
	rank := models.StatusRank(status)
	if rank == 0 {
		return false, nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		UPDATE messages SET status = ?
		WHERE whatsapp_message_id = ? AND `+statusRankSQL+` < ?
		RETURNING conversation_id
	`, status, whatsappID, rank)
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
func (s *SQLiteStore) SetMessageMetadata(ctx context.Context, id uuid.UUID, key string, value any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var raw string
	err = tx.QueryRowContext(ctx, `SELECT metadata FROM messages WHERE id = ?`, id.String()).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return err
	}

	metadata := map[string]any{}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
			return err
		}
	}
	metadata[key] = value

	merged, err := json.Marshal(metadata)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE messages SET metadata = ? WHERE id = ?`, string(merged), id.String()); err != nil {
		return err
	}
	return tx.Commit()
}

// SearchMessages finds messages whose content contains query, newest first.
func (s *SQLiteStore) SearchMessages(ctx context.Context, hostID *uuid.UUID, query string, limit int) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sqliteMessageColumns+`
		FROM messages m
		JOIN conversations c ON c.id = m.conversation_id
		JOIN properties p ON p.id = c.property_id
		WHERE m.content LIKE ?2 ESCAPE '\'
			AND (?1 IS NULL OR p.host_id = ?1)
		ORDER BY m.created_at DESC
		LIMIT ?3
	`, nullableID(hostID), searchPattern(query), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectSQLiteMessages(rows)
}

// ListTemplates returns all templates by name.
func (s *SQLiteStore) ListTemplates(ctx context.Context) ([]models.Template, error) {
	rows, err := s.db.QueryContext(ctx, `
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
func (s *SQLiteStore) CreateTemplate(ctx context.Context, t *models.Template) error {
	t.CreatedAt = assignID(&t.ID)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO templates (id, host_id, namespace, name, language, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, t.ID.String(), nullableID(t.HostID), t.Namespace, t.Name, t.Language, t.Content, t.CreatedAt)
	return err
}

// LatestWhatsAppConfig returns the most recently saved credentials.
func (s *SQLiteStore) LatestWhatsAppConfig(ctx context.Context) (*models.WhatsAppConfig, error) {
	c := &models.WhatsAppConfig{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, phone_number_id, token, created_at, updated_at
		FROM whatsapp_config
		ORDER BY updated_at DESC
		LIMIT 1
	`).Scan(&c.ID, &c.PhoneNumberID, &c.Token, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

// SaveWhatsAppConfig upserts credentials keyed on the phone number ID.
func (s *SQLiteStore) SaveWhatsAppConfig(ctx context.Context, phoneNumberID, token string) (*models.WhatsAppConfig, error) {
	var id uuid.UUID
	now := assignID(&id)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO whatsapp_config (id, phone_number_id, token, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (phone_number_id) DO UPDATE
		SET token = excluded.token, updated_at = excluded.updated_at
	`, id.String(), phoneNumberID, token, now, now)
	if err != nil {
		return nil, err
	}

	c := &models.WhatsAppConfig{}
	err = s.db.QueryRowContext(ctx, `
		SELECT id, phone_number_id, token, created_at, updated_at
		FROM whatsapp_config WHERE phone_number_id = ?
	`, phoneNumberID).Scan(&c.ID, &c.PhoneNumberID, &c.Token, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ListWhatsAppConfigs returns every stored configuration, newest first.
func (s *SQLiteStore) ListWhatsAppConfigs(ctx context.Context) ([]models.WhatsAppConfig, error) {
	rows, err := s.db.QueryContext(ctx, `
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
func (s *SQLiteStore) DeleteWhatsAppConfigs(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id.String()
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM whatsapp_config WHERE id IN (`+strings.Join(placeholders, ", ")+`)`, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CreateEmergencyNotification records a manager alert.
func (s *SQLiteStore) CreateEmergencyNotification(ctx context.Context, n *models.EmergencyNotification) error {
	n.CreatedAt = assignID(&n.ID)
	if n.Status == "" {
		n.Status = models.NotificationPending
	}
	details, err := json.Marshal(n.Details)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO emergency_notifications (id, property_id, manager_email, manager_phone, emergency_details, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, n.ID.String(), n.PropertyID.String(), n.ManagerEmail, n.ManagerPhone, string(details), n.Status, n.CreatedAt)
	return err
}

// UpdateEmergencyNotificationStatus sets the delivery status of an alert.
func (s *SQLiteStore) UpdateEmergencyNotificationStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE emergency_notifications SET status = ? WHERE id = ?`, status, id.String())
	return err
}

// CreateEmergencyLog records a flagged guest message.
func (s *SQLiteStore) CreateEmergencyLog(ctx context.Context, l *models.EmergencyLog) error {
	l.CreatedAt = assignID(&l.ID)
	keywords, err := json.Marshal(nonNilStrings(l.DetectedKeywords))
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO emergency_logs (id, conversation_id, message, severity, detected_keywords, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, l.ID.String(), nullableID(l.ConversationID), l.Message, l.Severity, string(keywords), l.CreatedAt)
	return err
}

// SavePushSubscription registers a device token. A token already known is
// reassigned to the caller.
func (s *SQLiteStore) SavePushSubscription(ctx context.Context, sub *models.PushSubscription) error {
	now := assignID(&sub.ID)
	if sub.Platform == "" {
		sub.Platform = models.PlatformWeb
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO push_subscriptions (id, user_id, token, platform, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (token) DO UPDATE
		SET user_id = excluded.user_id, platform = excluded.platform
	`, sub.ID.String(), sub.UserID.String(), sub.Token, sub.Platform, now)
	if err != nil {
		return err
	}
	return s.db.QueryRowContext(ctx, `
		SELECT id, created_at FROM push_subscriptions WHERE token = ?
	`, sub.Token).Scan(&sub.ID, &sub.CreatedAt)
}

// ListPushSubscriptions returns every device registered by a user.
func (s *SQLiteStore) ListPushSubscriptions(ctx context.Context, userID uuid.UUID) ([]models.PushSubscription, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, token, platform, created_at
		FROM push_subscriptions
		WHERE user_id = ?
		ORDER BY created_at
	`, userID.String())
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
func (s *SQLiteStore) GetPushSubscription(ctx context.Context, userID uuid.UUID, token string) (*models.PushSubscription, error) {
	sub := &models.PushSubscription{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, token, platform, created_at
		FROM push_subscriptions
		WHERE user_id = ? AND token = ?
	`, userID.String(), token).Scan(&sub.ID, &sub.UserID, &sub.Token, &sub.Platform, &sub.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return sub, nil
}

// HostStats computes the dashboard counters.
func (s *SQLiteStore) HostStats(ctx context.Context, hostID *uuid.UUID) (*models.HostStats, error) {
	stats := &models.HostStats{}
	var lastActivity sql.NullString
	since := time.Now().UTC().Add(-24 * time.Hour)
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM properties p WHERE ?1 IS NULL OR p.host_id = ?1),
			(SELECT COUNT(*) FROM conversations c JOIN properties p ON p.id = c.property_id
				WHERE ?1 IS NULL OR p.host_id = ?1),
			(SELECT COALESCE(SUM(c.unread_count), 0) FROM conversations c JOIN properties p ON p.id = c.property_id
				WHERE ?1 IS NULL OR p.host_id = ?1),
			(SELECT COUNT(*) FROM messages m JOIN conversations c ON c.id = m.conversation_id
				JOIN properties p ON p.id = c.property_id
				WHERE m.created_at > ?2 AND (?1 IS NULL OR p.host_id = ?1)),
			(SELECT MAX(c.last_message_at) FROM conversations c JOIN properties p ON p.id = c.property_id
				WHERE ?1 IS NULL OR p.host_id = ?1)
	`, nullableID(hostID), since).Scan(
		&stats.Properties,
		&stats.Conversations,
		&stats.Unread,
		&stats.Messages24h,
		&lastActivity,
	)
	if err != nil {
		return nil, err
	}
	if lastActivity.Valid {
		if t, ok := parseSQLiteTime(lastActivity.String); ok {
			stats.LastActivity = &t
		}
	}
	return stats, nil
}

// parseSQLiteTime parses a timestamp returned from an aggregate, which
// carries no declared column type and so comes back as text.
func parseSQLiteTime(s string) (time.Time, bool) {
	for _, layout := range sqlite3.SQLiteTimestampFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func nullableID(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return id.String()
}

func rawJSON(s sql.NullString) json.RawMessage {
	if !s.Valid || s.String == "" {
		return nil
	}
	return json.RawMessage(s.String)
}

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rukayathamzat/Airhost2402-sub001/internal/ai"
	"github.com/rukayathamzat/Airhost2402-sub001/internal/api/middleware"
	"github.com/rukayathamzat/Airhost2402-sub001/internal/emergency"
	"github.com/rukayathamzat/Airhost2402-sub001/internal/models"
	"github.com/rukayathamzat/Airhost2402-sub001/internal/push"
	"github.com/rukayathamzat/Airhost2402-sub001/internal/realtime"
	"github.com/rukayathamzat/Airhost2402-sub001/internal/store"
	"github.com/rukayathamzat/Airhost2402-sub001/internal/whatsapp"
)

// emailRegex validates email addresses per RFC 5322 (simplified).
var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// dateRegex matches check-in and check-out dates.
var dateRegex = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Deps are the collaborators shared by every handler. Redis, Completer,
// Mailer and Push may be nil; the features relying on them degrade.
type Deps struct {
	Store     store.DataStore
	Redis     *store.RedisStore
	WhatsApp  *whatsapp.Client
	Completer ai.Completer
	Mailer    emergency.Mailer
	Push      *push.Dispatcher
	Events    realtime.Publisher
	Hub       *realtime.Hub
	Logger    zerolog.Logger

	VerifyToken       string // WHATSAPP_VERIFY_TOKEN
	AppSecret         string // WHATSAPP_APP_SECRET
	DefaultPropertyID string
}

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	db        store.DataStore
	redis     *store.RedisStore
	whatsapp  *whatsapp.Client
	completer ai.Completer
	mailer    emergency.Mailer
	push      *push.Dispatcher
	events    realtime.Publisher
	hub       *realtime.Hub
	logger    zerolog.Logger

	verifyToken       string
	appSecret         string
	defaultPropertyID string
}

// NewHandler creates a new Handler with the given dependencies.
func NewHandler(d Deps) *Handler {
	if d.WhatsApp == nil {
		d.WhatsApp = whatsapp.NewClient("", "", nil)
	}
	return &Handler{
		db:                d.Store,
		redis:             d.Redis,
		whatsapp:          d.WhatsApp,
		completer:         d.Completer,
		mailer:            d.Mailer,
		push:              d.Push,
		events:            d.Events,
		hub:               d.Hub,
		logger:            d.Logger,
		verifyToken:       d.VerifyToken,
		appSecret:         d.AppSecret,
		defaultPropertyID: d.DefaultPropertyID,
	}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// serverError logs the failure and answers 500 with its message.
func (h *Handler) serverError(w http.ResponseWriter, op string, err error) {
	h.logger.Error().Err(err).Str("op", op).Msg("request failed")
	h.Error(w, http.StatusInternalServerError, err.Error())
}

// NotFound answers unknown routes.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.Error(w, http.StatusNotFound, "not found")
}

// MethodNotAllowed answers known routes called with the wrong method.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.Error(w, http.StatusMethodNotAllowed, "method not allowed")
}

// decodeJSON reads a JSON body. An empty body is reported as invalid.
func decodeJSON(r *http.Request, dst any) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return errors.New("empty body")
	}
	return err
}

// currentUser returns the authenticated caller, never nil behind RequireAuth.
func currentUser(r *http.Request) *middleware.User {
	if u := middleware.GetUserFromContext(r.Context()); u != nil {
		return u
	}
	return &middleware.User{}
}

// urlID parses a UUID route parameter.
func urlID(r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	return id, err == nil
}

// optionalID parses an optional UUID field. ok is false only for malformed input.
func optionalID(raw string) (*uuid.UUID, bool) {
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, false
	}
	return &id, true
}

// ownedProperty loads a property visible to the caller, or nil.
func (h *Handler) ownedProperty(ctx context.Context, user *middleware.User, id uuid.UUID) (*models.Property, error) {
	p, err := h.db.GetProperty(ctx, id)
	if err != nil || p == nil {
		return nil, err
	}
	if !user.IsService() && p.HostID != user.ID {
		return nil, nil
	}
	return p, nil
}

// ownedConversation loads a conversation and its property when the caller
// hosts it, or nil.
func (h *Handler) ownedConversation(ctx context.Context, user *middleware.User, id uuid.UUID) (*models.Conversation, *models.Property, error) {
	c, err := h.db.GetConversation(ctx, id)
	if err != nil || c == nil {
		return nil, nil, err
	}
	p, err := h.ownedProperty(ctx, user, c.PropertyID)
	if err != nil || p == nil {
		return nil, nil, err
	}
	return c, p, nil
}

// publish emits a realtime event. Failures only cost the live update.
func (h *Handler) publish(ctx context.Context, eventType string, userID uuid.UUID, data any) {
	if h.events == nil {
		return
	}
	if err := h.events.Publish(ctx, realtime.NewEvent(eventType, userID, data)); err != nil {
		h.logger.Warn().Err(err).Str("event", eventType).Msg("realtime publish failed")
	}
}

// detachedContext bounds writes that must outlive a cancelled request.
func detachedContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

// notifyHost pushes to every device of a host.
func (h *Handler) notifyHost(ctx context.Context, hostID uuid.UUID, n push.Notification) {
	if h.push == nil || hostID == uuid.Nil {
		return
	}
	if _, err := h.push.NotifyUser(ctx, hostID, n); err != nil {
		h.logger.Warn().Err(err).Str("host_id", hostID.String()).Msg("push notification failed")
	}
}

// sanitizeName trims and limits name to 100 characters, removing control characters.
func sanitizeName(name string) string {
	name = strings.TrimSpace(name)

	// Remove control characters
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)

	// Limit to 100 characters
	if r := []rune(name); len(r) > 100 {
		name = string(r[:100])
	}

	return name
}

// isValidEmail validates email addresses using RFC 5322 pattern.
func isValidEmail(email string) bool {
	if email == "" {
		return true // Empty is valid (optional field)
	}
	// Must be reasonable length and match RFC 5322 pattern
	if len(email) > 254 {
		return false
	}
	return emailRegex.MatchString(email)
}

// preview shortens message content for conversation lists and pushes.
func preview(content string) string {
	if r := []rune(content); len(r) > 120 {
		return string(r[:117]) + "..."
	}
	return content
}

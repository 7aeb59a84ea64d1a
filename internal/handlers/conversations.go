package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rukayathamzat/Airhost2402-sub001/internal/models"
	"github.com/rukayathamzat/Airhost2402-sub001/internal/realtime"
	"github.com/rukayathamzat/Airhost2402-sub001/internal/whatsapp"
)

// CreateConversationRequest represents the conversation creation request.
type CreateConversationRequest struct {
	HostID       string `json:"host_id"`
	GuestName    string `json:"guest_name"`
	GuestPhone   string `json:"guest_phone"`
	PropertyID   string `json:"property_id"`
	CheckInDate  string `json:"check_in_date"`
	CheckOutDate string `json:"check_out_date"`
}

// ConversationResponse wraps a created or matched conversation.
type ConversationResponse struct {
	Message      string               `json:"message"`
	Conversation *models.Conversation `json:"conversation"`
}

// ConversationListResponse represents the conversations list response.
type ConversationListResponse struct {
	Conversations []models.Conversation `json:"conversations"`
	Total         int                   `json:"total"`
}

// MessageListResponse represents a conversation history.
type MessageListResponse struct {
	Conversation *models.Conversation `json:"conversation"`
	Messages     []models.Message     `json:"messages"`
}

// queryInt reads a positive integer query parameter, clamped to max.
func queryInt(r *http.Request, name string, def, max int) int {
	n := def
	if s := r.URL.Query().Get(name); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			n = v
		}
	}
	if n > max {
		n = max
	}
	return n
}

// CreateConversation opens a thread for a guest stay, reusing an existing
// one for the same stay.
func (h *Handler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	var req CreateConversationRequest
	if err := decodeJSON(r, &req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	req.GuestName = sanitizeName(req.GuestName)
	if req.HostID == "" || req.GuestName == "" || req.GuestPhone == "" ||
		req.PropertyID == "" || req.CheckInDate == "" || req.CheckOutDate == "" {
		h.Error(w, http.StatusBadRequest, "host_id, guest_name, guest_phone, property_id, check_in_date and check_out_date are required")
		return
	}
	hostID, err := uuid.Parse(req.HostID)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid host_id")
		return
	}
	propertyID, err := uuid.Parse(req.PropertyID)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid property_id")
		return
	}
	if !dateRegex.MatchString(req.CheckInDate) || !dateRegex.MatchString(req.CheckOutDate) {
		h.Error(w, http.StatusBadRequest, "dates must use the YYYY-MM-DD format")
		return
	}
	phone := whatsapp.NormalizePhone(req.GuestPhone)
	if phone == "" {
		h.Error(w, http.StatusBadRequest, "invalid guest_phone")
		return
	}

	user := currentUser(r)
	if !user.IsService() && hostID != user.ID {
		h.Error(w, http.StatusForbidden, "host_id does not match the authenticated user")
		return
	}

	ctx := r.Context()
	property, err := h.db.GetProperty(ctx, propertyID)
	if err != nil {
		h.serverError(w, "conversations.create", err)
		return
	}
	if property == nil || property.HostID != hostID {
		h.Error(w, http.StatusNotFound, "property not found")
		return
	}

	existing, err := h.db.FindSimilarConversation(ctx, propertyID, phone, &req.CheckInDate, &req.CheckOutDate)
	if err != nil {
		h.serverError(w, "conversations.find_similar", err)
		return
	}
	if existing != nil {
		h.JSON(w, http.StatusOK, ConversationResponse{
			Message:      "Une conversation similaire existe déjà",
			Conversation: existing,
		})
		return
	}

	now := time.Now().UTC()
	conv := &models.Conversation{
		PropertyID:    propertyID,
		GuestName:     req.GuestName,
		GuestPhone:    phone,
		GuestNumber:   whatsapp.DigitsOnly(phone),
		CheckInDate:   &req.CheckInDate,
		CheckOutDate:  &req.CheckOutDate,
		Status:        models.ConversationActive,
		LastMessageAt: &now,
	}
	if err := h.db.CreateConversation(ctx, conv); err != nil {
		h.serverError(w, "conversations.create", err)
		return
	}
	h.logger.Info().
		Str("conversation_id", conv.ID.String()).
		Str("property_id", propertyID.String()).
		Msg("conversation created")
	h.publish(ctx, realtime.EventConversationUpdated, hostID, conv)

	h.JSON(w, http.StatusCreated, ConversationResponse{
		Message:      "Conversation créée avec succès",
		Conversation: conv,
	})
}

// ListConversations returns the caller's conversations, most recent first.
func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50, 200)
	if limit == 0 {
		limit = 50
	}
	offset := queryInt(r, "offset", 0, 1<<30)

	convs, err := h.db.ListConversations(r.Context(), currentUser(r).HostScope(), limit, offset)
	if err != nil {
		h.serverError(w, "conversations.list", err)
		return
	}
	if convs == nil {
		convs = []models.Conversation{}
	}
	h.JSON(w, http.StatusOK, ConversationListResponse{
		Conversations: convs,
		Total:         len(convs),
	})
}

// GetConversationMessages returns the latest messages of a conversation in
// chronological order.
func (h *Handler) GetConversationMessages(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	if !ok {
		h.Error(w, http.StatusBadRequest, "invalid conversation ID format")
		return
	}

	ctx := r.Context()
	conv, _, err := h.ownedConversation(ctx, currentUser(r), id)
	if err != nil {
		h.serverError(w, "conversations.messages", err)
		return
	}
	if conv == nil {
		h.Error(w, http.StatusNotFound, "conversation not found")
		return
	}

	limit := queryInt(r, "limit", 100, 500)
	if limit == 0 {
		limit = 100
	}
	messages, err := h.db.ListMessages(ctx, id, limit)
	if err != nil {
		h.serverError(w, "conversations.messages", err)
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}
	h.JSON(w, http.StatusOK, MessageListResponse{Conversation: conv, Messages: messages})
}

// MarkConversationRead resets the unread counter.
func (h *Handler) MarkConversationRead(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	if !ok {
		h.Error(w, http.StatusBadRequest, "invalid conversation ID format")
		return
	}

	ctx := r.Context()
	conv, property, err := h.ownedConversation(ctx, currentUser(r), id)
	if err != nil {
		h.serverError(w, "conversations.read", err)
		return
	}
	if conv == nil {
		h.Error(w, http.StatusNotFound, "conversation not found")
		return
	}

	if err := h.db.MarkConversationRead(ctx, id); err != nil {
		h.serverError(w, "conversations.read", err)
		return
	}
	conv.UnreadCount = 0
	h.publish(ctx, realtime.EventConversationUpdated, property.HostID, conv)

	h.JSON(w, http.StatusOK, map[string]any{"success": true, "conversation": conv})
}

// normalizeLanguage keeps the two-letter language code of a locale.
func normalizeLanguage(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	return lang
}

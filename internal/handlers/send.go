package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rukayathamzat/Airhost2402-sub001/internal/api/middleware"
	"github.com/rukayathamzat/Airhost2402-sub001/internal/metrics"
	"github.com/rukayathamzat/Airhost2402-sub001/internal/models"
	"github.com/rukayathamzat/Airhost2402-sub001/internal/realtime"
	"github.com/rukayathamzat/Airhost2402-sub001/internal/whatsapp"
)

const (
	defaultTemplateName     = "hello_world"
	defaultTemplateLanguage = "en_US"
)

// SendMessageRequest represents a free-form outbound message.
type SendMessageRequest struct {
	Content        string         `json:"content"`
	To             string         `json:"to"`
	ConversationID string         `json:"conversation_id,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// SendTemplateRequest represents an outbound template message.
type SendTemplateRequest struct {
	TemplateName   string   `json:"template_name"`
	Language       string   `json:"language"`
	To             string   `json:"to"`
	ConversationID string   `json:"conversation_id,omitempty"`
	TemplateParams []string `json:"template_params,omitempty"`
}

// SendResponse is returned when the Graph API accepted a send.
type SendResponse struct {
	Success           bool            `json:"success"`
	Message           *models.Message `json:"message"`
	WhatsAppAPIResult json.RawMessage `json:"whatsapp_api_result"`
	DatabaseSaved     bool            `json:"database_saved"`
}

// GraphErrorResponse mirrors a rejected Graph API call.
type GraphErrorResponse struct {
	Error     string             `json:"error"`
	Details   *whatsapp.APIError `json:"details,omitempty"`
	RequestID string             `json:"request_id,omitempty"`
}

// credentials loads the active WhatsApp configuration and writes the error
// response when it is unusable.
func (h *Handler) credentials(ctx context.Context, w http.ResponseWriter) (whatsapp.Credentials, bool) {
	cfg, err := h.db.LatestWhatsAppConfig(ctx)
	if err != nil {
		h.serverError(w, "whatsapp.config", err)
		return whatsapp.Credentials{}, false
	}
	if cfg == nil {
		h.logger.Error().Msg("no WhatsApp configuration stored")
		h.Error(w, http.StatusInternalServerError, "WhatsApp configuration not found")
		return whatsapp.Credentials{}, false
	}
	if !cfg.Complete() {
		h.Error(w, http.StatusBadRequest, "incomplete WhatsApp configuration")
		return whatsapp.Credentials{}, false
	}
	return whatsapp.Credentials{PhoneNumberID: cfg.PhoneNumberID, Token: cfg.Token}, true
}

// sendTarget resolves the optional conversation a send is attached to.
func (h *Handler) sendTarget(ctx context.Context, w http.ResponseWriter, user *middleware.User, raw string) (*models.Conversation, *models.Property, bool) {
	id, ok := optionalID(raw)
	if !ok {
		h.Error(w, http.StatusBadRequest, "invalid conversation_id")
		return nil, nil, false
	}
	if id == nil {
		return nil, nil, true
	}
	conv, property, err := h.ownedConversation(ctx, user, *id)
	if err != nil {
		h.serverError(w, "send.conversation", err)
		return nil, nil, false
	}
	if conv == nil {
		h.Error(w, http.StatusNotFound, "conversation not found")
		return nil, nil, false
	}
	return conv, property, true
}

// relayGraphError answers with the Graph API status and error.
func (h *Handler) relayGraphError(w http.ResponseWriter, op string, result *whatsapp.SendResult) {
	msg := "WhatsApp API error"
	var requestID string
	if result.Error != nil {
		msg = result.Error.Message
		requestID = result.Error.FBTraceID
	}
	h.logger.Warn().
		Str("op", op).
		Int("status", result.StatusCode).
		RawJSON("details", result.Body).
		Msg("WhatsApp API rejected request")
	h.JSON(w, result.StatusCode, GraphErrorResponse{
		Error:     msg,
		Details:   result.Error,
		RequestID: requestID,
	})
}

// recordOutbound saves a sent message. Failures are reported but never undo
// the send.
func (h *Handler) recordOutbound(ctx context.Context, conv *models.Conversation, property *models.Property, m *models.Message) bool {
	if conv != nil {
		id := conv.ID
		m.ConversationID = &id
	}
	if err := h.db.CreateMessage(ctx, m); err != nil {
		h.logger.Warn().Err(err).Msg("sent message not saved")
		return false
	}
	if conv != nil {
		if err := h.db.RecordOutbound(ctx, conv.ID, preview(m.Content)); err != nil {
			h.logger.Warn().Err(err).Msg("conversation preview not updated")
		}
		if h.redis != nil {
			_ = h.redis.InvalidateSuggestion(ctx, conv.ID.String())
		}
	}
	if property != nil {
		h.publish(ctx, realtime.EventMessageCreated, property.HostID, m)
	}
	return true
}

// SendWhatsAppMessage sends a free-form text message to a guest.
func (h *Handler) SendWhatsAppMessage(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Content == "" || req.To == "" {
		h.Error(w, http.StatusBadRequest, "content and to are required")
		return
	}

	ctx := r.Context()
	conv, property, ok := h.sendTarget(ctx, w, currentUser(r), req.ConversationID)
	if !ok {
		return
	}
	creds, ok := h.credentials(ctx, w)
	if !ok {
		return
	}

	result, err := h.whatsapp.SendText(ctx, creds, req.To, req.Content)
	if err != nil {
		metrics.OutboundSends.WithLabelValues("text", "error").Inc()
		h.serverError(w, "send.text", err)
		return
	}
	if !result.OK() {
		metrics.OutboundSends.WithLabelValues("text", "rejected").Inc()
		h.relayGraphError(w, "send.text", result)
		return
	}
	metrics.OutboundSends.WithLabelValues("text", "ok").Inc()

	metadata := map[string]any{}
	for k, v := range req.Metadata {
		metadata[k] = v
	}
	metadata["recipient"] = req.To
	metadata[models.MetaWhatsAppMessageID] = result.MessageID

	msg := &models.Message{
		Content:   req.Content,
		Direction: models.DirectionOutbound,
		Type:      models.MessageTypeText,
		Status:    models.StatusSent,
		Metadata:  metadata,
	}
	saved := h.recordOutbound(ctx, conv, property, msg)
	if !saved {
		msg = nil
	}

	h.JSON(w, http.StatusOK, SendResponse{
		Success:           true,
		Message:           msg,
		WhatsAppAPIResult: result.Body,
		DatabaseSaved:     saved,
	})
}

// SendWhatsAppTemplate sends a pre-approved template to a guest.
func (h *Handler) SendWhatsAppTemplate(w http.ResponseWriter, r *http.Request) {
	var req SendTemplateRequest
	if err := decodeJSON(r, &req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.To == "" {
		h.Error(w, http.StatusBadRequest, "to is required")
		return
	}
	if req.TemplateName == "" {
		req.TemplateName = defaultTemplateName
	}
	if req.Language == "" {
		req.Language = defaultTemplateLanguage
	}

	ctx := r.Context()
	conv, property, ok := h.sendTarget(ctx, w, currentUser(r), req.ConversationID)
	if !ok {
		return
	}
	creds, ok := h.credentials(ctx, w)
	if !ok {
		return
	}

	result, err := h.whatsapp.SendTemplate(ctx, creds, whatsapp.TemplateMessage{
		To:       req.To,
		Name:     req.TemplateName,
		Language: req.Language,
		Params:   req.TemplateParams,
	})
	if err != nil {
		if errors.Is(err, whatsapp.ErrNotConfigured) {
			h.Error(w, http.StatusBadRequest, "incomplete WhatsApp configuration")
			return
		}
		metrics.OutboundSends.WithLabelValues("template", "error").Inc()
		h.serverError(w, "send.template", err)
		return
	}
	if !result.OK() {
		metrics.OutboundSends.WithLabelValues("template", "rejected").Inc()
		h.relayGraphError(w, "send.template", result)
		return
	}
	metrics.OutboundSends.WithLabelValues("template", "ok").Inc()

	params := req.TemplateParams
	if params == nil {
		params = []string{}
	}
	msg := &models.Message{
		Content:   models.TemplatePreviewPrefix + req.TemplateName,
		Direction: models.DirectionOutbound,
		Type:      models.MessageTypeTemplate,
		Status:    models.StatusSent,
		Metadata: map[string]any{
			"template_name":              req.TemplateName,
			"template_language":          req.Language,
			"recipient":                  req.To,
			"params":                     params,
			models.MetaWhatsAppMessageID: result.MessageID,
		},
	}
	saved := h.recordOutbound(ctx, conv, property, msg)
	if !saved {
		msg = nil
	}

	h.JSON(w, http.StatusOK, SendResponse{
		Success:           true,
		Message:           msg,
		WhatsAppAPIResult: result.Body,
		DatabaseSaved:     saved,
	})
}

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/rukayathamzat/Airhost2402-sub001/internal/crypto"
	"github.com/rukayathamzat/Airhost2402-sub001/internal/emergency"
	"github.com/rukayathamzat/Airhost2402-sub001/internal/metrics"
	"github.com/rukayathamzat/Airhost2402-sub001/internal/models"
	"github.com/rukayathamzat/Airhost2402-sub001/internal/push"
	"github.com/rukayathamzat/Airhost2402-sub001/internal/realtime"
	"github.com/rukayathamzat/Airhost2402-sub001/internal/whatsapp"
)

var errNoProperty = errors.New("no property available for new conversations")

// WebhookResponse is returned once a delivery is processed.
type WebhookResponse struct {
	Success   bool `json:"success"`
	Processed int  `json:"processed"`
}

// VerifyWebhook answers the Meta subscription handshake.
func (h *Handler) VerifyWebhook(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if q.Get("hub.mode") != "subscribe" {
		h.logger.Warn().Str("mode", q.Get("hub.mode")).Msg("webhook verification: invalid mode")
		h.Error(w, http.StatusForbidden, "invalid mode")
		return
	}
	if h.verifyToken == "" {
		h.logger.Error().Msg("webhook verification: WHATSAPP_VERIFY_TOKEN not configured")
		h.Error(w, http.StatusInternalServerError, "server configuration error")
		return
	}
	if q.Get("hub.verify_token") != h.verifyToken {
		h.logger.Warn().Msg("webhook verification: token mismatch")
		h.Error(w, http.StatusForbidden, "invalid verification token")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, q.Get("hub.challenge"))
}

// ReceiveWebhook stores inbound guest messages and applies delivery statuses.
func (h *Handler) ReceiveWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	if h.appSecret != "" {
		if err := crypto.VerifyHubSignature(h.appSecret, body, r.Header.Get("X-Hub-Signature-256")); err != nil {
			h.logger.Warn().Err(err).Msg("webhook signature rejected")
			h.Error(w, http.StatusUnauthorized, "invalid signature")
			return
		}
	}

	var payload whatsapp.Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if payload.Object != whatsapp.ObjectBusinessAccount {
		h.Error(w, http.StatusBadRequest, "invalid webhook event")
		return
	}

	ctx := r.Context()
	processed := 0

	for _, msg := range payload.Messages() {
		stored, err := h.processInbound(ctx, msg)
		if err != nil {
			metrics.WebhookMessages.WithLabelValues("failed").Inc()
			h.serverError(w, "webhook.message", err)
			return
		}
		if stored {
			processed++
		}
	}

	for _, st := range payload.Statuses() {
		updated, convID, err := h.db.UpdateMessageStatusByWhatsAppID(ctx, st.ID, st.Status)
		if err != nil {
			h.serverError(w, "webhook.status", err)
			return
		}
		if !updated {
			continue
		}
		metrics.WebhookStatuses.Inc()
		if convID == nil {
			continue
		}
		hostID, err := h.conversationHost(ctx, *convID)
		if err != nil {
			h.logger.Warn().Err(err).Str("wamid", st.ID).Msg("status owner lookup failed")
			continue
		}
		if hostID == uuid.Nil {
			continue
		}
		h.publish(ctx, realtime.EventMessageStatus, hostID, map[string]string{
			models.MetaWhatsAppMessageID: st.ID,
			"conversation_id":            convID.String(),
			"status":                     st.Status,
		})
	}

	h.JSON(w, http.StatusOK, WebhookResponse{Success: true, Processed: processed})
}

// processInbound records one guest message. It reports false for duplicates
// and sender-less messages. A failed message releases its dedupe mark so the
// provider's retry is stored.
func (h *Handler) processInbound(ctx context.Context, msg whatsapp.InboundMessage) (stored bool, err error) {
	phone := whatsapp.NormalizePhone(msg.From)
	if phone == "" {
		h.logger.Warn().Str("wamid", msg.ID).Msg("webhook message without sender")
		return false, nil
	}

	if h.redis != nil && msg.ID != "" {
		fresh, markErr := h.redis.MarkWebhookMessage(ctx, msg.ID)
		if markErr != nil {
			h.logger.Warn().Err(markErr).Msg("webhook dedupe unavailable")
		} else if !fresh {
			metrics.WebhookMessages.WithLabelValues("duplicate").Inc()
			return false, nil
		} else {
			defer func() {
				if err == nil {
					return
				}
				rctx, cancel := detachedContext()
				defer cancel()
				if rerr := h.redis.ReleaseWebhookMessage(rctx, msg.ID); rerr != nil {
					h.logger.Warn().Err(rerr).Str("wamid", msg.ID).Msg("webhook dedupe release failed")
				}
			}()
		}
	}

	content, isText := whatsapp.TextOf(msg.Message)
	msgType := models.MessageTypeOther
	if isText {
		msgType = models.MessageTypeText
	}

	conv, err := h.db.FindConversationByPhone(ctx, phone)
	if err != nil {
		return false, fmt.Errorf("find conversation: %w", err)
	}

	if conv == nil {
		property, err := h.inboundProperty(ctx)
		if err != nil {
			return false, err
		}
		now := time.Now().UTC()
		name := msg.ContactName
		if name == "" {
			name = phone
		}
		conv = &models.Conversation{
			PropertyID:    property.ID,
			GuestName:     sanitizeName(name),
			GuestPhone:    phone,
			GuestNumber:   whatsapp.DigitsOnly(phone),
			Status:        models.ConversationActive,
			LastMessage:   preview(content),
			LastMessageAt: &now,
			UnreadCount:   1,
		}
		if err := h.db.CreateConversation(ctx, conv); err != nil {
			return false, fmt.Errorf("create conversation: %w", err)
		}
		h.logger.Info().Str("conversation_id", conv.ID.String()).Msg("conversation opened from webhook")
	} else {
		if err := h.db.RecordInbound(ctx, conv.ID, preview(content)); err != nil {
			return false, fmt.Errorf("update conversation: %w", err)
		}
		conv.UnreadCount++
		conv.LastMessage = preview(content)
	}

	metadata := map[string]any{
		models.MetaWhatsAppMessageID: msg.ID,
		"timestamp":                  msg.Timestamp,
		"phone_number_id":            msg.PhoneNumberID,
		"whatsapp_type":              msg.Type,
	}
	if msg.ContactName != "" {
		metadata["contact_name"] = msg.ContactName
	}

	convID := conv.ID
	message := &models.Message{
		ConversationID: &convID,
		Content:        content,
		Direction:      models.DirectionInbound,
		Type:           msgType,
		Status:         models.StatusReceived,
		Metadata:       metadata,
	}
	if err := h.db.CreateMessage(ctx, message); err != nil {
		return false, fmt.Errorf("save message: %w", err)
	}
	metrics.WebhookMessages.WithLabelValues("stored").Inc()

	if h.redis != nil {
		if err := h.redis.InvalidateSuggestion(ctx, conv.ID.String()); err != nil {
			h.logger.Warn().Err(err).Msg("suggestion cache invalidation failed")
		}
	}

	property, err := h.db.GetProperty(ctx, conv.PropertyID)
	if err != nil {
		h.logger.Warn().Err(err).Msg("property lookup for notifications failed")
		return true, nil
	}
	if property == nil {
		return true, nil
	}

	h.publish(ctx, realtime.EventMessageCreated, property.HostID, message)
	h.publish(ctx, realtime.EventConversationUpdated, property.HostID, conv)

	if isText {
		h.checkEmergency(ctx, property, conv, content)
	}
	h.notifyHost(ctx, property.HostID, push.Notification{
		Title: "Nouveau message de " + conv.GuestName,
		Body:  preview(content),
		Data: map[string]string{
			"conversation_id": conv.ID.String(),
			"message_id":      message.ID.String(),
		},
	})
	return true, nil
}

// inboundProperty picks the property new conversations are attached to.
func (h *Handler) inboundProperty(ctx context.Context) (*models.Property, error) {
	if h.defaultPropertyID != "" {
		id, err := uuid.Parse(h.defaultPropertyID)
		if err != nil {
			return nil, fmt.Errorf("invalid DEFAULT_PROPERTY_ID: %w", err)
		}
		p, err := h.db.GetProperty(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load default property: %w", err)
		}
		if p != nil {
			return p, nil
		}
		h.logger.Warn().Str("property_id", h.defaultPropertyID).Msg("default property not found, using first property")
	}

	p, err := h.db.FirstProperty(ctx)
	if err != nil {
		return nil, fmt.Errorf("load first property: %w", err)
	}
	if p == nil {
		return nil, errNoProperty
	}
	return p, nil
}

// checkEmergency logs and escalates guest messages with emergency keywords.
func (h *Handler) checkEmergency(ctx context.Context, property *models.Property, conv *models.Conversation, content string) {
	det := emergency.Detect(content, property.Language)
	if !det.IsEmergency {
		return
	}
	metrics.Emergencies.WithLabelValues(det.Severity).Inc()

	convID := conv.ID
	entry := &models.EmergencyLog{
		ConversationID:   &convID,
		Message:          content,
		Severity:         det.Severity,
		DetectedKeywords: det.DetectedKeywords,
	}
	if err := h.db.CreateEmergencyLog(ctx, entry); err != nil {
		h.logger.Warn().Err(err).Msg("emergency log failed")
	}

	h.logger.Warn().
		Str("conversation_id", conv.ID.String()).
		Str("severity", det.Severity).
		Strs("keywords", det.DetectedKeywords).
		Msg("emergency detected in guest message")

	h.notifyHost(ctx, property.HostID, push.Notification{
		Title: emergency.AlertTitle(det.Severity),
		Body:  preview(content),
		Data: map[string]string{
			"conversation_id": conv.ID.String(),
			"severity":        det.Severity,
		},
	})
}

// conversationHost resolves the host owning a conversation. It returns
// uuid.Nil when the conversation or its property is gone.
func (h *Handler) conversationHost(ctx context.Context, conversationID uuid.UUID) (uuid.UUID, error) {
	conv, err := h.db.GetConversation(ctx, conversationID)
	if err != nil || conv == nil {
		return uuid.Nil, err
	}
	property, err := h.db.GetProperty(ctx, conv.PropertyID)
	if err != nil || property == nil {
		return uuid.Nil, err
	}
	return property.HostID, nil
}

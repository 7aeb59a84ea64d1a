package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/rukayathamzat/Airhost2402-sub001/internal/ai"
	"github.com/rukayathamzat/Airhost2402-sub001/internal/metrics"
	"github.com/rukayathamzat/Airhost2402-sub001/internal/models"
)

// historySize is how many stored messages feed a reply suggestion.
const historySize = 10

// GenerateResponseRequest asks for a suggested reply. Messages replaces the
// stored history when present.
type GenerateResponseRequest struct {
	ApartmentID        string           `json:"apartmentId"`
	ConversationID     string           `json:"conversationId"`
	Messages           []models.Message `json:"messages,omitempty"`
	CustomInstructions string           `json:"customInstructions,omitempty"`
	IsReservation      bool             `json:"isReservation,omitempty"`
}

// GenerateResponseResponse carries the suggested reply.
type GenerateResponseResponse struct {
	Response string `json:"response"`
	Cached   bool   `json:"cached,omitempty"`
}

// AnalyzeMessageRequest asks for a triage of one guest message.
type AnalyzeMessageRequest struct {
	MessageID      string `json:"messageId,omitempty"`
	MessageContent string `json:"messageContent"`
	ApartmentID    string `json:"apartmentId,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
}

// GenerateAIResponse suggests a host reply for a conversation.
func (h *Handler) GenerateAIResponse(w http.ResponseWriter, r *http.Request) {
	var req GenerateResponseRequest
	if err := decodeJSON(r, &req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ApartmentID == "" || req.ConversationID == "" {
		h.Error(w, http.StatusBadRequest, "apartmentId et conversationId sont requis")
		return
	}
	propertyID, err := uuid.Parse(req.ApartmentID)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid apartmentId")
		return
	}
	convID, err := uuid.Parse(req.ConversationID)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid conversationId")
		return
	}

	ctx := r.Context()
	user := currentUser(r)
	property, err := h.ownedProperty(ctx, user, propertyID)
	if err != nil {
		h.serverError(w, "ai.generate", err)
		return
	}
	if property == nil {
		h.Error(w, http.StatusNotFound, "Appartement non trouvé")
		return
	}
	if h.completer == nil {
		h.Error(w, http.StatusInternalServerError, ai.ErrNotConfigured.Error())
		return
	}

	// Only replies built from the stored history with no per-request
	// options are cached.
	cacheable := h.redis != nil && req.Messages == nil && req.CustomInstructions == "" && !req.IsReservation

	history := req.Messages
	if history == nil {
		conv, _, err := h.ownedConversation(ctx, user, convID)
		if err != nil {
			h.serverError(w, "ai.generate", err)
			return
		}
		if conv == nil {
			h.Error(w, http.StatusNotFound, "conversation not found")
			return
		}
		if cacheable {
			if cached, err := h.redis.GetSuggestion(ctx, convID.String()); err == nil && cached != "" {
				metrics.AIGenerations.WithLabelValues(h.completer.Provider(), "reply", "cached").Inc()
				h.JSON(w, http.StatusOK, GenerateResponseResponse{Response: cached, Cached: true})
				return
			}
		}
		history, err = h.db.ListMessages(ctx, convID, historySize)
		if err != nil {
			h.serverError(w, "ai.history", err)
			return
		}
	}

	reply, err := ai.GenerateReply(ctx, h.completer, property, history, req.CustomInstructions, req.IsReservation)
	metrics.AIGenerations.WithLabelValues(h.completer.Provider(), "reply", metrics.Result(err)).Inc()
	if err != nil {
		h.serverError(w, "ai.generate", err)
		return
	}

	if cacheable {
		if err := h.redis.CacheSuggestion(ctx, convID.String(), reply); err != nil {
			h.logger.Warn().Err(err).Msg("suggestion not cached")
		}
	}
	h.logger.Info().
		Str("conversation_id", convID.String()).
		Str("provider", h.completer.Provider()).
		Msg("AI reply generated")

	h.JSON(w, http.StatusOK, GenerateResponseResponse{Response: reply})
}

// AnalyzeMessage triages a guest message and stores the verdict on the
// message when one is named.
func (h *Handler) AnalyzeMessage(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.MessageContent == "" {
		h.Error(w, http.StatusBadRequest, "messageContent is required")
		return
	}
	messageID, ok := optionalID(req.MessageID)
	if !ok {
		h.Error(w, http.StatusBadRequest, "invalid messageId")
		return
	}
	propertyID, ok := optionalID(req.ApartmentID)
	if !ok {
		h.Error(w, http.StatusBadRequest, "invalid apartmentId")
		return
	}
	convID, ok := optionalID(req.ConversationID)
	if !ok {
		h.Error(w, http.StatusBadRequest, "invalid conversationId")
		return
	}

	ctx := r.Context()
	user := currentUser(r)

	var property *models.Property
	if propertyID != nil {
		p, err := h.ownedProperty(ctx, user, *propertyID)
		if err != nil {
			h.serverError(w, "ai.analyze", err)
			return
		}
		if p == nil {
			h.Error(w, http.StatusNotFound, "Appartement non trouvé")
			return
		}
		property = p
	}

	if convID != nil {
		conv, p, err := h.ownedConversation(ctx, user, *convID)
		if err != nil {
			h.serverError(w, "ai.analyze", err)
			return
		}
		if conv == nil {
			h.Error(w, http.StatusNotFound, "conversation not found")
			return
		}
		if property == nil {
			property = p
		}
	}

	// The verdict is only stored on messages of the caller's conversations.
	if messageID != nil {
		msg, err := h.db.GetMessage(ctx, *messageID)
		if err != nil {
			h.serverError(w, "ai.analyze", err)
			return
		}
		if msg == nil || !h.messageVisible(r, msg) {
			h.Error(w, http.StatusNotFound, "message not found")
			return
		}
	}

	analysis := ai.Analyze(ctx, h.completer, req.MessageContent, property)
	provider := "none"
	if h.completer != nil {
		provider = h.completer.Provider()
	}
	metrics.AIGenerations.WithLabelValues(provider, "analysis", metrics.Result(analysis.Err)).Inc()
	if analysis.Err != nil {
		h.logger.Warn().Err(analysis.Err).Str("provider", provider).Msg("message analysis failed")
	}

	if messageID != nil {
		if err := h.db.SetMessageMetadata(ctx, *messageID, models.MetaAnalysis, analysis); err != nil {
			h.logger.Warn().Err(err).Str("message_id", messageID.String()).Msg("analysis not stored")
		}
	}

	h.JSON(w, http.StatusOK, analysis)
}

// messageVisible reports whether the caller hosts the message's conversation.
func (h *Handler) messageVisible(r *http.Request, m *models.Message) bool {
	user := currentUser(r)
	if user.IsService() {
		return true
	}
	if m.ConversationID == nil {
		return false
	}
	conv, _, err := h.ownedConversation(r.Context(), user, *m.ConversationID)
	return err == nil && conv != nil
}

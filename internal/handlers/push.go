package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/rukayathamzat/Airhost2402-sub001/internal/models"
	"github.com/rukayathamzat/Airhost2402-sub001/internal/push"
)

// FCMProxyRequest is a push to one of the caller's devices.
type FCMProxyRequest struct {
	To           string `json:"to"`
	Notification struct {
		Title string `json:"title"`
		Body  string `json:"body"`
	} `json:"notification"`
	Data map[string]string `json:"data,omitempty"`
}

// FCMProxyResponse carries the provider message name.
type FCMProxyResponse struct {
	Success bool   `json:"success"`
	Name    string `json:"name"`
}

// RegisterPushRequest represents a device registration.
type RegisterPushRequest struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

// FCMProxy sends a notification to a device token the caller registered.
func (h *Handler) FCMProxy(w http.ResponseWriter, r *http.Request) {
	var req FCMProxyRequest
	if err := decodeJSON(r, &req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.To == "" || req.Notification.Title == "" {
		h.Error(w, http.StatusBadRequest, "to and notification.title are required")
		return
	}

	ctx := r.Context()
	user := currentUser(r)
	sub, err := h.db.GetPushSubscription(ctx, user.ID, req.To)
	if err != nil {
		h.serverError(w, "push.subscription", err)
		return
	}
	if sub == nil {
		h.Error(w, http.StatusForbidden, "device token not registered for this user")
		return
	}
	if h.push == nil {
		h.Error(w, http.StatusInternalServerError, push.ErrNotConfigured.Error())
		return
	}

	name, err := h.push.Deliver(ctx, *sub, push.Notification{
		Title: req.Notification.Title,
		Body:  req.Notification.Body,
		Data:  req.Data,
	})
	if err != nil {
		var fcmErr *push.FCMError
		switch {
		case errors.Is(err, push.ErrNotConfigured):
			h.Error(w, http.StatusInternalServerError, err.Error())
		case errors.As(err, &fcmErr) && fcmErr.StatusCode >= 400:
			h.logger.Warn().Err(err).Msg("FCM rejected notification")
			h.Error(w, fcmErr.StatusCode, fcmErr.Message)
		default:
			h.serverError(w, "push.deliver", err)
		}
		return
	}

	h.JSON(w, http.StatusOK, FCMProxyResponse{Success: true, Name: name})
}

// RegisterPushSubscription stores a device token for the caller.
func (h *Handler) RegisterPushSubscription(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	if user.IsService() {
		h.Error(w, http.StatusForbidden, "push subscriptions belong to users")
		return
	}

	var req RegisterPushRequest
	if err := decodeJSON(r, &req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.Token = strings.TrimSpace(req.Token)
	if req.Token == "" {
		h.Error(w, http.StatusBadRequest, "token is required")
		return
	}
	if len(req.Token) > 4096 {
		h.Error(w, http.StatusBadRequest, "token too long")
		return
	}
	switch req.Platform {
	case "":
		req.Platform = models.PlatformWeb
	case models.PlatformWeb, models.PlatformAndroid, models.PlatformIOS:
	default:
		h.Error(w, http.StatusBadRequest, "platform must be web, android or ios")
		return
	}

	sub := &models.PushSubscription{
		UserID:   user.ID,
		Token:    req.Token,
		Platform: req.Platform,
	}
	if err := h.db.SavePushSubscription(r.Context(), sub); err != nil {
		h.serverError(w, "push.register", err)
		return
	}
	h.logger.Info().Str("user_id", user.ID.String()).Str("platform", sub.Platform).Msg("push subscription registered")

	h.JSON(w, http.StatusCreated, sub)
}

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rukayathamzat/Airhost2402-sub001/internal/models"
	"github.com/rukayathamzat/Airhost2402-sub001/internal/whatsapp"
)

// ConfigView is a WhatsApp configuration with its token masked.
type ConfigView struct {
	ID            uuid.UUID `json:"id"`
	PhoneNumberID string    `json:"phone_number_id"`
	Token         string    `json:"token"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func viewConfig(c *models.WhatsAppConfig) ConfigView {
	return ConfigView{
		ID:            c.ID,
		PhoneNumberID: c.PhoneNumberID,
		Token:         c.MaskedToken(),
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

// SaveConfigRequest represents new WhatsApp credentials.
type SaveConfigRequest struct {
	PhoneNumberID string `json:"phone_number_id"`
	Token         string `json:"token"`
}

// CleanupConfigRequest names the configuration to keep.
type CleanupConfigRequest struct {
	KeepPhoneNumberID string `json:"keep_phone_number_id"`
}

// GetWhatsAppConfig returns the active configuration.
func (h *Handler) GetWhatsAppConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.db.LatestWhatsAppConfig(r.Context())
	if err != nil {
		h.serverError(w, "whatsapp_config.get", err)
		return
	}
	if cfg == nil {
		h.Error(w, http.StatusNotFound, "WhatsApp configuration not found")
		return
	}
	h.JSON(w, http.StatusOK, map[string]any{"data": viewConfig(cfg)})
}

// SaveWhatsAppConfig stores credentials, replacing any row for the same number.
func (h *Handler) SaveWhatsAppConfig(w http.ResponseWriter, r *http.Request) {
	var req SaveConfigRequest
	if err := decodeJSON(r, &req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.PhoneNumberID = strings.TrimSpace(req.PhoneNumberID)
	req.Token = strings.TrimSpace(req.Token)
	if req.PhoneNumberID == "" || req.Token == "" {
		h.Error(w, http.StatusBadRequest, "phone_number_id and token are required")
		return
	}

	cfg, err := h.db.SaveWhatsAppConfig(r.Context(), req.PhoneNumberID, req.Token)
	if err != nil {
		h.serverError(w, "whatsapp_config.save", err)
		return
	}
	h.logger.Info().Str("phone_number_id", cfg.PhoneNumberID).Msg("WhatsApp configuration saved")

	h.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Configuration WhatsApp sauvegardée avec succès",
		"data":    viewConfig(cfg),
	})
}

// TestWhatsAppConfig checks the active credentials against the Graph API.
func (h *Handler) TestWhatsAppConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cfg, err := h.db.LatestWhatsAppConfig(ctx)
	if err != nil {
		h.serverError(w, "whatsapp_config.test", err)
		return
	}
	if cfg == nil {
		h.Error(w, http.StatusNotFound, "WhatsApp configuration not found")
		return
	}

	result, err := h.whatsapp.PhoneNumberInfo(ctx, whatsapp.Credentials{
		PhoneNumberID: cfg.PhoneNumberID,
		Token:         cfg.Token,
	})
	if errors.Is(err, whatsapp.ErrNotConfigured) {
		h.Error(w, http.StatusBadRequest, "incomplete WhatsApp configuration")
		return
	}
	if err != nil {
		h.serverError(w, "whatsapp_config.test", err)
		return
	}

	h.JSON(w, http.StatusOK, map[string]any{
		"success": result.OK(),
		"config":  viewConfig(cfg),
		"whatsapp_api": map[string]any{
			"status": result.StatusCode,
			"data":   json.RawMessage(result.Body),
		},
	})
}

// CleanupWhatsAppConfig deletes every configuration except the one kept.
func (h *Handler) CleanupWhatsAppConfig(w http.ResponseWriter, r *http.Request) {
	var req CleanupConfigRequest
	if err := decodeJSON(r, &req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.KeepPhoneNumberID == "" {
		h.Error(w, http.StatusBadRequest, "keep_phone_number_id is required")
		return
	}

	ctx := r.Context()
	configs, err := h.db.ListWhatsAppConfigs(ctx)
	if err != nil {
		h.serverError(w, "whatsapp_config.cleanup", err)
		return
	}

	var kept *models.WhatsAppConfig
	var stale []uuid.UUID
	for i := range configs {
		if configs[i].PhoneNumberID == req.KeepPhoneNumberID {
			kept = &configs[i]
			continue
		}
		stale = append(stale, configs[i].ID)
	}
	if kept == nil {
		h.Error(w, http.StatusNotFound, "no configuration for phone_number_id "+req.KeepPhoneNumberID)
		return
	}

	deleted, err := h.db.DeleteWhatsAppConfigs(ctx, stale)
	if err != nil {
		h.serverError(w, "whatsapp_config.cleanup", err)
		return
	}
	h.logger.Info().Int64("deleted", deleted).Str("kept", kept.PhoneNumberID).Msg("WhatsApp configurations cleaned up")

	h.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"deleted": deleted,
		"kept":    viewConfig(kept),
	})
}

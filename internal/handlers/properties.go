package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/rukayathamzat/Airhost2402-sub001/internal/models"
)

// CreatePropertyRequest represents the property creation request. HostID is
// only read for service role callers.
type CreatePropertyRequest struct {
	HostID         string          `json:"host_id,omitempty"`
	Name           string          `json:"name"`
	Address        string          `json:"address"`
	Description    string          `json:"description"`
	AIInstructions string          `json:"ai_instructions"`
	Language       string          `json:"language"`
	Amenities      json.RawMessage `json:"amenities,omitempty"`
	Rules          json.RawMessage `json:"rules,omitempty"`
	FAQ            json.RawMessage `json:"faq,omitempty"`
	ManagerEmail   string          `json:"manager_email"`
	ManagerPhone   string          `json:"manager_phone"`
}

// PropertyListResponse represents the properties list response.
type PropertyListResponse struct {
	Properties []models.Property `json:"properties"`
	Total      int               `json:"total"`
}

// ListProperties returns the properties hosted by the caller.
func (h *Handler) ListProperties(w http.ResponseWriter, r *http.Request) {
	props, err := h.db.ListProperties(r.Context(), currentUser(r).HostScope())
	if err != nil {
		h.serverError(w, "properties.list", err)
		return
	}
	if props == nil {
		props = []models.Property{}
	}
	h.JSON(w, http.StatusOK, PropertyListResponse{Properties: props, Total: len(props)})
}

// GetProperty handles property lookup.
func (h *Handler) GetProperty(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	if !ok {
		h.Error(w, http.StatusBadRequest, "invalid property ID format")
		return
	}

	p, err := h.ownedProperty(r.Context(), currentUser(r), id)
	if err != nil {
		h.serverError(w, "properties.get", err)
		return
	}
	if p == nil {
		h.Error(w, http.StatusNotFound, "property not found")
		return
	}
	h.JSON(w, http.StatusOK, p)
}

// CreateProperty registers a property for the caller.
func (h *Handler) CreateProperty(w http.ResponseWriter, r *http.Request) {
	var req CreatePropertyRequest
	if err := decodeJSON(r, &req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	req.Name = sanitizeName(req.Name)
	if req.Name == "" {
		h.Error(w, http.StatusBadRequest, "name is required")
		return
	}
	req.ManagerEmail = strings.TrimSpace(req.ManagerEmail)
	if !isValidEmail(req.ManagerEmail) {
		h.Error(w, http.StatusBadRequest, "invalid manager_email format")
		return
	}

	user := currentUser(r)
	hostID := user.ID
	if user.IsService() {
		id, err := uuid.Parse(req.HostID)
		if err != nil {
			h.Error(w, http.StatusBadRequest, "host_id is required for service role requests")
			return
		}
		hostID = id
	}

	lang := normalizeLanguage(req.Language)
	if lang == "" {
		lang = "fr"
	}
	p := &models.Property{
		HostID:         hostID,
		Name:           req.Name,
		Address:        strings.TrimSpace(req.Address),
		Description:    req.Description,
		AIInstructions: req.AIInstructions,
		Language:       lang,
		Amenities:      req.Amenities,
		Rules:          req.Rules,
		FAQ:            req.FAQ,
		ManagerEmail:   req.ManagerEmail,
		ManagerPhone:   strings.TrimSpace(req.ManagerPhone),
	}
	if err := h.db.CreateProperty(r.Context(), p); err != nil {
		h.serverError(w, "properties.create", err)
		return
	}
	h.logger.Info().Str("property_id", p.ID.String()).Str("host_id", hostID.String()).Msg("property created")

	h.JSON(w, http.StatusCreated, p)
}

package handlers

import (
	"net/http"
	"strings"

	"github.com/rukayathamzat/Airhost2402-sub001/internal/models"
)

// TemplatesResponse lists the available templates.
type TemplatesResponse struct {
	Success   bool              `json:"success"`
	Templates []models.Template `json:"templates"`
	Count     int               `json:"count"`
}

// CreateTemplateRequest represents a new template.
type CreateTemplateRequest struct {
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
	Language  string `json:"language"`
	Content   string `json:"content"`
}

// ListTemplates returns every stored template.
func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.db.ListTemplates(r.Context())
	if err != nil {
		h.serverError(w, "templates.list", err)
		return
	}
	if templates == nil {
		templates = []models.Template{}
	}
	h.JSON(w, http.StatusOK, TemplatesResponse{
		Success:   true,
		Templates: templates,
		Count:     len(templates),
	})
}

// CreateTemplate stores a template owned by the caller.
func (h *Handler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req CreateTemplateRequest
	if err := decodeJSON(r, &req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.Language == "" || req.Content == "" {
		h.Error(w, http.StatusBadRequest, "name, language and content are required")
		return
	}

	t := &models.Template{
		HostID:    currentUser(r).HostScope(),
		Namespace: req.Namespace,
		Name:      req.Name,
		Language:  req.Language,
		Content:   req.Content,
	}
	if err := h.db.CreateTemplate(r.Context(), t); err != nil {
		h.serverError(w, "templates.create", err)
		return
	}
	h.JSON(w, http.StatusCreated, map[string]any{"success": true, "template": t})
}

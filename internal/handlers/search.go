package handlers

import (
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/rukayathamzat/Airhost2402-sub001/internal/metrics"
	"github.com/rukayathamzat/Airhost2402-sub001/internal/models"
)

// SearchResponse represents the search response.
type SearchResponse struct {
	Query   string           `json:"query"`
	Results []models.Message `json:"results"`
	Total   int              `json:"total"`
}

// Search finds messages containing the query in the caller's conversations.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if utf8.RuneCountInString(query) < 2 {
		h.Error(w, http.StatusBadRequest, "query parameter 'q' must be at least 2 characters")
		return
	}
	if len(query) > 100 {
		h.Error(w, http.StatusBadRequest, "query too long (max 100 chars)")
		return
	}

	limit := queryInt(r, "limit", 20, 100)
	if limit == 0 {
		limit = 20
	}

	metrics.SearchQueries.Inc()
	messages, err := h.db.SearchMessages(r.Context(), currentUser(r).HostScope(), query, limit)
	if err != nil {
		h.serverError(w, "search", err)
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}

	h.JSON(w, http.StatusOK, SearchResponse{
		Query:   query,
		Results: messages,
		Total:   len(messages),
	})
}

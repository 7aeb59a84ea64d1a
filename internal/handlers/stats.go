package handlers

import (
	"net/http"
	"strconv"
	"time"
)

// StatsResponse represents the host dashboard counters.
type StatsResponse struct {
	Properties     int64  `json:"properties"`
	Conversations  int64  `json:"conversations"`
	UnreadMessages int64  `json:"unread_messages"`
	Messages24h    int64  `json:"messages_24h"`
	LastActivity   string `json:"last_activity"`
	Online         bool   `json:"online"`
}

// Stats returns the dashboard counters of the caller.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	stats, err := h.db.HostStats(r.Context(), user.HostScope())
	if err != nil {
		h.serverError(w, "stats", err)
		return
	}

	lastActivity := "no activity yet"
	if stats.LastActivity != nil {
		lastActivity = formatTimeAgo(*stats.LastActivity)
	}

	h.JSON(w, http.StatusOK, StatsResponse{
		Properties:     stats.Properties,
		Conversations:  stats.Conversations,
		UnreadMessages: stats.Unread,
		Messages24h:    stats.Messages24h,
		LastActivity:   lastActivity,
		Online:         h.hub != nil && h.hub.Connected(user.ID),
	})
}

// formatTimeAgo formats a time as a human-readable "X ago" string.
func formatTimeAgo(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return plural(int(diff.Minutes()), "minute") + " ago"
	case diff < 24*time.Hour:
		return plural(int(diff.Hours()), "hour") + " ago"
	default:
		return plural(int(diff.Hours()/24), "day") + " ago"
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return strconv.Itoa(n) + " " + unit + "s"
}

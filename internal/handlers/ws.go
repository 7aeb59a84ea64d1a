package handlers

import "net/http"

// Realtime upgrades the caller to a websocket receiving their events.
func (h *Handler) Realtime(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	if user.IsService() {
		h.Error(w, http.StatusForbidden, "realtime events are delivered to users")
		return
	}
	if h.hub == nil {
		h.Error(w, http.StatusServiceUnavailable, "realtime not available")
		return
	}
	h.hub.ServeWS(w, r, user.ID)
}

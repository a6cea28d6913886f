package handlers

import (
	"net/http"

	"wallet/internal/websocket"
)

func (h *Handler) WSBalances(w http.ResponseWriter, r *http.Request) {
	username, ok := currentUser(w, r)
	if !ok {
		return
	}
	websocket.ServeWS(w, r, h.hub, username)
}

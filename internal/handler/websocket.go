package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"ticketdesk/internal/chat"
	"ticketdesk/internal/store"
)

// createUpgrader creates a WebSocket upgrader with the given allowed origins
func createUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowedMap := make(map[string]bool)
	for _, origin := range allowedOrigins {
		allowedMap[origin] = true
	}

	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return allowedMap[origin]
		},
	}
}

// HandleChat handles GET /ws/chat/{ticket_id}
//
// The ticket must exist before the upgrade; authorization is assumed to have
// been resolved by the caller. The handler goroutine runs the session until
// the connection closes.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	id, err := ticketID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid ticket id")
		return
	}

	if _, err := h.Store.GetTicket(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Ticket not found")
			return
		}
		log.Printf("[WebSocket] ❌ Database error for ticket %d: %v", id, err)
		writeError(w, http.StatusInternalServerError, "Database error")
		return
	}

	upgrader := createUpgrader(h.Config.AllowedOrigins)
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	session := chat.NewSession(conn, id, h.Registry, h.Broadcaster, h.Store)
	session.Run()
}

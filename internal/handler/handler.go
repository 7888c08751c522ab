package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"ticketdesk/internal/chat"
	"ticketdesk/internal/config"
)

// Handler holds application dependencies
type Handler struct {
	Store       chat.Store
	Config      config.Config
	Registry    *chat.Registry
	Broadcaster *chat.Broadcaster
}

// New creates a new Handler with the given dependencies
func New(st chat.Store, cfg config.Config) *Handler {
	registry := chat.NewRegistry()
	return &Handler{
		Store:       st,
		Config:      cfg,
		Registry:    registry,
		Broadcaster: chat.NewBroadcaster(st, registry),
	}
}

// SetupRouter configures and returns the HTTP router
func (h *Handler) SetupRouter() *mux.Router {
	r := mux.NewRouter()

	// REST API
	r.HandleFunc("/tickets/{ticket_id}/messages", h.GetMessages).Methods("GET")
	r.HandleFunc("/tickets/{ticket_id}/messages", h.CreateMessage).Methods("POST")
	r.HandleFunc("/tickets/{ticket_id}/mark-read", h.MarkMessagesRead).Methods("POST")
	r.HandleFunc("/tickets/{ticket_id}/status", h.ChangeTicketStatus).Methods("POST")

	// WebSocket
	r.HandleFunc("/ws/chat/{ticket_id}", h.HandleChat).Methods("GET")

	return r
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

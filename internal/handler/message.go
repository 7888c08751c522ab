package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"ticketdesk/internal/model"
	"ticketdesk/internal/store"
)

// ticketID extracts and validates the {ticket_id} path variable
func ticketID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["ticket_id"], 10, 64)
	if err != nil || id < 1 {
		return 0, errors.New("invalid ticket id")
	}
	return id, nil
}

// GetMessages handles GET /tickets/{ticket_id}/messages
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	id, err := ticketID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid ticket id")
		return
	}
	log.Printf("[GET /tickets/%d/messages] Request received from %s", id, r.RemoteAddr)

	if _, err := h.Store.GetTicket(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Ticket not found")
			return
		}
		log.Printf("[GET /tickets/%d/messages] ❌ Database error: %v", id, err)
		writeError(w, http.StatusInternalServerError, "Database error")
		return
	}

	history, err := h.Store.History(id)
	if err != nil {
		log.Printf("[GET /tickets/%d/messages] ❌ Database error: %v", id, err)
		writeError(w, http.StatusInternalServerError, "Database error")
		return
	}

	log.Printf("[GET /tickets/%d/messages] ✅ Returned %d messages", id, len(history))
	writeJSON(w, http.StatusOK, history)
}

// CreateMessage handles POST /tickets/{ticket_id}/messages
//
// Creation goes through the broadcaster's persist-then-fan-out path, so a
// message posted over REST also reaches the room's live chat connections.
func (h *Handler) CreateMessage(w http.ResponseWriter, r *http.Request) {
	id, err := ticketID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid ticket id")
		return
	}
	log.Printf("[POST /tickets/%d/messages] Request received from %s", id, r.RemoteAddr)

	// リクエストボディサイズを1MBに制限
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req struct {
		SenderID int64  `json:"sender_id"`
		Content  string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("[POST /tickets/%d/messages] ❌ Bad Request: %v", id, err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Content == "" {
		log.Printf("[POST /tickets/%d/messages] ❌ Bad Request: missing or empty content", id)
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}
	if req.SenderID < 1 {
		log.Printf("[POST /tickets/%d/messages] ❌ Bad Request: missing sender_id", id)
		writeError(w, http.StatusBadRequest, "sender_id is required")
		return
	}

	msg, err := h.Broadcaster.Publish(id, req.SenderID, req.Content)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Printf("[POST /tickets/%d/messages] ❌ Not Found: %v", id, err)
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		log.Printf("[POST /tickets/%d/messages] ❌ Database error: %v", id, err)
		writeError(w, http.StatusInternalServerError, "Failed to create message")
		return
	}

	log.Printf("[POST /tickets/%d/messages] ✅ Created message: ID=%d, Content=%q", id, msg.ID, msg.Content)
	writeJSON(w, http.StatusCreated, msg)
}

// MarkMessagesRead handles POST /tickets/{ticket_id}/mark-read
//
// Marks every message on the ticket not sent by the requesting user as read.
func (h *Handler) MarkMessagesRead(w http.ResponseWriter, r *http.Request) {
	id, err := ticketID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid ticket id")
		return
	}
	log.Printf("[POST /tickets/%d/mark-read] Request received from %s", id, r.RemoteAddr)

	var req struct {
		UserID int64 `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID < 1 {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	if _, err := h.Store.GetTicket(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Ticket not found")
			return
		}
		log.Printf("[POST /tickets/%d/mark-read] ❌ Database error: %v", id, err)
		writeError(w, http.StatusInternalServerError, "Database error")
		return
	}

	if err := h.Store.MarkRead(id, req.UserID); err != nil {
		log.Printf("[POST /tickets/%d/mark-read] ❌ Database error: %v", id, err)
		writeError(w, http.StatusInternalServerError, "Failed to mark messages read")
		return
	}

	log.Printf("[POST /tickets/%d/mark-read] ✅ Messages marked as read", id)
	writeJSON(w, http.StatusOK, map[string]string{"status": "Messages marked as read"})
}

// ChangeTicketStatus handles POST /tickets/{ticket_id}/status
//
// Updates the ticket's status and notifies the room's live connections with
// an ephemeral status_update event. The notice is not persisted.
func (h *Handler) ChangeTicketStatus(w http.ResponseWriter, r *http.Request) {
	id, err := ticketID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid ticket id")
		return
	}
	log.Printf("[POST /tickets/%d/status] Request received from %s", id, r.RemoteAddr)

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !model.ValidStatus(req.Status) {
		log.Printf("[POST /tickets/%d/status] ❌ Bad Request: invalid status %q", id, req.Status)
		writeError(w, http.StatusBadRequest, "Invalid status")
		return
	}

	if err := h.Store.UpdateTicketStatus(id, req.Status); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Ticket not found")
			return
		}
		log.Printf("[POST /tickets/%d/status] ❌ Database error: %v", id, err)
		writeError(w, http.StatusInternalServerError, "Failed to update status")
		return
	}

	h.Broadcaster.PublishStatus(id, req.Status)
	log.Printf("[POST /tickets/%d/status] ✅ Status changed to %q", id, req.Status)
	writeJSON(w, http.StatusOK, map[string]string{"status": req.Status})
}

package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"ticketdesk/internal/store"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second

	maxMessageBytes = 4096
	sendBufferSize  = 256
)

// Session is the server side of one chat connection. It joins the ticket's
// room, replays the persisted history, then pumps messages in both directions
// until the connection dies. A closed session never rejoins; a reconnecting
// client gets a fresh Session.
type Session struct {
	id          string
	roomID      int64
	conn        *websocket.Conn
	registry    *Registry
	broadcaster *Broadcaster
	store       Store

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// NewSession wraps an upgraded WebSocket connection for the given room
func NewSession(conn *websocket.Conn, roomID int64, registry *Registry, broadcaster *Broadcaster, st Store) *Session {
	return &Session{
		id:          uuid.NewString(),
		roomID:      roomID,
		conn:        conn,
		registry:    registry,
		broadcaster: broadcaster,
		store:       st,
		send:        make(chan []byte, sendBufferSize),
		done:        make(chan struct{}),
	}
}

// ID returns the session's opaque connection id
func (s *Session) ID() string {
	return s.id
}

// Send queues data for delivery to this connection. It never blocks the
// caller: a full buffer or a closed session is reported as an error for the
// broadcaster to log and skip.
func (s *Session) Send(data []byte) error {
	select {
	case <-s.done:
		return fmt.Errorf("connection %s is closed", s.id)
	default:
	}

	select {
	case s.send <- data:
		return nil
	default:
		return fmt.Errorf("send buffer full for connection %s", s.id)
	}
}

// Run joins the room, replays history to the client, and drives the
// read/write pumps. It returns once the connection is closed and the
// session has left the room.
func (s *Session) Run() {
	if err := s.registry.Join(s.roomID, s.id, s); err != nil {
		log.Printf("[WebSocket] ❌ Connection %s could not join room %d: %v", s.id, s.roomID, err)
		s.Close()
		return
	}
	log.Printf("[WebSocket] Connection %s joined room %d", s.id, s.roomID)

	if err := s.replayHistory(); err != nil {
		log.Printf("[WebSocket] ❌ Failed to replay history for room %d: %v", s.roomID, err)
	}

	go s.writePump()
	s.readPump()
}

// Close transitions the session to its terminal state: the room membership is
// removed exactly once and the transport is torn down. Safe to call multiple
// times.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.registry.Leave(s.roomID, s.id)
		close(s.done)
		s.conn.Close()
		log.Printf("[WebSocket] Connection %s left room %d", s.id, s.roomID)
	})
}

// replayHistory sends the room's persisted messages as a single chat_history
// event, oldest first. A failed history read degrades to an empty replay so
// the client still receives exactly one chat_history frame after join.
func (s *Session) replayHistory() error {
	history, histErr := s.store.History(s.roomID)

	entries := make([]HistoryEntry, 0, len(history))
	for _, m := range history {
		entries = append(entries, HistoryEntry{
			Message:   m.Content,
			UserID:    m.SenderID,
			FirstName: m.Sender.FirstName,
			LastName:  m.Sender.LastName,
			UserType:  m.Sender.UserType,
			Timestamp: m.SentAt.Format(time.RFC3339Nano),
		})
	}

	data, err := json.Marshal(ChatHistoryEvent{Type: EventChatHistory, Messages: entries})
	if err != nil {
		return err
	}
	if err := s.Send(data); err != nil {
		return err
	}
	return histErr
}

func (s *Session) readPump() {
	defer s.Close()

	s.conn.SetReadLimit(maxMessageBytes)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) {
				log.Printf("[WebSocket] Read error on connection %s: %v", s.id, err)
			}
			break
		}
		s.handleInbound(data)
	}
}

// handleInbound validates one client payload and forwards it to the
// broadcaster. Invalid payloads produce an error event on this connection
// only; the session stays joined.
func (s *Session) handleInbound(data []byte) {
	var payload InboundPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		s.sendError(ErrCodeInvalidMsg, "invalid payload")
		return
	}

	if strings.TrimSpace(payload.Message) == "" {
		s.sendError(ErrCodeInvalidMsg, "message is required")
		return
	}
	if payload.UserID < 1 {
		s.sendError(ErrCodeInvalidMsg, "user_id is required")
		return
	}

	if _, err := s.broadcaster.Publish(s.roomID, payload.UserID, payload.Message); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.sendError(ErrCodeNotFound, err.Error())
			return
		}
		log.Printf("[WebSocket] ❌ Publish failed for room %d: %v", s.roomID, err)
		s.sendError(ErrCodeInternal, "failed to save message")
	}
}

// sendError reports a failure to this connection only; nothing is broadcast
func (s *Session) sendError(code, message string) {
	data, err := json.Marshal(ErrorEvent{Type: EventError, Code: code, Message: message})
	if err != nil {
		return
	}
	if err := s.Send(data); err != nil {
		log.Printf("[WebSocket] Could not deliver error to connection %s: %v", s.id, err)
	}
}

func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.Close()
	}()

	for {
		select {
		case <-s.done:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			s.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case data := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

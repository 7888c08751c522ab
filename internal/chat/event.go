package chat

// Server -> client event types
const (
	EventChatMessage  = "chat_message"
	EventChatHistory  = "chat_history"
	EventStatusUpdate = "status_update"
	EventError        = "error"
)

// Error codes carried by ErrorEvent
const (
	ErrCodeInvalidMsg = "invalid_message"
	ErrCodeNotFound   = "not_found"
	ErrCodeInternal   = "internal_error"
)

// InboundPayload is what a connected client sends to post a message
type InboundPayload struct {
	Message   string `json:"message"`
	UserID    int64  `json:"user_id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	UserType  string `json:"user_type"`
}

// ChatMessageEvent is fanned out to every member of a room when a message is
// published. Timestamp is the server-assigned store time in RFC 3339 form.
type ChatMessageEvent struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	UserID    int64  `json:"user_id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	UserType  string `json:"user_type"`
	Timestamp string `json:"timestamp"`
}

// HistoryEntry is one replayed message inside a ChatHistoryEvent
type HistoryEntry struct {
	Message   string `json:"message"`
	UserID    int64  `json:"user_id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	UserType  string `json:"user_type"`
	Timestamp string `json:"timestamp"`
}

// ChatHistoryEvent is sent once, immediately after a connection joins its
// room, with the persisted messages oldest first
type ChatHistoryEvent struct {
	Type     string         `json:"type"`
	Messages []HistoryEntry `json:"messages"`
}

// StatusUpdateEvent is an ephemeral ticket status notice. It is broadcast to
// the room's live connections only and never persisted.
type StatusUpdateEvent struct {
	Type      string `json:"type"`
	TicketID  int64  `json:"ticket_id"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// ErrorEvent tells the offending connection why its payload was rejected
type ErrorEvent struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

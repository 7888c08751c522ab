package model

import "time"

// Message represents a persisted chat message on a ticket's room
type Message struct {
	ID       int64     `json:"id"`
	TicketID int64     `json:"ticket_id"`
	SenderID int64     `json:"sender_id"`
	Content  string    `json:"content"`
	SentAt   time.Time `json:"sent_at"`
	IsRead   bool      `json:"is_read"`
}

// MessageWithSender pairs a message with its sender's account details
type MessageWithSender struct {
	Message
	Sender User `json:"sender_details"`
}

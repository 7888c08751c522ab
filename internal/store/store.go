package store

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"ticketdesk/internal/model"
)

// ErrNotFound is returned when a referenced user or ticket does not exist.
var ErrNotFound = errors.New("not found")

// Store persists chat messages and resolves the user/ticket references a
// message must carry before it may be stored.
type Store struct {
	db *sql.DB

	// sent_at と AUTO_INCREMENT id の割り当て順を揃えるため、
	// append だけはストア全体で直列化する
	appendMu sync.Mutex
}

// New creates a Store backed by the given database connection pool
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// AppendMessage durably stores a new chat message for the ticket's room and
// returns it with the store-assigned id and timestamp. Storage order per room
// is by assignment time, ties broken by the monotonic id.
func (s *Store) AppendMessage(ticketID, senderID int64, content string) (*model.Message, error) {
	s.appendMu.Lock()
	defer s.appendMu.Unlock()

	// DATETIME(6) はマイクロ秒までしか保持しないので、返す値も
	// 挿入前に切り詰めてリプレイ時のタイムスタンプと一致させる
	sentAt := time.Now().UTC().Truncate(time.Microsecond)
	result, err := s.db.Exec(
		"INSERT INTO messages (ticket_id, sender_id, content, sent_at, is_read) VALUES (?, ?, ?, ?, ?)",
		ticketID, senderID, content, sentAt, false,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to store message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve message id: %w", err)
	}

	return &model.Message{
		ID:       id,
		TicketID: ticketID,
		SenderID: senderID,
		Content:  content,
		SentAt:   sentAt,
	}, nil
}

// History returns every message stored for the ticket, oldest first, with the
// sender's account details joined in. The result is a snapshot; calling it
// again re-reads the log.
func (s *Store) History(ticketID int64) ([]model.MessageWithSender, error) {
	rows, err := s.db.Query(
		`SELECT m.id, m.ticket_id, m.sender_id, m.content, m.sent_at, m.is_read,
			u.first_name, u.last_name, u.user_type
		FROM messages m
		JOIN users u ON u.id = m.sender_id
		WHERE m.ticket_id = ?
		ORDER BY m.sent_at ASC, m.id ASC`,
		ticketID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var history []model.MessageWithSender
	for rows.Next() {
		var m model.MessageWithSender
		if err := rows.Scan(&m.ID, &m.TicketID, &m.SenderID, &m.Content, &m.SentAt, &m.IsRead,
			&m.Sender.FirstName, &m.Sender.LastName, &m.Sender.UserType); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.Sender.ID = m.SenderID
		history = append(history, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	if history == nil {
		history = []model.MessageWithSender{}
	}
	return history, nil
}

// MarkRead flags every message on the ticket not sent by the given user as
// read. Idempotent; re-running it changes nothing.
func (s *Store) MarkRead(ticketID, excludingSenderID int64) error {
	_, err := s.db.Exec(
		"UPDATE messages SET is_read = 1 WHERE ticket_id = ? AND sender_id <> ?",
		ticketID, excludingSenderID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark messages read: %w", err)
	}
	return nil
}

// GetUser resolves an account by id, or ErrNotFound
func (s *Store) GetUser(id int64) (*model.User, error) {
	var u model.User
	err := s.db.QueryRow(
		"SELECT id, first_name, last_name, user_type FROM users WHERE id = ?", id,
	).Scan(&u.ID, &u.FirstName, &u.LastName, &u.UserType)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user %d: %w", id, err)
	}
	return &u, nil
}

// GetTicket resolves a ticket by id, or ErrNotFound
func (s *Store) GetTicket(id int64) (*model.Ticket, error) {
	var t model.Ticket
	err := s.db.QueryRow(
		"SELECT id, title, status FROM tickets WHERE id = ?", id,
	).Scan(&t.ID, &t.Title, &t.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("ticket %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up ticket %d: %w", id, err)
	}
	return &t, nil
}

// UpdateTicketStatus sets the ticket's status, or ErrNotFound if the ticket
// does not exist
func (s *Store) UpdateTicketStatus(id int64, status string) error {
	result, err := s.db.Exec("UPDATE tickets SET status = ? WHERE id = ?", status, id)
	if err != nil {
		return fmt.Errorf("failed to update ticket %d: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update ticket %d: %w", id, err)
	}
	if affected == 0 {
		// ステータスが既に同じ値でも affected=0 になるので存在確認で区別する
		if _, err := s.GetTicket(id); err != nil {
			return err
		}
	}
	return nil
}

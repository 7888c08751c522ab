package chat

import (
	"fmt"
	"sync"
	"time"

	"ticketdesk/internal/model"
	"ticketdesk/internal/store"
)

// fakeStore is an in-memory chat.Store used by the chat tests
type fakeStore struct {
	mu         sync.Mutex
	nextID     int64
	base       time.Time
	messages   []model.Message
	users      map[int64]*model.User
	tickets    map[int64]*model.Ticket
	appendErr  error
	historyErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		base: time.Now().UTC(),
		users: map[int64]*model.User{
			1: {ID: 1, FirstName: "Alice", LastName: "Ng", UserType: model.UserTypeUser},
			2: {ID: 2, FirstName: "Bob", LastName: "Tanaka", UserType: model.UserTypeSupport},
		},
		tickets: map[int64]*model.Ticket{
			7:  {ID: 7, Title: "Password reset", Status: model.StatusOpen},
			42: {ID: 42, Title: "Printer on fire", Status: model.StatusOpen},
		},
	}
}

func (f *fakeStore) AppendMessage(ticketID, senderID int64, content string) (*model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return nil, f.appendErr
	}
	f.nextID++
	// Timestamps advance strictly with the id, like the real store's
	// serialized assignment.
	m := model.Message{
		ID:       f.nextID,
		TicketID: ticketID,
		SenderID: senderID,
		Content:  content,
		SentAt:   f.base.Add(time.Duration(f.nextID) * time.Millisecond),
	}
	f.messages = append(f.messages, m)
	return &m, nil
}

func (f *fakeStore) History(ticketID int64) ([]model.MessageWithSender, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	history := []model.MessageWithSender{}
	for _, m := range f.messages {
		if m.TicketID != ticketID {
			continue
		}
		entry := model.MessageWithSender{Message: m}
		if u, ok := f.users[m.SenderID]; ok {
			entry.Sender = *u
		}
		history = append(history, entry)
	}
	return history, nil
}

func (f *fakeStore) MarkRead(ticketID, excludingSenderID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.messages {
		if f.messages[i].TicketID == ticketID && f.messages[i].SenderID != excludingSenderID {
			f.messages[i].IsRead = true
		}
	}
	return nil
}

func (f *fakeStore) GetUser(id int64) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", id, store.ErrNotFound)
	}
	copied := *u
	return &copied, nil
}

func (f *fakeStore) GetTicket(id int64) (*model.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tickets[id]
	if !ok {
		return nil, fmt.Errorf("ticket %d: %w", id, store.ErrNotFound)
	}
	copied := *t
	return &copied, nil
}

func (f *fakeStore) UpdateTicketStatus(id int64, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tickets[id]
	if !ok {
		return fmt.Errorf("ticket %d: %w", id, store.ErrNotFound)
	}
	t.Status = status
	return nil
}

func (f *fakeStore) storedMessages() []model.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Message(nil), f.messages...)
}

// fakeHandle records deliveries and can be told to fail
type fakeHandle struct {
	mu       sync.Mutex
	received [][]byte
	fail     bool
}

func (h *fakeHandle) Send(data []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.fail {
		return fmt.Errorf("send failed")
	}
	h.received = append(h.received, append([]byte(nil), data...))
	return nil
}

func (h *fakeHandle) deliveries() [][]byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([][]byte(nil), h.received...)
}

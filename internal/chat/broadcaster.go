package chat

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"ticketdesk/internal/model"
)

// Store is the persistence surface the chat core depends on
type Store interface {
	AppendMessage(ticketID, senderID int64, content string) (*model.Message, error)
	History(ticketID int64) ([]model.MessageWithSender, error)
	MarkRead(ticketID, excludingSenderID int64) error
	GetUser(id int64) (*model.User, error)
	GetTicket(id int64) (*model.Ticket, error)
	UpdateTicketStatus(id int64, status string) error
}

// Broadcaster persists inbound messages and fans them out to every
// connection in the ticket's room
type Broadcaster struct {
	store    Store
	registry *Registry

	// 部屋ごとの publish ロック。append から enqueue までを直列化して、
	// 各メンバーが append 順どおりにイベントを受け取るようにする。
	// Handle.Send はノンブロッキングなので、保持したままの配信が
	// 他の部屋を止めることはない。
	mu        sync.Mutex
	roomLocks map[int64]*sync.Mutex
}

// NewBroadcaster creates a Broadcaster over the given store and registry
func NewBroadcaster(store Store, registry *Registry) *Broadcaster {
	return &Broadcaster{
		store:     store,
		registry:  registry,
		roomLocks: make(map[int64]*sync.Mutex),
	}
}

func (b *Broadcaster) roomLock(roomID int64) *sync.Mutex {
	b.mu.Lock()
	defer b.mu.Unlock()
	l := b.roomLocks[roomID]
	if l == nil {
		l = &sync.Mutex{}
		b.roomLocks[roomID] = l
	}
	return l
}

// Publish stores a message and delivers the resulting chat event to every
// member of the room, including the sender's own connection: the sender UI
// relies on the server-assigned timestamp coming back.
//
// The ticket and the sender must both resolve before anything is persisted;
// a failed append delivers nothing. A failed delivery to one member never
// aborts delivery to the rest and is not reported to the caller.
func (b *Broadcaster) Publish(roomID, senderID int64, content string) (*model.Message, error) {
	if _, err := b.store.GetTicket(roomID); err != nil {
		return nil, err
	}
	sender, err := b.store.GetUser(senderID)
	if err != nil {
		return nil, err
	}

	// Append and fan-out happen under the room's publish lock, so every
	// member sees this room's messages in append order even under
	// concurrent senders.
	lock := b.roomLock(roomID)
	lock.Lock()
	defer lock.Unlock()

	msg, err := b.store.AppendMessage(roomID, senderID, content)
	if err != nil {
		return nil, err
	}

	b.fanOut(roomID, ChatMessageEvent{
		Type:      EventChatMessage,
		Message:   msg.Content,
		UserID:    sender.ID,
		FirstName: sender.FirstName,
		LastName:  sender.LastName,
		UserType:  sender.UserType,
		Timestamp: msg.SentAt.Format(time.RFC3339Nano),
	})
	return msg, nil
}

// PublishStatus broadcasts a ticket status notice to the room. Status notices
// are ephemeral: only currently connected members see them, nothing is stored.
func (b *Broadcaster) PublishStatus(roomID int64, status string) {
	lock := b.roomLock(roomID)
	lock.Lock()
	defer lock.Unlock()

	b.fanOut(roomID, StatusUpdateEvent{
		Type:      EventStatusUpdate,
		TicketID:  roomID,
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// fanOut delivers one event to each current member of the room. Per-member
// failures are logged and skipped.
func (b *Broadcaster) fanOut(roomID int64, event interface{}) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[Broadcast] ❌ Failed to marshal event for room %d: %v", roomID, err)
		return
	}

	members := b.registry.Members(roomID)
	delivered := 0
	for _, member := range members {
		if err := member.Send(data); err != nil {
			log.Printf("[Broadcast] Dropped delivery to one member of room %d: %v", roomID, err)
			continue
		}
		delivered++
	}

	if len(members) > 0 {
		log.Printf("[Broadcast] 📢 Delivered event to %d/%d members of room %d", delivered, len(members), roomID)
	}
}

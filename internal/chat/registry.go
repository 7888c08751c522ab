package chat

import (
	"errors"
	"sync"
)

// ErrAlreadyJoined is returned when a connection that already belongs to one
// room tries to join a different one. A connection is bound to a single room
// for its lifetime; the caller must open a new connection instead.
var ErrAlreadyJoined = errors.New("connection is already joined to another room")

// Handle pushes data to one connection's outbound path
type Handle interface {
	Send(data []byte) error
}

// Registry tracks which connections currently belong to which ticket room.
//
// ロックは map 更新だけを守る。配信や DB 呼び出し中は保持しないので、
// ある room の遅い接続が他の room の進行を止めることはない。
type Registry struct {
	mu     sync.RWMutex
	rooms  map[int64]map[string]Handle
	joined map[string]int64 // connection id -> room it belongs to
}

// NewRegistry creates an empty Registry
func NewRegistry() *Registry {
	return &Registry{
		rooms:  make(map[int64]map[string]Handle),
		joined: make(map[string]int64),
	}
}

// Join registers the handle under the room. Joining the same room again
// replaces the handle; joining a different room fails with ErrAlreadyJoined.
func (r *Registry) Join(roomID int64, connID string, h Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.joined[connID]; ok && current != roomID {
		return ErrAlreadyJoined
	}

	room := r.rooms[roomID]
	if room == nil {
		room = make(map[string]Handle)
		r.rooms[roomID] = room
	}
	room[connID] = h
	r.joined[connID] = roomID
	return nil
}

// Leave removes the connection from the room. Idempotent: removing a
// non-member is a no-op. A room whose member set becomes empty is dropped.
func (r *Registry) Leave(roomID int64, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if room, ok := r.rooms[roomID]; ok {
		delete(room, connID)
		if len(room) == 0 {
			delete(r.rooms, roomID)
		}
	}
	if r.joined[connID] == roomID {
		delete(r.joined, connID)
	}
}

// Members returns a snapshot of the handles currently in the room, in no
// particular order. An absent room behaves like an empty one.
func (r *Registry) Members(roomID int64) []Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room := r.rooms[roomID]
	members := make([]Handle, 0, len(room))
	for _, h := range room {
		members = append(members, h)
	}
	return members
}

package chat

import (
	"errors"
	"fmt"
	"sync"
	"testing"
)

func TestJoinAndMembers(t *testing.T) {
	r := NewRegistry()

	a, b, c := &fakeHandle{}, &fakeHandle{}, &fakeHandle{}
	if err := r.Join(1, "conn-a", a); err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if err := r.Join(1, "conn-b", b); err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if err := r.Join(2, "conn-c", c); err != nil {
		t.Fatalf("Join failed: %v", err)
	}

	if got := len(r.Members(1)); got != 2 {
		t.Errorf("Expected 2 members in room 1, got %d", got)
	}
	if got := len(r.Members(2)); got != 1 {
		t.Errorf("Expected 1 member in room 2, got %d", got)
	}
	if got := len(r.Members(99)); got != 0 {
		t.Errorf("Expected absent room to be empty, got %d members", got)
	}
}

func TestJoinSecondRoomFails(t *testing.T) {
	r := NewRegistry()

	if err := r.Join(1, "conn-a", &fakeHandle{}); err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	err := r.Join(2, "conn-a", &fakeHandle{})
	if !errors.Is(err, ErrAlreadyJoined) {
		t.Fatalf("Expected ErrAlreadyJoined, got %v", err)
	}
	if got := len(r.Members(2)); got != 0 {
		t.Errorf("Failed join must not register membership, got %d members", got)
	}
}

func TestRejoinSameRoomReplacesHandle(t *testing.T) {
	r := NewRegistry()

	if err := r.Join(1, "conn-a", &fakeHandle{}); err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	replacement := &fakeHandle{}
	if err := r.Join(1, "conn-a", replacement); err != nil {
		t.Fatalf("Re-join of same room should succeed, got %v", err)
	}

	members := r.Members(1)
	if len(members) != 1 {
		t.Fatalf("Expected 1 member after re-join, got %d", len(members))
	}
	if members[0] != Handle(replacement) {
		t.Error("Re-join should have replaced the registered handle")
	}
}

func TestLeaveIsIdempotent(t *testing.T) {
	r := NewRegistry()

	if err := r.Join(1, "conn-a", &fakeHandle{}); err != nil {
		t.Fatalf("Join failed: %v", err)
	}

	r.Leave(1, "conn-a")
	r.Leave(1, "conn-a") // second leave is a no-op
	r.Leave(1, "never-joined")

	if got := len(r.Members(1)); got != 0 {
		t.Errorf("Expected no residual membership, got %d members", got)
	}

	// The connection is free to join again after leaving.
	if err := r.Join(3, "conn-a", &fakeHandle{}); err != nil {
		t.Errorf("Join after leave failed: %v", err)
	}
}

func TestEmptyRoomIsDropped(t *testing.T) {
	r := NewRegistry()

	r.Join(1, "conn-a", &fakeHandle{})
	r.Leave(1, "conn-a")

	r.mu.RLock()
	_, exists := r.rooms[1]
	r.mu.RUnlock()
	if exists {
		t.Error("Room with empty member set should be removed from the map")
	}
}

func TestConcurrentJoinLeave(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			roomID := int64(i % 2)
			connID := fmt.Sprintf("conn-%d", i)
			if err := r.Join(roomID, connID, &fakeHandle{}); err != nil {
				t.Errorf("Join failed: %v", err)
				return
			}
			r.Members(roomID)
			r.Leave(roomID, connID)
		}(i)
	}
	wg.Wait()

	if got := len(r.Members(0)) + len(r.Members(1)); got != 0 {
		t.Errorf("Expected all members gone, got %d", got)
	}
}

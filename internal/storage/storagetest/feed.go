package storagetest

import (
	"circleup/backend/internal/storage"
	"context"
	"sync"
)

// PublishRoomChange signals every open subscription of the room.
func (m *Memory) PublishRoomChange(_ context.Context, roomID string) error {
	if err := m.check(); err != nil {
		return err
	}
	m.subsMu.Lock()
	defer m.subsMu.Unlock()

	for sub := range m.subs[roomID] {
		sub.signal()
	}
	return nil
}

func (m *Memory) SubscribeRoomChanges(_ context.Context, roomID string) (storage.Subscription, error) {
	if err := m.check(); err != nil {
		return nil, err
	}
	sub := &memorySubscription{
		owner:   m,
		roomID:  roomID,
		changes: make(chan struct{}, 1),
	}

	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	if m.subs[roomID] == nil {
		m.subs[roomID] = make(map[*memorySubscription]struct{})
	}
	m.subs[roomID][sub] = struct{}{}
	return sub, nil
}

// Subscribers reports how many subscriptions are open for roomID.
func (m *Memory) Subscribers(roomID string) int {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	return len(m.subs[roomID])
}

// DropSubscriptions closes every open feed, as a lost Redis connection would.
func (m *Memory) DropSubscriptions() {
	m.subsMu.Lock()
	var all []*memorySubscription
	for _, set := range m.subs {
		for sub := range set {
			all = append(all, sub)
		}
	}
	m.subsMu.Unlock()

	for _, sub := range all {
		_ = sub.Close()
	}
}

type memorySubscription struct {
	owner   *Memory
	roomID  string
	changes chan struct{}

	mu     sync.Mutex
	closed bool
}

func (s *memorySubscription) Changes() <-chan struct{} { return s.changes }

func (s *memorySubscription) signal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.changes <- struct{}{}:
	default:
	}
}

func (s *memorySubscription) Close() error {
	s.owner.subsMu.Lock()
	delete(s.owner.subs[s.roomID], s)
	s.owner.subsMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.changes)
	}
	return nil
}

// Package livesync keeps a standing subscription to one room, turning each
// change notification into a complete ordered snapshot and mirroring it into
// the device cache.
package livesync

import (
	"circleup/backend/internal/cache"
	"circleup/backend/internal/models"
	"circleup/backend/internal/storage"
	"context"
	"fmt"
	"log"
	"sync"
)

// SnapshotFunc receives every snapshot on the engine's goroutine.
type SnapshotFunc func(msgs []models.Message)

type Options struct {
	// UserID owns the snapshots written to the cache.
	UserID                string
	ReplyFetchConcurrency int
	// Builder is shared between engines; a private one is created when nil.
	Builder *Builder
}

// Engine holds at most one live subscription at a time.
type Engine struct {
	storage storage.Storage
	cache   cache.Cache
	builder *Builder
	userID  string

	mu     sync.Mutex
	active *subscription
}

func NewEngine(s storage.Storage, c cache.Cache, opts Options) *Engine {
	builder := opts.Builder
	if builder == nil {
		builder = NewBuilder(s, opts.ReplyFetchConcurrency)
	}
	return &Engine{storage: s, cache: c, builder: builder, userID: opts.UserID}
}

// Subscribe stops any previous subscription, opens the room's change feed
// and delivers an initial snapshot followed by one per change. The returned
// unsubscribe is idempotent, waits for the loop to exit and must not be
// called from onSnapshot.
func (e *Engine) Subscribe(ctx context.Context, roomID string, onSnapshot SnapshotFunc) (func(), error) {
	e.Stop()

	feed, err := e.storage.SubscribeRoomChanges(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", roomID, err)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	sub := &subscription{
		engine:     e,
		roomID:     roomID,
		feed:       feed,
		onSnapshot: onSnapshot,
		ctx:        loopCtx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}

	e.mu.Lock()
	e.active = sub
	e.mu.Unlock()

	go sub.run()
	return sub.stop, nil
}

// Stop ends the active subscription, if any.
func (e *Engine) Stop() {
	e.mu.Lock()
	prev := e.active
	e.active = nil
	e.mu.Unlock()

	if prev != nil {
		prev.stop()
	}
}

// Active returns the room currently subscribed to.
func (e *Engine) Active() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active == nil {
		return "", false
	}
	return e.active.roomID, true
}

type subscription struct {
	engine     *Engine
	roomID     string
	feed       storage.Subscription
	onSnapshot SnapshotFunc

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func (s *subscription) run() {
	defer close(s.done)

	s.deliver()
	for {
		select {
		case <-s.ctx.Done():
			return
		case _, ok := <-s.feed.Changes():
			if !ok {
				if s.ctx.Err() == nil {
					log.Printf("WARNING: Change feed for room %s closed", s.roomID)
				}
				return
			}
			s.deliver()
		}
	}
}

// deliver keeps the previous snapshot current when a build fails.
func (s *subscription) deliver() {
	msgs, err := s.engine.builder.Build(s.ctx, s.roomID)
	if err != nil {
		if s.ctx.Err() == nil {
			log.Printf("ERROR: Failed to build snapshot for room %s: %v", s.roomID, err)
		}
		return
	}
	if s.ctx.Err() != nil {
		return
	}

	s.onSnapshot(msgs)

	if s.engine.cache == nil {
		return
	}
	if err := s.engine.cache.Save(s.ctx, cache.Snapshot{UserID: s.engine.userID, RoomID: s.roomID, Messages: msgs}); err != nil {
		log.Printf("WARNING: Failed to cache snapshot for room %s: %v", s.roomID, err)
	}
}

func (s *subscription) stop() {
	s.once.Do(func() {
		s.cancel()
		if err := s.feed.Close(); err != nil {
			log.Printf("WARNING: Failed to close change feed for room %s: %v", s.roomID, err)
		}
		<-s.done

		s.engine.mu.Lock()
		if s.engine.active == s {
			s.engine.active = nil
		}
		s.engine.mu.Unlock()
	})
}

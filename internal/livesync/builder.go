package livesync

import (
	"circleup/backend/internal/config"
	"circleup/backend/internal/models"
	"circleup/backend/internal/storage"
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const buildTimeout = 30 * time.Second

// Builder assembles room snapshots. One Builder is shared by every engine
// so devices watching the same room share reads.
//
// A caller never joins a build that started before it called Build: such a
// build may have read the store before the change the caller was notified
// about.
type Builder struct {
	storage     storage.Storage
	concurrency int

	group   singleflight.Group
	mu      sync.Mutex
	started map[string]uint64
}

func NewBuilder(s storage.Storage, replyFetchConcurrency int) *Builder {
	if replyFetchConcurrency < 1 {
		replyFetchConcurrency = config.DefaultReplyFetchConcurrency
	}
	return &Builder{
		storage:     s,
		concurrency: replyFetchConcurrency,
		started:     make(map[string]uint64),
	}
}

// Build returns the room's messages newest first, each with its replies.
// The returned slice is the caller's own; the messages inside may be shared
// with other callers and must be treated as read-only.
func (b *Builder) Build(ctx context.Context, roomID string) ([]models.Message, error) {
	b.mu.Lock()
	gen := b.started[roomID] + 1
	b.mu.Unlock()

	key := roomID + "#" + strconv.FormatUint(gen, 10)
	ch := b.group.DoChan(key, func() (interface{}, error) {
		b.mu.Lock()
		if b.started[roomID] < gen {
			b.started[roomID] = gen
		}
		b.mu.Unlock()

		// Збірка спільна для кількох викликів, тож не залежить від скасування одного з них.
		buildCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), buildTimeout)
		defer cancel()
		return b.build(buildCtx, roomID)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return slices.Clone(res.Val.([]models.Message)), nil
	}
}

func (b *Builder) build(ctx context.Context, roomID string) ([]models.Message, error) {
	msgs, err := b.storage.GetMessages(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("snapshot of %s: %w", roomID, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for i := range msgs {
		g.Go(func() error {
			replies, err := b.storage.GetReplies(gctx, roomID, msgs[i].ID)
			if err != nil {
				return fmt.Errorf("replies of %s: %w", msgs[i].ID, err)
			}
			if replies == nil {
				replies = []models.Reply{}
			}
			msgs[i].Replies = replies
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	SortSnapshot(msgs)
	return msgs, nil
}

// SortSnapshot orders messages by createdAt descending. Ties keep the order
// the store returned them in.
func SortSnapshot(msgs []models.Message) {
	slices.SortStableFunc(msgs, func(a, b models.Message) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
}

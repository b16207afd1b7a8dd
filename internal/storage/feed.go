package storage

import (
	"context"
	"log"
	"sync"

	"github.com/redis/go-redis/v9"
)

const changeSignal = "changed"

// PublishRoomChange публікує сигнал зміни кімнати в Redis Pub/Sub.
func (s *Service) PublishRoomChange(ctx context.Context, roomID string) error {
	if err := s.Redis.Publish(ctx, RoomChannel(roomID), changeSignal).Err(); err != nil {
		log.Printf("ERROR: Failed to publish change for room %s: %v", roomID, err)
		return classify(err)
	}
	return nil
}

// SubscribeRoomChanges returns once Redis has confirmed the subscription, so
// no change published after the call returns can be missed.
func (s *Service) SubscribeRoomChanges(ctx context.Context, roomID string) (Subscription, error) {
	pubsub := s.Redis.Subscribe(ctx, RoomChannel(roomID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, classify(err)
	}

	sub := &redisSubscription{
		pubsub:  pubsub,
		changes: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go sub.forward()
	return sub, nil
}

type redisSubscription struct {
	pubsub  *redis.PubSub
	changes chan struct{}
	done    chan struct{}
	once    sync.Once
}

func (r *redisSubscription) Changes() <-chan struct{} { return r.changes }

func (r *redisSubscription) Close() error {
	var err error
	r.once.Do(func() {
		err = r.pubsub.Close()
		<-r.done
	})
	return err
}

// forward collapses Redis messages into at most one pending signal.
func (r *redisSubscription) forward() {
	defer close(r.done)
	defer close(r.changes)

	for range r.pubsub.Channel() {
		select {
		case r.changes <- struct{}{}:
		default:
		}
	}
}

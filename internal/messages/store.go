// Package messages appends, reacts to and replies to room messages.
package messages

import (
	"circleup/backend/internal/config"
	"circleup/backend/internal/models"
	"circleup/backend/internal/storage"
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const backgroundWriteTimeout = 10 * time.Second

type Options struct {
	ReactionScope   models.ReactionScope
	WriteRetries    int
	WriteRetryDelay time.Duration
	Palette         []string
}

// DefaultOptions mirrors the config defaults.
func DefaultOptions() Options {
	return Options{
		ReactionScope:   models.ScopeUser,
		WriteRetries:    config.DefaultWriteRetries,
		WriteRetryDelay: config.DefaultWriteRetryDelay,
		Palette:         config.ReactionPalette,
	}
}

type Store struct {
	storage storage.Storage
	opts    Options

	// background tracks best-effort denormalisation writes.
	background sync.WaitGroup
}

func NewStore(s storage.Storage, opts Options) *Store {
	if opts.ReactionScope == "" {
		opts.ReactionScope = models.ScopeUser
	}
	if len(opts.Palette) == 0 {
		opts.Palette = config.ReactionPalette
	}
	return &Store{storage: s, opts: opts}
}

// Palette returns the reaction tokens users can pick from.
func (s *Store) Palette() []string {
	return slices.Clone(s.opts.Palette)
}

// Append writes a new message with an empty likedBy set and returns it with
// the server-assigned createdAt. An empty id is replaced with a fresh UUID.
func (s *Store) Append(ctx context.Context, roomID string, sender models.Sender, id string, content models.Content) (*models.Message, error) {
	if err := content.Validate(); err != nil {
		return nil, err
	}
	if id == "" {
		id = uuid.New().String()
	}

	msg := &models.Message{
		ID:       id,
		RoomID:   roomID,
		Text:     content.Text,
		Image:    content.Image,
		Location: content.Location,
		User:     sender,
		LikedBy:  []string{},
	}

	err := retryUnavailable(ctx, s.opts.WriteRetries+1, s.opts.WriteRetryDelay, func(attempt int) error {
		err := s.storage.InsertMessage(ctx, msg)
		// Після обриву з'єднання перша спроба могла вже закомітитись.
		if attempt > 0 && errors.Is(err, models.ErrMessageExists) {
			return nil
		}
		if err != nil && attempt < s.opts.WriteRetries && errors.Is(err, models.ErrBackendUnavailable) {
			log.Printf("WARNING: Retrying message %s for room %s: %v", id, roomID, err)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("append message %s: %w", id, err)
	}

	s.notify(ctx, roomID)
	s.denormalize(*msg)
	return msg, nil
}

// ToggleReaction flips the caller's reaction token in likedBy. Applying it
// twice restores the original set.
func (s *Store) ToggleReaction(ctx context.Context, roomID, messageID, userID, emoji string) ([]string, error) {
	if !slices.Contains(s.opts.Palette, emoji) {
		return nil, fmt.Errorf("%q: %w", emoji, models.ErrUnknownReaction)
	}

	token := models.ReactionToken(s.opts.ReactionScope, userID, emoji)
	likedBy, err := s.storage.ToggleReaction(ctx, roomID, messageID, token)
	if err != nil {
		return nil, fmt.Errorf("toggle reaction on %s: %w", messageID, err)
	}

	s.notify(ctx, roomID)
	return likedBy, nil
}

// Reply stores text under the parent message. Top-level ordering and
// likedBy are unaffected.
func (s *Store) Reply(ctx context.Context, roomID, messageID string, sender models.Sender, text string) (*models.Reply, error) {
	if strings.TrimSpace(text) == "" {
		return nil, models.ErrEmptyReply
	}

	reply := &models.Reply{
		ID:        uuid.New().String(),
		RoomID:    roomID,
		MessageID: messageID,
		Text:      text,
		User:      sender,
	}
	if err := s.storage.InsertReply(ctx, reply); err != nil {
		return nil, fmt.Errorf("reply to %s: %w", messageID, err)
	}

	s.notify(ctx, roomID)
	return reply, nil
}

// FetchAll is a one-shot read of the room, newest first. Replies are not joined.
func (s *Store) FetchAll(ctx context.Context, roomID string) ([]models.Message, error) {
	msgs, err := s.storage.GetMessages(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("fetch messages of %s: %w", roomID, err)
	}
	return msgs, nil
}

// Flush waits for pending background writes.
func (s *Store) Flush() {
	s.background.Wait()
}

// notify never fails the caller: the write is already durable.
func (s *Store) notify(ctx context.Context, roomID string) {
	if err := s.storage.PublishRoomChange(ctx, roomID); err != nil {
		log.Printf("WARNING: Change for room %s not published: %v", roomID, err)
	}
}

// denormalize updates the room preview and the sender's history in the background.
func (s *Store) denormalize(msg models.Message) {
	s.background.Add(1)
	go func() {
		defer s.background.Done()

		ctx, cancel := context.WithTimeout(context.Background(), backgroundWriteTimeout)
		defer cancel()

		if err := s.storage.UpdateRoomLastMessage(ctx, msg.RoomID, msg.Summary()); err != nil {
			log.Printf("ERROR: Failed to update last message of room %s: %v", msg.RoomID, err)
		}

		entry := &models.UserMessage{
			UserID:      msg.User.ID,
			MessageID:   msg.ID,
			RoomID:      msg.RoomID,
			Text:        msg.Text,
			HasImage:    msg.Image != "",
			HasLocation: msg.Location != nil,
			SentAt:      msg.CreatedAt,
		}
		if err := s.storage.SaveUserMessage(ctx, entry); err != nil {
			log.Printf("ERROR: Failed to save message history for user %s: %v", msg.User.ID, err)
		}
	}()
}

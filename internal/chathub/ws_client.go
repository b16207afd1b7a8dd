package chathub

import (
	"circleup/backend/internal/config"
	"circleup/backend/internal/localization"
	"circleup/backend/internal/models"
	"circleup/backend/internal/session"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var errUnknownCommand = errors.New("unknown command")

// LocationSharer builds a validated location payload.
type LocationSharer interface {
	ShareLocation(latitude, longitude float64) (models.Content, error)
}

// ClientOptions carries what a WebSocketClient needs besides its connection.
type ClientOptions struct {
	// NewSession builds the chat session for the connected device.
	NewSession func(user models.User, deviceID string, render session.Renderer) *session.Session
	// DeviceID keys the local message cache; the user id is used when empty.
	DeviceID  string
	Locations LocationSharer
	Localizer *localization.Localizer
	Lang      string
}

// WebSocketClient реалізує інтерфейс chathub.Client
type WebSocketClient struct {
	ConnID string
	User   models.User
	Conn   *websocket.Conn
	Hub    *ManagerService
	Send   chan models.ServerEvent

	session   *session.Session
	locations LocationSharer
	localizer *localization.Localizer
	lang      string

	// Views are coalesced: only the newest one is written.
	viewMu    sync.Mutex
	view      *models.ServerEvent
	viewReady chan struct{}

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

func NewWebSocketClient(conn *websocket.Conn, hub *ManagerService, user models.User, opts ClientOptions) *WebSocketClient {
	ctx, cancel := context.WithCancel(context.Background())
	c := &WebSocketClient{
		ConnID:    uuid.New().String(),
		User:      user,
		Conn:      conn,
		Hub:       hub,
		Send:      make(chan models.ServerEvent, config.SendBuffer),
		locations: opts.Locations,
		localizer: opts.Localizer,
		lang:      opts.Lang,
		viewReady: make(chan struct{}, 1),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	deviceID := opts.DeviceID
	if deviceID == "" {
		deviceID = user.ID
	}
	c.session = opts.NewSession(user, deviceID, c.render)
	return c
}

// --- Реалізація методів інтерфейсу ---

func (c *WebSocketClient) GetConnID() string                         { return c.ConnID }
func (c *WebSocketClient) GetUserID() string                         { return c.User.ID }
func (c *WebSocketClient) GetSendChannel() chan<- models.ServerEvent { return c.Send }

// Run запускає 'pumps' для WebSocket
func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

// Close leaves the room and stops the write pump; the read pump stops
// when the connection is closed.
func (c *WebSocketClient) Close() {
	c.closeOnce.Do(func() {
		c.cancel()
		c.session.Close()
		close(c.done)
	})
}

// render is the session's Renderer.
func (c *WebSocketClient) render(v session.View) {
	event := models.ServerEvent{
		Type:     models.EventView,
		State:    v.State.String(),
		RoomID:   v.RoomID,
		Messages: v.Messages,
		Selected: v.Selected,
	}

	c.viewMu.Lock()
	c.view = &event
	c.viewMu.Unlock()

	select {
	case c.viewReady <- struct{}{}:
	default:
	}
}

func (c *WebSocketClient) takeView() *models.ServerEvent {
	c.viewMu.Lock()
	defer c.viewMu.Unlock()
	v := c.view
	c.view = nil
	return v
}

// push queues an event for the write pump. A client that cannot keep up is
// dropped.
func (c *WebSocketClient) push(event models.ServerEvent) {
	select {
	case c.Send <- event:
	case <-c.done:
	default:
		log.Printf("WARNING: Send buffer full for client %s, disconnecting", c.ConnID)
		go c.Hub.Unregister(c)
	}
}

func (c *WebSocketClient) alert(err error) {
	key, text := c.localizer.Alert(c.lang, err)
	log.Printf("WARNING: Client %s (%s): %v", c.ConnID, c.User.ID, err)
	c.push(models.ServerEvent{Type: models.EventAlert, Code: key, Message: text})
}

// handle executes one command. Errors are reported to the device and never
// end the connection.
func (c *WebSocketClient) handle(cmd models.ClientCommand) error {
	ctx := c.ctx
	s := c.session

	switch cmd.Type {
	case models.CommandOpen:
		err := s.Open(ctx, cmd.RoomID, cmd.Password)
		if s.State() != session.Detached {
			c.push(models.ServerEvent{Type: models.EventPalette, Reactions: s.Palette()})
		}
		return err
	case models.CommandSend:
		return s.Send(ctx, cmd.Content())
	case models.CommandLocation:
		if cmd.Location == nil {
			return models.ErrInvalidLocation
		}
		content, err := c.locations.ShareLocation(cmd.Location.Latitude, cmd.Location.Longitude)
		if err != nil {
			return err
		}
		return s.Send(ctx, content)
	case models.CommandSelect:
		return s.SelectForReaction(cmd.MessageID)
	case models.CommandClearSelection:
		s.ClearSelection()
		return nil
	case models.CommandReact:
		return s.React(ctx, cmd.Emoji)
	case models.CommandReply:
		return s.Reply(ctx, cmd.MessageID, cmd.Text)
	case models.CommandClose:
		s.Close()
		return nil
	default:
		return fmt.Errorf("%w %q", errUnknownCommand, cmd.Type)
	}
}

// --- Логіка 'Pump' ---

func (c *WebSocketClient) readPump() {
	// Встановлення таймаутів та обробка закриття з'єднання
	defer func() {
		c.Hub.Unregister(c) // Надсилаємо команду на Unregister
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(config.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(config.PongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("ERROR: Reading from client %s: %v", c.ConnID, err)
			}
			break
		}

		var cmd models.ClientCommand
		if err := json.Unmarshal(message, &cmd); err != nil {
			log.Printf("WARNING: Error decoding JSON from client %s: %v", c.ConnID, err)
			c.alert(err)
			continue // Пропускаємо невірне повідомлення
		}

		if err := c.handle(cmd); err != nil {
			c.alert(err)
		}
	}
}

// writePump пише події та найновіший view у WebSocket.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(config.PingPeriod)

	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case event := <-c.Send:
			if err := c.write(event); err != nil {
				return
			}

		case <-c.viewReady:
			if view := c.takeView(); view != nil {
				if err := c.write(*view); err != nil {
					return
				}
			}

		case <-ticker.C:
			// Надсилаємо Ping для підтримки з'єднання активним
			c.Conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.Conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
			c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *WebSocketClient) write(event models.ServerEvent) error {
	c.Conn.SetWriteDeadline(time.Now().Add(config.WriteWait))

	w, err := c.Conn.NextWriter(websocket.TextMessage)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(w).Encode(event); err != nil {
		log.Printf("ERROR: Encoding event for client %s: %v", c.ConnID, err)
	}
	return w.Close()
}

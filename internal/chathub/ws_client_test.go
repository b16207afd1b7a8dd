package chathub_test

import (
	"circleup/backend/internal/attachment"
	"circleup/backend/internal/chathub"
	"circleup/backend/internal/livesync"
	"circleup/backend/internal/localization"
	"circleup/backend/internal/messages"
	"circleup/backend/internal/models"
	"circleup/backend/internal/rooms"
	"circleup/backend/internal/session"
	"circleup/backend/internal/storage/storagetest"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type harness struct {
	hub *chathub.ManagerService
	mem *storagetest.Memory
	url string
}

func newHarness(t *testing.T) harness {
	t.Helper()
	mem := storagetest.NewMemory()
	hasher := rooms.NewPasswordHasher(bcrypt.MinCost)
	_, err := rooms.NewDirectory(mem, hasher).CreateRoom(context.Background(), models.User{ID: "owner"}, rooms.CreateRoomRequest{ID: "general", Name: "General"})
	require.NoError(t, err)

	ledger := rooms.NewLedger(mem, hasher)
	store := messages.NewStore(mem, messages.DefaultOptions())
	t.Cleanup(store.Flush)
	localizer, err := localization.Default()
	require.NoError(t, err)
	pipeline := attachment.NewPipeline(nil, attachment.Options{})

	hub := chathub.NewManagerService()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		user := models.User{ID: r.URL.Query().Get("user"), IsGuest: true}
		client := chathub.NewWebSocketClient(conn, hub, user, chathub.ClientOptions{
			NewSession: func(user models.User, _ string, render session.Renderer) *session.Session {
				return session.New(user, session.Deps{
					Ledger:   ledger,
					Sync:     livesync.NewEngine(mem, nil, livesync.Options{}),
					Messages: store,
				}, render)
			},
			Locations: pipeline,
			Localizer: localizer,
			Lang:      "en",
		})
		hub.Register(client)
	}))
	t.Cleanup(srv.Close)

	return harness{hub: hub, mem: mem, url: "ws" + strings.TrimPrefix(srv.URL, "http")}
}

func (h harness) dial(t *testing.T, userID string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(h.url+"?user="+userID, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readUntil(t *testing.T, conn *websocket.Conn, match func(models.ServerEvent) bool) models.ServerEvent {
	t.Helper()
	deadline := time.Now().Add(waitFor)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		var event models.ServerEvent
		require.NoError(t, conn.ReadJSON(&event))
		if match(event) {
			return event
		}
	}
}

func isType(typ string) func(models.ServerEvent) bool {
	return func(e models.ServerEvent) bool { return e.Type == typ }
}

func TestWebSocketClient_OpenSendReceive(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t, "guest-1")

	require.NoError(t, conn.WriteJSON(models.ClientCommand{Type: models.CommandOpen, RoomID: "general"}))
	palette := readUntil(t, conn, isType(models.EventPalette))
	assert.Equal(t, []string{"👍", "❤️", "😂", "🔥", "😮"}, palette.Reactions)

	require.NoError(t, conn.WriteJSON(models.ClientCommand{Type: models.CommandSend, Text: "hello room"}))
	view := readUntil(t, conn, func(e models.ServerEvent) bool {
		return e.Type == models.EventView && e.State == "live" && len(e.Messages) == 1 && !e.Messages[0].Pending
	})
	assert.Equal(t, "general", view.RoomID)
	assert.Equal(t, "hello room", view.Messages[0].Text)
	assert.Equal(t, "guest-1", view.Messages[0].User.ID)

	require.NoError(t, conn.WriteJSON(models.ClientCommand{Type: models.CommandLocation, Location: &models.Location{Latitude: 50.45, Longitude: 30.52}}))
	view = readUntil(t, conn, func(e models.ServerEvent) bool {
		return e.Type == models.EventView && len(e.Messages) == 2 && e.Messages[0].Location != nil
	})
	assert.InDelta(t, 50.45, view.Messages[0].Location.Latitude, 1e-9)
}

func TestWebSocketClient_FailuresBecomeAlerts(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t, "guest-2")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	alert := readUntil(t, conn, isType(models.EventAlert))
	assert.Equal(t, localization.GenericAlertKey, alert.Code)

	require.NoError(t, conn.WriteJSON(models.ClientCommand{Type: models.CommandSend, Text: "too early"}))
	alert = readUntil(t, conn, isType(models.EventAlert))
	assert.Equal(t, "alert.not_in_room", alert.Code)
	assert.Equal(t, "Open a room first.", alert.Message)

	require.NoError(t, conn.WriteJSON(models.ClientCommand{Type: models.CommandOpen, RoomID: "nowhere"}))
	alert = readUntil(t, conn, isType(models.EventAlert))
	assert.Equal(t, "alert.room_not_found", alert.Code)

	require.NoError(t, conn.WriteJSON(models.ClientCommand{Type: models.CommandOpen, RoomID: "general"}))
	readUntil(t, conn, isType(models.EventPalette))
	require.NoError(t, conn.WriteJSON(models.ClientCommand{Type: models.CommandReact, Emoji: "👍"}))
	alert = readUntil(t, conn, isType(models.EventAlert))
	assert.Equal(t, "alert.no_selection", alert.Code)

	require.NoError(t, conn.WriteJSON(models.ClientCommand{Type: "dance"}))
	alert = readUntil(t, conn, isType(models.EventAlert))
	assert.Equal(t, localization.GenericAlertKey, alert.Code)

	// The connection survives every failure above.
	assert.Equal(t, 1, h.hub.Count())
}

func TestWebSocketClient_DisconnectUnregisters(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t, "guest-3")
	require.NoError(t, conn.WriteJSON(models.ClientCommand{Type: models.CommandOpen, RoomID: "general"}))
	readUntil(t, conn, isType(models.EventPalette))
	require.Eventually(t, func() bool { return h.mem.Subscribers("general") == 1 }, waitFor, tick)

	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool { return h.hub.Count() == 0 }, waitFor, tick)
	require.Eventually(t, func() bool { return h.mem.Subscribers("general") == 0 }, waitFor, tick)
}

package handler_test

import (
	"bytes"
	"circleup/backend/internal/api/handler"
	"circleup/backend/internal/attachment"
	"circleup/backend/internal/auth"
	"circleup/backend/internal/chathub"
	"circleup/backend/internal/livesync"
	"circleup/backend/internal/localization"
	"circleup/backend/internal/messages"
	"circleup/backend/internal/models"
	"circleup/backend/internal/rooms"
	"circleup/backend/internal/session"
	"circleup/backend/internal/storage/storagetest"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01")

type memBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func (m *memBlobs) Put(_ context.Context, name string, data []byte, contentType string) (*attachment.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[name] = bytes.Clone(data)
	m.types[name] = contentType
	return &attachment.ObjectInfo{Name: name, Size: uint64(len(data)), ContentType: contentType, ModTime: time.Now()}, nil
}

func (m *memBlobs) Get(_ context.Context, name string) ([]byte, *attachment.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[name]
	if !ok {
		return nil, nil, models.ErrAttachmentNotFound
	}
	return data, &attachment.ObjectInfo{Name: name, ContentType: m.types[name]}, nil
}

type server struct {
	router *gin.Engine
	mem    *storagetest.Memory
	issuer *auth.Issuer
}

func newServer(t *testing.T) server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mem := storagetest.NewMemory()
	hasher := rooms.NewPasswordHasher(bcrypt.MinCost)
	ledger := rooms.NewLedger(mem, hasher)
	store := messages.NewStore(mem, messages.DefaultOptions())
	t.Cleanup(store.Flush)
	localizer, err := localization.Default()
	require.NoError(t, err)
	blobs := &memBlobs{objects: map[string][]byte{}, types: map[string]string{}}
	issuer := auth.NewIssuer("test-secret", time.Hour)

	h := handler.NewHandler(handler.Handler{
		Hub:       chathub.NewManagerService(),
		Auth:      issuer,
		Directory: rooms.NewDirectory(mem, hasher),
		Ledger:    ledger,
		Messages:  store,
		Pipeline:  attachment.NewPipeline(blobs, attachment.Options{PublicBaseURL: "http://chat.test"}),
		Blobs:     blobs,
		Localizer: localizer,
		NewSession: func(user models.User, _ string, render session.Renderer) *session.Session {
			return session.New(user, session.Deps{
				Ledger:   ledger,
				Sync:     livesync.NewEngine(mem, nil, livesync.Options{}),
				Messages: store,
			}, render)
		},
	})
	r := gin.New()
	h.Routes(r)
	return server{router: r, mem: mem, issuer: issuer}
}

func (s server) account(t *testing.T, id string) string {
	t.Helper()
	token, err := s.issuer.IssueAccount(models.User{ID: id, Name: id})
	require.NoError(t, err)
	return token
}

func (s server) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s server) upload(t *testing.T, path, token, filename string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("image", filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, form.WriteField("caption", "look"))
	require.NoError(t, form.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestHealthAndGuest(t *testing.T) {
	s := newServer(t)

	w := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPost, "/guest", "", map[string]string{"name": "Visitor"})
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Token string      `json:"token"`
		User  models.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.User.IsGuest)

	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/rooms", "", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/rooms", resp.Token, nil).Code)
}

func TestCreateAndJoinRooms(t *testing.T) {
	s := newServer(t)
	owner := s.account(t, "owner")
	joiner := s.account(t, "joiner")

	tests := []struct {
		name   string
		body   any
		status int
	}{
		{name: "public", body: map[string]any{"chatRoom_ID": "general", "chatRoomName": "General"}, status: http.StatusCreated},
		{name: "duplicate id", body: map[string]any{"chatRoom_ID": "general", "chatRoomName": "Again"}, status: http.StatusConflict},
		{name: "private without password", body: map[string]any{"chatRoom_ID": "p1", "chatRoomName": "P", "isPrivate": true}, status: http.StatusUnprocessableEntity},
		{name: "short password", body: map[string]any{"chatRoom_ID": "p2", "chatRoomName": "P", "isPrivate": true, "password": "abc"}, status: http.StatusUnprocessableEntity},
		{name: "missing name", body: map[string]any{"chatRoom_ID": "x"}, status: http.StatusBadRequest},
		{name: "private", body: map[string]any{"chatRoom_ID": "secret", "chatRoomName": "Secret", "isPrivate": true, "password": "abcd"}, status: http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, "/rooms", owner, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}

	w := s.do(t, http.MethodGet, "/rooms/secret", joiner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "abcd")
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/rooms/nope", joiner, nil).Code)

	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, "/rooms/secret/messages", joiner, nil).Code)

	w = s.do(t, http.MethodPost, "/rooms/secret/join", joiner, map[string]string{"password": "wrong"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "alert.incorrect_password")

	w = s.do(t, http.MethodPost, "/rooms/secret/join", joiner, map[string]string{"password": "abcd"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/me/rooms", joiner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "secret")
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/rooms/secret/messages", joiner, nil).Code)
}

func TestBackendUnavailable(t *testing.T) {
	s := newServer(t)
	token := s.account(t, "ada")
	s.mem.Unavailable.Store(true)

	w := s.do(t, http.MethodGet, "/rooms", token, nil)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "alert.backend_unavailable")
}

func TestUploadAttachment(t *testing.T) {
	s := newServer(t)
	token := s.account(t, "ada")
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/rooms", token, map[string]any{"chatRoom_ID": "general", "chatRoomName": "General"}).Code)

	w := s.upload(t, "/rooms/general/attachments", token, "cat.png", pngHeader)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var msg models.Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &msg))
	assert.Equal(t, "look", msg.Text)
	require.True(t, strings.HasPrefix(msg.Image, "http://chat.test/attachments/ada-"), msg.Image)

	name := strings.TrimPrefix(msg.Image, "http://chat.test")
	w = s.do(t, http.MethodGet, name, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, pngHeader, w.Body.Bytes())

	w = s.upload(t, "/rooms/general/attachments", token, "notes.txt", []byte("plain text"))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/attachments/missing.png", "", nil).Code)

	stored, err := s.mem.GetMessages(context.Background(), "general")
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

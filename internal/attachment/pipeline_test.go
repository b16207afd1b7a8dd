package attachment_test

import (
	"circleup/backend/internal/attachment"
	"circleup/backend/internal/models"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockBlobStore struct {
	mock.Mock
}

func (m *MockBlobStore) Put(ctx context.Context, name string, data []byte, contentType string) (*attachment.ObjectInfo, error) {
	args := m.Called(ctx, name, data, contentType)
	info, _ := args.Get(0).(*attachment.ObjectInfo)
	return info, args.Error(1)
}

func (m *MockBlobStore) Get(ctx context.Context, name string) ([]byte, *attachment.ObjectInfo, error) {
	args := m.Called(ctx, name)
	data, _ := args.Get(0).([]byte)
	info, _ := args.Get(1).(*attachment.ObjectInfo)
	return data, info, args.Error(2)
}

type deniedRef struct{}

func (deniedRef) Name() string { return "photo.png" }
func (deniedRef) Open() (io.ReadCloser, error) {
	return nil, fmt.Errorf("open photo.png: %w", fs.ErrPermission)
}

// Minimal PNG signature followed by padding; enough for content sniffing.
var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...)

func newPipeline(store attachment.BlobStore, maxBytes int64) *attachment.Pipeline {
	return attachment.NewPipeline(store, attachment.Options{
		MaxBytes:      maxBytes,
		UploadTimeout: 50 * time.Millisecond,
		PublicBaseURL: "http://localhost:8080/",
	})
}

func TestPipeline_UploadImage(t *testing.T) {
	// Arrange
	store := new(MockBlobStore)
	store.On("Put", mock.Anything, mock.MatchedBy(func(name string) bool {
		return strings.HasPrefix(name, "ada-") && strings.HasSuffix(name, "-photo.png")
	}), pngBytes, "image/png").Return(&attachment.ObjectInfo{Name: "x"}, nil)
	pipeline := newPipeline(store, 1024)

	// Act
	content, err := pipeline.UploadImage(context.Background(), "ada", attachment.BytesRef{Filename: "../../photo.png", Data: pngBytes})

	// Assert
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(content.Image, "http://localhost:8080/attachments/ada-"))
	assert.Equal(t, models.KindImage, content.Kind())
	store.AssertExpectations(t)
}

func TestPipeline_UploadImage_Failures(t *testing.T) {
	tests := []struct {
		name   string
		media  attachment.MediaRef
		putErr error
		reason error
	}{
		{name: "permission denied", media: deniedRef{}, reason: models.ErrPermissionDenied},
		{name: "empty", media: attachment.BytesRef{Filename: "a.png"}, reason: models.ErrEmptyPayload},
		{name: "too large", media: attachment.BytesRef{Filename: "a.png", Data: append(pngBytes, make([]byte, 2048)...)}, reason: models.ErrPayloadTooLarge},
		{name: "not an image", media: attachment.BytesRef{Filename: "a.txt", Data: []byte("hello there")}, reason: models.ErrUnsupportedMedia},
		{name: "timeout", media: attachment.BytesRef{Filename: "a.png", Data: pngBytes}, putErr: nats.ErrTimeout, reason: models.ErrUploadTimeout},
		{name: "unauthorized", media: attachment.BytesRef{Filename: "a.png", Data: pngBytes}, putErr: nats.ErrAuthorization, reason: models.ErrUnauthorizedStorage},
		{name: "network", media: attachment.BytesRef{Filename: "a.png", Data: pngBytes}, putErr: nats.ErrConnectionClosed, reason: nats.ErrConnectionClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := new(MockBlobStore)
			store.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, tt.putErr)
			pipeline := newPipeline(store, 1024)

			content, err := pipeline.UploadImage(context.Background(), "ada", tt.media)

			assert.ErrorIs(t, err, models.ErrAttachmentUploadFailed)
			assert.ErrorIs(t, err, tt.reason)
			assert.Equal(t, models.Content{}, content)
			if tt.putErr == nil {
				store.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			}
		})
	}
}

func TestPipeline_UploadImage_DeadlineFromSlowStore(t *testing.T) {
	store := new(MockBlobStore)
	store.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil, errors.New("put aborted"))
	pipeline := newPipeline(store, 1024)

	_, err := pipeline.UploadImage(context.Background(), "ada", attachment.BytesRef{Filename: "a.png", Data: pngBytes})

	assert.ErrorIs(t, err, models.ErrUploadTimeout)
}

func TestPipeline_ShareLocation(t *testing.T) {
	pipeline := newPipeline(new(MockBlobStore), 0)

	content, err := pipeline.ShareLocation(50.45, 30.52)
	require.NoError(t, err)
	assert.Equal(t, models.KindLocation, content.Kind())

	_, err = pipeline.ShareLocation(-95, 0)
	assert.ErrorIs(t, err, models.ErrInvalidLocation)
}

func TestObjectName(t *testing.T) {
	at := time.UnixMilli(1700000000123)

	assert.Equal(t, "ada-1700000000123-photo.png", attachment.ObjectName("ada", at, "/tmp/photo.png"))
	assert.Equal(t, "ada-1700000000123-my_cat.jpg", attachment.ObjectName("ada", at, "my cat.jpg"))
	assert.Equal(t, "ada-1700000000123-image", attachment.ObjectName("ada", at, ""))
}

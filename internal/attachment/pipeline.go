// Package attachment uploads device media to blob storage and turns it into
// message content. A failed upload never produces content, so nothing is
// appended to the room.
package attachment

import (
	"bytes"
	"circleup/backend/internal/config"
	"circleup/backend/internal/models"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

// MediaRef is a handle to picked media. Open may fail if the user denied access.
type MediaRef interface {
	Name() string
	Open() (io.ReadCloser, error)
}

type Options struct {
	MaxBytes      int64
	UploadTimeout time.Duration
	PublicBaseURL string
}

type Pipeline struct {
	store BlobStore
	opts  Options
	now   func() time.Time
}

func NewPipeline(store BlobStore, opts Options) *Pipeline {
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = config.DefaultMaxAttachmentBytes
	}
	if opts.UploadTimeout <= 0 {
		opts.UploadTimeout = config.DefaultUploadTimeout
	}
	opts.PublicBaseURL = strings.TrimRight(opts.PublicBaseURL, "/")
	return &Pipeline{store: store, opts: opts, now: time.Now}
}

// UploadImage stores the media and returns image content pointing at it.
// Every error wraps models.ErrAttachmentUploadFailed.
func (p *Pipeline) UploadImage(ctx context.Context, senderID string, media MediaRef) (models.Content, error) {
	rc, err := media.Open()
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return models.Content{}, fail(models.ErrPermissionDenied, err)
		}
		return models.Content{}, fail(err, nil)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, p.opts.MaxBytes+1))
	if err != nil {
		return models.Content{}, fail(err, nil)
	}
	switch {
	case len(data) == 0:
		return models.Content{}, fail(models.ErrEmptyPayload, nil)
	case int64(len(data)) > p.opts.MaxBytes:
		return models.Content{}, fail(models.ErrPayloadTooLarge, nil)
	}

	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return models.Content{}, fail(models.ErrUnsupportedMedia, fmt.Errorf("detected %s", contentType))
	}

	name := ObjectName(senderID, p.now(), media.Name())

	uploadCtx, cancel := context.WithTimeout(ctx, p.opts.UploadTimeout)
	defer cancel()

	if _, err := p.store.Put(uploadCtx, name, data, contentType); err != nil {
		return models.Content{}, classifyPutError(uploadCtx, err)
	}

	log.Printf("INFO: Attachment %s uploaded by %s (%d bytes)", name, senderID, len(data))
	return models.ImageContent(p.URL(name), ""), nil
}

// ShareLocation returns validated location content.
func (p *Pipeline) ShareLocation(latitude, longitude float64) (models.Content, error) {
	content := models.LocationContent(latitude, longitude)
	if err := content.Validate(); err != nil {
		return models.Content{}, err
	}
	return content, nil
}

// URL is the public address the attachment route serves name from.
func (p *Pipeline) URL(name string) string {
	return p.opts.PublicBaseURL + "/attachments/" + url.PathEscape(name)
}

// ObjectName builds "<sender>-<unix millis>-<base name>".
func ObjectName(senderID string, at time.Time, filename string) string {
	return fmt.Sprintf("%s-%d-%s", senderID, at.UnixMilli(), sanitizeFilename(filename))
}

// sanitizeFilename removes path separators and dangerous characters from filename.
func sanitizeFilename(filename string) string {
	clean := filepath.Base(filepath.Clean(filename))
	clean = strings.ReplaceAll(clean, "/", "_")
	clean = strings.ReplaceAll(clean, "\\", "_")
	clean = strings.ReplaceAll(clean, " ", "_")
	if clean == "." || clean == ".." || clean == "" {
		return "image"
	}
	return clean
}

func classifyPutError(uploadCtx context.Context, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(uploadCtx.Err(), context.DeadlineExceeded),
		errors.Is(err, nats.ErrTimeout):
		return fail(models.ErrUploadTimeout, err)
	case errors.Is(err, nats.ErrAuthorization),
		errors.Is(err, nats.ErrAuthExpired),
		errors.Is(err, nats.ErrPermissionViolation):
		return fail(models.ErrUnauthorizedStorage, err)
	}
	return fail(err, nil)
}

func fail(reason, cause error) error {
	if cause == nil {
		return fmt.Errorf("%w: %w", models.ErrAttachmentUploadFailed, reason)
	}
	return fmt.Errorf("%w: %w: %w", models.ErrAttachmentUploadFailed, reason, cause)
}

// BytesRef is in-memory media, used for WebSocket payloads and tests.
type BytesRef struct {
	Filename string
	Data     []byte
}

func (b BytesRef) Name() string { return b.Filename }

func (b BytesRef) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b.Data)), nil
}

// MultipartRef adapts an uploaded form file.
func MultipartRef(fh *multipart.FileHeader) MediaRef {
	return multipartRef{fh}
}

type multipartRef struct{ fh *multipart.FileHeader }

func (m multipartRef) Name() string                 { return m.fh.Filename }
func (m multipartRef) Open() (io.ReadCloser, error) { return m.fh.Open() }

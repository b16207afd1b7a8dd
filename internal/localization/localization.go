// Package localization turns chat errors into user-facing alert text.
// Translations are JSON files named by language code (e.g. "en.json").
package localization

import (
	"circleup/backend/internal/models"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"
)

//go:embed locales/*.json
var embedded embed.FS

const (
	DefaultLanguage = "en"
	// GenericAlertKey is shown for errors without a dedicated message.
	GenericAlertKey = "alert.generic"
)

// alertKeys is checked in order; the first error matching wins.
var alertKeys = []struct {
	err error
	key string
}{
	{models.ErrBackendUnavailable, "alert.backend_unavailable"},
	{models.ErrIncorrectPassword, "alert.incorrect_password"},
	{models.ErrMissingPassword, "alert.missing_password"},
	{models.ErrPasswordTooShort, "alert.password_too_short"},
	{models.ErrRoomNotFound, "alert.room_not_found"},
	{models.ErrRoomExists, "alert.room_exists"},
	{models.ErrInvalidRoom, "alert.invalid_room"},
	{models.ErrNotInRoom, "alert.not_in_room"},
	{models.ErrEmptyContent, "alert.empty_content"},
	{models.ErrInvalidLocation, "alert.invalid_location"},
	{models.ErrMessageNotFound, "alert.message_not_found"},
	{models.ErrMessageExists, "alert.message_exists"},
	{models.ErrAttachmentNotFound, "alert.attachment_not_found"},
	{models.ErrUnknownReaction, "alert.unknown_reaction"},
	{models.ErrNoSelection, "alert.no_selection"},
	{models.ErrEmptyReply, "alert.empty_reply"},
	{models.ErrPermissionDenied, "alert.permission_denied"},
	{models.ErrEmptyPayload, "alert.empty_payload"},
	{models.ErrPayloadTooLarge, "alert.payload_too_large"},
	{models.ErrUploadTimeout, "alert.upload_timeout"},
	{models.ErrUnauthorizedStorage, "alert.unauthorized_storage"},
	{models.ErrUnsupportedMedia, "alert.unsupported_media"},
	{models.ErrAttachmentUploadFailed, "alert.upload_failed"},
	{models.ErrSendFailed, "alert.send_failed"},
	{models.ErrInvalidToken, "alert.invalid_token"},
}

// Localizer manages the translations for the application.
type Localizer struct {
	translations map[string]map[string]string
	mu           sync.RWMutex
}

// Default loads the translations compiled into the binary.
func Default() (*Localizer, error) {
	sub, err := fs.Sub(embedded, "locales")
	if err != nil {
		return nil, err
	}
	return NewLocalizer(sub)
}

// NewLocalizer loads every *.json file at the root of fsys.
func NewLocalizer(fsys fs.FS) (*Localizer, error) {
	l := &Localizer{
		translations: make(map[string]map[string]string),
	}

	files, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read localization directory: %w", err)
	}

	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
			continue
		}

		lang := strings.TrimSuffix(file.Name(), ".json")
		data, err := fs.ReadFile(fsys, file.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read localization file %s: %w", file.Name(), err)
		}

		var translations map[string]string
		if err := json.Unmarshal(data, &translations); err != nil {
			return nil, fmt.Errorf("failed to parse localization file %s: %w", file.Name(), err)
		}

		l.translations[lang] = translations
	}

	return l, nil
}

// GetString returns the localized string for a given key and language,
// falling back to English and then to the key itself.
func (l *Localizer) GetString(lang, key string) string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if value, ok := l.translations[lang][key]; ok {
		return value
	}
	if lang != DefaultLanguage {
		if value, ok := l.translations[DefaultLanguage][key]; ok {
			return value
		}
	}
	return key
}

// AlertKey maps err to its translation key.
func AlertKey(err error) string {
	for _, entry := range alertKeys {
		if errors.Is(err, entry.err) {
			return entry.key
		}
	}
	return GenericAlertKey
}

// Alert returns the key and localized text shown to the user for err.
func (l *Localizer) Alert(lang string, err error) (key, text string) {
	key = AlertKey(err)
	return key, l.GetString(lang, key)
}

package models

import "errors"

// Sentinel errors shared by the room, message and session layers.
var (
	ErrRoomNotFound      = errors.New("chat room not found")
	ErrRoomExists        = errors.New("chat room already exists")
	ErrInvalidRoom       = errors.New("chat room name is required")
	ErrMissingPassword   = errors.New("room password is required")
	ErrIncorrectPassword = errors.New("incorrect room password")
	ErrPasswordTooShort  = errors.New("room password is too short")

	// ErrBackendUnavailable marks transient connectivity loss to the store.
	ErrBackendUnavailable = errors.New("backend unavailable")

	ErrEmptyContent    = errors.New("message has no text, image or location")
	ErrInvalidLocation = errors.New("location coordinates out of range")
	ErrMessageNotFound = errors.New("message not found")
	ErrMessageExists   = errors.New("message id already used")
	ErrSendFailed      = errors.New("message could not be sent")
	ErrUnknownReaction = errors.New("reaction is not in the palette")
	ErrNoSelection     = errors.New("no message selected for reaction")
	ErrEmptyReply      = errors.New("reply text is required")
	ErrNotInRoom       = errors.New("no chat room is open")

	ErrInvalidToken = errors.New("invalid or expired token")
)

// Attachment failures. The reason errors are always joined with
// ErrAttachmentUploadFailed so callers can match either.
var (
	ErrAttachmentUploadFailed = errors.New("attachment upload failed")

	ErrPermissionDenied    = errors.New("media access permission denied")
	ErrEmptyPayload        = errors.New("attachment is empty")
	ErrPayloadTooLarge     = errors.New("attachment is too large")
	ErrUploadTimeout       = errors.New("attachment upload timed out")
	ErrUnauthorizedStorage = errors.New("storage access unauthorized")
	ErrUnsupportedMedia    = errors.New("attachment is not an image")

	ErrAttachmentNotFound = errors.New("attachment not found")
)

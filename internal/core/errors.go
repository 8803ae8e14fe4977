package core

import (
	"errors"
	"fmt"
)

// Error codes for domain errors.
const (
	ErrCodeNotInRoom          = "not_in_room"
	ErrCodeBadRequest         = "bad_request"
	ErrCodeStorageUnavailable = "storage_unavailable"
	ErrCodeRateLimited        = "rate_limited"
	ErrCodeInvalidMessage     = "invalid_message"
)

// ErrNotInRoom is returned when leaving a room the client never joined.
var ErrNotInRoom = errors.New("not in room")

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}

// StorageError reports that the message log could not serve an operation.
// The operation that hit it has no other effect.
type StorageError struct {
	Op   string
	Room string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s room %q: %v", e.Op, e.Room, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

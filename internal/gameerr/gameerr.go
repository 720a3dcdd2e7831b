// internal/gameerr/gameerr.go
package gameerr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the sender-facing notification.
type Kind string

const (
	KindNotFound    Kind = "not_found"
	KindForbidden   Kind = "forbidden"
	KindValidation  Kind = "validation_failure"
	KindPersistence Kind = "persistence_failure"
	KindBroadcast   Kind = "broadcast_failure"
	KindConflict    Kind = "version_conflict"
	KindInternal    Kind = "internal"
)

// Error is the domain error carried across the engine boundary.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error by Kind and, when the target carries one, by Message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Message == "" {
		return e.Kind == t.Kind
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

var (
	ErrGameNotFound    = &Error{Kind: KindNotFound, Message: "game not found"}
	ErrTeamNotFound    = &Error{Kind: KindNotFound, Message: "team not found"}
	ErrLobbyNotFound   = &Error{Kind: KindNotFound, Message: "lobby not found"}
	ErrVersionConflict = &Error{Kind: KindConflict, Message: "session version conflict"}
)

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Forbidden, Validation and Persistence are shorthands for the most common kinds.
func Forbidden(message string) *Error { return New(KindForbidden, message) }

func Validation(message string) *Error { return New(KindValidation, message) }

func Persistence(cause error) *Error {
	return Wrap(KindPersistence, "session could not be saved", cause)
}

// KindOf reports the Kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Public returns the message safe to send to a client.
func Public(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}

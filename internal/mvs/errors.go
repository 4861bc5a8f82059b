package mvs

import (
	"errors"
	"fmt"
)

// Kind categorizes store failures so callers can decide whether to retry,
// surface the error, or abandon the operation.
type Kind string

const (
	// KindNotFound indicates a referenced universe/snapshot/passage/player/tick
	// does not exist.
	KindNotFound Kind = "not_found"
	// KindAlreadyExists indicates a duplicate id on create.
	KindAlreadyExists Kind = "already_exists"
	// KindCorrupt indicates a checksum mismatch or unreadable compressed blob.
	KindCorrupt Kind = "corrupt"
	// KindInvalidRequest indicates a missing required field, malformed decay
	// policy, duplicate tick, or self-referential fork.
	KindInvalidRequest Kind = "invalid_request"
	// KindIOFailure indicates the underlying storage is unavailable.
	KindIOFailure Kind = "io_failure"
)

// Error is the store's taxonomy error. It carries the failing entity and
// identifier so messages are safe and useful to log verbatim.
type Error struct {
	Kind   Kind
	Entity string // "universe", "snapshot", "blob", "passage", "player"
	ID     string // offending identifier(s), may be empty for validation errors
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	s := string(e.Kind)
	if e.Entity != "" {
		s += " " + e.Entity
	}
	if e.ID != "" {
		s += " " + e.ID
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches two taxonomy errors by kind, so callers can test
// errors.Is(err, &Error{Kind: KindNotFound}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is checks against each taxonomy kind.
var (
	ErrNotFound       = &Error{Kind: KindNotFound}
	ErrAlreadyExists  = &Error{Kind: KindAlreadyExists}
	ErrCorrupt        = &Error{Kind: KindCorrupt}
	ErrInvalidRequest = &Error{Kind: KindInvalidRequest}
	ErrIOFailure      = &Error{Kind: KindIOFailure}
)

// NotFoundf builds a NotFound error for the given entity and id.
func NotFoundf(entity, id, format string, args ...any) error {
	return &Error{Kind: KindNotFound, Entity: entity, ID: id, Msg: fmt.Sprintf(format, args...)}
}

// AlreadyExistsf builds an AlreadyExists error for the given entity and id.
func AlreadyExistsf(entity, id, format string, args ...any) error {
	return &Error{Kind: KindAlreadyExists, Entity: entity, ID: id, Msg: fmt.Sprintf(format, args...)}
}

// Corruptf builds a Corrupt error wrapping cause, which may be nil.
func Corruptf(entity, id string, cause error, format string, args ...any) error {
	return &Error{Kind: KindCorrupt, Entity: entity, ID: id, Msg: fmt.Sprintf(format, args...), Err: cause}
}

// InvalidRequestf builds an InvalidRequest error.
func InvalidRequestf(format string, args ...any) error {
	return &Error{Kind: KindInvalidRequest, Msg: fmt.Sprintf(format, args...)}
}

// IOFailuref builds an IOFailure error wrapping cause, which may be nil.
func IOFailuref(entity, id string, cause error, format string, args ...any) error {
	return &Error{Kind: KindIOFailure, Entity: entity, ID: id, Msg: fmt.Sprintf(format, args...), Err: cause}
}

// KindOf extracts the taxonomy kind from err, or "" if err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

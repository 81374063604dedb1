package database

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

// Kind classifies a store failure by condition rather than by driver type.
type Kind string

const (
	KindNotFound    Kind = "not_found"
	KindConflict    Kind = "conflict"
	KindPermission  Kind = "permission_denied"
	KindUnavailable Kind = "unavailable"
	KindInternal    Kind = "internal"
)

// Error is the typed form of any failure coming back from the store. It
// is built once, at the point the call is made, so nothing downstream
// needs to probe driver-specific error shapes.
type Error struct {
	Kind    Kind
	Message string
	Code    string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// Details exposes the triple consumed by the diagnostic log boundary.
func (e *Error) Details() (kind, message, code string) {
	return string(e.Kind), e.Message, e.Code
}

// WrapError converts a raw driver error into an *Error. Nil passes through.
func WrapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return &Error{Kind: KindNotFound, Message: "no matching rows", Err: err}
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		kind := KindInternal
		switch {
		case pqErr.Code.Class() == "23":
			kind = KindConflict
		case pqErr.Code == "42501" || pqErr.Code.Class() == "28":
			kind = KindPermission
		case pqErr.Code.Class() == "08" || pqErr.Code.Class() == "57":
			kind = KindUnavailable
		}
		return &Error{Kind: kind, Message: pqErr.Message, Code: string(pqErr.Code), Err: err}
	}

	return &Error{Kind: KindInternal, Message: err.Error(), Err: err}
}

// IsKind reports whether err is a store error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies expected, recoverable failures of live-quiz
// operations. None of them should terminate a connection loop.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	// KindNotFound: session, user or participant absent.
	KindNotFound
	// KindConflict: duplicate join, duplicate answer, or a Waiting session
	// already exists.
	KindConflict
	// KindForbidden: non-admin attempting an admin action, or the admin
	// attempting to join their own session.
	KindForbidden
	// KindInvalidState: action not valid for the session's current status.
	KindInvalidState
	// KindCapacity: the room is full.
	KindCapacity
)

// Error is a structured, user-presentable failure.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string { return e.Message }

// Is lets errors.Is match two domain errors by kind.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Kind == other.Kind
}

// KindOf extracts the kind of a domain error, or KindUnknown.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func NotFoundf(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Conflictf(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func Forbiddenf(format string, args ...any) *Error {
	return &Error{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

func InvalidStatef(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidState, Message: fmt.Sprintf(format, args...)}
}

func Capacityf(format string, args ...any) *Error {
	return &Error{Kind: KindCapacity, Message: fmt.Sprintf(format, args...)}
}

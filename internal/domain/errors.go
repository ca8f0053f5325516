package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies failures so the transport layer can map them to wire
// codes without matching on message strings.
type ErrorKind string

const (
	KindInvalidArgument    ErrorKind = "invalid-argument"
	KindNotFound           ErrorKind = "not-found"
	KindFailedPrecondition ErrorKind = "failed-precondition"
	KindResourceExhausted  ErrorKind = "resource-exhausted"
	KindInternal           ErrorKind = "internal"
)

// Error is the typed error returned by every rejected path in the engine.
type Error struct {
	Kind       ErrorKind
	Message    string
	RetryAfter time.Duration // set for rate-limit rejections
	cause      error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is makes sentinel comparisons work through wrapping: two *Errors match
// when kind and message agree.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

var (
	// ErrSessionNotFound is returned when the session does not exist.
	ErrSessionNotFound = &Error{Kind: KindNotFound, Message: "session not found"}
	// ErrParticipantNotFound is returned when a user acts before joining.
	ErrParticipantNotFound = &Error{Kind: KindNotFound, Message: "participant not found"}
	// ErrAnswerKeyNotFound indicates no answer key exists for the question.
	ErrAnswerKeyNotFound = &Error{Kind: KindNotFound, Message: "answer key not found"}
	// ErrAlreadyAnswered rejects a second submission for the same question.
	// Clients must treat this as non-retryable.
	ErrAlreadyAnswered = &Error{Kind: KindFailedPrecondition, Message: "question already answered"}
	// ErrSessionNotAnswerable rejects submissions outside the question phase.
	ErrSessionNotAnswerable = &Error{Kind: KindFailedPrecondition, Message: "session is not accepting answers"}
	// ErrSessionNotEnded guards analytics until the session is over.
	ErrSessionNotEnded = &Error{Kind: KindFailedPrecondition, Message: "session has not ended"}
	// ErrNotHost rejects host-only operations from other callers.
	ErrNotHost = &Error{Kind: KindFailedPrecondition, Message: "caller is not the session host"}
	// ErrInvalidTransition rejects session state changes the lifecycle forbids.
	ErrInvalidTransition = &Error{Kind: KindFailedPrecondition, Message: "invalid session state transition"}
	// ErrAnswerKeyExists enforces write-once answer keys.
	ErrAnswerKeyExists = &Error{Kind: KindFailedPrecondition, Message: "answer key already written"}
)

// Invalidf builds an invalid-argument error.
func Invalidf(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

// Internalf wraps an unexpected failure. The message is safe to log but the
// cause must never leave the process.
func Internalf(cause error, format string, args ...any) *Error {
	return &Error{Kind: KindInternal, Message: fmt.Sprintf(format, args...), cause: cause}
}

// RateLimited builds a resource-exhausted error with a retry hint.
func RateLimited(retryAfter time.Duration) *Error {
	return &Error{Kind: KindResourceExhausted, Message: "rate limit exceeded", RetryAfter: retryAfter}
}

// KindOf extracts the kind from any error, defaulting to internal.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

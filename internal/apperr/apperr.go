// Package apperr is the error taxonomy for the API. Every failure that
// crosses a handler boundary is classified into one of the kinds below;
// raw storage or crypto errors never reach the wire.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

type Kind string

const (
	// Auth failures, always 401. CredentialExpired is distinct so clients
	// know a refresh exchange may succeed where re-authentication is the
	// only cure for the others.
	KindMissingCredential Kind = "MISSING_CREDENTIAL"
	KindInvalidCredential Kind = "INVALID_CREDENTIAL"
	KindCredentialExpired Kind = "CREDENTIAL_EXPIRED"
	KindUnknownSubject    Kind = "UNKNOWN_SUBJECT"

	// Validation failures, 400. The caller must fix its input.
	KindNoTargetSpecified    Kind = "NO_TARGET_SPECIFIED"
	KindMalformedID          Kind = "MALFORMED_ID"
	KindInvalidReactionValue Kind = "INVALID_REACTION_VALUE"

	KindTargetNotFound Kind = "TARGET_NOT_FOUND"
	KindNotFound       Kind = "NOT_FOUND"
	KindForbidden      Kind = "FORBIDDEN"
	KindConflict       Kind = "CONFLICT"

	// Storage / transient failures. These carry a correlation id instead
	// of the underlying cause.
	KindUnavailable Kind = "UNAVAILABLE"
	KindTimeout     Kind = "REQUEST_TIMEOUT"
	KindInternal    Kind = "INTERNAL"
)

type Error struct {
	Kind    Kind
	Message string
	Status  int

	// CorrelationID is set for 5xx-class errors so an operator can match
	// a client report to server logs without leaking the cause.
	CorrelationID string

	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

func newError(kind Kind, status int, msg string, cause error) *Error {
	e := &Error{Kind: kind, Message: msg, Status: status, cause: cause}
	if status >= http.StatusInternalServerError {
		e.CorrelationID = uuid.NewString()
	}
	return e
}

func MissingCredential(msg string) *Error {
	return newError(KindMissingCredential, http.StatusUnauthorized, msg, nil)
}

func InvalidCredential(cause error) *Error {
	return newError(KindInvalidCredential, http.StatusUnauthorized, "invalid credential", cause)
}

func CredentialExpired() *Error {
	return newError(KindCredentialExpired, http.StatusUnauthorized, "credential expired", nil)
}

func UnknownSubject() *Error {
	return newError(KindUnknownSubject, http.StatusUnauthorized, "subject no longer exists", nil)
}

func NoTargetSpecified(msg string) *Error {
	return newError(KindNoTargetSpecified, http.StatusBadRequest, msg, nil)
}

func MalformedID(msg string) *Error {
	return newError(KindMalformedID, http.StatusBadRequest, msg, nil)
}

func InvalidReactionValue(msg string) *Error {
	return newError(KindInvalidReactionValue, http.StatusBadRequest, msg, nil)
}

func TargetNotFound(msg string) *Error {
	return newError(KindTargetNotFound, http.StatusNotFound, msg, nil)
}

func NotFound(msg string) *Error {
	return newError(KindNotFound, http.StatusNotFound, msg, nil)
}

func Forbidden(msg string) *Error {
	return newError(KindForbidden, http.StatusForbidden, msg, nil)
}

func Conflict(msg string) *Error {
	return newError(KindConflict, http.StatusConflict, msg, nil)
}

func Unavailable(cause error) *Error {
	return newError(KindUnavailable, http.StatusServiceUnavailable, "storage unavailable", cause)
}

func Timeout(cause error) *Error {
	return newError(KindTimeout, http.StatusServiceUnavailable, "request timed out, safe to retry", cause)
}

func Internal(cause error) *Error {
	return newError(KindInternal, http.StatusInternalServerError, "internal error", cause)
}

// From extracts a classified error from err's chain, falling back to a
// fresh Internal error for anything unclassified.
func From(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(err)
}

// Payload renders err as its HTTP status plus the wire body. 5xx bodies
// never include the message of the underlying cause.
func Payload(err error) (int, map[string]any) {
	e := From(err)
	body := map[string]any{
		"kind":    string(e.Kind),
		"message": e.Message,
	}
	if e.CorrelationID != "" {
		body["correlation_id"] = e.CorrelationID
	}
	return e.Status, map[string]any{"error": body}
}

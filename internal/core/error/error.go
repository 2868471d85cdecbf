package errx

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies failures so callers can pick a UI treatment without
// inspecting status codes.
type Kind string

const (
	KindInternal        Kind = "internal"
	KindUnauthenticated Kind = "unauthenticated"
	KindAuthExpired     Kind = "auth_expired"
	KindAuthDecode      Kind = "auth_decode"
	KindValidation      Kind = "validation"
	KindNotFound        Kind = "not_found"
	KindTransient       Kind = "transient"
	KindInFlight        Kind = "in_flight"
	KindStorage         Kind = "storage"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "something went wrong"
	// TransientErrorMessage is shown for connectivity and 5xx failures.
	TransientErrorMessage = "the service is unavailable, please try again"
	// UnauthenticatedMessage prompts the user to log in.
	UnauthenticatedMessage = "please log in to continue"
	// SessionExpiredMessage is shown when the server rejected the bearer token.
	SessionExpiredMessage = "your session has expired, please log in again"
	// StorageErrorMessage describes local storage failures.
	StorageErrorMessage = "local storage operation failed"
	// InFlightMessage is returned when a recommendation request is already outstanding.
	InFlightMessage = "a recommendation request is already in progress"
)

// ErrInFlight rejects a submit or refine while another one is processing.
var ErrInFlight = New(KindInFlight, nil, http.StatusConflict, InFlightMessage)

// AppError wraps an underlying error with a kind, an HTTP status and a safe message.
type AppError struct {
	Kind    Kind
	Err     error
	Status  int
	Message string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is reports whether the target matches the underlying error or is an
// AppError of the same kind.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if errors.As(target, &t) && t != nil && t.Kind == e.Kind && t.Err == nil {
		return true
	}
	return errors.Is(e.Err, target)
}

// New creates a new AppError with the provided information.
func New(kind Kind, err error, status int, message string) *AppError {
	return &AppError{
		Kind:    kind,
		Err:     err,
		Status:  status,
		Message: message,
	}
}

func Unauthenticated(message string) *AppError {
	if message == "" {
		message = UnauthenticatedMessage
	}
	return New(KindUnauthenticated, nil, http.StatusUnauthorized, message)
}

func AuthExpired(err error) *AppError {
	return New(KindAuthExpired, err, http.StatusUnauthorized, SessionExpiredMessage)
}

func Validation(message string) *AppError {
	return New(KindValidation, nil, http.StatusBadRequest, message)
}

func NotFound(message string) *AppError {
	return New(KindNotFound, nil, http.StatusNotFound, message)
}

// Network wraps a connectivity failure (dial, timeout, reset) as Transient.
func Network(err error) *AppError {
	if err == nil {
		return nil
	}
	return New(KindTransient, err, http.StatusServiceUnavailable, TransientErrorMessage)
}

// FromStatus maps a non-2xx HTTP response onto the error taxonomy. The
// server's message is kept verbatim when present.
func FromStatus(status int, message string) *AppError {
	switch {
	case status == http.StatusUnauthorized:
		if message == "" {
			message = SessionExpiredMessage
		}
		return New(KindAuthExpired, nil, status, message)
	case status == http.StatusNotFound:
		if message == "" {
			message = http.StatusText(status)
		}
		return New(KindNotFound, nil, status, message)
	case status >= 400 && status < 500:
		if message == "" {
			message = http.StatusText(status)
		}
		return New(KindValidation, nil, status, message)
	default:
		if message == "" {
			message = TransientErrorMessage
		}
		return New(KindTransient, nil, status, message)
	}
}

// KindOf returns the kind of the first AppError in the chain, or
// KindInternal for foreign errors.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// StatusOf returns the HTTP status attached to err, or 0.
func StatusOf(err error) int {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Status
	}
	return 0
}

// MessageOf returns the user-facing message for err.
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Message
	}
	return SystemErrorMessage
}

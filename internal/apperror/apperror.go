// Package apperror defines the error taxonomy shared by every layer.
//
// Each kind is a sentinel error. Domain code returns an *AppError that wraps
// one sentinel, so callers branch with errors.Is(err, apperror.ErrNotFound)
// no matter how many times the error was wrapped on the way up.
//
// The HTTP layer is the only place that turns a kind into a status code.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrInvalidToken   = errors.New("invalid token")
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("conflict")
	ErrUnavailable    = errors.New("unavailable")
)

type AppError struct {
	Err     error  // sentinel kind
	Message string // Human-readable error message, safe to show to callers
	Field   string // Optional: request field causing the error
	Cause   error  // Optional: underlying failure, logged but never exposed
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

// InvalidRequest reports malformed or missing caller input.
// HTTP handlers map this to 400 Bad Request.
func InvalidRequest(field, message string) *AppError {
	return &AppError{
		Err:     ErrInvalidRequest,
		Message: message,
		Field:   field,
	}
}

// InvalidToken reports a token that failed verification. The cause is kept
// for server-side logs only.
func InvalidToken(cause error) *AppError {
	return &AppError{
		Err:     ErrInvalidToken,
		Message: "identity token could not be verified",
		Cause:   cause,
	}
}

// Conflict reports a uniqueness violation. It is an internal signal: the
// identity reconciler absorbs it and it must not reach a client.
func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Unavailable reports a dependency that timed out or could not be reached.
// Callers may retry.
func Unavailable(what string, cause error) *AppError {
	return &AppError{
		Err:     ErrUnavailable,
		Message: fmt.Sprintf("%s is temporarily unavailable", what),
		Cause:   cause,
	}
}

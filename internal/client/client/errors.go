package client

import (
	"errors"
	"strings"
)

var (
	ErrNetwork           = errors.New("failed to connect to the server")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrValidation        = errors.New("validation error")
	ErrServer            = errors.New("server error")
	ErrMalformedResponse = errors.New("malformed response")
)

// APIError is a classified failure of a remote call. Kind is, or wraps, one
// of the sentinel errors above, so callers match it with errors.Is.
type APIError struct {
	Kind    error
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Kind.Error()
}

func (e *APIError) Unwrap() error {
	return e.Kind
}

// NewValidationError reports bad input detected before any request is made.
func NewValidationError(msg string) error {
	return &APIError{Kind: ErrValidation, Message: msg}
}

// Message returns the human-readable text of err: the server-supplied
// message when one exists, fallback otherwise.
func Message(err error, fallback string) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if msg := strings.TrimSpace(apiErr.Message); msg != "" {
			return msg
		}
		if errors.Is(apiErr.Kind, ErrNetwork) {
			return ErrNetwork.Error()
		}
	}
	if errors.Is(err, ErrNetwork) {
		return ErrNetwork.Error()
	}
	return fallback
}

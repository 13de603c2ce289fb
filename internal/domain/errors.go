package domain

import (
	"errors"
	"fmt"
)

// ErrorKind is the category of a failure.
type ErrorKind string

const (
	KindConfiguration      ErrorKind = "configuration"
	KindInvalidArgument    ErrorKind = "invalid_argument"
	KindUnknownEmbedding   ErrorKind = "unknown_embedding_type"
	KindUpstreamService    ErrorKind = "upstream_service"
	KindMissingCredential  ErrorKind = "missing_credential"
	KindLinkerConnectivity ErrorKind = "linker_connectivity"
	KindNotFound           ErrorKind = "not_found"
)

// Error is a categorized failure. Two errors match under errors.Is when
// their kinds are equal, so callers compare against the sentinels below.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

// NewError creates a categorized error.
func NewError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

var (
	ErrConfiguration      = NewError(KindConfiguration, "invalid configuration", nil)
	ErrInvalidArgument    = NewError(KindInvalidArgument, "invalid argument", nil)
	ErrUnknownEmbedding   = NewError(KindUnknownEmbedding, "unknown embedding type", nil)
	ErrUpstreamService    = NewError(KindUpstreamService, "upstream service failed", nil)
	ErrMissingCredential  = NewError(KindMissingCredential, "missing credential", nil)
	ErrLinkerConnectivity = NewError(KindLinkerConnectivity, "linker unreachable", nil)
	ErrNotFound           = NewError(KindNotFound, "not found", nil)
)

func Configurationf(format string, args ...any) error {
	return NewError(KindConfiguration, fmt.Sprintf(format, args...), nil)
}

func InvalidArgumentf(format string, args ...any) error {
	return NewError(KindInvalidArgument, fmt.Sprintf(format, args...), nil)
}

func NotFoundf(format string, args ...any) error {
	return NewError(KindNotFound, fmt.Sprintf(format, args...), nil)
}

// Upstream wraps a provider failure (LLM or embedding call).
func Upstream(message string, err error) error {
	return NewError(KindUpstreamService, message, err)
}

// Connectivity wraps a store failure.
func Connectivity(message string, err error) error {
	return NewError(KindLinkerConnectivity, message, err)
}

// ValidateTopK rejects non-positive result limits.
func ValidateTopK(topK int) error {
	if topK <= 0 {
		return InvalidArgumentf("top_k must be positive, got %d", topK)
	}
	return nil
}

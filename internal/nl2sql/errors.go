package nl2sql

import (
	"errors"
	"fmt"

	"github.com/askdb/askdb/internal/conversation"
)

type Kind string

const (
	KindConfiguration  Kind = "configuration"
	KindTransport      Kind = "transport"
	KindResponseFormat Kind = "response_format"
	KindNotFound       Kind = "not_found"
)

var (
	ErrConfiguration  = errors.New("backend configuration error")
	ErrTransport      = errors.New("backend transport error")
	ErrResponseFormat = errors.New("backend response format error")
)

// Error is returned by every generation path. Provider is the display name of
// the backend involved, e.g. "DeepSeek".
type Error struct {
	Kind     Kind
	Provider string
	Err      error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindConfiguration:
		return fmt.Sprintf("%s configuration error: %v", e.Provider, e.Err)
	case KindTransport:
		return fmt.Sprintf("Error communicating with %s API: %v", e.Provider, e.Err)
	case KindResponseFormat:
		return fmt.Sprintf("Error parsing %s API response: %v", e.Provider, e.Err)
	default:
		return e.Err.Error()
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's kind, so callers can write
// errors.Is(err, nl2sql.ErrTransport).
func (e *Error) Is(target error) bool {
	switch e.Kind {
	case KindConfiguration:
		return target == ErrConfiguration
	case KindTransport:
		return target == ErrTransport
	case KindResponseFormat:
		return target == ErrResponseFormat
	case KindNotFound:
		return target == conversation.ErrNotFound
	}
	return false
}

func configurationError(provider string, format string, args ...any) error {
	return &Error{Kind: KindConfiguration, Provider: provider, Err: fmt.Errorf(format, args...)}
}

func transportError(provider string, err error) error {
	return &Error{Kind: KindTransport, Provider: provider, Err: err}
}

func responseFormatError(provider string, err error) error {
	return &Error{Kind: KindResponseFormat, Provider: provider, Err: err}
}

package intake

import (
	"errors"
	"fmt"
)

// Kind classifies an input error. Every kind is user-correctable.
type Kind int

const (
	KindNotFound Kind = iota + 1
	KindEmpty
	KindUnreadable
	KindBadDataURI
	KindTooLarge
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindEmpty:
		return "empty"
	case KindUnreadable:
		return "unreadable"
	case KindBadDataURI:
		return "bad_data_uri"
	case KindTooLarge:
		return "too_large"
	default:
		return "unknown"
	}
}

// Sentinels matched with errors.Is.
var (
	ErrNotFound   = errors.New("file not found")
	ErrEmpty      = errors.New("empty file")
	ErrUnreadable = errors.New("not a decodable image")
	ErrBadDataURI = errors.New("invalid image data URI")
	ErrTooLarge   = errors.New("image dimensions exceed the pixel limit")
)

func (k Kind) sentinel() error {
	switch k {
	case KindNotFound:
		return ErrNotFound
	case KindEmpty:
		return ErrEmpty
	case KindUnreadable:
		return ErrUnreadable
	case KindBadDataURI:
		return ErrBadDataURI
	case KindTooLarge:
		return ErrTooLarge
	default:
		return nil
	}
}

// Error is returned for every validation failure.
type Error struct {
	Kind Kind
	Path string
	Err  error
}

func newError(kind Kind, path string, err error) *Error {
	return &Error{Kind: kind, Path: path, Err: err}
}

func (e *Error) Error() string {
	msg := e.Kind.sentinel().Error()
	if e.Path != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Path)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *Error) Unwrap() []error {
	errs := []error{e.Kind.sentinel()}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// IsInputError reports whether err is a validation failure.
func IsInputError(err error) bool {
	var e *Error
	return errors.As(err, &e)
}

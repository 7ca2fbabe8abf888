package token

import (
	"errors"
	"fmt"
)

// Kind classifies a token failure.
type Kind string

const (
	KindMissing  Kind = "missing"
	KindInvalid  Kind = "invalid"
	KindUnknown  Kind = "unknown"
	KindExpired  Kind = "expired"
	KindRedeemed Kind = "redeemed"
)

// Error is returned when a continuation token cannot be redeemed.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("token %v", e.Kind)
	}
	return fmt.Sprintf("token %v: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError creates a token error of kind.
func NewError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// KindOf returns the kind of a token error or empty when err is not one.
func KindOf(err error) Kind {
	var target *Error
	if errors.As(err, &target) {
		return target.Kind
	}
	return ""
}

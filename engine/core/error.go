package core

import (
	"errors"
	"fmt"
)

// Error is the canonical domain error: a stable machine-readable code plus
// optional structured details, optionally wrapping an underlying cause.
type Error struct {
	Err     error
	Code    string
	Details map[string]any
}

// NewError builds a domain error. err may be nil when the condition itself is
// the failure (no upstream cause).
func NewError(err error, code string, details map[string]any) *Error {
	return &Error{Err: err, Code: code, Details: details}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return e.Code
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsCode reports whether err is (or wraps) a domain Error with the given code.
func IsCode(err error, code string) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

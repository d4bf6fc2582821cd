package store

import (
	"errors"
	"fmt"
)

// Kind classifies store failures.
type Kind string

const (
	KindIOFailure Kind = "IO_FAILURE"
	KindNotFound  Kind = "NOT_FOUND"
)

// Error describes a failed operation on a stored asset.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("store %s %s: %s: %v", e.Op, e.Path, e.Kind, e.Err)
	}
	return fmt.Sprintf("store %s %s: %s", e.Op, e.Path, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// IsNotFound reports whether err is a store Error of kind NOT_FOUND.
func IsNotFound(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == KindNotFound
}

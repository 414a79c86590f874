// Package errs holds the error kinds shared by the dataset assembly packages.
//
// Every error returned by the pipeline wraps exactly one of the sentinels
// below, so callers classify failures with errors.Is regardless of how much
// context was added on the way up.
package errs

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrConfiguration marks a missing folder, file or an invalid option.
	ErrConfiguration = errors.New("configuration error")

	// ErrParse marks a malformed driving log row.
	ErrParse = errors.New("parse error")

	// ErrIO marks an unreadable or unwritable file.
	ErrIO = errors.New("io error")

	// ErrFormat marks a container without the expected groups or arrays.
	ErrFormat = errors.New("format error")

	// ErrKey marks a lookup of an unknown group.
	ErrKey = errors.New("key error")
)

// ParseError identifies the offending row of a driving log.
type ParseError struct {
	Path  string
	Row   int // 1-based
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s:%d: %v", e.Path, e.Row, e.Err)
	}
	return fmt.Sprintf("%s:%d: %s: %v", e.Path, e.Row, e.Field, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Is reports ParseError as an ErrParse.
func (e *ParseError) Is(target error) bool { return target == ErrParse }

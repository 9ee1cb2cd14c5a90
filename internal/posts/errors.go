package posts

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyInput means the input had no non-blank content at all.
	ErrEmptyInput = errors.New("input contains no data")

	// ErrMissingHeader means no recognized column could be resolved from the
	// header row, which usually means the header row is absent.
	ErrMissingHeader = errors.New("header row missing or has no recognized columns")

	// ErrInvalidEntry is returned for manual entries that cannot be accepted.
	ErrInvalidEntry = errors.New("invalid post entry")
)

// UnsupportedFormatError is returned before parsing for file types
// that have no adapter.
type UnsupportedFormatError struct {
	Ext      string
	Accepted []string
}

func (e *UnsupportedFormatError) Error() string {
	ext := e.Ext
	if ext == "" {
		ext = "(none)"
	}
	return fmt.Sprintf("unsupported file type %s; expected one of: %s", ext, strings.Join(e.Accepted, ", "))
}

// ParseError wraps a decode failure for a given format.
type ParseError struct {
	Format string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing %s: %v", e.Format, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// IsStructural reports whether err aborts an ingestion as a whole.
func IsStructural(err error) bool {
	var pe *ParseError
	return errors.Is(err, ErrEmptyInput) || errors.Is(err, ErrMissingHeader) || errors.As(err, &pe)
}

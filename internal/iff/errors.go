package iff

import (
	"errors"
	"fmt"
)

// Kind classifies a FormatError.
type Kind int

const (
	KindTooShort Kind = iota + 1
	KindTruncated
	KindTruncatedPayload
	KindUnexpectedEOF
	KindInvalidTag
	KindInvalidLength
	KindMissingChunk
	KindOutOfBounds
	KindDanglingReference
	KindInvariantViolation
	KindNotFound
	KindTypeMismatch
)

var kindNames = map[Kind]string{
	KindTooShort:           "too short",
	KindTruncated:          "truncated",
	KindTruncatedPayload:   "truncated payload",
	KindUnexpectedEOF:      "unexpected eof",
	KindInvalidTag:         "invalid tag",
	KindInvalidLength:      "invalid length",
	KindMissingChunk:       "missing chunk",
	KindOutOfBounds:        "out of bounds",
	KindDanglingReference:  "dangling reference",
	KindInvariantViolation: "invariant violation",
	KindNotFound:           "not found",
	KindTypeMismatch:       "type mismatch",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// FormatError reports a malformed archive or a failed lookup.
// Offset, Width and Limit are only meaningful for KindOutOfBounds,
// Tag for KindMissingChunk and KindInvalidTag.
type FormatError struct {
	Kind   Kind
	Msg    string
	Tag    string
	Offset int
	Width  int
	Limit  int
	Err    error
}

func (e *FormatError) Error() string {
	msg := e.Kind.String()
	switch {
	case e.Msg != "":
		msg += ": " + e.Msg
	case e.Err != nil:
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FormatError) Unwrap() error { return e.Err }

// Is matches any FormatError of the same kind, so the Err* sentinels work
// with errors.Is regardless of message or position details.
func (e *FormatError) Is(target error) bool {
	t, ok := target.(*FormatError)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrTooShort           = &FormatError{Kind: KindTooShort}
	ErrTruncated          = &FormatError{Kind: KindTruncated}
	ErrTruncatedPayload   = &FormatError{Kind: KindTruncatedPayload}
	ErrUnexpectedEOF      = &FormatError{Kind: KindUnexpectedEOF}
	ErrInvalidTag         = &FormatError{Kind: KindInvalidTag}
	ErrInvalidLength      = &FormatError{Kind: KindInvalidLength}
	ErrMissingChunk       = &FormatError{Kind: KindMissingChunk}
	ErrOutOfBounds        = &FormatError{Kind: KindOutOfBounds}
	ErrDanglingReference  = &FormatError{Kind: KindDanglingReference}
	ErrInvariantViolation = &FormatError{Kind: KindInvariantViolation}
	ErrNotFound           = &FormatError{Kind: KindNotFound}
	ErrTypeMismatch       = &FormatError{Kind: KindTypeMismatch}
)

// Errorf builds a FormatError of the given kind. A %w verb in format is
// kept as the wrapped error.
func Errorf(kind Kind, format string, args ...any) *FormatError {
	wrapped := fmt.Errorf(format, args...)
	return &FormatError{Kind: kind, Msg: wrapped.Error(), Err: errors.Unwrap(wrapped)}
}

func outOfBounds(offset, width, limit int) *FormatError {
	return &FormatError{
		Kind:   KindOutOfBounds,
		Msg:    fmt.Sprintf("read of %d bytes at offset %d exceeds limit %d", width, offset, limit),
		Offset: offset,
		Width:  width,
		Limit:  limit,
	}
}

func missingChunk(tag string) *FormatError {
	return &FormatError{Kind: KindMissingChunk, Msg: fmt.Sprintf("chunk %q", tag), Tag: tag}
}

package hprof

import (
	"fmt"
	"strings"

	apperrors "github.com/SagenKoder/hprof-parser/pkg/errors"
)

// Decoding error kinds. Every error returned by the decoder for a format
// problem matches exactly one of these with errors.Is.
var (
	ErrMalformedHeader   = apperrors.New(apperrors.CodeMalformedHeader, "malformed header")
	ErrTruncatedRecord   = apperrors.New(apperrors.CodeTruncatedRecord, "truncated record")
	ErrFramingViolation  = apperrors.New(apperrors.CodeFramingViolation, "framing violation")
	ErrUnknownSubRecord  = apperrors.New(apperrors.CodeUnknownSubRecord, "unknown heap dump sub-record")
	ErrDuplicateClass    = apperrors.New(apperrors.CodeDuplicateClass, "duplicate class dump")
	ErrUnresolvedClass   = apperrors.New(apperrors.CodeUnresolvedClass, "unresolved class")
	ErrFieldSizeMismatch = apperrors.New(apperrors.CodeFieldSizeMismatch, "instance field size mismatch")
	ErrInvalidType       = apperrors.New(apperrors.CodeInvalidType, "invalid basic type")
)

// DecodeError carries the position and expectation of a decoding failure.
// Offset is the absolute byte offset in the input stream; Expected and
// Actual are byte counts and are only meaningful when Expected is non-zero.
type DecodeError struct {
	Kind     *apperrors.AppError
	Offset   int64
	Tag      string
	Expected int64
	Actual   int64
	Detail   string
	Err      error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	var sb strings.Builder
	sb.WriteString("hprof: ")
	sb.WriteString(e.Kind.Message)
	fmt.Fprintf(&sb, " at offset %d", e.Offset)
	if e.Tag != "" {
		fmt.Fprintf(&sb, " (%s)", e.Tag)
	}
	if e.Expected != 0 || e.Actual != 0 {
		fmt.Fprintf(&sb, ": expected %d bytes, got %d", e.Expected, e.Actual)
	}
	if e.Detail != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Detail)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *DecodeError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// withTag fills in the record tag of err if it is a DecodeError that has
// none yet.
func withTag(err error, tag string) error {
	if de, ok := err.(*DecodeError); ok && de.Tag == "" {
		de.Tag = tag
	}
	return err
}

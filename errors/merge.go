// Package errors defines the error kinds surfaced by a merge run.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a merge failure.
type ErrorCode string

const (
	// CodeOpen indicates a source path could not be opened.
	CodeOpen ErrorCode = "gpx-open"
	// CodeParse indicates malformed XML in a source.
	CodeParse ErrorCode = "gpx-parse"
	// CodeTagMismatch indicates unbalanced or crossed tags in a source.
	CodeTagMismatch ErrorCode = "gpx-tag-mismatch"
	// CodeMissingRootClose indicates the template ended before its root
	// element closed.
	CodeMissingRootClose ErrorCode = "gpx-missing-root-close"
	// CodeWrite indicates the output sink rejected bytes.
	CodeWrite ErrorCode = "gpx-write"
)

// MergeError wraps a failure with the merge error code and the implicated
// source. All merge failures are fatal; none are retried.
type MergeError struct {
	Err    error
	Code   ErrorCode
	Source string
}

// Error formats the error with its code and source context.
func (e *MergeError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Source != "" {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Source, e.Err)
	}
	return fmt.Sprintf("[%s] %v", e.Code, e.Err)
}

// Unwrap exposes the underlying error.
func (e *MergeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New builds a MergeError for the given source.
func New(code ErrorCode, source string, err error) *MergeError {
	return &MergeError{Code: code, Source: source, Err: err}
}

// Newf formats a message and builds a MergeError.
func Newf(code ErrorCode, source, format string, args ...any) *MergeError {
	return New(code, source, fmt.Errorf(format, args...))
}

// AsMergeError extracts a MergeError from an error chain.
func AsMergeError(err error) (*MergeError, bool) {
	if err == nil {
		return nil, false
	}
	var merr *MergeError
	if errors.As(err, &merr) && merr != nil {
		return merr, true
	}
	return nil, false
}

// TagMismatchError reports an end tag that does not balance the open
// element stack: either the stack was empty, or the closed name differs
// from the innermost open element.
type TagMismatchError struct {
	// Expected is the innermost open element, empty when the stack was empty.
	Expected string
	// Found is the name carried by the offending end tag.
	Found string
}

// Error describes the mismatch with both tag names.
func (e *TagMismatchError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Expected == "" {
		return fmt.Sprintf("unexpected </%s> with no open element", e.Found)
	}
	return fmt.Sprintf("start/end tag mismatch: expected </%s>, saw </%s>", e.Expected, e.Found)
}

package parser

import (
	"errors"
	"fmt"
)

type ParserNotFoundError struct {
	Name string
}

func (e *ParserNotFoundError) Error() string {
	return fmt.Sprintf("parser %q not found or not enabled", e.Name)
}

type UnsupportedDocumentTypeError struct {
	MimeType string
	Filename string
}

func (e *UnsupportedDocumentTypeError) Error() string {
	if e.MimeType != "" {
		return fmt.Sprintf("no parser available for file type: %s", e.MimeType)
	}
	return fmt.Sprintf("no parser available for file: %s", e.Filename)
}

// ParseFailedError wraps a failure from a strategy or the service it
// delegates to. Permanent failures are not retried.
type ParseFailedError struct {
	Parser    string
	Cause     error
	Permanent bool
}

func (e *ParseFailedError) Error() string {
	return fmt.Sprintf("parser %s failed: %v", e.Parser, e.Cause)
}

func (e *ParseFailedError) Unwrap() error { return e.Cause }

// IsRetryable reports whether err is worth another parse attempt.
func IsRetryable(err error) bool {
	var notFound *ParserNotFoundError
	var unsupported *UnsupportedDocumentTypeError
	if errors.As(err, &notFound) || errors.As(err, &unsupported) {
		return false
	}
	var failed *ParseFailedError
	if errors.As(err, &failed) {
		return !failed.Permanent
	}
	return true
}

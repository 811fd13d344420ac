package ingestion

import (
	"context"
	"errors"
	"fmt"

	"lupa-be/pkg/crawl"
	"lupa-be/pkg/parser"
	"lupa-be/pkg/vector"
)

// ErrSnapshotGone means the snapshot was deleted while its run was in flight.
var ErrSnapshotGone = errors.New("snapshot no longer exists")

type FetchFailedError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *FetchFailedError) Error() string {
	return fmt.Sprintf("failed to fetch document: %d %s", e.StatusCode, e.Status)
}

type InvalidSnapshotTransitionError struct {
	SnapshotID string
	From       Status
	To         Status
}

func (e *InvalidSnapshotTransitionError) Error() string {
	return fmt.Sprintf("snapshot %s cannot move from %s to %s", e.SnapshotID, e.From, e.To)
}

func (e *InvalidSnapshotTransitionError) Code() string    { return "INVALID_SNAPSHOT_TRANSITION" }
func (e *InvalidSnapshotTransitionError) HTTPStatus() int { return 409 }

// PermanentError stops the retry loop on the first failure.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsRetryable reports whether a failed step may be attempted again.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrSnapshotGone) || errors.Is(err, crawl.ErrNoKeys) {
		return false
	}

	var permanent *PermanentError
	var notConfigured *vector.VectorIndexNotConfiguredError
	var transition *InvalidSnapshotTransitionError
	if errors.As(err, &permanent) || errors.As(err, &notConfigured) || errors.As(err, &transition) {
		return false
	}
	if !parser.IsRetryable(err) {
		return false
	}

	var providerErr *crawl.ProviderError
	if errors.As(err, &providerErr) {
		return crawl.IsRetryable(err)
	}
	return true
}

package ingestion

import (
	"context"

	"golang.org/x/sync/semaphore"
)

const (
	DefaultGeneralConcurrency = 8
	DefaultWebsiteConcurrency = 12
)

// Limiter bounds concurrent runs: website runs share the crawl ceiling and
// every other run shares the general limit.
type Limiter struct {
	general *semaphore.Weighted
	website *semaphore.Weighted
}

func NewLimiter(general, website int) *Limiter {
	if general < 1 {
		general = DefaultGeneralConcurrency
	}
	if website < 1 {
		website = DefaultWebsiteConcurrency
	}
	return &Limiter{
		general: semaphore.NewWeighted(int64(general)),
		website: semaphore.NewWeighted(int64(website)),
	}
}

// Acquire blocks until a slot for t is free and returns its release func.
func (l *Limiter) Acquire(ctx context.Context, t SnapshotType) (func(), error) {
	sem := l.general
	if t == TypeWebsite {
		sem = l.website
	}
	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return func() { sem.Release(1) }, nil
}

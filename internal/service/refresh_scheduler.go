package service

import (
	"context"
	"time"

	"lupa-be/internal/pkg/logger"
)

const DefaultRefreshInterval = 15 * time.Minute

// RefreshScheduler periodically queues new runs for website documents whose
// refresh frequency has elapsed.
type RefreshScheduler struct {
	documents IDocumentService
	interval  time.Duration
	logger    logger.ILogger
}

func NewRefreshScheduler(documents IDocumentService, interval time.Duration, log logger.ILogger) *RefreshScheduler {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &RefreshScheduler{
		documents: documents,
		interval:  interval,
		logger:    log,
	}
}

// Run blocks until ctx is done.
func (r *RefreshScheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("REFRESH", "Refresh scheduler started", map[string]interface{}{
		"interval": r.interval.String(),
	})
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

// Tick runs one refresh pass.
func (r *RefreshScheduler) Tick(ctx context.Context) {
	queued, err := r.documents.RefreshDue(ctx)
	if err != nil {
		r.logger.Error("REFRESH", "Refresh pass failed", map[string]interface{}{
			"queued": queued,
			"error":  err.Error(),
		})
	}
}

package ingestion

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"lupa-be/internal/pkg/logger"
)

const logModule = "ingestion"

type Orchestrator struct {
	store         SnapshotStore
	steps         *Steps
	logger        logger.ILogger
	filePolicy    RetryPolicy
	websitePolicy RetryPolicy
}

type Option func(*Orchestrator)

func WithLogger(l logger.ILogger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

func WithFilePolicy(p RetryPolicy) Option {
	return func(o *Orchestrator) { o.filePolicy = p }
}

func WithWebsitePolicy(p RetryPolicy) Option {
	return func(o *Orchestrator) { o.websitePolicy = p }
}

func NewOrchestrator(store SnapshotStore, steps *Steps, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:         store,
		steps:         steps,
		logger:        logger.NewNopLogger(),
		filePolicy:    FilePolicy(),
		websitePolicy: WebsitePolicy(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes one process-snapshot run. The snapshot always ends in success
// or error once it has been marked running, even when ctx is cancelled or a
// step panics. A snapshot deleted mid-run has its result discarded.
func (o *Orchestrator) Run(ctx context.Context, p Payload, tags []string) (*Outcome, error) {
	job, err := o.store.LoadJob(ctx, p.SnapshotID)
	if err != nil {
		return nil, err
	}
	if p.ParserName != "" {
		job.ParserName = p.ParserName
	}
	if p.ParsingInstruction != "" {
		job.ParsingInstruction = p.ParsingInstruction
	}
	job.Tags = append(job.Tags, tags...)

	if err := o.store.MarkRunning(ctx, job.SnapshotID); err != nil {
		return nil, err
	}

	start := time.Now()
	o.logger.Info(logModule, "Snapshot run started", map[string]interface{}{
		"snapshot_id": job.SnapshotID,
		"document_id": job.DocumentID,
		"type":        job.Type,
		"tags":        job.Tags,
	})

	outcome := o.execute(ctx, job)
	recordRun(job.Type, outcome.Status, time.Since(start))

	if err := o.finalize(ctx, job, outcome); err != nil {
		if errors.Is(err, ErrSnapshotGone) {
			o.logger.Warn(logModule, "Snapshot deleted during run, result discarded", map[string]interface{}{
				"snapshot_id": job.SnapshotID,
			})
			return &outcome, nil
		}
		o.logger.Error(logModule, "Failed to finalize snapshot", map[string]interface{}{
			"snapshot_id": job.SnapshotID,
			"error":       err.Error(),
		})
		return &outcome, err
	}

	details := map[string]interface{}{
		"snapshot_id": job.SnapshotID,
		"status":      outcome.Status,
		"duration_ms": time.Since(start).Milliseconds(),
	}
	if outcome.Status == StatusError {
		details["reason"] = outcome.ErrorReason
		o.logger.Warn(logModule, "Snapshot run failed", details)
	} else {
		o.logger.Info(logModule, "Snapshot run succeeded", details)
	}
	return &outcome, nil
}

// finalize records the outcome on a context detached from cancellation,
// retrying transient store failures. A deleted snapshot or one that already
// left running is not retried.
func (o *Orchestrator) finalize(ctx context.Context, job *Job, outcome Outcome) error {
	return o.retry(context.WithoutCancel(ctx), job, "finalize", o.filePolicy, func(ctx context.Context) error {
		return o.store.Finalize(ctx, job.SnapshotID, outcome)
	})
}

func (o *Orchestrator) execute(ctx context.Context, job *Job) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error(logModule, "Snapshot run panicked", map[string]interface{}{
				"snapshot_id": job.SnapshotID,
				"panic":       fmt.Sprint(r),
				"stack":       string(debug.Stack()),
			})
			out = failed(out, "internal", fmt.Errorf("panic: %v", r))
		}
	}()

	var parsed *Parsed
	switch job.Type {
	case TypeUpload:
		var raw *RawDocument
		err := o.retry(ctx, job, "fetch", o.filePolicy, func(ctx context.Context) error {
			var err error
			raw, err = o.steps.FetchRaw(ctx, job)
			return err
		})
		if err != nil {
			return failed(out, "fetch", err)
		}
		out.RawBlobURL = raw.BlobURL

		err = o.retry(ctx, job, "parse", o.filePolicy, func(ctx context.Context) error {
			var err error
			parsed, err = o.steps.ParseUpload(ctx, job, raw)
			return err
		})
		if err != nil {
			return failed(out, "parse", err)
		}

	case TypeWebsite:
		err := o.retry(ctx, job, "crawl", o.websitePolicy, func(ctx context.Context) error {
			var err error
			parsed, err = o.steps.ScrapeWebsite(ctx, job)
			return err
		})
		if err != nil {
			return failed(out, "crawl", err)
		}

	default:
		return failed(out, "dispatch", fmt.Errorf("unknown snapshot type %q", job.Type))
	}

	out.ParserName = parsed.Parser
	out.Metadata = parsed.Metadata

	err := o.retry(ctx, job, "store", o.filePolicy, func(ctx context.Context) error {
		stored, err := o.steps.StoreParsed(ctx, job, parsed.Markdown)
		if err == nil {
			out.MarkdownURL = stored.URL
		}
		return err
	})
	if err != nil {
		return failed(out, "store", err)
	}

	changed := o.detectChanges(ctx, job, parsed.Markdown)
	out.ChangesDetected = &changed

	var chunks int
	err = o.retry(ctx, job, "index", o.filePolicy, func(ctx context.Context) error {
		var err error
		chunks, err = o.steps.Index(ctx, job, parsed.Markdown)
		return err
	})
	if err != nil {
		return failed(out, "index", err)
	}

	tokens := EstimateTokens(parsed.Markdown)
	out.ChunksCount = &chunks
	out.TokensCount = &tokens
	out.Status = StatusSuccess
	return out
}

func (o *Orchestrator) retry(ctx context.Context, job *Job, step string, policy RetryPolicy, fn func(ctx context.Context) error) error {
	start := time.Now()
	err := policy.Do(ctx, func(attempt int, err error, wait time.Duration) {
		recordRetry(step)
		o.logger.Warn(logModule, "Step failed, retrying", map[string]interface{}{
			"snapshot_id": job.SnapshotID,
			"step":        step,
			"attempt":     attempt,
			"wait":        wait.String(),
			"error":       err.Error(),
		})
	}, fn)
	recordStep(step, time.Since(start))
	return err
}

// detectChanges compares against the previous snapshot's Markdown. Anything
// that prevents the comparison counts as a change.
func (o *Orchestrator) detectChanges(ctx context.Context, job *Job, markdown string) bool {
	prevURL, err := o.store.PreviousMarkdownURL(ctx, job.DocumentID, job.SnapshotID)
	if err != nil || prevURL == "" {
		return true
	}
	prev, err := o.steps.Blobs.Get(ctx, prevURL)
	if err != nil {
		o.logger.Warn(logModule, "Failed to fetch previous markdown", map[string]interface{}{
			"snapshot_id": job.SnapshotID,
			"error":       err.Error(),
		})
		return true
	}
	return string(prev) != markdown
}

func failed(out Outcome, step string, err error) Outcome {
	out.Status = StatusError
	reason := err.Error()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		reason = "run cancelled"
	}
	out.ErrorReason = strings.TrimSpace(step + ": " + reason)
	return out
}

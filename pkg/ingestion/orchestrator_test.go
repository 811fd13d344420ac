package ingestion

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lupa-be/pkg/blob"
	"lupa-be/pkg/crawl"
	"lupa-be/pkg/parser"
)

type fakeStore struct {
	mu       sync.Mutex
	jobs     map[string]*Job
	status   map[string]Status
	outcomes map[string]Outcome
	prevURL  string
	gone     bool

	finalizeErrs  []error
	finalizeCalls int
}

func newFakeStore(jobs ...*Job) *fakeStore {
	s := &fakeStore{
		jobs:     map[string]*Job{},
		status:   map[string]Status{},
		outcomes: map[string]Outcome{},
	}
	for _, j := range jobs {
		s.jobs[j.SnapshotID] = j
		s.status[j.SnapshotID] = StatusQueued
	}
	return s
}

func (s *fakeStore) LoadJob(_ context.Context, id string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, ErrSnapshotGone
	}
	cp := *j
	return &cp, nil
}

func (s *fakeStore) MarkRunning(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status[id] != StatusQueued {
		return &InvalidSnapshotTransitionError{SnapshotID: id, From: s.status[id], To: StatusRunning}
	}
	s.status[id] = StatusRunning
	return nil
}

func (s *fakeStore) Finalize(ctx context.Context, id string, o Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finalizeCalls++
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if len(s.finalizeErrs) > 0 {
		err := s.finalizeErrs[0]
		s.finalizeErrs = s.finalizeErrs[1:]
		return err
	}
	if s.gone {
		return ErrSnapshotGone
	}
	if s.status[id] != StatusRunning {
		return &InvalidSnapshotTransitionError{SnapshotID: id, From: s.status[id], To: o.Status}
	}
	s.status[id] = o.Status
	s.outcomes[id] = o
	return nil
}

func (s *fakeStore) PreviousMarkdownURL(context.Context, string, string) (string, error) {
	return s.prevURL, nil
}

type fakeCrawler struct {
	mu    sync.Mutex
	errs  []error
	calls int
	tags  []string
}

func (c *fakeCrawler) Scrape(_ context.Context, _ string, tags []string, _ crawl.ScrapeOptions) (*crawl.ScrapeResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.tags = tags
	if len(c.errs) > 0 {
		err := c.errs[0]
		c.errs = c.errs[1:]
		return nil, err
	}
	return &crawl.ScrapeResult{
		Markdown: "# Page\n\nsome words here",
		Metadata: crawl.PageMetadata{Title: "Page", Favicon: "https://f.ico"},
	}, nil
}

type indexerFunc func(ctx context.Context, req IndexRequest) (int, error)

func (f indexerFunc) Index(ctx context.Context, req IndexRequest) (int, error) { return f(ctx, req) }

// waitRecorder keeps the waits a policy asks for and skips them.
type waitRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (r *waitRecorder) policy(p RetryPolicy) RetryPolicy {
	schedule := p.Backoff
	p.Backoff = func(err error, attempt int) time.Duration {
		r.mu.Lock()
		r.waits = append(r.waits, schedule(err, attempt))
		r.mu.Unlock()
		return 0
	}
	return p
}

func (r *waitRecorder) options() []Option {
	return []Option{
		WithFilePolicy(r.policy(FilePolicy())),
		WithWebsitePolicy(r.policy(WebsitePolicy())),
	}
}

func newSteps(t *testing.T, crawler Crawler, indexer Indexer) *Steps {
	t.Helper()
	store := blob.NewLocalStore(t.TempDir(), "http://blobs.test/uploads")
	reg, err := parser.NewDefaultRegistry(store.Get, "")
	require.NoError(t, err)
	return &Steps{
		HTTPClient: http.DefaultClient,
		Blobs:      store,
		Parsers:    reg,
		Crawler:    crawler,
		Indexer:    indexer,
	}
}

func websiteJob(id string) *Job {
	return &Job{
		SnapshotID: id,
		DocumentID: "doc-" + id,
		ProjectID:  "proj1",
		OwnerID:    "org1",
		Type:       TypeWebsite,
		URL:        "https://example.com/a/b/page",
		Folder:     "/a/b/",
		Name:       "page",
	}
}

func TestOrchestrator_UploadSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("hello world from a text file"))
	}))
	defer srv.Close()

	job := &Job{
		SnapshotID: "s1",
		DocumentID: "d1",
		ProjectID:  "proj1",
		OwnerID:    "org1",
		Type:       TypeUpload,
		URL:        srv.URL + "/notes.txt",
		Filename:   "notes.txt",
	}
	store := newFakeStore(job)
	var indexed IndexRequest
	steps := newSteps(t, nil, indexerFunc(func(_ context.Context, req IndexRequest) (int, error) {
		indexed = req
		return 3, nil
	}))

	out, err := NewOrchestrator(store, steps).Run(context.Background(), Payload{SnapshotID: "s1"}, nil)
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, out.Status)
	assert.Equal(t, StatusSuccess, store.status["s1"])
	assert.True(t, strings.HasPrefix(out.RawBlobURL, "http://blobs.test/uploads/org1/documents/d1-"))
	assert.True(t, strings.HasPrefix(out.MarkdownURL, "http://blobs.test/uploads/org1/markdown/d1-"))
	assert.Equal(t, "simple-text", out.ParserName)
	require.NotNil(t, out.ChunksCount)
	assert.Equal(t, 3, *out.ChunksCount)
	require.NotNil(t, out.TokensCount)
	assert.Equal(t, 6, *out.TokensCount)
	require.NotNil(t, out.ChangesDetected)
	assert.True(t, *out.ChangesDetected)
	assert.Equal(t, "s1", indexed.SnapshotID)
	assert.Contains(t, indexed.Markdown, "hello world")
}

func TestOrchestrator_FetchFailureRetriesThenErrors(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	job := &Job{SnapshotID: "s1", DocumentID: "d1", OwnerID: "org1", Type: TypeUpload, URL: srv.URL, Filename: "a.txt"}
	store := newFakeStore(job)
	rec := &waitRecorder{}

	out, err := NewOrchestrator(store, newSteps(t, nil, nil), rec.options()...).Run(context.Background(), Payload{SnapshotID: "s1"}, nil)
	require.NoError(t, err)

	assert.Equal(t, StatusError, out.Status)
	assert.Equal(t, 3, hits)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, rec.waits)
	assert.Contains(t, out.ErrorReason, "fetch")
	assert.Contains(t, out.ErrorReason, "502")
	assert.Equal(t, StatusError, store.status["s1"])
}

func TestOrchestrator_UnsupportedTypeIsNotRetried(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte{0x00, 0x01})
	}))
	defer srv.Close()

	job := &Job{SnapshotID: "s1", DocumentID: "d1", OwnerID: "org1", Type: TypeUpload, URL: srv.URL, Filename: "archive.zip"}
	store := newFakeStore(job)
	rec := &waitRecorder{}

	out, err := NewOrchestrator(store, newSteps(t, nil, nil), rec.options()...).Run(context.Background(), Payload{SnapshotID: "s1"}, nil)
	require.NoError(t, err)

	assert.Equal(t, StatusError, out.Status)
	assert.Empty(t, rec.waits)
	assert.Contains(t, out.ErrorReason, "parse")
	assert.NotEmpty(t, out.RawBlobURL)
}

func TestOrchestrator_WebsiteBackoff(t *testing.T) {
	tests := []struct {
		name       string
		errs       []error
		wantStatus Status
		wantWaits  []time.Duration
	}{
		{
			name:       "rate limit then success",
			errs:       []error{&crawl.ProviderError{StatusCode: 429, Message: "Rate limit exceeded"}},
			wantStatus: StatusSuccess,
			wantWaits:  []time.Duration{60 * time.Second},
		},
		{
			name:       "other error then success",
			errs:       []error{errors.New("connection reset")},
			wantStatus: StatusSuccess,
			wantWaits:  []time.Duration{10 * time.Second},
		},
		{
			name: "exhausted",
			errs: []error{
				errors.New("e1"), errors.New("e2"), &crawl.ProviderError{StatusCode: 429}, errors.New("e4"), errors.New("e5"),
			},
			wantStatus: StatusError,
			wantWaits:  []time.Duration{10 * time.Second, 10 * time.Second, 60 * time.Second, 10 * time.Second},
		},
		{
			name:       "blocked page is not retried",
			errs:       []error{&crawl.ProviderError{StatusCode: 403, Message: "blocked"}},
			wantStatus: StatusError,
			wantWaits:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore(websiteJob("s1"))
			crawler := &fakeCrawler{errs: tt.errs}
			rec := &waitRecorder{}

			out, err := NewOrchestrator(store, newSteps(t, crawler, nil), rec.options()...).
				Run(context.Background(), Payload{SnapshotID: "s1"}, []string{"firecrawl_3"})
			require.NoError(t, err)

			assert.Equal(t, tt.wantStatus, out.Status)
			assert.Equal(t, tt.wantWaits, rec.waits)
			assert.Equal(t, []string{"firecrawl_3"}, crawler.tags)
			if tt.wantStatus == StatusSuccess {
				assert.Equal(t, "Page", out.Metadata["title"])
			}
		})
	}
}

func TestOrchestrator_PanicBecomesError(t *testing.T) {
	store := newFakeStore(websiteJob("s1"))
	steps := newSteps(t, &fakeCrawler{}, indexerFunc(func(context.Context, IndexRequest) (int, error) {
		panic("boom")
	}))

	out, err := NewOrchestrator(store, steps).Run(context.Background(), Payload{SnapshotID: "s1"}, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusError, out.Status)
	assert.Contains(t, out.ErrorReason, "panic: boom")
	assert.Equal(t, StatusError, store.status["s1"])
}

func TestOrchestrator_CancelledRunStillFinalizes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store := newFakeStore(websiteJob("s1"))
	crawler := &fakeCrawler{errs: []error{errors.New("slow")}}
	cancelling := RetryPolicy{MaxAttempts: 5, Backoff: func(error, int) time.Duration {
		cancel()
		return time.Minute
	}}

	out, err := NewOrchestrator(store, newSteps(t, crawler, nil), WithWebsitePolicy(cancelling)).Run(ctx, Payload{SnapshotID: "s1"}, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusError, out.Status)
	assert.Equal(t, StatusError, store.status["s1"])
}

func TestOrchestrator_DeletedSnapshotDiscardsResult(t *testing.T) {
	store := newFakeStore(websiteJob("s1"))
	store.gone = true
	rec := &waitRecorder{}

	out, err := NewOrchestrator(store, newSteps(t, &fakeCrawler{}, nil), rec.options()...).Run(context.Background(), Payload{SnapshotID: "s1"}, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, out.Status)
	assert.Empty(t, store.outcomes)
	assert.Equal(t, 1, store.finalizeCalls)
	assert.Empty(t, rec.waits)
}

func TestOrchestrator_FinalizeRetriesTransientStoreErrors(t *testing.T) {
	tests := []struct {
		name       string
		errs       []error
		wantErr    bool
		wantStatus Status
		wantCalls  int
		wantWaits  []time.Duration
	}{
		{
			name:       "recovers after one failure",
			errs:       []error{errors.New("connection reset by peer")},
			wantStatus: StatusSuccess,
			wantCalls:  2,
			wantWaits:  []time.Duration{time.Second},
		},
		{
			name: "gives up after the file policy",
			errs: []error{
				errors.New("connection reset by peer"), errors.New("connection reset by peer"), errors.New("connection reset by peer"),
			},
			wantErr:    true,
			wantStatus: StatusRunning,
			wantCalls:  3,
			wantWaits:  []time.Duration{time.Second, 2 * time.Second},
		},
		{
			name:       "transition conflicts are final",
			errs:       []error{&InvalidSnapshotTransitionError{SnapshotID: "s1", From: StatusError, To: StatusSuccess}},
			wantErr:    true,
			wantStatus: StatusRunning,
			wantCalls:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore(websiteJob("s1"))
			store.finalizeErrs = tt.errs
			rec := &waitRecorder{}

			out, err := NewOrchestrator(store, newSteps(t, &fakeCrawler{}, nil), rec.options()...).
				Run(context.Background(), Payload{SnapshotID: "s1"}, nil)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, StatusSuccess, out.Status)
			assert.Equal(t, tt.wantStatus, store.status["s1"])
			assert.Equal(t, tt.wantCalls, store.finalizeCalls)
			assert.Equal(t, tt.wantWaits, rec.waits)
		})
	}
}

func TestOrchestrator_RejectsNonQueuedSnapshot(t *testing.T) {
	store := newFakeStore(websiteJob("s1"))
	store.status["s1"] = StatusSuccess

	_, err := NewOrchestrator(store, newSteps(t, &fakeCrawler{}, nil)).Run(context.Background(), Payload{SnapshotID: "s1"}, nil)
	var transition *InvalidSnapshotTransitionError
	require.ErrorAs(t, err, &transition)
	assert.Equal(t, StatusSuccess, store.status["s1"])
}

func TestOrchestrator_UnchangedMarkdown(t *testing.T) {
	store := newFakeStore(websiteJob("s1"))
	steps := newSteps(t, &fakeCrawler{}, nil)

	prev, err := steps.Blobs.Put(context.Background(), "org1/markdown/old.md", []byte("# Page\n\nsome words here"), blob.PutOptions{})
	require.NoError(t, err)
	store.prevURL = prev.URL

	out, err := NewOrchestrator(store, steps).Run(context.Background(), Payload{SnapshotID: "s1"}, nil)
	require.NoError(t, err)
	require.NotNil(t, out.ChangesDetected)
	assert.False(t, *out.ChangesDetected)
}

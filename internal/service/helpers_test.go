package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"lupa-be/internal/entity"
	"lupa-be/internal/pkg/logger"
	"lupa-be/internal/repository/memory"
	"lupa-be/internal/repository/specification"
	"lupa-be/internal/repository/unitofwork"
	"lupa-be/pkg/blob"
	"lupa-be/pkg/events"
	"lupa-be/pkg/ingestion"
	"lupa-be/pkg/kv"
	"lupa-be/pkg/taskqueue"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type triggered struct {
	taskID  string
	payload interface{}
	tags    []string
}

type fakeTasks struct {
	mu   sync.Mutex
	runs []triggered
	err  error
}

func (f *fakeTasks) Trigger(_ context.Context, taskID string, payload interface{}, opts taskqueue.TriggerOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.runs = append(f.runs, triggered{taskID: taskID, payload: payload, tags: opts.Tags})
	return uuid.NewString(), nil
}

func (f *fakeTasks) byTask(taskID string) []triggered {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []triggered
	for _, r := range f.runs {
		if r.taskID == taskID {
			out = append(out, r)
		}
	}
	return out
}

type recordedEvents struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordedEvents) Publish(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordedEvents) ofType(eventType string) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Event
	for _, e := range r.events {
		if e.EventType() == eventType {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	ctx         context.Context
	factory     unitofwork.RepositoryFactory
	pointers    *kv.MemoryStore
	tasks       *fakeTasks
	events      *recordedEvents
	blobs       *blob.LocalStore
	store       ingestion.SnapshotStore
	documents   IDocumentService
	deployments IDeploymentService
}

func newFixture(t *testing.T, opts ...DeploymentServiceOption) *fixture {
	t.Helper()
	log := logger.NewNopLogger()
	f := &fixture{
		ctx:      context.Background(),
		factory:  memory.NewRepositoryFactory(memory.NewDatabase()),
		pointers: kv.NewMemoryStore(),
		tasks:    &fakeTasks{},
		events:   &recordedEvents{},
		blobs:    blob.NewLocalStore(t.TempDir(), "http://localhost/uploads"),
	}
	f.store = NewSnapshotStore(f.factory, f.events, log)
	f.documents = NewDocumentService(f.factory, f.tasks, f.blobs, 3, log)
	opts = append([]DeploymentServiceOption{WithDeploymentRetry(ingestion.RetryPolicy{MaxAttempts: 3})}, opts...)
	f.deployments = NewDeploymentService(f.factory, f.pointers, f.events, f.tasks, f.blobs, log, opts...)
	return f
}

func (f *fixture) uow() unitofwork.UnitOfWork {
	return f.factory.NewUnitOfWork(f.ctx)
}

func (f *fixture) project(t *testing.T, orgId string) *entity.Project {
	t.Helper()
	p := &entity.Project{Id: uuid.New(), OrgId: orgId, Name: "proj1"}
	require.NoError(t, f.uow().ProjectRepository().Create(f.ctx, p))
	return p
}

func (f *fixture) deployment(t *testing.T, projectId uuid.UUID, status entity.DeploymentStatus) *entity.Deployment {
	t.Helper()
	d := &entity.Deployment{Id: uuid.New(), ProjectId: projectId, Name: "dep", Status: status}
	require.NoError(t, f.uow().DeploymentRepository().Create(f.ctx, d))
	return d
}

func (f *fixture) reloadDeployment(t *testing.T, id uuid.UUID) *entity.Deployment {
	t.Helper()
	d, err := f.uow().DeploymentRepository().FindOne(f.ctx, specification.ByID{ID: id})
	require.NoError(t, err)
	require.NotNil(t, d)
	return d
}

func (f *fixture) reloadProject(t *testing.T, id uuid.UUID) *entity.Project {
	t.Helper()
	p, err := f.uow().ProjectRepository().FindOne(f.ctx, specification.ByID{ID: id})
	require.NoError(t, err)
	require.NotNil(t, p)
	return p
}

// finish drives a snapshot through running to the given outcome the way the
// orchestrator does.
func (f *fixture) finish(t *testing.T, snapshotId uuid.UUID, outcome ingestion.Outcome) {
	t.Helper()
	require.NoError(t, f.store.MarkRunning(f.ctx, snapshotId.String()))
	require.NoError(t, f.store.Finalize(f.ctx, snapshotId.String(), outcome))
}

// succeed stores markdown in the blob store and finishes the snapshot with it.
func (f *fixture) succeed(t *testing.T, snapshotId uuid.UUID, markdown string) {
	t.Helper()
	put, err := f.blobs.Put(f.ctx, blob.MarkdownPath("org1", snapshotId.String()), []byte(markdown), blob.PutOptions{
		Access:          blob.AccessPublic,
		ContentType:     "text/markdown",
		AddRandomSuffix: true,
	})
	require.NoError(t, err)
	f.finish(t, snapshotId, ingestion.Outcome{Status: ingestion.StatusSuccess, MarkdownURL: put.URL})
}

var errBroker = errors.New("broker unavailable")

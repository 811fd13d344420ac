package memory

import (
	"context"
	"testing"
	"time"

	"lupa-be/internal/entity"
	"lupa-be/internal/repository/specification"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedDocument(t *testing.T, ctx context.Context, f *RepositoryFactory) (*entity.Project, *entity.Document) {
	t.Helper()
	uow := f.NewUnitOfWork(ctx)
	project := &entity.Project{OrgId: "org1", Name: "proj1"}
	require.NoError(t, uow.ProjectRepository().Create(ctx, project))
	doc := &entity.Document{ProjectId: project.Id, OrgId: "org1", Folder: "/a/b/", Name: "doc1"}
	require.NoError(t, uow.DocumentRepository().Create(ctx, doc))
	return project, doc
}

func TestSnapshotOrdering(t *testing.T) {
	ctx := context.Background()
	f := NewRepositoryFactory(NewDatabase()).(*RepositoryFactory)
	_, doc := seedDocument(t, ctx, f)
	repo := f.NewUnitOfWork(ctx).SnapshotRepository()

	// identical requested timestamps still order by insertion
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		s := &entity.Snapshot{DocumentId: doc.Id, Type: entity.SnapshotTypeUpload, CreatedAt: at}
		require.NoError(t, repo.Create(ctx, s))
		ids = append(ids, s.Id)
	}

	current, err := repo.FindOne(ctx, specification.ByDocument(doc.Id), specification.NewestFirst())
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, ids[2], current.Id)

	all, err := repo.FindAll(ctx, specification.ByDocument(doc.Id), specification.OldestFirst())
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, ids[0], all[0].Id)
}

func TestSnapshotTransition(t *testing.T) {
	ctx := context.Background()
	f := NewRepositoryFactory(NewDatabase()).(*RepositoryFactory)
	_, doc := seedDocument(t, ctx, f)
	repo := f.NewUnitOfWork(ctx).SnapshotRepository()

	s := &entity.Snapshot{DocumentId: doc.Id, Url: "https://x", Type: entity.SnapshotTypeWebsite}
	require.NoError(t, repo.Create(ctx, s))
	assert.Equal(t, entity.SnapshotStatusQueued, s.Status)

	s.Status = entity.SnapshotStatusRunning
	ok, err := repo.Transition(ctx, s, entity.SnapshotStatusQueued)
	require.NoError(t, err)
	assert.True(t, ok)

	s.Status = entity.SnapshotStatusSuccess
	s.Url = "https://changed"
	ok, err = repo.Transition(ctx, s, entity.SnapshotStatusQueued)
	require.NoError(t, err)
	assert.False(t, ok, "stored status is running")

	ok, err = repo.Transition(ctx, s, entity.SnapshotStatusRunning)
	require.NoError(t, err)
	assert.True(t, ok)

	stored, err := repo.FindOne(ctx, specification.ByID{ID: s.Id})
	require.NoError(t, err)
	assert.Equal(t, entity.SnapshotStatusSuccess, stored.Status)
	assert.Equal(t, "https://x", stored.Url, "url is immutable")
}

func TestDocumentUniquePath(t *testing.T) {
	ctx := context.Background()
	f := NewRepositoryFactory(NewDatabase()).(*RepositoryFactory)
	project, _ := seedDocument(t, ctx, f)

	dup := &entity.Document{ProjectId: project.Id, Folder: "/a/b/", Name: "doc1"}
	err := f.NewUnitOfWork(ctx).DocumentRepository().Create(ctx, dup)
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestSingleEnvironmentPerProject(t *testing.T) {
	ctx := context.Background()
	f := NewRepositoryFactory(NewDatabase()).(*RepositoryFactory)
	project, _ := seedDocument(t, ctx, f)
	repo := f.NewUnitOfWork(ctx).DeploymentRepository()

	prod := entity.EnvironmentProduction
	d1 := &entity.Deployment{ProjectId: project.Id, Name: "d1", Environment: &prod}
	require.NoError(t, repo.Create(ctx, d1))

	d2 := &entity.Deployment{ProjectId: project.Id, Name: "d2"}
	require.NoError(t, repo.Create(ctx, d2))
	d2.Environment = &prod
	assert.ErrorIs(t, repo.Update(ctx, d2), gorm.ErrDuplicatedKey)

	found, err := repo.FindAll(ctx, specification.ByProject(project.Id), specification.WithEnvironment(string(prod)))
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, d1.Id, found[0].Id)

	staging := entity.EnvironmentStaging
	d2.Environment = &staging
	require.NoError(t, repo.Update(ctx, d2))
	d3 := &entity.Deployment{ProjectId: project.Id, Name: "d3", Environment: &staging}
	assert.ErrorIs(t, repo.Create(ctx, d3), gorm.ErrDuplicatedKey)
}

func TestRollbackRestoresTables(t *testing.T) {
	ctx := context.Background()
	f := NewRepositoryFactory(NewDatabase()).(*RepositoryFactory)
	project, _ := seedDocument(t, ctx, f)

	uow := f.NewUnitOfWork(ctx)
	require.NoError(t, uow.Begin(ctx))
	txid, err := uow.TxID(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, txid)

	project.Name = "renamed"
	require.NoError(t, uow.ProjectRepository().Update(ctx, project))
	require.NoError(t, uow.Rollback())

	_, err = uow.TxID(ctx)
	assert.Error(t, err)

	stored, err := f.NewUnitOfWork(ctx).ProjectRepository().FindOne(ctx, specification.ByID{ID: project.Id})
	require.NoError(t, err)
	assert.Equal(t, "proj1", stored.Name)
}

func TestOpenTransactionIsInvisibleToOtherReaders(t *testing.T) {
	ctx := context.Background()
	f := NewRepositoryFactory(NewDatabase()).(*RepositoryFactory)
	project, _ := seedDocument(t, ctx, f)

	d := &entity.Deployment{ProjectId: project.Id, Name: "d1", Status: entity.DeploymentStatusReady}
	require.NoError(t, f.NewUnitOfWork(ctx).DeploymentRepository().Create(ctx, d))

	tx := f.NewUnitOfWork(ctx)
	require.NoError(t, tx.Begin(ctx))
	prod := entity.EnvironmentProduction
	d.Environment = &prod
	require.NoError(t, tx.DeploymentRepository().Update(ctx, d))
	project.ProductionDeploymentId = &d.Id
	require.NoError(t, tx.ProjectRepository().Update(ctx, project))

	inside, err := tx.DeploymentRepository().FindOne(ctx, specification.ByID{ID: d.Id})
	require.NoError(t, err)
	assert.True(t, inside.IsProduction(), "the transaction reads its own writes")

	reader := f.NewUnitOfWork(ctx)
	seen, err := reader.DeploymentRepository().FindOne(ctx, specification.ByID{ID: d.Id})
	require.NoError(t, err)
	assert.Nil(t, seen.Environment)
	seenProject, err := reader.ProjectRepository().FindOne(ctx, specification.ByID{ID: project.Id})
	require.NoError(t, err)
	assert.Nil(t, seenProject.ProductionDeploymentId)

	require.NoError(t, tx.Commit())

	seen, err = reader.DeploymentRepository().FindOne(ctx, specification.ByID{ID: d.Id})
	require.NoError(t, err)
	assert.True(t, seen.IsProduction())
	seenProject, err = reader.ProjectRepository().FindOne(ctx, specification.ByID{ID: project.Id})
	require.NoError(t, err)
	require.NotNil(t, seenProject.ProductionDeploymentId)
	assert.Equal(t, d.Id, *seenProject.ProductionDeploymentId)
}

func TestLatestSuccessfulByProject(t *testing.T) {
	ctx := context.Background()
	f := NewRepositoryFactory(NewDatabase()).(*RepositoryFactory)
	project, doc := seedDocument(t, ctx, f)
	repo := f.NewUnitOfWork(ctx).SnapshotRepository()

	statuses := []entity.SnapshotStatus{entity.SnapshotStatusSuccess, entity.SnapshotStatusSuccess, entity.SnapshotStatusError}
	var created []*entity.Snapshot
	for _, st := range statuses {
		s := &entity.Snapshot{DocumentId: doc.Id, Type: entity.SnapshotTypeUpload, Status: st}
		require.NoError(t, repo.Create(ctx, s))
		created = append(created, s)
	}

	latest, err := repo.LatestSuccessfulByProject(ctx, project.Id, time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, created[1].Id, latest[0].Id)

	latest, err = repo.LatestSuccessfulByProject(ctx, project.Id, created[0].CreatedAt)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, created[0].Id, latest[0].Id)
}

func TestCascadeDelete(t *testing.T) {
	ctx := context.Background()
	f := NewRepositoryFactory(NewDatabase()).(*RepositoryFactory)
	project, doc := seedDocument(t, ctx, f)
	uow := f.NewUnitOfWork(ctx)

	s := &entity.Snapshot{DocumentId: doc.Id, Type: entity.SnapshotTypeUpload}
	require.NoError(t, uow.SnapshotRepository().Create(ctx, s))
	require.NoError(t, uow.SnapshotChunkRepository().CreateBatch(ctx, []*entity.SnapshotChunk{
		{SnapshotId: s.Id, Content: "hello", Embedding: []float32{1, 0}},
	}))

	require.NoError(t, uow.ProjectRepository().Delete(ctx, project.Id))

	n, err := uow.SnapshotRepository().Count(ctx, specification.ByDocument(doc.Id))
	require.NoError(t, err)
	assert.Zero(t, n)
	matches, err := uow.SnapshotChunkRepository().SearchSimilar(ctx, []uuid.UUID{s.Id}, []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestSearchSimilarRanksByCosine(t *testing.T) {
	ctx := context.Background()
	f := NewRepositoryFactory(NewDatabase()).(*RepositoryFactory)
	_, doc := seedDocument(t, ctx, f)
	uow := f.NewUnitOfWork(ctx)

	s := &entity.Snapshot{DocumentId: doc.Id, Type: entity.SnapshotTypeUpload}
	require.NoError(t, uow.SnapshotRepository().Create(ctx, s))
	require.NoError(t, uow.SnapshotChunkRepository().CreateBatch(ctx, []*entity.SnapshotChunk{
		{SnapshotId: s.Id, ChunkIndex: 0, Content: "far", Embedding: []float32{0, 1}},
		{SnapshotId: s.Id, ChunkIndex: 1, Content: "near", Embedding: []float32{1, 0.1}},
	}))

	matches, err := uow.SnapshotChunkRepository().SearchSimilar(ctx, []uuid.UUID{s.Id}, []float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "near", matches[0].Chunk.Content)
}

func TestUnsupportedSpecification(t *testing.T) {
	ctx := context.Background()
	f := NewRepositoryFactory(NewDatabase()).(*RepositoryFactory)
	_, err := f.NewUnitOfWork(ctx).ProjectRepository().FindAll(ctx, unknownSpec{})
	assert.Error(t, err)
}

type unknownSpec struct{}

func (unknownSpec) Apply(db *gorm.DB) *gorm.DB { return db }

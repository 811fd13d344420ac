package service

import (
	"context"
	"strings"
	"testing"

	"lupa-be/internal/dto"
	"lupa-be/internal/entity"
	"lupa-be/internal/pkg/logger"
	"lupa-be/pkg/embedding"
	"lupa-be/pkg/ingestion"
	"lupa-be/pkg/kv"
	"lupa-be/pkg/secret"
	"lupa-be/pkg/vector"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// topicEmbedder puts text about cats and everything else on orthogonal axes.
type topicEmbedder struct{ calls int }

func (e *topicEmbedder) Generate(_ context.Context, text string, _ string) (*embedding.EmbeddingResponse, error) {
	e.calls++
	values := []float32{0, 1}
	if strings.Contains(strings.ToLower(text), "cat") {
		values = []float32{1, 0}
	}
	return &embedding.EmbeddingResponse{Embedding: embedding.EmbeddingResponseEmbedding{Values: values}}, nil
}

func TestSnapshotIndexer(t *testing.T) {
	f := newFixture(t)
	project := f.project(t, "org1")
	doc := createDoc1(t, f, project.Id)

	t.Run("without embedder only counts chunks", func(t *testing.T) {
		indexer := NewSnapshotIndexer(f.factory, nil, logger.NewNopLogger())
		n, err := indexer.Index(f.ctx, ingestion.IndexRequest{
			SnapshotID: doc.SnapshotId.String(),
			DocumentID: doc.Id.String(),
			Markdown:   strings.Repeat("word ", 500),
		})
		require.NoError(t, err)
		assert.Equal(t, 3, n)
	})

	t.Run("empty markdown", func(t *testing.T) {
		indexer := NewSnapshotIndexer(f.factory, &topicEmbedder{}, logger.NewNopLogger())
		n, err := indexer.Index(f.ctx, ingestion.IndexRequest{SnapshotID: doc.SnapshotId.String(), Markdown: "  "})
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("bad snapshot id is permanent", func(t *testing.T) {
		indexer := NewSnapshotIndexer(f.factory, &topicEmbedder{}, logger.NewNopLogger())
		_, err := indexer.Index(f.ctx, ingestion.IndexRequest{SnapshotID: "nope", Markdown: "text"})
		require.Error(t, err)
		assert.False(t, ingestion.IsRetryable(err))
	})
}

func TestSearchService_PgvectorFallback(t *testing.T) {
	f := newFixture(t)
	project := f.project(t, "org1")
	embedder := &topicEmbedder{}
	indexer := NewSnapshotIndexer(f.factory, embedder, logger.NewNopLogger())

	cats := createDoc1(t, f, project.Id)
	dogs, err := f.documents.Create(f.ctx, "org1", project.Id, &dto.CreateDocumentRequest{
		Folder: "/a/", Name: "dogs", Url: "https://example.com/dogs", Type: "website",
	})
	require.NoError(t, err)

	for _, d := range []*dto.CreateDocumentResponse{cats, dogs} {
		markdown := "Dogs are loyal."
		if d == cats {
			markdown = "Cats sleep all day."
		}
		n, err := indexer.Index(f.ctx, ingestion.IndexRequest{
			SnapshotID: d.SnapshotId.String(),
			DocumentID: d.Id.String(),
			Folder:     d.Folder,
			Name:       d.Name,
			Markdown:   markdown,
		})
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		f.succeed(t, d.SnapshotId, markdown)
	}

	dep, err := f.deployments.Create(f.ctx, project.Id, &dto.CreateDeploymentRequest{})
	require.NoError(t, err)
	require.NoError(t, f.deployments.Build(f.ctx, dep.Id))

	search := NewSearchService(f.factory, nil, embedder, logger.NewNopLogger())
	results, err := search.Search(f.ctx, project.Id, dep.Id, &dto.SearchRequest{Query: "where is my cat", TopK: 1})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Cats sleep all day.", results[0].Content)
	assert.Equal(t, cats.SnapshotId.String(), results[0].SnapshotId)
	assert.Equal(t, "/a/b/", results[0].Folder)
	assert.Equal(t, "doc1", results[0].Name)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
}

func TestSearchService_Preconditions(t *testing.T) {
	f := newFixture(t)
	project := f.project(t, "org1")
	queued := f.deployment(t, project.Id, entity.DeploymentStatusQueued)
	ready := f.deployment(t, project.Id, entity.DeploymentStatusReady)

	search := NewSearchService(f.factory, nil, nil, logger.NewNopLogger())

	_, err := search.Search(f.ctx, project.Id, queued.Id, &dto.SearchRequest{Query: "q"})
	var notReady *DeploymentNotReadyError
	require.ErrorAs(t, err, &notReady)

	_, err = search.Search(f.ctx, project.Id, ready.Id, &dto.SearchRequest{Query: "q"})
	var unavailable *SearchUnavailableError
	require.ErrorAs(t, err, &unavailable)

	other := f.project(t, "org1")
	_, err = search.Search(f.ctx, other.Id, ready.Id, &dto.SearchRequest{Query: "q"})
	var notInProject *DeploymentNotInProjectError
	require.ErrorAs(t, err, &notInProject)
}

func TestSearchService_CorruptCacheIsEvicted(t *testing.T) {
	f := newFixture(t)
	project := f.project(t, "org1")
	d := f.deployment(t, project.Id, entity.DeploymentStatusReady)
	indexId := "idx-1"
	d.VectorIndexId = &indexId
	require.NoError(t, f.uow().DeploymentRepository().Update(f.ctx, d))

	cipher, err := secret.NewCipher("test-secret")
	require.NoError(t, err)
	store := kv.NewMemoryStore()
	resolver := vector.NewResolver(vector.NewConfigCache(store, cipher, nil, 0), store, vector.NewManagementClient("http://127.0.0.1:1", "k", nil), nil)
	require.NoError(t, store.Set(f.ctx, vector.ConfigKey(d.Id.String()), "{not json", 0))

	search := NewSearchService(f.factory, resolver, nil, logger.NewNopLogger())
	_, err = search.Search(f.ctx, project.Id, d.Id, &dto.SearchRequest{Query: "q"})
	var invalidated *VectorCacheInvalidatedError
	require.ErrorAs(t, err, &invalidated)
	assert.Equal(t, 503, invalidated.HTTPStatus())

	_, ok, err := store.Get(f.ctx, vector.ConfigKey(d.Id.String()))
	require.NoError(t, err)
	assert.False(t, ok, "corrupt entry is gone so the retry goes to the provider")
}

package service

import (
	"context"
	"fmt"
	"time"

	"lupa-be/internal/entity"
	"lupa-be/internal/pkg/logger"
	"lupa-be/internal/repository/unitofwork"
	"lupa-be/pkg/embedding"
	"lupa-be/pkg/ingestion"
	"lupa-be/pkg/vector"

	"github.com/google/uuid"
)

const indexerModule = "INDEXER"

// snapshotIndexer chunks a snapshot's Markdown and, when an embedding
// provider is configured, stores the embedded chunks in the pgvector chunk
// table. Hosted indexes are filled when a deployment is built.
type snapshotIndexer struct {
	uowFactory unitofwork.RepositoryFactory
	embedder   embedding.EmbeddingProvider
	logger     logger.ILogger
}

func NewSnapshotIndexer(uowFactory unitofwork.RepositoryFactory, embedder embedding.EmbeddingProvider, log logger.ILogger) ingestion.Indexer {
	return &snapshotIndexer{
		uowFactory: uowFactory,
		embedder:   embedder,
		logger:     log,
	}
}

func (i *snapshotIndexer) Index(ctx context.Context, req ingestion.IndexRequest) (int, error) {
	records := vector.BuildRecords(vector.MarkdownDocument{
		DocumentID: req.DocumentID,
		SnapshotID: req.SnapshotID,
		Folder:     req.Folder,
		Name:       req.Name,
		Markdown:   req.Markdown,
	})
	if i.embedder == nil || len(records) == 0 {
		return len(records), nil
	}

	snapshotId, err := uuid.Parse(req.SnapshotID)
	if err != nil {
		return 0, ingestion.Permanent(fmt.Errorf("snapshot id %q: %w", req.SnapshotID, err))
	}

	start := time.Now()
	chunks := make([]*entity.SnapshotChunk, 0, len(records))
	for n, record := range records {
		res, err := i.embedder.Generate(ctx, record.Data, embedding.TaskRetrievalDocument)
		if err != nil {
			return 0, fmt.Errorf("embed chunk %d: %w", n, err)
		}
		chunks = append(chunks, &entity.SnapshotChunk{
			Id:         uuid.New(),
			SnapshotId: snapshotId,
			ChunkIndex: n,
			Content:    record.Data,
			Embedding:  res.Embedding.Values,
		})
	}

	uow := i.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return 0, err
	}
	if err := func() error {
		if err := uow.SnapshotChunkRepository().DeleteBySnapshot(ctx, snapshotId); err != nil {
			return err
		}
		return uow.SnapshotChunkRepository().CreateBatch(ctx, chunks)
	}(); err != nil {
		uow.Rollback()
		return 0, err
	}
	if err := uow.Commit(); err != nil {
		return 0, err
	}

	i.logger.Debug(indexerModule, "Snapshot chunks stored", map[string]interface{}{
		"snapshot_id": req.SnapshotID,
		"chunks":      len(chunks),
		"duration":    time.Since(start).String(),
	})
	return len(chunks), nil
}

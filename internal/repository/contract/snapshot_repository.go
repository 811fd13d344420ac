package contract

import (
	"context"
	"time"

	"lupa-be/internal/entity"
	"lupa-be/internal/repository/specification"

	"github.com/google/uuid"
)

type SnapshotRepository interface {
	Create(ctx context.Context, snapshot *entity.Snapshot) error
	// Transition writes snapshot only while the stored status is still from.
	// It reports false when the row is gone or in another status.
	Transition(ctx context.Context, snapshot *entity.Snapshot, from entity.SnapshotStatus) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Snapshot, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Snapshot, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	// LatestSuccessfulByProject returns, per document of the project, the
	// newest successful snapshot created at or before the cutoff.
	LatestSuccessfulByProject(ctx context.Context, projectID uuid.UUID, cutoff time.Time) ([]*entity.Snapshot, error)
}

type SnapshotChunkRepository interface {
	CreateBatch(ctx context.Context, chunks []*entity.SnapshotChunk) error
	DeleteBySnapshot(ctx context.Context, snapshotID uuid.UUID) error
	// SearchSimilar ranks chunks of the given snapshots by cosine distance.
	SearchSimilar(ctx context.Context, snapshotIDs []uuid.UUID, embedding []float32, limit int) ([]*entity.ChunkMatch, error)
}

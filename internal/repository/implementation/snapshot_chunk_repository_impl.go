package implementation

import (
	"context"

	"lupa-be/internal/entity"
	"lupa-be/internal/mapper"
	"lupa-be/internal/model"
	"lupa-be/internal/repository/contract"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

type SnapshotChunkRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.SnapshotMapper
}

func NewSnapshotChunkRepository(db *gorm.DB) contract.SnapshotChunkRepository {
	return &SnapshotChunkRepositoryImpl{
		db:     db,
		mapper: mapper.NewSnapshotMapper(),
	}
}

func (r *SnapshotChunkRepositoryImpl) CreateBatch(ctx context.Context, chunks []*entity.SnapshotChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	models := make([]*model.SnapshotChunk, len(chunks))
	for i, c := range chunks {
		models[i] = r.mapper.ChunkToModel(c)
	}
	if err := r.db.WithContext(ctx).Omit("Snapshot").CreateInBatches(models, 100).Error; err != nil {
		return err
	}
	for i, m := range models {
		chunks[i].Id = m.Id
		chunks[i].CreatedAt = m.CreatedAt
	}
	return nil
}

func (r *SnapshotChunkRepositoryImpl) DeleteBySnapshot(ctx context.Context, snapshotID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("snapshot_id = ?", snapshotID).Delete(&model.SnapshotChunk{}).Error
}

type chunkMatchRow struct {
	model.SnapshotChunk
	Distance float64
}

func (r *SnapshotChunkRepositoryImpl) SearchSimilar(ctx context.Context, snapshotIDs []uuid.UUID, embedding []float32, limit int) ([]*entity.ChunkMatch, error) {
	if len(snapshotIDs) == 0 {
		return []*entity.ChunkMatch{}, nil
	}
	vec := pgvector.NewVector(embedding)

	var rows []chunkMatchRow
	err := r.db.WithContext(ctx).
		Model(&model.SnapshotChunk{}).
		Select("snapshot_chunks.*, embedding <=> ? AS distance", vec).
		Where("snapshot_id IN ?", snapshotIDs).
		Order(gorm.Expr("embedding <=> ?", vec)).
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	matches := make([]*entity.ChunkMatch, len(rows))
	for i := range rows {
		matches[i] = &entity.ChunkMatch{
			Chunk:    *r.mapper.ChunkToEntity(&rows[i].SnapshotChunk),
			Distance: rows[i].Distance,
		}
	}
	return matches, nil
}

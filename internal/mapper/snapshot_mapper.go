package mapper

import (
	"lupa-be/internal/entity"
	"lupa-be/internal/model"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

type SnapshotMapper struct{}

func NewSnapshotMapper() *SnapshotMapper {
	return &SnapshotMapper{}
}

func (m *SnapshotMapper) ToEntity(s *model.Snapshot) *entity.Snapshot {
	if s == nil {
		return nil
	}
	var metadata map[string]interface{}
	if s.Metadata != nil {
		metadata = map[string]interface{}(s.Metadata)
	}
	return &entity.Snapshot{
		Id:              s.Id,
		DocumentId:      s.DocumentId,
		OrgId:           s.OrgId,
		Url:             s.Url,
		Type:            entity.SnapshotType(s.Type),
		Status:          entity.SnapshotStatus(s.Status),
		RawBlobUrl:      s.RawBlobUrl,
		MarkdownUrl:     s.MarkdownUrl,
		ChunksCount:     s.ChunksCount,
		TokensCount:     s.TokensCount,
		ChangesDetected: s.ChangesDetected,
		ErrorReason:     s.ErrorReason,
		ParserName:      s.ParserName,
		Metadata:        metadata,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       optionalTime(s.UpdatedAt),
	}
}

func (m *SnapshotMapper) ToModel(s *entity.Snapshot) *model.Snapshot {
	if s == nil {
		return nil
	}
	var metadata datatypes.JSONMap
	if s.Metadata != nil {
		metadata = datatypes.JSONMap(s.Metadata)
	}
	return &model.Snapshot{
		Id:              s.Id,
		DocumentId:      s.DocumentId,
		OrgId:           s.OrgId,
		Url:             s.Url,
		Type:            string(s.Type),
		Status:          string(s.Status),
		RawBlobUrl:      s.RawBlobUrl,
		MarkdownUrl:     s.MarkdownUrl,
		ChunksCount:     s.ChunksCount,
		TokensCount:     s.TokensCount,
		ChangesDetected: s.ChangesDetected,
		ErrorReason:     s.ErrorReason,
		ParserName:      s.ParserName,
		Metadata:        metadata,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       requiredTime(s.UpdatedAt),
	}
}

func (m *SnapshotMapper) ToEntities(snapshots []*model.Snapshot) []*entity.Snapshot {
	entities := make([]*entity.Snapshot, len(snapshots))
	for i, s := range snapshots {
		entities[i] = m.ToEntity(s)
	}
	return entities
}

func (m *SnapshotMapper) ChunkToEntity(c *model.SnapshotChunk) *entity.SnapshotChunk {
	if c == nil {
		return nil
	}
	return &entity.SnapshotChunk{
		Id:         c.Id,
		SnapshotId: c.SnapshotId,
		ChunkIndex: c.ChunkIndex,
		Content:    c.Content,
		Embedding:  c.Embedding.Slice(),
		CreatedAt:  c.CreatedAt,
	}
}

func (m *SnapshotMapper) ChunkToModel(c *entity.SnapshotChunk) *model.SnapshotChunk {
	if c == nil {
		return nil
	}
	return &model.SnapshotChunk{
		Id:         c.Id,
		SnapshotId: c.SnapshotId,
		ChunkIndex: c.ChunkIndex,
		Content:    c.Content,
		Embedding:  pgvector.NewVector(c.Embedding),
		CreatedAt:  c.CreatedAt,
	}
}

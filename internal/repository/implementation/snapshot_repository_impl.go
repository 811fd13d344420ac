package implementation

import (
	"context"
	"errors"
	"time"

	"lupa-be/internal/entity"
	"lupa-be/internal/mapper"
	"lupa-be/internal/model"
	"lupa-be/internal/repository/contract"
	"lupa-be/internal/repository/scope"
	"lupa-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// transitionColumns are the columns a status transition may write. Id,
// document, org, url, type and created_at never change after insert.
var transitionColumns = []string{
	"status", "raw_blob_url", "markdown_url", "chunks_count", "tokens_count",
	"changes_detected", "error_reason", "parser_name", "metadata", "updated_at",
}

type SnapshotRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.SnapshotMapper
}

func NewSnapshotRepository(db *gorm.DB) contract.SnapshotRepository {
	return &SnapshotRepositoryImpl{
		db:     db,
		mapper: mapper.NewSnapshotMapper(),
	}
}

func (r *SnapshotRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *SnapshotRepositoryImpl) Create(ctx context.Context, snapshot *entity.Snapshot) error {
	m := r.mapper.ToModel(snapshot)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*snapshot = *r.mapper.ToEntity(m)
	return nil
}

func (r *SnapshotRepositoryImpl) Transition(ctx context.Context, snapshot *entity.Snapshot, from entity.SnapshotStatus) (bool, error) {
	m := r.mapper.ToModel(snapshot)
	m.UpdatedAt = time.Now()
	result := r.db.WithContext(ctx).
		Model(&model.Snapshot{}).
		Where("id = ? AND status = ?", snapshot.Id, string(from)).
		Select(transitionColumns).
		Updates(m)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		return false, nil
	}
	snapshot.UpdatedAt = &m.UpdatedAt
	return true, nil
}

func (r *SnapshotRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.Snapshot{}, id).Error
}

func (r *SnapshotRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Snapshot, error) {
	var m model.Snapshot
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *SnapshotRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Snapshot, error) {
	var models []*model.Snapshot
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *SnapshotRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.Snapshot{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *SnapshotRepositoryImpl) LatestSuccessfulByProject(ctx context.Context, projectID uuid.UUID, cutoff time.Time) ([]*entity.Snapshot, error) {
	var models []*model.Snapshot
	err := r.db.WithContext(ctx).
		Model(&model.Snapshot{}).
		Joins("JOIN documents ON documents.id = snapshots.document_id").
		Where("documents.project_id = ?", projectID).
		Where("snapshots.status = ?", string(entity.SnapshotStatusSuccess)).
		Where("snapshots.created_at <= ?", cutoff).
		Scopes(scope.LatestPerDocument).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

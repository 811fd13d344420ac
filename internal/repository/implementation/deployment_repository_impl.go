package implementation

import (
	"context"
	"errors"

	"lupa-be/internal/entity"
	"lupa-be/internal/mapper"
	"lupa-be/internal/model"
	"lupa-be/internal/repository/contract"
	"lupa-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DeploymentRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.DeploymentMapper
}

func NewDeploymentRepository(db *gorm.DB) contract.DeploymentRepository {
	return &DeploymentRepositoryImpl{
		db:     db,
		mapper: mapper.NewDeploymentMapper(),
	}
}

func (r *DeploymentRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *DeploymentRepositoryImpl) Create(ctx context.Context, deployment *entity.Deployment) error {
	m := r.mapper.ToModel(deployment)
	if err := r.db.WithContext(ctx).Omit("Rels").Create(m).Error; err != nil {
		return err
	}
	*deployment = *r.mapper.ToEntity(m)
	return nil
}

// Update writes every column. Demotion depends on a nil environment being
// stored as NULL.
func (r *DeploymentRepositoryImpl) Update(ctx context.Context, deployment *entity.Deployment) error {
	m := r.mapper.ToModel(deployment)
	if err := r.db.WithContext(ctx).Omit("Rels").Save(m).Error; err != nil {
		return err
	}
	*deployment = *r.mapper.ToEntity(m)
	return nil
}

func (r *DeploymentRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.Deployment{}, id).Error
}

func (r *DeploymentRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Deployment, error) {
	var m model.Deployment
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *DeploymentRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Deployment, error) {
	var models []*model.Deployment
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *DeploymentRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.Deployment{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

type SnapshotDeploymentRelRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.DeploymentMapper
}

func NewSnapshotDeploymentRelRepository(db *gorm.DB) contract.SnapshotDeploymentRelRepository {
	return &SnapshotDeploymentRelRepositoryImpl{
		db:     db,
		mapper: mapper.NewDeploymentMapper(),
	}
}

func (r *SnapshotDeploymentRelRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *SnapshotDeploymentRelRepositoryImpl) CreateBatch(ctx context.Context, rels []*entity.SnapshotDeploymentRel) error {
	if len(rels) == 0 {
		return nil
	}
	models := make([]*model.SnapshotDeploymentRel, len(rels))
	for i, rel := range rels {
		models[i] = r.mapper.RelToModel(rel)
	}
	if err := r.db.WithContext(ctx).Omit("Snapshot").CreateInBatches(models, 100).Error; err != nil {
		return err
	}
	for i, m := range models {
		rels[i].CreatedAt = m.CreatedAt
	}
	return nil
}

func (r *SnapshotDeploymentRelRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.SnapshotDeploymentRel, error) {
	var m model.SnapshotDeploymentRel
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.RelToEntity(&m), nil
}

func (r *SnapshotDeploymentRelRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.SnapshotDeploymentRel, error) {
	var models []*model.SnapshotDeploymentRel
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	rels := make([]*entity.SnapshotDeploymentRel, len(models))
	for i, m := range models {
		rels[i] = r.mapper.RelToEntity(m)
	}
	return rels, nil
}

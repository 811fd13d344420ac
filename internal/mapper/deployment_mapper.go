package mapper

import (
	"lupa-be/internal/entity"
	"lupa-be/internal/model"
)

type DeploymentMapper struct{}

func NewDeploymentMapper() *DeploymentMapper {
	return &DeploymentMapper{}
}

func (m *DeploymentMapper) ToEntity(d *model.Deployment) *entity.Deployment {
	if d == nil {
		return nil
	}
	var env *entity.Environment
	if d.Environment != nil {
		e := entity.Environment(*d.Environment)
		env = &e
	}
	return &entity.Deployment{
		Id:            d.Id,
		ProjectId:     d.ProjectId,
		Name:          d.Name,
		Status:        entity.DeploymentStatus(d.Status),
		Environment:   env,
		VectorIndexId: d.VectorIndexId,
		ErrorReason:   d.ErrorReason,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     optionalTime(d.UpdatedAt),
	}
}

func (m *DeploymentMapper) ToModel(d *entity.Deployment) *model.Deployment {
	if d == nil {
		return nil
	}
	var env *string
	if d.Environment != nil {
		e := string(*d.Environment)
		env = &e
	}
	return &model.Deployment{
		Id:            d.Id,
		ProjectId:     d.ProjectId,
		Name:          d.Name,
		Status:        string(d.Status),
		Environment:   env,
		VectorIndexId: d.VectorIndexId,
		ErrorReason:   d.ErrorReason,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     requiredTime(d.UpdatedAt),
	}
}

func (m *DeploymentMapper) ToEntities(deployments []*model.Deployment) []*entity.Deployment {
	entities := make([]*entity.Deployment, len(deployments))
	for i, d := range deployments {
		entities[i] = m.ToEntity(d)
	}
	return entities
}

func (m *DeploymentMapper) RelToEntity(r *model.SnapshotDeploymentRel) *entity.SnapshotDeploymentRel {
	if r == nil {
		return nil
	}
	return &entity.SnapshotDeploymentRel{
		SnapshotId:   r.SnapshotId,
		DeploymentId: r.DeploymentId,
		Folder:       r.Folder,
		Name:         r.Name,
		CreatedAt:    r.CreatedAt,
	}
}

func (m *DeploymentMapper) RelToModel(r *entity.SnapshotDeploymentRel) *model.SnapshotDeploymentRel {
	if r == nil {
		return nil
	}
	return &model.SnapshotDeploymentRel{
		SnapshotId:   r.SnapshotId,
		DeploymentId: r.DeploymentId,
		Folder:       r.Folder,
		Name:         r.Name,
		CreatedAt:    r.CreatedAt,
	}
}

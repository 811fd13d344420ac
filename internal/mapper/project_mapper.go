package mapper

import (
	"time"

	"lupa-be/internal/entity"
	"lupa-be/internal/model"
)

type ProjectMapper struct{}

func NewProjectMapper() *ProjectMapper {
	return &ProjectMapper{}
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func requiredTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

func (m *ProjectMapper) ToEntity(p *model.Project) *entity.Project {
	if p == nil {
		return nil
	}
	return &entity.Project{
		Id:                     p.Id,
		OrgId:                  p.OrgId,
		Name:                   p.Name,
		ProductionDeploymentId: p.ProductionDeploymentId,
		StagingDeploymentId:    p.StagingDeploymentId,
		CreatedAt:              p.CreatedAt,
		UpdatedAt:              optionalTime(p.UpdatedAt),
	}
}

func (m *ProjectMapper) ToModel(p *entity.Project) *model.Project {
	if p == nil {
		return nil
	}
	return &model.Project{
		Id:                     p.Id,
		OrgId:                  p.OrgId,
		Name:                   p.Name,
		ProductionDeploymentId: p.ProductionDeploymentId,
		StagingDeploymentId:    p.StagingDeploymentId,
		CreatedAt:              p.CreatedAt,
		UpdatedAt:              requiredTime(p.UpdatedAt),
	}
}

func (m *ProjectMapper) ToEntities(projects []*model.Project) []*entity.Project {
	entities := make([]*entity.Project, len(projects))
	for i, p := range projects {
		entities[i] = m.ToEntity(p)
	}
	return entities
}

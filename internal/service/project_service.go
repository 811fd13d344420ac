package service

import (
	"context"
	"time"

	"lupa-be/internal/dto"
	"lupa-be/internal/entity"
	"lupa-be/internal/pkg/logger"
	"lupa-be/internal/repository/specification"
	"lupa-be/internal/repository/unitofwork"

	"github.com/google/uuid"
)

type IProjectService interface {
	Create(ctx context.Context, orgId string, req *dto.CreateProjectRequest) (*dto.ProjectResponse, error)
	List(ctx context.Context, orgId string) ([]*dto.ProjectResponse, error)
	Show(ctx context.Context, orgId string, projectId uuid.UUID) (*dto.ProjectResponse, error)
	Delete(ctx context.Context, orgId string, projectId uuid.UUID) error

	// Authorize reports ProjectNotFoundError when the project does not exist
	// or belongs to another organization.
	Authorize(ctx context.Context, orgId string, projectId uuid.UUID) error
}

type projectService struct {
	uowFactory unitofwork.RepositoryFactory
	logger     logger.ILogger
}

func NewProjectService(uowFactory unitofwork.RepositoryFactory, log logger.ILogger) IProjectService {
	return &projectService{uowFactory: uowFactory, logger: log}
}

func toProjectResponse(p *entity.Project) *dto.ProjectResponse {
	return &dto.ProjectResponse{
		Id:                     p.Id,
		OrgId:                  p.OrgId,
		Name:                   p.Name,
		ProductionDeploymentId: p.ProductionDeploymentId,
		StagingDeploymentId:    p.StagingDeploymentId,
		CreatedAt:              p.CreatedAt,
		UpdatedAt:              p.UpdatedAt,
	}
}

func (s *projectService) find(ctx context.Context, uow unitofwork.UnitOfWork, orgId string, projectId uuid.UUID) (*entity.Project, error) {
	project, err := uow.ProjectRepository().FindOne(ctx, specification.ByID{ID: projectId}, specification.ByOrg(orgId))
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, &ProjectNotFoundError{ProjectID: projectId.String()}
	}
	return project, nil
}

func (s *projectService) Create(ctx context.Context, orgId string, req *dto.CreateProjectRequest) (*dto.ProjectResponse, error) {
	project := &entity.Project{
		Id:        uuid.New(),
		OrgId:     orgId,
		Name:      req.Name,
		CreatedAt: time.Now().UTC(),
	}
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.ProjectRepository().Create(ctx, project); err != nil {
		return nil, err
	}
	s.logger.Info("PROJECT", "Project created", map[string]interface{}{
		"project_id": project.Id,
		"org_id":     orgId,
	})
	return toProjectResponse(project), nil
}

func (s *projectService) List(ctx context.Context, orgId string) ([]*dto.ProjectResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	projects, err := uow.ProjectRepository().FindAll(ctx, specification.ByOrg(orgId), specification.NewestFirst())
	if err != nil {
		return nil, err
	}
	res := make([]*dto.ProjectResponse, 0, len(projects))
	for _, p := range projects {
		res = append(res, toProjectResponse(p))
	}
	return res, nil
}

func (s *projectService) Show(ctx context.Context, orgId string, projectId uuid.UUID) (*dto.ProjectResponse, error) {
	project, err := s.find(ctx, s.uowFactory.NewUnitOfWork(ctx), orgId, projectId)
	if err != nil {
		return nil, err
	}
	return toProjectResponse(project), nil
}

func (s *projectService) Delete(ctx context.Context, orgId string, projectId uuid.UUID) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if _, err := s.find(ctx, uow, orgId, projectId); err != nil {
		return err
	}
	if err := uow.ProjectRepository().Delete(ctx, projectId); err != nil {
		return err
	}
	s.logger.Info("PROJECT", "Project deleted", map[string]interface{}{
		"project_id": projectId,
	})
	return nil
}

func (s *projectService) Authorize(ctx context.Context, orgId string, projectId uuid.UUID) error {
	_, err := s.find(ctx, s.uowFactory.NewUnitOfWork(ctx), orgId, projectId)
	return err
}

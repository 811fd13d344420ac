package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lupa-be/internal/dto"
	"lupa-be/internal/entity"
	"lupa-be/internal/pkg/logger"
	"lupa-be/internal/repository/contract"
	"lupa-be/internal/repository/specification"
	"lupa-be/internal/repository/unitofwork"
	"lupa-be/pkg/blob"
	"lupa-be/pkg/events"
	"lupa-be/pkg/ingestion"
	"lupa-be/pkg/kv"
	"lupa-be/pkg/taskqueue"
	"lupa-be/pkg/vector"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const deploymentModule = "DEPLOYMENT"

// ProductionPointerKey caches the id of a project's production deployment.
func ProductionPointerKey(projectID uuid.UUID) string {
	return "project:" + projectID.String() + ":production_deployment"
}

// StagingPointerKey caches the id of a project's staging deployment.
func StagingPointerKey(projectID uuid.UUID) string {
	return "project:" + projectID.String() + ":staging_deployment"
}

// TaskTrigger enqueues background task runs.
type TaskTrigger interface {
	Trigger(ctx context.Context, taskID string, payload interface{}, opts taskqueue.TriggerOptions) (string, error)
}

type IDeploymentService interface {
	Create(ctx context.Context, projectId uuid.UUID, req *dto.CreateDeploymentRequest) (*dto.DeploymentResponse, error)
	List(ctx context.Context, projectId uuid.UUID) ([]*dto.DeploymentResponse, error)
	Show(ctx context.Context, projectId uuid.UUID, deploymentId uuid.UUID) (*dto.DeploymentResponse, error)

	PromoteToProduction(ctx context.Context, projectId uuid.UUID, deploymentId uuid.UUID) (*dto.EnvironmentChangeResponse, error)
	DemoteFromProduction(ctx context.Context, projectId uuid.UUID, deploymentId uuid.UUID) (*dto.EnvironmentChangeResponse, error)
	UpdateEnvironment(ctx context.Context, projectId uuid.UUID, deploymentId uuid.UUID, env *entity.Environment) (*dto.EnvironmentChangeResponse, error)
	UpdateEnvironmentWithValidation(ctx context.Context, projectId uuid.UUID, deploymentId uuid.UUID, env *entity.Environment) (*dto.EnvironmentChangeResponse, error)

	// Build runs the deploy task for a queued deployment.
	Build(ctx context.Context, deploymentId uuid.UUID) error
}

type deploymentService struct {
	uowFactory unitofwork.RepositoryFactory
	pointers   kv.Store
	publisher  events.Publisher
	tasks      TaskTrigger
	blobs      blob.Store
	resolver   *vector.Resolver
	logger     logger.ILogger
	retry      ingestion.RetryPolicy
	now        func() time.Time
}

type DeploymentServiceOption func(*deploymentService)

// WithVectorResolver enables hosted index provisioning during builds.
func WithVectorResolver(r *vector.Resolver) DeploymentServiceOption {
	return func(s *deploymentService) { s.resolver = r }
}

// WithDeploymentRetry replaces the retry policy of build steps.
func WithDeploymentRetry(p ingestion.RetryPolicy) DeploymentServiceOption {
	return func(s *deploymentService) { s.retry = p }
}

func NewDeploymentService(
	uowFactory unitofwork.RepositoryFactory,
	pointers kv.Store,
	publisher events.Publisher,
	tasks TaskTrigger,
	blobs blob.Store,
	log logger.ILogger,
	opts ...DeploymentServiceOption,
) IDeploymentService {
	s := &deploymentService{
		uowFactory: uowFactory,
		pointers:   pointers,
		publisher:  publisher,
		tasks:      tasks,
		blobs:      blobs,
		logger:     log,
		retry:      ingestion.FilePolicy(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func toDeploymentResponse(d *entity.Deployment) *dto.DeploymentResponse {
	return &dto.DeploymentResponse{
		Id:            d.Id,
		ProjectId:     d.ProjectId,
		Name:          d.Name,
		Status:        string(d.Status),
		Environment:   environmentString(d.Environment),
		VectorIndexId: d.VectorIndexId,
		ErrorReason:   d.ErrorReason,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

func environmentString(env *entity.Environment) *string {
	if env == nil {
		return nil
	}
	v := string(*env)
	return &v
}

func envPtr(e entity.Environment) *entity.Environment { return &e }

func (s *deploymentService) Create(ctx context.Context, projectId uuid.UUID, req *dto.CreateDeploymentRequest) (*dto.DeploymentResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	project, err := uow.ProjectRepository().FindOne(ctx, specification.ByID{ID: projectId})
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, &ProjectNotFoundError{ProjectID: projectId.String()}
	}

	name := req.Name
	if name == "" {
		name = generateDeploymentName()
	}
	deployment := &entity.Deployment{
		Id:        uuid.New(),
		ProjectId: projectId,
		Name:      name,
		Status:    entity.DeploymentStatusQueued,
		CreatedAt: s.now().UTC(),
	}
	if err := uow.DeploymentRepository().Create(ctx, deployment); err != nil {
		return nil, err
	}

	payload := ingestion.DeployPayload{DeploymentID: deployment.Id.String()}
	if _, err := s.tasks.Trigger(ctx, ingestion.TaskDeploy, payload, taskqueue.TriggerOptions{}); err != nil {
		deployment.Status = entity.DeploymentStatusError
		deployment.ErrorReason = fmt.Sprintf("failed to enqueue build: %v", err)
		if uerr := uow.DeploymentRepository().Update(ctx, deployment); uerr != nil {
			s.logger.Error(deploymentModule, "Failed to record enqueue failure", map[string]interface{}{
				"deployment_id": deployment.Id,
				"error":         uerr.Error(),
			})
		}
		return nil, err
	}

	s.logger.Info(deploymentModule, "Deployment queued", map[string]interface{}{
		"project_id":    projectId,
		"deployment_id": deployment.Id,
		"name":          deployment.Name,
	})
	return toDeploymentResponse(deployment), nil
}

func (s *deploymentService) List(ctx context.Context, projectId uuid.UUID) ([]*dto.DeploymentResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	deployments, err := uow.DeploymentRepository().FindAll(ctx,
		specification.ByProject(projectId),
		specification.NewestFirst(),
	)
	if err != nil {
		return nil, err
	}
	res := make([]*dto.DeploymentResponse, 0, len(deployments))
	for _, d := range deployments {
		res = append(res, toDeploymentResponse(d))
	}
	return res, nil
}

func (s *deploymentService) Show(ctx context.Context, projectId uuid.UUID, deploymentId uuid.UUID) (*dto.DeploymentResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	d, err := uow.DeploymentRepository().FindOne(ctx, specification.ByID{ID: deploymentId})
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, &DeploymentNotFoundError{DeploymentID: deploymentId.String()}
	}
	if d.ProjectId != projectId {
		return nil, &DeploymentNotInProjectError{DeploymentID: deploymentId.String(), ProjectID: projectId.String()}
	}
	return toDeploymentResponse(d), nil
}

func (s *deploymentService) PromoteToProduction(ctx context.Context, projectId uuid.UUID, deploymentId uuid.UUID) (*dto.EnvironmentChangeResponse, error) {
	return s.changeEnvironment(ctx, projectId, deploymentId, envPtr(entity.EnvironmentProduction), environmentRules{requireReady: true})
}

// DemoteFromProduction moves a production deployment to staging and clears
// the project's production pointer.
func (s *deploymentService) DemoteFromProduction(ctx context.Context, projectId uuid.UUID, deploymentId uuid.UUID) (*dto.EnvironmentChangeResponse, error) {
	return s.changeEnvironment(ctx, projectId, deploymentId, envPtr(entity.EnvironmentStaging), environmentRules{requireProduction: true})
}

func (s *deploymentService) UpdateEnvironment(ctx context.Context, projectId uuid.UUID, deploymentId uuid.UUID, env *entity.Environment) (*dto.EnvironmentChangeResponse, error) {
	if env != nil && !env.Valid() {
		return nil, &InvalidEnvironmentError{Environment: string(*env)}
	}
	return s.changeEnvironment(ctx, projectId, deploymentId, env, environmentRules{})
}

// UpdateEnvironmentWithValidation additionally refuses to place a deployment
// that is not ready into any environment.
func (s *deploymentService) UpdateEnvironmentWithValidation(ctx context.Context, projectId uuid.UUID, deploymentId uuid.UUID, env *entity.Environment) (*dto.EnvironmentChangeResponse, error) {
	if env != nil && !env.Valid() {
		return nil, &InvalidEnvironmentError{Environment: string(*env)}
	}
	return s.changeEnvironment(ctx, projectId, deploymentId, env, environmentRules{requireReady: env != nil})
}

type environmentRules struct {
	requireReady      bool
	requireProduction bool
}

type environmentChange struct {
	project            *entity.Project
	deployment         *entity.Deployment
	previousProduction *uuid.UUID
	txid               string
}

// changeEnvironment applies an environment assignment in one transaction.
// The project row is locked first so concurrent promotions in the same
// project serialize, and any deployment losing its environment is written
// before the target so the single-production index is never violated.
func (s *deploymentService) changeEnvironment(ctx context.Context, projectId, deploymentId uuid.UUID, target *entity.Environment, rules environmentRules) (*dto.EnvironmentChangeResponse, error) {
	start := time.Now()
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}

	change, err := s.applyEnvironment(ctx, uow, projectId, deploymentId, target, rules)
	if err != nil {
		uow.Rollback()
		recordPromotion(target, err, time.Since(start))
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		recordPromotion(target, err, time.Since(start))
		return nil, fmt.Errorf("commit environment change: %w", err)
	}
	recordPromotion(target, nil, time.Since(start))

	s.afterEnvironmentChange(ctx, change)

	res := &dto.EnvironmentChangeResponse{
		DeploymentId:         change.deployment.Id,
		Environment:          environmentString(change.deployment.Environment),
		PreviousProductionId: change.previousProduction,
		TxId:                 change.txid,
	}
	return res, nil
}

func (s *deploymentService) applyEnvironment(ctx context.Context, uow unitofwork.UnitOfWork, projectId, deploymentId uuid.UUID, target *entity.Environment, rules environmentRules) (*environmentChange, error) {
	project, err := uow.ProjectRepository().FindOne(ctx, specification.ByID{ID: projectId}, specification.ForUpdate{})
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, &ProjectNotFoundError{ProjectID: projectId.String()}
	}

	deployments := uow.DeploymentRepository()
	d, err := deployments.FindOne(ctx, specification.ByID{ID: deploymentId})
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, &DeploymentNotFoundError{DeploymentID: deploymentId.String()}
	}
	if d.ProjectId != projectId {
		return nil, &DeploymentNotInProjectError{DeploymentID: deploymentId.String(), ProjectID: projectId.String()}
	}
	if rules.requireProduction && !d.IsProduction() {
		return nil, &DeploymentNotInProductionError{DeploymentID: deploymentId.String()}
	}
	if rules.requireReady && d.Status != entity.DeploymentStatusReady {
		return nil, &DeploymentNotReadyError{DeploymentID: deploymentId.String(), Status: string(d.Status)}
	}

	change := &environmentChange{project: project, deployment: d}
	wasProduction := d.IsProduction()

	switch {
	case target != nil && *target == entity.EnvironmentProduction:
		holders, err := deployments.FindAll(ctx,
			specification.ByProject(projectId),
			specification.WithEnvironment(string(entity.EnvironmentProduction)),
		)
		if err != nil {
			return nil, err
		}
		var previous *entity.Deployment
		for _, holder := range holders {
			if holder.Id != d.Id {
				previous = holder
			}
		}
		if previous != nil {
			// the demoted deployment becomes the only staging one
			if err := s.clearStaging(ctx, deployments, projectId, uuid.Nil); err != nil {
				return nil, err
			}
			id := previous.Id
			change.previousProduction = &id
			previous.Environment = envPtr(entity.EnvironmentStaging)
			if err := deployments.Update(ctx, previous); err != nil {
				return nil, fmt.Errorf("demote %s: %w", previous.Id, err)
			}
			project.StagingDeploymentId = &id
		} else if project.StagingDeploymentId != nil && *project.StagingDeploymentId == d.Id {
			project.StagingDeploymentId = nil
		}
		id := d.Id
		project.ProductionDeploymentId = &id

	case target != nil && *target == entity.EnvironmentStaging:
		if err := s.clearStaging(ctx, deployments, projectId, d.Id); err != nil {
			return nil, err
		}
		if wasProduction {
			project.ProductionDeploymentId = nil
		}
		id := d.Id
		project.StagingDeploymentId = &id

	default:
		if wasProduction {
			project.ProductionDeploymentId = nil
		}
		if project.StagingDeploymentId != nil && *project.StagingDeploymentId == d.Id {
			project.StagingDeploymentId = nil
		}
	}

	d.Environment = target
	if err := deployments.Update(ctx, d); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("environment changed concurrently: %w", err)
		}
		return nil, err
	}
	if err := uow.ProjectRepository().Update(ctx, project); err != nil {
		return nil, err
	}

	txid, err := uow.TxID(ctx)
	if err != nil {
		return nil, err
	}
	change.txid = txid
	return change, nil
}

// clearStaging removes the staging environment from every deployment of the
// project except keep.
func (s *deploymentService) clearStaging(ctx context.Context, deployments contract.DeploymentRepository, projectId, keep uuid.UUID) error {
	holders, err := deployments.FindAll(ctx,
		specification.ByProject(projectId),
		specification.WithEnvironment(string(entity.EnvironmentStaging)),
	)
	if err != nil {
		return err
	}
	for _, holder := range holders {
		if holder.Id == keep {
			continue
		}
		holder.Environment = nil
		if err := deployments.Update(ctx, holder); err != nil {
			return fmt.Errorf("clear staging on %s: %w", holder.Id, err)
		}
	}
	return nil
}

// afterEnvironmentChange refreshes the pointer cache and announces the
// change. Both are best effort since the database is already committed.
func (s *deploymentService) afterEnvironmentChange(ctx context.Context, change *environmentChange) {
	project := change.project
	s.cachePointer(ctx, ProductionPointerKey(project.Id), project.ProductionDeploymentId)
	s.cachePointer(ctx, StagingPointerKey(project.Id), project.StagingDeploymentId)

	details := map[string]interface{}{
		"project_id":    project.Id,
		"deployment_id": change.deployment.Id,
		"environment":   environmentString(change.deployment.Environment),
		"txid":          change.txid,
	}
	if change.previousProduction != nil {
		details["previous_production_id"] = *change.previousProduction
	}
	s.logger.Info(deploymentModule, "Deployment environment changed", details)

	if s.publisher == nil {
		return
	}
	previous := ""
	if change.previousProduction != nil {
		previous = change.previousProduction.String()
	}
	event := events.NewEnvironmentChanged(project.Id.String(), change.deployment.Id.String(),
		environmentString(change.deployment.Environment), previous, change.txid)
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn(deploymentModule, "Failed to publish environment change", map[string]interface{}{
			"deployment_id": change.deployment.Id,
			"error":         err.Error(),
		})
	}
}

func (s *deploymentService) cachePointer(ctx context.Context, key string, id *uuid.UUID) {
	var err error
	if id == nil {
		err = s.pointers.Del(ctx, key)
	} else {
		err = s.pointers.Set(ctx, key, id.String(), 0)
	}
	if err != nil {
		s.logger.Warn(deploymentModule, "Failed to refresh deployment pointer", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}
}

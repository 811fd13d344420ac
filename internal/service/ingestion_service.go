package service

import (
	"context"
	"fmt"
	"time"

	"lupa-be/internal/pkg/logger"
	"lupa-be/pkg/ingestion"
	"lupa-be/pkg/taskqueue"

	"github.com/google/uuid"
)

const ingestionModule = "INGESTION"

// TaskConsumer is the side of the task queue the workers use.
type TaskConsumer interface {
	Handle(ctx context.Context, taskID string, gate taskqueue.Gate, handler taskqueue.Handler) error
}

type IIngestionService interface {
	// Start subscribes the snapshot and deploy workers. They stop with ctx.
	Start(ctx context.Context) error
}

type ingestionService struct {
	queue        TaskConsumer
	orchestrator *ingestion.Orchestrator
	limiter      *ingestion.Limiter
	deployments  IDeploymentService
	logger       logger.ILogger
}

func NewIngestionService(
	queue TaskConsumer,
	orchestrator *ingestion.Orchestrator,
	limiter *ingestion.Limiter,
	deployments IDeploymentService,
	log logger.ILogger,
) IIngestionService {
	return &ingestionService{
		queue:        queue,
		orchestrator: orchestrator,
		limiter:      limiter,
		deployments:  deployments,
		logger:       log,
	}
}

func (s *ingestionService) Start(ctx context.Context) error {
	if err := s.queue.Handle(ctx, ingestion.TaskProcessSnapshot, s.admitSnapshot, s.processSnapshot); err != nil {
		return fmt.Errorf("subscribe %s: %w", ingestion.TaskProcessSnapshot, err)
	}
	if err := s.queue.Handle(ctx, ingestion.TaskDeploy, nil, s.deploy); err != nil {
		return fmt.Errorf("subscribe %s: %w", ingestion.TaskDeploy, err)
	}
	s.logger.Info(ingestionModule, "Workers started", map[string]interface{}{
		"tasks": []string{ingestion.TaskProcessSnapshot, ingestion.TaskDeploy},
	})
	return nil
}

// admitSnapshot holds a run until the limiter has a slot for its type.
func (s *ingestionService) admitSnapshot(ctx context.Context, run taskqueue.Run) (func(), error) {
	var payload ingestion.Payload
	if err := run.Decode(&payload); err != nil {
		// let the handler report the bad payload
		return func() {}, nil
	}
	return s.limiter.Acquire(ctx, payload.Type)
}

func (s *ingestionService) processSnapshot(ctx context.Context, run taskqueue.Run) error {
	var payload ingestion.Payload
	if err := run.Decode(&payload); err != nil {
		return fmt.Errorf("decode payload of run %s: %w", run.ID, err)
	}

	if !run.QueuedAt.IsZero() {
		s.logger.Debug(ingestionModule, "Snapshot run dequeued", map[string]interface{}{
			"run_id":      run.ID,
			"snapshot_id": payload.SnapshotID,
			"waited":      time.Since(run.QueuedAt).String(),
		})
	}

	_, err := s.orchestrator.Run(ctx, payload, run.Tags)
	return err
}

func (s *ingestionService) deploy(ctx context.Context, run taskqueue.Run) error {
	var payload ingestion.DeployPayload
	if err := run.Decode(&payload); err != nil {
		return fmt.Errorf("decode payload of run %s: %w", run.ID, err)
	}
	deploymentId, err := uuid.Parse(payload.DeploymentID)
	if err != nil {
		return fmt.Errorf("deployment id %q: %w", payload.DeploymentID, err)
	}
	return s.deployments.Build(ctx, deploymentId)
}

package service

import (
	"context"
	"fmt"
	"time"

	"lupa-be/internal/entity"
	"lupa-be/internal/repository/specification"
	"lupa-be/internal/repository/unitofwork"
	"lupa-be/pkg/events"
	"lupa-be/pkg/vector"

	"github.com/google/uuid"
)

func (s *deploymentService) Build(ctx context.Context, deploymentId uuid.UUID) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	d, err := uow.DeploymentRepository().FindOne(ctx, specification.ByID{ID: deploymentId})
	if err != nil {
		return err
	}
	if d == nil {
		return &DeploymentNotFoundError{DeploymentID: deploymentId.String()}
	}
	if d.Status != entity.DeploymentStatusQueued {
		s.logger.Warn(deploymentModule, "Skipping build of deployment that is not queued", map[string]interface{}{
			"deployment_id": d.Id,
			"status":        d.Status,
		})
		return nil
	}

	d.Status = entity.DeploymentStatusRunning
	if err := uow.DeploymentRepository().Update(ctx, d); err != nil {
		return err
	}

	start := time.Now()
	documents, buildErr := s.build(ctx, uow, d)

	// the outcome is recorded even when ctx was cancelled mid-build
	finalCtx := context.WithoutCancel(ctx)
	if buildErr != nil {
		d.Status = entity.DeploymentStatusError
		d.ErrorReason = buildErr.Error()
	} else {
		d.Status = entity.DeploymentStatusReady
		d.ErrorReason = ""
	}
	err = s.retryStep(finalCtx, d.Id, "record outcome", func(ctx context.Context) error {
		return uow.DeploymentRepository().Update(ctx, d)
	})
	if err != nil {
		return fmt.Errorf("record build outcome: %w", err)
	}
	recordBuild(d.Status, time.Since(start))

	details := map[string]interface{}{
		"deployment_id": d.Id,
		"project_id":    d.ProjectId,
		"documents":     documents,
		"duration_ms":   time.Since(start).Milliseconds(),
	}
	if buildErr != nil {
		details["error"] = buildErr.Error()
		s.logger.Error(deploymentModule, "Deployment build failed", details)
	} else {
		s.logger.Info(deploymentModule, "Deployment ready", details)
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(finalCtx, events.NewDeploymentBuilt(d.ProjectId.String(), d.Id.String(), buildErr)); err != nil {
			s.logger.Warn(deploymentModule, "Failed to publish build outcome", map[string]interface{}{
				"deployment_id": d.Id,
				"error":         err.Error(),
			})
		}
	}
	return nil
}

// build pins the newest successful snapshot of every document created before
// the deployment, then pushes their Markdown to a freshly provisioned index.
func (s *deploymentService) build(ctx context.Context, uow unitofwork.UnitOfWork, d *entity.Deployment) (int, error) {
	snapshots, err := uow.SnapshotRepository().LatestSuccessfulByProject(ctx, d.ProjectId, d.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("select snapshots: %w", err)
	}
	if len(snapshots) == 0 {
		return 0, fmt.Errorf("project has no successful snapshots to deploy")
	}

	documentIDs := make([]uuid.UUID, 0, len(snapshots))
	for _, snap := range snapshots {
		documentIDs = append(documentIDs, snap.DocumentId)
	}
	documents, err := uow.DocumentRepository().FindAll(ctx, specification.ByIDs{IDs: documentIDs})
	if err != nil {
		return 0, fmt.Errorf("load documents: %w", err)
	}
	byID := make(map[uuid.UUID]*entity.Document, len(documents))
	for _, doc := range documents {
		byID[doc.Id] = doc
	}

	rels := make([]*entity.SnapshotDeploymentRel, 0, len(snapshots))
	for _, snap := range snapshots {
		doc, ok := byID[snap.DocumentId]
		if !ok {
			continue
		}
		rels = append(rels, &entity.SnapshotDeploymentRel{
			SnapshotId:   snap.Id,
			DeploymentId: d.Id,
			Folder:       doc.Folder,
			Name:         doc.Name,
		})
	}
	if err := uow.SnapshotDeploymentRelRepository().CreateBatch(ctx, rels); err != nil {
		return 0, fmt.Errorf("record snapshot relations: %w", err)
	}

	if s.resolver == nil {
		return len(rels), nil
	}

	var cfg *vector.IndexConfig
	err = s.retryStep(ctx, d.Id, "create_index", func(ctx context.Context) error {
		var err error
		cfg, err = s.resolver.Management().CreateIndex(ctx, vector.DefaultCreateIndexRequest(d.Id.String()))
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("provision vector index: %w", err)
	}

	d.VectorIndexId = &cfg.ID
	if err := uow.DeploymentRepository().Update(ctx, d); err != nil {
		return 0, err
	}
	if err := s.resolver.SetIndexPointer(ctx, d.Id.String(), cfg.ID); err != nil {
		return 0, fmt.Errorf("store index pointer: %w", err)
	}

	index, err := s.resolver.GetVectorIndex(ctx, d.Id.String(), vector.GetOptions{})
	if err != nil {
		return 0, err
	}

	for _, snap := range snapshots {
		doc, ok := byID[snap.DocumentId]
		if !ok || snap.MarkdownUrl == "" {
			continue
		}
		var markdown []byte
		err := s.retryStep(ctx, d.Id, "fetch_markdown", func(ctx context.Context) error {
			var err error
			markdown, err = s.blobs.Get(ctx, snap.MarkdownUrl)
			return err
		})
		if err != nil {
			return 0, fmt.Errorf("load markdown of snapshot %s: %w", snap.Id, err)
		}
		err = s.retryStep(ctx, d.Id, "upsert", func(ctx context.Context) error {
			_, err := vector.UpsertMarkdown(ctx, index, vector.MarkdownDocument{
				DocumentID: doc.Id.String(),
				SnapshotID: snap.Id.String(),
				Folder:     doc.Folder,
				Name:       doc.Name,
				Markdown:   string(markdown),
			})
			return err
		})
		if err != nil {
			return 0, fmt.Errorf("index snapshot %s: %w", snap.Id, err)
		}
	}
	return len(rels), nil
}

func (s *deploymentService) retryStep(ctx context.Context, deploymentId uuid.UUID, step string, fn func(ctx context.Context) error) error {
	onRetry := func(attempt int, err error, wait time.Duration) {
		s.logger.Warn(deploymentModule, "Build step failed, retrying", map[string]interface{}{
			"deployment_id": deploymentId,
			"step":          step,
			"attempt":       attempt,
			"wait_ms":       wait.Milliseconds(),
			"error":         err.Error(),
		})
	}
	return s.retry.Do(ctx, onRetry, fn)
}

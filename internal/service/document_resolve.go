package service

import (
	"context"
	"errors"

	"lupa-be/internal/dto"
	"lupa-be/internal/entity"
	"lupa-be/internal/repository/specification"
	"lupa-be/internal/repository/unitofwork"
	"lupa-be/pkg/folder"

	"github.com/google/uuid"
)

// Resolve maps a composite path to a document and one of its snapshots.
// Without a deployment the snapshot is the requested version or the current
// one. With a deployment it is the snapshot pinned into that deployment.
func (s *documentService) Resolve(ctx context.Context, projectId uuid.UUID, req *dto.ResolveRequest) (*dto.ResolveResponse, error) {
	path, err := folder.ParseDocumentPath(req.Path)
	if err != nil {
		return nil, &InvalidPathError{Path: req.Path, Cause: err}
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	doc, err := s.documentAt(ctx, uow, projectId, path)
	if err != nil {
		return nil, err
	}

	var snap *entity.Snapshot
	if req.DeploymentId != "" {
		deploymentId, err := uuid.Parse(req.DeploymentId)
		if err != nil {
			return nil, &DeploymentNotFoundError{DeploymentID: req.DeploymentId}
		}
		snap, err = s.pinnedSnapshot(ctx, uow, projectId, deploymentId, doc)
		if err != nil {
			return nil, err
		}
	} else {
		snap, err = snapshotVersion(ctx, uow, doc.Id, path.Version)
		if err != nil {
			return nil, err
		}
	}

	version, err := versionOf(ctx, uow, snap)
	if err != nil {
		return nil, err
	}
	if path.Version > 0 && version != path.Version {
		return nil, &SnapshotNotFoundError{DocumentID: doc.Id.String(), Version: path.Version}
	}

	current, err := currentSnapshot(ctx, uow, doc.Id)
	if err != nil {
		return nil, err
	}
	return &dto.ResolveResponse{
		Document: toDocumentResponse(doc, current),
		Snapshot: toSnapshotResponse(snap, version),
	}, nil
}

func (s *documentService) documentAt(ctx context.Context, uow unitofwork.UnitOfWork, projectId uuid.UUID, path folder.DocumentPath) (*entity.Document, error) {
	if path.DocumentID != "" {
		documentId, err := uuid.Parse(path.DocumentID)
		if err != nil {
			return nil, &InvalidPathError{Path: path.String(), Cause: errors.New("document id is not a uuid")}
		}
		doc, err := s.findDocument(ctx, uow, projectId, documentId)
		if err != nil {
			return nil, err
		}
		if path.Folder != folder.Root && doc.Folder != path.Folder {
			return nil, &DocumentNotFoundError{Path: path.String()}
		}
		return doc, nil
	}

	doc, err := uow.DocumentRepository().FindOne(ctx,
		specification.ByProject(projectId),
		specification.InFolder(path.Folder),
		specification.WithName(path.Name),
	)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, &DocumentNotFoundError{Path: path.String()}
	}
	return doc, nil
}

// snapshotVersion returns the 1-based version in creation order, or the
// current snapshot for version 0.
func snapshotVersion(ctx context.Context, uow unitofwork.UnitOfWork, documentId uuid.UUID, version int) (*entity.Snapshot, error) {
	var (
		snap *entity.Snapshot
		err  error
	)
	if version == 0 {
		snap, err = currentSnapshot(ctx, uow, documentId)
	} else {
		snap, err = uow.SnapshotRepository().FindOne(ctx,
			specification.ByDocument(documentId),
			specification.OldestFirst(),
			specification.Pagination{Limit: 1, Offset: version - 1},
		)
	}
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, &SnapshotNotFoundError{DocumentID: documentId.String(), Version: version}
	}
	return snap, nil
}

func versionOf(ctx context.Context, uow unitofwork.UnitOfWork, snap *entity.Snapshot) (int, error) {
	n, err := uow.SnapshotRepository().Count(ctx,
		specification.ByDocument(snap.DocumentId),
		specification.CreatedAtOrBefore{Time: snap.CreatedAt},
	)
	return int(n), err
}

func (s *documentService) pinnedSnapshot(ctx context.Context, uow unitofwork.UnitOfWork, projectId, deploymentId uuid.UUID, doc *entity.Document) (*entity.Snapshot, error) {
	deployment, err := uow.DeploymentRepository().FindOne(ctx, specification.ByID{ID: deploymentId})
	if err != nil {
		return nil, err
	}
	if deployment == nil {
		return nil, &DeploymentNotFoundError{DeploymentID: deploymentId.String()}
	}
	if deployment.ProjectId != projectId {
		return nil, &DeploymentNotInProjectError{DeploymentID: deploymentId.String(), ProjectID: projectId.String()}
	}

	snapshots, err := uow.SnapshotRepository().FindAll(ctx, specification.ByDocument(doc.Id))
	if err != nil {
		return nil, err
	}
	ids := make([]interface{}, 0, len(snapshots))
	for _, snap := range snapshots {
		ids = append(ids, snap.Id)
	}
	if len(ids) == 0 {
		return nil, &SnapshotNotFoundError{DocumentID: doc.Id.String()}
	}

	rel, err := uow.SnapshotDeploymentRelRepository().FindOne(ctx,
		specification.ByDeployment(deploymentId),
		specification.FilterIn{Field: "snapshot_id", Values: ids},
	)
	if err != nil {
		return nil, err
	}
	if rel == nil {
		return nil, &SnapshotNotFoundError{DocumentID: doc.Id.String()}
	}
	for _, snap := range snapshots {
		if snap.Id == rel.SnapshotId {
			return snap, nil
		}
	}
	return nil, &SnapshotNotFoundError{DocumentID: doc.Id.String()}
}

// RefreshDue is driven by the refresh scheduler. A document with a run still
// queued or running is skipped.
func (s *documentService) RefreshDue(ctx context.Context) (int, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	documents, err := uow.DocumentRepository().FindAll(ctx, specification.FilterIn{
		Field:  "refresh_frequency",
		Values: []interface{}{string(entity.RefreshDaily), string(entity.RefreshWeekly), string(entity.RefreshMonthly)},
	})
	if err != nil {
		return 0, err
	}

	now := s.now().UTC()
	queued := 0
	for _, doc := range documents {
		current, err := currentSnapshot(ctx, uow, doc.Id)
		if err != nil {
			return queued, err
		}
		if current == nil || current.Type != entity.SnapshotTypeWebsite || !current.Status.Terminal() {
			continue
		}
		if now.Sub(current.CreatedAt) < doc.RefreshFrequency.Interval() {
			continue
		}

		snap, err := s.newRun(ctx, uow, doc, entity.SnapshotTypeWebsite, "", current.ParserName, "")
		if err != nil {
			return queued, err
		}
		if err := s.enqueue(ctx, uow, snap, nil); err != nil {
			s.logger.Warn(documentModule, "Failed to queue refresh", map[string]interface{}{
				"document_id": doc.Id,
				"error":       err.Error(),
			})
			continue
		}
		queued++
	}

	if queued > 0 {
		s.logger.Info(documentModule, "Refresh runs queued", map[string]interface{}{
			"count": queued,
		})
	}
	return queued, nil
}

package service

import (
	"context"
	"fmt"

	"lupa-be/internal/entity"
	"lupa-be/internal/pkg/logger"
	"lupa-be/internal/repository/contract"
	"lupa-be/internal/repository/specification"
	"lupa-be/internal/repository/unitofwork"
	"lupa-be/pkg/events"
	"lupa-be/pkg/ingestion"

	"github.com/google/uuid"
)

// snapshotStore is the orchestrator's view of the snapshots table. Every
// status write is conditional on the status the run expects to find.
type snapshotStore struct {
	uowFactory unitofwork.RepositoryFactory
	publisher  events.Publisher
	logger     logger.ILogger
}

func NewSnapshotStore(uowFactory unitofwork.RepositoryFactory, publisher events.Publisher, log logger.ILogger) ingestion.SnapshotStore {
	return &snapshotStore{uowFactory: uowFactory, publisher: publisher, logger: log}
}

func parseSnapshotID(id string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, ingestion.Permanent(fmt.Errorf("invalid snapshot id %q: %w", id, err))
	}
	return parsed, nil
}

func (s *snapshotStore) LoadJob(ctx context.Context, snapshotID string) (*ingestion.Job, error) {
	id, err := parseSnapshotID(snapshotID)
	if err != nil {
		return nil, err
	}
	uow := s.uowFactory.NewUnitOfWork(ctx)

	snap, err := uow.SnapshotRepository().FindOne(ctx, specification.ByID{ID: id})
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, ingestion.ErrSnapshotGone
	}
	doc, err := uow.DocumentRepository().FindOne(ctx, specification.ByID{ID: snap.DocumentId})
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ingestion.ErrSnapshotGone
	}

	job := &ingestion.Job{
		SnapshotID: snap.Id.String(),
		DocumentID: doc.Id.String(),
		ProjectID:  doc.ProjectId.String(),
		OwnerID:    snap.OrgId,
		Type:       ingestion.SnapshotType(snap.Type),
		URL:        snap.Url,
		Folder:     doc.Folder,
		Name:       doc.Name,
		ParserName: snap.ParserName,
	}
	if job.OwnerID == "" {
		job.OwnerID = doc.OrgId
	}
	if filename, ok := snap.Metadata["filename"].(string); ok {
		job.Filename = filename
	}
	if instruction, ok := snap.Metadata["parsing_instruction"].(string); ok {
		job.ParsingInstruction = instruction
	}
	return job, nil
}

func (s *snapshotStore) MarkRunning(ctx context.Context, snapshotID string) error {
	id, err := parseSnapshotID(snapshotID)
	if err != nil {
		return err
	}
	uow := s.uowFactory.NewUnitOfWork(ctx)
	repo := uow.SnapshotRepository()

	snap, err := repo.FindOne(ctx, specification.ByID{ID: id})
	if err != nil {
		return err
	}
	if snap == nil {
		return ingestion.ErrSnapshotGone
	}
	snap.Status = entity.SnapshotStatusRunning
	return s.transition(ctx, repo, snap, entity.SnapshotStatusQueued)
}

func (s *snapshotStore) Finalize(ctx context.Context, snapshotID string, outcome ingestion.Outcome) error {
	id, err := parseSnapshotID(snapshotID)
	if err != nil {
		return err
	}
	if !outcome.Status.Terminal() {
		return &ingestion.InvalidSnapshotTransitionError{SnapshotID: snapshotID, From: ingestion.StatusRunning, To: outcome.Status}
	}
	uow := s.uowFactory.NewUnitOfWork(ctx)
	repo := uow.SnapshotRepository()

	snap, err := repo.FindOne(ctx, specification.ByID{ID: id})
	if err != nil {
		return err
	}
	if snap == nil {
		return ingestion.ErrSnapshotGone
	}

	snap.Status = entity.SnapshotStatus(outcome.Status)
	snap.RawBlobUrl = outcome.RawBlobURL
	snap.MarkdownUrl = outcome.MarkdownURL
	snap.ChunksCount = outcome.ChunksCount
	snap.TokensCount = outcome.TokensCount
	snap.ChangesDetected = outcome.ChangesDetected
	snap.ErrorReason = outcome.ErrorReason
	if outcome.ParserName != "" {
		snap.ParserName = outcome.ParserName
	}
	if len(outcome.Metadata) > 0 {
		merged := make(map[string]interface{}, len(snap.Metadata)+len(outcome.Metadata))
		for k, v := range snap.Metadata {
			merged[k] = v
		}
		for k, v := range outcome.Metadata {
			merged[k] = v
		}
		snap.Metadata = merged
	}

	if err := s.transition(ctx, repo, snap, entity.SnapshotStatusRunning); err != nil {
		return err
	}
	s.announce(ctx, uow, snap)
	return nil
}

func (s *snapshotStore) transition(ctx context.Context, repo contract.SnapshotRepository, snap *entity.Snapshot, from entity.SnapshotStatus) error {
	to := snap.Status
	ok, err := repo.Transition(ctx, snap, from)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	current, err := repo.FindOne(ctx, specification.ByID{ID: snap.Id})
	if err != nil {
		return err
	}
	if current == nil {
		return ingestion.ErrSnapshotGone
	}
	return &ingestion.InvalidSnapshotTransitionError{
		SnapshotID: snap.Id.String(),
		From:       ingestion.Status(current.Status),
		To:         ingestion.Status(to),
	}
}

func (s *snapshotStore) announce(ctx context.Context, uow unitofwork.UnitOfWork, snap *entity.Snapshot) {
	if s.publisher == nil {
		return
	}
	doc, err := uow.DocumentRepository().FindOne(ctx, specification.ByID{ID: snap.DocumentId})
	if err != nil || doc == nil {
		return
	}
	event := events.NewSnapshotFinished(doc.ProjectId.String(), doc.Id.String(), snap.Id.String(), string(snap.Status), snap.ErrorReason)
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("SNAPSHOT", "Failed to publish snapshot outcome", map[string]interface{}{
			"snapshot_id": snap.Id,
			"error":       err.Error(),
		})
	}
}

func (s *snapshotStore) PreviousMarkdownURL(ctx context.Context, documentID, snapshotID string) (string, error) {
	docID, err := uuid.Parse(documentID)
	if err != nil {
		return "", nil
	}
	id, err := parseSnapshotID(snapshotID)
	if err != nil {
		return "", err
	}
	uow := s.uowFactory.NewUnitOfWork(ctx)
	snapshots, err := uow.SnapshotRepository().FindAll(ctx, specification.ByDocument(docID), specification.NewestFirst())
	if err != nil {
		return "", err
	}

	seen := false
	for _, snap := range snapshots {
		if snap.Id == id {
			seen = true
			continue
		}
		if seen && snap.MarkdownUrl != "" {
			return snap.MarkdownUrl, nil
		}
	}
	return "", nil
}

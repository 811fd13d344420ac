package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lupa-be/internal/dto"
	"lupa-be/internal/entity"
	"lupa-be/internal/pkg/logger"
	"lupa-be/internal/repository/specification"
	"lupa-be/internal/repository/unitofwork"
	"lupa-be/pkg/blob"
	"lupa-be/pkg/crawl"
	"lupa-be/pkg/folder"
	"lupa-be/pkg/ingestion"
	"lupa-be/pkg/taskqueue"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const documentModule = "DOCUMENT"

type IDocumentService interface {
	Create(ctx context.Context, orgId string, projectId uuid.UUID, req *dto.CreateDocumentRequest) (*dto.CreateDocumentResponse, error)
	Upload(ctx context.Context, orgId string, projectId uuid.UUID, req *dto.CreateDocumentRequest, content []byte, contentType string) (*dto.CreateDocumentResponse, error)
	List(ctx context.Context, projectId uuid.UUID, folderPath string) ([]*dto.DocumentResponse, error)
	Delete(ctx context.Context, projectId uuid.UUID, documentId uuid.UUID) error

	CreateSnapshot(ctx context.Context, projectId uuid.UUID, documentId uuid.UUID, req *dto.CreateSnapshotRequest) (*dto.SnapshotResponse, error)
	ListSnapshots(ctx context.Context, projectId uuid.UUID, documentId uuid.UUID) ([]*dto.SnapshotResponse, error)
	BulkCreateWebsites(ctx context.Context, orgId string, projectId uuid.UUID, req *dto.BulkWebsiteRequest) (*dto.BulkWebsiteResponse, error)

	Resolve(ctx context.Context, projectId uuid.UUID, req *dto.ResolveRequest) (*dto.ResolveResponse, error)

	// RefreshDue starts a new run for every website document whose refresh
	// interval has elapsed since its current snapshot.
	RefreshDue(ctx context.Context) (int, error)
}

type documentService struct {
	uowFactory unitofwork.RepositoryFactory
	tasks      TaskTrigger
	blobs      blob.Store
	crawlKeys  int
	logger     logger.ILogger
	now        func() time.Time
}

func NewDocumentService(
	uowFactory unitofwork.RepositoryFactory,
	tasks TaskTrigger,
	blobs blob.Store,
	crawlKeys int,
	log logger.ILogger,
) IDocumentService {
	return &documentService{
		uowFactory: uowFactory,
		tasks:      tasks,
		blobs:      blobs,
		crawlKeys:  crawlKeys,
		logger:     log,
		now:        time.Now,
	}
}

func toDocumentResponse(d *entity.Document, current *entity.Snapshot) *dto.DocumentResponse {
	res := &dto.DocumentResponse{
		Id:               d.Id,
		ProjectId:        d.ProjectId,
		Folder:           d.Folder,
		Name:             d.Name,
		Path:             folder.Join(d.Folder, d.Name),
		RefreshFrequency: string(d.RefreshFrequency),
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
	if current != nil {
		res.CurrentSnapshot = toSnapshotResponse(current, 0)
	}
	return res
}

func toSnapshotResponse(s *entity.Snapshot, version int) *dto.SnapshotResponse {
	return &dto.SnapshotResponse{
		Id:              s.Id,
		DocumentId:      s.DocumentId,
		Version:         version,
		Url:             s.Url,
		Type:            string(s.Type),
		Status:          string(s.Status),
		RawBlobUrl:      s.RawBlobUrl,
		MarkdownUrl:     s.MarkdownUrl,
		ChunksCount:     s.ChunksCount,
		TokensCount:     s.TokensCount,
		ChangesDetected: s.ChangesDetected,
		ErrorReason:     s.ErrorReason,
		ParserName:      s.ParserName,
		Metadata:        s.Metadata,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
}

func (s *documentService) findProject(ctx context.Context, uow unitofwork.UnitOfWork, orgId string, projectId uuid.UUID) (*entity.Project, error) {
	project, err := uow.ProjectRepository().FindOne(ctx, specification.ByID{ID: projectId})
	if err != nil {
		return nil, err
	}
	if project == nil || (orgId != "" && project.OrgId != orgId) {
		return nil, &ProjectNotFoundError{ProjectID: projectId.String()}
	}
	return project, nil
}

func (s *documentService) findDocument(ctx context.Context, uow unitofwork.UnitOfWork, projectId, documentId uuid.UUID) (*entity.Document, error) {
	doc, err := uow.DocumentRepository().FindOne(ctx, specification.ByID{ID: documentId}, specification.ByProject(projectId))
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, &DocumentNotFoundError{DocumentID: documentId.String()}
	}
	return doc, nil
}

// currentSnapshot is the newest snapshot of the document, whatever its
// status.
func currentSnapshot(ctx context.Context, uow unitofwork.UnitOfWork, documentId uuid.UUID) (*entity.Snapshot, error) {
	return uow.SnapshotRepository().FindOne(ctx, specification.ByDocument(documentId), specification.NewestFirst())
}

func (s *documentService) Create(ctx context.Context, orgId string, projectId uuid.UUID, req *dto.CreateDocumentRequest) (*dto.CreateDocumentResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	project, err := s.findProject(ctx, uow, orgId, projectId)
	if err != nil {
		return nil, err
	}

	snapshotType := entity.SnapshotType(req.Type)
	folderPath := folder.NormalizeFolderPath(req.Folder)
	if req.Folder == "" && snapshotType == entity.SnapshotTypeWebsite {
		folderPath = folder.FolderFromURL(req.Url)
	}
	name := folder.SanitizeSegment(req.Name)
	if name == "" {
		return nil, &InvalidPathError{Path: req.Name, Cause: errors.New("document name is empty")}
	}

	frequency := entity.RefreshFrequency(req.RefreshFrequency)
	if frequency == "" {
		frequency = entity.RefreshNone
	}

	doc := &entity.Document{
		Id:               uuid.New(),
		ProjectId:        project.Id,
		OrgId:            project.OrgId,
		Folder:           folderPath,
		Name:             name,
		RefreshFrequency: frequency,
		CreatedAt:        s.now().UTC(),
	}
	metadata := map[string]interface{}{}
	if req.Filename != "" {
		metadata["filename"] = req.Filename
	}
	if req.ParsingInstruction != "" {
		metadata["parsing_instruction"] = req.ParsingInstruction
	}
	snap := &entity.Snapshot{
		Id:         uuid.New(),
		DocumentId: doc.Id,
		OrgId:      project.OrgId,
		Url:        req.Url,
		Type:       snapshotType,
		Status:     entity.SnapshotStatusQueued,
		ParserName: req.ParserName,
		Metadata:   metadata,
	}

	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	if err := func() error {
		existing, err := uow.DocumentRepository().FindOne(ctx,
			specification.ByProject(project.Id),
			specification.InFolder(folderPath),
			specification.WithName(name),
		)
		if err != nil {
			return err
		}
		if existing != nil {
			return &DocumentExistsError{Folder: folderPath, Name: name}
		}
		if err := uow.DocumentRepository().Create(ctx, doc); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return &DocumentExistsError{Folder: folderPath, Name: name}
			}
			return err
		}
		snap.CreatedAt = s.now().UTC()
		return uow.SnapshotRepository().Create(ctx, snap)
	}(); err != nil {
		uow.Rollback()
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, err
	}

	s.logger.Info(documentModule, "Document created", map[string]interface{}{
		"project_id":  project.Id,
		"document_id": doc.Id,
		"path":        folder.Join(doc.Folder, doc.Name),
		"type":        snap.Type,
	})

	if err := s.enqueue(ctx, uow, snap, nil); err != nil {
		return nil, err
	}
	return &dto.CreateDocumentResponse{
		Id:         doc.Id,
		SnapshotId: snap.Id,
		Folder:     doc.Folder,
		Name:       doc.Name,
	}, nil
}

// Upload stores the file in the blob store and ingests it from there.
func (s *documentService) Upload(ctx context.Context, orgId string, projectId uuid.UUID, req *dto.CreateDocumentRequest, content []byte, contentType string) (*dto.CreateDocumentResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	project, err := s.findProject(ctx, uow, orgId, projectId)
	if err != nil {
		return nil, err
	}

	stored, err := s.blobs.Put(ctx, blob.UploadPath(project.OrgId, req.Filename), content, blob.PutOptions{
		Access:          blob.AccessPublic,
		ContentType:     contentType,
		AddRandomSuffix: true,
	})
	if err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	upload := *req
	upload.Url = stored.URL
	upload.Type = string(entity.SnapshotTypeUpload)
	if upload.Name == "" {
		upload.Name = req.Filename
	}
	return s.Create(ctx, orgId, projectId, &upload)
}

func (s *documentService) List(ctx context.Context, projectId uuid.UUID, folderPath string) ([]*dto.DocumentResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	specs := []specification.Specification{
		specification.ByProject(projectId),
		specification.OrderBy{Field: "folder"},
		specification.OrderBy{Field: "name"},
	}
	if folderPath != "" {
		specs = append(specs, specification.InFolder(folder.NormalizeFolderPath(folderPath)))
	}
	documents, err := uow.DocumentRepository().FindAll(ctx, specs...)
	if err != nil {
		return nil, err
	}

	res := make([]*dto.DocumentResponse, 0, len(documents))
	for _, doc := range documents {
		current, err := currentSnapshot(ctx, uow, doc.Id)
		if err != nil {
			return nil, err
		}
		res = append(res, toDocumentResponse(doc, current))
	}
	return res, nil
}

// Delete removes the document and, by cascade, its snapshots. Runs still in
// flight for those snapshots discard their result.
func (s *documentService) Delete(ctx context.Context, projectId uuid.UUID, documentId uuid.UUID) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	doc, err := s.findDocument(ctx, uow, projectId, documentId)
	if err != nil {
		return err
	}
	if err := uow.DocumentRepository().Delete(ctx, doc.Id); err != nil {
		return err
	}
	s.logger.Info(documentModule, "Document deleted", map[string]interface{}{
		"project_id":  projectId,
		"document_id": documentId,
	})
	return nil
}

func (s *documentService) CreateSnapshot(ctx context.Context, projectId uuid.UUID, documentId uuid.UUID, req *dto.CreateSnapshotRequest) (*dto.SnapshotResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	doc, err := s.findDocument(ctx, uow, projectId, documentId)
	if err != nil {
		return nil, err
	}
	snap, err := s.newRun(ctx, uow, doc, "", req.Url, req.ParserName, req.ParsingInstruction)
	if err != nil {
		return nil, err
	}
	if err := s.enqueue(ctx, uow, snap, nil); err != nil {
		return nil, err
	}
	return toSnapshotResponse(snap, 0), nil
}

// newRun creates a queued snapshot that repeats the document's current
// source unless a new url is given. An empty typ keeps the current type.
func (s *documentService) newRun(ctx context.Context, uow unitofwork.UnitOfWork, doc *entity.Document, typ entity.SnapshotType, url, parserName, instruction string) (*entity.Snapshot, error) {
	current, err := currentSnapshot(ctx, uow, doc.Id)
	if err != nil {
		return nil, err
	}

	snap := &entity.Snapshot{
		Id:         uuid.New(),
		DocumentId: doc.Id,
		OrgId:      doc.OrgId,
		Url:        url,
		Type:       entity.SnapshotTypeWebsite,
		Status:     entity.SnapshotStatusQueued,
		ParserName: parserName,
		Metadata:   map[string]interface{}{},
		CreatedAt:  s.now().UTC(),
	}
	if current != nil && (typ == "" || typ == current.Type) {
		snap.Type = current.Type
		if snap.Url == "" {
			snap.Url = current.Url
		}
		if filename, ok := current.Metadata["filename"]; ok {
			snap.Metadata["filename"] = filename
		}
	}
	if typ != "" {
		snap.Type = typ
	}
	if snap.Url == "" {
		return nil, &SnapshotNotFoundError{DocumentID: doc.Id.String()}
	}
	if instruction != "" {
		snap.Metadata["parsing_instruction"] = instruction
	}
	if err := uow.SnapshotRepository().Create(ctx, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// enqueue triggers the run for a queued snapshot. A trigger failure ends the
// snapshot in error so it never sits queued with no run behind it.
func (s *documentService) enqueue(ctx context.Context, uow unitofwork.UnitOfWork, snap *entity.Snapshot, tags []string) error {
	payload := ingestion.Payload{
		SnapshotID: snap.Id.String(),
		Type:       ingestion.SnapshotType(snap.Type),
		ParserName: snap.ParserName,
	}
	if instruction, ok := snap.Metadata["parsing_instruction"].(string); ok {
		payload.ParsingInstruction = instruction
	}

	if _, err := s.tasks.Trigger(ctx, ingestion.TaskProcessSnapshot, payload, taskqueue.TriggerOptions{Tags: tags}); err != nil {
		snap.Status = entity.SnapshotStatusError
		snap.ErrorReason = fmt.Sprintf("failed to enqueue run: %v", err)
		if _, terr := uow.SnapshotRepository().Transition(context.WithoutCancel(ctx), snap, entity.SnapshotStatusQueued); terr != nil {
			s.logger.Error(documentModule, "Failed to record enqueue failure", map[string]interface{}{
				"snapshot_id": snap.Id,
				"error":       terr.Error(),
			})
		}
		return err
	}
	return nil
}

// ListSnapshots returns the document's snapshots newest first, each with its
// 1-based version in creation order.
func (s *documentService) ListSnapshots(ctx context.Context, projectId uuid.UUID, documentId uuid.UUID) ([]*dto.SnapshotResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if _, err := s.findDocument(ctx, uow, projectId, documentId); err != nil {
		return nil, err
	}
	snapshots, err := uow.SnapshotRepository().FindAll(ctx, specification.ByDocument(documentId), specification.NewestFirst())
	if err != nil {
		return nil, err
	}
	res := make([]*dto.SnapshotResponse, 0, len(snapshots))
	for i, snap := range snapshots {
		res = append(res, toSnapshotResponse(snap, len(snapshots)-i))
	}
	return res, nil
}

func (s *documentService) BulkCreateWebsites(ctx context.Context, orgId string, projectId uuid.UUID, req *dto.BulkWebsiteRequest) (*dto.BulkWebsiteResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	project, err := s.findProject(ctx, uow, orgId, projectId)
	if err != nil {
		return nil, err
	}
	frequency := entity.RefreshFrequency(req.RefreshFrequency)
	if frequency == "" {
		frequency = entity.RefreshNone
	}

	res := &dto.BulkWebsiteResponse{Items: make([]*dto.BulkWebsiteItem, 0, len(req.Urls))}
	for i, url := range req.Urls {
		folderPath := folder.FolderFromURL(url)
		if req.Folder != "" {
			folderPath = folder.NormalizeFolderPath(req.Folder)
		}
		name := folder.SanitizeSegment(folder.NameFromURL(url))
		if name == "" {
			return nil, &InvalidPathError{Path: url, Cause: errors.New("cannot derive a document name")}
		}

		doc, err := uow.DocumentRepository().FindOne(ctx,
			specification.ByProject(project.Id),
			specification.InFolder(folderPath),
			specification.WithName(name),
		)
		if err != nil {
			return nil, err
		}
		if doc == nil {
			doc = &entity.Document{
				Id:               uuid.New(),
				ProjectId:        project.Id,
				OrgId:            project.OrgId,
				Folder:           folderPath,
				Name:             name,
				RefreshFrequency: frequency,
				CreatedAt:        s.now().UTC(),
			}
			if err := uow.DocumentRepository().Create(ctx, doc); err != nil {
				return nil, err
			}
		}

		snap, err := s.newRun(ctx, uow, doc, entity.SnapshotTypeWebsite, url, "", "")
		if err != nil {
			return nil, err
		}

		var tags []string
		if tag := crawl.TagForOffset(i, s.crawlKeys); tag != "" {
			tags = []string{tag}
		}
		if err := s.enqueue(ctx, uow, snap, tags); err != nil {
			return nil, err
		}
		res.Items = append(res.Items, &dto.BulkWebsiteItem{
			Url:        url,
			DocumentId: doc.Id,
			SnapshotId: snap.Id,
			Tags:       tags,
		})
	}

	s.logger.Info(documentModule, "Bulk website ingestion queued", map[string]interface{}{
		"project_id": project.Id,
		"count":      len(res.Items),
		"key_pool":   s.crawlKeys,
	})
	return res, nil
}

package service

import (
	"context"
	"errors"
	"fmt"

	"lupa-be/internal/dto"
	"lupa-be/internal/entity"
	"lupa-be/internal/pkg/logger"
	"lupa-be/internal/repository/specification"
	"lupa-be/internal/repository/unitofwork"
	"lupa-be/pkg/embedding"
	"lupa-be/pkg/vector"

	"github.com/google/uuid"
)

const (
	searchModule = "SEARCH"

	defaultTopK = 10

	backendHosted   = "hosted"
	backendPgvector = "pgvector"
)

type ISearchService interface {
	Search(ctx context.Context, projectId uuid.UUID, deploymentId uuid.UUID, req *dto.SearchRequest) ([]*dto.SearchResult, error)
}

type searchService struct {
	uowFactory unitofwork.RepositoryFactory
	resolver   *vector.Resolver
	embedder   embedding.EmbeddingProvider
	logger     logger.ILogger
}

// NewSearchService queries the deployment's hosted index when it has one and
// falls back to the pgvector chunks of its pinned snapshots.
func NewSearchService(uowFactory unitofwork.RepositoryFactory, resolver *vector.Resolver, embedder embedding.EmbeddingProvider, log logger.ILogger) ISearchService {
	return &searchService{
		uowFactory: uowFactory,
		resolver:   resolver,
		embedder:   embedder,
		logger:     log,
	}
}

func (s *searchService) Search(ctx context.Context, projectId uuid.UUID, deploymentId uuid.UUID, req *dto.SearchRequest) ([]*dto.SearchResult, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
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
	if deployment.Status != entity.DeploymentStatusReady {
		return nil, &DeploymentNotReadyError{DeploymentID: deploymentId.String(), Status: string(deployment.Status)}
	}

	topK := req.TopK
	if topK <= 0 {
		topK = defaultTopK
	}

	switch {
	case s.resolver != nil && deployment.VectorIndexId != nil:
		results, err := s.searchHosted(ctx, deployment, req.Query, topK)
		recordSearch(backendHosted, err)
		return results, err
	case s.embedder != nil:
		results, err := s.searchChunks(ctx, uow, deployment, req.Query, topK)
		recordSearch(backendPgvector, err)
		return results, err
	}
	return nil, &SearchUnavailableError{DeploymentID: deploymentId.String()}
}

func (s *searchService) searchHosted(ctx context.Context, deployment *entity.Deployment, query string, topK int) ([]*dto.SearchResult, error) {
	id := deployment.Id.String()
	index, err := s.resolver.GetVectorIndex(ctx, id, vector.GetOptions{})
	if err != nil {
		var corrupt *vector.CorruptedCacheEntryError
		if errors.As(err, &corrupt) {
			if ierr := s.resolver.InvalidateVectorCache(ctx, id); ierr != nil {
				s.logger.Error(searchModule, "Failed to evict corrupt cache entry", map[string]interface{}{
					"deployment_id": id,
					"error":         ierr.Error(),
				})
			}
			s.logger.Warn(searchModule, "Corrupt vector cache entry evicted", map[string]interface{}{
				"deployment_id": id,
				"error":         err.Error(),
			})
			return nil, &VectorCacheInvalidatedError{DeploymentID: id}
		}
		return nil, err
	}

	matches, err := index.Query(ctx, vector.QueryRequest{
		Data:            query,
		TopK:            topK,
		IncludeMetadata: true,
		IncludeData:     true,
	})
	if err != nil {
		return nil, err
	}

	results := make([]*dto.SearchResult, 0, len(matches))
	for _, m := range matches {
		res := &dto.SearchResult{
			Id:       m.ID,
			Score:    m.Score,
			Content:  m.Data,
			Metadata: m.Metadata,
		}
		res.SnapshotId, _ = m.Metadata["snapshotId"].(string)
		res.Folder, _ = m.Metadata["folder"].(string)
		res.Name, _ = m.Metadata["name"].(string)
		results = append(results, res)
	}
	return results, nil
}

func (s *searchService) searchChunks(ctx context.Context, uow unitofwork.UnitOfWork, deployment *entity.Deployment, query string, topK int) ([]*dto.SearchResult, error) {
	rels, err := uow.SnapshotDeploymentRelRepository().FindAll(ctx, specification.ByDeployment(deployment.Id))
	if err != nil {
		return nil, err
	}
	if len(rels) == 0 {
		return []*dto.SearchResult{}, nil
	}
	pinned := make(map[uuid.UUID]*entity.SnapshotDeploymentRel, len(rels))
	snapshotIds := make([]uuid.UUID, 0, len(rels))
	for _, rel := range rels {
		pinned[rel.SnapshotId] = rel
		snapshotIds = append(snapshotIds, rel.SnapshotId)
	}

	embedded, err := s.embedder.Generate(ctx, query, embedding.TaskRetrievalQuery)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	matches, err := uow.SnapshotChunkRepository().SearchSimilar(ctx, snapshotIds, embedded.Embedding.Values, topK)
	if err != nil {
		return nil, err
	}

	results := make([]*dto.SearchResult, 0, len(matches))
	for _, m := range matches {
		res := &dto.SearchResult{
			Id:         m.Chunk.Id.String(),
			Score:      1 - m.Distance,
			Content:    m.Chunk.Content,
			SnapshotId: m.Chunk.SnapshotId.String(),
			Metadata: map[string]interface{}{
				"chunkIndex": m.Chunk.ChunkIndex,
			},
		}
		if rel, ok := pinned[m.Chunk.SnapshotId]; ok {
			res.Folder = rel.Folder
			res.Name = rel.Name
		}
		results = append(results, res)
	}
	return results, nil
}

package memory

import (
	"context"
	"math"
	"sort"
	"time"

	"lupa-be/internal/entity"
	"lupa-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func projectFields(p entity.Project) fields {
	return fields{
		"id":                       p.Id,
		"org_id":                   p.OrgId,
		"name":                     p.Name,
		"production_deployment_id": p.ProductionDeploymentId,
		"staging_deployment_id":    p.StagingDeploymentId,
		"created_at":               p.CreatedAt,
	}
}

func documentFields(d entity.Document) fields {
	return fields{
		"id":                d.Id,
		"project_id":        d.ProjectId,
		"org_id":            d.OrgId,
		"folder":            d.Folder,
		"name":              d.Name,
		"refresh_frequency": string(d.RefreshFrequency),
		"created_at":        d.CreatedAt,
	}
}

func snapshotFields(s entity.Snapshot) fields {
	return fields{
		"id":          s.Id,
		"document_id": s.DocumentId,
		"org_id":      s.OrgId,
		"url":         s.Url,
		"type":        string(s.Type),
		"status":      string(s.Status),
		"created_at":  s.CreatedAt,
	}
}

func deploymentFields(d entity.Deployment) fields {
	var env interface{}
	if d.Environment != nil {
		env = string(*d.Environment)
	}
	return fields{
		"id":          d.Id,
		"project_id":  d.ProjectId,
		"name":        d.Name,
		"status":      string(d.Status),
		"environment": env,
		"created_at":  d.CreatedAt,
	}
}

func relFields(r entity.SnapshotDeploymentRel) fields {
	return fields{
		"snapshot_id":   r.SnapshotId,
		"deployment_id": r.DeploymentId,
		"folder":        r.Folder,
		"name":          r.Name,
		"created_at":    r.CreatedAt,
	}
}

func values[K comparable, V any](m map[K]V) []V {
	out := make([]V, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}

func first[T any](rows []T) *T {
	if len(rows) == 0 {
		return nil
	}
	r := rows[0]
	return &r
}

func pointers[T any](rows []T) []*T {
	out := make([]*T, len(rows))
	for i := range rows {
		r := rows[i]
		out[i] = &r
	}
	return out
}

func updatedNow() *time.Time {
	now := time.Now().UTC()
	return &now
}

func deleteSnapshot(t *tables, id uuid.UUID) {
	delete(t.snapshots, id)
	for cid, c := range t.chunks {
		if c.SnapshotId == id {
			delete(t.chunks, cid)
		}
	}
	kept := t.rels[:0]
	for _, r := range t.rels {
		if r.SnapshotId != id {
			kept = append(kept, r)
		}
	}
	t.rels = kept
}

func deleteDocument(t *tables, id uuid.UUID) {
	delete(t.documents, id)
	for sid, s := range t.snapshots {
		if s.DocumentId == id {
			deleteSnapshot(t, sid)
		}
	}
}

func deleteDeployment(t *tables, id uuid.UUID) {
	delete(t.deployments, id)
	kept := t.rels[:0]
	for _, r := range t.rels {
		if r.DeploymentId != id {
			kept = append(kept, r)
		}
	}
	t.rels = kept
}

// projects

type projectRepository struct{ uow *UnitOfWork }

func (r *projectRepository) Create(ctx context.Context, project *entity.Project) error {
	return r.uow.write(func(t *tables) error {
		if project.Id == uuid.Nil {
			project.Id = uuid.New()
		}
		if _, exists := t.projects[project.Id]; exists {
			return gorm.ErrDuplicatedKey
		}
		project.CreatedAt = r.uow.db.createdAt(project.CreatedAt)
		project.UpdatedAt = nil
		t.projects[project.Id] = *project
		return nil
	})
}

func (r *projectRepository) Update(ctx context.Context, project *entity.Project) error {
	return r.uow.write(func(t *tables) error {
		if _, ok := t.projects[project.Id]; !ok {
			return gorm.ErrRecordNotFound
		}
		project.UpdatedAt = updatedNow()
		t.projects[project.Id] = *project
		return nil
	})
}

func (r *projectRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.uow.write(func(t *tables) error {
		delete(t.projects, id)
		for did, d := range t.documents {
			if d.ProjectId == id {
				deleteDocument(t, did)
			}
		}
		for did, d := range t.deployments {
			if d.ProjectId == id {
				deleteDeployment(t, did)
			}
		}
		return nil
	})
}

func (r *projectRepository) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Project, error) {
	rows, err := r.find(specs)
	if err != nil {
		return nil, err
	}
	return first(rows), nil
}

func (r *projectRepository) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Project, error) {
	rows, err := r.find(specs)
	if err != nil {
		return nil, err
	}
	return pointers(rows), nil
}

func (r *projectRepository) find(specs []specification.Specification) (rows []entity.Project, err error) {
	err = r.uow.read(func(t *tables) error {
		rows, err = apply(values(t.projects), projectFields, specs)
		return err
	})
	return rows, err
}

// documents

type documentRepository struct{ uow *UnitOfWork }

func (r *documentRepository) unique(t *tables, d *entity.Document) error {
	for _, other := range t.documents {
		if other.Id != d.Id && other.ProjectId == d.ProjectId && other.Folder == d.Folder && other.Name == d.Name {
			return gorm.ErrDuplicatedKey
		}
	}
	return nil
}

func (r *documentRepository) Create(ctx context.Context, document *entity.Document) error {
	return r.uow.write(func(t *tables) error {
		if document.Id == uuid.Nil {
			document.Id = uuid.New()
		}
		if _, ok := t.projects[document.ProjectId]; !ok {
			return gorm.ErrForeignKeyViolated
		}
		if err := r.unique(t, document); err != nil {
			return err
		}
		if document.RefreshFrequency == "" {
			document.RefreshFrequency = entity.RefreshNone
		}
		document.CreatedAt = r.uow.db.createdAt(document.CreatedAt)
		t.documents[document.Id] = *document
		return nil
	})
}

func (r *documentRepository) Update(ctx context.Context, document *entity.Document) error {
	return r.uow.write(func(t *tables) error {
		if _, ok := t.documents[document.Id]; !ok {
			return gorm.ErrRecordNotFound
		}
		if err := r.unique(t, document); err != nil {
			return err
		}
		document.UpdatedAt = updatedNow()
		t.documents[document.Id] = *document
		return nil
	})
}

func (r *documentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.uow.write(func(t *tables) error {
		deleteDocument(t, id)
		return nil
	})
}

func (r *documentRepository) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Document, error) {
	rows, err := r.find(specs)
	if err != nil {
		return nil, err
	}
	return first(rows), nil
}

func (r *documentRepository) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Document, error) {
	rows, err := r.find(specs)
	if err != nil {
		return nil, err
	}
	return pointers(rows), nil
}

func (r *documentRepository) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	rows, err := r.find(specs)
	return int64(len(rows)), err
}

func (r *documentRepository) find(specs []specification.Specification) (rows []entity.Document, err error) {
	err = r.uow.read(func(t *tables) error {
		rows, err = apply(values(t.documents), documentFields, specs)
		return err
	})
	return rows, err
}

// snapshots

type snapshotRepository struct{ uow *UnitOfWork }

func (r *snapshotRepository) Create(ctx context.Context, snapshot *entity.Snapshot) error {
	return r.uow.write(func(t *tables) error {
		if snapshot.Id == uuid.Nil {
			snapshot.Id = uuid.New()
		}
		if _, ok := t.documents[snapshot.DocumentId]; !ok {
			return gorm.ErrForeignKeyViolated
		}
		if snapshot.Status == "" {
			snapshot.Status = entity.SnapshotStatusQueued
		}
		snapshot.CreatedAt = r.uow.db.createdAt(snapshot.CreatedAt)
		t.snapshots[snapshot.Id] = *snapshot
		return nil
	})
}

func (r *snapshotRepository) Transition(ctx context.Context, snapshot *entity.Snapshot, from entity.SnapshotStatus) (bool, error) {
	applied := false
	err := r.uow.write(func(t *tables) error {
		stored, ok := t.snapshots[snapshot.Id]
		if !ok || stored.Status != from {
			return nil
		}
		next := *snapshot
		next.DocumentId = stored.DocumentId
		next.OrgId = stored.OrgId
		next.Url = stored.Url
		next.Type = stored.Type
		next.CreatedAt = stored.CreatedAt
		next.UpdatedAt = updatedNow()
		t.snapshots[snapshot.Id] = next
		snapshot.UpdatedAt = next.UpdatedAt
		applied = true
		return nil
	})
	return applied, err
}

func (r *snapshotRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.uow.write(func(t *tables) error {
		deleteSnapshot(t, id)
		return nil
	})
}

func (r *snapshotRepository) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Snapshot, error) {
	rows, err := r.find(specs)
	if err != nil {
		return nil, err
	}
	return first(rows), nil
}

func (r *snapshotRepository) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Snapshot, error) {
	rows, err := r.find(specs)
	if err != nil {
		return nil, err
	}
	return pointers(rows), nil
}

func (r *snapshotRepository) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	rows, err := r.find(specs)
	return int64(len(rows)), err
}

func (r *snapshotRepository) find(specs []specification.Specification) (rows []entity.Snapshot, err error) {
	err = r.uow.read(func(t *tables) error {
		rows, err = apply(values(t.snapshots), snapshotFields, specs)
		return err
	})
	return rows, err
}

func (r *snapshotRepository) LatestSuccessfulByProject(ctx context.Context, projectID uuid.UUID, cutoff time.Time) ([]*entity.Snapshot, error) {
	latest := map[uuid.UUID]entity.Snapshot{}
	err := r.uow.read(func(t *tables) error {
		for _, s := range t.snapshots {
			doc, ok := t.documents[s.DocumentId]
			if !ok || doc.ProjectId != projectID {
				continue
			}
			if s.Status != entity.SnapshotStatusSuccess || s.CreatedAt.After(cutoff) {
				continue
			}
			if cur, seen := latest[s.DocumentId]; !seen || s.CreatedAt.After(cur.CreatedAt) {
				latest[s.DocumentId] = s
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	rows := values(latest)
	sort.Slice(rows, func(i, j int) bool { return rows[i].DocumentId.String() < rows[j].DocumentId.String() })
	return pointers(rows), nil
}

// chunks

type snapshotChunkRepository struct{ uow *UnitOfWork }

func (r *snapshotChunkRepository) CreateBatch(ctx context.Context, chunks []*entity.SnapshotChunk) error {
	return r.uow.write(func(t *tables) error {
		for _, c := range chunks {
			if _, ok := t.snapshots[c.SnapshotId]; !ok {
				return gorm.ErrForeignKeyViolated
			}
			if c.Id == uuid.Nil {
				c.Id = uuid.New()
			}
			c.CreatedAt = r.uow.db.createdAt(c.CreatedAt)
			t.chunks[c.Id] = *c
		}
		return nil
	})
}

func (r *snapshotChunkRepository) DeleteBySnapshot(ctx context.Context, snapshotID uuid.UUID) error {
	return r.uow.write(func(t *tables) error {
		for id, c := range t.chunks {
			if c.SnapshotId == snapshotID {
				delete(t.chunks, id)
			}
		}
		return nil
	})
}

func (r *snapshotChunkRepository) SearchSimilar(ctx context.Context, snapshotIDs []uuid.UUID, embedding []float32, limit int) ([]*entity.ChunkMatch, error) {
	wanted := make(map[uuid.UUID]bool, len(snapshotIDs))
	for _, id := range snapshotIDs {
		wanted[id] = true
	}
	var matches []*entity.ChunkMatch
	err := r.uow.read(func(t *tables) error {
		for _, c := range t.chunks {
			if wanted[c.SnapshotId] {
				matches = append(matches, &entity.ChunkMatch{Chunk: c, Distance: cosineDistance(c.Embedding, embedding)})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Distance < matches[j].Distance })
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func cosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 1
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

// deployments

type deploymentRepository struct{ uow *UnitOfWork }

// singleEnvironment mirrors the partial unique indexes on
// deployments(project_id) for production and staging.
func (r *deploymentRepository) singleEnvironment(t *tables, d *entity.Deployment) error {
	if d.Environment == nil {
		return nil
	}
	for _, other := range t.deployments {
		if other.Id == d.Id || other.ProjectId != d.ProjectId || other.Environment == nil {
			continue
		}
		if *other.Environment == *d.Environment {
			return gorm.ErrDuplicatedKey
		}
	}
	return nil
}

func (r *deploymentRepository) Create(ctx context.Context, deployment *entity.Deployment) error {
	return r.uow.write(func(t *tables) error {
		if deployment.Id == uuid.Nil {
			deployment.Id = uuid.New()
		}
		if _, ok := t.projects[deployment.ProjectId]; !ok {
			return gorm.ErrForeignKeyViolated
		}
		if err := r.singleEnvironment(t, deployment); err != nil {
			return err
		}
		if deployment.Status == "" {
			deployment.Status = entity.DeploymentStatusQueued
		}
		deployment.CreatedAt = r.uow.db.createdAt(deployment.CreatedAt)
		t.deployments[deployment.Id] = *deployment
		return nil
	})
}

func (r *deploymentRepository) Update(ctx context.Context, deployment *entity.Deployment) error {
	return r.uow.write(func(t *tables) error {
		if _, ok := t.deployments[deployment.Id]; !ok {
			return gorm.ErrRecordNotFound
		}
		if err := r.singleEnvironment(t, deployment); err != nil {
			return err
		}
		deployment.UpdatedAt = updatedNow()
		t.deployments[deployment.Id] = *deployment
		return nil
	})
}

func (r *deploymentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.uow.write(func(t *tables) error {
		deleteDeployment(t, id)
		return nil
	})
}

func (r *deploymentRepository) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Deployment, error) {
	rows, err := r.find(specs)
	if err != nil {
		return nil, err
	}
	return first(rows), nil
}

func (r *deploymentRepository) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Deployment, error) {
	rows, err := r.find(specs)
	if err != nil {
		return nil, err
	}
	return pointers(rows), nil
}

func (r *deploymentRepository) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	rows, err := r.find(specs)
	return int64(len(rows)), err
}

func (r *deploymentRepository) find(specs []specification.Specification) (rows []entity.Deployment, err error) {
	err = r.uow.read(func(t *tables) error {
		rows, err = apply(values(t.deployments), deploymentFields, specs)
		return err
	})
	return rows, err
}

// snapshot/deployment relations

type relRepository struct{ uow *UnitOfWork }

func (r *relRepository) CreateBatch(ctx context.Context, rels []*entity.SnapshotDeploymentRel) error {
	return r.uow.write(func(t *tables) error {
		for _, rel := range rels {
			for _, other := range t.rels {
				samePK := other.SnapshotId == rel.SnapshotId && other.DeploymentId == rel.DeploymentId
				samePath := other.DeploymentId == rel.DeploymentId && other.Folder == rel.Folder && other.Name == rel.Name
				if samePK || samePath {
					return gorm.ErrDuplicatedKey
				}
			}
			rel.CreatedAt = r.uow.db.createdAt(rel.CreatedAt)
			t.rels = append(t.rels, *rel)
		}
		return nil
	})
}

func (r *relRepository) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.SnapshotDeploymentRel, error) {
	rows, err := r.find(specs)
	if err != nil {
		return nil, err
	}
	return first(rows), nil
}

func (r *relRepository) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.SnapshotDeploymentRel, error) {
	rows, err := r.find(specs)
	if err != nil {
		return nil, err
	}
	return pointers(rows), nil
}

func (r *relRepository) find(specs []specification.Specification) (rows []entity.SnapshotDeploymentRel, err error) {
	err = r.uow.read(func(t *tables) error {
		all := append([]entity.SnapshotDeploymentRel(nil), t.rels...)
		rows, err = apply(all, relFields, specs)
		return err
	})
	return rows, err
}

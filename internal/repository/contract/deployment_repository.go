package contract

import (
	"context"

	"lupa-be/internal/entity"
	"lupa-be/internal/repository/specification"

	"github.com/google/uuid"
)

type DeploymentRepository interface {
	Create(ctx context.Context, deployment *entity.Deployment) error
	Update(ctx context.Context, deployment *entity.Deployment) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Deployment, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Deployment, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}

type SnapshotDeploymentRelRepository interface {
	CreateBatch(ctx context.Context, rels []*entity.SnapshotDeploymentRel) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.SnapshotDeploymentRel, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.SnapshotDeploymentRel, error)
}

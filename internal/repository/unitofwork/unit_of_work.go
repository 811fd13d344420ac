package unitofwork

import (
	"context"

	"lupa-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	// TxID identifies the open transaction. Live-query clients match it
	// against the change stream to confirm optimistic state.
	TxID(ctx context.Context) (string, error)

	ProjectRepository() contract.ProjectRepository
	DocumentRepository() contract.DocumentRepository
	SnapshotRepository() contract.SnapshotRepository
	SnapshotChunkRepository() contract.SnapshotChunkRepository
	DeploymentRepository() contract.DeploymentRepository
	SnapshotDeploymentRelRepository() contract.SnapshotDeploymentRelRepository
}

package unitofwork

import (
	"context"
	"fmt"

	"lupa-be/internal/repository/contract"
	"lupa-be/internal/repository/implementation"

	"gorm.io/gorm"
)

type UnitOfWorkImpl struct {
	db *gorm.DB
	tx *gorm.DB
}

func NewUnitOfWork(db *gorm.DB) UnitOfWork {
	return &UnitOfWorkImpl{
		db: db,
	}
}

func (u *UnitOfWorkImpl) getDB() *gorm.DB {
	if u.tx != nil {
		return u.tx
	}
	return u.db
}

func (u *UnitOfWorkImpl) Begin(ctx context.Context) error {
	if u.tx != nil {
		return fmt.Errorf("transaction already started")
	}
	u.tx = u.db.WithContext(ctx).Begin()
	return u.tx.Error
}

func (u *UnitOfWorkImpl) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to commit")
	}
	err := u.tx.Commit().Error
	u.tx = nil
	return err
}

func (u *UnitOfWorkImpl) Rollback() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to rollback")
	}
	err := u.tx.Rollback().Error
	u.tx = nil
	return err
}

func (u *UnitOfWorkImpl) TxID(ctx context.Context) (string, error) {
	if u.tx == nil {
		return "", fmt.Errorf("no transaction in progress")
	}
	var txid string
	if err := u.tx.WithContext(ctx).Raw("SELECT pg_current_xact_id()::xid::text").Scan(&txid).Error; err != nil {
		return "", fmt.Errorf("read transaction id: %w", err)
	}
	return txid, nil
}

// Repository Accessors

func (u *UnitOfWorkImpl) ProjectRepository() contract.ProjectRepository {
	return implementation.NewProjectRepository(u.getDB())
}

func (u *UnitOfWorkImpl) DocumentRepository() contract.DocumentRepository {
	return implementation.NewDocumentRepository(u.getDB())
}

func (u *UnitOfWorkImpl) SnapshotRepository() contract.SnapshotRepository {
	return implementation.NewSnapshotRepository(u.getDB())
}

func (u *UnitOfWorkImpl) SnapshotChunkRepository() contract.SnapshotChunkRepository {
	return implementation.NewSnapshotChunkRepository(u.getDB())
}

func (u *UnitOfWorkImpl) DeploymentRepository() contract.DeploymentRepository {
	return implementation.NewDeploymentRepository(u.getDB())
}

func (u *UnitOfWorkImpl) SnapshotDeploymentRelRepository() contract.SnapshotDeploymentRelRepository {
	return implementation.NewSnapshotDeploymentRelRepository(u.getDB())
}

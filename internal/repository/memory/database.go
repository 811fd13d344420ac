// Package memory keeps the relational model in process memory. It backs
// DB_DRIVER=memory and the service tests.
package memory

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"lupa-be/internal/entity"
	"lupa-be/internal/repository/contract"
	"lupa-be/internal/repository/unitofwork"

	"github.com/google/uuid"
)

type tables struct {
	projects    map[uuid.UUID]entity.Project
	documents   map[uuid.UUID]entity.Document
	snapshots   map[uuid.UUID]entity.Snapshot
	chunks      map[uuid.UUID]entity.SnapshotChunk
	deployments map[uuid.UUID]entity.Deployment
	rels        []entity.SnapshotDeploymentRel
}

func newTables() tables {
	return tables{
		projects:    map[uuid.UUID]entity.Project{},
		documents:   map[uuid.UUID]entity.Document{},
		snapshots:   map[uuid.UUID]entity.Snapshot{},
		chunks:      map[uuid.UUID]entity.SnapshotChunk{},
		deployments: map[uuid.UUID]entity.Deployment{},
	}
}

func (t tables) clone() tables {
	c := newTables()
	for k, v := range t.projects {
		c.projects[k] = v
	}
	for k, v := range t.documents {
		c.documents[k] = v
	}
	for k, v := range t.snapshots {
		c.snapshots[k] = v
	}
	for k, v := range t.chunks {
		c.chunks[k] = v
	}
	for k, v := range t.deployments {
		c.deployments[k] = v
	}
	c.rels = append([]entity.SnapshotDeploymentRel(nil), t.rels...)
	return c
}

// Database is the shared store behind every memory unit of work. Writes and
// transactions are serialized by txMu; mu guards the committed maps. A
// transaction works on its own copy that replaces the committed maps on
// Commit, so readers outside it only see committed rows.
type Database struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	data tables

	lastCreated time.Time
	txSeq       uint64
	now         func() time.Time
}

func NewDatabase() *Database {
	return &Database{data: newTables(), now: time.Now}
}

// createdAt hands out strictly increasing creation times so ordering by
// created_at is total, as it is for rows inserted one by one in Postgres.
func (d *Database) createdAt(requested time.Time) time.Time {
	t := requested
	if t.IsZero() {
		t = d.now().UTC()
	}
	if !t.After(d.lastCreated) {
		t = d.lastCreated.Add(time.Microsecond)
	}
	d.lastCreated = t
	return t
}

type RepositoryFactory struct {
	db *Database
}

func NewRepositoryFactory(db *Database) unitofwork.RepositoryFactory {
	return &RepositoryFactory{db: db}
}

func (f *RepositoryFactory) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork {
	return &UnitOfWork{db: f.db}
}

type UnitOfWork struct {
	db   *Database
	inTx bool
	work tables
	txID string
}

func (u *UnitOfWork) Begin(ctx context.Context) error {
	if u.inTx {
		return fmt.Errorf("transaction already started")
	}
	u.db.txMu.Lock()
	u.db.mu.Lock()
	u.work = u.db.data.clone()
	u.db.txSeq++
	u.txID = strconv.FormatUint(u.db.txSeq, 10)
	u.db.mu.Unlock()
	u.inTx = true
	return nil
}

func (u *UnitOfWork) Commit() error {
	if !u.inTx {
		return fmt.Errorf("no transaction to commit")
	}
	u.db.mu.Lock()
	u.db.data = u.work
	u.db.mu.Unlock()
	u.end()
	return nil
}

func (u *UnitOfWork) Rollback() error {
	if !u.inTx {
		return fmt.Errorf("no transaction to rollback")
	}
	u.end()
	return nil
}

func (u *UnitOfWork) end() {
	u.inTx = false
	u.work = tables{}
	u.txID = ""
	u.db.txMu.Unlock()
}

func (u *UnitOfWork) TxID(ctx context.Context) (string, error) {
	if !u.inTx {
		return "", fmt.Errorf("no transaction in progress")
	}
	return u.txID, nil
}

// write runs fn with exclusive access to the tables. Outside a transaction
// it also waits for any open transaction to finish.
func (u *UnitOfWork) write(fn func(t *tables) error) error {
	if !u.inTx {
		u.db.txMu.Lock()
		defer u.db.txMu.Unlock()
	}
	u.db.mu.Lock()
	defer u.db.mu.Unlock()
	return fn(u.view())
}

func (u *UnitOfWork) read(fn func(t *tables) error) error {
	u.db.mu.RLock()
	defer u.db.mu.RUnlock()
	return fn(u.view())
}

// view is the transaction's copy inside a transaction and the committed
// tables otherwise.
func (u *UnitOfWork) view() *tables {
	if u.inTx {
		return &u.work
	}
	return &u.db.data
}

func (u *UnitOfWork) ProjectRepository() contract.ProjectRepository {
	return &projectRepository{uow: u}
}

func (u *UnitOfWork) DocumentRepository() contract.DocumentRepository {
	return &documentRepository{uow: u}
}

func (u *UnitOfWork) SnapshotRepository() contract.SnapshotRepository {
	return &snapshotRepository{uow: u}
}

func (u *UnitOfWork) SnapshotChunkRepository() contract.SnapshotChunkRepository {
	return &snapshotChunkRepository{uow: u}
}

func (u *UnitOfWork) DeploymentRepository() contract.DeploymentRepository {
	return &deploymentRepository{uow: u}
}

func (u *UnitOfWork) SnapshotDeploymentRelRepository() contract.SnapshotDeploymentRelRepository {
	return &relRepository{uow: u}
}

package model

import (
	"time"

	"github.com/google/uuid"
)

// Deployment carries at most one production row per project, enforced by
// the partial unique index created in the migration.
type Deployment struct {
	Id            uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ProjectId     uuid.UUID `gorm:"type:uuid;not null;index"`
	Name          string    `gorm:"type:varchar(255);not null"`
	Status        string    `gorm:"type:deployment_status;not null;default:'queued'"`
	Environment   *string   `gorm:"type:deployment_environment"`
	VectorIndexId *string   `gorm:"type:varchar(255)"`
	ErrorReason   string    `gorm:"type:text"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`

	Rels []SnapshotDeploymentRel `gorm:"foreignKey:DeploymentId;constraint:OnDelete:CASCADE"`
}

func (Deployment) TableName() string {
	return "deployments"
}

type SnapshotDeploymentRel struct {
	SnapshotId   uuid.UUID `gorm:"type:uuid;primaryKey"`
	DeploymentId uuid.UUID `gorm:"type:uuid;primaryKey;uniqueIndex:idx_rels_deployment_path,priority:1"`
	Folder       string    `gorm:"type:text;not null;uniqueIndex:idx_rels_deployment_path,priority:2"`
	Name         string    `gorm:"type:text;not null;uniqueIndex:idx_rels_deployment_path,priority:3"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`

	Snapshot Snapshot `gorm:"foreignKey:SnapshotId;constraint:OnDelete:CASCADE"`
}

func (SnapshotDeploymentRel) TableName() string {
	return "snapshot_deployment_rels"
}

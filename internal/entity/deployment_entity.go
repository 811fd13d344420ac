package entity

import (
	"time"

	"github.com/google/uuid"
)

type DeploymentStatus string

const (
	DeploymentStatusQueued  DeploymentStatus = "queued"
	DeploymentStatusRunning DeploymentStatus = "running"
	DeploymentStatusReady   DeploymentStatus = "ready"
	DeploymentStatusError   DeploymentStatus = "error"
)

type Environment string

const (
	EnvironmentProduction Environment = "production"
	EnvironmentStaging    Environment = "staging"
)

func (e Environment) Valid() bool {
	return e == EnvironmentProduction || e == EnvironmentStaging
}

type Deployment struct {
	Id            uuid.UUID
	ProjectId     uuid.UUID
	Name          string
	Status        DeploymentStatus
	Environment   *Environment
	VectorIndexId *string
	ErrorReason   string
	CreatedAt     time.Time
	UpdatedAt     *time.Time
}

func (d *Deployment) IsProduction() bool {
	return d.Environment != nil && *d.Environment == EnvironmentProduction
}

// SnapshotDeploymentRel pins a snapshot into a deployment. Folder and Name
// are copied from the document when the deployment is built.
type SnapshotDeploymentRel struct {
	SnapshotId   uuid.UUID
	DeploymentId uuid.UUID
	Folder       string
	Name         string
	CreatedAt    time.Time
}

package entity

import (
	"time"

	"github.com/google/uuid"
)

type Project struct {
	Id                     uuid.UUID
	OrgId                  string
	Name                   string
	ProductionDeploymentId *uuid.UUID
	StagingDeploymentId    *uuid.UUID
	CreatedAt              time.Time
	UpdatedAt              *time.Time
}

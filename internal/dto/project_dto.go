package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateProjectRequest struct {
	Name string `json:"name" validate:"required,max=255"`
}

type ProjectResponse struct {
	Id                     uuid.UUID  `json:"id"`
	OrgId                  string     `json:"org_id"`
	Name                   string     `json:"name"`
	ProductionDeploymentId *uuid.UUID `json:"production_deployment_id"`
	StagingDeploymentId    *uuid.UUID `json:"staging_deployment_id"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              *time.Time `json:"updated_at"`
}

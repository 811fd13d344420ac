package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateDeploymentRequest struct {
	Name string `json:"name" validate:"omitempty,max=255"`
}

type DeploymentResponse struct {
	Id            uuid.UUID  `json:"id"`
	ProjectId     uuid.UUID  `json:"project_id"`
	Name          string     `json:"name"`
	Status        string     `json:"status"`
	Environment   *string    `json:"environment"`
	VectorIndexId *string    `json:"vector_index_id"`
	ErrorReason   string     `json:"error_reason,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     *time.Time `json:"updated_at"`
}

// UpdateEnvironmentRequest clears the environment when Environment is null.
type UpdateEnvironmentRequest struct {
	Environment *string `json:"environment" validate:"omitempty,oneof=production staging"`
}

// EnvironmentChangeResponse carries the id of the committing transaction.
type EnvironmentChangeResponse struct {
	DeploymentId         uuid.UUID  `json:"deployment_id"`
	Environment          *string    `json:"environment"`
	PreviousProductionId *uuid.UUID `json:"previous_production_id,omitempty"`
	TxId                 string     `json:"txid"`
}

type SearchRequest struct {
	Query string `query:"q" validate:"required"`
	TopK  int    `query:"top_k" validate:"omitempty,min=1,max=100"`
}

type SearchResult struct {
	Id         string                 `json:"id"`
	Score      float64                `json:"score"`
	Content    string                 `json:"content"`
	SnapshotId string                 `json:"snapshot_id,omitempty"`
	Folder     string                 `json:"folder,omitempty"`
	Name       string                 `json:"name,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

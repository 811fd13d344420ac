package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateDocumentRequest struct {
	Folder             string `json:"folder"`
	Name               string `json:"name" validate:"required,max=255"`
	Url                string `json:"url" validate:"required,url"`
	Type               string `json:"type" validate:"required,oneof=website upload"`
	Filename           string `json:"filename" validate:"omitempty,max=255"`
	RefreshFrequency   string `json:"refresh_frequency" validate:"omitempty,oneof=none daily weekly monthly"`
	ParserName         string `json:"parser_name"`
	ParsingInstruction string `json:"parsing_instruction"`
}

type CreateDocumentResponse struct {
	Id         uuid.UUID `json:"id"`
	SnapshotId uuid.UUID `json:"snapshot_id"`
	Folder     string    `json:"folder"`
	Name       string    `json:"name"`
}

type DocumentResponse struct {
	Id               uuid.UUID         `json:"id"`
	ProjectId        uuid.UUID         `json:"project_id"`
	Folder           string            `json:"folder"`
	Name             string            `json:"name"`
	Path             string            `json:"path"`
	RefreshFrequency string            `json:"refresh_frequency"`
	CurrentSnapshot  *SnapshotResponse `json:"current_snapshot"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        *time.Time        `json:"updated_at"`
}

// CreateSnapshotRequest starts a new ingestion run. An empty Url reuses the
// source of the document's current snapshot.
type CreateSnapshotRequest struct {
	Url                string `json:"url" validate:"omitempty,url"`
	ParserName         string `json:"parser_name"`
	ParsingInstruction string `json:"parsing_instruction"`
}

type SnapshotResponse struct {
	Id              uuid.UUID              `json:"id"`
	DocumentId      uuid.UUID              `json:"document_id"`
	Version         int                    `json:"version,omitempty"`
	Url             string                 `json:"url"`
	Type            string                 `json:"type"`
	Status          string                 `json:"status"`
	RawBlobUrl      string                 `json:"raw_blob_url,omitempty"`
	MarkdownUrl     string                 `json:"markdown_url,omitempty"`
	ChunksCount     *int                   `json:"chunks_count"`
	TokensCount     *int                   `json:"tokens_count"`
	ChangesDetected *bool                  `json:"changes_detected"`
	ErrorReason     string                 `json:"error_reason,omitempty"`
	ParserName      string                 `json:"parser_name,omitempty"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       *time.Time             `json:"updated_at"`
}

type BulkWebsiteRequest struct {
	Urls             []string `json:"urls" validate:"required,min=1,max=500,dive,url"`
	Folder           string   `json:"folder"`
	RefreshFrequency string   `json:"refresh_frequency" validate:"omitempty,oneof=none daily weekly monthly"`
}

type BulkWebsiteItem struct {
	Url        string    `json:"url"`
	DocumentId uuid.UUID `json:"document_id"`
	SnapshotId uuid.UUID `json:"snapshot_id"`
	Tags       []string  `json:"tags"`
}

type BulkWebsiteResponse struct {
	Items []*BulkWebsiteItem `json:"items"`
}

// ResolveRequest looks a document up by path. With DeploymentId set the path
// resolves against the snapshots pinned into that deployment.
type ResolveRequest struct {
	Path         string `query:"path" validate:"required"`
	DeploymentId string `query:"deployment_id" validate:"omitempty,uuid"`
}

type ResolveResponse struct {
	Document *DocumentResponse `json:"document"`
	Snapshot *SnapshotResponse `json:"snapshot"`
}

// UploadDocumentRequest is the form part of a multipart upload. The file
// itself travels in the "file" part.
type UploadDocumentRequest struct {
	Folder             string `form:"folder"`
	Name               string `form:"name" validate:"omitempty,max=255"`
	RefreshFrequency   string `form:"refresh_frequency" validate:"omitempty,oneof=none daily weekly monthly"`
	ParserName         string `form:"parser_name"`
	ParsingInstruction string `form:"parsing_instruction"`
}

type ListDocumentsRequest struct {
	Folder string `query:"folder"`
}

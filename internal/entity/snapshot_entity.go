package entity

import (
	"time"

	"github.com/google/uuid"
)

type SnapshotType string

const (
	SnapshotTypeWebsite SnapshotType = "website"
	SnapshotTypeUpload  SnapshotType = "upload"
)

type SnapshotStatus string

const (
	SnapshotStatusQueued  SnapshotStatus = "queued"
	SnapshotStatusRunning SnapshotStatus = "running"
	SnapshotStatusSuccess SnapshotStatus = "success"
	SnapshotStatusError   SnapshotStatus = "error"
)

func (s SnapshotStatus) Terminal() bool {
	return s == SnapshotStatusSuccess || s == SnapshotStatusError
}

// Snapshot is one ingestion attempt of a document. The current snapshot of a
// document is the one with the latest CreatedAt, whatever its status.
type Snapshot struct {
	Id              uuid.UUID
	DocumentId      uuid.UUID
	OrgId           string
	Url             string
	Type            SnapshotType
	Status          SnapshotStatus
	RawBlobUrl      string
	MarkdownUrl     string
	ChunksCount     *int
	TokensCount     *int
	ChangesDetected *bool
	ErrorReason     string
	ParserName      string
	Metadata        map[string]interface{}
	CreatedAt       time.Time
	UpdatedAt       *time.Time
}

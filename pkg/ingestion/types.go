// Package ingestion runs the snapshot task chain: fetch, parse, store, index
// and finalize, each step wrapped in a retry policy.
package ingestion

import "context"

type SnapshotType string

const (
	TypeWebsite SnapshotType = "website"
	TypeUpload  SnapshotType = "upload"
)

type Status string

const (
	StatusQueued  Status = "queued"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusError
}

// Task ids understood by the task queue.
const (
	TaskProcessSnapshot = "process-snapshot"
	TaskDeploy          = "deploy"
)

// Payload is what a process-snapshot trigger carries.
type Payload struct {
	SnapshotID         string       `json:"snapshotId"`
	Type               SnapshotType `json:"type,omitempty"`
	ParserName         string       `json:"parserName,omitempty"`
	ParsingInstruction string       `json:"parsingInstruction,omitempty"`
}

// DeployPayload is what a deploy trigger carries.
type DeployPayload struct {
	DeploymentID string `json:"deploymentId"`
}

// Job is the snapshot a run works on, joined with its document.
type Job struct {
	SnapshotID         string
	DocumentID         string
	ProjectID          string
	OwnerID            string
	Type               SnapshotType
	URL                string
	Filename           string
	Folder             string
	Name               string
	ParserName         string
	ParsingInstruction string
	Tags               []string
}

// Outcome is written to the snapshot when a run ends.
type Outcome struct {
	Status          Status
	RawBlobURL      string
	MarkdownURL     string
	ParserName      string
	ChunksCount     *int
	TokensCount     *int
	ChangesDetected *bool
	Metadata        map[string]interface{}
	ErrorReason     string
}

// SnapshotStore is the persistence the orchestrator needs.
type SnapshotStore interface {
	LoadJob(ctx context.Context, snapshotID string) (*Job, error)
	// MarkRunning moves a queued snapshot to running.
	MarkRunning(ctx context.Context, snapshotID string) error
	// Finalize moves a running snapshot to a terminal status.
	Finalize(ctx context.Context, snapshotID string, outcome Outcome) error
	// PreviousMarkdownURL returns the markdown of the newest snapshot created
	// before snapshotID on the same document that produced one, or "" when
	// there is none.
	PreviousMarkdownURL(ctx context.Context, documentID, snapshotID string) (string, error)
}

type IndexRequest struct {
	SnapshotID string
	DocumentID string
	ProjectID  string
	Folder     string
	Name       string
	Markdown   string
}

type Indexer interface {
	Index(ctx context.Context, req IndexRequest) (int, error)
}

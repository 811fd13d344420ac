package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

type Snapshot struct {
	Id              uuid.UUID         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	DocumentId      uuid.UUID         `gorm:"type:uuid;not null;index:idx_snapshots_document_created,priority:1"`
	OrgId           string            `gorm:"type:varchar(255);not null;index"`
	Url             string            `gorm:"type:text;not null"`
	Type            string            `gorm:"type:snapshot_type;not null"`
	Status          string            `gorm:"type:snapshot_status;not null;default:'queued';index"`
	RawBlobUrl      string            `gorm:"type:text"`
	MarkdownUrl     string            `gorm:"type:text"`
	ChunksCount     *int              `gorm:"type:integer"`
	TokensCount     *int              `gorm:"type:integer"`
	ChangesDetected *bool             `gorm:"type:boolean"`
	ErrorReason     string            `gorm:"type:text"`
	ParserName      string            `gorm:"type:varchar(64)"`
	Metadata        datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt       time.Time         `gorm:"autoCreateTime;index:idx_snapshots_document_created,priority:2,sort:desc"`
	UpdatedAt       time.Time         `gorm:"autoUpdateTime"`
}

func (Snapshot) TableName() string {
	return "snapshots"
}

type SnapshotChunk struct {
	Id         uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SnapshotId uuid.UUID       `gorm:"type:uuid;not null;index"`
	ChunkIndex int             `gorm:"default:0"`
	Content    string          `gorm:"type:text"`
	Embedding  pgvector.Vector `gorm:"type:vector(768)"`
	CreatedAt  time.Time       `gorm:"autoCreateTime"`

	Snapshot Snapshot `gorm:"foreignKey:SnapshotId;constraint:OnDelete:CASCADE"`
}

func (SnapshotChunk) TableName() string {
	return "snapshot_chunks"
}

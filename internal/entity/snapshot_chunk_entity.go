package entity

import (
	"time"

	"github.com/google/uuid"
)

type SnapshotChunk struct {
	Id         uuid.UUID
	SnapshotId uuid.UUID
	ChunkIndex int
	Content    string
	Embedding  []float32
	CreatedAt  time.Time
}

type ChunkMatch struct {
	Chunk    SnapshotChunk
	Distance float64
}

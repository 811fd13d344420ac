package vector

import (
	"context"
	"fmt"
	"strings"

	"lupa-be/pkg/utils"
)

const (
	ChunkSize    = 1000
	ChunkOverlap = 200
	UpsertBatch  = 100
)

// Upserter is the slice of IndexClient that UpsertMarkdown needs.
type Upserter interface {
	Upsert(ctx context.Context, records []Record) error
}

// MarkdownDocument is one snapshot's Markdown bound for an index.
type MarkdownDocument struct {
	DocumentID string
	SnapshotID string
	Folder     string
	Name       string
	Markdown   string
}

// ChunkID names chunk n of a document.
func ChunkID(documentID string, n int) string {
	return fmt.Sprintf("%s_chunk_%d", documentID, n)
}

// BuildRecords splits the Markdown into overlapping chunks.
func BuildRecords(doc MarkdownDocument) []Record {
	if strings.TrimSpace(doc.Markdown) == "" {
		return nil
	}
	chunks := utils.SplitText(doc.Markdown, ChunkSize, ChunkOverlap)
	records := make([]Record, 0, len(chunks))
	for i, chunk := range chunks {
		metadata := map[string]interface{}{
			"snapshotId": doc.SnapshotID,
			"chunkIndex": i,
			"chunkSize":  len([]rune(chunk)),
		}
		if doc.Folder != "" {
			metadata["folder"] = doc.Folder
		}
		if doc.Name != "" {
			metadata["name"] = doc.Name
		}
		records = append(records, Record{
			ID:       ChunkID(doc.DocumentID, i),
			Data:     chunk,
			Metadata: metadata,
		})
	}
	return records
}

// UpsertMarkdown pushes every chunk of doc in batches and returns the number
// of chunks written.
func UpsertMarkdown(ctx context.Context, index Upserter, doc MarkdownDocument) (int, error) {
	records := BuildRecords(doc)
	for start := 0; start < len(records); start += UpsertBatch {
		end := start + UpsertBatch
		if end > len(records) {
			end = len(records)
		}
		if err := index.Upsert(ctx, records[start:end]); err != nil {
			return start, err
		}
	}
	return len(records), nil
}

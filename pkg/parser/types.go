// Package parser turns uploaded documents into Markdown through a registry of
// strategies selected by MIME type and filename.
package parser

import (
	"context"
	"time"
)

// Document is the stored blob to parse. Content may be nil when BlobURL is
// set; the registry loads it on demand.
type Document struct {
	ID       string
	BlobURL  string
	Filename string
	MimeType string
	Content  []byte
}

type Input struct {
	Document           Document
	UserID             string
	ParsingInstruction string
}

type Output struct {
	MarkdownContent string                 `json:"markdown_content"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
	Parser          string                 `json:"parser"`
	ProcessingTime  time.Duration          `json:"processing_time"`
	JobID           string                 `json:"job_id,omitempty"`
}

// Strategy is one way of producing Markdown.
type Strategy interface {
	Name() string
	CanParse(mimeType, filename string) bool
	Parse(ctx context.Context, in Input) (*Output, error)
}

type Config struct {
	Priority int
	Enabled  bool
}

// DefaultConfig registers an enabled strategy with neutral priority.
var DefaultConfig = Config{Priority: 0, Enabled: true}

// Request is the input to Registry.ParseDocument. An empty ParserName lets
// the registry choose.
type Request struct {
	Document           Document
	UserID             string
	ParserName         string
	ParsingInstruction string
}

// ContentLoader fetches blob bytes by URL.
type ContentLoader func(ctx context.Context, url string) ([]byte, error)

package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"lupa-be/pkg/blob"
	"lupa-be/pkg/crawl"
	"lupa-be/pkg/parser"
)

type Crawler interface {
	Scrape(ctx context.Context, url string, tags []string, opts crawl.ScrapeOptions) (*crawl.ScrapeResult, error)
}

// Steps holds the collaborators of the chain. Each method is one step and
// does no retrying of its own.
type Steps struct {
	HTTPClient    *http.Client
	Blobs         blob.Store
	Parsers       *parser.Registry
	Crawler       Crawler
	Indexer       Indexer
	ScrapeOptions crawl.ScrapeOptions
}

type RawDocument struct {
	BlobURL     string
	Pathname    string
	Size        int64
	ContentType string
	Content     []byte
}

type Parsed struct {
	Markdown string
	Parser   string
	Metadata map[string]interface{}
}

// FetchRaw downloads the source document and keeps a copy in the blob store.
func (s *Steps) FetchRaw(ctx context.Context, job *Job) (*RawDocument, error) {
	client := s.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, job.URL, nil)
	if err != nil {
		return nil, Permanent(fmt.Errorf("invalid document url: %w", err))
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &FetchFailedError{URL: job.URL, StatusCode: resp.StatusCode, Status: http.StatusText(resp.StatusCode)}
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	ext := strings.TrimPrefix(path.Ext(job.Filename), ".")
	if ext == "" {
		ext = parser.ExtensionForMime(contentType)
	}

	stored, err := s.Blobs.Put(ctx, blob.RawPath(job.OwnerID, job.DocumentID, ext), content, blob.PutOptions{
		Access:          blob.AccessPublic,
		ContentType:     contentType,
		AddRandomSuffix: true,
	})
	if err != nil {
		return nil, err
	}

	return &RawDocument{
		BlobURL:     stored.URL,
		Pathname:    stored.Pathname,
		Size:        int64(len(content)),
		ContentType: contentType,
		Content:     content,
	}, nil
}

// ParseUpload runs the stored document through the parser registry.
func (s *Steps) ParseUpload(ctx context.Context, job *Job, raw *RawDocument) (*Parsed, error) {
	out, err := s.Parsers.ParseDocument(ctx, parser.Request{
		Document: parser.Document{
			ID:       job.DocumentID,
			BlobURL:  raw.BlobURL,
			Filename: job.Filename,
			MimeType: specificMime(raw.ContentType),
			Content:  raw.Content,
		},
		UserID:             job.OwnerID,
		ParserName:         job.ParserName,
		ParsingInstruction: job.ParsingInstruction,
	})
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.MarkdownContent) == "" {
		return nil, errors.New("markdown content is missing")
	}

	metadata := map[string]interface{}{
		"filename":       job.Filename,
		"size":           raw.Size,
		"contentType":    raw.ContentType,
		"processingTime": out.ProcessingTime.Milliseconds(),
	}
	if out.JobID != "" {
		metadata["jobId"] = out.JobID
	}
	for k, v := range out.Metadata {
		metadata[k] = v
	}
	return &Parsed{Markdown: out.MarkdownContent, Parser: out.Parser, Metadata: metadata}, nil
}

// ScrapeWebsite asks the crawl provider for the page's Markdown.
func (s *Steps) ScrapeWebsite(ctx context.Context, job *Job) (*Parsed, error) {
	if s.Crawler == nil {
		return nil, Permanent(errors.New("website crawling is not configured"))
	}
	opts := s.ScrapeOptions
	if opts.Timeout == 0 {
		opts = crawl.DefaultScrapeOptions
	}

	res, err := s.Crawler.Scrape(ctx, job.URL, job.Tags, opts)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(res.Markdown) == "" {
		return nil, errors.New("markdown content is missing")
	}

	metadata := map[string]interface{}{
		"title":       res.Metadata.Title,
		"description": res.Metadata.Description,
		"favicon":     res.Metadata.Favicon,
		"screenshot":  res.Screenshot,
		"sourceURL":   res.Metadata.SourceURL,
		"statusCode":  res.Metadata.StatusCode,
		"crawlKey":    res.KeySlot + 1,
	}
	return &Parsed{Markdown: res.Markdown, Parser: "firecrawl", Metadata: metadata}, nil
}

// StoreParsed writes the Markdown next to the raw document.
func (s *Steps) StoreParsed(ctx context.Context, job *Job, markdown string) (*blob.PutResult, error) {
	return s.Blobs.Put(ctx, blob.MarkdownPath(job.OwnerID, job.DocumentID), []byte(markdown), blob.PutOptions{
		Access:          blob.AccessPublic,
		ContentType:     "text/markdown",
		AddRandomSuffix: true,
	})
}

func (s *Steps) Index(ctx context.Context, job *Job, markdown string) (int, error) {
	if s.Indexer == nil {
		return 0, nil
	}
	return s.Indexer.Index(ctx, IndexRequest{
		SnapshotID: job.SnapshotID,
		DocumentID: job.DocumentID,
		ProjectID:  job.ProjectID,
		Folder:     job.Folder,
		Name:       job.Name,
		Markdown:   markdown,
	})
}

// specificMime drops content types that say nothing about the format so the
// registry falls back to the filename.
func specificMime(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil || mt == "application/octet-stream" || mt == "binary/octet-stream" {
		return ""
	}
	return mt
}

// EstimateTokens approximates a token count from whitespace-separated words.
func EstimateTokens(markdown string) int {
	return len(strings.Fields(markdown))
}

package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
)

const DefaultLlamaParseURL = "https://api.cloud.llamaindex.ai/api/parsing"

var llamaParseTypes = map[string]bool{
	MimePDF:  true,
	MimeCSV:  true,
	MimeXLS:  true,
	MimeXLSX: true,
	MimeDOCX: true,
	MimePPTX: true,
	MimeText: true,
	MimeHTML: true,
}

// LlamaParse delegates conversion to a hosted parsing service: upload, poll
// the job, then fetch the Markdown result.
type LlamaParse struct {
	apiKey       string
	baseURL      string
	httpClient   *http.Client
	maxPolls     int
	pollInterval time.Duration
}

type LlamaParseOption func(*LlamaParse)

func WithLlamaParseURL(url string) LlamaParseOption {
	return func(p *LlamaParse) { p.baseURL = strings.TrimRight(url, "/") }
}

func WithPolling(maxPolls int, interval time.Duration) LlamaParseOption {
	return func(p *LlamaParse) {
		p.maxPolls = maxPolls
		p.pollInterval = interval
	}
}

func WithHTTPClient(c *http.Client) LlamaParseOption {
	return func(p *LlamaParse) { p.httpClient = c }
}

func NewLlamaParse(apiKey string, opts ...LlamaParseOption) (*LlamaParse, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("llamaparse api key is required")
	}
	p := &LlamaParse{
		apiKey:       apiKey,
		baseURL:      DefaultLlamaParseURL,
		httpClient:   &http.Client{Timeout: 60 * time.Second},
		maxPolls:     30,
		pollInterval: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *LlamaParse) Name() string { return "llamaparse" }

func (p *LlamaParse) CanParse(mimeType, filename string) bool {
	detected := baseMime(mimeType)
	if detected == "" {
		detected = MimeTypeFromFilename(filename)
	}
	return llamaParseTypes[detected]
}

func (p *LlamaParse) Parse(ctx context.Context, in Input) (*Output, error) {
	start := time.Now()

	mimeType := baseMime(in.Document.MimeType)
	if mimeType == "" {
		mimeType = MimeTypeFromFilename(in.Document.Filename)
	}
	if mimeType == "" {
		return nil, &UnsupportedDocumentTypeError{Filename: in.Document.Filename}
	}

	instruction := in.ParsingInstruction
	if instruction == "" {
		instruction = DefaultParsingInstruction(mimeType)
	}

	jobID, err := p.upload(ctx, in.Document, mimeType, instruction)
	if err != nil {
		return nil, err
	}

	markdown, err := p.poll(ctx, jobID)
	if err != nil {
		return nil, err
	}

	return &Output{
		MarkdownContent: markdown,
		Parser:          p.Name(),
		JobID:           jobID,
		ProcessingTime:  time.Since(start),
		Metadata: map[string]interface{}{
			"wordCount": len(strings.Fields(markdown)),
		},
	}, nil
}

func (p *LlamaParse) upload(ctx context.Context, doc Document, mimeType, instruction string) (string, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, doc.Filename))
	h.Set("Content-Type", mimeType)
	part, err := w.CreatePart(h)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(doc.Content); err != nil {
		return "", err
	}
	if err := w.WriteField("parsing_instruction", instruction); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/upload", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var result struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := p.doJSON(req, &result); err != nil {
		return "", err
	}
	return result.ID, nil
}

func (p *LlamaParse) poll(ctx context.Context, jobID string) (string, error) {
	for attempt := 0; attempt < p.maxPolls; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/job/%s", p.baseURL, jobID), nil)
		if err != nil {
			return "", err
		}

		var status struct {
			Status string `json:"status"`
			Error  string `json:"error,omitempty"`
		}
		if err := p.doJSON(req, &status); err != nil {
			return "", err
		}

		switch status.Status {
		case "SUCCESS":
			return p.result(ctx, jobID)
		case "ERROR":
			msg := status.Error
			if msg == "" {
				msg = "unknown error"
			}
			return "", &ParseFailedError{Parser: p.Name(), Cause: fmt.Errorf("processing failed: %s", msg)}
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(p.pollInterval):
		}
	}

	return "", &ParseFailedError{Parser: p.Name(), Cause: fmt.Errorf("no result after %d polls", p.maxPolls)}
}

func (p *LlamaParse) result(ctx context.Context, jobID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/job/%s/result/markdown", p.baseURL, jobID), nil)
	if err != nil {
		return "", err
	}

	var result struct {
		Markdown string `json:"markdown"`
	}
	if err := p.doJSON(req, &result); err != nil {
		return "", err
	}
	return result.Markdown, nil
}

func (p *LlamaParse) doJSON(req *http.Request, out interface{}) error {
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return &ParseFailedError{Parser: p.Name(), Cause: err}
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		permanent := resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests
		return &ParseFailedError{
			Parser:    p.Name(),
			Cause:     fmt.Errorf("status %d: %s", resp.StatusCode, string(bodyBytes)),
			Permanent: permanent,
		}
	}

	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return &ParseFailedError{Parser: p.Name(), Cause: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

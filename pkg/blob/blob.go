// Package blob stores raw documents and parsed Markdown behind a small
// put/get contract.
package blob

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
)

type Access string

const (
	AccessPublic  Access = "public"
	AccessPrivate Access = "private"
)

var ErrNotFound = errors.New("blob not found")

type PutOptions struct {
	Access          Access
	ContentType     string
	AddRandomSuffix bool
}

type PutResult struct {
	URL         string `json:"url"`
	Pathname    string `json:"pathname"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

type Store interface {
	Put(ctx context.Context, pathname string, body []byte, opts PutOptions) (*PutResult, error)
	Get(ctx context.Context, url string) ([]byte, error)
}

// RawPath is where an uploaded or fetched source document is kept.
func RawPath(ownerID, documentID, ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		ext = "bin"
	}
	return fmt.Sprintf("%s/documents/%s.%s", ownerID, documentID, ext)
}

// MarkdownPath is where the parsed Markdown of a document is kept.
func MarkdownPath(ownerID, documentID string) string {
	return fmt.Sprintf("%s/markdown/%s.md", ownerID, documentID)
}

// UploadPath is where a user upload waits before its first ingestion run.
func UploadPath(ownerID, filename string) string {
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(filename), "\\", "/"))
	if name == "" || name == "." || name == "/" {
		name = "upload.bin"
	}
	return fmt.Sprintf("%s/uploads/%s", ownerID, name)
}

// withRandomSuffix turns "a/b/doc.md" into "a/b/doc-<suffix>.md".
func withRandomSuffix(pathname string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:20]
	ext := path.Ext(pathname)
	return strings.TrimSuffix(pathname, ext) + "-" + suffix + ext
}

func cleanPathname(pathname string) (string, error) {
	p := path.Clean("/" + strings.TrimSpace(pathname))
	p = strings.TrimPrefix(p, "/")
	if p == "" || p == "." {
		return "", fmt.Errorf("invalid blob pathname %q", pathname)
	}
	return p, nil
}

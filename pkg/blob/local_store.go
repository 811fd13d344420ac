package blob

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalStore keeps blobs on disk under root and hands out URLs below
// publicURL, which the HTTP server exposes as a static route.
type LocalStore struct {
	root       string
	publicURL  string
	httpClient *http.Client
}

func NewLocalStore(root, publicURL string) *LocalStore {
	return &LocalStore{
		root:       root,
		publicURL:  strings.TrimRight(publicURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (s *LocalStore) Put(_ context.Context, pathname string, body []byte, opts PutOptions) (*PutResult, error) {
	clean, err := cleanPathname(pathname)
	if err != nil {
		return nil, err
	}
	if opts.AddRandomSuffix {
		clean = withRandomSuffix(clean)
	}

	target := filepath.Join(s.root, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}
	if err := os.WriteFile(target, body, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write blob: %w", err)
	}

	return &PutResult{
		URL:         s.publicURL + "/" + clean,
		Pathname:    clean,
		ContentType: opts.ContentType,
		Size:        int64(len(body)),
	}, nil
}

// Get reads blobs this store wrote from disk and fetches anything else over
// HTTP.
func (s *LocalStore) Get(ctx context.Context, url string) ([]byte, error) {
	prefix := s.publicURL + "/"
	if !strings.HasPrefix(url, prefix) {
		return httpGet(ctx, s.httpClient, url)
	}

	clean, err := cleanPathname(strings.TrimPrefix(url, prefix))
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(clean)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, url)
	}
	return data, err
}

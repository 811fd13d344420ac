package blob

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaths(t *testing.T) {
	assert.Equal(t, "u1/documents/d1.pdf", RawPath("u1", "d1", ".pdf"))
	assert.Equal(t, "u1/documents/d1.bin", RawPath("u1", "d1", ""))
	assert.Equal(t, "u1/markdown/d1.md", MarkdownPath("u1", "d1"))
	assert.Equal(t, "u1/uploads/report.pdf", UploadPath("u1", `C:\\tmp\\report.pdf`))
	assert.Equal(t, "u1/uploads/report.pdf", UploadPath("u1", "../../report.pdf"))
	assert.Equal(t, "u1/uploads/upload.bin", UploadPath("u1", "  "))
}

func TestWithRandomSuffix(t *testing.T) {
	a := withRandomSuffix("u1/markdown/d1.md")
	b := withRandomSuffix("u1/markdown/d1.md")
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "u1/markdown/d1-"))
	assert.True(t, strings.HasSuffix(a, ".md"))
}

func TestCleanPathname(t *testing.T) {
	p, err := cleanPathname("../../etc/passwd")
	require.NoError(t, err)
	assert.Equal(t, "etc/passwd", p)

	_, err = cleanPathname("  ")
	assert.Error(t, err)
}

func TestLocalStore_PutGet(t *testing.T) {
	store := NewLocalStore(t.TempDir(), "http://localhost:3000/uploads")
	ctx := context.Background()

	res, err := store.Put(ctx, MarkdownPath("u1", "d1"), []byte("# hello"), PutOptions{
		Access:          AccessPublic,
		ContentType:     "text/markdown",
		AddRandomSuffix: true,
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.URL, "http://localhost:3000/uploads/u1/markdown/d1-"))
	assert.Equal(t, int64(7), res.Size)

	data, err := store.Get(ctx, res.URL)
	require.NoError(t, err)
	assert.Equal(t, "# hello", string(data))

	_, err = store.Get(ctx, "http://localhost:3000/uploads/u1/markdown/missing.md")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHTTPStore_Put(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/u1/documents/d1.pdf", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "1", r.Header.Get("x-add-random-suffix"))
		assert.Equal(t, "application/pdf", r.Header.Get("x-content-type"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "pdfbytes", string(body))
		_, _ = w.Write([]byte(`{"url":"https://blob.example/u1/documents/d1-abc.pdf","pathname":"u1/documents/d1-abc.pdf"}`))
	}))
	defer srv.Close()

	store := NewHTTPStore(srv.URL, "tok", srv.Client())
	res, err := store.Put(context.Background(), RawPath("u1", "d1", "pdf"), []byte("pdfbytes"), PutOptions{
		ContentType:     "application/pdf",
		AddRandomSuffix: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "https://blob.example/u1/documents/d1-abc.pdf", res.URL)
	assert.Equal(t, "application/pdf", res.ContentType)
	assert.Equal(t, int64(8), res.Size)
}

func TestHTTPStore_GetNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := NewHTTPStore(srv.URL, "tok", srv.Client()).Get(context.Background(), srv.URL+"/x")
	assert.ErrorIs(t, err, ErrNotFound)
}

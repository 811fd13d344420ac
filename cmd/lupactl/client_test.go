package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientDo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/v1/projects/p1/deployments/d1/promote":
			assert.Equal(t, http.MethodPatch, r.Method)
			assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			_, _ = w.Write([]byte(`{"success":true,"message":"ok","data":{"deployment_id":"d1","environment":"production","txid":"42"}}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"success":false,"error":{"code":"DEPLOYMENT_NOT_READY","message":"not ready"}}`))
		}
	}))
	defer srv.Close()

	c := newClient(srv.URL+"/", "tok")

	var out environmentChange
	require.NoError(t, c.do(context.Background(), http.MethodPatch, projectPath("p1", "/deployments/d1/promote"), nil, nil, &out))
	assert.Equal(t, "42", out.TxId)
	require.NotNil(t, out.Environment)
	assert.Equal(t, "production", *out.Environment)

	err := c.do(context.Background(), http.MethodPatch, projectPath("p1", "/deployments/d2/promote"), nil, nil, &out)
	var apiErr *apiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "DEPLOYMENT_NOT_READY", apiErr.Code)
}

func TestReadLines(t *testing.T) {
	path := t.TempDir() + "/urls.txt"
	require.NoError(t, writeFile(path, "https://a.example/x\n\n# comment\n  https://b.example/y  \n"))

	lines, err := readLines(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example/x", "https://b.example/y"}, lines)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "a b", truncate(" a \n b ", 10))
	assert.Equal(t, "abc...", truncate("abcdef", 3))
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}

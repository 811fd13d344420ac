package vector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexClient_UpsertAndQuery(t *testing.T) {
	var upserted []Record
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/upsert-data":
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&upserted))
			_, _ = w.Write([]byte(`{"result":"Success"}`))
		case "/query-data":
			var q QueryRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&q))
			assert.Equal(t, 3, q.TopK)
			_, _ = w.Write([]byte(`{"result":[{"id":"c1","score":0.9,"data":"hello"}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := NewIndexClient(&IndexConfig{ID: "idx", Endpoint: srv.URL, Token: "tok"}, srv.Client())

	err := client.Upsert(context.Background(), []Record{{ID: "c1", Data: "hello"}})
	require.NoError(t, err)
	require.Len(t, upserted, 1)
	assert.Equal(t, "c1", upserted[0].ID)

	results, err := client.Query(context.Background(), QueryRequest{Data: "hi", TopK: 3})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "hello", results[0].Data)
}

func TestIndexClient_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewIndexClient(&IndexConfig{ID: "idx", Endpoint: srv.URL, Token: "tok"}, srv.Client())
	err := client.Upsert(context.Background(), []Record{{ID: "c1", Data: "x"}})

	var providerErr *VectorProviderError
	require.ErrorAs(t, err, &providerErr)
	assert.Equal(t, http.StatusTooManyRequests, providerErr.StatusCode)
}

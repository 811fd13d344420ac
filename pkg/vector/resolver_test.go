package vector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"lupa-be/pkg/kv"
	"lupa-be/pkg/secret"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type fixture struct {
	resolver *Resolver
	store    *kv.MemoryStore
	clock    *fakeClock
	calls    *int32
	status   *int32
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	var calls int32
	status := int32(http.StatusOK)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "Basic mgmt-key", r.Header.Get("Authorization"))
		assert.Equal(t, "/v2/vector/index/idx-1", r.URL.Path)
		if s := atomic.LoadInt32(&status); s != http.StatusOK {
			w.WriteHeader(int(s))
			_, _ = w.Write([]byte(`{"error":"nope"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(IndexConfig{ID: "idx-1", Endpoint: "idx-1.upstash.io", Token: "plain-token"})
	}))
	t.Cleanup(srv.Close)

	cipher, err := secret.NewCipher("test-secret")
	require.NoError(t, err)

	store := kv.NewMemoryStore()
	clock := &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	cache := NewConfigCache(store, cipher, clock, DefaultConfigTTL)
	mgmt := NewManagementClient(srv.URL, "mgmt-key", srv.Client())

	return &fixture{
		resolver: NewResolver(cache, store, mgmt, nil),
		store:    store,
		clock:    clock,
		calls:    &calls,
		status:   &status,
	}
}

func (f *fixture) callCount() int32 { return atomic.LoadInt32(f.calls) }

func TestGetVectorIndex_NotConfigured(t *testing.T) {
	f := newFixture(t)

	_, err := f.resolver.GetVectorIndex(context.Background(), "dep-1", GetOptions{})
	var notConfigured *VectorIndexNotConfiguredError
	require.ErrorAs(t, err, &notConfigured)
	assert.Equal(t, "dep-1", notConfigured.DeploymentID)
	assert.Zero(t, f.callCount())
}

func TestGetVectorIndex_CachesEncryptedToken(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.resolver.SetIndexPointer(ctx, "dep-1", "idx-1"))

	client, err := f.resolver.GetVectorIndex(ctx, "dep-1", GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, "https://idx-1.upstash.io", client.Endpoint())
	assert.EqualValues(t, 1, f.callCount())

	raw, ok, err := f.store.Get(ctx, ConfigKey("dep-1"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotContains(t, raw, "plain-token")

	_, err = f.resolver.GetVectorIndex(ctx, "dep-1", GetOptions{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, f.callCount(), "second call must be served from cache")
}

func TestGetVectorIndex_SkipCacheAlwaysResolves(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.resolver.SetIndexPointer(ctx, "dep-1", "idx-1"))

	for i := 1; i <= 3; i++ {
		_, err := f.resolver.GetVectorIndex(ctx, "dep-1", GetOptions{SkipCache: true})
		require.NoError(t, err)
		assert.EqualValues(t, i, f.callCount())
	}
}

func TestGetVectorIndex_SkipCacheIgnoresCorruptEntry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.resolver.SetIndexPointer(ctx, "dep-1", "idx-1"))
	require.NoError(t, f.store.Set(ctx, ConfigKey("dep-1"), "garbage", 0))

	_, err := f.resolver.GetVectorIndex(ctx, "dep-1", GetOptions{SkipCache: true})
	require.NoError(t, err)
	assert.EqualValues(t, 1, f.callCount())
}

func TestGetVectorIndex_InvalidateForcesResolve(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.resolver.SetIndexPointer(ctx, "dep-1", "idx-1"))

	_, err := f.resolver.GetVectorIndex(ctx, "dep-1", GetOptions{})
	require.NoError(t, err)
	require.NoError(t, f.resolver.InvalidateVectorCache(ctx, "dep-1"))

	_, ok, _ := f.store.Get(ctx, ConfigKey("dep-1"))
	assert.False(t, ok)

	_, err = f.resolver.GetVectorIndex(ctx, "dep-1", GetOptions{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, f.callCount())
}

func TestGetVectorIndex_ExpiresLazily(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.resolver.SetIndexPointer(ctx, "dep-1", "idx-1"))

	_, err := f.resolver.GetVectorIndex(ctx, "dep-1", GetOptions{})
	require.NoError(t, err)

	f.clock.Advance(59 * time.Minute)
	_, err = f.resolver.GetVectorIndex(ctx, "dep-1", GetOptions{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, f.callCount())

	f.clock.Advance(2 * time.Minute)
	_, err = f.resolver.GetVectorIndex(ctx, "dep-1", GetOptions{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, f.callCount())
}

func TestGetVectorIndex_CorruptEntry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.resolver.SetIndexPointer(ctx, "dep-1", "idx-1"))

	tests := []struct {
		name  string
		value string
	}{
		{name: "not json", value: "garbage"},
		{name: "missing token", value: `{"id":"idx-1","endpoint":"e"}`},
		{name: "undecryptable token", value: `{"id":"idx-1","endpoint":"e","encryptedToken":"00:11:22"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, f.store.Set(ctx, ConfigKey("dep-1"), tt.value, 0))

			_, err := f.resolver.GetVectorIndex(ctx, "dep-1", GetOptions{})
			var corrupt *CorruptedCacheEntryError
			require.ErrorAs(t, err, &corrupt)

			require.NoError(t, f.resolver.InvalidateVectorCache(ctx, "dep-1"))
			_, err = f.resolver.GetVectorIndex(ctx, "dep-1", GetOptions{})
			require.NoError(t, err)
		})
	}
}

func TestGetVectorIndex_ProviderError(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.resolver.SetIndexPointer(ctx, "dep-1", "idx-1"))
	atomic.StoreInt32(f.status, http.StatusUnauthorized)

	_, err := f.resolver.GetVectorIndex(ctx, "dep-1", GetOptions{})
	var providerErr *VectorProviderError
	require.ErrorAs(t, err, &providerErr)
	assert.Equal(t, http.StatusUnauthorized, providerErr.StatusCode)

	_, ok, _ := f.store.Get(ctx, ConfigKey("dep-1"))
	assert.False(t, ok, "failed resolution must not populate the cache")
}

package vector

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"lupa-be/pkg/kv"
)

type GetOptions struct {
	// SkipCache forces resolution through the management API. The cache is
	// neither read nor consulted for expiry; the fresh config is written back.
	SkipCache bool
}

// Resolver hands out index clients for deployments.
type Resolver struct {
	cache      *ConfigCache
	pointers   kv.Store
	mgmt       *ManagementClient
	httpClient *http.Client
}

func NewResolver(cache *ConfigCache, pointers kv.Store, mgmt *ManagementClient, httpClient *http.Client) *Resolver {
	return &Resolver{cache: cache, pointers: pointers, mgmt: mgmt, httpClient: httpClient}
}

// GetVectorIndex returns a client for the deployment's index. A corrupted
// cache entry is reported as CorruptedCacheEntryError and left in place;
// retrying is the caller's decision.
func (r *Resolver) GetVectorIndex(ctx context.Context, deploymentID string, opts GetOptions) (*IndexClient, error) {
	if !opts.SkipCache {
		cfg, err := r.cache.Get(ctx, deploymentID)
		if err != nil {
			var corrupt *CorruptedCacheEntryError
			if errors.As(err, &corrupt) {
				recordCacheCorrupt()
			}
			return nil, err
		}
		if cfg != nil {
			recordCacheHit()
			return NewIndexClient(cfg, r.httpClient), nil
		}
	}
	recordCacheMiss()

	indexID, ok, err := r.pointers.Get(ctx, PointerKey(deploymentID))
	if err != nil {
		return nil, fmt.Errorf("read vector index pointer: %w", err)
	}
	if !ok || indexID == "" {
		return nil, &VectorIndexNotConfiguredError{DeploymentID: deploymentID}
	}

	cfg, err := r.mgmt.GetIndex(ctx, indexID)
	if err != nil {
		return nil, err
	}

	if err := r.cache.Set(ctx, deploymentID, cfg); err != nil {
		return nil, err
	}

	return NewIndexClient(cfg, r.httpClient), nil
}

// InvalidateVectorCache evicts the cached config unconditionally.
func (r *Resolver) InvalidateVectorCache(ctx context.Context, deploymentID string) error {
	return r.cache.Invalidate(ctx, deploymentID)
}

// SetIndexPointer records which provider index backs a deployment.
func (r *Resolver) SetIndexPointer(ctx context.Context, deploymentID, indexID string) error {
	return r.pointers.Set(ctx, PointerKey(deploymentID), indexID, 0)
}

// ClearIndexPointer removes the pointer and any cached config.
func (r *Resolver) ClearIndexPointer(ctx context.Context, deploymentID string) error {
	return r.pointers.Del(ctx, PointerKey(deploymentID), ConfigKey(deploymentID))
}

// Management exposes the underlying management client for index provisioning.
func (r *Resolver) Management() *ManagementClient { return r.mgmt }

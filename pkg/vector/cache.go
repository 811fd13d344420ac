package vector

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"lupa-be/pkg/kv"
	"lupa-be/pkg/secret"
)

const (
	DefaultConfigTTL = 60 * time.Minute

	configKeyPrefix  = "vectorConfig:"
	pointerKeyPrefix = "vectorIndexId:"
)

func ConfigKey(deploymentID string) string  { return configKeyPrefix + deploymentID }
func PointerKey(deploymentID string) string { return pointerKeyPrefix + deploymentID }

// IndexConfig is what the management API returns for an index. Token is
// plaintext and must never be written to the cache as is.
type IndexConfig struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	Endpoint string `json:"endpoint"`
	Token    string `json:"token"`
}

type cachedConfig struct {
	ID             string    `json:"id"`
	Endpoint       string    `json:"endpoint"`
	EncryptedToken string    `json:"encryptedToken"`
	ExpiresAt      time.Time `json:"expiresAt"`
}

// ConfigCache stores encrypted index configs keyed by deployment id. Expiry
// is checked against the injected clock on read; nothing refreshes entries
// ahead of time.
type ConfigCache struct {
	store  kv.Store
	cipher *secret.Cipher
	clock  Clock
	ttl    time.Duration
}

func NewConfigCache(store kv.Store, cipher *secret.Cipher, clock Clock, ttl time.Duration) *ConfigCache {
	if clock == nil {
		clock = SystemClock
	}
	if ttl <= 0 {
		ttl = DefaultConfigTTL
	}
	return &ConfigCache{store: store, cipher: cipher, clock: clock, ttl: ttl}
}

// Get returns nil on a miss or an expired entry.
func (c *ConfigCache) Get(ctx context.Context, deploymentID string) (*IndexConfig, error) {
	raw, ok, err := c.store.Get(ctx, ConfigKey(deploymentID))
	if err != nil {
		return nil, fmt.Errorf("read vector cache: %w", err)
	}
	if !ok {
		return nil, nil
	}

	var entry cachedConfig
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return nil, &CorruptedCacheEntryError{DeploymentID: deploymentID, Cause: err}
	}
	if entry.Endpoint == "" || entry.EncryptedToken == "" {
		return nil, &CorruptedCacheEntryError{DeploymentID: deploymentID, Cause: fmt.Errorf("missing endpoint or token")}
	}

	if !entry.ExpiresAt.IsZero() && !c.clock.Now().Before(entry.ExpiresAt) {
		_ = c.store.Del(ctx, ConfigKey(deploymentID))
		return nil, nil
	}

	token, err := c.cipher.Decrypt(entry.EncryptedToken)
	if err != nil {
		return nil, &CorruptedCacheEntryError{DeploymentID: deploymentID, Cause: err}
	}

	return &IndexConfig{ID: entry.ID, Endpoint: entry.Endpoint, Token: token}, nil
}

func (c *ConfigCache) Set(ctx context.Context, deploymentID string, cfg *IndexConfig) error {
	encrypted, err := c.cipher.Encrypt(cfg.Token)
	if err != nil {
		return fmt.Errorf("encrypt token: %w", err)
	}

	data, err := json.Marshal(cachedConfig{
		ID:             cfg.ID,
		Endpoint:       cfg.Endpoint,
		EncryptedToken: encrypted,
		ExpiresAt:      c.clock.Now().Add(c.ttl),
	})
	if err != nil {
		return err
	}

	return c.store.Set(ctx, ConfigKey(deploymentID), string(data), c.ttl)
}

func (c *ConfigCache) Invalidate(ctx context.Context, deploymentID string) error {
	return c.store.Del(ctx, ConfigKey(deploymentID))
}

package vector

import "fmt"

// VectorIndexNotConfiguredError means the deployment has no index pointer.
// Not retryable.
type VectorIndexNotConfiguredError struct {
	DeploymentID string
}

func (e *VectorIndexNotConfiguredError) Error() string {
	return fmt.Sprintf("vector index not configured for deployment %s", e.DeploymentID)
}

func (e *VectorIndexNotConfiguredError) Code() string    { return "VECTOR_INDEX_NOT_CONFIGURED" }
func (e *VectorIndexNotConfiguredError) HTTPStatus() int { return 409 }

// VectorProviderError is a non-2xx answer from the provider's management or
// data API.
type VectorProviderError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *VectorProviderError) Error() string {
	return fmt.Sprintf("vector provider %s failed: status %d: %s", e.Op, e.StatusCode, e.Body)
}

func (e *VectorProviderError) Code() string    { return "VECTOR_PROVIDER_ERROR" }
func (e *VectorProviderError) HTTPStatus() int { return 502 }

// CorruptedCacheEntryError means a cached config could not be decoded or its
// token could not be decrypted. Callers invalidate and ask the requester to
// retry once.
type CorruptedCacheEntryError struct {
	DeploymentID string
	Cause        error
}

func (e *CorruptedCacheEntryError) Error() string {
	return fmt.Sprintf("corrupted vector cache entry for deployment %s: %v", e.DeploymentID, e.Cause)
}

func (e *CorruptedCacheEntryError) Unwrap() error { return e.Cause }

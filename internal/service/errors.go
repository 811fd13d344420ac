package service

import (
	"fmt"
	"net/http"
)

type ProjectNotFoundError struct {
	ProjectID string
}

func (e *ProjectNotFoundError) Error() string {
	return fmt.Sprintf("project %s not found", e.ProjectID)
}

func (e *ProjectNotFoundError) Code() string    { return "PROJECT_NOT_FOUND" }
func (e *ProjectNotFoundError) HTTPStatus() int { return http.StatusNotFound }

type DeploymentNotFoundError struct {
	DeploymentID string
}

func (e *DeploymentNotFoundError) Error() string {
	return fmt.Sprintf("deployment %s not found", e.DeploymentID)
}

func (e *DeploymentNotFoundError) Code() string    { return "DEPLOYMENT_NOT_FOUND" }
func (e *DeploymentNotFoundError) HTTPStatus() int { return http.StatusNotFound }

type DeploymentNotInProjectError struct {
	DeploymentID string
	ProjectID    string
}

func (e *DeploymentNotInProjectError) Error() string {
	return fmt.Sprintf("deployment %s does not belong to project %s", e.DeploymentID, e.ProjectID)
}

func (e *DeploymentNotInProjectError) Code() string    { return "DEPLOYMENT_NOT_IN_PROJECT" }
func (e *DeploymentNotInProjectError) HTTPStatus() int { return http.StatusBadRequest }

type DeploymentNotReadyError struct {
	DeploymentID string
	Status       string
}

func (e *DeploymentNotReadyError) Error() string {
	return fmt.Sprintf("deployment %s is %s, only ready deployments can be promoted", e.DeploymentID, e.Status)
}

func (e *DeploymentNotReadyError) Code() string    { return "DEPLOYMENT_NOT_READY" }
func (e *DeploymentNotReadyError) HTTPStatus() int { return http.StatusBadRequest }

type DeploymentNotInProductionError struct {
	DeploymentID string
}

func (e *DeploymentNotInProductionError) Error() string {
	return fmt.Sprintf("deployment %s is not in production", e.DeploymentID)
}

func (e *DeploymentNotInProductionError) Code() string    { return "DEPLOYMENT_NOT_IN_PRODUCTION" }
func (e *DeploymentNotInProductionError) HTTPStatus() int { return http.StatusBadRequest }

type InvalidEnvironmentError struct {
	Environment string
}

func (e *InvalidEnvironmentError) Error() string {
	return fmt.Sprintf("invalid environment %q", e.Environment)
}

func (e *InvalidEnvironmentError) Code() string    { return "INVALID_ENVIRONMENT" }
func (e *InvalidEnvironmentError) HTTPStatus() int { return http.StatusBadRequest }

type DocumentNotFoundError struct {
	DocumentID string
	Path       string
}

func (e *DocumentNotFoundError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("no document at %s", e.Path)
	}
	return fmt.Sprintf("document %s not found", e.DocumentID)
}

func (e *DocumentNotFoundError) Code() string    { return "DOCUMENT_NOT_FOUND" }
func (e *DocumentNotFoundError) HTTPStatus() int { return http.StatusNotFound }

type DocumentExistsError struct {
	Folder string
	Name   string
}

func (e *DocumentExistsError) Error() string {
	return fmt.Sprintf("a document named %q already exists in %s", e.Name, e.Folder)
}

func (e *DocumentExistsError) Code() string    { return "DOCUMENT_EXISTS" }
func (e *DocumentExistsError) HTTPStatus() int { return http.StatusConflict }

type SnapshotNotFoundError struct {
	DocumentID string
	Version    int
}

func (e *SnapshotNotFoundError) Error() string {
	if e.Version > 0 {
		return fmt.Sprintf("document %s has no version %d", e.DocumentID, e.Version)
	}
	return fmt.Sprintf("document %s has no snapshots", e.DocumentID)
}

func (e *SnapshotNotFoundError) Code() string    { return "SNAPSHOT_NOT_FOUND" }
func (e *SnapshotNotFoundError) HTTPStatus() int { return http.StatusNotFound }

type InvalidPathError struct {
	Path  string
	Cause error
}

func (e *InvalidPathError) Error() string {
	return fmt.Sprintf("invalid path %q: %v", e.Path, e.Cause)
}

func (e *InvalidPathError) Unwrap() error   { return e.Cause }
func (e *InvalidPathError) Code() string    { return "INVALID_PATH" }
func (e *InvalidPathError) HTTPStatus() int { return http.StatusBadRequest }

// VectorCacheInvalidatedError tells the caller the cached index config was
// corrupt and has been evicted. One retry is expected to succeed.
type VectorCacheInvalidatedError struct {
	DeploymentID string
}

func (e *VectorCacheInvalidatedError) Error() string {
	return fmt.Sprintf("vector index cache for deployment %s was invalid and has been cleared, retry the request", e.DeploymentID)
}

func (e *VectorCacheInvalidatedError) Code() string    { return "VECTOR_CACHE_INVALIDATED" }
func (e *VectorCacheInvalidatedError) HTTPStatus() int { return http.StatusServiceUnavailable }

type SearchUnavailableError struct {
	DeploymentID string
}

func (e *SearchUnavailableError) Error() string {
	return fmt.Sprintf("deployment %s has no searchable index", e.DeploymentID)
}

func (e *SearchUnavailableError) Code() string    { return "SEARCH_UNAVAILABLE" }
func (e *SearchUnavailableError) HTTPStatus() int { return http.StatusConflict }

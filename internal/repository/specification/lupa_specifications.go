package specification

import "github.com/google/uuid"

func ByProject(id uuid.UUID) Specification { return Filter("project_id", id) }

func ByDocument(id uuid.UUID) Specification { return Filter("document_id", id) }

func ByDeployment(id uuid.UUID) Specification { return Filter("deployment_id", id) }

func BySnapshot(id uuid.UUID) Specification { return Filter("snapshot_id", id) }

func ByOrg(orgID string) Specification { return Filter("org_id", orgID) }

func InFolder(folder string) Specification { return Filter("folder", folder) }

func WithName(name string) Specification { return Filter("name", name) }

func WithStatus(status string) Specification { return Filter("status", status) }

func WithEnvironment(env string) Specification { return Filter("environment", env) }

// NewestFirst orders by creation time, latest first. The first row is the
// current snapshot of a document.
func NewestFirst() Specification { return OrderBy{Field: "created_at", Desc: true} }

func OldestFirst() Specification { return OrderBy{Field: "created_at"} }

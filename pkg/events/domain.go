package events

import "time"

const (
	SnapshotSucceeded            = "SNAPSHOT_SUCCEEDED"
	SnapshotFailed               = "SNAPSHOT_FAILED"
	DeploymentReady              = "DEPLOYMENT_READY"
	DeploymentFailed             = "DEPLOYMENT_FAILED"
	DeploymentEnvironmentChanged = "DEPLOYMENT_ENVIRONMENT_CHANGED"
)

// Subject returns the bus subject an event type is published on.
func Subject(eventType string) string {
	return "events." + eventType
}

func NewSnapshotFinished(projectID, documentID, snapshotID, status, reason string) BaseEvent {
	eventType := SnapshotSucceeded
	if status != "success" {
		eventType = SnapshotFailed
	}
	data := map[string]interface{}{
		"project_id":  projectID,
		"document_id": documentID,
		"snapshot_id": snapshotID,
		"status":      status,
	}
	if reason != "" {
		data["error_reason"] = reason
	}
	return BaseEvent{Type: eventType, Data: data, OccurredAt: time.Now()}
}

func NewDeploymentBuilt(projectID, deploymentID string, err error) BaseEvent {
	data := map[string]interface{}{
		"project_id":    projectID,
		"deployment_id": deploymentID,
	}
	eventType := DeploymentReady
	if err != nil {
		eventType = DeploymentFailed
		data["error_reason"] = err.Error()
	}
	return BaseEvent{Type: eventType, Data: data, OccurredAt: time.Now()}
}

// NewEnvironmentChanged carries the committing transaction's id so clients
// holding optimistic state can confirm it once their live query catches up.
func NewEnvironmentChanged(projectID, deploymentID string, environment *string, previousProductionID, txid string) BaseEvent {
	data := map[string]interface{}{
		"project_id":    projectID,
		"deployment_id": deploymentID,
		"environment":   nil,
		"txid":          txid,
	}
	if environment != nil {
		data["environment"] = *environment
	}
	if previousProductionID != "" {
		data["previous_production_id"] = previousProductionID
	}
	return BaseEvent{Type: DeploymentEnvironmentChanged, Data: data, OccurredAt: time.Now()}
}

// ProjectID pulls the owning project out of an event payload.
func ProjectID(e Event) string {
	if v, ok := e.Payload()["project_id"].(string); ok {
		return v
	}
	return ""
}

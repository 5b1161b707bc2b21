package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// NotFoundError is returned when a referenced deployment, active deployment
// or runtime topology does not exist. Never retried.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

// MissingPluginError is returned when a cloud id has no resolvable provider.
type MissingPluginError struct {
	CloudID string
}

func (e *MissingPluginError) Error() string {
	return fmt.Sprintf("no provider plugin registered for cloud %q", e.CloudID)
}

// CloudDisabledError is returned when the target cloud exists but is
// administratively disabled. Checked before any provider call.
type CloudDisabledError struct {
	CloudID string
}

func (e *CloudDisabledError) Error() string {
	return fmt.Sprintf("cloud %q is disabled", e.CloudID)
}

// ConflictError is returned when a deploy is requested for an environment
// that already has an active deployment.
type ConflictError struct {
	CloudID      string
	TopologyID   string
	DeploymentID uuid.UUID
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("deployment %s is already active for topology %q on cloud %q",
		e.DeploymentID, e.TopologyID, e.CloudID)
}

// ConsistencyError signals that storage holds more than one active
// deployment for a single environment. The anomaly is surfaced for operator
// intervention instead of being silently resolved.
type ConsistencyError struct {
	Environment string
	Count       int
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("found %d active deployments for environment %q, expected at most one",
		e.Count, e.Environment)
}

// DeploymentError wraps any provider failure during deploy. The deployment
// record is left in its current status; resolution is expected via a
// subsequent status check.
type DeploymentError struct {
	DeploymentID uuid.UUID
	Err          error
}

func (e *DeploymentError) Error() string {
	return fmt.Sprintf("provider failed to deploy %s: %v", e.DeploymentID, e.Err)
}

func (e *DeploymentError) Unwrap() error { return e.Err }

// UndeploymentError wraps any provider failure during undeploy.
type UndeploymentError struct {
	DeploymentID uuid.UUID
	Err          error
}

func (e *UndeploymentError) Error() string {
	return fmt.Sprintf("provider failed to undeploy %s: %v", e.DeploymentID, e.Err)
}

func (e *UndeploymentError) Unwrap() error { return e.Err }

// OperationError wraps failures of operation execution. It does not affect
// deployment status.
type OperationError struct {
	Operation string
	Err       error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("operation %q failed: %v", e.Operation, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }

// ErrorCode maps an error to the stable machine-readable code surfaced to
// callers of the HTTP API and the CLI.
func ErrorCode(err error) string {
	var (
		notFound      *NotFoundError
		missingPlugin *MissingPluginError
		cloudDisabled *CloudDisabledError
		conflict      *ConflictError
		consistency   *ConsistencyError
		deployErr     *DeploymentError
		undeployErr   *UndeploymentError
		operationErr  *OperationError
	)
	switch {
	case errors.As(err, &notFound):
		return "not_found"
	case errors.As(err, &missingPlugin):
		return "missing_plugin"
	case errors.As(err, &cloudDisabled):
		return "cloud_disabled"
	case errors.As(err, &conflict):
		return "deployment_conflict"
	case errors.As(err, &consistency):
		return "consistency_error"
	case errors.As(err, &deployErr):
		return "deployment_error"
	case errors.As(err, &undeployErr):
		return "undeployment_error"
	case errors.As(err, &operationErr):
		return "operation_error"
	default:
		return "internal_error"
	}
}

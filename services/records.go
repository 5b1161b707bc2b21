package services

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/coxswain-cd/coxswain/domain"
)

// DeploymentRecordService owns the lifecycle of deployment records:
// creation, active-deployment lookup, status and end-date updates. It does
// not talk to providers and does not serialize callers; the engine holds
// the per-environment locks around these operations.
type DeploymentRecordService struct {
	deployments DeploymentRepository
	topologies  RuntimeTopologyRepository
}

func NewDeploymentRecordService(deployments DeploymentRepository, topologies RuntimeTopologyRepository) *DeploymentRecordService {
	return &DeploymentRecordService{
		deployments: deployments,
		topologies:  topologies,
	}
}

// Create allocates a new deployment record in DEPLOYMENT_IN_PROGRESS and
// persists the runtime topology copy under the new deployment's id. The
// caller must have verified the active-deployment invariant under its
// serialization discipline.
func (s *DeploymentRecordService) Create(
	topology *domain.Topology,
	source domain.DeploymentSource,
	setup domain.DeploymentSetup,
	cloudID string,
) (*domain.Deployment, error) {
	deployment := domain.NewDeployment(topology.ID, source, setup, cloudID)

	if err := s.deployments.Create(deployment); err != nil {
		return nil, fmt.Errorf("failed to create deployment record: %w", err)
	}

	// The runtime copy is keyed by the deployment id so runtime mutations
	// never touch the template.
	runtime := topology.Copy(deployment.ID.String())
	if err := s.topologies.Save(deployment.ID, runtime); err != nil {
		return nil, fmt.Errorf("failed to save runtime topology for deployment %s: %w", deployment.ID, err)
	}

	slog.Info("Created deployment record",
		"deployment_id", deployment.ID,
		"topology_id", topology.ID,
		"cloud_id", cloudID,
		"environment_id", setup.EnvironmentID)
	return deployment, nil
}

// ActiveByEnvironment returns the single active deployment for an
// environment, or nil when there is none. Multiple active deployments are
// an internal consistency error and are surfaced, never silently resolved.
func (s *DeploymentRecordService) ActiveByEnvironment(environmentID string) (*domain.Deployment, error) {
	matches, err := s.deployments.FindActiveByEnvironment(environmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query active deployment for environment %q: %w", environmentID, err)
	}
	return s.singleActive(matches, "environment "+environmentID)
}

// ActiveByTarget returns the single active deployment for a
// (cloudID, topologyID) pair, or nil when there is none.
func (s *DeploymentRecordService) ActiveByTarget(cloudID, topologyID string) (*domain.Deployment, error) {
	matches, err := s.deployments.FindActiveByTarget(cloudID, topologyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query active deployment for topology %q on cloud %q: %w", topologyID, cloudID, err)
	}
	return s.singleActive(matches, domain.EnvironmentKey(cloudID, topologyID))
}

// ActiveByEnvironmentMandatory is ActiveByEnvironment failing with NotFound
// when no deployment is active.
func (s *DeploymentRecordService) ActiveByEnvironmentMandatory(environmentID string) (*domain.Deployment, error) {
	deployment, err := s.ActiveByEnvironment(environmentID)
	if err != nil {
		return nil, err
	}
	if deployment == nil {
		return nil, &NotFoundError{Resource: "active deployment for environment", ID: environmentID}
	}
	return deployment, nil
}

func (s *DeploymentRecordService) singleActive(matches []*domain.Deployment, scope string) (*domain.Deployment, error) {
	switch len(matches) {
	case 0:
		return nil, nil
	case 1:
		return matches[0], nil
	default:
		slog.Error("Active-deployment invariant violated",
			"scope", scope,
			"count", len(matches))
		return nil, &ConsistencyError{Environment: scope, Count: len(matches)}
	}
}

// Close sets the end date of a deployment. Closing an already closed
// deployment is a no-op.
func (s *DeploymentRecordService) Close(deployment *domain.Deployment) error {
	if deployment.EndDate != nil {
		return nil
	}
	now := time.Now()
	deployment.EndDate = &now
	if err := s.deployments.Update(deployment); err != nil {
		return fmt.Errorf("failed to close deployment %s: %w", deployment.ID, err)
	}
	slog.Info("Closed deployment", "deployment_id", deployment.ID)
	return nil
}

// UpdateStatus persists a new status. A transition to UNDEPLOYED also
// closes the deployment.
func (s *DeploymentRecordService) UpdateStatus(deployment *domain.Deployment, status domain.DeploymentStatus) error {
	deployment.Status = status
	if status == domain.DeploymentStatusUndeployed && deployment.EndDate == nil {
		now := time.Now()
		deployment.EndDate = &now
	}
	if err := s.deployments.Update(deployment); err != nil {
		return fmt.Errorf("failed to update status of deployment %s: %w", deployment.ID, err)
	}
	return nil
}

// GetMandatory returns the deployment with the given id, failing with
// NotFound when it does not exist.
func (s *DeploymentRecordService) GetMandatory(deploymentID uuid.UUID) (*domain.Deployment, error) {
	return s.deployments.FindByID(deploymentID)
}

// List returns deployments matching the filter, most recent first.
func (s *DeploymentRecordService) List(filter DeploymentFilter, from, size int) ([]*domain.Deployment, error) {
	return s.deployments.List(filter, from, size)
}

// RuntimeTopology loads the deployment-scoped topology copy.
func (s *DeploymentRecordService) RuntimeTopology(deploymentID uuid.UUID) (*domain.Topology, error) {
	return s.topologies.FindByDeploymentID(deploymentID)
}

// SaveRuntimeTopology overwrites the deployment-scoped topology copy. The
// caller must hold the runtime-topology lock for the deployment.
func (s *DeploymentRecordService) SaveRuntimeTopology(deploymentID uuid.UUID, topology *domain.Topology) error {
	return s.topologies.Save(deploymentID, topology)
}

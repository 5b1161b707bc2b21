// Package domain provides core domain types and entities for Coxswain.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// DeploymentSetup is the snapshot of deployment inputs captured at deploy
// time. It is immutable once the deployment record has been created.
type DeploymentSetup struct {
	EnvironmentID   string
	VersionID       string
	InputProperties map[string]string
	InputArtifacts  map[string]string
}

// DeploymentSource identifies what is being deployed: an application or an
// ad-hoc test topology packaged as a CSAR.
type DeploymentSource struct {
	ID   string
	Name string
	Type SourceType
}

// Deployment is the durable record of one attempt to realize a topology on
// a cloud target. EndDate == nil means the deployment is currently active.
type Deployment struct {
	ID         uuid.UUID
	CloudID    string
	SourceID   string
	SourceName string
	SourceType SourceType
	TopologyID string
	Setup      DeploymentSetup
	Status     DeploymentStatus
	StartDate  time.Time
	EndDate    *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func NewDeployment(topologyID string, source DeploymentSource, setup DeploymentSetup, cloudID string) *Deployment {
	sourceName := source.Name
	if sourceName == "" {
		// A name is mandatory for recipe id generation; fall back to a
		// generated one for ad-hoc test topologies.
		sourceName = uuid.New().String()
	}
	return &Deployment{
		ID:         uuid.New(),
		CloudID:    cloudID,
		SourceID:   source.ID,
		SourceName: sourceName,
		SourceType: source.Type,
		TopologyID: topologyID,
		Setup:      setup,
		Status:     DeploymentStatusDeploymentInProgress,
		StartDate:  time.Now(),
	}
}

// Active reports whether the deployment has not been closed yet.
func (d *Deployment) Active() bool {
	return d.EndDate == nil
}

// EnvironmentKey returns the logical environment the active-deployment
// invariant is scoped to.
func (d *Deployment) EnvironmentKey() string {
	return EnvironmentKey(d.CloudID, d.TopologyID)
}

// EnvironmentKey builds the (cloudID x topologyID) pairing used to scope
// per-environment serialization and the active-deployment invariant.
func EnvironmentKey(cloudID, topologyID string) string {
	return cloudID + "/" + topologyID
}

// InstanceInformation is the provider's view of a single instance of a node
// template. The engine only relays and caches it, it never computes it.
type InstanceInformation struct {
	State             string
	Status            InstanceStatus
	Properties        map[string]string
	Attributes        map[string]string
	RuntimeProperties map[string]string
}

// InstancesInformation maps node template id to instance index to the
// latest known information about that instance.
type InstancesInformation map[string]map[string]InstanceInformation

// OperationRequest describes a named operation to execute on a node of a
// deployed topology.
type OperationRequest struct {
	EnvironmentID  string
	NodeTemplateID string
	InstanceID     string
	Interface      string
	Operation      string
	Parameters     map[string]string
}

package services

import (
	"errors"

	"github.com/coxswain-cd/coxswain/domain"
)

// ContextBuilder converts a deployment record plus its topology into the
// immutable, provider-facing deployment context. Pure transformation, no
// I/O; the context is rebuilt for every provider call and never persisted.
type ContextBuilder struct{}

func NewContextBuilder() *ContextBuilder {
	return &ContextBuilder{}
}

// Build returns the full deployment context including the topology graph.
// The setup must have been validated upstream; a missing environment id
// here is a programmer error.
func (b *ContextBuilder) Build(topology *domain.Topology, setup domain.DeploymentSetup, deployment *domain.Deployment) (*domain.DeploymentContext, error) {
	if deployment == nil {
		return nil, errors.New("deployment is required to build a deployment context")
	}
	return &domain.DeploymentContext{
		DeploymentID: deployment.ID,
		RecipeID:     domain.RecipeID(deployment.SourceName, setup.EnvironmentID, setup.VersionID),
		Topology:     topology,
		Setup:        setup,
	}, nil
}

// BuildLight returns a context without the topology graph, sufficient for
// status, undeploy and operation calls.
func (b *ContextBuilder) BuildLight(deployment *domain.Deployment) (*domain.DeploymentContext, error) {
	return b.Build(nil, deployment.Setup, deployment)
}

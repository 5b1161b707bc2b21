package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/coxswain-cd/coxswain/domain"
)

// StatusCallback receives the deployment status reported by a provider. A
// provider may invoke it zero, one or multiple times for a single request.
type StatusCallback func(status domain.DeploymentStatus, err error)

// InstancesCallback receives per-node, per-instance runtime information.
type InstancesCallback func(info domain.InstancesInformation, err error)

// OperationCallback receives the per-instance results of an operation
// execution.
type OperationCallback func(results map[string]string, err error)

// Provider is the contract a cloud/PaaS plugin must implement. Deploy,
// Undeploy and Scale are fire-and-acknowledge: the returned error signals
// only command acceptance or immediate rejection, never completion. Actual
// completion is observed through Status polling or event emission.
//
// Providers own their internal runtime state exclusively; the engine never
// reaches into it.
type Provider interface {
	Deploy(ctx context.Context, dctx *domain.DeploymentContext) error
	Undeploy(ctx context.Context, dctx *domain.DeploymentContext) error
	Status(ctx context.Context, dctx *domain.DeploymentContext, cb StatusCallback)
	InstancesInformation(ctx context.Context, dctx *domain.DeploymentContext, runtime *domain.Topology, cb InstancesCallback)
	Scale(ctx context.Context, dctx *domain.DeploymentContext, nodeTemplateID string, delta int) error
	ExecuteOperation(ctx context.Context, dctx *domain.DeploymentContext, req domain.OperationRequest, cb OperationCallback)

	// EventsSince is the pull-model fallback for providers that cannot
	// push: it returns at most max events observed after since.
	EventsSince(since time.Time, max int) ([]domain.MonitorEvent, error)
}

// ProviderRegistry resolves a cloud id to a live provider instance.
type ProviderRegistry interface {
	Resolve(cloudID string) (Provider, error)
	Register(cloudID string, provider Provider)
	SetEnabled(cloudID string, enabled bool) error
	CloudIDs() []string
}

type providerRegistration struct {
	provider Provider
	enabled  bool
}

type providerRegistry struct {
	mu        sync.RWMutex
	providers map[string]*providerRegistration
}

func NewProviderRegistry() ProviderRegistry {
	return &providerRegistry{providers: make(map[string]*providerRegistration)}
}

func (r *providerRegistry) Register(cloudID string, provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[cloudID] = &providerRegistration{provider: provider, enabled: true}
}

func (r *providerRegistry) Resolve(cloudID string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.providers[cloudID]
	if !ok {
		return nil, &MissingPluginError{CloudID: cloudID}
	}
	if !reg.enabled {
		return nil, &CloudDisabledError{CloudID: cloudID}
	}
	return reg.provider, nil
}

func (r *providerRegistry) SetEnabled(cloudID string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.providers[cloudID]
	if !ok {
		return &MissingPluginError{CloudID: cloudID}
	}
	reg.enabled = enabled
	return nil
}

func (r *providerRegistry) CloudIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.providers))
	for id := range r.providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

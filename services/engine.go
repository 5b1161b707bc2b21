package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/coxswain-cd/coxswain/domain"
)

// keyedLocks is an arena of mutexes created on demand per key. Locks are
// never garbage collected within a process lifetime; the key space is the
// set of environments and deployments seen by this process.
type keyedLocks struct {
	locks sync.Map // string -> *sync.Mutex
}

func (k *keyedLocks) get(key string) *sync.Mutex {
	mu, _ := k.locks.LoadOrStore(key, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Engine drives the deployment/undeployment/scaling state machine against
// provider plugins and folds asynchronous provider results back into
// durable deployment state.
//
// Deploy and Undeploy for one environment (cloud x topology) are mutually
// exclusive via a per-environment lock; runtime topology writes are
// serialized per deployment id. Provider callbacks are always keyed by the
// deployment id they were issued for, never by environment, so a stale
// callback can never contaminate a newer deployment.
type Engine struct {
	records  *DeploymentRecordService
	registry ProviderRegistry
	builder  *ContextBuilder
	events   *EventService

	envLocks  keyedLocks
	topoLocks keyedLocks
}

func NewEngine(records *DeploymentRecordService, registry ProviderRegistry, events *EventService) *Engine {
	return &Engine{
		records:  records,
		registry: registry,
		builder:  NewContextBuilder(),
		events:   events,
	}
}

// Deploy deploys a topology on a cloud and returns the generated deployment
// id. The call returns once the provider has acknowledged the command; the
// caller is expected to poll Status for completion. A provider rejection is
// surfaced as a DeploymentError while the record stays in
// DEPLOYMENT_IN_PROGRESS, to be resolved by reconciliation.
func (e *Engine) Deploy(
	ctx context.Context,
	topology *domain.Topology,
	source domain.DeploymentSource,
	setup domain.DeploymentSetup,
	cloudID string,
) (uuid.UUID, error) {
	slog.Info("Deploying topology", "topology_id", topology.ID, "cloud_id", cloudID)

	// Resolve the provider before creating any record so a missing or
	// disabled cloud cannot leave an orphaned IN_PROGRESS record behind.
	provider, err := e.registry.Resolve(cloudID)
	if err != nil {
		return uuid.Nil, err
	}

	envKey := domain.EnvironmentKey(cloudID, topology.ID)
	lock := e.envLocks.get(envKey)
	lock.Lock()
	defer lock.Unlock()

	active, err := e.records.ActiveByTarget(cloudID, topology.ID)
	if err != nil {
		return uuid.Nil, err
	}
	if active != nil {
		return uuid.Nil, &ConflictError{
			CloudID:      cloudID,
			TopologyID:   topology.ID,
			DeploymentID: active.ID,
		}
	}

	deployment, err := e.records.Create(topology, source, setup, cloudID)
	if err != nil {
		return uuid.Nil, err
	}

	runtime, err := e.records.RuntimeTopology(deployment.ID)
	if err != nil {
		return uuid.Nil, err
	}
	dctx, err := e.builder.Build(runtime, setup, deployment)
	if err != nil {
		return uuid.Nil, err
	}

	if err := provider.Deploy(ctx, dctx); err != nil {
		// Deliberately no rollback: the record stays IN_PROGRESS and a
		// later status check resolves it.
		slog.Error("Provider rejected deploy command",
			"deployment_id", deployment.ID,
			"cloud_id", cloudID,
			"error", err)
		return deployment.ID, &DeploymentError{DeploymentID: deployment.ID, Err: err}
	}

	slog.Info("Deployed topology",
		"topology_id", topology.ID,
		"cloud_id", cloudID,
		"deployment_id", deployment.ID)
	return deployment.ID, nil
}

// Undeploy un-deploys a deployment by id.
func (e *Engine) Undeploy(ctx context.Context, deploymentID uuid.UUID) error {
	deployment, err := e.records.GetMandatory(deploymentID)
	if err != nil {
		return err
	}
	return e.undeploy(ctx, deployment)
}

// UndeployEnvironment un-deploys the active deployment of an environment,
// failing with NotFound when there is none.
func (e *Engine) UndeployEnvironment(ctx context.Context, environmentID string) error {
	deployment, err := e.records.ActiveByEnvironmentMandatory(environmentID)
	if err != nil {
		return err
	}
	return e.undeploy(ctx, deployment)
}

func (e *Engine) undeploy(ctx context.Context, deployment *domain.Deployment) error {
	slog.Info("Un-deploying deployment", "deployment_id", deployment.ID, "cloud_id", deployment.CloudID)

	provider, err := e.registry.Resolve(deployment.CloudID)
	if err != nil {
		return err
	}

	lock := e.envLocks.get(deployment.EnvironmentKey())
	lock.Lock()
	defer lock.Unlock()

	dctx, err := e.builder.BuildLight(deployment)
	if err != nil {
		return err
	}

	if err := provider.Undeploy(ctx, dctx); err != nil {
		slog.Error("Provider rejected undeploy command",
			"deployment_id", deployment.ID,
			"error", err)
		return &UndeploymentError{DeploymentID: deployment.ID, Err: err}
	}

	// End date is not set here; it is set only when the status later
	// resolves to UNDEPLOYED.
	if err := e.changeStatus(deployment, domain.DeploymentStatusUndeploymentInProgress); err != nil {
		return err
	}

	slog.Info("Un-deploy command accepted", "deployment_id", deployment.ID)
	return nil
}

// Scale grows or shrinks a node of the active deployment of an environment
// by delta instances. The runtime topology's policy owner (the node itself
// or its nearest hosted-on ancestor with a policy) is mutated and
// persisted before the provider is told to scale.
func (e *Engine) Scale(ctx context.Context, environmentID, nodeTemplateID string, delta int) error {
	deployment, err := e.records.ActiveByEnvironmentMandatory(environmentID)
	if err != nil {
		return err
	}

	provider, err := e.registry.Resolve(deployment.CloudID)
	if err != nil {
		return err
	}

	// Serialize the read-modify-write on the runtime topology document.
	lock := e.topoLocks.get(deployment.ID.String())
	lock.Lock()
	defer lock.Unlock()

	runtime, err := e.records.RuntimeTopology(deployment.ID)
	if err != nil {
		return err
	}

	owner, policy, err := runtime.ScalingPolicyOwner(nodeTemplateID)
	if err != nil {
		return fmt.Errorf("cannot scale node %q of deployment %s: %w", nodeTemplateID, deployment.ID, err)
	}
	policy.InitialInstances += delta

	if err := e.records.SaveRuntimeTopology(deployment.ID, runtime); err != nil {
		return err
	}

	slog.Info("Scaling node",
		"deployment_id", deployment.ID,
		"node_template_id", nodeTemplateID,
		"policy_owner", owner,
		"delta", delta,
		"initial_instances", policy.InitialInstances)

	dctx, err := e.builder.Build(runtime, deployment.Setup, deployment)
	if err != nil {
		return err
	}
	if err := provider.Scale(ctx, dctx, nodeTemplateID, delta); err != nil {
		return fmt.Errorf("provider failed to scale node %q of deployment %s: %w", nodeTemplateID, deployment.ID, err)
	}
	return nil
}

// Status reports the deployment status through cb. A nil deployment is
// implicitly UNDEPLOYED and answered synchronously without touching the
// provider. Otherwise the provider is queried; a reported UNDEPLOYED closes
// the deployment record (idempotently) before the result is forwarded.
func (e *Engine) Status(ctx context.Context, deployment *domain.Deployment, cb StatusCallback) error {
	if deployment == nil {
		cb(domain.DeploymentStatusUndeployed, nil)
		return nil
	}

	provider, err := e.registry.Resolve(deployment.CloudID)
	if err != nil {
		return err
	}

	dctx, err := e.builder.BuildLight(deployment)
	if err != nil {
		return err
	}

	// The callback is keyed by deployment id: it re-reads the record so a
	// late or repeated delivery never mutates state that a newer
	// deployment owns, and closing is idempotent.
	deploymentID := deployment.ID
	provider.Status(ctx, dctx, func(status domain.DeploymentStatus, err error) {
		if err != nil {
			cb(status, err)
			return
		}
		if status == domain.DeploymentStatusUndeployed {
			if foldErr := e.foldUndeployed(deploymentID); foldErr != nil {
				slog.Error("Failed to fold undeployed status into deployment record",
					"deployment_id", deploymentID,
					"error", foldErr)
			}
		}
		cb(status, nil)
	})
	return nil
}

// foldUndeployed marks a deployment as undeployed and closed. Safe to call
// any number of times; only the first call on an active record mutates
// state and emits events.
func (e *Engine) foldUndeployed(deploymentID uuid.UUID) error {
	deployment, err := e.records.GetMandatory(deploymentID)
	if err != nil {
		return err
	}
	if !deployment.Active() {
		return nil
	}
	return e.changeStatus(deployment, domain.DeploymentStatusUndeployed)
}

// InstancesInformation reports per-node, per-instance runtime information
// through cb. A nil deployment yields an empty result synchronously.
func (e *Engine) InstancesInformation(ctx context.Context, deployment *domain.Deployment, cb InstancesCallback) error {
	if deployment == nil {
		cb(domain.InstancesInformation{}, nil)
		return nil
	}

	provider, err := e.registry.Resolve(deployment.CloudID)
	if err != nil {
		return err
	}

	runtime, err := e.records.RuntimeTopology(deployment.ID)
	if err != nil {
		return err
	}
	dctx, err := e.builder.BuildLight(deployment)
	if err != nil {
		return err
	}

	provider.InstancesInformation(ctx, dctx, runtime, cb)
	return nil
}

// ExecuteOperation triggers a named operation on a node of the active
// deployment of the request's environment. Provider failures are wrapped
// as OperationError and never affect the deployment status.
func (e *Engine) ExecuteOperation(ctx context.Context, req domain.OperationRequest, cb OperationCallback) error {
	deployment, err := e.records.ActiveByEnvironmentMandatory(req.EnvironmentID)
	if err != nil {
		return err
	}

	provider, err := e.registry.Resolve(deployment.CloudID)
	if err != nil {
		return err
	}

	dctx, err := e.builder.BuildLight(deployment)
	if err != nil {
		return err
	}

	provider.ExecuteOperation(ctx, dctx, req, func(results map[string]string, err error) {
		if err != nil {
			cb(nil, &OperationError{Operation: req.Operation, Err: err})
			return
		}
		cb(results, nil)
	})
	return nil
}

// Deployments lists deployment records matching the filter, newest first.
func (e *Engine) Deployments(filter DeploymentFilter, from, size int) ([]*domain.Deployment, error) {
	return e.records.List(filter, from, size)
}

// DeploymentEvents returns persisted monitor events of a deployment,
// newest first, paginated.
func (e *Engine) DeploymentEvents(deploymentID uuid.UUID, from, size int) ([]domain.MonitorEvent, error) {
	if _, err := e.records.GetMandatory(deploymentID); err != nil {
		return nil, err
	}
	return e.events.ListByDeployment(deploymentID, from, size)
}

// EnvironmentEvents returns events of the active deployment of an
// environment, failing with NotFound when no deployment is active.
func (e *Engine) EnvironmentEvents(environmentID string, from, size int) ([]domain.MonitorEvent, error) {
	deployment, err := e.records.ActiveByEnvironmentMandatory(environmentID)
	if err != nil {
		return nil, err
	}
	return e.events.ListByDeployment(deployment.ID, from, size)
}

// IngestEvents folds provider-emitted events into durable deployment state
// and the event stream. Status events move the matching record forward;
// events for unknown or already closed deployments are treated as stale and
// recorded without touching the record.
func (e *Engine) IngestEvents(events []domain.MonitorEvent) error {
	for _, event := range events {
		statusEvent, ok := event.(domain.StatusEvent)
		if !ok {
			continue
		}
		deployment, err := e.records.GetMandatory(statusEvent.DeploymentID)
		if err != nil {
			slog.Warn("Dropping status event for unknown deployment",
				"deployment_id", statusEvent.DeploymentID,
				"status", statusEvent.Status.String())
			continue
		}
		if !deployment.Active() || deployment.Status == statusEvent.Status {
			continue
		}
		if err := e.records.UpdateStatus(deployment, statusEvent.Status); err != nil {
			return err
		}
		slog.Info("Folded provider status event into deployment record",
			"deployment_id", deployment.ID,
			"status", statusEvent.Status.String())
	}
	if len(events) == 0 {
		return nil
	}
	return e.events.Record(events...)
}

// changeStatus is the single path through which the engine mutates a
// deployment's status. Every change emits a status event and a
// human-readable message event, timestamped at the moment of the change.
func (e *Engine) changeStatus(deployment *domain.Deployment, status domain.DeploymentStatus) error {
	previous := deployment.Status
	if err := e.records.UpdateStatus(deployment, status); err != nil {
		return err
	}

	now := time.Now()
	meta := domain.EventMeta{
		DeploymentID: deployment.ID,
		CloudID:      deployment.CloudID,
		Timestamp:    now,
	}
	if err := e.events.Record(
		domain.StatusEvent{EventMeta: meta, Status: status},
		domain.MessageEvent{
			EventMeta: meta,
			Message:   fmt.Sprintf("Deployment status changed from %s to %s", previous, status),
		},
	); err != nil {
		return err
	}

	slog.Info("Deployment status changed",
		"deployment_id", deployment.ID,
		"from", previous.String(),
		"to", status.String())
	return nil
}

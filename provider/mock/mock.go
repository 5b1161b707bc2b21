// Package mock implements an in-process provider plugin that simulates a
// PaaS backend. It is used by engine tests and by the server's demo mode;
// no real infrastructure is touched.
package mock

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/coxswain-cd/coxswain/domain"
	"github.com/coxswain-cd/coxswain/services"
)

// Recipe name markers that force a terminal status other than DEPLOYED.
// Recipe ids are sanitized source names, hence the underscores.
const (
	badApplicationMarker     = "BAD_APPLICATION"
	warnApplicationMarker    = "WARN_APPLICATION"
	unknownApplicationMarker = "UNKNOWN_APPLICATION"
)

const (
	privateIPAttribute = "private_ip_address"
	publicIPAttribute  = "public_ip_address"
)

// Provider simulates a PaaS backend. All runtime state is owned by the
// provider and guarded by its own lock; the engine observes it only
// through the provider contract.
type Provider struct {
	cloudID string
	// delay between command acceptance and the simulated terminal status
	transitionDelay time.Duration

	mu        sync.Mutex
	statuses  map[uuid.UUID]domain.DeploymentStatus
	instances map[uuid.UUID]domain.InstancesInformation
	events    []domain.MonitorEvent
	timers    []*time.Timer
	closed    bool
}

// Option configures a mock Provider.
type Option func(*Provider)

// WithTransitionDelay sets the simulated provisioning time.
func WithTransitionDelay(d time.Duration) Option {
	return func(p *Provider) { p.transitionDelay = d }
}

func NewProvider(cloudID string, opts ...Option) *Provider {
	p := &Provider{
		cloudID:         cloudID,
		transitionDelay: 5 * time.Second,
		statuses:        make(map[uuid.UUID]domain.DeploymentStatus),
		instances:       make(map[uuid.UUID]domain.InstancesInformation),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Close cancels all pending simulated transitions.
func (p *Provider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	for _, timer := range p.timers {
		timer.Stop()
	}
	p.timers = nil
}

var _ services.Provider = (*Provider)(nil)

func (p *Provider) Deploy(ctx context.Context, dctx *domain.DeploymentContext) error {
	if dctx.Topology == nil {
		return fmt.Errorf("deployment context for %s carries no topology", dctx.DeploymentID)
	}
	slog.Info("Mock provider deploying", "deployment_id", dctx.DeploymentID, "recipe_id", dctx.RecipeID)

	p.changeStatus(dctx.DeploymentID, domain.DeploymentStatusDeploymentInProgress)
	p.startInstances(dctx.DeploymentID, dctx.Topology)

	terminal := domain.DeploymentStatusDeployed
	switch {
	case strings.HasPrefix(dctx.RecipeID, unknownApplicationMarker):
		terminal = domain.DeploymentStatusUnknown
	case strings.HasPrefix(dctx.RecipeID, badApplicationMarker):
		terminal = domain.DeploymentStatusFailure
	case strings.HasPrefix(dctx.RecipeID, warnApplicationMarker):
		terminal = domain.DeploymentStatusWarning
	}

	deploymentID := dctx.DeploymentID
	p.schedule(func() {
		// Instance state settles before the status transition becomes
		// observable, matching the order a real backend reports in.
		if terminal == domain.DeploymentStatusDeployed {
			p.markInstancesStarted(deploymentID)
		}
		p.changeStatus(deploymentID, terminal)
	})
	return nil
}

func (p *Provider) Undeploy(ctx context.Context, dctx *domain.DeploymentContext) error {
	slog.Info("Mock provider undeploying", "deployment_id", dctx.DeploymentID)

	p.changeStatus(dctx.DeploymentID, domain.DeploymentStatusUndeploymentInProgress)
	p.markInstancesStopping(dctx.DeploymentID)

	deploymentID := dctx.DeploymentID
	p.schedule(func() {
		p.mu.Lock()
		delete(p.instances, deploymentID)
		p.mu.Unlock()
		p.changeStatus(deploymentID, domain.DeploymentStatusUndeployed)
	})
	return nil
}

func (p *Provider) Status(ctx context.Context, dctx *domain.DeploymentContext, cb services.StatusCallback) {
	p.mu.Lock()
	status, ok := p.statuses[dctx.DeploymentID]
	p.mu.Unlock()
	if !ok {
		// A deployment this provider has never seen is implicitly undeployed.
		status = domain.DeploymentStatusUndeployed
	}
	cb(status, nil)
}

func (p *Provider) InstancesInformation(ctx context.Context, dctx *domain.DeploymentContext, runtime *domain.Topology, cb services.InstancesCallback) {
	p.mu.Lock()
	info := p.instances[dctx.DeploymentID]
	p.mu.Unlock()
	if info == nil {
		info = domain.InstancesInformation{}
	}
	cb(info, nil)
}

func (p *Provider) Scale(ctx context.Context, dctx *domain.DeploymentContext, nodeTemplateID string, delta int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	info, ok := p.instances[dctx.DeploymentID]
	if !ok {
		return fmt.Errorf("deployment %s is not running on cloud %q", dctx.DeploymentID, p.cloudID)
	}

	nodeInstances := info[nodeTemplateID]
	if nodeInstances == nil {
		nodeInstances = make(map[string]domain.InstanceInformation)
		info[nodeTemplateID] = nodeInstances
	}

	if delta >= 0 {
		base := len(nodeInstances)
		for i := 1; i <= delta; i++ {
			index := strconv.Itoa(base + i)
			instance := newInstance(base + i)
			nodeInstances[index] = instance
			p.emitInstanceStateLocked(dctx.DeploymentID, nodeTemplateID, index, instance)
		}
	} else {
		// The provider picks which instances to remove: highest index first.
		for i := 0; i < -delta && len(nodeInstances) > 0; i++ {
			index := highestIndex(nodeInstances)
			delete(nodeInstances, index)
			p.appendEventLocked(domain.InstanceStateEvent{
				EventMeta:      p.eventMeta(dctx.DeploymentID),
				NodeTemplateID: nodeTemplateID,
				InstanceID:     index,
			})
		}
	}
	return nil
}

func (p *Provider) ExecuteOperation(ctx context.Context, dctx *domain.DeploymentContext, req domain.OperationRequest, cb services.OperationCallback) {
	p.mu.Lock()
	info, running := p.instances[dctx.DeploymentID]
	p.mu.Unlock()

	if !running {
		cb(nil, fmt.Errorf("deployment %s is not running on cloud %q", dctx.DeploymentID, p.cloudID))
		return
	}
	if req.Operation == "" {
		cb(nil, fmt.Errorf("operation name is required"))
		return
	}

	results := make(map[string]string)
	for index := range info[req.NodeTemplateID] {
		results[index] = fmt.Sprintf("%s/%s executed on %s_%s", req.Interface, req.Operation, req.NodeTemplateID, index)
	}
	cb(results, nil)
}

func (p *Provider) EventsSince(since time.Time, max int) ([]domain.MonitorEvent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []domain.MonitorEvent
	for _, event := range p.events {
		if !event.Meta().Timestamp.After(since) {
			continue
		}
		out = append(out, event)
		if len(out) >= max {
			break
		}
	}
	return out, nil
}

// changeStatus records the new status and emits the status/message event
// pair, the way a real backend would publish lifecycle notifications.
func (p *Provider) changeStatus(deploymentID uuid.UUID, status domain.DeploymentStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()

	previous, ok := p.statuses[deploymentID]
	if !ok {
		previous = domain.DeploymentStatusUndeployed
	}
	p.statuses[deploymentID] = status

	slog.Info("Mock provider status transition",
		"deployment_id", deploymentID,
		"from", previous.String(),
		"to", status.String())

	meta := p.eventMeta(deploymentID)
	p.appendEventLocked(domain.StatusEvent{EventMeta: meta, Status: status})
	p.appendEventLocked(domain.MessageEvent{
		EventMeta: meta,
		Message:   fmt.Sprintf("Deployment status changed to %s", status),
	})
}

func (p *Provider) startInstances(deploymentID uuid.UUID, topology *domain.Topology) {
	p.mu.Lock()
	defer p.mu.Unlock()

	info := make(domain.InstancesInformation, len(topology.NodeTemplates))
	for nodeID := range topology.NodeTemplates {
		count := topology.InitialInstances(nodeID)
		nodeInstances := make(map[string]domain.InstanceInformation, count)
		for i := 1; i <= count; i++ {
			index := strconv.Itoa(i)
			instance := newInstance(i)
			nodeInstances[index] = instance
			p.emitInstanceStateLocked(deploymentID, nodeID, index, instance)
		}
		info[nodeID] = nodeInstances
	}
	p.instances[deploymentID] = info
}

func (p *Provider) markInstancesStarted(deploymentID uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for nodeID, nodeInstances := range p.instances[deploymentID] {
		for index, instance := range nodeInstances {
			instance.State = "started"
			instance.Status = domain.InstanceStatusSuccess
			nodeInstances[index] = instance
			p.emitInstanceStateLocked(deploymentID, nodeID, index, instance)
		}
	}
}

func (p *Provider) markInstancesStopping(deploymentID uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for nodeID, nodeInstances := range p.instances[deploymentID] {
		for index, instance := range nodeInstances {
			instance.State = "stopping"
			instance.Status = domain.InstanceStatusProcessing
			nodeInstances[index] = instance
			p.emitInstanceStateLocked(deploymentID, nodeID, index, instance)
		}
	}
}

func (p *Provider) emitInstanceStateLocked(deploymentID uuid.UUID, nodeID, index string, instance domain.InstanceInformation) {
	p.appendEventLocked(domain.InstanceStateEvent{
		EventMeta:         p.eventMeta(deploymentID),
		NodeTemplateID:    nodeID,
		InstanceID:        index,
		InstanceState:     instance.State,
		InstanceStatus:    instance.Status,
		Properties:        instance.Properties,
		Attributes:        instance.Attributes,
		RuntimeProperties: instance.RuntimeProperties,
	})
}

func (p *Provider) appendEventLocked(event domain.MonitorEvent) {
	p.events = append(p.events, event)
}

func (p *Provider) eventMeta(deploymentID uuid.UUID) domain.EventMeta {
	return domain.EventMeta{
		DeploymentID: deploymentID,
		CloudID:      p.cloudID,
		Timestamp:    time.Now(),
	}
}

func (p *Provider) schedule(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	timer := time.AfterFunc(p.transitionDelay, fn)
	p.timers = append(p.timers, timer)
}

func newInstance(i int) domain.InstanceInformation {
	attributes := map[string]string{
		privateIPAttribute: fmt.Sprintf("192.168.0.%d", i),
		publicIPAttribute:  fmt.Sprintf("10.52.0.%d", i),
	}
	return domain.InstanceInformation{
		State:             "init",
		Status:            domain.InstanceStatusProcessing,
		Properties:        map[string]string{},
		Attributes:        attributes,
		RuntimeProperties: map[string]string{
			privateIPAttribute: attributes[privateIPAttribute],
			publicIPAttribute:  attributes[publicIPAttribute],
		},
	}
}

func highestIndex(instances map[string]domain.InstanceInformation) string {
	best := ""
	bestValue := -1
	for index := range instances {
		if value, err := strconv.Atoi(index); err == nil && value > bestValue {
			best = index
			bestValue = value
		}
	}
	return best
}

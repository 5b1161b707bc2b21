package services

import (
	"context"
	"sync"
	"time"

	"github.com/coxswain-cd/coxswain/domain"
)

// fakeProvider is a controllable Provider for engine tests. Behavior is
// overridden via function fields; calls are recorded for assertions.
type fakeProvider struct {
	mu sync.Mutex

	DeployFunc           func(ctx context.Context, dctx *domain.DeploymentContext) error
	UndeployFunc         func(ctx context.Context, dctx *domain.DeploymentContext) error
	StatusFunc           func(ctx context.Context, dctx *domain.DeploymentContext, cb StatusCallback)
	InstancesFunc        func(ctx context.Context, dctx *domain.DeploymentContext, runtime *domain.Topology, cb InstancesCallback)
	ScaleFunc            func(ctx context.Context, dctx *domain.DeploymentContext, nodeTemplateID string, delta int) error
	ExecuteOperationFunc func(ctx context.Context, dctx *domain.DeploymentContext, req domain.OperationRequest, cb OperationCallback)
	EventsSinceFunc      func(since time.Time, max int) ([]domain.MonitorEvent, error)

	deployContexts []*domain.DeploymentContext
	undeployCalls  int
	statusCalls    int
	scaleCalls     []scaleCall
}

type scaleCall struct {
	nodeTemplateID string
	delta          int
}

func (p *fakeProvider) Deploy(ctx context.Context, dctx *domain.DeploymentContext) error {
	p.mu.Lock()
	p.deployContexts = append(p.deployContexts, dctx)
	p.mu.Unlock()
	if p.DeployFunc != nil {
		return p.DeployFunc(ctx, dctx)
	}
	return nil
}

func (p *fakeProvider) Undeploy(ctx context.Context, dctx *domain.DeploymentContext) error {
	p.mu.Lock()
	p.undeployCalls++
	p.mu.Unlock()
	if p.UndeployFunc != nil {
		return p.UndeployFunc(ctx, dctx)
	}
	return nil
}

func (p *fakeProvider) Status(ctx context.Context, dctx *domain.DeploymentContext, cb StatusCallback) {
	p.mu.Lock()
	p.statusCalls++
	p.mu.Unlock()
	if p.StatusFunc != nil {
		p.StatusFunc(ctx, dctx, cb)
		return
	}
	cb(domain.DeploymentStatusDeployed, nil)
}

func (p *fakeProvider) InstancesInformation(ctx context.Context, dctx *domain.DeploymentContext, runtime *domain.Topology, cb InstancesCallback) {
	if p.InstancesFunc != nil {
		p.InstancesFunc(ctx, dctx, runtime, cb)
		return
	}
	cb(domain.InstancesInformation{}, nil)
}

func (p *fakeProvider) Scale(ctx context.Context, dctx *domain.DeploymentContext, nodeTemplateID string, delta int) error {
	p.mu.Lock()
	p.scaleCalls = append(p.scaleCalls, scaleCall{nodeTemplateID: nodeTemplateID, delta: delta})
	p.mu.Unlock()
	if p.ScaleFunc != nil {
		return p.ScaleFunc(ctx, dctx, nodeTemplateID, delta)
	}
	return nil
}

func (p *fakeProvider) ExecuteOperation(ctx context.Context, dctx *domain.DeploymentContext, req domain.OperationRequest, cb OperationCallback) {
	if p.ExecuteOperationFunc != nil {
		p.ExecuteOperationFunc(ctx, dctx, req, cb)
		return
	}
	cb(map[string]string{}, nil)
}

func (p *fakeProvider) EventsSince(since time.Time, max int) ([]domain.MonitorEvent, error) {
	if p.EventsSinceFunc != nil {
		return p.EventsSinceFunc(since, max)
	}
	return nil, nil
}

func (p *fakeProvider) DeployCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.deployContexts)
}

func (p *fakeProvider) LastDeployContext() *domain.DeploymentContext {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.deployContexts) == 0 {
		return nil
	}
	return p.deployContexts[len(p.deployContexts)-1]
}

func (p *fakeProvider) UndeployCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.undeployCalls
}

func (p *fakeProvider) StatusCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.statusCalls
}

func (p *fakeProvider) ScaleCalls() []scaleCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]scaleCall(nil), p.scaleCalls...)
}

// Event poller: pull-model ingestion for providers that cannot push.
package services

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// EventPoller periodically pulls pending events from every registered
// provider and hands them to the engine for ingestion. One cursor is kept
// per cloud id so a slow provider cannot replay events already ingested.
type EventPoller struct {
	engine       *Engine
	registry     ProviderRegistry
	pollInterval time.Duration
	maxEvents    int

	mu      sync.Mutex
	cursors map[string]time.Time
}

func NewEventPoller(engine *Engine, registry ProviderRegistry, pollInterval time.Duration, maxEvents int) *EventPoller {
	return &EventPoller{
		engine:       engine,
		registry:     registry,
		pollInterval: pollInterval,
		maxEvents:    maxEvents,
		cursors:      make(map[string]time.Time),
	}
}

// Start runs the poll loop until ctx is cancelled.
func (p *EventPoller) Start(ctx context.Context) error {
	slog.Info("Event poller starting", "poll_interval", p.pollInterval)

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	// Run an initial poll immediately
	p.pollAll()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Event poller shutting down")
			return nil
		case <-ticker.C:
			p.pollAll()
		}
	}
}

func (p *EventPoller) pollAll() {
	for _, cloudID := range p.registry.CloudIDs() {
		if err := p.pollCloud(cloudID); err != nil {
			slog.Error("Event poll failed", "cloud_id", cloudID, "error", err)
		}
	}
}

func (p *EventPoller) pollCloud(cloudID string) error {
	provider, err := p.registry.Resolve(cloudID)
	if err != nil {
		// Disabled clouds are simply skipped until re-enabled.
		slog.Debug("Skipping event poll", "cloud_id", cloudID, "reason", err)
		return nil
	}

	since := p.cursor(cloudID)
	events, err := provider.EventsSince(since, p.maxEvents)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	if err := p.engine.IngestEvents(events); err != nil {
		return err
	}

	latest := since
	for _, event := range events {
		if ts := event.Meta().Timestamp; ts.After(latest) {
			latest = ts
		}
	}
	p.setCursor(cloudID, latest)

	slog.Debug("Ingested provider events", "cloud_id", cloudID, "count", len(events))
	return nil
}

func (p *EventPoller) cursor(cloudID string) time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cursors[cloudID]
}

func (p *EventPoller) setCursor(cloudID string, t time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cursors[cloudID] = t
}

package services

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/coxswain-cd/coxswain/domain"
)

// EventBuffer accumulates monitor events from concurrent in-flight
// callbacks. Append-only, ordered by arrival; Drain atomically returns and
// clears the buffered events so a single consumer never sees an event
// twice.
type EventBuffer struct {
	mu     sync.Mutex
	events []domain.MonitorEvent
}

func NewEventBuffer() *EventBuffer {
	return &EventBuffer{}
}

func (b *EventBuffer) Append(events ...domain.MonitorEvent) {
	if len(events) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, events...)
}

// Drain returns all buffered events and clears the buffer in one atomic
// step.
func (b *EventBuffer) Drain() []domain.MonitorEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	drained := b.events
	b.events = nil
	return drained
}

// Len reports the number of currently buffered events.
func (b *EventBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

// EventService feeds the live event buffer and the durable event store.
type EventService struct {
	buffer *EventBuffer
	repo   EventRepository
}

func NewEventService(buffer *EventBuffer, repo EventRepository) *EventService {
	return &EventService{buffer: buffer, repo: repo}
}

// Record appends events to the live buffer and persists them for
// historical query. Buffer delivery happens even if persistence fails;
// observers polling the buffer must not lose live events to a storage
// hiccup.
func (s *EventService) Record(events ...domain.MonitorEvent) error {
	s.buffer.Append(events...)
	if err := s.repo.Create(events...); err != nil {
		slog.Error("Failed to persist monitor events", "count", len(events), "error", err)
		return fmt.Errorf("failed to persist monitor events: %w", err)
	}
	return nil
}

// Drain returns-and-clears the live buffer.
func (s *EventService) Drain() []domain.MonitorEvent {
	return s.buffer.Drain()
}

// ListByDeployment returns persisted events for a deployment, newest
// first, paginated.
func (s *EventService) ListByDeployment(deploymentID uuid.UUID, from, size int) ([]domain.MonitorEvent, error) {
	return s.repo.ListByDeploymentID(deploymentID, from, size)
}

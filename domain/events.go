package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventKind discriminates monitor event types in storage and on the wire
type EventKind string

const (
	EventKindStatus          EventKind = "deployment_status"
	EventKindInstanceState   EventKind = "instance_state"
	EventKindMessage         EventKind = "message"
	EventKindInstanceStorage EventKind = "instance_storage"
)

func (k EventKind) IsValid() bool {
	switch k {
	case EventKindStatus, EventKindInstanceState, EventKindMessage, EventKindInstanceStorage:
		return true
	default:
		return false
	}
}

func ParseEventKind(s string) (EventKind, error) {
	k := EventKind(s)
	if !k.IsValid() {
		return "", fmt.Errorf("invalid event kind: %q", s)
	}
	return k, nil
}

// EventMeta carries the fields common to every monitor event.
type EventMeta struct {
	DeploymentID uuid.UUID
	CloudID      string
	Timestamp    time.Time
}

func (m EventMeta) Meta() EventMeta { return m }

// MonitorEvent is one observation emitted by a provider or by the engine
// about the runtime state of a deployment. Events are append-only and
// ordered by timestamp.
type MonitorEvent interface {
	Kind() EventKind
	Meta() EventMeta
}

// StatusEvent reports a deployment status transition.
type StatusEvent struct {
	EventMeta
	Status DeploymentStatus
}

func (StatusEvent) Kind() EventKind { return EventKindStatus }

// InstanceStateEvent reports a state change of a single node instance.
type InstanceStateEvent struct {
	EventMeta
	NodeTemplateID    string
	InstanceID        string
	InstanceState     string
	InstanceStatus    InstanceStatus
	Properties        map[string]string
	Attributes        map[string]string
	RuntimeProperties map[string]string
}

func (InstanceStateEvent) Kind() EventKind { return EventKindInstanceState }

// MessageEvent carries a human-readable message about a deployment.
type MessageEvent struct {
	EventMeta
	Message string
}

func (MessageEvent) Kind() EventKind { return EventKindMessage }

// InstanceStorageEvent reports a block storage attachment for an instance.
type InstanceStorageEvent struct {
	EventMeta
	NodeTemplateID string
	InstanceID     string
	VolumeID       string
}

func (InstanceStorageEvent) Kind() EventKind { return EventKindInstanceStorage }

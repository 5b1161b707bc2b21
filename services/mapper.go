package services

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/coxswain-cd/coxswain/db"
	"github.com/coxswain-cd/coxswain/domain"
)

// setupDocument is the persisted JSON shape of a deployment setup snapshot.
type setupDocument struct {
	EnvironmentID   string            `json:"environmentId"`
	VersionID       string            `json:"versionId"`
	InputProperties map[string]string `json:"inputProperties,omitempty"`
	InputArtifacts  map[string]string `json:"inputArtifacts,omitempty"`
}

type DeploymentMapper struct{}

func (m *DeploymentMapper) ToDomain(d *db.DeploymentModel) (*domain.Deployment, error) {
	status, err := domain.ParseDeploymentStatus(d.Status)
	if err != nil {
		status = domain.DeploymentStatusUnknown
	}
	sourceType, err := domain.ParseSourceType(d.SourceType)
	if err != nil {
		return nil, fmt.Errorf("deployment %s: %w", d.ID, err)
	}

	var setup setupDocument
	if err := json.Unmarshal([]byte(d.Setup), &setup); err != nil {
		return nil, fmt.Errorf("deployment %s: decoding setup: %w", d.ID, err)
	}

	return &domain.Deployment{
		ID:         d.ID,
		CloudID:    d.CloudID,
		SourceID:   d.SourceID,
		SourceName: d.SourceName,
		SourceType: sourceType,
		TopologyID: d.TopologyID,
		Setup: domain.DeploymentSetup{
			EnvironmentID:   setup.EnvironmentID,
			VersionID:       setup.VersionID,
			InputProperties: setup.InputProperties,
			InputArtifacts:  setup.InputArtifacts,
		},
		Status:    status,
		StartDate: d.StartDate,
		EndDate:   d.EndDate,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}, nil
}

func (m *DeploymentMapper) ToModel(d *domain.Deployment) (*db.DeploymentModel, error) {
	setup, err := json.Marshal(setupDocument{
		EnvironmentID:   d.Setup.EnvironmentID,
		VersionID:       d.Setup.VersionID,
		InputProperties: d.Setup.InputProperties,
		InputArtifacts:  d.Setup.InputArtifacts,
	})
	if err != nil {
		return nil, fmt.Errorf("deployment %s: encoding setup: %w", d.ID, err)
	}

	return &db.DeploymentModel{
		BaseModel:     db.BaseModel{ID: d.ID},
		CloudID:       d.CloudID,
		SourceID:      d.SourceID,
		SourceName:    d.SourceName,
		SourceType:    d.SourceType.String(),
		TopologyID:    d.TopologyID,
		EnvironmentID: d.Setup.EnvironmentID,
		VersionID:     d.Setup.VersionID,
		Setup:         string(setup),
		Status:        d.Status.String(),
		StartDate:     d.StartDate,
		EndDate:       d.EndDate,
	}, nil
}

// topologyDocument is the persisted JSON shape of a runtime topology.
type topologyDocument struct {
	ID              string                          `json:"id"`
	NodeTemplates   map[string]nodeTemplateDocument `json:"nodeTemplates,omitempty"`
	ScalingPolicies map[string]scalingPolicyDoc     `json:"scalingPolicies,omitempty"`
}

type nodeTemplateDocument struct {
	Type          string                        `json:"type"`
	Properties    map[string]string             `json:"properties,omitempty"`
	Relationships map[string]relationshipTplDoc `json:"relationships,omitempty"`
}

type relationshipTplDoc struct {
	Type   string `json:"type"`
	Target string `json:"target"`
}

type scalingPolicyDoc struct {
	MinInstances     int `json:"minInstances"`
	MaxInstances     int `json:"maxInstances"`
	InitialInstances int `json:"initialInstances"`
}

type TopologyMapper struct{}

func (m *TopologyMapper) Encode(t *domain.Topology) (string, error) {
	doc := topologyDocument{
		ID:              t.ID,
		NodeTemplates:   make(map[string]nodeTemplateDocument, len(t.NodeTemplates)),
		ScalingPolicies: make(map[string]scalingPolicyDoc, len(t.ScalingPolicies)),
	}
	for name, node := range t.NodeTemplates {
		nd := nodeTemplateDocument{
			Type:          node.Type,
			Properties:    node.Properties,
			Relationships: make(map[string]relationshipTplDoc, len(node.Relationships)),
		}
		for relName, rel := range node.Relationships {
			nd.Relationships[relName] = relationshipTplDoc{Type: rel.Type, Target: rel.Target}
		}
		doc.NodeTemplates[name] = nd
	}
	for name, policy := range t.ScalingPolicies {
		doc.ScalingPolicies[name] = scalingPolicyDoc{
			MinInstances:     policy.MinInstances,
			MaxInstances:     policy.MaxInstances,
			InitialInstances: policy.InitialInstances,
		}
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encoding topology %q: %w", t.ID, err)
	}
	return string(data), nil
}

func (m *TopologyMapper) Decode(data string) (*domain.Topology, error) {
	var doc topologyDocument
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		return nil, fmt.Errorf("decoding topology: %w", err)
	}

	t := &domain.Topology{
		ID:              doc.ID,
		NodeTemplates:   make(map[string]domain.NodeTemplate, len(doc.NodeTemplates)),
		ScalingPolicies: make(map[string]*domain.ScalingPolicy, len(doc.ScalingPolicies)),
	}
	for name, node := range doc.NodeTemplates {
		nt := domain.NodeTemplate{
			Type:          node.Type,
			Properties:    node.Properties,
			Relationships: make(map[string]domain.RelationshipTemplate, len(node.Relationships)),
		}
		for relName, rel := range node.Relationships {
			nt.Relationships[relName] = domain.RelationshipTemplate{Type: rel.Type, Target: rel.Target}
		}
		t.NodeTemplates[name] = nt
	}
	for name, policy := range doc.ScalingPolicies {
		t.ScalingPolicies[name] = &domain.ScalingPolicy{
			MinInstances:     policy.MinInstances,
			MaxInstances:     policy.MaxInstances,
			InitialInstances: policy.InitialInstances,
		}
	}
	return t, nil
}

// Event payload documents. The shared meta lives in dedicated columns; the
// payload holds only the kind-specific fields.
type statusEventPayload struct {
	Status string `json:"status"`
}

type instanceStateEventPayload struct {
	NodeTemplateID    string            `json:"nodeTemplateId"`
	InstanceID        string            `json:"instanceId"`
	InstanceState     string            `json:"instanceState,omitempty"`
	InstanceStatus    string            `json:"instanceStatus,omitempty"`
	Properties        map[string]string `json:"properties,omitempty"`
	Attributes        map[string]string `json:"attributes,omitempty"`
	RuntimeProperties map[string]string `json:"runtimeProperties,omitempty"`
}

type messageEventPayload struct {
	Message string `json:"message"`
}

type instanceStorageEventPayload struct {
	NodeTemplateID string `json:"nodeTemplateId"`
	InstanceID     string `json:"instanceId"`
	VolumeID       string `json:"volumeId"`
}

type EventMapper struct{}

func (m *EventMapper) ToModel(event domain.MonitorEvent) (*db.MonitorEventModel, error) {
	var payload any
	switch e := event.(type) {
	case domain.StatusEvent:
		payload = statusEventPayload{Status: e.Status.String()}
	case domain.InstanceStateEvent:
		payload = instanceStateEventPayload{
			NodeTemplateID:    e.NodeTemplateID,
			InstanceID:        e.InstanceID,
			InstanceState:     e.InstanceState,
			InstanceStatus:    e.InstanceStatus.String(),
			Properties:        e.Properties,
			Attributes:        e.Attributes,
			RuntimeProperties: e.RuntimeProperties,
		}
	case domain.MessageEvent:
		payload = messageEventPayload{Message: e.Message}
	case domain.InstanceStorageEvent:
		payload = instanceStorageEventPayload{
			NodeTemplateID: e.NodeTemplateID,
			InstanceID:     e.InstanceID,
			VolumeID:       e.VolumeID,
		}
	default:
		return nil, fmt.Errorf("unsupported event kind: %q", event.Kind())
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding %s event payload: %w", event.Kind(), err)
	}

	meta := event.Meta()
	return &db.MonitorEventModel{
		BaseModel:    db.BaseModel{ID: uuid.New()},
		DeploymentID: meta.DeploymentID,
		CloudID:      meta.CloudID,
		Kind:         string(event.Kind()),
		Timestamp:    meta.Timestamp,
		Payload:      string(data),
	}, nil
}

func (m *EventMapper) ToDomain(model *db.MonitorEventModel) (domain.MonitorEvent, error) {
	kind, err := domain.ParseEventKind(model.Kind)
	if err != nil {
		return nil, fmt.Errorf("event %s: %w", model.ID, err)
	}

	meta := domain.EventMeta{
		DeploymentID: model.DeploymentID,
		CloudID:      model.CloudID,
		Timestamp:    model.Timestamp,
	}

	switch kind {
	case domain.EventKindStatus:
		var p statusEventPayload
		if err := json.Unmarshal([]byte(model.Payload), &p); err != nil {
			return nil, fmt.Errorf("event %s: decoding payload: %w", model.ID, err)
		}
		status, err := domain.ParseDeploymentStatus(p.Status)
		if err != nil {
			status = domain.DeploymentStatusUnknown
		}
		return domain.StatusEvent{EventMeta: meta, Status: status}, nil
	case domain.EventKindInstanceState:
		var p instanceStateEventPayload
		if err := json.Unmarshal([]byte(model.Payload), &p); err != nil {
			return nil, fmt.Errorf("event %s: decoding payload: %w", model.ID, err)
		}
		status, err := domain.ParseInstanceStatus(p.InstanceStatus)
		if err != nil {
			status = domain.InstanceStatusProcessing
		}
		return domain.InstanceStateEvent{
			EventMeta:         meta,
			NodeTemplateID:    p.NodeTemplateID,
			InstanceID:        p.InstanceID,
			InstanceState:     p.InstanceState,
			InstanceStatus:    status,
			Properties:        p.Properties,
			Attributes:        p.Attributes,
			RuntimeProperties: p.RuntimeProperties,
		}, nil
	case domain.EventKindMessage:
		var p messageEventPayload
		if err := json.Unmarshal([]byte(model.Payload), &p); err != nil {
			return nil, fmt.Errorf("event %s: decoding payload: %w", model.ID, err)
		}
		return domain.MessageEvent{EventMeta: meta, Message: p.Message}, nil
	case domain.EventKindInstanceStorage:
		var p instanceStorageEventPayload
		if err := json.Unmarshal([]byte(model.Payload), &p); err != nil {
			return nil, fmt.Errorf("event %s: decoding payload: %w", model.ID, err)
		}
		return domain.InstanceStorageEvent{
			EventMeta:      meta,
			NodeTemplateID: p.NodeTemplateID,
			InstanceID:     p.InstanceID,
			VolumeID:       p.VolumeID,
		}, nil
	default:
		return nil, fmt.Errorf("event %s: unsupported kind %q", model.ID, kind)
	}
}

// normalizeTimestamp rounds event timestamps to the database precision so
// ordering survives a round trip through storage.
func normalizeTimestamp(t time.Time) time.Time {
	return t.Round(time.Microsecond)
}

package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coxswain-cd/coxswain/domain"
)

func TestDeploymentMapperDenormalizesEnvironment(t *testing.T) {
	mapper := &DeploymentMapper{}
	deployment := domain.NewDeployment("topology-1", createTestSource(), createTestSetup(), "cloud-1")

	model, err := mapper.ToModel(deployment)
	require.NoError(t, err)

	// Environment and version live in their own columns so active-deployment
	// queries never parse JSON.
	assert.Equal(t, "env-1", model.EnvironmentID)
	assert.Equal(t, "0.1.0", model.VersionID)
	assert.Contains(t, model.Setup, `"environmentId":"env-1"`)

	back, err := mapper.ToDomain(model)
	require.NoError(t, err)
	assert.Equal(t, deployment.Setup, back.Setup)
	assert.Equal(t, deployment.SourceType, back.SourceType)
}

func TestDeploymentMapperUnknownStoredStatus(t *testing.T) {
	mapper := &DeploymentMapper{}
	deployment := domain.NewDeployment("topology-1", createTestSource(), createTestSetup(), "cloud-1")
	model, err := mapper.ToModel(deployment)
	require.NoError(t, err)

	// A status written by a newer version maps to UNKNOWN instead of failing
	model.Status = "some_future_status"
	back, err := mapper.ToDomain(model)
	require.NoError(t, err)
	assert.Equal(t, domain.DeploymentStatusUnknown, back.Status)
}

func TestTopologyMapperRoundTrip(t *testing.T) {
	mapper := &TopologyMapper{}
	topology := createTestTopology()

	encoded, err := mapper.Encode(topology)
	require.NoError(t, err)

	decoded, err := mapper.Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, topology.ID, decoded.ID)
	assert.Equal(t, topology.NodeTemplates, decoded.NodeTemplates)
	assert.Equal(t, topology.ScalingPolicies, decoded.ScalingPolicies)
}

func TestEventMapperRoundTrip(t *testing.T) {
	mapper := &EventMapper{}
	meta := domain.EventMeta{
		DeploymentID: uuid.New(),
		CloudID:      "cloud-1",
		Timestamp:    time.Now().Round(time.Microsecond),
	}

	events := []domain.MonitorEvent{
		domain.StatusEvent{EventMeta: meta, Status: domain.DeploymentStatusWarning},
		domain.MessageEvent{EventMeta: meta, Message: "instance restarted"},
		domain.InstanceStateEvent{
			EventMeta:      meta,
			NodeTemplateID: "compute1",
			InstanceID:     "0",
			InstanceState:  "started",
			InstanceStatus: domain.InstanceStatusSuccess,
			Attributes:     map[string]string{"ip_address": "192.168.0.1"},
		},
		domain.InstanceStorageEvent{
			EventMeta:      meta,
			NodeTemplateID: "storage1",
			InstanceID:     "0",
			VolumeID:       "vol-42",
		},
	}

	for _, event := range events {
		model, err := mapper.ToModel(event)
		require.NoError(t, err)
		assert.Equal(t, string(event.Kind()), model.Kind)

		back, err := mapper.ToDomain(model)
		require.NoError(t, err)
		assert.Equal(t, event, back)
	}
}

func TestNormalizeTimestamp(t *testing.T) {
	ts := time.Date(2026, 3, 14, 9, 26, 53, 589793238, time.UTC)
	normalized := normalizeTimestamp(ts)
	assert.Equal(t, 589793000, normalized.Nanosecond())
}

package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coxswain-cd/coxswain/domain"
)

func TestDeploymentRepositoryRoundTrip(t *testing.T) {
	repo := NewDeploymentRepository(setupTestDB(t))

	deployment := domain.NewDeployment("topology-1", createTestSource(), createTestSetup(), "cloud-1")
	require.NoError(t, repo.Create(deployment))

	found, err := repo.FindByID(deployment.ID)
	require.NoError(t, err)
	assert.Equal(t, deployment.ID, found.ID)
	assert.Equal(t, "cloud-1", found.CloudID)
	assert.Equal(t, "my-app", found.SourceName)
	assert.Equal(t, domain.SourceTypeApplication, found.SourceType)
	assert.Equal(t, "env-1", found.Setup.EnvironmentID)
	assert.Equal(t, "small", found.Setup.InputProperties["flavor"])
	assert.Equal(t, domain.DeploymentStatusDeploymentInProgress, found.Status)
	assert.Nil(t, found.EndDate)
}

func TestDeploymentRepositoryFindByID_NotFound(t *testing.T) {
	repo := NewDeploymentRepository(setupTestDB(t))

	_, err := repo.FindByID(uuid.New())

	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "deployment", notFound.Resource)
}

func TestDeploymentRepositoryUpdate(t *testing.T) {
	repo := NewDeploymentRepository(setupTestDB(t))

	deployment := domain.NewDeployment("topology-1", createTestSource(), createTestSetup(), "cloud-1")
	require.NoError(t, repo.Create(deployment))

	deployment.Status = domain.DeploymentStatusDeployed
	require.NoError(t, repo.Update(deployment))

	found, err := repo.FindByID(deployment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DeploymentStatusDeployed, found.Status)
}

func TestDeploymentRepositoryFindActive(t *testing.T) {
	repo := NewDeploymentRepository(setupTestDB(t))

	open := domain.NewDeployment("topology-1", createTestSource(), createTestSetup(), "cloud-1")
	require.NoError(t, repo.Create(open))

	closed := domain.NewDeployment("topology-1", createTestSource(), createTestSetup(), "cloud-1")
	now := time.Now()
	closed.EndDate = &now
	closed.Status = domain.DeploymentStatusUndeployed
	require.NoError(t, repo.Create(closed))

	byEnv, err := repo.FindActiveByEnvironment("env-1")
	require.NoError(t, err)
	require.Len(t, byEnv, 1)
	assert.Equal(t, open.ID, byEnv[0].ID)

	byTarget, err := repo.FindActiveByTarget("cloud-1", "topology-1")
	require.NoError(t, err)
	require.Len(t, byTarget, 1)
	assert.Equal(t, open.ID, byTarget[0].ID)
}

func TestDeploymentRepositoryList(t *testing.T) {
	repo := NewDeploymentRepository(setupTestDB(t))

	older := domain.NewDeployment("topology-1", createTestSource(), createTestSetup(), "cloud-1")
	older.StartDate = time.Now().Add(-time.Hour)
	require.NoError(t, repo.Create(older))

	newer := domain.NewDeployment("topology-2", domain.DeploymentSource{
		ID: "app-2", Name: "other-app", Type: domain.SourceTypeApplication,
	}, createTestSetup(), "cloud-2")
	require.NoError(t, repo.Create(newer))

	all, err := repo.List(DeploymentFilter{}, 0, 10)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, newer.ID, all[0].ID, "listing is newest first")

	filtered, err := repo.List(DeploymentFilter{CloudID: "cloud-1"}, 0, 10)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, older.ID, filtered[0].ID)

	filtered, err = repo.List(DeploymentFilter{SourceID: "app-2"}, 0, 10)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, newer.ID, filtered[0].ID)

	paged, err := repo.List(DeploymentFilter{}, 1, 10)
	require.NoError(t, err)
	require.Len(t, paged, 1)
	assert.Equal(t, older.ID, paged[0].ID)
}

func TestRuntimeTopologyRepositoryRoundTrip(t *testing.T) {
	repo := NewRuntimeTopologyRepository(setupTestDB(t))
	deploymentID := uuid.New()

	topology := createTestTopology().Copy(deploymentID.String())
	require.NoError(t, repo.Save(deploymentID, topology))

	found, err := repo.FindByDeploymentID(deploymentID)
	require.NoError(t, err)
	assert.Equal(t, deploymentID.String(), found.ID)
	assert.Equal(t, "compute1", found.NodeTemplates["middleware1"].Relationships["host"].Target)
	assert.Equal(t, 3, found.ScalingPolicies["compute1"].InitialInstances)

	_, err = repo.FindByDeploymentID(uuid.New())
	var notFound *NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestEventRepositoryListNewestFirst(t *testing.T) {
	repo := NewEventRepository(setupTestDB(t))
	deploymentID := uuid.New()
	base := time.Now().Add(-time.Minute)

	for i := 0; i < 3; i++ {
		meta := domain.EventMeta{
			DeploymentID: deploymentID,
			CloudID:      "cloud-1",
			Timestamp:    base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, repo.Create(domain.StatusEvent{EventMeta: meta, Status: domain.DeploymentStatusDeployed}))
	}

	events, err := repo.ListByDeploymentID(deploymentID, 0, 10)
	require.NoError(t, err)
	require.Len(t, events, 3)
	for i := 1; i < len(events); i++ {
		assert.True(t, !events[i-1].Meta().Timestamp.Before(events[i].Meta().Timestamp),
			"events must be ordered newest first")
	}

	page, err := repo.ListByDeploymentID(deploymentID, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)

	other, err := repo.ListByDeploymentID(uuid.New(), 0, 10)
	require.NoError(t, err)
	assert.Empty(t, other)
}

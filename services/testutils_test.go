package services

import (
	"testing"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/coxswain-cd/coxswain/db"
	"github.com/coxswain-cd/coxswain/domain"
)

// setupTestDB creates an in-memory SQLite database for testing
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	database, err := db.InitDatabase(db.DBConfig{
		Path:     ":memory:",
		LogLevel: logger.Silent,
	})
	if err != nil {
		t.Fatalf("Failed to initialize test database: %v", err)
	}

	if err := db.AutoMigrateAll(database); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	return database
}

// createTestTopology builds a three-tier topology: app hosted on middleware
// hosted on compute. Only compute carries a scaling policy.
func createTestTopology() *domain.Topology {
	return &domain.Topology{
		ID: "topology-1",
		NodeTemplates: map[string]domain.NodeTemplate{
			"compute1": {
				Type: "coxswain.nodes.Compute",
			},
			"middleware1": {
				Type: "coxswain.nodes.WebServer",
				Relationships: map[string]domain.RelationshipTemplate{
					"host": {Type: domain.RelationshipHostedOn, Target: "compute1"},
				},
			},
			"app1": {
				Type: "coxswain.nodes.Application",
				Relationships: map[string]domain.RelationshipTemplate{
					"host": {Type: domain.RelationshipHostedOn, Target: "middleware1"},
				},
			},
		},
		ScalingPolicies: map[string]*domain.ScalingPolicy{
			"compute1": {MinInstances: 1, MaxInstances: 10, InitialInstances: 3},
		},
	}
}

func createTestSetup() domain.DeploymentSetup {
	return domain.DeploymentSetup{
		EnvironmentID:   "env-1",
		VersionID:       "0.1.0",
		InputProperties: map[string]string{"flavor": "small"},
	}
}

func createTestSource() domain.DeploymentSource {
	return domain.DeploymentSource{
		ID:   "app-1",
		Name: "my-app",
		Type: domain.SourceTypeApplication,
	}
}

// testRecordService wires a record service over an in-memory database
func testRecordService(t *testing.T) *DeploymentRecordService {
	t.Helper()
	database := setupTestDB(t)
	return NewDeploymentRecordService(
		NewDeploymentRepository(database),
		NewRuntimeTopologyRepository(database),
	)
}

// testEngine wires an engine with a fake provider registered for cloud-1
func testEngine(t *testing.T) (*Engine, *DeploymentRecordService, *EventService, *fakeProvider) {
	t.Helper()
	database := setupTestDB(t)

	records := NewDeploymentRecordService(
		NewDeploymentRepository(database),
		NewRuntimeTopologyRepository(database),
	)
	events := NewEventService(NewEventBuffer(), NewEventRepository(database))

	provider := &fakeProvider{}
	registry := NewProviderRegistry()
	registry.Register("cloud-1", provider)

	return NewEngine(records, registry, events), records, events, provider
}

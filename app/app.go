// Package app provides the main application context for Coxswain, wiring
// configuration, database, repositories, providers and the engine.
package app

import (
	"time"

	"gorm.io/gorm"

	"github.com/coxswain-cd/coxswain/db"
	"github.com/coxswain-cd/coxswain/provider/mock"
	"github.com/coxswain-cd/coxswain/services"
)

// Version is set at build time via -ldflags
var Version = "dev"

var (
	database *gorm.DB
	config   *services.Config
	registry services.ProviderRegistry
	records  *services.DeploymentRecordService
	events   *services.EventService
	engine   *services.Engine
	poller   *services.EventPoller
)

// Initialize wires the whole application from a loaded configuration.
func Initialize(cfg *services.Config) error {
	var err error
	config = cfg

	database, err = db.InitDB(cfg.DatabasePath)
	if err != nil {
		return err
	}

	deploymentRepo := services.NewDeploymentRepository(database)
	topologyRepo := services.NewRuntimeTopologyRepository(database)
	eventRepo := services.NewEventRepository(database)

	records = services.NewDeploymentRecordService(deploymentRepo, topologyRepo)
	events = services.NewEventService(services.NewEventBuffer(), eventRepo)

	registry = services.NewProviderRegistry()
	if cfg.MockCloudID != "" {
		registry.Register(cfg.MockCloudID, mock.NewProvider(cfg.MockCloudID, mock.WithTransitionDelay(5*time.Second)))
	}

	engine = services.NewEngine(records, registry, events)
	poller = services.NewEventPoller(engine, registry, cfg.PollInterval, cfg.MaxPollEvents)
	return nil
}

func GetConfig() *services.Config {
	return config
}

func GetEngine() *services.Engine {
	return engine
}

func GetRecords() *services.DeploymentRecordService {
	return records
}

func GetRegistry() services.ProviderRegistry {
	return registry
}

func GetPoller() *services.EventPoller {
	return poller
}

package services

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coxswain-cd/coxswain/db"
	"github.com/coxswain-cd/coxswain/domain"
)

// DeploymentFilter narrows deployment listings. Zero values mean "any".
type DeploymentFilter struct {
	CloudID    string
	SourceID   string
	TopologyID string
}

type DeploymentRepository interface {
	FindByID(id uuid.UUID) (*domain.Deployment, error)
	Create(deployment *domain.Deployment) error
	Update(deployment *domain.Deployment) error
	// FindActiveByEnvironment returns every deployment with no end date for
	// the given environment id. More than one element means the
	// single-active invariant is violated; callers decide how to surface it.
	FindActiveByEnvironment(environmentID string) ([]*domain.Deployment, error)
	FindActiveByTarget(cloudID, topologyID string) ([]*domain.Deployment, error)
	List(filter DeploymentFilter, from, size int) ([]*domain.Deployment, error)
}

type deploymentRepository struct {
	db     *gorm.DB
	mapper *DeploymentMapper
}

func NewDeploymentRepository(database *gorm.DB) DeploymentRepository {
	return &deploymentRepository{db: database, mapper: &DeploymentMapper{}}
}

func (r *deploymentRepository) FindByID(id uuid.UUID) (*domain.Deployment, error) {
	var model db.DeploymentModel
	if err := r.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "deployment", ID: id.String()}
		}
		slog.Error("Database operation failed",
			"layer", "repository",
			"operation", "find_deployment",
			"deployment_id", id,
			"error", err)
		return nil, err
	}
	return r.mapper.ToDomain(&model)
}

func (r *deploymentRepository) Create(deployment *domain.Deployment) error {
	model, err := r.mapper.ToModel(deployment)
	if err != nil {
		return err
	}
	if err := r.db.Create(model).Error; err != nil {
		slog.Error("Database operation failed",
			"layer", "repository",
			"operation", "create_deployment",
			"deployment_id", deployment.ID,
			"error", err)
		return err
	}
	deployment.CreatedAt = model.CreatedAt
	deployment.UpdatedAt = model.UpdatedAt
	return nil
}

func (r *deploymentRepository) Update(deployment *domain.Deployment) error {
	model, err := r.mapper.ToModel(deployment)
	if err != nil {
		return err
	}
	// Full-document save; callers hold the relevant mutation lock.
	if err := r.db.Save(model).Error; err != nil {
		slog.Error("Database operation failed",
			"layer", "repository",
			"operation", "update_deployment",
			"deployment_id", deployment.ID,
			"error", err)
		return err
	}
	deployment.UpdatedAt = model.UpdatedAt
	return nil
}

func (r *deploymentRepository) FindActiveByEnvironment(environmentID string) ([]*domain.Deployment, error) {
	var models []db.DeploymentModel
	// Limit 2 is enough to distinguish "one active" from "invariant broken".
	err := r.db.
		Where("environment_id = ? AND end_date IS NULL", environmentID).
		Limit(2).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return r.toDomainAll(models)
}

func (r *deploymentRepository) FindActiveByTarget(cloudID, topologyID string) ([]*domain.Deployment, error) {
	var models []db.DeploymentModel
	err := r.db.
		Where("cloud_id = ? AND topology_id = ? AND end_date IS NULL", cloudID, topologyID).
		Limit(2).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return r.toDomainAll(models)
}

func (r *deploymentRepository) List(filter DeploymentFilter, from, size int) ([]*domain.Deployment, error) {
	query := r.db.Model(&db.DeploymentModel{})
	if filter.CloudID != "" {
		query = query.Where("cloud_id = ?", filter.CloudID)
	}
	if filter.SourceID != "" {
		query = query.Where("source_id = ?", filter.SourceID)
	}
	if filter.TopologyID != "" {
		query = query.Where("topology_id = ?", filter.TopologyID)
	}

	var models []db.DeploymentModel
	if err := query.Order("start_date DESC").Offset(from).Limit(size).Find(&models).Error; err != nil {
		return nil, err
	}
	return r.toDomainAll(models)
}

func (r *deploymentRepository) toDomainAll(models []db.DeploymentModel) ([]*domain.Deployment, error) {
	deployments := make([]*domain.Deployment, len(models))
	for i := range models {
		d, err := r.mapper.ToDomain(&models[i])
		if err != nil {
			return nil, err
		}
		deployments[i] = d
	}
	return deployments, nil
}

type RuntimeTopologyRepository interface {
	// Save persists the runtime topology copy owned by a deployment,
	// overwriting any previous version.
	Save(deploymentID uuid.UUID, topology *domain.Topology) error
	FindByDeploymentID(deploymentID uuid.UUID) (*domain.Topology, error)
}

type runtimeTopologyRepository struct {
	db     *gorm.DB
	mapper *TopologyMapper
}

func NewRuntimeTopologyRepository(database *gorm.DB) RuntimeTopologyRepository {
	return &runtimeTopologyRepository{db: database, mapper: &TopologyMapper{}}
}

func (r *runtimeTopologyRepository) Save(deploymentID uuid.UUID, topology *domain.Topology) error {
	data, err := r.mapper.Encode(topology)
	if err != nil {
		return err
	}
	model := db.RuntimeTopologyModel{
		DeploymentID: deploymentID,
		Data:         data,
	}
	if err := r.db.Save(&model).Error; err != nil {
		slog.Error("Database operation failed",
			"layer", "repository",
			"operation", "save_runtime_topology",
			"deployment_id", deploymentID,
			"error", err)
		return err
	}
	return nil
}

func (r *runtimeTopologyRepository) FindByDeploymentID(deploymentID uuid.UUID) (*domain.Topology, error) {
	var model db.RuntimeTopologyModel
	if err := r.db.First(&model, "deployment_id = ?", deploymentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "runtime topology", ID: deploymentID.String()}
		}
		return nil, err
	}
	return r.mapper.Decode(model.Data)
}

type EventRepository interface {
	Create(events ...domain.MonitorEvent) error
	// ListByDeploymentID returns events sorted by timestamp descending.
	ListByDeploymentID(deploymentID uuid.UUID, from, size int) ([]domain.MonitorEvent, error)
}

type eventRepository struct {
	db     *gorm.DB
	mapper *EventMapper
}

func NewEventRepository(database *gorm.DB) EventRepository {
	return &eventRepository{db: database, mapper: &EventMapper{}}
}

func (r *eventRepository) Create(events ...domain.MonitorEvent) error {
	for _, event := range events {
		model, err := r.mapper.ToModel(event)
		if err != nil {
			return err
		}
		model.Timestamp = normalizeTimestamp(model.Timestamp)
		if err := r.db.Create(model).Error; err != nil {
			slog.Error("Database operation failed",
				"layer", "repository",
				"operation", "create_event",
				"deployment_id", model.DeploymentID,
				"kind", model.Kind,
				"error", err)
			return fmt.Errorf("persisting %s event: %w", model.Kind, err)
		}
	}
	return nil
}

func (r *eventRepository) ListByDeploymentID(deploymentID uuid.UUID, from, size int) ([]domain.MonitorEvent, error) {
	var models []db.MonitorEventModel
	err := r.db.
		Where("deployment_id = ?", deploymentID).
		Order("timestamp DESC").
		Offset(from).
		Limit(size).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	events := make([]domain.MonitorEvent, len(models))
	for i := range models {
		event, err := r.mapper.ToDomain(&models[i])
		if err != nil {
			return nil, err
		}
		events[i] = event
	}
	return events, nil
}

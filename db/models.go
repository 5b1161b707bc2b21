// Package db provides database models and utilities for Coxswain.
package db

import (
	"time"

	"github.com/google/uuid"
)

type BaseModel struct {
	ID        uuid.UUID `gorm:"type:char(36);primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type DeploymentModel struct {
	BaseModel
	CloudID       string `gorm:"not null;index;check:cloud_id <> ''"`
	SourceID      string `gorm:"not null;index"`
	SourceName    string `gorm:"not null;check:source_name <> ''"`
	SourceType    string `gorm:"not null;check:source_type <> ''"` // application, csar
	TopologyID    string `gorm:"not null;index;check:topology_id <> ''"`
	EnvironmentID string `gorm:"not null;index"` // denormalized from the setup for the active-deployment query
	VersionID     string `gorm:"not null"`
	Setup         string `gorm:"type:text;not null"`          // JSON snapshot of the deployment inputs
	Status        string `gorm:"not null;check:status <> ''"` // see domain.DeploymentStatus
	StartDate     time.Time
	EndDate       *time.Time `gorm:"index"` // NULL means the deployment is active
}

func (DeploymentModel) TableName() string {
	return "deployments"
}

// RuntimeTopologyModel stores the deployment-scoped copy of a topology,
// keyed by the owning deployment's id rather than the template's id.
type RuntimeTopologyModel struct {
	DeploymentID uuid.UUID `gorm:"type:char(36);primaryKey"`
	Data         string    `gorm:"type:text;not null"` // JSON-encoded topology graph
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (RuntimeTopologyModel) TableName() string {
	return "runtime_topologies"
}

// MonitorEventModel is the durable form of a monitor event, filterable by
// deployment and sortable by timestamp.
type MonitorEventModel struct {
	BaseModel
	DeploymentID uuid.UUID `gorm:"type:char(36);not null;index"`
	CloudID      string    `gorm:"not null"`
	Kind         string    `gorm:"not null;check:kind <> ''"`
	Timestamp    time.Time `gorm:"not null;index"`
	Payload      string    `gorm:"type:text;not null"` // JSON-encoded kind-specific fields
}

func (MonitorEventModel) TableName() string {
	return "monitor_events"
}

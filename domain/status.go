package domain

import "fmt"

// DeploymentStatus represents the lifecycle status of a deployment
type DeploymentStatus int

const (
	DeploymentStatusInitial DeploymentStatus = iota
	DeploymentStatusDeploymentInProgress
	DeploymentStatusDeployed
	DeploymentStatusUndeploymentInProgress
	DeploymentStatusUndeployed
	DeploymentStatusFailure
	DeploymentStatusWarning
	DeploymentStatusUnknown
)

func (s DeploymentStatus) String() string {
	switch s {
	case DeploymentStatusInitial:
		return "initial"
	case DeploymentStatusDeploymentInProgress:
		return "deployment_in_progress"
	case DeploymentStatusDeployed:
		return "deployed"
	case DeploymentStatusUndeploymentInProgress:
		return "undeployment_in_progress"
	case DeploymentStatusUndeployed:
		return "undeployed"
	case DeploymentStatusFailure:
		return "failure"
	case DeploymentStatusWarning:
		return "warning"
	case DeploymentStatusUnknown:
		return "unknown"
	default:
		return "unknown"
	}
}

func ParseDeploymentStatus(s string) (DeploymentStatus, error) {
	switch s {
	case "initial":
		return DeploymentStatusInitial, nil
	case "deployment_in_progress":
		return DeploymentStatusDeploymentInProgress, nil
	case "deployed":
		return DeploymentStatusDeployed, nil
	case "undeployment_in_progress":
		return DeploymentStatusUndeploymentInProgress, nil
	case "undeployed":
		return DeploymentStatusUndeployed, nil
	case "failure":
		return DeploymentStatusFailure, nil
	case "warning":
		return DeploymentStatusWarning, nil
	case "unknown":
		return DeploymentStatusUnknown, nil
	default:
		return DeploymentStatusUnknown, fmt.Errorf("invalid deployment status: %q", s)
	}
}

// InstanceStatus represents the coarse health of a single node instance
type InstanceStatus int

const (
	InstanceStatusProcessing InstanceStatus = iota
	InstanceStatusSuccess
	InstanceStatusFailure
)

func (s InstanceStatus) String() string {
	switch s {
	case InstanceStatusProcessing:
		return "processing"
	case InstanceStatusSuccess:
		return "success"
	case InstanceStatusFailure:
		return "failure"
	default:
		return "processing"
	}
}

func ParseInstanceStatus(s string) (InstanceStatus, error) {
	switch s {
	case "processing":
		return InstanceStatusProcessing, nil
	case "success":
		return InstanceStatusSuccess, nil
	case "failure":
		return InstanceStatusFailure, nil
	default:
		return InstanceStatusProcessing, fmt.Errorf("invalid instance status: %q", s)
	}
}

// SourceType identifies what kind of source a deployment was created from
type SourceType string

const (
	SourceTypeApplication SourceType = "application"
	SourceTypeCSAR        SourceType = "csar"
)

func (t SourceType) String() string {
	return string(t)
}

func (t SourceType) IsValid() bool {
	switch t {
	case SourceTypeApplication, SourceTypeCSAR:
		return true
	default:
		return false
	}
}

func ParseSourceType(s string) (SourceType, error) {
	t := SourceType(s)
	if !t.IsValid() {
		return "", fmt.Errorf("invalid source type: %q", s)
	}
	return t, nil
}

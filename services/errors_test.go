package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestErrorCode(t *testing.T) {
	id := uuid.New()
	tests := []struct {
		err  error
		want string
	}{
		{&NotFoundError{Resource: "deployment", ID: id.String()}, "not_found"},
		{&MissingPluginError{CloudID: "cloud-1"}, "missing_plugin"},
		{&CloudDisabledError{CloudID: "cloud-1"}, "cloud_disabled"},
		{&ConflictError{CloudID: "cloud-1", TopologyID: "t", DeploymentID: id}, "deployment_conflict"},
		{&ConsistencyError{Environment: "env-1", Count: 2}, "consistency_error"},
		{&DeploymentError{DeploymentID: id, Err: errors.New("boom")}, "deployment_error"},
		{&UndeploymentError{DeploymentID: id, Err: errors.New("boom")}, "undeployment_error"},
		{&OperationError{Operation: "restart", Err: errors.New("boom")}, "operation_error"},
		{errors.New("anything else"), "internal_error"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ErrorCode(tt.err))
	}
}

func TestErrorCode_SeesThroughWrapping(t *testing.T) {
	id := uuid.New()
	wrapped := fmt.Errorf("deploy request: %w", &ConflictError{DeploymentID: id})
	assert.Equal(t, "deployment_conflict", ErrorCode(wrapped))
}

func TestDeploymentErrorUnwrap(t *testing.T) {
	cause := errors.New("image not found")
	err := &DeploymentError{DeploymentID: uuid.New(), Err: cause}
	assert.ErrorIs(t, err, cause)
}

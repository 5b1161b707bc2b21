package routes

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"github.com/coxswain-cd/coxswain/db"
	"github.com/coxswain-cd/coxswain/provider/mock"
	"github.com/coxswain-cd/coxswain/services"
)

func setupTestRouter(t *testing.T) chi.Router {
	t.Helper()

	database, err := db.InitDatabase(db.DBConfig{Path: ":memory:", LogLevel: logger.Silent})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrateAll(database))

	records := services.NewDeploymentRecordService(
		services.NewDeploymentRepository(database),
		services.NewRuntimeTopologyRepository(database),
	)
	events := services.NewEventService(services.NewEventBuffer(), services.NewEventRepository(database))

	provider := mock.NewProvider("cloud-1", mock.WithTransitionDelay(10*time.Millisecond))
	t.Cleanup(provider.Close)
	registry := services.NewProviderRegistry()
	registry.Register("cloud-1", provider)

	return NewRouter(services.NewEngine(records, registry, events), records)
}

func deployBody() map[string]any {
	return map[string]any{
		"cloudId": "cloud-1",
		"source":  map[string]any{"id": "app-1", "name": "my-app", "type": "application"},
		"setup":   map[string]any{"environmentId": "env-1", "versionId": "0.1.0"},
		"topology": map[string]any{
			"id": "topology-1",
			"nodeTemplates": map[string]any{
				"compute1": map[string]any{"type": "coxswain.nodes.Compute"},
				"app1": map[string]any{
					"type": "coxswain.nodes.Application",
					"relationships": map[string]any{
						"host": map[string]any{"type": "coxswain.relationships.HostedOn", "target": "compute1"},
					},
				},
			},
			"scalingPolicies": map[string]any{
				"compute1": map[string]any{"minInstances": 1, "maxInstances": 5, "initialInstances": 2},
			},
		},
	}
}

func doJSON(t *testing.T, router chi.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeMap(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestDeployLifecycleOverHTTP(t *testing.T) {
	router := setupTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/deployments", deployBody())
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	deploymentID := decodeMap(t, rec)["deploymentId"].(string)
	require.NotEmpty(t, deploymentID)

	rec = doJSON(t, router, http.MethodGet, "/api/deployments/"+deploymentID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decodeMap(t, rec)
	assert.Equal(t, "cloud-1", view["cloudId"])
	assert.Equal(t, "deployment_in_progress", view["status"])

	rec = doJSON(t, router, http.MethodGet, "/api/deployments/"+deploymentID+"/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status := decodeMap(t, rec)["status"].(string)
	assert.Contains(t, []string{"deployment_in_progress", "deployed"}, status)

	rec = doJSON(t, router, http.MethodGet, "/api/deployments/"+deploymentID+"/instances", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/deployments/"+deploymentID+"/events", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/deployments/"+deploymentID+"/undeploy", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "undeployment_in_progress", decodeMap(t, rec)["status"])
}

func TestDeployConflictOverHTTP(t *testing.T) {
	router := setupTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/deployments", deployBody())
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/deployments", deployBody())
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "deployment_conflict", decodeMap(t, rec)["code"])
}

func TestDeployValidationOverHTTP(t *testing.T) {
	router := setupTestRouter(t)

	body := deployBody()
	body["source"].(map[string]any)["type"] = "bogus"
	rec := doJSON(t, router, http.MethodPost, "/api/deployments", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body = deployBody()
	body["topology"].(map[string]any)["id"] = ""
	rec = doJSON(t, router, http.MethodPost, "/api/deployments", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body = deployBody()
	body["cloudId"] = "unknown-cloud"
	rec = doJSON(t, router, http.MethodPost, "/api/deployments", body)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "missing_plugin", decodeMap(t, rec)["code"])
}

func TestDeploymentEndpointsUnknownID(t *testing.T) {
	router := setupTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/deployments/0e5ff4f4-6058-4e51-ab26-dcb5f2e8ba44", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeMap(t, rec)["code"])

	rec = doJSON(t, router, http.MethodGet, "/api/deployments/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEnvironmentEndpointsOverHTTP(t *testing.T) {
	router := setupTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/deployments", deployBody())
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/environments/env-1/scale", map[string]any{
		"nodeTemplateId": "app1",
		"instances":      1,
	})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodGet, "/api/environments/env-1/events", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/environments/env-1/undeploy", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	// An environment with no active deployment answers 404
	rec = doJSON(t, router, http.MethodPost, "/api/environments/env-other/undeploy", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExecuteOperationOverHTTP(t *testing.T) {
	router := setupTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/deployments", deployBody())
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/environments/env-1/operations", map[string]any{
		"nodeTemplateId": "compute1",
		"interface":      "custom",
		"operation":      "restart",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	results := decodeMap(t, rec)
	assert.NotEmpty(t, results)

	// Missing operation name surfaces as a provider operation failure
	rec = doJSON(t, router, http.MethodPost, "/api/environments/env-1/operations", map[string]any{
		"nodeTemplateId": "compute1",
	})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "operation_error", decodeMap(t, rec)["code"])
}

// Package handlers provides the JSON HTTP handlers for the Coxswain API.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/coxswain-cd/coxswain/domain"
	"github.com/coxswain-cd/coxswain/services"
)

// statusWaitTimeout bounds how long a request handler waits for the first
// provider callback before giving up.
const statusWaitTimeout = 30 * time.Second

// API exposes the orchestration engine over HTTP.
type API struct {
	engine  *services.Engine
	records *services.DeploymentRecordService
}

func NewAPI(engine *services.Engine, records *services.DeploymentRecordService) *API {
	return &API{engine: engine, records: records}
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	code := services.ErrorCode(err)
	status := http.StatusInternalServerError
	switch code {
	case "not_found", "missing_plugin":
		status = http.StatusNotFound
	case "cloud_disabled", "deployment_conflict":
		status = http.StatusConflict
	case "deployment_error", "undeployment_error", "operation_error":
		status = http.StatusBadGateway
	}
	writeJSON(w, status, errorResponse{Code: code, Message: err.Error()})
}

func parseDeploymentID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "id")
	if raw == "" {
		return uuid.Nil, errors.New("deployment ID is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, errors.New("invalid deployment ID format")
	}
	return id, nil
}

func parsePagination(r *http.Request) (from, size int) {
	from, size = 0, 50
	if raw := r.URL.Query().Get("from"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 {
			from = parsed
		}
	}
	if raw := r.URL.Query().Get("size"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			size = parsed
		}
	}
	return from, size
}

// Request/response shapes

type deployRequest struct {
	CloudID  string       `json:"cloudId"`
	Source   sourceView   `json:"source"`
	Setup    setupView    `json:"setup"`
	Topology topologyView `json:"topology"`
}

type sourceView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

type setupView struct {
	EnvironmentID   string            `json:"environmentId"`
	VersionID       string            `json:"versionId"`
	InputProperties map[string]string `json:"inputProperties,omitempty"`
	InputArtifacts  map[string]string `json:"inputArtifacts,omitempty"`
}

type topologyView struct {
	ID              string                       `json:"id"`
	NodeTemplates   map[string]nodeTemplateView  `json:"nodeTemplates,omitempty"`
	ScalingPolicies map[string]scalingPolicyView `json:"scalingPolicies,omitempty"`
}

type nodeTemplateView struct {
	Type          string                      `json:"type"`
	Properties    map[string]string           `json:"properties,omitempty"`
	Relationships map[string]relationshipView `json:"relationships,omitempty"`
}

type relationshipView struct {
	Type   string `json:"type"`
	Target string `json:"target"`
}

type scalingPolicyView struct {
	MinInstances     int `json:"minInstances"`
	MaxInstances     int `json:"maxInstances"`
	InitialInstances int `json:"initialInstances"`
}

type deploymentView struct {
	ID         string     `json:"id"`
	CloudID    string     `json:"cloudId"`
	SourceID   string     `json:"sourceId"`
	SourceName string     `json:"sourceName"`
	SourceType string     `json:"sourceType"`
	TopologyID string     `json:"topologyId"`
	Setup      setupView  `json:"setup"`
	Status     string     `json:"status"`
	StartDate  time.Time  `json:"startDate"`
	EndDate    *time.Time `json:"endDate,omitempty"`
}

type scaleRequest struct {
	NodeTemplateID string `json:"nodeTemplateId"`
	Instances      int    `json:"instances"`
}

type operationRequest struct {
	NodeTemplateID string            `json:"nodeTemplateId"`
	InstanceID     string            `json:"instanceId,omitempty"`
	Interface      string            `json:"interface"`
	Operation      string            `json:"operation"`
	Parameters     map[string]string `json:"parameters,omitempty"`
}

type eventView struct {
	Kind         string         `json:"kind"`
	DeploymentID string         `json:"deploymentId"`
	CloudID      string         `json:"cloudId"`
	Timestamp    time.Time      `json:"timestamp"`
	Details      map[string]any `json:"details,omitempty"`
}

func toTopology(v topologyView) *domain.Topology {
	t := &domain.Topology{
		ID:              v.ID,
		NodeTemplates:   make(map[string]domain.NodeTemplate, len(v.NodeTemplates)),
		ScalingPolicies: make(map[string]*domain.ScalingPolicy, len(v.ScalingPolicies)),
	}
	for name, node := range v.NodeTemplates {
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
	for name, policy := range v.ScalingPolicies {
		t.ScalingPolicies[name] = &domain.ScalingPolicy{
			MinInstances:     policy.MinInstances,
			MaxInstances:     policy.MaxInstances,
			InitialInstances: policy.InitialInstances,
		}
	}
	return t
}

func toDeploymentView(d *domain.Deployment) deploymentView {
	return deploymentView{
		ID:         d.ID.String(),
		CloudID:    d.CloudID,
		SourceID:   d.SourceID,
		SourceName: d.SourceName,
		SourceType: d.SourceType.String(),
		TopologyID: d.TopologyID,
		Setup: setupView{
			EnvironmentID:   d.Setup.EnvironmentID,
			VersionID:       d.Setup.VersionID,
			InputProperties: d.Setup.InputProperties,
			InputArtifacts:  d.Setup.InputArtifacts,
		},
		Status:    d.Status.String(),
		StartDate: d.StartDate,
		EndDate:   d.EndDate,
	}
}

func toEventView(event domain.MonitorEvent) eventView {
	meta := event.Meta()
	view := eventView{
		Kind:         string(event.Kind()),
		DeploymentID: meta.DeploymentID.String(),
		CloudID:      meta.CloudID,
		Timestamp:    meta.Timestamp,
		Details:      map[string]any{},
	}
	switch e := event.(type) {
	case domain.StatusEvent:
		view.Details["status"] = e.Status.String()
	case domain.InstanceStateEvent:
		view.Details["nodeTemplateId"] = e.NodeTemplateID
		view.Details["instanceId"] = e.InstanceID
		view.Details["instanceState"] = e.InstanceState
		view.Details["instanceStatus"] = e.InstanceStatus.String()
	case domain.MessageEvent:
		view.Details["message"] = e.Message
	case domain.InstanceStorageEvent:
		view.Details["nodeTemplateId"] = e.NodeTemplateID
		view.Details["instanceId"] = e.InstanceID
		view.Details["volumeId"] = e.VolumeID
	}
	return view
}

// Handlers

// HandleDeploy deploys a topology and returns the generated deployment id.
func (a *API) HandleDeploy(w http.ResponseWriter, r *http.Request) {
	var req deployRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: "bad_request", Message: "invalid request body"})
		return
	}
	sourceType, err := domain.ParseSourceType(req.Source.Type)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: "bad_request", Message: err.Error()})
		return
	}
	if req.Topology.ID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: "bad_request", Message: "topology id is required"})
		return
	}

	deploymentID, err := a.engine.Deploy(
		r.Context(),
		toTopology(req.Topology),
		domain.DeploymentSource{ID: req.Source.ID, Name: req.Source.Name, Type: sourceType},
		domain.DeploymentSetup{
			EnvironmentID:   req.Setup.EnvironmentID,
			VersionID:       req.Setup.VersionID,
			InputProperties: req.Setup.InputProperties,
			InputArtifacts:  req.Setup.InputArtifacts,
		},
		req.CloudID,
	)
	if err != nil {
		// A provider rejection still produced a record; report it so the
		// caller can poll the status endpoint.
		var deployErr *services.DeploymentError
		if errors.As(err, &deployErr) {
			writeJSON(w, http.StatusBadGateway, map[string]string{
				"deploymentId": deploymentID.String(),
				"code":         services.ErrorCode(err),
				"message":      err.Error(),
			})
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"deploymentId": deploymentID.String()})
}

// HandleListDeployments lists deployments filterable by cloud and source.
func (a *API) HandleListDeployments(w http.ResponseWriter, r *http.Request) {
	from, size := parsePagination(r)
	filter := services.DeploymentFilter{
		CloudID:  r.URL.Query().Get("cloudId"),
		SourceID: r.URL.Query().Get("sourceId"),
	}

	deployments, err := a.engine.Deployments(filter, from, size)
	if err != nil {
		writeError(w, err)
		return
	}
	views := make([]deploymentView, len(deployments))
	for i, d := range deployments {
		views[i] = toDeploymentView(d)
	}
	writeJSON(w, http.StatusOK, views)
}

// HandleGetDeployment returns a single deployment record.
func (a *API) HandleGetDeployment(w http.ResponseWriter, r *http.Request) {
	id, err := parseDeploymentID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: "bad_request", Message: err.Error()})
		return
	}
	deployment, err := a.records.GetMandatory(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDeploymentView(deployment))
}

// HandleDeploymentStatus queries the provider for the current status.
func (a *API) HandleDeploymentStatus(w http.ResponseWriter, r *http.Request) {
	id, err := parseDeploymentID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: "bad_request", Message: err.Error()})
		return
	}
	deployment, err := a.records.GetMandatory(id)
	if err != nil {
		writeError(w, err)
		return
	}

	type statusResult struct {
		status domain.DeploymentStatus
		err    error
	}
	// Buffered so late or repeated provider deliveries never block.
	results := make(chan statusResult, 8)
	err = a.engine.Status(r.Context(), deployment, func(status domain.DeploymentStatus, err error) {
		select {
		case results <- statusResult{status: status, err: err}:
		default:
		}
	})
	if err != nil {
		writeError(w, err)
		return
	}

	select {
	case result := <-results:
		if result.err != nil {
			writeError(w, result.err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": result.status.String()})
	case <-time.After(statusWaitTimeout):
		writeJSON(w, http.StatusGatewayTimeout, errorResponse{
			Code:    "provider_timeout",
			Message: "provider did not report a status in time",
		})
	}
}

// HandleUndeploy un-deploys a deployment by id.
func (a *API) HandleUndeploy(w http.ResponseWriter, r *http.Request) {
	id, err := parseDeploymentID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: "bad_request", Message: err.Error()})
		return
	}
	if err := a.engine.Undeploy(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": domain.DeploymentStatusUndeploymentInProgress.String()})
}

// HandleInstancesInformation returns per-instance runtime information.
func (a *API) HandleInstancesInformation(w http.ResponseWriter, r *http.Request) {
	id, err := parseDeploymentID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: "bad_request", Message: err.Error()})
		return
	}
	deployment, err := a.records.GetMandatory(id)
	if err != nil {
		writeError(w, err)
		return
	}

	type instancesResult struct {
		info domain.InstancesInformation
		err  error
	}
	results := make(chan instancesResult, 8)
	err = a.engine.InstancesInformation(r.Context(), deployment, func(info domain.InstancesInformation, err error) {
		select {
		case results <- instancesResult{info: info, err: err}:
		default:
		}
	})
	if err != nil {
		writeError(w, err)
		return
	}

	select {
	case result := <-results:
		if result.err != nil {
			writeError(w, result.err)
			return
		}
		writeJSON(w, http.StatusOK, result.info)
	case <-time.After(statusWaitTimeout):
		writeJSON(w, http.StatusGatewayTimeout, errorResponse{
			Code:    "provider_timeout",
			Message: "provider did not report instance information in time",
		})
	}
}

// HandleDeploymentEvents returns persisted monitor events, newest first.
func (a *API) HandleDeploymentEvents(w http.ResponseWriter, r *http.Request) {
	id, err := parseDeploymentID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: "bad_request", Message: err.Error()})
		return
	}
	from, size := parsePagination(r)

	events, err := a.engine.DeploymentEvents(id, from, size)
	if err != nil {
		writeError(w, err)
		return
	}
	views := make([]eventView, len(events))
	for i, event := range events {
		views[i] = toEventView(event)
	}
	writeJSON(w, http.StatusOK, views)
}

// HandleScale scales a node of the active deployment of an environment.
func (a *API) HandleScale(w http.ResponseWriter, r *http.Request) {
	environmentID := chi.URLParam(r, "env")
	var req scaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: "bad_request", Message: "invalid request body"})
		return
	}
	if req.NodeTemplateID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: "bad_request", Message: "nodeTemplateId is required"})
		return
	}

	if err := a.engine.Scale(r.Context(), environmentID, req.NodeTemplateID, req.Instances); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// HandleUndeployEnvironment un-deploys the active deployment of an
// environment.
func (a *API) HandleUndeployEnvironment(w http.ResponseWriter, r *http.Request) {
	environmentID := chi.URLParam(r, "env")
	if err := a.engine.UndeployEnvironment(r.Context(), environmentID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": domain.DeploymentStatusUndeploymentInProgress.String()})
}

// HandleExecuteOperation triggers a named operation on the active
// deployment of an environment.
func (a *API) HandleExecuteOperation(w http.ResponseWriter, r *http.Request) {
	environmentID := chi.URLParam(r, "env")
	var req operationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: "bad_request", Message: "invalid request body"})
		return
	}

	type operationResult struct {
		results map[string]string
		err     error
	}
	results := make(chan operationResult, 8)
	err := a.engine.ExecuteOperation(r.Context(), domain.OperationRequest{
		EnvironmentID:  environmentID,
		NodeTemplateID: req.NodeTemplateID,
		InstanceID:     req.InstanceID,
		Interface:      req.Interface,
		Operation:      req.Operation,
		Parameters:     req.Parameters,
	}, func(res map[string]string, err error) {
		select {
		case results <- operationResult{results: res, err: err}:
		default:
		}
	})
	if err != nil {
		writeError(w, err)
		return
	}

	select {
	case result := <-results:
		if result.err != nil {
			writeError(w, result.err)
			return
		}
		writeJSON(w, http.StatusOK, result.results)
	case <-time.After(statusWaitTimeout):
		writeJSON(w, http.StatusGatewayTimeout, errorResponse{
			Code:    "provider_timeout",
			Message: "provider did not report an operation result in time",
		})
	}
}

// HandleEnvironmentEvents returns events of the active deployment of an
// environment.
func (a *API) HandleEnvironmentEvents(w http.ResponseWriter, r *http.Request) {
	environmentID := chi.URLParam(r, "env")
	from, size := parsePagination(r)

	events, err := a.engine.EnvironmentEvents(environmentID, from, size)
	if err != nil {
		writeError(w, err)
		return
	}
	views := make([]eventView, len(events))
	for i, event := range events {
		views[i] = toEventView(event)
	}
	writeJSON(w, http.StatusOK, views)
}

// Package routes provides HTTP route registration for the API server.
package routes

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/coxswain-cd/coxswain/services"
	"github.com/coxswain-cd/coxswain/web/handlers"
)

// NewRouter builds the API router on top of the orchestration engine.
func NewRouter(engine *services.Engine, records *services.DeploymentRecordService) chi.Router {
	api := handlers.NewAPI(engine, records)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Route("/deployments", func(r chi.Router) {
			r.Post("/", api.HandleDeploy)
			r.Get("/", api.HandleListDeployments)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", api.HandleGetDeployment)
				r.Get("/status", api.HandleDeploymentStatus)
				r.Get("/instances", api.HandleInstancesInformation)
				r.Get("/events", api.HandleDeploymentEvents)
				r.Post("/undeploy", api.HandleUndeploy)
			})
		})

		r.Route("/environments/{env}", func(r chi.Router) {
			r.Post("/scale", api.HandleScale)
			r.Post("/undeploy", api.HandleUndeployEnvironment)
			r.Post("/operations", api.HandleExecuteOperation)
			r.Get("/events", api.HandleEnvironmentEvents)
		})
	})

	return r
}

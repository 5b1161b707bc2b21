package domain

import (
	"regexp"

	"github.com/google/uuid"
)

var recipeIDSanitizer = regexp.MustCompile(`[^A-Za-z0-9]`)

// RecipeID derives the deterministic identifier used to name provider-side
// deployment artifacts. Every character outside [A-Za-z0-9] is replaced
// with an underscore.
func RecipeID(sourceName, environmentID, versionID string) string {
	return recipeIDSanitizer.ReplaceAllString(sourceName+"_"+environmentID+"_"+versionID, "_")
}

// DeploymentContext is the ephemeral, provider-facing view of a deployment.
// It is rebuilt for every provider call and never persisted.
type DeploymentContext struct {
	DeploymentID uuid.UUID
	RecipeID     string
	Topology     *Topology
	Setup        DeploymentSetup
}

package api

import (
	"context"
	"net/http"

	"yeti/core"
)

// GET /health
func (a *API) healthCheck(w http.ResponseWriter, r *http.Request) {
	if a.health == nil {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), core.DBHealthTimeout)
	defer cancel()

	if err := a.health.HealthCheck(ctx); err != nil {
		a.logger.Errorw("Health check failed", "error", err)
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":   "unhealthy",
			"database": "unreachable",
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok", "database": "ok"})
}

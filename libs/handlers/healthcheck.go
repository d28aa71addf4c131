package handlers

import (
	"net/http"

	"github.com/ordana/payments/libs/logging"
)

// HealthCheckResponse - response structure for healthchecks
type HealthCheckResponse struct {
	BuildTime string `json:"buildTime"`
	Commit    string `json:"commit"`
	Version   string `json:"version"`
}

// HealthCheckHandler - function which generates a health check http.HandlerFunc
func HealthCheckHandler(version, buildTime, commit string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := logging.Logger(ctx, "handlers.HealthCheckHandler")

		w.Header().Set("content-type", "application/json")
		hcr := HealthCheckResponse{
			Commit:    commit,
			BuildTime: buildTime,
			Version:   version,
		}
		if err := RenderContent(ctx, hcr, w, http.StatusOK); err != nil {
			logger.Error().Err(err).Msg("failed to render health check response")
		}
	}
}

package health

import (
	"net/http"

	applog "github.com/janisto/wa-photo-proxy/internal/platform/logging"
	"github.com/janisto/wa-photo-proxy/internal/platform/respond"
)

// Path is where the health check is mounted.
const Path = "/health"

// Response is the payload for the health endpoint.
type Response struct {
	Status string `json:"status"`
}

// Handler is a plain HTTP handler for the health check endpoint. The service
// holds no state, so it is healthy whenever it can answer.
func Handler(w http.ResponseWriter, r *http.Request) {
	if err := respond.Write(w, http.StatusOK, Response{Status: "healthy"}); err != nil {
		applog.LogError(r.Context(), "failed to render health", err)
	}
}

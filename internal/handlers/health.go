package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/respond"
)

const healthTimeout = 2 * time.Second

// HealthHandler responds with service health information.
type HealthHandler struct {
	Store HealthChecker
}

type healthStatus struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// Handle implements GET /healthz.
func (h HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.Store != nil {
		pingCtx, cancel := context.WithTimeout(ctx, healthTimeout)
		defer cancel()
		if err := h.Store.Ping(pingCtx); err != nil {
			logging.FromContext(ctx).Error("health check failed", "error", err)
			respond.JSON(ctx, w, http.StatusServiceUnavailable, healthStatus{Status: "degraded", Database: "unreachable"}, "database unreachable")
			return
		}
	}

	respond.JSON(ctx, w, http.StatusOK, healthStatus{Status: "ok", Database: "ok"}, "ok")
}

package handlers

import (
	"net/http"

	"github.com/vidtube/backend/internal/respond"
)

// DashboardHandler reports on the caller's own channel.
type DashboardHandler struct {
	Reads ReadModels
}

// Stats handles GET /api/v1/dashboard/stats.
func (h DashboardHandler) Stats(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	user, err := currentUser(r)
	if err != nil {
		return err
	}

	stats, err := h.Reads.ChannelStats(ctx, user.ID)
	if err != nil {
		return storeError(err, "channel stats")
	}

	respond.JSON(ctx, w, http.StatusOK, stats, "channel stats fetched successfully")
	return nil
}

// Videos handles GET /api/v1/dashboard/videos.
func (h DashboardHandler) Videos(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	user, err := currentUser(r)
	if err != nil {
		return err
	}

	videos, err := h.Reads.ChannelVideos(ctx, user.ID)
	if err != nil {
		return storeError(err, "channel videos")
	}

	respond.JSON(ctx, w, http.StatusOK, videos, "channel videos fetched successfully")
	return nil
}

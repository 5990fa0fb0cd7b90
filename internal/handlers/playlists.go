package handlers

import (
	"errors"
	"net/http"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/vidtube/backend/internal/apierror"
	"github.com/vidtube/backend/internal/middleware"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/repositories"
	"github.com/vidtube/backend/internal/respond"
)

// PlaylistHandler serves playlist endpoints.
type PlaylistHandler struct {
	Playlists repositories.PlaylistRepository
	Videos    repositories.VideoRepository
	Reads     ReadModels
}

type createPlaylistRequest struct {
	Name        string `json:"name" validate:"notblank,max=120"`
	Description string `json:"description" validate:"notblank"`
}

// Create handles POST /api/v1/playlist/{id} where id is the first video.
func (h PlaylistHandler) Create(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	user, err := currentUser(r)
	if err != nil {
		return err
	}
	videoID, err := objectIDParam(r, "id")
	if err != nil {
		return err
	}

	var req createPlaylistRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	if _, err := h.Videos.FindByID(ctx, videoID); err != nil {
		return storeError(err, "video")
	}

	playlist := models.Playlist{
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		Owner:       user.ID,
		Videos:      []primitive.ObjectID{videoID},
	}
	if err := h.Playlists.Create(ctx, &playlist); err != nil {
		return storeError(err, "playlist")
	}

	respond.JSON(ctx, w, http.StatusCreated, playlist, "playlist created successfully")
	return nil
}

// ByUser handles GET /api/v1/playlist/user/{userId}.
func (h PlaylistHandler) ByUser(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	owner, err := objectIDParam(r, "userId")
	if err != nil {
		return err
	}

	playlists, err := h.Reads.UserPlaylists(ctx, owner)
	if err != nil {
		return storeError(err, "playlists")
	}

	respond.JSON(ctx, w, http.StatusOK, playlists, "playlists fetched successfully")
	return nil
}

// Get handles GET /api/v1/playlist/{id}.
func (h PlaylistHandler) Get(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	id, err := objectIDParam(r, "id")
	if err != nil {
		return err
	}

	playlist, err := h.Reads.PlaylistDetail(ctx, id, middleware.ViewerID(ctx))
	if err != nil {
		return storeError(err, "playlist")
	}

	respond.JSON(ctx, w, http.StatusOK, playlist, "playlist fetched successfully")
	return nil
}

// AddVideo handles PATCH /api/v1/playlist/add/{videoId}/{playlistId}.
func (h PlaylistHandler) AddVideo(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	user, videoID, playlistID, err := h.membershipParams(r)
	if err != nil {
		return err
	}
	if _, err := h.Videos.FindByID(ctx, videoID); err != nil {
		return storeError(err, "video")
	}

	playlist, err := h.Playlists.AddVideo(ctx, playlistID, user.ID, videoID)
	if errors.Is(err, repositories.ErrDuplicate) {
		return apierror.Validation("video already exists in playlist").Wrap(err)
	}
	if err != nil {
		return storeError(err, "playlist")
	}

	respond.JSON(ctx, w, http.StatusOK, playlist, "video added to playlist successfully")
	return nil
}

// RemoveVideo handles PATCH /api/v1/playlist/remove/{videoId}/{playlistId}.
func (h PlaylistHandler) RemoveVideo(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	user, videoID, playlistID, err := h.membershipParams(r)
	if err != nil {
		return err
	}

	playlist, err := h.Playlists.RemoveVideo(ctx, playlistID, user.ID, videoID)
	if err != nil {
		return storeError(err, "playlist")
	}

	respond.JSON(ctx, w, http.StatusOK, playlist, "video removed from playlist successfully")
	return nil
}

func (h PlaylistHandler) membershipParams(r *http.Request) (models.User, primitive.ObjectID, primitive.ObjectID, error) {
	user, err := currentUser(r)
	if err != nil {
		return models.User{}, primitive.NilObjectID, primitive.NilObjectID, err
	}
	videoID, err := objectIDParam(r, "videoId")
	if err != nil {
		return models.User{}, primitive.NilObjectID, primitive.NilObjectID, err
	}
	playlistID, err := objectIDParam(r, "playlistId")
	if err != nil {
		return models.User{}, primitive.NilObjectID, primitive.NilObjectID, err
	}
	return user, videoID, playlistID, nil
}

type updatePlaylistRequest struct {
	Name        string `json:"name" validate:"required_without=Description,omitempty,notblank,max=120"`
	Description string `json:"description" validate:"required_without=Name,omitempty,notblank"`
}

// Update handles PATCH /api/v1/playlist/{id}.
func (h PlaylistHandler) Update(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	user, err := currentUser(r)
	if err != nil {
		return err
	}
	id, err := objectIDParam(r, "id")
	if err != nil {
		return err
	}

	var req updatePlaylistRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}

	playlist, err := h.Playlists.Update(ctx, id, user.ID, repositories.PlaylistUpdate{
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
	})
	if err != nil {
		return storeError(err, "playlist")
	}

	respond.JSON(ctx, w, http.StatusOK, playlist, "playlist updated successfully")
	return nil
}

// Delete handles DELETE /api/v1/playlist/{id}.
func (h PlaylistHandler) Delete(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	user, err := currentUser(r)
	if err != nil {
		return err
	}
	id, err := objectIDParam(r, "id")
	if err != nil {
		return err
	}

	if err := h.Playlists.Delete(ctx, id, user.ID); err != nil {
		return storeError(err, "playlist")
	}

	respond.JSON(ctx, w, http.StatusOK, struct{}{}, "playlist deleted successfully")
	return nil
}

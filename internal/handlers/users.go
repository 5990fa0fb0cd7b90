package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/vidtube/backend/internal/apierror"
	"github.com/vidtube/backend/internal/middleware"
	"github.com/vidtube/backend/internal/repositories"
	"github.com/vidtube/backend/internal/respond"
)

// UserHandler serves profile and channel endpoints.
type UserHandler struct {
	Users repositories.UserRepository
	Reads ReadModels
	Media mediaStore
}

// CurrentUser handles GET /api/v1/users/current-user.
func (h UserHandler) CurrentUser(w http.ResponseWriter, r *http.Request) error {
	user, err := currentUser(r)
	if err != nil {
		return err
	}
	respond.JSON(r.Context(), w, http.StatusOK, user, "current user fetched successfully")
	return nil
}

type updateAccountRequest struct {
	FullName string `json:"fullName" validate:"required_without=Email,omitempty,notblank"`
	Email    string `json:"email" validate:"required_without=FullName,omitempty,email"`
}

// UpdateAccount handles PATCH /api/v1/users/update-account.
func (h UserHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	user, err := currentUser(r)
	if err != nil {
		return err
	}

	var req updateAccountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}

	updated, err := h.Users.UpdateAccount(ctx, user.ID, repositories.AccountUpdate{
		FullName: strings.TrimSpace(req.FullName),
		Email:    repositories.NormalizeHandle(req.Email),
	})
	if err != nil {
		return storeError(err, "user")
	}

	respond.JSON(ctx, w, http.StatusOK, updated, "account details updated successfully")
	return nil
}

// UpdateAvatar handles PATCH /api/v1/users/avatar.
func (h UserHandler) UpdateAvatar(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	user, err := currentUser(r)
	if err != nil {
		return err
	}
	if err := parseMultipart(w, r, maxImageUpload); err != nil {
		return err
	}

	avatar, err := h.Media.upload(ctx, r, "avatar", "avatars", true)
	if err != nil {
		return err
	}
	updated, err := h.Users.SetAvatar(ctx, user.ID, avatar.URL)
	if err != nil {
		h.Media.discard(ctx, avatar)
		return storeError(err, "user")
	}

	respond.JSON(ctx, w, http.StatusOK, updated, "avatar image updated successfully")
	return nil
}

// UpdateCoverImage handles PATCH /api/v1/users/cover-image.
func (h UserHandler) UpdateCoverImage(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	user, err := currentUser(r)
	if err != nil {
		return err
	}
	if err := parseMultipart(w, r, maxImageUpload); err != nil {
		return err
	}

	cover, err := h.Media.upload(ctx, r, "coverImage", "covers", true)
	if err != nil {
		return err
	}
	updated, err := h.Users.SetCoverImage(ctx, user.ID, cover.URL)
	if err != nil {
		h.Media.discard(ctx, cover)
		return storeError(err, "user")
	}

	respond.JSON(ctx, w, http.StatusOK, updated, "cover image updated successfully")
	return nil
}

// Channel handles GET /api/v1/users/channel/{username}.
func (h UserHandler) Channel(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	username := strings.TrimSpace(chi.URLParam(r, "username"))
	if username == "" {
		return apierror.Validation("username is missing")
	}

	profile, err := h.Reads.ChannelProfile(ctx, username, middleware.ViewerID(ctx))
	if errors.Is(err, repositories.ErrNotFound) {
		return apierror.NotFound("channel does not exist").Wrap(err)
	}
	if err != nil {
		return storeError(err, "channel")
	}

	respond.JSON(ctx, w, http.StatusOK, profile, "user channel fetched successfully")
	return nil
}

// WatchHistory handles GET /api/v1/users/watch-history.
func (h UserHandler) WatchHistory(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	user, err := currentUser(r)
	if err != nil {
		return err
	}

	history, err := h.Reads.WatchHistory(ctx, user.ID)
	if err != nil {
		return storeError(err, "watch history")
	}

	respond.JSON(ctx, w, http.StatusOK, history, "watch history fetched successfully")
	return nil
}

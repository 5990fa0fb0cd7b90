package handlers

import (
	"net/http"
	"strings"

	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/pagination"
	"github.com/vidtube/backend/internal/repositories"
	"github.com/vidtube/backend/internal/respond"
)

// CommentHandler serves the comments of a video.
type CommentHandler struct {
	Comments repositories.CommentRepository
	Videos   repositories.VideoRepository
	Reads    ReadModels
}

type contentRequest struct {
	Content string `json:"content" validate:"notblank,max=5000"`
}

// List handles GET /api/v1/comments/{id} where id is a video.
func (h CommentHandler) List(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	videoID, err := objectIDParam(r, "id")
	if err != nil {
		return err
	}

	q := r.URL.Query()
	page, err := h.Reads.VideoComments(ctx, videoID, pagination.ParseParams(q.Get("page"), q.Get("limit")))
	if err != nil {
		return storeError(err, "comments")
	}

	respond.JSON(ctx, w, http.StatusOK, page, "comments fetched successfully")
	return nil
}

// Create handles POST /api/v1/comments/{id} where id is a video.
func (h CommentHandler) Create(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	user, err := currentUser(r)
	if err != nil {
		return err
	}
	videoID, err := objectIDParam(r, "id")
	if err != nil {
		return err
	}

	var req contentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	if _, err := h.Videos.FindByID(ctx, videoID); err != nil {
		return storeError(err, "video")
	}

	comment := models.Comment{
		Content: strings.TrimSpace(req.Content),
		Video:   videoID,
		Owner:   user.ID,
	}
	if err := h.Comments.Create(ctx, &comment); err != nil {
		return storeError(err, "comment")
	}

	respond.JSON(ctx, w, http.StatusCreated, comment, "comment added successfully")
	return nil
}

// Update handles PATCH /api/v1/comments/{id} where id is a comment.
func (h CommentHandler) Update(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	user, err := currentUser(r)
	if err != nil {
		return err
	}
	id, err := objectIDParam(r, "id")
	if err != nil {
		return err
	}

	var req contentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}

	comment, err := h.Comments.Update(ctx, id, user.ID, strings.TrimSpace(req.Content))
	if err != nil {
		return storeError(err, "comment")
	}

	respond.JSON(ctx, w, http.StatusOK, comment, "comment updated successfully")
	return nil
}

// Delete handles DELETE /api/v1/comments/{id} where id is a comment.
func (h CommentHandler) Delete(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	user, err := currentUser(r)
	if err != nil {
		return err
	}
	id, err := objectIDParam(r, "id")
	if err != nil {
		return err
	}

	if err := h.Comments.Delete(ctx, id, user.ID); err != nil {
		return storeError(err, "comment")
	}

	respond.JSON(ctx, w, http.StatusOK, struct{}{}, "comment deleted successfully")
	return nil
}

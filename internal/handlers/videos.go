package handlers

import (
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/vidtube/backend/internal/apierror"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/middleware"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/pagination"
	"github.com/vidtube/backend/internal/queries"
	"github.com/vidtube/backend/internal/repositories"
	"github.com/vidtube/backend/internal/respond"
	"github.com/vidtube/backend/internal/videos"
)

// VideoHandler provides endpoints for publishing and browsing videos.
type VideoHandler struct {
	Videos repositories.VideoRepository
	Reads  ReadModels
	Media  mediaStore
	// Prober is optional; without it the duration comes from the form.
	Prober videos.Prober
	Views  ViewRecorder
}

// Feed handles GET /api/v1/videos.
func (h VideoHandler) Feed(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	q := r.URL.Query()

	filter := queries.FeedFilter{
		Query:    q.Get("query"),
		SortBy:   q.Get("sortBy"),
		SortType: q.Get("sortType"),
		Viewer:   middleware.ViewerID(ctx),
		Params:   pagination.ParseParams(q.Get("page"), q.Get("limit")),
	}
	if raw := strings.TrimSpace(q.Get("userId")); raw != "" {
		owner, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			return apierror.Validation("invalid userId").Wrap(err)
		}
		filter.Owner = owner
	}

	page, err := h.Reads.VideoFeed(ctx, filter)
	if err != nil {
		return storeError(err, "videos")
	}

	respond.JSON(ctx, w, http.StatusOK, page, "videos fetched successfully")
	return nil
}

// Suggestions handles GET /api/v1/videos/suggestions.
func (h VideoHandler) Suggestions(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	q := r.URL.Query()

	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return apierror.Validation("invalid limit").Wrap(err)
		}
		limit = n
	}

	suggestions, err := h.Reads.SearchSuggestions(ctx, q.Get("query"), queries.SuggestionLimit(limit))
	if err != nil {
		return storeError(err, "suggestions")
	}

	respond.JSON(ctx, w, http.StatusOK, suggestions, "suggestions fetched successfully")
	return nil
}

type publishForm struct {
	Title       string `form:"title" validate:"notblank,max=200"`
	Description string `form:"description" validate:"notblank"`
}

// Publish handles POST /api/v1/videos.
func (h VideoHandler) Publish(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	user, err := currentUser(r)
	if err != nil {
		return err
	}
	if err := parseMultipart(w, r, maxVideoUpload); err != nil {
		return err
	}

	form := publishForm{
		Title:       strings.TrimSpace(r.FormValue("title")),
		Description: strings.TrimSpace(r.FormValue("description")),
	}
	if err := check(form); err != nil {
		return err
	}

	file, header, err := formFile(r, "videoFile", true)
	if err != nil {
		return err
	}
	defer file.Close()

	duration, err := h.duration(r, file, header.Filename)
	if err != nil {
		return err
	}

	thumbnail, err := h.Media.upload(ctx, r, "thumbnail", "thumbnails", true)
	if err != nil {
		return err
	}
	video, err := h.Media.put(ctx, "videos", file, header)
	if err != nil {
		h.Media.discard(ctx, thumbnail)
		return err
	}

	record := models.Video{
		Owner:       user.ID,
		Title:       form.Title,
		Description: form.Description,
		VideoFile:   video.URL,
		Thumbnail:   thumbnail.URL,
		Duration:    duration,
		IsPublished: true,
	}
	if err := h.Videos.Create(ctx, &record); err != nil {
		h.Media.discard(ctx, thumbnail, video)
		return storeError(err, "video")
	}

	logger.Info("video published", "video_id", record.ID.Hex(), "duration", duration)
	respond.JSON(ctx, w, http.StatusCreated, record, "video uploaded successfully")
	return nil
}

// duration probes the upload when a prober is configured and falls back to
// the duration form field.
func (h VideoHandler) duration(r *http.Request, file multipart.File, name string) (float64, error) {
	ctx := r.Context()
	if h.Prober != nil {
		seconds, err := probeDuration(ctx, h.Prober, file, name)
		if err == nil {
			return seconds, nil
		}
		logging.FromContext(ctx).Warn("ffprobe failed, using form duration", "error", err)
	}

	raw := strings.TrimSpace(r.FormValue("duration"))
	if raw == "" {
		return 0, nil
	}
	seconds, err := strconv.ParseFloat(raw, 64)
	if err != nil || seconds < 0 {
		return 0, apierror.Validation("invalid duration")
	}
	return seconds, nil
}

// Get handles GET /api/v1/videos/{videoId}.
func (h VideoHandler) Get(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	id, err := objectIDParam(r, "videoId")
	if err != nil {
		return err
	}

	viewer := middleware.ViewerID(ctx)
	detail, err := h.Reads.VideoDetail(ctx, id, viewer)
	if err != nil {
		return storeError(err, "video")
	}

	if !viewer.IsZero() && h.Views != nil {
		if err := h.Views.Enqueue(ctx, videos.View{VideoID: id, Viewer: viewer}); err != nil {
			logging.FromContext(ctx).Warn("view not recorded", "video_id", id.Hex(), "error", err)
		}
	}

	respond.JSON(ctx, w, http.StatusOK, detail, "video fetched successfully")
	return nil
}

type updateVideoRequest struct {
	Title       string `json:"title" form:"title" validate:"omitempty,notblank,max=200"`
	Description string `json:"description" form:"description"`
}

// Update handles PATCH /api/v1/videos/{videoId}. It accepts either a JSON
// body or a multipart form carrying a replacement thumbnail.
func (h VideoHandler) Update(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	user, err := currentUser(r)
	if err != nil {
		return err
	}
	id, err := objectIDParam(r, "videoId")
	if err != nil {
		return err
	}

	var req updateVideoRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	isMultipart := mediaType == "multipart/form-data"
	if isMultipart {
		if err := parseMultipart(w, r, maxImageUpload); err != nil {
			return err
		}
		req = updateVideoRequest{
			Title:       r.FormValue("title"),
			Description: r.FormValue("description"),
		}
		if err := check(req); err != nil {
			return err
		}
	} else if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)

	// Ownership is checked before anything is uploaded.
	existing, err := h.Videos.FindByID(ctx, id)
	if err != nil {
		return storeError(err, "video")
	}
	if existing.Owner != user.ID {
		return storeError(repositories.ErrForbidden, "video")
	}

	var thumbnail uploaded
	if isMultipart {
		thumbnail, err = h.Media.upload(ctx, r, "thumbnail", "thumbnails", false)
		if err != nil {
			return err
		}
	}
	if req.Title == "" && req.Description == "" && thumbnail.URL == "" {
		return apierror.Validation("nothing to update")
	}

	video, err := h.Videos.Update(ctx, id, user.ID, repositories.VideoUpdate{
		Title:       req.Title,
		Description: req.Description,
		Thumbnail:   thumbnail.URL,
	})
	if err != nil {
		h.Media.discard(ctx, thumbnail)
		return storeError(err, "video")
	}

	respond.JSON(ctx, w, http.StatusOK, video, "video updated successfully")
	return nil
}

// Delete handles DELETE /api/v1/videos/{videoId}.
func (h VideoHandler) Delete(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	user, err := currentUser(r)
	if err != nil {
		return err
	}
	id, err := objectIDParam(r, "videoId")
	if err != nil {
		return err
	}

	if err := h.Videos.Delete(ctx, id, user.ID); err != nil {
		return storeError(err, "video")
	}

	respond.JSON(ctx, w, http.StatusOK, struct{}{}, "video deleted successfully")
	return nil
}

// TogglePublish handles PATCH /api/v1/videos/{videoId}/toggle-publish.
func (h VideoHandler) TogglePublish(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	user, err := currentUser(r)
	if err != nil {
		return err
	}
	id, err := objectIDParam(r, "videoId")
	if err != nil {
		return err
	}

	video, err := h.Videos.TogglePublish(ctx, id, user.ID)
	if err != nil {
		return storeError(err, "video")
	}

	respond.JSON(ctx, w, http.StatusOK, video, "video publish status toggled successfully")
	return nil
}

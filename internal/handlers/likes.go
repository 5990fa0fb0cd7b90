package handlers

import (
	"context"
	"net/http"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/vidtube/backend/internal/apierror"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/repositories"
	"github.com/vidtube/backend/internal/respond"
)

// LikeHandler toggles likes on videos, comments and tweets.
type LikeHandler struct {
	Edges    repositories.EdgeRepository
	Videos   repositories.VideoRepository
	Comments repositories.CommentRepository
	Tweets   repositories.TweetRepository
	Reads    ReadModels
}

// ToggleVideo handles POST /api/v1/likes/videos/{videoId}.
func (h LikeHandler) ToggleVideo(w http.ResponseWriter, r *http.Request) error {
	return h.toggle(w, r, models.TargetVideo, "videoId", func(ctx context.Context, id primitive.ObjectID) error {
		_, err := h.Videos.FindByID(ctx, id)
		return err
	})
}

// ToggleComment handles POST /api/v1/likes/comments/{commentId}.
func (h LikeHandler) ToggleComment(w http.ResponseWriter, r *http.Request) error {
	return h.toggle(w, r, models.TargetComment, "commentId", func(ctx context.Context, id primitive.ObjectID) error {
		_, err := h.Comments.FindByID(ctx, id)
		return err
	})
}

// ToggleTweet handles POST /api/v1/likes/tweets/{tweetId}.
func (h LikeHandler) ToggleTweet(w http.ResponseWriter, r *http.Request) error {
	return h.toggle(w, r, models.TargetTweet, "tweetId", func(ctx context.Context, id primitive.ObjectID) error {
		_, err := h.Tweets.FindByID(ctx, id)
		return err
	})
}

// likeStatus carries the created like when the toggle turned it on.
type likeStatus struct {
	IsLiked bool         `json:"isLiked"`
	Like    *models.Like `json:"like,omitempty"`
}

func (h LikeHandler) toggle(w http.ResponseWriter, r *http.Request, kind models.TargetKind, param string, exists func(context.Context, primitive.ObjectID) error) error {
	ctx := r.Context()
	user, err := currentUser(r)
	if err != nil {
		return err
	}
	id, err := objectIDParam(r, param)
	if err != nil {
		return err
	}

	if err := exists(ctx, id); err != nil {
		return storeError(err, string(kind))
	}
	target, err := models.NewLikeTarget(kind, id)
	if err != nil {
		return apierror.Validation(err.Error())
	}

	result, err := h.Edges.ToggleLike(ctx, user.ID, target)
	if err != nil {
		return storeError(err, "like")
	}

	if !result.Active {
		respond.JSON(ctx, w, http.StatusOK, likeStatus{}, "unliked")
		return nil
	}
	respond.JSON(ctx, w, http.StatusOK, likeStatus{IsLiked: true, Like: result.Record}, "liked")
	return nil
}

// LikedVideos handles GET /api/v1/likes/videos.
func (h LikeHandler) LikedVideos(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	user, err := currentUser(r)
	if err != nil {
		return err
	}

	liked, err := h.Reads.LikedVideos(ctx, user.ID)
	if err != nil {
		return storeError(err, "liked videos")
	}

	respond.JSON(ctx, w, http.StatusOK, liked, "liked videos fetched successfully")
	return nil
}

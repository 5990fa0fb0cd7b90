package repositories

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/vidtube/backend/internal/models"
)

// VideoUpdate holds the editable video fields. Empty fields are left untouched.
type VideoUpdate struct {
	Title       string
	Description string
	Thumbnail   string
}

// VideoRepository exposes data access for videos. Mutations take the acting
// user and fail with ErrForbidden when it is not the owner.
type VideoRepository interface {
	Create(ctx context.Context, video *models.Video) error
	FindByID(ctx context.Context, id primitive.ObjectID) (models.Video, error)
	Update(ctx context.Context, id, actor primitive.ObjectID, update VideoUpdate) (models.Video, error)
	Delete(ctx context.Context, id, actor primitive.ObjectID) error
	TogglePublish(ctx context.Context, id, actor primitive.ObjectID) (models.Video, error)
	IncrementViews(ctx context.Context, id primitive.ObjectID) error
}

// CommentRepository exposes data access for comments.
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	FindByID(ctx context.Context, id primitive.ObjectID) (models.Comment, error)
	Update(ctx context.Context, id, actor primitive.ObjectID, content string) (models.Comment, error)
	Delete(ctx context.Context, id, actor primitive.ObjectID) error
}

// TweetRepository exposes data access for tweets.
type TweetRepository interface {
	Create(ctx context.Context, tweet *models.Tweet) error
	FindByID(ctx context.Context, id primitive.ObjectID) (models.Tweet, error)
	Update(ctx context.Context, id, actor primitive.ObjectID, content string) (models.Tweet, error)
	Delete(ctx context.Context, id, actor primitive.ObjectID) error
}

// PlaylistUpdate holds the editable playlist fields. Empty fields are left untouched.
type PlaylistUpdate struct {
	Name        string
	Description string
}

// PlaylistRepository exposes data access for playlists.
type PlaylistRepository interface {
	Create(ctx context.Context, playlist *models.Playlist) error
	FindByID(ctx context.Context, id primitive.ObjectID) (models.Playlist, error)
	Update(ctx context.Context, id, actor primitive.ObjectID, update PlaylistUpdate) (models.Playlist, error)
	Delete(ctx context.Context, id, actor primitive.ObjectID) error
	// AddVideo appends the video, failing with ErrDuplicate when present.
	AddVideo(ctx context.Context, id, actor, videoID primitive.ObjectID) (models.Playlist, error)
	RemoveVideo(ctx context.Context, id, actor, videoID primitive.ObjectID) (models.Playlist, error)
}

// EdgeRepository toggles likes and subscriptions.
type EdgeRepository interface {
	ToggleLike(ctx context.Context, actor primitive.ObjectID, target models.LikeTarget) (models.ToggleResult[models.Like], error)
	ToggleSubscription(ctx context.Context, subscriber, channel primitive.ObjectID) (models.ToggleResult[models.Subscription], error)
}

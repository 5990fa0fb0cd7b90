package handlers

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/pagination"
	"github.com/vidtube/backend/internal/queries"
	"github.com/vidtube/backend/internal/videos"
)

// SessionManager issues, rotates and revokes authentication tokens.
type SessionManager interface {
	Issue(ctx context.Context, identity auth.Identity) (models.SessionTokens, error)
	Refresh(ctx context.Context, refreshToken string, load auth.IdentityLoader) (models.SessionTokens, error)
	Revoke(ctx context.Context, claims *auth.AccessClaims) error
	ParseAccess(ctx context.Context, token string) (*auth.AccessClaims, error)
}

// ReadModels serves the aggregated views the API returns.
type ReadModels interface {
	ChannelProfile(ctx context.Context, username string, viewer primitive.ObjectID) (models.ChannelProfile, error)
	ChannelStats(ctx context.Context, owner primitive.ObjectID) (models.ChannelStats, error)
	ChannelVideos(ctx context.Context, owner primitive.ObjectID) ([]models.ChannelVideo, error)
	ChannelSubscribers(ctx context.Context, channel primitive.ObjectID) ([]models.ChannelMember, error)
	SubscribedChannels(ctx context.Context, subscriber primitive.ObjectID) ([]models.ChannelMember, error)
	VideoFeed(ctx context.Context, filter queries.FeedFilter) (pagination.Page[models.FeedVideo], error)
	SearchSuggestions(ctx context.Context, query string, limit int) ([]models.VideoSuggestion, error)
	VideoDetail(ctx context.Context, id, viewer primitive.ObjectID) (models.VideoDetail, error)
	VideoComments(ctx context.Context, video primitive.ObjectID, params pagination.Params) (pagination.Page[models.CommentWithOwner], error)
	LikedVideos(ctx context.Context, user primitive.ObjectID) ([]models.LikedVideo, error)
	WatchHistory(ctx context.Context, user primitive.ObjectID) ([]models.FeedVideo, error)
	UserPlaylists(ctx context.Context, owner primitive.ObjectID) ([]models.PlaylistSummary, error)
	PlaylistDetail(ctx context.Context, id, viewer primitive.ObjectID) (models.PlaylistDetail, error)
	UserTweets(ctx context.Context, owner primitive.ObjectID) ([]models.TweetWithLikes, error)
}

// ViewRecorder records video views off the request path.
type ViewRecorder interface {
	Enqueue(ctx context.Context, view videos.View) error
}

// HealthChecker reports whether the backing store is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

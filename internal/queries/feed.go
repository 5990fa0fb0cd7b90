package queries

import (
	"context"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/vidtube/backend/internal/db"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/pagination"
	"github.com/vidtube/backend/internal/pipeline"
)

const (
	DefaultSuggestionLimit = 10
	MaxSuggestionLimit     = 20
)

// FeedFilter selects videos for the feed.
type FeedFilter struct {
	Query    string
	SortBy   string
	SortType string
	// Owner restricts the feed to one channel when set.
	Owner primitive.ObjectID
	// Viewer is the acting user, zero when anonymous. A viewer browsing their
	// own channel also sees unpublished videos.
	Viewer primitive.ObjectID
	Params pagination.Params
}

func (f FeedFilter) ownChannel() bool {
	return !f.Owner.IsZero() && f.Owner == f.Viewer
}

// VideoFeedPipeline is the count/slice base of the feed. The owner join is
// applied per page by VideoFeed.
func VideoFeedPipeline(f FeedFilter) (pipeline.Pipeline, error) {
	sort, err := pipeline.ParseSort(f.SortBy, f.SortType)
	if err != nil {
		return nil, err
	}

	var owner, published bson.D
	if !f.Owner.IsZero() {
		owner = bson.D{{Key: "owner", Value: f.Owner}}
	}
	if !f.ownChannel() {
		published = bson.D{{Key: "isPublished", Value: true}}
	}

	return pipeline.New(
		pipeline.And(pipeline.SearchText(f.Query, "title", "description"), owner, published),
		sort,
	), nil
}

// VideoFeed returns one page of the feed with owner summaries joined.
func (s *Store) VideoFeed(ctx context.Context, f FeedFilter) (pagination.Page[models.FeedVideo], error) {
	ctx, span := logging.StartSpan(ctx, "queries.video_feed")
	defer span.End()

	base, err := VideoFeedPipeline(f)
	if err != nil {
		return pagination.Page[models.FeedVideo]{}, err
	}
	return pagination.Paginate[models.FeedVideo](ctx, s.Videos, base, f.Params, joinOwner()...)
}

// SuggestionLimit clamps a requested typeahead size.
func SuggestionLimit(n int) int {
	switch {
	case n <= 0:
		return DefaultSuggestionLimit
	case n > MaxSuggestionLimit:
		return MaxSuggestionLimit
	default:
		return n
	}
}

// SearchSuggestionsPipeline returns the most viewed published videos
// matching query, projected to the typeahead shape.
func SearchSuggestionsPipeline(query string, limit int) pipeline.Pipeline {
	return pipeline.New(
		pipeline.And(
			pipeline.SearchText(query, "title", "description"),
			bson.D{{Key: "isPublished", Value: true}},
		),
		pipeline.SortBy("views", pipeline.Descending),
		pipeline.Limit(SuggestionLimit(limit)),
		pipeline.Include("title", "thumbnail", "description"),
	)
}

// SearchSuggestions is the typeahead variant of the feed. A blank query
// yields no suggestions.
func (s *Store) SearchSuggestions(ctx context.Context, query string, limit int) ([]models.VideoSuggestion, error) {
	ctx, span := logging.StartSpan(ctx, "queries.search_suggestions")
	defer span.End()

	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return []models.VideoSuggestion{}, nil
	}
	limit = SuggestionLimit(limit)

	load := func(ctx context.Context) ([]models.VideoSuggestion, error) {
		return all[models.VideoSuggestion](ctx, s.Videos, SearchSuggestionsPipeline(query, limit))
	}
	if s.suggestions == nil {
		return load(ctx)
	}
	key := query + "\x00" + strconv.Itoa(limit)
	return s.suggestions.GetOrLoad(ctx, key, load)
}

// VideoDetailPipeline loads one video with its like count, the viewer's like
// flag and the owner's channel summary. Unpublished videos only match for
// their owner.
func VideoDetailPipeline(id, viewer primitive.ObjectID) pipeline.Pipeline {
	visible := bson.D{{Key: "isPublished", Value: true}}
	if !viewer.IsZero() {
		visible = bson.D{{Key: "$or", Value: bson.A{
			bson.D{{Key: "isPublished", Value: true}},
			bson.D{{Key: "owner", Value: viewer}},
		}}}
	}

	owner := pipeline.New(
		pipeline.Lookup{
			From:         db.SubscriptionsCollection,
			LocalField:   "_id",
			ForeignField: "channel",
			As:           "subscribers",
			Pipeline:     pipeline.New(pipeline.Include("subscriber")),
		},
		pipeline.Include("username", "fullName", "avatar").
			With("subscribersCount", pipeline.Size("subscribers")).
			With("isSubscribed", viewerFlag("subscribers.subscriber", viewer)),
	)

	return pipeline.New(
		pipeline.And(bson.D{{Key: "_id", Value: id}}, visible),
		pipeline.Lookup{
			From:         db.LikesCollection,
			LocalField:   "_id",
			ForeignField: "target.id",
			As:           "likes",
			Pipeline: pipeline.New(
				pipeline.Eq("target.kind", models.TargetVideo),
				pipeline.Include("likedBy"),
			),
		},
	).Then(pipeline.JoinOne(db.UsersCollection, "owner", "_id", "owner", owner...)...).Then(
		pipeline.Derive{Fields: bson.D{
			{Key: "likesCount", Value: pipeline.Size("likes")},
			{Key: "isLiked", Value: viewerFlag("likes.likedBy", viewer)},
		}},
		pipeline.Project{Fields: bson.D{{Key: "likes", Value: 0}}},
	)
}

// VideoDetail returns the watch page of id, or repositories.ErrNotFound when
// it does not exist or is not visible to viewer.
func (s *Store) VideoDetail(ctx context.Context, id, viewer primitive.ObjectID) (models.VideoDetail, error) {
	ctx, span := logging.StartSpan(ctx, "queries.video_detail")
	defer span.End()

	return first[models.VideoDetail](ctx, s.Videos, VideoDetailPipeline(id, viewer))
}

// VideoCommentsPipeline is the count/slice base of a video's comments.
func VideoCommentsPipeline(video primitive.ObjectID) pipeline.Pipeline {
	return pipeline.New(pipeline.Eq("video", video), pipeline.NewestFirst())
}

// VideoComments returns one page of comments, newest first, with owner
// summaries.
func (s *Store) VideoComments(ctx context.Context, video primitive.ObjectID, params pagination.Params) (pagination.Page[models.CommentWithOwner], error) {
	ctx, span := logging.StartSpan(ctx, "queries.video_comments")
	defer span.End()

	return pagination.Paginate[models.CommentWithOwner](ctx, s.Comments, VideoCommentsPipeline(video), params, joinOwner()...)
}

// LikedVideosPipeline lists the videos user liked, newest like first. Videos
// since unpublished by someone else drop out.
func LikedVideosPipeline(user primitive.ObjectID) pipeline.Pipeline {
	video := pipeline.New(
		pipeline.Match{Filter: bson.D{{Key: "$or", Value: bson.A{
			bson.D{{Key: "isPublished", Value: true}},
			bson.D{{Key: "owner", Value: user}},
		}}}},
	).Then(joinOwner()...)

	return pipeline.New(
		pipeline.And(
			bson.D{{Key: "likedBy", Value: user}},
			bson.D{{Key: "target.kind", Value: models.TargetVideo}},
		),
		pipeline.NewestFirst(),
		pipeline.Lookup{
			From:         db.VideosCollection,
			LocalField:   "target.id",
			ForeignField: "_id",
			As:           "video",
			Pipeline:     video,
		},
		pipeline.Unwind{Path: "video"},
		pipeline.Derive{Fields: bson.D{{Key: "video.likedAt", Value: pipeline.Field("createdAt")}}},
		pipeline.ReplaceRoot{With: "video"},
	)
}

// LikedVideos returns the videos user liked, most recent like first.
func (s *Store) LikedVideos(ctx context.Context, user primitive.ObjectID) ([]models.LikedVideo, error) {
	ctx, span := logging.StartSpan(ctx, "queries.liked_videos")
	defer span.End()

	return all[models.LikedVideo](ctx, s.Likes, LikedVideosPipeline(user))
}

// WatchHistoryPipeline resolves the user's watch history into videos, most
// recent first, each with a nested owner join.
func WatchHistoryPipeline(user primitive.ObjectID) pipeline.Pipeline {
	video := pipeline.JoinOne(db.UsersCollection, "owner", "_id", "owner",
		pipeline.Include("fullName", "username", "avatar"))

	return pipeline.New(
		pipeline.Eq("_id", user),
		pipeline.Lookup{
			From:         db.VideosCollection,
			LocalField:   "watchHistory",
			ForeignField: "_id",
			As:           "history",
			Pipeline:     video,
		},
		pipeline.Project{Fields: bson.D{
			{Key: "_id", Value: 0},
			{Key: "history", Value: pipeline.InOrderOf("watchHistory", "history")},
		}},
		pipeline.Unwind{Path: "history"},
		pipeline.ReplaceRoot{With: "history"},
	)
}

// WatchHistory returns the videos user watched in history order. An empty
// history, or an unknown user, yields an empty list.
func (s *Store) WatchHistory(ctx context.Context, user primitive.ObjectID) ([]models.FeedVideo, error) {
	ctx, span := logging.StartSpan(ctx, "queries.watch_history")
	defer span.End()

	return all[models.FeedVideo](ctx, s.Users, WatchHistoryPipeline(user))
}

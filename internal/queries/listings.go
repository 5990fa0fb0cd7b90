package queries

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/vidtube/backend/internal/db"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/pipeline"
)

// UserPlaylistsPipeline lists owner's playlists, newest first, with the
// number of videos each holds.
func UserPlaylistsPipeline(owner primitive.ObjectID) pipeline.Pipeline {
	return pipeline.New(
		pipeline.Eq("owner", owner),
		pipeline.NewestFirst(),
	).Then(joinOwner()...).Then(
		pipeline.Include("name", "description", "owner", "createdAt", "updatedAt").
			With("videosCount", pipeline.Size("videos")),
	)
}

// UserPlaylists returns the playlists owned by owner.
func (s *Store) UserPlaylists(ctx context.Context, owner primitive.ObjectID) ([]models.PlaylistSummary, error) {
	ctx, span := logging.StartSpan(ctx, "queries.user_playlists")
	defer span.End()

	return all[models.PlaylistSummary](ctx, s.Playlists, UserPlaylistsPipeline(owner))
}

// PlaylistDetailPipeline loads a playlist with its videos in playlist order.
// Unpublished videos are listed only when viewer owns them.
func PlaylistDetailPipeline(id, viewer primitive.ObjectID) pipeline.Pipeline {
	visible := bson.D{{Key: "isPublished", Value: true}}
	if !viewer.IsZero() {
		visible = bson.D{{Key: "$or", Value: bson.A{
			bson.D{{Key: "isPublished", Value: true}},
			bson.D{{Key: "owner", Value: viewer}},
		}}}
	}
	video := pipeline.New(pipeline.Match{Filter: visible}).Then(joinOwner()...)

	return pipeline.New(
		pipeline.Eq("_id", id),
		pipeline.Lookup{
			From:         db.VideosCollection,
			LocalField:   "videos",
			ForeignField: "_id",
			As:           "entries",
			Pipeline:     video,
		},
	).Then(joinOwner()...).Then(
		pipeline.Include("name", "description", "owner", "createdAt", "updatedAt").
			With("videos", pipeline.InOrderOf("videos", "entries")),
	)
}

// PlaylistDetail returns repositories.ErrNotFound when the playlist is absent.
func (s *Store) PlaylistDetail(ctx context.Context, id, viewer primitive.ObjectID) (models.PlaylistDetail, error) {
	ctx, span := logging.StartSpan(ctx, "queries.playlist_detail")
	defer span.End()

	return first[models.PlaylistDetail](ctx, s.Playlists, PlaylistDetailPipeline(id, viewer))
}

// UserTweetsPipeline lists owner's tweets, newest first, with like counts.
func UserTweetsPipeline(owner primitive.ObjectID) pipeline.Pipeline {
	return pipeline.New(
		pipeline.Eq("owner", owner),
		pipeline.NewestFirst(),
		pipeline.Lookup{
			From:         db.LikesCollection,
			LocalField:   "_id",
			ForeignField: "target.id",
			As:           "likes",
			Pipeline: pipeline.New(
				pipeline.Eq("target.kind", models.TargetTweet),
				pipeline.Include("_id"),
			),
		},
	).Then(joinOwner()...).Then(
		pipeline.Include("content", "owner", "createdAt", "updatedAt").
			With("likesCount", pipeline.Size("likes")),
	)
}

// UserTweets returns owner's tweets, newest first, with like counts.
func (s *Store) UserTweets(ctx context.Context, owner primitive.ObjectID) ([]models.TweetWithLikes, error) {
	ctx, span := logging.StartSpan(ctx, "queries.user_tweets")
	defer span.End()

	return all[models.TweetWithLikes](ctx, s.Tweets, UserTweetsPipeline(owner))
}

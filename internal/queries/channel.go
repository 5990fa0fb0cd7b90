package queries

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/errgroup"

	"github.com/vidtube/backend/internal/db"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/pagination"
	"github.com/vidtube/backend/internal/pipeline"
)

// viewerFlag evaluates to whether viewer is among the ids at path, or to a
// literal false for anonymous viewers.
func viewerFlag(path string, viewer primitive.ObjectID) interface{} {
	if viewer.IsZero() {
		return bson.D{{Key: "$literal", Value: false}}
	}
	return pipeline.Contains(path, viewer)
}

// ChannelProfilePipeline matches the user by lowercased username, joins the
// subscription edges in both directions and projects the public profile.
func ChannelProfilePipeline(username string, viewer primitive.ObjectID) pipeline.Pipeline {
	return pipeline.New(
		pipeline.Eq("username", strings.ToLower(strings.TrimSpace(username))),
		pipeline.Lookup{
			From:         db.SubscriptionsCollection,
			LocalField:   "_id",
			ForeignField: "channel",
			As:           "subscribers",
			Pipeline:     pipeline.New(pipeline.Include("subscriber")),
		},
		pipeline.Lookup{
			From:         db.SubscriptionsCollection,
			LocalField:   "_id",
			ForeignField: "subscriber",
			As:           "subscribedTo",
			Pipeline:     pipeline.New(pipeline.Include("channel")),
		},
		pipeline.Derive{Fields: bson.D{
			{Key: "subscribersCount", Value: pipeline.Size("subscribers")},
			{Key: "channelsSubscribedToCount", Value: pipeline.Size("subscribedTo")},
			{Key: "isSubscribed", Value: viewerFlag("subscribers.subscriber", viewer)},
		}},
		pipeline.Include(
			"fullName",
			"username",
			"email",
			"avatar",
			"coverImage",
			"subscribersCount",
			"channelsSubscribedToCount",
			"isSubscribed",
		),
	)
}

// ChannelProfile returns the public channel page of username. viewer may be
// zero for anonymous requests.
func (s *Store) ChannelProfile(ctx context.Context, username string, viewer primitive.ObjectID) (models.ChannelProfile, error) {
	ctx, span := logging.StartSpan(ctx, "queries.channel_profile")
	defer span.End()

	return first[models.ChannelProfile](ctx, s.Users, ChannelProfilePipeline(username, viewer))
}

// ChannelStatsPipelines builds the independent aggregates behind the
// dashboard totals.
type ChannelStatsPipelines struct {
	Videos      pipeline.Pipeline // on videos: totalVideos, totalViews
	Subscribers pipeline.Pipeline // on subscriptions: count
	Comments    pipeline.Pipeline // on videos: comments under owned videos
	Likes       pipeline.Pipeline // on videos: likes on owned videos
}

// NewChannelStatsPipelines builds the dashboard aggregates for owner.
func NewChannelStatsPipelines(owner primitive.ObjectID) ChannelStatsPipelines {
	owned := pipeline.Eq("owner", owner)
	return ChannelStatsPipelines{
		Videos: pipeline.New(
			owned,
			pipeline.Group{ID: nil, Fields: bson.D{
				{Key: "totalVideos", Value: pipeline.Sum(1)},
				{Key: "totalViews", Value: pipeline.Sum(pipeline.Field("views"))},
			}},
		),
		Subscribers: pipeline.New(pipeline.Eq("channel", owner)),
		Comments: pipeline.New(
			owned,
			pipeline.Lookup{
				From:         db.CommentsCollection,
				LocalField:   "_id",
				ForeignField: "video",
				As:           "comments",
				Pipeline:     pipeline.New(pipeline.Include("_id")),
			},
			pipeline.Group{ID: nil, Fields: bson.D{
				{Key: "total", Value: pipeline.Sum(pipeline.Size("comments"))},
			}},
		),
		Likes: pipeline.New(
			owned,
			pipeline.Lookup{
				From:         db.LikesCollection,
				LocalField:   "_id",
				ForeignField: "target.id",
				As:           "likes",
				Pipeline: pipeline.New(
					pipeline.Eq("target.kind", models.TargetVideo),
					pipeline.Include("_id"),
				),
			},
			pipeline.Group{ID: nil, Fields: bson.D{
				{Key: "total", Value: pipeline.Sum(pipeline.Size("likes"))},
			}},
		),
	}
}

type videoTotals struct {
	TotalVideos int64 `bson:"totalVideos"`
	TotalViews  int64 `bson:"totalViews"`
}

type total struct {
	Total int64 `bson:"total"`
}

// ChannelStats computes the dashboard totals of owner. The aggregates run
// concurrently and each defaults to zero when it matches nothing.
func (s *Store) ChannelStats(ctx context.Context, owner primitive.ObjectID) (models.ChannelStats, error) {
	ctx, span := logging.StartSpan(ctx, "queries.channel_stats")
	defer span.End()

	p := NewChannelStatsPipelines(owner)
	var stats models.ChannelStats

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := all[videoTotals](gctx, s.Videos, p.Videos)
		if err != nil {
			return fmt.Errorf("video totals: %w", err)
		}
		if len(rows) > 0 {
			stats.TotalVideos = rows[0].TotalVideos
			stats.TotalViews = rows[0].TotalViews
		}
		return nil
	})
	g.Go(func() error {
		n, err := pagination.Count(gctx, s.Subscriptions, p.Subscribers)
		if err != nil {
			return fmt.Errorf("subscriber total: %w", err)
		}
		stats.TotalSubscribers = n
		return nil
	})
	g.Go(func() error {
		n, err := sumTotal(gctx, s.Videos, p.Comments)
		if err != nil {
			return fmt.Errorf("comment total: %w", err)
		}
		stats.TotalComments = n
		return nil
	})
	g.Go(func() error {
		n, err := sumTotal(gctx, s.Videos, p.Likes)
		if err != nil {
			return fmt.Errorf("like total: %w", err)
		}
		stats.TotalLikes = n
		return nil
	})

	if err := g.Wait(); err != nil {
		return models.ChannelStats{}, err
	}
	return stats, nil
}

func sumTotal(ctx context.Context, source db.Aggregator, p pipeline.Pipeline) (int64, error) {
	rows, err := all[total](ctx, source, p)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Total, nil
}

// ChannelVideosPipeline lists owner's videos, published or not, newest first
// with like and comment counts.
func ChannelVideosPipeline(owner primitive.ObjectID) pipeline.Pipeline {
	return pipeline.New(
		pipeline.Eq("owner", owner),
		pipeline.NewestFirst(),
		pipeline.Lookup{
			From:         db.LikesCollection,
			LocalField:   "_id",
			ForeignField: "target.id",
			As:           "likes",
			Pipeline: pipeline.New(
				pipeline.Eq("target.kind", models.TargetVideo),
				pipeline.Include("_id"),
			),
		},
		pipeline.Lookup{
			From:         db.CommentsCollection,
			LocalField:   "_id",
			ForeignField: "video",
			As:           "comments",
			Pipeline:     pipeline.New(pipeline.Include("_id")),
		},
		pipeline.Include("title", "description", "thumbnail", "views", "isPublished", "createdAt").
			With("likesCount", pipeline.Size("likes")).
			With("commentsCount", pipeline.Size("comments")),
	)
}

// ChannelVideos is the dashboard video list of owner.
func (s *Store) ChannelVideos(ctx context.Context, owner primitive.ObjectID) ([]models.ChannelVideo, error) {
	ctx, span := logging.StartSpan(ctx, "queries.channel_videos")
	defer span.End()

	return all[models.ChannelVideo](ctx, s.Videos, ChannelVideosPipeline(owner))
}

// membersPipeline lists one side of the subscription edges matching field =
// id, joining the user found at the other side.
func membersPipeline(field string, id primitive.ObjectID, other string) pipeline.Pipeline {
	return pipeline.New(
		pipeline.Eq(field, id),
		pipeline.NewestFirst(),
		pipeline.Lookup{
			From:         db.UsersCollection,
			LocalField:   other,
			ForeignField: "_id",
			As:           "member",
			Pipeline:     pipeline.New(ownerFields),
		},
		pipeline.Unwind{Path: "member"},
		pipeline.Derive{Fields: bson.D{{Key: "member.subscribedAt", Value: pipeline.Field("createdAt")}}},
		pipeline.ReplaceRoot{With: "member"},
	)
}

// ChannelSubscribersPipeline lists the users subscribed to channel.
func ChannelSubscribersPipeline(channel primitive.ObjectID) pipeline.Pipeline {
	return membersPipeline("channel", channel, "subscriber")
}

// SubscribedChannelsPipeline lists the channels subscriber follows.
func SubscribedChannelsPipeline(subscriber primitive.ObjectID) pipeline.Pipeline {
	return membersPipeline("subscriber", subscriber, "channel")
}

// ChannelSubscribers returns the user summaries subscribed to channel.
func (s *Store) ChannelSubscribers(ctx context.Context, channel primitive.ObjectID) ([]models.ChannelMember, error) {
	ctx, span := logging.StartSpan(ctx, "queries.channel_subscribers")
	defer span.End()

	return all[models.ChannelMember](ctx, s.Subscriptions, ChannelSubscribersPipeline(channel))
}

// SubscribedChannels returns the channels subscriber follows.
func (s *Store) SubscribedChannels(ctx context.Context, subscriber primitive.ObjectID) ([]models.ChannelMember, error) {
	ctx, span := logging.StartSpan(ctx, "queries.subscribed_channels")
	defer span.End()

	return all[models.ChannelMember](ctx, s.Subscriptions, SubscribedChannelsPipeline(subscriber))
}

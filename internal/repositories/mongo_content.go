package repositories

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/vidtube/backend/internal/db"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/models"
)

// MongoVideoRepository persists videos.
type MongoVideoRepository struct {
	videos    *mongo.Collection
	comments  *mongo.Collection
	likes     *mongo.Collection
	playlists *mongo.Collection
	users     *mongo.Collection
}

// NewMongoVideoRepository constructs a video repository on the given database.
func NewMongoVideoRepository(database *mongo.Database) *MongoVideoRepository {
	return &MongoVideoRepository{
		videos:    database.Collection(db.VideosCollection),
		comments:  database.Collection(db.CommentsCollection),
		likes:     database.Collection(db.LikesCollection),
		playlists: database.Collection(db.PlaylistsCollection),
		users:     database.Collection(db.UsersCollection),
	}
}

func (r *MongoVideoRepository) Create(ctx context.Context, video *models.Video) error {
	at := now()
	if video.ID.IsZero() {
		video.ID = primitive.NewObjectID()
	}
	video.CreatedAt, video.UpdatedAt = at, at
	return insert(ctx, r.videos, video)
}

func (r *MongoVideoRepository) FindByID(ctx context.Context, id primitive.ObjectID) (models.Video, error) {
	return findByID[models.Video](ctx, r.videos, id)
}

func (r *MongoVideoRepository) Update(ctx context.Context, id, actor primitive.ObjectID, update VideoUpdate) (models.Video, error) {
	set := setFields(now(),
		"title", update.Title,
		"description", update.Description,
		"thumbnail", update.Thumbnail,
	)
	return updateOwned[models.Video](ctx, r.videos, id, actor, set)
}

// TogglePublish flips isPublished server side.
func (r *MongoVideoRepository) TogglePublish(ctx context.Context, id, actor primitive.ObjectID) (models.Video, error) {
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "isPublished", Value: bson.D{{Key: "$not", Value: bson.A{"$isPublished"}}}},
			{Key: "updatedAt", Value: now()},
		}}},
	}
	return updateOwned[models.Video](ctx, r.videos, id, actor, update)
}

func (r *MongoVideoRepository) IncrementViews(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.videos.UpdateOne(ctx, byID(id), bson.D{{Key: "$inc", Value: bson.D{{Key: "views", Value: 1}}}})
	if err != nil {
		return fmt.Errorf("increment views: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the video and then, best effort, everything that refers to
// it: its comments, likes on it and on those comments, and its entries in
// playlists and watch histories. A failed cleanup step is logged and does not
// fail the delete.
func (r *MongoVideoRepository) Delete(ctx context.Context, id, actor primitive.ObjectID) error {
	if err := deleteOwned(ctx, r.videos, id, actor); err != nil {
		return err
	}

	logger := logging.FromContext(ctx).With(slog.String("video_id", id.Hex()))

	commentIDs, err := r.comments.Distinct(ctx, "_id", bson.D{{Key: "video", Value: id}})
	if err != nil {
		logger.Warn("list comments of deleted video", slog.Any("error", err))
	}
	if commentIDs == nil {
		commentIDs = []interface{}{}
	}

	likeFilter := bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: "target.kind", Value: models.TargetVideo}, {Key: "target.id", Value: id}},
		bson.D{{Key: "target.kind", Value: models.TargetComment}, {Key: "target.id", Value: bson.D{{Key: "$in", Value: bson.A(commentIDs)}}}},
	}}}
	if _, err := r.likes.DeleteMany(ctx, likeFilter); err != nil {
		logger.Warn("delete likes of deleted video", slog.Any("error", err))
	}
	if _, err := r.comments.DeleteMany(ctx, bson.D{{Key: "video", Value: id}}); err != nil {
		logger.Warn("delete comments of deleted video", slog.Any("error", err))
	}

	pull := func(field string) bson.D {
		return bson.D{{Key: "$pull", Value: bson.D{{Key: field, Value: id}}}}
	}
	if _, err := r.playlists.UpdateMany(ctx, bson.D{{Key: "videos", Value: id}}, pull("videos")); err != nil {
		logger.Warn("remove deleted video from playlists", slog.Any("error", err))
	}
	if _, err := r.users.UpdateMany(ctx, bson.D{{Key: "watchHistory", Value: id}}, pull("watchHistory")); err != nil {
		logger.Warn("remove deleted video from watch histories", slog.Any("error", err))
	}
	return nil
}

// MongoCommentRepository persists comments.
type MongoCommentRepository struct {
	comments *mongo.Collection
	likes    *mongo.Collection
}

// NewMongoCommentRepository constructs a comment repository on the given database.
func NewMongoCommentRepository(database *mongo.Database) *MongoCommentRepository {
	return &MongoCommentRepository{
		comments: database.Collection(db.CommentsCollection),
		likes:    database.Collection(db.LikesCollection),
	}
}

func (r *MongoCommentRepository) Create(ctx context.Context, comment *models.Comment) error {
	at := now()
	if comment.ID.IsZero() {
		comment.ID = primitive.NewObjectID()
	}
	comment.CreatedAt, comment.UpdatedAt = at, at
	return insert(ctx, r.comments, comment)
}

func (r *MongoCommentRepository) FindByID(ctx context.Context, id primitive.ObjectID) (models.Comment, error) {
	return findByID[models.Comment](ctx, r.comments, id)
}

func (r *MongoCommentRepository) Update(ctx context.Context, id, actor primitive.ObjectID, content string) (models.Comment, error) {
	return updateOwned[models.Comment](ctx, r.comments, id, actor, setFields(now(), "content", content))
}

func (r *MongoCommentRepository) Delete(ctx context.Context, id, actor primitive.ObjectID) error {
	if err := deleteOwned(ctx, r.comments, id, actor); err != nil {
		return err
	}
	purgeLikes(ctx, r.likes, models.TargetComment, id)
	return nil
}

// MongoTweetRepository persists tweets.
type MongoTweetRepository struct {
	tweets *mongo.Collection
	likes  *mongo.Collection
}

// NewMongoTweetRepository constructs a tweet repository on the given database.
func NewMongoTweetRepository(database *mongo.Database) *MongoTweetRepository {
	return &MongoTweetRepository{
		tweets: database.Collection(db.TweetsCollection),
		likes:  database.Collection(db.LikesCollection),
	}
}

func (r *MongoTweetRepository) Create(ctx context.Context, tweet *models.Tweet) error {
	at := now()
	if tweet.ID.IsZero() {
		tweet.ID = primitive.NewObjectID()
	}
	tweet.CreatedAt, tweet.UpdatedAt = at, at
	return insert(ctx, r.tweets, tweet)
}

func (r *MongoTweetRepository) FindByID(ctx context.Context, id primitive.ObjectID) (models.Tweet, error) {
	return findByID[models.Tweet](ctx, r.tweets, id)
}

func (r *MongoTweetRepository) Update(ctx context.Context, id, actor primitive.ObjectID, content string) (models.Tweet, error) {
	return updateOwned[models.Tweet](ctx, r.tweets, id, actor, setFields(now(), "content", content))
}

func (r *MongoTweetRepository) Delete(ctx context.Context, id, actor primitive.ObjectID) error {
	if err := deleteOwned(ctx, r.tweets, id, actor); err != nil {
		return err
	}
	purgeLikes(ctx, r.likes, models.TargetTweet, id)
	return nil
}

func purgeLikes(ctx context.Context, likes *mongo.Collection, kind models.TargetKind, id primitive.ObjectID) {
	filter := bson.D{{Key: "target.kind", Value: kind}, {Key: "target.id", Value: id}}
	if _, err := likes.DeleteMany(ctx, filter); err != nil {
		logging.FromContext(ctx).Warn("delete likes of deleted record",
			slog.String("kind", string(kind)),
			slog.String("id", id.Hex()),
			slog.Any("error", err),
		)
	}
}

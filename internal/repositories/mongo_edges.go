package repositories

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/vidtube/backend/internal/db"
	"github.com/vidtube/backend/internal/models"
)

// toggleAttempts bounds the retries when concurrent toggles of the same
// edge keep colliding on the unique index.
const toggleAttempts = 3

// MongoEdgeRepository toggles likes and subscriptions. Both collections carry
// a unique index on the (actor, target) pair, created by `migrate up`.
type MongoEdgeRepository struct {
	likes         *mongo.Collection
	subscriptions *mongo.Collection
}

// NewMongoEdgeRepository constructs an edge repository on the given database.
func NewMongoEdgeRepository(database *mongo.Database) *MongoEdgeRepository {
	return &MongoEdgeRepository{
		likes:         database.Collection(db.LikesCollection),
		subscriptions: database.Collection(db.SubscriptionsCollection),
	}
}

func (r *MongoEdgeRepository) ToggleLike(ctx context.Context, actor primitive.ObjectID, target models.LikeTarget) (models.ToggleResult[models.Like], error) {
	filter := bson.D{
		{Key: "likedBy", Value: actor},
		{Key: "target.kind", Value: target.Kind},
		{Key: "target.id", Value: target.ID},
	}
	return toggleEdge(ctx, r.likes, filter, func() models.Like {
		at := now()
		return models.Like{ID: primitive.NewObjectID(), Target: target, LikedBy: actor, CreatedAt: at, UpdatedAt: at}
	})
}

func (r *MongoEdgeRepository) ToggleSubscription(ctx context.Context, subscriber, channel primitive.ObjectID) (models.ToggleResult[models.Subscription], error) {
	filter := bson.D{
		{Key: "subscriber", Value: subscriber},
		{Key: "channel", Value: channel},
	}
	return toggleEdge(ctx, r.subscriptions, filter, func() models.Subscription {
		at := now()
		return models.Subscription{ID: primitive.NewObjectID(), Subscriber: subscriber, Channel: channel, CreatedAt: at, UpdatedAt: at}
	})
}

// toggleEdge deletes the edge if present, otherwise inserts it. Each step is
// a single store operation: a delete that removed something means the edge
// was on, and an insert rejected by the unique index means a concurrent
// toggle just created it, in which case the loop turns it off again.
func toggleEdge[T any](ctx context.Context, coll *mongo.Collection, filter bson.D, create func() T) (models.ToggleResult[T], error) {
	for attempt := 0; attempt < toggleAttempts; attempt++ {
		res, err := coll.DeleteOne(ctx, filter)
		if err != nil {
			return models.ToggleResult[T]{}, fmt.Errorf("delete %s edge: %w", coll.Name(), err)
		}
		if res.DeletedCount > 0 {
			return models.ToggleResult[T]{Active: false}, nil
		}

		record := create()
		if _, err := coll.InsertOne(ctx, record); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				continue
			}
			return models.ToggleResult[T]{}, fmt.Errorf("insert %s edge: %w", coll.Name(), err)
		}
		return models.ToggleResult[T]{Active: true, Record: &record}, nil
	}
	return models.ToggleResult[T]{}, ErrConflict
}

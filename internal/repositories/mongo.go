package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// now truncates to the millisecond precision BSON dates carry, so a value
// read back compares equal to the one written.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func byID(id primitive.ObjectID) bson.D {
	return bson.D{{Key: "_id", Value: id}}
}

func ownedBy(id, owner primitive.ObjectID) bson.D {
	return bson.D{{Key: "_id", Value: id}, {Key: "owner", Value: owner}}
}

// setFields builds a $set document from the non-empty values, always
// touching updatedAt.
func setFields(at time.Time, pairs ...string) bson.D {
	set := bson.D{}
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] == "" {
			continue
		}
		set = append(set, bson.E{Key: pairs[i], Value: pairs[i+1]})
	}
	set = append(set, bson.E{Key: "updatedAt", Value: at})
	return bson.D{{Key: "$set", Value: set}}
}

func findByID[T any](ctx context.Context, coll *mongo.Collection, id primitive.ObjectID) (T, error) {
	var out T
	err := coll.FindOne(ctx, byID(id)).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return out, ErrNotFound
	}
	if err != nil {
		return out, fmt.Errorf("find %s: %w", coll.Name(), err)
	}
	return out, nil
}

// explainMiss is called after an owner-scoped write matched nothing and
// reports whether the record is absent or owned by someone else.
func explainMiss(ctx context.Context, coll *mongo.Collection, id primitive.ObjectID) error {
	err := coll.FindOne(ctx, byID(id), options.FindOne().SetProjection(bson.D{{Key: "_id", Value: 1}})).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("find %s: %w", coll.Name(), err)
	}
	return ErrForbidden
}

// updateOwned applies update only if actor owns the record, in a single
// conditional write, and returns the updated document.
func updateOwned[T any](ctx context.Context, coll *mongo.Collection, id, actor primitive.ObjectID, update interface{}) (T, error) {
	var out T
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := coll.FindOneAndUpdate(ctx, ownedBy(id, actor), update, opts).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return out, explainMiss(ctx, coll, id)
	}
	if err != nil {
		return out, fmt.Errorf("update %s: %w", coll.Name(), err)
	}
	return out, nil
}

func deleteOwned(ctx context.Context, coll *mongo.Collection, id, actor primitive.ObjectID) error {
	res, err := coll.DeleteOne(ctx, ownedBy(id, actor))
	if err != nil {
		return fmt.Errorf("delete %s: %w", coll.Name(), err)
	}
	if res.DeletedCount == 0 {
		return explainMiss(ctx, coll, id)
	}
	return nil
}

func insert(ctx context.Context, coll *mongo.Collection, doc interface{}) error {
	if _, err := coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert %s: %w", coll.Name(), err)
	}
	return nil
}

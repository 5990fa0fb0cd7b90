package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vidtube/backend/internal/db"
	"github.com/vidtube/backend/internal/models"
)

// MongoUserRepository persists users.
type MongoUserRepository struct {
	users *mongo.Collection
}

// NewMongoUserRepository constructs a user repository on the given database.
func NewMongoUserRepository(database *mongo.Database) *MongoUserRepository {
	return &MongoUserRepository{users: database.Collection(db.UsersCollection)}
}

// NormalizeHandle lowercases and trims usernames and emails.
func NormalizeHandle(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Create inserts the user, assigning its id and timestamps.
func (r *MongoUserRepository) Create(ctx context.Context, user *models.User) error {
	at := now()
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	user.Username = NormalizeHandle(user.Username)
	user.Email = NormalizeHandle(user.Email)
	if user.WatchHistory == nil {
		user.WatchHistory = []primitive.ObjectID{}
	}
	user.CreatedAt, user.UpdatedAt = at, at
	return insert(ctx, r.users, user)
}

func (r *MongoUserRepository) FindByID(ctx context.Context, id primitive.ObjectID) (models.User, error) {
	return findByID[models.User](ctx, r.users, id)
}

func (r *MongoUserRepository) FindByLogin(ctx context.Context, usernameOrEmail string) (models.User, error) {
	handle := NormalizeHandle(usernameOrEmail)
	if handle == "" {
		return models.User{}, ErrNotFound
	}
	filter := bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: "username", Value: handle}},
		bson.D{{Key: "email", Value: handle}},
	}}}

	var user models.User
	err := r.users.FindOne(ctx, filter).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.User{}, ErrNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("find user by login: %w", err)
	}
	return user, nil
}

func (r *MongoUserRepository) UpdateAccount(ctx context.Context, id primitive.ObjectID, update AccountUpdate) (models.User, error) {
	set := setFields(now(),
		"fullName", strings.TrimSpace(update.FullName),
		"email", NormalizeHandle(update.Email),
	)
	return r.updateOne(ctx, id, set)
}

func (r *MongoUserRepository) SetPassword(ctx context.Context, id primitive.ObjectID, hash string) error {
	_, err := r.updateOne(ctx, id, setFields(now(), "password", hash))
	return err
}

func (r *MongoUserRepository) SetAvatar(ctx context.Context, id primitive.ObjectID, url string) (models.User, error) {
	return r.updateOne(ctx, id, setFields(now(), "avatar", url))
}

func (r *MongoUserRepository) SetCoverImage(ctx context.Context, id primitive.ObjectID, url string) (models.User, error) {
	return r.updateOne(ctx, id, setFields(now(), "coverImage", url))
}

func (r *MongoUserRepository) updateOne(ctx context.Context, id primitive.ObjectID, update interface{}) (models.User, error) {
	var user models.User
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := r.users.FindOneAndUpdate(ctx, byID(id), update, opts).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.User{}, ErrNotFound
	}
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return models.User{}, ErrConflict
		}
		return models.User{}, fmt.Errorf("update user: %w", err)
	}
	return user, nil
}

// PushWatchHistory removes any earlier occurrence of the video and puts it
// first, in one update so concurrent views cannot leave a duplicate.
func (r *MongoUserRepository) PushWatchHistory(ctx context.Context, id, videoID primitive.ObjectID) error {
	without := bson.D{{Key: "$filter", Value: bson.D{
		{Key: "input", Value: bson.D{{Key: "$ifNull", Value: bson.A{"$watchHistory", bson.A{}}}}},
		{Key: "cond", Value: bson.D{{Key: "$ne", Value: bson.A{"$$this", videoID}}}},
	}}}
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "watchHistory", Value: bson.D{{Key: "$concatArrays", Value: bson.A{bson.A{videoID}, without}}}},
		}}},
	}

	res, err := r.users.UpdateOne(ctx, byID(id), update)
	if err != nil {
		return fmt.Errorf("push watch history: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

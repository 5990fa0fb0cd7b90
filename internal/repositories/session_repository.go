package repositories

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/db"
)

// MongoSessionStore keeps each user's current refresh token on the user
// document itself.
type MongoSessionStore struct {
	users *mongo.Collection
}

// NewMongoSessionStore constructs a session store backed by the users collection.
func NewMongoSessionStore(database *mongo.Database) *MongoSessionStore {
	return &MongoSessionStore{users: database.Collection(db.UsersCollection)}
}

// Save replaces the user's refresh token.
func (s *MongoSessionStore) Save(ctx context.Context, session auth.Session) error {
	id, err := primitive.ObjectIDFromHex(session.UserID)
	if err != nil {
		return auth.ErrSessionNotFound
	}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "refreshToken", Value: session.RefreshToken},
		{Key: "refreshTokenExpiresAt", Value: session.ExpiresAt.UTC()},
	}}}
	res, err := s.users.UpdateOne(ctx, byID(id), update)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	if res.MatchedCount == 0 {
		return auth.ErrSessionNotFound
	}
	return nil
}

// Find loads the user's refresh token.
func (s *MongoSessionStore) Find(ctx context.Context, userID string) (auth.Session, error) {
	id, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return auth.Session{}, auth.ErrSessionNotFound
	}

	var doc struct {
		RefreshToken string             `bson:"refreshToken"`
		ExpiresAt    primitive.DateTime `bson:"refreshTokenExpiresAt"`
	}
	opts := options.FindOne().SetProjection(bson.D{
		{Key: "refreshToken", Value: 1},
		{Key: "refreshTokenExpiresAt", Value: 1},
	})
	err = s.users.FindOne(ctx, byID(id), opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return auth.Session{}, auth.ErrSessionNotFound
	}
	if err != nil {
		return auth.Session{}, fmt.Errorf("find session: %w", err)
	}
	if doc.RefreshToken == "" {
		return auth.Session{}, auth.ErrSessionNotFound
	}

	return auth.Session{
		UserID:       userID,
		RefreshToken: doc.RefreshToken,
		ExpiresAt:    doc.ExpiresAt.Time().UTC(),
	}, nil
}

// Delete clears the user's refresh token.
func (s *MongoSessionStore) Delete(ctx context.Context, userID string) error {
	id, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return auth.ErrSessionNotFound
	}
	update := bson.D{{Key: "$unset", Value: bson.D{
		{Key: "refreshToken", Value: ""},
		{Key: "refreshTokenExpiresAt", Value: ""},
	}}}
	if _, err := s.users.UpdateOne(ctx, byID(id), update); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

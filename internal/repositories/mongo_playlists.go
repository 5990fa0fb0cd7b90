package repositories

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vidtube/backend/internal/db"
	"github.com/vidtube/backend/internal/models"
)

// MongoPlaylistRepository persists playlists.
type MongoPlaylistRepository struct {
	playlists *mongo.Collection
}

// NewMongoPlaylistRepository constructs a playlist repository on the given database.
func NewMongoPlaylistRepository(database *mongo.Database) *MongoPlaylistRepository {
	return &MongoPlaylistRepository{playlists: database.Collection(db.PlaylistsCollection)}
}

func (r *MongoPlaylistRepository) Create(ctx context.Context, playlist *models.Playlist) error {
	at := now()
	if playlist.ID.IsZero() {
		playlist.ID = primitive.NewObjectID()
	}
	if playlist.Videos == nil {
		playlist.Videos = []primitive.ObjectID{}
	}
	playlist.CreatedAt, playlist.UpdatedAt = at, at
	return insert(ctx, r.playlists, playlist)
}

func (r *MongoPlaylistRepository) FindByID(ctx context.Context, id primitive.ObjectID) (models.Playlist, error) {
	return findByID[models.Playlist](ctx, r.playlists, id)
}

func (r *MongoPlaylistRepository) Update(ctx context.Context, id, actor primitive.ObjectID, update PlaylistUpdate) (models.Playlist, error) {
	set := setFields(now(), "name", update.Name, "description", update.Description)
	return updateOwned[models.Playlist](ctx, r.playlists, id, actor, set)
}

func (r *MongoPlaylistRepository) Delete(ctx context.Context, id, actor primitive.ObjectID) error {
	return deleteOwned(ctx, r.playlists, id, actor)
}

// AddVideo appends the video only when the playlist does not hold it yet.
// The membership check and the push are one conditional write, so two
// concurrent adds of the same video cannot both succeed.
func (r *MongoPlaylistRepository) AddVideo(ctx context.Context, id, actor, videoID primitive.ObjectID) (models.Playlist, error) {
	filter := bson.D{
		{Key: "_id", Value: id},
		{Key: "owner", Value: actor},
		{Key: "videos", Value: bson.D{{Key: "$ne", Value: videoID}}},
	}
	update := bson.D{
		{Key: "$push", Value: bson.D{{Key: "videos", Value: videoID}}},
		{Key: "$set", Value: bson.D{{Key: "updatedAt", Value: now()}}},
	}

	var playlist models.Playlist
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := r.playlists.FindOneAndUpdate(ctx, filter, update, opts).Decode(&playlist)
	if err == nil {
		return playlist, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return models.Playlist{}, fmt.Errorf("add video to playlist: %w", err)
	}

	existing, err := r.FindByID(ctx, id)
	if err != nil {
		return models.Playlist{}, err
	}
	if existing.Owner != actor {
		return models.Playlist{}, ErrForbidden
	}
	return models.Playlist{}, ErrDuplicate
}

func (r *MongoPlaylistRepository) RemoveVideo(ctx context.Context, id, actor, videoID primitive.ObjectID) (models.Playlist, error) {
	update := bson.D{
		{Key: "$pull", Value: bson.D{{Key: "videos", Value: videoID}}},
		{Key: "$set", Value: bson.D{{Key: "updatedAt", Value: now()}}},
	}
	return updateOwned[models.Playlist](ctx, r.playlists, id, actor, update)
}

// Package queries holds the aggregation read models: channel profiles,
// dashboards, feeds, watch history and the listings built from joins across
// collections.
//
// Every query is split into a pure pipeline constructor, which can be tested
// stage by stage, and an executor that runs it against the store.
package queries

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/vidtube/backend/internal/db"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/pipeline"
	"github.com/vidtube/backend/internal/repositories"
	"github.com/vidtube/backend/internal/videos"
)

// Store runs read-model pipelines. Each field is the collection a pipeline
// starts from.
type Store struct {
	Users         db.Aggregator
	Videos        db.Aggregator
	Comments      db.Aggregator
	Likes         db.Aggregator
	Tweets        db.Aggregator
	Playlists     db.Aggregator
	Subscriptions db.Aggregator

	suggestions *videos.Cache[[]models.VideoSuggestion]
}

// Options tunes the store.
type Options struct {
	// SuggestionTTL caches typeahead results per query. Zero disables caching.
	SuggestionTTL time.Duration
}

// NewStore wires the store to the collections of database.
func NewStore(database *mongo.Database, opts Options) *Store {
	s := &Store{
		Users:         database.Collection(db.UsersCollection),
		Videos:        database.Collection(db.VideosCollection),
		Comments:      database.Collection(db.CommentsCollection),
		Likes:         database.Collection(db.LikesCollection),
		Tweets:        database.Collection(db.TweetsCollection),
		Playlists:     database.Collection(db.PlaylistsCollection),
		Subscriptions: database.Collection(db.SubscriptionsCollection),
	}
	s.EnableSuggestionCache(opts.SuggestionTTL)
	return s
}

// EnableSuggestionCache turns on typeahead caching with the given TTL.
func (s *Store) EnableSuggestionCache(ttl time.Duration) {
	if ttl > 0 {
		s.suggestions = videos.NewCache[[]models.VideoSuggestion](ttl)
	}
}

// ownerFields is the only part of a user any join may expose.
var ownerFields = pipeline.Include("username", "fullName", "avatar")

// joinOwner replaces the owner id with the owner summary.
func joinOwner() pipeline.Pipeline {
	return pipeline.JoinOne(db.UsersCollection, "owner", "_id", "owner", ownerFields)
}

func all[T any](ctx context.Context, source db.Aggregator, p pipeline.Pipeline) ([]T, error) {
	cursor, err := source.Aggregate(ctx, p.Build())
	if err != nil {
		return nil, fmt.Errorf("aggregate: %w", err)
	}
	out := []T{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

// first returns the first result or repositories.ErrNotFound.
func first[T any](ctx context.Context, source db.Aggregator, p pipeline.Pipeline) (T, error) {
	var zero T
	results, err := all[T](ctx, source, p.Then(pipeline.Limit(1)))
	if err != nil {
		return zero, err
	}
	if len(results) == 0 {
		return zero, repositories.ErrNotFound
	}
	return results[0], nil
}

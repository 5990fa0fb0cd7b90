package db

import (
	"context"
	"fmt"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// IndexSpec describes one index owned by the application.
type IndexSpec struct {
	Collection string
	Name       string
	Keys       bson.D
	Unique     bool
}

// Indexes is the catalogue applied by `migrate up`. The unique indexes on
// likes and subscriptions back the toggle operations: a concurrent duplicate
// insert fails instead of creating a second edge.
var Indexes = []IndexSpec{
	{Collection: UsersCollection, Name: "users_username_unique", Keys: bson.D{{Key: "username", Value: 1}}, Unique: true},
	{Collection: UsersCollection, Name: "users_email_unique", Keys: bson.D{{Key: "email", Value: 1}}, Unique: true},
	{Collection: VideosCollection, Name: "videos_owner_created", Keys: bson.D{{Key: "owner", Value: 1}, {Key: "createdAt", Value: -1}}},
	{Collection: VideosCollection, Name: "videos_published_created", Keys: bson.D{{Key: "isPublished", Value: 1}, {Key: "createdAt", Value: -1}}},
	{Collection: CommentsCollection, Name: "comments_video_created", Keys: bson.D{{Key: "video", Value: 1}, {Key: "createdAt", Value: -1}}},
	{Collection: LikesCollection, Name: "likes_actor_target_unique", Keys: bson.D{
		{Key: "likedBy", Value: 1},
		{Key: "target.kind", Value: 1},
		{Key: "target.id", Value: 1},
	}, Unique: true},
	{Collection: LikesCollection, Name: "likes_target", Keys: bson.D{{Key: "target.kind", Value: 1}, {Key: "target.id", Value: 1}}},
	{Collection: TweetsCollection, Name: "tweets_owner_created", Keys: bson.D{{Key: "owner", Value: 1}, {Key: "createdAt", Value: -1}}},
	{Collection: PlaylistsCollection, Name: "playlists_owner", Keys: bson.D{{Key: "owner", Value: 1}}},
	{Collection: SubscriptionsCollection, Name: "subscriptions_pair_unique", Keys: bson.D{
		{Key: "subscriber", Value: 1},
		{Key: "channel", Value: 1},
	}, Unique: true},
	{Collection: SubscriptionsCollection, Name: "subscriptions_channel", Keys: bson.D{{Key: "channel", Value: 1}}},
}

// EnsureIndexes creates every catalogued index. Creating an index that already
// exists with the same definition is a no-op on the server.
func EnsureIndexes(ctx context.Context, database *mongo.Database) ([]string, error) {
	byCollection := make(map[string][]mongo.IndexModel)
	for _, spec := range Indexes {
		model := mongo.IndexModel{
			Keys:    spec.Keys,
			Options: options.Index().SetName(spec.Name),
		}
		if spec.Unique {
			model.Options.SetUnique(true)
		}
		byCollection[spec.Collection] = append(byCollection[spec.Collection], model)
	}

	collections := make([]string, 0, len(byCollection))
	for name := range byCollection {
		collections = append(collections, name)
	}
	sort.Strings(collections)

	var created []string
	for _, name := range collections {
		names, err := database.Collection(name).Indexes().CreateMany(ctx, byCollection[name])
		if err != nil {
			return created, fmt.Errorf("create indexes on %s: %w", name, err)
		}
		for _, n := range names {
			created = append(created, name+"."+n)
		}
	}
	return created, nil
}

// IndexStatus reports which catalogued indexes exist.
type IndexStatus struct {
	Collection string
	Name       string
	Present    bool
}

// ListIndexStatus compares the catalogue against the indexes on the server.
func ListIndexStatus(ctx context.Context, database *mongo.Database) ([]IndexStatus, error) {
	existing := make(map[string]map[string]bool)
	for _, spec := range Indexes {
		if _, ok := existing[spec.Collection]; ok {
			continue
		}
		specs, err := database.Collection(spec.Collection).Indexes().ListSpecifications(ctx)
		if err != nil {
			return nil, fmt.Errorf("list indexes on %s: %w", spec.Collection, err)
		}
		names := make(map[string]bool, len(specs))
		for _, s := range specs {
			names[s.Name] = true
		}
		existing[spec.Collection] = names
	}

	statuses := make([]IndexStatus, 0, len(Indexes))
	for _, spec := range Indexes {
		statuses = append(statuses, IndexStatus{
			Collection: spec.Collection,
			Name:       spec.Name,
			Present:    existing[spec.Collection][spec.Name],
		})
	}
	return statuses, nil
}

package app

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/db"
)

var seedable = map[string]bool{
	db.UsersCollection:         true,
	db.VideosCollection:        true,
	db.CommentsCollection:      true,
	db.LikesCollection:         true,
	db.TweetsCollection:        true,
	db.PlaylistsCollection:     true,
	db.SubscriptionsCollection: true,
}

// seedSet maps a collection name to the documents inserted into it.
type seedSet map[string][]bson.M

// parseSeed decodes a seed file written in relaxed extended JSON, so ids and
// timestamps can be given as {"$oid": ...} and {"$date": ...}. User documents
// may carry a plainPassword which is replaced by its bcrypt hash.
func parseSeed(data []byte) (seedSet, error) {
	var seed seedSet
	if err := bson.UnmarshalExtJSON(data, false, &seed); err != nil {
		return nil, err
	}

	for collection, docs := range seed {
		if !seedable[collection] {
			return nil, fmt.Errorf("unknown collection %q", collection)
		}
		if collection != db.UsersCollection {
			continue
		}
		for _, doc := range docs {
			plain, ok := doc["plainPassword"].(string)
			if !ok {
				continue
			}
			hash, err := auth.HashPassword(plain)
			if err != nil {
				return nil, err
			}
			delete(doc, "plainPassword")
			doc["password"] = hash
		}
	}
	return seed, nil
}

func (s seedSet) collections() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// apply inserts every document. Documents whose _id already exists are
// skipped so a seed can be re-run.
func (s seedSet) apply(ctx context.Context, database *mongo.Database) (map[string]int, error) {
	inserted := make(map[string]int, len(s))
	for _, name := range s.collections() {
		docs := make([]interface{}, 0, len(s[name]))
		for _, doc := range s[name] {
			docs = append(docs, doc)
		}
		if len(docs) == 0 {
			continue
		}

		res, err := database.Collection(name).InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
		if res != nil {
			inserted[name] = len(res.InsertedIDs)
		}
		if err != nil && !onlyDuplicates(err) {
			return inserted, fmt.Errorf("insert into %s: %w", name, err)
		}
	}
	return inserted, nil
}

func onlyDuplicates(err error) bool {
	var bulk mongo.BulkWriteException
	if !errors.As(err, &bulk) || bulk.WriteConcernError != nil {
		return false
	}
	for _, we := range bulk.WriteErrors {
		if we.Code != 11000 {
			return false
		}
	}
	return true
}

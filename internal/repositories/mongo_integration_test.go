package repositories

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/db"
	"github.com/vidtube/backend/internal/models"
)

// newTestDatabase returns a throwaway database with the index catalogue
// applied. Tests are skipped unless VIDTUBE_TEST_MONGO_URI is set.
func newTestDatabase(t *testing.T) *mongo.Database {
	t.Helper()

	uri := os.Getenv("VIDTUBE_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("VIDTUBE_TEST_MONGO_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	name := "vidtube_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
	store, err := db.Connect(ctx, uri, name)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if _, err := db.EnsureIndexes(ctx, store.Database()); err != nil {
		t.Fatalf("ensure indexes: %v", err)
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = store.Database().Drop(ctx)
		_ = store.Disconnect(ctx)
	})
	return store.Database()
}

func createUser(t *testing.T, repo *MongoUserRepository, username string) models.User {
	t.Helper()
	user := models.User{
		Username: username,
		Email:    username + "@example.com",
		FullName: strings.ToUpper(username[:1]) + username[1:],
		Avatar:   "https://cdn.example.com/" + username + ".png",
		Password: "hash",
	}
	if err := repo.Create(context.Background(), &user); err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return user
}

func TestMongoUserRepository_CreateConflictAndLogin(t *testing.T) {
	database := newTestDatabase(t)
	ctx := context.Background()
	repo := NewMongoUserRepository(database)

	alice := createUser(t, repo, "alice")

	dup := models.User{Username: "  ALICE ", Email: "other@example.com", Password: "hash"}
	if err := repo.Create(ctx, &dup); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict for duplicate username, got %v", err)
	}

	byEmail, err := repo.FindByLogin(ctx, "Alice@Example.com")
	if err != nil {
		t.Fatalf("find by email: %v", err)
	}
	if byEmail.ID != alice.ID {
		t.Fatalf("expected %s, got %s", alice.ID.Hex(), byEmail.ID.Hex())
	}

	if _, err := repo.FindByLogin(ctx, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	updated, err := repo.UpdateAccount(ctx, alice.ID, AccountUpdate{FullName: "Alice Liddell"})
	if err != nil {
		t.Fatalf("update account: %v", err)
	}
	if updated.FullName != "Alice Liddell" || updated.Email != "alice@example.com" {
		t.Fatalf("unexpected account after update: %+v", updated)
	}
}

func TestMongoUserRepository_PushWatchHistoryMovesToFront(t *testing.T) {
	database := newTestDatabase(t)
	ctx := context.Background()
	repo := NewMongoUserRepository(database)
	user := createUser(t, repo, "viewer")

	a, b := primitive.NewObjectID(), primitive.NewObjectID()
	for _, id := range []primitive.ObjectID{a, b, a} {
		if err := repo.PushWatchHistory(ctx, user.ID, id); err != nil {
			t.Fatalf("push: %v", err)
		}
	}

	got, err := repo.FindByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(got.WatchHistory) != 2 || got.WatchHistory[0] != a || got.WatchHistory[1] != b {
		t.Fatalf("unexpected history %v", got.WatchHistory)
	}
}

func TestMongoEdgeRepository_ToggleAlternates(t *testing.T) {
	database := newTestDatabase(t)
	ctx := context.Background()
	edges := NewMongoEdgeRepository(database)

	actor := primitive.NewObjectID()
	target := models.LikeTarget{Kind: models.TargetVideo, ID: primitive.NewObjectID()}

	for i := 1; i <= 5; i++ {
		res, err := edges.ToggleLike(ctx, actor, target)
		if err != nil {
			t.Fatalf("toggle %d: %v", i, err)
		}
		wantActive := i%2 == 1
		if res.Active != wantActive {
			t.Fatalf("toggle %d: expected active=%v", i, wantActive)
		}
		if wantActive && res.Record == nil {
			t.Fatalf("toggle %d: expected created record", i)
		}
	}

	count, err := database.Collection(db.LikesCollection).CountDocuments(ctx, bson.D{})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one like after odd number of toggles, got %d", count)
	}
}

func TestMongoEdgeRepository_ConcurrentTogglesNeverDuplicate(t *testing.T) {
	database := newTestDatabase(t)
	ctx := context.Background()
	edges := NewMongoEdgeRepository(database)

	subscriber, channel := primitive.NewObjectID(), primitive.NewObjectID()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = edges.ToggleSubscription(ctx, subscriber, channel)
		}()
	}
	wg.Wait()

	count, err := database.Collection(db.SubscriptionsCollection).CountDocuments(ctx, bson.D{
		{Key: "subscriber", Value: subscriber},
		{Key: "channel", Value: channel},
	})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count > 1 {
		t.Fatalf("expected at most one subscription edge, got %d", count)
	}
}

func TestMongoRepositories_OwnershipEnforced(t *testing.T) {
	database := newTestDatabase(t)
	ctx := context.Background()

	owner, intruder := primitive.NewObjectID(), primitive.NewObjectID()

	videos := NewMongoVideoRepository(database)
	video := models.Video{Owner: owner, Title: "mine", IsPublished: true}
	if err := videos.Create(ctx, &video); err != nil {
		t.Fatalf("create video: %v", err)
	}
	comments := NewMongoCommentRepository(database)
	comment := models.Comment{Owner: owner, Video: video.ID, Content: "first"}
	if err := comments.Create(ctx, &comment); err != nil {
		t.Fatalf("create comment: %v", err)
	}
	tweets := NewMongoTweetRepository(database)
	tweet := models.Tweet{Owner: owner, Content: "hello"}
	if err := tweets.Create(ctx, &tweet); err != nil {
		t.Fatalf("create tweet: %v", err)
	}
	playlists := NewMongoPlaylistRepository(database)
	playlist := models.Playlist{Owner: owner, Name: "mix"}
	if err := playlists.Create(ctx, &playlist); err != nil {
		t.Fatalf("create playlist: %v", err)
	}

	checks := map[string]error{}
	_, checks["video update"] = videos.Update(ctx, video.ID, intruder, VideoUpdate{Title: "theirs"})
	checks["video delete"] = videos.Delete(ctx, video.ID, intruder)
	_, checks["video publish"] = videos.TogglePublish(ctx, video.ID, intruder)
	_, checks["comment update"] = comments.Update(ctx, comment.ID, intruder, "edited")
	checks["comment delete"] = comments.Delete(ctx, comment.ID, intruder)
	_, checks["tweet update"] = tweets.Update(ctx, tweet.ID, intruder, "edited")
	checks["tweet delete"] = tweets.Delete(ctx, tweet.ID, intruder)
	_, checks["playlist update"] = playlists.Update(ctx, playlist.ID, intruder, PlaylistUpdate{Name: "x"})
	checks["playlist delete"] = playlists.Delete(ctx, playlist.ID, intruder)
	_, checks["playlist add"] = playlists.AddVideo(ctx, playlist.ID, intruder, video.ID)

	for name, err := range checks {
		if !errors.Is(err, ErrForbidden) {
			t.Errorf("%s: expected ErrForbidden, got %v", name, err)
		}
	}

	if _, err := videos.Update(ctx, primitive.NewObjectID(), owner, VideoUpdate{Title: "x"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for missing video, got %v", err)
	}

	toggled, err := videos.TogglePublish(ctx, video.ID, owner)
	if err != nil {
		t.Fatalf("toggle publish: %v", err)
	}
	if toggled.IsPublished {
		t.Fatal("expected video to be unpublished")
	}
}

func TestMongoPlaylistRepository_AddVideoRejectsDuplicate(t *testing.T) {
	database := newTestDatabase(t)
	ctx := context.Background()
	playlists := NewMongoPlaylistRepository(database)

	owner := primitive.NewObjectID()
	videoA, videoB := primitive.NewObjectID(), primitive.NewObjectID()
	playlist := models.Playlist{Owner: owner, Name: "mix", Videos: []primitive.ObjectID{videoA}}
	if err := playlists.Create(ctx, &playlist); err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := playlists.AddVideo(ctx, playlist.ID, owner, videoB)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if len(updated.Videos) != 2 || updated.Videos[1] != videoB {
		t.Fatalf("expected videoB appended, got %v", updated.Videos)
	}

	if _, err := playlists.AddVideo(ctx, playlist.ID, owner, videoB); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected duplicate, got %v", err)
	}

	removed, err := playlists.RemoveVideo(ctx, playlist.ID, owner, videoA)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(removed.Videos) != 1 || removed.Videos[0] != videoB {
		t.Fatalf("unexpected videos after removal %v", removed.Videos)
	}
}

func TestMongoVideoRepository_DeleteCascades(t *testing.T) {
	database := newTestDatabase(t)
	ctx := context.Background()

	users := NewMongoUserRepository(database)
	owner := createUser(t, users, "owner")
	viewer := createUser(t, users, "viewer")

	videos := NewMongoVideoRepository(database)
	video := models.Video{Owner: owner.ID, Title: "doomed", IsPublished: true}
	if err := videos.Create(ctx, &video); err != nil {
		t.Fatalf("create video: %v", err)
	}
	comments := NewMongoCommentRepository(database)
	comment := models.Comment{Owner: viewer.ID, Video: video.ID, Content: "nice"}
	if err := comments.Create(ctx, &comment); err != nil {
		t.Fatalf("create comment: %v", err)
	}
	edges := NewMongoEdgeRepository(database)
	if _, err := edges.ToggleLike(ctx, viewer.ID, models.LikeTarget{Kind: models.TargetVideo, ID: video.ID}); err != nil {
		t.Fatalf("like video: %v", err)
	}
	if _, err := edges.ToggleLike(ctx, owner.ID, models.LikeTarget{Kind: models.TargetComment, ID: comment.ID}); err != nil {
		t.Fatalf("like comment: %v", err)
	}
	playlists := NewMongoPlaylistRepository(database)
	playlist := models.Playlist{Owner: viewer.ID, Name: "faves", Videos: []primitive.ObjectID{video.ID}}
	if err := playlists.Create(ctx, &playlist); err != nil {
		t.Fatalf("create playlist: %v", err)
	}
	if err := users.PushWatchHistory(ctx, viewer.ID, video.ID); err != nil {
		t.Fatalf("push history: %v", err)
	}

	if err := videos.Delete(ctx, video.ID, owner.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	for _, coll := range []string{db.CommentsCollection, db.LikesCollection} {
		n, err := database.Collection(coll).CountDocuments(ctx, bson.D{})
		if err != nil {
			t.Fatalf("count %s: %v", coll, err)
		}
		if n != 0 {
			t.Fatalf("expected %s to be purged, found %d", coll, n)
		}
	}
	gotPlaylist, err := playlists.FindByID(ctx, playlist.ID)
	if err != nil {
		t.Fatalf("find playlist: %v", err)
	}
	if len(gotPlaylist.Videos) != 0 {
		t.Fatalf("expected playlist to drop deleted video, got %v", gotPlaylist.Videos)
	}
	gotViewer, err := users.FindByID(ctx, viewer.ID)
	if err != nil {
		t.Fatalf("find viewer: %v", err)
	}
	if len(gotViewer.WatchHistory) != 0 {
		t.Fatalf("expected watch history to drop deleted video, got %v", gotViewer.WatchHistory)
	}
}

func TestMongoSessionStore_SaveFindDelete(t *testing.T) {
	database := newTestDatabase(t)
	ctx := context.Background()
	user := createUser(t, NewMongoUserRepository(database), "session")
	store := NewMongoSessionStore(database)

	expires := time.Now().Add(time.Hour).UTC().Truncate(time.Millisecond)
	if err := store.Save(ctx, auth.Session{UserID: user.ID.Hex(), RefreshToken: "token-1", ExpiresAt: expires}); err != nil {
		t.Fatalf("save: %v", err)
	}

	session, err := store.Find(ctx, user.ID.Hex())
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if session.RefreshToken != "token-1" || !session.ExpiresAt.Equal(expires) {
		t.Fatalf("unexpected session %+v", session)
	}

	if err := store.Delete(ctx, user.ID.Hex()); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Find(ctx, user.ID.Hex()); !errors.Is(err, auth.ErrSessionNotFound) {
		t.Fatalf("expected session not found after delete, got %v", err)
	}
}

package queries

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/vidtube/backend/internal/db/dbtest"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/pagination"
	"github.com/vidtube/backend/internal/pipeline"
	"github.com/vidtube/backend/internal/repositories"
)

func stageDoc(t *testing.T, p mongo.Pipeline, operator string) bson.D {
	t.Helper()
	v, ok := dbtest.FindStage(p, operator)
	if !ok {
		t.Fatalf("pipeline has no %s stage: %v", operator, dbtest.StageNames(p))
	}
	d, ok := v.(bson.D)
	if !ok {
		t.Fatalf("%s stage is %T, want bson.D", operator, v)
	}
	return d
}

func lookupValue(d bson.D, key string) (interface{}, bool) {
	for _, e := range d {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

func keys(d bson.D) []string {
	out := make([]string, 0, len(d))
	for _, e := range d {
		out = append(out, e.Key)
	}
	return out
}

func TestChannelProfilePipeline(t *testing.T) {
	viewer := primitive.NewObjectID()
	p := ChannelProfilePipeline("  Alice ", viewer).Build()

	wantStages := []string{"$match", "$lookup", "$lookup", "$addFields", "$project"}
	if diff := cmp.Diff(wantStages, dbtest.StageNames(p)); diff != "" {
		t.Fatalf("stages mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff(bson.D{{Key: "username", Value: "alice"}}, stageDoc(t, p, "$match")); diff != "" {
		t.Fatalf("match mismatch (-want +got):\n%s", diff)
	}

	derived := stageDoc(t, p, "$addFields")
	got, _ := lookupValue(derived, "isSubscribed")
	if diff := cmp.Diff(pipeline.Contains("subscribers.subscriber", viewer), got); diff != "" {
		t.Fatalf("isSubscribed mismatch (-want +got):\n%s", diff)
	}

	project := stageDoc(t, p, "$project")
	for _, secret := range []string{"password", "refreshToken", "refreshTokenExpiresAt", "watchHistory", "subscribers", "subscribedTo"} {
		if _, ok := lookupValue(project, secret); ok {
			t.Fatalf("projection exposes %q", secret)
		}
	}
	wantFields := []string{"fullName", "username", "email", "avatar", "coverImage", "subscribersCount", "channelsSubscribedToCount", "isSubscribed"}
	if diff := cmp.Diff(wantFields, keys(project)); diff != "" {
		t.Fatalf("projection mismatch (-want +got):\n%s", diff)
	}
}

func TestChannelProfileAnonymousViewerIsNotSubscribed(t *testing.T) {
	p := ChannelProfilePipeline("alice", primitive.NilObjectID).Build()
	got, _ := lookupValue(stageDoc(t, p, "$addFields"), "isSubscribed")
	if diff := cmp.Diff(bson.D{{Key: "$literal", Value: false}}, got); diff != "" {
		t.Fatalf("isSubscribed mismatch (-want +got):\n%s", diff)
	}
}

func TestChannelProfile(t *testing.T) {
	id := primitive.NewObjectID()
	users := dbtest.Returning(bson.D{
		{Key: "_id", Value: id},
		{Key: "username", Value: "alice"},
		{Key: "fullName", Value: "Alice A"},
		{Key: "subscribersCount", Value: int32(3)},
		{Key: "channelsSubscribedToCount", Value: int32(1)},
		{Key: "isSubscribed", Value: true},
	})
	store := &Store{Users: users}

	profile, err := store.ChannelProfile(context.Background(), "alice", primitive.NewObjectID())
	if err != nil {
		t.Fatalf("ChannelProfile() error = %v", err)
	}
	want := models.ChannelProfile{
		ID:                        id,
		Username:                  "alice",
		FullName:                  "Alice A",
		SubscribersCount:          3,
		ChannelsSubscribedToCount: 1,
		IsSubscribed:              true,
	}
	if diff := cmp.Diff(want, profile); diff != "" {
		t.Fatalf("profile mismatch (-want +got):\n%s", diff)
	}

	last := users.Pipelines()[0]
	names := dbtest.StageNames(last)
	if names[len(names)-1] != "$limit" {
		t.Fatalf("expected single-result limit, got %v", names)
	}
}

func TestChannelProfileNotFound(t *testing.T) {
	store := &Store{Users: &dbtest.Aggregator{}}
	if _, err := store.ChannelProfile(context.Background(), "ghost", primitive.NilObjectID); !errors.Is(err, repositories.ErrNotFound) {
		t.Fatalf("expected not found got %v", err)
	}
}

func TestChannelStatsDefaultsToZero(t *testing.T) {
	store := &Store{Videos: &dbtest.Aggregator{}, Subscriptions: &dbtest.Aggregator{}}

	stats, err := store.ChannelStats(context.Background(), primitive.NewObjectID())
	if err != nil {
		t.Fatalf("ChannelStats() error = %v", err)
	}
	if diff := cmp.Diff(models.ChannelStats{}, stats); diff != "" {
		t.Fatalf("stats mismatch (-want +got):\n%s", diff)
	}
}

func TestChannelStats(t *testing.T) {
	videos := &dbtest.Aggregator{Respond: func(p mongo.Pipeline) ([]interface{}, error) {
		lookup, ok := dbtest.FindStage(p, "$lookup")
		if !ok {
			return []interface{}{bson.D{{Key: "totalVideos", Value: int32(2)}, {Key: "totalViews", Value: int64(30)}}}, nil
		}
		as, _ := lookupValue(lookup.(bson.D), "as")
		switch as {
		case "comments":
			return []interface{}{bson.D{{Key: "total", Value: int32(4)}}}, nil
		case "likes":
			return []interface{}{bson.D{{Key: "total", Value: int32(7)}}}, nil
		}
		return nil, nil
	}}
	subscriptions := dbtest.Returning(dbtest.CountDoc(3))
	store := &Store{Videos: videos, Subscriptions: subscriptions}

	stats, err := store.ChannelStats(context.Background(), primitive.NewObjectID())
	if err != nil {
		t.Fatalf("ChannelStats() error = %v", err)
	}
	want := models.ChannelStats{TotalVideos: 2, TotalViews: 30, TotalSubscribers: 3, TotalComments: 4, TotalLikes: 7}
	if diff := cmp.Diff(want, stats); diff != "" {
		t.Fatalf("stats mismatch (-want +got):\n%s", diff)
	}
	if got := len(videos.Pipelines()); got != 3 {
		t.Fatalf("expected 3 video aggregates got %d", got)
	}
}

func TestChannelStatsPropagatesErrors(t *testing.T) {
	boom := errors.New("connection reset")
	store := &Store{
		Videos: &dbtest.Aggregator{},
		Subscriptions: &dbtest.Aggregator{Respond: func(mongo.Pipeline) ([]interface{}, error) {
			return nil, boom
		}},
	}
	if _, err := store.ChannelStats(context.Background(), primitive.NewObjectID()); !errors.Is(err, boom) {
		t.Fatalf("expected %v got %v", boom, err)
	}
}

func TestChannelStatsLikesOnlyCountVideoTargets(t *testing.T) {
	p := NewChannelStatsPipelines(primitive.NewObjectID()).Likes.Build()
	lookup := stageDoc(t, p, "$lookup")
	sub, _ := lookupValue(lookup, "pipeline")
	stages, ok := sub.(mongo.Pipeline)
	if !ok || len(stages) == 0 {
		t.Fatalf("expected lookup sub-pipeline got %v", sub)
	}
	want := bson.D{{Key: "$match", Value: bson.D{{Key: "target.kind", Value: models.TargetVideo}}}}
	if diff := cmp.Diff(want, stages[0]); diff != "" {
		t.Fatalf("like filter mismatch (-want +got):\n%s", diff)
	}
}

func TestVideoFeedPipelineFilters(t *testing.T) {
	owner := primitive.NewObjectID()
	search := pipeline.SearchText("cat", "title", "description")

	tests := []struct {
		name   string
		filter FeedFilter
		want   bson.D
	}{
		{
			name:   "anonymous search",
			filter: FeedFilter{Query: "cat"},
			want:   append(append(bson.D{}, search...), bson.E{Key: "isPublished", Value: true}),
		},
		{
			name:   "someone else's channel",
			filter: FeedFilter{Owner: owner, Viewer: primitive.NewObjectID()},
			want:   bson.D{{Key: "owner", Value: owner}, {Key: "isPublished", Value: true}},
		},
		{
			name:   "own channel includes drafts",
			filter: FeedFilter{Owner: owner, Viewer: owner},
			want:   bson.D{{Key: "owner", Value: owner}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := VideoFeedPipeline(tt.filter)
			if err != nil {
				t.Fatalf("VideoFeedPipeline() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, stageDoc(t, p.Build(), "$match")); diff != "" {
				t.Fatalf("filter mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestVideoFeedPipelineRejectsBadSort(t *testing.T) {
	if _, err := VideoFeedPipeline(FeedFilter{SortBy: "$where"}); !errors.Is(err, pipeline.ErrInvalidSort) {
		t.Fatalf("expected invalid sort got %v", err)
	}
}

func TestVideoFeed(t *testing.T) {
	ownerID := primitive.NewObjectID()
	videoID := primitive.NewObjectID()
	videos := &dbtest.Aggregator{Respond: func(p mongo.Pipeline) ([]interface{}, error) {
		if dbtest.IsCount(p) {
			return []interface{}{dbtest.CountDoc(1)}, nil
		}
		return []interface{}{bson.D{
			{Key: "_id", Value: videoID},
			{Key: "title", Value: "Cats 101"},
			{Key: "isPublished", Value: true},
			{Key: "owner", Value: bson.D{{Key: "_id", Value: ownerID}, {Key: "username", Value: "alice"}}},
		}}, nil
	}}
	store := &Store{Videos: videos}

	page, err := store.VideoFeed(context.Background(), FeedFilter{Query: "cat", Params: pagination.Params{Page: 1, Limit: 10}})
	if err != nil {
		t.Fatalf("VideoFeed() error = %v", err)
	}
	if page.TotalItems != 1 || page.TotalPages != 1 || len(page.Results) != 1 {
		t.Fatalf("unexpected page %+v", page)
	}
	got := page.Results[0]
	if got.Title != "Cats 101" || got.Owner == nil || got.Owner.Username != "alice" {
		t.Fatalf("unexpected result %+v", got)
	}

	slice := videos.Pipelines()[1]
	if _, ok := dbtest.FindStage(slice, "$lookup"); !ok {
		t.Fatalf("expected owner join on the page, got %v", dbtest.StageNames(slice))
	}
	if _, ok := dbtest.FindStage(videos.Pipelines()[0], "$lookup"); ok {
		t.Fatal("count should not join owners")
	}
}

func TestSearchSuggestions(t *testing.T) {
	videos := dbtest.Returning(bson.D{{Key: "_id", Value: primitive.NewObjectID()}, {Key: "title", Value: "Cats 101"}})
	store := &Store{Videos: videos}
	store.EnableSuggestionCache(time.Minute)

	for _, q := range []string{"Cat", " cat "} {
		got, err := store.SearchSuggestions(context.Background(), q, 50)
		if err != nil {
			t.Fatalf("SearchSuggestions(%q) error = %v", q, err)
		}
		if len(got) != 1 || got[0].Title != "Cats 101" {
			t.Fatalf("unexpected suggestions %+v", got)
		}
	}

	pipelines := videos.Pipelines()
	if len(pipelines) != 1 {
		t.Fatalf("expected one cached aggregate got %d", len(pipelines))
	}
	limit, _ := dbtest.FindStage(pipelines[0], "$limit")
	if limit != int64(MaxSuggestionLimit) {
		t.Fatalf("expected limit capped at %d got %v", MaxSuggestionLimit, limit)
	}
	if _, ok := dbtest.FindStage(pipelines[0], "$lookup"); ok {
		t.Fatal("suggestions must not join")
	}
}

func TestSearchSuggestionsBlankQuery(t *testing.T) {
	videos := &dbtest.Aggregator{}
	store := &Store{Videos: videos}

	got, err := store.SearchSuggestions(context.Background(), "   ", 5)
	if err != nil {
		t.Fatalf("SearchSuggestions() error = %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty suggestions got %v", got)
	}
	if len(videos.Pipelines()) != 0 {
		t.Fatal("blank query should not hit the store")
	}
}

func TestSuggestionLimit(t *testing.T) {
	tests := map[int]int{0: 10, -3: 10, 5: 5, 20: 20, 21: 20}
	for in, want := range tests {
		if got := SuggestionLimit(in); got != want {
			t.Fatalf("SuggestionLimit(%d) = %d want %d", in, got, want)
		}
	}
}

func TestVideoDetailHidesDraftsFromOthers(t *testing.T) {
	id := primitive.NewObjectID()

	anonymous := stageDoc(t, VideoDetailPipeline(id, primitive.NilObjectID).Build(), "$match")
	want := bson.D{{Key: "_id", Value: id}, {Key: "isPublished", Value: true}}
	if diff := cmp.Diff(want, anonymous); diff != "" {
		t.Fatalf("anonymous filter mismatch (-want +got):\n%s", diff)
	}

	viewer := primitive.NewObjectID()
	signedIn := stageDoc(t, VideoDetailPipeline(id, viewer).Build(), "$match")
	or, _ := lookupValue(signedIn, "$or")
	wantOr := bson.A{
		bson.D{{Key: "isPublished", Value: true}},
		bson.D{{Key: "owner", Value: viewer}},
	}
	if diff := cmp.Diff(wantOr, or); diff != "" {
		t.Fatalf("owner visibility mismatch (-want +got):\n%s", diff)
	}

	store := &Store{Videos: &dbtest.Aggregator{}}
	if _, err := store.VideoDetail(context.Background(), id, viewer); !errors.Is(err, repositories.ErrNotFound) {
		t.Fatalf("expected not found got %v", err)
	}
}

func TestWatchHistoryEmpty(t *testing.T) {
	users := &dbtest.Aggregator{}
	store := &Store{Users: users}

	got, err := store.WatchHistory(context.Background(), primitive.NewObjectID())
	if err != nil {
		t.Fatalf("WatchHistory() error = %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty history got %v", got)
	}

	wantStages := []string{"$match", "$lookup", "$project", "$unwind", "$replaceRoot"}
	if diff := cmp.Diff(wantStages, dbtest.StageNames(users.Pipelines()[0])); diff != "" {
		t.Fatalf("stages mismatch (-want +got):\n%s", diff)
	}
}

func TestWatchHistoryNestedOwnerJoin(t *testing.T) {
	p := WatchHistoryPipeline(primitive.NewObjectID()).Build()
	lookup := stageDoc(t, p, "$lookup")
	sub, _ := lookupValue(lookup, "pipeline")
	nested, ok := sub.(mongo.Pipeline)
	if !ok {
		t.Fatalf("expected nested pipeline got %T", sub)
	}
	inner := stageDoc(t, nested, "$lookup")
	innerSub, _ := lookupValue(inner, "pipeline")
	want := mongo.Pipeline{pipeline.Include("fullName", "username", "avatar").Document()}
	if diff := cmp.Diff(want, innerSub); diff != "" {
		t.Fatalf("owner projection mismatch (-want +got):\n%s", diff)
	}
}

func TestLikedVideos(t *testing.T) {
	videoID := primitive.NewObjectID()
	likedAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	likes := dbtest.Returning(bson.D{
		{Key: "_id", Value: videoID},
		{Key: "title", Value: "Cats 101"},
		{Key: "likedAt", Value: likedAt},
	})
	store := &Store{Likes: likes}

	got, err := store.LikedVideos(context.Background(), primitive.NewObjectID())
	if err != nil {
		t.Fatalf("LikedVideos() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != videoID || !got[0].LikedAt.Equal(likedAt) {
		t.Fatalf("unexpected liked videos %+v", got)
	}

	wantStages := []string{"$match", "$sort", "$lookup", "$unwind", "$addFields", "$replaceRoot"}
	if diff := cmp.Diff(wantStages, dbtest.StageNames(likes.Pipelines()[0])); diff != "" {
		t.Fatalf("stages mismatch (-want +got):\n%s", diff)
	}
}

func TestPlaylistDetailOrdersVideos(t *testing.T) {
	p := PlaylistDetailPipeline(primitive.NewObjectID(), primitive.NilObjectID).Build()
	project := stageDoc(t, p, "$project")
	videos, _ := lookupValue(project, "videos")
	if diff := cmp.Diff(pipeline.InOrderOf("videos", "entries"), videos); diff != "" {
		t.Fatalf("ordering mismatch (-want +got):\n%s", diff)
	}
	if _, ok := lookupValue(project, "entries"); ok {
		t.Fatal("raw join output should not be projected")
	}

	store := &Store{Playlists: &dbtest.Aggregator{}}
	if _, err := store.PlaylistDetail(context.Background(), primitive.NewObjectID(), primitive.NilObjectID); !errors.Is(err, repositories.ErrNotFound) {
		t.Fatalf("expected not found got %v", err)
	}
}

func TestUserListingsNeverExposeUserSecrets(t *testing.T) {
	id := primitive.NewObjectID()
	for name, p := range map[string]pipeline.Pipeline{
		"playlists":   UserPlaylistsPipeline(id),
		"tweets":      UserTweetsPipeline(id),
		"subscribers": ChannelSubscribersPipeline(id),
		"channels":    SubscribedChannelsPipeline(id),
	} {
		t.Run(name, func(t *testing.T) {
			for _, stage := range p.Build() {
				if stage[0].Key != "$lookup" {
					continue
				}
				spec := stage[0].Value.(bson.D)
				if from, _ := lookupValue(spec, "from"); from != "users" {
					continue
				}
				sub, _ := lookupValue(spec, "pipeline")
				want := mongo.Pipeline{ownerFields.Document()}
				if diff := cmp.Diff(want, sub); diff != "" {
					t.Fatalf("user join projection mismatch (-want +got):\n%s", diff)
				}
			}
		})
	}
}

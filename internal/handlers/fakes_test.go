package handlers

import (
	"context"
	"io"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/pagination"
	"github.com/vidtube/backend/internal/queries"
	"github.com/vidtube/backend/internal/repositories"
	"github.com/vidtube/backend/internal/videos"
)

type memUsers struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]models.User
}

func newMemUsers() *memUsers {
	return &memUsers{users: make(map[primitive.ObjectID]models.User)}
}

func (s *memUsers) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == user.Username || u.Email == user.Email {
			return repositories.ErrConflict
		}
	}
	user.ID = primitive.NewObjectID()
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt
	s.users[user.ID] = *user
	return nil
}

func (s *memUsers) FindByID(_ context.Context, id primitive.ObjectID) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	return user, nil
}

func (s *memUsers) FindByLogin(_ context.Context, login string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	login = repositories.NormalizeHandle(login)
	for _, u := range s.users {
		if u.Username == login || u.Email == login {
			return u, nil
		}
	}
	return models.User{}, repositories.ErrNotFound
}

func (s *memUsers) update(id primitive.ObjectID, fn func(*models.User)) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	fn(&user)
	s.users[id] = user
	return user, nil
}

func (s *memUsers) UpdateAccount(_ context.Context, id primitive.ObjectID, update repositories.AccountUpdate) (models.User, error) {
	return s.update(id, func(u *models.User) {
		if update.FullName != "" {
			u.FullName = update.FullName
		}
		if update.Email != "" {
			u.Email = update.Email
		}
	})
}

func (s *memUsers) SetPassword(_ context.Context, id primitive.ObjectID, hash string) error {
	_, err := s.update(id, func(u *models.User) { u.Password = hash })
	return err
}

func (s *memUsers) SetAvatar(_ context.Context, id primitive.ObjectID, url string) (models.User, error) {
	return s.update(id, func(u *models.User) { u.Avatar = url })
}

func (s *memUsers) SetCoverImage(_ context.Context, id primitive.ObjectID, url string) (models.User, error) {
	return s.update(id, func(u *models.User) { u.CoverImage = url })
}

func (s *memUsers) PushWatchHistory(_ context.Context, id, videoID primitive.ObjectID) error {
	_, err := s.update(id, func(u *models.User) {
		u.WatchHistory = append([]primitive.ObjectID{videoID}, u.WatchHistory...)
	})
	return err
}

type memVideos struct {
	mu     sync.Mutex
	videos map[primitive.ObjectID]models.Video
}

func newMemVideos() *memVideos {
	return &memVideos{videos: make(map[primitive.ObjectID]models.Video)}
}

func (s *memVideos) Create(_ context.Context, video *models.Video) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	video.ID = primitive.NewObjectID()
	s.videos[video.ID] = *video
	return nil
}

func (s *memVideos) FindByID(_ context.Context, id primitive.ObjectID) (models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	video, ok := s.videos[id]
	if !ok {
		return models.Video{}, repositories.ErrNotFound
	}
	return video, nil
}

func (s *memVideos) owned(id, actor primitive.ObjectID, fn func(*models.Video)) (models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	video, ok := s.videos[id]
	if !ok {
		return models.Video{}, repositories.ErrNotFound
	}
	if video.Owner != actor {
		return models.Video{}, repositories.ErrForbidden
	}
	fn(&video)
	s.videos[id] = video
	return video, nil
}

func (s *memVideos) Update(_ context.Context, id, actor primitive.ObjectID, update repositories.VideoUpdate) (models.Video, error) {
	return s.owned(id, actor, func(v *models.Video) {
		if update.Title != "" {
			v.Title = update.Title
		}
		if update.Description != "" {
			v.Description = update.Description
		}
		if update.Thumbnail != "" {
			v.Thumbnail = update.Thumbnail
		}
	})
}

func (s *memVideos) Delete(_ context.Context, id, actor primitive.ObjectID) error {
	if _, err := s.owned(id, actor, func(*models.Video) {}); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.videos, id)
	s.mu.Unlock()
	return nil
}

func (s *memVideos) TogglePublish(_ context.Context, id, actor primitive.ObjectID) (models.Video, error) {
	return s.owned(id, actor, func(v *models.Video) { v.IsPublished = !v.IsPublished })
}

func (s *memVideos) IncrementViews(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	video, ok := s.videos[id]
	if !ok {
		return repositories.ErrNotFound
	}
	video.Views++
	s.videos[id] = video
	return nil
}

// memContent backs both comments and tweets.
type memContent[T any] struct {
	mu    sync.Mutex
	items map[primitive.ObjectID]T
	id    func(*T) *primitive.ObjectID
	owner func(T) primitive.ObjectID
	set   func(*T, string)
}

func (s *memContent[T]) Create(_ context.Context, item *T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	*s.id(item) = primitive.NewObjectID()
	s.items[*s.id(item)] = *item
	return nil
}

func (s *memContent[T]) FindByID(_ context.Context, id primitive.ObjectID) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		var zero T
		return zero, repositories.ErrNotFound
	}
	return item, nil
}

func (s *memContent[T]) Update(_ context.Context, id, actor primitive.ObjectID, content string) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var zero T
	item, ok := s.items[id]
	if !ok {
		return zero, repositories.ErrNotFound
	}
	if s.owner(item) != actor {
		return zero, repositories.ErrForbidden
	}
	s.set(&item, content)
	s.items[id] = item
	return item, nil
}

func (s *memContent[T]) Delete(_ context.Context, id, actor primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return repositories.ErrNotFound
	}
	if s.owner(item) != actor {
		return repositories.ErrForbidden
	}
	delete(s.items, id)
	return nil
}

func newMemComments() *memContent[models.Comment] {
	return &memContent[models.Comment]{
		items: make(map[primitive.ObjectID]models.Comment),
		id:    func(c *models.Comment) *primitive.ObjectID { return &c.ID },
		owner: func(c models.Comment) primitive.ObjectID { return c.Owner },
		set:   func(c *models.Comment, content string) { c.Content = content },
	}
}

func newMemTweets() *memContent[models.Tweet] {
	return &memContent[models.Tweet]{
		items: make(map[primitive.ObjectID]models.Tweet),
		id:    func(t *models.Tweet) *primitive.ObjectID { return &t.ID },
		owner: func(t models.Tweet) primitive.ObjectID { return t.Owner },
		set:   func(t *models.Tweet, content string) { t.Content = content },
	}
}

type memPlaylists struct {
	mu        sync.Mutex
	playlists map[primitive.ObjectID]models.Playlist
}

func newMemPlaylists() *memPlaylists {
	return &memPlaylists{playlists: make(map[primitive.ObjectID]models.Playlist)}
}

func (s *memPlaylists) Create(_ context.Context, playlist *models.Playlist) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	playlist.ID = primitive.NewObjectID()
	s.playlists[playlist.ID] = *playlist
	return nil
}

func (s *memPlaylists) FindByID(_ context.Context, id primitive.ObjectID) (models.Playlist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	playlist, ok := s.playlists[id]
	if !ok {
		return models.Playlist{}, repositories.ErrNotFound
	}
	return playlist, nil
}

func (s *memPlaylists) owned(id, actor primitive.ObjectID, fn func(*models.Playlist) error) (models.Playlist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	playlist, ok := s.playlists[id]
	if !ok {
		return models.Playlist{}, repositories.ErrNotFound
	}
	if playlist.Owner != actor {
		return models.Playlist{}, repositories.ErrForbidden
	}
	if err := fn(&playlist); err != nil {
		return models.Playlist{}, err
	}
	s.playlists[id] = playlist
	return playlist, nil
}

func (s *memPlaylists) Update(_ context.Context, id, actor primitive.ObjectID, update repositories.PlaylistUpdate) (models.Playlist, error) {
	return s.owned(id, actor, func(p *models.Playlist) error {
		if update.Name != "" {
			p.Name = update.Name
		}
		if update.Description != "" {
			p.Description = update.Description
		}
		return nil
	})
}

func (s *memPlaylists) Delete(_ context.Context, id, actor primitive.ObjectID) error {
	if _, err := s.owned(id, actor, func(*models.Playlist) error { return nil }); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.playlists, id)
	s.mu.Unlock()
	return nil
}

func (s *memPlaylists) AddVideo(_ context.Context, id, actor, videoID primitive.ObjectID) (models.Playlist, error) {
	return s.owned(id, actor, func(p *models.Playlist) error {
		for _, v := range p.Videos {
			if v == videoID {
				return repositories.ErrDuplicate
			}
		}
		p.Videos = append(p.Videos, videoID)
		return nil
	})
}

func (s *memPlaylists) RemoveVideo(_ context.Context, id, actor, videoID primitive.ObjectID) (models.Playlist, error) {
	return s.owned(id, actor, func(p *models.Playlist) error {
		kept := p.Videos[:0]
		for _, v := range p.Videos {
			if v != videoID {
				kept = append(kept, v)
			}
		}
		p.Videos = kept
		return nil
	})
}

type memEdges struct {
	mu            sync.Mutex
	likes         map[string]bool
	subscriptions map[string]bool
}

func newMemEdges() *memEdges {
	return &memEdges{likes: make(map[string]bool), subscriptions: make(map[string]bool)}
}

func (s *memEdges) ToggleLike(_ context.Context, actor primitive.ObjectID, target models.LikeTarget) (models.ToggleResult[models.Like], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := actor.Hex() + string(target.Kind) + target.ID.Hex()
	if s.likes[key] {
		delete(s.likes, key)
		return models.ToggleResult[models.Like]{}, nil
	}
	s.likes[key] = true
	return models.ToggleResult[models.Like]{Active: true, Record: &models.Like{ID: primitive.NewObjectID(), Target: target, LikedBy: actor}}, nil
}

func (s *memEdges) ToggleSubscription(_ context.Context, subscriber, channel primitive.ObjectID) (models.ToggleResult[models.Subscription], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := subscriber.Hex() + channel.Hex()
	if s.subscriptions[key] {
		delete(s.subscriptions, key)
		return models.ToggleResult[models.Subscription]{}, nil
	}
	s.subscriptions[key] = true
	return models.ToggleResult[models.Subscription]{Active: true, Record: &models.Subscription{ID: primitive.NewObjectID(), Subscriber: subscriber, Channel: channel}}, nil
}

// readsStub returns canned read models and records the arguments it saw.
type readsStub struct {
	profile    models.ChannelProfile
	profileErr error
	stats      models.ChannelStats
	feedFilter queries.FeedFilter
	detail     models.VideoDetail
	detailErr  error
}

func (s *readsStub) ChannelProfile(context.Context, string, primitive.ObjectID) (models.ChannelProfile, error) {
	return s.profile, s.profileErr
}

func (s *readsStub) ChannelStats(context.Context, primitive.ObjectID) (models.ChannelStats, error) {
	return s.stats, nil
}

func (s *readsStub) ChannelVideos(context.Context, primitive.ObjectID) ([]models.ChannelVideo, error) {
	return []models.ChannelVideo{}, nil
}

func (s *readsStub) ChannelSubscribers(context.Context, primitive.ObjectID) ([]models.ChannelMember, error) {
	return []models.ChannelMember{}, nil
}

func (s *readsStub) SubscribedChannels(context.Context, primitive.ObjectID) ([]models.ChannelMember, error) {
	return []models.ChannelMember{}, nil
}

func (s *readsStub) VideoFeed(_ context.Context, filter queries.FeedFilter) (pagination.Page[models.FeedVideo], error) {
	s.feedFilter = filter
	return pagination.Page[models.FeedVideo]{Results: []models.FeedVideo{}, CurrentPage: filter.Params.Page, Limit: filter.Params.Limit}, nil
}

func (s *readsStub) SearchSuggestions(context.Context, string, int) ([]models.VideoSuggestion, error) {
	return []models.VideoSuggestion{}, nil
}

func (s *readsStub) VideoDetail(context.Context, primitive.ObjectID, primitive.ObjectID) (models.VideoDetail, error) {
	return s.detail, s.detailErr
}

func (s *readsStub) VideoComments(context.Context, primitive.ObjectID, pagination.Params) (pagination.Page[models.CommentWithOwner], error) {
	return pagination.Page[models.CommentWithOwner]{Results: []models.CommentWithOwner{}}, nil
}

func (s *readsStub) LikedVideos(context.Context, primitive.ObjectID) ([]models.LikedVideo, error) {
	return []models.LikedVideo{}, nil
}

func (s *readsStub) WatchHistory(context.Context, primitive.ObjectID) ([]models.FeedVideo, error) {
	return []models.FeedVideo{}, nil
}

func (s *readsStub) UserPlaylists(context.Context, primitive.ObjectID) ([]models.PlaylistSummary, error) {
	return []models.PlaylistSummary{}, nil
}

func (s *readsStub) PlaylistDetail(context.Context, primitive.ObjectID, primitive.ObjectID) (models.PlaylistDetail, error) {
	return models.PlaylistDetail{}, repositories.ErrNotFound
}

func (s *readsStub) UserTweets(context.Context, primitive.ObjectID) ([]models.TweetWithLikes, error) {
	return []models.TweetWithLikes{}, nil
}

type memUploader struct {
	mu      sync.Mutex
	objects map[string][]byte
	removed []string
}

func newMemUploader() *memUploader {
	return &memUploader{objects: make(map[string][]byte)}
}

func (u *memUploader) Upload(_ context.Context, key string, body io.Reader, _ int64, _ string) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.objects[key] = data
	return "https://cdn.test/" + key, nil
}

func (u *memUploader) Remove(_ context.Context, key string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.objects, key)
	u.removed = append(u.removed, key)
	return nil
}

type viewsStub struct {
	mu    sync.Mutex
	views []videos.View
}

func (v *viewsStub) Enqueue(_ context.Context, view videos.View) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.views = append(v.views, view)
	return nil
}

type pingStub struct {
	err error
}

func (p pingStub) Ping(context.Context) error { return p.err }

package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// The types below are shapes produced by aggregation pipelines. None of them
// carries a password or refresh token field, so a join can never leak one.

// OwnerSummary is the public face of a user embedded in other documents.
type OwnerSummary struct {
	ID       primitive.ObjectID `bson:"_id" json:"_id"`
	Username string             `bson:"username" json:"username"`
	FullName string             `bson:"fullName" json:"fullName"`
	Avatar   string             `bson:"avatar" json:"avatar"`
}

// ChannelProfile is a user's public channel page.
type ChannelProfile struct {
	ID                        primitive.ObjectID `bson:"_id" json:"_id"`
	FullName                  string             `bson:"fullName" json:"fullName"`
	Username                  string             `bson:"username" json:"username"`
	Email                     string             `bson:"email" json:"email"`
	Avatar                    string             `bson:"avatar" json:"avatar"`
	CoverImage                string             `bson:"coverImage,omitempty" json:"coverImage,omitempty"`
	SubscribersCount          int64              `bson:"subscribersCount" json:"subscribersCount"`
	ChannelsSubscribedToCount int64              `bson:"channelsSubscribedToCount" json:"channelsSubscribedToCount"`
	IsSubscribed              bool               `bson:"isSubscribed" json:"isSubscribed"`
}

// ChannelStats are the dashboard totals of one channel.
type ChannelStats struct {
	TotalVideos      int64 `json:"totalVideos"`
	TotalViews       int64 `json:"totalViews"`
	TotalSubscribers int64 `json:"totalSubscribers"`
	TotalComments    int64 `json:"totalComments"`
	TotalLikes       int64 `json:"totalLikes"`
}

// FeedVideo is a video listing with its owner joined in place of the id.
type FeedVideo struct {
	ID          primitive.ObjectID `bson:"_id" json:"_id"`
	Title       string             `bson:"title" json:"title"`
	Description string             `bson:"description" json:"description"`
	VideoFile   string             `bson:"videoFile" json:"videoFile"`
	Thumbnail   string             `bson:"thumbnail" json:"thumbnail"`
	Duration    float64            `bson:"duration" json:"duration"`
	Views       int64              `bson:"views" json:"views"`
	IsPublished bool               `bson:"isPublished" json:"isPublished"`
	Owner       *OwnerSummary      `bson:"owner,omitempty" json:"owner"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// VideoSuggestion is the typeahead shape of a video.
type VideoSuggestion struct {
	ID          primitive.ObjectID `bson:"_id" json:"_id"`
	Title       string             `bson:"title" json:"title"`
	Thumbnail   string             `bson:"thumbnail" json:"thumbnail"`
	Description string             `bson:"description" json:"description"`
}

// ChannelOwner is the owner block of a video page.
type ChannelOwner struct {
	OwnerSummary     `bson:",inline"`
	SubscribersCount int64 `bson:"subscribersCount" json:"subscribersCount"`
	IsSubscribed     bool  `bson:"isSubscribed" json:"isSubscribed"`
}

// VideoDetail is the watch page of a single video.
type VideoDetail struct {
	ID          primitive.ObjectID `bson:"_id" json:"_id"`
	Title       string             `bson:"title" json:"title"`
	Description string             `bson:"description" json:"description"`
	VideoFile   string             `bson:"videoFile" json:"videoFile"`
	Thumbnail   string             `bson:"thumbnail" json:"thumbnail"`
	Duration    float64            `bson:"duration" json:"duration"`
	Views       int64              `bson:"views" json:"views"`
	IsPublished bool               `bson:"isPublished" json:"isPublished"`
	Owner       *ChannelOwner      `bson:"owner,omitempty" json:"owner"`
	LikesCount  int64              `bson:"likesCount" json:"likesCount"`
	IsLiked     bool               `bson:"isLiked" json:"isLiked"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// LikedVideo is an entry of a user's liked videos list.
type LikedVideo struct {
	FeedVideo `bson:",inline"`
	LikedAt   time.Time `bson:"likedAt" json:"likedAt"`
}

// ChannelVideo is a dashboard row for one of the caller's own videos.
type ChannelVideo struct {
	ID            primitive.ObjectID `bson:"_id" json:"_id"`
	Title         string             `bson:"title" json:"title"`
	Description   string             `bson:"description" json:"description"`
	Thumbnail     string             `bson:"thumbnail" json:"thumbnail"`
	Views         int64              `bson:"views" json:"views"`
	IsPublished   bool               `bson:"isPublished" json:"isPublished"`
	LikesCount    int64              `bson:"likesCount" json:"likesCount"`
	CommentsCount int64              `bson:"commentsCount" json:"commentsCount"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
}

// CommentWithOwner is a comment listing entry.
type CommentWithOwner struct {
	ID        primitive.ObjectID `bson:"_id" json:"_id"`
	Content   string             `bson:"content" json:"content"`
	Video     primitive.ObjectID `bson:"video" json:"video"`
	Owner     *OwnerSummary      `bson:"owner,omitempty" json:"owner"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// TweetWithLikes is a tweet listing entry.
type TweetWithLikes struct {
	ID         primitive.ObjectID `bson:"_id" json:"_id"`
	Content    string             `bson:"content" json:"content"`
	Owner      *OwnerSummary      `bson:"owner,omitempty" json:"owner"`
	LikesCount int64              `bson:"likesCount" json:"likesCount"`
	CreatedAt  time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// PlaylistSummary is a playlist listing entry.
type PlaylistSummary struct {
	ID          primitive.ObjectID `bson:"_id" json:"_id"`
	Name        string             `bson:"name" json:"name"`
	Description string             `bson:"description" json:"description"`
	Owner       *OwnerSummary      `bson:"owner,omitempty" json:"owner"`
	VideosCount int64              `bson:"videosCount" json:"videosCount"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// PlaylistDetail is a playlist with its videos in playlist order.
type PlaylistDetail struct {
	ID          primitive.ObjectID `bson:"_id" json:"_id"`
	Name        string             `bson:"name" json:"name"`
	Description string             `bson:"description" json:"description"`
	Owner       *OwnerSummary      `bson:"owner,omitempty" json:"owner"`
	Videos      []FeedVideo        `bson:"videos" json:"videos"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// ChannelMember is one side of a subscription edge: a subscriber of a
// channel, or a channel a user subscribes to.
type ChannelMember struct {
	OwnerSummary `bson:",inline"`
	SubscribedAt time.Time `bson:"subscribedAt" json:"subscribedAt"`
}

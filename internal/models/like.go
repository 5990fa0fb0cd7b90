package models

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TargetKind names the kind of entity a like points at.
type TargetKind string

const (
	TargetVideo   TargetKind = "video"
	TargetComment TargetKind = "comment"
	TargetTweet   TargetKind = "tweet"
)

// Valid reports whether k is one of the known kinds.
func (k TargetKind) Valid() bool {
	switch k {
	case TargetVideo, TargetComment, TargetTweet:
		return true
	}
	return false
}

// LikeTarget identifies exactly one liked entity.
type LikeTarget struct {
	Kind TargetKind         `bson:"kind" json:"kind"`
	ID   primitive.ObjectID `bson:"id" json:"id"`
}

// NewLikeTarget validates the kind before building a target.
func NewLikeTarget(kind TargetKind, id primitive.ObjectID) (LikeTarget, error) {
	if !kind.Valid() {
		return LikeTarget{}, fmt.Errorf("unknown like target kind %q", kind)
	}
	if id.IsZero() {
		return LikeTarget{}, fmt.Errorf("like target id is required")
	}
	return LikeTarget{Kind: kind, ID: id}, nil
}

// Like is the edge from a user to the entity they liked.
type Like struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Target    LikeTarget         `bson:"target" json:"target"`
	LikedBy   primitive.ObjectID `bson:"likedBy" json:"likedBy"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// ToggleResult reports the state an edge toggle left behind. Record is set
// only when the edge was created.
type ToggleResult[T any] struct {
	Active bool `json:"active"`
	Record *T   `json:"record,omitempty"`
}

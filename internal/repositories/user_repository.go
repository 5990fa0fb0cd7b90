package repositories

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/vidtube/backend/internal/models"
)

// AccountUpdate holds the profile fields a user may change. Empty fields are
// left untouched.
type AccountUpdate struct {
	FullName string
	Email    string
}

// UserRepository defines the data access contract for users.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id primitive.ObjectID) (models.User, error)
	// FindByLogin matches the value against both username and email.
	FindByLogin(ctx context.Context, usernameOrEmail string) (models.User, error)
	UpdateAccount(ctx context.Context, id primitive.ObjectID, update AccountUpdate) (models.User, error)
	SetPassword(ctx context.Context, id primitive.ObjectID, hash string) error
	SetAvatar(ctx context.Context, id primitive.ObjectID, url string) (models.User, error)
	SetCoverImage(ctx context.Context, id primitive.ObjectID, url string) (models.User, error)
	// PushWatchHistory moves the video to the front of the user's history.
	PushWatchHistory(ctx context.Context, id, videoID primitive.ObjectID) error
}

package handlers

import (
	"net/http"
	"strings"

	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/repositories"
	"github.com/vidtube/backend/internal/respond"
)

// TweetHandler serves short text posts.
type TweetHandler struct {
	Tweets repositories.TweetRepository
	Reads  ReadModels
}

// Create handles POST /api/v1/tweets.
func (h TweetHandler) Create(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	user, err := currentUser(r)
	if err != nil {
		return err
	}

	var req contentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}

	tweet := models.Tweet{Content: strings.TrimSpace(req.Content), Owner: user.ID}
	if err := h.Tweets.Create(ctx, &tweet); err != nil {
		return storeError(err, "tweet")
	}

	respond.JSON(ctx, w, http.StatusCreated, tweet, "tweet created successfully")
	return nil
}

// Mine handles GET /api/v1/tweets/user.
func (h TweetHandler) Mine(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	user, err := currentUser(r)
	if err != nil {
		return err
	}

	tweets, err := h.Reads.UserTweets(ctx, user.ID)
	if err != nil {
		return storeError(err, "tweets")
	}

	respond.JSON(ctx, w, http.StatusOK, tweets, "tweets fetched successfully")
	return nil
}

// Update handles PATCH /api/v1/tweets/{tweetId}.
func (h TweetHandler) Update(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	user, err := currentUser(r)
	if err != nil {
		return err
	}
	id, err := objectIDParam(r, "tweetId")
	if err != nil {
		return err
	}

	var req contentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}

	tweet, err := h.Tweets.Update(ctx, id, user.ID, strings.TrimSpace(req.Content))
	if err != nil {
		return storeError(err, "tweet")
	}

	respond.JSON(ctx, w, http.StatusOK, tweet, "tweet updated successfully")
	return nil
}

// Delete handles DELETE /api/v1/tweets/{tweetId}.
func (h TweetHandler) Delete(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	user, err := currentUser(r)
	if err != nil {
		return err
	}
	id, err := objectIDParam(r, "tweetId")
	if err != nil {
		return err
	}

	if err := h.Tweets.Delete(ctx, id, user.ID); err != nil {
		return storeError(err, "tweet")
	}

	respond.JSON(ctx, w, http.StatusOK, struct{}{}, "tweet deleted successfully")
	return nil
}

package handlers

import (
	"net/http"

	"github.com/vidtube/backend/internal/apierror"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/repositories"
	"github.com/vidtube/backend/internal/respond"
)

// SubscriptionHandler serves channel subscriptions.
type SubscriptionHandler struct {
	Users repositories.UserRepository
	Edges repositories.EdgeRepository
	Reads ReadModels
}

// subscriptionStatus carries the created subscription when the toggle
// turned it on.
type subscriptionStatus struct {
	IsSubscribed bool                 `json:"isSubscribed"`
	Subscription *models.Subscription `json:"subscription,omitempty"`
}

// Toggle handles POST /api/v1/subscriptions/{channelId}.
func (h SubscriptionHandler) Toggle(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	user, err := currentUser(r)
	if err != nil {
		return err
	}
	channel, err := objectIDParam(r, "channelId")
	if err != nil {
		return err
	}
	if channel == user.ID {
		return apierror.Validation("you cannot subscribe to your own channel")
	}
	if _, err := h.Users.FindByID(ctx, channel); err != nil {
		return storeError(err, "channel")
	}

	result, err := h.Edges.ToggleSubscription(ctx, user.ID, channel)
	if err != nil {
		return storeError(err, "subscription")
	}

	if !result.Active {
		respond.JSON(ctx, w, http.StatusOK, subscriptionStatus{}, "unsubscribed successfully")
		return nil
	}
	respond.JSON(ctx, w, http.StatusCreated, subscriptionStatus{IsSubscribed: true, Subscription: result.Record}, "subscribed successfully")
	return nil
}

// Subscribers handles GET /api/v1/subscriptions/{channelId}/subscribers.
func (h SubscriptionHandler) Subscribers(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	channel, err := objectIDParam(r, "channelId")
	if err != nil {
		return err
	}

	members, err := h.Reads.ChannelSubscribers(ctx, channel)
	if err != nil {
		return storeError(err, "subscribers")
	}

	respond.JSON(ctx, w, http.StatusOK, members, "subscribers fetched successfully")
	return nil
}

// Channels handles GET /api/v1/subscriptions/user/{subscriberId}/channels.
func (h SubscriptionHandler) Channels(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	subscriber, err := objectIDParam(r, "subscriberId")
	if err != nil {
		return err
	}

	channels, err := h.Reads.SubscribedChannels(ctx, subscriber)
	if err != nil {
		return storeError(err, "subscriptions")
	}

	respond.JSON(ctx, w, http.StatusOK, channels, "subscribed channels fetched successfully")
	return nil
}

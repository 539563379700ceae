package handlers

import (
	"net/http"
	"strings"

	"github.com/videotube/backend/internal/logging"
	"github.com/videotube/backend/internal/middleware"
	"github.com/videotube/backend/internal/models"
)

// SubscriptionHandler implements channel subscription endpoints.
type SubscriptionHandler struct {
	Subscriptions SubscriptionStore
	Users         UserStore
	Views         ViewBuilder
}

// Toggle handles POST /api/v1/subscriptions/{channelId}/toggle.
func (h SubscriptionHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	actorID, ok := middleware.ActorID(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return
	}

	channelID := r.PathValue("channelId")
	if channelID == actorID {
		respondError(ctx, w, http.StatusBadRequest, "cannot subscribe to your own channel")
		return
	}

	channel, err := h.Users.FindByID(ctx, channelID)
	if err != nil {
		respondStoreError(ctx, w, err, "failed to load channel")
		return
	}

	subscribed, err := h.Subscriptions.Toggle(ctx, actorID, channelID)
	if err != nil {
		respondStoreError(ctx, w, err, "failed to toggle subscription")
		return
	}

	// Subscriber counts changed, so the cached channel profile is stale.
	if h.Views != nil {
		h.Views.InvalidateProfile(channel.Username)
	}

	logger.Info("subscription toggled", "channelId", channelID, "subscribed", subscribed)
	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"channelId":  channelID,
		"subscribed": subscribed,
	})
}

// Subscribers handles GET /api/v1/channels/{username}/subscribers.
func (h SubscriptionHandler) Subscribers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	username := strings.TrimSpace(strings.ToLower(r.PathValue("username")))
	channel, err := h.Users.FindByUsername(ctx, username)
	if err != nil {
		respondStoreError(ctx, w, err, "failed to load channel")
		return
	}

	subscribers, err := h.Subscriptions.ListSubscribers(ctx, channel.ID)
	if err != nil {
		respondStoreError(ctx, w, err, "failed to load subscribers")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"subscribers": ownerSummaries(subscribers)})
}

// ListMine handles GET /api/v1/users/me/subscriptions.
func (h SubscriptionHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actorID, ok := middleware.ActorID(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return
	}

	channels, err := h.Subscriptions.ListSubscriptions(ctx, actorID)
	if err != nil {
		respondStoreError(ctx, w, err, "failed to load subscriptions")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"channels": ownerSummaries(channels)})
}

// ownerSummaries projects users onto the public summary shape so credential
// fields never reach a response body.
func ownerSummaries(users []models.User) []models.OwnerSummary {
	summaries := make([]models.OwnerSummary, 0, len(users))
	for _, user := range users {
		summaries = append(summaries, models.OwnerSummary{
			Username:  user.Username,
			FullName:  user.FullName,
			AvatarURL: user.AvatarURL,
		})
	}
	return summaries
}

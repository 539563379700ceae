package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/videotube/backend/internal/logging"
	"github.com/videotube/backend/internal/middleware"
	"github.com/videotube/backend/internal/models"
)

const maxTweetLength = 280

// TweetHandler implements the short-post endpoints.
type TweetHandler struct {
	Tweets TweetStore
	Users  UserStore
}

// Create handles POST /api/v1/tweets.
func (h TweetHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	actorID, ok := middleware.ActorID(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req tweetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid tweet payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	content := strings.TrimSpace(req.Content)
	if content == "" || len(content) > maxTweetLength {
		respondError(ctx, w, http.StatusBadRequest, "tweet content is required and limited to 280 characters")
		return
	}

	now := time.Now().UTC()
	tweet := models.Tweet{
		ID:        uuid.NewString(),
		OwnerID:   actorID,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.Tweets.Create(ctx, tweet); err != nil {
		respondStoreError(ctx, w, err, "failed to create tweet")
		return
	}

	respondJSON(ctx, w, http.StatusCreated, tweet)
}

// ListForChannel handles GET /api/v1/channels/{username}/tweets.
func (h TweetHandler) ListForChannel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	username := strings.TrimSpace(strings.ToLower(r.PathValue("username")))
	owner, err := h.Users.FindByUsername(ctx, username)
	if err != nil {
		respondStoreError(ctx, w, err, "failed to load channel")
		return
	}

	tweets, err := h.Tweets.ListByOwner(ctx, owner.ID)
	if err != nil {
		respondStoreError(ctx, w, err, "failed to load tweets")
		return
	}
	if tweets == nil {
		tweets = []models.Tweet{}
	}

	summary := models.OwnerSummary{Username: owner.Username, FullName: owner.FullName, AvatarURL: owner.AvatarURL}
	respondJSON(ctx, w, http.StatusOK, map[string]any{"owner": summary, "tweets": tweets})
}

// Update handles PATCH /api/v1/tweets/{tweetId} for the tweet owner.
func (h TweetHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	tweet, ok := h.ownedTweet(w, r)
	if !ok {
		return
	}

	var req tweetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid tweet payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	content := strings.TrimSpace(req.Content)
	if content == "" || len(content) > maxTweetLength {
		respondError(ctx, w, http.StatusBadRequest, "tweet content is required and limited to 280 characters")
		return
	}

	if err := h.Tweets.UpdateContent(ctx, tweet.ID, content); err != nil {
		respondStoreError(ctx, w, err, "failed to update tweet")
		return
	}

	tweet.Content = content
	respondJSON(ctx, w, http.StatusOK, tweet)
}

// Delete handles DELETE /api/v1/tweets/{tweetId} for the tweet owner.
func (h TweetHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tweet, ok := h.ownedTweet(w, r)
	if !ok {
		return
	}

	if err := h.Tweets.Delete(ctx, tweet.ID); err != nil {
		respondStoreError(ctx, w, err, "failed to delete tweet")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h TweetHandler) ownedTweet(w http.ResponseWriter, r *http.Request) (models.Tweet, bool) {
	ctx := r.Context()

	actorID, ok := middleware.ActorID(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return models.Tweet{}, false
	}

	tweet, err := h.Tweets.FindByID(ctx, r.PathValue("tweetId"))
	if err != nil {
		respondStoreError(ctx, w, err, "failed to load tweet")
		return models.Tweet{}, false
	}

	if tweet.OwnerID != actorID {
		respondError(ctx, w, http.StatusForbidden, "not the tweet owner")
		return models.Tweet{}, false
	}

	return tweet, true
}

type tweetRequest struct {
	Content string `json:"content"`
}

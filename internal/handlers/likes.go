package handlers

import (
	"net/http"

	"github.com/videotube/backend/internal/middleware"
	"github.com/videotube/backend/internal/models"
)

// LikeHandler implements the polymorphic like endpoints.
type LikeHandler struct {
	Likes LikeToggler
}

// Toggle handles POST /api/v1/likes/{kind}/{targetId}/toggle. The response
// reports whether the edge exists after the toggle.
func (h LikeHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actorID, ok := middleware.ActorID(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return
	}

	kind := models.TargetKind(r.PathValue("kind"))
	targetID := r.PathValue("targetId")

	liked, err := h.Likes.Toggle(ctx, actorID, kind, targetID)
	if err != nil {
		respondStoreError(ctx, w, err, "failed to toggle like")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"kind":     kind,
		"targetId": targetID,
		"liked":    liked,
	})
}

// LikedVideos handles GET /api/v1/likes/videos for the authenticated user.
func (h LikeHandler) LikedVideos(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actorID, ok := middleware.ActorID(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return
	}

	videos, err := h.Likes.LikedVideos(ctx, actorID)
	if err != nil {
		respondStoreError(ctx, w, err, "failed to load liked videos")
		return
	}
	if videos == nil {
		videos = []models.Video{}
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"videos": videos})
}

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

const maxCommentLength = 2000

// CommentHandler implements comment endpoints scoped to videos.
type CommentHandler struct {
	Comments CommentStore
	Videos   VideoStore
	Users    UserStore
}

// Create handles POST /api/v1/videos/{videoId}/comments.
func (h CommentHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	actorID, ok := middleware.ActorID(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return
	}

	videoID := r.PathValue("videoId")
	if _, err := h.Videos.FindByID(ctx, videoID); err != nil {
		respondStoreError(ctx, w, err, "failed to load video")
		return
	}

	var req commentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid comment payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	content := strings.TrimSpace(req.Content)
	if content == "" || len(content) > maxCommentLength {
		respondError(ctx, w, http.StatusBadRequest, "comment content is required and limited to 2000 characters")
		return
	}

	now := time.Now().UTC()
	comment := models.Comment{
		ID:        uuid.NewString(),
		VideoID:   videoID,
		OwnerID:   actorID,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.Comments.Create(ctx, comment); err != nil {
		respondStoreError(ctx, w, err, "failed to create comment")
		return
	}

	respondJSON(ctx, w, http.StatusCreated, comment)
}

// List handles GET /api/v1/videos/{videoId}/comments, newest first, with
// owner summaries attached.
func (h CommentHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	videoID := r.PathValue("videoId")
	if _, err := h.Videos.FindByID(ctx, videoID); err != nil {
		respondStoreError(ctx, w, err, "failed to load video")
		return
	}

	comments, err := h.Comments.ListForVideo(ctx, videoID)
	if err != nil {
		respondStoreError(ctx, w, err, "failed to load comments")
		return
	}

	entries := make([]commentEntry, 0, len(comments))
	owners := map[string]models.OwnerSummary{}
	for _, comment := range comments {
		owner, ok := owners[comment.OwnerID]
		if !ok {
			if user, err := h.Users.FindByID(ctx, comment.OwnerID); err == nil {
				owner = models.OwnerSummary{Username: user.Username, FullName: user.FullName, AvatarURL: user.AvatarURL}
			}
			owners[comment.OwnerID] = owner
		}
		entries = append(entries, commentEntry{Comment: comment, Owner: owner})
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"comments": entries})
}

// Update handles PATCH /api/v1/comments/{commentId} for the comment owner.
func (h CommentHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	comment, ok := h.ownedComment(w, r)
	if !ok {
		return
	}

	var req commentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid comment payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	content := strings.TrimSpace(req.Content)
	if content == "" || len(content) > maxCommentLength {
		respondError(ctx, w, http.StatusBadRequest, "comment content is required and limited to 2000 characters")
		return
	}

	if err := h.Comments.UpdateContent(ctx, comment.ID, content); err != nil {
		respondStoreError(ctx, w, err, "failed to update comment")
		return
	}

	comment.Content = content
	respondJSON(ctx, w, http.StatusOK, comment)
}

// Delete handles DELETE /api/v1/comments/{commentId} for the comment owner.
func (h CommentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	comment, ok := h.ownedComment(w, r)
	if !ok {
		return
	}

	if err := h.Comments.Delete(ctx, comment.ID); err != nil {
		respondStoreError(ctx, w, err, "failed to delete comment")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h CommentHandler) ownedComment(w http.ResponseWriter, r *http.Request) (models.Comment, bool) {
	ctx := r.Context()

	actorID, ok := middleware.ActorID(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return models.Comment{}, false
	}

	comment, err := h.Comments.FindByID(ctx, r.PathValue("commentId"))
	if err != nil {
		respondStoreError(ctx, w, err, "failed to load comment")
		return models.Comment{}, false
	}

	if comment.OwnerID != actorID {
		respondError(ctx, w, http.StatusForbidden, "not the comment owner")
		return models.Comment{}, false
	}

	return comment, true
}

type commentRequest struct {
	Content string `json:"content"`
}

type commentEntry struct {
	Comment models.Comment      `json:"comment"`
	Owner   models.OwnerSummary `json:"owner"`
}

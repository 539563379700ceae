package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/videotube/backend/internal/logging"
	"github.com/videotube/backend/internal/media"
	"github.com/videotube/backend/internal/middleware"
	"github.com/videotube/backend/internal/models"
)

const uploadFormLimit = 64 << 20

// VideoHandler implements the video publishing and playback endpoints.
type VideoHandler struct {
	Videos   VideoStore
	Users    UserStore
	History  HistoryRecorder
	Ingestor VideoAssetIngestor
}

// Publish handles POST /api/v1/videos. The video file is staged to disk and
// uploaded to object storage in the background; the response carries the
// pending record immediately.
func (h VideoHandler) Publish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	actorID, ok := middleware.ActorID(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return
	}

	if h.Ingestor == nil {
		logger.Error("video ingestor unavailable")
		respondError(ctx, w, http.StatusInternalServerError, "video uploads unavailable")
		return
	}

	if err := r.ParseMultipartForm(uploadFormLimit); err != nil {
		logger.Warn("invalid upload payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid multipart body")
		return
	}

	title := strings.TrimSpace(r.FormValue("title"))
	description := strings.TrimSpace(r.FormValue("description"))
	if title == "" {
		respondError(ctx, w, http.StatusBadRequest, "title is required")
		return
	}

	videoPath, err := stageUpload(r, "video")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			respondError(ctx, w, http.StatusBadRequest, "video file is required")
			return
		}
		logger.Error("stage video upload", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "failed to accept upload")
		return
	}

	thumbnailPath, err := stageUpload(r, "thumbnail")
	if err != nil && !errors.Is(err, http.ErrMissingFile) {
		removeStaged(logger, videoPath)
		logger.Error("stage thumbnail upload", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "failed to accept upload")
		return
	}

	now := time.Now().UTC()
	video := models.Video{
		ID:          uuid.NewString(),
		OwnerID:     actorID,
		Title:       title,
		Description: description,
		AssetStatus: models.AssetStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := h.Videos.Create(ctx, video); err != nil {
		removeStaged(logger, videoPath, thumbnailPath)
		respondStoreError(ctx, w, err, "failed to create video")
		return
	}

	job := media.IngestJob{VideoID: video.ID, VideoPath: videoPath, ThumbnailPath: thumbnailPath}
	if err := h.Ingestor.Enqueue(ctx, job); err != nil {
		logger.Error("enqueue video ingest", "error", err, "videoId", video.ID)
		removeStaged(logger, videoPath, thumbnailPath)
		respondError(ctx, w, http.StatusServiceUnavailable, "upload queue is full")
		return
	}

	respondJSON(ctx, w, http.StatusAccepted, videoResponse{Video: video})
}

// Get handles GET /api/v1/videos/{videoId}. Authenticated viewers have the
// watch recorded in their history; every viewer increments the view count.
// Unpublished videos are visible only to their owner.
func (h VideoHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	videoID := r.PathValue("videoId")
	viewerID, _ := middleware.ActorID(ctx)

	video, err := h.Videos.FindByID(ctx, videoID)
	if err != nil {
		respondStoreError(ctx, w, err, "failed to load video")
		return
	}

	if !video.Published && video.OwnerID != viewerID {
		respondError(ctx, w, http.StatusNotFound, "not found")
		return
	}

	if err := h.Videos.IncrementViews(ctx, videoID); err != nil {
		logger.Warn("increment views", "error", err, "videoId", videoID)
	} else {
		video.Views++
	}

	if viewerID != "" && h.History != nil {
		if err := h.History.RecordWatch(ctx, viewerID, videoID); err != nil {
			logger.Warn("record watch", "error", err, "videoId", videoID)
		}
	}

	payload := videoResponse{Video: video}
	if owner, err := h.Users.FindByID(ctx, video.OwnerID); err == nil {
		payload.Owner = &models.OwnerSummary{
			Username:  owner.Username,
			FullName:  owner.FullName,
			AvatarURL: owner.AvatarURL,
		}
	}

	respondJSON(ctx, w, http.StatusOK, payload)
}

// List handles GET /api/v1/videos, returning the published feed.
func (h VideoHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	feed, err := h.Videos.ListPublished(ctx)
	if err != nil {
		respondStoreError(ctx, w, err, "failed to load videos")
		return
	}
	if feed == nil {
		feed = []models.Video{}
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"videos": feed})
}

// Update handles PATCH /api/v1/videos/{videoId} for the owning user.
func (h VideoHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	video, ok := h.ownedVideo(w, r)
	if !ok {
		return
	}

	var req updateVideoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid video payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	title := video.Title
	description := video.Description
	if req.Title != nil {
		title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		description = strings.TrimSpace(*req.Description)
	}
	if title == "" {
		respondError(ctx, w, http.StatusBadRequest, "title is required")
		return
	}

	if err := h.Videos.UpdateDetails(ctx, video.ID, title, description); err != nil {
		respondStoreError(ctx, w, err, "failed to update video")
		return
	}

	video.Title = title
	video.Description = description
	respondJSON(ctx, w, http.StatusOK, videoResponse{Video: video})
}

// Delete handles DELETE /api/v1/videos/{videoId} for the owning user.
func (h VideoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	video, ok := h.ownedVideo(w, r)
	if !ok {
		return
	}

	if err := h.Videos.Delete(ctx, video.ID); err != nil {
		respondStoreError(ctx, w, err, "failed to delete video")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]string{"status": "deleted"})
}

// TogglePublish handles POST /api/v1/videos/{videoId}/toggle-publish.
func (h VideoHandler) TogglePublish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	video, ok := h.ownedVideo(w, r)
	if !ok {
		return
	}

	published, err := h.Videos.TogglePublish(ctx, video.ID)
	if err != nil {
		respondStoreError(ctx, w, err, "failed to toggle publish state")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"id": video.ID, "published": published})
}

// ownedVideo loads the path video and enforces that the actor owns it.
func (h VideoHandler) ownedVideo(w http.ResponseWriter, r *http.Request) (models.Video, bool) {
	ctx := r.Context()

	actorID, ok := middleware.ActorID(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return models.Video{}, false
	}

	video, err := h.Videos.FindByID(ctx, r.PathValue("videoId"))
	if err != nil {
		respondStoreError(ctx, w, err, "failed to load video")
		return models.Video{}, false
	}

	if video.OwnerID != actorID {
		respondError(ctx, w, http.StatusForbidden, "not the video owner")
		return models.Video{}, false
	}

	return video, true
}

// stageUpload copies the named multipart file to a temp file on disk and
// returns its path. The ingestor owns the file from then on.
func stageUpload(r *http.Request, field string) (string, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return "", err
	}
	defer file.Close()

	return copyToTemp(file, header)
}

func copyToTemp(file multipart.File, header *multipart.FileHeader) (string, error) {
	staged, err := os.CreateTemp("", "videotube-upload-*"+filepath.Ext(header.Filename))
	if err != nil {
		return "", err
	}

	if _, err := io.Copy(staged, file); err != nil {
		staged.Close()
		os.Remove(staged.Name())
		return "", err
	}

	if err := staged.Close(); err != nil {
		os.Remove(staged.Name())
		return "", err
	}

	return staged.Name(), nil
}

func removeStaged(logger *slog.Logger, paths ...string) {
	for _, staged := range paths {
		if staged == "" {
			continue
		}
		if err := os.Remove(staged); err != nil && !os.IsNotExist(err) {
			logger.Warn("remove staged upload", "path", staged, "error", err)
		}
	}
}

type updateVideoRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

type videoResponse struct {
	Video models.Video         `json:"video"`
	Owner *models.OwnerSummary `json:"owner,omitempty"`
}

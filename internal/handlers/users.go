package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"path/filepath"
	"strings"
	"time"

	"github.com/videotube/backend/internal/auth"
	"github.com/videotube/backend/internal/logging"
	"github.com/videotube/backend/internal/middleware"
)

// UserHandler serves profile, credential and read-view endpoints for users.
type UserHandler struct {
	Users   UserStore
	Views   ViewBuilder
	Storage AssetStorage
}

// Me handles GET /api/v1/users/me.
func (h UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actorID, ok := middleware.ActorID(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return
	}

	user, err := h.Users.FindByID(ctx, actorID)
	if err != nil {
		respondStoreError(ctx, w, err, "failed to load account")
		return
	}

	respondJSON(ctx, w, http.StatusOK, userPayload(user))
}

// UpdateProfile handles PATCH /api/v1/users/me.
func (h UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	actorID, ok := middleware.ActorID(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid profile payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.Users.FindByID(ctx, actorID)
	if err != nil {
		respondStoreError(ctx, w, err, "failed to load account")
		return
	}

	previousUsername := user.Username

	if req.FullName != nil {
		user.FullName = strings.TrimSpace(*req.FullName)
	}
	if req.Email != nil {
		email := strings.TrimSpace(strings.ToLower(*req.Email))
		if _, err := mail.ParseAddress(email); err != nil {
			respondError(ctx, w, http.StatusBadRequest, "invalid email address")
			return
		}
		user.Email = email
	}
	user.UpdatedAt = time.Now().UTC()

	if err := h.Users.UpdateProfile(ctx, user); err != nil {
		respondStoreError(ctx, w, err, "failed to update profile")
		return
	}

	if h.Views != nil {
		h.Views.InvalidateProfile(previousUsername)
	}

	respondJSON(ctx, w, http.StatusOK, userPayload(user))
}

// ChangePassword handles POST /api/v1/users/me/password.
func (h UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	actorID, ok := middleware.ActorID(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid password payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	if len(req.NewPassword) < 8 {
		respondError(ctx, w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	user, err := h.Users.FindByID(ctx, actorID)
	if err != nil {
		respondStoreError(ctx, w, err, "failed to load account")
		return
	}

	if !auth.VerifyPassword(req.CurrentPassword, user.Password) {
		logger.Warn("password change rejected", "userId", actorID)
		respondError(ctx, w, http.StatusUnauthorized, "current password is incorrect")
		return
	}

	hashed, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		logger.Error("hash password", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "failed to secure password")
		return
	}

	if err := h.Users.UpdatePassword(ctx, actorID, hashed); err != nil {
		respondStoreError(ctx, w, err, "failed to update password")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]string{"status": "password updated"})
}

// UpdateImages handles POST /api/v1/users/me/images. Either an avatar, a
// cover image or both may be supplied in the multipart body.
func (h UserHandler) UpdateImages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	actorID, ok := middleware.ActorID(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return
	}

	if h.Storage == nil {
		logger.Error("asset storage unavailable")
		respondError(ctx, w, http.StatusInternalServerError, "image uploads unavailable")
		return
	}

	if err := r.ParseMultipartForm(registerFormLimit); err != nil {
		logger.Warn("invalid image payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid multipart body")
		return
	}

	user, err := h.Users.FindByID(ctx, actorID)
	if err != nil {
		respondStoreError(ctx, w, err, "failed to load account")
		return
	}

	updated := false

	avatarURL, err := h.storeFormImage(r, "avatar", "avatars", actorID)
	if err != nil {
		logger.Error("store avatar", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "failed to store avatar")
		return
	}
	if avatarURL != "" {
		user.AvatarURL = avatarURL
		updated = true
	}

	coverURL, err := h.storeFormImage(r, "coverImage", "covers", actorID)
	if err != nil {
		logger.Error("store cover image", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "failed to store cover image")
		return
	}
	if coverURL != "" {
		user.CoverImageURL = coverURL
		updated = true
	}

	if !updated {
		respondError(ctx, w, http.StatusBadRequest, "avatar or coverImage file is required")
		return
	}

	user.UpdatedAt = time.Now().UTC()
	if err := h.Users.UpdateProfile(ctx, user); err != nil {
		respondStoreError(ctx, w, err, "failed to update profile")
		return
	}

	if h.Views != nil {
		h.Views.InvalidateProfile(user.Username)
	}

	respondJSON(ctx, w, http.StatusOK, userPayload(user))
}

// Channel handles GET /api/v1/channels/{username}. The response is computed
// relative to the viewer when the request carries a valid access token.
func (h UserHandler) Channel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	username := r.PathValue("username")
	if strings.TrimSpace(username) == "" {
		respondError(ctx, w, http.StatusBadRequest, "username is required")
		return
	}

	viewerID, _ := middleware.ActorID(ctx)

	profile, err := h.Views.ChannelProfile(ctx, username, viewerID)
	if err != nil {
		respondStoreError(ctx, w, err, "failed to load channel")
		return
	}

	respondJSON(ctx, w, http.StatusOK, profile)
}

// WatchHistory handles GET /api/v1/users/me/history.
func (h UserHandler) WatchHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actorID, ok := middleware.ActorID(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return
	}

	entries, err := h.Views.WatchHistory(ctx, actorID)
	if err != nil {
		respondStoreError(ctx, w, err, "failed to load watch history")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"history": entries})
}

func (h UserHandler) storeFormImage(r *http.Request, field, prefix, userID string) (string, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	defer file.Close()

	key := prefix + "/" + userID + filepath.Ext(header.Filename)
	return h.Storage.Save(r.Context(), key, file)
}

type updateProfileRequest struct {
	FullName *string `json:"fullName"`
	Email    *string `json:"email"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

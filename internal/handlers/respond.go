package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/videotube/backend/internal/auth"
	"github.com/videotube/backend/internal/likes"
	"github.com/videotube/backend/internal/logging"
	"github.com/videotube/backend/internal/repositories"
)

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
		return
	}

	logger := logging.FromContext(ctx)
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", "status", status, "response", payload)
	case status >= http.StatusBadRequest:
		logger.Warn("request returned client error", "status", status, "response", payload)
	}
}

func respondError(ctx context.Context, w http.ResponseWriter, status int, message string) {
	respondJSON(ctx, w, status, map[string]string{"error": message})
}

// respondStoreError maps sentinel errors from the stores onto HTTP statuses.
// Anything unrecognized is treated as an internal failure with a generic body.
func respondStoreError(ctx context.Context, w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, repositories.ErrNotFound), errors.Is(err, likes.ErrTargetNotFound):
		respondError(ctx, w, http.StatusNotFound, "not found")
	case errors.Is(err, repositories.ErrConflict):
		respondError(ctx, w, http.StatusConflict, "already exists")
	case errors.Is(err, likes.ErrInvalidKind):
		respondError(ctx, w, http.StatusBadRequest, "unknown like target kind")
	case errors.Is(err, auth.ErrInvalidCredentials):
		respondError(ctx, w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, auth.ErrRefreshTokenExpired),
		errors.Is(err, auth.ErrRefreshTokenInvalid),
		errors.Is(err, auth.ErrRefreshTokenReused),
		errors.Is(err, auth.ErrSessionNotFound):
		respondError(ctx, w, http.StatusUnauthorized, "unable to refresh session")
	default:
		logging.FromContext(ctx).Error(fallback, "error", err)
		respondError(ctx, w, http.StatusInternalServerError, fallback)
	}
}

package handlers

import (
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/mail"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/videotube/backend/internal/auth"
	"github.com/videotube/backend/internal/logging"
	"github.com/videotube/backend/internal/middleware"
	"github.com/videotube/backend/internal/models"
	"github.com/videotube/backend/internal/repositories"
)

const registerFormLimit = 32 << 20

// AuthHandler implements the account and session lifecycle endpoints.
type AuthHandler struct {
	Users    UserStore
	Sessions SessionManager
	Storage  AssetStorage
	Limiter  RateLimiter
	NowFunc  func() time.Time
}

// Register handles POST /api/v1/auth/register. The body is multipart so the
// client can attach an avatar and cover image alongside the account fields.
func (h AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if !allowRequest(h.Limiter, r, "register") {
		respondError(ctx, w, http.StatusTooManyRequests, "too many registration attempts")
		return
	}

	if h.Users == nil || h.Sessions == nil {
		logger.Error("registration dependencies unavailable", "hasUsers", h.Users != nil, "hasSessions", h.Sessions != nil)
		respondError(ctx, w, http.StatusInternalServerError, "registration unavailable")
		return
	}

	if err := r.ParseMultipartForm(registerFormLimit); err != nil {
		logger.Warn("invalid registration payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid multipart body")
		return
	}

	username := strings.TrimSpace(strings.ToLower(r.FormValue("username")))
	email := strings.TrimSpace(strings.ToLower(r.FormValue("email")))
	password := r.FormValue("password")
	fullName := strings.TrimSpace(r.FormValue("fullName"))

	if username == "" || email == "" || password == "" {
		respondError(ctx, w, http.StatusBadRequest, "username, email and password are required")
		return
	}
	if _, err := mail.ParseAddress(email); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid email address")
		return
	}
	if len(password) < 8 {
		respondError(ctx, w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	hashed, err := auth.HashPassword(password)
	if err != nil {
		logger.Error("hash password", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "failed to secure password")
		return
	}

	now := h.now()
	user := models.User{
		ID:        uuid.NewString(),
		Username:  username,
		Email:     email,
		Password:  hashed,
		FullName:  fullName,
		CreatedAt: now,
		UpdatedAt: now,
	}

	avatarURL, err := h.saveImage(r, "avatar", "avatars", user.ID)
	if err != nil {
		logger.Error("store avatar", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "failed to store avatar")
		return
	}
	user.AvatarURL = avatarURL

	coverURL, err := h.saveImage(r, "coverImage", "covers", user.ID)
	if err != nil {
		logger.Error("store cover image", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "failed to store cover image")
		return
	}
	user.CoverImageURL = coverURL

	if err := h.Users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			logger.Warn("registration conflict", "username", username)
			respondError(ctx, w, http.StatusConflict, "account already exists")
			return
		}
		logger.Error("create user", "error", err, "username", username)
		respondError(ctx, w, http.StatusInternalServerError, "failed to create account")
		return
	}

	created, tokens, err := h.Sessions.Login(ctx, username, password)
	if err != nil {
		logger.Error("issue session after registration", "error", err, "userId", user.ID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to create session")
		return
	}

	setSessionCookies(w, r, tokens)
	respondJSON(ctx, w, http.StatusCreated, sessionResponse{User: userPayload(created), Tokens: tokens})
}

// Login handles POST /api/v1/auth/login. The identifier may be a username or
// an email address.
func (h AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if !allowRequest(h.Limiter, r, "login") {
		respondError(ctx, w, http.StatusTooManyRequests, "too many login attempts")
		return
	}

	if h.Sessions == nil {
		logger.Error("session manager unavailable")
		respondError(ctx, w, http.StatusInternalServerError, "authentication unavailable")
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid login payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Identifier = strings.TrimSpace(strings.ToLower(req.Identifier))
	if req.Identifier == "" || req.Password == "" {
		respondError(ctx, w, http.StatusBadRequest, "identifier and password are required")
		return
	}

	user, tokens, err := h.Sessions.Login(ctx, req.Identifier, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			logger.Warn("login rejected", "identifier", req.Identifier)
			respondError(ctx, w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		logger.Error("login failed", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "failed to create session")
		return
	}

	setSessionCookies(w, r, tokens)
	respondJSON(ctx, w, http.StatusOK, sessionResponse{User: userPayload(user), Tokens: tokens})
}

// Refresh handles POST /api/v1/auth/refresh. The refresh token comes from the
// JSON body or, for browser clients, the refreshToken cookie. A reused token
// invalidates the whole session.
func (h AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if !allowRequest(h.Limiter, r, "refresh") {
		respondError(ctx, w, http.StatusTooManyRequests, "too many refresh attempts")
		return
	}

	if h.Sessions == nil {
		logger.Error("session manager unavailable")
		respondError(ctx, w, http.StatusInternalServerError, "authentication unavailable")
		return
	}

	var req refreshRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	token := strings.TrimSpace(req.RefreshToken)
	if token == "" {
		if cookie, err := r.Cookie(refreshCookieName); err == nil {
			token = cookie.Value
		}
	}
	if token == "" {
		respondError(ctx, w, http.StatusBadRequest, "refresh token is required")
		return
	}

	tokens, err := h.Sessions.Refresh(ctx, token)
	if err != nil {
		if errors.Is(err, auth.ErrRefreshTokenReused) {
			logger.Warn("refresh token reuse detected")
		}
		// Cookies go away only when the session itself is dead. A transient
		// store failure must leave the client able to retry with the same
		// refresh token.
		if isSessionRejection(err) {
			clearSessionCookies(w, r)
		}
		respondStoreError(ctx, w, err, "unable to refresh session")
		return
	}

	setSessionCookies(w, r, tokens)
	respondJSON(ctx, w, http.StatusOK, tokenResponse{Tokens: tokens})
}

// Logout handles POST /api/v1/auth/logout for the authenticated user.
func (h AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actorID, ok := middleware.ActorID(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return
	}

	if err := h.Sessions.Logout(ctx, actorID); err != nil && !errors.Is(err, auth.ErrSessionNotFound) {
		logging.FromContext(ctx).Error("logout failed", "error", err, "userId", actorID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to end session")
		return
	}

	clearSessionCookies(w, r)
	respondJSON(ctx, w, http.StatusOK, map[string]string{"status": "logged out"})
}

func (h AuthHandler) saveImage(r *http.Request, field, prefix, userID string) (string, error) {
	if h.Storage == nil {
		return "", nil
	}

	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	defer file.Close()

	return h.uploadImage(r, file, header, prefix, userID)
}

func (h AuthHandler) uploadImage(r *http.Request, file multipart.File, header *multipart.FileHeader, prefix, userID string) (string, error) {
	key := prefix + "/" + userID + filepath.Ext(header.Filename)
	return h.Storage.Save(r.Context(), key, file)
}

// isSessionRejection reports whether a refresh failure means the session is
// no longer valid, as opposed to a failure the client may retry.
func isSessionRejection(err error) bool {
	return errors.Is(err, auth.ErrRefreshTokenExpired) ||
		errors.Is(err, auth.ErrRefreshTokenInvalid) ||
		errors.Is(err, auth.ErrRefreshTokenReused) ||
		errors.Is(err, auth.ErrSessionNotFound)
}

func (h AuthHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type sessionResponse struct {
	User   userResponse         `json:"user"`
	Tokens models.SessionTokens `json:"tokens"`
}

type tokenResponse struct {
	Tokens models.SessionTokens `json:"tokens"`
}

type userResponse struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	FullName      string    `json:"fullName"`
	AvatarURL     string    `json:"avatarUrl"`
	CoverImageURL string    `json:"coverImageUrl"`
	CreatedAt     time.Time `json:"createdAt"`
}

func userPayload(user models.User) userResponse {
	return userResponse{
		ID:            user.ID,
		Username:      user.Username,
		Email:         user.Email,
		FullName:      user.FullName,
		AvatarURL:     user.AvatarURL,
		CoverImageURL: user.CoverImageURL,
		CreatedAt:     user.CreatedAt,
	}
}

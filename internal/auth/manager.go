package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/videotube/backend/internal/logging"
	"github.com/videotube/backend/internal/models"
)

// TokenStore persists the single currently valid refresh token per user.
// Replace must be an atomic conditional update in the backing store: the
// stored value changes only when it still equals current. Application-side
// read-then-write is not an acceptable implementation.
type TokenStore interface {
	// Save unconditionally records token as the user's refresh token,
	// overwriting any previous value.
	Save(ctx context.Context, userID, token string) error
	// Replace swaps current for next only if current is the stored value.
	// It returns ErrTokenMismatch when the stored value differs and
	// ErrSessionNotFound when the user does not exist.
	Replace(ctx context.Context, userID, current, next string) error
	// Clear removes the stored refresh token, ending the session.
	Clear(ctx context.Context, userID string) error
}

// UserDirectory resolves accounts during login.
type UserDirectory interface {
	FindByIdentifier(ctx context.Context, identifier string) (models.User, error)
}

// Manager drives the session lifecycle: login issues a pair and overwrites
// any stored refresh token (one active session per user), refresh rotates the
// pair with replay detection, logout invalidates the stored token.
type Manager struct {
	users  UserDirectory
	issuer *TokenIssuer
	store  TokenStore
}

// NewManager constructs a Manager over the provided collaborators.
func NewManager(users UserDirectory, issuer *TokenIssuer, store TokenStore) *Manager {
	if issuer == nil {
		panic("auth: token issuer must not be nil")
	}
	if store == nil {
		panic("auth: token store must not be nil")
	}
	return &Manager{users: users, issuer: issuer, store: store}
}

// Login verifies the identifier/password pair and starts a new session.
// Logging in again from anywhere implicitly invalidates the prior refresh
// token because the stored value is overwritten.
func (m *Manager) Login(ctx context.Context, identifier, password string) (models.User, models.SessionTokens, error) {
	identifier = strings.ToLower(strings.TrimSpace(identifier))
	if identifier == "" || password == "" {
		return models.User{}, models.SessionTokens{}, ErrInvalidCredentials
	}

	user, err := m.users.FindByIdentifier(ctx, identifier)
	if err != nil {
		return models.User{}, models.SessionTokens{}, ErrInvalidCredentials
	}

	if !VerifyPassword(password, user.Password) {
		return models.User{}, models.SessionTokens{}, ErrInvalidCredentials
	}

	tokens, err := m.issuer.Issue(user.ID)
	if err != nil {
		return models.User{}, models.SessionTokens{}, err
	}

	if err := m.store.Save(ctx, user.ID, tokens.RefreshToken); err != nil {
		return models.User{}, models.SessionTokens{}, err
	}

	user.RefreshToken = tokens.RefreshToken
	return user, tokens, nil
}

// Refresh exchanges a refresh token for a new session token pair. The
// presented token must verify, be unexpired, and exactly equal the value
// currently stored for the user. A time-valid token that no longer matches
// storage is treated as replay: the stored token is cleared so the session
// cannot be continued, and ErrRefreshTokenReused is returned.
func (m *Manager) Refresh(ctx context.Context, refreshToken string) (models.SessionTokens, error) {
	if refreshToken == "" {
		return models.SessionTokens{}, ErrRefreshTokenInvalid
	}

	claims, err := m.issuer.ParseRefresh(refreshToken)
	if err != nil {
		return models.SessionTokens{}, err
	}

	// Signing happens before touching the store so no connection is held
	// while CPU-bound work runs.
	tokens, err := m.issuer.Issue(claims.UserID)
	if err != nil {
		return models.SessionTokens{}, err
	}

	switch err := m.store.Replace(ctx, claims.UserID, refreshToken, tokens.RefreshToken); {
	case err == nil:
		return tokens, nil
	case errors.Is(err, ErrTokenMismatch):
		logging.FromContext(ctx).Warn("refresh token replay detected, invalidating session", "userId", claims.UserID)
		if clearErr := m.store.Clear(ctx, claims.UserID); clearErr != nil {
			logging.FromContext(ctx).Error("failed to invalidate compromised session", "userId", claims.UserID, "error", clearErr)
		}
		return models.SessionTokens{}, ErrRefreshTokenReused
	case errors.Is(err, ErrSessionNotFound):
		return models.SessionTokens{}, ErrSessionNotFound
	default:
		return models.SessionTokens{}, err
	}
}

// Logout unconditionally clears the user's stored refresh token. Tokens the
// client still holds become unusable on their next refresh attempt.
func (m *Manager) Logout(ctx context.Context, userID string) error {
	if userID == "" {
		return nil
	}
	return m.store.Clear(ctx, userID)
}

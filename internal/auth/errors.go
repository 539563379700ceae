package auth

import "errors"

var (
	// ErrInvalidCredentials indicates the identifier/password pair did not match an account.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrSessionNotFound indicates the refresh token does not map to a known user.
	ErrSessionNotFound = errors.New("session not found")
	// ErrRefreshTokenExpired indicates the refresh token has expired and cannot be used.
	ErrRefreshTokenExpired = errors.New("refresh token expired")
	// ErrRefreshTokenInvalid indicates the refresh token is malformed or its signature does not verify.
	ErrRefreshTokenInvalid = errors.New("refresh token invalid")
	// ErrRefreshTokenReused indicates a time-valid refresh token no longer matches the
	// stored value: either it was never issued to this user or it has been superseded
	// by a rotation. The session is treated as compromised.
	ErrRefreshTokenReused = errors.New("refresh token reuse detected")
	// ErrTokenMismatch is returned by token stores when a conditional replace finds a
	// different stored value than the one presented.
	ErrTokenMismatch = errors.New("refresh token mismatch")
	// ErrAccessTokenExpired indicates the access token signature verified but its expiry has passed.
	ErrAccessTokenExpired = errors.New("access token expired")
	// ErrAccessTokenInvalid indicates the access token is malformed or its signature does not verify.
	ErrAccessTokenInvalid = errors.New("access token invalid")
)

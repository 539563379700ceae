package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/videotube/backend/internal/models"
)

const (
	accessCookieName  = "accessToken"
	refreshCookieName = "refreshToken"
)

// setSessionCookies mirrors the issued tokens into http-only cookies so
// browser clients never touch the raw values. Bearer headers remain the
// primary transport for API clients.
func setSessionCookies(w http.ResponseWriter, r *http.Request, tokens models.SessionTokens) {
	secure := isSecureRequest(r)
	setTokenCookie(w, accessCookieName, tokens.AccessToken, tokens.AccessExpiresAt, secure)
	setTokenCookie(w, refreshCookieName, tokens.RefreshToken, tokens.RefreshExpiresAt, secure)
}

func clearSessionCookies(w http.ResponseWriter, r *http.Request) {
	secure := isSecureRequest(r)
	for _, name := range []string{accessCookieName, refreshCookieName} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			Expires:  time.Unix(0, 0).UTC(),
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   secure,
			SameSite: http.SameSiteStrictMode,
		})
	}
}

func setTokenCookie(w http.ResponseWriter, name, value string, expires time.Time, secure bool) {
	if value == "" {
		return
	}
	maxAge := int(time.Until(expires).Seconds())
	if maxAge < 0 {
		maxAge = 0
	}
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires.UTC(),
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func isSecureRequest(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

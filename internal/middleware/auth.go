package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/videotube/backend/internal/auth"
	"github.com/videotube/backend/internal/logging"
)

type actorKey struct{}

// AccessTokenParser validates an access token and yields its claims.
type AccessTokenParser interface {
	ParseAccess(token string) (*auth.AccessClaims, error)
}

// ActorID returns the authenticated user id stored on the context, if any.
func ActorID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(actorKey{}).(string)
	return id, ok && id != ""
}

// WithActorID stores the authenticated user id on the context. Exposed for
// handler tests.
func WithActorID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, actorKey{}, userID)
}

// RequireAuth rejects requests that do not carry a valid access token. The
// token is read from the Authorization header or, failing that, from the
// accessToken cookie.
func RequireAuth(parser AccessTokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				http.Error(w, "authentication required", http.StatusUnauthorized)
				return
			}

			claims, err := parser.ParseAccess(token)
			if err != nil {
				logging.FromContext(r.Context()).Debug("reject access token", "error", err)
				if errors.Is(err, auth.ErrAccessTokenExpired) {
					http.Error(w, "access token expired", http.StatusUnauthorized)
					return
				}
				http.Error(w, "invalid access token", http.StatusUnauthorized)
				return
			}

			ctx := WithActorID(r.Context(), claims.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth attaches the actor id when a valid access token is present but
// lets anonymous requests through untouched. Used on read endpoints whose
// responses are viewer-relative.
func OptionalAuth(parser AccessTokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token := bearerToken(r); token != "" {
				if claims, err := parser.ParseAccess(token); err == nil {
					r = r.WithContext(WithActorID(r.Context(), claims.UserID))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	if cookie, err := r.Cookie("accessToken"); err == nil {
		return cookie.Value
	}
	return ""
}

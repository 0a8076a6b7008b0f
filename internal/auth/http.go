// ABOUTME: HTTP middleware for JWT authentication on API endpoints
// ABOUTME: Extracts JWT from Authorization header and adds the user to context

package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/2389/sketchbook/internal/store"
)

// UserLookup is the slice of the store the middleware needs.
type UserLookup interface {
	GetUser(ctx context.Context, id string) (*store.User, error)
}

// extractBearerToken extracts a bearer token from the Authorization header.
// Returns the token and an error message (empty if successful).
func extractBearerToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "missing authorization header"
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "invalid authorization header format"
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

func writeAuthError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// authenticate resolves the request's bearer token to a user. The teacher
// flag comes from the store so demotions apply to existing tokens.
func authenticate(r *http.Request, users UserLookup, verifier TokenVerifier) (*AuthContext, string) {
	token, errMsg := extractBearerToken(r.Header.Get("Authorization"))
	if errMsg != "" {
		return nil, errMsg
	}

	claims, err := verifier.Verify(token)
	if err != nil {
		return nil, "invalid token"
	}

	user, err := users.GetUser(r.Context(), claims.UserID)
	if err != nil {
		return nil, "user not found"
	}

	return &AuthContext{
		UserID:    user.ID,
		Username:  user.Username,
		IsTeacher: user.IsTeacher,
	}, ""
}

// HTTPAuthMiddleware creates an HTTP middleware that extracts and validates JWT tokens.
// It looks up the user and adds AuthContext to the request context.
func HTTPAuthMiddleware(users UserLookup, verifier TokenVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "auth")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx, errMsg := authenticate(r, users, verifier)
			if errMsg != "" {
				logger.Debug("rejected request", "path", r.URL.Path, "reason", errMsg)
				writeAuthError(w, http.StatusUnauthorized, errMsg)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithAuth(r.Context(), authCtx)))
		})
	}
}

// RequireTeacherHTTP creates an HTTP middleware that requires a teacher account.
// Must be used after HTTPAuthMiddleware.
func RequireTeacherHTTP() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := FromContext(r.Context())
			if authCtx == nil {
				writeAuthError(w, http.StatusUnauthorized, "not authenticated")
				return
			}

			if !authCtx.IsTeacher {
				writeAuthError(w, http.StatusForbidden, "teacher role required")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// OptionalAuthMiddleware attempts JWT auth but allows unauthenticated requests.
// Useful for endpoints that work differently for authenticated vs anonymous users.
func OptionalAuthMiddleware(users UserLookup, verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx, errMsg := authenticate(r, users, verifier)
			if errMsg != "" {
				next.ServeHTTP(w, r) // Continue as anonymous
				return
			}
			next.ServeHTTP(w, r.WithContext(WithAuth(r.Context(), authCtx)))
		})
	}
}

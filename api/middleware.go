package api

import (
	"context"
	"net/http"
	"strings"

	"refledger/models"
	"refledger/service"
)

type contextKey string

const ctxUserKey contextKey = "user"

// RequireAuth authenticates requests by validating the Bearer token and
// loading the user it was issued for into the request context.
func RequireAuth(userService service.UserService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := extractBearer(r)
			if raw == "" {
				writeError(w, http.StatusUnauthorized, "missing or malformed Authorization header")
				return
			}

			userID, err := userService.ValidateToken(raw)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			user, err := userService.GetByID(r.Context(), userID)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), ctxUserKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromCtx returns the authenticated user or nil.
func UserFromCtx(ctx context.Context) *models.User {
	user, _ := ctx.Value(ctxUserKey).(*models.User)
	return user
}

// WithUser returns a context carrying the given user.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, ctxUserKey, user)
}

func extractBearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

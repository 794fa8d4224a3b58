package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/vaidashi/storefront-api/internal/models"
	apperrors "github.com/vaidashi/storefront-api/pkg/errors"
)

type contextKey string

const identityKey contextKey = "identity"

func withIdentity(ctx context.Context, id models.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func identityFrom(ctx context.Context) (models.Identity, bool) {
	id, ok := ctx.Value(identityKey).(models.Identity)
	return id, ok
}

// authenticate resolves the bearer token into an Identity
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			s.respondWithError(w, r, apperrors.NewUnauthorizedError("Missing authorization header"))
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			s.respondWithError(w, r, apperrors.NewUnauthorizedError("Invalid authorization header format"))
			return
		}

		claims, err := s.deps.Tokens.Validate(strings.TrimSpace(parts[1]))
		if err != nil {
			s.respondWithError(w, r, apperrors.NewUnauthorizedError("Invalid or expired token"))
			return
		}

		role := claims.Role
		if role != models.RoleAdmin {
			role = models.RoleUser
		}

		ctx := withIdentity(r.Context(), models.Identity{UserID: claims.UserID, Role: role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireAdmin must run after authenticate
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := identityFrom(r.Context())
		if !ok {
			s.respondWithError(w, r, apperrors.NewUnauthorizedError("Authentication required"))
			return
		}
		if !id.IsAdmin() {
			s.respondWithError(w, r, apperrors.NewForbiddenError("Admin role required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

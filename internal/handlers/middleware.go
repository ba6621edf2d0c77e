package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/taskhive/apiserver/internal/auth"
	"github.com/taskhive/apiserver/internal/services"
	"github.com/taskhive/apiserver/internal/store"
	"github.com/taskhive/apiserver/types"
)

// RequireAuth is the authentication gate. It extracts the bearer token,
// verifies it, reloads the account, and rejects blocked accounts before
// attaching the caller's identity to the request context.
//
// The account is reloaded on every request, not just at token issuance, so
// blocking an account or deleting it takes effect immediately even for
// still-valid tokens. A missing or failed credential is a 401; a valid
// credential on a blocked account is a 403, a deliberately distinct
// terminal state.
func RequireAuth(userService *services.UserService, secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := bearerToken(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "not authorized, token missing")
				return
			}

			userID, _, err := auth.ParseToken(tokenString, secret)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "not authorized, token failed")
				return
			}

			user, err := userService.GetByID(r.Context(), userID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					writeError(w, http.StatusUnauthorized, "not authorized, user not found")
					return
				}
				writeError(w, http.StatusInternalServerError, "failed to load user")
				return
			}

			if user.Blocked {
				writeError(w, http.StatusForbidden, "your account has been blocked")
				return
			}

			identity := types.Identity{ID: user.ID, Role: user.Role}
			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), identity)))
		})
	}
}

// RequireRole is the authorization policy. It passes callers whose role
// rank is at or above the required role, so superadmin satisfies an
// admin-gated route. On success the identity is re-injected with the
// ownership bypass granted; this is the only place that flag is set.
func RequireRole(role string) func(http.Handler) http.Handler {
	required := types.RoleRank(role)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := identityFromContext(r.Context())
			if err != nil {
				writeError(w, http.StatusUnauthorized, "not authorized")
				return
			}

			if types.RoleRank(identity.Role) < required {
				writeError(w, http.StatusForbidden, "access denied: admin only")
				return
			}

			identity.BypassOwnership = true
			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), identity)))
		})
	}
}

func bearerToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}

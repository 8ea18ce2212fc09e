package middleware

import (
	"net/http"
	"strings"

	"github.com/gatehouse-dev/gatehouse/pkg/accesscontrol"
	"github.com/gatehouse-dev/gatehouse/pkg/httputil"
	"github.com/gatehouse-dev/gatehouse/pkg/observability"
	"github.com/gatehouse-dev/gatehouse/pkg/users"
)

// AuthMiddleware resolves bearer tokens to principals and attaches
// them to the request context for downstream guards.
type AuthMiddleware struct {
	users    *users.Store
	logger   *observability.Logger
	optional bool
}

// NewAuthMiddleware builds the middleware. When optional is true,
// requests without an Authorization header pass through without a
// principal; guarded routes will still reject them.
func NewAuthMiddleware(userStore *users.Store, logger *observability.Logger, optional bool) *AuthMiddleware {
	return &AuthMiddleware{
		users:    userStore,
		logger:   logger,
		optional: optional,
	}
}

// Handler wraps an HTTP handler with token authentication.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			if m.optional {
				next.ServeHTTP(w, r)
				return
			}
			httputil.WriteUnauthorized(w, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			httputil.WriteUnauthorized(w, "invalid authorization header format")
			return
		}

		user, err := m.users.FindByToken(r.Context(), parts[1])
		if err != nil {
			// Unknown and malformed tokens are indistinguishable to
			// the caller.
			httputil.WriteUnauthorized(w, "invalid token")
			return
		}

		ctx := accesscontrol.WithPrincipal(r.Context(), user.Principal())
		ctx = observability.WithUserID(ctx, user.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// PrincipalFrom extracts the authenticated principal from the request,
// or nil when the request is unauthenticated.
func PrincipalFrom(r *http.Request) *accesscontrol.Principal {
	return accesscontrol.PrincipalFromContext(r.Context())
}

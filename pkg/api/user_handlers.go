package api

import (
	"net/http"

	"github.com/gatehouse-dev/gatehouse/pkg/httputil"
	"github.com/gatehouse-dev/gatehouse/pkg/middleware"
	"github.com/gatehouse-dev/gatehouse/pkg/users"
)

// CreateUserRequest contains the request body for creating a user
type CreateUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

// TokenResponse carries a freshly issued plaintext token.
type TokenResponse struct {
	Token string `json:"token"`
}

// createUser handles POST /api/v1/users
func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Username, "username") {
		return
	}

	user := &users.User{
		Username: req.Username,
		Email:    req.Email,
	}
	if err := s.userStore.Create(r.Context(), user); err != nil {
		s.logger.WithError(err).Error("failed to create user")
		httputil.WriteAPIError(w, err)
		return
	}

	s.logger.WithField("userId", user.ID).Info("user created")
	httputil.WriteCreated(w, user)
}

// getCurrentUser handles GET /api/v1/users/me
func (s *Server) getCurrentUser(w http.ResponseWriter, r *http.Request) {
	principal := middleware.PrincipalFrom(r)
	if principal == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	user, err := s.userStore.Get(r.Context(), principal.ID)
	if err != nil {
		httputil.WriteAPIError(w, err)
		return
	}
	httputil.WriteSuccess(w, user)
}

// issueToken handles POST /api/v1/users/{userId}/tokens. Issuing a
// token invalidates the user's previous one. The route is expected to
// sit behind an identity-aware proxy; the service itself has no
// password login.
func (s *Server) issueToken(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathStringOrError(w, r, "userId")
	if !ok {
		return
	}

	token, err := s.userStore.IssueToken(r.Context(), userID)
	if err != nil {
		httputil.WriteAPIError(w, err)
		return
	}

	s.logger.WithField("userId", userID).Info("token issued")
	httputil.WriteCreated(w, TokenResponse{Token: token})
}

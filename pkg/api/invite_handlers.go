package api

import (
	"net/http"

	"github.com/gatehouse-dev/gatehouse/pkg/governance"
	"github.com/gatehouse-dev/gatehouse/pkg/httputil"
	"github.com/gatehouse-dev/gatehouse/pkg/middleware"
)

// CreateInviteRequest contains the request body for inviting a member
type CreateInviteRequest struct {
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
}

// createInvite handles POST /api/v1/orgs/{orgId}/invites
func (s *Server) createInvite(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathStringOrError(w, r, "orgId")
	if !ok {
		return
	}

	var req CreateInviteRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	invite, err := s.orgService.AddMembershipInvite(r.Context(), orgID, req.Email, governance.Role(req.Role))
	if err != nil {
		httputil.WriteAPIError(w, err)
		return
	}

	s.logger.WithFields(map[string]interface{}{
		"orgId":    orgID,
		"inviteId": invite.ID,
	}).Info("membership invite created")

	// The plaintext token appears only in this response.
	httputil.WriteCreated(w, invite)
}

// removeInvite handles DELETE /api/v1/orgs/{orgId}/invites/{inviteId}
func (s *Server) removeInvite(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathStringOrError(w, r, "orgId")
	if !ok {
		return
	}
	inviteID, ok := httputil.ParsePathStringOrError(w, r, "inviteId")
	if !ok {
		return
	}

	if err := s.orgService.RemoveMembershipInvite(r.Context(), orgID, inviteID); err != nil {
		httputil.WriteAPIError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// AcceptInviteRequest contains the request body for accepting an invite
type AcceptInviteRequest struct {
	Token string `json:"token"`
}

// acceptInvite handles POST /api/v1/orgs/{orgId}/invites/accept
func (s *Server) acceptInvite(w http.ResponseWriter, r *http.Request) {
	principal := middleware.PrincipalFrom(r)
	if principal == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	orgID, ok := httputil.ParsePathStringOrError(w, r, "orgId")
	if !ok {
		return
	}

	var req AcceptInviteRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Token, "token") {
		return
	}

	user, err := s.userStore.Get(r.Context(), principal.ID)
	if err != nil {
		httputil.WriteAPIError(w, err)
		return
	}

	if err := s.orgService.AcceptMembershipInvite(r.Context(), orgID, req.Token, user); err != nil {
		httputil.WriteAPIError(w, err)
		return
	}

	s.logger.WithFields(map[string]interface{}{
		"orgId":  orgID,
		"userId": user.ID,
	}).Info("membership invite accepted")
	httputil.WriteNoContent(w)
}

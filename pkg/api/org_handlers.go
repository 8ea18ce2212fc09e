package api

import (
	"net/http"

	"github.com/gatehouse-dev/gatehouse/pkg/accesscontrol"
	"github.com/gatehouse-dev/gatehouse/pkg/httputil"
	"github.com/gatehouse-dev/gatehouse/pkg/middleware"
)

// CreateOrganizationRequest contains the request body for creating an organization
type CreateOrganizationRequest struct {
	Name string `json:"name"`
}

// createOrganization handles POST /api/v1/orgs
func (s *Server) createOrganization(w http.ResponseWriter, r *http.Request) {
	principal := middleware.PrincipalFrom(r)
	if principal == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	var req CreateOrganizationRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Name, "name") {
		return
	}

	org, err := s.orgService.CreateOrganization(r.Context(), req.Name, principal.ID)
	if err != nil {
		s.logger.WithError(err).Error("failed to create organization")
		httputil.WriteAPIError(w, err)
		return
	}

	s.logger.WithFields(map[string]interface{}{
		"orgId":  org.ID,
		"userId": principal.ID,
	}).Info("organization created")
	httputil.WriteCreated(w, org)
}

// getOrganization handles GET /api/v1/orgs/{orgId}
func (s *Server) getOrganization(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathStringOrError(w, r, "orgId")
	if !ok {
		return
	}

	org, err := s.orgService.GetOrganization(r.Context(), orgID)
	if err != nil {
		httputil.WriteAPIError(w, err)
		return
	}
	httputil.WriteSuccess(w, org)
}

// renameOrganization handles PUT /api/v1/orgs/{orgId}
func (s *Server) renameOrganization(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathStringOrError(w, r, "orgId")
	if !ok {
		return
	}

	var req CreateOrganizationRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Name, "name") {
		return
	}

	if err := s.orgService.RenameOrganization(r.Context(), orgID, req.Name); err != nil {
		httputil.WriteAPIError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// deleteOrganization handles DELETE /api/v1/orgs/{orgId}
func (s *Server) deleteOrganization(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathStringOrError(w, r, "orgId")
	if !ok {
		return
	}

	if err := s.orgService.DeleteOrganization(r.Context(), orgID); err != nil {
		httputil.WriteAPIError(w, err)
		return
	}

	s.logger.WithField("orgId", orgID).Info("organization deleted")
	httputil.WriteNoContent(w)
}

// AddUserRequest contains the request body for adding a member
type AddUserRequest struct {
	UserID string `json:"userId"`
}

// addUser handles POST /api/v1/orgs/{orgId}/users
func (s *Server) addUser(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathStringOrError(w, r, "orgId")
	if !ok {
		return
	}

	var req AddUserRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.UserID, "userId") {
		return
	}

	if err := s.orgService.AddUser(r.Context(), orgID, req.UserID); err != nil {
		httputil.WriteAPIError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// removeUser handles DELETE /api/v1/orgs/{orgId}/users/{userId}
func (s *Server) removeUser(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathStringOrError(w, r, "orgId")
	if !ok {
		return
	}
	userID, ok := httputil.ParsePathStringOrError(w, r, "userId")
	if !ok {
		return
	}

	if err := s.orgService.RemoveUser(r.Context(), orgID, userID); err != nil {
		httputil.WriteAPIError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// CreateSubEntityRequest contains the request body for creating a
// team, project group or registered theme
type CreateSubEntityRequest struct {
	Name string `json:"name"`
}

// createTeam handles POST /api/v1/orgs/{orgId}/teams
func (s *Server) createTeam(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathStringOrError(w, r, "orgId")
	if !ok {
		return
	}

	var req CreateSubEntityRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Name, "name") {
		return
	}

	team, err := s.orgService.CreateTeam(r.Context(), orgID, req.Name)
	if err != nil {
		httputil.WriteAPIError(w, err)
		return
	}
	httputil.WriteCreated(w, team)
}

// renameTeam handles PUT /api/v1/orgs/{orgId}/teams/{teamId}
func (s *Server) renameTeam(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathStringOrError(w, r, "orgId")
	if !ok {
		return
	}
	teamID, ok := httputil.ParsePathStringOrError(w, r, "teamId")
	if !ok {
		return
	}

	var req CreateSubEntityRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Name, "name") {
		return
	}

	if err := s.orgService.RenameTeam(r.Context(), orgID, teamID, req.Name); err != nil {
		httputil.WriteAPIError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// createProjectGroup handles POST /api/v1/orgs/{orgId}/projectGroups
func (s *Server) createProjectGroup(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathStringOrError(w, r, "orgId")
	if !ok {
		return
	}

	var req CreateSubEntityRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Name, "name") {
		return
	}

	group, err := s.orgService.CreateProjectGroup(r.Context(), orgID, req.Name)
	if err != nil {
		httputil.WriteAPIError(w, err)
		return
	}
	httputil.WriteCreated(w, group)
}

// createRegisteredTheme handles POST /api/v1/orgs/{orgId}/registeredThemes
func (s *Server) createRegisteredTheme(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathStringOrError(w, r, "orgId")
	if !ok {
		return
	}

	var req CreateSubEntityRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Name, "name") {
		return
	}

	theme, err := s.orgService.CreateRegisteredTheme(r.Context(), orgID, req.Name)
	if err != nil {
		httputil.WriteAPIError(w, err)
		return
	}
	httputil.WriteCreated(w, theme)
}

// addTeamMember handles POST /api/v1/orgs/{orgId}/teams/{teamId}/members
func (s *Server) addTeamMember(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathStringOrError(w, r, "orgId")
	if !ok {
		return
	}
	teamID, ok := httputil.ParsePathStringOrError(w, r, "teamId")
	if !ok {
		return
	}

	var req AddUserRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.UserID, "userId") {
		return
	}

	if err := s.orgService.AddUserToTeam(r.Context(), orgID, teamID, req.UserID); err != nil {
		httputil.WriteAPIError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// removeTeamMember handles DELETE /api/v1/orgs/{orgId}/teams/{teamId}/members/{userId}
func (s *Server) removeTeamMember(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathStringOrError(w, r, "orgId")
	if !ok {
		return
	}
	teamID, ok := httputil.ParsePathStringOrError(w, r, "teamId")
	if !ok {
		return
	}
	userID, ok := httputil.ParsePathStringOrError(w, r, "userId")
	if !ok {
		return
	}

	if err := s.orgService.RemoveUserFromTeam(r.Context(), orgID, teamID, userID); err != nil {
		httputil.WriteAPIError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// listRoles handles GET /api/v1/orgs/{orgId}/roles
func (s *Server) listRoles(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathStringOrError(w, r, "orgId")
	if !ok {
		return
	}

	acl, err := s.orgService.Engine().ACLOf(r.Context(), orgID)
	if err != nil {
		httputil.WriteAPIError(w, err)
		return
	}
	if acl == nil {
		acl = accesscontrol.ACL{}
	}
	httputil.WriteSuccess(w, acl)
}

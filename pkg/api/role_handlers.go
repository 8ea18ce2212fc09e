package api

import (
	"net/http"

	"github.com/gatehouse-dev/gatehouse/pkg/accesscontrol"
	"github.com/gatehouse-dev/gatehouse/pkg/governance"
	"github.com/gatehouse-dev/gatehouse/pkg/httputil"
)

// SetRoleRequest contains the request body for a role assignment
type SetRoleRequest struct {
	Role string `json:"role"`
}

// setUserRole handles PUT /api/v1/orgs/{orgId}/roles/users/{userId}
func (s *Server) setUserRole(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathStringOrError(w, r, "orgId")
	if !ok {
		return
	}
	userID, ok := httputil.ParsePathStringOrError(w, r, "userId")
	if !ok {
		return
	}

	var req SetRoleRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Role, "role") {
		return
	}

	if err := s.orgService.Engine().SetUserRole(r.Context(), orgID, governance.Role(req.Role), userID); err != nil {
		httputil.WriteAPIError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// removeUserRole handles DELETE /api/v1/orgs/{orgId}/roles/users/{userId}
func (s *Server) removeUserRole(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathStringOrError(w, r, "orgId")
	if !ok {
		return
	}
	userID, ok := httputil.ParsePathStringOrError(w, r, "userId")
	if !ok {
		return
	}

	if err := s.orgService.Engine().RemoveUserRole(r.Context(), orgID, userID); err != nil {
		httputil.WriteAPIError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// setTeamRole handles PUT /api/v1/orgs/{orgId}/roles/teams/{teamId}
func (s *Server) setTeamRole(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathStringOrError(w, r, "orgId")
	if !ok {
		return
	}
	teamID, ok := httputil.ParsePathStringOrError(w, r, "teamId")
	if !ok {
		return
	}

	var req SetRoleRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Role, "role") {
		return
	}

	if err := s.orgService.Engine().SetTeamRole(r.Context(), orgID, governance.Role(req.Role), teamID); err != nil {
		httputil.WriteAPIError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// removeTeamRole handles DELETE /api/v1/orgs/{orgId}/roles/teams/{teamId}
func (s *Server) removeTeamRole(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathStringOrError(w, r, "orgId")
	if !ok {
		return
	}
	teamID, ok := httputil.ParsePathStringOrError(w, r, "teamId")
	if !ok {
		return
	}

	if err := s.orgService.Engine().RemoveTeamRole(r.Context(), orgID, teamID); err != nil {
		httputil.WriteAPIError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

type nestedRoleTarget struct {
	orgID  string
	field  accesscontrol.SubEntityField
	subID  string
	target string
}

func (s *Server) nestedTarget(w http.ResponseWriter, r *http.Request, targetParam string) (nestedRoleTarget, bool) {
	orgID, ok := httputil.ParsePathStringOrError(w, r, "orgId")
	if !ok {
		return nestedRoleTarget{}, false
	}
	field, ok := httputil.ParsePathStringOrError(w, r, "field")
	if !ok {
		return nestedRoleTarget{}, false
	}
	subID, ok := httputil.ParsePathStringOrError(w, r, "subId")
	if !ok {
		return nestedRoleTarget{}, false
	}
	target, ok := httputil.ParsePathStringOrError(w, r, targetParam)
	if !ok {
		return nestedRoleTarget{}, false
	}
	return nestedRoleTarget{
		orgID:  orgID,
		field:  accesscontrol.SubEntityField(field),
		subID:  subID,
		target: target,
	}, true
}

// setNestedUserRole handles PUT /api/v1/orgs/{orgId}/entities/{field}/{subId}/roles/users/{userId}
func (s *Server) setNestedUserRole(w http.ResponseWriter, r *http.Request) {
	t, ok := s.nestedTarget(w, r, "userId")
	if !ok {
		return
	}

	var req SetRoleRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Role, "role") {
		return
	}

	err := s.orgService.NestedEngine().SetNestedUserRole(r.Context(), t.orgID, t.field, t.subID, governance.Role(req.Role), t.target)
	if err != nil {
		httputil.WriteAPIError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// removeNestedUserRole handles DELETE /api/v1/orgs/{orgId}/entities/{field}/{subId}/roles/users/{userId}
func (s *Server) removeNestedUserRole(w http.ResponseWriter, r *http.Request) {
	t, ok := s.nestedTarget(w, r, "userId")
	if !ok {
		return
	}

	err := s.orgService.NestedEngine().RemoveNestedUserRole(r.Context(), t.orgID, t.field, t.subID, t.target)
	if err != nil {
		httputil.WriteAPIError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// setNestedTeamRole handles PUT /api/v1/orgs/{orgId}/entities/{field}/{subId}/roles/teams/{teamId}
func (s *Server) setNestedTeamRole(w http.ResponseWriter, r *http.Request) {
	t, ok := s.nestedTarget(w, r, "teamId")
	if !ok {
		return
	}

	var req SetRoleRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Role, "role") {
		return
	}

	err := s.orgService.NestedEngine().SetNestedTeamRole(r.Context(), t.orgID, t.field, t.subID, governance.Role(req.Role), t.target)
	if err != nil {
		httputil.WriteAPIError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// removeNestedTeamRole handles DELETE /api/v1/orgs/{orgId}/entities/{field}/{subId}/roles/teams/{teamId}
func (s *Server) removeNestedTeamRole(w http.ResponseWriter, r *http.Request) {
	t, ok := s.nestedTarget(w, r, "teamId")
	if !ok {
		return
	}

	err := s.orgService.NestedEngine().RemoveNestedTeamRole(r.Context(), t.orgID, t.field, t.subID, t.target)
	if err != nil {
		httputil.WriteAPIError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

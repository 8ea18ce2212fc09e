package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/gatehouse-dev/gatehouse/pkg/guard"
	"github.com/gatehouse-dev/gatehouse/pkg/httputil"
	"github.com/gatehouse-dev/gatehouse/pkg/middleware"
	"github.com/gatehouse-dev/gatehouse/pkg/observability"
	"github.com/gatehouse-dev/gatehouse/pkg/orgs"
	"github.com/gatehouse-dev/gatehouse/pkg/users"
)

// Server represents the API server
type Server struct {
	router     *mux.Router
	logger     *logrus.Logger
	orgService *orgs.Service
	userStore  *users.Store
	metrics    *observability.Metrics

	orgGuard  *guard.Guard
	teamGuard *guard.NestedGuard
}

// Options carries the server's collaborators and tunables.
type Options struct {
	OrgService   *orgs.Service
	UserStore    *users.Store
	Auth         *middleware.AuthMiddleware
	AppLogger    *observability.Logger
	Logger       *logrus.Logger
	Metrics      *observability.Metrics
	MaxBodyBytes int64
}

// NewServer creates a new API server
func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}

	s := &Server{
		router:     mux.NewRouter(),
		logger:     opts.Logger,
		orgService: opts.OrgService,
		userStore:  opts.UserStore,
		metrics:    opts.Metrics,
	}

	s.orgGuard = guard.New(opts.OrgService.Engine(), orgs.Governance(), "organization", "orgId", opts.Metrics)
	s.teamGuard = guard.NewNested(opts.OrgService.NestedEngine(), orgs.TeamGovernance(), "team", orgs.FieldTeams, "orgId", "teamId", opts.Metrics)

	s.router.Use(mux.MiddlewareFunc(httputil.RequestIDMiddleware))
	s.router.Use(httputil.RecoveryMiddleware(opts.AppLogger))
	s.router.Use(httputil.MaxBytesMiddleware(opts.MaxBodyBytes))
	if opts.Metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(opts.Metrics))
	}
	s.router.Use(opts.Auth.Handler)

	s.setupRoutes()
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// User routes
	api.HandleFunc("/users", s.createUser).Methods("POST")
	api.HandleFunc("/users/me", s.getCurrentUser).Methods("GET")
	api.HandleFunc("/users/{userId}/tokens", s.issueToken).Methods("POST")

	// Organization routes
	api.HandleFunc("/orgs", s.createOrganization).Methods("POST")

	s.guarded(api, "GET", "/orgs/{orgId}", s.getOrganization, s.orgGuard.RequireMember())
	s.guarded(api, "PUT", "/orgs/{orgId}", s.renameOrganization, s.orgGuard.Require(orgs.PermEditOrganization))
	s.guarded(api, "DELETE", "/orgs/{orgId}", s.deleteOrganization, s.orgGuard.Require(orgs.PermDeleteOrganization))

	// Membership routes
	s.guarded(api, "POST", "/orgs/{orgId}/users", s.addUser, s.orgGuard.Require(orgs.PermEditMembership))
	s.guarded(api, "DELETE", "/orgs/{orgId}/users/{userId}", s.removeUser, s.orgGuard.Require(orgs.PermEditMembership))

	// Sub-entity creation routes
	s.guarded(api, "POST", "/orgs/{orgId}/teams", s.createTeam, s.orgGuard.Require(orgs.PermCreateTeam))
	s.guarded(api, "POST", "/orgs/{orgId}/projectGroups", s.createProjectGroup, s.orgGuard.Require(orgs.PermCreateProjectGroup))
	s.guarded(api, "POST", "/orgs/{orgId}/registeredThemes", s.createRegisteredTheme, s.orgGuard.Require(orgs.PermCreateRegisteredTheme))

	// Team routes; editing a team takes a role on the team itself, not
	// on the organization.
	s.guarded(api, "PUT", "/orgs/{orgId}/teams/{teamId}", s.renameTeam, s.teamGuard.Require(orgs.PermEditTeam))

	// Team membership routes
	s.guarded(api, "POST", "/orgs/{orgId}/teams/{teamId}/members", s.addTeamMember, s.orgGuard.Require(orgs.PermEditMembership))
	s.guarded(api, "DELETE", "/orgs/{orgId}/teams/{teamId}/members/{userId}", s.removeTeamMember, s.orgGuard.Require(orgs.PermEditMembership))

	// Role assignment routes
	s.guarded(api, "PUT", "/orgs/{orgId}/roles/users/{userId}", s.setUserRole, s.orgGuard.Require(orgs.PermEditMembership))
	s.guarded(api, "DELETE", "/orgs/{orgId}/roles/users/{userId}", s.removeUserRole, s.orgGuard.Require(orgs.PermEditMembership))
	s.guarded(api, "PUT", "/orgs/{orgId}/roles/teams/{teamId}", s.setTeamRole, s.orgGuard.Require(orgs.PermEditMembership))
	s.guarded(api, "DELETE", "/orgs/{orgId}/roles/teams/{teamId}", s.removeTeamRole, s.orgGuard.Require(orgs.PermEditMembership))
	s.guarded(api, "GET", "/orgs/{orgId}/roles", s.listRoles, s.orgGuard.RequireMember())

	// Nested role assignment routes; {field} addresses a registered
	// sub-collection, unknown fields surface as NotFound downstream.
	s.guarded(api, "PUT", "/orgs/{orgId}/entities/{field}/{subId}/roles/users/{userId}", s.setNestedUserRole, s.orgGuard.Require(orgs.PermEditMembership))
	s.guarded(api, "DELETE", "/orgs/{orgId}/entities/{field}/{subId}/roles/users/{userId}", s.removeNestedUserRole, s.orgGuard.Require(orgs.PermEditMembership))
	s.guarded(api, "PUT", "/orgs/{orgId}/entities/{field}/{subId}/roles/teams/{teamId}", s.setNestedTeamRole, s.orgGuard.Require(orgs.PermEditMembership))
	s.guarded(api, "DELETE", "/orgs/{orgId}/entities/{field}/{subId}/roles/teams/{teamId}", s.removeNestedTeamRole, s.orgGuard.Require(orgs.PermEditMembership))

	// Invitation routes
	s.guarded(api, "POST", "/orgs/{orgId}/invites", s.createInvite, s.orgGuard.Require(orgs.PermEditMembership))
	s.guarded(api, "DELETE", "/orgs/{orgId}/invites/{inviteId}", s.removeInvite, s.orgGuard.Require(orgs.PermEditMembership))
	// The plaintext token travels in the body, never in the URL, so it
	// cannot leak through logs or metric labels.
	api.HandleFunc("/orgs/{orgId}/invites/accept", s.acceptInvite).Methods("POST")
}

func (s *Server) guarded(router *mux.Router, method, path string, handler http.HandlerFunc, mw mux.MiddlewareFunc) {
	router.Handle(path, mw(handler)).Methods(method)
}

// Router returns the configured router for mounting.
func (s *Server) Router() http.Handler {
	return s.router
}

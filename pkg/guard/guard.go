// Package guard builds route middleware that enforces role-based
// access on controlled objects. A guard resolves the object id from
// the route, the principal from the request context, and the required
// role set from a governance table, then asks the access control
// engine for a decision. Denials carry a fixed message so they never
// reveal whether the object exists.
package guard

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/gatehouse-dev/gatehouse/pkg/accesscontrol"
	"github.com/gatehouse-dev/gatehouse/pkg/apierror"
	"github.com/gatehouse-dev/gatehouse/pkg/governance"
	"github.com/gatehouse-dev/gatehouse/pkg/httputil"
	"github.com/gatehouse-dev/gatehouse/pkg/observability"
)

// Guard builds middleware enforcing access to one top-level entity
// type. The entity name is used as the metrics label.
type Guard struct {
	engine     *accesscontrol.Engine
	governance *governance.Table
	entity     string
	idParam    string
	metrics    *observability.Metrics
}

// New binds a guard to an engine, the entity's governance table and
// the route variable carrying the object id.
func New(engine *accesscontrol.Engine, table *governance.Table, entity, idParam string, metrics *observability.Metrics) *Guard {
	return &Guard{
		engine:     engine,
		governance: table,
		entity:     entity,
		idParam:    idParam,
		metrics:    metrics,
	}
}

// Require returns middleware that admits only principals holding a
// role that grants the given permission on the addressed object.
func (g *Guard) Require(permission governance.Permission) mux.MiddlewareFunc {
	// An unknown permission resolves to an empty role set and denies
	// everyone, including default-role holders.
	roles := g.governance.RolesFor(permission)
	return g.middleware(func(r *http.Request, principal *accesscontrol.Principal) (bool, error) {
		return g.engine.IsAuthorized(r.Context(), mux.Vars(r)[g.idParam], roles, principal)
	})
}

// RequireMember returns middleware that admits any principal holding
// at least the default role on the addressed object.
func (g *Guard) RequireMember() mux.MiddlewareFunc {
	return g.middleware(func(r *http.Request, principal *accesscontrol.Principal) (bool, error) {
		return g.engine.IsAuthorized(r.Context(), mux.Vars(r)[g.idParam], nil, principal)
	})
}

func (g *Guard) middleware(check checkFunc) mux.MiddlewareFunc {
	return decide(g.entity, g.metrics, check)
}

// NestedGuard builds middleware enforcing access to sub-objects of a
// host entity (teams, project groups and other registered fields).
type NestedGuard struct {
	engine      *accesscontrol.NestedEngine
	governance  *governance.Table
	entity      string
	field       accesscontrol.SubEntityField
	hostIDParam string
	subIDParam  string
	metrics     *observability.Metrics
}

// NewNested binds a guard to a nested engine, one registered
// sub-entity field and the route variables carrying the host and
// sub-object ids.
func NewNested(engine *accesscontrol.NestedEngine, table *governance.Table, entity string, field accesscontrol.SubEntityField, hostIDParam, subIDParam string, metrics *observability.Metrics) *NestedGuard {
	return &NestedGuard{
		engine:      engine,
		governance:  table,
		entity:      entity,
		field:       field,
		hostIDParam: hostIDParam,
		subIDParam:  subIDParam,
		metrics:     metrics,
	}
}

// Require returns middleware that admits only principals holding a
// role that grants the given permission on the addressed sub-object.
func (g *NestedGuard) Require(permission governance.Permission) mux.MiddlewareFunc {
	roles := g.governance.RolesFor(permission)
	return g.middleware(func(r *http.Request, principal *accesscontrol.Principal) (bool, error) {
		vars := mux.Vars(r)
		return g.engine.IsAuthorizedNestedDoc(r.Context(), vars[g.hostIDParam], g.field, vars[g.subIDParam], roles, principal)
	})
}

// RequireMember returns middleware that admits any principal holding
// at least the default role on the addressed sub-object.
func (g *NestedGuard) RequireMember() mux.MiddlewareFunc {
	return g.middleware(func(r *http.Request, principal *accesscontrol.Principal) (bool, error) {
		vars := mux.Vars(r)
		return g.engine.IsAuthorizedNestedDoc(r.Context(), vars[g.hostIDParam], g.field, vars[g.subIDParam], nil, principal)
	})
}

func (g *NestedGuard) middleware(check checkFunc) mux.MiddlewareFunc {
	return decide(g.entity, g.metrics, check)
}

type checkFunc func(r *http.Request, principal *accesscontrol.Principal) (bool, error)

func decide(entity string, metrics *observability.Metrics, check checkFunc) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := accesscontrol.PrincipalFromContext(r.Context())
			if principal == nil {
				httputil.WriteUnauthorized(w, "authentication required")
				return
			}

			start := time.Now()
			allowed, err := check(r, principal)
			if err != nil {
				httputil.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
				return
			}
			if metrics != nil {
				metrics.RecordAuthzDecision(entity, allowed, time.Since(start))
			}
			if !allowed {
				httputil.WriteAPIError(w, apierror.Forbidden())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

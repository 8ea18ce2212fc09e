package accesscontrol

import (
	"context"
	"errors"
	"fmt"

	"github.com/gatehouse-dev/gatehouse/pkg/apierror"
	"github.com/gatehouse-dev/gatehouse/pkg/docstore"
	"github.com/gatehouse-dev/gatehouse/pkg/governance"
	"github.com/gatehouse-dev/gatehouse/pkg/observability"
)

// Engine mutates and queries the ACL of top-level controlled objects
// in one document collection.
type Engine struct {
	store              docstore.Store
	collection         string
	governance         *governance.Table
	defaultRoleMatcher DefaultRoleMatcher
	logger             *observability.Logger
}

// NewEngine binds an engine to a collection, its governance table and
// an optional default-role matcher.
func NewEngine(store docstore.Store, collection string, table *governance.Table, matcher DefaultRoleMatcher, logger *observability.Logger) *Engine {
	return &Engine{
		store:              store,
		collection:         collection,
		governance:         table,
		defaultRoleMatcher: matcher,
		logger:             logger,
	}
}

// SetUserRole replaces the user's assignment on the object with the
// given role.
func (e *Engine) SetUserRole(ctx context.Context, objectID string, role governance.Role, userID string) error {
	return e.setRole(ctx, objectID, role, UserSubject(userID))
}

// SetTeamRole replaces the team's assignment on the object with the
// given role.
func (e *Engine) SetTeamRole(ctx context.Context, objectID string, role governance.Role, teamID string) error {
	return e.setRole(ctx, objectID, role, TeamSubject(teamID))
}

// RemoveUserRole removes all assignments for the user. Removing an
// absent assignment succeeds silently.
func (e *Engine) RemoveUserRole(ctx context.Context, objectID, userID string) error {
	return e.removeRole(ctx, objectID, UserSubject(userID))
}

// RemoveTeamRole removes all assignments for the team. Removing an
// absent assignment succeeds silently.
func (e *Engine) RemoveTeamRole(ctx context.Context, objectID, teamID string) error {
	return e.removeRole(ctx, objectID, TeamSubject(teamID))
}

func (e *Engine) setRole(ctx context.Context, objectID string, role governance.Role, subject Subject) error {
	// Validation precedes any store access: no partial mutation.
	if !e.governance.HasRole(role) {
		return apierror.InvalidRole(string(role))
	}

	err := e.mutateACL(ctx, objectID, func(acl ACL) ACL {
		return acl.WithSubjectRole(subject, role)
	})
	if err != nil {
		return err
	}

	e.logger.WithFields(map[string]interface{}{
		"collection": e.collection,
		"objectId":   objectID,
		"userId":     subject.UserID,
		"teamId":     subject.TeamID,
		"role":       string(role),
	}).Debug("role assignment set")
	return nil
}

func (e *Engine) removeRole(ctx context.Context, objectID string, subject Subject) error {
	err := e.mutateACL(ctx, objectID, func(acl ACL) ACL {
		return acl.WithoutSubject(subject)
	})
	if err != nil {
		return err
	}

	e.logger.WithFields(map[string]interface{}{
		"collection": e.collection,
		"objectId":   objectID,
		"userId":     subject.UserID,
		"teamId":     subject.TeamID,
	}).Debug("role assignment removed")
	return nil
}

func (e *Engine) mutateACL(ctx context.Context, objectID string, mutate func(ACL) ACL) error {
	_, err := e.store.FindOneAndUpdate(ctx, e.collection, objectID, func(doc []byte) ([]byte, error) {
		raw, err := decodeDocument(doc)
		if err != nil {
			return nil, err
		}
		acl, err := readACL(raw)
		if err != nil {
			return nil, err
		}
		if err := writeACL(raw, mutate(acl)); err != nil {
			return nil, err
		}
		return encodeDocument(raw)
	})
	if errors.Is(err, docstore.ErrNotFound) {
		return apierror.NotFound()
	}
	if err != nil {
		return fmt.Errorf("failed to update access control list: %w", err)
	}
	return nil
}

// IsAuthorized reports whether the principal holds a sufficient role
// on the object. A nil possibleRoles means the default role suffices:
// the matcher is consulted first, then any assignment for the
// principal counts. A non-nil role set requires a matching assignment
// carrying one of those roles. Unknown object ids yield false, never
// an error — existence is not leaked.
func (e *Engine) IsAuthorized(ctx context.Context, objectID string, possibleRoles []governance.Role, principal *Principal) (bool, error) {
	if possibleRoles == nil && e.defaultRoleMatcher != nil {
		ok, err := e.defaultRoleMatcher(ctx, principal, objectID)
		if err != nil {
			return false, fmt.Errorf("default role matcher failed: %w", err)
		}
		if ok {
			return true, nil
		}
	}

	acl, found, err := e.objectACL(ctx, objectID)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}

	if possibleRoles == nil {
		return acl.HasAnyFor(principal.ID, principal.TeamIDs()), nil
	}
	return acl.HasRoleFor(possibleRoles, principal.ID, principal.TeamIDs()), nil
}

func (e *Engine) objectACL(ctx context.Context, objectID string) (ACL, bool, error) {
	doc, err := e.store.FindOne(ctx, e.collection, objectID)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load object: %w", err)
	}

	raw, err := decodeDocument(doc)
	if err != nil {
		return nil, false, err
	}
	acl, err := readACL(raw)
	if err != nil {
		return nil, false, err
	}
	return acl, true, nil
}

// ACLOf returns the object's current ACL for inspection. Ordering is
// storage order and carries no semantics.
func (e *Engine) ACLOf(ctx context.Context, objectID string) (ACL, error) {
	acl, found, err := e.objectACL(ctx, objectID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apierror.NotFound()
	}
	return acl, nil
}

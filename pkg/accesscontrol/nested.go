package accesscontrol

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gatehouse-dev/gatehouse/pkg/apierror"
	"github.com/gatehouse-dev/gatehouse/pkg/docstore"
	"github.com/gatehouse-dev/gatehouse/pkg/governance"
	"github.com/gatehouse-dev/gatehouse/pkg/observability"
)

// SubEntityField names a controlled sub-collection on a host document
// (for organizations: "teams", "projectGroups", "registeredThemes").
type SubEntityField string

// SubEntityConfig carries the per-field role vocabulary and default
// access predicate. Multiple controlled sub-collections may coexist on
// the same host type, each with its own vocabulary.
type SubEntityConfig struct {
	Governance         *governance.Table
	DefaultRoleMatcher DefaultRoleMatcher
}

// NestedEngine applies role assignment operations to elements of
// registered sub-collections on host documents. The registry is fixed
// at construction; addressing an unregistered field behaves like a
// missing object.
type NestedEngine struct {
	store       docstore.Store
	collection  string
	subEntities map[SubEntityField]SubEntityConfig
	logger      *observability.Logger
}

// NewNestedEngine binds a nested engine to the host collection and its
// sub-entity registry.
func NewNestedEngine(store docstore.Store, collection string, subEntities map[SubEntityField]SubEntityConfig, logger *observability.Logger) *NestedEngine {
	registry := make(map[SubEntityField]SubEntityConfig, len(subEntities))
	for field, cfg := range subEntities {
		registry[field] = cfg
	}
	return &NestedEngine{
		store:       store,
		collection:  collection,
		subEntities: registry,
		logger:      logger,
	}
}

// Register adds a sub-entity vocabulary to the registry. Intended for
// setup time, before the engine serves requests.
func (e *NestedEngine) Register(field SubEntityField, cfg SubEntityConfig) {
	e.subEntities[field] = cfg
}

// Fields returns the registered sub-entity fields.
func (e *NestedEngine) Fields() []SubEntityField {
	out := make([]SubEntityField, 0, len(e.subEntities))
	for field := range e.subEntities {
		out = append(out, field)
	}
	return out
}

// SetNestedUserRole replaces the user's assignment on the addressed
// sub-object.
func (e *NestedEngine) SetNestedUserRole(ctx context.Context, hostID string, field SubEntityField, objectID string, role governance.Role, userID string) error {
	return e.setRole(ctx, hostID, field, objectID, role, UserSubject(userID))
}

// SetNestedTeamRole replaces the team's assignment on the addressed
// sub-object.
func (e *NestedEngine) SetNestedTeamRole(ctx context.Context, hostID string, field SubEntityField, objectID string, role governance.Role, teamID string) error {
	return e.setRole(ctx, hostID, field, objectID, role, TeamSubject(teamID))
}

// RemoveNestedUserRole removes the user's assignments on the addressed
// sub-object; removing an absent assignment succeeds silently.
func (e *NestedEngine) RemoveNestedUserRole(ctx context.Context, hostID string, field SubEntityField, objectID, userID string) error {
	return e.removeRole(ctx, hostID, field, objectID, UserSubject(userID))
}

// RemoveNestedTeamRole removes the team's assignments on the addressed
// sub-object; removing an absent assignment succeeds silently.
func (e *NestedEngine) RemoveNestedTeamRole(ctx context.Context, hostID string, field SubEntityField, objectID, teamID string) error {
	return e.removeRole(ctx, hostID, field, objectID, TeamSubject(teamID))
}

func (e *NestedEngine) setRole(ctx context.Context, hostID string, field SubEntityField, objectID string, role governance.Role, subject Subject) error {
	cfg, ok := e.subEntities[field]
	if !ok {
		return apierror.NotFound()
	}
	if !cfg.Governance.HasRole(role) {
		return apierror.InvalidRole(string(role))
	}

	err := e.mutateSubACL(ctx, hostID, field, objectID, func(acl ACL) ACL {
		return acl.WithSubjectRole(subject, role)
	})
	if err != nil {
		return err
	}

	e.logger.WithFields(map[string]interface{}{
		"collection": e.collection,
		"hostId":     hostID,
		"field":      string(field),
		"objectId":   objectID,
		"userId":     subject.UserID,
		"teamId":     subject.TeamID,
		"role":       string(role),
	}).Debug("nested role assignment set")
	return nil
}

func (e *NestedEngine) removeRole(ctx context.Context, hostID string, field SubEntityField, objectID string, subject Subject) error {
	if _, ok := e.subEntities[field]; !ok {
		return apierror.NotFound()
	}

	err := e.mutateSubACL(ctx, hostID, field, objectID, func(acl ACL) ACL {
		return acl.WithoutSubject(subject)
	})
	if err != nil {
		return err
	}

	e.logger.WithFields(map[string]interface{}{
		"collection": e.collection,
		"hostId":     hostID,
		"field":      string(field),
		"objectId":   objectID,
		"userId":     subject.UserID,
		"teamId":     subject.TeamID,
	}).Debug("nested role assignment removed")
	return nil
}

// errSubObjectMissing aborts the store update when the host exists but
// the addressed sub-object does not. Both cases surface as NotFound.
var errSubObjectMissing = errors.New("sub-object not found")

func (e *NestedEngine) mutateSubACL(ctx context.Context, hostID string, field SubEntityField, objectID string, mutate func(ACL) ACL) error {
	_, err := e.store.FindOneAndUpdate(ctx, e.collection, hostID, func(doc []byte) ([]byte, error) {
		raw, err := decodeDocument(doc)
		if err != nil {
			return nil, err
		}

		found, err := mutateSubDocument(raw, string(field), objectID, func(sub map[string]json.RawMessage) error {
			acl, err := readACL(sub)
			if err != nil {
				return err
			}
			return writeACL(sub, mutate(acl))
		})
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, errSubObjectMissing
		}

		return encodeDocument(raw)
	})
	if errors.Is(err, docstore.ErrNotFound) || errors.Is(err, errSubObjectMissing) {
		return apierror.NotFound()
	}
	if err != nil {
		return fmt.Errorf("failed to update nested access control list: %w", err)
	}
	return nil
}

// IsAuthorizedNestedDoc evaluates the same contract as
// Engine.IsAuthorized against the addressed sub-object. A missing
// host, sub-object or unregistered field yields false, never an error.
func (e *NestedEngine) IsAuthorizedNestedDoc(ctx context.Context, hostID string, field SubEntityField, objectID string, possibleRoles []governance.Role, principal *Principal) (bool, error) {
	cfg, ok := e.subEntities[field]
	if !ok {
		return false, nil
	}

	if possibleRoles == nil && cfg.DefaultRoleMatcher != nil {
		ok, err := cfg.DefaultRoleMatcher(ctx, principal, hostID)
		if err != nil {
			return false, fmt.Errorf("default role matcher failed: %w", err)
		}
		if ok {
			return true, nil
		}
	}

	doc, err := e.store.FindOne(ctx, e.collection, hostID)
	if errors.Is(err, docstore.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load host object: %w", err)
	}

	raw, err := decodeDocument(doc)
	if err != nil {
		return false, err
	}
	acl, found, err := subDocumentACL(raw, string(field), objectID)
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

package orgs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/gatehouse-dev/gatehouse/pkg/accesscontrol"
	"github.com/gatehouse-dev/gatehouse/pkg/apierror"
	"github.com/gatehouse-dev/gatehouse/pkg/auth"
	"github.com/gatehouse-dev/gatehouse/pkg/docstore"
	"github.com/gatehouse-dev/gatehouse/pkg/observability"
	"github.com/gatehouse-dev/gatehouse/pkg/users"
)

// Service manages organizations, their sub-entities and memberships.
type Service struct {
	store   docstore.Store
	users   *users.Store
	engine  *accesscontrol.Engine
	nested  *accesscontrol.NestedEngine
	logger  *observability.Logger
	metrics *observability.Metrics
	tracer  trace.Tracer
	tokens  *auth.TokenGenerator
}

// NewService creates the organization service with the built-in role
// vocabularies. Additional sub-entity vocabularies can be registered
// with RegisterSubEntity before serving. metrics may be nil.
func NewService(store docstore.Store, userStore *users.Store, logger *observability.Logger, metrics *observability.Metrics) *Service {
	return &Service{
		store:   store,
		users:   userStore,
		engine:  accesscontrol.NewEngine(store, Collection, Governance(), MembershipMatcher, logger),
		nested:  accesscontrol.NewNestedEngine(store, Collection, SubEntityRegistry(), logger),
		logger:  logger,
		metrics: metrics,
		tracer:  otel.Tracer("github.com/gatehouse-dev/gatehouse/pkg/orgs"),
		tokens:  auth.NewTokenGenerator(),
	}
}

// Engine exposes the organization role assignment engine.
func (s *Service) Engine() *accesscontrol.Engine {
	return s.engine
}

// NestedEngine exposes the sub-entity role assignment engine.
func (s *Service) NestedEngine() *accesscontrol.NestedEngine {
	return s.nested
}

// RegisterSubEntity adds a custom sub-entity vocabulary, typically
// loaded from YAML at startup.
func (s *Service) RegisterSubEntity(field accesscontrol.SubEntityField, cfg accesscontrol.SubEntityConfig) {
	s.nested.Register(field, cfg)
}

// CreateOrganization creates an organization. The creator becomes a
// member and receives ORG_FULL_ADMIN.
func (s *Service) CreateOrganization(ctx context.Context, name, creatorID string) (*Organization, error) {
	ctx, span := s.tracer.Start(ctx, "orgs.CreateOrganization")
	defer span.End()

	now := time.Now().UTC()
	org := &Organization{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	span.SetAttributes(attribute.String("organization.id", org.ID))

	doc, err := json.Marshal(org)
	if err != nil {
		return nil, fmt.Errorf("failed to encode organization: %w", err)
	}
	if err := s.store.Save(ctx, Collection, org.ID, doc); err != nil {
		return nil, fmt.Errorf("failed to save organization: %w", err)
	}

	if err := s.users.AddOrganizationMembership(ctx, creatorID, org.ID); err != nil {
		return nil, fmt.Errorf("failed to add creator membership: %w", err)
	}
	if err := s.engine.SetUserRole(ctx, org.ID, RoleOrgFullAdmin, creatorID); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.OrganizationsTotal.Inc()
	}
	s.logger.WithFields(map[string]interface{}{
		"organizationId": org.ID,
		"name":           name,
		"creatorId":      creatorID,
	}).Info("organization created")
	return s.GetOrganization(ctx, org.ID)
}

// GetOrganization loads an organization by id.
func (s *Service) GetOrganization(ctx context.Context, id string) (*Organization, error) {
	doc, err := s.store.FindOne(ctx, Collection, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, apierror.NotFound()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load organization: %w", err)
	}

	var org Organization
	if err := json.Unmarshal(doc, &org); err != nil {
		return nil, fmt.Errorf("failed to decode organization: %w", err)
	}
	return &org, nil
}

// RenameOrganization updates the organization name.
func (s *Service) RenameOrganization(ctx context.Context, id, name string) error {
	return s.mutate(ctx, id, func(raw map[string]json.RawMessage) error {
		return setField(raw, "name", name)
	})
}

// DeleteOrganization removes the organization document. Role
// assignments disappear with it.
func (s *Service) DeleteOrganization(ctx context.Context, id string) error {
	ctx, span := s.tracer.Start(ctx, "orgs.DeleteOrganization")
	defer span.End()

	if err := s.store.Delete(ctx, Collection, id); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return apierror.NotFound()
		}
		return fmt.Errorf("failed to delete organization: %w", err)
	}

	if s.metrics != nil {
		s.metrics.OrganizationsTotal.Dec()
	}
	s.logger.WithField("organizationId", id).Info("organization deleted")
	return nil
}

// AddUser records the user as a member of the organization. Adding an
// existing member is a no-op.
func (s *Service) AddUser(ctx context.Context, organizationID, userID string) error {
	if _, err := s.GetOrganization(ctx, organizationID); err != nil {
		return err
	}
	return s.users.AddOrganizationMembership(ctx, userID, organizationID)
}

// RemoveUser removes the user's membership, team memberships and any
// role assignment on the organization itself.
func (s *Service) RemoveUser(ctx context.Context, organizationID, userID string) error {
	if err := s.engine.RemoveUserRole(ctx, organizationID, userID); err != nil {
		return err
	}
	return s.users.RemoveOrganizationMembership(ctx, userID, organizationID)
}

// CreateTeam appends a team to the organization.
func (s *Service) CreateTeam(ctx context.Context, organizationID, name string) (*Team, error) {
	team := Team{ID: uuid.NewString(), Name: name, CreatedAt: time.Now().UTC()}
	if err := s.appendSubEntity(ctx, organizationID, FieldTeams, team); err != nil {
		return nil, err
	}
	return &team, nil
}

// RenameTeam updates a team's name in place. Other fields of the team
// element, including its access control list, keep their exact bytes.
func (s *Service) RenameTeam(ctx context.Context, organizationID, teamID, name string) error {
	found := false
	err := s.mutate(ctx, organizationID, func(raw map[string]json.RawMessage) error {
		var list []json.RawMessage
		if current, ok := raw[string(FieldTeams)]; ok {
			if err := json.Unmarshal(current, &list); err != nil {
				return fmt.Errorf("failed to decode teams: %w", err)
			}
		}
		for i, element := range list {
			var team map[string]json.RawMessage
			if err := json.Unmarshal(element, &team); err != nil {
				return fmt.Errorf("failed to decode team element: %w", err)
			}
			var id string
			if err := json.Unmarshal(team["id"], &id); err != nil || id != teamID {
				continue
			}
			if err := setField(team, "name", name); err != nil {
				return err
			}
			encoded, err := json.Marshal(team)
			if err != nil {
				return fmt.Errorf("failed to encode team element: %w", err)
			}
			list[i] = encoded
			found = true
			break
		}
		if !found {
			return apierror.NotFound()
		}
		return setField(raw, string(FieldTeams), list)
	})
	if err != nil {
		return err
	}

	s.logger.WithFields(map[string]interface{}{
		"organizationId": organizationID,
		"teamId":         teamID,
		"name":           name,
	}).Info("team renamed")
	return nil
}

// CreateProjectGroup appends a project group to the organization.
func (s *Service) CreateProjectGroup(ctx context.Context, organizationID, name string) (*ProjectGroup, error) {
	group := ProjectGroup{ID: uuid.NewString(), Name: name, CreatedAt: time.Now().UTC()}
	if err := s.appendSubEntity(ctx, organizationID, FieldProjectGroups, group); err != nil {
		return nil, err
	}
	return &group, nil
}

// CreateRegisteredTheme appends a registered theme to the
// organization.
func (s *Service) CreateRegisteredTheme(ctx context.Context, organizationID, name string) (*RegisteredTheme, error) {
	theme := RegisteredTheme{ID: uuid.NewString(), Name: name, CreatedAt: time.Now().UTC()}
	if err := s.appendSubEntity(ctx, organizationID, FieldRegisteredThemes, theme); err != nil {
		return nil, err
	}
	return &theme, nil
}

// SubEntity is the generic shape of custom sub-entity elements
// created through CreateSubEntity.
type SubEntity struct {
	ID string `json:"id"`
	accesscontrol.Controlled
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// CreateSubEntity appends an element to a registered custom
// sub-collection. Unregistered fields yield NotFound.
func (s *Service) CreateSubEntity(ctx context.Context, organizationID string, field accesscontrol.SubEntityField, name string) (*SubEntity, error) {
	registered := false
	for _, f := range s.nested.Fields() {
		if f == field {
			registered = true
			break
		}
	}
	if !registered {
		return nil, apierror.NotFound()
	}

	entity := SubEntity{ID: uuid.NewString(), Name: name, CreatedAt: time.Now().UTC()}
	if err := s.appendSubEntity(ctx, organizationID, field, entity); err != nil {
		return nil, err
	}
	return &entity, nil
}

// AddUserToTeam records team membership for a user. The team must
// exist on the organization.
func (s *Service) AddUserToTeam(ctx context.Context, organizationID, teamID, userID string) error {
	org, err := s.GetOrganization(ctx, organizationID)
	if err != nil {
		return err
	}
	if !hasTeam(org, teamID) {
		return apierror.NotFound()
	}
	return s.users.AddTeamToMembership(ctx, userID, organizationID, teamID)
}

// RemoveUserFromTeam removes a user's team membership.
func (s *Service) RemoveUserFromTeam(ctx context.Context, organizationID, teamID, userID string) error {
	return s.users.RemoveTeamFromMembership(ctx, userID, organizationID, teamID)
}

func hasTeam(org *Organization, teamID string) bool {
	for _, team := range org.Teams {
		if team.ID == teamID {
			return true
		}
	}
	return false
}

// mutate applies a field-level update to the organization document.
// Fields the update does not touch keep their exact bytes, so custom
// sub-collections survive round trips.
func (s *Service) mutate(ctx context.Context, organizationID string, apply func(raw map[string]json.RawMessage) error) error {
	_, err := s.store.FindOneAndUpdate(ctx, Collection, organizationID, func(doc []byte) ([]byte, error) {
		var raw map[string]json.RawMessage
		if err := json.Unmarshal(doc, &raw); err != nil {
			return nil, fmt.Errorf("failed to decode organization: %w", err)
		}
		if raw == nil {
			raw = make(map[string]json.RawMessage)
		}
		if err := apply(raw); err != nil {
			return nil, err
		}
		if err := setField(raw, "updatedAt", time.Now().UTC()); err != nil {
			return nil, err
		}
		return json.Marshal(raw)
	})
	if errors.Is(err, docstore.ErrNotFound) {
		return apierror.NotFound()
	}
	if err != nil {
		return fmt.Errorf("failed to update organization: %w", err)
	}
	return nil
}

func (s *Service) appendSubEntity(ctx context.Context, organizationID string, field accesscontrol.SubEntityField, element interface{}) error {
	return s.mutate(ctx, organizationID, func(raw map[string]json.RawMessage) error {
		var list []json.RawMessage
		if current, ok := raw[string(field)]; ok {
			if err := json.Unmarshal(current, &list); err != nil {
				return fmt.Errorf("failed to decode %s: %w", field, err)
			}
		}
		encoded, err := json.Marshal(element)
		if err != nil {
			return fmt.Errorf("failed to encode %s element: %w", field, err)
		}
		list = append(list, encoded)
		return setField(raw, string(field), list)
	})
}

func setField(raw map[string]json.RawMessage, field string, value interface{}) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", field, err)
	}
	raw[field] = encoded
	return nil
}

package orgs

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/gatehouse-dev/gatehouse/pkg/accesscontrol"
	"github.com/gatehouse-dev/gatehouse/pkg/governance"
)

// Organization permissions.
const (
	PermEditOrganization      governance.Permission = "EDIT_ORGANIZATION"
	PermDeleteOrganization    governance.Permission = "DELETE_ORGANIZATION"
	PermEditMembership        governance.Permission = "EDIT_MEMBERSHIP"
	PermCreateTeam            governance.Permission = "CREATE_TEAM"
	PermCreateProjectGroup    governance.Permission = "CREATE_PROJECT_GROUP"
	PermCreateRegisteredTheme governance.Permission = "CREATE_REGISTERED_THEME"
)

// Sub-entity permissions.
const (
	PermEditTeam              governance.Permission = "EDIT_TEAM"
	PermDeleteTeam            governance.Permission = "DELETE_TEAM"
	PermEditProjectGroup      governance.Permission = "EDIT_PROJECT_GROUP"
	PermDeleteProjectGroup    governance.Permission = "DELETE_PROJECT_GROUP"
	PermEditRegisteredTheme   governance.Permission = "EDIT_REGISTERED_THEME"
	PermDeleteRegisteredTheme governance.Permission = "DELETE_REGISTERED_THEME"
)

// Roles.
const (
	RoleOrgAdmin             governance.Role = "ORG_ADMIN"
	RoleOrgFullAdmin         governance.Role = "ORG_FULL_ADMIN"
	RoleTeamAdmin            governance.Role = "TEAM_ADMIN"
	RoleProjectGroupAdmin    governance.Role = "PROJECT_GROUP_ADMIN"
	RoleRegisteredThemeAdmin governance.Role = "REGISTERED_THEME_ADMIN"
)

// Sub-entity fields of the organization document.
const (
	FieldTeams            accesscontrol.SubEntityField = "teams"
	FieldProjectGroups    accesscontrol.SubEntityField = "projectGroups"
	FieldRegisteredThemes accesscontrol.SubEntityField = "registeredThemes"
)

// Governance returns the organization role vocabulary. ORG_FULL_ADMIN
// is the only role allowed to delete the organization.
func Governance() *governance.Table {
	return governance.NewTable(map[governance.Role][]governance.Permission{
		RoleOrgAdmin: {
			PermEditOrganization,
			PermEditMembership,
			PermCreateTeam,
			PermCreateProjectGroup,
			PermCreateRegisteredTheme,
		},
		RoleOrgFullAdmin: {
			PermEditOrganization,
			PermDeleteOrganization,
			PermEditMembership,
			PermCreateTeam,
			PermCreateProjectGroup,
			PermCreateRegisteredTheme,
		},
	})
}

// TeamGovernance returns the team role vocabulary.
func TeamGovernance() *governance.Table {
	return governance.NewTable(map[governance.Role][]governance.Permission{
		RoleTeamAdmin: {PermEditTeam, PermDeleteTeam},
	})
}

// ProjectGroupGovernance returns the project group role vocabulary.
func ProjectGroupGovernance() *governance.Table {
	return governance.NewTable(map[governance.Role][]governance.Permission{
		RoleProjectGroupAdmin: {PermEditProjectGroup, PermDeleteProjectGroup},
	})
}

// RegisteredThemeGovernance returns the registered theme role
// vocabulary.
func RegisteredThemeGovernance() *governance.Table {
	return governance.NewTable(map[governance.Role][]governance.Permission{
		RoleRegisteredThemeAdmin: {PermEditRegisteredTheme, PermDeleteRegisteredTheme},
	})
}

// MembershipMatcher is the organization default-role matcher: plain
// membership is the implicit default access level.
func MembershipMatcher(ctx context.Context, principal *accesscontrol.Principal, organizationID string) (bool, error) {
	if principal == nil {
		return false, nil
	}
	return principal.IsMemberOf(organizationID), nil
}

// SubEntityRegistry returns the built-in sub-entity vocabularies. All
// sub-entities share the membership matcher on the host organization.
func SubEntityRegistry() map[accesscontrol.SubEntityField]accesscontrol.SubEntityConfig {
	return map[accesscontrol.SubEntityField]accesscontrol.SubEntityConfig{
		FieldTeams: {
			Governance:         TeamGovernance(),
			DefaultRoleMatcher: MembershipMatcher,
		},
		FieldProjectGroups: {
			Governance:         ProjectGroupGovernance(),
			DefaultRoleMatcher: MembershipMatcher,
		},
		FieldRegisteredThemes: {
			Governance:         RegisteredThemeGovernance(),
			DefaultRoleMatcher: MembershipMatcher,
		},
	}
}

// vocabularyFile is the YAML schema for custom sub-entity
// vocabularies:
//
//	subEntities:
//	  environments:
//	    roles:
//	      ENVIRONMENT_ADMIN:
//	        - EDIT_ENVIRONMENT
type vocabularyFile struct {
	SubEntities map[string]struct {
		Roles map[string][]string `yaml:"roles"`
	} `yaml:"subEntities"`
}

// ParseVocabularies reads custom sub-entity vocabularies from YAML.
// The returned configs carry the membership matcher, like the built-in
// sub-entities.
func ParseVocabularies(data []byte) (map[accesscontrol.SubEntityField]accesscontrol.SubEntityConfig, error) {
	var file vocabularyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse vocabulary file: %w", err)
	}

	out := make(map[accesscontrol.SubEntityField]accesscontrol.SubEntityConfig, len(file.SubEntities))
	for field, entry := range file.SubEntities {
		if len(entry.Roles) == 0 {
			return nil, fmt.Errorf("sub-entity %q declares no roles", field)
		}
		table := make(map[governance.Role][]governance.Permission, len(entry.Roles))
		for role, permissions := range entry.Roles {
			perms := make([]governance.Permission, 0, len(permissions))
			for _, permission := range permissions {
				perms = append(perms, governance.Permission(permission))
			}
			table[governance.Role(role)] = perms
		}
		out[accesscontrol.SubEntityField(field)] = accesscontrol.SubEntityConfig{
			Governance:         governance.NewTable(table),
			DefaultRoleMatcher: MembershipMatcher,
		}
	}
	return out, nil
}

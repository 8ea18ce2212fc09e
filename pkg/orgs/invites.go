package orgs

import (
	"context"
	"encoding/json"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/gatehouse-dev/gatehouse/pkg/apierror"
	"github.com/gatehouse-dev/gatehouse/pkg/governance"
	"github.com/gatehouse-dev/gatehouse/pkg/users"
)

const invitesField = "membershipInvites"

// AddMembershipInvite issues an invitation for an email address to
// join the organization with the given role. A pending invite for the
// same address is superseded: its token stops working and only the
// new invite remains.
func (s *Service) AddMembershipInvite(ctx context.Context, organizationID, email string, role governance.Role) (*MembershipInvite, error) {
	ctx, span := s.tracer.Start(ctx, "orgs.AddMembershipInvite")
	defer span.End()
	span.SetAttributes(attribute.String("organization.id", organizationID))

	if !validEmail(email) {
		return nil, apierror.InvalidEmailAddress()
	}
	// A role is optional: a role-less invite grants bare membership.
	if role != "" && !Governance().HasRole(role) {
		return nil, apierror.InvalidRole(string(role))
	}

	token, tokenHash, _, err := s.tokens.GenerateToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate invite token: %w", err)
	}

	// The stored copy carries the hash only; the plaintext token lives
	// on the returned invite and is gone once the response is sent.
	stored := MembershipInvite{
		ID:        uuid.NewString(),
		TokenHash: tokenHash,
		Email:     email,
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}
	invite := stored
	invite.Token = token

	superseded := false
	err = s.mutateInvites(ctx, organizationID, func(invites []MembershipInvite) ([]MembershipInvite, error) {
		kept := invites[:0]
		for _, pending := range invites {
			if strings.EqualFold(pending.Email, email) {
				superseded = true
				continue
			}
			kept = append(kept, pending)
		}
		return append(kept, stored), nil
	})
	if err != nil {
		return nil, err
	}

	s.recordInvite("issued")
	if superseded {
		s.recordInvite("superseded")
	}
	s.logger.WithFields(map[string]interface{}{
		"organizationId": organizationID,
		"inviteId":       invite.ID,
		"role":           string(role),
	}).Info("membership invite issued")
	return &invite, nil
}

// RemoveMembershipInvite revokes a pending invite. Unknown invite ids
// yield NotFound.
func (s *Service) RemoveMembershipInvite(ctx context.Context, organizationID, inviteID string) error {
	ctx, span := s.tracer.Start(ctx, "orgs.RemoveMembershipInvite")
	defer span.End()

	found := false
	err := s.mutateInvites(ctx, organizationID, func(invites []MembershipInvite) ([]MembershipInvite, error) {
		kept := invites[:0]
		for _, pending := range invites {
			if pending.ID == inviteID {
				found = true
				continue
			}
			kept = append(kept, pending)
		}
		if !found {
			return nil, apierror.NotFound()
		}
		return kept, nil
	})
	if err != nil {
		return err
	}

	s.recordInvite("revoked")
	s.logger.WithFields(map[string]interface{}{
		"organizationId": organizationID,
		"inviteId":       inviteID,
	}).Info("membership invite revoked")
	return nil
}

// AcceptMembershipInvite consumes a pending invite on behalf of the
// accepting user, located by hashing the presented token. The user's
// email must match the invited address (case-insensitively). When the
// invite carries a role the user already holds, acceptance fails; a
// role-less invite grants bare membership and never hits that check.
func (s *Service) AcceptMembershipInvite(ctx context.Context, organizationID, token string, user *users.User) error {
	ctx, span := s.tracer.Start(ctx, "orgs.AcceptMembershipInvite")
	defer span.End()
	span.SetAttributes(attribute.String("organization.id", organizationID))

	org, err := s.GetOrganization(ctx, organizationID)
	if err != nil {
		return err
	}

	tokenHash := s.tokens.HashToken(token)
	var invite *MembershipInvite
	for i := range org.MembershipInvites {
		if org.MembershipInvites[i].TokenHash == tokenHash {
			invite = &org.MembershipInvites[i]
			break
		}
	}
	if invite == nil {
		return apierror.NotFound()
	}

	if !strings.EqualFold(invite.Email, user.Email) {
		return apierror.InviteEmailMismatch()
	}

	if invite.Role != "" {
		alreadyHolds, err := s.engine.IsAuthorized(ctx, organizationID, []governance.Role{invite.Role}, user.Principal())
		if err != nil {
			return err
		}
		if alreadyHolds {
			return apierror.RoleAlreadyExists()
		}
	}

	if err := s.users.AddOrganizationMembership(ctx, user.ID, organizationID); err != nil {
		return err
	}
	if invite.Role != "" {
		if err := s.engine.SetUserRole(ctx, organizationID, invite.Role, user.ID); err != nil {
			return err
		}
	}

	inviteID := invite.ID
	err = s.mutateInvites(ctx, organizationID, func(invites []MembershipInvite) ([]MembershipInvite, error) {
		kept := invites[:0]
		for _, pending := range invites {
			if pending.ID != inviteID {
				kept = append(kept, pending)
			}
		}
		return kept, nil
	})
	if err != nil {
		return err
	}

	s.recordInvite("accepted")
	s.logger.WithFields(map[string]interface{}{
		"organizationId": organizationID,
		"inviteId":       inviteID,
		"userId":         user.ID,
		"role":           string(invite.Role),
	}).Info("membership invite accepted")
	return nil
}

func (s *Service) mutateInvites(ctx context.Context, organizationID string, apply func([]MembershipInvite) ([]MembershipInvite, error)) error {
	return s.mutate(ctx, organizationID, func(raw map[string]json.RawMessage) error {
		var invites []MembershipInvite
		if current, ok := raw[invitesField]; ok {
			if err := json.Unmarshal(current, &invites); err != nil {
				return fmt.Errorf("failed to decode membership invites: %w", err)
			}
		}
		invites, err := apply(invites)
		if err != nil {
			return err
		}
		return setField(raw, invitesField, invites)
	})
}

func (s *Service) recordInvite(transition string) {
	if s.metrics != nil {
		s.metrics.RecordInviteTransition(transition)
	}
}

func validEmail(email string) bool {
	if email == "" {
		return false
	}
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

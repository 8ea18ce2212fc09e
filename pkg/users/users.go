package users

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gatehouse-dev/gatehouse/pkg/accesscontrol"
	"github.com/gatehouse-dev/gatehouse/pkg/apierror"
	"github.com/gatehouse-dev/gatehouse/pkg/auth"
	"github.com/gatehouse-dev/gatehouse/pkg/docstore"
	"github.com/gatehouse-dev/gatehouse/pkg/observability"
)

const (
	// Collection is the document collection holding user records.
	Collection = "users"
	// tokenCollection indexes token hashes to user ids.
	tokenCollection = "user_tokens"
)

// User is a registered account.
type User struct {
	ID                      string                                 `json:"id"`
	Username                string                                 `json:"username"`
	Email                   string                                 `json:"email"`
	TokenHash               string                                 `json:"tokenHash,omitempty"`
	OrganizationMemberships []accesscontrol.OrganizationMembership `json:"organizationMemberships,omitempty"`
	CreatedAt               time.Time                              `json:"createdAt"`
	UpdatedAt               time.Time                              `json:"updatedAt"`
}

// Principal converts the user into the actor authorization decisions
// are made for.
func (u *User) Principal() *accesscontrol.Principal {
	return &accesscontrol.Principal{
		ID:                      u.ID,
		Email:                   u.Email,
		OrganizationMemberships: u.OrganizationMemberships,
	}
}

// tokenIndex is the document stored under a token hash.
type tokenIndex struct {
	UserID string `json:"userId"`
}

// Store persists users in the document store.
type Store struct {
	store  docstore.Store
	tokens *auth.TokenGenerator
	logger *observability.Logger
}

// NewStore creates a user store.
func NewStore(store docstore.Store, logger *observability.Logger) *Store {
	return &Store{
		store:  store,
		tokens: auth.NewTokenGenerator(),
		logger: logger,
	}
}

// Create persists a new user. A missing id is generated.
func (s *Store) Create(ctx context.Context, user *User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	doc, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}
	if err := s.store.Save(ctx, Collection, user.ID, doc); err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"userId":   user.ID,
		"username": user.Username,
	}).Debug("user created")
	return nil
}

// Get loads a user by id.
func (s *Store) Get(ctx context.Context, id string) (*User, error) {
	doc, err := s.store.FindOne(ctx, Collection, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, apierror.NotFound()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	var user User
	if err := json.Unmarshal(doc, &user); err != nil {
		return nil, fmt.Errorf("failed to decode user: %w", err)
	}
	return &user, nil
}

// Delete removes a user and its token index entry.
func (s *Store) Delete(ctx context.Context, id string) error {
	user, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if user.TokenHash != "" {
		if err := s.store.Delete(ctx, tokenCollection, user.TokenHash); err != nil && !errors.Is(err, docstore.ErrNotFound) {
			return fmt.Errorf("failed to delete token index: %w", err)
		}
	}
	if err := s.store.Delete(ctx, Collection, id); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return apierror.NotFound()
		}
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

// IssueToken generates a fresh API token for the user, stores its hash
// and returns the plaintext token exactly once. Any previously issued
// token is invalidated.
func (s *Store) IssueToken(ctx context.Context, userID string) (string, error) {
	token, tokenHash, _, err := s.tokens.GenerateToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	var previousHash string
	err = s.mutate(ctx, userID, func(user *User) error {
		previousHash = user.TokenHash
		user.TokenHash = tokenHash
		return nil
	})
	if err != nil {
		return "", err
	}

	if previousHash != "" {
		if err := s.store.Delete(ctx, tokenCollection, previousHash); err != nil && !errors.Is(err, docstore.ErrNotFound) {
			return "", fmt.Errorf("failed to invalidate previous token: %w", err)
		}
	}

	index, err := json.Marshal(tokenIndex{UserID: userID})
	if err != nil {
		return "", fmt.Errorf("failed to encode token index: %w", err)
	}
	if err := s.store.Save(ctx, tokenCollection, tokenHash, index); err != nil {
		return "", fmt.Errorf("failed to save token index: %w", err)
	}

	s.logger.WithField("userId", userID).Debug("token issued")
	return token, nil
}

// FindByToken resolves a plaintext bearer token to its user. Unknown
// or malformed tokens yield NotFound.
func (s *Store) FindByToken(ctx context.Context, token string) (*User, error) {
	if err := s.tokens.ValidateTokenFormat(token); err != nil {
		return nil, apierror.NotFound()
	}
	return s.FindByTokenHash(ctx, s.tokens.HashToken(token))
}

// FindByTokenHash resolves a token hash to its user.
func (s *Store) FindByTokenHash(ctx context.Context, tokenHash string) (*User, error) {
	doc, err := s.store.FindOne(ctx, tokenCollection, tokenHash)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, apierror.NotFound()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load token index: %w", err)
	}

	var index tokenIndex
	if err := json.Unmarshal(doc, &index); err != nil {
		return nil, fmt.Errorf("failed to decode token index: %w", err)
	}
	return s.Get(ctx, index.UserID)
}

// AddOrganizationMembership records that the user belongs to the
// organization. Adding an existing membership is a no-op.
func (s *Store) AddOrganizationMembership(ctx context.Context, userID, organizationID string) error {
	return s.mutate(ctx, userID, func(user *User) error {
		for _, membership := range user.OrganizationMemberships {
			if membership.OrganizationID == organizationID {
				return nil
			}
		}
		user.OrganizationMemberships = append(user.OrganizationMemberships, accesscontrol.OrganizationMembership{
			OrganizationID: organizationID,
		})
		return nil
	})
}

// AddTeamToMembership records the user as a member of one of the
// organization's teams, creating the organization membership when
// absent. Adding an existing team is a no-op.
func (s *Store) AddTeamToMembership(ctx context.Context, userID, organizationID, teamID string) error {
	return s.mutate(ctx, userID, func(user *User) error {
		for i, membership := range user.OrganizationMemberships {
			if membership.OrganizationID != organizationID {
				continue
			}
			for _, team := range membership.Teams {
				if team == teamID {
					return nil
				}
			}
			user.OrganizationMemberships[i].Teams = append(membership.Teams, teamID)
			return nil
		}
		user.OrganizationMemberships = append(user.OrganizationMemberships, accesscontrol.OrganizationMembership{
			OrganizationID: organizationID,
			Teams:          []string{teamID},
		})
		return nil
	})
}

// RemoveTeamFromMembership removes the user from one of the
// organization's teams. Removing an absent team is a no-op.
func (s *Store) RemoveTeamFromMembership(ctx context.Context, userID, organizationID, teamID string) error {
	return s.mutate(ctx, userID, func(user *User) error {
		for i, membership := range user.OrganizationMemberships {
			if membership.OrganizationID != organizationID {
				continue
			}
			teams := membership.Teams[:0]
			for _, team := range membership.Teams {
				if team != teamID {
					teams = append(teams, team)
				}
			}
			user.OrganizationMemberships[i].Teams = teams
			return nil
		}
		return nil
	})
}

// RemoveOrganizationMembership removes the user's membership,
// including its team list. Removing an absent membership is a no-op.
func (s *Store) RemoveOrganizationMembership(ctx context.Context, userID, organizationID string) error {
	return s.mutate(ctx, userID, func(user *User) error {
		memberships := user.OrganizationMemberships[:0]
		for _, membership := range user.OrganizationMemberships {
			if membership.OrganizationID != organizationID {
				memberships = append(memberships, membership)
			}
		}
		user.OrganizationMemberships = memberships
		return nil
	})
}

func (s *Store) mutate(ctx context.Context, userID string, apply func(*User) error) error {
	_, err := s.store.FindOneAndUpdate(ctx, Collection, userID, func(doc []byte) ([]byte, error) {
		var user User
		if err := json.Unmarshal(doc, &user); err != nil {
			return nil, fmt.Errorf("failed to decode user: %w", err)
		}
		if err := apply(&user); err != nil {
			return nil, err
		}
		user.UpdatedAt = time.Now().UTC()
		return json.Marshal(&user)
	})
	if errors.Is(err, docstore.ErrNotFound) {
		return apierror.NotFound()
	}
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

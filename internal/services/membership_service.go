package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"sitecraft/internal/common"
	"sitecraft/internal/models"
	"sitecraft/internal/repositories"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	invitePurpose = "invite"
	inviteTTL     = 7 * 24 * time.Hour
)

type InviteRequest struct {
	Email string      `json:"email" validate:"required,email"`
	Name  string      `json:"name" validate:"max=120"`
	Role  models.Role `json:"role" validate:"required,oneof=owner admin editor viewer"`
}

type InviteResult struct {
	Membership *models.Membership `json:"membership"`
	// InviteToken is delivered to the invitee out of band.
	InviteToken string    `json:"invite_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type AcceptInviteRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password,omitempty"`
	Name     string `json:"name,omitempty" validate:"max=120"`
}

type MembershipService interface {
	List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.Membership, error)
	Invite(ctx context.Context, tenantID uuid.UUID, actorRole models.Role, req *InviteRequest) (*InviteResult, error)
	Accept(ctx context.Context, req *AcceptInviteRequest) (*models.Membership, error)
	UpdateRole(ctx context.Context, tenantID uuid.UUID, actorRole models.Role, membershipID uuid.UUID, role models.Role) (*models.Membership, error)
	Revoke(ctx context.Context, tenantID uuid.UUID, actorRole models.Role, membershipID uuid.UUID) error
}

type inviteClaims struct {
	MembershipID string `json:"membership_id"`
	TenantID     string `json:"tenant_id"`
	Purpose      string `json:"purpose"`
	jwt.RegisteredClaims
}

type membershipService struct {
	users   repositories.UserRepository
	members repositories.MembershipRepository
	secret  []byte
	now     func() time.Time
}

func NewMembershipService(users repositories.UserRepository, members repositories.MembershipRepository, jwtSecret string) MembershipService {
	return &membershipService{users: users, members: members, secret: []byte(jwtSecret), now: time.Now}
}

func (s *membershipService) List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.Membership, error) {
	return s.members.ListByTenant(ctx, tenantID, limit, offset)
}

// canGrant reports whether actor may hand out role. Only owners grant owner.
func canGrant(actor, role models.Role) bool {
	if role == models.RoleOwner {
		return actor == models.RoleOwner
	}
	return actor.AtLeast(models.RoleAdmin) && actor.AtLeast(role)
}

func (s *membershipService) Invite(ctx context.Context, tenantID uuid.UUID, actorRole models.Role, req *InviteRequest) (*InviteResult, error) {
	if !req.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", common.ErrInvalidInput, req.Role)
	}
	if !canGrant(actorRole, req.Role) {
		return nil, fmt.Errorf("%w: %s cannot grant %s", common.ErrForbidden, actorRole, req.Role)
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: a valid email is required", common.ErrInvalidInput)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, common.ErrNotFound) {
		user = &models.User{
			ID:     uuid.New(),
			Email:  email,
			Name:   strings.TrimSpace(req.Name),
			Status: models.UserStatusDisabled,
		}
		if err := s.users.Create(ctx, user); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	membership, err := s.members.GetByTenantAndUser(ctx, tenantID, user.ID)
	switch {
	case err == nil && membership.Status != models.MembershipRevoked:
		return nil, fmt.Errorf("%w: %s is already %s", common.ErrConflict, email, membership.Status)
	case err == nil:
		if err := s.members.UpdateRole(ctx, tenantID, membership.ID, req.Role); err != nil {
			return nil, err
		}
		if err := s.members.UpdateStatus(ctx, tenantID, membership.ID, models.MembershipPending); err != nil {
			return nil, err
		}
		membership.Role = req.Role
		membership.Status = models.MembershipPending
	case errors.Is(err, common.ErrNotFound):
		membership = &models.Membership{
			ID:       uuid.New(),
			TenantID: tenantID,
			UserID:   user.ID,
			Role:     req.Role,
			Status:   models.MembershipPending,
			Email:    user.Email,
			UserName: user.Name,
		}
		if err := s.members.Create(ctx, membership); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	token, expires, err := s.signInvite(membership)
	if err != nil {
		return nil, err
	}
	log.Printf("DEBUG: invited %s to tenant %s as %s", email, tenantID, req.Role)
	return &InviteResult{Membership: membership, InviteToken: token, ExpiresAt: expires}, nil
}

func (s *membershipService) signInvite(m *models.Membership) (string, time.Time, error) {
	now := s.now()
	expires := now.Add(inviteTTL)
	claims := inviteClaims{
		MembershipID: m.ID.String(),
		TenantID:     m.TenantID.String(),
		Purpose:      invitePurpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    TokenIssuer,
			Audience:  jwt.ClaimStrings{InviteAudience},
			Subject:   m.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign invite: %w", err)
	}
	return token, expires, nil
}

func (s *membershipService) Accept(ctx context.Context, req *AcceptInviteRequest) (*models.Membership, error) {
	claims := &inviteClaims{}
	_, err := jwt.ParseWithClaims(req.Token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(InviteAudience), jwt.WithIssuer(TokenIssuer))
	if err != nil || claims.Purpose != invitePurpose {
		return nil, fmt.Errorf("%w: invalid invitation", common.ErrUnauthorized)
	}
	tenantID, err1 := uuid.Parse(claims.TenantID)
	membershipID, err2 := uuid.Parse(claims.MembershipID)
	if err1 != nil || err2 != nil {
		return nil, fmt.Errorf("%w: invalid invitation", common.ErrUnauthorized)
	}

	m, err := s.members.GetByID(ctx, tenantID, membershipID)
	if err != nil {
		return nil, err
	}
	if m.Status != models.MembershipPending {
		return nil, fmt.Errorf("%w: invitation is %s", common.ErrConflict, m.Status)
	}

	user, err := s.users.GetByID(ctx, m.UserID)
	if err != nil {
		return nil, err
	}
	if !user.HasPassword() {
		if len(req.Password) < minPasswordLength {
			return nil, fmt.Errorf("%w: password must be at least %d characters", common.ErrInvalidInput, minPasswordLength)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		if err := s.users.SetPassword(ctx, user.ID, string(hash)); err != nil {
			return nil, err
		}
		user.Status = models.UserStatusActive
	}
	if name := strings.TrimSpace(req.Name); name != "" && name != user.Name {
		user.Name = name
		if err := s.users.Update(ctx, user); err != nil {
			return nil, err
		}
	}

	if err := s.members.UpdateStatus(ctx, tenantID, m.ID, models.MembershipActive); err != nil {
		return nil, err
	}
	m.Status = models.MembershipActive
	return m, nil
}

func (s *membershipService) UpdateRole(ctx context.Context, tenantID uuid.UUID, actorRole models.Role, membershipID uuid.UUID, role models.Role) (*models.Membership, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", common.ErrInvalidInput, role)
	}
	m, err := s.members.GetByID(ctx, tenantID, membershipID)
	if err != nil {
		return nil, err
	}
	if m.Status == models.MembershipRevoked {
		return nil, fmt.Errorf("%w: membership is revoked", common.ErrConflict)
	}
	if !canGrant(actorRole, role) || (m.Role == models.RoleOwner && actorRole != models.RoleOwner) {
		return nil, fmt.Errorf("%w: %s cannot change %s to %s", common.ErrForbidden, actorRole, m.Role, role)
	}
	if m.Role == role {
		return m, nil
	}
	if m.Role == models.RoleOwner && m.Status == models.MembershipActive {
		if err := s.ensureAnotherOwner(ctx, tenantID); err != nil {
			return nil, err
		}
	}

	if err := s.members.UpdateRole(ctx, tenantID, m.ID, role); err != nil {
		return nil, err
	}
	m.Role = role
	return m, nil
}

func (s *membershipService) Revoke(ctx context.Context, tenantID uuid.UUID, actorRole models.Role, membershipID uuid.UUID) error {
	m, err := s.members.GetByID(ctx, tenantID, membershipID)
	if err != nil {
		return err
	}
	if m.Status == models.MembershipRevoked {
		return nil
	}
	if !actorRole.AtLeast(models.RoleAdmin) || (m.Role == models.RoleOwner && actorRole != models.RoleOwner) {
		return fmt.Errorf("%w: %s cannot revoke %s", common.ErrForbidden, actorRole, m.Role)
	}
	if m.Role == models.RoleOwner && m.Status == models.MembershipActive {
		if err := s.ensureAnotherOwner(ctx, tenantID); err != nil {
			return err
		}
	}
	return s.members.UpdateStatus(ctx, tenantID, m.ID, models.MembershipRevoked)
}

func (s *membershipService) ensureAnotherOwner(ctx context.Context, tenantID uuid.UUID) error {
	owners, err := s.members.CountActiveOwners(ctx, tenantID)
	if err != nil {
		return err
	}
	if owners <= 1 {
		return fmt.Errorf("%w: a tenant must keep at least one owner", common.ErrConflict)
	}
	return nil
}

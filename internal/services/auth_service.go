package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"sitecraft/internal/caching"
	"sitecraft/internal/common"
	"sitecraft/internal/models"
	"sitecraft/internal/repositories"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	TokenIssuer   = "sitecraft-auth"
	TokenAudience = "sitecraft-api"
	// InviteAudience keeps invitation tokens out of the API.
	InviteAudience = "sitecraft-invite"

	minPasswordLength = 8
)

// AuthService handles signup, login and JWT token management
type AuthService interface {
	Signup(ctx context.Context, req *SignupRequest) (*models.TokenResponse, error)
	Login(ctx context.Context, req *LoginRequest) (*models.TokenResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*models.TokenResponse, error)
	Logout(ctx context.Context, refreshToken string) error
	SwitchTenant(ctx context.Context, userID, tenantID uuid.UUID) (*models.TokenResponse, error)
	ValidateToken(ctx context.Context, token string) (*TokenClaims, error)
	Me(ctx context.Context, userID, tenantID uuid.UUID) (*MeResponse, error)
}

type SignupRequest struct {
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required,min=8"`
	Name       string `json:"name" validate:"required,max=120"`
	TenantName string `json:"tenant_name" validate:"required,max=120"`
	TenantSlug string `json:"tenant_slug,omitempty" validate:"omitempty,max=63"`
}

type LoginRequest struct {
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required"`
	TenantSlug string `json:"tenant_slug,omitempty"`
}

type MeResponse struct {
	User        *models.User         `json:"user"`
	Tenant      *models.Tenant       `json:"tenant"`
	Role        models.Role          `json:"role"`
	Memberships []*models.Membership `json:"memberships"`
}

// TokenClaims represents JWT claims
type TokenClaims struct {
	UserID   string `json:"user_id"`
	TenantID string `json:"tenant_id"`
	Role     string `json:"role"`
	TokenID  string `json:"token_id"`
	jwt.RegisteredClaims
}

type authService struct {
	tenants    repositories.TenantRepository
	users      repositories.UserRepository
	members    repositories.MembershipRepository
	cacheSvc   caching.CacheService
	jwtSecret  []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewAuthService(
	tenants repositories.TenantRepository,
	users repositories.UserRepository,
	members repositories.MembershipRepository,
	cacheSvc caching.CacheService,
	jwtSecret string,
	accessTTL, refreshTTL time.Duration,
) AuthService {
	return &authService{
		tenants:    tenants,
		users:      users,
		members:    members,
		cacheSvc:   cacheSvc,
		jwtSecret:  []byte(jwtSecret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

var errInvalidCredentials = fmt.Errorf("%w: invalid email or password", common.ErrUnauthorized)

func (s *authService) Signup(ctx context.Context, req *SignupRequest) (*models.TokenResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: a valid email is required", common.ErrInvalidInput)
	}
	if len(req.Password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", common.ErrInvalidInput, minPasswordLength)
	}
	tenantName := strings.TrimSpace(req.TenantName)
	if tenantName == "" {
		return nil, fmt.Errorf("%w: tenant_name is required", common.ErrInvalidInput)
	}
	slug := strings.TrimSpace(req.TenantSlug)
	if slug == "" {
		slug = common.Slugify(tenantName)
	}
	if err := common.ValidateSlug(slug, "tenant_slug"); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidInput, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	tenant := &models.Tenant{
		ID:     uuid.New(),
		Name:   tenantName,
		Slug:   slug,
		Status: models.TenantStatusActive,
		Plan:   PlanFree,
	}
	user := &models.User{
		ID:           uuid.New(),
		Email:        email,
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: string(hash),
		Status:       models.UserStatusActive,
	}
	membership := &models.Membership{
		ID:       uuid.New(),
		TenantID: tenant.ID,
		UserID:   user.ID,
		Role:     models.RoleOwner,
		Status:   models.MembershipActive,
	}

	if err := s.tenants.CreateWithOwner(ctx, tenant, user, membership); err != nil {
		return nil, err
	}
	log.Printf("DEBUG: tenant %s (%s) created by %s", tenant.ID, tenant.Slug, user.ID)

	return s.issueTokens(ctx, user.ID, tenant.ID, models.RoleOwner)
}

func (s *authService) Login(ctx context.Context, req *LoginRequest) (*models.TokenResponse, error) {
	user, err := s.users.GetByEmail(ctx, req.Email)
	if errors.Is(err, common.ErrNotFound) {
		return nil, errInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if user.Status != models.UserStatusActive || !user.HasPassword() {
		return nil, errInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, errInvalidCredentials
	}

	var membership *models.Membership
	if slug := strings.TrimSpace(req.TenantSlug); slug != "" {
		tenant, err := s.tenants.GetBySlug(ctx, slug)
		if errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("%w: not a member of %s", common.ErrForbidden, slug)
		}
		if err != nil {
			return nil, err
		}
		membership, err = s.activeMembership(ctx, tenant.ID, user.ID)
		if err != nil {
			return nil, err
		}
	} else {
		memberships, err := s.members.ListByUser(ctx, user.ID)
		if err != nil {
			return nil, err
		}
		if len(memberships) == 0 {
			return nil, fmt.Errorf("%w: no active membership", common.ErrForbidden)
		}
		membership = memberships[0]
	}

	return s.issueTokens(ctx, user.ID, membership.TenantID, membership.Role)
}

func (s *authService) activeMembership(ctx context.Context, tenantID, userID uuid.UUID) (*models.Membership, error) {
	m, err := s.members.GetByTenantAndUser(ctx, tenantID, userID)
	if errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("%w: not a member of this tenant", common.ErrForbidden)
	}
	if err != nil {
		return nil, err
	}
	if m.Status != models.MembershipActive {
		return nil, fmt.Errorf("%w: membership is %s", common.ErrForbidden, m.Status)
	}
	return m, nil
}

func (s *authService) Refresh(ctx context.Context, refreshToken string) (*models.TokenResponse, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("%w: refresh token is required", common.ErrUnauthorized)
	}
	tokenHash := hashToken(refreshToken)

	rec, err := s.cacheSvc.GetRefreshToken(ctx, tokenHash)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: invalid refresh token", common.ErrUnauthorized)
	}

	// Rotation: a refresh token is single use.
	if err := s.cacheSvc.DeleteRefreshToken(ctx, tokenHash); err != nil {
		log.Printf("WARN: delete rotated refresh token: %v", err)
	}
	if s.now().After(rec.ExpiresAt) {
		return nil, fmt.Errorf("%w: refresh token expired", common.ErrUnauthorized)
	}

	userID, err := uuid.Parse(rec.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid refresh token", common.ErrUnauthorized)
	}
	tenantID, err := uuid.Parse(rec.TenantID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid refresh token", common.ErrUnauthorized)
	}

	m, err := s.activeMembership(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	return s.issueTokens(ctx, userID, tenantID, m.Role)
}

func (s *authService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.cacheSvc.DeleteRefreshToken(ctx, hashToken(refreshToken))
}

func (s *authService) SwitchTenant(ctx context.Context, userID, tenantID uuid.UUID) (*models.TokenResponse, error) {
	m, err := s.activeMembership(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	return s.issueTokens(ctx, userID, tenantID, m.Role)
}

// ValidateToken validates JWT access token
func (s *authService) ValidateToken(ctx context.Context, token string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithAudience(TokenAudience), jwt.WithIssuer(TokenIssuer))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrUnauthorized, err)
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("%w: invalid token claims", common.ErrUnauthorized)
	}
	return claims, nil
}

func (s *authService) Me(ctx context.Context, userID, tenantID uuid.UUID) (*MeResponse, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	tenant, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	m, err := s.activeMembership(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	memberships, err := s.members.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &MeResponse{User: user, Tenant: tenant, Role: m.Role, Memberships: memberships}, nil
}

func (s *authService) issueTokens(ctx context.Context, userID, tenantID uuid.UUID, role models.Role) (*models.TokenResponse, error) {
	now := s.now()
	tokenID := uuid.NewString()

	claims := TokenClaims{
		UserID:   userID.String(),
		TenantID: tenantID.String(),
		Role:     string(role),
		TokenID:  tokenID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    TokenIssuer,
			Subject:   userID.String(),
			Audience:  jwt.ClaimStrings{TokenAudience},
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        tokenID,
		},
	}

	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign JWT: %w", err)
	}

	refreshToken, err := generateSecureToken()
	if err != nil {
		return nil, err
	}
	rec := &models.RefreshToken{
		UserID:    userID.String(),
		TenantID:  tenantID.String(),
		ExpiresAt: now.Add(s.refreshTTL),
	}
	if err := s.cacheSvc.SetRefreshToken(ctx, hashToken(refreshToken), rec, s.refreshTTL); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &models.TokenResponse{
		AccessToken:  accessToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.accessTTL.Seconds()),
		RefreshToken: refreshToken,
		UserID:       userID.String(),
		TenantID:     tenantID.String(),
		Role:         string(role),
		TokenID:      tokenID,
		IssuedAt:     now,
	}, nil
}

// generateSecureToken generates a cryptographically secure random token
func generateSecureToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// hashToken creates a SHA-256 hash of the token for storage
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

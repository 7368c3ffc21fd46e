package repositories

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"sitecraft/internal/common"
	"sitecraft/internal/models"

	"github.com/google/uuid"
	pgx "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type TenantRepoTestSuite struct {
	suite.Suite
	mock    pgxmock.PgxPoolIface
	tenants TenantRepository
	members MembershipRepository
	ctx     context.Context
}

func (s *TenantRepoTestSuite) SetupTest() {
	mock, err := pgxmock.NewPool()
	require.NoError(s.T(), err)
	s.mock = mock
	s.tenants = NewTenantRepo(mock)
	s.members = NewMembershipRepo(mock)
	s.ctx = context.Background()
}

func (s *TenantRepoTestSuite) TearDownTest() {
	assert.NoError(s.T(), s.mock.ExpectationsWereMet())
	s.mock.Close()
}

func TestTenantRepoTestSuite(t *testing.T) {
	suite.Run(t, new(TenantRepoTestSuite))
}

func (s *TenantRepoTestSuite) signupRows() (*models.Tenant, *models.User, *models.Membership) {
	tenant := &models.Tenant{ID: uuid.New(), Name: "Acme", Slug: "acme", Status: models.TenantStatusActive, Plan: "free"}
	user := &models.User{ID: uuid.New(), Email: "owner@acme.test", Name: "Owner", PasswordHash: "hash", Status: models.UserStatusActive}
	membership := &models.Membership{ID: uuid.New(), TenantID: tenant.ID, UserID: user.ID, Role: models.RoleOwner, Status: models.MembershipActive}
	return tenant, user, membership
}

func (s *TenantRepoTestSuite) TestCreateWithOwner_CommitsAllThreeRows() {
	tenant, user, membership := s.signupRows()

	s.mock.ExpectBegin()
	s.mock.ExpectExec(regexp.QuoteMeta("INSERT INTO tenants")).
		WithArgs(tenant.ID, "Acme", "acme", models.TenantStatusActive, "free").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	s.mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs(user.ID, user.Email, user.Name, "hash", models.UserStatusActive).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	s.mock.ExpectExec(regexp.QuoteMeta("INSERT INTO memberships")).
		WithArgs(membership.ID, tenant.ID, user.ID, "owner", models.MembershipActive).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	s.mock.ExpectCommit()

	err := s.tenants.CreateWithOwner(s.ctx, tenant, user, membership)
	assert.NoError(s.T(), err)
}

func (s *TenantRepoTestSuite) TestCreateWithOwner_DuplicateEmailRollsBack() {
	tenant, user, membership := s.signupRows()

	s.mock.ExpectBegin()
	s.mock.ExpectExec(regexp.QuoteMeta("INSERT INTO tenants")).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	s.mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})
	s.mock.ExpectRollback()

	err := s.tenants.CreateWithOwner(s.ctx, tenant, user, membership)
	assert.ErrorIs(s.T(), err, common.ErrConflict)
	assert.Contains(s.T(), err.Error(), "users_email_key")
}

func (s *TenantRepoTestSuite) TestCreateWithOwner_BeginFails() {
	tenant, user, membership := s.signupRows()
	s.mock.ExpectBegin().WillReturnError(errors.New("pool exhausted"))

	err := s.tenants.CreateWithOwner(s.ctx, tenant, user, membership)
	assert.ErrorContains(s.T(), err, "pool exhausted")
}

func (s *TenantRepoTestSuite) TestGetBySlug() {
	now := time.Now()
	id := uuid.New()
	customer := "cus_123"
	s.mock.ExpectQuery(regexp.QuoteMeta("FROM tenants WHERE slug = $1")).
		WithArgs("acme").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "slug", "status", "plan", "stripe_customer_id", "created_at", "updated_at"}).
			AddRow(id, "Acme", "acme", models.TenantStatusActive, "starter", &customer, now, now))

	tenant, err := s.tenants.GetBySlug(s.ctx, "acme")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), id, tenant.ID)
	assert.Equal(s.T(), "starter", tenant.Plan)
	require.NotNil(s.T(), tenant.StripeCustomerID)
	assert.Equal(s.T(), "cus_123", *tenant.StripeCustomerID)
}

func (s *TenantRepoTestSuite) TestGetByStripeCustomer_NotFound() {
	s.mock.ExpectQuery(regexp.QuoteMeta("WHERE stripe_customer_id = $1")).
		WithArgs("cus_missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.tenants.GetByStripeCustomer(s.ctx, "cus_missing")
	assert.ErrorIs(s.T(), err, common.ErrNotFound)
}

func (s *TenantRepoTestSuite) TestUpdateBilling() {
	id := uuid.New()
	s.mock.ExpectExec(regexp.QuoteMeta("SET plan = $1, status = $2")).
		WithArgs("growth", models.TenantStatusActive, id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	assert.NoError(s.T(), s.tenants.UpdateBilling(s.ctx, id, "growth", models.TenantStatusActive))
}

func (s *TenantRepoTestSuite) TestMembershipCountActiveOwners() {
	tenantID := uuid.New()
	s.mock.ExpectQuery(regexp.QuoteMeta("role = 'owner' AND status = 'active'")).
		WithArgs(tenantID).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))

	n, err := s.members.CountActiveOwners(s.ctx, tenantID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 1, n)
}

func (s *TenantRepoTestSuite) TestMembershipListByTenant_JoinsUsers() {
	tenantID := uuid.New()
	now := time.Now()
	s.mock.ExpectQuery(regexp.QuoteMeta("FROM memberships m JOIN users u ON u.id = m.user_id")).
		WithArgs(tenantID, 20, 0).
		WillReturnRows(pgxmock.NewRows([]string{"id", "tenant_id", "user_id", "role", "status", "created_at", "updated_at", "email", "name"}).
			AddRow(uuid.New(), tenantID, uuid.New(), "owner", models.MembershipActive, now, now, "a@acme.test", "A").
			AddRow(uuid.New(), tenantID, uuid.New(), "editor", models.MembershipPending, now, now, "b@acme.test", "B"))

	members, err := s.members.ListByTenant(s.ctx, tenantID, 20, 0)
	require.NoError(s.T(), err)
	require.Len(s.T(), members, 2)
	assert.Equal(s.T(), models.RoleOwner, members[0].Role)
	assert.Equal(s.T(), "b@acme.test", members[1].Email)
}

package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"sitecraft/internal/common"
	"sitecraft/internal/compiler"
	"sitecraft/internal/middleware"
	"sitecraft/internal/models"
	"sitecraft/internal/services"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testSecret = "handlers-test-secret"

func newEcho() *echo.Echo {
	e := echo.New()
	e.Validator = NewValidator()
	return e
}

// newContext builds a request whose context already carries the caller identity.
func newContext(e *echo.Echo, method, target, body string, userID, tenantID uuid.UUID) (echo.Context, *httptest.ResponseRecorder) {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if userID != uuid.Nil {
		req = req.WithContext(common.WithIdentity(req.Context(), userID, tenantID))
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) common.ErrorResponse {
	t.Helper()
	var resp common.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func httpStatus(t *testing.T, err error) int {
	t.Helper()
	var he *echo.HTTPError
	require.True(t, errors.As(err, &he), "expected *echo.HTTPError, got %v", err)
	return he.Code
}

func TestSignup_ValidationUsesJSONFieldNames(t *testing.T) {
	e := newEcho()
	auth := &MockAuthService{}
	h := NewAuthHandlers(auth)

	c, rec := newContext(e, http.MethodPost, "/v1/auth/signup",
		`{"email":"not-an-email","password":"longenough","name":"Ada","tenant_name":"Acme"}`, uuid.Nil, uuid.Nil)
	require.NoError(t, h.Signup(c))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	assert.Equal(t, "must be a valid email address", resp.Error.Details["email"])
	auth.AssertNotCalled(t, "Signup", mock.Anything, mock.Anything)
}

func TestSignup_Created(t *testing.T) {
	e := newEcho()
	auth := &MockAuthService{}
	h := NewAuthHandlers(auth)

	tokens := &models.TokenResponse{AccessToken: "access", RefreshToken: "refresh", TokenType: "Bearer"}
	auth.On("Signup", mock.Anything, mock.MatchedBy(func(r *services.SignupRequest) bool {
		return r.Email == "ada@example.com" && r.TenantName == "Acme"
	})).Return(tokens, nil)

	c, rec := newContext(e, http.MethodPost, "/v1/auth/signup",
		`{"email":"ada@example.com","password":"longenough","name":"Ada","tenant_name":"Acme"}`, uuid.Nil, uuid.Nil)
	require.NoError(t, h.Signup(c))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"access_token":"access"`)
	auth.AssertExpectations(t)
}

func TestLogin_BadCredentials(t *testing.T) {
	e := newEcho()
	auth := &MockAuthService{}
	h := NewAuthHandlers(auth)

	auth.On("Login", mock.Anything, mock.Anything).
		Return(nil, common.ErrUnauthorized)

	c, rec := newContext(e, http.MethodPost, "/v1/auth/login",
		`{"email":"ada@example.com","password":"wrong"}`, uuid.Nil, uuid.Nil)
	require.NoError(t, h.Login(c))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", decodeError(t, rec).Error.Code)
}

func TestLogin_MalformedBody(t *testing.T) {
	e := newEcho()
	h := NewAuthHandlers(&MockAuthService{})

	c, _ := newContext(e, http.MethodPost, "/v1/auth/login", `{"email":`, uuid.Nil, uuid.Nil)
	err := h.Login(c)
	assert.Equal(t, http.StatusBadRequest, httpStatus(t, err))
}

func TestCreateSite_Accepted(t *testing.T) {
	e := newEcho()
	sites := &MockSiteService{}
	h := NewSiteHandlers(sites)
	userID, tenantID := uuid.New(), uuid.New()

	siteID, jobID := uuid.New(), uuid.New()
	sites.On("Create", mock.Anything, tenantID, userID, mock.MatchedBy(func(r *services.CreateSiteRequest) bool {
		return r.Name == "Bakery" && r.Business.Industry == "food"
	})).Return(&services.SiteWithJob{
		Site: &models.Site{ID: siteID, TenantID: tenantID, Name: "Bakery", Status: models.SiteStatusPending},
		Job:  &models.Job{ID: jobID, TenantID: tenantID, Type: models.JobTypeProvision, Status: models.JobStatusQueued},
	}, nil)

	c, rec := newContext(e, http.MethodPost, "/v1/sites",
		`{"name":"Bakery","business":{"industry":"food"}}`, userID, tenantID)
	require.NoError(t, h.CreateSite(c))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	var body services.SiteWithJob
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, siteID, body.Site.ID)
	assert.Equal(t, jobID, body.Job.ID)
	sites.AssertExpectations(t)
}

func TestCreateSite_PlanLimit(t *testing.T) {
	e := newEcho()
	sites := &MockSiteService{}
	h := NewSiteHandlers(sites)
	userID, tenantID := uuid.New(), uuid.New()

	sites.On("Create", mock.Anything, tenantID, userID, mock.Anything).
		Return(nil, common.ErrPlanLimit)

	c, rec := newContext(e, http.MethodPost, "/v1/sites", `{"name":"Bakery"}`, userID, tenantID)
	require.NoError(t, h.CreateSite(c))

	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Equal(t, "PAYMENT_REQUIRED", decodeError(t, rec).Error.Code)
}

func TestCreateSite_RequiresIdentity(t *testing.T) {
	e := newEcho()
	h := NewSiteHandlers(&MockSiteService{})

	c, _ := newContext(e, http.MethodPost, "/v1/sites", `{"name":"Bakery"}`, uuid.Nil, uuid.Nil)
	err := h.CreateSite(c)
	assert.Equal(t, http.StatusUnauthorized, httpStatus(t, err))
}

func TestListSites_ClampsLimit(t *testing.T) {
	e := newEcho()
	sites := &MockSiteService{}
	h := NewSiteHandlers(sites)
	userID, tenantID := uuid.New(), uuid.New()

	sites.On("List", mock.Anything, tenantID, 100, 40).Return([]*models.Site{}, nil)

	c, rec := newContext(e, http.MethodGet, "/v1/sites?limit=500&offset=40", "", userID, tenantID)
	require.NoError(t, h.ListSites(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"limit":100`)
	sites.AssertExpectations(t)
}

func TestGetSite_InvalidID(t *testing.T) {
	e := newEcho()
	h := NewSiteHandlers(&MockSiteService{})

	c, _ := newContext(e, http.MethodGet, "/v1/sites/nope", "", uuid.New(), uuid.New())
	c.SetParamNames("id")
	c.SetParamValues("nope")
	err := h.GetSite(c)
	assert.Equal(t, http.StatusBadRequest, httpStatus(t, err))
}

func TestGetSite_NotFound(t *testing.T) {
	e := newEcho()
	sites := &MockSiteService{}
	h := NewSiteHandlers(sites)
	userID, tenantID, siteID := uuid.New(), uuid.New(), uuid.New()

	sites.On("Get", mock.Anything, tenantID, siteID).Return(nil, common.ErrNotFound)

	c, rec := newContext(e, http.MethodGet, "/v1/sites/"+siteID.String(), "", userID, tenantID)
	c.SetParamNames("id")
	c.SetParamValues(siteID.String())
	require.NoError(t, h.GetSite(c))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "site not found", decodeError(t, rec).Error.Message)
}

func TestPublish_WithoutBodyUsesLatestVersion(t *testing.T) {
	e := newEcho()
	sites := &MockSiteService{}
	h := NewSiteHandlers(sites)
	userID, tenantID, siteID := uuid.New(), uuid.New(), uuid.New()

	sites.On("RequestPublish", mock.Anything, tenantID, userID, siteID, (*uuid.UUID)(nil)).
		Return(&models.Job{ID: uuid.New(), Type: models.JobTypePublish}, nil)

	c, rec := newContext(e, http.MethodPost, "/v1/sites/"+siteID.String()+"/publish", "", userID, tenantID)
	c.SetParamNames("id")
	c.SetParamValues(siteID.String())
	require.NoError(t, h.Publish(c))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	sites.AssertExpectations(t)
}

func TestPublish_SpecificVersion(t *testing.T) {
	e := newEcho()
	sites := &MockSiteService{}
	h := NewSiteHandlers(sites)
	userID, tenantID, siteID, versionID := uuid.New(), uuid.New(), uuid.New(), uuid.New()

	sites.On("RequestPublish", mock.Anything, tenantID, userID, siteID, mock.MatchedBy(func(v *uuid.UUID) bool {
		return v != nil && *v == versionID
	})).Return(&models.Job{ID: uuid.New(), Type: models.JobTypePublish}, nil)

	c, rec := newContext(e, http.MethodPost, "/v1/sites/"+siteID.String()+"/publish",
		`{"version_id":"`+versionID.String()+`"}`, userID, tenantID)
	c.SetParamNames("id")
	c.SetParamValues(siteID.String())
	require.NoError(t, h.Publish(c))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	sites.AssertExpectations(t)
}

func TestCreateVersion_ReportsEveryProblem(t *testing.T) {
	e := newEcho()
	sites := &MockSiteService{}
	h := NewSiteHandlers(sites)
	userID, tenantID, siteID := uuid.New(), uuid.New(), uuid.New()

	verr := &compiler.ValidationError{Problems: []compiler.Problem{
		{Path: "pages[0].slug", Message: "is required"},
		{Path: "pages[0].title", Message: "is required"},
	}}
	sites.On("CreateVersion", mock.Anything, tenantID, userID, siteID, mock.Anything).Return(nil, verr)

	c, rec := newContext(e, http.MethodPost, "/v1/sites/"+siteID.String()+"/versions",
		`{"content":{"pages":[{"slug":"","title":""}]}}`, userID, tenantID)
	c.SetParamNames("id")
	c.SetParamValues(siteID.String())
	require.NoError(t, h.CreateVersion(c))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body struct {
		Error struct {
			Code     string             `json:"code"`
			Problems []compiler.Problem `json:"problems"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "VALIDATION_ERROR", body.Error.Code)
	assert.Len(t, body.Error.Problems, 2)
}

func TestCreateVersion_MissingContent(t *testing.T) {
	e := newEcho()
	sites := &MockSiteService{}
	h := NewSiteHandlers(sites)
	siteID := uuid.New()

	c, rec := newContext(e, http.MethodPost, "/v1/sites/"+siteID.String()+"/versions", `{}`, uuid.New(), uuid.New())
	c.SetParamNames("id")
	c.SetParamValues(siteID.String())
	require.NoError(t, h.CreateVersion(c))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "is required", decodeError(t, rec).Error.Details["content"])
	sites.AssertNotCalled(t, "CreateVersion", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPreview_SetsContentSecurityPolicy(t *testing.T) {
	e := newEcho()
	sites := &MockSiteService{}
	h := NewSiteHandlers(sites)
	userID, tenantID, siteID, versionID := uuid.New(), uuid.New(), uuid.New(), uuid.New()

	sites.On("Preview", mock.Anything, tenantID, siteID, versionID).Return("<html><body>hi</body></html>", nil)

	c, rec := newContext(e, http.MethodGet, "/", "", userID, tenantID)
	c.SetParamNames("id", "versionId")
	c.SetParamValues(siteID.String(), versionID.String())
	require.NoError(t, h.Preview(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "default-src 'none'")
	assert.Contains(t, rec.Body.String(), "<body>hi</body>")
}

func TestUploadMedia_SniffsContentType(t *testing.T) {
	e := newEcho()
	sites := &MockSiteService{}
	h := NewSiteHandlers(sites)
	userID, tenantID, siteID := uuid.New(), uuid.New(), uuid.New()

	png := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 32)...)
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "../../logo.png")
	require.NoError(t, err)
	_, err = fw.Write(png)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	sites.On("UploadMedia", mock.Anything, tenantID, siteID, "logo.png", "image/png", int64(len(png)), mock.Anything).
		Return(&services.MediaUpload{Key: "media/logo.png", URL: "https://cdn.example.com/media/logo.png"}, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/sites/"+siteID.String()+"/media", &buf)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	req = req.WithContext(common.WithIdentity(req.Context(), userID, tenantID))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(siteID.String())

	require.NoError(t, h.UploadMedia(c))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), "media/logo.png")
	sites.AssertExpectations(t)
}

func TestUploadMedia_MissingFile(t *testing.T) {
	e := newEcho()
	h := NewSiteHandlers(&MockSiteService{})
	siteID := uuid.New()

	c, rec := newContext(e, http.MethodPost, "/", "", uuid.New(), uuid.New())
	c.SetParamNames("id")
	c.SetParamValues(siteID.String())
	require.NoError(t, h.UploadMedia(c))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "is required", decodeError(t, rec).Error.Details["file"])
}

func TestListJobs_FiltersBySite(t *testing.T) {
	e := newEcho()
	jobs := &MockJobService{}
	h := NewJobHandlers(jobs)
	userID, tenantID, siteID := uuid.New(), uuid.New(), uuid.New()

	jobs.On("List", mock.Anything, tenantID, mock.MatchedBy(func(id *uuid.UUID) bool {
		return id != nil && *id == siteID
	}), 20, 0).Return([]*models.Job{{ID: uuid.New()}}, nil)

	c, rec := newContext(e, http.MethodGet, "/v1/jobs?site_id="+siteID.String(), "", userID, tenantID)
	require.NoError(t, h.ListJobs(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	jobs.AssertExpectations(t)
}

func TestListJobs_BadSiteFilter(t *testing.T) {
	e := newEcho()
	h := NewJobHandlers(&MockJobService{})

	c, rec := newContext(e, http.MethodGet, "/v1/jobs?site_id=abc", "", uuid.New(), uuid.New())
	require.NoError(t, h.ListJobs(c))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckout_RejectsUnknownPlan(t *testing.T) {
	e := newEcho()
	billing := &MockBillingService{}
	h := NewBillingHandlers(billing)

	c, rec := newContext(e, http.MethodPost, "/v1/billing/checkout", `{"plan":"enterprise"}`, uuid.New(), uuid.New())
	require.NoError(t, h.Checkout(c))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "must be one of: starter growth agency", decodeError(t, rec).Error.Details["plan"])
}

func TestCheckout_ReturnsURL(t *testing.T) {
	e := newEcho()
	billing := &MockBillingService{}
	h := NewBillingHandlers(billing)
	userID, tenantID := uuid.New(), uuid.New()

	billing.On("CreateCheckout", mock.Anything, tenantID, userID, "growth").
		Return("https://checkout.stripe.com/c/pay/cs_test", nil)

	c, rec := newContext(e, http.MethodPost, "/v1/billing/checkout", `{"plan":"growth"}`, userID, tenantID)
	require.NoError(t, h.Checkout(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "cs_test")
}

func TestStripeWebhook(t *testing.T) {
	tests := []struct {
		name      string
		signature string
		svcErr    error
		wantCode  int
	}{
		{name: "missing signature", wantCode: http.StatusBadRequest},
		{name: "bad signature", signature: "t=1,v1=bad", svcErr: common.ErrUnauthorized, wantCode: http.StatusBadRequest},
		{name: "processing failure", signature: "t=1,v1=ok", svcErr: errors.New("db down"), wantCode: http.StatusInternalServerError},
		{name: "received", signature: "t=1,v1=ok", wantCode: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEcho()
			billing := &MockBillingService{}
			h := NewBillingHandlers(billing)
			payload := `{"id":"evt_1","type":"invoice.paid"}`
			if tt.signature != "" {
				billing.On("HandleWebhook", mock.Anything, []byte(payload), tt.signature).Return(tt.svcErr)
			}

			req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/stripe", strings.NewReader(payload))
			if tt.signature != "" {
				req.Header.Set("Stripe-Signature", tt.signature)
			}
			rec := httptest.NewRecorder()
			err := h.StripeWebhook(e.NewContext(req, rec))

			if tt.wantCode == http.StatusOK {
				require.NoError(t, err)
				assert.Equal(t, http.StatusOK, rec.Code)
				assert.Contains(t, rec.Body.String(), "received")
			} else {
				assert.Equal(t, tt.wantCode, httpStatus(t, err))
			}
			billing.AssertExpectations(t)
		})
	}
}

func TestHealthHandlers(t *testing.T) {
	e := newEcho()

	healthy := NewHealthHandlers("1.2.3", fakePinger{}, fakePinger{}, nil)
	c, rec := newContext(e, http.MethodGet, "/health/ready", "", uuid.Nil, uuid.Nil)
	require.NoError(t, healthy.ReadinessCheck(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	degraded := NewHealthHandlers("1.2.3", fakePinger{}, fakePinger{err: errors.New("redis down")}, nil)
	c, rec = newContext(e, http.MethodGet, "/health/ready", "", uuid.Nil, uuid.Nil)
	require.NoError(t, degraded.ReadinessCheck(c))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	c, rec = newContext(e, http.MethodGet, "/health", "", uuid.Nil, uuid.Nil)
	require.NoError(t, degraded.HealthCheck(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "degraded", status.Status)
	assert.Equal(t, "1.2.3", status.Version)
	assert.NotContains(t, status.Services, "storage")
}

type routerFixture struct {
	e       *echo.Echo
	rbac    *MockRBACService
	sites   *MockSiteService
	billing *MockBillingService
}

func newRouter(t *testing.T) *routerFixture {
	t.Helper()
	verifier, err := middleware.NewTokenVerifier(testSecret, "")
	require.NoError(t, err)

	f := &routerFixture{
		e:       newEcho(),
		rbac:    &MockRBACService{},
		sites:   &MockSiteService{},
		billing: &MockBillingService{},
	}
	routes := &Routes{
		Health:   NewHealthHandlers("test", fakePinger{}, nil, nil),
		Auth:     NewAuthHandlers(&MockAuthService{}),
		Tenant:   NewTenantHandlers(&MockTenantService{}, &MockMembershipService{}),
		Sites:    NewSiteHandlers(f.sites),
		Jobs:     NewJobHandlers(&MockJobService{}),
		Billing:  NewBillingHandlers(f.billing),
		Verifier: verifier,
		RBAC:     middleware.NewRBACMiddleware(f.rbac),
		Version:  middleware.NewVersionMiddleware(),
	}
	routes.Register(f.e)
	return f
}

func bearer(t *testing.T, userID, tenantID uuid.UUID) string {
	t.Helper()
	claims := services.TokenClaims{
		UserID:   userID.String(),
		TenantID: tenantID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    services.TokenIssuer,
			Audience:  jwt.ClaimStrings{services.TokenAudience},
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + signed
}

func (f *routerFixture) serve(method, path, body, auth string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if auth != "" {
		req.Header.Set(echo.HeaderAuthorization, auth)
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func TestRoutes_RequireToken(t *testing.T) {
	f := newRouter(t)

	rec := f.serve(http.MethodGet, "/v1/sites", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.serve(http.MethodGet, "/health/live", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRoutes_UnknownVersion(t *testing.T) {
	f := newRouter(t)

	rec := f.serve(http.MethodGet, "/v9/sites", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Unsupported API version")
}

func TestRoutes_ViewerCannotCreateSite(t *testing.T) {
	f := newRouter(t)
	userID, tenantID := uuid.New(), uuid.New()

	f.rbac.On("RoleFor", mock.Anything, userID, tenantID).Return(models.RoleViewer, nil)
	f.rbac.On("TenantActive", mock.Anything, tenantID).Return(true, nil)

	rec := f.serve(http.MethodPost, "/v1/sites", `{"name":"Bakery"}`, bearer(t, userID, tenantID))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	f.sites.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRoutes_SuspendedTenantCanReadButNotWrite(t *testing.T) {
	f := newRouter(t)
	userID, tenantID := uuid.New(), uuid.New()

	f.rbac.On("RoleFor", mock.Anything, userID, tenantID).Return(models.RoleOwner, nil)
	f.rbac.On("TenantActive", mock.Anything, tenantID).Return(false, nil)
	f.sites.On("List", mock.Anything, tenantID, 20, 0).Return([]*models.Site{}, nil)

	rec := f.serve(http.MethodGet, "/v1/sites", "", bearer(t, userID, tenantID))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "v1", rec.Header().Get("X-API-Version"))

	rec = f.serve(http.MethodPost, "/v1/sites", `{"name":"Bakery"}`, bearer(t, userID, tenantID))
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	f.sites.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRoutes_NonMemberForbidden(t *testing.T) {
	f := newRouter(t)
	userID, tenantID := uuid.New(), uuid.New()

	f.rbac.On("RoleFor", mock.Anything, userID, tenantID).Return(models.Role(""), common.ErrForbidden)

	rec := f.serve(http.MethodGet, "/v1/billing/plans", "", bearer(t, userID, tenantID))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRoutes_WebhookIsPublic(t *testing.T) {
	f := newRouter(t)

	f.billing.On("HandleWebhook", mock.Anything, mock.Anything, "t=1,v1=sig").Return(nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/stripe", strings.NewReader(`{}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=sig")
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	f.billing.AssertExpectations(t)
}

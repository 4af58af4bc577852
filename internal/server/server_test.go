package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bistro/auth/internal/config"
	"bistro/auth/internal/database"
	"bistro/auth/internal/handlers"
	"bistro/auth/internal/ids"
	"bistro/auth/internal/models"
	"bistro/auth/internal/ratelimit"
	"bistro/auth/internal/repository"
	"bistro/auth/internal/security"
	"bistro/auth/internal/service"
)

const browserUA = "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_4)"

type testApp struct {
	handler http.Handler
	store   repository.Store
	cfg     *config.AppConfig
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.AppConfig{
		Environment: "test",
		Database: config.DatabaseConfig{
			Driver:       config.DriverSQLite,
			DSN:          "file::memory:",
			QueryTimeout: time.Second,
			Migrate:      true,
		},
		Security: config.SecurityConfig{
			SessionTTL:   8 * time.Hour,
			CookieName:   "bistro_admin_session",
			CookiePath:   "/",
			CookieSecure: true,
			LoginPath:    "/admin/login",
		},
		RateLimit: config.RateLimitConfig{
			Action:    "admin_login",
			Threshold: 5,
			Window:    15 * time.Minute,
			Lockout:   30 * time.Minute,
		},
		Reaper: config.ReaperConfig{Retention: 24 * time.Hour, Mode: config.ReaperModeInline},
	}

	store, err := database.Open(context.Background(), cfg.Database)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	log := zerolog.Nop()
	limiter := ratelimit.NewLimiter(store.RateLimits(), cfg.RateLimit, cfg.Database.QueryTimeout, log)
	auth := service.NewAuthService(store, limiter, cfg, log)
	sessions := service.NewSessionService(store, cfg.Database.QueryTimeout, log)
	reaper := service.NewReaper(store, cfg.Reaper.Retention, cfg.Database.QueryTimeout, log)

	srv, err := NewHTTPServer(cfg, log, handlers.NewHandlerSet(log, cfg, store, nil, auth, sessions, reaper))
	require.NoError(t, err)

	return &testApp{handler: srv.Handler(), store: store, cfg: cfg}
}

func (a *testApp) seed(t *testing.T, email string, role models.AdminRole) models.AdminAccount {
	t.Helper()
	hash, err := security.HashPasswordWithParams("correct horse battery",
		security.Argon2Params{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16})
	require.NoError(t, err)
	account := models.AdminAccount{
		ID: ids.New(), Email: email, DisplayName: "Chef", PasswordHash: hash, Role: role, Active: true,
	}
	require.NoError(t, a.store.Accounts().Create(context.Background(), account))
	return account
}

type requestOption func(*http.Request)

func withCookie(c *http.Cookie) requestOption {
	return func(r *http.Request) { r.AddCookie(c) }
}

func withHeader(k, v string) requestOption {
	return func(r *http.Request) { r.Header.Set(k, v) }
}

func (a *testApp) do(method string, path string, body string, opts ...requestOption) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("User-Agent", browserUA)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, opt := range opts {
		opt(req)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func (a *testApp) login(t *testing.T, email string) *http.Cookie {
	t.Helper()
	rec := a.do(http.MethodPost, "/api/v1/auth/login", `{"email":"`+email+`","password":"correct horse battery"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return sessionCookie(t, rec)
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == "bistro_admin_session" {
			return c
		}
	}
	t.Fatal("session cookie not set")
	return nil
}

func TestLoginSetsHardenedCookie(t *testing.T) {
	app := newTestApp(t)
	app.seed(t, "owner@bistro.test", models.AdminRoleAdmin)

	rec := app.do(http.MethodPost, "/api/v1/auth/login", `{"email":"Owner@Bistro.test","password":"correct horse battery"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	cookie := sessionCookie(t, rec)
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
	assert.Len(t, cookie.Value, 43)
	assert.WithinDuration(t, time.Now().Add(8*time.Hour), cookie.Expires, time.Minute)

	var body struct {
		Account   models.Identity `json:"account"`
		ExpiresAt time.Time       `json:"expiresAt"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "owner@bistro.test", body.Account.Email)
	assert.NotContains(t, rec.Body.String(), "argon2")

	me := app.do(http.MethodGet, "/api/v1/auth/me", "", withCookie(cookie))
	require.Equal(t, http.StatusOK, me.Code)
	assert.Contains(t, me.Body.String(), `"email":"owner@bistro.test"`)
}

func TestLoginFailuresUseGenericMessages(t *testing.T) {
	app := newTestApp(t)
	app.seed(t, "owner@bistro.test", models.AdminRoleAdmin)

	wrong := app.do(http.MethodPost, "/api/v1/auth/login", `{"email":"owner@bistro.test","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, wrong.Code)
	assert.JSONEq(t, `{"error":"invalid credentials"}`, wrong.Body.String())

	unknown := app.do(http.MethodPost, "/api/v1/auth/login", `{"email":"ghost@bistro.test","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.Equal(t, wrong.Body.String(), unknown.Body.String())

	empty := app.do(http.MethodPost, "/api/v1/auth/login", `{"email":"","password":""}`)
	assert.Equal(t, http.StatusBadRequest, empty.Code)

	malformed := app.do(http.MethodPost, "/api/v1/auth/login", `{"email":`)
	assert.Equal(t, http.StatusBadRequest, malformed.Code)
}

func TestLoginRateLimitedReturns429(t *testing.T) {
	app := newTestApp(t)
	app.seed(t, "owner@bistro.test", models.AdminRoleAdmin)

	for i := 0; i < 4; i++ {
		rec := app.do(http.MethodPost, "/api/v1/auth/login", `{"email":"owner@bistro.test","password":"nope"}`)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	rec := app.do(http.MethodPost, "/api/v1/auth/login", `{"email":"owner@bistro.test","password":"correct horse battery"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "too many attempts, try again after")
	assert.Empty(t, rec.Result().Cookies())
}

func TestSessionFromAnotherClientIsRevoked(t *testing.T) {
	app := newTestApp(t)
	app.seed(t, "owner@bistro.test", models.AdminRoleAdmin)
	cookie := app.login(t, "owner@bistro.test")

	stolen := app.do(http.MethodGet, "/api/v1/auth/me", "",
		withCookie(cookie), withHeader("User-Agent", "curl/8.4.0"))
	assert.Equal(t, http.StatusUnauthorized, stolen.Code)
	cleared := sessionCookie(t, stolen)
	assert.Empty(t, cleared.Value)

	original := app.do(http.MethodGet, "/api/v1/auth/me", "", withCookie(cookie))
	assert.Equal(t, http.StatusUnauthorized, original.Code)
}

func TestBrowserWithoutSessionIsRedirected(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(http.MethodGet, "/api/v1/auth/me", "", withHeader("Accept", "text/html,application/xhtml+xml"))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/admin/login", rec.Header().Get("Location"))

	api := app.do(http.MethodGet, "/api/v1/auth/me", "")
	assert.Equal(t, http.StatusUnauthorized, api.Code)
}

func TestBearerTokenIsAccepted(t *testing.T) {
	app := newTestApp(t)
	app.seed(t, "owner@bistro.test", models.AdminRoleAdmin)
	cookie := app.login(t, "owner@bistro.test")

	rec := app.do(http.MethodGet, "/api/v1/auth/me", "", withHeader("Authorization", "Bearer "+cookie.Value))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLogout(t *testing.T) {
	app := newTestApp(t)
	app.seed(t, "owner@bistro.test", models.AdminRoleAdmin)
	cookie := app.login(t, "owner@bistro.test")

	first := app.do(http.MethodPost, "/api/v1/auth/logout", "", withCookie(cookie))
	assert.Equal(t, http.StatusNoContent, first.Code)
	assert.Empty(t, sessionCookie(t, first).Value)

	second := app.do(http.MethodPost, "/api/v1/auth/logout", "", withCookie(cookie))
	assert.Equal(t, http.StatusNoContent, second.Code)

	anonymous := app.do(http.MethodPost, "/api/v1/auth/logout", "")
	assert.Equal(t, http.StatusNoContent, anonymous.Code)

	me := app.do(http.MethodGet, "/api/v1/auth/me", "", withCookie(cookie))
	assert.Equal(t, http.StatusUnauthorized, me.Code)
}

func TestAdminRoutesRequireSuperAdmin(t *testing.T) {
	app := newTestApp(t)
	staff := app.seed(t, "sous@bistro.test", models.AdminRoleAdmin)
	app.seed(t, "owner@bistro.test", models.AdminRoleSuperAdmin)

	staffCookie := app.login(t, "sous@bistro.test")
	ownerCookie := app.login(t, "owner@bistro.test")

	forbidden := app.do(http.MethodPost, "/api/v1/admin/maintenance/sweep", "", withCookie(staffCookie))
	assert.Equal(t, http.StatusForbidden, forbidden.Code)

	sweep := app.do(http.MethodPost, "/api/v1/admin/maintenance/sweep", "", withCookie(ownerCookie))
	require.Equal(t, http.StatusOK, sweep.Code)
	assert.JSONEq(t, `{"sessionsDeleted":0,"rateLimitRowsDeleted":0}`, sweep.Body.String())

	missing := app.do(http.MethodPost, "/api/v1/admin/accounts/nobody/sessions/revoke", "", withCookie(ownerCookie))
	assert.Equal(t, http.StatusNotFound, missing.Code)

	revoke := app.do(http.MethodPost, "/api/v1/admin/accounts/"+staff.ID+"/sessions/revoke", "", withCookie(ownerCookie))
	require.Equal(t, http.StatusOK, revoke.Code)
	assert.JSONEq(t, `{"sessionsDeleted":1}`, revoke.Body.String())

	afterRevoke := app.do(http.MethodGet, "/api/v1/auth/me", "", withCookie(staffCookie))
	assert.Equal(t, http.StatusUnauthorized, afterRevoke.Code)
}

func TestHealth(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(http.MethodGet, "/api/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","database":"ok","queue":"disabled","environment":"test"}`, rec.Body.String())
}

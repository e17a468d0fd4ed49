package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"reviewdesk/internal/config"
	"reviewdesk/internal/database"
	"reviewdesk/internal/middleware"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testSecret = "test-secret-key-12345678901234567890123456789012"

type testEnv struct {
	s   *Server
	app *fiber.App
	db  *gorm.DB
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.AutoMigrate(db))
	return db
}

func newTestEnv(t *testing.T, flags string, rdb *redis.Client) *testEnv {
	t.Helper()
	db := setupTestDB(t)
	cfg := &config.Config{
		JWTSecret:      testSecret,
		Port:           "0",
		AllowedOrigins: "http://localhost:5173",
		FeatureFlags:   flags,
	}
	s, err := NewServerWithDeps(cfg, db, rdb)
	require.NoError(t, err)
	return &testEnv{s: s, app: s.NewApp(), db: db}
}

func token(t *testing.T, subject string, canReview bool) string {
	t.Helper()
	tok, err := middleware.IssueToken(testSecret, subject, canReview, time.Hour)
	require.NoError(t, err)
	return tok
}

// do sends a JSON request as subject ("" for anonymous) and decodes the
// response body into out when it is non-nil.
func (e *testEnv) do(t *testing.T, method, path, subject string, canReview bool, body any, out any) int {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if subject != "" {
		req.Header.Set("Authorization", "Bearer "+token(t, subject, canReview))
	}

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func remarshal(t *testing.T, in any, out any) {
	t.Helper()
	b, err := json.Marshal(in)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, out))
}

func (e *testEnv) flush(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, e.s.emitter.Wait(ctx))
}

func TestNewServerWithDeps_RequiresDependencies(t *testing.T) {
	_, err := NewServerWithDeps(nil, nil, nil)
	assert.Error(t, err)

	_, err = NewServerWithDeps(&config.Config{}, nil, nil)
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t, "", nil)

	var live map[string]any
	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/health", "", false, nil, &live))
	assert.Equal(t, "up", live["status"])

	var ready map[string]any
	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/health/ready", "", false, nil, &ready))
	checks := ready["checks"].(map[string]any)
	assert.Equal(t, "healthy", checks["database"])
	assert.Equal(t, "disabled", checks["redis"], "redis is optional")
}

func TestReadiness_WithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	e := newTestEnv(t, "", rdb)

	var ready map[string]any
	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/health/ready", "", false, nil, &ready))
	assert.Equal(t, "healthy", ready["status"])

	mr.Close()
	ready = nil
	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/health/ready", "", false, nil, &ready),
		"a lost cache degrades but does not fail readiness")
	assert.Equal(t, "degraded", ready["status"])
}

func TestReadiness_DatabaseDown(t *testing.T) {
	e := newTestEnv(t, "", nil)
	sqlDB, err := e.db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	var ready map[string]any
	assert.Equal(t, http.StatusServiceUnavailable, e.do(t, http.MethodGet, "/health/ready", "", false, nil, &ready))
	assert.Equal(t, "unhealthy", ready["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	e := newTestEnv(t, "", nil)
	e.do(t, http.MethodGet, "/health", "", false, nil, nil)

	resp, err := e.app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "http_requests_total")
}

func TestSecurityAndCORSHeaders(t *testing.T) {
	e := newTestEnv(t, "", nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/applications", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, resp.Header.Get("X-Content-Type-Options"))
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))
}

func TestAuthBoundary(t *testing.T) {
	e := newTestEnv(t, "", nil)

	tests := []struct {
		name       string
		method     string
		path       string
		subject    string
		canReview  bool
		authHeader string
		expected   int
	}{
		{name: "anonymous applicant route", method: http.MethodGet, path: "/api/applications/me", expected: http.StatusUnauthorized},
		{name: "malformed header", method: http.MethodGet, path: "/api/applications/me", authHeader: "BearerTokenOnly", expected: http.StatusUnauthorized},
		{name: "garbage token", method: http.MethodGet, path: "/api/applications/me", authHeader: "Bearer not-a-jwt", expected: http.StatusUnauthorized},
		{name: "applicant on reviewer route", method: http.MethodGet, path: "/api/admin/applications", subject: "applicant-1", expected: http.StatusForbidden},
		{name: "reviewer on reviewer route", method: http.MethodGet, path: "/api/admin/applications", subject: "reviewer-1", canReview: true, expected: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			switch {
			case tt.authHeader != "":
				req.Header.Set("Authorization", tt.authHeader)
			case tt.subject != "":
				req.Header.Set("Authorization", "Bearer "+token(t, tt.subject, tt.canReview))
			}
			resp, err := e.app.Test(req, -1)
			require.NoError(t, err)
			_ = resp.Body.Close()
			assert.Equal(t, tt.expected, resp.StatusCode)
		})
	}
}

func TestGetFeatureFlags(t *testing.T) {
	e := newTestEnv(t, "applicant_status_cache=on,reviewer_broadcast=off", nil)

	var body struct {
		Raw       map[string]string `json:"raw"`
		Evaluated map[string]bool   `json:"evaluated"`
	}
	require.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/api/feature-flags", "applicant-1", false, nil, &body))
	assert.Equal(t, "on", body.Raw["applicant_status_cache"])
	assert.True(t, body.Evaluated["applicant_status_cache"])
	assert.False(t, body.Evaluated["reviewer_broadcast"])
}

func TestShutdown_ClosesStores(t *testing.T) {
	e := newTestEnv(t, "", nil)
	require.NoError(t, e.s.Shutdown(context.Background()))

	sqlDB, err := e.db.DB()
	require.NoError(t, err)
	assert.Error(t, sqlDB.Ping())
}

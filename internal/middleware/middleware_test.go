package middleware

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audit-server/internal/config"
	"audit-server/internal/logger"
	"audit-server/internal/model"
	"audit-server/internal/pkg/crypto"
	"audit-server/internal/service"
	"audit-server/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRequestID(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.GET("/test", func(c *gin.Context) {
		_, ok := c.Get(loggerKey)
		assert.True(t, ok, "expected request-scoped logger in context")
		c.String(http.StatusOK, c.GetString(RequestIDKey))
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
	rid := w.Header().Get(RequestIDHeader)
	assert.NotEmpty(t, rid)
	assert.Equal(t, rid, w.Body.String())

	// 合法的外部 ID 沿用，非法的被替换
	const incoming = "6f1c1a57-2a55-4c1b-9a0e-6c1f5c2f7f10"
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(RequestIDHeader, incoming)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, incoming, w.Header().Get(RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(RequestIDHeader, "<script>")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.NotEqual(t, "<script>", w.Header().Get(RequestIDHeader))
}

func TestLoggerMiddleware(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, logger.Init(config.LogConfig{Level: "info", Format: "json"}, buf))

	router := gin.New()
	router.Use(RequestID(), LoggerMiddleware())
	router.GET("/api/v1/logs", func(c *gin.Context) {
		c.Set("user_id", "u-1")
		c.Set("tenant_id", "t-1")
		c.Set("role", "auditor")
		c.Status(http.StatusForbidden)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/logs?page=2", nil))

	out := buf.String()
	assert.Contains(t, out, `"status":403`)
	assert.Contains(t, out, `"path":"/api/v1/logs?page=2"`)
	assert.Contains(t, out, `"request_id"`)
	assert.Contains(t, out, `"level":"warning"`)
	assert.Contains(t, out, `"user_id":"u-1"`)
	assert.Contains(t, out, `"tenant_id":"t-1"`)
	assert.Contains(t, out, `"role":"auditor"`)
}

func TestRecovery(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, logger.Init(config.LogConfig{Level: "info", Format: "text"}, buf))

	router := gin.New()
	router.Use(RequestID(), Recovery(false))
	router.GET("/boom", func(c *gin.Context) { panic("kaboom") })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"code":500`)
	assert.NotContains(t, w.Body.String(), "kaboom")
	assert.Contains(t, buf.String(), "PANIC: kaboom")
}

func TestSecurityHeaders(t *testing.T) {
	router := gin.New()
	router.Use(SecurityHeadersMiddleware())
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Empty(t, w.Header().Get("Strict-Transport-Security"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.NotEmpty(t, w.Header().Get("Strict-Transport-Security"))
}

func TestCORS(t *testing.T) {
	newRouter := func(origins []string) *gin.Engine {
		r := gin.New()
		r.Use(CORSMiddleware(origins))
		r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
		return r
	}

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "https://ui.example.com")
	w := httptest.NewRecorder()
	newRouter([]string{"*"}).ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	restricted := newRouter([]string{"https://ui.example.com"})
	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://ui.example.com")
	w = httptest.NewRecorder()
	restricted.ServeHTTP(w, req)
	assert.Equal(t, "https://ui.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	restricted.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func newAuthService(t *testing.T) (*service.AuthService, *crypto.TokenService, *model.User) {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, err := model.OpenDB(&config.DatabaseConfig{
		URL:          "file:" + name + "?mode=memory&cache=shared",
		MaxOpenConns: 1,
	}, false)
	require.NoError(t, err)
	require.NoError(t, model.AutoMigrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	tokens, err := crypto.NewTokenService("0123456789abcdef0123456789abcdef", "HS256", time.Minute)
	require.NoError(t, err)

	ctx := context.Background()
	tenant, err := store.NewTenantDirectory(db, store.NewAuditStore(db)).Create(ctx, "acme", nil)
	require.NoError(t, err)

	svc := service.NewAuthService(store.NewUserStore(db), tokens)
	user, err := svc.Register(ctx, service.RegisterInput{
		Username: "bob", Email: "bob@acme.io", Password: "password123", TenantID: tenant.ID,
	})
	require.NoError(t, err)
	return svc, tokens, user
}

func TestAuthMiddleware(t *testing.T) {
	svc, tokens, user := newAuthService(t)

	router := gin.New()
	router.Use(AuthMiddleware(svc))
	router.GET("/me", func(c *gin.Context) {
		id, ok := GetIdentity(c)
		require.True(t, ok)
		assert.Equal(t, id.UserID, GetUserID(c))
		assert.Equal(t, id.TenantID, GetTenantID(c))
		assert.Equal(t, "user", GetUserRole(c))
		c.String(http.StatusOK, id.Username)
	})

	call := func(header string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusUnauthorized, call("").Code)
	assert.Equal(t, http.StatusUnauthorized, call("Basic abc").Code)
	assert.Equal(t, http.StatusUnauthorized, call("Bearer ").Code)
	assert.Equal(t, http.StatusUnauthorized, call("Bearer garbage").Code)

	token, err := tokens.GenerateToken(user.ID, user.Username, string(user.Role), user.TenantID)
	require.NoError(t, err)
	w := call("Bearer " + token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "bob", w.Body.String())

	ghost, err := tokens.GenerateToken("no-such-user", "ghost", "admin", user.TenantID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, call("Bearer "+ghost).Code)
}

func TestGetIdentity_Missing(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	_, ok := GetIdentity(c)
	assert.False(t, ok)
	assert.Empty(t, GetUserID(c))
}

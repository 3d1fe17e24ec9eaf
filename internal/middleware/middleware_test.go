package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/attendance-api/internal/models"
	"github.com/noah-isme/attendance-api/internal/service"
	appErrors "github.com/noah-isme/attendance-api/pkg/errors"
)

type stubValidator struct {
	claims *models.JWTClaims
}

func (s stubValidator) Authenticate(ctx context.Context, token string) (*models.JWTClaims, error) {
	if token != "good" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return s.claims, nil
}

type recordingAudit struct {
	logs []*models.AuditLog
}

func (r *recordingAudit) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	r.logs = append(r.logs, log)
	return nil
}

func init() {
	gin.SetMode(gin.TestMode)
}

func do(r http.Handler, method, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func protectedRouter(role models.UserRole) *gin.Engine {
	r := gin.New()
	v := stubValidator{claims: &models.JWTClaims{UserID: "u1", Username: "alice", Role: role}}
	r.GET("/me", JWT(v), func(c *gin.Context) {
		claims, _ := Claims(c)
		c.String(http.StatusOK, claims.Username)
	})
	r.GET("/admin", JWT(v), RequireRoles(models.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func TestJWTRequiresBearerToken(t *testing.T) {
	r := protectedRouter(models.RoleUser)

	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/me", "Basic abc").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/me", "Bearer bad").Code)

	w := do(r, http.MethodGet, "/me", "Bearer good")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice", w.Body.String())
}

func TestRequireRoles(t *testing.T) {
	assert.Equal(t, http.StatusForbidden, do(protectedRouter(models.RoleUser), http.MethodGet, "/admin", "Bearer good").Code)
	assert.Equal(t, http.StatusOK, do(protectedRouter(models.RoleAdmin), http.MethodGet, "/admin", "Bearer good").Code)

	r := gin.New()
	r.GET("/admin", RequireRoles(models.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusOK) })
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/admin", "").Code)
}

type accountStub struct {
	role    models.UserRole
	deleted bool
}

func (a *accountStub) Authenticate(ctx context.Context, token string) (*models.JWTClaims, error) {
	if a.deleted {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "account no longer exists")
	}
	return &models.JWTClaims{UserID: "u1", Username: "alice", Role: a.role}, nil
}

func TestJWTFollowsAccountChanges(t *testing.T) {
	account := &accountStub{role: models.RoleAdmin}
	r := gin.New()
	r.GET("/admin", JWT(account), RequireRoles(models.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/admin", "Bearer same-token").Code)

	account.role = models.RoleUser
	assert.Equal(t, http.StatusForbidden, do(r, http.MethodGet, "/admin", "Bearer same-token").Code)

	account.deleted = true
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/admin", "Bearer same-token").Code)
}

func TestAuditRecordsSuccessfulRequestsOnly(t *testing.T) {
	audit := &recordingAudit{}
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(ContextUserKey, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})
		c.Next()
	})
	group := r.Group("/reports", Audit(audit, nil, models.AuditActionReportView, "reports"))
	group.GET("/users/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	group.GET("/fail", func(c *gin.Context) { c.Status(http.StatusBadRequest) })

	do(r, http.MethodGet, "/reports/users/u9?from=2024-01-01", "")
	do(r, http.MethodGet, "/reports/fail", "")

	require.Len(t, audit.logs, 1)
	log := audit.logs[0]
	assert.Equal(t, models.AuditActionReportView, log.Action)
	assert.Equal(t, "admin-1", *log.UserID)
	assert.Equal(t, "u9", *log.ResourceID)
	assert.Contains(t, string(log.NewValues), "from=2024-01-01")
}

func TestMetricsMiddlewareUsesRouteTemplate(t *testing.T) {
	metrics := service.NewMetricsService()
	r := gin.New()
	r.Use(Metrics(metrics, "/metrics"))
	r.GET("/users/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	do(r, http.MethodGet, "/users/123", "")
	do(r, http.MethodGet, "/nowhere", "")
	do(r, http.MethodGet, "/metrics", "")
	body := do(r, http.MethodGet, "/metrics", "").Body.String()

	assert.Contains(t, body, `path="/users/:id"`)
	assert.Contains(t, body, `path="unmatched"`)
	assert.NotContains(t, body, `path="/users/123"`)
	assert.NotContains(t, body, `path="/metrics"`)
}

func TestResponseMetaCacheHit(t *testing.T) {
	r := gin.New()
	r.Use(WithResponseMeta())
	var meta map[string]interface{}
	r.GET("/grades", func(c *gin.Context) {
		SetCacheHit(c, true)
		meta = ExtractMeta(c)
		c.Status(http.StatusOK)
	})

	do(r, http.MethodGet, "/grades", "")
	require.NotNil(t, meta)
	assert.Equal(t, true, meta["cache_hit"])
}

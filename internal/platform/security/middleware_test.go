package security

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chiro/erp/internal/platform/httpapi"
	"github.com/chiro/erp/internal/platform/httpapi/dto"
	"github.com/chiro/erp/internal/platform/sharedkernel/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type failingRevocations struct{}

func (failingRevocations) Revoke(context.Context, string, time.Duration) error {
	return errors.New("down")
}

func (failingRevocations) IsRevoked(context.Context, string) (bool, error) {
	return false, errors.New("down")
}

func newAuthRouter(cfg AuthConfig) *gin.Engine {
	router := gin.New()
	router.Use(httpapi.RequestID(), Authenticate(cfg))
	router.GET("/health/live", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/docs/index", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/orders", RequirePermission("orders:read"), func(c *gin.Context) {
		ctxClaims, ok := ClaimsFromContext(c.Request.Context())
		if !ok || ctxClaims != ClaimsFrom(c) {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"tenant":     TenantID(c).String(),
			"log_tenant": logger.TenantID(c.Request.Context()),
			"log_user":   logger.UserID(c.Request.Context()),
		})
	})
	router.DELETE("/orders", RequirePermission("orders:write"), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return router
}

func doRequest(router *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	return resp.Error.Code
}

func TestAuthenticate(t *testing.T) {
	svc := NewTokenService(testJWTConfig())
	revocations := NewInMemoryRevocationList()
	router := newAuthRouter(AuthConfig{
		Tokens:       svc,
		Revocations:  revocations,
		SkipPaths:    DefaultSkipPaths,
		SkipPrefixes: []string{"/docs"},
	})

	sub := Subject{TenantID: uuid.New(), UserID: uuid.New(), Permissions: []string{"orders:read"}}
	pair, err := svc.IssueTokenPair(sub)
	require.NoError(t, err)

	t.Run("valid token", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/orders", pair.AccessToken)
		require.Equal(t, http.StatusOK, w.Code)

		var body map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, sub.TenantID.String(), body["tenant"])
		assert.Equal(t, sub.TenantID.String(), body["log_tenant"])
		assert.Equal(t, sub.UserID.String(), body["log_user"])
	})

	t.Run("skip paths", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, doRequest(router, http.MethodGet, "/health/live", "").Code)
		assert.Equal(t, http.StatusOK, doRequest(router, http.MethodGet, "/docs/index", "").Code)
	})

	t.Run("missing header", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/orders", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, dto.ErrCodeUnauthorized, errorCode(t, w))
	})

	t.Run("wrong scheme", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/orders", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("refresh token rejected", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/orders", pair.RefreshToken)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, dto.ErrCodeTokenInvalid, errorCode(t, w))
	})

	t.Run("expired token", func(t *testing.T) {
		svc.now = func() time.Time { return time.Now().Add(-time.Hour) }
		old, err := svc.IssueTokenPair(sub)
		svc.now = time.Now
		require.NoError(t, err)

		w := doRequest(router, http.MethodGet, "/orders", old.AccessToken)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, dto.ErrCodeTokenExpired, errorCode(t, w))
	})

	t.Run("missing permission", func(t *testing.T) {
		w := doRequest(router, http.MethodDelete, "/orders", pair.AccessToken)
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, dto.ErrCodeForbidden, errorCode(t, w))
	})

	t.Run("revoked token", func(t *testing.T) {
		fresh, err := svc.IssueTokenPair(sub)
		require.NoError(t, err)
		claims, err := svc.ValidateAccessToken(fresh.AccessToken)
		require.NoError(t, err)
		require.NoError(t, RevokeToken(context.Background(), revocations, claims))

		w := doRequest(router, http.MethodGet, "/orders", fresh.AccessToken)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, dto.ErrCodeTokenRevoked, errorCode(t, w))
	})
}

func TestAuthenticate_RevocationStoreDownFailsOpen(t *testing.T) {
	svc := NewTokenService(testJWTConfig())
	router := newAuthRouter(AuthConfig{Tokens: svc, Revocations: failingRevocations{}})

	pair, err := svc.IssueTokenPair(Subject{TenantID: uuid.New(), UserID: uuid.New(), Permissions: []string{"*"}})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, doRequest(router, http.MethodGet, "/orders", pair.AccessToken).Code)
}

func TestRequirePermission_Unauthenticated(t *testing.T) {
	router := gin.New()
	router.GET("/x", RequirePermission("orders:read"), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTenantID_Unauthenticated(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Equal(t, uuid.Nil, TenantID(c))
	assert.Nil(t, ClaimsFrom(c))
}

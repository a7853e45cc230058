package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRouterSetup(t *testing.T) {
	engine := gin.New()
	engine.GET("/health/live", func(c *gin.Context) { c.Status(http.StatusOK) })

	deny := func(c *gin.Context) { c.AbortWithStatus(http.StatusUnauthorized) }
	orders := NewRouteGroup("/orders")
	orders.GET("/:id", func(c *gin.Context) { c.String(http.StatusOK, c.Param("id")) })
	orders.DELETE("/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	r := NewRouter(engine, WithAPIVersion("v2"), WithGroupMiddleware(deny))
	r.Register(orders)
	api := r.Setup()

	assert.Equal(t, "/api/v2", api.BasePath())
	assert.Equal(t, "/orders", orders.Prefix())

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v2/orders/7", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouteGroup(t *testing.T) {
	engine := gin.New()
	var seen []string
	group := NewRouteGroup("/customers").Use(func(c *gin.Context) {
		seen = append(seen, c.Request.Method)
		c.Next()
	})
	group.POST("", func(c *gin.Context) { c.Status(http.StatusCreated) }).
		PUT("/:id", func(c *gin.Context) { c.Status(http.StatusOK) }).
		PATCH("/:id/status", func(c *gin.Context) { c.Status(http.StatusOK) })

	NewRouter(engine).Register(group).Setup()

	for _, tc := range []struct {
		method, path string
		want         int
	}{
		{http.MethodPost, "/api/v1/customers", http.StatusCreated},
		{http.MethodPut, "/api/v1/customers/1", http.StatusOK},
		{http.MethodPatch, "/api/v1/customers/1/status", http.StatusOK},
		{http.MethodGet, "/api/v1/customers/1", http.StatusNotFound},
	} {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(tc.method, tc.path, nil))
		assert.Equal(t, tc.want, w.Code, tc.method+" "+tc.path)
	}
	assert.Equal(t, []string{http.MethodPost, http.MethodPut, http.MethodPatch}, seen)
}

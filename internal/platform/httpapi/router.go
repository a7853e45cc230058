package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RouteRegistrar is implemented by each context's HTTP handler set.
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router collects registrars and mounts them under /api/<version>.
type Router struct {
	engine     *gin.Engine
	apiVersion string
	middleware []gin.HandlerFunc
	registrars []RouteRegistrar
}

// RouterOption is a functional option for Router configuration
type RouterOption func(*Router)

// WithAPIVersion sets the API version prefix (e.g., "v1", "v2")
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) {
		r.apiVersion = version
	}
}

// WithGroupMiddleware adds middleware applied to the API group only, so
// health and metrics endpoints on the engine stay unauthenticated.
func WithGroupMiddleware(mw ...gin.HandlerFunc) RouterOption {
	return func(r *Router) {
		r.middleware = append(r.middleware, mw...)
	}
}

// NewRouter creates a new Router instance
func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{engine: engine, apiVersion: "v1"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a RouteRegistrar to be mounted by Setup.
func (r *Router) Register(registrars ...RouteRegistrar) *Router {
	r.registrars = append(r.registrars, registrars...)
	return r
}

// Setup mounts every registrar and returns the API group.
func (r *Router) Setup() *gin.RouterGroup {
	api := r.engine.Group("/api/" + r.apiVersion)
	if len(r.middleware) > 0 {
		api.Use(r.middleware...)
	}
	for _, registrar := range r.registrars {
		registrar.RegisterRoutes(api)
	}
	return api
}

// RouteGroup declares a resource's routes ahead of mounting, letting a
// module describe its surface without holding a gin group.
type RouteGroup struct {
	prefix     string
	middleware []gin.HandlerFunc
	routes     []route
}

type route struct {
	method   string
	path     string
	handlers []gin.HandlerFunc
}

// NewRouteGroup creates a group mounted at prefix.
func NewRouteGroup(prefix string) *RouteGroup {
	return &RouteGroup{prefix: prefix}
}

// Use adds middleware to this group
func (g *RouteGroup) Use(mw ...gin.HandlerFunc) *RouteGroup {
	g.middleware = append(g.middleware, mw...)
	return g
}

// GET registers a GET route.
func (g *RouteGroup) GET(path string, h ...gin.HandlerFunc) *RouteGroup {
	return g.handle(http.MethodGet, path, h)
}

func (g *RouteGroup) POST(path string, h ...gin.HandlerFunc) *RouteGroup {
	return g.handle(http.MethodPost, path, h)
}

func (g *RouteGroup) PUT(path string, h ...gin.HandlerFunc) *RouteGroup {
	return g.handle(http.MethodPut, path, h)
}

func (g *RouteGroup) PATCH(path string, h ...gin.HandlerFunc) *RouteGroup {
	return g.handle(http.MethodPatch, path, h)
}

func (g *RouteGroup) DELETE(path string, h ...gin.HandlerFunc) *RouteGroup {
	return g.handle(http.MethodDelete, path, h)
}

func (g *RouteGroup) handle(method, path string, h []gin.HandlerFunc) *RouteGroup {
	g.routes = append(g.routes, route{method: method, path: path, handlers: h})
	return g
}

// RegisterRoutes implements RouteRegistrar.
func (g *RouteGroup) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group(g.prefix)
	if len(g.middleware) > 0 {
		group.Use(g.middleware...)
	}
	for _, r := range g.routes {
		group.Handle(r.method, r.path, r.handlers...)
	}
}

// Prefix returns the group prefix
func (g *RouteGroup) Prefix() string {
	return g.prefix
}

// Package handler exposes the order use cases under /commerce.
package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/chiro/erp/internal/contexts/commerce/application"
	"github.com/chiro/erp/internal/platform/httpapi"
	"github.com/chiro/erp/internal/platform/security"
)

const (
	PermissionRead  = "orders:read"
	PermissionWrite = "orders:write"
)

// Handler serves the order endpoints.
type Handler struct {
	httpapi.BaseHandler
	service *application.Service
}

// NewHandler creates a new Handler
func NewHandler(service *application.Service) *Handler {
	return &Handler{service: service}
}

// Routes declares the order resource.
func (h *Handler) Routes() *httpapi.RouteGroup {
	read := security.RequirePermission(PermissionRead)
	write := security.RequirePermission(PermissionWrite)

	return httpapi.NewRouteGroup("/commerce").
		POST("/orders", write, h.Create).
		GET("/orders", read, h.List).
		GET("/orders/:id", read, h.Get).
		POST("/orders/:id/lines", write, h.AddLine).
		POST("/orders/:id/place", write, h.Place).
		POST("/orders/:id/cancel", write, h.Cancel)
}

// RegisterRoutes implements httpapi.RouteRegistrar.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	h.Routes().RegisterRoutes(rg)
}

// Create handles POST /commerce/orders.
func (h *Handler) Create(c *gin.Context) {
	var req application.CreateOrderRequest
	if !h.BindJSON(c, &req) {
		return
	}
	order, err := h.service.CreateDraft(c.Request.Context(), security.TenantID(c), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, order)
}

// Get handles GET /commerce/orders/:id.
func (h *Handler) Get(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	order, err := h.service.Get(c.Request.Context(), security.TenantID(c), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, order)
}

// List handles GET /commerce/orders.
func (h *Handler) List(c *gin.Context) {
	var filter application.OrderListFilter
	if !h.BindQuery(c, &filter) {
		return
	}
	page, err := h.service.List(c.Request.Context(), security.TenantID(c), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	httpapi.Page(c, page)
}

// AddLine handles POST /commerce/orders/:id/lines.
func (h *Handler) AddLine(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req application.AddLineRequest
	if !h.BindJSON(c, &req) {
		return
	}
	order, err := h.service.AddLine(c.Request.Context(), security.TenantID(c), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, order)
}

// Place handles POST /commerce/orders/:id/place.
func (h *Handler) Place(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	order, err := h.service.Place(c.Request.Context(), security.TenantID(c), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, order)
}

// Cancel handles POST /commerce/orders/:id/cancel.
func (h *Handler) Cancel(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req application.CancelOrderRequest
	if !h.BindJSON(c, &req) {
		return
	}
	order, err := h.service.Cancel(c.Request.Context(), security.TenantID(c), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, order)
}

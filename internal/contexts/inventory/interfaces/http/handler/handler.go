// Package handler exposes the inventory use cases under /inventory.
package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/chiro/erp/internal/contexts/inventory/application"
	"github.com/chiro/erp/internal/platform/httpapi"
	"github.com/chiro/erp/internal/platform/security"
	"github.com/chiro/erp/internal/platform/sharedkernel"
)

const (
	PermissionRead  = "inventory:read"
	PermissionWrite = "inventory:write"
)

// Handler serves the stock item endpoints.
type Handler struct {
	httpapi.BaseHandler
	service *application.Service
}

// NewHandler creates a new Handler
func NewHandler(service *application.Service) *Handler {
	return &Handler{service: service}
}

// Routes declares the inventory resource.
func (h *Handler) Routes() *httpapi.RouteGroup {
	read := security.RequirePermission(PermissionRead)
	write := security.RequirePermission(PermissionWrite)

	return httpapi.NewRouteGroup("/inventory").
		POST("/items", write, h.CreateItem).
		GET("/items", read, h.ListItems).
		GET("/items/:id", read, h.GetItem).
		GET("/items/:id/movements", read, h.ListMovements).
		POST("/items/:id/receive", write, h.movement(h.service.Receive)).
		POST("/items/:id/issue", write, h.movement(h.service.Issue)).
		POST("/items/:id/reserve", write, h.movement(h.service.Reserve)).
		POST("/items/:id/release", write, h.movement(h.service.Release)).
		POST("/items/:id/adjust", write, h.Adjust)
}

// RegisterRoutes implements httpapi.RouteRegistrar.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	h.Routes().RegisterRoutes(rg)
}

// CreateItem handles POST /inventory/items.
func (h *Handler) CreateItem(c *gin.Context) {
	var req application.CreateItemRequest
	if !h.BindJSON(c, &req) {
		return
	}
	item, err := h.service.CreateItem(c.Request.Context(), security.TenantID(c), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, item)
}

// GetItem handles GET /inventory/items/:id.
func (h *Handler) GetItem(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	item, err := h.service.GetItem(c.Request.Context(), security.TenantID(c), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, item)
}

// ListItems handles GET /inventory/items.
func (h *Handler) ListItems(c *gin.Context) {
	var filter application.ItemListFilter
	if !h.BindQuery(c, &filter) {
		return
	}
	page, err := h.service.ListItems(c.Request.Context(), security.TenantID(c), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	httpapi.Page(c, page)
}

// ListMovements handles GET /inventory/items/:id/movements.
func (h *Handler) ListMovements(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var page sharedkernel.Pagination
	if !h.BindQuery(c, &page) {
		return
	}
	result, err := h.service.ListMovements(c.Request.Context(), security.TenantID(c), id, page)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	httpapi.Page(c, result)
}

// Adjust handles POST /inventory/items/:id/adjust.
func (h *Handler) Adjust(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req application.AdjustRequest
	if !h.BindJSON(c, &req) {
		return
	}
	result, err := h.service.Adjust(c.Request.Context(), security.TenantID(c), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

type movementFunc func(ctx context.Context, tenantID, id uuid.UUID, req application.MovementRequest) (*application.MovementResult, error)

// movement builds the handler shared by receive, issue, reserve and release.
func (h *Handler) movement(op movementFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := h.ParseID(c, "id")
		if !ok {
			return
		}
		var req application.MovementRequest
		if !h.BindJSON(c, &req) {
			return
		}
		result, err := op(c.Request.Context(), security.TenantID(c), id, req)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		h.Success(c, result)
	}
}

// Package handler exposes the CRM use cases under /crm.
package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/chiro/erp/internal/contexts/customerrelation/application"
	"github.com/chiro/erp/internal/platform/httpapi"
	"github.com/chiro/erp/internal/platform/security"
)

const (
	PermissionRead  = "customers:read"
	PermissionWrite = "customers:write"
)

// Handler serves the customer endpoints.
type Handler struct {
	httpapi.BaseHandler
	service *application.Service
}

// NewHandler creates a new Handler
func NewHandler(service *application.Service) *Handler {
	return &Handler{service: service}
}

// Routes declares the customer resource.
func (h *Handler) Routes() *httpapi.RouteGroup {
	read := security.RequirePermission(PermissionRead)
	write := security.RequirePermission(PermissionWrite)

	return httpapi.NewRouteGroup("/crm").
		POST("/customers", write, h.Create).
		GET("/customers", read, h.List).
		GET("/customers/:id", read, h.Get).
		PUT("/customers/:id/contact", write, h.UpdateContact).
		POST("/customers/:id/suspend", write, h.Suspend).
		POST("/customers/:id/activate", write, h.Activate)
}

// RegisterRoutes implements httpapi.RouteRegistrar.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	h.Routes().RegisterRoutes(rg)
}

// Create handles POST /crm/customers.
func (h *Handler) Create(c *gin.Context) {
	var req application.CreateCustomerRequest
	if !h.BindJSON(c, &req) {
		return
	}
	customer, err := h.service.Register(c.Request.Context(), security.TenantID(c), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, customer)
}

// Get handles GET /crm/customers/:id.
func (h *Handler) Get(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	customer, err := h.service.Get(c.Request.Context(), security.TenantID(c), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, customer)
}

// List handles GET /crm/customers.
func (h *Handler) List(c *gin.Context) {
	var filter application.CustomerListFilter
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

// UpdateContact handles PUT /crm/customers/:id/contact.
func (h *Handler) UpdateContact(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req application.UpdateContactRequest
	if !h.BindJSON(c, &req) {
		return
	}
	customer, err := h.service.UpdateContact(c.Request.Context(), security.TenantID(c), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, customer)
}

// Suspend handles POST /crm/customers/:id/suspend.
func (h *Handler) Suspend(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	customer, err := h.service.Suspend(c.Request.Context(), security.TenantID(c), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, customer)
}

// Activate handles POST /crm/customers/:id/activate.
func (h *Handler) Activate(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	customer, err := h.service.Activate(c.Request.Context(), security.TenantID(c), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, customer)
}

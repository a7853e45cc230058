package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chiro/erp/internal/platform/httpapi/dto"
	"github.com/chiro/erp/internal/platform/sharedkernel"
	"github.com/chiro/erp/internal/platform/sharedkernel/logger"
)

// BaseHandler provides the response helpers every context handler embeds.
type BaseHandler struct{}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// NoContent sends a 204 no content response
func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Page sends a paginated list.
func Page[T any](c *gin.Context, page sharedkernel.Page[T]) {
	c.JSON(http.StatusOK, dto.NewPageResponse(page.Items, page.Total, page.Page, page.PageSize))
}

// Error sends an error response, deriving the status from code.
func (h *BaseHandler) Error(c *gin.Context, code, message string) {
	c.JSON(dto.GetHTTPStatus(code), dto.NewErrorResponse(code, message, GetRequestID(c)))
}

// HandleError maps err onto the response envelope. Domain errors keep
// their message; anything unrecognised is logged and reported as a 500.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	requestID := GetRequestID(c)

	var domainErr *sharedkernel.DomainError
	if errors.As(err, &domainErr) {
		code := dto.NormalizeErrorCode(domainErr.Code)
		c.JSON(dto.GetHTTPStatus(code), dto.NewErrorResponse(code, domainErr.Message, requestID))
		return
	}

	if details := ValidationDetails(err); details != nil {
		c.JSON(http.StatusBadRequest, dto.NewValidationErrorResponse("Request validation failed", requestID, details))
		return
	}

	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		c.JSON(http.StatusRequestEntityTooLarge,
			dto.NewErrorResponse(dto.ErrCodeRequestTooLarge, "Request body exceeds maximum allowed size", requestID))
		return
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) ||
		errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(dto.ErrCodeInvalidJSON, "Request body is not valid JSON", requestID))
		return
	}

	var invalidID invalidIDError
	if errors.As(err, &invalidID) {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(dto.ErrCodeInvalidInput, invalidID.Error(), requestID))
		return
	}

	logger.L(c.Request.Context()).Error("request failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError,
		dto.NewErrorResponse(dto.ErrCodeInternal, "An unexpected error occurred", requestID))
}

// BindJSON decodes and validates the body into obj, writing the error
// response itself. Returns false when the handler should stop.
func (h *BaseHandler) BindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		h.HandleError(c, err)
		return false
	}
	return true
}

// BindQuery is BindJSON for query parameters.
func (h *BaseHandler) BindQuery(c *gin.Context, obj any) bool {
	if err := c.ShouldBindQuery(obj); err != nil {
		if ValidationDetails(err) == nil {
			c.JSON(http.StatusBadRequest,
				dto.NewErrorResponse(dto.ErrCodeBadRequest, "Invalid query parameters", GetRequestID(c)))
			return false
		}
		h.HandleError(c, err)
		return false
	}
	return true
}

// ParseID reads a UUID path parameter, answering 400 when malformed.
func (h *BaseHandler) ParseID(c *gin.Context, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		h.HandleError(c, invalidIDError{param: param})
		return uuid.Nil, false
	}
	return id, true
}

type invalidIDError struct{ param string }

func (e invalidIDError) Error() string { return "Invalid " + e.param + ": must be a UUID" }

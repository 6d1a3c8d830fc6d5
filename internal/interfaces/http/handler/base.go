package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pdv/catalogsync/internal/domain/catalogsync"
	"github.com/pdv/catalogsync/internal/interfaces/http/dto"
	"github.com/pdv/catalogsync/internal/interfaces/http/middleware"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// getRequestID returns the id assigned by the RequestID middleware,
// falling back to the inbound header
func getRequestID(c *gin.Context) string {
	if id := middleware.GetRequestID(c); id != "" {
		return id
	}
	return c.GetHeader(middleware.RequestIDHeader)
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessWithMeta sends a success response with pagination meta
func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data any, total int64, page, pageSize int) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, total, page, pageSize))
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// NotFound sends a 404 not found response
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, message)
}

// Unauthorized sends a 401 unauthorized response
func (h *BaseHandler) Unauthorized(c *gin.Context, code, message string) {
	h.Error(c, http.StatusUnauthorized, code, message)
}

// InternalError sends a 500 internal server error response
func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, message)
}

// HandleError maps engine and domain errors to HTTP responses
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, catalogsync.ErrSyncRunNotFound):
		h.NotFound(c, "Sync run not found")
		return
	case errors.Is(err, catalogsync.ErrWebhookInvalid):
		h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidInput, err.Error())
		return
	case errors.Is(err, catalogsync.ErrConnectivity),
		errors.Is(err, catalogsync.ErrPlatformUnavailable):
		h.Error(c, http.StatusServiceUnavailable, dto.ErrCodePlatformUnavailable, err.Error())
		return
	case errors.Is(err, catalogsync.ErrPlatformRequestFailed),
		errors.Is(err, catalogsync.ErrPlatformInvalidResponse),
		errors.Is(err, catalogsync.ErrPlatformAuthFailed):
		h.Error(c, http.StatusBadGateway, dto.ErrCodePlatformRejected, err.Error())
		return
	}

	h.InternalError(c, "An unexpected error occurred")
}

// respondBatch writes a batch result. A batch abandoned before any item was
// attempted answers 503 with the result attached; otherwise 200 with the
// per-item outcome, including partial failures.
func (h *BaseHandler) respondBatch(c *gin.Context, result *catalogsync.SyncBatchResult) {
	if result.Error != "" && result.Succeeded() == 0 {
		resp := dto.NewErrorResponseWithRequestID(dto.ErrCodePlatformUnavailable, result.Error, getRequestID(c))
		resp.Data = result
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	h.Success(c, result)
}

package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pdv/catalogsync/internal/domain/catalogsync"
	"github.com/pdv/catalogsync/internal/interfaces/http/dto"
	"github.com/pdv/catalogsync/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// SyncService is the engine surface exposed over HTTP
type SyncService interface {
	CheckConnection(ctx context.Context) catalogsync.ConnectionStatus
	SyncProducts(ctx context.Context, items []catalogsync.LocalCatalogItem) *catalogsync.SyncBatchResult
	SyncSelected(ctx context.Context, items []catalogsync.LocalCatalogItem, indices []int) *catalogsync.SyncBatchResult
	UpdateStock(ctx context.Context, items []catalogsync.LocalCatalogItem) *catalogsync.SyncBatchResult
	ClearManagedProducts(ctx context.Context) *catalogsync.SyncBatchResult
	EnsureWebhook(ctx context.Context, targetURL string) (*catalogsync.WebhookRegistration, error)
	GetRun(ctx context.Context, id uuid.UUID) (*catalogsync.SyncRun, error)
	ListRuns(ctx context.Context, filter catalogsync.SyncRunFilter) ([]catalogsync.SyncRun, int64, error)
}

// SyncHandler handles catalog synchronization endpoints
type SyncHandler struct {
	BaseHandler
	service       SyncService
	webhookTarget string
	logger        *zap.Logger
}

// SyncHandlerOption configures a SyncHandler
type SyncHandlerOption func(*SyncHandler)

// WithWebhookTarget sets the delivery URL used when a request names none
func WithWebhookTarget(url string) SyncHandlerOption {
	return func(h *SyncHandler) {
		h.webhookTarget = url
	}
}

// WithSyncLogger sets the handler logger
func WithSyncLogger(logger *zap.Logger) SyncHandlerOption {
	return func(h *SyncHandler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewSyncHandler creates a new SyncHandler
func NewSyncHandler(service SyncService, opts ...SyncHandlerOption) *SyncHandler {
	h := &SyncHandler{
		service: service,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// CheckConnection reports whether the platform is reachable.
// An unreachable platform is a normal result, not an error response.
//
// @ID           checkSyncConnection
// @Summary      Check platform connectivity
// @Tags         sync
// @Produce      json
// @Success      200 {object} dto.Response{data=catalogsync.ConnectionStatus}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /sync/connection [get]
func (h *SyncHandler) CheckConnection(c *gin.Context) {
	h.Success(c, h.service.CheckConnection(c.Request.Context()))
}

// SyncProducts creates or updates every item in the request
//
// @ID           syncProducts
// @Summary      Push catalog items
// @Description  Creates or updates each item by SKU. Item failures are reported per item.
// @Tags         sync
// @Accept       json
// @Produce      json
// @Param        request body dto.SyncItemsRequest true "Catalog items"
// @Success      200 {object} dto.Response{data=catalogsync.SyncBatchResult}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      503 {object} dto.Response{data=catalogsync.SyncBatchResult,error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /sync/products [post]
func (h *SyncHandler) SyncProducts(c *gin.Context) {
	var req dto.SyncItemsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleBindError(c, err)
		return
	}

	result := h.service.SyncProducts(c.Request.Context(), req.ToDomain())
	h.logBatch(c, result)
	h.respondBatch(c, result)
}

// SyncSelected synchronizes the items at the requested positions
//
// @ID           syncSelectedProducts
// @Summary      Push selected catalog items
// @Tags         sync
// @Accept       json
// @Produce      json
// @Param        request body dto.SyncSelectedRequest true "Items and selected positions"
// @Success      200 {object} dto.Response{data=catalogsync.SyncBatchResult}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      503 {object} dto.Response{data=catalogsync.SyncBatchResult,error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /sync/products/selected [post]
func (h *SyncHandler) SyncSelected(c *gin.Context) {
	var req dto.SyncSelectedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleBindError(c, err)
		return
	}

	result := h.service.SyncSelected(c.Request.Context(), req.ToDomain(), req.Indices)
	h.logBatch(c, result)
	h.respondBatch(c, result)
}

// UpdateStock pushes quantities of already synchronized items
//
// @ID           updateSyncStock
// @Summary      Push stock quantities
// @Tags         sync
// @Accept       json
// @Produce      json
// @Param        request body dto.SyncItemsRequest true "Catalog items"
// @Success      200 {object} dto.Response{data=catalogsync.SyncBatchResult}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      503 {object} dto.Response{data=catalogsync.SyncBatchResult,error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /sync/stock [post]
func (h *SyncHandler) UpdateStock(c *gin.Context) {
	var req dto.SyncItemsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleBindError(c, err)
		return
	}

	result := h.service.UpdateStock(c.Request.Context(), req.ToDomain())
	h.logBatch(c, result)
	h.respondBatch(c, result)
}

// ClearManagedProducts deletes every remote product this system owns
//
// @ID           clearManagedProducts
// @Summary      Delete managed remote products
// @Tags         sync
// @Produce      json
// @Success      200 {object} dto.Response{data=catalogsync.SyncBatchResult}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      503 {object} dto.Response{data=catalogsync.SyncBatchResult,error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /sync/products [delete]
func (h *SyncHandler) ClearManagedProducts(c *gin.Context) {
	result := h.service.ClearManagedProducts(c.Request.Context())
	h.logBatch(c, result)
	h.respondBatch(c, result)
}

// EnsureWebhook registers the product notification callback if missing
//
// @ID           ensureSyncWebhook
// @Summary      Register the product webhook
// @Tags         sync
// @Accept       json
// @Produce      json
// @Param        request body dto.EnsureWebhookRequest false "Delivery URL, defaults to the configured target"
// @Success      200 {object} dto.Response{data=catalogsync.WebhookRegistration}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      503 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /sync/webhook [post]
func (h *SyncHandler) EnsureWebhook(c *gin.Context) {
	var req dto.EnsureWebhookRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			middleware.HandleBindError(c, err)
			return
		}
	}

	target := req.TargetURL
	if target == "" {
		target = h.webhookTarget
	}
	if target == "" {
		h.BadRequest(c, "target_url is required when no default webhook target is configured")
		return
	}

	reg, err := h.service.EnsureWebhook(c.Request.Context(), target)
	if err != nil {
		h.logger.Warn("webhook registration failed",
			zap.String("request_id", getRequestID(c)),
			zap.String("target_url", target),
			zap.Error(err),
		)
		h.HandleError(c, err)
		return
	}
	h.Success(c, reg)
}

// ListRuns lists recorded sync runs, newest first
//
// @ID           listSyncRuns
// @Summary      List sync runs
// @Tags         sync
// @Produce      json
// @Param        page query int false "Page number" minimum(1)
// @Param        page_size query int false "Page size" minimum(1) maximum(100)
// @Param        operation query string false "Operation" Enums(sync_products, sync_selected, update_stock, clear_managed_products)
// @Param        status query string false "Batch status" Enums(SUCCESS, PARTIAL, FAILED)
// @Success      200 {object} dto.Response{data=[]dto.SyncRunResponse,meta=dto.Meta}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /sync/runs [get]
func (h *SyncHandler) ListRuns(c *gin.Context) {
	var query dto.ListRunsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		middleware.HandleBindError(c, err)
		return
	}

	filter := query.ToFilter()
	runs, total, err := h.service.ListRuns(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, dto.ToSyncRunResponses(runs), total, filter.Page, filter.PageSize)
}

// GetRun returns one sync run with its item details
//
// @ID           getSyncRun
// @Summary      Get a sync run
// @Tags         sync
// @Produce      json
// @Param        id path string true "Sync run ID" format(uuid)
// @Success      200 {object} dto.Response{data=dto.SyncRunResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /sync/runs/{id} [get]
func (h *SyncHandler) GetRun(c *gin.Context) {
	var req dto.IDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleBindError(c, err)
		return
	}
	id, err := uuid.Parse(req.ID)
	if err != nil {
		h.BadRequest(c, "Invalid sync run ID")
		return
	}

	run, err := h.service.GetRun(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToSyncRunResponse(run, true))
}

func (h *SyncHandler) logBatch(c *gin.Context, result *catalogsync.SyncBatchResult) {
	h.logger.Info("sync batch finished",
		zap.String("request_id", getRequestID(c)),
		zap.String("operator", middleware.GetJWTSubject(c)),
		zap.String("operation", string(result.Operation)),
		zap.String("status", result.Status.String()),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("deleted", result.Deleted),
		zap.Int("failed", result.Failed),
	)
}

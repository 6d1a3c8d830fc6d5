package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pdv/catalogsync/internal/domain/catalogsync"
	"github.com/pdv/catalogsync/internal/domain/shared"
	"github.com/pdv/catalogsync/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// Delivery headers set by the platform on every webhook call
const (
	HeaderWebhookSignature  = "X-WC-Webhook-Signature"
	HeaderWebhookTopic      = "X-WC-Webhook-Topic"
	HeaderWebhookDeliveryID = "X-WC-Webhook-Delivery-ID"
	HeaderWebhookID         = "X-WC-Webhook-ID"
)

// Product events are small; anything larger is not a delivery
const maxWebhookPayloadSize = 1 << 20

// webhookProduct is the subset of the product resource the receiver reads
type webhookProduct struct {
	ID            int64  `json:"id"`
	SKU           string `json:"sku"`
	Name          string `json:"name"`
	StockQuantity *int   `json:"stock_quantity"`
}

// WebhookHandler receives platform webhook deliveries.
// These endpoints are called by the platform and do not require an operator token.
type WebhookHandler struct {
	BaseHandler
	secret     []byte
	deliveries shared.IdempotencyStore
	logger     *zap.Logger
}

// NewWebhookHandler creates a receiver that verifies deliveries with secret.
// deliveries may be nil, in which case repeated deliveries are not detected.
func NewWebhookHandler(secret string, deliveries shared.IdempotencyStore, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{
		secret:     []byte(secret),
		deliveries: deliveries,
		logger:     logger,
	}
}

// HandlePlatformWebhook verifies, de-duplicates and logs a product event
//
// @ID           handlePlatformWebhook
// @Summary      Receive a platform product event
// @Description  Deliveries are authenticated by their HMAC signature header, not by bearer token.
// @Tags         webhooks
// @Accept       json
// @Produce      json
// @Success      200 {object} dto.Response{data=dto.WebhookAck}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      413 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /webhooks/platform [post]
func (h *WebhookHandler) HandlePlatformWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookPayloadSize+1))
	if err != nil {
		h.BadRequest(c, "Failed to read request body")
		return
	}
	if len(payload) > maxWebhookPayloadSize {
		h.Error(c, http.StatusRequestEntityTooLarge, dto.ErrCodeRequestTooLarge, "Payload too large")
		return
	}

	signature := c.GetHeader(HeaderWebhookSignature)
	if signature == "" {
		// the platform confirms a new registration with an unsigned form post
		if webhookID, ok := pingWebhookID(payload); ok {
			h.logger.Info("webhook ping received", zap.String("webhook_id", webhookID))
			h.Success(c, dto.WebhookAck{Received: true, Ping: true})
			return
		}
		h.Unauthorized(c, dto.ErrCodeSignatureInvalid, "Missing webhook signature")
		return
	}
	if len(h.secret) == 0 || !h.validSignature(payload, signature) {
		h.logger.Warn("webhook signature rejected",
			zap.String("request_id", getRequestID(c)),
			zap.String("webhook_id", c.GetHeader(HeaderWebhookID)),
		)
		h.Unauthorized(c, dto.ErrCodeSignatureInvalid, "Webhook signature verification failed")
		return
	}

	var product webhookProduct
	if err := json.Unmarshal(payload, &product); err != nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidJSON, "Malformed webhook payload")
		return
	}

	topic := c.GetHeader(HeaderWebhookTopic)
	deliveryID := c.GetHeader(HeaderWebhookDeliveryID)
	if h.deliveries != nil && deliveryID != "" {
		fresh, err := h.deliveries.MarkProcessed(c.Request.Context(), deliveryID, shared.DefaultIdempotencyTTL)
		switch {
		case err != nil:
			h.logger.Error("failed to record webhook delivery",
				zap.String("delivery_id", deliveryID),
				zap.Error(err),
			)
		case !fresh:
			h.logger.Debug("duplicate webhook delivery ignored", zap.String("delivery_id", deliveryID))
			h.Success(c, dto.WebhookAck{Received: true, Duplicate: true, Topic: topic})
			return
		}
	}

	fields := []zap.Field{
		zap.String("topic", topic),
		zap.String("delivery_id", deliveryID),
		zap.Int64("product_id", product.ID),
		zap.String("sku", product.SKU),
		zap.String("name", product.Name),
		zap.Bool("managed", catalogsync.IsManagedSKU(product.SKU)),
	}
	if product.StockQuantity != nil {
		fields = append(fields, zap.Int("stock_quantity", *product.StockQuantity))
	}
	h.logger.Info("product event received", fields...)

	h.Success(c, dto.WebhookAck{Received: true, Topic: topic})
}

func (h *WebhookHandler) validSignature(payload []byte, signature string) bool {
	expected := SignWebhookPayload(string(h.secret), payload)
	return hmac.Equal([]byte(expected), []byte(strings.TrimSpace(signature)))
}

// SignWebhookPayload computes the delivery signature for payload
func SignWebhookPayload(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func pingWebhookID(payload []byte) (string, bool) {
	values, err := url.ParseQuery(string(payload))
	if err != nil {
		return "", false
	}
	id := values.Get("webhook_id")
	return id, id != ""
}

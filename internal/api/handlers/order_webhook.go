package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/kamranshah125/turum/internal/config"
	"github.com/kamranshah125/turum/internal/domain"
	"github.com/kamranshah125/turum/internal/service"
)

// HMACHeader carries the base64 HMAC-SHA256 of the raw webhook body
const HMACHeader = "X-Shopify-Hmac-Sha256"

// OrderEnqueuer hands a decoded order to asynchronous processing
type OrderEnqueuer interface {
	Enqueue(order *domain.ShopifyOrder, payload json.RawMessage) (string, error)
}

var payloadValidator = validator.New()

func verifyShopifyHMAC(secret string, body []byte, header string) bool {
	if secret == "" || header == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	// constant-time compare
	return hmac.Equal([]byte(expected), []byte(strings.TrimSpace(header)))
}

// HandleOrderWebhook handles POST /webhooks/storefront/orders (orders/create).
// The order is queued and acknowledged immediately; reservation happens in the background.
func HandleOrderWebhook(cfg config.ShopifyConfig, queue OrderEnqueuer, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Read raw body (Shopify HMAC is computed over raw bytes)
		bodyBytes, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
			return
		}

		if !verifyShopifyHMAC(cfg.WebhookSecret, bodyBytes, c.GetHeader(HMACHeader)) {
			if !cfg.AllowUnverifiedWebhooks {
				logger.Warn("Order webhook rejected: invalid signature", zap.String("topic", c.GetHeader("X-Shopify-Topic")))
				c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook signature"})
				return
			}
			logger.Warn("Order webhook signature mismatch, processing anyway (SHOPIFY_WEBHOOK_ALLOW_UNVERIFIED)")
		}

		var order domain.ShopifyOrder
		if err := json.Unmarshal(bodyBytes, &order); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON", "details": err.Error()})
			return
		}
		if err := payloadValidator.Struct(&order); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order payload", "details": err.Error()})
			return
		}

		requestID, err := queue.Enqueue(&order, json.RawMessage(bodyBytes))
		if err != nil {
			if errors.Is(err, service.ErrQueueFull) || errors.Is(err, service.ErrQueueStopped) {
				logger.Warn("Order webhook not queued", zap.Int64("order_id", order.ID), zap.Error(err))
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
				return
			}
			logger.Error("Failed to queue order", zap.Int64("order_id", order.ID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		logger.Info("Order webhook accepted",
			zap.Int64("order_id", order.ID),
			zap.String("order_name", order.Name),
			zap.String("request_id", requestID),
		)
		c.JSON(http.StatusOK, gin.H{"status": "queued", "request_id": requestID})
	}
}

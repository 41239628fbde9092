package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kamranshah125/turum/internal/domain"
	"github.com/kamranshah125/turum/internal/repository"
	"github.com/kamranshah125/turum/pkg/errors"
)

// SupplierDebugger is the part of the supplier client the debug routes pass through to
type SupplierDebugger interface {
	Login(ctx context.Context) (string, error)
	GetProduct(ctx context.Context, sku string) (*domain.SupplierProduct, error)
	GetProductsFullList(ctx context.Context) ([]domain.SupplierProduct, error)
}

// IntegrationOrderResponse represents a stored integration order
type IntegrationOrderResponse struct {
	ID                    int64   `json:"id"`
	ShopifyOrderID        int64   `json:"shopify_order_id"`
	Status                string  `json:"status"`
	SupplierReservationID *string `json:"supplier_reservation_id,omitempty"`
	SupplierStatus        *string `json:"supplier_status,omitempty"`
	Carrier               *string `json:"carrier,omitempty"`
	TrackingNumber        *string `json:"tracking_number,omitempty"`
	TrackingURL           *string `json:"tracking_url,omitempty"`
	ErrorMessage          *string `json:"error_message,omitempty"`
	Attempts              int     `json:"attempts"`
	CreatedAt             string  `json:"created_at"`
	UpdatedAt             string  `json:"updated_at"`
}

// VariantMapResponse represents a cached variant link
type VariantMapResponse struct {
	ShopifySKU        string  `json:"shopify_sku"`
	ShopifySize       string  `json:"shopify_size"`
	SupplierVariantID string  `json:"supplier_variant_id"`
	SupplierSKU       *string `json:"supplier_sku,omitempty"`
	UpdatedAt         string  `json:"updated_at"`
}

// HandleTurumAuth handles GET /debug/turum-auth: forces a supplier login
func HandleTurumAuth(supplier SupplierDebugger, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := supplier.Login(c.Request.Context())
		if err != nil {
			logger.Error("Supplier login check failed", zap.Error(err))
			status := "error"
			if errors.IsUnauthorized(err) {
				status = "credentials_rejected"
			}
			c.JSON(http.StatusBadGateway, gin.H{"status": status, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "token_preview": maskToken(token)})
	}
}

// HandleTurumProduct handles GET /debug/turum-product/:sku
func HandleTurumProduct(supplier SupplierDebugger, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		sku := strings.TrimSpace(c.Param("sku"))
		if sku == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "sku required"})
			return
		}

		product, err := supplier.GetProduct(c.Request.Context(), sku)
		if err != nil {
			logger.Error("Failed to fetch supplier product", zap.String("sku", sku), zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		if product == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "product not found", "sku": sku})
			return
		}
		c.JSON(http.StatusOK, product)
	}
}

// HandleTurumCatalog handles GET /debug/get_all
func HandleTurumCatalog(supplier SupplierDebugger, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		products, err := supplier.GetProductsFullList(c.Request.Context())
		if err != nil {
			logger.Error("Failed to fetch supplier catalog", zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"count": len(products), "products": products})
	}
}

// HandleListReservations handles GET /debug/reservations
func HandleListReservations(orders repository.IntegrationOrderRepository, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		limitStr := c.DefaultQuery("limit", "50")
		offsetStr := c.DefaultQuery("offset", "0")

		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 || limit > 500 {
			limit = 50
		}
		offset, err := strconv.Atoi(offsetStr)
		if err != nil || offset < 0 {
			offset = 0
		}

		rows, err := orders.List(c.Request.Context(), limit, offset)
		if err != nil {
			logger.Error("Failed to list integration orders", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		response := make([]IntegrationOrderResponse, 0, len(rows))
		for _, o := range rows {
			response = append(response, IntegrationOrderResponse{
				ID:                    o.ID,
				ShopifyOrderID:        o.ShopifyOrderID,
				Status:                string(o.Status),
				SupplierReservationID: o.SupplierReservationID,
				SupplierStatus:        o.SupplierStatus,
				Carrier:               o.Carrier,
				TrackingNumber:        o.TrackingNumber,
				TrackingURL:           o.TrackingURL,
				ErrorMessage:          o.ErrorMessage,
				Attempts:              o.Attempts,
				CreatedAt:             o.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
				UpdatedAt:             o.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
			})
		}

		c.JSON(http.StatusOK, gin.H{
			"orders": response,
			"pagination": gin.H{
				"limit":  limit,
				"offset": offset,
			},
		})
	}
}

// HandleVariantMapping handles GET /debug/db-mapping/:sku
func HandleVariantMapping(variantMaps repository.VariantMapRepository, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		sku := strings.TrimSpace(c.Param("sku"))
		maps, err := variantMaps.ListBySKU(c.Request.Context(), sku)
		if err != nil {
			logger.Error("Failed to list variant maps", zap.String("sku", sku), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		if len(maps) == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "no mapping found", "sku": sku})
			return
		}

		response := make([]VariantMapResponse, 0, len(maps))
		for _, m := range maps {
			response = append(response, VariantMapResponse{
				ShopifySKU:        m.ShopifySKU,
				ShopifySize:       m.ShopifySize,
				SupplierVariantID: m.SupplierVariantID,
				SupplierSKU:       m.SupplierSKU,
				UpdatedAt:         m.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
			})
		}
		c.JSON(http.StatusOK, gin.H{"sku": sku, "mappings": response})
	}
}

func maskToken(token string) string {
	if len(token) <= 8 {
		return strings.Repeat("*", len(token))
	}
	return token[:8] + "..."
}

package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"order-console/internal/models"
	"order-console/internal/service"
	"order-console/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DashboardReader is the read side the console renders from
type DashboardReader interface {
	Views() models.Views
	Ready() bool
	Selected() (models.Order, bool)
	SelectByID(id string) (models.Order, bool)
	Clear()
}

// StatusTransitioner changes order status
type StatusTransitioner interface {
	Transition(ctx context.Context, orderID, newStatus string) error
}

// CatalogEditor inserts and removes products
type CatalogEditor interface {
	Create(ctx context.Context, draft models.ProductDraft, idempotencyKey string) (string, error)
	Remove(ctx context.Context, productID string) error
}

// Handler contains HTTP handlers
type Handler struct {
	dashboard DashboardReader
	status    StatusTransitioner
	catalog   CatalogEditor
	auth      *Authenticator
}

// NewHandler creates a new HTTP handler
func NewHandler(dashboard DashboardReader, status StatusTransitioner, catalog CatalogEditor, auth *Authenticator) *Handler {
	return &Handler{
		dashboard: dashboard,
		status:    status,
		catalog:   catalog,
		auth:      auth,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	v1.Use(h.auth.Middleware())
	{
		v1.GET("/dashboard", h.getDashboard)
		v1.GET("/orders", h.getOrders)
		v1.GET("/customers", h.getCustomers)
		v1.GET("/stats", h.getStats)
		v1.GET("/products", h.getProducts)

		v1.PUT("/orders/:id/status", h.updateOrderStatus)
		v1.POST("/products", h.createProduct)
		v1.DELETE("/products/:id", h.removeProduct)

		v1.POST("/selection", h.selectOrder)
		v1.DELETE("/selection", h.clearSelection)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck reports ready once both feeds have delivered
func (h *Handler) readinessCheck(c *gin.Context) {
	if !h.dashboard.Ready() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "waiting for snapshots",
			"time":   time.Now().Unix(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

type dashboardResponse struct {
	models.Views
	SelectedOrder *models.Order `json:"selectedOrder"`
}

func (h *Handler) getDashboard(c *gin.Context) {
	resp := dashboardResponse{Views: h.dashboard.Views()}
	if sel, ok := h.dashboard.Selected(); ok {
		resp.SelectedOrder = &sel
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) getOrders(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"orders": h.dashboard.Views().Orders})
}

func (h *Handler) getCustomers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"customers": h.dashboard.Views().Customers})
}

func (h *Handler) getStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.dashboard.Views().Stats)
}

func (h *Handler) getProducts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"products": h.dashboard.Views().Products})
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

// updateOrderStatus issues a transition; the new status arrives with the next snapshot
func (h *Handler) updateOrderStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	orderID := c.Param("id")
	if err := h.status.Transition(c.Request.Context(), orderID, req.Status); err != nil {
		writeError(c, "Failed to update order status", err)
		return
	}

	// Transition accepted it, so it parses
	status, _ := models.ParseOrderStatus(req.Status)
	c.JSON(http.StatusAccepted, gin.H{
		"order_id": orderID,
		"status":   status,
	})
}

// createProduct handles catalog inserts
func (h *Handler) createProduct(c *gin.Context) {
	var draft models.ProductDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	id, err := h.catalog.Create(c.Request.Context(), draft, c.GetHeader("Idempotency-Key"))
	if err != nil {
		writeError(c, "Failed to create product", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// removeProduct handles catalog deletes; absent products are not an error
func (h *Handler) removeProduct(c *gin.Context) {
	if err := h.catalog.Remove(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, "Failed to remove product", err)
		return
	}
	c.Status(http.StatusNoContent)
}

type selectionRequest struct {
	OrderID string `json:"orderId" binding:"required"`
}

func (h *Handler) selectOrder(c *gin.Context) {
	var req selectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	order, ok := h.dashboard.SelectByID(req.OrderID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not in current view"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"selectedOrder": order})
}

func (h *Handler) clearSelection(c *gin.Context) {
	h.dashboard.Clear()
	c.Status(http.StatusNoContent)
}

// writeError maps the error taxonomy onto HTTP statuses
func writeError(c *gin.Context, msg string, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   msg,
			"field":   verr.Field,
			"details": verr.Reason,
		})
	case errors.Is(err, service.ErrStoreUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   msg,
			"details": err.Error(),
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   msg,
			"details": err.Error(),
		})
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			path,
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			path,
			status,
		).Inc()
	}
}

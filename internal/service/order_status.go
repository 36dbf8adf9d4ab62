package service

import (
	"context"

	"order-console/internal/models"
	"order-console/internal/util"

	"go.uber.org/zap"
)

// DocumentWriter updates fields of an existing document
type DocumentWriter interface {
	Write(ctx context.Context, collection, id string, updates map[string]any) error
}

// OrderStatusController issues status transitions for orders.
//
// Any status may follow any other. The new status is not reflected locally;
// it shows up with the next orders snapshot.
type OrderStatusController struct {
	store      DocumentWriter
	collection string
	logger     *zap.Logger
}

// NewOrderStatusController creates a new status controller
func NewOrderStatusController(store DocumentWriter, collection string) *OrderStatusController {
	return &OrderStatusController{
		store:      store,
		collection: collection,
		logger:     util.GetLogger(),
	}
}

// Transition writes the status field of one order and nothing else
func (c *OrderStatusController) Transition(ctx context.Context, orderID, newStatus string) error {
	ctx, span := util.StartSpan(ctx, "OrderStatusController.Transition")
	defer span.End()

	status, ok := models.ParseOrderStatus(newStatus)
	if !ok {
		util.OrderTransitionsTotal.WithLabelValues("invalid", "rejected").Inc()
		return invalid("status", "unknown order status "+newStatus)
	}
	if orderID == "" {
		util.OrderTransitionsTotal.WithLabelValues(string(status), "rejected").Inc()
		return invalid("orderId", "must not be empty")
	}

	err := c.store.Write(ctx, c.collection, orderID, map[string]any{"status": string(status)})
	if err != nil {
		util.OrderTransitionsTotal.WithLabelValues(string(status), "error").Inc()
		c.logger.Error("Failed to update order status",
			zap.String("order_id", orderID),
			zap.String("status", string(status)),
			zap.Error(err))
		return unavailable("transition order "+orderID, err)
	}

	util.OrderTransitionsTotal.WithLabelValues(string(status), "issued").Inc()
	c.logger.Info("Order status transition issued",
		zap.String("order_id", orderID),
		zap.String("status", string(status)))
	return nil
}

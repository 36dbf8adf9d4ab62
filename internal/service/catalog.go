package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"order-console/internal/models"
	"order-console/internal/store"
	"order-console/internal/util"

	"go.uber.org/zap"
)

// CatalogStore inserts and deletes product documents
type CatalogStore interface {
	Insert(ctx context.Context, collection string, fields map[string]any) (string, error)
	Delete(ctx context.Context, collection, id string) error
}

// IdempotencyStore remembers which product a client request key created
type IdempotencyStore interface {
	LookupProductID(ctx context.Context, key string) (string, bool, error)
	RememberProductID(ctx context.Context, key, productID string, ttl time.Duration) error
}

// CatalogOption configures a CatalogController
type CatalogOption func(*CatalogController)

// WithIdempotency deduplicates creates carrying the same key for ttl
func WithIdempotency(keys IdempotencyStore, ttl time.Duration) CatalogOption {
	return func(c *CatalogController) {
		c.keys = keys
		c.keyTTL = ttl
	}
}

// WithClock overrides the createdAt source
func WithClock(now func() time.Time) CatalogOption {
	return func(c *CatalogController) { c.now = now }
}

// CatalogController validates and issues catalog inserts and deletes
type CatalogController struct {
	store      CatalogStore
	collection string
	keys       IdempotencyStore
	keyTTL     time.Duration
	now        func() time.Time
	logger     *zap.Logger
}

// NewCatalogController creates a new catalog controller
func NewCatalogController(store CatalogStore, collection string, opts ...CatalogOption) *CatalogController {
	c := &CatalogController{
		store:      store,
		collection: collection,
		now:        time.Now,
		logger:     util.GetLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ValidateDraft checks a product draft without touching the store
func ValidateDraft(d models.ProductDraft) (models.Category, error) {
	if strings.TrimSpace(d.Name) == "" {
		return "", invalid("name", "must not be empty")
	}
	if strings.TrimSpace(d.Category) == "" {
		return "", invalid("category", "must not be empty")
	}
	category, ok := models.ParseCategory(d.Category)
	if !ok {
		return "", invalid("category", "unknown category "+d.Category)
	}
	if strings.TrimSpace(d.Image) == "" {
		return "", invalid("image", "must not be empty")
	}
	if math.IsNaN(d.Price) || math.IsInf(d.Price, 0) {
		return "", invalid("price", "must be a finite number")
	}
	if d.Price < 0 {
		return "", invalid("price", "must not be negative")
	}
	return category, nil
}

// Create validates the draft and inserts a product stamped with the current time.
// A non-empty idempotencyKey already seen returns the product it created.
func (c *CatalogController) Create(ctx context.Context, draft models.ProductDraft, idempotencyKey string) (string, error) {
	ctx, span := util.StartSpan(ctx, "CatalogController.Create")
	defer span.End()

	category, err := ValidateDraft(draft)
	if err != nil {
		util.CatalogOperationsTotal.WithLabelValues("create", "rejected").Inc()
		return "", err
	}

	if c.keys != nil && idempotencyKey != "" {
		id, found, err := c.keys.LookupProductID(ctx, idempotencyKey)
		if err != nil {
			c.logger.Warn("Idempotency lookup failed, creating anyway",
				zap.String("idempotency_key", idempotencyKey),
				zap.Error(err))
		} else if found {
			c.logger.Info("Duplicate product create detected",
				zap.String("idempotency_key", idempotencyKey),
				zap.String("product_id", id))
			util.CatalogOperationsTotal.WithLabelValues("create", "duplicate").Inc()
			return id, nil
		}
	}

	id, err := c.store.Insert(ctx, c.collection, map[string]any{
		"name":      strings.TrimSpace(draft.Name),
		"price":     draft.Price,
		"category":  string(category),
		"image":     strings.TrimSpace(draft.Image),
		"createdAt": c.now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		util.CatalogOperationsTotal.WithLabelValues("create", "error").Inc()
		c.logger.Error("Failed to insert product", zap.Error(err))
		return "", unavailable("create product", err)
	}

	if c.keys != nil && idempotencyKey != "" {
		if err := c.keys.RememberProductID(ctx, idempotencyKey, id, c.keyTTL); err != nil {
			c.logger.Warn("Failed to store idempotency key",
				zap.String("idempotency_key", idempotencyKey),
				zap.Error(err))
		}
	}

	util.CatalogOperationsTotal.WithLabelValues("create", "issued").Inc()
	c.logger.Info("Product created", zap.String("product_id", id))
	return id, nil
}

// Remove deletes a product. Deleting an absent product succeeds.
func (c *CatalogController) Remove(ctx context.Context, productID string) error {
	ctx, span := util.StartSpan(ctx, "CatalogController.Remove")
	defer span.End()

	if strings.TrimSpace(productID) == "" {
		util.CatalogOperationsTotal.WithLabelValues("remove", "rejected").Inc()
		return invalid("productId", "must not be empty")
	}

	err := c.store.Delete(ctx, c.collection, productID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.logger.Info("Product already absent", zap.String("product_id", productID))
		util.CatalogOperationsTotal.WithLabelValues("remove", "absent").Inc()
		return nil
	case err != nil:
		util.CatalogOperationsTotal.WithLabelValues("remove", "error").Inc()
		c.logger.Error("Failed to delete product",
			zap.String("product_id", productID),
			zap.Error(err))
		return unavailable("remove product "+productID, err)
	}

	util.CatalogOperationsTotal.WithLabelValues("remove", "issued").Inc()
	c.logger.Info("Product removed", zap.String("product_id", productID))
	return nil
}

// Package normalize turns raw store documents into typed orders and products.
//
// Only a missing identity is an error. Every other field falls back to a safe
// default so that one bad record never hides the rest of a collection.
package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"order-console/internal/models"
	"order-console/internal/store"
	"order-console/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrMalformedRecord is returned when a record has no identity
var ErrMalformedRecord = errors.New("malformed record")

// Order converts one raw order document
func Order(id string, fields map[string]any) (models.Order, error) {
	if strings.TrimSpace(id) == "" {
		return models.Order{}, fmt.Errorf("order without id: %w", ErrMalformedRecord)
	}

	status := models.OrderStatusPending
	if s, ok := parseStatus(fields["status"]); ok {
		status = s
	}

	return models.Order{
		ID:          id,
		UserID:      str(fields["userId"]),
		UserName:    str(fields["userName"]),
		UserEmail:   str(fields["userEmail"]),
		CreatedAt:   instant(fields["createdAt"]),
		Status:      status,
		TotalAmount: amount(fields["totalAmount"]),
		Items:       items(fields["items"]),
	}, nil
}

// Product converts one raw product document
func Product(id string, fields map[string]any) (models.Product, error) {
	if strings.TrimSpace(id) == "" {
		return models.Product{}, fmt.Errorf("product without id: %w", ErrMalformedRecord)
	}

	category, _ := models.ParseCategory(str(fields["category"]))

	return models.Product{
		ID:        id,
		Name:      str(fields["name"]),
		Price:     amount(fields["price"]),
		Category:  category,
		Image:     str(fields["image"]),
		CreatedAt: instant(fields["createdAt"]),
	}, nil
}

// Orders normalizes a snapshot, dropping only records without identity
func Orders(docs []store.Document) []models.Order {
	out := make([]models.Order, 0, len(docs))
	for _, doc := range docs {
		o, err := Order(doc.ID, fieldsOf(doc))
		if err != nil {
			dropped(doc, err)
			continue
		}
		out = append(out, o)
	}
	return out
}

// Products normalizes a snapshot, dropping only records without identity
func Products(docs []store.Document) []models.Product {
	out := make([]models.Product, 0, len(docs))
	for _, doc := range docs {
		p, err := Product(doc.ID, fieldsOf(doc))
		if err != nil {
			dropped(doc, err)
			continue
		}
		out = append(out, p)
	}
	return out
}

// fieldsOf decodes a document body, degrading to no fields on bad JSON
func fieldsOf(doc store.Document) map[string]any {
	fields, err := doc.Fields()
	if err != nil {
		util.GetLogger().Warn("Undecodable document body, using defaults",
			zap.String("collection", doc.Collection),
			zap.String("document_id", doc.ID),
			zap.Error(err))
		util.RecordsMalformedTotal.WithLabelValues(doc.Collection).Inc()
		return map[string]any{}
	}
	return fields
}

func dropped(doc store.Document, err error) {
	util.GetLogger().Warn("Dropping record",
		zap.String("collection", doc.Collection),
		zap.Error(err))
	util.RecordsMalformedTotal.WithLabelValues(doc.Collection).Inc()
}

func str(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

func parseStatus(v any) (models.OrderStatus, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	return models.ParseOrderStatus(s)
}

// amount reads a non-negative money value; anything unusable is zero
func amount(v any) decimal.Decimal {
	var d decimal.Decimal
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return decimal.Zero
		}
		d = decimal.NewFromFloat(t)
	case int:
		d = decimal.NewFromInt(int64(t))
	case int64:
		d = decimal.NewFromInt(t)
	case json.Number:
		parsed, err := decimal.NewFromString(t.String())
		if err != nil {
			return decimal.Zero
		}
		d = parsed
	case string:
		parsed, err := decimal.NewFromString(strings.TrimSpace(t))
		if err != nil {
			return decimal.Zero
		}
		d = parsed
	default:
		return decimal.Zero
	}
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// instant accepts RFC3339 text, unix milliseconds, or a {seconds, nanoseconds} object
func instant(v any) time.Time {
	switch t := v.(type) {
	case string:
		if ts, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(t)); err == nil {
			return ts.UTC()
		}
	case float64:
		return time.UnixMilli(int64(t)).UTC()
	case int64:
		return time.UnixMilli(t).UTC()
	case map[string]any:
		sec, ok := number(t["seconds"], t["_seconds"])
		if !ok {
			return time.Time{}
		}
		nsec, _ := number(t["nanoseconds"], t["_nanoseconds"])
		return time.Unix(int64(sec), int64(nsec)).UTC()
	}
	return time.Time{}
}

func number(candidates ...any) (float64, bool) {
	for _, c := range candidates {
		if f, ok := c.(float64); ok {
			return f, true
		}
	}
	return 0, false
}

func items(v any) []models.OrderItem {
	raw, ok := v.([]any)
	if !ok {
		return []models.OrderItem{}
	}
	out := make([]models.OrderItem, 0, len(raw))
	for _, r := range raw {
		m, ok := r.(map[string]any)
		if !ok {
			continue
		}
		qty := 1
		if f, ok := m["quantity"].(float64); ok && f >= 1 {
			qty = int(f)
		}
		out = append(out, models.OrderItem{
			Name:     str(m["name"]),
			Quantity: qty,
		})
	}
	return out
}

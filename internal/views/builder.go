// Package views derives the dashboard views from order and product snapshots.
package views

import (
	"sort"

	"order-console/internal/models"

	"github.com/shopspring/decimal"
)

// Build derives every view from the current orders and products.
//
// Inputs are not modified. The result shares no slices with them, so two calls
// with equal inputs yield equal, independent outputs.
func Build(orders []models.Order, products []models.Product) models.Views {
	list := SortOrders(orders)

	v := models.Views{
		Orders:    list,
		Customers: Customers(list),
		Stats:     Stats(list, products),
		Products:  SortProducts(products),
	}
	if len(list) > 0 {
		latest := list[0]
		v.LatestOrder = &latest
	}
	return v
}

// SortOrders returns a copy ordered newest first, ties by id ascending
func SortOrders(orders []models.Order) []models.Order {
	out := make([]models.Order, len(orders))
	for i, o := range orders {
		out[i] = o
		out[i].Items = append([]models.OrderItem{}, o.Items...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// SortProducts returns a copy ordered newest first, ties by id ascending
func SortProducts(products []models.Product) []models.Product {
	out := append([]models.Product{}, products...)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Customers keeps the first order seen per user while scanning orderList.
// With a newest-first list the most recent order supplies the user fields.
func Customers(orderList []models.Order) []models.CustomerSummary {
	seen := make(map[string]struct{}, len(orderList))
	out := []models.CustomerSummary{}
	for _, o := range orderList {
		if _, ok := seen[o.UserID]; ok {
			continue
		}
		seen[o.UserID] = struct{}{}
		out = append(out, models.CustomerSummary{
			UserID:      o.UserID,
			Name:        o.UserName,
			Email:       o.UserEmail,
			FirstSeenAt: o.CreatedAt,
		})
	}
	return out
}

// Stats aggregates counts and sales; totalSales is rounded to 2 places
func Stats(orders []models.Order, products []models.Product) models.DashboardStats {
	stats := models.DashboardStats{
		OrderCount:  len(orders),
		CatalogSize: len(products),
	}
	total := decimal.Zero
	for _, o := range orders {
		if o.Status.IsOpen() {
			stats.PendingCount++
		}
		total = total.Add(o.TotalAmount)
	}
	stats.TotalSales = total.Round(2)
	return stats
}

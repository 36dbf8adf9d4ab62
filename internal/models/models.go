package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the fulfilment state of an order
type OrderStatus string

// Order statuses, stored with the labels the console has always written
const (
	OrderStatusPending        OrderStatus = "Pending"
	OrderStatusPreparing      OrderStatus = "Preparing"
	OrderStatusOutForDelivery OrderStatus = "Out for Delivery"
	OrderStatusDelivered      OrderStatus = "Delivered"
)

// OrderStatuses lists every status in workflow order
var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusPreparing,
	OrderStatusOutForDelivery,
	OrderStatusDelivered,
}

// ParseOrderStatus accepts the stored label or its compact form ("OutForDelivery"),
// ignoring case and surrounding whitespace.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	key := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
	for _, st := range OrderStatuses {
		if key == strings.ToLower(strings.ReplaceAll(string(st), " ", "")) {
			return st, true
		}
	}
	return "", false
}

// IsOpen reports whether the order has not been shipped yet
func (s OrderStatus) IsOpen() bool {
	return s == OrderStatusPending || s == OrderStatusPreparing
}

// Category groups catalog products
type Category string

const (
	CategorySweets   Category = "Sweets"
	CategorySnacks   Category = "Snacks"
	CategorySpecials Category = "Specials"
)

// Categories lists every catalog category
var Categories = []Category{CategorySweets, CategorySnacks, CategorySpecials}

// ParseCategory matches a category name case-insensitively
func ParseCategory(s string) (Category, bool) {
	for _, c := range Categories {
		if strings.EqualFold(strings.TrimSpace(s), string(c)) {
			return c, true
		}
	}
	return "", false
}

// OrderItem is one line of an order
type OrderItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// Order represents a customer order as held by the document store
type Order struct {
	ID          string          `json:"id"`
	UserID      string          `json:"userId"`
	UserName    string          `json:"userName"`
	UserEmail   string          `json:"userEmail"`
	CreatedAt   time.Time       `json:"createdAt"`
	Status      OrderStatus     `json:"status"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Items       []OrderItem     `json:"items"`
}

// Product represents a product in the catalog
type Product struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Category  Category        `json:"category"`
	Image     string          `json:"image"`
	CreatedAt time.Time       `json:"createdAt"`
}

// ProductDraft is operator input for a new catalog entry
type ProductDraft struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Category string  `json:"category"`
	Image    string  `json:"image"`
}

// CustomerSummary is derived from orders, one per user
type CustomerSummary struct {
	UserID      string    `json:"userId"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	FirstSeenAt time.Time `json:"firstSeenAt"`
}

// DashboardStats aggregates the current order and product sets
type DashboardStats struct {
	OrderCount   int             `json:"orderCount"`
	PendingCount int             `json:"pendingCount"`
	TotalSales   decimal.Decimal `json:"totalSales"`
	CatalogSize  int             `json:"catalogSize"`
}

// Views is the derived triple plus the catalog listing
type Views struct {
	Orders      []Order           `json:"orders"`
	Customers   []CustomerSummary `json:"customers"`
	Stats       DashboardStats    `json:"stats"`
	LatestOrder *Order            `json:"latestOrder,omitempty"`
	Products    []Product         `json:"products"`
}

package orders

import (
	"errors"
	"time"
)

// OrderStatus is the fulfilment state of a customer order. Unlike stock
// orders there is no enforced progression; admins set it directly.
type OrderStatus string

const (
	StatusProcessing OrderStatus = "processing"
	StatusShipped    OrderStatus = "shipped"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
)

// Valid reports whether the status is known.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Order is a customer purchase. Totals are computed at creation and frozen.
type Order struct {
	ID         int64
	Reference  string
	CustomerID string
	Status     OrderStatus
	Subtotal   float64
	Shipping   float64
	Total      float64
	Lines      []OrderLine
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// OrderLine is one product/size position. UnitPrice is snapshotted from the
// catalog at order time.
type OrderLine struct {
	ID        int64
	OrderID   int64
	ProductID int64
	Size      string
	Quantity  int64
	UnitPrice float64
}

var (
	// ErrNotFound indicates a missing order.
	ErrNotFound = errors.New("orders: order not found")
	// ErrEmptyOrder indicates an order without lines.
	ErrEmptyOrder = errors.New("orders: at least one line required")
	// ErrInvalidQuantity indicates a non-positive line quantity.
	ErrInvalidQuantity = errors.New("orders: line quantity must be positive")
	// ErrInvalidStatus indicates an unknown fulfilment status.
	ErrInvalidStatus = errors.New("orders: unknown order status")
)

// Shipping charge: flat rate waived above the free-shipping threshold.
const (
	flatShippingRate      = 9.90
	freeShippingThreshold = 100.0
)

// ComputeTotals derives subtotal, shipping, and total from the lines.
func ComputeTotals(lines []OrderLine) (subtotal, shipping, total float64) {
	for _, line := range lines {
		subtotal += float64(line.Quantity) * line.UnitPrice
	}
	if subtotal > 0 && subtotal < freeShippingThreshold {
		shipping = flatShippingRate
	}
	return subtotal, shipping, subtotal + shipping
}

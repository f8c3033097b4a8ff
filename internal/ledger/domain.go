package ledger

import (
	"errors"
	"time"
)

// StockStatus classifies a record by its on-hand quantity. It is always
// derived from (totalStock, reorderLevel) and never stored.
type StockStatus string

const (
	// StatusInStock means quantity is above the reorder level.
	StatusInStock StockStatus = "in_stock"
	// StatusLowStock means quantity is positive but at or below the reorder level.
	StatusLowStock StockStatus = "low_stock"
	// StatusOutOfStock means quantity is zero.
	StatusOutOfStock StockStatus = "out_of_stock"
)

// StatusFor computes the stock status. Every read and mutation path goes
// through this single function so the derived field cannot drift.
func StatusFor(totalStock, reorderLevel int64) StockStatus {
	switch {
	case totalStock <= 0:
		return StatusOutOfStock
	case totalStock <= reorderLevel:
		return StatusLowStock
	default:
		return StatusInStock
	}
}

// AdjustmentMode enumerates supported stock adjustments.
type AdjustmentMode string

const (
	// ModeAdd increases on-hand quantity.
	ModeAdd AdjustmentMode = "add"
	// ModeRemove decreases on-hand quantity, clamped at zero.
	ModeRemove AdjustmentMode = "remove"
	// ModeSet replaces on-hand quantity with an exact value.
	ModeSet AdjustmentMode = "set"
)

// LogAction categorises why an adjustment happened.
type LogAction string

const (
	// ActionRestock marks inbound stock, e.g. a delivered stock order.
	ActionRestock LogAction = "restock"
	// ActionSale marks outbound stock from customer order fulfilment.
	ActionSale LogAction = "sale"
	// ActionAdjustment marks manual corrections.
	ActionAdjustment LogAction = "adjustment"
)

// StockRecord is the authoritative per-product quantity on hand.
type StockRecord struct {
	ID            int64
	ProductID     int64
	SKU           string
	TotalStock    int64
	ReservedStock int64
	ReorderLevel  int64
	LastRestocked *time.Time
	Version       int64
	UpdatedAt     time.Time
}

// AvailableStock is total minus reserved. Reservations are tracked but never
// taken anywhere yet, so this usually equals TotalStock.
func (r StockRecord) AvailableStock() int64 {
	available := r.TotalStock - r.ReservedStock
	if available < 0 {
		return 0
	}
	return available
}

// Status derives the stock status for this record.
func (r StockRecord) Status() StockStatus {
	return StatusFor(r.TotalStock, r.ReorderLevel)
}

// AdjustmentLogEntry is an immutable audit row capturing one quantity change.
// Invariant: NewStock == PreviousStock + QuantityDelta, and PreviousStock
// equals the record's TotalStock immediately before the entry.
type AdjustmentLogEntry struct {
	ID            int64
	ProductID     int64
	ProductName   string
	SKU           string
	Action        LogAction
	QuantityDelta int64
	PreviousStock int64
	NewStock      int64
	Reason        string
	Notes         string
	Size          string
	OrderID       int64
	PerformedBy   string
	CreatedAt     time.Time
}

// StockOrderStatus tracks a supplier purchase order through delivery.
type StockOrderStatus string

const (
	StockOrderPending   StockOrderStatus = "pending"
	StockOrderApproved  StockOrderStatus = "approved"
	StockOrderShipped   StockOrderStatus = "shipped"
	StockOrderDelivered StockOrderStatus = "delivered"
	StockOrderCancelled StockOrderStatus = "cancelled"
)

// forward transitions; cancellation is handled separately.
var nextStockOrderStatus = map[StockOrderStatus]StockOrderStatus{
	StockOrderPending:  StockOrderApproved,
	StockOrderApproved: StockOrderShipped,
	StockOrderShipped:  StockOrderDelivered,
}

// Valid reports whether the status is a known lifecycle state.
func (s StockOrderStatus) Valid() bool {
	switch s {
	case StockOrderPending, StockOrderApproved, StockOrderShipped, StockOrderDelivered, StockOrderCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are allowed.
func (s StockOrderStatus) Terminal() bool {
	return s == StockOrderDelivered || s == StockOrderCancelled
}

// CanTransitionTo reports whether next is the immediate successor in the
// lifecycle, or a cancellation of a non-terminal order.
func (s StockOrderStatus) CanTransitionTo(next StockOrderStatus) bool {
	if s.Terminal() {
		return false
	}
	if next == StockOrderCancelled {
		return true
	}
	return nextStockOrderStatus[s] == next
}

// StockOrder is a purchase order placed with a supplier. ProductName and SKU
// are snapshots taken at creation time.
type StockOrder struct {
	ID                int64
	ProductID         int64
	ProductName       string
	SKU               string
	Quantity          int64
	Supplier          string
	EstimatedDelivery *time.Time
	Notes             string
	Status            StockOrderStatus
	CreatedBy         string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

var (
	// ErrInvalidQuantity indicates a non-positive adjustment or order quantity.
	ErrInvalidQuantity = errors.New("ledger: quantity must be a positive integer")
	// ErrInvalidMode indicates an unknown adjustment mode.
	ErrInvalidMode = errors.New("ledger: unknown adjustment mode")
	// ErrIllegalTransition indicates a stock order status change that violates the lifecycle.
	ErrIllegalTransition = errors.New("ledger: illegal stock order transition")
	// ErrRecordNotFound indicates a missing stock record.
	ErrRecordNotFound = errors.New("ledger: stock record not found")
	// ErrOrderNotFound indicates a missing stock order.
	ErrOrderNotFound = errors.New("ledger: stock order not found")
	// ErrStaleWrite indicates a concurrent modification; the caller must re-fetch and retry.
	ErrStaleWrite = errors.New("ledger: stock record modified concurrently")
)

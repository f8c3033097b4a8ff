package catalog

import (
	"errors"
	"time"
)

// Product is a catalog entry for one shoe model. Sizes maps a size label to
// the quantity available in that size; TotalStock is a display field refreshed
// by the ledger after each stock mutation and is not authoritative.
type Product struct {
	ID         int64
	SKU        string
	Name       string
	Brand      string
	Category   string
	Price      float64
	Sizes      map[string]int64
	Images     []string
	TotalStock int64
	IsActive   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ListFilter narrows and orders product listings.
type ListFilter struct {
	Search     string
	Category   string
	Brand      string
	ActiveOnly bool
	SortBy     string
	SortDir    string
	Limit      int
	Offset     int
}

var (
	// ErrNotFound indicates a missing product.
	ErrNotFound = errors.New("catalog: product not found")
	// ErrDuplicateSKU indicates a SKU collision on create or update.
	ErrDuplicateSKU = errors.New("catalog: sku already exists")
)

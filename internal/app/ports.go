package app

import (
	"context"

	"github.com/solemart/solemart/internal/catalog"
	"github.com/solemart/solemart/internal/ledger"
)

// CatalogAdapter exposes the catalog service as the ledger's CatalogPort and
// the orders module's price source.
type CatalogAdapter struct {
	Service *catalog.Service
}

// Ref resolves product metadata for snapshots.
func (a *CatalogAdapter) Ref(ctx context.Context, productID int64) (ledger.ProductRef, error) {
	product, err := a.Service.Get(ctx, productID)
	if err != nil {
		return ledger.ProductRef{}, err
	}
	return ledger.ProductRef{
		ID:    product.ID,
		Name:  product.Name,
		SKU:   product.SKU,
		Brand: product.Brand,
		Price: product.Price,
	}, nil
}

// Prices returns the unit price per product id.
func (a *CatalogAdapter) Prices(ctx context.Context) (map[int64]float64, error) {
	return a.Service.Prices(ctx)
}

// UpdateDisplayStock refreshes the denormalised stock display field.
func (a *CatalogAdapter) UpdateDisplayStock(ctx context.Context, productID, totalStock int64) error {
	return a.Service.UpdateDisplayStock(ctx, productID, totalStock)
}

// StockSeeder bridges catalog product creation to ledger record creation.
// The ledger service is attached after construction because the two services
// reference each other.
type StockSeeder struct {
	Ledger *ledger.Service
}

// EnsureRecord creates the stock record for a new product.
func (s *StockSeeder) EnsureRecord(ctx context.Context, productID int64, sku string, initialStock, reorderLevel int64) error {
	if s.Ledger == nil {
		return nil
	}
	_, err := s.Ledger.EnsureRecord(ctx, productID, sku, initialStock, reorderLevel)
	return err
}

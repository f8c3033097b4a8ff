package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/solemart/solemart/internal/ledger"
	"github.com/solemart/solemart/internal/shared"
)

// StockAPI is the ledger surface the scanner needs.
type StockAPI interface {
	Records(ctx context.Context) ([]ledger.StockRecord, error)
	HasOpenStockOrder(ctx context.Context, productID int64) (bool, error)
	CreateStockOrder(ctx context.Context, input ledger.CreateStockOrderInput) (ledger.StockOrder, error)
}

// CatalogAPI resolves product metadata for supplier defaults.
type CatalogAPI interface {
	Ref(ctx context.Context, productID int64) (ledger.ProductRef, error)
}

// LowStockScanner walks the stock records and raises pending replenishment
// orders for products at or below their reorder level that have no open
// stock order yet.
type LowStockScanner struct {
	stock   StockAPI
	catalog CatalogAPI
	logger  *slog.Logger
}

// NewLowStockScanner constructs the scanner.
func NewLowStockScanner(stock StockAPI, catalog CatalogAPI, logger *slog.Logger) *LowStockScanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &LowStockScanner{stock: stock, catalog: catalog, logger: logger}
}

// Handler returns the asynq handler for TaskTypeLowStockScan.
func (s *LowStockScanner) Handler() asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		created, err := s.Scan(ctx)
		if err != nil {
			return err
		}
		s.logger.Info("low stock scan finished", slog.Int("orders_created", created))
		return nil
	}
}

// Scan runs one pass and returns the number of stock orders created.
func (s *LowStockScanner) Scan(ctx context.Context) (int, error) {
	ctx = shared.ContextWithActor(ctx, shared.System)

	records, err := s.stock.Records(ctx)
	if err != nil {
		return 0, err
	}

	created := 0
	for _, record := range records {
		if record.Status() != ledger.StatusLowStock {
			continue
		}
		open, err := s.stock.HasOpenStockOrder(ctx, record.ProductID)
		if err != nil {
			return created, err
		}
		if open {
			continue
		}

		supplier := "unassigned"
		if s.catalog != nil {
			if ref, err := s.catalog.Ref(ctx, record.ProductID); err == nil && ref.Brand != "" {
				supplier = ref.Brand
			}
		}

		// restock to twice the reorder level
		quantity := record.ReorderLevel*2 - record.TotalStock
		if quantity < 1 {
			quantity = 1
		}
		_, err = s.stock.CreateStockOrder(ctx, ledger.CreateStockOrderInput{
			ProductID: record.ProductID,
			Quantity:  quantity,
			Supplier:  supplier,
			Notes:     "Automatic replenishment",
		})
		if err != nil {
			s.logger.Warn("create replenishment order",
				slog.Int64("product_id", record.ProductID),
				slog.Any("error", err))
			continue
		}
		created++
	}
	return created, nil
}

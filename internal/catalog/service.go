package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/solemart/solemart/internal/shared"
)

// StockSeeder creates the stock record that tracks a new product's quantity.
type StockSeeder interface {
	EnsureRecord(ctx context.Context, productID int64, sku string, initialStock, reorderLevel int64) error
}

// AuditPort records admin actions on the catalog.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service manages the product catalog.
type Service struct {
	repo   RepositoryPort
	stock  StockSeeder
	audit  AuditPort
	logger *slog.Logger
}

// NewService builds the catalog service. stock and audit may be nil in tests.
func NewService(repo RepositoryPort, stock StockSeeder, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, stock: stock, audit: audit, logger: logger}
}

// CreateProductInput describes a new product. InitialStock and ReorderLevel
// seed the product's stock record.
type CreateProductInput struct {
	SKU          string
	Name         string
	Brand        string
	Category     string
	Price        float64
	Sizes        map[string]int64
	Images       []string
	InitialStock int64
	ReorderLevel int64
}

var errNegativePrice = errors.New("catalog: price must not be negative")

// Create registers a product and seeds its stock record.
func (s *Service) Create(ctx context.Context, input CreateProductInput) (Product, error) {
	if input.Price < 0 {
		return Product{}, errNegativePrice
	}
	product, err := s.repo.Create(ctx, Product{
		SKU:        input.SKU,
		Name:       input.Name,
		Brand:      input.Brand,
		Category:   input.Category,
		Price:      input.Price,
		Sizes:      input.Sizes,
		Images:     input.Images,
		TotalStock: input.InitialStock,
	})
	if err != nil {
		return Product{}, err
	}

	if s.stock != nil {
		if err := s.stock.EnsureRecord(ctx, product.ID, product.SKU, input.InitialStock, input.ReorderLevel); err != nil {
			s.logger.Error("seed stock record", slog.Int64("product_id", product.ID), slog.Any("error", err))
		}
	}
	s.recordAudit(ctx, "PRODUCT_CREATE", product.ID, map[string]any{"sku": product.SKU})
	return product, nil
}

// UpdateProductInput rewrites the editable product fields. TotalStock is
// excluded: only the ledger writes it back.
type UpdateProductInput struct {
	SKU      string
	Name     string
	Brand    string
	Category string
	Price    float64
	Sizes    map[string]int64
	Images   []string
	IsActive bool
}

// Update rewrites a product.
func (s *Service) Update(ctx context.Context, id int64, input UpdateProductInput) (Product, error) {
	if input.Price < 0 {
		return Product{}, errNegativePrice
	}
	product, err := s.repo.Get(ctx, id)
	if err != nil {
		return Product{}, err
	}
	product.SKU = input.SKU
	product.Name = input.Name
	product.Brand = input.Brand
	product.Category = input.Category
	product.Price = input.Price
	product.Sizes = input.Sizes
	product.Images = input.Images
	product.IsActive = input.IsActive
	if err := s.repo.Update(ctx, product); err != nil {
		return Product{}, err
	}
	s.recordAudit(ctx, "PRODUCT_UPDATE", id, map[string]any{"sku": product.SKU})
	return s.repo.Get(ctx, id)
}

// Delete deactivates a product.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, "PRODUCT_DELETE", id, nil)
	return nil
}

// Get returns one product.
func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	return s.repo.Get(ctx, id)
}

// List returns products matching the filter plus the unpaged total.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Product, int, error) {
	return s.repo.List(ctx, filter)
}

// Prices returns the unit price per product id.
func (s *Service) Prices(ctx context.Context) (map[int64]float64, error) {
	return s.repo.Prices(ctx)
}

// UpdateDisplayStock refreshes the denormalised stock display field.
func (s *Service) UpdateDisplayStock(ctx context.Context, productID, totalStock int64) error {
	return s.repo.UpdateDisplayStock(ctx, productID, totalStock)
}

func (s *Service) recordAudit(ctx context.Context, action string, productID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		Actor:    shared.ActorFromContext(ctx).Name,
		Action:   action,
		Entity:   "product",
		EntityID: fmt.Sprintf("%d", productID),
		Meta:     meta,
	})
}

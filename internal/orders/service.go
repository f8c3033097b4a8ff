package orders

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/solemart/solemart/internal/ledger"
	"github.com/solemart/solemart/internal/shared"
)

// RepositoryPort abstracts order persistence.
type RepositoryPort interface {
	Create(ctx context.Context, order Order) (Order, error)
	Get(ctx context.Context, id int64) (Order, error)
	List(ctx context.Context, customerID string) ([]Order, error)
	UpdateStatus(ctx context.Context, id int64, status OrderStatus) error
}

// StockPort is the ledger surface orders fulfil against.
type StockPort interface {
	AdjustStock(ctx context.Context, input ledger.AdjustStockInput) (ledger.AdjustStockResult, error)
}

// PricePort resolves catalog unit prices for line snapshots.
type PricePort interface {
	Ref(ctx context.Context, productID int64) (ledger.ProductRef, error)
}

// AuditPort records admin actions on orders.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service places and manages customer orders.
type Service struct {
	repo    RepositoryPort
	stock   StockPort
	catalog PricePort
	audit   AuditPort
	logger  *slog.Logger
	now     func() time.Time
}

// NewService builds the orders service. stock, catalog, and audit may be nil
// in tests.
func NewService(repo RepositoryPort, stock StockPort, catalog PricePort, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, stock: stock, catalog: catalog, audit: audit, logger: logger, now: time.Now}
}

// LineInput is one requested product/size position.
type LineInput struct {
	ProductID int64
	Size      string
	Quantity  int64
}

// CreateOrderInput describes a checkout.
type CreateOrderInput struct {
	CustomerID string
	Lines      []LineInput
}

// Create places an order: snapshots unit prices, computes totals, persists
// the order, and books one sale adjustment per line in the ledger. The order
// is the source of truth; a line whose stock record is missing still ships,
// it just leaves no ledger entry and is logged as a gap.
func (s *Service) Create(ctx context.Context, input CreateOrderInput) (Order, error) {
	if len(input.Lines) == 0 {
		return Order{}, ErrEmptyOrder
	}

	lines := make([]OrderLine, 0, len(input.Lines))
	for _, line := range input.Lines {
		if line.Quantity <= 0 {
			return Order{}, ErrInvalidQuantity
		}
		var price float64
		if s.catalog != nil {
			ref, err := s.catalog.Ref(ctx, line.ProductID)
			if err != nil {
				return Order{}, fmt.Errorf("resolve product %d: %w", line.ProductID, err)
			}
			price = ref.Price
		}
		lines = append(lines, OrderLine{
			ProductID: line.ProductID,
			Size:      line.Size,
			Quantity:  line.Quantity,
			UnitPrice: price,
		})
	}

	subtotal, shipping, total := ComputeTotals(lines)
	now := s.now().UTC()
	order, err := s.repo.Create(ctx, Order{
		Reference:  uuid.NewString(),
		CustomerID: input.CustomerID,
		Status:     StatusProcessing,
		Subtotal:   subtotal,
		Shipping:   shipping,
		Total:      total,
		Lines:      lines,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		return Order{}, err
	}

	s.bookSales(ctx, order)
	return order, nil
}

// bookSales decrements stock per line. The order itself already committed,
// so ledger failures are warnings, not rollbacks.
func (s *Service) bookSales(ctx context.Context, order Order) {
	if s.stock == nil {
		return
	}
	for _, line := range order.Lines {
		_, err := s.stock.AdjustStock(ctx, ledger.AdjustStockInput{
			ProductID: line.ProductID,
			Mode:      ledger.ModeRemove,
			Quantity:  line.Quantity,
			Reason:    "Customer Order",
			Notes:     fmt.Sprintf("Order #%d", order.ID),
			Size:      line.Size,
			Action:    ledger.ActionSale,
		})
		if err != nil {
			s.logger.Warn("book sale adjustment",
				slog.Int64("order_id", order.ID),
				slog.Int64("product_id", line.ProductID),
				slog.Any("error", err))
		}
	}
}

// Get returns one order with its lines.
func (s *Service) Get(ctx context.Context, id int64) (Order, error) {
	return s.repo.Get(ctx, id)
}

// List returns orders, optionally restricted to one customer, newest first.
func (s *Service) List(ctx context.Context, customerID string) ([]Order, error) {
	return s.repo.List(ctx, customerID)
}

// UpdateStatus sets the fulfilment status. No side effects; cancelling an
// order does not restock, that is a manual adjustment decision.
func (s *Service) UpdateStatus(ctx context.Context, id int64, status OrderStatus) (Order, error) {
	if !status.Valid() {
		return Order{}, ErrInvalidStatus
	}
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return Order{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Actor:    shared.ActorFromContext(ctx).Name,
			Action:   "ORDER_STATUS_UPDATE",
			Entity:   "order",
			EntityID: fmt.Sprintf("%d", id),
			Meta:     map[string]any{"status": string(status)},
		})
	}
	return s.repo.Get(ctx, id)
}

package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/solemart/solemart/internal/shared"
)

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetRecord(ctx context.Context, id int64) (StockRecord, error)
	GetRecordByProduct(ctx context.Context, productID int64) (StockRecord, error)
	ListRecords(ctx context.Context) ([]StockRecord, error)
	ListLog(ctx context.Context, productID int64, limit int) ([]AdjustmentLogEntry, error)
	GetStockOrder(ctx context.Context, id int64) (StockOrder, error)
	ListStockOrders(ctx context.Context, filter StockOrderFilter) ([]StockOrder, error)
	CreateRecord(ctx context.Context, record StockRecord) (StockRecord, error)
	CreateStockOrder(ctx context.Context, order StockOrder) (int64, error)
	UpdateStockOrder(ctx context.Context, order StockOrder) error
	DeleteStockOrder(ctx context.Context, id int64) error
	HasOpenStockOrder(ctx context.Context, productID int64) (bool, error)
}

// TxRepository exposes the operations that must run inside one transaction.
// The record row is locked for update, so the write pair (record + log entry)
// is applied all-or-nothing and concurrent adjusters serialise per product.
type TxRepository interface {
	GetRecordForUpdate(ctx context.Context, productID int64) (StockRecord, error)
	UpdateRecord(ctx context.Context, record StockRecord) (StockRecord, error)
	AppendLog(ctx context.Context, entry AdjustmentLogEntry) (AdjustmentLogEntry, error)
	GetStockOrderForUpdate(ctx context.Context, id int64) (StockOrder, error)
	UpdateStockOrderStatus(ctx context.Context, id int64, status StockOrderStatus) error
}

// ProductRef is the catalog metadata the ledger needs.
type ProductRef struct {
	ID    int64
	Name  string
	SKU   string
	Brand string
	Price float64
}

// CatalogPort exposes the read side of the product catalog plus the one field
// the ledger is allowed to write back: the cached display stock.
type CatalogPort interface {
	Ref(ctx context.Context, productID int64) (ProductRef, error)
	Prices(ctx context.Context) (map[int64]float64, error)
	UpdateDisplayStock(ctx context.Context, productID, totalStock int64) error
}

// AuditPort records admin actions around the ledger. Stock quantity changes
// are not recorded here; the adjustment log is their audit trail and carries
// exactly one row per mutation.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort counts committed stock adjustments.
type MetricsPort interface {
	ObserveAdjustment(action string)
}

// IdempotencyPort guards adjustments against blind client retries. A key is
// claimed before the write and released again when the write fails, so a
// clean retry can reuse it.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// StockOrderFilter narrows stock order listings.
type StockOrderFilter struct {
	Status    StockOrderStatus
	ProductID int64
}

// Service owns the invariant relationship between stock records, stock
// orders, and the adjustment log.
type Service struct {
	repo        RepositoryPort
	catalog     CatalogPort
	audit       AuditPort
	idempotency IdempotencyPort
	stats       *StatsCache
	metrics     MetricsPort
	logger      *slog.Logger
	now         func() time.Time
}

// WithMetrics attaches the adjustment counter.
func (s *Service) WithMetrics(m MetricsPort) *Service {
	s.metrics = m
	return s
}

// NewService builds the ledger service. audit, idempotency and stats may be
// nil in tests.
func NewService(repo RepositoryPort, catalog CatalogPort, audit AuditPort, idem IdempotencyPort, stats *StatsCache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:        repo,
		catalog:     catalog,
		audit:       audit,
		idempotency: idem,
		stats:       stats,
		logger:      logger,
		now:         time.Now,
	}
}

// AdjustStockInput describes a requested stock adjustment.
type AdjustStockInput struct {
	ProductID      int64
	Mode           AdjustmentMode
	Quantity       int64
	Reason         string
	Notes          string
	Size           string
	Action         LogAction // defaults to ActionAdjustment
	OrderID        int64     // set when triggered by a delivered stock order
	IdempotencyKey string    // optional guard against blind client retries
}

// AdjustStockResult carries the committed state after an adjustment.
type AdjustStockResult struct {
	Record StockRecord
	Entry  AdjustmentLogEntry
}

// AdjustStock applies one manual or system-triggered stock adjustment. The
// record write and the single log append commit atomically; replaying the
// same call doubles the effect, which is why retries must carry an
// idempotency key.
func (s *Service) AdjustStock(ctx context.Context, input AdjustStockInput) (AdjustStockResult, error) {
	if input.Quantity <= 0 {
		return AdjustStockResult{}, ErrInvalidQuantity
	}
	switch input.Mode {
	case ModeAdd, ModeRemove, ModeSet:
	default:
		return AdjustStockResult{}, ErrInvalidMode
	}

	insertedKey := false
	if input.IdempotencyKey != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, input.IdempotencyKey, "ledger.adjust"); err != nil {
			return AdjustStockResult{}, err
		}
		insertedKey = true
	}

	var result AdjustStockResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		result, err = s.applyAdjustment(ctx, tx, input)
		return err
	})
	if err != nil {
		if insertedKey {
			_ = s.idempotency.Delete(ctx, input.IdempotencyKey)
		}
		return AdjustStockResult{}, err
	}

	s.afterMutation(ctx, result.Record)
	s.observe(result.Entry.Action)
	return result, nil
}

// applyAdjustment runs inside an open transaction so stock order delivery can
// reuse it and commit the order transition and the restock together.
func (s *Service) applyAdjustment(ctx context.Context, tx TxRepository, input AdjustStockInput) (AdjustStockResult, error) {
	record, err := tx.GetRecordForUpdate(ctx, input.ProductID)
	if err != nil {
		return AdjustStockResult{}, err
	}

	previous := record.TotalStock
	var newStock, delta int64
	switch input.Mode {
	case ModeAdd:
		newStock = previous + input.Quantity
		delta = input.Quantity
	case ModeRemove:
		// Removing more than on hand clamps at zero; the delta reflects the
		// clamped result, never the requested quantity.
		removed := min64(input.Quantity, previous)
		newStock = previous - removed
		delta = -removed
	case ModeSet:
		newStock = input.Quantity
		delta = input.Quantity - previous
	}

	now := s.now().UTC()
	record.TotalStock = newStock
	if input.Mode == ModeAdd {
		record.LastRestocked = &now
	}
	record, err = tx.UpdateRecord(ctx, record)
	if err != nil {
		return AdjustStockResult{}, err
	}

	action := input.Action
	if action == "" {
		action = ActionAdjustment
	}
	productName, sku := s.snapshotRef(ctx, input.ProductID, record.SKU)
	entry := AdjustmentLogEntry{
		ProductID:     input.ProductID,
		ProductName:   productName,
		SKU:           sku,
		Action:        action,
		QuantityDelta: delta,
		PreviousStock: previous,
		NewStock:      newStock,
		Reason:        input.Reason,
		Notes:         input.Notes,
		Size:          input.Size,
		OrderID:       input.OrderID,
		PerformedBy:   shared.ActorFromContext(ctx).Name,
		CreatedAt:     now,
	}
	entry, err = tx.AppendLog(ctx, entry)
	if err != nil {
		return AdjustStockResult{}, err
	}

	return AdjustStockResult{Record: record, Entry: entry}, nil
}

// TransitionResult reports the committed transition. MissingInventory is set
// when a delivery found no stock record to credit; the order still moved to
// delivered because the shipment is a real-world fact.
type TransitionResult struct {
	Order            StockOrder
	Record           *StockRecord
	MissingInventory bool
}

// TransitionStockOrder moves a stock order to next. Delivery additionally
// credits the product's stock record in the same transaction, at most once
// per order since delivered is terminal.
func (s *Service) TransitionStockOrder(ctx context.Context, orderID int64, next StockOrderStatus) (TransitionResult, error) {
	if !next.Valid() || next == StockOrderPending {
		return TransitionResult{}, ErrIllegalTransition
	}

	var result TransitionResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetStockOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !order.Status.CanTransitionTo(next) {
			return ErrIllegalTransition
		}
		if err := tx.UpdateStockOrderStatus(ctx, orderID, next); err != nil {
			return err
		}
		order.Status = next
		result.Order = order

		if next != StockOrderDelivered {
			return nil
		}
		adjusted, err := s.applyAdjustment(ctx, tx, AdjustStockInput{
			ProductID: order.ProductID,
			Mode:      ModeAdd,
			Quantity:  order.Quantity,
			Reason:    "Stock Order Received",
			Notes:     fmt.Sprintf("Stock order #%d from %s", order.ID, order.Supplier),
			Action:    ActionRestock,
			OrderID:   order.ID,
		})
		if errors.Is(err, ErrRecordNotFound) {
			// Bookkeeping gap, not a reason to reject the shipment.
			result.MissingInventory = true
			return nil
		}
		if err != nil {
			return err
		}
		result.Record = &adjusted.Record
		return nil
	})
	if err != nil {
		return TransitionResult{}, err
	}

	if result.MissingInventory {
		s.logger.Warn("stock order delivered without inventory record",
			slog.Int64("order_id", orderID),
			slog.Int64("product_id", result.Order.ProductID))
	}
	if result.Record != nil {
		s.afterMutation(ctx, *result.Record)
		s.observe(ActionRestock)
	}
	s.recordAudit(ctx, "STOCK_ORDER_TRANSITION", result.Order.ID, map[string]any{
		"status":     string(next),
		"product_id": result.Order.ProductID,
	})
	return result, nil
}

// CreateStockOrderInput describes a new supplier order.
type CreateStockOrderInput struct {
	ProductID         int64
	Quantity          int64
	Supplier          string
	EstimatedDelivery *time.Time
	Notes             string
}

// CreateStockOrder creates a pending stock order, snapshotting the product
// name and SKU from the catalog.
func (s *Service) CreateStockOrder(ctx context.Context, input CreateStockOrderInput) (StockOrder, error) {
	if input.Quantity <= 0 {
		return StockOrder{}, ErrInvalidQuantity
	}
	ref, err := s.catalog.Ref(ctx, input.ProductID)
	if err != nil {
		return StockOrder{}, err
	}

	now := s.now().UTC()
	order := StockOrder{
		ProductID:         input.ProductID,
		ProductName:       ref.Name,
		SKU:               ref.SKU,
		Quantity:          input.Quantity,
		Supplier:          input.Supplier,
		EstimatedDelivery: input.EstimatedDelivery,
		Notes:             input.Notes,
		Status:            StockOrderPending,
		CreatedBy:         shared.ActorFromContext(ctx).Name,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	id, err := s.repo.CreateStockOrder(ctx, order)
	if err != nil {
		return StockOrder{}, err
	}
	order.ID = id

	s.recordAudit(ctx, "STOCK_ORDER_CREATE", id, map[string]any{
		"product_id": input.ProductID,
		"quantity":   input.Quantity,
		"supplier":   input.Supplier,
	})
	return order, nil
}

// UpdateStockOrderInput edits order details while it is still pending.
type UpdateStockOrderInput struct {
	Quantity          int64
	Supplier          string
	EstimatedDelivery *time.Time
	Notes             string
}

// UpdateStockOrder edits a pending order. Orders past pending are immutable
// apart from status transitions.
func (s *Service) UpdateStockOrder(ctx context.Context, id int64, input UpdateStockOrderInput) (StockOrder, error) {
	if input.Quantity <= 0 {
		return StockOrder{}, ErrInvalidQuantity
	}
	order, err := s.repo.GetStockOrder(ctx, id)
	if err != nil {
		return StockOrder{}, err
	}
	if order.Status != StockOrderPending {
		return StockOrder{}, ErrIllegalTransition
	}
	order.Quantity = input.Quantity
	order.Supplier = input.Supplier
	order.EstimatedDelivery = input.EstimatedDelivery
	order.Notes = input.Notes
	order.UpdatedAt = s.now().UTC()
	if err := s.repo.UpdateStockOrder(ctx, order); err != nil {
		return StockOrder{}, err
	}
	return order, nil
}

// DeleteStockOrder removes a pending order.
func (s *Service) DeleteStockOrder(ctx context.Context, id int64) error {
	order, err := s.repo.GetStockOrder(ctx, id)
	if err != nil {
		return err
	}
	if order.Status != StockOrderPending {
		return ErrIllegalTransition
	}
	if err := s.repo.DeleteStockOrder(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, "STOCK_ORDER_DELETE", id, map[string]any{"product_id": order.ProductID})
	return nil
}

// GetStockOrder returns one order.
func (s *Service) GetStockOrder(ctx context.Context, id int64) (StockOrder, error) {
	return s.repo.GetStockOrder(ctx, id)
}

// HasOpenStockOrder reports whether a non-terminal order exists for a
// product. The low stock scanner uses it to avoid duplicate replenishment.
func (s *Service) HasOpenStockOrder(ctx context.Context, productID int64) (bool, error) {
	return s.repo.HasOpenStockOrder(ctx, productID)
}

// ListStockOrders returns orders matching the filter.
func (s *Service) ListStockOrders(ctx context.Context, filter StockOrderFilter) ([]StockOrder, error) {
	return s.repo.ListStockOrders(ctx, filter)
}

// Record returns one stock record by id.
func (s *Service) Record(ctx context.Context, id int64) (StockRecord, error) {
	return s.repo.GetRecord(ctx, id)
}

// RecordByProduct returns the stock record for a product.
func (s *Service) RecordByProduct(ctx context.Context, productID int64) (StockRecord, error) {
	return s.repo.GetRecordByProduct(ctx, productID)
}

// Records returns all stock records.
func (s *Service) Records(ctx context.Context) ([]StockRecord, error) {
	return s.repo.ListRecords(ctx)
}

// EnsureRecord creates the stock record for a product if none exists yet,
// for example when the catalog registers a new product. An existing record is
// returned untouched.
func (s *Service) EnsureRecord(ctx context.Context, productID int64, sku string, initialStock, reorderLevel int64) (StockRecord, error) {
	if initialStock < 0 || reorderLevel < 0 {
		return StockRecord{}, ErrInvalidQuantity
	}
	existing, err := s.repo.GetRecordByProduct(ctx, productID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrRecordNotFound) {
		return StockRecord{}, err
	}

	record, err := s.repo.CreateRecord(ctx, StockRecord{
		ProductID:    productID,
		SKU:          sku,
		TotalStock:   initialStock,
		ReorderLevel: reorderLevel,
		Version:      1,
		UpdatedAt:    s.now().UTC(),
	})
	if err != nil {
		return StockRecord{}, err
	}
	if s.stats != nil {
		if err := s.stats.Bump(ctx); err != nil {
			s.logger.Warn("bump stats cache", slog.Any("error", err))
		}
	}
	return record, nil
}

// UpdateRecordSettingsInput edits the configuration fields of a record.
// TotalStock is deliberately absent: quantity changes must go through
// AdjustStock so each mutation leaves exactly one log entry.
type UpdateRecordSettingsInput struct {
	ReorderLevel  int64
	ReservedStock int64
	Version       int64 // version read by the caller; mismatch fails the write
}

// UpdateRecordSettings applies an optimistic update to reorderLevel and
// reservedStock. A concurrent writer surfaces as ErrStaleWrite and the caller
// retries with fresh data.
func (s *Service) UpdateRecordSettings(ctx context.Context, id int64, input UpdateRecordSettingsInput) (StockRecord, error) {
	if input.ReorderLevel < 0 || input.ReservedStock < 0 {
		return StockRecord{}, ErrInvalidQuantity
	}
	var updated StockRecord
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		record, err := s.repo.GetRecord(ctx, id)
		if err != nil {
			return err
		}
		if record.Version != input.Version {
			return ErrStaleWrite
		}
		record.ReorderLevel = input.ReorderLevel
		record.ReservedStock = input.ReservedStock
		updated, err = tx.UpdateRecord(ctx, record)
		return err
	})
	if err != nil {
		return StockRecord{}, err
	}
	return updated, nil
}

// History returns all adjustment log entries for a product, newest first.
// Each call is a fresh snapshot, not a live stream.
func (s *Service) History(ctx context.Context, productID int64, limit int) ([]AdjustmentLogEntry, error) {
	return s.repo.ListLog(ctx, productID, limit)
}

// FullLog returns the adjustment log across all products, newest first.
func (s *Service) FullLog(ctx context.Context, limit int) ([]AdjustmentLogEntry, error) {
	return s.repo.ListLog(ctx, 0, limit)
}

// afterMutation refreshes the catalog display field and drops cached stats.
// Both are best-effort: the committed ledger state is authoritative.
func (s *Service) afterMutation(ctx context.Context, record StockRecord) {
	if s.catalog != nil {
		if err := s.catalog.UpdateDisplayStock(ctx, record.ProductID, record.TotalStock); err != nil {
			s.logger.Warn("refresh catalog display stock", slog.Int64("product_id", record.ProductID), slog.Any("error", err))
		}
	}
	if s.stats != nil {
		if err := s.stats.Bump(ctx); err != nil {
			s.logger.Warn("bump stats cache", slog.Any("error", err))
		}
	}
}

// snapshotRef denormalises product name and SKU into log entries.
func (s *Service) snapshotRef(ctx context.Context, productID int64, fallbackSKU string) (string, string) {
	if s.catalog == nil {
		return "", fallbackSKU
	}
	ref, err := s.catalog.Ref(ctx, productID)
	if err != nil {
		return "", fallbackSKU
	}
	sku := ref.SKU
	if sku == "" {
		sku = fallbackSKU
	}
	return ref.Name, sku
}

func (s *Service) recordAudit(ctx context.Context, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		Actor:    shared.ActorFromContext(ctx).Name,
		Action:   action,
		Entity:   "stock_order",
		EntityID: fmt.Sprintf("%d", entityID),
		Meta:     meta,
	})
}

func (s *Service) observe(action LogAction) {
	if s.metrics != nil {
		s.metrics.ObserveAdjustment(string(action))
	}
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

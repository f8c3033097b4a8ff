package ledger

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/solemart/solemart/internal/shared"
)

type memoryRepo struct {
	records map[int64]StockRecord // keyed by product id
	log     []AdjustmentLogEntry
	orders  map[int64]StockOrder

	nextRecordID int64
	nextLogID    int64
	nextOrderID  int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		records: make(map[int64]StockRecord),
		orders:  make(map[int64]StockOrder),
	}
}

func (r *memoryRepo) seedRecord(productID, totalStock, reorderLevel int64) StockRecord {
	r.nextRecordID++
	rec := StockRecord{
		ID:           r.nextRecordID,
		ProductID:    productID,
		SKU:          "SKU",
		TotalStock:   totalStock,
		ReorderLevel: reorderLevel,
		Version:      1,
		UpdatedAt:    time.Now().UTC(),
	}
	r.records[productID] = rec
	return rec
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) GetRecord(ctx context.Context, id int64) (StockRecord, error) {
	for _, rec := range r.records {
		if rec.ID == id {
			return rec, nil
		}
	}
	return StockRecord{}, ErrRecordNotFound
}

func (r *memoryRepo) GetRecordByProduct(ctx context.Context, productID int64) (StockRecord, error) {
	if rec, ok := r.records[productID]; ok {
		return rec, nil
	}
	return StockRecord{}, ErrRecordNotFound
}

func (r *memoryRepo) ListRecords(ctx context.Context) ([]StockRecord, error) {
	out := make([]StockRecord, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func (r *memoryRepo) ListLog(ctx context.Context, productID int64, limit int) ([]AdjustmentLogEntry, error) {
	var out []AdjustmentLogEntry
	for i := len(r.log) - 1; i >= 0; i-- {
		if productID != 0 && r.log[i].ProductID != productID {
			continue
		}
		out = append(out, r.log[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *memoryRepo) CreateRecord(ctx context.Context, record StockRecord) (StockRecord, error) {
	r.nextRecordID++
	record.ID = r.nextRecordID
	record.Version = 1
	record.UpdatedAt = time.Now().UTC()
	r.records[record.ProductID] = record
	return record, nil
}

func (r *memoryRepo) GetStockOrder(ctx context.Context, id int64) (StockOrder, error) {
	if order, ok := r.orders[id]; ok {
		return order, nil
	}
	return StockOrder{}, ErrOrderNotFound
}

func (r *memoryRepo) ListStockOrders(ctx context.Context, filter StockOrderFilter) ([]StockOrder, error) {
	var out []StockOrder
	for _, order := range r.orders {
		if filter.Status != "" && order.Status != filter.Status {
			continue
		}
		if filter.ProductID != 0 && order.ProductID != filter.ProductID {
			continue
		}
		out = append(out, order)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *memoryRepo) CreateStockOrder(ctx context.Context, order StockOrder) (int64, error) {
	r.nextOrderID++
	order.ID = r.nextOrderID
	r.orders[order.ID] = order
	return order.ID, nil
}

func (r *memoryRepo) UpdateStockOrder(ctx context.Context, order StockOrder) error {
	if _, ok := r.orders[order.ID]; !ok {
		return ErrOrderNotFound
	}
	r.orders[order.ID] = order
	return nil
}

func (r *memoryRepo) DeleteStockOrder(ctx context.Context, id int64) error {
	if _, ok := r.orders[id]; !ok {
		return ErrOrderNotFound
	}
	delete(r.orders, id)
	return nil
}

func (r *memoryRepo) HasOpenStockOrder(ctx context.Context, productID int64) (bool, error) {
	for _, order := range r.orders {
		if order.ProductID == productID && !order.Status.Terminal() {
			return true, nil
		}
	}
	return false, nil
}

func (tx *memoryTx) GetRecordForUpdate(ctx context.Context, productID int64) (StockRecord, error) {
	return tx.repo.GetRecordByProduct(ctx, productID)
}

func (tx *memoryTx) UpdateRecord(ctx context.Context, record StockRecord) (StockRecord, error) {
	stored, ok := tx.repo.records[record.ProductID]
	if !ok {
		return StockRecord{}, ErrStaleWrite
	}
	if stored.Version != record.Version {
		return StockRecord{}, ErrStaleWrite
	}
	record.Version++
	record.UpdatedAt = time.Now().UTC()
	tx.repo.records[record.ProductID] = record
	return record, nil
}

func (tx *memoryTx) AppendLog(ctx context.Context, entry AdjustmentLogEntry) (AdjustmentLogEntry, error) {
	tx.repo.nextLogID++
	entry.ID = tx.repo.nextLogID
	tx.repo.log = append(tx.repo.log, entry)
	return entry, nil
}

func (tx *memoryTx) GetStockOrderForUpdate(ctx context.Context, id int64) (StockOrder, error) {
	return tx.repo.GetStockOrder(ctx, id)
}

func (tx *memoryTx) UpdateStockOrderStatus(ctx context.Context, id int64, status StockOrderStatus) error {
	order, ok := tx.repo.orders[id]
	if !ok {
		return ErrOrderNotFound
	}
	order.Status = status
	order.UpdatedAt = time.Now().UTC()
	tx.repo.orders[id] = order
	return nil
}

type memoryCatalog struct {
	refs    map[int64]ProductRef
	display map[int64]int64
}

func newMemoryCatalog(refs ...ProductRef) *memoryCatalog {
	c := &memoryCatalog{refs: make(map[int64]ProductRef), display: make(map[int64]int64)}
	for _, ref := range refs {
		c.refs[ref.ID] = ref
	}
	return c
}

func (c *memoryCatalog) Ref(ctx context.Context, productID int64) (ProductRef, error) {
	if ref, ok := c.refs[productID]; ok {
		return ref, nil
	}
	return ProductRef{}, ErrRecordNotFound
}

func (c *memoryCatalog) Prices(ctx context.Context) (map[int64]float64, error) {
	prices := make(map[int64]float64, len(c.refs))
	for id, ref := range c.refs {
		prices[id] = ref.Price
	}
	return prices, nil
}

func (c *memoryCatalog) UpdateDisplayStock(ctx context.Context, productID, totalStock int64) error {
	c.display[productID] = totalStock
	return nil
}

type memoryIdempotency struct {
	keys map[string]string
}

func newMemoryIdempotency() *memoryIdempotency {
	return &memoryIdempotency{keys: make(map[string]string)}
}

func (m *memoryIdempotency) CheckAndInsert(ctx context.Context, key, module string) error {
	if _, ok := m.keys[key]; ok {
		return shared.ErrIdempotencyConflict
	}
	m.keys[key] = module
	return nil
}

func (m *memoryIdempotency) Delete(ctx context.Context, key string) error {
	delete(m.keys, key)
	return nil
}

func newTestService(repo *memoryRepo, catalog CatalogPort) *Service {
	return NewService(repo, catalog, nil, nil, nil, nil)
}

func TestAdjustStockAdd(t *testing.T) {
	repo := newMemoryRepo()
	repo.seedRecord(1, 10, 5)
	catalog := newMemoryCatalog(ProductRef{ID: 1, Name: "Runner", SKU: "RUN-1", Price: 99})
	svc := newTestService(repo, catalog)
	ctx := context.Background()

	result, err := svc.AdjustStock(ctx, AdjustStockInput{ProductID: 1, Mode: ModeAdd, Quantity: 15, Reason: "Restock"})
	require.NoError(t, err)
	require.EqualValues(t, 25, result.Record.TotalStock)
	require.Equal(t, StatusInStock, result.Record.Status())
	require.NotNil(t, result.Record.LastRestocked)

	require.EqualValues(t, 15, result.Entry.QuantityDelta)
	require.EqualValues(t, 10, result.Entry.PreviousStock)
	require.EqualValues(t, 25, result.Entry.NewStock)
	require.Equal(t, ActionAdjustment, result.Entry.Action)
	require.Equal(t, "Runner", result.Entry.ProductName)

	// display stock follows the committed quantity
	require.EqualValues(t, 25, catalog.display[1])
}

func TestAdjustStockRemoveClampsAtZero(t *testing.T) {
	repo := newMemoryRepo()
	repo.seedRecord(1, 3, 5)
	svc := newTestService(repo, nil)
	ctx := context.Background()

	result, err := svc.AdjustStock(ctx, AdjustStockInput{ProductID: 1, Mode: ModeRemove, Quantity: 10, Reason: "Damage"})
	require.NoError(t, err)
	require.EqualValues(t, 0, result.Record.TotalStock)
	require.Equal(t, StatusOutOfStock, result.Record.Status())

	// delta reflects the clamped removal, not the requested quantity
	require.EqualValues(t, -3, result.Entry.QuantityDelta)
	require.EqualValues(t, 3, result.Entry.PreviousStock)
	require.EqualValues(t, 0, result.Entry.NewStock)
	require.Nil(t, result.Record.LastRestocked)
}

func TestAdjustStockSet(t *testing.T) {
	repo := newMemoryRepo()
	repo.seedRecord(1, 20, 5)
	svc := newTestService(repo, nil)
	ctx := context.Background()

	result, err := svc.AdjustStock(ctx, AdjustStockInput{ProductID: 1, Mode: ModeSet, Quantity: 4, Reason: "Recount"})
	require.NoError(t, err)
	require.EqualValues(t, 4, result.Record.TotalStock)
	require.Equal(t, StatusLowStock, result.Record.Status())
	require.EqualValues(t, -16, result.Entry.QuantityDelta)
}

func TestAdjustStockValidation(t *testing.T) {
	repo := newMemoryRepo()
	repo.seedRecord(1, 10, 5)
	svc := newTestService(repo, nil)
	ctx := context.Background()

	_, err := svc.AdjustStock(ctx, AdjustStockInput{ProductID: 1, Mode: ModeAdd, Quantity: 0, Reason: "x"})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.AdjustStock(ctx, AdjustStockInput{ProductID: 1, Mode: ModeAdd, Quantity: -5, Reason: "x"})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.AdjustStock(ctx, AdjustStockInput{ProductID: 1, Mode: "increment", Quantity: 5, Reason: "x"})
	require.ErrorIs(t, err, ErrInvalidMode)

	_, err = svc.AdjustStock(ctx, AdjustStockInput{ProductID: 99, Mode: ModeAdd, Quantity: 5, Reason: "x"})
	require.ErrorIs(t, err, ErrRecordNotFound)

	// nothing committed on any failure path
	require.Empty(t, repo.log)
	require.EqualValues(t, 10, repo.records[1].TotalStock)
}

func TestAdjustStockLogInvariant(t *testing.T) {
	repo := newMemoryRepo()
	repo.seedRecord(1, 50, 10)
	svc := newTestService(repo, nil)
	ctx := context.Background()

	inputs := []AdjustStockInput{
		{ProductID: 1, Mode: ModeRemove, Quantity: 20, Reason: "Sale"},
		{ProductID: 1, Mode: ModeAdd, Quantity: 5, Reason: "Return"},
		{ProductID: 1, Mode: ModeSet, Quantity: 100, Reason: "Recount"},
		{ProductID: 1, Mode: ModeRemove, Quantity: 300, Reason: "Writeoff"},
	}
	for _, input := range inputs {
		_, err := svc.AdjustStock(ctx, input)
		require.NoError(t, err)
	}

	require.Len(t, repo.log, len(inputs))
	running := int64(50)
	for _, entry := range repo.log {
		require.Equal(t, running, entry.PreviousStock)
		require.Equal(t, entry.PreviousStock+entry.QuantityDelta, entry.NewStock)
		running = entry.NewStock
	}
	require.EqualValues(t, 0, running)
	require.EqualValues(t, 0, repo.records[1].TotalStock)
}

func TestStatusDerivation(t *testing.T) {
	require.Equal(t, StatusOutOfStock, StatusFor(0, 5))
	require.Equal(t, StatusLowStock, StatusFor(1, 5))
	require.Equal(t, StatusLowStock, StatusFor(5, 5))
	require.Equal(t, StatusInStock, StatusFor(6, 5))
	require.Equal(t, StatusInStock, StatusFor(1, 0))
	require.Equal(t, StatusOutOfStock, StatusFor(0, 0))
}

func TestStockOrderLifecycle(t *testing.T) {
	repo := newMemoryRepo()
	repo.seedRecord(7, 2, 5)
	catalog := newMemoryCatalog(ProductRef{ID: 7, Name: "Boot", SKU: "BOOT-7", Price: 150})
	svc := newTestService(repo, catalog)
	ctx := context.Background()

	order, err := svc.CreateStockOrder(ctx, CreateStockOrderInput{ProductID: 7, Quantity: 40, Supplier: "Acme"})
	require.NoError(t, err)
	require.Equal(t, StockOrderPending, order.Status)
	require.Equal(t, "Boot", order.ProductName)
	require.Equal(t, "BOOT-7", order.SKU)

	for _, next := range []StockOrderStatus{StockOrderApproved, StockOrderShipped} {
		result, err := svc.TransitionStockOrder(ctx, order.ID, next)
		require.NoError(t, err)
		require.Equal(t, next, result.Order.Status)
		require.Nil(t, result.Record)
		require.Empty(t, repo.log)
	}

	result, err := svc.TransitionStockOrder(ctx, order.ID, StockOrderDelivered)
	require.NoError(t, err)
	require.Equal(t, StockOrderDelivered, result.Order.Status)
	require.NotNil(t, result.Record)
	require.EqualValues(t, 42, result.Record.TotalStock)
	require.False(t, result.MissingInventory)

	require.Len(t, repo.log, 1)
	entry := repo.log[0]
	require.Equal(t, ActionRestock, entry.Action)
	require.Equal(t, "Stock Order Received", entry.Reason)
	require.EqualValues(t, order.ID, entry.OrderID)
	require.EqualValues(t, 40, entry.QuantityDelta)
}

func TestStockOrderDeliveredExactlyOnce(t *testing.T) {
	repo := newMemoryRepo()
	repo.seedRecord(7, 0, 5)
	catalog := newMemoryCatalog(ProductRef{ID: 7, Name: "Boot", SKU: "BOOT-7"})
	svc := newTestService(repo, catalog)
	ctx := context.Background()

	order, err := svc.CreateStockOrder(ctx, CreateStockOrderInput{ProductID: 7, Quantity: 10, Supplier: "Acme"})
	require.NoError(t, err)
	_, err = svc.TransitionStockOrder(ctx, order.ID, StockOrderApproved)
	require.NoError(t, err)
	_, err = svc.TransitionStockOrder(ctx, order.ID, StockOrderShipped)
	require.NoError(t, err)
	_, err = svc.TransitionStockOrder(ctx, order.ID, StockOrderDelivered)
	require.NoError(t, err)

	// delivered is terminal; a replayed delivery must not restock again
	_, err = svc.TransitionStockOrder(ctx, order.ID, StockOrderDelivered)
	require.ErrorIs(t, err, ErrIllegalTransition)
	require.Len(t, repo.log, 1)
	require.EqualValues(t, 10, repo.records[7].TotalStock)
}

func TestStockOrderIllegalTransitions(t *testing.T) {
	repo := newMemoryRepo()
	repo.seedRecord(7, 0, 5)
	catalog := newMemoryCatalog(ProductRef{ID: 7, Name: "Boot", SKU: "BOOT-7"})
	svc := newTestService(repo, catalog)
	ctx := context.Background()

	order, err := svc.CreateStockOrder(ctx, CreateStockOrderInput{ProductID: 7, Quantity: 10, Supplier: "Acme"})
	require.NoError(t, err)

	// skipping states is rejected
	_, err = svc.TransitionStockOrder(ctx, order.ID, StockOrderShipped)
	require.ErrorIs(t, err, ErrIllegalTransition)
	_, err = svc.TransitionStockOrder(ctx, order.ID, StockOrderDelivered)
	require.ErrorIs(t, err, ErrIllegalTransition)

	// moving back to pending is never allowed
	_, err = svc.TransitionStockOrder(ctx, order.ID, StockOrderPending)
	require.ErrorIs(t, err, ErrIllegalTransition)

	_, err = svc.TransitionStockOrder(ctx, order.ID, "mislaid")
	require.ErrorIs(t, err, ErrIllegalTransition)
}

func TestStockOrderCancellation(t *testing.T) {
	repo := newMemoryRepo()
	repo.seedRecord(7, 0, 5)
	catalog := newMemoryCatalog(ProductRef{ID: 7, Name: "Boot", SKU: "BOOT-7"})
	svc := newTestService(repo, catalog)
	ctx := context.Background()

	order, err := svc.CreateStockOrder(ctx, CreateStockOrderInput{ProductID: 7, Quantity: 10, Supplier: "Acme"})
	require.NoError(t, err)
	_, err = svc.TransitionStockOrder(ctx, order.ID, StockOrderApproved)
	require.NoError(t, err)

	result, err := svc.TransitionStockOrder(ctx, order.ID, StockOrderCancelled)
	require.NoError(t, err)
	require.Equal(t, StockOrderCancelled, result.Order.Status)
	require.Empty(t, repo.log)

	// cancelled is terminal
	_, err = svc.TransitionStockOrder(ctx, order.ID, StockOrderApproved)
	require.ErrorIs(t, err, ErrIllegalTransition)
	_, err = svc.TransitionStockOrder(ctx, order.ID, StockOrderCancelled)
	require.ErrorIs(t, err, ErrIllegalTransition)
}

func TestStockOrderDeliveryWithoutInventoryRecord(t *testing.T) {
	repo := newMemoryRepo()
	catalog := newMemoryCatalog(ProductRef{ID: 9, Name: "Sandal", SKU: "SND-9"})
	svc := newTestService(repo, catalog)
	ctx := context.Background()

	order, err := svc.CreateStockOrder(ctx, CreateStockOrderInput{ProductID: 9, Quantity: 12, Supplier: "Acme"})
	require.NoError(t, err)
	_, err = svc.TransitionStockOrder(ctx, order.ID, StockOrderApproved)
	require.NoError(t, err)
	_, err = svc.TransitionStockOrder(ctx, order.ID, StockOrderShipped)
	require.NoError(t, err)

	result, err := svc.TransitionStockOrder(ctx, order.ID, StockOrderDelivered)
	require.NoError(t, err)
	require.True(t, result.MissingInventory)
	require.Nil(t, result.Record)
	require.Equal(t, StockOrderDelivered, result.Order.Status)
	require.Empty(t, repo.log)
}

func TestStockOrderEditOnlyWhilePending(t *testing.T) {
	repo := newMemoryRepo()
	repo.seedRecord(7, 0, 5)
	catalog := newMemoryCatalog(ProductRef{ID: 7, Name: "Boot", SKU: "BOOT-7"})
	svc := newTestService(repo, catalog)
	ctx := context.Background()

	order, err := svc.CreateStockOrder(ctx, CreateStockOrderInput{ProductID: 7, Quantity: 10, Supplier: "Acme"})
	require.NoError(t, err)

	updated, err := svc.UpdateStockOrder(ctx, order.ID, UpdateStockOrderInput{Quantity: 25, Supplier: "Globex"})
	require.NoError(t, err)
	require.EqualValues(t, 25, updated.Quantity)
	require.Equal(t, "Globex", updated.Supplier)

	_, err = svc.TransitionStockOrder(ctx, order.ID, StockOrderApproved)
	require.NoError(t, err)

	_, err = svc.UpdateStockOrder(ctx, order.ID, UpdateStockOrderInput{Quantity: 30, Supplier: "Globex"})
	require.ErrorIs(t, err, ErrIllegalTransition)
	err = svc.DeleteStockOrder(ctx, order.ID)
	require.ErrorIs(t, err, ErrIllegalTransition)
}

func TestCreateStockOrderValidation(t *testing.T) {
	repo := newMemoryRepo()
	catalog := newMemoryCatalog(ProductRef{ID: 7, Name: "Boot", SKU: "BOOT-7"})
	svc := newTestService(repo, catalog)
	ctx := context.Background()

	_, err := svc.CreateStockOrder(ctx, CreateStockOrderInput{ProductID: 7, Quantity: 0, Supplier: "Acme"})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.CreateStockOrder(ctx, CreateStockOrderInput{ProductID: 404, Quantity: 5, Supplier: "Acme"})
	require.Error(t, err)
}

func TestUpdateRecordSettings(t *testing.T) {
	repo := newMemoryRepo()
	rec := repo.seedRecord(1, 10, 5)
	svc := newTestService(repo, nil)
	ctx := context.Background()

	updated, err := svc.UpdateRecordSettings(ctx, rec.ID, UpdateRecordSettingsInput{ReorderLevel: 8, ReservedStock: 2, Version: rec.Version})
	require.NoError(t, err)
	require.EqualValues(t, 8, updated.ReorderLevel)
	require.EqualValues(t, 2, updated.ReservedStock)
	require.EqualValues(t, 10, updated.TotalStock)
	require.EqualValues(t, 8, updated.AvailableStock())
	require.Greater(t, updated.Version, rec.Version)

	// reusing the stale version fails
	_, err = svc.UpdateRecordSettings(ctx, rec.ID, UpdateRecordSettingsInput{ReorderLevel: 9, Version: rec.Version})
	require.ErrorIs(t, err, ErrStaleWrite)

	_, err = svc.UpdateRecordSettings(ctx, rec.ID, UpdateRecordSettingsInput{ReorderLevel: -1, Version: updated.Version})
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestEnsureRecord(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	created, err := svc.EnsureRecord(ctx, 5, "SKU-5", 20, 10)
	require.NoError(t, err)
	require.EqualValues(t, 20, created.TotalStock)
	require.Equal(t, StatusInStock, created.Status())

	// idempotent: a second call returns the existing record untouched
	again, err := svc.EnsureRecord(ctx, 5, "SKU-5", 999, 1)
	require.NoError(t, err)
	require.Equal(t, created, again)

	_, err = svc.EnsureRecord(ctx, 6, "SKU-6", -1, 0)
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestHistoryNewestFirst(t *testing.T) {
	repo := newMemoryRepo()
	repo.seedRecord(1, 10, 5)
	repo.seedRecord(2, 10, 5)
	svc := newTestService(repo, nil)
	ctx := context.Background()

	_, err := svc.AdjustStock(ctx, AdjustStockInput{ProductID: 1, Mode: ModeAdd, Quantity: 1, Reason: "first"})
	require.NoError(t, err)
	_, err = svc.AdjustStock(ctx, AdjustStockInput{ProductID: 2, Mode: ModeAdd, Quantity: 1, Reason: "other product"})
	require.NoError(t, err)
	_, err = svc.AdjustStock(ctx, AdjustStockInput{ProductID: 1, Mode: ModeAdd, Quantity: 1, Reason: "second"})
	require.NoError(t, err)

	entries, err := svc.History(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "second", entries[0].Reason)
	require.Equal(t, "first", entries[1].Reason)

	all, err := svc.FullLog(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
}

func TestAdjustStockIdempotencyReplay(t *testing.T) {
	repo := newMemoryRepo()
	repo.seedRecord(1, 10, 5)
	idem := newMemoryIdempotency()
	svc := NewService(repo, nil, nil, idem, nil, nil)
	ctx := context.Background()

	input := AdjustStockInput{ProductID: 1, Mode: ModeAdd, Quantity: 5, Reason: "Restock", IdempotencyKey: "retry-1"}
	_, err := svc.AdjustStock(ctx, input)
	require.NoError(t, err)

	// the replay is rejected and the stock is not double-applied
	_, err = svc.AdjustStock(ctx, input)
	require.ErrorIs(t, err, shared.ErrIdempotencyConflict)

	rec, err := repo.GetRecordByProduct(ctx, 1)
	require.NoError(t, err)
	require.EqualValues(t, 15, rec.TotalStock)
}

func TestAdjustStockReleasesKeyOnFailure(t *testing.T) {
	repo := newMemoryRepo()
	idem := newMemoryIdempotency()
	svc := NewService(repo, nil, nil, idem, nil, nil)
	ctx := context.Background()

	input := AdjustStockInput{ProductID: 1, Mode: ModeAdd, Quantity: 5, Reason: "Restock", IdempotencyKey: "retry-1"}
	_, err := svc.AdjustStock(ctx, input)
	require.ErrorIs(t, err, ErrRecordNotFound)
	require.NotContains(t, idem.keys, "retry-1")

	repo.seedRecord(1, 0, 5)
	result, err := svc.AdjustStock(ctx, input)
	require.NoError(t, err)
	require.EqualValues(t, 5, result.Record.TotalStock)
	require.Contains(t, idem.keys, "retry-1")
}

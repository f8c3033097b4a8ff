package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/solemart/solemart/internal/platform/db"
)

// Repository persists ledger data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const recordColumns = `id, product_id, sku, total_stock, reserved_stock, reorder_level, last_restocked, version, updated_at`

func scanRecord(row pgx.Row) (StockRecord, error) {
	var rec StockRecord
	var restocked pgtype.Timestamptz
	err := row.Scan(&rec.ID, &rec.ProductID, &rec.SKU, &rec.TotalStock, &rec.ReservedStock, &rec.ReorderLevel, &restocked, &rec.Version, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StockRecord{}, ErrRecordNotFound
		}
		return StockRecord{}, err
	}
	if restocked.Valid {
		t := restocked.Time
		rec.LastRestocked = &t
	}
	return rec, nil
}

// GetRecord fetches one stock record by id.
func (r *Repository) GetRecord(ctx context.Context, id int64) (StockRecord, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM inventory WHERE id = $1`, id)
	return scanRecord(row)
}

// GetRecordByProduct fetches the stock record for a product.
func (r *Repository) GetRecordByProduct(ctx context.Context, productID int64) (StockRecord, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM inventory WHERE product_id = $1`, productID)
	return scanRecord(row)
}

// ListRecords returns all stock records ordered by product.
func (r *Repository) ListRecords(ctx context.Context) ([]StockRecord, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+recordColumns+` FROM inventory ORDER BY product_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []StockRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ListLog returns adjustment log entries newest first. productID 0 means all
// products; limit 0 means no cap, history reads are full snapshots.
func (r *Repository) ListLog(ctx context.Context, productID int64, limit int) ([]AdjustmentLogEntry, error) {
	query := `SELECT id, product_id, product_name, sku, action, quantity_delta, previous_stock, new_stock, reason, notes, size, order_id, performed_by, created_at
		FROM inventory_log`
	args := []any{}
	if productID != 0 {
		query += ` WHERE product_id = $1`
		args = append(args, productID)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []AdjustmentLogEntry
	for rows.Next() {
		entry, err := scanLogEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func scanLogEntry(row pgx.Row) (AdjustmentLogEntry, error) {
	var entry AdjustmentLogEntry
	var size pgtype.Text
	var orderID pgtype.Int8
	err := row.Scan(&entry.ID, &entry.ProductID, &entry.ProductName, &entry.SKU, &entry.Action, &entry.QuantityDelta,
		&entry.PreviousStock, &entry.NewStock, &entry.Reason, &entry.Notes, &size, &orderID, &entry.PerformedBy, &entry.CreatedAt)
	if err != nil {
		return AdjustmentLogEntry{}, err
	}
	entry.Size = size.String
	entry.OrderID = orderID.Int64
	return entry, nil
}

const orderColumns = `id, product_id, product_name, sku, quantity, supplier, estimated_delivery, notes, status, created_by, created_at, updated_at`

func scanStockOrder(row pgx.Row) (StockOrder, error) {
	var order StockOrder
	var eta pgtype.Date
	var status string
	err := row.Scan(&order.ID, &order.ProductID, &order.ProductName, &order.SKU, &order.Quantity, &order.Supplier,
		&eta, &order.Notes, &status, &order.CreatedBy, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StockOrder{}, ErrOrderNotFound
		}
		return StockOrder{}, err
	}
	if eta.Valid {
		t := eta.Time
		order.EstimatedDelivery = &t
	}
	order.Status = StockOrderStatus(status)
	return order, nil
}

// CreateRecord inserts a new stock record.
func (r *Repository) CreateRecord(ctx context.Context, record StockRecord) (StockRecord, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO inventory (product_id, sku, total_stock, reserved_stock, reorder_level, last_restocked, version, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, 1, NOW())
		 RETURNING `+recordColumns,
		record.ProductID, record.SKU, record.TotalStock, record.ReservedStock, record.ReorderLevel, timestampOrNil(record.LastRestocked))
	return scanRecord(row)
}

// GetStockOrder fetches one order.
func (r *Repository) GetStockOrder(ctx context.Context, id int64) (StockOrder, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM stock_orders WHERE id = $1`, id)
	return scanStockOrder(row)
}

// ListStockOrders returns orders matching the filter, newest first.
func (r *Repository) ListStockOrders(ctx context.Context, filter StockOrderFilter) ([]StockOrder, error) {
	query := `SELECT ` + orderColumns + ` FROM stock_orders WHERE 1=1`
	args := []any{}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` AND status = $1`
	}
	if filter.ProductID != 0 {
		args = append(args, filter.ProductID)
		query += fmt.Sprintf(` AND product_id = $%d`, len(args))
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []StockOrder
	for rows.Next() {
		order, err := scanStockOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

// CreateStockOrder inserts a new order and returns its id.
func (r *Repository) CreateStockOrder(ctx context.Context, order StockOrder) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO stock_orders (product_id, product_name, sku, quantity, supplier, estimated_delivery, notes, status, created_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10) RETURNING id`,
		order.ProductID, order.ProductName, order.SKU, order.Quantity, order.Supplier,
		dateOrNil(order.EstimatedDelivery), order.Notes, string(order.Status), order.CreatedBy, order.CreatedAt,
	).Scan(&id)
	return id, err
}

// UpdateStockOrder rewrites the editable fields of a pending order.
func (r *Repository) UpdateStockOrder(ctx context.Context, order StockOrder) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE stock_orders SET quantity = $2, supplier = $3, estimated_delivery = $4, notes = $5, updated_at = $6 WHERE id = $1`,
		order.ID, order.Quantity, order.Supplier, dateOrNil(order.EstimatedDelivery), order.Notes, order.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// DeleteStockOrder removes an order row.
func (r *Repository) DeleteStockOrder(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM stock_orders WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// HasOpenStockOrder reports whether a non-terminal order exists for a product.
func (r *Repository) HasOpenStockOrder(ctx context.Context, productID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM stock_orders WHERE product_id = $1 AND status NOT IN ('delivered', 'cancelled'))`,
		productID).Scan(&exists)
	return exists, err
}

type txRepo struct {
	tx pgx.Tx
}

// GetRecordForUpdate locks the stock record row for the transaction, making
// it the per-product serialisation point for adjustments.
func (r *txRepo) GetRecordForUpdate(ctx context.Context, productID int64) (StockRecord, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+recordColumns+` FROM inventory WHERE product_id = $1 FOR UPDATE`, productID)
	return scanRecord(row)
}

// UpdateRecord writes the record back, guarded by the version the caller read.
func (r *txRepo) UpdateRecord(ctx context.Context, record StockRecord) (StockRecord, error) {
	row := r.tx.QueryRow(ctx,
		`UPDATE inventory SET total_stock = $2, reserved_stock = $3, reorder_level = $4, last_restocked = $5, version = version + 1, updated_at = NOW()
		 WHERE id = $1 AND version = $6
		 RETURNING `+recordColumns,
		record.ID, record.TotalStock, record.ReservedStock, record.ReorderLevel, timestampOrNil(record.LastRestocked), record.Version)
	updated, err := scanRecord(row)
	if errors.Is(err, ErrRecordNotFound) {
		return StockRecord{}, ErrStaleWrite
	}
	return updated, err
}

// AppendLog inserts exactly one adjustment log row.
func (r *txRepo) AppendLog(ctx context.Context, entry AdjustmentLogEntry) (AdjustmentLogEntry, error) {
	err := r.tx.QueryRow(ctx,
		`INSERT INTO inventory_log (product_id, product_name, sku, action, quantity_delta, previous_stock, new_stock, reason, notes, size, order_id, performed_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13) RETURNING id`,
		entry.ProductID, entry.ProductName, entry.SKU, string(entry.Action), entry.QuantityDelta,
		entry.PreviousStock, entry.NewStock, entry.Reason, entry.Notes,
		textOrNil(entry.Size), int8OrNil(entry.OrderID), entry.PerformedBy, entry.CreatedAt,
	).Scan(&entry.ID)
	return entry, err
}

// GetStockOrderForUpdate locks the order row for the transaction.
func (r *txRepo) GetStockOrderForUpdate(ctx context.Context, id int64) (StockOrder, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM stock_orders WHERE id = $1 FOR UPDATE`, id)
	return scanStockOrder(row)
}

// UpdateStockOrderStatus writes the new lifecycle state.
func (r *txRepo) UpdateStockOrderStatus(ctx context.Context, id int64, status StockOrderStatus) error {
	tag, err := r.tx.Exec(ctx, `UPDATE stock_orders SET status = $2, updated_at = NOW() WHERE id = $1`, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func timestampOrNil(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: *t, Valid: true}
}

func dateOrNil(t *time.Time) pgtype.Date {
	if t == nil {
		return pgtype.Date{}
	}
	return pgtype.Date{Time: *t, Valid: true}
}

func textOrNil(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

func int8OrNil(v int64) pgtype.Int8 {
	return pgtype.Int8{Int64: v, Valid: v != 0}
}

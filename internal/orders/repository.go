package orders

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists orders in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the order repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts the order and its lines in one transaction.
func (r *Repository) Create(ctx context.Context, order Order) (Order, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO orders (reference, customer_id, status, subtotal, shipping, total, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $7) RETURNING id`,
		order.Reference, order.CustomerID, string(order.Status), order.Subtotal, order.Shipping, order.Total, order.CreatedAt,
	).Scan(&order.ID)
	if err != nil {
		return Order{}, err
	}

	for i := range order.Lines {
		line := &order.Lines[i]
		line.OrderID = order.ID
		err = tx.QueryRow(ctx,
			`INSERT INTO order_lines (order_id, product_id, size, quantity, unit_price)
			 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
			line.OrderID, line.ProductID, line.Size, line.Quantity, line.UnitPrice,
		).Scan(&line.ID)
		if err != nil {
			return Order{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Order{}, err
	}
	return order, nil
}

const orderColumns = `id, reference, customer_id, status, subtotal, shipping, total, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var order Order
	var status string
	err := row.Scan(&order.ID, &order.Reference, &order.CustomerID, &status, &order.Subtotal, &order.Shipping, &order.Total, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, err
	}
	order.Status = OrderStatus(status)
	return order, nil
}

// Get fetches one order with its lines.
func (r *Repository) Get(ctx context.Context, id int64) (Order, error) {
	order, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		return Order{}, err
	}
	lines, err := r.lines(ctx, id)
	if err != nil {
		return Order{}, err
	}
	order.Lines = lines
	return order, nil
}

// List returns orders newest first, filtered by customer when given.
func (r *Repository) List(ctx context.Context, customerID string) ([]Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders`
	args := []any{}
	if customerID != "" {
		query += ` WHERE customer_id = $1`
		args = append(args, customerID)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		lines, err := r.lines(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Lines = lines
	}
	return out, nil
}

// UpdateStatus sets the fulfilment status.
func (r *Repository) UpdateStatus(ctx context.Context, id int64, status OrderStatus) error {
	tag, err := r.pool.Exec(ctx, `UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1`, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) lines(ctx context.Context, orderID int64) ([]OrderLine, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, order_id, product_id, size, quantity, unit_price FROM order_lines WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []OrderLine
	for rows.Next() {
		var line OrderLine
		if err := rows.Scan(&line.ID, &line.OrderID, &line.ProductID, &line.Size, &line.Quantity, &line.UnitPrice); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

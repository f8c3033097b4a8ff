package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RepositoryPort abstracts product persistence.
type RepositoryPort interface {
	List(ctx context.Context, filter ListFilter) ([]Product, int, error)
	Get(ctx context.Context, id int64) (Product, error)
	Create(ctx context.Context, product Product) (Product, error)
	Update(ctx context.Context, product Product) error
	Deactivate(ctx context.Context, id int64) error
	Prices(ctx context.Context) (map[int64]float64, error)
	UpdateDisplayStock(ctx context.Context, productID, totalStock int64) error
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs the pgx-backed product repository.
func NewRepository(db *pgxpool.Pool) RepositoryPort {
	return &repository{db: db}
}

const productColumns = `id, sku, name, brand, category, price, sizes, images, total_stock, is_active, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	var sizes, images []byte
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.Brand, &p.Category, &p.Price, &sizes, &images, &p.TotalStock, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, err
	}
	if err := json.Unmarshal(sizes, &p.Sizes); err != nil {
		return Product{}, err
	}
	if err := json.Unmarshal(images, &p.Images); err != nil {
		return Product{}, err
	}
	return p, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]Product, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	argCount := 0

	if filter.Search != "" {
		argCount++
		where += ` AND (name ILIKE $` + strconv.Itoa(argCount) + ` OR sku ILIKE $` + strconv.Itoa(argCount) + `)`
		args = append(args, "%"+filter.Search+"%")
	}
	if filter.Category != "" {
		argCount++
		where += ` AND category = $` + strconv.Itoa(argCount)
		args = append(args, filter.Category)
	}
	if filter.Brand != "" {
		argCount++
		where += ` AND brand = $` + strconv.Itoa(argCount)
		args = append(args, filter.Brand)
	}
	if filter.ActiveOnly {
		where += ` AND is_active = TRUE`
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM products`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + productColumns + ` FROM products` + where + ` ORDER BY ` + sortOrder(filter.SortBy, filter.SortDir)
	if filter.Limit > 0 {
		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		argCount++
		query += ` OFFSET $` + strconv.Itoa(argCount)
		args = append(args, filter.Offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, p)
	}
	return products, total, rows.Err()
}

// sortOrder whitelists sortable columns to keep the ORDER BY injection-safe.
func sortOrder(by, dir string) string {
	column := "name"
	switch by {
	case "price", "brand", "category", "created_at", "total_stock":
		column = by
	}
	if dir == "desc" {
		return column + " DESC"
	}
	return column + " ASC"
}

func (r *repository) Get(ctx context.Context, id int64) (Product, error) {
	row := r.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	return scanProduct(row)
}

func (r *repository) Create(ctx context.Context, product Product) (Product, error) {
	sizes, images, err := encodeJSONFields(product)
	if err != nil {
		return Product{}, err
	}
	row := r.db.QueryRow(ctx,
		`INSERT INTO products (sku, name, brand, category, price, sizes, images, total_stock, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE, NOW(), NOW())
		 RETURNING `+productColumns,
		product.SKU, product.Name, product.Brand, product.Category, product.Price, sizes, images, product.TotalStock)
	created, err := scanProduct(row)
	if isUniqueViolation(err) {
		return Product{}, ErrDuplicateSKU
	}
	return created, err
}

func (r *repository) Update(ctx context.Context, product Product) error {
	sizes, images, err := encodeJSONFields(product)
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE products SET sku = $2, name = $3, brand = $4, category = $5, price = $6, sizes = $7, images = $8, is_active = $9, updated_at = NOW()
		 WHERE id = $1`,
		product.ID, product.SKU, product.Name, product.Brand, product.Category, product.Price, sizes, images, product.IsActive)
	if isUniqueViolation(err) {
		return ErrDuplicateSKU
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Deactivate soft-deletes the product so historical orders and log entries
// keep a valid reference.
func (r *repository) Deactivate(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE products SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) Prices(ctx context.Context) (map[int64]float64, error) {
	rows, err := r.db.Query(ctx, `SELECT id, price FROM products`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	prices := make(map[int64]float64)
	for rows.Next() {
		var id int64
		var price float64
		if err := rows.Scan(&id, &price); err != nil {
			return nil, err
		}
		prices[id] = price
	}
	return prices, rows.Err()
}

func (r *repository) UpdateDisplayStock(ctx context.Context, productID, totalStock int64) error {
	_, err := r.db.Exec(ctx, `UPDATE products SET total_stock = $2, updated_at = NOW() WHERE id = $1`, productID, totalStock)
	return err
}

func encodeJSONFields(product Product) ([]byte, []byte, error) {
	if product.Sizes == nil {
		product.Sizes = map[string]int64{}
	}
	if product.Images == nil {
		product.Images = []string{}
	}
	sizes, err := json.Marshal(product.Sizes)
	if err != nil {
		return nil, nil, err
	}
	images, err := json.Marshal(product.Images)
	if err != nil {
		return nil, nil, err
	}
	return sizes, images, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

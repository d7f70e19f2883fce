package repository

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/fjod/qahwa-storefront/internal/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const productColumns = `id, name, description, price, image_url, category, in_stock`

const cartColumns = `id, product_id, product_name, price, quantity, image_url`

type Repository struct {
	db     *sql.DB
	closed atomic.Bool
}

var _ RepoInterface = (*Repository)(nil)

// NewRepository opens the SQLite database at dbPath (":memory:" is allowed).
// The pool is limited to a single connection so every read and write is
// serialized by the store.
func NewRepository(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w: %w", ErrStorageUnavailable, err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w: %w", ErrStorageUnavailable, err)
	}

	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to configure database: %w: %w", ErrStorageUnavailable, err)
	}

	return &Repository{db: db}, nil
}

// RunMigrations applies the embedded migrations. The catalog seed is itself a
// migration, so the version table guarantees it runs once per database.
func (r *Repository) RunMigrations() error {
	if r.closed.Load() {
		return ErrStorageUnavailable
	}

	m, err := r.migrator()
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

func (r *Repository) migrator() (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("could not open migrations source: %w", err)
	}

	driver, err := sqlite.WithInstance(r.db, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("could not create migrate instance: %w", err)
	}
	return m, nil
}

func (r *Repository) ListInStockProducts(ctx context.Context) ([]domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE in_stock = 1 ORDER BY id`
	return r.queryProducts(ctx, query)
}

func (r *Repository) ListInStockProductsByCategory(ctx context.Context, category string) ([]domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE in_stock = 1 AND category = ? ORDER BY id`
	return r.queryProducts(ctx, query, category)
}

func (r *Repository) GetProductByID(ctx context.Context, id int64) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = ?`

	products, err := r.queryProducts(ctx, query, id)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, nil
	}
	return &products[0], nil
}

// UpsertProduct inserts p, or replaces the row with the same id when p.ID is set.
// It returns the id of the stored row.
func (r *Repository) UpsertProduct(ctx context.Context, p domain.Product) (int64, error) {
	if err := r.checkOpen(); err != nil {
		return 0, err
	}
	return upsertProduct(ctx, r.db, p)
}

func (r *Repository) UpsertProducts(ctx context.Context, products []domain.Product) error {
	if err := r.checkOpen(); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return r.wrap("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, p := range products {
		if _, err := upsertProduct(ctx, tx, p); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return r.wrap("commit products", err)
	}
	return nil
}

// Categories returns the distinct categories of in-stock products, in the order
// they first appear in the catalog.
func (r *Repository) Categories(ctx context.Context) ([]string, error) {
	if err := r.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT category FROM products WHERE in_stock = 1 GROUP BY category ORDER BY MIN(id)`)
	if err != nil {
		return nil, r.wrap("query categories", err)
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return categories, nil
}

func (r *Repository) ProductCount(ctx context.Context) (int, error) {
	if err := r.checkOpen(); err != nil {
		return 0, err
	}

	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&n); err != nil {
		return 0, r.wrap("count products", err)
	}
	return n, nil
}

func (r *Repository) ListCartItems(ctx context.Context) ([]domain.CartItem, error) {
	if err := r.checkOpen(); err != nil {
		return nil, err
	}
	return listCartItems(ctx, r.db)
}

func (r *Repository) GetCartItemByProductID(ctx context.Context, productID int64) (*domain.CartItem, error) {
	if err := r.checkOpen(); err != nil {
		return nil, err
	}

	query := `SELECT ` + cartColumns + ` FROM cart_items WHERE product_id = ? ORDER BY id LIMIT 1`

	var item domain.CartItem
	err := r.db.QueryRowContext(ctx, query, productID).Scan(
		&item.ID,
		&item.ProductID,
		&item.ProductName,
		&item.Price,
		&item.Quantity,
		&item.ImageURL,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, r.wrap("query cart item", err)
	}
	return &item, nil
}

func (r *Repository) TotalCartValue(ctx context.Context) (decimal.NullDecimal, error) {
	if err := r.checkOpen(); err != nil {
		return decimal.NullDecimal{}, err
	}

	var total decimal.NullDecimal
	if err := r.db.QueryRowContext(ctx, `SELECT SUM(price * quantity) FROM cart_items`).Scan(&total); err != nil {
		return decimal.NullDecimal{}, r.wrap("sum cart", err)
	}
	return total, nil
}

func (r *Repository) UpsertCartItem(ctx context.Context, item domain.CartItem) (int64, error) {
	if err := r.checkOpen(); err != nil {
		return 0, err
	}

	if item.ID == 0 {
		res, err := r.db.ExecContext(ctx,
			`INSERT INTO cart_items (product_id, product_name, price, quantity, image_url) VALUES (?, ?, ?, ?, ?)`,
			item.ProductID, item.ProductName, item.Price.InexactFloat64(), item.Quantity, item.ImageURL)
		if err != nil {
			return 0, r.wrap("insert cart item", err)
		}
		return res.LastInsertId()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO cart_items (id, product_id, product_name, price, quantity, image_url) VALUES (?, ?, ?, ?, ?, ?)`,
		item.ID, item.ProductID, item.ProductName, item.Price.InexactFloat64(), item.Quantity, item.ImageURL)
	if err != nil {
		return 0, r.wrap("replace cart item", err)
	}
	return item.ID, nil
}

func (r *Repository) UpdateCartItemQuantity(ctx context.Context, id int64, quantity int) (bool, error) {
	if err := r.checkOpen(); err != nil {
		return false, err
	}

	res, err := r.db.ExecContext(ctx, `UPDATE cart_items SET quantity = ? WHERE id = ?`, quantity, id)
	if err != nil {
		return false, r.wrap("update cart item quantity", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, r.wrap("update cart item quantity", err)
	}
	return n > 0, nil
}

func (r *Repository) DeleteCartItem(ctx context.Context, item domain.CartItem) error {
	if err := r.checkOpen(); err != nil {
		return err
	}

	if _, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE id = ?`, item.ID); err != nil {
		return r.wrap("delete cart item", err)
	}
	return nil
}

func (r *Repository) ClearCart(ctx context.Context) error {
	if err := r.checkOpen(); err != nil {
		return err
	}

	if _, err := r.db.ExecContext(ctx, `DELETE FROM cart_items`); err != nil {
		return r.wrap("clear cart", err)
	}
	return nil
}

func (r *Repository) TakeCart(ctx context.Context) ([]domain.CartItem, error) {
	if err := r.checkOpen(); err != nil {
		return nil, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, r.wrap("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	items, err := listCartItems(ctx, tx)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items`); err != nil {
		return nil, r.wrap("clear cart", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, r.wrap("commit cart", err)
	}
	return items, nil
}

func (r *Repository) Close() error {
	if r.closed.Swap(true) {
		return nil
	}
	return r.db.Close()
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func upsertProduct(ctx context.Context, q querier, p domain.Product) (int64, error) {
	if p.ID == 0 {
		res, err := q.ExecContext(ctx,
			`INSERT INTO products (name, description, price, image_url, category, in_stock) VALUES (?, ?, ?, ?, ?, ?)`,
			p.Name, p.Description, p.Price.InexactFloat64(), p.ImageURL, p.Category, p.InStock)
		if err != nil {
			return 0, fmt.Errorf("failed to insert product: %w", err)
		}
		return res.LastInsertId()
	}

	_, err := q.ExecContext(ctx,
		`INSERT OR REPLACE INTO products (id, name, description, price, image_url, category, in_stock) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Description, p.Price.InexactFloat64(), p.ImageURL, p.Category, p.InStock)
	if err != nil {
		return 0, fmt.Errorf("failed to replace product %d: %w", p.ID, err)
	}
	return p.ID, nil
}

func listCartItems(ctx context.Context, q querier) ([]domain.CartItem, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+cartColumns+` FROM cart_items ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query cart items: %w", err)
	}
	defer rows.Close()

	items := []domain.CartItem{}
	for rows.Next() {
		var item domain.CartItem
		err := rows.Scan(
			&item.ID,
			&item.ProductID,
			&item.ProductName,
			&item.Price,
			&item.Quantity,
			&item.ImageURL,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return items, nil
}

func (r *Repository) queryProducts(ctx context.Context, query string, args ...any) ([]domain.Product, error) {
	if err := r.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, r.wrap("query products", err)
	}
	defer rows.Close()

	products := []domain.Product{}
	for rows.Next() {
		var p domain.Product
		err := rows.Scan(
			&p.ID,
			&p.Name,
			&p.Description,
			&p.Price,
			&p.ImageURL,
			&p.Category,
			&p.InStock,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return products, nil
}

func (r *Repository) checkOpen() error {
	if r.closed.Load() {
		return ErrStorageUnavailable
	}
	return nil
}

// wrap marks errors caused by a closed pool as ErrStorageUnavailable.
func (r *Repository) wrap(op string, err error) error {
	if r.closed.Load() || errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("failed to %s: %w: %w", op, ErrStorageUnavailable, err)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

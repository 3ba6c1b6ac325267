package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"shopassist/internal/db"
	"shopassist/internal/domain"
)

var productsSchema = []string{
	`CREATE TABLE IF NOT EXISTS products (
		name       TEXT    NOT NULL,
		unit_price REAL    NOT NULL CHECK (unit_price >= 0),
		stock      INTEGER NOT NULL CHECK (stock >= 0)
	)`,
	`CREATE INDEX IF NOT EXISTS products_name ON products (name)`,
}

// likeEscaper escapes LIKE wildcards so the term matches literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// SQLStore reads products from a SQLite or libSQL products table. Rows come
// back in insertion (rowid) order.
type SQLStore struct {
	conn    *sql.DB
	timeout time.Duration
}

// NewSQLStore connects to dbURL and creates the products table if missing.
func NewSQLStore(ctx context.Context, dbURL string, timeout time.Duration) (*SQLStore, error) {
	conn, err := db.Connect(ctx, dbURL)
	if err != nil {
		return nil, unavailable("connect", err)
	}
	if err := db.Migrate(ctx, conn, productsSchema...); err != nil {
		conn.Close()
		return nil, err
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &SQLStore{conn: conn, timeout: timeout}, nil
}

// Insert appends products, used for seeding.
func (s *SQLStore) Insert(ctx context.Context, products ...domain.Product) error {
	for _, p := range products {
		if err := validateProduct(p); err != nil {
			return err
		}
	}
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("insert", err)
	}
	for _, p := range products {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO products (name, unit_price, stock) VALUES (?, ?, ?)`,
			p.Name, p.UnitPrice, p.Stock,
		); err != nil {
			tx.Rollback()
			return unavailable("insert", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return unavailable("insert", err)
	}
	return nil
}

func (s *SQLStore) FindByNameSubstring(ctx context.Context, term string, limit int) ([]domain.Product, error) {
	limit, ok := normalizeLimit(limit)
	if !ok {
		return nil, nil
	}
	pattern := "%" + likeEscaper.Replace(strings.ToLower(term)) + "%"
	return s.query(ctx, "find products",
		`SELECT name, unit_price, stock FROM products
		 WHERE LOWER(name) LIKE ? ESCAPE '\'
		 ORDER BY rowid LIMIT ?`,
		pattern, limit,
	)
}

func (s *SQLStore) List(ctx context.Context, limit int) ([]domain.Product, error) {
	limit, ok := normalizeLimit(limit)
	if !ok {
		return nil, nil
	}
	return s.query(ctx, "list products",
		`SELECT name, unit_price, stock FROM products ORDER BY rowid LIMIT ?`, limit)
}

func (s *SQLStore) query(ctx context.Context, op, q string, args ...any) ([]domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, unavailable(op, err)
	}
	defer rows.Close()

	var out []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.Name, &p.UnitPrice, &p.Stock); err != nil {
			return nil, unavailable(op+": scan", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(op, err)
	}
	return out, nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	var n int
	if err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&n); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

func (s *SQLStore) Close(context.Context) error {
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("close catalog db: %w", err)
	}
	return nil
}

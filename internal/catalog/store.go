package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-checkout/internal/database"
)

const productColumns = `id, code, title, description, price_cents, stock, active, weight_grams, width_cm, height_cm, length_cm`

// Store reads products from Postgres.
type Store struct {
	DB database.DBTX
}

// NewStore constructs a Store over the provided connection or transaction.
func NewStore(db database.DBTX) *Store {
	return &Store{DB: db}
}

// GetByID loads a product by catalog id, active or not.
func (s *Store) GetByID(ctx context.Context, id int64) (Product, error) {
	row := s.DB.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	p, err := scanProduct(row)
	if err != nil {
		return Product{}, fmt.Errorf("get product %d: %w", id, err)
	}
	return p, nil
}

// GetByCode loads a product by its unique code.
func (s *Store) GetByCode(ctx context.Context, code string) (Product, error) {
	row := s.DB.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE code = $1`, code)
	p, err := scanProduct(row)
	if err != nil {
		return Product{}, fmt.Errorf("get product %q: %w", code, err)
	}
	return p, nil
}

// ListActive returns a page of active products matching the optional title query.
func (s *Store) ListActive(ctx context.Context, query string, limit, offset int) ([]Product, int64, error) {
	var total int64
	if err := s.DB.QueryRow(ctx,
		`SELECT count(*) FROM products WHERE active AND ($1 = '' OR title ILIKE '%' || $1 || '%')`,
		query,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}
	rows, err := s.DB.Query(ctx,
		`SELECT `+productColumns+` FROM products
		 WHERE active AND ($1 = '' OR title ILIKE '%' || $1 || '%')
		 ORDER BY id
		 LIMIT $2 OFFSET $3`,
		query, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()
	products := make([]Product, 0, limit)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	return products, total, nil
}

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Code, &p.Title, &p.Description, &p.PriceCents, &p.Stock, &p.Active,
		&p.WeightGrams, &p.WidthCm, &p.HeightCm, &p.LengthCm)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	return p, err
}

package adapter

import (
	"context"
	"errors"
	"fmt"
	"strings"

	repository "github.com/NurzhauganovA/aishop/internal/repository/port"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PgCatalogRepository struct {
	pool *pgxpool.Pool
}

func NewPgCatalogRepository(pool *pgxpool.Pool) *PgCatalogRepository {
	return &PgCatalogRepository{pool: pool}
}

func (r *PgCatalogRepository) QueryActiveProducts(ctx context.Context, f repository.Filter) ([]repository.Product, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgCatalogRepository: nil pool")
	}

	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString(`
		SELECT id::text, name, description, price, original_price, category
		FROM catalog.product
		WHERE is_active`)

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(f.Categories) > 0 {
		sb.WriteString(" AND category = ANY(" + arg(f.Categories) + ")")
	}

	if len(f.Keywords) > 0 {
		clauses := make([]string, 0, len(f.Keywords))
		for _, kw := range f.Keywords {
			p := arg("%" + kw + "%")
			clauses = append(clauses, "(name ILIKE "+p+" OR description ILIKE "+p+")")
		}
		sb.WriteString(" AND (" + strings.Join(clauses, " OR ") + ")")
	}

	if f.PriceMin != nil {
		sb.WriteString(" AND price >= " + arg(*f.PriceMin))
	}
	if f.PriceMax != nil {
		sb.WriteString(" AND price <= " + arg(*f.PriceMax))
	}

	for key, value := range f.Attributes {
		if !repository.KnownAttribute(key) {
			continue
		}
		sb.WriteString(" AND " + key + " = " + arg(value))
	}

	sb.WriteString(" ORDER BY name")

	rows, err := r.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []repository.Product
	for rows.Next() {
		var p repository.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.OriginalPrice, &p.Category); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return products, nil
}

func (r *PgCatalogRepository) ListCategories(ctx context.Context) ([]string, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgCatalogRepository: nil pool")
	}
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT category
		FROM catalog.product
		WHERE is_active AND category <> ''
		ORDER BY category
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return categories, nil
}

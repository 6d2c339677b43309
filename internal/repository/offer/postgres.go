package offer

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

type postgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) Repository {
	return &postgresRepo{pool: pool}
}

func (r *postgresRepo) ActivePercents(ctx context.Context) (Percents, error) {
	p := Percents{
		ByProduct:  make(map[string]int),
		ByCategory: make(map[string]int),
	}

	const productQuery = `
SELECT op.product_id::text, MAX(o.discount_percent)
FROM offers o
JOIN offer_products op ON op.offer_id = o.id
WHERE o.active
  AND o.scope = 'product'
  AND o.start_date <= now()
  AND (o.end_date IS NULL OR o.end_date >= now())
GROUP BY op.product_id
`
	rows, err := r.pool.Query(ctx, productQuery)
	if err != nil {
		return Percents{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		var pct int
		if err := rows.Scan(&id, &pct); err != nil {
			return Percents{}, err
		}
		p.ByProduct[id] = pct
	}
	if err := rows.Err(); err != nil {
		return Percents{}, err
	}

	const categoryQuery = `
SELECT oc.category_id::text, MAX(o.discount_percent)
FROM offers o
JOIN offer_categories oc ON oc.offer_id = o.id
WHERE o.active
  AND o.scope = 'category'
  AND o.start_date <= now()
  AND (o.end_date IS NULL OR o.end_date >= now())
GROUP BY oc.category_id
`
	rows, err = r.pool.Query(ctx, categoryQuery)
	if err != nil {
		return Percents{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		var pct int
		if err := rows.Scan(&id, &pct); err != nil {
			return Percents{}, err
		}
		p.ByCategory[id] = pct
	}
	return p, rows.Err()
}

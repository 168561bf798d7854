package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmehra2102/stock-order-system/internal/apperr"
	"github.com/dmehra2102/stock-order-system/internal/inventory/application"
	"github.com/dmehra2102/stock-order-system/internal/inventory/domain"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

var _ application.ProductStore = (*Repository)(nil)

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{
		log:  log,
		pool: pool,
	}
}

func (r *Repository) FindProduct(ctx context.Context, id string) (domain.Product, error) {
	var p domain.Product
	err := r.pool.QueryRow(ctx, `SELECT id, name, price_cents, available, status, updated_at FROM products WHERE id=$1`, id).
		Scan(&p.ID, &p.Name, &p.PriceCents, &p.Available, &p.Status, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Product{}, apperr.Wrap(apperr.ErrProductNotFound, "product %s", id)
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("select product %s: %w", id, err)
	}
	return p, nil
}

func (r *Repository) SaveProduct(ctx context.Context, p domain.Product) error {
	if p.Available < 0 {
		return apperr.Wrap(apperr.ErrInvalidParameter, "product %s: negative stock %d", p.ID, p.Available)
	}
	_, err := r.pool.Exec(ctx, `INSERT INTO products (id, name, price_cents, available, status, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (id) DO UPDATE SET name=$2, price_cents=$3, available=$4, status=$5, updated_at=$6`,
		p.ID, p.Name, p.PriceCents, p.Available, p.Status, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert product %s: %w", p.ID, err)
	}
	return nil
}

// ApplyRelease records the journal row and increments stock in one
// transaction. A key that is already journaled leaves stock untouched.
func (r *Repository) ApplyRelease(ctx context.Context, key, productID string, qty int64) (bool, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var p domain.Product
	err = tx.QueryRow(ctx, `SELECT id, name, price_cents, available, status, updated_at FROM products WHERE id=$1 FOR UPDATE`, productID).
		Scan(&p.ID, &p.Name, &p.PriceCents, &p.Available, &p.Status, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, apperr.Wrap(apperr.ErrProductNotFound, "product %s", productID)
	}
	if err != nil {
		return false, fmt.Errorf("lock product %s: %w", productID, err)
	}

	ct, err := tx.Exec(ctx, `INSERT INTO stock_releases (key, product_id, quantity) VALUES ($1,$2,$3) ON CONFLICT (key) DO NOTHING`,
		key, productID, qty)
	if err != nil {
		return false, fmt.Errorf("journal release %s: %w", key, err)
	}
	if ct.RowsAffected() == 0 {
		return false, nil
	}

	next, err := p.Release(qty)
	if err != nil {
		return false, err
	}
	_, err = tx.Exec(ctx, `UPDATE products SET available=$2, status=$3, updated_at=$4 WHERE id=$1`,
		next.ID, next.Available, next.Status, next.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("release product %s: %w", productID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

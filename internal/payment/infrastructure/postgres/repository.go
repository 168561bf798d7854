package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmehra2102/stock-order-system/internal/payment/domain"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) SavePayment(ctx context.Context, p domain.Payment) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO payments (id, order_id, method, original_cents, discount_cents,
			delivery_fee_cents, final_cents, status, failure_reason, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (id) DO UPDATE SET status=$8, failure_reason=$9, updated_at=$11`,
		p.ID, p.OrderID, p.Method, p.OriginalCents, p.DiscountCents, p.DeliveryFeeCents, p.FinalCents,
		p.Status, p.FailureReason, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert payment %s: %w", p.ID, err)
	}
	return nil
}

func (r *Repository) FindByOrder(ctx context.Context, orderID string) ([]domain.Payment, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, order_id, method, original_cents, discount_cents, delivery_fee_cents,
			final_cents, status, failure_reason, created_at, updated_at
		FROM payments WHERE order_id=$1 ORDER BY created_at DESC`, orderID)
	if err != nil {
		return nil, fmt.Errorf("select payments: %w", err)
	}
	defer rows.Close()

	var out []domain.Payment
	for rows.Next() {
		var p domain.Payment
		if err := rows.Scan(&p.ID, &p.OrderID, &p.Method, &p.OriginalCents, &p.DiscountCents, &p.DeliveryFeeCents,
			&p.FinalCents, &p.Status, &p.FailureReason, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmehra2102/stock-order-system/internal/apperr"
	"github.com/dmehra2102/stock-order-system/internal/order/application"
	"github.com/dmehra2102/stock-order-system/internal/order/domain"
	platform "github.com/dmehra2102/stock-order-system/internal/platform/postgres"
)

const orderColumns = `id, owner_id, receiver_name, receiver_address, receiver_mobile, status, previous_status,
	payment_id, reasons, stock_released, created_at, delivery_due_at, updated_at`

const refundColumns = `id, order_id, requester_id, type, status, reason, decision_reason, created_at, updated_at`

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

var _ application.Repository = (*Repository)(nil)

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) SaveOrder(ctx context.Context, o domain.Order) (string, error) {
	if err := upsertOrder(ctx, r.pool, o); err != nil {
		return "", err
	}
	return o.ID, nil
}

func (r *Repository) SaveLineItem(ctx context.Context, item domain.LineItem) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO order_items (id, order_id, product_id, quantity, unit_price_cents)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (id) DO UPDATE SET quantity=$4, unit_price_cents=$5`,
		item.ID, item.OrderID, item.ProductID, item.Quantity, item.UnitPriceCents)
	if err != nil {
		return fmt.Errorf("upsert line item %s: %w", item.ID, err)
	}
	return nil
}

func (r *Repository) FindOrder(ctx context.Context, id string) (domain.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, apperr.Wrap(apperr.ErrOrderNotFound, "order %s", id)
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("select order %s: %w", id, err)
	}
	orders := []domain.Order{o}
	if err := r.attachItems(ctx, orders); err != nil {
		return domain.Order{}, err
	}
	return orders[0], nil
}

func (r *Repository) FindOrdersByOwner(ctx context.Context, ownerID string, page application.Page) ([]domain.Order, error) {
	page = page.Normalize()
	return r.queryOrders(ctx, `SELECT `+orderColumns+` FROM orders WHERE owner_id=$1
		ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`, ownerID, page.Size, page.Offset())
}

func (r *Repository) FindPendingReleases(ctx context.Context, limit int) ([]domain.Order, error) {
	orders, err := r.queryOrders(ctx, `SELECT `+orderColumns+` FROM orders
		WHERE NOT stock_released AND status = ANY($1)
		ORDER BY updated_at LIMIT $2`, releasedStatuses(), limit)
	if err != nil {
		return nil, err
	}
	pending := orders[:0]
	for _, o := range orders {
		if o.PendingRelease() {
			pending = append(pending, o)
		}
	}
	return pending, nil
}

func (r *Repository) FindRefund(ctx context.Context, id string) (domain.Refund, error) {
	rf, err := scanRefund(r.pool.QueryRow(ctx, `SELECT `+refundColumns+` FROM refunds WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Refund{}, apperr.Wrap(apperr.ErrRefundNotFound, "refund %s", id)
	}
	if err != nil {
		return domain.Refund{}, fmt.Errorf("select refund %s: %w", id, err)
	}
	return rf, nil
}

func (r *Repository) FindRefundsByOrder(ctx context.Context, orderID string) ([]domain.Refund, error) {
	return r.queryRefunds(ctx, `SELECT `+refundColumns+` FROM refunds WHERE order_id=$1 ORDER BY created_at DESC, id`, orderID)
}

func (r *Repository) ListRefunds(ctx context.Context, page application.Page) ([]domain.Refund, error) {
	page = page.Normalize()
	return r.queryRefunds(ctx, `SELECT `+refundColumns+` FROM refunds ORDER BY created_at DESC, id LIMIT $1 OFFSET $2`,
		page.Size, page.Offset())
}

// SaveRefundWithOrder writes the refund and the order row in one transaction.
// The partial unique index on refunds rejects a second pending request.
func (r *Repository) SaveRefundWithOrder(ctx context.Context, rf domain.Refund, o domain.Order) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	_, err = tx.Exec(ctx, `INSERT INTO refunds (`+refundColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (id) DO UPDATE SET status=$5, decision_reason=$7, updated_at=$9`,
		rf.ID, rf.OrderID, rf.RequesterID, rf.Type, rf.Status, rf.Reason, rf.DecisionReason, rf.CreatedAt, rf.UpdatedAt)
	if platform.IsUniqueViolation(err, "refunds_one_pending_idx") {
		return apperr.ErrDuplicateRequest
	}
	if err != nil {
		return fmt.Errorf("upsert refund %s: %w", rf.ID, err)
	}
	if err := upsertOrder(ctx, tx, o); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (r *Repository) SaveStockReturn(ctx context.Context, sr domain.StockReturn) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO stock_returns (key, order_id, product_id, quantity, created_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (key) DO NOTHING`,
		sr.Key, sr.OrderID, sr.ProductID, sr.Quantity, sr.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert stock return %s: %w", sr.Key, err)
	}
	return nil
}

func (r *Repository) FindStockReturns(ctx context.Context, limit int) ([]domain.StockReturn, error) {
	rows, err := r.pool.Query(ctx, `SELECT key, order_id, product_id, quantity, created_at
		FROM stock_returns ORDER BY created_at, key LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("select stock returns: %w", err)
	}
	defer rows.Close()

	var out []domain.StockReturn
	for rows.Next() {
		var sr domain.StockReturn
		if err := rows.Scan(&sr.Key, &sr.OrderID, &sr.ProductID, &sr.Quantity, &sr.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan stock return: %w", err)
		}
		out = append(out, sr)
	}
	return out, rows.Err()
}

func (r *Repository) DeleteStockReturn(ctx context.Context, key string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM stock_returns WHERE key=$1`, key); err != nil {
		return fmt.Errorf("delete stock return %s: %w", key, err)
	}
	return nil
}

func upsertOrder(ctx context.Context, q querier, o domain.Order) error {
	reasons := o.Reasons
	if reasons == nil {
		reasons = []string{}
	}
	_, err := q.Exec(ctx, `INSERT INTO orders (`+orderColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (id) DO UPDATE SET receiver_name=$3, receiver_address=$4, receiver_mobile=$5, status=$6,
			previous_status=$7, payment_id=$8, reasons=$9, stock_released=$10, updated_at=$13`,
		o.ID, o.OwnerID, o.Receiver.Name, o.Receiver.Address, o.Receiver.Mobile, o.Status, o.PreviousStatus,
		o.PaymentID, reasons, o.StockReleased, o.CreatedAt, o.DeliveryDueAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert order %s: %w", o.ID, err)
	}
	return nil
}

func (r *Repository) queryOrders(ctx context.Context, sql string, args ...any) ([]domain.Order, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	orders := []domain.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// attachItems loads line items for all orders with one query.
func (r *Repository) attachItems(ctx context.Context, orders []domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]string, 0, len(orders))
	index := make(map[string]int, len(orders))
	for i, o := range orders {
		ids = append(ids, o.ID)
		index[o.ID] = i
	}

	rows, err := r.pool.Query(ctx, `SELECT id, order_id, product_id, quantity, unit_price_cents
		FROM order_items WHERE order_id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return fmt.Errorf("select line items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var item domain.LineItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &item.UnitPriceCents); err != nil {
			return err
		}
		i := index[item.OrderID]
		orders[i].Items = append(orders[i].Items, item)
	}
	return rows.Err()
}

func (r *Repository) queryRefunds(ctx context.Context, sql string, args ...any) ([]domain.Refund, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("select refunds: %w", err)
	}
	defer rows.Close()

	refunds := []domain.Refund{}
	for rows.Next() {
		rf, err := scanRefund(rows)
		if err != nil {
			return nil, err
		}
		refunds = append(refunds, rf)
	}
	return refunds, rows.Err()
}

func scanOrder(row pgx.Row) (domain.Order, error) {
	var o domain.Order
	err := row.Scan(&o.ID, &o.OwnerID, &o.Receiver.Name, &o.Receiver.Address, &o.Receiver.Mobile, &o.Status,
		&o.PreviousStatus, &o.PaymentID, &o.Reasons, &o.StockReleased, &o.CreatedAt, &o.DeliveryDueAt, &o.UpdatedAt)
	return o, err
}

func scanRefund(row pgx.Row) (domain.Refund, error) {
	var rf domain.Refund
	err := row.Scan(&rf.ID, &rf.OrderID, &rf.RequesterID, &rf.Type, &rf.Status, &rf.Reason, &rf.DecisionReason,
		&rf.CreatedAt, &rf.UpdatedAt)
	return rf, err
}

func releasedStatuses() []string {
	return []string{string(domain.StatusCancelled), string(domain.StatusRefundCompleted), string(domain.StatusReturnCompleted)}
}

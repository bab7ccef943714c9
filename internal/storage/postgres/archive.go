package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/bites-pos/internal/domain/order"
)

const createOrderSQL = `INSERT INTO completed_orders
	(id, slot, items, subtotal, tax, total, payment_method, tendered, change_due, completed_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

var _ order.Archive = (*OrderArchive)(nil)

// OrderArchive implements order.Archive backed by PostgreSQL. Orders are only
// appended; the in-memory history is never reloaded from it.
type OrderArchive struct {
	pool *pgxpool.Pool
}

// NewOrderArchive returns an OrderArchive that uses the given pool.
func NewOrderArchive(pool *pgxpool.Pool) *OrderArchive {
	return &OrderArchive{pool: pool}
}

// Create persists a completed order. The line items are serialized to JSON
// for storage in the JSONB column.
func (a *OrderArchive) Create(ctx context.Context, o *order.CompletedOrder) error {
	var e jx.Encoder
	order.EncodeLineItems(&e, o.Items)

	_, err := a.pool.Exec(ctx, createOrderSQL,
		o.ID, int(o.Slot), e.Bytes(),
		o.Subtotal, o.Tax, o.Total,
		string(o.Payment.Method), o.Payment.Tendered, o.Payment.Change,
		o.Timestamp,
	)
	if err != nil {
		return errors.Wrapf(err, "create order %q", o.ID)
	}
	return nil
}

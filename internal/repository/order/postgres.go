package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"marketplace-core/internal/db"
	"marketplace-core/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type postgresRepo struct {
	q      db.Querier
	logger *log.Logger
}

// NewPostgres binds the repository to a pool or to a transaction.
func NewPostgres(q db.Querier, logger *log.Logger) Repository {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &postgresRepo{q: q, logger: logger}
}

const selectColumns = `
SELECT id::text, order_number, customer_id, store_id::text, items, subtotal_cents, tax_cents, shipping_cents,
       discount_cents, total_cents, currency, status, payment_status, payment_method, shipping_address,
       billing_address, COALESCE(notes, ''), COALESCE(coupon_code, ''), tracking_number, estimated_delivery,
       inventory_applied, version, created_at, updated_at
FROM orders
`

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}
	o, err := scanOrder(r.q.QueryRow(ctx, selectColumns+`WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.Printf("order repo: get id=%s error=%v", id, err)
		return nil, err
	}
	return o, nil
}

func (r *postgresRepo) Create(ctx context.Context, o *domain.Order) error {
	const q = `
INSERT INTO orders (order_number, customer_id, store_id, items, subtotal_cents, tax_cents, shipping_cents,
                    discount_cents, total_cents, currency, status, payment_status, payment_method,
                    shipping_address, billing_address, notes, coupon_code, inventory_applied)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NULLIF($16, ''), NULLIF($17, ''), $18)
RETURNING id::text, version, created_at, updated_at
`
	items, shipping, billing, err := encodeJSON(o)
	if err != nil {
		return err
	}
	err = r.q.QueryRow(ctx, q,
		o.OrderNumber, o.CustomerID, o.StoreID, items,
		o.SubtotalCents, o.TaxCents, o.ShippingCents, o.DiscountCents, o.TotalCents, o.Currency,
		string(o.Status), string(o.PaymentStatus), string(o.PaymentMethod),
		shipping, billing, o.Notes, o.CouponCode, o.InventoryApplied,
	).Scan(&o.ID, &o.Version, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrAlreadyExists
		}
		r.logger.Printf("order repo: create number=%s error=%v", o.OrderNumber, err)
		return err
	}
	r.logger.Printf("order repo: created id=%s number=%s store_id=%s", o.ID, o.OrderNumber, o.StoreID)
	return nil
}

func (r *postgresRepo) Save(ctx context.Context, o *domain.Order, expectedVersion int) error {
	const q = `
UPDATE orders
SET status = $3,
    payment_status = $4,
    tracking_number = $5,
    estimated_delivery = $6,
    inventory_applied = $7,
    notes = NULLIF($8, ''),
    updated_at = $9,
    version = version + 1
WHERE id = $1 AND version = $2
`
	if _, err := uuid.Parse(o.ID); err != nil {
		return domain.ErrNotFound
	}
	tag, err := r.q.Exec(ctx, q, o.ID, expectedVersion,
		string(o.Status), string(o.PaymentStatus), o.TrackingNumber, o.EstimatedDelivery,
		o.InventoryApplied, o.Notes, o.UpdatedAt)
	if err != nil {
		r.logger.Printf("order repo: save id=%s error=%v", o.ID, err)
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, o.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return domain.ErrNotFound
		}
		r.logger.Printf("order repo: save id=%s version conflict expected=%d", o.ID, expectedVersion)
		return domain.ErrVersionConflict
	}
	o.Version = expectedVersion + 1
	return nil
}

func (r *postgresRepo) List(ctx context.Context, f Filter) ([]domain.Order, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if len(f.StoreIDs) > 0 {
		add("store_id::text = ANY($%d)", f.StoreIDs)
	}
	if f.CustomerID != "" {
		add("customer_id = $%d", f.CustomerID)
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, 0, len(f.Statuses))
		for _, s := range f.Statuses {
			statuses = append(statuses, string(s))
		}
		add("status = ANY($%d)", statuses)
	}
	if f.CreatedFrom != nil {
		add("created_at >= $%d", *f.CreatedFrom)
	}
	if f.CreatedTo != nil {
		add("created_at < $%d", *f.CreatedTo)
	}

	var sb strings.Builder
	sb.WriteString(selectColumns)
	if len(where) > 0 {
		sb.WriteString("WHERE ")
		sb.WriteString(strings.Join(where, " AND "))
		sb.WriteString("\n")
	}
	sb.WriteString("ORDER BY created_at DESC, id ASC\n")
	if f.Limit > 0 {
		args = append(args, f.Limit)
		fmt.Fprintf(&sb, "LIMIT $%d\n", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		fmt.Fprintf(&sb, "OFFSET $%d\n", len(args))
	}

	rows, err := r.q.Query(ctx, sb.String(), args...)
	if err != nil {
		r.logger.Printf("order repo: list error=%v", err)
		return nil, err
	}
	defer rows.Close()

	var result []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o                        domain.Order
		items, shipping, billing []byte
		status, payment, method  string
	)
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.CustomerID, &o.StoreID, &items,
		&o.SubtotalCents, &o.TaxCents, &o.ShippingCents, &o.DiscountCents, &o.TotalCents, &o.Currency,
		&status, &payment, &method, &shipping, &billing, &o.Notes, &o.CouponCode,
		&o.TrackingNumber, &o.EstimatedDelivery, &o.InventoryApplied, &o.Version, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.Status = domain.OrderStatus(status)
	o.PaymentStatus = domain.PaymentStatus(payment)
	o.PaymentMethod = domain.PaymentMethod(method)
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("decode items of order %s: %w", o.ID, err)
	}
	if err := json.Unmarshal(shipping, &o.ShippingAddress); err != nil {
		return nil, fmt.Errorf("decode shipping address of order %s: %w", o.ID, err)
	}
	if err := json.Unmarshal(billing, &o.BillingAddress); err != nil {
		return nil, fmt.Errorf("decode billing address of order %s: %w", o.ID, err)
	}
	return &o, nil
}

func encodeJSON(o *domain.Order) (items, shipping, billing []byte, err error) {
	lines := o.Items
	if lines == nil {
		lines = []domain.OrderItem{}
	}
	if items, err = json.Marshal(lines); err != nil {
		return nil, nil, nil, fmt.Errorf("encode items: %w", err)
	}
	if shipping, err = json.Marshal(o.ShippingAddress); err != nil {
		return nil, nil, nil, fmt.Errorf("encode shipping address: %w", err)
	}
	if billing, err = json.Marshal(o.BillingAddress); err != nil {
		return nil, nil, nil, fmt.Errorf("encode billing address: %w", err)
	}
	return items, shipping, billing, nil
}

package postgres

import (
	"context"
	"errors"
	"fmt"

	domainErrors "github.com/cassiomorais/bluecode/internal/domain/errors"
	"github.com/cassiomorais/bluecode/internal/domain/order"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const orderColumns = `id, number, customer_id, currency, total::text, status, transaction_id,
	return_url, cancel_url, payment_url, created_at, updated_at, paid_at`

// OrderStore implements order.Store on the storefront's order tables.
type OrderStore struct {
	pool *pgxpool.Pool
}

func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

func (s *OrderStore) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, s.pool)
}

// Get retrieves an order with its items.
func (s *OrderStore) Get(ctx context.Context, id int64) (*order.Order, error) {
	o, err := scanOrder(s.db(ctx).QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	items, err := s.GetItems(ctx, id)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return o, nil
}

func (s *OrderStore) GetTotal(ctx context.Context, id int64) (decimal.Decimal, error) {
	var total string
	err := s.db(ctx).QueryRow(ctx, `SELECT total::text FROM orders WHERE id = $1`, id).Scan(&total)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, domainErrors.ErrOrderNotFound
		}
		return decimal.Zero, fmt.Errorf("get order total: %w", err)
	}
	return parseNumeric(total)
}

func (s *OrderStore) GetCustomerID(ctx context.Context, id int64) (int64, error) {
	var customerID int64
	err := s.db(ctx).QueryRow(ctx, `SELECT customer_id FROM orders WHERE id = $1`, id).Scan(&customerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domainErrors.ErrOrderNotFound
		}
		return 0, fmt.Errorf("get order customer: %w", err)
	}
	return customerID, nil
}

func (s *OrderStore) GetItems(ctx context.Context, id int64) ([]order.Item, error) {
	rows, err := s.db(ctx).Query(ctx,
		`SELECT product_id, sku, name, quantity, unit_price::text, total::text, total_tax::text
		 FROM order_items WHERE order_id = $1 ORDER BY id ASC`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	defer rows.Close()

	var items []order.Item
	for rows.Next() {
		var (
			it                        order.Item
			unitPrice, total, totalTx string
		)
		if err := rows.Scan(&it.ProductID, &it.SKU, &it.Name, &it.Quantity, &unitPrice, &total, &totalTx); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		if it.UnitPrice, err = parseNumeric(unitPrice); err != nil {
			return nil, err
		}
		if it.Total, err = parseNumeric(total); err != nil {
			return nil, err
		}
		if it.TotalTax, err = parseNumeric(totalTx); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// SetStatus moves a pending order to status.
func (s *OrderStore) SetStatus(ctx context.Context, id int64, status order.Status) error {
	tag, err := s.db(ctx).Exec(ctx,
		`UPDATE orders SET status = $1, updated_at = NOW()
		 WHERE id = $2 AND status = $3`,
		string(status), id, string(order.StatusPending),
	)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.notPending(ctx, id)
	}
	return nil
}

// MarkPaid moves a pending order to processing. The status predicate in the
// UPDATE is what makes duplicate callbacks harmless.
func (s *OrderStore) MarkPaid(ctx context.Context, id int64, acquirerTxID string) error {
	tag, err := s.db(ctx).Exec(ctx,
		`UPDATE orders SET status = $1, transaction_id = $2, paid_at = NOW(), updated_at = NOW()
		 WHERE id = $3 AND status = $4`,
		string(order.StatusProcessing), acquirerTxID, id, string(order.StatusPending),
	)
	if err != nil {
		return fmt.Errorf("mark order paid: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.notPending(ctx, id)
	}
	return nil
}

// notPending tells a missing order apart from one that already left pending.
func (s *OrderStore) notPending(ctx context.Context, id int64) error {
	var exists bool
	if err := s.db(ctx).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check order: %w", err)
	}
	if !exists {
		return domainErrors.ErrOrderNotFound
	}
	return domainErrors.ErrOrderNotPending
}

func (s *OrderStore) AddNote(ctx context.Context, id int64, text string) error {
	_, err := s.db(ctx).Exec(ctx,
		`INSERT INTO order_notes (order_id, text, created_at) VALUES ($1, $2, NOW())`, id, text,
	)
	if err != nil {
		return fmt.Errorf("insert order note: %w", err)
	}
	return nil
}

// ListNotes returns the order history, oldest first.
func (s *OrderStore) ListNotes(ctx context.Context, id int64) ([]order.Note, error) {
	rows, err := s.db(ctx).Query(ctx,
		`SELECT order_id, text, created_at FROM order_notes WHERE order_id = $1 ORDER BY id ASC`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("list order notes: %w", err)
	}
	defer rows.Close()

	var notes []order.Note
	for rows.Next() {
		var n order.Note
		if err := rows.Scan(&n.OrderID, &n.Text, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order note: %w", err)
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

func (s *OrderStore) GetReturnURL(ctx context.Context, id int64) (string, error) {
	return s.url(ctx, id, "return_url")
}

func (s *OrderStore) GetCancelURL(ctx context.Context, id int64) (string, error) {
	return s.url(ctx, id, "cancel_url")
}

// url reads one of the fixed URL columns. column is never caller input.
func (s *OrderStore) url(ctx context.Context, id int64, column string) (string, error) {
	var u string
	err := s.db(ctx).QueryRow(ctx, `SELECT `+column+` FROM orders WHERE id = $1`, id).Scan(&u)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domainErrors.ErrOrderNotFound
		}
		return "", fmt.Errorf("get order %s: %w", column, err)
	}
	return u, nil
}

func scanOrder(s scanner) (*order.Order, error) {
	o := &order.Order{}
	var (
		total         string
		status        string
		transactionID *string
	)
	err := s.Scan(
		&o.ID, &o.Number, &o.CustomerID, &o.Currency, &total, &status, &transactionID,
		&o.ReturnURL, &o.CancelURL, &o.PaymentURL, &o.CreatedAt, &o.UpdatedAt, &o.PaidAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrOrderNotFound
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}
	if o.Total, err = parseNumeric(total); err != nil {
		return nil, fmt.Errorf("parse order total: %w", err)
	}
	o.Status = order.Status(status)
	if transactionID != nil {
		o.TransactionID = *transactionID
	}
	return o, nil
}

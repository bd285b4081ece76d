package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrInsufficientStock = errors.New("insufficient stock")
)

type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]Order, error)
	ListAll(ctx context.Context) ([]Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status, trackingNumber, notes string) error
	UpdatePaymentStatus(ctx context.Context, id uuid.UUID, ps PaymentStatus) error

	// ApplyStockDeduction moves the order's ledger from Reserved to
	// Deducted and decrements every line item's product stock, all in one
	// transaction. It returns (false, nil) when the ledger was already
	// Deducted, so repeated confirmations are harmless. If any product has
	// less stock than the ordered quantity the whole transaction rolls
	// back with ErrInsufficientStock.
	ApplyStockDeduction(ctx context.Context, orderID uuid.UUID) (applied bool, err error)

	// Cancel marks the order Cancelled and, if and only if its ledger was
	// Deducted at that moment, restores every line item's stock. The
	// ledger check and clear happen in the same UPDATE, so two concurrent
	// cancels can never double-restore. When refund is true the payment
	// status flips to Refunded in the same transaction.
	Cancel(ctx context.Context, orderID uuid.UUID, refund bool) error
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

// withTx runs fn inside a transaction with the usual rollback-on-error,
// rollback-and-repanic-on-panic handling.
func (r *postgresRepository) withTx(ctx context.Context, fn func(tx pgx.Tx) error) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Msg("Failed to rollback transaction after panic")
			}
			panic(p)
		} else if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Msg("Failed to rollback transaction")
			}
		} else if commitErr := tx.Commit(ctx); commitErr != nil {
			err = fmt.Errorf("repository: failed to commit transaction: %w", commitErr)
		}
	}()

	err = fn(tx)
	return err
}

func (r *postgresRepository) Create(ctx context.Context, o *Order) error {
	if o.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("repository: failed to generate order ID: %w", err)
		}
		o.ID = id
	}

	now := time.Now().UTC()
	o.CreatedAt = now
	o.UpdatedAt = now

	return r.withTx(ctx, func(tx pgx.Tx) error {
		orderQuery := `
			INSERT INTO orders (id, customer_id, subtotal, discount, discount_percentage, tax, shipping_cost, total,
			                    status, payment_status, payment_method, shipping_address, tracking_number, notes,
			                    stock_deducted, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		`
		_, err := tx.Exec(ctx, orderQuery,
			o.ID,
			o.CustomerID,
			o.Subtotal,
			o.Discount,
			o.DiscountPercentage,
			o.Tax,
			o.ShippingCost,
			o.Total,
			string(o.Status),
			string(o.PaymentStatus),
			o.PaymentMethod,
			o.ShippingAddress,
			o.TrackingNumber,
			o.Notes,
			o.StockDeducted,
			o.CreatedAt,
			o.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("repository: failed to insert order: %w", err)
		}

		itemQuery := `
			INSERT INTO order_items (id, order_id, product_id, quantity, unit_price)
			VALUES ($1, $2, $3, $4, $5)
		`
		for i := range o.Items {
			item := &o.Items[i]
			itemID, genErr := uuid.NewV4()
			if genErr != nil {
				return fmt.Errorf("repository: failed to generate order item ID: %w", genErr)
			}
			item.ID = itemID
			item.OrderID = o.ID

			_, err = tx.Exec(ctx, itemQuery, item.ID, item.OrderID, item.ProductID, item.Quantity, item.UnitPrice)
			if err != nil {
				return fmt.Errorf("repository: failed to insert order item for order %s: %w", o.ID, err)
			}
		}
		return nil
	})
}

const orderColumns = `id, customer_id, subtotal, discount, discount_percentage, tax, shipping_cost, total,
	status, payment_status, payment_method, shipping_address, tracking_number, notes,
	stock_deducted, created_at, updated_at`

func scanOrder(row pgx.Row, o *Order) error {
	return row.Scan(
		&o.ID,
		&o.CustomerID,
		&o.Subtotal,
		&o.Discount,
		&o.DiscountPercentage,
		&o.Tax,
		&o.ShippingCost,
		&o.Total,
		&o.Status,
		&o.PaymentStatus,
		&o.PaymentMethod,
		&o.ShippingAddress,
		&o.TrackingNumber,
		&o.Notes,
		&o.StockDeducted,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	var o Order
	if err := scanOrder(r.db.QueryRow(ctx, query, id), &o); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("repository: failed to select order by id %s: %w", id, err)
	}

	items, err := r.loadItems(ctx, r.db, id)
	if err != nil {
		return nil, err
	}
	o.Items = items

	return &o, nil
}

// querier lets loadItems run against either the pool or an open transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *postgresRepository) loadItems(ctx context.Context, q querier, orderID uuid.UUID) ([]Item, error) {
	query := `
		SELECT id, order_id, product_id, quantity, unit_price
		FROM order_items
		WHERE order_id = $1
	`
	rows, err := q.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query order items for order %s: %w", orderID, err)
	}
	defer rows.Close()

	items := make([]Item, 0)
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, fmt.Errorf("repository: failed to scan order item for order %s: %w", orderID, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating order items for order %s: %w", orderID, err)
	}
	return items, nil
}

func (r *postgresRepository) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE customer_id = $1 ORDER BY created_at DESC`
	return r.list(ctx, query, customerID)
}

func (r *postgresRepository) ListAll(ctx context.Context) ([]Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC`
	return r.list(ctx, query)
}

func (r *postgresRepository) list(ctx context.Context, query string, args ...any) ([]Order, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query orders: %w", err)
	}
	defer rows.Close()

	ordersMap := make(map[uuid.UUID]*Order)
	var orderIDs []uuid.UUID

	for rows.Next() {
		var o Order
		if err := scanOrder(rows, &o); err != nil {
			return nil, fmt.Errorf("repository: failed to scan order: %w", err)
		}
		o.Items = make([]Item, 0)
		ordersMap[o.ID] = &o
		orderIDs = append(orderIDs, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating orders: %w", err)
	}

	if len(orderIDs) == 0 {
		return []Order{}, nil
	}

	itemsQuery := `
		SELECT id, order_id, product_id, quantity, unit_price
		FROM order_items
		WHERE order_id = ANY($1)
	`
	itemRows, err := r.db.Query(ctx, itemsQuery, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query order items: %w", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var item Item
		if err := itemRows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, fmt.Errorf("repository: failed to scan order item: %w", err)
		}
		if o, ok := ordersMap[item.OrderID]; ok {
			o.Items = append(o.Items, item)
		}
	}
	if err := itemRows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating order items: %w", err)
	}

	result := make([]Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		result = append(result, *ordersMap[id])
	}
	return result, nil
}

func (r *postgresRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status Status, trackingNumber, notes string) error {
	query := `
		UPDATE orders
		SET status = $2,
		    tracking_number = CASE WHEN $3 <> '' THEN $3 ELSE tracking_number END,
		    notes = CASE WHEN $4 <> '' THEN $4 ELSE notes END,
		    updated_at = $5
		WHERE id = $1
	`
	cmdTag, err := r.db.Exec(ctx, query, id, string(status), trackingNumber, notes, time.Now().UTC())
	if err != nil {
		log.Error().Err(err).Stringer("order_id", id).Str("new_status", string(status)).Msg("repository: failed to update order status")
		return fmt.Errorf("repository: failed to update status for order %s: %w", id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *postgresRepository) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, ps PaymentStatus) error {
	query := `UPDATE orders SET payment_status = $2, updated_at = $3 WHERE id = $1`
	cmdTag, err := r.db.Exec(ctx, query, id, string(ps), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("repository: failed to update payment status for order %s: %w", id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *postgresRepository) ApplyStockDeduction(ctx context.Context, orderID uuid.UUID) (bool, error) {
	applied := false
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		// Claim the ledger transition first. The conditional WHERE makes
		// this the single point where Reserved becomes Deducted; a second
		// confirmation sees zero rows and leaves stock alone.
		claim := `
			UPDATE orders
			SET stock_deducted = TRUE, updated_at = $2
			WHERE id = $1 AND stock_deducted = FALSE
		`
		cmdTag, err := tx.Exec(ctx, claim, orderID, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("repository: failed to claim stock deduction for order %s: %w", orderID, err)
		}
		if cmdTag.RowsAffected() == 0 {
			return nil
		}

		items, err := r.loadItems(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return fmt.Errorf("repository: order %s has no items to deduct", orderID)
		}

		// Conditional decrement per product: the stock >= quantity guard
		// and the subtraction are one statement, so concurrent
		// confirmations against the same product cannot oversell.
		deduct := `
			UPDATE products
			SET stock = stock - $2, updated_at = $3
			WHERE id = $1 AND stock >= $2
		`
		for _, item := range items {
			cmdTag, err := tx.Exec(ctx, deduct, item.ProductID, item.Quantity, time.Now().UTC())
			if err != nil {
				return fmt.Errorf("repository: failed to deduct stock for product %s: %w", item.ProductID, err)
			}
			if cmdTag.RowsAffected() == 0 {
				// Rolls back the ledger claim and every decrement so far.
				return fmt.Errorf("%w for product %s (requested %d)", ErrInsufficientStock, item.ProductID, item.Quantity)
			}
		}

		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

func (r *postgresRepository) Cancel(ctx context.Context, orderID uuid.UUID, refund bool) error {
	return r.withTx(ctx, func(tx pgx.Tx) error {
		// Clearing stock_deducted and reading its prior value happen in
		// one statement: only the cancel that actually flipped the flag
		// restores stock, so a concurrent double-cancel cannot restore
		// twice.
		clearLedger := `
			UPDATE orders
			SET status = $2, stock_deducted = FALSE, updated_at = $3
			WHERE id = $1 AND stock_deducted = TRUE
		`
		cmdTag, err := tx.Exec(ctx, clearLedger, orderID, string(StatusCancelled), time.Now().UTC())
		if err != nil {
			return fmt.Errorf("repository: failed to cancel order %s: %w", orderID, err)
		}

		if cmdTag.RowsAffected() > 0 {
			items, err := r.loadItems(ctx, tx, orderID)
			if err != nil {
				return err
			}
			restore := `
				UPDATE products
				SET stock = stock + $2, updated_at = $3
				WHERE id = $1
			`
			for _, item := range items {
				if _, err := tx.Exec(ctx, restore, item.ProductID, item.Quantity, time.Now().UTC()); err != nil {
					return fmt.Errorf("repository: failed to restore stock for product %s: %w", item.ProductID, err)
				}
			}
		} else {
			// Ledger was still Reserved: stock was never touched, only the
			// status changes.
			statusOnly := `UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1`
			cmdTag, err := tx.Exec(ctx, statusOnly, orderID, string(StatusCancelled), time.Now().UTC())
			if err != nil {
				return fmt.Errorf("repository: failed to cancel order %s: %w", orderID, err)
			}
			if cmdTag.RowsAffected() == 0 {
				return ErrOrderNotFound
			}
		}

		if refund {
			refundQuery := `UPDATE orders SET payment_status = $2 WHERE id = $1`
			if _, err := tx.Exec(ctx, refundQuery, orderID, string(PaymentRefunded)); err != nil {
				return fmt.Errorf("repository: failed to mark order %s refunded: %w", orderID, err)
			}
		}

		return nil
	})
}

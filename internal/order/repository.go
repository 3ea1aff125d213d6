package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

var (
	ErrNotFound             = errors.New("order not found")
	ErrDuplicateOrderNumber = errors.New("order number already exists")
)

type Repository interface {
	// Create inserts the order and its items in one transaction. An order
	// number collision surfaces as ErrDuplicateOrderNumber; it never
	// silently overwrites an existing order.
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)
	GetByOrderNumber(ctx context.Context, orderNumber string) (*Order, error)
	GetByStripeSessionID(ctx context.Context, sessionID string) (*Order, error)
	List(ctx context.Context) ([]Order, error)
	ListByStatus(ctx context.Context, status Status) ([]Order, error)
	ListToFulfill(ctx context.Context) ([]Order, error)
	CountByStatus(ctx context.Context, status Status) (int64, error)
	TotalRevenue(ctx context.Context) (float64, error)
	SetStripeSession(ctx context.Context, id uuid.UUID, sessionID string) error
	// Transition locks the order row, runs apply and writes the result
	// back in the same transaction. See entry.Repository.Transition.
	Transition(ctx context.Context, id uuid.UUID, apply func(o *Order) (bool, error)) (*Order, error)
}

const orderColumns = `id, order_number, customer_name, customer_email, customer_phone,
		delivery_method, shipping_address, shipping_city, shipping_postcode, notes,
		subtotal, shipping_cost, total, status, stripe_payment_intent_id, stripe_session_id,
		created_at, paid_at, fulfilled_at`

const itemColumns = `id, order_id, product_id, product_name, quantity, unit_price`

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) Create(ctx context.Context, o *Order) (err error) {
	if o.ID == uuid.Nil {
		id, genErr := uuid.NewV4()
		if genErr != nil {
			return fmt.Errorf("repository: failed to generate order ID: %w", genErr)
		}
		o.ID = id
	}
	o.CreatedAt = time.Now().UTC()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Stringer("order_id", o.ID).Msg("repository: failed to rollback order insert")
			}
			return
		}
		if commitErr := tx.Commit(ctx); commitErr != nil {
			err = fmt.Errorf("repository: failed to commit order insert: %w", commitErr)
		}
	}()

	queryOrder := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`
	_, err = tx.Exec(ctx, queryOrder,
		o.ID, o.OrderNumber, o.CustomerName, o.CustomerEmail, o.CustomerPhone,
		string(o.DeliveryMethod), o.ShippingAddress, o.ShippingCity, o.ShippingPostcode, o.Notes,
		o.Subtotal, o.ShippingCost, o.Total, string(o.Status), o.StripePaymentIntentID, o.StripeSessionID,
		o.CreatedAt, o.PaidAt, o.FulfilledAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation && pgErr.ConstraintName == "ux_orders_order_number" {
			return ErrDuplicateOrderNumber
		}
		return fmt.Errorf("repository: failed to insert order: %w", err)
	}

	queryItem := `
		INSERT INTO order_items (` + itemColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	for i := range o.Items {
		item := &o.Items[i]
		itemID, genErr := uuid.NewV4()
		if genErr != nil {
			return fmt.Errorf("repository: failed to generate order item ID: %w", genErr)
		}
		item.ID = itemID
		item.OrderID = o.ID

		_, err = tx.Exec(ctx, queryItem,
			item.ID, item.OrderID, item.ProductID, item.ProductName, item.Quantity, item.UnitPrice,
		)
		if err != nil {
			return fmt.Errorf("repository: failed to insert order item for order %s: %w", o.ID, err)
		}
	}
	return nil
}

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.CustomerName, &o.CustomerEmail, &o.CustomerPhone,
		&o.DeliveryMethod, &o.ShippingAddress, &o.ShippingCity, &o.ShippingPostcode, &o.Notes,
		&o.Subtotal, &o.ShippingCost, &o.Total, &o.Status, &o.StripePaymentIntentID, &o.StripeSessionID,
		&o.CreatedAt, &o.PaidAt, &o.FulfilledAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("repository: failed to scan order: %w", err)
	}
	return &o, nil
}

func (r *postgresRepository) loadItems(ctx context.Context, q interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}, orderID uuid.UUID) ([]OrderItem, error) {
	rows, err := q.Query(ctx, `SELECT `+itemColumns+` FROM order_items WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query order items for order %s: %w", orderID, err)
	}
	defer rows.Close()

	items := make([]OrderItem, 0)
	for rows.Next() {
		var item OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.ProductName, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, fmt.Errorf("repository: failed to scan order item for order %s: %w", orderID, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating order items for order %s: %w", orderID, err)
	}
	return items, nil
}

func (r *postgresRepository) getOne(ctx context.Context, query string, arg any) (*Order, error) {
	o, err := scanOrder(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		return nil, err
	}
	o.Items, err = r.loadItems(ctx, r.db, o.ID)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

func (r *postgresRepository) GetByOrderNumber(ctx context.Context, orderNumber string) (*Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE order_number = $1`, orderNumber)
}

func (r *postgresRepository) GetByStripeSessionID(ctx context.Context, sessionID string) (*Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE stripe_session_id = $1`, sessionID)
}

func (r *postgresRepository) list(ctx context.Context, query string, args ...any) ([]Order, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query orders: %w", err)
	}
	defer rows.Close()

	ordersByID := make(map[uuid.UUID]*Order)
	ids := make([]uuid.UUID, 0)
	orders := make([]Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		o.Items = make([]OrderItem, 0)
		orders = append(orders, *o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating orders: %w", err)
	}
	if len(orders) == 0 {
		return orders, nil
	}
	for i := range orders {
		ordersByID[orders[i].ID] = &orders[i]
	}

	itemRows, err := r.db.Query(ctx, `SELECT `+itemColumns+` FROM order_items WHERE order_id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query order items: %w", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var item OrderItem
		if err := itemRows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.ProductName, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, fmt.Errorf("repository: failed to scan order item: %w", err)
		}
		if o, ok := ordersByID[item.OrderID]; ok {
			o.Items = append(o.Items, item)
		}
	}
	if err := itemRows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating order items: %w", err)
	}
	return orders, nil
}

func (r *postgresRepository) List(ctx context.Context) ([]Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC`)
}

func (r *postgresRepository) ListByStatus(ctx context.Context, status Status) ([]Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders WHERE status = $1 ORDER BY created_at DESC`, string(status))
}

// ListToFulfill returns paid orders awaiting fulfilment, oldest first.
func (r *postgresRepository) ListToFulfill(ctx context.Context) ([]Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders WHERE status IN ('PAID', 'PROCESSING') ORDER BY created_at ASC`)
}

func (r *postgresRepository) CountByStatus(ctx context.Context, status Status) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM orders WHERE status = $1`, string(status)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("repository: failed to count orders: %w", err)
	}
	return count, nil
}

func (r *postgresRepository) TotalRevenue(ctx context.Context) (float64, error) {
	var revenue float64
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(total), 0) FROM orders WHERE status IN ('PAID', 'PROCESSING', 'SHIPPED', 'DELIVERED', 'COLLECTED')`,
	).Scan(&revenue)
	if err != nil {
		return 0, fmt.Errorf("repository: failed to calculate revenue: %w", err)
	}
	return revenue, nil
}

func (r *postgresRepository) SetStripeSession(ctx context.Context, id uuid.UUID, sessionID string) error {
	cmdTag, err := r.db.Exec(ctx, `UPDATE orders SET stripe_session_id = $1 WHERE id = $2`, sessionID, id)
	if err != nil {
		return fmt.Errorf("repository: failed to set stripe session for order %s: %w", id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *postgresRepository) Transition(ctx context.Context, id uuid.UUID, apply func(o *Order) (bool, error)) (o *Order, err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Stringer("order_id", id).Msg("repository: failed to rollback order transition")
			}
			return
		}
		if commitErr := tx.Commit(ctx); commitErr != nil {
			err = fmt.Errorf("repository: failed to commit order transition: %w", commitErr)
			o = nil
		}
	}()

	o, err = scanOrder(tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, err
	}
	o.Items, err = r.loadItems(ctx, tx, o.ID)
	if err != nil {
		return nil, err
	}

	changed, err := apply(o)
	if err != nil {
		return nil, err
	}
	if !changed {
		return o, nil
	}

	_, err = tx.Exec(ctx, `
		UPDATE orders
		SET status = $1, stripe_payment_intent_id = $2, stripe_session_id = $3, paid_at = $4, fulfilled_at = $5
		WHERE id = $6`,
		string(o.Status), o.StripePaymentIntentID, o.StripeSessionID, o.PaidAt, o.FulfilledAt, o.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to update order %s: %w", id, err)
	}
	return o, nil
}

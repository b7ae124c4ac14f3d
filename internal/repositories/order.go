package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"eventbooking/internal/models"
)

// OrderRepository is the append-only order ledger
type OrderRepository struct {
	db *sql.DB
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

const orderColumns = `orderNumber, username, eventName, venue, day, quantity, totalPrice, dateTime`

func scanOrder(row rowScanner) (*models.Order, error) {
	order := &models.Order{}
	var dateTime string
	err := row.Scan(
		&order.OrderNumber,
		&order.Username,
		&order.EventName,
		&order.Venue,
		(*string)(&order.Day),
		&order.Quantity,
		&order.TotalPrice,
		&dateTime,
	)
	if err != nil {
		return nil, err
	}

	order.DateTime, err = time.ParseInLocation(models.OrderTimeLayout, dateTime, time.Local)
	if err != nil {
		return nil, fmt.Errorf("invalid order timestamp %q: %w", dateTime, err)
	}

	return order, nil
}

// LockSequence takes the order-number allocation lock for the rest of tx.
// The write on the sequence row blocks every other allocator until tx ends.
func (r *OrderRepository) LockSequence(ctx context.Context, tx *sql.Tx) error {
	if tx == nil {
		return errors.New("order sequence lock requires a transaction")
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE order_sequence SET locked_at = $1 WHERE id = 1`,
		time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return models.NewStorageError("lock order sequence", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return models.NewStorageError("lock order sequence", err)
	}
	if rowsAffected == 0 {
		return models.NewStorageError("lock order sequence", errors.New("order_sequence row is missing"))
	}

	return nil
}

// MaxOrderNumber returns the largest order number as an integer, 0 when empty
func (r *OrderRepository) MaxOrderNumber(ctx context.Context, tx *sql.Tx) (int, error) {
	var max sql.NullInt64
	err := cmd(r.db, tx).QueryRowContext(ctx,
		`SELECT MAX(CAST(orderNumber AS INTEGER)) FROM orders`).Scan(&max)
	if err != nil {
		return 0, models.NewStorageError("read max order number", err)
	}
	if !max.Valid {
		return 0, nil
	}
	return int(max.Int64), nil
}

// Create appends an order to the ledger
func (r *OrderRepository) Create(ctx context.Context, order *models.Order, tx *sql.Tx) error {
	if err := order.Validate(); err != nil {
		return err
	}

	_, err := cmd(r.db, tx).ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		order.OrderNumber,
		order.Username,
		order.EventName,
		order.Venue,
		string(order.Day),
		order.Quantity,
		order.TotalPrice,
		order.DateTime.Format(models.OrderTimeLayout),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return models.NewStorageError("create order", fmt.Errorf("order number %s already allocated: %w", order.OrderNumber, err))
		}
		return models.NewStorageError("create order", err)
	}

	return nil
}

// GetByOrderNumber retrieves a single order
func (r *OrderRepository) GetByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE orderNumber = $1`

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, orderNumber))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", models.ErrOrderNotFound, orderNumber)
		}
		return nil, models.NewStorageError("get order", err)
	}

	return order, nil
}

// GetByUser retrieves a user's orders, newest first
func (r *OrderRepository) GetByUser(ctx context.Context, username string) ([]*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE username = $1 ORDER BY dateTime DESC, orderNumber DESC`
	return r.queryOrders(ctx, "list user orders", query, username)
}

// List retrieves every order, newest first
func (r *OrderRepository) List(ctx context.Context) ([]*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders ORDER BY dateTime DESC, orderNumber DESC`
	return r.queryOrders(ctx, "list orders", query)
}

// OrderedQuantity sums the tickets ordered for an event snapshot
func (r *OrderRepository) OrderedQuantity(ctx context.Context, name, venue string, day models.Day) (int, error) {
	var ordered int
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(quantity), 0) FROM orders
		WHERE eventName = $1 AND venue = $2 AND day = $3`,
		name, venue, string(day)).Scan(&ordered)
	if err != nil {
		return 0, models.NewStorageError("sum ordered tickets", err)
	}
	return ordered, nil
}

func (r *OrderRepository) queryOrders(ctx context.Context, op, query string, args ...interface{}) ([]*models.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, models.NewStorageError(op, err)
	}
	defer rows.Close()

	orders := make([]*models.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, models.NewStorageError(op, err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, models.NewStorageError(op, err)
	}

	return orders, nil
}

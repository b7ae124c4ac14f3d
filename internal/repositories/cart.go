package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"eventbooking/internal/models"
)

// CartRepository persists cart lines, one row per (username, event_id)
type CartRepository struct {
	db *sql.DB
}

// NewCartRepository creates a new cart repository
func NewCartRepository(db *sql.DB) *CartRepository {
	return &CartRepository{db: db}
}

const cartColumns = `id, username, event_id, event_name, event_venue, event_day, event_price, quantity`

func scanCartLine(row rowScanner) (*models.CartLine, error) {
	line := &models.CartLine{}
	err := row.Scan(
		&line.ID,
		&line.Username,
		&line.EventID,
		&line.EventName,
		&line.EventVenue,
		(*string)(&line.EventDay),
		&line.EventPrice,
		&line.Quantity,
	)
	if err != nil {
		return nil, err
	}
	return line, nil
}

func (r *CartRepository) queryLines(ctx context.Context, tx *sql.Tx, op, query string, args ...interface{}) ([]*models.CartLine, error) {
	rows, err := cmd(r.db, tx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, models.NewStorageError(op, err)
	}
	defer rows.Close()

	lines := make([]*models.CartLine, 0)
	for rows.Next() {
		line, err := scanCartLine(rows)
		if err != nil {
			return nil, models.NewStorageError(op, err)
		}
		lines = append(lines, line)
	}

	if err := rows.Err(); err != nil {
		return nil, models.NewStorageError(op, err)
	}

	return lines, nil
}

// ListByUser returns a user's lines in the order they were first added
func (r *CartRepository) ListByUser(ctx context.Context, username string, tx *sql.Tx) ([]*models.CartLine, error) {
	query := `SELECT ` + cartColumns + ` FROM cart WHERE username = $1 ORDER BY id ASC`
	return r.queryLines(ctx, tx, "list cart", query, username)
}

// Add inserts a line, or increases the quantity of the existing line for
// the same user and event. The stored snapshot of the first add is kept.
func (r *CartRepository) Add(ctx context.Context, line *models.CartLine, tx *sql.Tx) (*models.CartLine, error) {
	if line.Quantity <= 0 {
		return nil, models.NewValidationError("quantity", "quantity must be positive")
	}

	query := `
		INSERT INTO cart (username, event_id, event_name, event_venue, event_day, event_price, quantity)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (username, event_id) DO UPDATE SET quantity = cart.quantity + excluded.quantity
		RETURNING ` + cartColumns

	stored, err := scanCartLine(cmd(r.db, tx).QueryRowContext(ctx, query,
		line.Username,
		line.EventID,
		line.EventName,
		line.EventVenue,
		string(line.EventDay),
		line.EventPrice,
		line.Quantity,
	))
	if err != nil {
		return nil, models.NewStorageError("add cart line", err)
	}

	return stored, nil
}

// UpdateQuantity sets the quantity of an existing line
func (r *CartRepository) UpdateQuantity(ctx context.Context, username string, eventID, quantity int, tx *sql.Tx) error {
	result, err := cmd(r.db, tx).ExecContext(ctx,
		`UPDATE cart SET quantity = $1 WHERE username = $2 AND event_id = $3`,
		quantity, username, eventID)
	if err != nil {
		return models.NewStorageError("update cart line", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return models.NewStorageError("update cart line", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%w: event %d", models.ErrCartLineNotFound, eventID)
	}

	return nil
}

// Delete removes a single line and returns it as stored, or nil when
// there was no such line
func (r *CartRepository) Delete(ctx context.Context, username string, eventID int, tx *sql.Tx) (*models.CartLine, error) {
	query := `DELETE FROM cart WHERE username = $1 AND event_id = $2 RETURNING ` + cartColumns

	line, err := scanCartLine(cmd(r.db, tx).QueryRowContext(ctx, query, username, eventID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, models.NewStorageError("delete cart line", err)
	}

	return line, nil
}

// DeleteByUser removes all of a user's lines and returns them as deleted
func (r *CartRepository) DeleteByUser(ctx context.Context, username string, tx *sql.Tx) ([]*models.CartLine, error) {
	query := `DELETE FROM cart WHERE username = $1 RETURNING ` + cartColumns
	return r.queryLines(ctx, tx, "clear cart", query, username)
}

// DeleteByEvent removes every user's line for an event and returns the
// rows exactly as they were deleted
func (r *CartRepository) DeleteByEvent(ctx context.Context, eventID int, tx *sql.Tx) ([]*models.CartLine, error) {
	query := `DELETE FROM cart WHERE event_id = $1 RETURNING ` + cartColumns
	return r.queryLines(ctx, tx, "purge cart lines", query, eventID)
}

// HeldQuantity sums the quantity held in carts for an event
func (r *CartRepository) HeldQuantity(ctx context.Context, eventID int, tx *sql.Tx) (int, error) {
	var held int
	err := cmd(r.db, tx).QueryRowContext(ctx,
		`SELECT COALESCE(SUM(quantity), 0) FROM cart WHERE event_id = $1`, eventID).Scan(&held)
	if err != nil {
		return 0, models.NewStorageError("sum cart holds", err)
	}
	return held, nil
}

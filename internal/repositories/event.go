package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"eventbooking/internal/models"
)

// EventRepository is the durable inventory store. Every change to the sold
// count is a single conditional statement so concurrent callers can never
// both pass an availability check against a stale count.
type EventRepository struct {
	db *sql.DB
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{db: db}
}

const eventColumns = `id, name, venue, day, price, soldTickets, totalTickets, enabled`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(row rowScanner) (*models.Event, error) {
	event := &models.Event{}
	err := row.Scan(
		&event.ID,
		&event.Name,
		&event.Venue,
		(*string)(&event.Day),
		&event.Price,
		&event.SoldTickets,
		&event.TotalTickets,
		&event.Enabled,
	)
	if err != nil {
		return nil, err
	}
	return event, nil
}

// Create inserts a new enabled event with no tickets sold
func (r *EventRepository) Create(ctx context.Context, req *models.EventCreateRequest, tx *sql.Tx) (*models.Event, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	query := `
		INSERT INTO events (name, venue, day, price, soldTickets, totalTickets, enabled)
		VALUES ($1, $2, $3, $4, 0, $5, $6)
		RETURNING ` + eventColumns

	event, err := scanEvent(cmd(r.db, tx).QueryRowContext(ctx, query,
		req.Name, req.Venue, req.Day, req.Price, req.TotalTickets, true))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s at %s on %s", models.ErrDuplicateEvent, req.Name, req.Venue, req.Day)
		}
		return nil, models.NewStorageError("create event", err)
	}

	return event, nil
}

// GetByID retrieves an event by ID
func (r *EventRepository) GetByID(ctx context.Context, id int, tx *sql.Tx) (*models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`

	event, err := scanEvent(cmd(r.db, tx).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %d", models.ErrEventNotFound, id)
		}
		return nil, models.NewStorageError("get event", err)
	}

	return event, nil
}

// List retrieves events ordered by name, venue and day
func (r *EventRepository) List(ctx context.Context, enabledOnly bool) ([]*models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events`
	var args []interface{}
	if enabledOnly {
		query += ` WHERE enabled = $1`
		args = append(args, true)
	}
	query += ` ORDER BY name ASC, venue ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, models.NewStorageError("list events", err)
	}
	defer rows.Close()

	events := make([]*models.Event, 0)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, models.NewStorageError("scan event", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, models.NewStorageError("iterate events", err)
	}

	return events, nil
}

// Update rewrites the editable fields of an event. The capacity check runs
// in the same statement so a concurrent reservation cannot slip under it.
func (r *EventRepository) Update(ctx context.Context, id int, req *models.EventUpdateRequest, tx *sql.Tx) (*models.Event, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	query := `
		UPDATE events
		SET name = $1, venue = $2, day = $3, price = $4, totalTickets = $5
		WHERE id = $6 AND soldTickets <= $5
		RETURNING ` + eventColumns

	c := cmd(r.db, tx)
	event, err := scanEvent(c.QueryRowContext(ctx, query,
		req.Name, req.Venue, req.Day, req.Price, req.TotalTickets, id))
	if err == nil {
		return event, nil
	}
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%w: %s at %s on %s", models.ErrDuplicateEvent, req.Name, req.Venue, req.Day)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, models.NewStorageError("update event", err)
	}

	existing, err := r.GetByID(ctx, id, tx)
	if err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w (%d)", models.ErrCapacityBelowSold, existing.SoldTickets)
}

// Delete removes an event row. Orders keep their own snapshot and are untouched.
func (r *EventRepository) Delete(ctx context.Context, id int, tx *sql.Tx) error {
	result, err := cmd(r.db, tx).ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return models.NewStorageError("delete event", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return models.NewStorageError("delete event", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%w: id %d", models.ErrEventNotFound, id)
	}

	return nil
}

// Lock takes the event's row lock inside tx. Paths that touch both an event
// and its cart lines lock the event row first.
func (r *EventRepository) Lock(ctx context.Context, id int, tx *sql.Tx) error {
	if tx == nil {
		return errors.New("event lock requires a transaction")
	}

	result, err := tx.ExecContext(ctx, `UPDATE events SET soldTickets = soldTickets WHERE id = $1`, id)
	if err != nil {
		return models.NewStorageError("lock event", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return models.NewStorageError("lock event", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: id %d", models.ErrEventNotFound, id)
	}

	return nil
}

// SetEnabled flips the enabled flag and returns the previous value
func (r *EventRepository) SetEnabled(ctx context.Context, id int, enabled bool, tx *sql.Tx) (bool, error) {
	existing, err := r.GetByID(ctx, id, tx)
	if err != nil {
		return false, err
	}

	_, err = cmd(r.db, tx).ExecContext(ctx, `UPDATE events SET enabled = $1 WHERE id = $2`, enabled, id)
	if err != nil {
		return existing.Enabled, models.NewStorageError("set event enabled", err)
	}

	return existing.Enabled, nil
}

// AdjustSold atomically adds delta to the sold count. Positive deltas
// require an enabled event with enough capacity left; negative deltas
// release holds and may never take the count below zero.
func (r *EventRepository) AdjustSold(ctx context.Context, id int, delta int, tx *sql.Tx) error {
	if delta == 0 {
		return nil
	}

	query := `
		UPDATE events
		SET soldTickets = soldTickets + $1
		WHERE id = $2
		  AND soldTickets + $1 >= 0
		  AND soldTickets + $1 <= totalTickets
		  AND ($1 < 0 OR enabled = $3)`

	c := cmd(r.db, tx)
	result, err := c.ExecContext(ctx, query, delta, id, true)
	if err != nil {
		return models.NewStorageError("adjust sold tickets", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return models.NewStorageError("adjust sold tickets", err)
	}
	if rowsAffected == 1 {
		return nil
	}

	event, err := r.GetByID(ctx, id, tx)
	if err != nil {
		return err
	}
	switch {
	case delta < 0:
		return fmt.Errorf("%w: releasing %d of %d sold for event %d",
			models.ErrInventoryUnderflow, -delta, event.SoldTickets, id)
	case !event.Enabled:
		return fmt.Errorf("%w: %s", models.ErrEventDisabled, event.Name)
	default:
		return fmt.Errorf("%w (requested: %d, available: %d)",
			models.ErrInsufficientInventory, delta, event.Available())
	}
}

package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"eventbooking/internal/database"
	"eventbooking/internal/models"
	"eventbooking/internal/repositories"

	"github.com/shopspring/decimal"
)

// CartStore tracks every user's in-progress selections. The durable cart
// table is authoritative; each user's lines are cached after the first read.
//
// Edits to one user's cart are mutually exclusive. Edits to different users'
// carts only share the map lookup and never wait on each other.
type CartStore struct {
	db     *database.DB
	carts  *repositories.CartRepository
	events *repositories.EventRepository
	logger *slog.Logger

	mu    sync.Mutex
	users map[string]*userCart
}

type userCart struct {
	mu     sync.Mutex
	loaded bool
	lines  []*models.CartLine
}

// PurgeResult describes the holds removed for one event
type PurgeResult struct {
	EventID  int      `json:"event_id"`
	Lines    int      `json:"lines"`
	Released int      `json:"released"`
	Users    []string `json:"users"`
}

// NewCartStore creates a cart store backed by db
func NewCartStore(db *database.DB, carts *repositories.CartRepository, events *repositories.EventRepository, logger *slog.Logger) *CartStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &CartStore{
		db:     db,
		carts:  carts,
		events: events,
		logger: logger.With("component", "cart"),
		users:  make(map[string]*userCart),
	}
}

func (s *CartStore) entry(username string) *userCart {
	s.mu.Lock()
	defer s.mu.Unlock()

	uc, ok := s.users[username]
	if !ok {
		uc = &userCart{}
		s.users[username] = uc
	}
	return uc
}

// withUser runs fn holding the user's lock with the cache loaded. A storage
// failure drops the cached copy so the next access reloads it.
func (s *CartStore) withUser(ctx context.Context, username string, fn func(uc *userCart) error) error {
	uc := s.entry(username)
	uc.mu.Lock()
	defer uc.mu.Unlock()

	if !uc.loaded {
		if err := s.load(ctx, username, uc); err != nil {
			return err
		}
	}

	err := fn(uc)
	if errors.Is(err, models.ErrStorage) {
		uc.invalidate()
	}
	return err
}

// load replaces the cached lines with the durable ones. The caller holds uc.mu.
func (s *CartStore) load(ctx context.Context, username string, uc *userCart) error {
	lines, err := s.carts.ListByUser(ctx, username, nil)
	if err != nil {
		uc.invalidate()
		return err
	}
	uc.lines = lines
	uc.loaded = true
	s.logger.Debug("cart loaded", "username", username, "lines", len(lines))
	return nil
}

func (uc *userCart) invalidate() {
	uc.loaded = false
	uc.lines = nil
}

func (uc *userCart) find(eventID int) (int, *models.CartLine) {
	for i, line := range uc.lines {
		if line.EventID == eventID {
			return i, line
		}
	}
	return -1, nil
}

func (uc *userCart) put(line *models.CartLine) {
	if i, _ := uc.find(line.EventID); i >= 0 {
		uc.lines[i] = line
		return
	}
	uc.lines = append(uc.lines, line)
}

func (uc *userCart) remove(eventID int) {
	if i, _ := uc.find(eventID); i >= 0 {
		uc.lines = append(uc.lines[:i], uc.lines[i+1:]...)
	}
}

func (uc *userCart) snapshot() []*models.CartLine {
	lines := make([]*models.CartLine, len(uc.lines))
	for i, line := range uc.lines {
		copied := *line
		lines[i] = &copied
	}
	return lines
}

// GetCartItems returns a copy of the user's lines. A user without a cart
// gets an empty slice.
func (s *CartStore) GetCartItems(ctx context.Context, username string) ([]*models.CartLine, error) {
	var lines []*models.CartLine
	err := s.withUser(ctx, username, func(uc *userCart) error {
		lines = uc.snapshot()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return lines, nil
}

// GetCart returns the user's cart
func (s *CartStore) GetCart(ctx context.Context, username string) (*models.Cart, error) {
	lines, err := s.GetCartItems(ctx, username)
	if err != nil {
		return nil, err
	}
	return &models.Cart{Username: username, Lines: lines}, nil
}

// GetTotalAmount sums quantity times snapshot price over the user's lines
func (s *CartStore) GetTotalAmount(ctx context.Context, username string) (decimal.Decimal, error) {
	cart, err := s.GetCart(ctx, username)
	if err != nil {
		return decimal.Zero, err
	}
	return cart.Total(), nil
}

// AddToCart adds quantity tickets of event to the user's cart, merging with
// an existing line for the same event. It does not touch the sold count.
func (s *CartStore) AddToCart(ctx context.Context, username string, event *models.Event, quantity int) (*models.CartLine, error) {
	return s.AddToCartWith(ctx, username, quantity, func(tx *sql.Tx) (*models.Event, error) {
		return event, nil
	})
}

// AddToCartWith runs prepare and the cart write in one transaction while
// holding the user's lock. prepare returns the event to snapshot; an error
// from it aborts the whole add.
func (s *CartStore) AddToCartWith(ctx context.Context, username string, quantity int, prepare func(tx *sql.Tx) (*models.Event, error)) (*models.CartLine, error) {
	if quantity <= 0 {
		return nil, models.NewValidationError("quantity", "quantity must be positive")
	}

	var stored *models.CartLine
	err := s.withUser(ctx, username, func(uc *userCart) error {
		err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
			event, err := prepare(tx)
			if err != nil {
				return err
			}

			stored, err = s.carts.Add(ctx, models.NewCartLine(username, event, quantity), tx)
			return err
		})
		if err != nil {
			return err
		}

		uc.put(stored)
		return nil
	})
	if err != nil {
		return nil, err
	}

	copied := *stored
	s.logger.Info("cart line added", "username", username, "event_id", stored.EventID, "quantity", quantity, "line_quantity", stored.Quantity)
	return &copied, nil
}

// UpdateQuantity sets a line's quantity and moves the sold count by the
// difference in the same transaction.
func (s *CartStore) UpdateQuantity(ctx context.Context, username string, eventID, newQuantity int) (*models.CartLine, error) {
	if newQuantity <= 0 {
		return nil, models.NewValidationError("quantity", "quantity must be greater than 0")
	}

	var updated *models.CartLine
	err := s.withUser(ctx, username, func(uc *userCart) error {
		_, line := uc.find(eventID)
		if line == nil {
			return fmt.Errorf("%w: event %d", models.ErrCartLineNotFound, eventID)
		}

		delta := newQuantity - line.Quantity
		err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
			if err := s.events.AdjustSold(ctx, eventID, delta, tx); err != nil {
				return err
			}
			return s.carts.UpdateQuantity(ctx, username, eventID, newQuantity, tx)
		})
		if errors.Is(err, models.ErrCartLineNotFound) {
			// the durable table no longer has this line
			if reloadErr := s.load(ctx, username, uc); reloadErr != nil {
				s.logger.Warn("cart reload failed", "username", username, "error", reloadErr)
			}
		}
		if err != nil {
			return err
		}

		line.Quantity = newQuantity
		copied := *line
		updated = &copied
		s.logger.Info("cart line updated", "username", username, "event_id", eventID, "delta", delta, "quantity", newQuantity)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// RemoveLine deletes a line and releases its tickets. Removing a line that
// does not exist is a no-op.
func (s *CartStore) RemoveLine(ctx context.Context, username string, eventID int) error {
	return s.withUser(ctx, username, func(uc *userCart) error {
		_, line := uc.find(eventID)
		if line == nil {
			return nil
		}

		var deleted *models.CartLine
		err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
			var err error
			deleted, err = s.carts.Delete(ctx, username, eventID, tx)
			if err != nil || deleted == nil {
				return err
			}
			return s.release(ctx, tx, eventID, deleted.Quantity)
		})
		if err != nil {
			return err
		}

		uc.remove(eventID)
		if deleted != nil {
			s.logger.Info("cart line removed", "username", username, "event_id", eventID, "released", deleted.Quantity)
		}
		return nil
	})
}

// Clear deletes every line of the user's cart and gives the held tickets back
func (s *CartStore) Clear(ctx context.Context, username string) error {
	_, err := s.Release(ctx, username)
	return err
}

// Release empties the user's cart and gives every held ticket back
func (s *CartStore) Release(ctx context.Context, username string) (int, error) {
	released := 0
	err := s.withUser(ctx, username, func(uc *userCart) error {
		err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
			released = 0
			lines, err := s.carts.DeleteByUser(ctx, username, tx)
			if err != nil {
				return err
			}
			for _, line := range lines {
				if err := s.release(ctx, tx, line.EventID, line.Quantity); err != nil {
					return err
				}
				released += line.Quantity
			}
			return nil
		})
		if err != nil {
			return err
		}
		uc.lines = nil
		return nil
	})
	if err != nil {
		return 0, err
	}
	if released > 0 {
		s.logger.Info("cart released", "username", username, "released", released)
	}
	return released, nil
}

// Drain hands the user's durable lines to commit inside one transaction,
// then deletes them in the same transaction. The cache is emptied only
// after a successful commit. An empty cart returns ErrEmptyCart and commit
// is not called.
func (s *CartStore) Drain(ctx context.Context, username string, commit func(tx *sql.Tx, lines []*models.CartLine) error) error {
	return s.withUser(ctx, username, func(uc *userCart) error {
		err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
			lines, err := s.carts.ListByUser(ctx, username, tx)
			if err != nil {
				return err
			}
			if len(lines) == 0 {
				return models.ErrEmptyCart
			}
			if err := commit(tx, lines); err != nil {
				return err
			}
			_, err = s.carts.DeleteByUser(ctx, username, tx)
			return err
		})
		if errors.Is(err, models.ErrEmptyCart) {
			uc.lines = nil
		}
		if err != nil {
			return err
		}
		uc.lines = nil
		return nil
	})
}

// PurgeForDisabledEvent removes the event from every cart and releases
// exactly the removed quantities. Calling it again finds nothing to purge.
func (s *CartStore) PurgeForDisabledEvent(ctx context.Context, eventID int) (*PurgeResult, error) {
	var result *PurgeResult
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		result, err = s.PurgeTx(ctx, tx, eventID, true)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.EvictEvent(eventID)
	return result, nil
}

// PurgeTx deletes every cart line for eventID within tx, releasing the held
// quantity when release is set. The event row is locked before any cart row.
// Callers must call EvictEvent after tx commits.
func (s *CartStore) PurgeTx(ctx context.Context, tx *sql.Tx, eventID int, release bool) (*PurgeResult, error) {
	if err := s.events.Lock(ctx, eventID, tx); err != nil {
		return nil, err
	}

	lines, err := s.carts.DeleteByEvent(ctx, eventID, tx)
	if err != nil {
		return nil, err
	}

	result := &PurgeResult{EventID: eventID, Lines: len(lines), Users: make([]string, 0, len(lines))}
	for _, line := range lines {
		result.Released += line.Quantity
		result.Users = append(result.Users, line.Username)
	}

	if release && result.Released > 0 {
		if err := s.events.AdjustSold(ctx, eventID, -result.Released, tx); err != nil {
			return nil, err
		}
	}

	if result.Lines > 0 {
		s.logger.Info("event purged from carts", "event_id", eventID, "lines", result.Lines, "released", result.Released, "release", release)
	}
	return result, nil
}

// EvictEvent drops cached lines for eventID from every loaded cart. Each
// user's lock is taken on its own so no two carts are ever locked together.
func (s *CartStore) EvictEvent(eventID int) {
	s.mu.Lock()
	entries := make([]*userCart, 0, len(s.users))
	for _, uc := range s.users {
		entries = append(entries, uc)
	}
	s.mu.Unlock()

	for _, uc := range entries {
		uc.mu.Lock()
		uc.remove(eventID)
		uc.mu.Unlock()
	}
}

// Reload discards the cached copy of the user's cart and reads the durable
// lines again
func (s *CartStore) Reload(ctx context.Context, username string) ([]*models.CartLine, error) {
	uc := s.entry(username)
	uc.mu.Lock()
	defer uc.mu.Unlock()

	if err := s.load(ctx, username, uc); err != nil {
		return nil, err
	}
	return uc.snapshot(), nil
}

// release gives quantity tickets back. An event that no longer exists has
// nothing left to release against.
func (s *CartStore) release(ctx context.Context, tx *sql.Tx, eventID, quantity int) error {
	err := s.events.AdjustSold(ctx, eventID, -quantity, tx)
	if errors.Is(err, models.ErrEventNotFound) {
		s.logger.Warn("released hold for missing event", "event_id", eventID, "quantity", quantity)
		return nil
	}
	return err
}

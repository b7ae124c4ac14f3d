package services

import (
	"context"
	"database/sql"
	"log/slog"

	"eventbooking/internal/database"
	"eventbooking/internal/models"
	"eventbooking/internal/repositories"
)

// AdminService manages event inventory on behalf of the administrator
type AdminService struct {
	db     *database.DB
	events *repositories.EventRepository
	orders *repositories.OrderRepository
	cartDB *repositories.CartRepository
	carts  *CartStore
	logger *slog.Logger
}

// InventoryLine reconciles an event's sold count against holds and orders
type InventoryLine struct {
	EventID    int        `json:"event_id"`
	Name       string     `json:"name"`
	Venue      string     `json:"venue"`
	Day        models.Day `json:"day"`
	Enabled    bool       `json:"enabled"`
	Total      int        `json:"total_tickets"`
	Sold       int        `json:"sold_tickets"`
	Held       int        `json:"held"`
	Ordered    int        `json:"ordered"`
	Consistent bool       `json:"consistent"`
}

// NewAdminService creates a new admin inventory manager
func NewAdminService(db *database.DB, events *repositories.EventRepository, orders *repositories.OrderRepository, cartDB *repositories.CartRepository, carts *CartStore, logger *slog.Logger) *AdminService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminService{
		db:     db,
		events: events,
		orders: orders,
		cartDB: cartDB,
		carts:  carts,
		logger: logger.With("component", "admin"),
	}
}

// AddEvent creates a new enabled event with no tickets sold
func (s *AdminService) AddEvent(ctx context.Context, req *models.EventCreateRequest) (*models.Event, error) {
	event, err := s.events.Create(ctx, req, nil)
	if err != nil {
		return nil, err
	}
	s.logger.Info("event added", "event_id", event.ID, "name", event.Name, "venue", event.Venue, "day", event.Day)
	return event, nil
}

// UpdateEvent rewrites an event's details. The sold count is kept and the
// new capacity may not fall below it.
func (s *AdminService) UpdateEvent(ctx context.Context, id int, req *models.EventUpdateRequest) (*models.Event, error) {
	event, err := s.events.Update(ctx, id, req, nil)
	if err != nil {
		return nil, err
	}
	s.logger.Info("event updated", "event_id", id, "total_tickets", event.TotalTickets, "price", event.Price.String())
	return event, nil
}

// GetEvent returns a single event
func (s *AdminService) GetEvent(ctx context.Context, id int) (*models.Event, error) {
	return s.events.GetByID(ctx, id, nil)
}

// DeleteEvent removes an event and every cart line that points at it.
// Existing orders keep their own copy of the event.
func (s *AdminService) DeleteEvent(ctx context.Context, id int) error {
	var purged *PurgeResult
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.events.GetByID(ctx, id, tx); err != nil {
			return err
		}
		var err error
		purged, err = s.carts.PurgeTx(ctx, tx, id, false)
		if err != nil {
			return err
		}
		return s.events.Delete(ctx, id, tx)
	})
	if err != nil {
		return err
	}

	s.carts.EvictEvent(id)
	s.logger.Info("event deleted", "event_id", id, "purged_lines", purged.Lines)
	return nil
}

// SetEnabled enables or disables an event. Disabling purges the event from
// every cart and releases the held tickets in the same transaction.
func (s *AdminService) SetEnabled(ctx context.Context, id int, enabled bool) (*PurgeResult, error) {
	purged := &PurgeResult{EventID: id, Users: []string{}}
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		previous, err := s.events.SetEnabled(ctx, id, enabled, tx)
		if err != nil {
			return err
		}
		if previous && !enabled {
			purged, err = s.carts.PurgeTx(ctx, tx, id, true)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !enabled {
		s.carts.EvictEvent(id)
	}
	s.logger.Info("event enabled flag set", "event_id", id, "enabled", enabled, "purged_lines", purged.Lines, "released", purged.Released)
	return purged, nil
}

// ListEvents returns every event, enabled or not
func (s *AdminService) ListEvents(ctx context.Context) ([]*models.Event, error) {
	return s.events.List(ctx, false)
}

// GroupedEvents returns every event grouped under its name, in name order
func (s *AdminService) GroupedEvents(ctx context.Context) ([]*models.EventGroup, error) {
	events, err := s.events.List(ctx, false)
	if err != nil {
		return nil, err
	}

	groups := make([]*models.EventGroup, 0)
	byName := make(map[string]*models.EventGroup)
	for _, event := range events {
		group, ok := byName[event.Name]
		if !ok {
			group = &models.EventGroup{Name: event.Name}
			byName[event.Name] = group
			groups = append(groups, group)
		}
		group.Events = append(group.Events, event)
	}
	return groups, nil
}

// ListOrders returns every order, newest first
func (s *AdminService) ListOrders(ctx context.Context) ([]*models.Order, error) {
	return s.orders.List(ctx)
}

// InventoryReport reconciles each event's sold count with the tickets held
// in carts plus the tickets already ordered. Sold counts loaded by the seed
// have no orders behind them and show up as inconsistent.
//
// Orders carry a copy of the event's name, venue and day, not its id, so
// they are matched on the event's current values. Orders placed before an
// event was renamed or moved no longer count towards it and the event is
// reported as inconsistent.
func (s *AdminService) InventoryReport(ctx context.Context) ([]*InventoryLine, error) {
	events, err := s.events.List(ctx, false)
	if err != nil {
		return nil, err
	}

	report := make([]*InventoryLine, 0, len(events))
	for _, event := range events {
		held, err := s.cartDB.HeldQuantity(ctx, event.ID, nil)
		if err != nil {
			return nil, err
		}
		ordered, err := s.orders.OrderedQuantity(ctx, event.Name, event.Venue, event.Day)
		if err != nil {
			return nil, err
		}
		report = append(report, &InventoryLine{
			EventID:    event.ID,
			Name:       event.Name,
			Venue:      event.Venue,
			Day:        event.Day,
			Enabled:    event.Enabled,
			Total:      event.TotalTickets,
			Sold:       event.SoldTickets,
			Held:       held,
			Ordered:    ordered,
			Consistent: event.SoldTickets == held+ordered,
		})
	}
	return report, nil
}

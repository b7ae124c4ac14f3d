package services

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"eventbooking/internal/models"
	"eventbooking/internal/repositories"
)

// TicketService is the entry point for putting tickets on hold
type TicketService struct {
	events *repositories.EventRepository
	carts  *CartStore
	logger *slog.Logger
	now    func() time.Time
}

// NewTicketService creates a new ticket selection service
func NewTicketService(events *repositories.EventRepository, carts *CartStore, logger *slog.Logger) *TicketService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TicketService{
		events: events,
		carts:  carts,
		logger: logger.With("component", "tickets"),
		now:    time.Now,
	}
}

// WithClock replaces the clock used for the booking window
func (s *TicketService) WithClock(now func() time.Time) *TicketService {
	s.now = now
	return s
}

// ListAvailableEvents returns the enabled events
func (s *TicketService) ListAvailableEvents(ctx context.Context) ([]*models.Event, error) {
	return s.events.List(ctx, true)
}

// Reserve holds quantity tickets of an event in the user's cart. The sold
// count and the cart line change in one transaction; a rejected request
// changes neither.
func (s *TicketService) Reserve(ctx context.Context, username string, eventID, quantity int) (*models.CartLine, error) {
	if quantity <= 0 {
		return nil, models.NewValidationError("quantity", "quantity must be greater than 0")
	}

	event, err := s.events.GetByID(ctx, eventID, nil)
	if err != nil {
		return nil, err
	}
	if err := s.checkBookable(event, quantity); err != nil {
		s.logger.Info("reservation rejected", "username", username, "event_id", eventID, "quantity", quantity, "error", err)
		return nil, err
	}

	line, err := s.carts.AddToCartWith(ctx, username, quantity, func(tx *sql.Tx) (*models.Event, error) {
		if err := s.events.AdjustSold(ctx, eventID, quantity, tx); err != nil {
			return nil, err
		}
		return s.events.GetByID(ctx, eventID, tx)
	})
	if err != nil {
		s.logger.Info("reservation rejected", "username", username, "event_id", eventID, "quantity", quantity, "error", err)
		return nil, err
	}

	s.logger.Info("tickets reserved", "username", username, "event_id", eventID, "quantity", quantity)
	return line, nil
}

// checkBookable reports the first reason the event cannot take quantity
// more holds right now. The conditional increment rechecks capacity.
func (s *TicketService) checkBookable(event *models.Event, quantity int) error {
	if !event.Enabled {
		return fmt.Errorf("%w: %s", models.ErrEventDisabled, event.Name)
	}
	if quantity > event.Available() {
		return fmt.Errorf("%w (requested: %d, available: %d)", models.ErrInsufficientInventory, quantity, event.Available())
	}
	if !event.BookingOpen(s.now()) {
		return fmt.Errorf("%w: %s is on %s", models.ErrBookingWindowClosed, event.Name, event.Day)
	}
	return nil
}

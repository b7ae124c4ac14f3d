package services

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"eventbooking/internal/models"
	"eventbooking/internal/repositories"

	"github.com/shopspring/decimal"
)

// CheckoutResult reports how far a checkout got and what it wrote
type CheckoutResult struct {
	State  models.CheckoutState `json:"state"`
	Orders []*models.Order      `json:"orders"`
	Total  decimal.Decimal      `json:"total"`
}

// CheckoutService converts a user's cart into orders
type CheckoutService struct {
	carts  *CartStore
	orders *repositories.OrderRepository
	logger *slog.Logger
	now    func() time.Time
}

// NewCheckoutService creates a new checkout orchestrator
func NewCheckoutService(carts *CartStore, orders *repositories.OrderRepository, logger *slog.Logger) *CheckoutService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CheckoutService{
		carts:  carts,
		orders: orders,
		logger: logger.With("component", "checkout"),
		now:    time.Now,
	}
}

// WithClock replaces the clock used to timestamp orders
func (s *CheckoutService) WithClock(now func() time.Time) *CheckoutService {
	s.now = now
	return s
}

// Checkout writes one order per cart line and empties the cart, all in a
// single transaction. The sold counts are left alone: the held tickets
// simply become ordered tickets. On failure nothing is written and the
// cart keeps its lines. The result is never nil.
func (s *CheckoutService) Checkout(ctx context.Context, username string) (*CheckoutResult, error) {
	result := &CheckoutResult{State: models.CheckoutIdle, Total: decimal.Zero}
	s.transition(result, username, models.CheckoutValidating)

	var orders []*models.Order
	err := s.carts.Drain(ctx, username, func(tx *sql.Tx, lines []*models.CartLine) error {
		s.transition(result, username, models.CheckoutCommitting)

		if err := s.orders.LockSequence(ctx, tx); err != nil {
			return err
		}
		max, err := s.orders.MaxOrderNumber(ctx, tx)
		if err != nil {
			return err
		}

		at := s.now().Truncate(time.Second)
		orders = make([]*models.Order, 0, len(lines))
		for _, line := range lines {
			order := models.NewOrderFromLine(models.NextOrderNumber(max), line, at)
			max++
			if err := s.orders.Create(ctx, order, tx); err != nil {
				return err
			}
			orders = append(orders, order)
		}
		return nil
	})
	if err != nil {
		s.transition(result, username, models.CheckoutFailed)
		if errors.Is(err, models.ErrEmptyCart) {
			s.logger.Info("checkout of empty cart", "username", username)
		} else {
			s.logger.Error("checkout failed", "username", username, "error", err)
		}
		return result, err
	}

	result.Orders = orders
	for _, order := range orders {
		result.Total = result.Total.Add(order.TotalPrice)
	}
	s.transition(result, username, models.CheckoutDone)
	s.logger.Info("checkout complete", "username", username, "orders", len(orders), "total", result.Total.StringFixed(2))
	return result, nil
}

func (s *CheckoutService) transition(result *CheckoutResult, username string, to models.CheckoutState) {
	s.logger.Debug("checkout state", "username", username, "from", result.State, "to", to)
	result.State = to
}

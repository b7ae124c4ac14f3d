package services

import (
	"context"
	"fmt"

	"eventbooking/internal/models"
	"eventbooking/internal/repositories"
)

// OrderService reads the order ledger
type OrderService struct {
	orders *repositories.OrderRepository
}

// NewOrderService creates a new order service
func NewOrderService(orders *repositories.OrderRepository) *OrderService {
	return &OrderService{orders: orders}
}

// UserOrders returns a user's orders, newest first
func (s *OrderService) UserOrders(ctx context.Context, username string) ([]*models.Order, error) {
	return s.orders.GetByUser(ctx, username)
}

// GetOrder returns an order visible to the requesting user. Admins see
// every order; anyone else only sees their own.
func (s *OrderService) GetOrder(ctx context.Context, orderNumber string, requester *models.User) (*models.Order, error) {
	if _, err := models.ParseOrderNumber(orderNumber); err != nil {
		return nil, err
	}

	order, err := s.orders.GetByOrderNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}

	if requester == nil || (!requester.IsAdmin && order.Username != requester.Username) {
		return nil, fmt.Errorf("%w: %s", models.ErrOrderNotFound, orderNumber)
	}
	return order, nil
}

// AllOrders returns every order, newest first
func (s *OrderService) AllOrders(ctx context.Context) ([]*models.Order, error) {
	return s.orders.List(ctx)
}

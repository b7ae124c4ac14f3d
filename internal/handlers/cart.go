package handlers

import (
	"log/slog"
	"net/http"

	"eventbooking/internal/models"
	"eventbooking/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// CartHandler handles browsing, the cart, checkout and order history
type CartHandler struct {
	tickets  *services.TicketService
	carts    *services.CartStore
	checkout *services.CheckoutService
	orders   *services.OrderService
	logger   *slog.Logger
}

// NewCartHandler creates a new cart handler
func NewCartHandler(
	tickets *services.TicketService,
	carts *services.CartStore,
	checkout *services.CheckoutService,
	orders *services.OrderService,
	logger *slog.Logger,
) *CartHandler {
	return &CartHandler{
		tickets:  tickets,
		carts:    carts,
		checkout: checkout,
		orders:   orders,
		logger:   logger,
	}
}

type addItemRequest struct {
	EventID  int `json:"event_id"`
	Quantity int `json:"quantity"`
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

type cartResponse struct {
	Username string             `json:"username"`
	Lines    []*models.CartLine `json:"lines"`
	Tickets  int                `json:"tickets"`
	Total    decimal.Decimal    `json:"total"`
}

// ListEvents returns the events open for booking
func (h *CartHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.tickets.ListAvailableEvents(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// ViewCart returns the signed-in user's cart. With ?refresh=true the cached
// lines are dropped and read again from the database.
func (h *CartHandler) ViewCart(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("refresh") == "true" {
		if _, err := h.carts.Reload(r.Context(), currentUser(r).Username); err != nil {
			writeError(w, r, h.logger, err)
			return
		}
	}
	h.writeCart(w, r, http.StatusOK)
}

// AddItem reserves tickets into the cart
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	line, err := h.tickets.Reserve(r.Context(), currentUser(r).Username, req.EventID, req.Quantity)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, line)
}

// UpdateItem changes the quantity of a cart line
func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	eventID, err := pathInt(r, "eventID")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req quantityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	line, err := h.carts.UpdateQuantity(r.Context(), currentUser(r).Username, eventID, req.Quantity)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, line)
}

// RemoveItem drops a cart line and releases its tickets
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	eventID, err := pathInt(r, "eventID")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if err := h.carts.RemoveLine(r.Context(), currentUser(r).Username, eventID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// EmptyCart releases every held ticket and empties the cart
func (h *CartHandler) EmptyCart(w http.ResponseWriter, r *http.Request) {
	released, err := h.carts.Release(r.Context(), currentUser(r).Username)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"released": released})
}

// Checkout turns the cart into orders
func (h *CartHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	result, err := h.checkout.Checkout(r.Context(), currentUser(r).Username)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// ListOrders returns the signed-in user's orders
func (h *CartHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.UserOrders(r.Context(), currentUser(r).Username)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

// GetOrder returns one of the signed-in user's orders
func (h *CartHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.GetOrder(r.Context(), chi.URLParam(r, "orderNumber"), currentUser(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *CartHandler) writeCart(w http.ResponseWriter, r *http.Request, status int) {
	cart, err := h.carts.GetCart(r.Context(), currentUser(r).Username)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, status, cartResponse{Username: cart.Username, Lines: cart.Lines, Tickets: cart.Quantity(), Total: cart.Total()})
}

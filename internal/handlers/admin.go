package handlers

import (
	"log/slog"
	"net/http"

	"eventbooking/internal/models"
	"eventbooking/internal/services"
)

// AdminHandler handles event inventory management
type AdminHandler struct {
	admin  *services.AdminService
	logger *slog.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(admin *services.AdminService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{admin: admin, logger: logger}
}

// ListEvents returns every event, including disabled ones
func (h *AdminHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.admin.ListEvents(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// GroupedEvents returns every event grouped by name
func (h *AdminHandler) GroupedEvents(w http.ResponseWriter, r *http.Request) {
	groups, err := h.admin.GroupedEvents(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

// GetEvent returns a single event
func (h *AdminHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	event, err := h.admin.GetEvent(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// CreateEvent adds a new event
func (h *AdminHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req models.EventCreateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	event, err := h.admin.AddEvent(r.Context(), &req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

// UpdateEvent rewrites an event's details
func (h *AdminHandler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req models.EventUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	event, err := h.admin.UpdateEvent(r.Context(), id, &req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// DeleteEvent removes an event
func (h *AdminHandler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if err := h.admin.DeleteEvent(r.Context(), id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// EnableEvent opens an event for booking
func (h *AdminHandler) EnableEvent(w http.ResponseWriter, r *http.Request) {
	h.setEnabled(w, r, true)
}

// DisableEvent closes an event and purges it from every cart
func (h *AdminHandler) DisableEvent(w http.ResponseWriter, r *http.Request) {
	h.setEnabled(w, r, false)
}

func (h *AdminHandler) setEnabled(w http.ResponseWriter, r *http.Request, enabled bool) {
	id, err := pathInt(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	purged, err := h.admin.SetEnabled(r.Context(), id, enabled)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, purged)
}

// ListOrders returns every order
func (h *AdminHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.admin.ListOrders(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

// Inventory returns the sold, held and ordered reconciliation per event
func (h *AdminHandler) Inventory(w http.ResponseWriter, r *http.Request) {
	report, err := h.admin.InventoryReport(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

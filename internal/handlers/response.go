package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"eventbooking/internal/middleware"
	"eventbooking/internal/models"

	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 1 << 20

type errorMapping struct {
	target error
	status int
	code   string
}

// checked in order; the first match wins
var errorMappings = []errorMapping{
	{models.ErrValidation, http.StatusBadRequest, "validation_error"},
	{models.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
	{models.ErrEventNotFound, http.StatusNotFound, "event_not_found"},
	{models.ErrCartLineNotFound, http.StatusNotFound, "cart_line_not_found"},
	{models.ErrOrderNotFound, http.StatusNotFound, "order_not_found"},
	{models.ErrUserNotFound, http.StatusNotFound, "user_not_found"},
	{models.ErrDuplicateEvent, http.StatusConflict, "duplicate_event"},
	{models.ErrDuplicateUser, http.StatusConflict, "duplicate_user"},
	{models.ErrCapacityBelowSold, http.StatusConflict, "capacity_below_sold"},
	{models.ErrInsufficientInventory, http.StatusConflict, "insufficient_inventory"},
	{models.ErrInventoryUnderflow, http.StatusConflict, "inventory_underflow"},
	{models.ErrBookingWindowClosed, http.StatusConflict, "booking_window_closed"},
	{models.ErrEventDisabled, http.StatusConflict, "event_disabled"},
	{models.ErrEmptyCart, http.StatusConflict, "empty_cart"},
}

// StatusFor returns the HTTP status and error code for a service error
func StatusFor(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "internal_error"
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err onto a status. Storage and unexpected errors are
// logged and reported without their details.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status, code := StatusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed",
			"request_id", middleware.GetRequestID(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
		middleware.JSONError(w, status, code, "something went wrong, please try again")
		return
	}
	middleware.JSONError(w, status, code, err.Error())
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return models.NewValidationError("body", fmt.Sprintf("invalid JSON body: %v", err))
	}
	return nil
}

func pathInt(r *http.Request, name string) (int, error) {
	value, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || value <= 0 {
		return 0, models.NewValidationError(name, "must be a positive integer")
	}
	return value, nil
}

// currentUser returns the session user. Routes that call it sit behind
// RequireAuth.
func currentUser(r *http.Request) *models.User {
	return middleware.GetUserFromContext(r.Context())
}

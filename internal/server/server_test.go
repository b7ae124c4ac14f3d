package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"eventbooking/internal/database"
	"eventbooking/internal/middleware"
	"eventbooking/internal/models"
	"eventbooking/internal/services"
	"eventbooking/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	*httptest.Server
	app *App
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db := database.NewTestDB(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hasher := utils.NewHasher(utils.Argon2Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	app := NewApp(db, hasher, logger)
	app.Tickets.WithClock(func() time.Time { return time.Date(2026, 3, 2, 9, 0, 0, 0, time.Local) })

	sessions := middleware.NewSessionManager(middleware.SessionOptions{Name: "booking", Secret: "test-secret-0123456789abcdef", MaxAge: 3600})
	srv := httptest.NewServer(NewRouter(app, sessions))
	t.Cleanup(srv.Close)

	return &testServer{Server: srv, app: app}
}

// client returns a client with its own cookie jar
func (s *testServer) client(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func (s *testServer) do(t *testing.T, c *http.Client, method, path string, body interface{}, out interface{}) int {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, s.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (s *testServer) signup(t *testing.T, username string) *http.Client {
	t.Helper()
	c := s.client(t)
	status := s.do(t, c, http.MethodPost, "/signup", map[string]string{
		"username": username, "password": "secret", "preferred_name": username,
	}, nil)
	require.Equal(t, http.StatusCreated, status)
	return c
}

func (s *testServer) admin(t *testing.T) *http.Client {
	t.Helper()
	_, err := s.app.Auth.EnsureAdmin(context.Background(), "root", "admin-pass")
	require.NoError(t, err)

	c := s.client(t)
	status := s.do(t, c, http.MethodPost, "/login", map[string]string{"username": "root", "password": "admin-pass"}, nil)
	require.Equal(t, http.StatusOK, status)
	return c
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)

	var body map[string]string
	status := s.do(t, s.client(t), http.MethodGet, "/healthz", nil, &body)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)
	anonymous := s.client(t)

	assert.Equal(t, http.StatusUnauthorized, s.do(t, anonymous, http.MethodGet, "/cart", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, s.do(t, anonymous, http.MethodGet, "/admin/events", nil, nil))

	alice := s.signup(t, "alice")

	var account models.User
	require.Equal(t, http.StatusOK, s.do(t, alice, http.MethodGet, "/account", nil, &account))
	assert.Equal(t, "alice", account.Username)

	assert.Equal(t, http.StatusForbidden, s.do(t, alice, http.MethodGet, "/admin/events", nil, nil))

	dup := s.client(t)
	assert.Equal(t, http.StatusConflict, s.do(t, dup, http.MethodPost, "/signup", map[string]string{
		"username": "alice", "password": "secret", "preferred_name": "Alice",
	}, nil))

	assert.Equal(t, http.StatusUnauthorized, s.do(t, dup, http.MethodPost, "/login", map[string]string{
		"username": "alice", "password": "wrong",
	}, nil))

	assert.Equal(t, http.StatusBadRequest, s.do(t, dup, http.MethodPost, "/login", map[string]string{
		"username": "alice", "unknown": "field",
	}, nil))

	assert.Equal(t, http.StatusNoContent, s.do(t, alice, http.MethodPost, "/account/password", map[string]string{"password": "newsecret"}, nil))

	assert.Equal(t, http.StatusNoContent, s.do(t, alice, http.MethodPost, "/logout", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, s.do(t, alice, http.MethodGet, "/account", nil, nil))

	assert.Equal(t, http.StatusOK, s.do(t, alice, http.MethodPost, "/login", map[string]string{
		"username": "alice", "password": "newsecret",
	}, nil))
}

func TestBookingFlow(t *testing.T) {
	s := newTestServer(t)
	root := s.admin(t)
	alice := s.signup(t, "alice")
	bob := s.signup(t, "bob")

	var concert models.Event
	status := s.do(t, root, http.MethodPost, "/admin/events", map[string]interface{}{
		"name": "Concert", "venue": "HallA", "day": "Sat", "price": "50", "total_tickets": 10,
	}, &concert)
	require.Equal(t, http.StatusCreated, status)

	assert.Equal(t, http.StatusConflict, s.do(t, root, http.MethodPost, "/admin/events", map[string]interface{}{
		"name": "Concert", "venue": "HallA", "day": "Sat", "price": "60", "total_tickets": 10,
	}, nil))

	var events []*models.Event
	require.Equal(t, http.StatusOK, s.do(t, alice, http.MethodGet, "/events", nil, &events))
	require.Len(t, events, 1)

	var line models.CartLine
	status = s.do(t, alice, http.MethodPost, "/cart/items", map[string]int{"event_id": concert.ID, "quantity": 6}, &line)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, 6, line.Quantity)

	assert.Equal(t, http.StatusConflict, s.do(t, bob, http.MethodPost, "/cart/items", map[string]int{"event_id": concert.ID, "quantity": 5}, nil))
	assert.Equal(t, http.StatusBadRequest, s.do(t, bob, http.MethodPost, "/cart/items", map[string]int{"event_id": concert.ID, "quantity": 0}, nil))
	assert.Equal(t, http.StatusNotFound, s.do(t, bob, http.MethodPost, "/cart/items", map[string]int{"event_id": 9999, "quantity": 1}, nil))

	path := fmt.Sprintf("/cart/items/%d", concert.ID)
	require.Equal(t, http.StatusOK, s.do(t, alice, http.MethodPut, path, map[string]int{"quantity": 4}, &line))
	assert.Equal(t, 4, line.Quantity)
	assert.Equal(t, http.StatusNotFound, s.do(t, bob, http.MethodPut, path, map[string]int{"quantity": 1}, nil))
	assert.Equal(t, http.StatusBadRequest, s.do(t, alice, http.MethodPut, "/cart/items/abc", map[string]int{"quantity": 1}, nil))

	var cart struct {
		Lines   []*models.CartLine `json:"lines"`
		Tickets int                `json:"tickets"`
		Total   string             `json:"total"`
	}
	require.Equal(t, http.StatusOK, s.do(t, alice, http.MethodGet, "/cart", nil, &cart))
	require.Len(t, cart.Lines, 1)
	assert.Equal(t, 4, cart.Tickets)
	assert.Equal(t, "200", cart.Total)

	// a refresh reads the same lines back from the database
	require.Equal(t, http.StatusOK, s.do(t, alice, http.MethodGet, "/cart?refresh=true", nil, &cart))
	require.Len(t, cart.Lines, 1)
	assert.Equal(t, 4, cart.Lines[0].Quantity)

	var result services.CheckoutResult
	require.Equal(t, http.StatusCreated, s.do(t, alice, http.MethodPost, "/checkout", nil, &result))
	assert.Equal(t, models.CheckoutDone, result.State)
	require.Len(t, result.Orders, 1)
	assert.Equal(t, "0001", result.Orders[0].OrderNumber)

	assert.Equal(t, http.StatusConflict, s.do(t, alice, http.MethodPost, "/checkout", nil, nil))

	var order models.Order
	require.Equal(t, http.StatusOK, s.do(t, alice, http.MethodGet, "/orders/0001", nil, &order))
	assert.Equal(t, 4, order.Quantity)
	assert.Equal(t, http.StatusNotFound, s.do(t, bob, http.MethodGet, "/orders/0001", nil, nil))
	assert.Equal(t, http.StatusOK, s.do(t, root, http.MethodGet, "/orders/0001", nil, nil))

	var mine []*models.Order
	require.Equal(t, http.StatusOK, s.do(t, alice, http.MethodGet, "/orders", nil, &mine))
	assert.Len(t, mine, 1)

	var inventory []*services.InventoryLine
	require.Equal(t, http.StatusOK, s.do(t, root, http.MethodGet, "/admin/inventory", nil, &inventory))
	require.Len(t, inventory, 1)
	assert.Equal(t, 4, inventory[0].Sold)
	assert.Equal(t, 4, inventory[0].Ordered)
	assert.True(t, inventory[0].Consistent)
}

func TestAdminEventLifecycle(t *testing.T) {
	s := newTestServer(t)
	root := s.admin(t)
	alice := s.signup(t, "alice")

	var concert models.Event
	require.Equal(t, http.StatusCreated, s.do(t, root, http.MethodPost, "/admin/events", map[string]interface{}{
		"name": "Concert", "venue": "HallA", "day": "Sat", "price": "50", "total_tickets": 50,
	}, &concert))
	eventPath := fmt.Sprintf("/admin/events/%d", concert.ID)

	require.Equal(t, http.StatusCreated, s.do(t, alice, http.MethodPost, "/cart/items", map[string]int{"event_id": concert.ID, "quantity": 10}, nil))

	assert.Equal(t, http.StatusConflict, s.do(t, root, http.MethodPut, eventPath, map[string]interface{}{
		"name": "Concert", "venue": "HallA", "day": "Sat", "price": "50", "total_tickets": 5,
	}, nil))

	var purged services.PurgeResult
	require.Equal(t, http.StatusOK, s.do(t, root, http.MethodPost, eventPath+"/disable", nil, &purged))
	assert.Equal(t, 10, purged.Released)

	var cart struct {
		Lines []*models.CartLine `json:"lines"`
	}
	require.Equal(t, http.StatusOK, s.do(t, alice, http.MethodGet, "/cart", nil, &cart))
	assert.Empty(t, cart.Lines)

	var visible []*models.Event
	require.Equal(t, http.StatusOK, s.do(t, alice, http.MethodGet, "/events", nil, &visible))
	assert.Empty(t, visible)

	var event models.Event
	require.Equal(t, http.StatusOK, s.do(t, root, http.MethodGet, eventPath, nil, &event))
	assert.False(t, event.Enabled)
	assert.Zero(t, event.SoldTickets)

	require.Equal(t, http.StatusOK, s.do(t, root, http.MethodPost, eventPath+"/enable", nil, nil))

	var groups []*models.EventGroup
	require.Equal(t, http.StatusOK, s.do(t, root, http.MethodGet, "/admin/events/grouped", nil, &groups))
	require.Len(t, groups, 1)

	assert.Equal(t, http.StatusNoContent, s.do(t, root, http.MethodDelete, eventPath, nil, nil))
	assert.Equal(t, http.StatusNotFound, s.do(t, root, http.MethodGet, eventPath, nil, nil))
	assert.Equal(t, http.StatusNotFound, s.do(t, root, http.MethodDelete, eventPath, nil, nil))
}

func TestEmptyCartReleases(t *testing.T) {
	s := newTestServer(t)
	root := s.admin(t)
	alice := s.signup(t, "alice")

	var concert models.Event
	require.Equal(t, http.StatusCreated, s.do(t, root, http.MethodPost, "/admin/events", map[string]interface{}{
		"name": "Concert", "venue": "HallA", "day": "Sun", "price": "50", "total_tickets": 5,
	}, &concert))
	require.Equal(t, http.StatusCreated, s.do(t, alice, http.MethodPost, "/cart/items", map[string]int{"event_id": concert.ID, "quantity": 5}, nil))

	var released map[string]int
	require.Equal(t, http.StatusOK, s.do(t, alice, http.MethodDelete, "/cart", nil, &released))
	assert.Equal(t, 5, released["released"])

	assert.Equal(t, http.StatusNoContent, s.do(t, alice, http.MethodDelete, fmt.Sprintf("/cart/items/%d", concert.ID), nil, nil))
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t)
	assert.Equal(t, http.StatusNotFound, s.do(t, s.client(t), http.MethodGet, "/nope", nil, nil))
	assert.Equal(t, http.StatusMethodNotAllowed, s.do(t, s.client(t), http.MethodPut, "/healthz", nil, nil))
}

package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"eventbooking/internal/database"
	"eventbooking/internal/models"
	"eventbooking/internal/repositories"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// monday is early enough in the week for every event day to be bookable
var monday = time.Date(2026, 3, 2, 9, 0, 0, 0, time.Local)

type fixture struct {
	db       *database.DB
	events   *repositories.EventRepository
	cartDB   *repositories.CartRepository
	orderDB  *repositories.OrderRepository
	carts    *CartStore
	tickets  *TicketService
	checkout *CheckoutService
	admin    *AdminService
	orders   *OrderService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := database.NewTestDB(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	events := repositories.NewEventRepository(db.DB)
	cartDB := repositories.NewCartRepository(db.DB)
	orderDB := repositories.NewOrderRepository(db.DB)
	carts := NewCartStore(db, cartDB, events, logger)

	return &fixture{
		db:       db,
		events:   events,
		cartDB:   cartDB,
		orderDB:  orderDB,
		carts:    carts,
		tickets:  NewTicketService(events, carts, logger).WithClock(func() time.Time { return monday }),
		checkout: NewCheckoutService(carts, orderDB, logger).WithClock(func() time.Time { return monday }),
		admin:    NewAdminService(db, events, orderDB, cartDB, carts, logger),
		orders:   NewOrderService(orderDB),
	}
}

func (f *fixture) addEvent(t *testing.T, name, venue string, day models.Day, price string, total int) *models.Event {
	t.Helper()
	event, err := f.admin.AddEvent(context.Background(), &models.EventCreateRequest{
		Name:         name,
		Venue:        venue,
		Day:          string(day),
		Price:        decimal.RequireFromString(price),
		TotalTickets: total,
	})
	require.NoError(t, err)
	return event
}

func (f *fixture) sold(t *testing.T, eventID int) int {
	t.Helper()
	event, err := f.events.GetByID(context.Background(), eventID, nil)
	require.NoError(t, err)
	return event.SoldTickets
}

// assertReconciled checks that every event's sold count equals the tickets
// held in carts plus the tickets already ordered
func (f *fixture) assertReconciled(t *testing.T) {
	t.Helper()
	report, err := f.admin.InventoryReport(context.Background())
	require.NoError(t, err)
	for _, line := range report {
		assert.True(t, line.Consistent, "event %d: sold %d, held %d, ordered %d", line.EventID, line.Sold, line.Held, line.Ordered)
		assert.LessOrEqual(t, line.Sold, line.Total)
	}
}

func TestReserve(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	concert := f.addEvent(t, "Concert", "HallA", models.Saturday, "50", 100)

	line, err := f.tickets.Reserve(ctx, "alice", concert.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, line.Quantity)
	assert.True(t, line.EventPrice.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, 5, f.sold(t, concert.ID))

	// a second reservation merges into the same line
	line, err = f.tickets.Reserve(ctx, "alice", concert.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 8, line.Quantity)

	cart, err := f.carts.GetCart(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, cart.Lines, 1)
	assert.True(t, cart.Total().Equal(decimal.NewFromInt(400)))
	assert.Equal(t, 8, f.sold(t, concert.ID))

	f.assertReconciled(t)
}

func TestReserveRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	concert := f.addEvent(t, "Concert", "HallA", models.Saturday, "50", 10)
	early := f.addEvent(t, "Breakfast", "Cafe", models.Monday, "5", 10)
	disabled := f.addEvent(t, "Play", "Studio", models.Friday, "20", 10)
	_, err := f.admin.SetEnabled(ctx, disabled.ID, false)
	require.NoError(t, err)

	wednesday := time.Date(2026, 3, 4, 9, 0, 0, 0, time.Local)
	late := NewTicketService(f.events, f.carts, nil).WithClock(func() time.Time { return wednesday })

	tests := []struct {
		name     string
		service  *TicketService
		eventID  int
		quantity int
		wantErr  error
	}{
		{name: "zero quantity", service: f.tickets, eventID: concert.ID, quantity: 0, wantErr: models.ErrValidation},
		{name: "more than available", service: f.tickets, eventID: concert.ID, quantity: 11, wantErr: models.ErrInsufficientInventory},
		{name: "unknown event", service: f.tickets, eventID: 9999, quantity: 1, wantErr: models.ErrEventNotFound},
		{name: "disabled event", service: f.tickets, eventID: disabled.ID, quantity: 1, wantErr: models.ErrEventDisabled},
		{name: "day already passed", service: late, eventID: early.ID, quantity: 1, wantErr: models.ErrBookingWindowClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.service.Reserve(ctx, "alice", tt.eventID, tt.quantity)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	items, err := f.carts.GetCartItems(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Zero(t, f.sold(t, concert.ID))

	// the same day is still bookable
	_, err = late.Reserve(ctx, "alice", concert.ID, 1)
	assert.NoError(t, err)
}

func TestReserveInsufficientMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	concert := f.addEvent(t, "Concert", "HallA", models.Saturday, "50", 100)

	_, err := f.tickets.Reserve(ctx, "alice", concert.ID, 95)
	require.NoError(t, err)

	_, err = f.tickets.Reserve(ctx, "bob", concert.ID, 10)
	assert.ErrorIs(t, err, models.ErrInsufficientInventory)
	assert.Contains(t, err.Error(), "(requested: 10, available: 5)")
	assert.Equal(t, 95, f.sold(t, concert.ID))
}

func TestReserveConcurrentNeverOversells(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	concert := f.addEvent(t, "Concert", "HallA", models.Saturday, "50", 25)

	users := []string{"alice", "bob", "carol", "dave", "erin"}
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		reserved int
	)
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := f.tickets.Reserve(ctx, users[i%len(users)], concert.ID, 2); err == nil {
				mu.Lock()
				reserved += 2
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, models.ErrInsufficientInventory)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 24, reserved)
	assert.Equal(t, 24, f.sold(t, concert.ID))

	held, err := f.cartDB.HeldQuantity(ctx, concert.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 24, held)
	f.assertReconciled(t)
}

func TestCartStoreUpdateAndRemove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	concert := f.addEvent(t, "Concert", "HallA", models.Saturday, "50", 10)

	_, err := f.tickets.Reserve(ctx, "alice", concert.ID, 4)
	require.NoError(t, err)

	line, err := f.carts.UpdateQuantity(ctx, "alice", concert.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, 7, line.Quantity)
	assert.Equal(t, 7, f.sold(t, concert.ID))

	line, err = f.carts.UpdateQuantity(ctx, "alice", concert.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, line.Quantity)
	assert.Equal(t, 2, f.sold(t, concert.ID))

	_, err = f.carts.UpdateQuantity(ctx, "alice", concert.ID, 11)
	assert.ErrorIs(t, err, models.ErrInsufficientInventory)
	assert.Equal(t, 2, f.sold(t, concert.ID))

	_, err = f.carts.UpdateQuantity(ctx, "alice", concert.ID, 0)
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = f.carts.UpdateQuantity(ctx, "bob", concert.ID, 1)
	assert.ErrorIs(t, err, models.ErrCartLineNotFound)

	require.NoError(t, f.carts.RemoveLine(ctx, "alice", concert.ID))
	assert.Zero(t, f.sold(t, concert.ID))
	// removing again is a no-op
	require.NoError(t, f.carts.RemoveLine(ctx, "alice", concert.ID))

	f.assertReconciled(t)
}

func TestCartStoreClearAndRelease(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	concert := f.addEvent(t, "Concert", "HallA", models.Saturday, "50", 10)
	play := f.addEvent(t, "Play", "Studio", models.Sunday, "20", 10)

	_, err := f.tickets.Reserve(ctx, "alice", concert.ID, 3)
	require.NoError(t, err)
	_, err = f.tickets.Reserve(ctx, "alice", play.ID, 2)
	require.NoError(t, err)

	released, err := f.carts.Release(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 5, released)
	assert.Zero(t, f.sold(t, concert.ID))
	assert.Zero(t, f.sold(t, play.ID))

	released, err = f.carts.Release(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, released)

	_, err = f.tickets.Reserve(ctx, "bob", concert.ID, 4)
	require.NoError(t, err)
	require.NoError(t, f.carts.Clear(ctx, "bob"))

	items, err := f.carts.GetCartItems(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Zero(t, f.sold(t, concert.ID))

	f.assertReconciled(t)
}

func TestUpdateQuantityReloadsStaleLine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	concert := f.addEvent(t, "Concert", "HallA", models.Saturday, "50", 10)
	play := f.addEvent(t, "Play", "Studio", models.Sunday, "20", 10)

	_, err := f.tickets.Reserve(ctx, "alice", concert.ID, 2)
	require.NoError(t, err)
	_, err = f.tickets.Reserve(ctx, "alice", play.ID, 1)
	require.NoError(t, err)

	// the line disappears from the table behind the cache
	_, err = f.cartDB.Delete(ctx, "alice", concert.ID, nil)
	require.NoError(t, err)

	_, err = f.carts.UpdateQuantity(ctx, "alice", concert.ID, 5)
	assert.ErrorIs(t, err, models.ErrCartLineNotFound)
	assert.Equal(t, 2, f.sold(t, concert.ID), "the sold change rolls back with the failed update")

	items, err := f.carts.GetCartItems(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, play.ID, items[0].EventID)
}

func TestStorageFailureLeavesNoPartialWrite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	concert := f.addEvent(t, "Concert", "HallA", models.Saturday, "50", 10)

	_, err := f.tickets.Reserve(ctx, "alice", concert.ID, 2)
	require.NoError(t, err)

	for _, op := range []string{"INSERT", "UPDATE", "DELETE"} {
		_, err := f.db.Exec(`CREATE TRIGGER cart_fail_` + op + ` BEFORE ` + op + ` ON cart
			BEGIN SELECT RAISE(ABORT, 'disk full'); END`)
		require.NoError(t, err)
	}

	assertLine := func(t *testing.T, quantity int) {
		t.Helper()
		items, err := f.carts.GetCartItems(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, quantity, items[0].Quantity)
	}

	t.Run("reserve", func(t *testing.T) {
		_, err := f.tickets.Reserve(ctx, "alice", concert.ID, 3)
		assert.ErrorIs(t, err, models.ErrStorage)
		assert.Equal(t, 2, f.sold(t, concert.ID))
		assertLine(t, 2)
	})

	t.Run("update quantity", func(t *testing.T) {
		_, err := f.carts.UpdateQuantity(ctx, "alice", concert.ID, 7)
		assert.ErrorIs(t, err, models.ErrStorage)
		assert.Equal(t, 2, f.sold(t, concert.ID))
		assertLine(t, 2)
	})

	t.Run("remove line", func(t *testing.T) {
		err := f.carts.RemoveLine(ctx, "alice", concert.ID)
		assert.ErrorIs(t, err, models.ErrStorage)
		assert.Equal(t, 2, f.sold(t, concert.ID))
		assertLine(t, 2)
	})

	t.Run("checkout", func(t *testing.T) {
		result, err := f.checkout.Checkout(ctx, "alice")
		assert.ErrorIs(t, err, models.ErrStorage)
		assert.Equal(t, models.CheckoutFailed, result.State)

		all, err := f.orders.AllOrders(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)
		assertLine(t, 2)
	})

	for _, op := range []string{"INSERT", "UPDATE", "DELETE"} {
		_, err := f.db.Exec(`DROP TRIGGER cart_fail_` + op)
		require.NoError(t, err)
	}

	result, err := f.checkout.Checkout(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "0001", result.Orders[0].OrderNumber)
	f.assertReconciled(t)
}

func TestCartStoreReloadReadsDurableLines(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	concert := f.addEvent(t, "Concert", "HallA", models.Saturday, "50", 10)

	_, err := f.tickets.Reserve(ctx, "alice", concert.ID, 2)
	require.NoError(t, err)

	// a fresh store sees what the first one wrote
	other := NewCartStore(f.db, f.cartDB, f.events, nil)
	items, err := other.GetCartItems(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].Quantity)

	_, err = f.cartDB.Delete(ctx, "alice", concert.ID, nil)
	require.NoError(t, err)

	items, err = other.Reload(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestSnapshotsAreCopies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	concert := f.addEvent(t, "Concert", "HallA", models.Saturday, "50", 10)

	_, err := f.tickets.Reserve(ctx, "alice", concert.ID, 2)
	require.NoError(t, err)

	items, err := f.carts.GetCartItems(ctx, "alice")
	require.NoError(t, err)
	items[0].Quantity = 99

	again, err := f.carts.GetCartItems(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, again[0].Quantity)
}

func TestTotalAmount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	concert := f.addEvent(t, "Concert", "HallA", models.Saturday, "50", 10)
	play := f.addEvent(t, "Play", "Studio", models.Sunday, "7.25", 10)

	total, err := f.carts.GetTotalAmount(ctx, "nobody")
	require.NoError(t, err)
	assert.True(t, total.IsZero())

	_, err = f.tickets.Reserve(ctx, "alice", concert.ID, 5)
	require.NoError(t, err)
	_, err = f.tickets.Reserve(ctx, "alice", play.ID, 2)
	require.NoError(t, err)

	total, err = f.carts.GetTotalAmount(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "264.50", total.StringFixed(2))
}

func TestAddToCartLeavesSoldAlone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	concert := f.addEvent(t, "Concert", "HallA", models.Saturday, "50", 10)

	line, err := f.carts.AddToCart(ctx, "alice", concert, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, line.Quantity)

	line, err = f.carts.AddToCart(ctx, "alice", concert, 3)
	require.NoError(t, err)
	assert.Equal(t, 5, line.Quantity)
	assert.Zero(t, f.sold(t, concert.ID))

	_, err = f.carts.AddToCart(ctx, "alice", concert, -1)
	assert.ErrorIs(t, err, models.ErrValidation)
}

package models

import "github.com/shopspring/decimal"

// CartLine is one user's pending reservation of tickets for one event.
// Name, venue, day and price are a snapshot taken when the line was created.
type CartLine struct {
	ID         int             `json:"id" db:"id"`
	Username   string          `json:"username" db:"username"`
	EventID    int             `json:"event_id" db:"event_id"`
	EventName  string          `json:"event_name" db:"event_name"`
	EventVenue string          `json:"event_venue" db:"event_venue"`
	EventDay   Day             `json:"event_day" db:"event_day"`
	EventPrice decimal.Decimal `json:"event_price" db:"event_price"`
	Quantity   int             `json:"quantity" db:"quantity"`
}

// NewCartLine snapshots an event into a cart line
func NewCartLine(username string, event *Event, quantity int) *CartLine {
	return &CartLine{
		Username:   username,
		EventID:    event.ID,
		EventName:  event.Name,
		EventVenue: event.Venue,
		EventDay:   event.Day,
		EventPrice: event.Price,
		Quantity:   quantity,
	}
}

// Subtotal returns quantity times the snapshot price
func (l *CartLine) Subtotal() decimal.Decimal {
	return l.EventPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart represents a user's pending selections
type Cart struct {
	Username string      `json:"username"`
	Lines    []*CartLine `json:"lines"`
}

// Total sums every line subtotal; an empty cart totals zero
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, line := range c.Lines {
		total = total.Add(line.Subtotal())
	}
	return total
}

// Quantity returns the total number of tickets across all lines
func (c *Cart) Quantity() int {
	n := 0
	for _, line := range c.Lines {
		n += line.Quantity
	}
	return n
}

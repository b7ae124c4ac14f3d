package models

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// OrderTimeLayout is the layout of the persisted dateTime column
const OrderTimeLayout = "2006-01-02 15:04:05"

// FirstOrderNumber is allocated when the ledger is empty
const FirstOrderNumber = "0001"

var orderNumberRegex = regexp.MustCompile(`^\d{4,}$`)

// Order represents a finalized, immutable purchase of one event's tickets
type Order struct {
	OrderNumber string          `json:"order_number" db:"orderNumber"`
	Username    string          `json:"username" db:"username"`
	EventName   string          `json:"event_name" db:"eventName"`
	Venue       string          `json:"venue" db:"venue"`
	Day         Day             `json:"day" db:"day"`
	Quantity    int             `json:"quantity" db:"quantity"`
	TotalPrice  decimal.Decimal `json:"total_price" db:"totalPrice"`
	DateTime    time.Time       `json:"date_time" db:"dateTime"`
}

// NewOrderFromLine converts a cart line into an order
func NewOrderFromLine(number string, line *CartLine, at time.Time) *Order {
	return &Order{
		OrderNumber: number,
		Username:    line.Username,
		EventName:   line.EventName,
		Venue:       line.EventVenue,
		Day:         line.EventDay,
		Quantity:    line.Quantity,
		TotalPrice:  line.Subtotal(),
		DateTime:    at,
	}
}

// FormatOrderNumber formats a sequence value as a zero-padded order number
func FormatOrderNumber(n int) string {
	return fmt.Sprintf("%04d", n)
}

// NextOrderNumber returns the order number following max
func NextOrderNumber(max int) string {
	if max < 1 {
		return FirstOrderNumber
	}
	return FormatOrderNumber(max + 1)
}

// ParseOrderNumber returns the integer value of an order number
func ParseOrderNumber(number string) (int, error) {
	if !orderNumberRegex.MatchString(number) {
		return 0, NewValidationError("order_number", "order number format is invalid")
	}
	return strconv.Atoi(number)
}

// Validate validates the order data
func (o *Order) Validate() error {
	if _, err := ParseOrderNumber(o.OrderNumber); err != nil {
		return err
	}
	if o.Username == "" {
		return NewValidationError("username", "username is required")
	}
	if o.Quantity <= 0 {
		return NewValidationError("quantity", "quantity must be greater than 0")
	}
	if o.TotalPrice.IsNegative() {
		return NewValidationError("total_price", "total price cannot be negative")
	}
	return nil
}

// CheckoutState tracks a single checkout invocation
type CheckoutState string

const (
	CheckoutIdle       CheckoutState = "idle"
	CheckoutValidating CheckoutState = "validating"
	CheckoutCommitting CheckoutState = "committing"
	CheckoutDone       CheckoutState = "done"
	CheckoutFailed     CheckoutState = "failed"
)

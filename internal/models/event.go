package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Day is the short weekday an event runs on
type Day string

const (
	Monday    Day = "Mon"
	Tuesday   Day = "Tue"
	Wednesday Day = "Wed"
	Thursday  Day = "Thu"
	Friday    Day = "Fri"
	Saturday  Day = "Sat"
	Sunday    Day = "Sun"
)

// Days lists the bookable days in week order, Monday first
var Days = []Day{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// ParseDay validates a short day name
func ParseDay(s string) (Day, error) {
	d := Day(strings.TrimSpace(s))
	if d.Index() < 0 {
		return "", NewValidationError("day", "day must be a valid short day (Mon to Sun)")
	}
	return d, nil
}

// Index returns the position of the day in the week, Monday=0..Sunday=6, or -1
func (d Day) Index() int {
	for i, day := range Days {
		if day == d {
			return i
		}
	}
	return -1
}

// WeekdayIndex maps a time.Weekday onto the Monday-first index used by Day
func WeekdayIndex(wd time.Weekday) int {
	return (int(wd) + 6) % 7
}

// Event represents a bookable event instance
type Event struct {
	ID           int             `json:"id" db:"id"`
	Name         string          `json:"name" db:"name"`
	Venue        string          `json:"venue" db:"venue"`
	Day          Day             `json:"day" db:"day"`
	Price        decimal.Decimal `json:"price" db:"price"`
	SoldTickets  int             `json:"sold_tickets" db:"soldTickets"`
	TotalTickets int             `json:"total_tickets" db:"totalTickets"`
	Enabled      bool            `json:"enabled" db:"enabled"`
}

// Available returns the number of tickets that can still be reserved
func (e *Event) Available() int {
	return e.TotalTickets - e.SoldTickets
}

// BookingOpen reports whether the event's day has not yet passed in the
// current week relative to now
func (e *Event) BookingOpen(now time.Time) bool {
	return WeekdayIndex(now.Weekday()) <= e.Day.Index()
}

// EventGroup collects every venue/day instance sharing an event name
type EventGroup struct {
	Name   string   `json:"name"`
	Events []*Event `json:"events"`
}

// EventCreateRequest represents the data needed to create a new event
type EventCreateRequest struct {
	Name         string          `json:"name"`
	Venue        string          `json:"venue"`
	Day          string          `json:"day"`
	Price        decimal.Decimal `json:"price"`
	TotalTickets int             `json:"total_tickets"`
}

// EventUpdateRequest represents the editable fields of an event.
// The sold count is never editable through this path.
type EventUpdateRequest struct {
	Name         string          `json:"name"`
	Venue        string          `json:"venue"`
	Day          string          `json:"day"`
	Price        decimal.Decimal `json:"price"`
	TotalTickets int             `json:"total_tickets"`
}

// Validate validates event creation data and normalizes it
func (req *EventCreateRequest) Validate() error {
	name, venue, day, err := validateEventFields(req.Name, req.Venue, req.Day, req.Price, req.TotalTickets)
	if err != nil {
		return err
	}
	req.Name, req.Venue, req.Day = name, venue, string(day)
	return nil
}

// Validate validates event update data and normalizes it
func (req *EventUpdateRequest) Validate() error {
	name, venue, day, err := validateEventFields(req.Name, req.Venue, req.Day, req.Price, req.TotalTickets)
	if err != nil {
		return err
	}
	req.Name, req.Venue, req.Day = name, venue, string(day)
	return nil
}

func validateEventFields(name, venue, day string, price decimal.Decimal, total int) (string, string, Day, error) {
	name = strings.TrimSpace(name)
	venue = strings.TrimSpace(venue)
	if name == "" {
		return "", "", "", NewValidationError("name", "event name is required")
	}
	if len(name) > 200 {
		return "", "", "", NewValidationError("name", "event name must be less than 200 characters")
	}
	if venue == "" {
		return "", "", "", NewValidationError("venue", "venue is required")
	}
	if strings.TrimSpace(day) == "" {
		return "", "", "", NewValidationError("day", "day is required")
	}
	d, err := ParseDay(day)
	if err != nil {
		return "", "", "", err
	}
	if !price.IsPositive() {
		return "", "", "", NewValidationError("price", "price must be greater than 0")
	}
	if total <= 0 {
		return "", "", "", NewValidationError("total_tickets", "capacity must be greater than 0")
	}
	return name, venue, d, nil
}

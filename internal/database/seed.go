package database

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"strconv"
	"strings"

	"eventbooking/internal/models"

	"github.com/shopspring/decimal"
)

// SeedResult summarizes a bulk load of the events table
type SeedResult struct {
	Inserted int
	Skipped  int
	// AlreadySeeded is set when the table held events and nothing was read
	AlreadySeeded bool
}

// ParseEventLine parses one "name;venue;day;price;soldTickets;totalTickets" record
func ParseEventLine(line string) (*models.Event, error) {
	parts := strings.Split(line, ";")
	if len(parts) != 6 {
		return nil, fmt.Errorf("expected 6 fields, got %d", len(parts))
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	req := models.EventCreateRequest{
		Name:  parts[0],
		Venue: parts[1],
		Day:   parts[2],
	}

	price, err := decimal.NewFromString(parts[3])
	if err != nil {
		return nil, fmt.Errorf("invalid price %q: %w", parts[3], err)
	}
	req.Price = price

	sold, err := strconv.Atoi(parts[4])
	if err != nil {
		return nil, fmt.Errorf("invalid sold tickets %q: %w", parts[4], err)
	}

	total, err := strconv.Atoi(parts[5])
	if err != nil {
		return nil, fmt.Errorf("invalid total tickets %q: %w", parts[5], err)
	}
	req.TotalTickets = total

	if err := req.Validate(); err != nil {
		return nil, err
	}
	if sold < 0 || sold > total {
		return nil, fmt.Errorf("sold tickets %d outside 0..%d", sold, total)
	}

	return &models.Event{
		Name:         req.Name,
		Venue:        req.Venue,
		Day:          models.Day(req.Day),
		Price:        req.Price,
		SoldTickets:  sold,
		TotalTickets: total,
		Enabled:      true,
	}, nil
}

// SeedEvents loads events from r only when the events table is empty.
// Malformed and duplicate records are skipped.
func SeedEvents(ctx context.Context, db *DB, r io.Reader) (*SeedResult, error) {
	result := &SeedResult{}

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM events").Scan(&count); err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}
	if count > 0 {
		result.AlreadySeeded = true
		return result, nil
	}

	var events []*models.Event
	seen := make(map[string]bool)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		event, err := ParseEventLine(line)
		if err != nil {
			result.Skipped++
			continue
		}
		key := event.Name + "\x00" + event.Venue + "\x00" + string(event.Day)
		if seen[key] {
			result.Skipped++
			continue
		}
		seen[key] = true
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}

	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		for _, event := range events {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO events (name, venue, day, price, soldTickets, totalTickets, enabled)
				VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				event.Name, event.Venue, string(event.Day), event.Price, event.SoldTickets, event.TotalTickets, event.Enabled)
			if err != nil {
				return fmt.Errorf("failed to insert event %s: %w", event.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.Inserted = len(events)
	return result, nil
}

package database

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunMigrationsIsIdempotent(t *testing.T) {
	db := NewTestDB(t)

	var logs bytes.Buffer
	require.NoError(t, db.RunMigrations(slog.New(slog.NewTextHandler(&logs, nil))))
	assert.Empty(t, logs.String(), "nothing left to apply")

	status, err := db.GetMigrationStatus()
	require.NoError(t, err)
	require.Len(t, status, 4)
	for i, s := range status {
		assert.Equal(t, i+1, s.Version)
		assert.True(t, s.Applied, "migration %s", s.Name)
	}
	assert.Equal(t, "create_orders_table", status[3].Name)

	var rows int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM order_sequence").Scan(&rows))
	assert.Equal(t, 1, rows)
}

func TestRunMigrationsLogsThroughGivenLogger(t *testing.T) {
	db, err := NewConnection(Config{Driver: string(SQLite), URL: "file::memory:"})
	require.NoError(t, err)
	defer db.Close()

	var logs bytes.Buffer
	require.NoError(t, db.RunMigrations(slog.New(slog.NewTextHandler(&logs, nil))))
	assert.Contains(t, logs.String(), "component=migrator")
	assert.Contains(t, logs.String(), "name=create_orders_table")
}

func TestMigrationsPerDialect(t *testing.T) {
	for _, dialect := range []Dialect{SQLite, Postgres} {
		migrations, err := NewMigrator(nil, dialect, nil).LoadMigrations()
		require.NoError(t, err)
		require.Len(t, migrations, 4, "dialect %s", dialect)
		assert.Contains(t, migrations[2].SQL, "UNIQUE (username, event_id)")
	}
}

func TestSchemaRejectsOversold(t *testing.T) {
	db := NewTestDB(t)

	_, err := db.Exec(`INSERT INTO events (name, venue, day, price, soldTickets, totalTickets, enabled)
		VALUES ('Concert', 'HallA', 'Sat', 50, 11, 10, 1)`)
	assert.Error(t, err)
}

func TestSqliteDSN(t *testing.T) {
	dsn := sqliteDSN(Config{Path: "booking.db"})
	assert.True(t, strings.HasPrefix(dsn, "file:booking.db?"))
	assert.Contains(t, dsn, "_txlock=immediate")
	assert.Contains(t, dsn, "_busy_timeout=5000")

	assert.Equal(t, "file::memory:", sqliteDSN(Config{URL: "file::memory:"}))
	assert.True(t, strings.HasPrefix(sqliteDSN(Config{}), "file:event_booking.db?"))
}

func TestNewConnectionRejectsUnknownDriver(t *testing.T) {
	_, err := NewConnection(Config{Driver: "mysql"})
	assert.ErrorContains(t, err, "unsupported database driver")
}

func TestParseEventLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		wantErr bool
	}{
		{name: "valid", line: "Concert;HallA;Sat;50.00;10;100"},
		{name: "padded fields", line: " Concert ; HallA ; Sat ; 50 ; 0 ; 100 "},
		{name: "too few fields", line: "Concert;HallA;Sat;50;10", wantErr: true},
		{name: "bad price", line: "Concert;HallA;Sat;fifty;10;100", wantErr: true},
		{name: "zero price", line: "Concert;HallA;Sat;0;10;100", wantErr: true},
		{name: "bad day", line: "Concert;HallA;Saturday;50;10;100", wantErr: true},
		{name: "oversold", line: "Concert;HallA;Sat;50;101;100", wantErr: true},
		{name: "negative sold", line: "Concert;HallA;Sat;50;-1;100", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := ParseEventLine(tt.line)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "Concert", event.Name)
			assert.Equal(t, "HallA", event.Venue)
			assert.True(t, event.Price.Equal(decimal.NewFromInt(50)))
			assert.True(t, event.Enabled)
		})
	}
}

func TestSeedEvents(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()

	input := strings.Join([]string{
		"# name;venue;day;price;sold;total",
		"Concert;HallA;Sat;50;10;100",
		"Concert;HallB;Sun;45.5;0;80",
		"",
		"Concert;HallA;Sat;60;0;100",
		"broken line",
		"Play;Studio;Mon;20;5;30",
	}, "\n")

	result, err := SeedEvents(ctx, db, strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 3, result.Inserted)
	assert.Equal(t, 2, result.Skipped)
	assert.False(t, result.AlreadySeeded)

	var sold int
	require.NoError(t, db.QueryRow(`SELECT soldTickets FROM events WHERE name = 'Concert' AND venue = 'HallA'`).Scan(&sold))
	assert.Equal(t, 10, sold)

	// a populated table is left alone
	again, err := SeedEvents(ctx, db, strings.NewReader("Other;Hall;Tue;10;0;10"))
	require.NoError(t, err)
	assert.True(t, again.AlreadySeeded)
	assert.Zero(t, again.Inserted)

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM events").Scan(&count))
	assert.Equal(t, 3, count)
}

package postgres_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/warp/booking-engine/booking"
	"github.com/warp/booking-engine/store/postgres"
	"github.com/warp/booking-engine/store/storetest"
)

// Runs only against a disposable database; every test truncates all tables.
func newStore(t *testing.T) booking.TxStore {
	t.Helper()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, postgres.Migrate(ctx, pool))
	_, err = pool.Exec(ctx, `TRUNCATE schedules, bookings, slots, tutors, ledger_entries, accounts CASCADE`)
	require.NoError(t, err)

	return postgres.New(pool)
}

func TestPostgresStore(t *testing.T) {
	storetest.Run(t, newStore)
}

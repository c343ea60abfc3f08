package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/booking-engine/booking"
	"github.com/warp/booking-engine/generic"
	"github.com/warp/booking-engine/store/sqlite"
	"github.com/warp/booking-engine/store/storetest"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) booking.TxStore { return newStore(t) })
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.SaveAccount(ctx, generic.Account{ID: "u-1", Balance: generic.NewAmount(5)}))
	require.NoError(t, s.SaveTutor(ctx, booking.Tutor{ID: "t-1", PricePerHour: generic.NewAmount(5)}))

	require.NoError(t, s.Reset(ctx))

	_, err := s.GetAccount(ctx, "u-1")
	assert.True(t, generic.IsNotFound(err))
	_, err = s.GetTutor(ctx, "t-1")
	assert.True(t, generic.IsNotFound(err))
}

func TestFileDatabaseSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "booking.db")

	s, err := sqlite.New(path)
	require.NoError(t, err)
	require.NoError(t, s.Ping(ctx))
	require.NoError(t, s.SaveTutor(ctx, booking.Tutor{ID: "t-1", PricePerHour: generic.MustParseAmount("42.50")}))
	require.NoError(t, s.Close())

	// Reopening runs the idempotent schema again.
	s, err = sqlite.New(path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.GetTutor(ctx, "t-1")
	require.NoError(t, err)
	assert.True(t, got.PricePerHour.Equal(generic.MustParseAmount("42.5")))
}

package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/booking-engine/booking"
	"github.com/warp/booking-engine/generic"
	"github.com/warp/booking-engine/store/memory"
)

func TestSeed_MarketplaceIsRepeatable(t *testing.T) {
	// GIVEN: an empty store
	svc := booking.NewService(memory.New(), booking.WithClock(generic.NewFixedClock(testNow)))
	ctx := context.Background()

	// WHEN: loading the marketplace twice
	first, err := Seed(ctx, svc, "marketplace")
	require.NoError(t, err)
	second, err := Seed(ctx, svc, "marketplace")
	require.NoError(t, err)

	// THEN: the same tutor, slots and balance are reported
	assert.Len(t, first.Slots, 3)
	assert.Equal(t, first.Slots, second.Slots)
	assert.Equal(t, "1000000.00", second.Learner.Balance)
	assert.Equal(t, "100000.00", second.Tutor.PricePerHour)
}

func TestSeed_PendingRequest(t *testing.T) {
	svc := booking.NewService(memory.New(), booking.WithClock(generic.NewFixedClock(testNow)))
	ctx := context.Background()

	res, err := Seed(ctx, svc, "pending-request")
	require.NoError(t, err)
	require.NotNil(t, res.Booking)
	assert.Equal(t, "pending", res.Booking.Status)
	assert.Equal(t, "200000.00", res.Learner.Balance)

	_, err = Seed(ctx, svc, "pending-request")
	assert.ErrorIs(t, err, booking.ErrDuplicateBooking)
}

func TestSeed_UnknownScenario(t *testing.T) {
	svc := booking.NewService(memory.New())
	_, err := Seed(context.Background(), svc, "nope")
	assert.ErrorIs(t, err, generic.ErrValidation)
}

func TestLoadScenario_AdminOnly(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/scenarios/load", s.learner(), LoadScenarioRequest{ScenarioID: "marketplace"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodPost, "/api/scenarios/load", s.admin(), LoadScenarioRequest{ScenarioID: "pending-request"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decodeBody[SeedResult](t, rec)
	assert.Equal(t, "pending-request", res.Scenario)

	rec = s.do(http.MethodGet, "/api/scenarios", s.learner(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]ScenarioDTO](t, rec), 2)
}

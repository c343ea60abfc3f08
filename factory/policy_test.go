package factory

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/booking-engine/booking"
	"github.com/warp/booking-engine/generic"
)

func TestParsePolicy_OverlaysDefaults(t *testing.T) {
	// GIVEN: a policy that only softens approved cancellations
	jsonStr := `{
		"cancellation": {
			"approve": {"refund_fraction": "0.5", "deposit_on_held": "refunded"}
		},
		"completion_payout": "lump_sum"
	}`

	// WHEN: parsing
	policy, err := NewPolicyFactory().ParsePolicy(jsonStr)
	require.NoError(t, err)

	// THEN: the approve rule is replaced and the rest keeps its defaults
	approve, ok := policy.CancellationFor(booking.StatusApproved)
	require.True(t, ok)
	assert.True(t, approve.RefundFraction.Equal(decimal.RequireFromString("0.5")))
	assert.Equal(t, booking.DepositRefunded, approve.DepositOnHeld)

	pending, ok := policy.CancellationFor(booking.StatusPending)
	require.True(t, ok)
	assert.True(t, pending.RefundFraction.Equal(decimal.NewFromInt(1)))

	assert.True(t, policy.Rejection.RefundFraction.IsZero())
	assert.Equal(t, booking.PayoutLumpSum, policy.Completion)
}

func TestParsePolicy_NumericFraction(t *testing.T) {
	policy, err := NewPolicyFactory().ParsePolicy(`{"rejection": {"refund_fraction": 0.25}}`)
	require.NoError(t, err)
	assert.True(t, policy.Rejection.RefundFraction.Equal(decimal.RequireFromString("0.25")))
}

func TestParsePolicy_Invalid(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"malformed", `{"cancellation": `},
		{"fraction above one", `{"rejection": {"refund_fraction": "1.5"}}`},
		{"negative fraction", `{"expiry": {"refund_fraction": "-0.1"}}`},
		{"unknown deposit status", `{"rejection": {"refund_fraction": "0", "deposit_on_held": "lost"}}`},
		{"terminal status key", `{"cancellation": {"completed": {"refund_fraction": "1"}}}`},
		{"unknown payout", `{"completion_payout": "twice"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPolicyFactory().ParsePolicy(tt.json)
			assert.Error(t, err)
		})
	}
}

func TestParsePolicy_ValidationErrorsAreClientErrors(t *testing.T) {
	_, err := NewPolicyFactory().ParsePolicy(`{"completion_payout": "twice"}`)
	require.Error(t, err)
	assert.ErrorIs(t, err, generic.ErrValidation)
}

func TestDefaultPolicyJSON_RoundTrips(t *testing.T) {
	// GIVEN: the rendered default policy
	jsonStr := DefaultPolicyJSON()

	// WHEN: it is parsed back
	policy, err := NewPolicyFactory().ParsePolicy(jsonStr)
	require.NoError(t, err)

	// THEN: it behaves like the default
	b := &booking.Booking{InitialPayment: generic.NewAmount(800000), DepositStatus: booking.DepositHeld}
	want := booking.DefaultPolicy()
	for _, status := range []booking.Status{booking.StatusPending, booking.StatusApproved} {
		got, _ := policy.CancellationFor(status)
		exp, _ := want.CancellationFor(status)
		assert.True(t, got.Refund(b).Equal(exp.Refund(b)), status)
		assert.Equal(t, exp.DepositAfter(b.DepositStatus), got.DepositAfter(b.DepositStatus), status)
	}
	assert.Equal(t, want.Completion, policy.Completion)
}

func TestLoadFile(t *testing.T) {
	f := NewPolicyFactory()

	// Empty path is the default policy.
	policy, err := f.LoadFile("")
	require.NoError(t, err)
	assert.Equal(t, booking.PayoutRemainder, policy.Completion)

	path := filepath.Join(t.TempDir(), "policy.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"completion_payout": "lump_sum"}`), 0o600))
	policy, err = f.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, booking.PayoutLumpSum, policy.Completion)

	_, err = f.LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

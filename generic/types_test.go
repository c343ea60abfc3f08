package generic

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmount_Arithmetic(t *testing.T) {
	a := MustParseAmount("100000")
	assert.True(t, a.MulInt(8).Equal(NewAmount(800000)))
	assert.True(t, NewAmount(1600000).DivInt(16).Equal(NewAmount(100000)))
	assert.Equal(t, "33.33", NewAmount(100).DivInt(3).String())
	assert.True(t, a.Sub(NewAmount(150000)).IsNegative())
	assert.True(t, a.Neg().Abs().Equal(a))
	assert.True(t, MustParseAmount("0.005").Round(2).Equal(MustParseAmount("0.01")))
}

func TestParseAmount(t *testing.T) {
	a, err := ParseAmount("12.50")
	require.NoError(t, err)
	assert.Equal(t, "12.5", a.String())

	_, err = ParseAmount("twelve")
	assert.Error(t, err)
	assert.True(t, MustParseAmount("twelve").IsZero())
}

func TestEntryType_Sign(t *testing.T) {
	tests := map[EntryType]int{
		EntryTopUp:    1,
		EntryEarning:  1,
		EntryRefund:   1,
		EntrySpend:    -1,
		EntryWithdraw: -1,
	}
	for typ, sign := range tests {
		assert.Equal(t, sign, typ.Sign(), typ)
		assert.True(t, typ.Valid())
	}
	assert.False(t, EntryType("bonus").Valid())
}

func TestTimeOfDay(t *testing.T) {
	tod, err := ParseTimeOfDay("09:30")
	require.NoError(t, err)
	assert.Equal(t, NewTimeOfDay(9, 30), tod)
	assert.Equal(t, "09:30", tod.String())
	assert.True(t, tod.Valid())
	assert.False(t, TimeOfDay(24*60).Valid())

	day := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 3, 3, 9, 30, 0, 0, time.UTC), tod.On(day))

	_, err = ParseTimeOfDay("9.30")
	assert.Error(t, err)
}

func TestDaysUntil(t *testing.T) {
	sat := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, 0, DaysUntil(sat, time.Saturday))
	assert.Equal(t, 1, DaysUntil(sat, time.Sunday))
	assert.Equal(t, 2, DaysUntil(sat, time.Monday))
	assert.Equal(t, 6, DaysUntil(sat, time.Friday))
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), StartOfDay(sat))
}

func TestFixedClock(t *testing.T) {
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	c := NewFixedClock(start)
	c.Advance(time.Hour)
	assert.Equal(t, start.Add(time.Hour), c.Now())
	c.Set(start)
	assert.Equal(t, start, c.Now())
}

func TestErrorTaxonomy(t *testing.T) {
	// Structured errors unwrap to their sentinels.
	assert.ErrorIs(t, Invalid("amount", "must be positive"), ErrValidation)
	assert.ErrorIs(t, &NotFoundError{Kind: "booking", ID: "b"}, ErrNotFound)
	assert.ErrorIs(t, &ForbiddenError{UserID: "u", Action: "x"}, ErrForbidden)
	assert.ErrorIs(t, &InsufficientBalanceError{UserID: "u"}, ErrInsufficientBalance)

	// Transaction failures keep their cause reachable.
	failed := &TransactionFailedError{Op: "create", Err: ErrConcurrentModification}
	assert.ErrorIs(t, failed, ErrTransactionFailed)
	assert.True(t, IsRetryable(failed))
	assert.False(t, IsClientError(failed))

	wrapped := fmt.Errorf("lookup: %w", &NotFoundError{Kind: "tutor", ID: "t"})
	assert.True(t, IsNotFound(wrapped))
	assert.True(t, IsClientError(wrapped))
	assert.False(t, IsClientError(errors.New("disk full")))
}

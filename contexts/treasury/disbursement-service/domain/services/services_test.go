package services

import (
	"errors"
	"testing"
	"time"

	"tokendrip/contexts/treasury/disbursement-service/domain/entities"
	domainerrors "tokendrip/contexts/treasury/disbursement-service/domain/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedRandom struct {
	values []int64
	calls  []int64
}

func (r *fixedRandom) Int64N(n int64) int64 {
	r.calls = append(r.calls, n)
	if len(r.values) == 0 {
		return n - 1
	}
	value := r.values[0]
	r.values = r.values[1:]
	return value
}

func TestRemainingCapacity(t *testing.T) {
	cases := []struct {
		name     string
		daily    int
		lifetime int
		today    int
		total    int
		want     Capacity
	}{
		{name: "fresh day unlimited lifetime", daily: 60, want: Capacity{Allowed: 60}},
		{name: "partially used day", daily: 60, today: 45, total: 45, want: Capacity{Allowed: 15}},
		{name: "lifetime caps below daily", daily: 60, lifetime: 100, today: 0, total: 90, want: Capacity{Allowed: 10}},
		{name: "daily exhausted", daily: 10, today: 10, total: 10, want: Capacity{Reason: QuotaReasonDailyExhausted}},
		{name: "lifetime exhausted", daily: 10, lifetime: 5, total: 5, want: Capacity{Reason: QuotaReasonLifetimeExhausted}},
		{name: "lifetime over target", daily: 10, lifetime: 5, total: 7, want: Capacity{Reason: QuotaReasonLifetimeExhausted}},
		{name: "zero daily target", daily: 0, want: Capacity{Reason: QuotaReasonDailyExhausted}},
		{name: "negative inputs are zero", daily: -3, lifetime: -1, today: -5, total: -5, want: Capacity{Reason: QuotaReasonDailyExhausted}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, RemainingCapacity(tc.daily, tc.lifetime, tc.today, tc.total))
		})
	}
}

func TestCanTransition(t *testing.T) {
	allowed := [][2]entities.DisbursementStatus{
		{entities.DisbursementStatusPending, entities.DisbursementStatusSubmitted},
		{entities.DisbursementStatusPending, entities.DisbursementStatusFailed},
		{entities.DisbursementStatusSubmitted, entities.DisbursementStatusConfirmed},
		{entities.DisbursementStatusSubmitted, entities.DisbursementStatusFailed},
	}
	for _, edge := range allowed {
		assert.True(t, CanTransition(edge[0], edge[1]), "%s -> %s", edge[0], edge[1])
	}

	forbidden := [][2]entities.DisbursementStatus{
		{entities.DisbursementStatusPending, entities.DisbursementStatusConfirmed},
		{entities.DisbursementStatusSubmitted, entities.DisbursementStatusPending},
		{entities.DisbursementStatusConfirmed, entities.DisbursementStatusFailed},
		{entities.DisbursementStatusFailed, entities.DisbursementStatusPending},
		{entities.DisbursementStatusFailed, entities.DisbursementStatusSubmitted},
		{entities.DisbursementStatusPending, entities.DisbursementStatusPending},
	}
	for _, edge := range forbidden {
		assert.False(t, CanTransition(edge[0], edge[1]), "%s -> %s", edge[0], edge[1])
	}
}

func TestAmountUpperBound(t *testing.T) {
	upper, err := AmountUpperBound("100")
	require.NoError(t, err)
	assert.Equal(t, int64(100), upper)

	upper, err = AmountUpperBound("7.9")
	require.NoError(t, err)
	assert.Equal(t, int64(7), upper)

	for _, bad := range []string{"", "abc", "0", "-5", "0.5"} {
		_, err := AmountUpperBound(bad)
		assert.True(t, errors.Is(err, domainerrors.ErrMissingSettings), "ceiling %q", bad)
	}
}

func TestDrawAmountStaysWithinBounds(t *testing.T) {
	low := &fixedRandom{values: []int64{0}}
	assert.Equal(t, int64(1), DrawAmount(low, 100))
	assert.Equal(t, []int64{100}, low.calls)

	high := &fixedRandom{values: []int64{99}}
	assert.Equal(t, int64(100), DrawAmount(high, 100))

	unused := &fixedRandom{}
	assert.Equal(t, int64(1), DrawAmount(unused, 1))
	assert.Empty(t, unused.calls)
}

func TestDrawSendTimeStaysInsideWindow(t *testing.T) {
	start := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(ScheduleWindow)

	first := DrawSendTime(&fixedRandom{values: []int64{0}}, start, end)
	assert.Equal(t, start, first)

	last := DrawSendTime(&fixedRandom{}, start, end)
	assert.True(t, last.Before(end))
	assert.Equal(t, end.Add(-time.Nanosecond), last)

	assert.Equal(t, start, DrawSendTime(&fixedRandom{}, start, start))
}

func TestValidateSettings(t *testing.T) {
	valid := entities.Settings{
		TokenRef:      "0x55d398326f99059fF775485246999027B3197955",
		AmountCeiling: "25",
		DailyTarget:   60,
	}
	require.NoError(t, ValidateSettings(valid))

	missingToken := valid
	missingToken.TokenRef = "  "
	assert.ErrorIs(t, ValidateSettings(missingToken), domainerrors.ErrInvalidSettings)

	badCeiling := valid
	badCeiling.AmountCeiling = "0"
	assert.ErrorIs(t, ValidateSettings(badCeiling), domainerrors.ErrInvalidSettings)

	negativeTarget := valid
	negativeTarget.LifetimeTarget = -1
	assert.ErrorIs(t, ValidateSettings(negativeTarget), domainerrors.ErrInvalidSettings)
}

func TestMaskCredential(t *testing.T) {
	assert.Equal(t, "", MaskCredential(""))
	assert.Equal(t, "********", MaskCredential("short"))
	assert.Equal(t, "********", MaskCredential("0123456789"))
	assert.Equal(t, "0xabcd...7890", MaskCredential("0xabcdef1234567890"))
}

func TestLifetimeLatchFiresOncePerCrossing(t *testing.T) {
	latch := &LifetimeLatch{}

	assert.False(t, latch.Observe(3, 5))
	assert.True(t, latch.Observe(5, 5))
	assert.False(t, latch.Observe(6, 5))

	// After a reset the count drops and the latch re-arms.
	assert.False(t, latch.Observe(0, 5))
	assert.True(t, latch.Observe(5, 5))

	assert.False(t, latch.Observe(10, 0))
}

package services

import (
	"time"

	domainerrors "tokendrip/contexts/treasury/disbursement-service/domain/errors"

	"github.com/shopspring/decimal"
)

// RandomSource is satisfied by *math/rand/v2.Rand.
type RandomSource interface {
	Int64N(n int64) int64
}

const ScheduleWindow = 24 * time.Hour

// AmountUpperBound converts a configured ceiling into the largest whole amount that
// may be drawn. Ceilings that are empty, non-numeric, non-positive or below one whole
// token are rejected as missing settings.
func AmountUpperBound(ceiling string) (int64, error) {
	value, err := decimal.NewFromString(ceiling)
	if err != nil || !value.IsPositive() {
		return 0, domainerrors.ErrMissingSettings
	}
	whole := value.Floor()
	if whole.LessThan(decimal.NewFromInt(1)) || whole.GreaterThan(decimal.NewFromInt(1<<62)) {
		return 0, domainerrors.ErrMissingSettings
	}
	return whole.IntPart(), nil
}

// DrawAmount returns an integer uniformly from [1, upper].
func DrawAmount(random RandomSource, upper int64) int64 {
	if upper <= 1 {
		return 1
	}
	return random.Int64N(upper) + 1
}

// DrawSendTime returns a time uniformly from [start, end).
func DrawSendTime(random RandomSource, start time.Time, end time.Time) time.Time {
	span := end.Sub(start)
	if span <= 0 {
		return start
	}
	return start.Add(time.Duration(random.Int64N(int64(span))))
}

package services

type QuotaReason string

const (
	QuotaReasonNone              QuotaReason = ""
	QuotaReasonDailyExhausted    QuotaReason = "daily-exhausted"
	QuotaReasonLifetimeExhausted QuotaReason = "lifetime-exhausted"
)

// Capacity is the number of disbursements a cycle may still create.
type Capacity struct {
	Allowed int
	Reason  QuotaReason
}

// RemainingCapacity compares already-scheduled counts against the configured targets.
// A lifetime target of zero means unlimited. Negative inputs are treated as zero.
func RemainingCapacity(dailyTarget, lifetimeTarget, scheduledToday, scheduledTotal int) Capacity {
	dailyTarget = nonNegative(dailyTarget)
	lifetimeTarget = nonNegative(lifetimeTarget)
	scheduledToday = nonNegative(scheduledToday)
	scheduledTotal = nonNegative(scheduledTotal)

	if lifetimeTarget > 0 && scheduledTotal >= lifetimeTarget {
		return Capacity{Allowed: 0, Reason: QuotaReasonLifetimeExhausted}
	}

	remainingDaily := nonNegative(dailyTarget - scheduledToday)
	remainingLifetime := remainingDaily
	if lifetimeTarget > 0 {
		remainingLifetime = nonNegative(lifetimeTarget - scheduledTotal)
	}

	allowed := min(remainingDaily, remainingLifetime)
	if allowed == 0 {
		return Capacity{Allowed: 0, Reason: QuotaReasonDailyExhausted}
	}
	return Capacity{Allowed: allowed}
}

func nonNegative(value int) int {
	if value < 0 {
		return 0
	}
	return value
}

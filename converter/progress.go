package converter

import (
	"time"
)

// timeRemainingEpsilon dampens the remaining-time estimate: once an
// estimate is published, a new one replaces it only when it is lower
// (minus this slack), so the countdown never visibly creeps upward on
// transient slowdowns.
const timeRemainingEpsilon = 100 * time.Millisecond

func nextTimeRemaining(
	prev time.Duration,
	elapsed time.Duration,
	processed uint64,
	total uint64,
) time.Duration {
	if total == 0 || processed == 0 {
		return prev
	}
	if processed >= total {
		return 0
	}

	perFrame := elapsed / time.Duration(processed)
	estimate := perFrame * time.Duration(total-processed)

	if prev == 0 {
		return estimate
	}
	if estimate < prev+timeRemainingEpsilon {
		return estimate
	}
	return prev
}

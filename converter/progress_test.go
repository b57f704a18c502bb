package converter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNextTimeRemaining(t *testing.T) {
	t.Run("no_total", func(t *testing.T) {
		require.Equal(t, time.Duration(0), nextTimeRemaining(0, time.Second, 10, 0))
	})

	t.Run("no_progress_yet", func(t *testing.T) {
		prev := 5 * time.Second
		require.Equal(t, prev, nextTimeRemaining(prev, time.Second, 0, 100))
	})

	t.Run("seeds_from_first_estimate", func(t *testing.T) {
		// 10 frames in 1s, 90 to go -> 9s
		require.Equal(t, 9*time.Second, nextTimeRemaining(0, time.Second, 10, 100))
	})

	t.Run("accepts_lower_estimates", func(t *testing.T) {
		prev := 9 * time.Second
		next := nextTimeRemaining(prev, time.Second, 20, 100)
		require.Equal(t, 4*time.Second, next)
	})

	t.Run("rejects_jumps_upward", func(t *testing.T) {
		prev := 4 * time.Second
		// a stall: 20 frames in 10s would naively predict 40s remaining
		next := nextTimeRemaining(prev, 10*time.Second, 20, 100)
		require.Equal(t, prev, next)
	})

	t.Run("tolerates_jitter_within_epsilon", func(t *testing.T) {
		prev := 4 * time.Second
		elapsed := 1020 * time.Millisecond // ~4.08s estimate at 20/100
		next := nextTimeRemaining(prev, elapsed, 20, 100)
		require.Equal(t, elapsed/20*80, next)
	})

	t.Run("never_creeps_upward_under_sustained_load", func(t *testing.T) {
		var remaining time.Duration
		elapsed := time.Duration(0)
		total := uint64(1000)
		for processed := uint64(1); processed < total; processed++ {
			perFrame := 10 * time.Millisecond
			if processed%100 == 0 {
				perFrame = 500 * time.Millisecond // periodic stall
			}
			elapsed += perFrame
			prev := remaining
			remaining = nextTimeRemaining(remaining, elapsed, processed, total)
			if prev > 0 {
				require.Less(t, remaining, prev+timeRemainingEpsilon, "frame %d", processed)
			}
		}
		require.Equal(t, time.Duration(0), nextTimeRemaining(remaining, elapsed, total, total))
	})
}

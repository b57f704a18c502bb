package libav

import (
	"testing"
	"time"

	"github.com/asticode/go-astiav"
	"github.com/stretchr/testify/require"
)

func TestTimestampConversion(t *testing.T) {
	tb := astiav.NewRational(1, 60)

	require.Equal(t, int64(0), timestampFromDuration(0, tb))
	require.Equal(t, int64(60), timestampFromDuration(time.Second, tb))
	require.Equal(t, int64(30), timestampFromDuration(500*time.Millisecond, tb))

	require.Equal(t, time.Second, durationFromTimestamp(60, tb))
	require.Equal(t, noDuration, durationFromTimestamp(-0x8000000000000000, tb))

	for _, ts := range []int64{0, 1, 59, 60, 12345} {
		require.Equal(t, ts, timestampFromDuration(durationFromTimestamp(ts, tb), tb))
	}
}

// duration.go provides conversions between FFmpeg timestamps and time.Duration.

package libav

import (
	"math"
	"time"

	"github.com/asticode/go-astiav"
)

const (
	// see https://ffmpeg.org/doxygen/trunk/group__lavu__time.html#ga2eaefe702f95f619ea6f2d08afa01be1
	avNoPTSValue = uint64(0x8000000000000000)
)

const (
	noDuration = time.Duration(math.MinInt64)
)

// containerTimeBase is the time base of FormatContext-level values,
// e.g. the container duration (AV_TIME_BASE units).
var containerTimeBase = astiav.NewRational(1, 1000000)

func durationFromTimestamp(t int64, timeBase astiav.Rational) time.Duration {
	if uint64(t) == avNoPTSValue {
		return noDuration
	}

	return time.Duration(float64(t) * timeBase.Float64() * float64(time.Second))
}

func timestampFromDuration(d time.Duration, timeBase astiav.Rational) int64 {
	if d == noDuration {
		return math.MinInt64 // equivalent to avNoPTSValue
	}

	return int64(math.Round(d.Seconds() / timeBase.Float64()))
}

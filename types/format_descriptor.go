package types

import (
	"fmt"
	"time"
)

// FormatDescriptor describes the input video stream. It is captured once
// from the source and never mutated afterwards: it drives the output
// buffer-pool geometry and the color-space configuration.
type FormatDescriptor struct {
	PixelFormatName string
	Width           int
	Height          int
	FrameRate       float64
	BitRate         int64
	Duration        time.Duration
	Color           ColorInfo
}

// TotalFrames estimates the amount of video frames in the stream. It is
// an estimate (duration times nominal frame rate), not an exact count,
// and is used only for progress reporting.
func (fd FormatDescriptor) TotalFrames() uint64 {
	if fd.FrameRate <= 0 || fd.Duration <= 0 {
		return 0
	}
	return uint64(fd.Duration.Seconds() * fd.FrameRate)
}

func (fd FormatDescriptor) String() string {
	return fmt.Sprintf(
		"FormatDescriptor(%s, %dx%d, %gfps, %s)",
		fd.PixelFormatName, fd.Width, fd.Height, fd.FrameRate, fd.Duration,
	)
}

package types

import (
	"time"
)

// ProgressSnapshot is the read-only progress surface exposed to the UI
// shell. A new snapshot is published after every processed video frame;
// FramesProcessed is monotonically non-decreasing and never exceeds
// TotalFrames.
type ProgressSnapshot struct {
	IsProcessing    bool
	FramesProcessed uint64
	TotalFrames     uint64
	TimeRemaining   time.Duration
}

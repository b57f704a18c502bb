package types

import (
	"time"
)

// ConversionResult describes a successfully finalized conversion. It is
// built from the finished output file's own metadata, not from in-memory
// counters: we trust the container, not the estimate.
type ConversionResult struct {
	OutputPath      string
	Elapsed         time.Duration
	OutputSizeBytes int64
	OutputDuration  time.Duration
}

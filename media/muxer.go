package media

import (
	"context"

	"github.com/xaionaro-go/spatialconv/frame"
)

// PairWriter accepts stereo frame pairs for the output video track.
//
// The writer is demand-driven: each receive from Demand grants
// permission to write one pair ("you may push more data now"). The
// channel is closed when the writer will never accept data again
// (abort, finalize).
type PairWriter interface {
	Demand() <-chan struct{}

	// WritePair submits one pair. A failure is non-fatal: the caller
	// logs it and drops the pair, no retry. The demand token consumed
	// for the pair is re-armed whether the write succeeds or not.
	WritePair(ctx context.Context, pair *frame.StereoFramePair) error

	// Skip reports that the demanded pair was dropped before reaching
	// the writer; it re-arms demand so the next pair can be requested.
	Skip(ctx context.Context)

	// Finish signals that no more pairs will arrive on this track.
	// Safe to call more than once.
	Finish(ctx context.Context)
}

// SampleWriter accepts pass-through audio samples for the output audio
// track; same demand discipline as PairWriter.
type SampleWriter interface {
	Demand() <-chan struct{}
	WriteSample(ctx context.Context, sample *AudioSample) error
	Finish(ctx context.Context)
}

// Muxer writes the destination container.
//
// Usage: configure the tracks, Start, write through the track writers
// while draining their demand channels, Finish each track, then
// Finalize (or Abort at any point).
type Muxer interface {
	ConfigureVideo(ctx context.Context, cfg VideoOutputConfig) error

	// ConfigureAudioPassthrough declares a bit-identical audio track
	// copied from the given source track. Never called when the source
	// has no audio.
	ConfigureAudioPassthrough(ctx context.Context, track AudioTrackInfo) error

	// Start opens the container for writing (header and friends).
	Start(ctx context.Context) error

	PairWriter() PairWriter
	SampleWriter() SampleWriter

	// Finalize closes the container properly. Permitted only after
	// every configured track was Finish-ed.
	Finalize(ctx context.Context) error

	// Abort tears the container down without finalizing it. The
	// partial output file is the caller's to delete.
	Abort(ctx context.Context) error
}

// MuxerFactory opens a destination location for writing.
type MuxerFactory func(ctx context.Context, path string) (Muxer, error)

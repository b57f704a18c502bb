// Package media defines the contracts between the conversion pipeline
// and its media endpoints: the source demultiplexer and the destination
// multiplexer. The libav-backed implementations live in media/libav;
// tests substitute in-memory fakes.
package media

import (
	"context"
	"fmt"
	"time"

	"github.com/xaionaro-go/spatialconv/frame"
	"github.com/xaionaro-go/spatialconv/types"
)

// AudioTrackInfo describes the source audio track. The codec parameters
// are opaque to the pipeline: audio passes through bit-identically, so
// the pipeline never interprets them.
type AudioTrackInfo struct {
	CodecName  string
	SampleRate int

	// Opaque carries the endpoint-native track description (for the
	// libav endpoints: the input stream) so the multiplexer can copy
	// codec parameters without the pipeline depending on them.
	Opaque any
}

// AudioSample is one timestamped audio sample passed through verbatim.
type AudioSample struct {
	PTS      time.Duration
	Duration time.Duration
	Data     []byte

	// Opaque carries the endpoint-native sample (for the libav
	// endpoints: the packet) to keep the pass-through bit-identical.
	Opaque any
}

func (s *AudioSample) String() string {
	if s == nil {
		return "AudioSample(nil)"
	}
	return fmt.Sprintf("AudioSample(pts:%s, len:%d)", s.PTS, len(s.Data))
}

// Demuxer reads a source container and yields per-track timestamped
// samples. Read methods return io.EOF exactly once the track is
// exhausted.
type Demuxer interface {
	// VideoFormat describes the (required) video track.
	VideoFormat() types.FormatDescriptor

	// AudioTrack describes the optional audio track.
	AudioTrack() (AudioTrackInfo, bool)

	// ReadVideoFrame pulls the next decoded video frame.
	ReadVideoFrame(ctx context.Context) (*frame.Frame, error)

	// ReadAudioSample pulls the next audio sample. Must not be called
	// when AudioTrack reports no track.
	ReadAudioSample(ctx context.Context) (*AudioSample, error)

	Close(ctx context.Context) error
}

// DemuxerFactory opens a source location for reading.
type DemuxerFactory func(ctx context.Context, path string) (Demuxer, error)

// Package libav implements the media endpoints on top of libav (FFmpeg)
// via the go-astiav bindings: a demuxing+decoding Input and an
// encoding+muxing Output.
package libav

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/asticode/go-astiav"
	"github.com/asticode/go-astikit"
	"github.com/xaionaro-go/xsync"

	"github.com/xaionaro-go/spatialconv/frame"
	"github.com/xaionaro-go/spatialconv/logger"
	"github.com/xaionaro-go/spatialconv/media"
	"github.com/xaionaro-go/spatialconv/types"
)

// Input demuxes a local media file and decodes its video stream into
// Go images. Compressed audio packets are passed through undecoded.
type Input struct {
	locker xsync.Mutex
	closer *astikit.Closer

	formatContext   *astiav.FormatContext
	videoStream     *astiav.Stream
	audioStream     *astiav.Stream
	decCodecContext *astiav.CodecContext
	decFrame        *astiav.Frame
	pkt             *astiav.Packet

	videoFormat types.FormatDescriptor
	audioTrack  *media.AudioTrackInfo

	pendingVideo []*frame.Frame
	pendingAudio []*media.AudioSample

	colorSeen bool
	demuxEOF  bool
	videoEOF  bool

	closeOnce sync.Once
}

var _ media.Demuxer = (*Input)(nil)

// Demux is a media.DemuxerFactory backed by libav.
func Demux(ctx context.Context, path string) (media.Demuxer, error) {
	return NewInput(ctx, path)
}

// NewInput opens the file at path and prepares it for demuxing.
func NewInput(ctx context.Context, path string) (_ret *Input, _err error) {
	logger.Debugf(ctx, "NewInput(ctx, '%s')", path)
	defer func() { logger.Debugf(ctx, "/NewInput(ctx, '%s'): %v", path, _err) }()

	in := &Input{
		closer: astikit.NewCloser(),
	}
	defer func() {
		if _err != nil {
			if err := in.closer.Close(); err != nil {
				logger.Errorf(ctx, "unable to close the half-opened input '%s': %v", path, err)
			}
		}
	}()

	if in.formatContext = astiav.AllocFormatContext(); in.formatContext == nil {
		return nil, fmt.Errorf("unable to allocate a format context")
	}
	in.closer.Add(in.formatContext.Free)

	if err := in.formatContext.OpenInput(path, nil, nil); err != nil {
		return nil, fmt.Errorf("unable to open input '%s': %w", path, err)
	}
	in.closer.Add(in.formatContext.CloseInput)

	if err := in.formatContext.FindStreamInfo(nil); err != nil {
		return nil, fmt.Errorf("unable to find the stream info of '%s': %w", path, err)
	}

	for _, is := range in.formatContext.Streams() {
		switch is.CodecParameters().MediaType() {
		case astiav.MediaTypeVideo:
			if in.videoStream == nil {
				in.videoStream = is
			}
		case astiav.MediaTypeAudio:
			if in.audioStream == nil {
				in.audioStream = is
			}
		}
	}

	if in.audioStream != nil {
		in.audioTrack = &media.AudioTrackInfo{
			CodecName:  in.audioStream.CodecParameters().CodecID().Name(),
			SampleRate: in.audioStream.CodecParameters().SampleRate(),
			Opaque:     in.audioStream,
		}
	}

	in.pkt = astiav.AllocPacket()
	in.closer.Add(in.pkt.Free)

	if in.videoStream == nil {
		// the zero-valued descriptor tells the caller there is nothing
		// to convert here
		in.videoEOF = true
		return in, nil
	}

	if err := in.openVideoDecoder(ctx); err != nil {
		return nil, err
	}

	frameRate := in.formatContext.GuessFrameRate(in.videoStream, nil)
	in.videoFormat = types.FormatDescriptor{
		PixelFormatName: in.decCodecContext.PixelFormat().Name(),
		Width:           in.videoStream.CodecParameters().Width(),
		Height:          in.videoStream.CodecParameters().Height(),
		FrameRate:       frameRate.Float64(),
		BitRate:         in.videoStream.CodecParameters().BitRate(),
		Duration:        durationFromTimestamp(in.formatContext.Duration(), containerTimeBase),
	}

	// decode ahead until the first frame so that the descriptor carries
	// the color tags the stream actually uses
	if err := in.prime(ctx); err != nil {
		return nil, err
	}
	return in, nil
}

func (in *Input) openVideoDecoder(ctx context.Context) error {
	decCodec := astiav.FindDecoder(in.videoStream.CodecParameters().CodecID())
	if decCodec == nil {
		return fmt.Errorf("unable to find a decoder for codec %s", in.videoStream.CodecParameters().CodecID())
	}

	if in.decCodecContext = astiav.AllocCodecContext(decCodec); in.decCodecContext == nil {
		return fmt.Errorf("unable to allocate a decoder context")
	}
	in.closer.Add(in.decCodecContext.Free)

	if err := in.videoStream.CodecParameters().ToCodecContext(in.decCodecContext); err != nil {
		return fmt.Errorf("unable to copy the codec parameters into the decoder context: %w", err)
	}
	in.decCodecContext.SetFramerate(in.formatContext.GuessFrameRate(in.videoStream, nil))

	if err := in.decCodecContext.Open(decCodec, nil); err != nil {
		return fmt.Errorf("unable to open the decoder context: %w", err)
	}
	in.decCodecContext.SetTimeBase(in.videoStream.TimeBase())

	in.decFrame = astiav.AllocFrame()
	in.closer.Add(in.decFrame.Free)
	logger.Debugf(ctx, "opened the video decoder: %s", decCodec.Name())
	return nil
}

func (in *Input) prime(ctx context.Context) error {
	for len(in.pendingVideo) == 0 && !in.videoEOF {
		if err := in.pump(ctx); err != nil {
			return fmt.Errorf("unable to decode the first video frame: %w", err)
		}
	}
	return nil
}

// VideoFormat implements media.Demuxer.
func (in *Input) VideoFormat() types.FormatDescriptor {
	return in.videoFormat
}

// AudioTrack implements media.Demuxer.
func (in *Input) AudioTrack() (media.AudioTrackInfo, bool) {
	if in.audioTrack == nil {
		return media.AudioTrackInfo{}, false
	}
	return *in.audioTrack, true
}

// ReadVideoFrame implements media.Demuxer. It returns io.EOF once the
// video stream is fully drained.
func (in *Input) ReadVideoFrame(ctx context.Context) (*frame.Frame, error) {
	return xsync.DoR2(ctx, &in.locker, func() (*frame.Frame, error) {
		for len(in.pendingVideo) == 0 {
			if in.videoEOF {
				return nil, io.EOF
			}
			if err := in.pump(ctx); err != nil {
				return nil, err
			}
		}
		f := in.pendingVideo[0]
		in.pendingVideo = in.pendingVideo[1:]
		return f, nil
	})
}

// ReadAudioSample implements media.Demuxer. It returns io.EOF once the
// audio stream is fully drained.
func (in *Input) ReadAudioSample(ctx context.Context) (*media.AudioSample, error) {
	return xsync.DoR2(ctx, &in.locker, func() (*media.AudioSample, error) {
		if in.audioStream == nil {
			return nil, io.EOF
		}
		for len(in.pendingAudio) == 0 {
			if in.demuxEOF {
				return nil, io.EOF
			}
			if err := in.pump(ctx); err != nil {
				return nil, err
			}
		}
		sample := in.pendingAudio[0]
		in.pendingAudio = in.pendingAudio[1:]
		return sample, nil
	})
}

// pump reads the next packet from the container and routes it to the
// matching pending queue.
func (in *Input) pump(ctx context.Context) error {
	if in.demuxEOF {
		return in.flushVideoDecoder(ctx)
	}

	if err := in.formatContext.ReadFrame(in.pkt); err != nil {
		if errors.Is(err, astiav.ErrEof) {
			logger.Debugf(ctx, "the container is exhausted")
			in.demuxEOF = true
			if in.videoStream == nil {
				in.videoEOF = true
				return nil
			}
			return in.flushVideoDecoder(ctx)
		}
		return fmt.Errorf("unable to read a packet: %w", err)
	}
	defer in.pkt.Unref()

	switch {
	case in.videoStream != nil && in.pkt.StreamIndex() == in.videoStream.Index():
		return in.decodeVideoPacket(ctx, in.pkt)
	case in.audioStream != nil && in.pkt.StreamIndex() == in.audioStream.Index():
		in.queueAudioPacket(in.pkt)
	}
	return nil
}

func (in *Input) decodeVideoPacket(ctx context.Context, pkt *astiav.Packet) error {
	if pkt != nil {
		pkt.RescaleTs(in.videoStream.TimeBase(), in.decCodecContext.TimeBase())
	}
	if err := in.decCodecContext.SendPacket(pkt); err != nil {
		return fmt.Errorf("unable to send a packet to the decoder: %w", err)
	}

	for {
		if err := in.decCodecContext.ReceiveFrame(in.decFrame); err != nil {
			if errors.Is(err, astiav.ErrEof) {
				in.videoEOF = true
				return nil
			}
			if errors.Is(err, astiav.ErrEagain) {
				return nil
			}
			return fmt.Errorf("unable to receive a frame from the decoder: %w", err)
		}
		if err := in.queueVideoFrame(ctx, in.decFrame); err != nil {
			in.decFrame.Unref()
			return err
		}
		in.decFrame.Unref()
	}
}

func (in *Input) flushVideoDecoder(ctx context.Context) error {
	logger.Debugf(ctx, "flushing the video decoder")
	return in.decodeVideoPacket(ctx, nil)
}

func (in *Input) queueVideoFrame(ctx context.Context, f *astiav.Frame) error {
	if !in.colorSeen {
		in.colorSeen = true
		in.videoFormat.Color.Matrix = matrixCoefficientsFromLibav(f.ColorSpace())
	}

	img, err := f.Data().GuessImageFormat()
	if err != nil {
		return fmt.Errorf("unable to guess the image format: %w", err)
	}
	if err := f.Data().ToImage(img); err != nil {
		return fmt.Errorf("unable to convert the frame into Go's format: %w", err)
	}

	frameDuration := time.Duration(0)
	if in.videoFormat.FrameRate > 0 {
		frameDuration = time.Duration(float64(time.Second) / in.videoFormat.FrameRate)
	}
	in.pendingVideo = append(in.pendingVideo, &frame.Frame{
		Image:    img,
		PTS:      durationFromTimestamp(f.Pts(), in.decCodecContext.TimeBase()),
		Duration: frameDuration,
	})
	logger.Tracef(ctx, "queued a video frame with PTS %d", f.Pts())
	return nil
}

func (in *Input) queueAudioPacket(pkt *astiav.Packet) {
	clone := astiav.AllocPacket()
	clone.Ref(pkt)
	in.pendingAudio = append(in.pendingAudio, &media.AudioSample{
		PTS:      durationFromTimestamp(pkt.Pts(), in.audioStream.TimeBase()),
		Duration: durationFromTimestamp(pkt.Duration(), in.audioStream.TimeBase()),
		// the payload stays in the native packet
		Opaque: clone,
	})
}

// Close implements media.Demuxer.
func (in *Input) Close(ctx context.Context) (_err error) {
	logger.Debugf(ctx, "Close")
	defer func() { logger.Debugf(ctx, "/Close: %v", _err) }()

	in.closeOnce.Do(func() {
		in.locker.Do(ctx, func() {
			for _, sample := range in.pendingAudio {
				if pkt, ok := sample.Opaque.(*astiav.Packet); ok {
					pkt.Free()
				}
			}
			in.pendingAudio = nil
			in.pendingVideo = nil
			_err = in.closer.Close()
		})
	})
	return
}

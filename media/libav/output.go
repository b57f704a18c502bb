package libav

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"sync"

	"github.com/asticode/go-astiav"
	"github.com/asticode/go-astikit"
	"github.com/xaionaro-go/xsync"

	"github.com/xaionaro-go/spatialconv/frame"
	"github.com/xaionaro-go/spatialconv/logger"
	"github.com/xaionaro-go/spatialconv/media"
)

// DefaultVideoCodec is the encoder used when the output configuration
// does not request a specific one.
const DefaultVideoCodec = astiav.CodecIDH264

// Output encodes stereo frame pairs into an eye-sequential video stream
// and muxes them, together with passed-through audio packets, into a
// local media file. Each stereo pair occupies two consecutive frames of
// the output stream: the left eye view at an even timestamp, the right
// eye view right after it.
type Output struct {
	locker xsync.Mutex
	closer *astikit.Closer

	url           string
	formatContext *astiav.FormatContext

	videoStream     *astiav.Stream
	encCodecContext *astiav.CodecContext
	encPkt          *astiav.Packet
	scaler          *astiav.SoftwareScaleContext
	rgbaFrame       *astiav.Frame
	encFrame        *astiav.Frame

	audioStream     *astiav.Stream
	inAudioTimeBase astiav.Rational

	spatial media.SpatialTags

	started   bool
	finalized bool
	aborted   bool

	lastVideoPTS int64

	videoDemand    chan struct{}
	audioDemand    chan struct{}
	videoCloseOnce sync.Once
	audioCloseOnce sync.Once
}

var _ media.Muxer = (*Output)(nil)

// Mux is a media.MuxerFactory backed by libav.
func Mux(ctx context.Context, path string) (media.Muxer, error) {
	return NewOutput(ctx, path)
}

// NewOutput allocates the muxing context for the file at path. The
// streams are laid out via ConfigureVideo/ConfigureAudioPassthrough and
// the file is actually opened by Start.
func NewOutput(ctx context.Context, path string) (_ret *Output, _err error) {
	logger.Debugf(ctx, "NewOutput(ctx, '%s')", path)
	defer func() { logger.Debugf(ctx, "/NewOutput(ctx, '%s'): %v", path, _err) }()

	o := &Output{
		closer:       astikit.NewCloser(),
		url:          path,
		videoDemand:  make(chan struct{}, 1),
		audioDemand:  make(chan struct{}, 1),
		lastVideoPTS: -2,
	}

	formatContext, err := astiav.AllocOutputFormatContext(nil, "", path)
	if err != nil {
		return nil, fmt.Errorf("unable to allocate the output format context for '%s': %w", path, err)
	}
	if formatContext == nil {
		return nil, fmt.Errorf("the output format of '%s' is not supported", path)
	}
	o.formatContext = formatContext
	o.closer.Add(o.formatContext.Free)
	return o, nil
}

// ConfigureVideo implements media.Muxer.
func (o *Output) ConfigureVideo(ctx context.Context, cfg media.VideoOutputConfig) (_err error) {
	logger.Debugf(ctx, "ConfigureVideo(ctx, %#+v)", cfg)
	defer func() { logger.Debugf(ctx, "/ConfigureVideo(ctx, %#+v): %v", cfg, _err) }()

	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.FrameRate <= 0 {
		return fmt.Errorf("invalid video output configuration: %dx%d @ %f", cfg.Width, cfg.Height, cfg.FrameRate)
	}

	var encCodec *astiav.Codec
	if cfg.CodecName != "" {
		if encCodec = astiav.FindEncoderByName(cfg.CodecName); encCodec == nil {
			return fmt.Errorf("unable to find the encoder '%s'", cfg.CodecName)
		}
	} else {
		if encCodec = astiav.FindEncoder(DefaultVideoCodec); encCodec == nil {
			return fmt.Errorf("unable to find the encoder for codec %s", DefaultVideoCodec)
		}
	}

	if o.videoStream = o.formatContext.NewStream(nil); o.videoStream == nil {
		return fmt.Errorf("unable to create the output video stream")
	}

	if o.encCodecContext = astiav.AllocCodecContext(encCodec); o.encCodecContext == nil {
		return fmt.Errorf("unable to allocate the encoder context")
	}
	o.closer.Add(o.encCodecContext.Free)

	encPixelFormat := astiav.PixelFormatYuv420P
	if v := encCodec.PixelFormats(); len(v) > 0 {
		encPixelFormat = v[0]
	}

	// the output is eye-sequential: two encoded frames per source frame
	frameRate := int(math.Round(cfg.FrameRate))
	o.encCodecContext.SetWidth(cfg.Width)
	o.encCodecContext.SetHeight(cfg.Height)
	o.encCodecContext.SetPixelFormat(encPixelFormat)
	o.encCodecContext.SetSampleAspectRatio(astiav.NewRational(1, 1))
	o.encCodecContext.SetTimeBase(astiav.NewRational(1, frameRate*2))
	o.encCodecContext.SetFramerate(astiav.NewRational(frameRate*2, 1))
	if o.formatContext.OutputFormat().Flags().Has(astiav.IOFormatFlagGlobalheader) {
		o.encCodecContext.SetFlags(o.encCodecContext.Flags() | astiav.CodecContextFlags(astiav.CodecContextFlagGlobalHeader))
	}

	if err := o.encCodecContext.Open(encCodec, nil); err != nil {
		return fmt.Errorf("unable to open the encoder context: %w", err)
	}
	if err := o.videoStream.CodecParameters().FromCodecContext(o.encCodecContext); err != nil {
		return fmt.Errorf("unable to copy the encoder parameters into the output stream: %w", err)
	}
	o.videoStream.SetTimeBase(o.encCodecContext.TimeBase())

	o.encPkt = astiav.AllocPacket()
	o.closer.Add(o.encPkt.Free)

	var err error
	o.scaler, err = astiav.CreateSoftwareScaleContext(
		cfg.Width,
		cfg.Height,
		astiav.PixelFormatRgba,
		cfg.Width,
		cfg.Height,
		encPixelFormat,
		astiav.NewSoftwareScaleContextFlags(astiav.SoftwareScaleContextFlagBilinear),
	)
	if err != nil {
		return fmt.Errorf("unable to create a software scale context: %w", err)
	}
	o.closer.Add(o.scaler.Free)

	o.rgbaFrame = astiav.AllocFrame()
	o.closer.Add(o.rgbaFrame.Free)
	o.rgbaFrame.SetWidth(cfg.Width)
	o.rgbaFrame.SetHeight(cfg.Height)
	o.rgbaFrame.SetPixelFormat(astiav.PixelFormatRgba)
	if err := o.rgbaFrame.AllocBuffer(0); err != nil {
		return fmt.Errorf("unable to allocate the intermediate frame buffer: %w", err)
	}

	o.encFrame = astiav.AllocFrame()
	o.closer.Add(o.encFrame.Free)

	o.spatial = cfg.Spatial
	logger.Debugf(ctx, "configured the video output: %dx%d, %s, eye-sequential at %d fps",
		cfg.Width, cfg.Height, encCodec.Name(), frameRate*2)
	return nil
}

// ConfigureAudioPassthrough implements media.Muxer. It requires the
// audio track to originate from a libav-backed Input.
func (o *Output) ConfigureAudioPassthrough(ctx context.Context, track media.AudioTrackInfo) (_err error) {
	logger.Debugf(ctx, "ConfigureAudioPassthrough(ctx, %#+v)", track)
	defer func() { logger.Debugf(ctx, "/ConfigureAudioPassthrough(ctx, %#+v): %v", track, _err) }()

	inStream, ok := track.Opaque.(*astiav.Stream)
	if !ok {
		return fmt.Errorf("audio passthrough requires a libav-backed source track, got %T", track.Opaque)
	}

	if o.audioStream = o.formatContext.NewStream(nil); o.audioStream == nil {
		return fmt.Errorf("unable to create the output audio stream")
	}
	if err := inStream.CodecParameters().Copy(o.audioStream.CodecParameters()); err != nil {
		return fmt.Errorf("unable to copy the audio codec parameters: %w", err)
	}
	o.audioStream.CodecParameters().SetCodecTag(0)
	o.audioStream.SetTimeBase(inStream.TimeBase())
	o.inAudioTimeBase = inStream.TimeBase()
	return nil
}

// spatialMetadata converts the spatial annotation into the tag
// dictionary persisted on the video stream.
func spatialMetadata(tags media.SpatialTags) *astiav.Dictionary {
	d := astiav.NewDictionary()
	d.Set("spatial_hfov", fmt.Sprintf("%d", tags.HorizontalFOVDegrees), 0)
	d.Set("spatial_disparity_adjustment", fmt.Sprintf("%d", tags.HorizontalDisparityAdjustment), 0)
	return d
}

// Start implements media.Muxer: it opens the destination file, writes
// the container header and enables the demand channels.
func (o *Output) Start(ctx context.Context) (_err error) {
	logger.Debugf(ctx, "Start")
	defer func() { logger.Debugf(ctx, "/Start: %v", _err) }()

	return xsync.DoR1(ctx, &o.locker, func() error {
		if o.started {
			return fmt.Errorf("the muxer is already started")
		}
		if o.videoStream == nil {
			return fmt.Errorf("the video output is not configured")
		}

		if !o.formatContext.OutputFormat().Flags().Has(astiav.IOFormatFlagNofile) {
			ioContext, err := astiav.OpenIOContext(
				o.url,
				astiav.NewIOContextFlags(astiav.IOContextFlagWrite),
				nil,
				nil,
			)
			if err != nil {
				return fmt.Errorf("unable to open the IO context for '%s': %w", o.url, err)
			}
			o.closer.AddWithError(ioContext.Close)
			o.formatContext.SetPb(ioContext)
		}

		// the spatial annotation becomes stream-level tags so it ends
		// up written into the container; the dictionary is owned by
		// the stream from here on
		o.videoStream.SetMetadata(spatialMetadata(o.spatial))

		if err := o.formatContext.WriteHeader(nil); err != nil {
			return fmt.Errorf("unable to write the header of '%s': %w", o.url, err)
		}

		o.started = true
		o.videoDemand <- struct{}{}
		if o.audioStream != nil {
			o.audioDemand <- struct{}{}
		}
		return nil
	})
}

// PairWriter implements media.Muxer.
func (o *Output) PairWriter() media.PairWriter {
	return outputPairWriter{o}
}

// SampleWriter implements media.Muxer.
func (o *Output) SampleWriter() media.SampleWriter {
	return outputSampleWriter{o}
}

func (o *Output) refill(demand chan struct{}) {
	select {
	case demand <- struct{}{}:
	default:
	}
}

func (o *Output) writePair(ctx context.Context, pair *frame.StereoFramePair) (_err error) {
	logger.Tracef(ctx, "writePair(ctx, %s)", pair)
	defer func() { logger.Tracef(ctx, "/writePair(ctx, %s): %v", pair, _err) }()

	return xsync.DoR1(ctx, &o.locker, func() error {
		if !o.started || o.finalized || o.aborted {
			return fmt.Errorf("the destination is not accepting frames")
		}
		// one token per demanded pair, re-armed even when the write
		// fails: a failed pair is dropped, not retried
		defer o.refill(o.videoDemand)

		basePTS := timestampFromDuration(pair.PTS, o.encCodecContext.TimeBase())
		// the encoder time base counts eye frames, so the pair lands on
		// an even timestamp; rounding at fractional frame rates must
		// not break monotonicity
		basePTS -= basePTS % 2
		if basePTS <= o.lastVideoPTS {
			basePTS = o.lastVideoPTS + 2
		}
		o.lastVideoPTS = basePTS
		for i, view := range []frame.EyeView{pair.Left, pair.Right} {
			if err := o.encodeEyeFrame(ctx, view.Buffer, basePTS+int64(i)); err != nil {
				return fmt.Errorf("unable to encode the %s view: %w", view.Eye, err)
			}
		}
		return nil
	})
}

func (o *Output) skipPair(ctx context.Context) {
	logger.Tracef(ctx, "skipPair")
	o.locker.Do(ctx, func() {
		if !o.started || o.finalized || o.aborted {
			return
		}
		o.refill(o.videoDemand)
	})
}

func (o *Output) encodeEyeFrame(ctx context.Context, buffer *image.RGBA, pts int64) error {
	if err := o.rgbaFrame.MakeWritable(); err != nil {
		return fmt.Errorf("unable to make the intermediate frame writable: %w", err)
	}
	if err := o.rgbaFrame.Data().FromImage(buffer); err != nil {
		return fmt.Errorf("unable to import the buffer into the intermediate frame: %w", err)
	}
	if err := o.scaler.ScaleFrame(o.rgbaFrame, o.encFrame); err != nil {
		return fmt.Errorf("unable to convert the pixel format: %w", err)
	}
	o.encFrame.SetPts(pts)
	return o.encodeWriteFrame(ctx, o.encFrame)
}

func (o *Output) encodeWriteFrame(ctx context.Context, f *astiav.Frame) error {
	if err := o.encCodecContext.SendFrame(f); err != nil {
		return fmt.Errorf("unable to send a frame to the encoder: %w", err)
	}

	for {
		if err := o.encCodecContext.ReceivePacket(o.encPkt); err != nil {
			if errors.Is(err, astiav.ErrEof) || errors.Is(err, astiav.ErrEagain) {
				return nil
			}
			return fmt.Errorf("unable to receive a packet from the encoder: %w", err)
		}

		o.encPkt.SetStreamIndex(o.videoStream.Index())
		o.encPkt.RescaleTs(o.encCodecContext.TimeBase(), o.videoStream.TimeBase())
		err := o.formatContext.WriteInterleavedFrame(o.encPkt)
		o.encPkt.Unref()
		if err != nil {
			return fmt.Errorf("unable to write an encoded packet: %w", err)
		}
	}
}

func (o *Output) writeSample(ctx context.Context, sample *media.AudioSample) (_err error) {
	logger.Tracef(ctx, "writeSample(ctx, %s)", sample.PTS)
	defer func() { logger.Tracef(ctx, "/writeSample(ctx, %s): %v", sample.PTS, _err) }()

	return xsync.DoR1(ctx, &o.locker, func() error {
		// the clone is consumed here no matter how the write goes
		pkt, castOK := sample.Opaque.(*astiav.Packet)
		if castOK {
			defer pkt.Free()
		}

		if !o.started || o.finalized || o.aborted {
			return fmt.Errorf("the destination is not accepting samples")
		}
		// one token per demanded sample, re-armed even when the write
		// fails: a failed sample is dropped, not retried
		defer o.refill(o.audioDemand)
		if o.audioStream == nil {
			return fmt.Errorf("the audio output is not configured")
		}
		if !castOK {
			return fmt.Errorf("audio passthrough requires a libav-backed sample, got %T", sample.Opaque)
		}

		pkt.SetStreamIndex(o.audioStream.Index())
		pkt.RescaleTs(o.inAudioTimeBase, o.audioStream.TimeBase())
		if err := o.formatContext.WriteInterleavedFrame(pkt); err != nil {
			return fmt.Errorf("unable to write an audio packet: %w", err)
		}
		return nil
	})
}

func (o *Output) finishVideo(ctx context.Context) {
	logger.Debugf(ctx, "the video input is finished")
	o.videoCloseOnce.Do(func() { close(o.videoDemand) })
}

func (o *Output) finishAudio(ctx context.Context) {
	logger.Debugf(ctx, "the audio input is finished")
	o.audioCloseOnce.Do(func() { close(o.audioDemand) })
}

// Finalize implements media.Muxer: it flushes the encoder, writes the
// container trailer and closes the file.
func (o *Output) Finalize(ctx context.Context) (_err error) {
	logger.Debugf(ctx, "Finalize")
	defer func() { logger.Debugf(ctx, "/Finalize: %v", _err) }()

	return xsync.DoR1(ctx, &o.locker, func() error {
		if o.aborted {
			return fmt.Errorf("the muxer is already aborted")
		}
		if o.finalized {
			return nil
		}
		o.finalized = true
		o.finishVideo(ctx)
		o.finishAudio(ctx)

		if !o.started {
			return o.closer.Close()
		}
		if err := o.encodeWriteFrame(ctx, nil); err != nil {
			return fmt.Errorf("unable to flush the encoder: %w", err)
		}
		if err := o.formatContext.WriteTrailer(); err != nil {
			return fmt.Errorf("unable to write the trailer of '%s': %w", o.url, err)
		}
		return o.closer.Close()
	})
}

// Abort implements media.Muxer: it drops the session without writing
// the trailer. The partially written file is left for the caller to
// delete.
func (o *Output) Abort(ctx context.Context) (_err error) {
	logger.Debugf(ctx, "Abort")
	defer func() { logger.Debugf(ctx, "/Abort: %v", _err) }()

	return xsync.DoR1(ctx, &o.locker, func() error {
		if o.finalized || o.aborted {
			return nil
		}
		o.aborted = true
		o.finishVideo(ctx)
		o.finishAudio(ctx)
		return o.closer.Close()
	})
}

type outputPairWriter struct{ o *Output }

func (w outputPairWriter) Demand() <-chan struct{} {
	return w.o.videoDemand
}

func (w outputPairWriter) WritePair(ctx context.Context, pair *frame.StereoFramePair) error {
	return w.o.writePair(ctx, pair)
}

func (w outputPairWriter) Skip(ctx context.Context) {
	w.o.skipPair(ctx)
}

func (w outputPairWriter) Finish(ctx context.Context) {
	w.o.finishVideo(ctx)
}

type outputSampleWriter struct{ o *Output }

func (w outputSampleWriter) Demand() <-chan struct{} {
	return w.o.audioDemand
}

func (w outputSampleWriter) WriteSample(ctx context.Context, sample *media.AudioSample) error {
	return w.o.writeSample(ctx, sample)
}

func (w outputSampleWriter) Finish(ctx context.Context) {
	w.o.finishAudio(ctx)
}

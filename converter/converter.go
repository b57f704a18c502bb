// Package converter orchestrates the conversion of a side-by-side
// stereoscopic video file into a spatial (two-layer stereo) video file.
//
// A Converter owns:
//   - a frame processor that splits each decoded side-by-side picture
//     into per-eye buffers drawn from a bounded pool;
//   - per-session media endpoints (a demuxer for the source and a muxer
//     for the destination), created through the configured factories;
//   - two demand-driven pump loops (video and audio) that only read from
//     the source when the sink is ready to accept output.
//
// One Converter runs at most one session at a time; a second Convert
// while a session is active fails with ErrSessionBusy. The Converter is
// reusable: once a session finishes or is cancelled, it returns to idle
// and Convert may be called again.
package converter

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/facebookincubator/go-belt"
	"github.com/go-ng/xatomic"
	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/xcontext"
	"github.com/xaionaro-go/xsync"

	"github.com/xaionaro-go/spatialconv/frameproc"
	"github.com/xaionaro-go/spatialconv/logger"
	"github.com/xaionaro-go/spatialconv/media"
	"github.com/xaionaro-go/spatialconv/types"
)

// DefaultRetainedBufferCountHint is the per-eye buffer pool capacity
// used when the Config does not set one.
const DefaultRetainedBufferCountHint = 6

// Config defines how a Converter builds its sessions.
type Config struct {
	// DemuxerFactory opens the source endpoint of a session. Required.
	DemuxerFactory media.DemuxerFactory

	// MuxerFactory opens the destination endpoint of a session. Required.
	MuxerFactory media.MuxerFactory

	// Renderer performs the per-eye crop. When nil the default CPU
	// renderer is used.
	Renderer frameproc.Renderer

	// Access grants scoped access to endpoint paths. When nil the
	// grants are no-ops.
	Access media.AccessGranter

	// RetainedBufferCountHint caps the per-eye buffer pool. Zero means
	// DefaultRetainedBufferCountHint.
	RetainedBufferCountHint int

	// VideoCodecName overrides the video encoder of the destination.
	VideoCodecName string
}

// Converter converts side-by-side stereoscopic videos into spatial
// videos, one session at a time.
type Converter struct {
	locker xsync.Mutex
	cfg    Config
	proc   *frameproc.Processor

	// guarded by locker
	phase      types.Phase
	sess       *session
	lastResult *types.ConversionResult

	// accessed through xatomic
	progressValue *types.ProgressSnapshot
}

// New returns a Converter built from cfg.
func New(cfg Config) *Converter {
	if cfg.RetainedBufferCountHint <= 0 {
		cfg.RetainedBufferCountHint = DefaultRetainedBufferCountHint
	}
	if cfg.Access == nil {
		cfg.Access = media.NoAccessControl{}
	}
	return &Converter{
		cfg:  cfg,
		proc: frameproc.NewProcessor(cfg.Renderer),
	}
}

// Phase reports the current lifecycle phase of the Converter.
func (c *Converter) Phase(ctx context.Context) types.Phase {
	return xsync.DoR1(ctx, &c.locker, func() types.Phase {
		return c.phase
	})
}

// Progress returns the most recently published progress snapshot.
func (c *Converter) Progress() types.ProgressSnapshot {
	v := xatomic.LoadPointer(&c.progressValue)
	if v == nil {
		return types.ProgressSnapshot{}
	}
	return *v
}

// LastResult returns the result of the most recently completed session,
// if any.
func (c *Converter) LastResult(ctx context.Context) *types.ConversionResult {
	return xsync.DoR1(ctx, &c.locker, func() *types.ConversionResult {
		return c.lastResult
	})
}

func (c *Converter) publishProgress(snapshot types.ProgressSnapshot) {
	xatomic.StorePointer(&c.progressValue, &snapshot)
}

// Convert converts the file at sourcePath into a spatial video at
// destinationPath. It blocks until the session finishes, fails or is
// cancelled. When the session was cancelled, the returned error is
// ErrCancelled. When the conversion itself succeeded but the output
// file could not be inspected afterwards, the result is nil while the
// error is also nil.
func (c *Converter) Convert(
	ctx context.Context,
	sourcePath string,
	destinationPath string,
) (_ret *types.ConversionResult, _err error) {
	logger.Debugf(ctx, "Convert(ctx, '%s', '%s')", sourcePath, destinationPath)
	defer func() {
		logger.Debugf(ctx, "/Convert(ctx, '%s', '%s'): %v %v", sourcePath, destinationPath, _ret, _err)
	}()

	sess, err := c.begin(ctx, sourcePath, destinationPath)
	if err != nil {
		return nil, err
	}
	ctx = belt.WithField(ctx, "session_id", sess.id.String())

	var wg sync.WaitGroup
	wg.Add(1)
	observability.Go(ctx, func(ctx context.Context) {
		defer wg.Done()
		c.videoPumpLoop(ctx, sess)
	})
	if sess.audioRequired {
		wg.Add(1)
		observability.Go(ctx, func(ctx context.Context) {
			defer wg.Done()
			c.audioPumpLoop(ctx, sess)
		})
	}
	wg.Wait()

	switch {
	case sess.cancelToken.IsClosed():
		// Cancel already tore the session down.
		return nil, ErrCancelled{}
	case sess.isFinished():
		return c.finalize(ctx, sess)
	default:
		// the pumps bailed out without completing: either the context
		// died or the sink stopped accepting output
		c.abort(ctx, sess)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("the destination stopped accepting output before the source was exhausted")
	}
}

func (c *Converter) begin(
	ctx context.Context,
	sourcePath string,
	destinationPath string,
) (_ret *session, _err error) {
	logger.Debugf(ctx, "begin(ctx, '%s', '%s')", sourcePath, destinationPath)
	defer func() { logger.Debugf(ctx, "/begin(ctx, '%s', '%s'): %v", sourcePath, destinationPath, _err) }()

	sess := newSession(sourcePath, destinationPath)

	err := xsync.DoR1(ctx, &c.locker, func() error {
		if c.phase != types.PhaseIdle {
			return ErrSessionBusy{}
		}
		c.phase = types.PhasePreparing
		c.sess = sess
		return nil
	})
	if err != nil {
		return nil, err
	}

	defer func() {
		if _err == nil {
			return
		}
		sess.sourceGrant.Release(ctx)
		sess.destGrant.Release(ctx)
		if sess.demuxer != nil {
			if err := sess.demuxer.Close(ctx); err != nil {
				logger.Errorf(ctx, "unable to close the demuxer of '%s': %v", sourcePath, err)
			}
		}
		c.reset(ctx, sess)
	}()

	sourceGrant, err := c.cfg.Access.Grant(ctx, sourcePath)
	if err != nil {
		return nil, ErrAccessDenied{Path: sourcePath, Err: err}
	}
	sess.sourceGrant.grant = sourceGrant

	destGrant, err := c.cfg.Access.Grant(ctx, destinationPath)
	if err != nil {
		return nil, ErrAccessDenied{Path: destinationPath, Err: err}
	}
	sess.destGrant.grant = destGrant

	// a previous run might have left a file at the destination
	if err := os.Remove(destinationPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("unable to delete the pre-existing file at '%s': %w", destinationPath, err)
	}

	sess.demuxer, err = c.cfg.DemuxerFactory(ctx, sourcePath)
	if err != nil {
		return nil, fmt.Errorf("unable to open the source '%s': %w", sourcePath, err)
	}

	videoFormat := sess.demuxer.VideoFormat()
	logger.Tracef(ctx, "the source video format: %s", spew.Sdump(videoFormat))
	if videoFormat.Width <= 0 || videoFormat.Height <= 0 {
		return nil, ErrNoVideoTrack{}
	}
	sess.totalFrames = videoFormat.TotalFrames()
	sess.leftRegion, sess.rightRegion = frameproc.SplitSideBySide(videoFormat.Width, videoFormat.Height)

	if !c.proc.IsPreparedFor(ctx, videoFormat, c.cfg.RetainedBufferCountHint) {
		c.proc.Prepare(ctx, videoFormat, c.cfg.RetainedBufferCountHint)
		if !c.proc.IsPreparedFor(ctx, videoFormat, c.cfg.RetainedBufferCountHint) {
			return nil, ErrProcessorUnprepared{}
		}
	}

	sess.muxer, err = c.cfg.MuxerFactory(ctx, destinationPath)
	if err != nil {
		return nil, fmt.Errorf("unable to open the destination '%s': %w", destinationPath, err)
	}
	defer func() {
		if _err == nil {
			return
		}
		if err := sess.muxer.Abort(ctx); err != nil {
			logger.Errorf(ctx, "unable to abort the muxer of '%s': %v", destinationPath, err)
		}
	}()

	err = sess.muxer.ConfigureVideo(ctx, media.VideoOutputConfig{
		Width:     videoFormat.Width / 2,
		Height:    videoFormat.Height,
		FrameRate: videoFormat.FrameRate,
		Spatial:   media.DefaultSpatialTags,
		CodecName: c.cfg.VideoCodecName,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to configure the video output: %w", err)
	}

	if audioTrack, ok := sess.demuxer.AudioTrack(); ok {
		if err := sess.muxer.ConfigureAudioPassthrough(ctx, audioTrack); err != nil {
			return nil, fmt.Errorf("unable to configure the audio passthrough: %w", err)
		}
		sess.audioRequired = true
	}

	if err := sess.muxer.Start(ctx); err != nil {
		return nil, fmt.Errorf("unable to start the muxer: %w", err)
	}

	sess.startedAt = time.Now()
	err = xsync.DoR1(ctx, &c.locker, func() error {
		// Cancel might have raced us while the endpoints were being set up
		if c.sess != sess || sess.cancelToken.IsClosed() {
			return ErrCancelled{}
		}
		c.phase = types.PhaseProcessing
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.publishProgress(types.ProgressSnapshot{
		IsProcessing: true,
		TotalFrames:  sess.totalFrames,
	})
	return sess, nil
}

// markStreamDone sets one of the session's completion flags and, when
// both streams are complete, signals the finish.
func (c *Converter) markStreamDone(ctx context.Context, sess *session, flag *bool) {
	c.locker.Do(ctx, func() {
		*flag = true
		if sess.videoDone && (!sess.audioRequired || sess.audioDone) {
			sess.finish(ctx)
		}
	})
}

func (c *Converter) finalize(
	ctx context.Context,
	sess *session,
) (_ret *types.ConversionResult, _err error) {
	logger.Debugf(ctx, "finalize")
	defer func() { logger.Debugf(ctx, "/finalize: %v %v", _ret, _err) }()

	c.locker.Do(ctx, func() {
		c.phase = types.PhaseFinishing
	})
	c.publishProgress(types.ProgressSnapshot{})

	if err := sess.demuxer.Close(ctx); err != nil {
		logger.Errorf(ctx, "unable to close the demuxer of '%s': %v", sess.sourcePath, err)
	}

	if err := sess.muxer.Finalize(ctx); err != nil {
		sess.destGrant.Release(ctx)
		c.reset(ctx, sess)
		return nil, fmt.Errorf("unable to finalize the destination '%s': %w", sess.destinationPath, err)
	}

	// the result is collected from the finished file itself, and must
	// not be skipped just because the caller's context already died
	resultCtx := xcontext.DetachDone(ctx)
	var result *types.ConversionResult
	if stat, err := os.Stat(sess.destinationPath); err != nil {
		logger.Errorf(ctx, "unable to stat the output file '%s': %v", sess.destinationPath, err)
	} else {
		outputDuration, err := c.probeDuration(resultCtx, sess.destinationPath)
		if err != nil {
			logger.Errorf(ctx, "unable to probe the duration of '%s': %v", sess.destinationPath, err)
		}
		result = &types.ConversionResult{
			OutputPath:      sess.destinationPath,
			Elapsed:         time.Since(sess.startedAt),
			OutputSizeBytes: stat.Size(),
			OutputDuration:  outputDuration,
		}
	}

	sess.destGrant.Release(ctx)
	c.locker.Do(ctx, func() {
		if result != nil {
			c.lastResult = result
		}
	})
	c.reset(ctx, sess)
	return result, nil
}

// probeDuration reopens the produced file and reads back the duration
// its container reports.
func (c *Converter) probeDuration(
	ctx context.Context,
	path string,
) (_ret time.Duration, _err error) {
	logger.Tracef(ctx, "probeDuration(ctx, '%s')", path)
	defer func() { logger.Tracef(ctx, "/probeDuration(ctx, '%s'): %v %v", path, _ret, _err) }()

	demuxer, err := c.cfg.DemuxerFactory(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("unable to reopen '%s': %w", path, err)
	}
	defer func() {
		if err := demuxer.Close(ctx); err != nil {
			logger.Errorf(ctx, "unable to close the demuxer of '%s': %v", path, err)
		}
	}()
	return demuxer.VideoFormat().Duration, nil
}

func (c *Converter) abort(ctx context.Context, sess *session) {
	logger.Debugf(ctx, "abort")
	defer logger.Debugf(ctx, "/abort")

	sess.cancelToken.Close(ctx)
	if err := sess.muxer.Abort(ctx); err != nil {
		logger.Errorf(ctx, "unable to abort the muxer of '%s': %v", sess.destinationPath, err)
	}
	if err := os.Remove(sess.destinationPath); err != nil && !os.IsNotExist(err) {
		logger.Errorf(ctx, "unable to delete the partial output '%s': %v", sess.destinationPath, err)
	}
	sess.sourceGrant.Release(ctx)
	sess.destGrant.Release(ctx)
	if err := sess.demuxer.Close(ctx); err != nil {
		logger.Errorf(ctx, "unable to close the demuxer of '%s': %v", sess.sourcePath, err)
	}
	c.reset(ctx, sess)
}

// Cancel interrupts the active session, aborts the destination and
// deletes the partially written file at expectedOutputPath. It is a
// no-op when no session is active.
func (c *Converter) Cancel(ctx context.Context, expectedOutputPath string) (_err error) {
	logger.Debugf(ctx, "Cancel(ctx, '%s')", expectedOutputPath)
	defer func() { logger.Debugf(ctx, "/Cancel(ctx, '%s'): %v", expectedOutputPath, _err) }()

	return xsync.DoR1(ctx, &c.locker, func() error {
		sess := c.sess
		if sess == nil {
			return nil
		}
		switch c.phase {
		case types.PhasePreparing, types.PhaseProcessing:
		default:
			return nil
		}
		c.phase = types.PhaseCancelled
		sess.cancelToken.Close(ctx)
		// during Preparing the endpoints might not exist yet
		if sess.muxer != nil {
			if err := sess.muxer.Abort(ctx); err != nil {
				logger.Errorf(ctx, "unable to abort the muxer of '%s': %v", sess.destinationPath, err)
			}
		}
		if err := os.Remove(expectedOutputPath); err != nil && !os.IsNotExist(err) {
			logger.Errorf(ctx, "unable to delete the partial output '%s': %v", expectedOutputPath, err)
		}
		sess.sourceGrant.Release(ctx)
		sess.destGrant.Release(ctx)
		if sess.demuxer != nil {
			if err := sess.demuxer.Close(ctx); err != nil {
				logger.Errorf(ctx, "unable to close the demuxer of '%s': %v", sess.sourcePath, err)
			}
		}
		c.resetLocked(ctx)
		return nil
	})
}

// reset returns the Converter to idle, but only while sess is still the
// active session: a Cancel might have already reset it and a new
// session might have taken over since.
func (c *Converter) reset(ctx context.Context, sess *session) {
	c.locker.Do(ctx, func() {
		if c.sess != sess {
			return
		}
		c.resetLocked(ctx)
	})
}

func (c *Converter) resetLocked(ctx context.Context) {
	logger.Tracef(ctx, "resetting to the idle state")
	c.sess = nil
	c.phase = types.PhaseIdle
	c.publishProgress(types.ProgressSnapshot{})
}

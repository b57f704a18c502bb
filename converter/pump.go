package converter

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/xaionaro-go/spatialconv/frame"
	"github.com/xaionaro-go/spatialconv/logger"
	"github.com/xaionaro-go/spatialconv/media"
	"github.com/xaionaro-go/spatialconv/types"
)

// videoPumpLoop is the demand-driven video pump: it reads a frame from
// the source only after the sink signalled it is ready to accept one,
// so decoding never runs ahead of encoding.
func (c *Converter) videoPumpLoop(ctx context.Context, sess *session) {
	logger.Debugf(ctx, "videoPumpLoop")
	defer logger.Debugf(ctx, "/videoPumpLoop")

	w := sess.muxer.PairWriter()
	for {
		select {
		case <-ctx.Done():
			logger.Debugf(ctx, "the context is closed, stopping the video pump")
			return
		case <-sess.cancelToken.CloseChan():
			logger.Debugf(ctx, "the session is cancelled, stopping the video pump")
			return
		case _, ok := <-w.Demand():
			if !ok {
				logger.Debugf(ctx, "the sink no longer accepts video, stopping the video pump")
				return
			}
		}

		f, err := sess.demuxer.ReadVideoFrame(ctx)
		switch {
		case err == nil:
			c.processVideoFrame(ctx, sess, w, f)
		case errors.Is(err, io.EOF):
			logger.Debugf(ctx, "the video stream is exhausted")
			sess.sourceGrant.Release(ctx)
			c.markStreamDone(ctx, sess, &sess.videoDone)
			w.Finish(ctx)
			return
		default:
			logger.Errorf(ctx, "unable to read a video frame: %v", err)
			sess.sourceGrant.Release(ctx)
			c.markStreamDone(ctx, sess, &sess.videoDone)
			w.Finish(ctx)
			return
		}
	}
}

// processVideoFrame crops both eye views out of one side-by-side frame
// and submits the resulting pair to the sink. Any failure along the way
// drops this frame and keeps the session going: a dropped frame must
// still re-arm the sink's demand (WritePair does it internally, the
// pre-write drop paths do it via Skip), and progress advances either
// way so a few bad frames cannot stall the countdown.
func (c *Converter) processVideoFrame(
	ctx context.Context,
	sess *session,
	w media.PairWriter,
	f *frame.Frame,
) {
	defer c.advanceProgress(ctx, sess)

	leftBuffer, ok := c.proc.CropFrame(ctx, f.Image, sess.leftRegion)
	if !ok {
		logger.Debugf(ctx, "unable to crop the left eye view at %s, dropping the frame", f.PTS)
		w.Skip(ctx)
		return
	}
	rightBuffer, ok := c.proc.CropFrame(ctx, f.Image, sess.rightRegion)
	if !ok {
		logger.Debugf(ctx, "unable to crop the right eye view at %s, dropping the frame", f.PTS)
		c.proc.Release(ctx, leftBuffer)
		w.Skip(ctx)
		return
	}

	colorSpace := c.proc.ColorSpace(ctx)
	pair := &frame.StereoFramePair{
		Left: frame.EyeView{
			Buffer: leftBuffer,
			Eye:    types.EyeLeft,
			Color:  colorSpace,
		},
		Right: frame.EyeView{
			Buffer: rightBuffer,
			Eye:    types.EyeRight,
			Color:  colorSpace,
		},
		PTS: f.PTS,
	}
	if err := w.WritePair(ctx, pair); err != nil {
		logger.Errorf(ctx, "unable to write the frame pair at %s: %v", pair.PTS, err)
	}
	c.proc.Release(ctx, leftBuffer, rightBuffer)
}

// advanceProgress bumps the processed-frames counter and republishes
// the progress snapshot. When a total is known the counter saturates
// one short of it, since the total is an estimate; when the total is
// unknown the counter runs free.
func (c *Converter) advanceProgress(ctx context.Context, sess *session) {
	total := sess.totalFrames
	processed := sess.framesProcessed.Load()
	if total == 0 || processed < total-1 {
		processed = sess.framesProcessed.Inc()
	}

	elapsed := time.Since(sess.startedAt)
	previous := sess.timeRemaining.Load()
	next := nextTimeRemaining(previous, elapsed, processed, total)
	sess.timeRemaining.Store(next)

	c.publishProgress(types.ProgressSnapshot{
		IsProcessing:    true,
		FramesProcessed: processed,
		TotalFrames:     total,
		TimeRemaining:   next,
	})
	logger.Tracef(ctx, "progress: %d/%d, %s remaining", processed, total, next)
}

// audioPumpLoop passes compressed audio samples through to the sink,
// one per demand signal.
func (c *Converter) audioPumpLoop(ctx context.Context, sess *session) {
	logger.Debugf(ctx, "audioPumpLoop")
	defer logger.Debugf(ctx, "/audioPumpLoop")

	w := sess.muxer.SampleWriter()
	for {
		select {
		case <-ctx.Done():
			logger.Debugf(ctx, "the context is closed, stopping the audio pump")
			return
		case <-sess.cancelToken.CloseChan():
			logger.Debugf(ctx, "the session is cancelled, stopping the audio pump")
			return
		case _, ok := <-w.Demand():
			if !ok {
				logger.Debugf(ctx, "the sink no longer accepts audio, stopping the audio pump")
				return
			}
		}

		sample, err := sess.demuxer.ReadAudioSample(ctx)
		switch {
		case err == nil:
			if err := w.WriteSample(ctx, sample); err != nil {
				logger.Errorf(ctx, "unable to write the audio sample at %s: %v", sample.PTS, err)
			}
		case errors.Is(err, io.EOF):
			logger.Debugf(ctx, "the audio stream is exhausted")
			c.markStreamDone(ctx, sess, &sess.audioDone)
			w.Finish(ctx)
			return
		default:
			logger.Errorf(ctx, "unable to read an audio sample: %v", err)
			c.markStreamDone(ctx, sess, &sess.audioDone)
			w.Finish(ctx)
			return
		}
	}
}

package frameproc

import (
	"context"
	"image"

	"github.com/xaionaro-go/spatialconv/logger"
	"github.com/xaionaro-go/spatialconv/pool"
	"github.com/xaionaro-go/spatialconv/types"
	"github.com/xaionaro-go/xsync"
)

// Processor crops a source image into per-eye regions and renders each
// of them into a freshly pooled output buffer.
//
// A Processor must be prepared before any crop is attempted; an
// unprepared processor fails every CropFrame call (non-fatally: the
// caller skips the frame). Prepare is idempotent and may be called
// again with a different format, which drops the previous pool.
type Processor struct {
	locker   xsync.Mutex
	renderer Renderer

	prepared   bool
	descriptor types.FormatDescriptor
	hint       int
	bufferSize image.Point
	colorSpace types.ColorSpace
	bufferPool *pool.Pool[image.RGBA]
}

// NewProcessor constructs a Processor rendering through the given
// Renderer; a nil renderer selects the default CPU one.
func NewProcessor(renderer Renderer) *Processor {
	if renderer == nil {
		renderer = NewRenderer()
	}
	return &Processor{
		renderer: renderer,
	}
}

// Prepare derives the output geometry and color space from the source
// format and constructs the buffer pool, eagerly filled up to
// retainedBufferCountHint. The prepared flag is set only if the pool
// construction succeeds; on failure the processor stays unprepared and
// every subsequent CropFrame call reports a failure.
func (p *Processor) Prepare(
	ctx context.Context,
	fd types.FormatDescriptor,
	retainedBufferCountHint int,
) {
	logger.Debugf(ctx, "Prepare(ctx, %s, %d)", fd, retainedBufferCountHint)
	p.locker.Do(ctx, func() {
		p.resetLocked(ctx)

		p.bufferSize = image.Point{X: fd.Width / 2, Y: fd.Height}
		p.colorSpace = OutputColorSpace(fd.Color)

		bufferPool, err := pool.NewPool(
			retainedBufferCountHint,
			func() (*image.RGBA, error) {
				return p.renderer.AllocBuffer(p.bufferSize)
			},
			nil,
		)
		if err != nil {
			logger.Errorf(ctx, "unable to construct the buffer pool: %v", err)
			return
		}

		p.bufferPool = bufferPool
		p.descriptor = fd
		p.hint = retainedBufferCountHint
		p.prepared = true
		logger.Debugf(ctx,
			"prepared: buffers %dx%d, color space %s",
			p.bufferSize.X, p.bufferSize.Y, p.colorSpace,
		)
	})
}

// IsPreparedFor reports whether the processor is already configured for
// exactly this format and hint, so an orchestrator can skip re-preparing
// between identical runs.
func (p *Processor) IsPreparedFor(
	ctx context.Context,
	fd types.FormatDescriptor,
	retainedBufferCountHint int,
) bool {
	return xsync.DoR1(ctx, &p.locker, func() bool {
		return p.prepared && p.descriptor == fd && p.hint == retainedBufferCountHint
	})
}

// ColorSpace returns the output color space derived by the last
// successful Prepare.
func (p *Processor) ColorSpace(ctx context.Context) types.ColorSpace {
	return xsync.DoR1(ctx, &p.locker, func() types.ColorSpace {
		return p.colorSpace
	})
}

// CropFrame crops the source image to targetRegion and renders the
// result into a pooled buffer. It reports false when the processor is
// unprepared, when the pool is exhausted or when the render fails; the
// caller must treat that as "this frame could not be produced" and skip
// it, never crash the pipeline.
//
// The lock is held across the render on purpose: a concurrent Prepare
// must not swap the pool out from under an in-flight acquire.
func (p *Processor) CropFrame(
	ctx context.Context,
	img image.Image,
	targetRegion image.Rectangle,
) (*image.RGBA, bool) {
	type result struct {
		buf *image.RGBA
		ok  bool
	}
	r := xsync.DoR1(ctx, &p.locker, func() result {
		if !p.prepared {
			logger.Tracef(ctx, "CropFrame: not prepared")
			return result{}
		}
		buf, ok := p.bufferPool.Get()
		if !ok {
			logger.Debugf(ctx, "CropFrame: the buffer pool is exhausted")
			return result{}
		}
		if err := p.renderer.Render(ctx, buf, img, targetRegion); err != nil {
			logger.Errorf(ctx, "unable to render the region %v: %v", targetRegion, err)
			p.bufferPool.Put(buf)
			return result{}
		}
		return result{buf: buf, ok: true}
	})
	return r.buf, r.ok
}

// Release returns buffers to the pool once the multiplexer consumed
// them.
func (p *Processor) Release(ctx context.Context, buffers ...*image.RGBA) {
	p.locker.Do(ctx, func() {
		if p.bufferPool == nil {
			return
		}
		p.bufferPool.Put(buffers...)
	})
}

// Reset drops the pool, the cached descriptor and the color space,
// returning the processor to its unprepared baseline.
func (p *Processor) Reset(ctx context.Context) {
	p.locker.Do(ctx, func() {
		p.resetLocked(ctx)
	})
}

func (p *Processor) resetLocked(ctx context.Context) {
	logger.Tracef(ctx, "resetLocked")
	p.prepared = false
	p.bufferPool = nil
	p.descriptor = types.FormatDescriptor{}
	p.hint = 0
	p.colorSpace = types.ColorSpace{}
	p.bufferSize = image.Point{}
}

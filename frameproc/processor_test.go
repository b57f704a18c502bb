package frameproc

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/spatialconv/types"
)

var testDescriptor = types.FormatDescriptor{
	PixelFormatName: "yuv420p",
	Width:           8,
	Height:          4,
	FrameRate:       30,
}

// sideBySideImage returns a stereo test frame: the left half is red,
// the right half is blue.
func sideBySideImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x < width/2 {
				img.Set(x, y, color.RGBA{R: 255, A: 255})
			} else {
				img.Set(x, y, color.RGBA{B: 255, A: 255})
			}
		}
	}
	return img
}

func TestProcessorUnpreparedCropFails(t *testing.T) {
	ctx := context.Background()
	p := NewProcessor(nil)

	_, ok := p.CropFrame(ctx, sideBySideImage(8, 4), image.Rect(0, 0, 4, 4))
	require.False(t, ok)
}

func TestProcessorCropsBothEyes(t *testing.T) {
	ctx := context.Background()
	p := NewProcessor(nil)
	p.Prepare(ctx, testDescriptor, 4)

	src := sideBySideImage(8, 4)
	left, right := SplitSideBySide(8, 4)

	leftBuf, ok := p.CropFrame(ctx, src, left)
	require.True(t, ok)
	rightBuf, ok := p.CropFrame(ctx, src, right)
	require.True(t, ok)

	// Both buffers are half-width, full-height and zero-origined.
	require.Equal(t, image.Rect(0, 0, 4, 4), leftBuf.Bounds())
	require.Equal(t, image.Rect(0, 0, 4, 4), rightBuf.Bounds())

	require.Equal(t, color.RGBA{R: 255, A: 255}, leftBuf.RGBAAt(0, 0))
	require.Equal(t, color.RGBA{R: 255, A: 255}, leftBuf.RGBAAt(3, 3))
	require.Equal(t, color.RGBA{B: 255, A: 255}, rightBuf.RGBAAt(0, 0))
	require.Equal(t, color.RGBA{B: 255, A: 255}, rightBuf.RGBAAt(3, 3))

	p.Release(ctx, leftBuf, rightBuf)
}

func TestProcessorPoolExhaustion(t *testing.T) {
	ctx := context.Background()
	p := NewProcessor(nil)
	p.Prepare(ctx, testDescriptor, 2)

	src := sideBySideImage(8, 4)
	region, _ := SplitSideBySide(8, 4)

	a, ok := p.CropFrame(ctx, src, region)
	require.True(t, ok)
	b, ok := p.CropFrame(ctx, src, region)
	require.True(t, ok)

	// Past the retained-count hint the request fails instead of growing
	// the pool.
	_, ok = p.CropFrame(ctx, src, region)
	require.False(t, ok)

	p.Release(ctx, a)
	c, ok := p.CropFrame(ctx, src, region)
	require.True(t, ok)
	p.Release(ctx, b, c)
}

func TestProcessorPrepareIsIdempotent(t *testing.T) {
	ctx := context.Background()
	p := NewProcessor(nil)

	p.Prepare(ctx, testDescriptor, 2)
	require.True(t, p.IsPreparedFor(ctx, testDescriptor, 2))

	// Re-preparing with another geometry drops the previous pool and
	// reconfigures from scratch.
	other := testDescriptor
	other.Width = 16
	other.Height = 8
	p.Prepare(ctx, other, 3)
	require.False(t, p.IsPreparedFor(ctx, testDescriptor, 2))
	require.True(t, p.IsPreparedFor(ctx, other, 3))

	buf, ok := p.CropFrame(ctx, sideBySideImage(16, 8), image.Rect(0, 0, 8, 8))
	require.True(t, ok)
	require.Equal(t, image.Rect(0, 0, 8, 8), buf.Bounds())
	p.Release(ctx, buf)
}

type failingRenderer struct {
	allocErr       error
	renderFailures int
}

func (r *failingRenderer) AllocBuffer(size image.Point) (*image.RGBA, error) {
	if r.allocErr != nil {
		return nil, r.allocErr
	}
	return image.NewRGBA(image.Rect(0, 0, size.X, size.Y)), nil
}

func (r *failingRenderer) Render(_ context.Context, _ *image.RGBA, _ image.Image, _ image.Rectangle) error {
	if r.renderFailures > 0 {
		r.renderFailures--
		return fmt.Errorf("render failed")
	}
	return nil
}

func TestProcessorPrepareFailureLeavesUnprepared(t *testing.T) {
	ctx := context.Background()
	p := NewProcessor(&failingRenderer{allocErr: fmt.Errorf("no memory")})
	p.Prepare(ctx, testDescriptor, 2)

	require.False(t, p.IsPreparedFor(ctx, testDescriptor, 2))
	_, ok := p.CropFrame(ctx, sideBySideImage(8, 4), image.Rect(0, 0, 4, 4))
	require.False(t, ok)
}

func TestProcessorRenderFailureReleasesBuffer(t *testing.T) {
	ctx := context.Background()
	p := NewProcessor(&failingRenderer{renderFailures: 1})
	p.Prepare(ctx, testDescriptor, 1)

	_, ok := p.CropFrame(ctx, sideBySideImage(8, 4), image.Rect(0, 0, 4, 4))
	require.False(t, ok)

	// The buffer acquired for the failed render must be back in the
	// pool: otherwise a single render failure would leak the pool dry.
	buf, ok := p.CropFrame(ctx, sideBySideImage(8, 4), image.Rect(0, 0, 4, 4))
	require.True(t, ok)
	p.Release(ctx, buf)
}

func TestProcessorCropFromSubImage(t *testing.T) {
	// A source whose bounds do not start at (0, 0) must still produce a
	// zero-origined crop.
	ctx := context.Background()
	p := NewProcessor(nil)
	p.Prepare(ctx, testDescriptor, 1)

	full := sideBySideImage(16, 8)
	shifted := full.SubImage(image.Rect(4, 2, 12, 6)).(*image.RGBA)

	buf, ok := p.CropFrame(ctx, shifted, image.Rect(4, 2, 8, 6))
	require.True(t, ok)
	require.Equal(t, image.Rect(0, 0, 4, 4), buf.Bounds())
	require.Equal(t, color.RGBA{R: 255, A: 255}, buf.RGBAAt(0, 0))
	p.Release(ctx, buf)
}

// Package frameproc turns decoded source images into geometrically and
// chromatically correct per-eye frame buffers, using a bounded pool to
// avoid per-frame allocations.
package frameproc

import (
	"context"
	"fmt"
	"image"
	"image/draw"

	"github.com/anthonynsimon/bild/transform"
)

// Renderer is the narrow capability the processor renders through. The
// underlying pixel context (CPU, GPU, whatever) is an external
// collaborator; the processor only needs buffers and a way to render a
// cropped region into them.
type Renderer interface {
	// AllocBuffer allocates one output buffer of the given size.
	AllocBuffer(size image.Point) (*image.RGBA, error)

	// Render crops src to region and renders the result into dst with
	// the region's origin translated to (0, 0). dst is exactly
	// region-sized.
	Render(ctx context.Context, dst *image.RGBA, src image.Image, region image.Rectangle) error
}

// NewRenderer returns the default CPU renderer.
func NewRenderer() Renderer {
	return rendererCPU{}
}

type rendererCPU struct{}

func (rendererCPU) AllocBuffer(size image.Point) (*image.RGBA, error) {
	if size.X <= 0 || size.Y <= 0 {
		return nil, fmt.Errorf("invalid buffer size %dx%d", size.X, size.Y)
	}
	return image.NewRGBA(image.Rect(0, 0, size.X, size.Y)), nil
}

func (rendererCPU) Render(
	_ context.Context,
	dst *image.RGBA,
	src image.Image,
	region image.Rectangle,
) error {
	if dst.Bounds().Dx() != region.Dx() || dst.Bounds().Dy() != region.Dy() {
		return fmt.Errorf(
			"buffer size %dx%d does not match the region size %dx%d",
			dst.Bounds().Dx(), dst.Bounds().Dy(), region.Dx(), region.Dy(),
		)
	}
	cropped := transform.Crop(src, region)
	// The pool's buffers are allocated at the cropped size, not at the
	// source frame size, so the crop's origin has to be re-zeroed: the
	// draw below anchors the region's top-left corner at (0, 0).
	draw.Draw(dst, dst.Bounds(), cropped, cropped.Bounds().Min, draw.Src)
	return nil
}

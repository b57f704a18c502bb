// Package frame provides the frame types that flow through the
// conversion pipeline: decoded source frames, per-eye views and
// stereo frame pairs.
package frame

import (
	"fmt"
	"image"
	"time"

	"github.com/xaionaro-go/spatialconv/types"
)

// Frame is one decoded source image together with its presentation
// timestamp. The timestamp is stream-relative and monotonic.
type Frame struct {
	Image    image.Image
	PTS      time.Duration
	Duration time.Duration
}

func (f *Frame) String() string {
	if f == nil {
		return "Frame(nil)"
	}
	b := f.Image.Bounds()
	return fmt.Sprintf("Frame(%dx%d, pts:%s)", b.Dx(), b.Dy(), f.PTS)
}

// EyeView is one pooled output buffer holding a single eye's image,
// tagged with the eye identity and its layer id.
type EyeView struct {
	Buffer *image.RGBA
	Eye    types.Eye
	Color  types.ColorSpace
}

// LayerID returns the layer the view is tagged with in the output
// video track.
func (v *EyeView) LayerID() int {
	return v.Eye.LayerID()
}

// StereoFramePair is two same-timestamp eye views submitted together
// to the output multiplexer. Pairs are consumed immediately by the
// multiplexer and must not be retained: the underlying buffers return
// to the pool right after the write attempt.
type StereoFramePair struct {
	Left  EyeView
	Right EyeView
	PTS   time.Duration
}

func (p *StereoFramePair) String() string {
	if p == nil {
		return "StereoFramePair(nil)"
	}
	return fmt.Sprintf("StereoFramePair(pts:%s)", p.PTS)
}

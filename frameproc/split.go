package frameproc

import (
	"image"
)

// SplitSideBySide bisects a side-by-side stereo frame into the left-eye
// and right-eye crop regions. The two rectangles exactly tile the
// source frame: no gap, no overlap, even for odd widths (the right
// region absorbs the extra column).
func SplitSideBySide(width, height int) (left, right image.Rectangle) {
	half := width / 2
	left = image.Rect(0, 0, half, height)
	right = image.Rect(half, 0, width, height)
	return
}

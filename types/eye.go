// Package types provides common types shared by the spatialconv packages.
package types

import (
	"fmt"
)

// Eye identifies which eye a view belongs to in a stereo pair.
type Eye int

const (
	EyeUndefined Eye = iota
	EyeLeft
	EyeRight
)

// LayerID returns the video layer the eye is tagged with in the output
// container: 0 for the left eye, 1 for the right eye.
func (e Eye) LayerID() int {
	switch e {
	case EyeLeft:
		return 0
	case EyeRight:
		return 1
	default:
		return -1
	}
}

func (e Eye) String() string {
	switch e {
	case EyeUndefined:
		return "<undefined>"
	case EyeLeft:
		return "left"
	case EyeRight:
		return "right"
	default:
		return fmt.Sprintf("<unexpected_eye_%d>", int(e))
	}
}

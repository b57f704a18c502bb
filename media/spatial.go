package media

// SpatialTags is the stereo metadata the output video track is
// annotated with. The converter uses a fixed policy: a 90 degree
// horizontal field of view and no horizontal disparity adjustment.
type SpatialTags struct {
	HorizontalFOVDegrees          uint32
	HorizontalDisparityAdjustment int32
}

// DefaultSpatialTags is the only spatial annotation the converter
// produces; the values are not configurable.
var DefaultSpatialTags = SpatialTags{
	HorizontalFOVDegrees:          90,
	HorizontalDisparityAdjustment: 0,
}

// VideoOutputConfig configures the destination's video track: per-eye
// geometry (half the source width, full height) plus the stereo
// annotation.
type VideoOutputConfig struct {
	Width     int
	Height    int
	FrameRate float64
	Spatial   SpatialTags

	// CodecName optionally overrides the encoder ("libx264" when
	// empty). Ignored by non-encoding endpoints.
	CodecName string
}

package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEyeLayerID(t *testing.T) {
	require.Equal(t, 0, EyeLeft.LayerID())
	require.Equal(t, 1, EyeRight.LayerID())
	require.Equal(t, -1, EyeUndefined.LayerID())
}

func TestFormatDescriptorTotalFrames(t *testing.T) {
	fd := FormatDescriptor{
		FrameRate: 30,
		Duration:  10 * time.Second,
	}
	require.Equal(t, uint64(300), fd.TotalFrames())

	require.Equal(t, uint64(0), FormatDescriptor{FrameRate: 30}.TotalFrames())
	require.Equal(t, uint64(0), FormatDescriptor{Duration: time.Second}.TotalFrames())
}

func TestColorInfoIsSpecified(t *testing.T) {
	require.False(t, ColorInfo{}.IsSpecified())
	require.True(t, ColorInfo{Primaries: ColorPrimariesBT709}.IsSpecified())
	require.True(t, ColorInfo{Matrix: MatrixBT2020NCL}.IsSpecified())
}

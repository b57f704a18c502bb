package libav

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xaionaro-go/spatialconv/media"
)

func TestSpatialMetadata(t *testing.T) {
	d := spatialMetadata(media.SpatialTags{
		HorizontalFOVDegrees:          63,
		HorizontalDisparityAdjustment: -200,
	})
	defer d.Free()

	e := d.Get("spatial_hfov", nil, 0)
	require.NotNil(t, e)
	require.Equal(t, "63", e.Value())

	e = d.Get("spatial_disparity_adjustment", nil, 0)
	require.NotNil(t, e)
	require.Equal(t, "-200", e.Value())
}

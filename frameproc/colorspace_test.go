package frameproc

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/spatialconv/types"
)

func TestOutputColorSpace(t *testing.T) {
	t.Run("untagged_falls_back_to_device_rgb", func(t *testing.T) {
		require.Equal(t, types.DeviceRGB, OutputColorSpace(types.ColorInfo{}))
	})

	t.Run("tagged_source_is_propagated", func(t *testing.T) {
		ci := types.ColorInfo{
			Primaries: types.ColorPrimariesBT709,
			Transfer:  types.TransferBT709,
			Matrix:    types.MatrixBT709,
		}
		cs := OutputColorSpace(ci)
		require.Equal(t, ci.Primaries, cs.Primaries)
		require.Equal(t, ci.Transfer, cs.Transfer)
		require.Equal(t, ci.Matrix, cs.Matrix)
		require.False(t, cs.DisplayReferred)
	})

	t.Run("partial_tags_still_propagate", func(t *testing.T) {
		ci := types.ColorInfo{Matrix: types.MatrixBT2020NCL}
		cs := OutputColorSpace(ci)
		require.Equal(t, types.MatrixBT2020NCL, cs.Matrix)
	})

	t.Run("wide_gamut_primaries_map_to_display_p3", func(t *testing.T) {
		ci := types.ColorInfo{
			Primaries: types.ColorPrimariesP3D65,
			Transfer:  types.TransferPQ,
		}
		require.Equal(t, types.DisplayP3, OutputColorSpace(ci))
	})
}

package frameproc

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitSideBySideTilesExactly(t *testing.T) {
	for _, width := range []int{2, 4, 640, 1920, 3840, 1, 3, 641, 1921} {
		t.Run(fmt.Sprintf("width%d", width), func(t *testing.T) {
			left, right := SplitSideBySide(width, 1080)
			require.Equal(t, width, left.Dx()+right.Dx())
			require.Equal(t, width/2, right.Min.X)
			require.Equal(t, left.Max.X, right.Min.X)
			require.Equal(t, 0, left.Min.X)
			require.Equal(t, width, right.Max.X)
			require.Equal(t, 1080, left.Dy())
			require.Equal(t, 1080, right.Dy())
		})
	}
}

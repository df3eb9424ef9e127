package segment

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFilter_ReferencesProfileDimensions(t *testing.T) {
	b := &Builder{Profile: DefaultProfile}
	f := b.filter()

	require.Contains(t, f, "1080:1920")
	require.Contains(t, f, "boxblur=20:5")
	require.Contains(t, f, "fps=30")
	require.Contains(t, f, "format=yuv420p")
	require.Contains(t, f, "setsar=1")
	require.Equal(t, 1, strings.Count(f, "split=2"))
}

func TestFtoa_SixDecimals(t *testing.T) {
	require.Equal(t, "1.500000", ftoa(1.5))
	require.Equal(t, "0.000000", ftoa(0))
}

func TestMin(t *testing.T) {
	require.Equal(t, 1.0, min(1.0, 2.0))
	require.Equal(t, 1.0, min(2.0, 1.0))
}

func TestNewBuilder_StartsWithEmptyOffsets(t *testing.T) {
	b := NewBuilder(nil, nil, nil)
	require.NotNil(t, b.offsets)
	require.Empty(t, b.offsets)
}

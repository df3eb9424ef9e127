package onset

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFilterGap(t *testing.T) {
	raw := []float64{0.05, 0.10, 0.35, 0.40, 0.80, 0.95, 1.30}
	got := filterGap(raw, 0.20)
	want := []float64{0.05, 0.35, 0.80, 1.30}
	require.Equal(t, want, got)
}

func TestFilterGap_Empty(t *testing.T) {
	require.Nil(t, filterGap(nil, 0.2))
}

func TestFallback(t *testing.T) {
	got := Fallback(1.0, 2.6, 0.5)
	want := []float64{1.5, 2.0, 2.5}
	require.InDeltaSlice(t, want, got, 1e-9)
}

func TestFallback_NoRoom(t *testing.T) {
	require.Empty(t, Fallback(1.0, 1.1, 0.5))
}

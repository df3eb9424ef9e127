package mediatool

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseFraction(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"30/1", 30},
		{"30000/1001", 30000.0 / 1001.0},
		{"25", 25},
		{"1/0", 0},
		{"", 0},
		{"bogus", 0},
	}
	for _, tc := range cases {
		require.InDelta(t, tc.want, parseFraction(tc.in), 1e-9, "input %q", tc.in)
	}
}

package planner

import (
	"fmt"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loopcut/cutworker/internal/prng"
)

func TestPlan_Determinism(t *testing.T) {
	onsets := []float64{0.1, 0.3, 0.45, 0.5, 0.9, 1.2, 1.6, 2.1, 2.4, 3.0, 3.6, 4.2, 4.9, 5.5, 6.1, 6.8, 7.4, 8.0, 8.6, 9.2}
	cfg := Config{Target: 10.0, FallbackIntervalS: 0.5}

	a := Plan(onsets, 3, cfg, prng.New("job-determinism"))
	b := Plan(onsets, 3, cfg, prng.New("job-determinism"))

	require.Equal(t, a.Cuts, b.Cuts)
	require.Equal(t, a.Shots, b.Shots)
	require.Equal(t, a.HookEnd, b.HookEnd)
	require.Equal(t, a.FallbackUsed, b.FallbackUsed)
}

func TestPlan_CutOrderingAndGap(t *testing.T) {
	onsets := evenOnsets(40, 10.0)
	cfg := Config{Target: 10.0, FallbackIntervalS: 0.5}
	res := Plan(onsets, 3, cfg, prng.New("job-ordering"))

	require.Equal(t, 0.0, res.Cuts[0])
	require.InDelta(t, 10.0, res.Cuts[len(res.Cuts)-1], 1e-9)

	gap := MinGapFrames / Fps
	for i := 1; i < len(res.Cuts); i++ {
		require.Greater(t, res.Cuts[i], res.Cuts[i-1])
		require.GreaterOrEqual(t, res.Cuts[i]-res.Cuts[i-1], gap-1e-6)
	}
}

func TestPlan_HookBounds(t *testing.T) {
	cases := []struct {
		name   string
		onsets []float64
		target float64
	}{
		{"beat-rich", evenOnsets(40, 10.0), 10.0},
		{"silent", nil, 10.0},
		{"short-target", evenOnsets(40, 10.0), 0.8},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := Plan(tc.onsets, 3, Config{Target: tc.target, FallbackIntervalS: 0.5}, prng.New("job-"+tc.name))
			require.GreaterOrEqual(t, res.HookEnd, 0.0)
			require.LessOrEqual(t, res.HookEnd, math.Min(1.5, tc.target))
		})
	}
}

func TestPlan_NonRepetition(t *testing.T) {
	onsets := evenOnsets(40, 10.0)
	res := Plan(onsets, 4, Config{Target: 10.0, FallbackIntervalS: 0.5}, prng.New("job-norepeat"))
	for i := 1; i < len(res.Shots); i++ {
		require.NotEqual(t, res.Shots[i-1], res.Shots[i])
	}
}

func TestAssignShots_FirstPickCoversFullRange(t *testing.T) {
	// The first shot has no prior pick to exclude, so it must be able to
	// land on every index in {0..clipCount-1}, including 0.
	clipCount := 3
	seenZero := false
	for seed := 0; seed < 200; seed++ {
		rng := prng.New(fmt.Sprintf("job-firstpick-%d", seed))
		shots := assignShots(5, clipCount, rng)
		if shots[0] == 0 {
			seenZero = true
			break
		}
	}
	require.True(t, seenZero, "clip index 0 was never chosen as the first shot across 200 seeds")
}

func TestPlan_SingleClipNoChoice(t *testing.T) {
	onsets := evenOnsets(40, 10.0)
	res := Plan(onsets, 1, Config{Target: 10.0, FallbackIntervalS: 0.5}, prng.New("job-singleclip"))
	for _, a := range res.Shots {
		require.Equal(t, 0, a)
	}
}

func TestPlan_FallbackTrigger(t *testing.T) {
	// Zero onsets: fallback must fire and beats_used must be 0.
	res := Plan(nil, 2, Config{Target: 10.0, FallbackIntervalS: 0.5}, prng.New("job-fallback"))
	require.True(t, res.FallbackUsed)
	require.Equal(t, 0, res.BeatsUsed)

	// Beat-rich: fallback must not fire.
	rich := Plan(evenOnsets(40, 10.0), 2, Config{Target: 10.0, FallbackIntervalS: 0.5}, prng.New("job-rich"))
	require.False(t, rich.FallbackUsed)
}

// evenOnsets builds n onsets evenly spaced across (0, target), satisfying
// the minimum onset gap for any reasonable target/n combination used in
// these tests.
func evenOnsets(n int, target float64) []float64 {
	out := make([]float64, 0, n)
	step := target / float64(n+1)
	for i := 1; i <= n; i++ {
		out = append(out, float64(i)*step)
	}
	return out
}

// TestPlan_RandomizedInvariants runs the planner over many randomized
// onset lists and clip counts, checking the universal invariants hold
// regardless of input shape.
func TestPlan_RandomizedInvariants(t *testing.T) {
	seedSrc := rand.New(rand.NewPCG(7, 13))
	gap := MinGapFrames / Fps

	for iter := 0; iter < 50; iter++ {
		target := 6.0 + seedSrc.Float64()*10.0
		n := seedSrc.IntN(60)
		clipCount := 1 + seedSrc.IntN(5)

		var onsets []float64
		t0 := 0.0
		for i := 0; i < n; i++ {
			t0 += 0.05 + seedSrc.Float64()*0.3
			if t0 >= target {
				break
			}
			onsets = append(onsets, t0)
		}

		jobID := fmt.Sprintf("randomized-%d", iter)
		res := Plan(onsets, clipCount, Config{Target: target, FallbackIntervalS: 0.5}, prng.New(jobID))

		if res.Cuts[0] != 0.0 {
			t.Fatalf("iter %d: cuts[0] = %v, want 0", iter, res.Cuts[0])
		}
		if math.Abs(res.Cuts[len(res.Cuts)-1]-target) > 1e-6 {
			t.Fatalf("iter %d: last cut = %v, want %v", iter, res.Cuts[len(res.Cuts)-1], target)
		}
		for i := 1; i < len(res.Cuts); i++ {
			if res.Cuts[i]-res.Cuts[i-1] < gap-1e-6 {
				t.Fatalf("iter %d: gap violation at %d: %v -> %v", iter, i, res.Cuts[i-1], res.Cuts[i])
			}
		}
		for i := 1; i < len(res.Shots); i++ {
			if clipCount > 1 && res.Shots[i] == res.Shots[i-1] {
				t.Fatalf("iter %d: repeated shot at %d", iter, i)
			}
		}
		if res.HookEnd < 0 || res.HookEnd > math.Min(1.5, target) {
			t.Fatalf("iter %d: hook end %v out of bounds for target %v", iter, res.HookEnd, target)
		}
	}
}

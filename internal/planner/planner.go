// Package planner is the heart of the system: it turns a filtered onset
// list into a cut-time sequence, a hook span, and a shot assignment,
// using a single seeded PRNG so the result is bit-reproducible given the
// same inputs and job id.
package planner

import (
	"math"
	"sort"

	"github.com/loopcut/cutworker/internal/onset"
	"github.com/loopcut/cutworker/internal/prng"
)

// Fps is the fixed output frame rate the whole pipeline treats as an
// invariant of output space (see VideoProfile).
const Fps = 30.0

// MinGapFrames is the minimum number of frames between adjacent cuts.
const MinGapFrames = 2.0

// Config bundles the planner's tunables. Target and FallbackIntervalS
// come from the task payload / environment; Fps is fixed.
type Config struct {
	Target            float64
	FallbackIntervalS float64
}

// Result is everything the segment builder and assembler need: the cut
// sequence, the hook span, the shot assignment, and whether the onset
// fallback path fired.
type Result struct {
	Cuts         []float64
	HookEnd      float64
	Shots        []int
	FallbackUsed bool
	BeatsTotal   int
	BeatsUsed    int
	// Beats is the filtered onset list actually used to build the base
	// timeline (empty when the fallback sequence fired instead).
	Beats []float64
}

// minGapS is 2/fps computed as the exact rational, never a rounded float.
func minGapS() float64 { return MinGapFrames / Fps }

// Plan runs the full §4.7 algorithm: hook selection, base timeline,
// length-biased refinement, and shot assignment, all against rng.
func Plan(onsets []float64, clipCount int, cfg Config, rng *prng.Source) Result {
	_, hEnd := hookSelect(onsets, cfg.Target, rng)

	base, fallbackUsed, beatsUsed, beats := baseTimeline(onsets, hEnd, cfg.Target, cfg.FallbackIntervalS)
	cuts := refine(base, cfg.Target, rng)

	k := len(cuts) - 1
	if k < 0 {
		k = 0
	}
	shots := assignShots(k, clipCount, rng)

	return Result{
		Cuts:         cuts,
		HookEnd:      hEnd,
		Shots:        shots,
		FallbackUsed: fallbackUsed,
		BeatsTotal:   len(onsets),
		BeatsUsed:    beatsUsed,
		Beats:        beats,
	}
}

// hookSelect implements §4.7.1. It returns (h_start, h_end).
func hookSelect(onsets []float64, target float64, rng *prng.Source) (float64, float64) {
	if len(onsets) == 0 {
		hEnd := math.Min(rng.Uniform(0.6, 1.5), math.Min(1.5, target))
		return 0, math.Max(0, hEnd)
	}

	tMax := target
	for _, o := range onsets {
		if o > tMax {
			tMax = o
		}
	}

	cand := make([]float64, 0, len(onsets))
	for _, o := range onsets {
		if o <= 0.4*tMax {
			cand = append(cand, o)
		}
	}
	if len(cand) == 0 {
		cand = onsets
	}

	bestIdx := 0
	bestDensity := -1
	for i, o := range cand {
		density := 0
		for _, o2 := range cand {
			if math.Abs(o2-o) <= 0.125 {
				density++
			}
		}
		if density > bestDensity || (density == bestDensity && o < cand[bestIdx]) {
			bestDensity = density
			bestIdx = i
		}
	}

	hStart := math.Max(0, cand[bestIdx])
	hEnd := math.Min(hStart+rng.Uniform(0.6, 1.5), math.Min(1.5, target))
	return hStart, hEnd
}

// baseTimeline implements §4.7.2. It returns the preliminary sequence P,
// whether the fallback path fired, the count of onsets actually used to
// build the timeline (0 when the fallback fired), and the active-window
// onsets themselves (for QA diagnostics — nil when the fallback fired,
// since a substitute sequence has nothing real to compare against).
func baseTimeline(onsets []float64, hEnd, target, fallbackInterval float64) ([]float64, bool, int, []float64) {
	gap := 1.0 / Fps

	var b []float64
	for _, o := range onsets {
		if o > hEnd+gap {
			b = append(b, o)
		}
	}

	fallbackUsed := len(b) < 4
	beatsUsed := len(b)
	activeOnsets := b
	if fallbackUsed {
		b = onset.Fallback(hEnd, target, fallbackInterval)
		beatsUsed = 0
		activeOnsets = nil
	}

	set := map[float64]struct{}{
		round6(0):    {},
		round6(hEnd): {},
		round6(target): {},
	}
	for _, t := range b {
		if t <= target {
			set[round6(t)] = struct{}{}
		}
	}

	p := make([]float64, 0, len(set))
	for t := range set {
		p = append(p, t)
	}
	sort.Float64s(p)
	return p, fallbackUsed, beatsUsed, activeOnsets
}

// refine implements §4.7.3. idx walks forward through the preliminary
// sequence P, each step drawing a target length from the seeded mixture
// and snapping to the nearest unconsumed candidate, or skipping ahead
// when the nearest candidate is too close to be useful.
func refine(p []float64, target float64, rng *prng.Source) []float64 {
	if len(p) == 0 {
		return []float64{0, target}
	}
	minGap := minGapS()

	r := []float64{p[0]}
	idx := 1
	for idx < len(p) {
		w := drawLengthSeconds(rng)
		desired := r[len(r)-1] + w

		bestJ := idx
		bestD := math.Abs(p[idx] - desired)
		for j := idx + 1; j < len(p); j++ {
			if d := math.Abs(p[j] - desired); d < bestD {
				bestD = d
				bestJ = j
			}
		}
		nb := p[bestJ]
		last := r[len(r)-1]

		if nb <= last+minGap {
			j := idx
			for j < len(p) && p[j] <= last+minGap {
				j++
			}
			if j >= len(p) {
				break
			}
			r = append(r, p[j])
			idx = j + 1
			continue
		}

		r = append(r, nb)
		j := bestJ + 1
		for j < len(p) && p[j] <= nb {
			j++
		}
		idx = j
	}

	if r[len(r)-1] < target-1e-3 {
		if len(r) > 1 && target-r[len(r)-1] < minGap {
			r[len(r)-1] = target
		} else {
			r = append(r, target)
		}
	}
	return r
}

// drawLengthSeconds draws a target segment length in frames from the
// discrete mixture (0.45: [4,7], 0.40: [8,16], 0.15: [17,28]) and
// converts it to seconds at the fixed output frame rate.
func drawLengthSeconds(rng *prng.Source) float64 {
	bucket := rng.Weighted([]float64{0.45, 0.40, 0.15})
	var frames int
	switch bucket {
	case 0:
		frames = rng.UniformInt(4, 7)
	case 1:
		frames = rng.UniformInt(8, 16)
	default:
		frames = rng.UniformInt(17, 28)
	}
	return float64(frames) / Fps
}

// assignShots implements §4.7.4: uniform choice excluding the previous
// pick, enforcing no-immediate-repetition while preserving uniform
// coverage in expectation.
func assignShots(k, clipCount int, rng *prng.Source) []int {
	if clipCount <= 0 || k <= 0 {
		return make([]int, max(k, 0))
	}
	shots := make([]int, k)
	last := -1
	for i := 0; i < k; i++ {
		var choice int
		if clipCount > 1 {
			if last < 0 {
				choice = rng.IntN(clipCount)
			} else {
				choice = rng.IntN(clipCount - 1)
				if choice >= last {
					choice++
				}
			}
		}
		shots[i] = choice
		last = choice
	}
	return shots
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Package onset extracts and post-filters onset times from conditioned
// audio, and supplies the uniform fallback sequence used when too few
// onsets survive filtering.
package onset

import (
	"bufio"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/loopcut/cutworker/internal/mediatool"
)

// DetectError wraps an onset-detection failure.
type DetectError struct {
	Err error
}

func (e *DetectError) Error() string { return fmt.Sprintf("onset detect: %v", e.Err) }
func (e *DetectError) Unwrap() error { return e.Err }

// Detector invokes aubioonset and post-filters its raw output.
type Detector struct {
	Runner    *mediatool.Runner
	Method    string
	Threshold float64
	MinGapS   float64
}

// New builds a Detector.
func New(runner *mediatool.Runner, method string, threshold, minGapS float64) *Detector {
	return &Detector{Runner: runner, Method: method, Threshold: threshold, MinGapS: minGapS}
}

// Detect runs aubioonset over path and returns a strictly increasing
// sequence with o_{i+1} - o_i >= MinGapS, satisfying the OnsetList
// invariant.
func (d *Detector) Detect(ctx context.Context, path string) ([]float64, error) {
	res, err := d.Runner.Run(ctx, "aubioonset",
		"-i", path,
		"-O", d.Method,
		"-t", strconv.FormatFloat(d.Threshold, 'f', -1, 64),
	)
	if err != nil {
		return nil, &DetectError{Err: err}
	}

	var raw []float64
	scanner := bufio.NewScanner(strings.NewReader(res.Stdout))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		v, err := strconv.ParseFloat(line, 64)
		if err != nil {
			continue
		}
		raw = append(raw, v)
	}

	return filterGap(raw, d.MinGapS), nil
}

// filterGap keeps o iff o - last_kept >= minGap, scanning in ascending
// time order.
func filterGap(raw []float64, minGap float64) []float64 {
	if len(raw) == 0 {
		return nil
	}
	kept := make([]float64, 0, len(raw))
	last := -1.0
	for _, o := range raw {
		if last < 0 || o-last >= minGap {
			kept = append(kept, o)
			last = o
		}
	}
	return kept
}

// Fallback produces the uniform substitute sequence t_k = hEnd + k*interval
// for integer k >= 1 while t_k < target.
func Fallback(hEnd, target, interval float64) []float64 {
	var out []float64
	for k := 1; ; k++ {
		t := hEnd + float64(k)*interval
		if t >= target {
			break
		}
		out = append(out, t)
	}
	return out
}

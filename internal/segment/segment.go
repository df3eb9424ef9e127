// Package segment extracts per-cut video clips from source footage,
// honoring the cut plan's shot assignment, with a reversal fallback for
// sources shorter than the requested span.
package segment

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/loopcut/cutworker/internal/mediatool"
	"github.com/loopcut/cutworker/internal/prng"
)

// Profile is the fixed output-space invariant every segment is
// normalized to.
type Profile struct {
	Width, Height, Fps int
	PixFmt             string
	Sar                int
}

// DefaultProfile is the VideoProfile constant from the data model.
var DefaultProfile = Profile{Width: 1080, Height: 1920, Fps: 30, PixFmt: "yuv420p", Sar: 1}

// BuildError wraps a segment-extraction failure for a specific source.
type BuildError struct {
	Source string
	Err    error
}

func (e *BuildError) Error() string { return fmt.Sprintf("segment build %s: %v", e.Source, e.Err) }
func (e *BuildError) Unwrap() error { return e.Err }

// Builder extracts segments against a profile, tracking the running
// per-clip read offset (SourceOffsets) for the lifetime of one job.
type Builder struct {
	Runner  *mediatool.Runner
	Prober  *mediatool.Prober
	PRNG    *prng.Source
	Profile Profile

	offsets map[string]float64
}

// NewBuilder builds a Builder for one job.
func NewBuilder(runner *mediatool.Runner, prober *mediatool.Prober, rng *prng.Source) *Builder {
	return &Builder{
		Runner:  runner,
		Prober:  prober,
		PRNG:    rng,
		Profile: DefaultProfile,
		offsets: make(map[string]float64),
	}
}

// Build extracts a segment of duration want from clipPath into outPath
// inside tempDir, applying the §4.8 reversal fallback when the source is
// too short. It returns the path on success.
func (b *Builder) Build(ctx context.Context, tempDir string, index int, clipPath string, want float64) (string, error) {
	dV, err := b.Prober.Duration(ctx, clipPath)
	if err != nil {
		return "", &BuildError{Source: clipPath, Err: err}
	}

	oV := b.offsets[clipPath]
	if oV >= dV {
		oV = 0
	}

	var t0 float64
	var needReverse bool
	var span float64

	if dV >= want+0.05 {
		hi := dV - want - 0.01
		if hi < 0 {
			hi = 0
		}
		t0 = b.PRNG.Uniform(0, hi)
		span = want
	} else {
		t0 = 0
		span = min(dV, want)
		needReverse = true
	}

	rawPath := filepath.Join(tempDir, fmt.Sprintf("seg_%04d_raw.mp4", index))
	if _, err := b.Runner.Run(ctx, "ffmpeg",
		"-y",
		"-ss", ftoa(t0),
		"-i", clipPath,
		"-t", ftoa(span),
		"-an",
		rawPath,
	); err != nil {
		return "", &BuildError{Source: clipPath, Err: err}
	}
	defer os.Remove(rawPath)

	sourcePath := rawPath
	minGap := 1.0 / float64(b.Profile.Fps)
	if needReverse && span < want-minGap {
		reversedPath := filepath.Join(tempDir, fmt.Sprintf("seg_%04d_rev.mp4", index))
		if _, err := b.Runner.Run(ctx, "ffmpeg", "-y", "-i", rawPath, "-vf", "reverse", "-an", reversedPath); err != nil {
			return "", &BuildError{Source: clipPath, Err: err}
		}
		defer os.Remove(reversedPath)

		manifestPath := filepath.Join(tempDir, fmt.Sprintf("seg_%04d_concat.txt", index))
		manifest := fmt.Sprintf("file '%s'\nfile '%s'\n", rawPath, reversedPath)
		if err := os.WriteFile(manifestPath, []byte(manifest), 0o644); err != nil {
			return "", &BuildError{Source: clipPath, Err: err}
		}
		defer os.Remove(manifestPath)

		extendedPath := filepath.Join(tempDir, fmt.Sprintf("seg_%04d_extended.mp4", index))
		if _, err := b.Runner.Run(ctx, "ffmpeg", "-y", "-f", "concat", "-safe", "0", "-i", manifestPath, "-an", extendedPath); err != nil {
			return "", &BuildError{Source: clipPath, Err: err}
		}
		defer os.Remove(extendedPath)
		sourcePath = extendedPath
	}

	outPath := filepath.Join(tempDir, fmt.Sprintf("seg_%04d.mp4", index))
	if _, err := b.Runner.Run(ctx, "ffmpeg",
		"-y",
		"-i", sourcePath,
		"-t", ftoa(want),
		"-vf", b.filter(),
		"-r", ftoa(float64(b.Profile.Fps)),
		"-an",
		outPath,
	); err != nil {
		return "", &BuildError{Source: clipPath, Err: err}
	}

	b.offsets[clipPath] = oV + want
	return outPath, nil
}

// filter builds the scale-decrease, boxblur-inflated-background-composite
// chain that normalizes every segment to Profile.
func (b *Builder) filter() string {
	w, h := b.Profile.Width, b.Profile.Height
	return fmt.Sprintf(
		"split=2[main][bg];"+
			"[bg]scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d,boxblur=20:5[bg2];"+
			"[main]scale=%d:%d:force_original_aspect_ratio=decrease[fg];"+
			"[bg2][fg]overlay=(W-w)/2:(H-h)/2,fps=%d,format=%s,setsar=%d",
		w, h, w, h, w, h, b.Profile.Fps, b.Profile.PixFmt, b.Profile.Sar,
	)
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func ftoa(v float64) string {
	return fmt.Sprintf("%.6f", v)
}

// Package audio produces the normalized, trimmed audio artifact the
// planner and assembler work from.
package audio

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/loopcut/cutworker/internal/mediatool"
)

// ConditionError wraps an audio-conditioning failure.
type ConditionError struct {
	Err error
}

func (e *ConditionError) Error() string { return fmt.Sprintf("audio condition: %v", e.Err) }
func (e *ConditionError) Unwrap() error { return e.Err }

// Conditioned is the output of Condition: a path plus its measured
// duration.
type Conditioned struct {
	Path      string
	DurationS float64
}

const outputName = "audio_proc.wav"

// Conditioner wraps ffmpeg to build a loudness-normalized, trimmed,
// faded WAV at 48 kHz stereo 16-bit PCM.
type Conditioner struct {
	Runner *mediatool.Runner
	Prober *mediatool.Prober
}

// New builds a Conditioner.
func New(runner *mediatool.Runner, prober *mediatool.Prober) *Conditioner {
	return &Conditioner{Runner: runner, Prober: prober}
}

// Condition trims in to target+0.2s, applies loudness normalization,
// compression, and in/out safety fades, and writes the result to
// tempDir/audio_proc.wav. Fails with *ConditionError on a nonzero ffmpeg
// exit.
func (c *Conditioner) Condition(ctx context.Context, in string, tempDir string, target float64) (Conditioned, error) {
	out := filepath.Join(tempDir, outputName)
	trimTo := target + 0.2

	fadeOutStart := trimTo - 0.06
	if fadeOutStart < 0 {
		fadeOutStart = 0
	}

	filter := fmt.Sprintf(
		"loudnorm=I=-14:TP=-1.5:LRA=11:linear=true,"+
			"acompressor=threshold=-1.5dB:ratio=4:attack=5:release=50,"+
			"afade=t=in:st=0:d=0.02,"+
			"afade=t=out:st=%.6f:d=0.06",
		fadeOutStart,
	)

	_, err := c.Runner.Run(ctx, "ffmpeg",
		"-y",
		"-i", in,
		"-t", fmt.Sprintf("%.6f", trimTo),
		"-af", filter,
		"-ar", "48000",
		"-ac", "2",
		"-c:a", "pcm_s16le",
		out,
	)
	if err != nil {
		return Conditioned{}, &ConditionError{Err: err}
	}

	dur, err := c.Prober.Duration(ctx, out)
	if err != nil {
		return Conditioned{}, &ConditionError{Err: err}
	}
	return Conditioned{Path: out, DurationS: dur}, nil
}

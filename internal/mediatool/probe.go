package mediatool

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ProbeError wraps a probe failure: either the tool exited nonzero or its
// output could not be parsed.
type ProbeError struct {
	Path string
	Err  error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe %s: %v", e.Path, e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }

// Stream describes one media stream reported by ffprobe.
type Stream struct {
	CodecType string
	Width     int
	Height    int
	FrameRate float64 // frames/sec, parsed from an "n/d" fraction
}

// Info is the duration and stream metadata of one media file.
type Info struct {
	DurationS float64
	Streams   []Stream
}

type probeFormat struct {
	Duration string `json:"duration"`
}

type probeStream struct {
	CodecType  string `json:"codec_type"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	RFrameRate string `json:"r_frame_rate"`
	AvgFrameRt string `json:"avg_frame_rate"`
}

type probeOutput struct {
	Format  probeFormat   `json:"format"`
	Streams []probeStream `json:"streams"`
}

// Prober queries a file for duration and per-stream metadata via ffprobe.
type Prober struct {
	Runner *Runner
}

// NewProber builds a Prober over an existing Runner.
func NewProber(r *Runner) *Prober {
	return &Prober{Runner: r}
}

// Probe returns the duration and stream metadata for path. It fails with
// *ProbeError when ffprobe exits nonzero or its JSON cannot be parsed;
// there are no retries.
func (p *Prober) Probe(ctx context.Context, path string) (Info, error) {
	res, err := p.Runner.Run(ctx, "ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	if err != nil {
		return Info{}, &ProbeError{Path: path, Err: err}
	}

	var out probeOutput
	if err := json.Unmarshal([]byte(res.Stdout), &out); err != nil {
		return Info{}, &ProbeError{Path: path, Err: err}
	}

	dur, err := strconv.ParseFloat(out.Format.Duration, 64)
	if err != nil {
		return Info{}, &ProbeError{Path: path, Err: fmt.Errorf("parse duration %q: %w", out.Format.Duration, err)}
	}

	info := Info{DurationS: dur}
	for _, s := range out.Streams {
		rate := s.RFrameRate
		if rate == "" {
			rate = s.AvgFrameRt
		}
		info.Streams = append(info.Streams, Stream{
			CodecType: s.CodecType,
			Width:     s.Width,
			Height:    s.Height,
			FrameRate: parseFraction(rate),
		})
	}
	return info, nil
}

// Duration is a convenience wrapper returning just the duration.
func (p *Prober) Duration(ctx context.Context, path string) (float64, error) {
	info, err := p.Probe(ctx, path)
	if err != nil {
		return 0, err
	}
	return info.DurationS, nil
}

func parseFraction(s string) float64 {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 {
		v, _ := strconv.ParseFloat(s, 64)
		return v
	}
	num, err1 := strconv.ParseFloat(parts[0], 64)
	den, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil || den == 0 {
		return 0
	}
	return num / den
}

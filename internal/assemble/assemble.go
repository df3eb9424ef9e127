// Package assemble concatenates segments, muxes the conditioned audio,
// clamps the final duration, and atomically publishes the output
// artifact and its QA report.
package assemble

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/loopcut/cutworker/internal/mediatool"
)

// RenderError wraps a trim, concat, or mux failure.
type RenderError struct {
	Stage string
	Err   error
}

func (e *RenderError) Error() string { return fmt.Sprintf("render %s: %v", e.Stage, e.Err) }
func (e *RenderError) Unwrap() error { return e.Err }

// Assembler drives the concat + mux + clamp pipeline.
type Assembler struct {
	Runner *mediatool.Runner
}

// New builds an Assembler.
func New(runner *mediatool.Runner) *Assembler {
	return &Assembler{Runner: runner}
}

// writeManifest writes a concat-demuxer manifest referencing segments in
// plan order.
func writeManifest(path string, segments []string) error {
	content := ""
	for _, s := range segments {
		content += fmt.Sprintf("file '%s'\n", s)
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

// Assemble concatenates segments (video-only, in plan order) into a
// video-only intermediate named <jobID>.mp4.vtmp.mp4, muxes it with
// audioPath, clamps the result to exactly target seconds, and writes the
// final file to <jobID>.mp4.tmp inside tempDir. It returns that temp
// path; the caller is responsible for the final atomic rename.
func (a *Assembler) Assemble(ctx context.Context, tempDir, jobID string, segments []string, audioPath string, target float64) (string, error) {
	manifestPath := filepath.Join(tempDir, "concat.txt")
	if err := writeManifest(manifestPath, segments); err != nil {
		return "", &RenderError{Stage: "manifest", Err: err}
	}
	defer os.Remove(manifestPath)

	vtmpPath := filepath.Join(tempDir, jobID+".mp4.vtmp.mp4")
	if _, err := a.Runner.Run(ctx, "ffmpeg",
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", manifestPath,
		"-c", "copy",
		"-an",
		vtmpPath,
	); err != nil {
		return "", &RenderError{Stage: "concat", Err: err}
	}
	defer os.Remove(vtmpPath)

	finalTmpPath := filepath.Join(tempDir, jobID+".mp4.tmp")
	audioFilter := fmt.Sprintf("atrim=0:%.6f", target)
	if _, err := a.Runner.Run(ctx, "ffmpeg",
		"-y",
		"-i", vtmpPath,
		"-i", audioPath,
		"-filter:a", audioFilter,
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-crf", "18",
		"-c:a", "aac",
		"-b:a", "192k",
		"-movflags", "+faststart",
		"-t", fmt.Sprintf("%.6f", target),
		"-shortest",
		finalTmpPath,
	); err != nil {
		return "", &RenderError{Stage: "mux", Err: err}
	}

	return finalTmpPath, nil
}

// Publish renames tmpPath to finalPath, the atomic publication step for
// both the output artifact and the QA report.
func Publish(tmpPath, finalPath string) error {
	return os.Rename(tmpPath, finalPath)
}

// TouchDone creates the 0-byte completion marker at path. It must be
// called only after both the final artifact and the QA JSON are in
// place.
func TouchDone(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	return f.Close()
}

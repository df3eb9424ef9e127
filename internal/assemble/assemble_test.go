package assemble

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteManifest_OrdersSegmentsAndQuotesPaths(t *testing.T) {
	dir := t.TempDir()
	manifestPath := filepath.Join(dir, "concat.txt")

	err := writeManifest(manifestPath, []string{"a.mp4", "b.mp4", "c.mp4"})
	require.NoError(t, err)

	data, err := os.ReadFile(manifestPath)
	require.NoError(t, err)
	require.Equal(t, "file 'a.mp4'\nfile 'b.mp4'\nfile 'c.mp4'\n", string(data))
}

func TestWriteManifest_Empty(t *testing.T) {
	dir := t.TempDir()
	manifestPath := filepath.Join(dir, "concat.txt")

	err := writeManifest(manifestPath, nil)
	require.NoError(t, err)

	data, err := os.ReadFile(manifestPath)
	require.NoError(t, err)
	require.Empty(t, data)
}

func TestPublish_RenamesIntoPlace(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "out.mp4.tmp")
	dst := filepath.Join(dir, "out.mp4")
	require.NoError(t, os.WriteFile(src, []byte("data"), 0o644))

	require.NoError(t, Publish(src, dst))

	require.NoFileExists(t, src)
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Equal(t, "data", string(data))
}

func TestTouchDone_CreatesEmptyMarker(t *testing.T) {
	dir := t.TempDir()
	donePath := filepath.Join(dir, "job.done")

	require.NoError(t, TouchDone(donePath))

	info, err := os.Stat(donePath)
	require.NoError(t, err)
	require.Zero(t, info.Size())
}

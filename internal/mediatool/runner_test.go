package mediatool

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCombinedTail_ShortPassesThrough(t *testing.T) {
	out := combinedTail([]byte("stdout"), []byte("stderr"))
	require.Equal(t, "stdoutstderr", out)
}

func TestCombinedTail_TruncatesToLastBytes(t *testing.T) {
	big := bytes.Repeat([]byte("a"), tailBytes+100)
	out := combinedTail(big, nil)
	require.Len(t, out, tailBytes)
	require.Equal(t, string(big[100:]), out)
}

func TestRunner_Run_NonzeroExit(t *testing.T) {
	r := NewRunner(func(tool string) string { return "false" })
	_, err := r.Run(context.Background(), "false")
	require.Error(t, err)

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	require.Equal(t, "false", toolErr.Tool)
	require.NotEqual(t, 0, toolErr.Code)
}

func TestRunner_Run_Success(t *testing.T) {
	r := NewRunner(func(tool string) string { return "true" })
	_, err := r.Run(context.Background(), "true")
	require.NoError(t, err)
}

func TestRunner_Run_PathResolverOverride(t *testing.T) {
	r := NewRunner(func(tool string) string {
		if tool == "ffmpeg" {
			return "true"
		}
		return ""
	})
	_, err := r.Run(context.Background(), "ffmpeg")
	require.NoError(t, err)
}

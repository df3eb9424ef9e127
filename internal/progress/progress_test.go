package progress

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestPublish_WritesHash(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sink := New(client, nil)

	sink.Publish(context.Background(), "job-9", StagePlan, map[string]any{"beats_used": 12})

	require.True(t, mr.Exists("job:job-9"))
	stage, err := mr.HGet("job:job-9", "stage")
	require.NoError(t, err)
	require.Equal(t, StagePlan, stage)

	pct, err := mr.HGet("job:job-9", "progress")
	require.NoError(t, err)
	require.Equal(t, "50", pct)
}

func TestPublish_MonotonicStages(t *testing.T) {
	last := -1
	for _, stage := range []string{StageIngest, StageNormalize, StageNormalizeAudio, StageDetectBeats, StagePlan, StageCut, StageMuxPrep, StageFinalize, StageDone} {
		p := Percent[stage]
		require.GreaterOrEqual(t, p, last)
		last = p
	}
}

package queue

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestEnsureGroup_IdempotentOnRepeatedCalls(t *testing.T) {
	client := newTestClient(t)
	consumer := NewConsumer(client, "jobs", "workers", "worker-0", nil)
	ctx := context.Background()

	require.NoError(t, consumer.ensureGroup(ctx))
	require.NoError(t, consumer.ensureGroup(ctx))
}

func TestDispatch_DecodesPayloadAndInvokesHandler(t *testing.T) {
	client := newTestClient(t)
	consumer := NewConsumer(client, "jobs", "workers", "worker-0", nil)
	ctx := context.Background()
	require.NoError(t, consumer.ensureGroup(ctx))

	payload := `{"job_id":"j1","audio_path":"a.wav","video_paths":["v1.mp4","v2.mp4"],"target_duration_s":10}`
	id, err := client.XAdd(ctx, &redis.XAddArgs{
		Stream: "jobs",
		Values: map[string]any{"payload": payload},
	}).Result()
	require.NoError(t, err)

	var got Task
	consumer.dispatch(ctx, redis.XMessage{ID: id, Values: map[string]any{"payload": payload}}, func(_ context.Context, task Task) error {
		got = task
		return nil
	})

	require.Equal(t, "j1", got.JobID)
	require.Equal(t, []string{"v1.mp4", "v2.mp4"}, got.VideoPaths)
	require.Equal(t, 10.0, got.TargetDurationS)
}

func TestDispatch_MissingPayloadSkipsHandler(t *testing.T) {
	client := newTestClient(t)
	consumer := NewConsumer(client, "jobs2", "workers", "worker-0", nil)
	ctx := context.Background()
	require.NoError(t, consumer.ensureGroup(ctx))

	id, err := client.XAdd(ctx, &redis.XAddArgs{
		Stream: "jobs2",
		Values: map[string]any{"garbage": "1"},
	}).Result()
	require.NoError(t, err)

	called := false
	consumer.dispatch(ctx, redis.XMessage{ID: id, Values: map[string]any{"garbage": "1"}}, func(_ context.Context, _ Task) error {
		called = true
		return nil
	})
	require.False(t, called)
}

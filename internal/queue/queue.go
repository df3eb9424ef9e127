// Package queue implements the consumer side of the distributed
// task-queue transport: a Redis Streams consumer group pulling task
// messages and dispatching them to a handler.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Task is the message shape from the ingestion collaborator.
type Task struct {
	JobID           string   `json:"job_id"`
	AudioPath       string   `json:"audio_path"`
	VideoPaths      []string `json:"video_paths"`
	TargetDurationS float64  `json:"target_duration_s"`
	AttentionMinS   float64  `json:"attention_min_s"`
	AttentionMaxS   float64  `json:"attention_max_s"`
	Shuffle         bool     `json:"shuffle"`
}

// Handler processes one task. A returned error only reflects a transport
// or decode problem; the orchestrator's own success/failure result is
// not surfaced as a Go error, since "ok: false" is still a fully
// processed outcome, not a retry candidate.
type Handler func(ctx context.Context, task Task) error

// Consumer reads Task messages from a Redis Streams consumer group.
type Consumer struct {
	client       *redis.Client
	stream       string
	group        string
	consumerName string
	log          *slog.Logger
}

// NewConsumer builds a Consumer bound to stream/group, identifying itself
// to Redis as consumerName.
func NewConsumer(client *redis.Client, stream, group, consumerName string, log *slog.Logger) *Consumer {
	if log == nil {
		log = slog.Default()
	}
	return &Consumer{client: client, stream: stream, group: group, consumerName: consumerName, log: log}
}

// ensureGroup creates the consumer group at the tail of the stream if it
// does not already exist.
func (c *Consumer) ensureGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.stream, c.group, "$").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

// Run blocks, reading tasks from the stream and dispatching each to
// handle. It returns when ctx is cancelled. Every message is XACKed
// after handle returns, whether or not the job itself succeeded — only a
// transport-level error from handle is logged as a processing failure.
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	if err := c.ensureGroup(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.group,
			Consumer: c.consumerName,
			Streams:  []string{c.stream, ">"},
			Count:    1,
			Block:    5 * time.Second,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
				continue
			}
			c.log.Warn("queue read failed", "err", err)
			continue
		}

		for _, s := range streams {
			for _, msg := range s.Messages {
				c.dispatch(ctx, msg, handle)
			}
		}
	}
}

func (c *Consumer) dispatch(ctx context.Context, msg redis.XMessage, handle Handler) {
	defer c.client.XAck(ctx, c.stream, c.group, msg.ID)

	raw, ok := msg.Values["payload"].(string)
	if !ok {
		c.log.Error("queue message missing payload field", "id", msg.ID)
		return
	}

	var task Task
	if err := json.Unmarshal([]byte(raw), &task); err != nil {
		c.log.Error("queue message undecodable", "id", msg.ID, "err", err)
		return
	}

	if err := handle(ctx, task); err != nil {
		c.log.Error("task handler failed", "id", msg.ID, "job_id", task.JobID, "err", err)
	}
}

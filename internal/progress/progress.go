// Package progress publishes stage/percent observability for a running
// job to a flat Redis hash. Writes are best-effort: a publish failure
// never aborts the job.
package progress

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "job:"

// Stage names in the order the orchestrator walks them, each paired with
// its monotonic progress percentage.
const (
	StageIngest         = "ingest"
	StageNormalize      = "normalize"
	StageNormalizeAudio = "normalize_audio"
	StageDetectBeats    = "detect_beats"
	StagePlan           = "plan"
	StageCut            = "cut"
	StageMuxPrep        = "mux_prep"
	StageFinalize       = "finalize"
	StageDone           = "done"
)

// Percent maps each stage to its fixed progress value.
var Percent = map[string]int{
	StageIngest:         3,
	StageNormalize:      15,
	StageNormalizeAudio: 25,
	StageDetectBeats:    35,
	StagePlan:           50,
	StageCut:            70,
	StageMuxPrep:        80,
	StageFinalize:       95,
	StageDone:           100,
}

// Sink publishes stage transitions for a job id to Redis.
type Sink struct {
	client *redis.Client
	log    *slog.Logger
}

// New builds a Sink over an existing Redis client.
func New(client *redis.Client, log *slog.Logger) *Sink {
	if log == nil {
		log = slog.Default()
	}
	return &Sink{client: client, log: log}
}

// Publish writes stage and its fixed progress percentage, plus any extra
// fields, to job:<jobID>. Errors are logged and swallowed.
func (s *Sink) Publish(ctx context.Context, jobID, stage string, extra map[string]any) {
	fields := map[string]any{
		"stage":    stage,
		"progress": Percent[stage],
	}
	for k, v := range extra {
		fields[k] = v
	}
	if err := s.client.HSet(ctx, keyPrefix+jobID, fields).Err(); err != nil {
		s.log.Warn("progress publish failed", "job_id", jobID, "stage", stage, "err", err)
	}
}

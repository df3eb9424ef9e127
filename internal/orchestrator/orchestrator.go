// Package orchestrator is the top-level state machine tying every other
// component together:
//
//	INIT -> LOCKED -> NORMALIZED -> AUDIO_READY -> BEATS -> PLANNED -> CUT -> MUXED -> DONE
//	                                                                               \-> FAILED
//
// Transitions publish ProgressSink updates; any failure after LOCKED
// releases the lock and the temp directory without publishing an output.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/loopcut/cutworker/internal/assemble"
	"github.com/loopcut/cutworker/internal/audio"
	"github.com/loopcut/cutworker/internal/config"
	"github.com/loopcut/cutworker/internal/joblock"
	"github.com/loopcut/cutworker/internal/mediatool"
	"github.com/loopcut/cutworker/internal/metrics"
	"github.com/loopcut/cutworker/internal/onset"
	"github.com/loopcut/cutworker/internal/planner"
	"github.com/loopcut/cutworker/internal/prng"
	"github.com/loopcut/cutworker/internal/progress"
	"github.com/loopcut/cutworker/internal/queue"
	"github.com/loopcut/cutworker/internal/segment"
	"github.com/redis/go-redis/v9"
)

const resultKeyPrefix = "result:"

// Response is the orchestrator's result, shaped for direct JSON
// serialization back to the ingestion collaborator.
type Response struct {
	Ok           bool      `json:"ok"`
	JobID        string    `json:"job_id,omitempty"`
	Out          string    `json:"out,omitempty"`
	QA           *QAReport `json:"qa,omitempty"`
	Code         string    `json:"code,omitempty"`
	Msg          string    `json:"msg,omitempty"`
	Status       string    `json:"status,omitempty"`
	MissingCount int       `json:"missing_count,omitempty"`
}

// Orchestrator wires every leaf component into the full pipeline.
type Orchestrator struct {
	Config       *config.Config
	Lock         *joblock.Lock
	Progress     *progress.Sink
	ResultClient *redis.Client
	Runner       *mediatool.Runner
	Prober       *mediatool.Prober
	Conditioner  *audio.Conditioner
	Detector     *onset.Detector
	Assembler    *assemble.Assembler
	Log          *slog.Logger
}

// New builds an Orchestrator from its collaborators. resultClient is the
// Redis client the result hash is written to after each job (may be the
// same client backing lock/progress); it may be nil in tests that never
// reach Handle.
func New(cfg *config.Config, lock *joblock.Lock, prog *progress.Sink, resultClient *redis.Client, runner *mediatool.Runner, prober *mediatool.Prober, cond *audio.Conditioner, det *onset.Detector, asm *assemble.Assembler, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		Config: cfg, Lock: lock, Progress: prog, ResultClient: resultClient, Runner: runner, Prober: prober,
		Conditioner: cond, Detector: det, Assembler: asm, Log: log,
	}
}

// Handle adapts Process to queue.Handler: it writes the job's terminal
// result to a `result:<J>` Redis hash (so a caller holding only the job
// id can poll for completion), logs the outcome, and never returns an
// error for a fully-processed job, success or failure — only a
// transport-level problem is a Go error here.
func (o *Orchestrator) Handle(ctx context.Context, task queue.Task) error {
	resp, err := o.Process(ctx, task)
	if err != nil {
		return err
	}
	o.publishResult(ctx, resp)
	if resp.Ok {
		o.Log.Info("job done", "job_id", resp.JobID, "out", resp.Out)
	} else {
		o.Log.Info("job failed", "job_id", resp.JobID, "code", resp.Code, "msg", resp.Msg)
	}
	return nil
}

// publishResult writes the job's terminal Response as a Redis hash at
// result:<J>, best-effort — a write failure is logged and swallowed, same
// policy as ProgressSink.
func (o *Orchestrator) publishResult(ctx context.Context, resp Response) {
	if o.ResultClient == nil {
		return
	}
	data, err := json.Marshal(resp)
	if err != nil {
		o.Log.Warn("result marshal failed", "job_id", resp.JobID, "err", err)
		return
	}
	fields := map[string]any{"ok": resp.Ok, "json": string(data)}
	if err := o.ResultClient.HSet(ctx, resultKeyPrefix+resp.JobID, fields).Err(); err != nil {
		o.Log.Warn("result publish failed", "job_id", resp.JobID, "err", err)
	}
}

// Process runs one job end to end.
func (o *Orchestrator) Process(ctx context.Context, task queue.Task) (Response, error) {
	jobID := task.JobID
	start := time.Now()

	if task.TargetDurationS <= 0 {
		return o.toResponse(jobID, newError(KindTargetTooSmall, "target duration must be > 0")), nil
	}
	if task.AttentionMinS > task.AttentionMaxS {
		return o.toResponse(jobID, newError(KindInvalidPayload, "attention_min_s (%v) > attention_max_s (%v)", task.AttentionMinS, task.AttentionMaxS)), nil
	}
	if len(task.VideoPaths) < 2 {
		return o.toResponse(jobID, newError(KindNotEnoughVideos, "need at least 2 video clips, got %d", len(task.VideoPaths))), nil
	}
	if _, err := os.Stat(task.AudioPath); err != nil {
		return o.toResponse(jobID, newError(KindAudioNotFound, "%s", task.AudioPath)), nil
	}
	if missing, sample := missingVideos(task.VideoPaths); missing > 0 {
		videoErr := newError(KindVideoNotFound, "%d of %d video paths do not exist", missing, len(task.VideoPaths))
		videoErr.MissingCount = missing
		videoErr.Sample = sample
		return o.toResponse(jobID, videoErr), nil
	}

	token, err := o.Lock.Acquire(ctx, jobID)
	if errors.Is(err, joblock.ErrLocked) {
		metrics.LockContentionTotal.Inc()
		resp := o.toResponse(jobID, newError(KindLocked, ""))
		resp.Status = "locked"
		return resp, nil
	}
	if err != nil {
		return o.toResponse(jobID, wrapError(KindBeatPipelineFail, fmt.Errorf("lock acquire: %w", err))), nil
	}
	defer func() {
		if err := o.Lock.Release(context.Background(), jobID, token); err != nil {
			o.Log.Warn("lock release failed", "job_id", jobID, "err", err)
		}
	}()

	stageStart := time.Now()
	markStage := func(stage string) {
		now := time.Now()
		metrics.StageDuration.WithLabelValues(stage).Observe(now.Sub(stageStart).Seconds())
		o.Progress.Publish(ctx, jobID, stage, nil)
		o.Log.Info("stage", "job_id", jobID, "stage", stage)
		stageStart = now
	}

	markStage(progress.StageIngest)

	tempDir := filepath.Join(o.Config.SharedDir, jobID)
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return o.toResponse(jobID, wrapError(KindBeatPipelineFail, fmt.Errorf("create temp dir: %w", err))), nil
	}
	defer os.RemoveAll(tempDir)

	rng := prng.New(jobID)

	markStage(progress.StageNormalize)
	conditioned, err := o.Conditioner.Condition(ctx, task.AudioPath, tempDir, task.TargetDurationS)
	if err != nil {
		return o.toResponse(jobID, wrapError(KindRenderFail, err)), nil
	}
	preElapsed := time.Since(start).Seconds()

	markStage(progress.StageNormalizeAudio)
	markStage(progress.StageDetectBeats)
	onsets, err := o.Detector.Detect(ctx, conditioned.Path)
	if err != nil {
		return o.toResponse(jobID, wrapError(KindBeatPipelineFail, err)), nil
	}

	markStage(progress.StagePlan)
	clipPaths := task.VideoPaths
	if task.Shuffle {
		clipPaths = shuffleClips(clipPaths, rng)
	}
	plan := planner.Plan(onsets, len(clipPaths), planner.Config{
		Target:            task.TargetDurationS,
		FallbackIntervalS: o.Config.FallbackIntervalS,
	}, rng)
	if plan.FallbackUsed {
		metrics.FallbackUsedTotal.Inc()
	}

	markStage(progress.StageCut)
	builder := segment.NewBuilder(o.Runner, o.Prober, rng)
	segPaths := make([]string, 0, len(plan.Cuts)-1)
	for i := 0; i < len(plan.Cuts)-1; i++ {
		want := plan.Cuts[i+1] - plan.Cuts[i]
		clip := clipPaths[plan.Shots[i]]
		segPath, err := builder.Build(ctx, tempDir, i, clip, want)
		if err != nil {
			return o.toResponse(jobID, wrapError(KindVideoBroken, fmt.Errorf("source %s: %w", clip, err))), nil
		}
		segPaths = append(segPaths, segPath)
	}

	markStage(progress.StageMuxPrep)
	finalTmp, err := o.Assembler.Assemble(ctx, tempDir, jobID, segPaths, conditioned.Path, task.TargetDurationS)
	if err != nil {
		return o.toResponse(jobID, wrapError(KindRenderFail, err)), nil
	}

	durOut, err := o.Prober.Duration(ctx, finalTmp)
	if err != nil {
		return o.toResponse(jobID, wrapError(KindRenderFail, err)), nil
	}
	if durOut > task.TargetDurationS+0.1 {
		return o.toResponse(jobID, newError(KindDurationCapViolation,
			"duration_out_s=%.3f exceeds target_s=%.3f by more than 0.1s", durOut, task.TargetDurationS)), nil
	}

	outPath := filepath.Join(o.Config.OutputsDir, jobID+".mp4")
	if err := assemble.Publish(finalTmp, outPath); err != nil {
		return o.toResponse(jobID, wrapError(KindRenderFail, err)), nil
	}

	markStage(progress.StageFinalize)

	qa := buildQA(jobID, task, plan, durOut, preElapsed, time.Since(start).Seconds(), o.Config.WorkerVersion)
	if err := publishQA(o.Config.OutputsDir, jobID, qa); err != nil {
		os.Remove(outPath)
		return o.toResponse(jobID, wrapError(KindRenderFail, err)), nil
	}
	if err := assemble.TouchDone(filepath.Join(o.Config.OutputsDir, jobID+".done")); err != nil {
		os.Remove(outPath)
		os.Remove(filepath.Join(o.Config.OutputsDir, jobID+".json"))
		return o.toResponse(jobID, wrapError(KindRenderFail, err)), nil
	}

	markStage(progress.StageDone)
	metrics.JobsTotal.WithLabelValues("ok").Inc()
	metrics.JobDuration.WithLabelValues("ok").Observe(time.Since(start).Seconds())

	return Response{Ok: true, JobID: jobID, Out: outPath, QA: &qa}, nil
}

func shuffleClips(clips []string, rng *prng.Source) []string {
	idx := make([]int, len(clips))
	for i := range idx {
		idx[i] = i
	}
	rng.ShuffleInts(idx)
	out := make([]string, len(clips))
	for i, j := range idx {
		out[i] = clips[j]
	}
	return out
}

func missingVideos(paths []string) (int, string) {
	missing := 0
	sample := ""
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			missing++
			if sample == "" {
				sample = p
			}
		}
	}
	return missing, sample
}

func publishQA(outputsDir, jobID string, qa QAReport) error {
	qaPath := filepath.Join(outputsDir, jobID+".json")
	tmpPath := qaPath + ".tmp"
	data, err := json.MarshalIndent(qa, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return err
	}
	return assemble.Publish(tmpPath, qaPath)
}

func buildQA(jobID string, task queue.Task, plan planner.Result, durOut, preElapsed, elapsed float64, workerVersion string) QAReport {
	return QAReport{
		JobID:             jobID,
		TargetS:           round3(task.TargetDurationS),
		DurationOutS:      round3(durOut),
		AbsErrS:           round3(absFloat(durOut - task.TargetDurationS)),
		Cuts:              roundAll(plan.Cuts),
		AttentionSegments: []float64{round3(0), round3(plan.HookEnd)},
		AttentionEndS:     round3(plan.HookEnd),
		BeatsTotal:        plan.BeatsTotal,
		BeatsUsed:         plan.BeatsUsed,
		SegmentsTotal:     len(plan.Cuts) - 1,
		FallbackUsed:      plan.FallbackUsed,
		MeanAbsErrS:       meanAbsErr(plan.Cuts, plan.Beats),
		SyncRatio005:      syncRatio005(plan.Cuts, plan.Beats),
		Profile:           "1080x1920@30",
		PreTimeS:          round3(preElapsed),
		WorkerVersion:     workerVersion,
		TimestampUTC:      time.Now().UTC().Format(time.RFC3339),
		ElapsedS:          round3(elapsed),
	}
}

func roundAll(vs []float64) []float64 {
	out := make([]float64, len(vs))
	for i, v := range vs {
		out[i] = round3(v)
	}
	return out
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// toResponse is the sole JSON-building boundary: every failure reaches
// here as an error built by newError/wrapError, and this is the only
// place that unwraps it via errors.As to read Kind and diagnostics back
// out. KindLocked is metered separately via LockContentionTotal, so it
// is excluded from JobsTotal/the warn log here to avoid double-counting.
func (o *Orchestrator) toResponse(jobID string, err error) Response {
	var oe *Error
	if !errors.As(err, &oe) {
		metrics.JobsTotal.WithLabelValues("unknown").Inc()
		o.Log.Warn("job failed", "job_id", jobID, "err", err)
		return Response{Ok: false, JobID: jobID, Code: "UNKNOWN", Msg: err.Error()}
	}

	msg := oe.Message
	if oe.ToolTail != "" {
		msg = fmt.Sprintf("%s (tool tail: %s)", msg, oe.ToolTail)
	}
	if oe.Sample != "" {
		msg = fmt.Sprintf("%s (sample: %s)", msg, oe.Sample)
	}

	if oe.Kind != KindLocked {
		metrics.JobsTotal.WithLabelValues(oe.Kind.String()).Inc()
		o.Log.Warn("job failed", "job_id", jobID, "code", oe.Kind.String(), "msg", msg)
	}

	return Response{Ok: false, JobID: jobID, Code: oe.Kind.String(), Msg: msg, MissingCount: oe.MissingCount}
}

func toolTail(err error) string {
	var toolErr *mediatool.ToolError
	if errors.As(err, &toolErr) {
		return toolErr.Tail
	}
	return ""
}

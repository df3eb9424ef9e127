// Package config loads the worker's environment-variable configuration
// surface into a typed struct, with defaults matching the deployment
// defaults documented for the pipeline.
package config

import (
	"fmt"
	"time"

	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/v2"
)

// Config is the full set of environment-configurable knobs for a worker
// process. All fields have defaults; nothing is required to be set.
type Config struct {
	SharedDir  string
	OutputsDir string

	TargetDurationS   float64
	MinCutGapS        float64
	FallbackIntervalS float64

	AubioMethod    string
	AubioThreshold float64

	LockTTL       time.Duration
	WorkerVersion string
	RedisURL      string

	WorkerConcurrency int
	MetricsAddr       string
	LogLevel          string
	LogFormat         string
	QueueStream       string
	QueueGroup        string

	FFmpegPath  string
	FFprobePath string
	AubioPath   string
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"SHARED_DIR":           "/shared",
		"OUTPUTS_DIR":          "/outputs",
		"TARGET_DURATION_S":    10.0,
		"MIN_CUT_GAP_S":        0.20,
		"FALLBACK_INTERVAL_S":  0.50,
		"AUBIO_METHOD":         "complex",
		"AUBIO_THRESHOLD":      0.35,
		"LOCK_TTL_S":           600,
		"WORKER_VERSION":       "dev",
		"REDIS_URL":            "redis://127.0.0.1:6379/0",
		"WORKER_CONCURRENCY":   1,
		"METRICS_ADDR":         ":9108",
		"LOG_LEVEL":            "info",
		"LOG_FORMAT":           "json",
		"QUEUE_STREAM":         "cutworker:jobs",
		"QUEUE_GROUP":          "cutworker",
		"FFMPEG_PATH":          "ffmpeg",
		"FFPROBE_PATH":         "ffprobe",
		"AUBIO_PATH":           "aubioonset",
	}
}

// Load reads configuration from the process environment, falling back to
// the documented defaults for anything unset.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}
	if err := k.Load(env.Provider(".", env.Opt{
		TransformFunc: func(key, value string) (string, any) {
			return key, value
		},
	}), nil); err != nil {
		return nil, fmt.Errorf("config: load environment: %w", err)
	}

	cfg := &Config{
		SharedDir:         k.String("SHARED_DIR"),
		OutputsDir:        k.String("OUTPUTS_DIR"),
		TargetDurationS:   k.Float64("TARGET_DURATION_S"),
		MinCutGapS:        k.Float64("MIN_CUT_GAP_S"),
		FallbackIntervalS: k.Float64("FALLBACK_INTERVAL_S"),
		AubioMethod:       k.String("AUBIO_METHOD"),
		AubioThreshold:    k.Float64("AUBIO_THRESHOLD"),
		LockTTL:           time.Duration(k.Int("LOCK_TTL_S")) * time.Second,
		WorkerVersion:     k.String("WORKER_VERSION"),
		RedisURL:          k.String("REDIS_URL"),
		WorkerConcurrency: k.Int("WORKER_CONCURRENCY"),
		MetricsAddr:       k.String("METRICS_ADDR"),
		LogLevel:          k.String("LOG_LEVEL"),
		LogFormat:         k.String("LOG_FORMAT"),
		QueueStream:       k.String("QUEUE_STREAM"),
		QueueGroup:        k.String("QUEUE_GROUP"),
		FFmpegPath:        k.String("FFMPEG_PATH"),
		FFprobePath:       k.String("FFPROBE_PATH"),
		AubioPath:         k.String("AUBIO_PATH"),
	}
	if cfg.WorkerConcurrency < 1 {
		cfg.WorkerConcurrency = 1
	}
	return cfg, nil
}

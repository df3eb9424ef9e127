// Command cutworker is the process entrypoint: it loads configuration,
// wires every collaborator, and runs the queue consumer loop until
// SIGINT/SIGTERM.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/loopcut/cutworker/internal/assemble"
	"github.com/loopcut/cutworker/internal/audio"
	"github.com/loopcut/cutworker/internal/config"
	"github.com/loopcut/cutworker/internal/joblock"
	"github.com/loopcut/cutworker/internal/mediatool"
	"github.com/loopcut/cutworker/internal/metrics"
	"github.com/loopcut/cutworker/internal/onset"
	"github.com/loopcut/cutworker/internal/orchestrator"
	"github.com/loopcut/cutworker/internal/progress"
	"github.com/loopcut/cutworker/internal/queue"
)

func main() {
	concurrencyFlag := flag.Int("concurrency", 0, "Worker goroutine count (0: use WORKER_CONCURRENCY)")
	metricsAddrFlag := flag.String("metrics-addr", "", "Override METRICS_ADDR")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *concurrencyFlag > 0 {
		cfg.WorkerConcurrency = *concurrencyFlag
	}
	if *metricsAddrFlag != "" {
		cfg.MetricsAddr = *metricsAddrFlag
	}

	log := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(log)

	if err := os.MkdirAll(cfg.SharedDir, 0o755); err != nil {
		log.Error("create shared dir", "err", err)
		os.Exit(1)
	}
	if err := os.MkdirAll(cfg.OutputsDir, 0o755); err != nil {
		log.Error("create outputs dir", "err", err)
		os.Exit(1)
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Error("parse redis url", "err", err)
		os.Exit(1)
	}
	redisClient := redis.NewClient(opt)

	metrics.Register(prometheus.DefaultRegisterer)

	runner := mediatool.NewRunner(func(tool string) string {
		switch tool {
		case "ffmpeg":
			return cfg.FFmpegPath
		case "ffprobe":
			return cfg.FFprobePath
		case "aubioonset":
			return cfg.AubioPath
		default:
			return tool
		}
	})
	prober := mediatool.NewProber(runner)
	conditioner := audio.New(runner, prober)
	detector := onset.New(runner, cfg.AubioMethod, cfg.AubioThreshold, cfg.MinCutGapS)
	assembler := assemble.New(runner)
	lock := joblock.New(redisClient, cfg.LockTTL)
	progressSink := progress.New(redisClient, log)

	orch := orchestrator.New(cfg, lock, progressSink, redisClient, runner, prober, conditioner, detector, assembler, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
	go func() {
		log.Info("metrics listening", "addr", cfg.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server", "err", err)
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < cfg.WorkerConcurrency; i++ {
		consumer := queue.NewConsumer(redisClient, cfg.QueueStream, cfg.QueueGroup, fmt.Sprintf("worker-%d", i), log)
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			log.Info("consumer started", "id", id)
			if err := consumer.Run(ctx, orch.Handle); err != nil {
				log.Error("consumer stopped", "id", id, "err", err)
			}
		}(i)
	}

	log.Info("cutworker started", "concurrency", cfg.WorkerConcurrency, "worker_version", cfg.WorkerVersion)

	<-ctx.Done()
	log.Info("shutting down")
	_ = metricsServer.Close()
	wg.Wait()
}

func newLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	if format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

// Package commands implements the worker binary's CLI commands, following
// the teacher's cmd/commands/serve.go: an ardanlabs/conf-parsed config
// struct, a Redis client, and a long-running service loop wired together
// in one function.
package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ardanlabs/conf/v2"
	"github.com/artemp/render-stack/internal/broker"
	"github.com/artemp/render-stack/internal/metrics"
	"github.com/artemp/render-stack/internal/renderer"
	"github.com/artemp/render-stack/internal/storage"
	"github.com/artemp/render-stack/internal/worker"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Config is the worker process's full configuration surface, parsed by
// ardanlabs/conf the way serve.go parses the HTTP server's config.
type Config struct {
	conf.Version
	WorkerID string `conf:"env:WORKER_ID"`
	Redis    struct {
		Addr string `conf:"default:127.0.0.1:6379,env:REDIS_ADDR"`
		Key  string `conf:"default:render:jobs,env:REDIS_QUEUE_KEY"`
	}
	Storage struct {
		URL string `conf:"default:http://127.0.0.1:8081,env:STORAGE_URL"`
	}
	MemoryLimitBytes uint64 `conf:"default:1073741824,env:WORKER_MEMORY_LIMIT_BYTES"`
	StylesDir        string `conf:"default:./styles,env:WORKER_STYLES_DIR"`
}

// Run parses configuration, wires the broker/storage/renderer dependencies
// and runs the worker loop until an interrupt is received.
func Run(log *zap.SugaredLogger) error {
	var cfg Config
	cfg.Version = conf.Version{SVN: "render-stack-worker", Desc: "metatile render worker"}
	if err := conf.Parse(os.Args[1:], "WORKER", &cfg); err != nil {
		if err == conf.ErrHelpWanted {
			usage, uerr := conf.Usage("WORKER", &cfg)
			if uerr != nil {
				return uerr
			}
			fmt.Println(usage)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	jobBroker := broker.NewRedisBroker(rdb, cfg.Redis.Key)

	storageClient := storage.NewClient(cfg.Storage.URL)

	registry, err := renderer.LoadStyleRegistry(cfg.StylesDir, storageClient, log)
	if err != nil {
		return fmt.Errorf("loading style configuration: %w", err)
	}

	w, err := worker.New(worker.Config{
		ID:          cfg.WorkerID,
		Broker:      jobBroker,
		Resolver:    registry,
		Storage:     storageClient,
		Metrics:     metrics.NewWorkerMetrics(),
		Log:         log,
		MemoryLimit: cfg.MemoryLimitBytes,
	})
	if err != nil {
		return fmt.Errorf("constructing worker: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Infow("worker: received shutdown signal")
		cancel()
	}()

	return w.Run(ctx)
}

// The worker binary runs the scheduled refresh, prune and topic ingestion
// workflows on Temporal.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/sethvargo/go-envconfig"
	"github.com/sethvargo/go-retry"
	"go.temporal.io/sdk/client"
	sdklog "go.temporal.io/sdk/log"
	_ "golang.org/x/crypto/x509roots/fallback"

	"github.com/jdholdren/myjournal/internal/gnews"
	"github.com/jdholdren/myjournal/internal/ingest"
	"github.com/jdholdren/myjournal/internal/logger"
	"github.com/jdholdren/myjournal/internal/migrations"
	"github.com/jdholdren/myjournal/internal/sqlite"
	"github.com/jdholdren/myjournal/internal/worker"
)

type config struct {
	Database         string `env:"DATABASE, required"`
	TemporalHostPort string `env:"TEMPORAL_HOST_PORT, required"`
	LoggerFormat     string `env:"LOGGER_FORMAT, default=text"`
	StaticDir        string `env:"STATIC_DIR, default=static"`

	EntriesPerJournal  int           `env:"ENTRIES_PER_JOURNAL, default=10"`
	RetentionDays      int           `env:"RETENTION_DAYS, default=30"`
	PacingInterval     time.Duration `env:"PACING_INTERVAL, default=1s"`
	RefreshConcurrency int           `env:"REFRESH_CONCURRENCY, default=1"`
	FetchRetries       uint64        `env:"FETCH_RETRIES, default=2"`
	PageImageFallback  bool          `env:"PAGE_IMAGE_FALLBACK, default=false"`

	GNewsAPIKey  string   `env:"GNEWS_API_KEY"`
	GNewsTopics  []string `env:"GNEWS_TOPICS"`
	GNewsLang    string   `env:"GNEWS_LANG, default=pt"`
	GNewsCountry string   `env:"GNEWS_COUNTRY, default=br"`
}

func main() {
	ctx := context.Background()

	// Parse the config
	var cfg config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		log.Fatalf("error parsing config: %s", err)
	}

	slog.SetDefault(logger.New(cfg.LoggerFormat, os.Stderr))

	if err := runWorker(ctx, cfg); err != nil {
		slog.Error("error running", "error", err)
		os.Exit(1)
	}
}

func runWorker(ctx context.Context, cfg config) error {
	dbx, err := sqlite.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer dbx.Close()
	if err := migrations.Run(dbx); err != nil {
		return fmt.Errorf("error migrating: %s", err)
	}

	// Retry until temporal is ready
	var temporalCli client.Client
	if err := retry.Fibonacci(ctx, 1*time.Second, func(ctx context.Context) error {
		c, err := client.Dial(client.Options{
			HostPort:  cfg.TemporalHostPort,
			Namespace: worker.Namespace,
			Logger:    sdklog.NewStructuredLogger(slog.Default()),
		})
		if err != nil {
			slog.Warn("temporal not ready", "error", err)
			return retry.RetryableError(err)
		}
		temporalCli = c

		return nil
	}); err != nil {
		return fmt.Errorf("unable to create temporal client: %s", err)
	}
	defer temporalCli.Close()

	if err := worker.EnsureNamespace(ctx, temporalCli.WorkflowService(), worker.Namespace, 72*time.Hour); err != nil {
		return err
	}

	var (
		repo = sqlite.New(dbx)
		opts = ingest.Options{
			StaticDir:         cfg.StaticDir,
			EntriesPerJournal: cfg.EntriesPerJournal,
			PageImageFallback: cfg.PageImageFallback,
			Policy: ingest.Policy{
				Interval:    cfg.PacingInterval,
				Concurrency: cfg.RefreshConcurrency,
				Retries:     cfg.FetchRetries,
				Backoff:     time.Second,
			},
		}
		deps = worker.Deps{
			Users:     repo,
			Refresher: ingest.NewFeedRefresher(repo, opts),
			Articles:  repo,
		}
		wcfg = worker.Config{RetentionDays: cfg.RetentionDays}
	)
	if ing := ingest.NewTopicIngester(repo, opts, cfg.GNewsAPIKey, cfg.GNewsLang, cfg.GNewsCountry); ing != nil {
		deps.Topics = ing
		wcfg.Topics = gnews.ParseQueries(cfg.GNewsTopics, cfg.EntriesPerJournal)
	}

	w, err := worker.NewWorker(ctx, temporalCli, deps, wcfg)
	if err != nil {
		return err
	}

	var (
		g    run.Group
		stop = make(chan any)
	)
	g.Add(run.SignalHandler(ctx, os.Interrupt, syscall.SIGTERM))
	g.Add(func() error {
		return w.Run(stop)
	}, func(error) {
		close(stop)
	})

	err = g.Run()
	var sigErr run.SignalError
	if errors.As(err, &sigErr) {
		slog.Info("shut down", "signal", sigErr.Signal.String())
		return nil
	}

	return err
}

// The api binary serves the HTTP API the web client uses.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/sethvargo/go-envconfig"
	_ "golang.org/x/crypto/x509roots/fallback"

	"github.com/jdholdren/myjournal/internal/api"
	"github.com/jdholdren/myjournal/internal/auth"
	"github.com/jdholdren/myjournal/internal/ingest"
	"github.com/jdholdren/myjournal/internal/logger"
	"github.com/jdholdren/myjournal/internal/media"
	"github.com/jdholdren/myjournal/internal/migrations"
	"github.com/jdholdren/myjournal/internal/sqlite"
)

type config struct {
	Database string `env:"DATABASE, required"`
	Port     int    `env:"PORT, default=4444"`

	// Which format to use for logging: either text or json
	LoggerFormat string `env:"LOGGER_FORMAT, default=text"`
	StaticDir    string `env:"STATIC_DIR, default=static"`

	JWTSecret      string        `env:"JWT_SECRET, required"`
	TokenTTL       time.Duration `env:"TOKEN_TTL, default=5h"`
	CookieHashKey  string        `env:"COOKIE_HASH_KEY"`
	CookieBlockKey string        `env:"COOKIE_BLOCK_KEY"`
	HTTPSCookies   bool          `env:"HTTPS_COOKIES, default=false"`
	CorsOrigins    []string      `env:"CORS_ORIGINS, default=http://localhost:3000,http://localhost:5173,http://localhost:5174"`

	EntriesPerJournal  int           `env:"ENTRIES_PER_JOURNAL, default=10"`
	PacingInterval     time.Duration `env:"PACING_INTERVAL, default=1s"`
	RefreshConcurrency int           `env:"REFRESH_CONCURRENCY, default=1"`
	FetchRetries       uint64        `env:"FETCH_RETRIES, default=2"`
	PageImageFallback  bool          `env:"PAGE_IMAGE_FALLBACK, default=false"`
}

func main() {
	ctx := context.Background()

	// Parse the config
	var cfg config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		log.Fatalf("error parsing config: %s", err)
	}

	slog.SetDefault(logger.New(cfg.LoggerFormat, os.Stderr))

	if err := runServer(ctx, cfg); err != nil {
		slog.Error("error running", "error", err)
		os.Exit(1)
	}
}

func runServer(ctx context.Context, cfg config) error {
	dbx, err := sqlite.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer dbx.Close()

	// Migrate, always
	if err := migrations.Run(dbx); err != nil {
		return fmt.Errorf("error migrating: %s", err)
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
	)
	s := api.NewServer(api.ServerConfig{
		Port:           cfg.Port,
		StaticDir:      cfg.StaticDir,
		CookieHashKey:  []byte(cfg.CookieHashKey),
		CookieBlockKey: []byte(cfg.CookieBlockKey),
		HttpsCookies:   cfg.HTTPSCookies,
		CorsOrigins:    cfg.CorsOrigins,
	}, api.Deps{
		Repo:       repo,
		Subscriber: ingest.NewSubscriber(repo),
		Refresher:  ingest.NewFeedRefresher(repo, opts),
		Pages:      media.NewPageExtractor(),
		Tokens:     auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL),
	})

	var g run.Group
	g.Add(run.SignalHandler(ctx, os.Interrupt, syscall.SIGTERM))
	g.Add(func() error {
		slog.Info("listening", "addr", s.Addr)
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("error listening: %s", err)
		}

		return nil
	}, func(error) {
		downCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.Shutdown(downCtx); err != nil {
			slog.Error("error shutting down server", "error", err)
		}
	})

	err = g.Run()
	var sigErr run.SignalError
	if errors.As(err, &sigErr) {
		slog.Info("shut down", "signal", sigErr.Signal.String())
		return nil
	}

	return err
}

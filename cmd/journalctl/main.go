// journalctl is the admin CLI: it runs the pieces of the ingestion pipeline
// by hand against the same database the api and worker use.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/alecthomas/kong"
	"github.com/jmoiron/sqlx"
	_ "golang.org/x/crypto/x509roots/fallback"

	"github.com/jdholdren/myjournal/internal/discovery"
	"github.com/jdholdren/myjournal/internal/gnews"
	"github.com/jdholdren/myjournal/internal/ingest"
	"github.com/jdholdren/myjournal/internal/logger"
	"github.com/jdholdren/myjournal/internal/migrations"
	"github.com/jdholdren/myjournal/internal/myjournal"
	"github.com/jdholdren/myjournal/internal/sqlite"
)

type globals struct {
	Database          string `help:"Path to the sqlite database." env:"DATABASE" default:"myjournal.db"`
	LoggerFormat      string `help:"Log format." env:"LOGGER_FORMAT" default:"text" enum:"text,json"`
	StaticDir         string `help:"Directory images are stored under." env:"STATIC_DIR" default:"static"`
	EntriesPerJournal int    `help:"Entries taken from each feed." env:"ENTRIES_PER_JOURNAL" default:"10"`
}

func (g globals) open() (*sqlx.DB, sqlite.Repo, error) {
	dbx, err := sqlite.Open(g.Database)
	if err != nil {
		return nil, sqlite.Repo{}, err
	}
	if err := migrations.Run(dbx); err != nil {
		dbx.Close()
		return nil, sqlite.Repo{}, fmt.Errorf("error migrating: %s", err)
	}

	return dbx, sqlite.New(dbx), nil
}

func (g globals) options() ingest.Options {
	return ingest.Options{
		StaticDir:         g.StaticDir,
		EntriesPerJournal: g.EntriesPerJournal,
		Policy:            ingest.DefaultPolicy(),
	}
}

type cli struct {
	Globals globals `embed:""`

	Discover discoverCmd `cmd:"" help:"Find the feed URL of a site."`
	Validate validateCmd `cmd:"" help:"Check that a feed URL parses and has a title."`
	Refresh  refreshCmd  `cmd:"" help:"Fetch new articles for users' journals."`
	Prune    pruneCmd    `cmd:"" help:"Delete articles past the retention window."`
	Topics   topicsCmd   `cmd:"" help:"Ingest generic news from GNews."`
}

type discoverCmd struct {
	URL string `arg:"" help:"Site URL."`
}

func (c discoverCmd) Run(ctx context.Context) error {
	d := discovery.New()
	feedURL, err := d.Discover(ctx, c.URL)
	if err != nil {
		return err
	}
	title, err := d.Validate(ctx, feedURL)
	if err != nil {
		return err
	}

	return printJSON(map[string]string{"feed_url": feedURL, "title": title})
}

type validateCmd struct {
	FeedURL string `arg:"" help:"Feed URL."`
}

func (c validateCmd) Run(ctx context.Context) error {
	title, err := discovery.New().Validate(ctx, c.FeedURL)
	if err != nil {
		return err
	}

	return printJSON(map[string]string{"feed_url": c.FeedURL, "title": title})
}

type refreshCmd struct {
	UserIDs []int64 `arg:"" optional:"" help:"Users to refresh. Every active user when empty."`
}

func (c refreshCmd) Run(ctx context.Context, g *globals) error {
	dbx, repo, err := g.open()
	if err != nil {
		return err
	}
	defer dbx.Close()

	ids := c.UserIDs
	if len(ids) == 0 {
		if ids, err = repo.AllUserIDs(ctx); err != nil {
			return err
		}
	}

	r := ingest.NewFeedRefresher(repo, g.options())
	reports := make([]myjournal.RefreshReport, 0, len(ids))
	for _, id := range ids {
		report, err := r.RefreshUser(ctx, id)
		if err != nil {
			return err
		}
		reports = append(reports, report)
	}

	return printJSON(reports)
}

type pruneCmd struct {
	Days int `help:"Retention window in days." env:"RETENTION_DAYS" default:"30"`
}

func (c pruneCmd) Run(ctx context.Context, g *globals) error {
	dbx, repo, err := g.open()
	if err != nil {
		return err
	}
	defer dbx.Close()

	return printJSON(map[string]int{"deleted": ingest.Prune(ctx, repo, c.Days)})
}

type topicsCmd struct {
	Queries []string `arg:"" help:"Topics such as technology, or site:example.com."`
	APIKey  string   `help:"GNews API key." env:"GNEWS_API_KEY" required:""`
	Lang    string   `help:"Result language." env:"GNEWS_LANG" default:"pt"`
	Country string   `help:"Result country." env:"GNEWS_COUNTRY" default:"br"`
}

func (c topicsCmd) Run(ctx context.Context, g *globals) error {
	dbx, repo, err := g.open()
	if err != nil {
		return err
	}
	defer dbx.Close()

	ing := ingest.NewTopicIngester(repo, g.options(), c.APIKey, c.Lang, c.Country)
	inserted := map[string]int{}
	for _, q := range gnews.ParseQueries(c.Queries, g.EntriesPerJournal) {
		n, err := ing.Ingest(ctx, q)
		if err != nil {
			return err
		}
		inserted[q.Value] = n
	}

	return printJSON(inserted)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	var c cli
	kctx := kong.Parse(&c,
		kong.Name("journalctl"),
		kong.Description("Run the myjournal ingestion pipeline by hand."),
		kong.UsageOnError(),
		kong.BindTo(ctx, (*context.Context)(nil)),
	)
	slog.SetDefault(logger.New(c.Globals.LoggerFormat, os.Stderr))

	start := time.Now()
	err := kctx.Run(&c.Globals)
	slog.Debug("command finished", "command", kctx.Command(), "duration", time.Since(start))
	kctx.FatalIfErrorf(err)
}

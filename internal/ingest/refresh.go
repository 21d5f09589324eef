// Package ingest runs the pipeline that turns subscriptions into stored
// articles: subscribing to journals, refreshing a user's journals and
// ingesting generic topic news.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"

	"github.com/jdholdren/myjournal/internal/logger"
	"github.com/jdholdren/myjournal/internal/metrics"
	"github.com/jdholdren/myjournal/internal/myjournal"
)

// EntrySource reads normalized entries from a feed.
type EntrySource interface {
	Read(ctx context.Context, feedURL string) ([]myjournal.FetchedEntry, error)
}

// RefreshRepo is the storage a refresh needs.
type RefreshRepo interface {
	UserJournals(ctx context.Context, userID int64) ([]myjournal.Journal, error)
	UpsertBatch(ctx context.Context, entries []myjournal.FetchedEntry, journalID int64, userID *int64, generic bool) (int, error)
}

// Policy controls how hard a refresh leans on source sites.
type Policy struct {
	// Minimum gap between two requests to the same host.
	Interval time.Duration
	// Journals refreshed at once.
	Concurrency int
	// Extra attempts after a network failure.
	Retries uint64
	// First retry delay, doubled on each further attempt.
	Backoff time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		Interval:    time.Second,
		Concurrency: 1,
		Retries:     2,
		Backoff:     time.Second,
	}
}

// Refresher pulls new articles for every journal a user subscribes to.
type Refresher struct {
	Repo   RefreshRepo
	Source EntrySource
	Policy Policy

	pacer *HostPacer
}

func NewRefresher(repo RefreshRepo, source EntrySource, policy Policy) *Refresher {
	if policy.Concurrency < 1 {
		policy.Concurrency = 1
	}

	return &Refresher{
		Repo:   repo,
		Source: source,
		Policy: policy,
		pacer:  NewHostPacer(policy.Interval),
	}
}

type journalOutcome int

const (
	outcomeSkipped journalOutcome = iota
	outcomeOK
	outcomeFailed
)

// RefreshUser fetches and stores new articles from each of the user's
// journals. A journal that fails is logged and counted in the report but
// never stops the others. The error is only for when the journals can't be
// listed in the first place.
func (r *Refresher) RefreshUser(ctx context.Context, userID int64) (myjournal.RefreshReport, error) {
	ctx = logger.Ctx(ctx, slog.Int64("user_id", userID))

	journals, err := r.Repo.UserJournals(ctx, userID)
	if err != nil {
		return myjournal.RefreshReport{}, fmt.Errorf("error listing journals: %w", err)
	}
	slog.InfoContext(ctx, "refreshing user journals", "journals", len(journals))

	var (
		mu        sync.Mutex
		inserted  int
		attempted int
		failed    int
		g         errgroup.Group
	)
	g.SetLimit(r.Policy.Concurrency)
	for _, j := range journals {
		j := j
		g.Go(func() error {
			n, outcome := r.refreshJournal(ctx, userID, j)

			mu.Lock()
			defer mu.Unlock()
			switch outcome {
			case outcomeOK:
				attempted++
				inserted += n
			case outcomeFailed:
				attempted++
				failed++
			}
			return nil
		})
	}
	_ = g.Wait()

	report := myjournal.RefreshReport{
		Status:           status(attempted, failed),
		UserID:           userID,
		NewArticlesFound: inserted,
		FailedJournals:   failed,
	}
	metrics.RefreshRunsTotal.WithLabelValues(string(report.Status)).Inc()
	metrics.ArticlesInsertedTotal.WithLabelValues("personal").Add(float64(inserted))
	slog.InfoContext(ctx, "refresh complete", "status", report.Status, "new_articles", inserted, "failed_journals", failed)

	return report, nil
}

func status(attempted, failed int) myjournal.RefreshStatus {
	switch {
	case failed == 0:
		return myjournal.RefreshStatusSuccess
	case failed == attempted:
		return myjournal.RefreshStatusFailed
	default:
		return myjournal.RefreshStatusPartial
	}
}

func (r *Refresher) refreshJournal(ctx context.Context, userID int64, j myjournal.Journal) (int, journalOutcome) {
	ctx = logger.Ctx(ctx, slog.Int64("journal_id", j.ID), slog.String("journal", j.Name))
	if j.RSS == "" {
		slog.InfoContext(ctx, "skipping journal without feed url")
		return 0, outcomeSkipped
	}

	entries, err := r.fetch(ctx, j.RSS)
	if err != nil {
		slog.ErrorContext(ctx, "error fetching journal", "rss", j.RSS, "error", err)
		return 0, outcomeFailed
	}
	if len(entries) == 0 {
		slog.InfoContext(ctx, "no entries in journal feed")
		return 0, outcomeOK
	}

	n, err := r.Repo.UpsertBatch(ctx, entries, j.ID, &userID, false)
	if err != nil {
		slog.ErrorContext(ctx, "error saving journal articles", "error", err)
		return 0, outcomeFailed
	}

	slog.InfoContext(ctx, "saved journal articles", "new", n, "fetched", len(entries))
	return n, outcomeOK
}

// Fetches with pacing, retrying network failures with exponential backoff.
func (r *Refresher) fetch(ctx context.Context, feedURL string) ([]myjournal.FetchedEntry, error) {
	var (
		entries []myjournal.FetchedEntry
		backoff = retry.WithMaxRetries(r.Policy.Retries, retry.NewExponential(r.backoffBase()))
	)
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := r.pacer.Wait(ctx, feedURL); err != nil {
			return err
		}

		var err error
		entries, err = r.Source.Read(ctx, feedURL)
		if errors.Is(err, myjournal.ErrNetwork) {
			slog.WarnContext(ctx, "network error reading feed, may retry", "error", err)
			return retry.RetryableError(err)
		}
		return err
	})

	return entries, err
}

func (r *Refresher) backoffBase() time.Duration {
	if r.Policy.Backoff <= 0 {
		return time.Second
	}
	return r.Policy.Backoff
}

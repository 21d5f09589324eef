package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jdholdren/myjournal/internal/logger"
	"github.com/jdholdren/myjournal/internal/myjournal"
)

// FeedFinder locates a site's feed and checks it is usable.
type FeedFinder interface {
	Discover(ctx context.Context, siteURL string) (string, error)
	Validate(ctx context.Context, feedURL string) (string, error)
}

// Subscriber attaches journals to users, creating each journal at most once.
type Subscriber struct {
	Repo   myjournal.JournalRepo
	Finder FeedFinder
}

// Subscribe resolves siteURL to a journal and subscribes userID to it.
//
// A journal already known by its site URL or by the discovered feed URL is
// reused. Otherwise the feed must pass validation before a journal is
// created; discovery and validation failures come back unwrapped enough for
// errors.Is against [myjournal.ErrFeedNotFound], [myjournal.ErrInvalidFeed]
// and [myjournal.ErrNetwork], and nothing is written.
func (s Subscriber) Subscribe(ctx context.Context, userID int64, siteURL string) (myjournal.Journal, error) {
	siteURL = strings.TrimRight(strings.TrimSpace(siteURL), "/")
	ctx = logger.Ctx(ctx, slog.Int64("user_id", userID), slog.String("site_url", siteURL))

	j, err := s.resolve(ctx, siteURL)
	if err != nil {
		return myjournal.Journal{}, err
	}
	if err := s.Repo.Subscribe(ctx, userID, j.ID); err != nil {
		return myjournal.Journal{}, err
	}

	slog.InfoContext(ctx, "subscribed to journal", "journal_id", j.ID, "rss", j.RSS)
	return j, nil
}

func (s Subscriber) resolve(ctx context.Context, siteURL string) (myjournal.Journal, error) {
	j, err := s.Repo.JournalByURL(ctx, siteURL)
	if err == nil {
		return j, nil
	}
	if !errors.Is(err, myjournal.ErrNotFound) {
		return myjournal.Journal{}, err
	}

	feedURL, err := s.Finder.Discover(ctx, siteURL)
	if err != nil {
		return myjournal.Journal{}, fmt.Errorf("error discovering feed: %w", err)
	}

	j, err = s.Repo.JournalByRSS(ctx, feedURL)
	if err == nil {
		return j, nil
	}
	if !errors.Is(err, myjournal.ErrNotFound) {
		return myjournal.Journal{}, err
	}

	title, err := s.Finder.Validate(ctx, feedURL)
	if err != nil {
		return myjournal.Journal{}, fmt.Errorf("error validating feed: %w", err)
	}

	return s.Repo.InsertJournal(ctx, myjournal.Journal{
		Name: title,
		URL:  siteURL,
		RSS:  feedURL,
	})
}

// Package feed fetches RSS, Atom and JSON feeds and turns their entries into
// records the article store accepts.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/jdholdren/myjournal/internal/metrics"
	"github.com/jdholdren/myjournal/internal/myjournal"
	"github.com/jdholdren/myjournal/internal/webclient"
)

// DefaultLimit is how many entries are taken from each feed per refresh.
const DefaultLimit = 10

// ImageResolver finds and stores a representative image for an entry,
// returning the path it is served under. It never fails; nil means no image.
type ImageResolver interface {
	Resolve(ctx context.Context, item *gofeed.Item) *string
}

// Reader fetches a feed and normalizes its newest entries.
type Reader struct {
	Client *http.Client
	Images ImageResolver
	Limit  int
}

func NewReader(images ImageResolver, limit int) Reader {
	if limit <= 0 {
		limit = DefaultLimit
	}

	return Reader{
		Client: webclient.NewClient(10 * time.Second),
		Images: images,
		Limit:  limit,
	}
}

// Read returns at most Limit normalized entries from the feed at feedURL.
//
// An empty slice with a nil error means the feed had nothing usable.
// Failures to reach the feed wrap [myjournal.ErrNetwork] and feeds that
// don't parse wrap [myjournal.ErrInvalidFeed].
func (r Reader) Read(ctx context.Context, feedURL string) ([]myjournal.FetchedEntry, error) {
	parsed, err := r.Fetch(ctx, feedURL)
	if err != nil {
		return nil, err
	}

	return Normalize(ctx, parsed, r.Limit, r.Images), nil
}

// Fetch downloads and parses the feed at feedURL.
func (r Reader) Fetch(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	start := time.Now()

	resp, err := webclient.Get(ctx, r.Client, feedURL, nil)
	if err != nil {
		metrics.RecordFeedFetch(false, time.Since(start))
		return nil, err
	}
	defer resp.Body.Close()

	parsed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		metrics.RecordFeedFetch(false, time.Since(start))
		return nil, fmt.Errorf("error parsing feed %s: %w: %s", feedURL, myjournal.ErrInvalidFeed, err)
	}

	metrics.RecordFeedFetch(true, time.Since(start))
	slog.DebugContext(ctx, "fetched feed", "url", feedURL, "items", len(parsed.Items), "type", parsed.FeedType)
	return parsed, nil
}

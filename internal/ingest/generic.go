package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jdholdren/myjournal/internal/gnews"
	"github.com/jdholdren/myjournal/internal/logger"
	"github.com/jdholdren/myjournal/internal/metrics"
	"github.com/jdholdren/myjournal/internal/myjournal"
)

// NewsSearcher is the part of the GNews client topic ingestion uses.
type NewsSearcher interface {
	RequestURL(q gnews.Query) (string, error)
	Fetch(ctx context.Context, q gnews.Query) []gnews.Article
}

// TopicIngester stores generic news for a topic or a site. Each query gets
// its own journal, keyed by the query's request URL, and its articles have
// no owner.
type TopicIngester struct {
	Repo interface {
		myjournal.JournalRepo
		myjournal.ArticleRepo
	}
	News   NewsSearcher
	Images gnews.ImageDownloader
	Limit  int
}

// Ingest fetches q and stores what's new, returning the number inserted.
func (t TopicIngester) Ingest(ctx context.Context, q gnews.Query) (int, error) {
	if q.Limit <= 0 {
		q.Limit = t.Limit
	}
	ctx = logger.Ctx(ctx, slog.String("search_type", string(q.Type)), slog.String("search", q.Value))

	feedURL, err := t.News.RequestURL(q)
	if err != nil {
		return 0, err
	}
	// Each query is its own source, so its URL is the request URL too
	j, err := t.Repo.InsertJournal(ctx, myjournal.Journal{
		Name: "GNews " + q.Value,
		URL:  feedURL,
		RSS:  feedURL,
	})
	if err != nil {
		return 0, fmt.Errorf("error ensuring topic journal: %w", err)
	}

	articles := t.News.Fetch(ctx, q)
	if len(articles) == 0 {
		slog.InfoContext(ctx, "no generic articles returned")
		return 0, nil
	}

	var topic *string
	if q.Type == gnews.SearchTopic {
		topic = &q.Value
	}
	n, err := t.Repo.UpsertBatch(ctx, gnews.Entries(ctx, articles, topic, t.Images), j.ID, nil, true)
	if err != nil {
		return 0, err
	}

	metrics.ArticlesInsertedTotal.WithLabelValues("generic").Add(float64(n))
	slog.InfoContext(ctx, "saved generic articles", "new", n, "fetched", len(articles))
	return n, nil
}

// Prune drops articles past the retention window. It is best effort and
// reports how many rows went.
func Prune(ctx context.Context, repo myjournal.ArticleRepo, days int) int {
	n := repo.PruneOlderThan(ctx, days)
	metrics.ArticlesPrunedTotal.Add(float64(n))
	return n
}

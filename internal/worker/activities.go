package worker

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/activity"

	"github.com/jdholdren/myjournal/internal/gnews"
	"github.com/jdholdren/myjournal/internal/ingest"
	"github.com/jdholdren/myjournal/internal/myjournal"
)

type (
	UserLister interface {
		AllUserIDs(ctx context.Context) ([]int64, error)
	}

	Refresher interface {
		RefreshUser(ctx context.Context, userID int64) (myjournal.RefreshReport, error)
	}

	TopicIngester interface {
		Ingest(ctx context.Context, q gnews.Query) (int, error)
	}

	// Deps are the services activities run against. Topics may be nil when
	// no GNews key is configured.
	Deps struct {
		Users     UserLister
		Refresher Refresher
		Articles  myjournal.ArticleRepo
		Topics    TopicIngester
	}
)

type activities struct {
	users         UserLister
	refresher     Refresher
	articles      myjournal.ArticleRepo
	topics        TopicIngester
	retentionDays int
}

// Instance to make the workflow a bit more readable
var acts = activities{}

// Lists every active user.
func (a activities) AllUserIDs(ctx context.Context) ([]int64, error) {
	ids, err := a.users.AllUserIDs(ctx)
	if err != nil {
		return nil, appError("error listing users", err)
	}

	return ids, nil
}

// Refreshes all of one user's journals. Failing journals are in the report,
// not the error.
func (a activities) RefreshUser(ctx context.Context, userID int64) (myjournal.RefreshReport, error) {
	report, err := a.refresher.RefreshUser(ctx, userID)
	if err != nil {
		return myjournal.RefreshReport{}, appError("error refreshing user", err)
	}

	activity.GetLogger(ctx).Info("refreshed user", "user_id", userID, "status", report.Status, "new_articles", report.NewArticlesFound)
	return report, nil
}

// Drops articles past retention. Best effort: it never fails.
func (a activities) PruneArticles(ctx context.Context) (int, error) {
	n := ingest.Prune(ctx, a.articles, a.retentionDays)
	activity.GetLogger(ctx).Info("pruned articles", "deleted", n, "retention_days", a.retentionDays)

	return n, nil
}

func (a activities) IngestTopic(ctx context.Context, q gnews.Query) (int, error) {
	if a.topics == nil {
		return 0, appError("topic ingestion is not configured", fmt.Errorf("no ingester: %w", gnews.ErrInvalidQuery))
	}

	n, err := a.topics.Ingest(ctx, q)
	if err != nil {
		return 0, appError("error ingesting topic", err)
	}

	return n, nil
}

package worker

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/jdholdren/myjournal/internal/gnews"
	"github.com/jdholdren/myjournal/internal/myjournal"
)

type workflows struct{}

func activityOptions(timeout time.Duration) workflow.ActivityOptions {
	return workflow.ActivityOptions{
		StartToCloseTimeout: timeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumAttempts:    3, // 0 is unlimited retries
		},
	}
}

// RefreshSummary adds up the reports of one RefreshAllUsers run.
type RefreshSummary struct {
	Users       int `json:"users"`
	NewArticles int `json:"new_articles"`
	// Users whose refresh errored out or came back failed.
	FailedUsers int `json:"failed_users"`
}

// RefreshAllUsers refreshes every user's journals, one activity per user.
// A user that fails doesn't stop the rest.
func (workflows) RefreshAllUsers(ctx workflow.Context) (RefreshSummary, error) {
	log := workflow.GetLogger(ctx)

	var ids []int64
	listCtx := workflow.WithActivityOptions(ctx, activityOptions(10*time.Second))
	if err := workflow.ExecuteActivity(listCtx, acts.AllUserIDs).Get(listCtx, &ids); err != nil {
		log.Error("failed to list users", "error", err)
		return RefreshSummary{}, err
	}

	var (
		summary    = RefreshSummary{Users: len(ids)}
		refreshCtx = workflow.WithActivityOptions(ctx, activityOptions(15*time.Minute))
		wg         = workflow.NewWaitGroup(ctx)
	)
	wg.Add(len(ids))
	for _, id := range ids {
		id := id
		workflow.Go(ctx, func(ctx workflow.Context) {
			defer wg.Done()

			var report myjournal.RefreshReport
			if err := workflow.ExecuteActivity(refreshCtx, acts.RefreshUser, id).Get(ctx, &report); err != nil {
				log.Error("failed to refresh user", "user_id", id, "error", err)
				summary.FailedUsers++
				return
			}
			if report.Status == myjournal.RefreshStatusFailed {
				summary.FailedUsers++
			}
			summary.NewArticles += report.NewArticlesFound
		})
	}
	wg.Wait(ctx)

	log.Info("refreshed all users", "users", summary.Users, "new_articles", summary.NewArticles, "failed_users", summary.FailedUsers)
	return summary, nil
}

// PruneArticles deletes articles older than the retention window.
func (workflows) PruneArticles(ctx workflow.Context) (int, error) {
	ctx = workflow.WithActivityOptions(ctx, activityOptions(time.Minute))

	var deleted int
	if err := workflow.ExecuteActivity(ctx, acts.PruneArticles).Get(ctx, &deleted); err != nil {
		return 0, err
	}

	return deleted, nil
}

// IngestTopics pulls generic news for each query in turn, so the GNews
// quota is spent one request at a time. Returns the number of new articles.
func (workflows) IngestTopics(ctx workflow.Context, queries []gnews.Query) (int, error) {
	var (
		log      = workflow.GetLogger(ctx)
		inserted int
	)
	ctx = workflow.WithActivityOptions(ctx, activityOptions(2*time.Minute))

	for _, q := range queries {
		var n int
		err := workflow.ExecuteActivity(ctx, acts.IngestTopic, q).Get(ctx, &n)
		if isErrType(err, errTypeInvalidQuery) {
			log.Warn("skipping invalid topic query", "type", q.Type, "value", q.Value, "error", err)
			continue
		}
		if err != nil {
			log.Error("failed to ingest topic", "type", q.Type, "value", q.Value, "error", err)
			continue
		}
		inserted += n
	}

	return inserted, nil
}

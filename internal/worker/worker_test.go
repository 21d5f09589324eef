package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"

	"github.com/jdholdren/myjournal/internal/gnews"
	"github.com/jdholdren/myjournal/internal/myjournal"
)

type fakeUsers []int64

func (f fakeUsers) AllUserIDs(context.Context) ([]int64, error) { return f, nil }

type fakeRefresher map[int64]myjournal.RefreshReport

func (f fakeRefresher) RefreshUser(_ context.Context, userID int64) (myjournal.RefreshReport, error) {
	report, ok := f[userID]
	if !ok {
		return myjournal.RefreshReport{}, errors.New("database is locked")
	}
	return report, nil
}

type fakeArticles struct {
	myjournal.ArticleRepo
	days int
}

func (f *fakeArticles) PruneOlderThan(_ context.Context, days int) int {
	f.days = days
	return 4
}

type fakeIngester struct {
	mu    sync.Mutex
	calls map[string]int
}

func (f *fakeIngester) Ingest(_ context.Context, q gnews.Query) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[q.Value]++

	switch q.Value {
	case "technology":
		return 3, nil
	case "":
		return 0, fmt.Errorf("empty topic: %w", gnews.ErrInvalidQuery)
	}
	return 0, errors.New("gnews is down")
}

func newTestEnv(t *testing.T, a *activities) *testsuite.TestWorkflowEnvironment {
	t.Helper()

	var s testsuite.WorkflowTestSuite
	env := s.NewTestWorkflowEnvironment()
	register(env, a)
	return env
}

func TestRefreshAllUsers(t *testing.T) {
	env := newTestEnv(t, &activities{
		users: fakeUsers{1, 2, 3},
		refresher: fakeRefresher{
			1: {Status: myjournal.RefreshStatusSuccess, UserID: 1, NewArticlesFound: 2},
			2: {Status: myjournal.RefreshStatusFailed, UserID: 2, FailedJournals: 1},
		},
	})

	env.ExecuteWorkflow(workflows{}.RefreshAllUsers)
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var summary RefreshSummary
	require.NoError(t, env.GetWorkflowResult(&summary))
	assert.Equal(t, RefreshSummary{Users: 3, NewArticles: 2, FailedUsers: 2}, summary)
}

func TestRefreshAllUsers_NoUsers(t *testing.T) {
	env := newTestEnv(t, &activities{users: fakeUsers{}, refresher: fakeRefresher{}})

	env.ExecuteWorkflow(workflows{}.RefreshAllUsers)
	require.NoError(t, env.GetWorkflowError())

	var summary RefreshSummary
	require.NoError(t, env.GetWorkflowResult(&summary))
	assert.Zero(t, summary)
}

func TestPruneArticles(t *testing.T) {
	articles := &fakeArticles{}
	env := newTestEnv(t, &activities{articles: articles, retentionDays: 30})

	env.ExecuteWorkflow(workflows{}.PruneArticles)
	require.NoError(t, env.GetWorkflowError())

	var deleted int
	require.NoError(t, env.GetWorkflowResult(&deleted))
	assert.Equal(t, 4, deleted)
	assert.Equal(t, 30, articles.days)
}

func TestIngestTopics(t *testing.T) {
	ing := &fakeIngester{calls: map[string]int{}}
	env := newTestEnv(t, &activities{topics: ing})

	env.ExecuteWorkflow(workflows{}.IngestTopics, []gnews.Query{
		{Type: gnews.SearchTopic, Value: "technology"},
		{Type: gnews.SearchTopic, Value: ""},
		{Type: gnews.SearchTopic, Value: "world"},
	})
	require.NoError(t, env.GetWorkflowError())

	var inserted int
	require.NoError(t, env.GetWorkflowResult(&inserted))
	assert.Equal(t, 3, inserted)
	assert.Equal(t, 1, ing.calls[""], "invalid queries aren't retried")
	assert.Equal(t, 3, ing.calls["world"], "other failures are")
}

func TestIngestTopics_NotConfigured(t *testing.T) {
	env := newTestEnv(t, &activities{})

	env.ExecuteWorkflow(workflows{}.IngestTopics, []gnews.Query{{Type: gnews.SearchTopic, Value: "technology"}})
	require.NoError(t, env.GetWorkflowError())

	var inserted int
	require.NoError(t, env.GetWorkflowResult(&inserted))
	assert.Zero(t, inserted)
}

func TestAppError(t *testing.T) {
	assert.NoError(t, appError("nothing", nil))

	err := appError("bad query", fmt.Errorf("x: %w", gnews.ErrInvalidQuery))
	assert.True(t, isErrType(err, errTypeInvalidQuery))
	assert.False(t, isErrType(err, errTypeInternal))

	err = appError("boom", errors.New("boom"))
	assert.True(t, isErrType(err, errTypeInternal))
	assert.False(t, isErrType(errors.New("plain"), errTypeInternal))
}

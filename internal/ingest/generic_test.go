package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdholdren/myjournal/internal/gnews"
	"github.com/jdholdren/myjournal/internal/myjournal"
)

type fakeNews struct {
	articles []gnews.Article
	queries  []gnews.Query
}

func (f *fakeNews) RequestURL(q gnews.Query) (string, error) {
	return (&gnews.Client{BaseURL: "https://gnews.test", Lang: "en", Country: "us"}).RequestURL(q)
}

func (f *fakeNews) Fetch(_ context.Context, q gnews.Query) []gnews.Article {
	f.queries = append(f.queries, q)
	return f.articles
}

func TestTopicIngester_Ingest(t *testing.T) {
	var (
		ctx  = context.Background()
		repo = newTestRepo(t)
		news = &fakeNews{articles: []gnews.Article{
			{Title: "Chips ahoy", URL: "https://tech.example/chips", PublishedAt: time.Now().UTC().Format(time.RFC3339), Description: "<p>Silicon</p>"},
			{Title: "Rockets", URL: "https://tech.example/rockets", PublishedAt: time.Now().UTC().Format(time.RFC3339)},
		}}
		ing = TopicIngester{Repo: repo, News: news, Limit: 5}
	)

	n, err := ing.Ingest(ctx, gnews.Query{Type: gnews.SearchTopic, Value: "technology"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 5, news.queries[0].Limit, "limit falls back to the ingester's")

	n, err = ing.Ingest(ctx, gnews.Query{Type: gnews.SearchTopic, Value: "technology"})
	require.NoError(t, err)
	assert.Zero(t, n)

	articles, err := repo.Articles(ctx, myjournal.ArticleFilter{Generic: ptr(true), Topics: []string{"technology"}})
	require.NoError(t, err)
	require.Len(t, articles, 2)
	for _, a := range articles {
		assert.Nil(t, a.UserID)
		assert.Equal(t, "GNews technology", a.SourceName)
	}
}

func TestTopicIngester_SiteHasNoTopic(t *testing.T) {
	var (
		ctx  = context.Background()
		repo = newTestRepo(t)
		news = &fakeNews{articles: []gnews.Article{
			{Title: "Site story", URL: "https://site.example/story", PublishedAt: time.Now().UTC().Format(time.RFC3339)},
		}}
		ing = TopicIngester{Repo: repo, News: news, Limit: 5}
	)

	n, err := ing.Ingest(ctx, gnews.Query{Type: gnews.SearchSite, Value: "site.example"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	articles, err := repo.Articles(ctx, myjournal.ArticleFilter{Sources: []string{"GNews site.example"}})
	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Nil(t, articles[0].Topic)
}

func TestTopicIngester_JournalsAreNotSubscribable(t *testing.T) {
	var (
		ctx   = context.Background()
		repo  = newTestRepo(t)
		alice = testUser(t, repo, "alice")
		news  = &fakeNews{articles: []gnews.Article{
			{Title: "Story", URL: "https://tech.example/story", PublishedAt: time.Now().UTC().Format(time.RFC3339)},
		}}
		ing = TopicIngester{Repo: repo, News: news, Limit: 5}
	)

	for _, q := range []gnews.Query{
		{Type: gnews.SearchTopic, Value: "technology"},
		{Type: gnews.SearchTopic, Value: "world"},
	} {
		_, err := ing.Ingest(ctx, q)
		require.NoError(t, err)
	}

	tech, err := repo.JournalByRSS(ctx, mustRequestURL(t, news, gnews.Query{Type: gnews.SearchTopic, Value: "technology", Limit: 5}))
	require.NoError(t, err)
	world, err := repo.JournalByRSS(ctx, mustRequestURL(t, news, gnews.Query{Type: gnews.SearchTopic, Value: "world", Limit: 5}))
	require.NoError(t, err)
	assert.NotEqual(t, tech.URL, world.URL)

	// The API host is not a site anyone subscribed to
	s := Subscriber{Repo: repo, Finder: &fakeFinder{}}
	_, err = s.Subscribe(ctx, alice.ID, gnews.DefaultBaseURL)
	assert.ErrorIs(t, err, myjournal.ErrFeedNotFound)

	js, err := repo.UserJournals(ctx, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, js)
}

func mustRequestURL(t *testing.T, news *fakeNews, q gnews.Query) string {
	t.Helper()

	u, err := news.RequestURL(q)
	require.NoError(t, err)
	return u
}

func TestTopicIngester_BadQuery(t *testing.T) {
	ing := TopicIngester{Repo: newTestRepo(t), News: &fakeNews{}, Limit: 5}

	_, err := ing.Ingest(context.Background(), gnews.Query{Type: "nope", Value: "x"})
	assert.Error(t, err)
}

func TestPrune(t *testing.T) {
	var (
		ctx  = context.Background()
		repo = newTestRepo(t)
	)
	j, err := repo.InsertJournal(ctx, myjournal.Journal{Name: "Old", URL: "https://old.example", RSS: "https://old.example/rss"})
	require.NoError(t, err)
	_, err = repo.UpsertBatch(ctx, []myjournal.FetchedEntry{
		{Title: "Stale", URL: "https://old.example/stale", Published: time.Now().AddDate(0, 0, -45).Format(time.RFC3339)},
		{Title: "Fresh", URL: "https://old.example/fresh", Published: time.Now().Format(time.RFC3339)},
	}, j.ID, nil, false)
	require.NoError(t, err)

	assert.Equal(t, 1, Prune(ctx, repo, 30))
}

func ptr[T any](v T) *T { return &v }

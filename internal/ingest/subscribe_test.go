package ingest

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdholdren/myjournal/internal/myjournal"
)

type fakeFinder struct {
	feeds     map[string]string // site -> feed
	titles    map[string]string // feed -> title
	discovers int
	validates int
}

func (f *fakeFinder) Discover(_ context.Context, siteURL string) (string, error) {
	f.discovers++
	feed, ok := f.feeds[siteURL]
	if !ok {
		return "", fmt.Errorf("no feed at %s: %w", siteURL, myjournal.ErrFeedNotFound)
	}
	return feed, nil
}

func (f *fakeFinder) Validate(_ context.Context, feedURL string) (string, error) {
	f.validates++
	title, ok := f.titles[feedURL]
	if !ok {
		return "", fmt.Errorf("bad feed %s: %w", feedURL, myjournal.ErrInvalidFeed)
	}
	return title, nil
}

func TestSubscribe_TwiceReturnsSameJournal(t *testing.T) {
	var (
		ctx    = context.Background()
		repo   = newTestRepo(t)
		alice  = testUser(t, repo, "alice")
		bob    = testUser(t, repo, "bob")
		finder = &fakeFinder{
			feeds: map[string]string{
				"https://news.example":     "https://news.example/feed.xml",
				"https://www.news.example": "https://news.example/feed.xml",
			},
			titles: map[string]string{"https://news.example/feed.xml": "News Example"},
		}
		s = Subscriber{Repo: repo, Finder: finder}
	)

	first, err := s.Subscribe(ctx, alice.ID, "https://news.example/")
	require.NoError(t, err)
	assert.Equal(t, "News Example", first.Name)
	assert.Equal(t, "https://news.example", first.URL)
	assert.Equal(t, "https://news.example/feed.xml", first.RSS)

	second, err := s.Subscribe(ctx, alice.ID, "https://news.example/")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	// A different site URL resolving to the same feed shares the journal
	third, err := s.Subscribe(ctx, bob.ID, "https://www.news.example")
	require.NoError(t, err)
	assert.Equal(t, first.ID, third.ID)
	assert.Equal(t, 1, finder.validates)

	for _, u := range []int64{alice.ID, bob.ID} {
		js, err := repo.UserJournals(ctx, u)
		require.NoError(t, err)
		require.Len(t, js, 1)
		assert.Equal(t, first.ID, js[0].ID)
	}
}

func TestSubscribe_FailuresCreateNothing(t *testing.T) {
	var (
		ctx    = context.Background()
		repo   = newTestRepo(t)
		alice  = testUser(t, repo, "alice")
		finder = &fakeFinder{
			feeds:  map[string]string{"https://broken.example": "https://broken.example/rss"},
			titles: map[string]string{},
		}
		s = Subscriber{Repo: repo, Finder: finder}
	)

	_, err := s.Subscribe(ctx, alice.ID, "https://nofeed.example")
	assert.ErrorIs(t, err, myjournal.ErrFeedNotFound)

	_, err = s.Subscribe(ctx, alice.ID, "https://broken.example")
	assert.ErrorIs(t, err, myjournal.ErrInvalidFeed)

	_, err = repo.JournalByRSS(ctx, "https://broken.example/rss")
	assert.ErrorIs(t, err, myjournal.ErrNotFound)

	js, err := repo.UserJournals(ctx, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, js)
}

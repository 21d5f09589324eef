package gnews

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdholdren/myjournal/internal/webclient"
)

const headlines = `{
  "totalArticles": 2,
  "articles": [
    {
      "title": "Chip shortage eases",
      "description": "<b>Supply</b> lines recover &amp; prices fall",
      "content": "Long body...",
      "url": "https://news.example/chips",
      "image": "https://news.example/chips.jpg",
      "publishedAt": "2024-03-01T10:00:00Z",
      "source": {"name": "News Example", "url": "https://news.example"}
    },
    {
      "title": "New phone",
      "description": "",
      "url": "https://news.example/phone",
      "image": "",
      "publishedAt": "2024-03-01T09:00:00Z",
      "source": {"name": "News Example", "url": "https://news.example"}
    }
  ]
}`

func testClient(srv *httptest.Server) *Client {
	c := NewClient("secret-token", "pt", "br")
	c.BaseURL = srv.URL
	c.HTTP = webclient.NewClient(time.Second)
	return c
}

func TestRequestURL(t *testing.T) {
	c := NewClient("secret-token", "pt", "br")

	topic, err := c.RequestURL(Query{Type: SearchTopic, Value: "technology", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, "https://gnews.io/api/v4/top-headlines?category=technology&country=br&lang=pt&max=10", topic)
	assert.NotContains(t, topic, "secret-token")

	site, err := c.RequestURL(Query{Type: SearchSite, Value: "g1.globo.com", Limit: 5})
	require.NoError(t, err)
	u, err := url.Parse(site)
	require.NoError(t, err)
	assert.Equal(t, "/api/v4/search", u.Path)
	assert.Equal(t, "site:g1.globo.com", u.Query().Get("q"))

	_, err = c.RequestURL(Query{Type: "nope", Value: "x"})
	assert.ErrorIs(t, err, ErrInvalidQuery)

	_, err = c.RequestURL(Query{Type: SearchTopic})
	assert.Error(t, err)
}

func TestFetch(t *testing.T) {
	var got url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(headlines))
	}))
	defer srv.Close()

	articles := testClient(srv).Fetch(context.Background(), Query{Type: SearchTopic, Value: "technology", Limit: 10})
	require.Len(t, articles, 2)
	assert.Equal(t, "Chip shortage eases", articles[0].Title)
	assert.Equal(t, "News Example", articles[0].Source.Name)
	assert.Equal(t, "secret-token", got.Get("token"))
	assert.Equal(t, "technology", got.Get("category"))
}

func TestFetch_FailuresAreEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/top-headlines":
			w.WriteHeader(http.StatusForbidden)
		default:
			w.Write([]byte("{not json"))
		}
	}))
	defer srv.Close()

	c := testClient(srv)
	assert.Empty(t, c.Fetch(context.Background(), Query{Type: SearchTopic, Value: "world", Limit: 1}))
	assert.Empty(t, c.Fetch(context.Background(), Query{Type: SearchSite, Value: "example.com", Limit: 1}))
}

type fakeImages struct {
	calls map[string]string
}

func (f *fakeImages) Download(_ context.Context, src, referer string) *string {
	f.calls[src] = referer
	p := "/static/article_images/x.jpg"
	return &p
}

func TestEntries(t *testing.T) {
	var (
		topic  = "technology"
		images = &fakeImages{calls: map[string]string{}}
	)
	articles := []Article{
		{Title: "Chip shortage eases", Description: "<b>Supply</b> lines recover &amp; prices fall", URL: "https://news.example/chips", Image: "https://news.example/chips.jpg", PublishedAt: "2024-03-01T10:00:00Z"},
		{Title: "New phone", URL: "https://news.example/phone", PublishedAt: "2024-03-01T09:00:00Z"},
	}

	entries := Entries(context.Background(), articles, &topic, images)
	require.Len(t, entries, 2)

	assert.Equal(t, "Supply lines recover & prices fall", *entries[0].Summary)
	assert.Equal(t, "technology", *entries[0].Topic)
	assert.Equal(t, "/static/article_images/x.jpg", *entries[0].ImagePath)
	assert.Equal(t, "2024-03-01T10:00:00Z", entries[0].Published)
	assert.Equal(t, map[string]string{"https://news.example/chips.jpg": "https://news.example/chips"}, images.calls)

	assert.Nil(t, entries[1].Summary)
	assert.Nil(t, entries[1].ImagePath)
}

func TestParseQueries(t *testing.T) {
	assert.Equal(t, []Query{
		{Type: SearchTopic, Value: "technology", Limit: 5},
		{Type: SearchSite, Value: "g1.globo.com", Limit: 5},
	}, ParseQueries([]string{" technology", "", "site: g1.globo.com"}, 5))

	assert.Empty(t, ParseQueries(nil, 5))
}

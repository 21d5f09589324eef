package discovery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdholdren/myjournal/internal/myjournal"
	"github.com/jdholdren/myjournal/internal/webclient"
)

const testRSSFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Example News</title>
    <link>https://example.com</link>
    <item>
      <title>Post One</title>
      <link>https://example.com/post-1</link>
    </item>
  </channel>
</rss>`

const testAtomFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Example Atom</title>
  <entry>
    <title>Atom Post</title>
    <id>atom-1</id>
    <link href="https://example.com/atom-1"/>
    <updated>2024-01-01T12:00:00Z</updated>
  </entry>
</feed>`

const untitledFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title></title><item><title>x</title></item></channel></rss>`

// Serves body at each path and 404s everything else.
func site(t *testing.T, pages map[string]string) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	return srv
}

func testDiscoverer(g Guesser) *Discoverer {
	c := webclient.NewClient(time.Second)
	return &Discoverer{
		PageClient:  c,
		ProbeClient: c,
		FeedClient:  webclient.NewInsecureClient(time.Second),
		Guesser:     g,
	}
}

type fakeGuesser struct {
	candidates []string
	calls      int
}

func (f *fakeGuesser) Guess(context.Context, string, *goquery.Document) ([]string, error) {
	f.calls++
	return f.candidates, nil
}

func TestDiscover_PrefersRSSLinkTag(t *testing.T) {
	srv := site(t, map[string]string{
		"/": `<html><head>
			<link rel="alternate" type="application/atom+xml" href="/atom.xml">
			<link rel="alternate" type="application/rss+xml" href="/rss">
		</head></html>`,
		"/feed/": testRSSFeed,
	})
	g := &fakeGuesser{}

	got, err := testDiscoverer(g).Discover(context.Background(), srv.URL+"/")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/rss", got)
	assert.Zero(t, g.calls)
}

func TestDiscover_AtomLinkTag(t *testing.T) {
	srv := site(t, map[string]string{
		"/": `<html><head><link rel="alternate" type="application/atom+xml" href="https://elsewhere.example/atom"></head></html>`,
	})

	got, err := testDiscoverer(nil).Discover(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "https://elsewhere.example/atom", got)
}

func TestDiscover_ProbesCommonPathsInOrder(t *testing.T) {
	srv := site(t, map[string]string{
		"/":         `<html><head><title>No hints</title></head></html>`,
		"/rss.xml":  testRSSFeed,
		"/feed.xml": testRSSFeed,
	})

	got, err := testDiscoverer(nil).Discover(context.Background(), srv.URL+"/blog/")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/rss.xml", got)
}

func TestDiscover_GuesserIsLastResort(t *testing.T) {
	srv := site(t, map[string]string{"/": `<html></html>`})
	g := &fakeGuesser{candidates: []string{"https://example.com/best", "https://example.com/worse"}}

	got, err := testDiscoverer(g).Discover(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/best", got)
	assert.Equal(t, 1, g.calls)
}

func TestDiscover_GuesserReusesLandingPage(t *testing.T) {
	var landingHits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			landingHits.Add(1)
			w.Write([]byte(`<html><body><a href="/news.xml">Our feed</a></body></html>`))
		case "/news.xml":
			w.Write([]byte(testRSSFeed))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := webclient.NewClient(time.Second)
	d := testDiscoverer(HeuristicGuesser{Client: c})

	got, err := d.Discover(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/news.xml", got)
	assert.Equal(t, int32(1), landingHits.Load(), "landing page fetched once")
}

func TestDiscover_NotFound(t *testing.T) {
	srv := site(t, map[string]string{"/": `<html></html>`})

	_, err := testDiscoverer(&fakeGuesser{}).Discover(context.Background(), srv.URL)
	assert.ErrorIs(t, err, myjournal.ErrFeedNotFound)
}

func TestDiscover_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	_, err := testDiscoverer(&fakeGuesser{}).Discover(context.Background(), srv.URL)
	assert.ErrorIs(t, err, myjournal.ErrNetwork)
}

func TestDiscover_RejectsNonHTTP(t *testing.T) {
	_, err := testDiscoverer(nil).Discover(context.Background(), "ftp://example.com")
	assert.ErrorIs(t, err, myjournal.ErrFeedNotFound)
}

func TestValidate(t *testing.T) {
	srv := site(t, map[string]string{
		"/rss":      testRSSFeed,
		"/atom":     testAtomFeed,
		"/untitled": untitledFeed,
		"/html":     `<html><body>not a feed</body></html>`,
	})

	tests := []struct {
		name    string
		path    string
		want    string
		wantErr error
	}{
		{name: "rss", path: "/rss", want: "Example News"},
		{name: "atom", path: "/atom", want: "Example Atom"},
		{name: "no title", path: "/untitled", wantErr: myjournal.ErrInvalidFeed},
		{name: "not a feed", path: "/html", wantErr: myjournal.ErrInvalidFeed},
		{name: "missing", path: "/gone", wantErr: myjournal.ErrInvalidFeed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := testDiscoverer(nil).Validate(context.Background(), srv.URL+tt.path)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidate_ToleratesSelfSignedCertificates(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(testRSSFeed))
	}))
	defer srv.Close()

	got, err := testDiscoverer(nil).Validate(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "Example News", got)
}

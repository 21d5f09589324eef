package discovery

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/jdholdren/myjournal/internal/webclient"
)

// Most candidates we bother fetching to confirm they are feeds.
const maxGuesses = 10

// HeuristicGuesser scans a page for anything that smells like a feed link,
// fetches the likeliest candidates and keeps the ones that actually parse
// as RSS, Atom or JSON feeds.
type HeuristicGuesser struct {
	Client *http.Client
}

type guess struct {
	url   string
	score int
}

// Guess fetches siteURL itself only when page is nil.
func (g HeuristicGuesser) Guess(ctx context.Context, siteURL string, page *goquery.Document) ([]string, error) {
	base, err := url.Parse(siteURL)
	if err != nil {
		return nil, fmt.Errorf("error parsing site url: %s", err)
	}

	doc := page
	if doc == nil {
		if doc, err = fetchDocument(ctx, g.Client, siteURL); err != nil {
			return nil, err
		}
	}

	var (
		seen    = map[string]bool{}
		guesses []guess
	)
	add := func(href string, score int) {
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
			return
		}
		u := resolve(base, href)
		if seen[u] {
			return
		}
		seen[u] = true
		guesses = append(guesses, guess{url: u, score: score})
	}

	doc.Find("link[href]").Each(func(_ int, s *goquery.Selection) {
		typ, _ := s.Attr("type")
		if strings.Contains(typ, "rss") || strings.Contains(typ, "atom") || strings.Contains(typ, "feed+json") {
			href, _ := s.Attr("href")
			add(href, 10)
		}
	})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if score := scoreHref(base, href); score > 0 {
			add(href, score)
		}
	})

	// Stable so document order breaks ties
	slices.SortStableFunc(guesses, func(a, b guess) int { return b.score - a.score })
	if len(guesses) > maxGuesses {
		guesses = guesses[:maxGuesses]
	}

	var feeds []string
	for _, gs := range guesses {
		if g.isFeed(ctx, gs.url) {
			feeds = append(feeds, gs.url)
		}
	}

	return feeds, nil
}

func scoreHref(base *url.URL, href string) int {
	u, err := url.Parse(strings.ToLower(strings.TrimSpace(href)))
	if err != nil {
		return 0
	}
	u = base.ResolveReference(u)

	score := 0
	switch {
	case strings.HasSuffix(u.Path, ".rss"), strings.HasSuffix(u.Path, ".atom"), strings.HasSuffix(u.Path, ".xml"):
		score += 3
	case strings.Contains(u.Path, "rss"), strings.Contains(u.Path, "feed"), strings.Contains(u.Path, "atom"):
		score += 2
	case strings.Contains(u.RawQuery, "rss"), strings.Contains(u.RawQuery, "feed"):
		score++
	}
	if score > 0 && strings.EqualFold(u.Host, base.Host) {
		score++
	}

	return score
}

func (g HeuristicGuesser) isFeed(ctx context.Context, candidate string) bool {
	resp, err := webclient.Get(ctx, g.Client, candidate, nil)
	if err != nil {
		slog.DebugContext(ctx, "guess not fetchable", "url", candidate, "error", err)
		return false
	}
	defer resp.Body.Close()

	return gofeed.DetectFeedType(io.LimitReader(resp.Body, 64<<10)) != gofeed.FeedTypeUnknown
}

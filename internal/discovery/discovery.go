// Package discovery finds the feed behind a website URL and checks that a
// candidate feed is usable before a journal is created from it.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/jdholdren/myjournal/internal/metrics"
	"github.com/jdholdren/myjournal/internal/myjournal"
	"github.com/jdholdren/myjournal/internal/webclient"
)

// Paths probed, in order, when a page doesn't advertise its feed.
var commonPaths = []string{"/feed/", "/rss/", "/feed", "/rss.xml", "/feed.xml"}

// Link types accepted from <link rel="alternate">, in order of preference.
var alternateTypes = []string{"application/rss+xml", "application/atom+xml"}

// Guesser is the last resort when neither link tags nor common paths turn
// up a feed. It returns candidates best first. page is the site's already
// parsed landing page, or nil when it could not be read.
type Guesser interface {
	Guess(ctx context.Context, siteURL string, page *goquery.Document) ([]string, error)
}

// Discoverer locates and validates feeds.
type Discoverer struct {
	// Fetches the site's landing page.
	PageClient *http.Client
	// Used for HEAD probes of the common paths.
	ProbeClient *http.Client
	// Reads candidate feeds. Certificates are not verified, see
	// [webclient.NewInsecureClient].
	FeedClient *http.Client
	Guesser    Guesser
}

func New() *Discoverer {
	page := webclient.NewClient(10 * time.Second)
	return &Discoverer{
		PageClient:  page,
		ProbeClient: webclient.NewClient(5 * time.Second),
		FeedClient:  webclient.NewInsecureClient(15 * time.Second),
		Guesser:     HeuristicGuesser{Client: page},
	}
}

// Discover returns the feed URL for siteURL. The first strategy to produce
// a URL wins: declared alternate links, then common feed paths, then the
// Guesser.
//
// It fails with [myjournal.ErrFeedNotFound] when every strategy comes up
// empty, or with [myjournal.ErrNetwork] when the site could not be reached
// at all.
func (d *Discoverer) Discover(ctx context.Context, siteURL string) (string, error) {
	base, err := url.Parse(siteURL)
	if err != nil || base.Host == "" || (base.Scheme != "http" && base.Scheme != "https") {
		return "", fmt.Errorf("%q is not a website url: %w", siteURL, myjournal.ErrFeedNotFound)
	}

	page, pageErr := d.landingPage(ctx, base)
	if pageErr != nil {
		slog.WarnContext(ctx, "error reading site page, probing common paths", "url", siteURL, "error", pageErr)
	}
	feedURL := fromLinkTags(page, base)
	if feedURL != "" {
		metrics.DiscoveryTotal.WithLabelValues("link_tag").Inc()
		return feedURL, nil
	}

	feedURL, reachable := d.probeCommonPaths(ctx, base)
	if feedURL != "" {
		metrics.DiscoveryTotal.WithLabelValues("common_path").Inc()
		return feedURL, nil
	}

	if d.Guesser != nil {
		candidates, err := d.Guesser.Guess(ctx, siteURL, page)
		if err != nil {
			slog.WarnContext(ctx, "feed guesser failed", "url", siteURL, "error", err)
		}
		if len(candidates) > 0 {
			metrics.DiscoveryTotal.WithLabelValues("guesser").Inc()
			return candidates[0], nil
		}
	}

	metrics.DiscoveryTotal.WithLabelValues("not_found").Inc()
	if pageErr != nil && !reachable && errors.Is(pageErr, myjournal.ErrNetwork) {
		return "", fmt.Errorf("site %s is unreachable: %w", siteURL, pageErr)
	}

	return "", fmt.Errorf("no feed at %s: %w", siteURL, myjournal.ErrFeedNotFound)
}

// The landing page is read once and shared by the link tag scan and the
// Guesser.
func (d *Discoverer) landingPage(ctx context.Context, base *url.URL) (*goquery.Document, error) {
	return fetchDocument(ctx, d.PageClient, base.String())
}

func fetchDocument(ctx context.Context, c *http.Client, pageURL string) (*goquery.Document, error) {
	resp, err := webclient.Get(ctx, c, pageURL, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error parsing page: %s", err)
	}

	return doc, nil
}

func fromLinkTags(doc *goquery.Document, base *url.URL) string {
	if doc == nil {
		return ""
	}

	for _, typ := range alternateTypes {
		href, ok := doc.Find(fmt.Sprintf(`link[rel~="alternate"][type="%s"]`, typ)).First().Attr("href")
		href = strings.TrimSpace(href)
		if !ok || href == "" {
			continue
		}

		return resolve(base, href)
	}

	return ""
}

// Reports the first common path answering 200 to a HEAD. reachable is true
// when any probe got an HTTP response at all.
func (d *Discoverer) probeCommonPaths(ctx context.Context, base *url.URL) (feedURL string, reachable bool) {
	for _, p := range commonPaths {
		candidate := base.ResolveReference(&url.URL{Path: p}).String()

		req, err := http.NewRequestWithContext(ctx, http.MethodHead, candidate, nil)
		if err != nil {
			continue
		}
		resp, err := d.ProbeClient.Do(req)
		if err != nil {
			slog.DebugContext(ctx, "probe failed", "url", candidate, "error", err)
			continue
		}
		resp.Body.Close()
		reachable = true

		if resp.StatusCode == http.StatusOK {
			return candidate, true
		}
	}

	return "", reachable
}

// Validate parses the feed at feedURL and returns its title. Feeds that
// fail to parse, or parse without a title, are [myjournal.ErrInvalidFeed].
func (d *Discoverer) Validate(ctx context.Context, feedURL string) (string, error) {
	resp, err := webclient.Get(ctx, d.FeedClient, feedURL, nil)
	if err != nil {
		return "", fmt.Errorf("journal unavailable or invalid: %s: %w: %w", feedURL, myjournal.ErrInvalidFeed, err)
	}
	defer resp.Body.Close()

	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return "", fmt.Errorf("journal unavailable or invalid: %s: %w: %s", feedURL, myjournal.ErrInvalidFeed, err)
	}

	title := strings.TrimSpace(feed.Title)
	if title == "" {
		return "", fmt.Errorf("journal has no title: %s: %w", feedURL, myjournal.ErrInvalidFeed)
	}

	return title, nil
}

func resolve(base *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}

	return base.ResolveReference(ref).String()
}

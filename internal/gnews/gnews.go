// Package gnews pulls topic headlines and per-site searches from the GNews
// API for the generic (non-personal) article listing.
package gnews

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jdholdren/myjournal/internal/feed"
	"github.com/jdholdren/myjournal/internal/myjournal"
	"github.com/jdholdren/myjournal/internal/webclient"
)

const DefaultBaseURL = "https://gnews.io/api/v4"

var ErrInvalidQuery = errors.New("invalid gnews query")

// SearchType selects which GNews endpoint a Query goes to.
type SearchType string

const (
	// SearchTopic reads top headlines for a category such as "technology".
	SearchTopic SearchType = "topic"
	// SearchSite searches articles published by a single domain.
	SearchSite SearchType = "site"
)

type Query struct {
	Type  SearchType
	Value string
	Limit int
}

// Article is a single result as GNews returns it.
type Article struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Content     string `json:"content"`
	URL         string `json:"url"`
	Image       string `json:"image"`
	PublishedAt string `json:"publishedAt"`
	Source      struct {
		Name string `json:"name"`
		URL  string `json:"url"`
	} `json:"source"`
}

type response struct {
	TotalArticles int       `json:"totalArticles"`
	Articles      []Article `json:"articles"`
}

// ImageDownloader stores a remote image and returns its served path.
type ImageDownloader interface {
	Download(ctx context.Context, src, referer string) *string
}

type Client struct {
	HTTP    *http.Client
	BaseURL string
	APIKey  string
	Lang    string
	Country string
}

func NewClient(apiKey, lang, country string) *Client {
	return &Client{
		HTTP:    webclient.NewClient(15 * time.Second),
		BaseURL: DefaultBaseURL,
		APIKey:  apiKey,
		Lang:    lang,
		Country: country,
	}
}

// RequestURL is the URL q is fetched from, minus the API token. It doubles
// as the stable feed URL of the journal generic articles are filed under.
func (c *Client) RequestURL(q Query) (string, error) {
	if strings.TrimSpace(q.Value) == "" {
		return "", fmt.Errorf("empty %s: %w", q.Type, ErrInvalidQuery)
	}

	params := url.Values{}
	params.Set("lang", c.Lang)
	params.Set("country", c.Country)
	params.Set("max", strconv.Itoa(q.Limit))

	var endpoint string
	switch q.Type {
	case SearchTopic:
		endpoint = "/top-headlines"
		params.Set("category", q.Value)
	case SearchSite:
		endpoint = "/search"
		params.Set("q", "site:"+q.Value)
	default:
		return "", fmt.Errorf("search type %q: %w", q.Type, ErrInvalidQuery)
	}

	return c.BaseURL + endpoint + "?" + params.Encode(), nil
}

// Fetch runs q against GNews. Failures are logged and return no articles.
func (c *Client) Fetch(ctx context.Context, q Query) []Article {
	u, err := c.RequestURL(q)
	if err != nil {
		slog.ErrorContext(ctx, "error building gnews request", "error", err)
		return nil
	}
	u += "&token=" + url.QueryEscape(c.APIKey)

	resp, err := webclient.Get(ctx, c.HTTP, u, http.Header{"Accept": {"application/json"}})
	if err != nil {
		// The error carries the URL and with it the token
		msg := err.Error()
		if c.APIKey != "" {
			msg = strings.ReplaceAll(msg, url.QueryEscape(c.APIKey), "REDACTED")
		}
		slog.ErrorContext(ctx, "gnews request failed", "type", q.Type, "value", q.Value, "error", msg)
		return nil
	}
	defer resp.Body.Close()

	var body response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		slog.ErrorContext(ctx, "error decoding gnews response", "error", err)
		return nil
	}

	return body.Articles
}

// Entries normalizes GNews results. topic is stamped onto every entry;
// images are stored through images when it is non-nil.
func Entries(ctx context.Context, articles []Article, topic *string, images ImageDownloader) []myjournal.FetchedEntry {
	entries := make([]myjournal.FetchedEntry, 0, len(articles))
	for _, a := range articles {
		e := myjournal.FetchedEntry{
			Title:     a.Title,
			URL:       a.URL,
			Published: a.PublishedAt,
			Topic:     topic,
		}
		if s := feed.StripHTML(a.Description); s != "" {
			e.Summary = &s
		}
		if images != nil && a.Image != "" {
			e.ImagePath = images.Download(ctx, a.Image, a.URL)
		}
		entries = append(entries, e)
	}

	return entries
}

// ParseQueries reads queries such as "technology" or "site:g1.globo.com".
// Blank entries are skipped.
func ParseQueries(raw []string, limit int) []Query {
	var qs []Query
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}

		q := Query{Type: SearchTopic, Value: s, Limit: limit}
		if site, ok := strings.CutPrefix(s, "site:"); ok {
			q = Query{Type: SearchSite, Value: strings.TrimSpace(site), Limit: limit}
		}
		qs = append(qs, q)
	}

	return qs
}

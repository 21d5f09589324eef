package feed

import (
	"context"
	"html"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"

	"github.com/jdholdren/myjournal/internal/myjournal"
)

// Longest summary kept, in bytes.
const maxSummaryLen = 2048

var stripPolicy = func() *bluemonday.Policy {
	p := bluemonday.StrictPolicy()
	p.AddSpaceWhenStrippingTag(true)
	return p
}()

// Normalize converts the first limit items of parsed into fetched entries,
// keeping feed order. Items without a title or link are dropped.
func Normalize(ctx context.Context, parsed *gofeed.Feed, limit int, images ImageResolver) []myjournal.FetchedEntry {
	if parsed == nil {
		return nil
	}

	items := parsed.Items
	if limit >= 0 && len(items) > limit {
		items = items[:limit]
	}

	now := time.Now()
	entries := make([]myjournal.FetchedEntry, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		title, link := strings.TrimSpace(item.Title), strings.TrimSpace(item.Link)
		if title == "" || link == "" {
			slog.WarnContext(ctx, "dropping feed entry without title or link", "title", title, "link", link)
			continue
		}

		published := item.Published
		if published == "" {
			// Atom feeds often only carry <updated>
			published = item.Updated
		}

		entry := myjournal.FetchedEntry{
			Title:     title,
			URL:       link,
			Published: Timestamp(published, now),
			Topic:     topic(item),
			Author:    author(item),
			Summary:   summary(item),
		}
		if images != nil {
			entry.ImagePath = images.Resolve(ctx, item)
		}
		entries = append(entries, entry)
	}

	return entries
}

// Timestamp normalizes a raw published value.
//
// Missing values become now. Values without a "Z" or "+" marker that read
// as RFC 822 dates are rewritten as local ISO-8601. Everything else passes
// through untouched for the store to parse.
func Timestamp(raw string, now time.Time) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return now.Format(time.RFC3339)
	}
	if strings.HasSuffix(raw, "Z") || strings.Contains(raw, "+") {
		return raw
	}

	t, err := mail.ParseDate(raw)
	if err != nil {
		// ISO dates with negative offsets land here too
		return raw
	}

	return t.Local().Format(time.RFC3339)
}

// StripHTML reduces an HTML fragment to whitespace-normalized plain text.
func StripHTML(s string) string {
	s = stripPolicy.Sanitize(s)
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}

func summary(item *gofeed.Item) *string {
	raw := item.Description
	if strings.TrimSpace(raw) == "" {
		raw = item.Content
	}

	s := truncate(StripHTML(raw), maxSummaryLen)
	if s == "" {
		return nil
	}
	return &s
}

func topic(item *gofeed.Item) *string {
	if len(item.Categories) == 0 {
		return nil
	}
	t := strings.TrimSpace(item.Categories[0])
	if t == "" {
		return nil
	}
	return &t
}

func author(item *gofeed.Item) *string {
	if item.Author != nil {
		if name := strings.TrimSpace(item.Author.Name); name != "" {
			return &name
		}
	}
	for _, a := range item.Authors {
		if a == nil {
			continue
		}
		if name := strings.TrimSpace(a.Name); name != "" {
			return &name
		}
	}

	return nil
}

// Cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[:n]
	for !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return strings.TrimSpace(s)
}

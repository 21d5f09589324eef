// Package media finds representative images for articles, stores them
// under the static directory and extracts readable content from article
// pages.
package media

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
)

// Resolver runs the image fallback chain for feed items and downloads the
// winner.
type Resolver struct {
	Downloader *Downloader
	// When set, items whose feed markup has no image get their article page
	// fetched and its og:image used.
	Pages *PageExtractor
}

// Resolve implements the feed package's image resolver. Every failure is
// logged and comes back as nil.
func (r Resolver) Resolve(ctx context.Context, item *gofeed.Item) *string {
	if item == nil {
		return nil
	}

	referer := ""
	src := ItemImageURL(item)
	if src == "" && r.Pages != nil && item.Link != "" {
		page, err := r.Pages.Extract(ctx, item.Link)
		if err != nil {
			slog.WarnContext(ctx, "error fetching article page for image", "url", item.Link, "error", err)
			return nil
		}
		src, referer = page.OGImage, item.Link
	}
	if src == "" {
		return nil
	}

	return r.Downloader.Download(ctx, src, referer)
}

// ItemImageURL picks an image URL from the feed item alone. In order:
// media attachments marked as images, image enclosures, then the first
// <img> in the item's content or description. Relative URLs are resolved
// against the item link.
func ItemImageURL(item *gofeed.Item) string {
	if u := mediaImage(item.Extensions); u != "" {
		return absolute(item.Link, u)
	}

	for _, enc := range item.Enclosures {
		if enc != nil && strings.HasPrefix(enc.Type, "image/") && enc.URL != "" {
			return absolute(item.Link, enc.URL)
		}
	}

	markup := item.Content
	if strings.TrimSpace(markup) == "" {
		markup = item.Description
	}
	if u := firstImg(markup); u != "" {
		return absolute(item.Link, u)
	}

	return ""
}

func mediaImage(exts ext.Extensions) string {
	media, ok := exts["media"]
	if !ok {
		return ""
	}

	contents := append([]ext.Extension{}, media["content"]...)
	for _, group := range media["group"] {
		contents = append(contents, group.Children["content"]...)
	}
	for _, c := range contents {
		if c.Attrs["medium"] == "image" && c.Attrs["url"] != "" {
			return c.Attrs["url"]
		}
	}

	return ""
}

func firstImg(markup string) string {
	if strings.TrimSpace(markup) == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return ""
	}
	src, _ := doc.Find("img[src]").First().Attr("src")
	return strings.TrimSpace(src)
}

func absolute(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil || !b.IsAbs() {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}

	return b.ResolveReference(r).String()
}

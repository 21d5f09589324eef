package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/sym01/htmlsanitizer"

	"github.com/jdholdren/myjournal/internal/webclient"
)

// Largest article page we read.
const maxPageBytes = 5 << 20

// Page is what we could pull out of an article page. Fields are empty when
// the page didn't offer them.
type Page struct {
	Title string
	// Sanitized reader-view HTML.
	Content string
	// Plain text of the article body.
	Text    string
	OGImage string
}

// PageExtractor fetches an article page once and derives both its readable
// content and its og:image from the same body.
type PageExtractor struct {
	Client *http.Client
}

func NewPageExtractor() *PageExtractor {
	return &PageExtractor{Client: webclient.NewClient(20 * time.Second)}
}

// Extract fails only when the page can't be fetched. A page that can't be
// made readable still reports its og:image.
func (p *PageExtractor) Extract(ctx context.Context, pageURL string) (Page, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return Page{}, fmt.Errorf("error parsing page url: %s", err)
	}

	resp, err := webclient.Get(ctx, p.Client, pageURL, webclient.PageHeaders)
	if err != nil {
		return Page{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return Page{}, fmt.Errorf("error reading page: %s", err)
	}

	page := Page{OGImage: ogImage(body, u)}

	parser := readability.NewParser()
	article, err := parser.Parse(bytes.NewReader(body), u)
	if err != nil {
		slog.WarnContext(ctx, "error extracting readable content", "url", pageURL, "error", err)
		return page, nil
	}
	page.Title = article.Title
	page.Text = strings.TrimSpace(article.TextContent)

	content, err := htmlsanitizer.NewHTMLSanitizer().SanitizeString(article.Content)
	if err != nil {
		slog.WarnContext(ctx, "error sanitizing readable content", "url", pageURL, "error", err)
		return page, nil
	}
	page.Content = content

	return page, nil
}

func ogImage(body []byte, pageURL *url.URL) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}

	content, _ := doc.Find(`meta[property="og:image"]`).First().Attr("content")
	content = strings.TrimSpace(content)
	if content == "" {
		return ""
	}

	return absolute(pageURL.String(), content)
}

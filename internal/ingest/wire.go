package ingest

import (
	"github.com/jdholdren/myjournal/internal/discovery"
	"github.com/jdholdren/myjournal/internal/feed"
	"github.com/jdholdren/myjournal/internal/gnews"
	"github.com/jdholdren/myjournal/internal/media"
	"github.com/jdholdren/myjournal/internal/myjournal"
)

// Options configure the pipeline the binaries assemble.
type Options struct {
	StaticDir         string
	EntriesPerJournal int
	// Fall back to the article page's og:image when the entry has no image.
	PageImageFallback bool
	Policy            Policy
}

// NewFeedRefresher wires the feed reader and the image chain into a Refresher.
func NewFeedRefresher(repo RefreshRepo, opts Options) *Refresher {
	resolver := media.Resolver{Downloader: media.NewDownloader(opts.StaticDir)}
	if opts.PageImageFallback {
		resolver.Pages = media.NewPageExtractor()
	}

	return NewRefresher(repo, feed.NewReader(resolver, opts.EntriesPerJournal), opts.Policy)
}

func NewSubscriber(repo myjournal.JournalRepo) Subscriber {
	return Subscriber{Repo: repo, Finder: discovery.New()}
}

// NewTopicIngester returns nil without an API key.
func NewTopicIngester(repo myjournal.Repository, opts Options, apiKey, lang, country string) *TopicIngester {
	if apiKey == "" {
		return nil
	}

	return &TopicIngester{
		Repo:   repo,
		News:   gnews.NewClient(apiKey, lang, country),
		Images: media.NewDownloader(opts.StaticDir),
		Limit:  opts.EntriesPerJournal,
	}
}

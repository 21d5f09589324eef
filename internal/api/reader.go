package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	jerrs "github.com/jdholdren/myjournal/internal/errors"
	"github.com/jdholdren/myjournal/internal/myjournal"
	"github.com/jdholdren/myjournal/internal/serverutil"
)

type ReaderResp struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	URL      string `json:"url"`
	Content  string `json:"content"`
	Text     string `json:"text"`
	// og:image of the page, straight from the source site.
	ImageURL string `json:"image_url"`
}

// Serves the reader view of an article: its page, readable and sanitized.
func (s *Server) getArticleContent(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	id, err := strconv.ParseInt(mux.Vars(r)["articleID"], 10, 64)
	if err != nil {
		return jerrs.E("invalid article id", http.StatusBadRequest)
	}

	// Cache results for less processing and prevent refetches
	if resp, ok := s.readerCache.Get(id); ok {
		return serverutil.WriteJSON(w, http.StatusOK, resp)
	}

	article, err := s.repo.Article(ctx, id)
	if errors.Is(err, myjournal.ErrNotFound) {
		return jerrs.E("article not found", http.StatusNotFound)
	}
	if err != nil {
		return err
	}

	page, err := s.pages.Extract(ctx, article.URL)
	if err != nil {
		slog.WarnContext(ctx, "error extracting article page", "article_id", id, "error", err)
		return jerrs.E("could not load the article page", http.StatusBadGateway)
	}

	title := page.Title
	if title == "" {
		title = article.Title
	}
	ret := ReaderResp{
		ID:       article.ID,
		Title:    title,
		URL:      article.URL,
		Content:  page.Content,
		Text:     page.Text,
		ImageURL: page.OGImage,
	}
	s.readerCache.Add(id, ret)

	return serverutil.WriteJSON(w, http.StatusOK, ret)
}

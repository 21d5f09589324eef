package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	jerrs "github.com/jdholdren/myjournal/internal/errors"
	"github.com/jdholdren/myjournal/internal/myjournal"
	"github.com/jdholdren/myjournal/internal/serverutil"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

type ArticleResp struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	URL          string    `json:"url"`
	PublishedAt  time.Time `json:"published_at"`
	DownloadedAt time.Time `json:"downloaded_at"`
	Topic        *string   `json:"topic"`
	Summary      *string   `json:"summary"`
	Author       *string   `json:"author"`
	ImageURL     *string   `json:"image_url"`
	GenericNews  bool      `json:"generic_news"`
	UserID       *int64    `json:"user_id"`
	JournalID    int64     `json:"journal_id"`
	SourceName   string    `json:"source_name"`
}

func apiArticles(as []myjournal.Article) []ArticleResp {
	ret := make([]ArticleResp, 0, len(as))
	for _, a := range as {
		ret = append(ret, ArticleResp{
			ID:           a.ID,
			Title:        a.Title,
			URL:          a.URL,
			PublishedAt:  a.PublishedAt,
			DownloadedAt: a.DownloadedAt,
			Topic:        a.Topic,
			Summary:      a.Summary,
			Author:       a.Author,
			ImageURL:     a.ImageURL,
			GenericNews:  a.Generic,
			UserID:       a.UserID,
			JournalID:    a.JournalID,
			SourceName:   a.SourceName,
		})
	}
	return ret
}

type ArticleListResp struct {
	Articles   []ArticleResp  `json:"articles"`
	Pagination paginationMeta `json:"pagination"`
}

// Values of a list parameter given either repeated (?topics=a&topics=b) or
// comma separated (?topics=a,b).
func listParam(r *http.Request, key string) []string {
	var ret []string
	for _, v := range r.URL.Query()[key] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				ret = append(ret, part)
			}
		}
	}
	return ret
}

func articleFilter(r *http.Request) (myjournal.ArticleFilter, error) {
	var (
		q    = r.URL.Query()
		page = parsePaginationParams(r, defaultPageSize, maxPageSize)
	)
	filter := myjournal.ArticleFilter{
		Topics:      listParam(r, "topics"),
		Sources:     listParam(r, "sources"),
		TitleSearch: strings.TrimSpace(q.Get("title_search")),
		Limit:       page.Limit,
		Offset:      page.Offset,
	}
	if raw := q.Get("generic_news"); raw != "" {
		generic, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, jerrs.E("invalid generic_news", http.StatusBadRequest, jerrs.Detail{Field: "generic_news", Error: "must be true or false"})
		}
		filter.Generic = &generic
	}

	return filter, nil
}

func (s *Server) listArticles(w http.ResponseWriter, r *http.Request, filter myjournal.ArticleFilter) error {
	articles, err := s.repo.Articles(r.Context(), filter)
	if err != nil {
		return err
	}

	return serverutil.WriteJSON(w, http.StatusOK, ArticleListResp{
		Articles:   apiArticles(articles),
		Pagination: paginationMeta{Limit: filter.Limit, Offset: filter.Offset},
	})
}

func (s *Server) getArticles(w http.ResponseWriter, r *http.Request) error {
	filter, err := articleFilter(r)
	if err != nil {
		return err
	}

	return s.listArticles(w, r, filter)
}

func (s *Server) getMyArticles(w http.ResponseWriter, r *http.Request) error {
	filter, err := articleFilter(r)
	if err != nil {
		return err
	}
	id := callerID(r.Context())
	filter.UserID = &id

	return s.listArticles(w, r, filter)
}

type RefreshResp struct {
	RefreshDetails myjournal.RefreshReport `json:"refresh_details"`
	Articles       []ArticleResp           `json:"articles"`
}

func (s *Server) postRefresh(w http.ResponseWriter, r *http.Request) error {
	var (
		ctx = r.Context()
		id  = callerID(ctx)
	)

	report, err := s.refresher.RefreshUser(ctx, id)
	if err != nil {
		return err
	}
	articles, err := s.repo.Articles(ctx, myjournal.ArticleFilter{UserID: &id, Limit: defaultPageSize})
	if err != nil {
		return err
	}

	return serverutil.WriteJSON(w, http.StatusOK, RefreshResp{
		RefreshDetails: report,
		Articles:       apiArticles(articles),
	})
}

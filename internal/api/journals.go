package api

import (
	"errors"
	"net/http"
	"net/url"

	jerrs "github.com/jdholdren/myjournal/internal/errors"
	"github.com/jdholdren/myjournal/internal/myjournal"
	"github.com/jdholdren/myjournal/internal/serverutil"
)

type PostJournalReq struct {
	URL string `json:"url"`
}

func (req PostJournalReq) Validate() error {
	u, err := url.Parse(req.URL)
	if req.URL == "" || err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return jerrs.E("invalid journal url", http.StatusBadRequest, jerrs.Detail{Field: "url", Error: "must be an absolute http(s) url"})
	}
	return nil
}

func (s *Server) postJournal(w http.ResponseWriter, r *http.Request) error {
	req, err := serverutil.DecodeValid[PostJournalReq](r.Body)
	if err != nil {
		return err
	}

	j, err := s.subscriber.Subscribe(r.Context(), callerID(r.Context()), req.URL)
	switch {
	case errors.Is(err, myjournal.ErrFeedNotFound):
		return jerrs.E("no RSS feed found for this site", http.StatusBadRequest)
	case errors.Is(err, myjournal.ErrInvalidFeed):
		return jerrs.E("the site's feed is unavailable or invalid", http.StatusBadRequest)
	case errors.Is(err, myjournal.ErrNetwork):
		return jerrs.E("could not reach the site", http.StatusBadGateway)
	case err != nil:
		return err
	}

	return serverutil.WriteJSON(w, http.StatusCreated, j)
}

type JournalListResp struct {
	Journals []myjournal.Journal `json:"journals"`
}

func (s *Server) getMyJournals(w http.ResponseWriter, r *http.Request) error {
	journals, err := s.repo.UserJournals(r.Context(), callerID(r.Context()))
	if err != nil {
		return err
	}

	return serverutil.WriteJSON(w, http.StatusOK, JournalListResp{Journals: journals})
}

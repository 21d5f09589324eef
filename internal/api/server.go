// Package api is the HTTP server the web client talks to: accounts, journal
// subscriptions, article listings, refreshes and the reader view.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/securecookie"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jdholdren/myjournal/internal/auth"
	"github.com/jdholdren/myjournal/internal/media"
	"github.com/jdholdren/myjournal/internal/metrics"
	"github.com/jdholdren/myjournal/internal/myjournal"
	"github.com/jdholdren/myjournal/internal/serverutil"
)

type (
	// Subscriber attaches a journal, found from a site URL, to a user.
	Subscriber interface {
		Subscribe(ctx context.Context, userID int64, siteURL string) (myjournal.Journal, error)
	}

	// Refresher pulls new articles for all of a user's journals.
	Refresher interface {
		RefreshUser(ctx context.Context, userID int64) (myjournal.RefreshReport, error)
	}

	// PageExtractor renders an article page into its readable parts.
	PageExtractor interface {
		Extract(ctx context.Context, pageURL string) (media.Page, error)
	}

	Server struct {
		*http.Server

		repo       myjournal.Repository
		subscriber Subscriber
		refresher  Refresher
		pages      PageExtractor
		tokens     *auth.Tokens

		readerCache  *lru.Cache[int64, ReaderResp]
		secureCookie *securecookie.SecureCookie // nil when no cookie keys are configured
		httpsCookies bool
	}

	ServerConfig struct {
		Port           int
		StaticDir      string
		CookieHashKey  []byte
		CookieBlockKey []byte
		HttpsCookies   bool
		CorsOrigins    []string
	}

	Deps struct {
		Repo       myjournal.Repository
		Subscriber Subscriber
		Refresher  Refresher
		Pages      PageExtractor
		Tokens     *auth.Tokens
	}
)

func NewServer(config ServerConfig, deps Deps) *Server {
	var (
		r        = serverutil.ErrRouter{Router: mux.NewRouter()}
		cache, _ = lru.New[int64, ReaderResp](1024)
	)

	srvr := Server{
		repo:         deps.Repo,
		subscriber:   deps.Subscriber,
		refresher:    deps.Refresher,
		pages:        deps.Pages,
		tokens:       deps.Tokens,
		readerCache:  cache,
		httpsCookies: config.HttpsCookies,
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%d", config.Port),
			ReadTimeout:  5 * time.Second,
			// Refreshes and reader views wait on other sites
			WriteTimeout: 2 * time.Minute,
			Handler: handlers.CORS(
				handlers.AllowedOrigins(config.CorsOrigins),
				handlers.AllowCredentials(),
				handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions}),
				handlers.AllowedHeaders([]string{"content-type", "authorization"}),
			)(r),
		},
	}
	if len(config.CookieHashKey) > 0 {
		srvr.secureCookie = securecookie.New(config.CookieHashKey, config.CookieBlockKey)
	}

	r.Use(serverutil.AccessLogMiddleware, metrics.Middleware)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.Dir(config.StaticDir))))

	// Accounts
	r.HandleFuncE("/api/register", srvr.postRegister).Methods(http.MethodPost)
	r.HandleFuncE("/api/login", srvr.postLogin).Methods(http.MethodPost)
	r.HandleFuncE("/api/logout", srvr.postLogout).Methods(http.MethodPost)

	authed := serverutil.ErrRouter{Router: r.NewRoute().Subrouter()}
	authed.Use(srvr.requireAuthMiddleware)

	authed.HandleFuncE("/api/users/me", srvr.getMe).Methods(http.MethodGet)
	authed.HandleFuncE("/api/users/me", srvr.patchMe).Methods(http.MethodPatch)

	// Journals
	authed.HandleFuncE("/api/journal", srvr.postJournal).Methods(http.MethodPost)
	authed.HandleFuncE("/api/journal/me", srvr.getMyJournals).Methods(http.MethodGet)

	// Articles
	authed.HandleFuncE("/api/articles", srvr.getArticles).Methods(http.MethodGet)
	authed.HandleFuncE("/api/articles/me", srvr.getMyArticles).Methods(http.MethodGet)
	authed.HandleFuncE("/api/articles/me/refresh", srvr.postRefresh).Methods(http.MethodPost)
	authed.HandleFuncE("/api/articles/{articleID:[0-9]+}/content", srvr.getArticleContent).Methods(http.MethodGet)

	slog.Debug("configured api server", "port", config.Port, "static_dir", config.StaticDir)

	return &srvr
}

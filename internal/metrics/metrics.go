// Package metrics provides Prometheus metrics for the ingestion pipeline
// and the API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "myjournal"

var (
	// DiscoveryTotal counts subscribe-time discoveries by the strategy that found the feed.
	DiscoveryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_discovery_total",
			Help:      "Feed discoveries by winning strategy",
		},
		[]string{"strategy"},
	)

	// FeedFetchTotal counts feed fetches by outcome.
	FeedFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_fetch_total",
			Help:      "Feed fetches by outcome",
		},
		[]string{"status"},
	)

	// FeedFetchDuration measures how long fetching and parsing a feed takes.
	FeedFetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "feed_fetch_duration_seconds",
			Help:      "Duration of feed fetches in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// ImageDownloadsTotal counts article image downloads by result.
	ImageDownloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "image_downloads_total",
			Help:      "Article image downloads by result",
		},
		[]string{"result"},
	)

	// ArticlesInsertedTotal counts newly stored articles.
	ArticlesInsertedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "articles_inserted_total",
			Help:      "Articles written to the store",
		},
		[]string{"kind"},
	)

	// ArticlesPrunedTotal counts articles removed by retention.
	ArticlesPrunedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "articles_pruned_total",
			Help:      "Articles deleted by the retention window",
		},
	)

	// RefreshRunsTotal counts per-user refresh runs by report status.
	RefreshRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_runs_total",
			Help:      "User refresh runs by status",
		},
		[]string{"status"},
	)

	// HTTPRequestDuration measures API request durations.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of API requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route", "code"},
	)
)

// RecordFeedFetch records a fetch outcome and its duration.
func RecordFeedFetch(ok bool, duration time.Duration) {
	status := "ok"
	if !ok {
		status = "error"
	}
	FeedFetchTotal.WithLabelValues(status).Inc()
	FeedFetchDuration.Observe(duration.Seconds())
}

type codeWriter struct {
	http.ResponseWriter
	code int
}

func (w *codeWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// Middleware observes request durations keyed by the mux route template, so
// path parameters don't explode the label space.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		cw := &codeWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(cw, r)

		route := "unmatched"
		if cr := mux.CurrentRoute(r); cr != nil {
			if tmpl, err := cr.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		HTTPRequestDuration.WithLabelValues(r.Method, route, strconv.Itoa(cw.code)).Observe(time.Since(start).Seconds())
	})
}

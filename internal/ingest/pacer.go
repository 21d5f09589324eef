package ingest

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// HostPacer spaces out requests to the same host by at least interval.
// Different hosts don't wait on each other.
type HostPacer struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	interval time.Duration
}

func NewHostPacer(interval time.Duration) *HostPacer {
	return &HostPacer{
		limiters: make(map[string]*rate.Limiter),
		interval: interval,
	}
}

// Wait blocks until a request to rawURL's host is allowed or ctx is done.
func (h *HostPacer) Wait(ctx context.Context, rawURL string) error {
	if h == nil || h.interval <= 0 {
		return ctx.Err()
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	if u.Host == "" {
		return &url.Error{Op: "parse", URL: rawURL, Err: errors.New("missing host in URL")}
	}

	return h.limiter(u.Host).Wait(ctx)
}

func (h *HostPacer) limiter(host string) *rate.Limiter {
	h.mu.RLock()
	l, ok := h.limiters[host]
	h.mu.RUnlock()
	if ok {
		return l
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	// Someone may have beaten us here
	if l, ok := h.limiters[host]; ok {
		return l
	}
	l = rate.NewLimiter(rate.Every(h.interval), 1)
	h.limiters[host] = l
	return l
}

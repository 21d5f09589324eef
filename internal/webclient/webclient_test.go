package webclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdholdren/myjournal/internal/myjournal"
)

func TestGet_SendsBrowserUserAgent(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	resp, err := Get(context.Background(), NewClient(time.Second), srv.URL, nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, UserAgent, gotUA)

	resp, err = Get(context.Background(), NewClient(time.Second), srv.URL, PageHeaders)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, PageUserAgent, gotUA)
}

func TestGet_BadStatus(t *testing.T) {
	tests := []struct {
		code      int
		transient bool
	}{
		{code: http.StatusBadGateway, transient: true},
		{code: http.StatusServiceUnavailable, transient: true},
		{code: http.StatusTooManyRequests, transient: true},
		{code: http.StatusNotFound, transient: false},
		{code: http.StatusGone, transient: false},
		{code: http.StatusForbidden, transient: false},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.code), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
			}))
			defer srv.Close()

			_, err := Get(context.Background(), NewClient(time.Second), srv.URL, nil)
			require.Error(t, err)

			var statusErr *StatusError
			require.ErrorAs(t, err, &statusErr)
			assert.Equal(t, tt.code, statusErr.Code)
			assert.Equal(t, tt.transient, errors.Is(err, myjournal.ErrNetwork))
		})
	}
}

func TestGet_TransportFailureIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	_, err := Get(context.Background(), NewClient(time.Second), srv.URL, nil)
	assert.ErrorIs(t, err, myjournal.ErrNetwork)
}

func TestInsecureClient_AcceptsSelfSigned(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	_, err := Get(context.Background(), NewClient(time.Second), srv.URL, nil)
	assert.ErrorIs(t, err, myjournal.ErrNetwork)

	resp, err := Get(context.Background(), NewInsecureClient(time.Second), srv.URL, nil)
	require.NoError(t, err)
	resp.Body.Close()
}

package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	jerrs "github.com/jdholdren/myjournal/internal/errors"
	"github.com/jdholdren/myjournal/internal/logger"
	"github.com/jdholdren/myjournal/internal/serverutil"
)

const tokenCookieName = "myjournal_token"

// What's persisted to the browser's cookie.
type sessionState struct {
	Token string
}

type ctxKey struct{}

// Pulls the bearer token from the Authorization header, falling back to the
// session cookie when cookies are enabled.
func requestToken(r *http.Request, s *Server) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, tok, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "bearer") {
			return strings.TrimSpace(tok)
		}
		return ""
	}

	if s.secureCookie == nil {
		return ""
	}
	cookie, err := r.Cookie(tokenCookieName)
	if errors.Is(err, http.ErrNoCookie) {
		return ""
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "error fetching cookie", "error", err)
		return ""
	}

	var state sessionState
	if err := s.secureCookie.Decode(tokenCookieName, cookie.Value, &state); err != nil {
		slog.WarnContext(r.Context(), "error decoding cookie", "error", err)
		return ""
	}

	return state.Token
}

// Sets the session cookie, a no-op without cookie keys. An empty token
// expires the cookie.
func (s *Server) setSession(w http.ResponseWriter, r *http.Request, token string) {
	if s.secureCookie == nil {
		return
	}

	encoded, err := s.secureCookie.Encode(tokenCookieName, sessionState{Token: token})
	if err != nil {
		slog.ErrorContext(r.Context(), "error encoding cookie", "error", err)
		return
	}

	cookie := &http.Cookie{
		Name:     tokenCookieName,
		Value:    encoded,
		Path:     "/",
		Secure:   s.httpsCookies,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if token == "" {
		cookie.MaxAge = -1
	}
	http.SetCookie(w, cookie)
}

func (s *Server) requireAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok := requestToken(r, s)
		if tok == "" {
			writeUnauthorized(w, r)
			return
		}
		claims, err := s.tokens.Verify(tok)
		if err != nil {
			slog.InfoContext(r.Context(), "rejected token", "error", err)
			writeUnauthorized(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), ctxKey{}, claims.ID)
		ctx = logger.Ctx(ctx, slog.Int64("user_id", claims.ID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func writeUnauthorized(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	if err := serverutil.WriteJSON(w, http.StatusUnauthorized, jerrs.E("could not validate credentials", http.StatusUnauthorized)); err != nil {
		slog.ErrorContext(r.Context(), "error writing response", "error", err)
	}
}

// The authenticated caller's id. Only valid behind requireAuthMiddleware.
func callerID(ctx context.Context) int64 {
	id, _ := ctx.Value(ctxKey{}).(int64)
	return id
}

package api

import (
	"context"
	"net"
	"net/http"
	"strings"
)

type ctxKey string

const ctxUserID ctxKey = "userID"

// requireAuth validates the bearer access token and stashes the subject
// (user id) in the request context (§4.7 "Authorization: Bearer <token>").
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(header, prefix) {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		raw := strings.TrimPrefix(header, prefix)
		userID, err := s.auth.VerifyAccessToken(raw)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		ctx := context.WithValue(r.Context(), ctxUserID, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userIDFromContext(r *http.Request) string {
	v, _ := r.Context().Value(ctxUserID).(string)
	return v
}

// requireLoopback restricts /internal/* to callers on the loopback
// interface — this is the terminal proxy on the same host, never a public
// client. A non-loopback peer or a request carrying a forwarding header
// (evidence of a proxy hop, so the real origin is unverifiable) gets 404,
// not 403: route existence is not disclosed (§4.7).
func requireLoopback(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Forwarded-For") != "" || r.Header.Get("X-Real-IP") != "" {
			http.NotFound(w, r)
			return
		}
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		ip := net.ParseIP(host)
		if ip == nil || !ip.IsLoopback() {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

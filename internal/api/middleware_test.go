package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Bitsy-Chuck/pomodex-sub000/internal/auth"
)

func TestRequireAuthRejectsMissingHeader(t *testing.T) {
	issuer := auth.NewIssuer([]byte("key"), 15*time.Minute)
	s := &Server{auth: auth.NewService(nil, issuer, time.Hour)}

	called := false
	h := s.requireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	req := httptest.NewRequest(http.MethodGet, "/projects", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if called {
		t.Fatal("handler should not run without an Authorization header")
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRequireAuthRejectsInvalidToken(t *testing.T) {
	issuer := auth.NewIssuer([]byte("key"), 15*time.Minute)
	s := &Server{auth: auth.NewService(nil, issuer, time.Hour)}

	h := s.requireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	req := httptest.NewRequest(http.MethodGet, "/projects", nil)
	req.Header.Set("Authorization", "Bearer not-a-real-token")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRequireAuthAcceptsValidTokenAndStashesUserID(t *testing.T) {
	issuer := auth.NewIssuer([]byte("key"), 15*time.Minute)
	s := &Server{auth: auth.NewService(nil, issuer, time.Hour)}
	token, err := issuer.IssueAccessToken("user-42")
	if err != nil {
		t.Fatalf("IssueAccessToken() error = %v", err)
	}

	var gotUserID string
	h := s.requireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID = userIDFromContext(r)
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, "/projects", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if gotUserID != "user-42" {
		t.Errorf("userIDFromContext() = %q, want %q", gotUserID, "user-42")
	}
}

func TestRequireLoopbackRejectsNonLoopback(t *testing.T) {
	h := requireLoopback(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodPost, "/internal/validate", nil)
	req.RemoteAddr = "203.0.113.5:54321"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d (route existence must not be disclosed)", rec.Code, http.StatusNotFound)
	}
}

func TestRequireLoopbackRejectsForwardingHeaders(t *testing.T) {
	h := requireLoopback(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, header := range []string{"X-Forwarded-For", "X-Real-IP"} {
		req := httptest.NewRequest(http.MethodPost, "/internal/validate", nil)
		req.RemoteAddr = "127.0.0.1:54321"
		req.Header.Set(header, "127.0.0.1")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Errorf("with %s set: status = %d, want %d", header, rec.Code, http.StatusNotFound)
		}
	}
}

func TestRequireLoopbackAcceptsLoopback(t *testing.T) {
	h := requireLoopback(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodPost, "/internal/validate", nil)
	req.RemoteAddr = "127.0.0.1:54321"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

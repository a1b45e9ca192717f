package termproxy

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestProxy(handler http.HandlerFunc) (*Proxy, *httptest.Server) {
	srv := httptest.NewServer(handler)
	p := New(nil, srv.URL, nil, log.New(io.Discard, "", 0))
	return p, srv
}

func TestValidateSuccess(t *testing.T) {
	p, srv := newTestProxy(func(w http.ResponseWriter, r *http.Request) {
		var req validateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Token != "good-token" || req.ProjectID != "proj-1" {
			t.Fatalf("unexpected request body: %+v", req)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(validateResponse{UserID: "user-1"})
	})
	defer srv.Close()

	userID, err := p.validate(context.Background(), "good-token", "proj-1")
	if err != nil {
		t.Fatalf("validate() error = %v", err)
	}
	if userID != "user-1" {
		t.Errorf("userID = %q, want %q", userID, "user-1")
	}
}

func TestValidateRejected(t *testing.T) {
	p, srv := newTestProxy(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	defer srv.Close()

	if _, err := p.validate(context.Background(), "bad-token", "proj-1"); err == nil {
		t.Fatal("expected an error for a rejected validate call")
	}
}

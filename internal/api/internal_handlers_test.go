package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Bitsy-Chuck/pomodex-sub000/internal/auth"
	"github.com/Bitsy-Chuck/pomodex-sub000/internal/model"
	"github.com/Bitsy-Chuck/pomodex-sub000/internal/store"
)

func doInternalValidate(t *testing.T, srv *Server, req internalValidateRequest) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	httpReq := httptest.NewRequest(http.MethodPost, "/internal/validate", bytes.NewReader(body))
	httpReq.RemoteAddr = "127.0.0.1:55555"
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httpReq)
	return rec
}

func TestHandleInternalValidateSuccess(t *testing.T) {
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	defer st.Close()
	issuer := auth.NewIssuer([]byte("key"), 15*time.Minute)
	authSvc := auth.NewService(st, issuer, time.Hour)
	srv := New(authSvc, st, nil, "wss://sandbox.example.com:8081", nil)

	u, err := st.CreateUser(context.Background(), "owner@example.com", "hash")
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	p, err := st.CreateProject(context.Background(), model.Project{
		UserID: u.ID, Name: "proj", Status: model.StatusRunning, ObjectStorePrefix: "projects/proj",
	})
	if err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}
	token, err := issuer.IssueAccessToken(u.ID)
	if err != nil {
		t.Fatalf("IssueAccessToken() error = %v", err)
	}

	rec := doInternalValidate(t, srv, internalValidateRequest{Token: token, ProjectID: p.ID})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body = %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	var resp internalValidateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if resp.UserID != u.ID {
		t.Errorf("UserID = %q, want %q", resp.UserID, u.ID)
	}

	updated, err := st.GetProjectByID(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("GetProjectByID() error = %v", err)
	}
	if updated.LastConnectionAt == nil {
		t.Error("expected last_connection_at to be set after a successful validate")
	}
}

func TestHandleInternalValidateWrongOwner(t *testing.T) {
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	defer st.Close()
	issuer := auth.NewIssuer([]byte("key"), 15*time.Minute)
	authSvc := auth.NewService(st, issuer, time.Hour)
	srv := New(authSvc, st, nil, "wss://sandbox.example.com:8081", nil)

	owner, err := st.CreateUser(context.Background(), "owner2@example.com", "hash")
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	intruder, err := st.CreateUser(context.Background(), "intruder@example.com", "hash")
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	p, err := st.CreateProject(context.Background(), model.Project{
		UserID: owner.ID, Name: "proj2", Status: model.StatusRunning, ObjectStorePrefix: "projects/proj2",
	})
	if err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}
	intruderToken, err := issuer.IssueAccessToken(intruder.ID)
	if err != nil {
		t.Fatalf("IssueAccessToken() error = %v", err)
	}

	rec := doInternalValidate(t, srv, internalValidateRequest{Token: intruderToken, ProjectID: p.ID})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestHandleInternalValidateBadToken(t *testing.T) {
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	defer st.Close()
	issuer := auth.NewIssuer([]byte("key"), 15*time.Minute)
	authSvc := auth.NewService(st, issuer, time.Hour)
	srv := New(authSvc, st, nil, "wss://sandbox.example.com:8081", nil)

	rec := doInternalValidate(t, srv, internalValidateRequest{Token: "garbage", ProjectID: "whatever"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestHandleInternalValidateNotReachableFromNonLoopback(t *testing.T) {
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	defer st.Close()
	issuer := auth.NewIssuer([]byte("key"), 15*time.Minute)
	authSvc := auth.NewService(st, issuer, time.Hour)
	srv := New(authSvc, st, nil, "wss://sandbox.example.com:8081", nil)

	body, _ := json.Marshal(internalValidateRequest{Token: "whatever", ProjectID: "whatever"})
	req := httptest.NewRequest(http.MethodPost, "/internal/validate", bytes.NewReader(body))
	req.RemoteAddr = "203.0.113.9:12345"
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Bitsy-Chuck/pomodex-sub000/internal/perr"
)

func TestWritePerrErrorMapsKindsToStatuses(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"auth", perr.Auth("bad credentials"), http.StatusUnauthorized},
		{"not found", perr.NotFound("no such project"), http.StatusNotFound},
		{"conflict", perr.Conflict("already exists"), http.StatusConflict},
		{"precondition", perr.Precondition("project not stopped"), http.StatusConflict},
		{"transient", perr.Transient("container not running", nil), http.StatusServiceUnavailable},
		{"backend", perr.Backend("db write failed", errors.New("disk full")), http.StatusInternalServerError},
		{"untagged", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writePerrError(rec, tc.err)
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d", rec.Code, tc.want)
			}
			var env errorEnvelope
			if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
				t.Fatalf("response body is not a JSON error envelope: %v", err)
			}
			if env.Error == "" {
				t.Error("expected a non-empty reason in the error envelope")
			}
		})
	}
}

func TestWritePerrErrorHidesBackendCauseFromReason(t *testing.T) {
	rec := httptest.NewRecorder()
	writePerrError(rec, perr.Backend("db write failed", errors.New("disk full, sensitive path /var/secrets")))

	var env errorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if env.Error != "internal error" {
		t.Errorf("Error = %q, want a generic %q for 500s", env.Error, "internal error")
	}
}

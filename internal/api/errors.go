package api

import (
	"net/http"

	"github.com/Bitsy-Chuck/pomodex-sub000/internal/perr"
)

// writePerrError maps the closed error taxonomy to HTTP status codes. This
// is the only place in the control plane that maps perr kinds to HTTP (§4.7
// "errors are mapped to transport codes only at the edge").
func writePerrError(w http.ResponseWriter, err error) {
	reason := err.Error()
	if e, ok := err.(*perr.Error); ok {
		reason = e.Reason
	}
	switch perr.KindOf(err) {
	case perr.KindAuth:
		writeError(w, http.StatusUnauthorized, reason)
	case perr.KindNotFound:
		writeError(w, http.StatusNotFound, reason)
	case perr.KindConflict:
		writeError(w, http.StatusConflict, reason)
	case perr.KindPrecondition:
		writeError(w, http.StatusConflict, reason)
	case perr.KindTransient:
		writeError(w, http.StatusServiceUnavailable, reason)
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

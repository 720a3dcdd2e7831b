package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/jason-s-yu/taboo/internal/gameerr"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps a game error onto an HTTP status and a JSON body.
func writeError(w http.ResponseWriter, err error) {
	kind := gameerr.KindOf(err)
	writeJSON(w, statusFor(kind), map[string]string{
		"message": gameerr.Public(err),
		"code":    string(kind),
	})
}

func statusFor(kind gameerr.Kind) int {
	switch kind {
	case gameerr.KindNotFound:
		return http.StatusNotFound
	case gameerr.KindForbidden:
		return http.StatusForbidden
	case gameerr.KindValidation:
		return http.StatusBadRequest
	case gameerr.KindConflict:
		return http.StatusConflict
	case gameerr.KindPersistence:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

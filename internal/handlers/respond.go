package handlers

import (
	"encoding/json"
	"net/http"
)

// writeJSON writes payload as a JSON response with the given status. By the
// time encoding could fail the status line is already out, so encode errors
// are dropped.
func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

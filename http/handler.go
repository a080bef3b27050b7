package http

import (
	"encoding/json"
	"net/http"
)

// Write sends a non-granted decision as a JSON response.
func (d Decision) Write(w http.ResponseWriter) {
	writeJSON(w, d.Status, d.Body)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent, so an encoding error cannot change the status.
	_ = json.NewEncoder(w).Encode(body)
}

package server

import (
	"encoding/json"
	"net/http"
)

// writeJSON encodes data as the response body with a 200 status and JSON
// content type.
func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

package handlers

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the JSON shape of every error this API returns.
// Details is only populated in development.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, value interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeInternalError reports an unexpected failure with a generic
// message, attaching the underlying detail only outside production.
func writeInternalError(w http.ResponseWriter, message string, err error, development bool) {
	response := ErrorResponse{Error: message}
	if development && err != nil {
		response.Details = err.Error()
	}
	writeJSON(w, http.StatusInternalServerError, response)
}

// writeRawJSON writes a pre-serialized JSON body, e.g. a cached value
// returned verbatim.
func writeRawJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

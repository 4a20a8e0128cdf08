// Package handlers implements the gateway's HTTP surface: health probes,
// the meetings REST API, and the meeting websocket endpoint.
package handlers

import (
	"encoding/json"
	"net/http"
)

type apiError struct {
	Message string `json:"message"`
	Param   string `json:"param,omitempty"`
}

type errorEnvelope struct {
	Error apiError `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, message, param string) {
	writeJSON(w, status, errorEnvelope{Error: apiError{Message: message, Param: param}})
}

package api

import (
	"encoding/json"
	"net/http"

	"github.com/ainova/novagate/internal/logx"
)

// Client facing error messages.
const (
	msgInvalidBody = "Invalid request body"
	msgInvalidMode = "Invalid interaction mode"
	msgNoData      = "No tabular data provided"
	msgDraining    = "server draining"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logx.Log.Error().Err(err).Msg("encode response")
	}
}

// writeError sends {"error": msg} as one buffered JSON object.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

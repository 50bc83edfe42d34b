package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/ainova/novagate/internal/logx"
	"github.com/ainova/novagate/internal/metrics"
	"github.com/ainova/novagate/internal/serverstate"
)

const (
	healthTimeout = 5 * time.Second
	maxHealthBody = 1 << 20
)

type healthError struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// HealthHandler republishes the query backend health check on GET /health.
// The upstream document is embedded verbatim under "flask".
func HealthHandler(client *http.Client, healthURL string) http.HandlerFunc {
	if client == nil {
		client = http.DefaultClient
	}
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := fetchHealth(r.Context(), client, healthURL)
		var unhealthy *unhealthyError
		switch {
		case errors.As(err, &unhealthy):
			logx.Log.Warn().Int("status", unhealthy.status).Str("url", healthURL).Msg("upstream unhealthy")
			metrics.RecordHealthCheck(false)
			writeJSON(w, http.StatusInternalServerError, healthError{Status: "Flask API unhealthy"})
			return
		case err != nil:
			logx.Log.Error().Err(err).Str("url", healthURL).Msg("health check")
			metrics.RecordHealthCheck(false)
			writeJSON(w, http.StatusInternalServerError, healthError{Status: "error", Error: err.Error()})
			return
		}
		out, err := sjson.SetRawBytes([]byte(`{"status":"ok"}`), "flask", body)
		if err != nil {
			metrics.RecordHealthCheck(false)
			writeJSON(w, http.StatusInternalServerError, healthError{Status: "error", Error: err.Error()})
			return
		}
		metrics.RecordHealthCheck(true)
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		if _, err := w.Write(out); err != nil {
			logx.Log.Warn().Err(err).Msg("write health")
		}
	}
}

type unhealthyError struct{ status int }

func (e *unhealthyError) Error() string { return fmt.Sprintf("health status %d", e.status) }

func fetchHealth(ctx context.Context, client *http.Client, healthURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &unhealthyError{status: resp.StatusCode}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxHealthBody))
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, errors.New("health response is not valid JSON")
	}
	return body, nil
}

// HealthzHandler reports the gateway's own liveness from the server state.
func HealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if serverstate.IsDraining() {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": serverstate.StatusDraining})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

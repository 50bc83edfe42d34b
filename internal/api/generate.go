package api

import (
	"encoding/json"
	"errors"
	"net/http"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/ainova/novagate/internal/logx"
	"github.com/ainova/novagate/internal/metrics"
	"github.com/ainova/novagate/internal/modes"
	"github.com/ainova/novagate/internal/relay"
	"github.com/ainova/novagate/internal/serverstate"
)

// GenerateHandler handles POST /api/generate. The mode selects one upstream
// and the response is relayed to the caller as it is produced.
func GenerateHandler(reg *modes.Registry, rl *relay.Relayer, maxBody int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logx.Log.With().Str("request_id", chiMiddleware.GetReqID(r.Context())).Logger()

		if serverstate.IsDraining() {
			metrics.RecordGenerate("", "draining")
			writeError(w, http.StatusServiceUnavailable, msgDraining)
			return
		}
		if maxBody > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, maxBody)
		}
		var req relay.GenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Warn().Err(err).Msg("decode generate request")
			metrics.RecordGenerate("", "invalid_body")
			writeError(w, http.StatusBadRequest, msgInvalidBody)
			return
		}
		target, ok := reg.Lookup(req.Mode)
		if !ok {
			log.Warn().Str("mode", req.Mode).Msg("invalid interaction mode")
			metrics.RecordGenerate("", "invalid_mode")
			writeError(w, http.StatusBadRequest, msgInvalidMode)
			return
		}

		res, err := rl.Relay(r.Context(), w, target, req, relay.ClientContextFrom(r))
		metrics.RecordGenerate(target.Mode, string(res.Outcome))
		if err != nil {
			handleRelayErr(w, log.With().Str("mode", target.Mode).Logger(), res, err)
		}
	}
}

// handleRelayErr answers the client for failures before commit. Failures
// after commit can only be logged since the status line is already sent.
func handleRelayErr(w http.ResponseWriter, log zerolog.Logger, res relay.Result, err error) {
	var uerr *relay.UpstreamError
	var terr *relay.TransportError
	switch {
	case errors.As(err, &uerr):
		writeError(w, uerr.Status, uerr.Message)
	case errors.As(err, &terr):
		log.Error().Err(err).Msg("upstream unreachable")
		writeError(w, http.StatusInternalServerError, terr.Error())
	case errors.Is(err, relay.ErrStreamInterrupted):
		log.Info().Err(err).Int64("bytes", res.Bytes).Msg("client went away")
	case errors.Is(err, relay.ErrStreamTruncated):
		log.Warn().Err(err).Int64("bytes", res.Bytes).Msg("upstream stream truncated")
	default:
		log.Error().Err(err).Msg("relay failure")
		if !res.Committed() {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
	}
}

package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/ainova/novagate/internal/logx"
	"github.com/ainova/novagate/internal/metrics"
	"github.com/ainova/novagate/internal/modes"
)

// chunkSize is the read buffer for one upstream chunk. The loop never holds
// more than one chunk in memory.
const chunkSize = 32 * 1024

// Outcome is the terminal state of one relay.
type Outcome string

const (
	OutcomeStreamed        Outcome = "streamed"
	OutcomeUpstreamError   Outcome = "upstream_error"
	OutcomeTransportFailed Outcome = "transport_failed"
	OutcomeInterrupted     Outcome = "interrupted"
	OutcomeTruncated       Outcome = "truncated"
)

// Result summarizes a relay for logging and metrics.
type Result struct {
	Outcome Outcome
	Status  int
	Bytes   int64
	Chunks  int
}

// Committed reports whether response headers were sent to the client.
func (r Result) Committed() bool {
	switch r.Outcome {
	case OutcomeStreamed, OutcomeInterrupted, OutcomeTruncated:
		return true
	}
	return false
}

// Relayer issues upstream calls and copies their bodies to clients.
type Relayer struct {
	Client *http.Client
	// IdleTimeout aborts an upstream call when no status or no body bytes
	// arrive for this long. Time spent writing to the client does not count.
	// Zero disables it.
	IdleTimeout time.Duration
}

// noRedirect hands a 3xx back to the relay so it is reported like any other
// non-success status instead of becoming a second upstream call.
func noRedirect(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }

var defaultClient = &http.Client{CheckRedirect: noRedirect}

// NewRelayer returns a Relayer with its own transport. The client has no
// overall timeout since streams may legitimately run for minutes.
func NewRelayer(idle time.Duration) *Relayer {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.ResponseHeaderTimeout = idle
	return &Relayer{Client: &http.Client{Transport: tr, CheckRedirect: noRedirect}, IdleTimeout: idle}
}

// Relay performs one upstream call for req and streams a successful body to w.
//
// On success the response is committed with the framing's content type and
// each upstream chunk is written and flushed as it arrives. On failure before
// commit nothing is written to w and the error is either *UpstreamError or
// *TransportError. Failures after commit wrap ErrStreamInterrupted (client
// gone) or ErrStreamTruncated (upstream gone); the client keeps what it got.
func (rl *Relayer) Relay(ctx context.Context, w http.ResponseWriter, target modes.Target, req GenerateRequest, cc ClientContext) (Result, error) {
	relayID := uuid.NewString()
	reqID := chiMiddleware.GetReqID(ctx)
	log := logx.Log.With().Str("request_id", reqID).Str("relay_id", relayID).Str("mode", target.Mode).Logger()

	upCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	httpReq, err := BuildRequest(upCtx, target, req, cc)
	if err != nil {
		return Result{Outcome: OutcomeTransportFailed}, &TransportError{Err: err}
	}
	httpReq.Header.Set("X-Request-Id", relayID)

	metrics.RelayStart()
	start := time.Now()
	var res Result
	defer func() {
		metrics.RelayEnd(target.Mode, time.Since(start), res.Bytes)
		log.Info().Str("outcome", string(res.Outcome)).Int("status", res.Status).Int64("bytes", res.Bytes).Int("chunks", res.Chunks).Dur("duration", time.Since(start)).Msg("complete")
	}()

	log.Info().Str("upstream", target.URL()).Str("framing", target.Framing.String()).Msg("dispatch")
	resp, err := rl.client().Do(httpReq)
	if err != nil {
		res.Outcome = OutcomeTransportFailed
		return res, &TransportError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	res.Status = resp.StatusCode
	metrics.RecordUpstreamStatus(target.Mode, resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		res.Outcome = OutcomeUpstreamError
		uerr := TranslateError(resp, target.Backend)
		log.Warn().Int("status", resp.StatusCode).Str("message", uerr.Message).Msg("upstream rejected")
		return res, uerr
	}

	w.Header().Set("Content-Type", target.Framing.ContentType())
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}

	var idle *time.Timer
	if rl.IdleTimeout > 0 {
		idle = time.AfterFunc(rl.IdleTimeout, func() { cancel(ErrIdleTimeout) })
		defer idle.Stop()
	}

	buf := make([]byte, chunkSize)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if idle != nil {
				idle.Stop()
			}
			if _, werr := w.Write(buf[:n]); werr != nil {
				cancel(ErrStreamInterrupted)
				res.Outcome = OutcomeInterrupted
				return res, fmt.Errorf("%w: %v", ErrStreamInterrupted, werr)
			}
			if flusher != nil {
				flusher.Flush()
			}
			res.Bytes += int64(n)
			res.Chunks++
			if idle != nil {
				idle.Reset(rl.IdleTimeout)
			}
		}
		if rerr == nil {
			continue
		}
		if errors.Is(rerr, io.EOF) {
			res.Outcome = OutcomeStreamed
			return res, nil
		}
		if ctx.Err() != nil {
			res.Outcome = OutcomeInterrupted
			return res, fmt.Errorf("%w: %v", ErrStreamInterrupted, ctx.Err())
		}
		res.Outcome = OutcomeTruncated
		if cause := context.Cause(upCtx); cause != nil {
			rerr = cause
		}
		return res, fmt.Errorf("%w: %v", ErrStreamTruncated, rerr)
	}
}

func (rl *Relayer) client() *http.Client {
	if rl.Client != nil {
		return rl.Client
	}
	return defaultClient
}

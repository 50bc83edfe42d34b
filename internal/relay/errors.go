package relay

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/tidwall/gjson"
)

// maxErrorBody bounds how much of an upstream error body is buffered.
const maxErrorBody = 64 << 10

var (
	// ErrStreamInterrupted reports that the client went away mid-stream.
	ErrStreamInterrupted = errors.New("stream interrupted")
	// ErrStreamTruncated reports that the upstream failed after the client
	// response was committed.
	ErrStreamTruncated = errors.New("upstream stream truncated")
	// ErrIdleTimeout is the cancellation cause when an upstream stops sending.
	ErrIdleTimeout = errors.New("upstream idle timeout")
)

// UpstreamError is a non-success upstream answer translated for the client.
type UpstreamError struct {
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream status %d: %s", e.Status, e.Message)
}

// TransportError wraps a failure to obtain an upstream status.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return e.Err.Error() }

func (e *TransportError) Unwrap() error { return e.Err }

// TranslateError consumes the body of a non-success upstream response and
// extracts its message. backend names the upstream in the fallback message.
func TranslateError(resp *http.Response, backend string) *UpstreamError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &UpstreamError{Status: resp.StatusCode, Message: ErrorMessage(body, backend)}
}

// ErrorMessage returns the "error" field of a JSON body, or
// "<backend> API error" when the body is not JSON or carries no message.
func ErrorMessage(body []byte, backend string) string {
	if backend == "" {
		backend = "Upstream"
	}
	fallback := backend + " API error"
	if !gjson.ValidBytes(body) {
		return fallback
	}
	v := gjson.GetBytes(body, "error")
	switch v.Type {
	case gjson.String:
		if v.Str != "" {
			return v.Str
		}
	case gjson.Null, gjson.False:
	default:
		return v.Raw
	}
	return fallback
}

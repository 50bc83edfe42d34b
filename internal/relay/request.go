package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"

	"github.com/ainova/novagate/internal/modes"
)

// Unknown is forwarded when the caller's identity cannot be determined.
const Unknown = "unknown"

// GenerateRequest is the client request accepted on /api/generate.
type GenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Mode   string `json:"mode"`
	Stream *bool  `json:"stream,omitempty"`
}

// UnmarshalJSON accepts any JSON value for mode. Non-string modes decode to
// the empty identifier so they are rejected as unknown modes rather than as
// malformed bodies.
func (g *GenerateRequest) UnmarshalJSON(b []byte) error {
	var wire struct {
		Model  string          `json:"model"`
		Prompt string          `json:"prompt"`
		Mode   json.RawMessage `json:"mode"`
		Stream *bool           `json:"stream"`
	}
	if err := json.Unmarshal(b, &wire); err != nil {
		return err
	}
	var mode string
	if len(wire.Mode) > 0 {
		_ = json.Unmarshal(wire.Mode, &mode)
	}
	*g = GenerateRequest{Model: wire.Model, Prompt: wire.Prompt, Mode: mode, Stream: wire.Stream}
	return nil
}

// ClientContext identifies the caller to the upstream.
type ClientContext struct {
	UserAgent     string
	ClientAddress string
}

// ClientContextFrom derives the caller identity from the inbound request.
// The address is the connection peer, not a client-supplied header.
func ClientContextFrom(r *http.Request) ClientContext {
	cc := ClientContext{UserAgent: r.Header.Get("User-Agent"), ClientAddress: r.RemoteAddr}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		cc.ClientAddress = host
	}
	if cc.UserAgent == "" {
		cc.UserAgent = Unknown
	}
	if cc.ClientAddress == "" {
		cc.ClientAddress = Unknown
	}
	return cc
}

type queryBody struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model"`
}

type directBody struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream *bool  `json:"stream,omitempty"`
}

// UpstreamBody encodes the JSON body sent to target.
func UpstreamBody(target modes.Target, req GenerateRequest) ([]byte, error) {
	if target.PassesStream() {
		return json.Marshal(directBody{Model: req.Model, Prompt: req.Prompt, Stream: req.Stream})
	}
	return json.Marshal(queryBody{Prompt: req.Prompt, Model: req.Model})
}

// BuildRequest builds the outbound POST for target.
func BuildRequest(ctx context.Context, target modes.Target, req GenerateRequest, cc ClientContext) (*http.Request, error) {
	body, err := UpstreamBody(target, req)
	if err != nil {
		return nil, fmt.Errorf("encode upstream body: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target.URL(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", cc.UserAgent)
	httpReq.Header.Set("X-Forwarded-For", cc.ClientAddress)
	return httpReq, nil
}

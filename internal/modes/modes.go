// Package modes maps interaction modes to the upstream backend that serves them.
package modes

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"sort"
	"strings"
)

// Framing is the response content convention of an upstream.
type Framing int

const (
	// NDJSON upstreams emit newline-delimited JSON records.
	NDJSON Framing = iota
	// JSON upstreams emit a single JSON document, streamed incrementally.
	JSON
)

func (f Framing) String() string {
	switch f {
	case NDJSON:
		return "ndjson"
	case JSON:
		return "json"
	default:
		return fmt.Sprintf("framing(%d)", int(f))
	}
}

// ContentType is the client response content type for the framing.
func (f Framing) ContentType() string {
	if f == NDJSON {
		return "application/x-ndjson; charset=utf-8"
	}
	return "application/json; charset=utf-8"
}

// Backend labels used in fallback error messages.
const (
	BackendFlask  = "Flask"
	BackendOllama = "Ollama"
)

// Mode identifiers.
const (
	Database         = "database"
	Langchain        = "langchain"
	LangchainPrompt  = "langchainprompt"
	LlamaIndex       = "llamaindex"
	Embedded         = "embedded"
	Restful          = "restful"
	EmbeddedNarrated = "embedded_narrated"
	GenericRAG       = "generic_rag"
	Database1        = "database1"
	Direct           = "direct"
)

// Target is the resolved upstream of one mode. It is immutable once built.
type Target struct {
	Mode    string
	Backend string
	BaseURL *url.URL
	Path    string
	Framing Framing
}

// URL returns the absolute address the gateway posts to.
func (t Target) URL() string {
	return strings.TrimRight(t.BaseURL.String(), "/") + t.Path
}

// PassesStream reports whether the caller's stream flag is forwarded upstream.
// Only the direct Ollama call understands it.
func (t Target) PassesStream() bool { return t.Mode == Direct }

// Entry is one row of the mode table before addresses are parsed.
type Entry struct {
	Mode    string
	Backend string
	Base    string
	Path    string
	Framing Framing
}

// ErrUnknownMode is returned when a mode identifier is not registered.
var ErrUnknownMode = errors.New("unknown mode")

// Registry resolves mode identifiers. It is read-only after construction and
// safe for concurrent use.
type Registry struct {
	targets map[string]Target
}

// New parses entries into a Registry. Duplicate or empty modes and invalid
// base addresses are rejected.
func New(entries []Entry) (*Registry, error) {
	r := &Registry{targets: make(map[string]Target, len(entries))}
	for _, e := range entries {
		if e.Mode == "" {
			return nil, errors.New("modes: empty mode identifier")
		}
		if _, dup := r.targets[e.Mode]; dup {
			return nil, fmt.Errorf("modes: duplicate mode %q", e.Mode)
		}
		u, err := url.Parse(e.Base)
		if err != nil {
			return nil, fmt.Errorf("modes: %s: invalid base %q: %w", e.Mode, e.Base, err)
		}
		if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, fmt.Errorf("modes: %s: base %q must be an absolute http(s) URL", e.Mode, e.Base)
		}
		r.targets[e.Mode] = Target{Mode: e.Mode, Backend: e.Backend, BaseURL: u, Path: e.Path, Framing: e.Framing}
	}
	return r, nil
}

// Lookup returns the target for mode.
func (r *Registry) Lookup(mode string) (Target, bool) {
	t, ok := r.targets[mode]
	return t, ok
}

// Resolve is Lookup returning ErrUnknownMode for unregistered identifiers.
func (r *Registry) Resolve(mode string) (Target, error) {
	t, ok := r.targets[mode]
	if !ok {
		return Target{}, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
	return t, nil
}

// Modes lists the registered identifiers in lexical order.
func (r *Registry) Modes() []string {
	out := make([]string, 0, len(r.targets))
	for m := range r.targets {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// DefaultEntries is the mode table of a standard deployment: one query
// backend per port on upstreamHost plus Ollama for the direct mode.
func DefaultEntries(upstreamHost, ollamaURL string) []Entry {
	flask := func(port string) string {
		return "http://" + net.JoinHostPort(upstreamHost, port)
	}
	if ollamaURL == "" {
		ollamaURL = flask("11434")
	}
	return []Entry{
		{Mode: Database, Backend: BackendFlask, Base: flask("5000"), Path: "/query", Framing: NDJSON},
		{Mode: Langchain, Backend: BackendFlask, Base: flask("5001"), Path: "/query", Framing: JSON},
		{Mode: LangchainPrompt, Backend: BackendFlask, Base: flask("5002"), Path: "/query", Framing: NDJSON},
		{Mode: LlamaIndex, Backend: BackendFlask, Base: flask("5003"), Path: "/query", Framing: JSON},
		{Mode: Embedded, Backend: BackendFlask, Base: flask("5004"), Path: "/query", Framing: NDJSON},
		{Mode: Restful, Backend: BackendFlask, Base: flask("5006"), Path: "/query", Framing: NDJSON},
		{Mode: EmbeddedNarrated, Backend: BackendFlask, Base: flask("5009"), Path: "/query", Framing: NDJSON},
		{Mode: GenericRAG, Backend: BackendFlask, Base: flask("5010"), Path: "/query", Framing: NDJSON},
		{Mode: Database1, Backend: BackendFlask, Base: flask("5011"), Path: "/query", Framing: NDJSON},
		{Mode: Direct, Backend: BackendOllama, Base: ollamaURL, Path: "/api/generate", Framing: JSON},
	}
}

// WithBases replaces the base address of existing entries. Overrides for
// modes not present in entries are an error; framing and path never change.
func WithBases(entries []Entry, bases map[string]string) ([]Entry, error) {
	out := make([]Entry, len(entries))
	copy(out, entries)
	seen := make(map[string]bool, len(bases))
	for i := range out {
		if b, ok := bases[out[i].Mode]; ok {
			out[i].Base = b
			seen[out[i].Mode] = true
		}
	}
	for m := range bases {
		if !seen[m] {
			return nil, fmt.Errorf("%w: %q in overrides", ErrUnknownMode, m)
		}
	}
	return out, nil
}

// Default builds the standard registry with optional base overrides.
func Default(upstreamHost, ollamaURL string, bases map[string]string) (*Registry, error) {
	entries, err := WithBases(DefaultEntries(upstreamHost, ollamaURL), bases)
	if err != nil {
		return nil, err
	}
	return New(entries)
}

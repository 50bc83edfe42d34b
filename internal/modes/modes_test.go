package modes

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTable(t *testing.T) {
	reg, err := Default("backends", "", nil)
	require.NoError(t, err)

	tests := []struct {
		mode    string
		url     string
		framing Framing
		backend string
	}{
		{Database, "http://backends:5000/query", NDJSON, BackendFlask},
		{Langchain, "http://backends:5001/query", JSON, BackendFlask},
		{LangchainPrompt, "http://backends:5002/query", NDJSON, BackendFlask},
		{LlamaIndex, "http://backends:5003/query", JSON, BackendFlask},
		{Embedded, "http://backends:5004/query", NDJSON, BackendFlask},
		{Restful, "http://backends:5006/query", NDJSON, BackendFlask},
		{EmbeddedNarrated, "http://backends:5009/query", NDJSON, BackendFlask},
		{GenericRAG, "http://backends:5010/query", NDJSON, BackendFlask},
		{Database1, "http://backends:5011/query", NDJSON, BackendFlask},
		{Direct, "http://backends:11434/api/generate", JSON, BackendOllama},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			target, ok := reg.Lookup(tt.mode)
			require.True(t, ok)
			assert.Equal(t, tt.url, target.URL())
			assert.Equal(t, tt.framing, target.Framing)
			assert.Equal(t, tt.backend, target.Backend)
			assert.Equal(t, tt.mode == Direct, target.PassesStream())
		})
	}
	assert.Len(t, reg.Modes(), len(tests))
}

func TestLookupUnknown(t *testing.T) {
	reg, err := Default("localhost", "", nil)
	require.NoError(t, err)

	for _, m := range []string{"", "DATABASE", "unknown", " database", "null"} {
		_, ok := reg.Lookup(m)
		assert.False(t, ok, "mode %q", m)
		_, err := reg.Resolve(m)
		assert.True(t, errors.Is(err, ErrUnknownMode), "mode %q", m)
	}
}

func TestFramingContentType(t *testing.T) {
	assert.Equal(t, "application/x-ndjson; charset=utf-8", NDJSON.ContentType())
	assert.Equal(t, "application/json; charset=utf-8", JSON.ContentType())
	assert.Equal(t, "ndjson", NDJSON.String())
}

func TestOverrides(t *testing.T) {
	reg, err := Default("localhost", "http://ollama:11434/", map[string]string{Database: "https://db.example:8443"})
	require.NoError(t, err)

	db, _ := reg.Lookup(Database)
	assert.Equal(t, "https://db.example:8443/query", db.URL())
	assert.Equal(t, NDJSON, db.Framing)

	direct, _ := reg.Lookup(Direct)
	assert.Equal(t, "http://ollama:11434/api/generate", direct.URL())

	_, err = Default("localhost", "", map[string]string{"bogus": "http://x"})
	assert.ErrorIs(t, err, ErrUnknownMode)
}

func TestNewRejectsBadEntries(t *testing.T) {
	_, err := New([]Entry{{Mode: "", Base: "http://x"}})
	assert.Error(t, err)

	_, err = New([]Entry{{Mode: "a", Base: "http://x"}, {Mode: "a", Base: "http://y"}})
	assert.Error(t, err)

	_, err = New([]Entry{{Mode: "a", Base: "not a url"}})
	assert.Error(t, err)
}

package relay

import (
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/ainova/novagate/internal/modes"
)

func testTarget(t *testing.T, mode, base string) modes.Target {
	t.Helper()
	entries, err := modes.WithBases(modes.DefaultEntries("localhost", ""), map[string]string{mode: base})
	if err != nil {
		t.Fatalf("override %s: %v", mode, err)
	}
	reg, err := modes.New(entries)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	target, ok := reg.Lookup(mode)
	if !ok {
		t.Fatalf("mode %s not registered", mode)
	}
	return target
}

// chunkRecorder records every Write separately so tests can tell one
// buffered write from several streamed ones.
type chunkRecorder struct {
	mu      sync.Mutex
	header  http.Header
	status  int
	writes  [][]byte
	flushes int
	failOn  int
	onWrite func(n int)
}

func newChunkRecorder() *chunkRecorder {
	return &chunkRecorder{header: http.Header{}}
}

func (c *chunkRecorder) Header() http.Header { return c.header }

func (c *chunkRecorder) WriteHeader(status int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status == 0 {
		c.status = status
	}
}

func (c *chunkRecorder) Write(b []byte) (int, error) {
	c.mu.Lock()
	if c.status == 0 {
		c.status = http.StatusOK
	}
	if c.failOn > 0 && len(c.writes)+1 >= c.failOn {
		c.mu.Unlock()
		return 0, errors.New("broken pipe")
	}
	c.writes = append(c.writes, append([]byte(nil), b...))
	n := len(c.writes)
	cb := c.onWrite
	c.mu.Unlock()
	if cb != nil {
		cb(n)
	}
	return len(b), nil
}

func (c *chunkRecorder) Flush() {
	c.mu.Lock()
	c.flushes++
	c.mu.Unlock()
}

func (c *chunkRecorder) body() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []byte
	for _, w := range c.writes {
		out = append(out, w...)
	}
	return string(out)
}

func (c *chunkRecorder) writeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.writes)
}

// Package inflight counts requests that a graceful shutdown waits for.
package inflight

import (
	"context"
	"net/http"
	"sync"
)

// Counter tracks in-flight work. The zero value is ready to use.
type Counter struct {
	mu   sync.Mutex
	n    int64
	idle chan struct{} // closed while n == 0
}

func (c *Counter) idleLocked() chan struct{} {
	if c.idle == nil {
		c.idle = make(chan struct{})
		if c.n == 0 {
			close(c.idle)
		}
	}
	return c.idle
}

// Acquire registers one unit of work and returns its release func. Calling
// release more than once has no further effect.
func (c *Counter) Acquire() (release func()) {
	c.mu.Lock()
	c.idleLocked()
	if c.n == 0 {
		c.idle = make(chan struct{})
	}
	c.n++
	c.mu.Unlock()

	var once sync.Once
	return func() { once.Do(c.done) }
}

func (c *Counter) done() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.n == 0 {
		return
	}
	c.n--
	if c.n == 0 {
		close(c.idleLocked())
	}
}

// Load returns the number of in-flight units.
func (c *Counter) Load() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

// WaitForZero blocks until nothing is in flight or ctx ends, reporting
// whether the count reached zero.
func (c *Counter) WaitForZero(ctx context.Context) bool {
	c.mu.Lock()
	ch := c.idleLocked()
	c.mu.Unlock()
	select {
	case <-ch:
		return true
	case <-ctx.Done():
		return false
	}
}

// Middleware holds the counter for the lifetime of each request.
func (c *Counter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			release := c.Acquire()
			defer release()
			next.ServeHTTP(w, r)
		})
	}
}

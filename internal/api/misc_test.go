package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/ainova/novagate/internal/inflight"
	"github.com/ainova/novagate/internal/logx"
	"github.com/ainova/novagate/internal/modes"
)

func decodeJSON(rec *httptest.ResponseRecorder, v any) error {
	return json.Unmarshal(rec.Body.Bytes(), v)
}

func defaultRegistry(t *testing.T) *modes.Registry {
	t.Helper()
	reg, err := modes.Default("backends", "", nil)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return reg
}

func TestOpenAPIDocumentValidates(t *testing.T) {
	doc := BuildOpenAPI(defaultRegistry(t), "1.2.3")
	if err := doc.Validate(context.Background()); err != nil {
		t.Fatalf("invalid openapi: %v", err)
	}

	rec := httptest.NewRecorder()
	OpenAPIHandler(defaultRegistry(t), "1.2.3").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/client/openapi.json", nil))
	loaded, err := openapi3.NewLoader().LoadFromData(rec.Body.Bytes())
	if err != nil {
		t.Fatalf("load served document: %v", err)
	}
	gen := loaded.Paths.Find("/api/generate")
	if gen == nil || gen.Post == nil {
		t.Fatalf("missing generate operation")
	}
	mode := gen.Post.RequestBody.Value.Content.Get("application/json").Schema.Value.Properties["mode"].Value
	if len(mode.Enum) != 10 {
		t.Fatalf("mode enum = %v", mode.Enum)
	}
}

func TestModesHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	ModesHandler(defaultRegistry(t)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/modes", nil))
	var body struct {
		Modes []ModeInfo `json:"modes"`
	}
	if err := decodeJSON(rec, &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Modes) != 10 || body.Modes[0].Mode != modes.Database {
		t.Fatalf("modes = %+v", body.Modes)
	}
	for _, m := range body.Modes {
		if m.Mode == modes.Langchain && (m.Framing != "json" || m.Upstream != "http://backends:5001/query") {
			t.Fatalf("langchain = %+v", m)
		}
	}
}

func TestStateHandler(t *testing.T) {
	var c inflight.Counter
	release := c.Acquire()
	defer release()
	rec := httptest.NewRecorder()
	StateHandler(&c).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/state", nil))
	var body StateResponse
	if err := decodeJSON(rec, &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Inflight != 1 || body.Status == "" {
		t.Fatalf("state = %+v", body)
	}
}

func TestMiddlewareChainKeepsFlusher(t *testing.T) {
	var reqID string
	var flushable bool
	var h http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID = chiMiddleware.GetReqID(r.Context())
		_, flushable = w.(http.Flusher)
		w.WriteHeader(http.StatusTeapot)
	})
	chain := MiddlewareChain()
	for i := len(chain) - 1; i >= 0; i-- {
		h = chain[i](h)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if reqID == "" || !flushable || rec.Code != http.StatusTeapot {
		t.Fatalf("request id %q flushable %v status %d", reqID, flushable, rec.Code)
	}
}

type countingReader struct {
	r io.Reader
	n int
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += n
	return n, err
}

func TestRequestLoggerBuffersOnlyLoggedPrefix(t *testing.T) {
	prevLevel := zerolog.GlobalLevel()
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	var logs bytes.Buffer
	logx.SetOutput(&logs)
	defer func() {
		zerolog.SetGlobalLevel(prevLevel)
		logx.Configure(prevLevel.String())
	}()

	payload := strings.Repeat("x", 3*maxLoggedBody)
	src := &countingReader{r: strings.NewReader(payload)}
	var readBeforeHandler int
	var got []byte
	h := requestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		readBeforeHandler = src.n
		got, _ = io.ReadAll(r.Body)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/generate", src))

	if readBeforeHandler > maxLoggedBody {
		t.Fatalf("logger consumed %d bytes before the handler", readBeforeHandler)
	}
	if string(got) != payload {
		t.Fatalf("handler saw %d bytes; want %d", len(got), len(payload))
	}
	if !strings.Contains(logs.String(), "http request") {
		t.Fatalf("debug dump missing: %s", logs.String())
	}
}

func TestAPIKeyMiddleware(t *testing.T) {
	h := APIKeyMiddleware("sekret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	for _, tt := range []struct {
		auth string
		want int
	}{
		{"", http.StatusUnauthorized},
		{"Bearer nope", http.StatusUnauthorized},
		{"sekret", http.StatusUnauthorized},
		{"Bearer sekret", http.StatusOK},
	} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.auth != "" {
			req.Header.Set("Authorization", tt.auth)
		}
		h.ServeHTTP(rec, req)
		if rec.Code != tt.want {
			t.Fatalf("auth %q: status = %d; want %d", tt.auth, rec.Code, tt.want)
		}
	}

	open := APIKeyMiddleware("")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec := httptest.NewRecorder()
	open.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("empty key blocked request: %d", rec.Code)
	}
}

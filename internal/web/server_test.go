package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/jstello/OneInc/internal/completion"
	"github.com/jstello/OneInc/internal/config"
	"github.com/jstello/OneInc/internal/metrics"
	"github.com/jstello/OneInc/internal/ratelimit"
	"github.com/jstello/OneInc/internal/relay"
	"github.com/jstello/OneInc/internal/styles"
)

// scriptedStream yields two fragments and closes.
type scriptedStream struct {
	frags []string
	pos   int
}

func (s *scriptedStream) Recv() (string, error) {
	if s.pos < len(s.frags) {
		s.pos++
		return s.frags[s.pos-1], nil
	}
	return "", io.EOF
}

func (s *scriptedStream) Close() error { return nil }

// scriptedStreamer records the user text of every upstream call.
type scriptedStreamer struct {
	mu    sync.Mutex
	texts []string
}

func (f *scriptedStreamer) Stream(_ context.Context, _, text string) (completion.TokenStream, error) {
	f.mu.Lock()
	f.texts = append(f.texts, text)
	f.mu.Unlock()
	return &scriptedStream{frags: []string{"re", "phrased"}}, nil
}

func newTestServer(t *testing.T, quota int) (*Server, *scriptedStreamer) {
	t.Helper()
	upstream := &scriptedStreamer{}
	m := metrics.New()
	catalog := styles.FromConfig(config.DefaultStyles())
	orchestrator := relay.New(catalog, upstream, m, zerolog.Nop())
	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryStore(quota, time.Minute), zerolog.Nop())

	cfg := config.Server{
		Addr:            ":0",
		AllowedOrigin:   "http://localhost:3000",
		ReadTimeout:     5 * time.Second,
		IdleTimeout:     5 * time.Second,
		ShutdownTimeout: time.Second,
	}
	return NewServer(cfg, orchestrator, limiter, m, zerolog.Nop()), upstream
}

func postRephrase(srv *Server, body, remoteAddr string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodPost, "/api/rephrase", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	r.RemoteAddr = remoteAddr
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, r)
	return w
}

// parseSSE splits a response body into decoded event payloads.
func parseSSE(t *testing.T, body string) []relay.Event {
	t.Helper()
	var events []relay.Event
	for _, block := range strings.Split(body, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		if !strings.HasPrefix(block, "data: ") {
			t.Fatalf("block %q does not start with data prefix", block)
		}
		var ev relay.Event
		if err := json.Unmarshal([]byte(strings.TrimPrefix(block, "data: ")), &ev); err != nil {
			t.Fatalf("decode event from %q: %v", block, err)
		}
		events = append(events, ev)
	}
	return events
}

func TestHealthEndpoints(t *testing.T) {
	srv, _ := newTestServer(t, 10)

	for _, path := range []string{"/", "/health"} {
		r := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, r)

		if w.Code != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", path, w.Code)
		}
		var resp healthResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("GET %s: decode body: %v", path, err)
		}
		if resp.Status != "ok" || resp.Message == "" {
			t.Errorf("GET %s body = %+v", path, resp)
		}
	}
}

func TestRephrase_EmptyText(t *testing.T) {
	srv, _ := newTestServer(t, 10)

	for _, body := range []string{`{"text":""}`, `{"text":"   "}`, `{"text":"\n\t"}`} {
		w := postRephrase(srv, body, "10.0.0.1:1234")
		if w.Code != http.StatusBadRequest {
			t.Errorf("body %s: status = %d, want 400", body, w.Code)
		}
		if !strings.Contains(w.Body.String(), "empty") {
			t.Errorf("body %s: detail %q does not mention empty", body, w.Body.String())
		}
	}
}

func TestRephrase_MalformedBody(t *testing.T) {
	srv, _ := newTestServer(t, 10)

	w := postRephrase(srv, `not json`, "10.0.0.1:1234")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestRephrase_OversizeTextTruncatedAndAdmitted(t *testing.T) {
	srv, upstream := newTestServer(t, 10)

	body, _ := json.Marshal(map[string]string{"text": strings.Repeat("a", 1001)})
	w := postRephrase(srv, string(body), "10.0.0.1:1234")

	// Sanitization truncates; the request streams instead of being rejected.
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}

	upstream.mu.Lock()
	defer upstream.mu.Unlock()
	if len(upstream.texts) == 0 {
		t.Fatal("no upstream calls made")
	}
	for _, text := range upstream.texts {
		if n := utf8.RuneCountInString(text); n != 1000 {
			t.Errorf("upstream text length = %d runes, want 1000", n)
		}
	}
}

func TestRephrase_StreamShape(t *testing.T) {
	srv, _ := newTestServer(t, 10)

	w := postRephrase(srv, `{"text":"hello there"}`, "10.0.0.1:1234")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if cc := w.Header().Get("Cache-Control"); cc != "no-cache" {
		t.Errorf("Cache-Control = %q, want no-cache", cc)
	}
	if ab := w.Header().Get("X-Accel-Buffering"); ab != "no" {
		t.Errorf("X-Accel-Buffering = %q, want no", ab)
	}

	events := parseSSE(t, w.Body.String())
	styleCount := len(config.DefaultStyles())

	starts, ends, contents, completes := 0, 0, 0, 0
	for _, ev := range events {
		switch ev.Type {
		case relay.EventStyleStart:
			starts++
		case relay.EventStyleEnd:
			ends++
		case relay.EventContent:
			contents++
		case relay.EventComplete:
			completes++
		}
	}
	if starts != styleCount || ends != styleCount {
		t.Errorf("start/end = %d/%d, want %d/%d", starts, ends, styleCount, styleCount)
	}
	if contents != 2*styleCount {
		t.Errorf("content events = %d, want %d", contents, 2*styleCount)
	}
	if completes != 1 {
		t.Errorf("complete events = %d, want 1", completes)
	}
	if events[len(events)-1].Type != relay.EventComplete {
		t.Error("stream does not end with complete")
	}
}

func TestRephrase_RateLimited(t *testing.T) {
	srv, _ := newTestServer(t, 10)

	for i := 0; i < 10; i++ {
		w := postRephrase(srv, `{"text":"hi"}`, "203.0.113.5:999")
		if w.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i+1, w.Code)
		}
	}

	w := postRephrase(srv, `{"text":"hi"}`, "203.0.113.5:999")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("11th request status = %d, want 429", w.Code)
	}

	// A different client is unaffected.
	w = postRephrase(srv, `{"text":"hi"}`, "203.0.113.6:999")
	if w.Code != http.StatusOK {
		t.Errorf("other client status = %d, want 200", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, 10)

	// Generate a request so counters exist.
	postRephrase(srv, `{"text":"hi"}`, "10.0.0.1:1")

	r := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("GET /metrics status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "rephrase_stream_events_total") {
		t.Error("exposition missing stream event counters")
	}
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t, 10)

	r := httptest.NewRequest(http.MethodOptions, "/api/rephrase", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, r)

	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", w.Code)
	}
	if origin := w.Header().Get("Access-Control-Allow-Origin"); origin != "http://localhost:3000" {
		t.Errorf("Allow-Origin = %q", origin)
	}
}

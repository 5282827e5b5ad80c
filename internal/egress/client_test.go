package egress

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"

	"github.com/park285/cooldown-chess/internal/record"
)

type hookServer struct {
	mu       sync.Mutex
	statuses []int
	bodies   [][]byte
	headers  []string
}

func (h *hookServer) handle(ctx *fasthttp.RequestCtx) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.bodies = append(h.bodies, append([]byte(nil), ctx.PostBody()...))
	h.headers = append(h.headers, string(ctx.Request.Header.Peek("X-Hook-Token")))
	status := fasthttp.StatusNoContent
	if len(h.statuses) > 0 {
		status, h.statuses = h.statuses[0], h.statuses[1:]
	}
	ctx.SetStatusCode(status)
}

func (h *hookServer) calls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.bodies)
}

func startHook(t *testing.T, statuses ...int) (*hookServer, fasthttp.DialFunc) {
	t.Helper()
	ln := fasthttputil.NewInmemoryListener()
	h := &hookServer{statuses: statuses}
	srv := &fasthttp.Server{Handler: h.handle}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = ln.Close() })
	return h, func(string) (net.Conn, error) { return ln.Dial() }
}

func finished() record.Event {
	return record.Event{
		Kind: record.KindMatchFinished,
		Key:  "room",
		Result: &record.MatchResult{
			MatchID: "m-1", SessionKey: "room", Winner: "white",
			Moves: []string{"e2e4", "e1e2"}, EndedAt: time.Now(),
		},
	}
}

func TestHandlePostsMatch(t *testing.T) {
	h, dial := startHook(t)
	c := NewClient("http://hook.test/results", WithDial(dial),
		WithHeaderProvider(func() map[string]string { return map[string]string{"X-Hook-Token": "s3cret"} }))

	if err := c.Handle(context.Background(), finished()); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if h.calls() != 1 {
		t.Fatalf("expected one call, got %d", h.calls())
	}
	var n Notification
	if err := json.Unmarshal(h.bodies[0], &n); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if n.Event != "match_finished" || n.Match == nil || n.Match.MatchID != "m-1" || len(n.Match.Moves) != 2 {
		t.Fatalf("unexpected notification %+v", n)
	}
	if h.headers[0] != "s3cret" {
		t.Fatalf("header not sent: %q", h.headers[0])
	}
}

func TestHandleRetriesServerErrors(t *testing.T) {
	h, dial := startHook(t, 503, 502)
	c := NewClient("http://hook.test/results", WithDial(dial), WithRetry(3))
	if err := c.Handle(context.Background(), finished()); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if h.calls() != 3 {
		t.Fatalf("expected 3 attempts, got %d", h.calls())
	}
}

func TestHandleStopsOnClientError(t *testing.T) {
	h, dial := startHook(t, 400)
	c := NewClient("http://hook.test/results", WithDial(dial), WithRetry(3))
	err := c.Handle(context.Background(), finished())
	var se *StatusError
	if !errors.As(err, &se) || se.Code != 400 {
		t.Fatalf("expected StatusError 400, got %v", err)
	}
	if h.calls() != 1 {
		t.Fatalf("4xx must not be retried, got %d calls", h.calls())
	}
}

func TestHandleIgnoresOtherEvents(t *testing.T) {
	h, dial := startHook(t)
	c := NewClient("http://hook.test/results", WithDial(dial))
	if err := c.Handle(context.Background(), record.Event{Kind: record.KindSessionUpdated}); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	var nilClient *Client
	if err := nilClient.Handle(context.Background(), finished()); err != nil {
		t.Fatalf("nil client: %v", err)
	}
	if h.calls() != 0 {
		t.Fatalf("no calls expected, got %d", h.calls())
	}
}

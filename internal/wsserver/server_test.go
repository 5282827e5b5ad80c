package wsserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/cooldown-chess/internal/board"
	"github.com/park285/cooldown-chess/internal/hub"
	"github.com/park285/cooldown-chess/internal/protocol"
	"github.com/park285/cooldown-chess/internal/room"
)

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T) (*httptest.Server, *hub.Hub) {
	t.Helper()
	h := hub.New(context.Background())
	var n atomic.Int64
	srv := New(h,
		WithConfig(Config{PingInterval: time.Minute}),
		WithIDs(func() string { return fmt.Sprintf("p%d", n.Add(1)) }),
	)
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(func() {
		ts.Close()
		_ = h.Shutdown(context.Background())
	})
	return ts, h
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	c, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = c.Close(websocket.StatusNormalClosure, "") })
	return c
}

func send(t *testing.T, c *websocket.Conn, typ string, data any) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := wsjson.Write(ctx, c, map[string]any{"type": typ, "data": data}); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

func read(t *testing.T, c *websocket.Conn, want string) frame {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	var f frame
	if err := wsjson.Read(ctx, c, &f); err != nil {
		t.Fatalf("read (want %s): %v", want, err)
	}
	if f.Type != want {
		t.Fatalf("got %s frame %s, want %s", f.Type, f.Data, want)
	}
	return f
}

func TestTwoPlayersOverWebSocket(t *testing.T) {
	ts, _ := newTestServer(t)
	white, black := dial(t, ts), dial(t, ts)

	send(t, white, protocol.TypeJoinGame, map[string]string{"gameId": "g1"})
	var joined protocol.GameJoined
	if err := json.Unmarshal(read(t, white, protocol.TypeGameJoined).Data, &joined); err != nil {
		t.Fatal(err)
	}
	if joined.Color != "white" || joined.Position.Board.Len() != 32 {
		t.Fatalf("unexpected join payload %+v", joined)
	}

	send(t, black, protocol.TypeJoinGame, map[string]string{"gameId": "g1"})
	read(t, black, protocol.TypeGameJoined)
	read(t, white, protocol.TypeGameStart)
	read(t, black, protocol.TypeGameStart)

	send(t, white, protocol.TypeMove, map[string]any{"source": "e2", "target": "e4", "piece": "wP", "newPosition": "start"})
	for _, c := range []*websocket.Conn{white, black} {
		var mm protocol.MoveMade
		if err := json.Unmarshal(read(t, c, protocol.TypeMoveMade).Data, &mm); err != nil {
			t.Fatal(err)
		}
		if mm.Target != "e4" || mm.Cooldown.Square != "e4" || mm.Cooldown.Expiry == 0 {
			t.Fatalf("unexpected moveMade %+v", mm)
		}
		if p, ok := mm.Position.Board.At(board.MustSquare("e4")); !ok || p.Code() != "wP" {
			t.Fatalf("server position lacks e4 pawn")
		}
	}

	send(t, black, protocol.TypeMove, map[string]any{"source": "e2", "target": "e3", "piece": "wP"})
	var rej protocol.Rejected
	if err := json.Unmarshal(read(t, black, protocol.TypeRejected).Data, &rej); err != nil {
		t.Fatal(err)
	}
	if rej.Reason != "wrong_seat" || rej.Message == "" {
		t.Fatalf("unexpected rejection %+v", rej)
	}

	_ = white.Close(websocket.StatusNormalClosure, "")
	var pd protocol.PlayerDisconnected
	if err := json.Unmarshal(read(t, black, protocol.TypePlayerDisconnected).Data, &pd); err != nil {
		t.Fatal(err)
	}
	if pd.RemainingPlayers != 1 {
		t.Fatalf("remaining = %d", pd.RemainingPlayers)
	}
}

func TestBadFramesKeepConnection(t *testing.T) {
	ts, _ := newTestServer(t)
	c := dial(t, ts)
	ctx := context.Background()

	if err := c.Write(ctx, websocket.MessageText, []byte("{not json")); err != nil {
		t.Fatal(err)
	}
	read(t, c, protocol.TypeError)

	send(t, c, "dance", nil)
	var ep protocol.ErrorPayload
	if err := json.Unmarshal(read(t, c, protocol.TypeError).Data, &ep); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(ep.Message, "dance") {
		t.Fatalf("unexpected error text %q", ep.Message)
	}

	send(t, c, protocol.TypeJoinGame, map[string]string{"gameId": " "})
	read(t, c, protocol.TypeError)

	send(t, c, protocol.TypeMove, map[string]any{"source": "z9", "target": "e4", "piece": "wP"})
	read(t, c, protocol.TypeError)

	send(t, c, protocol.TypeResetBoard, nil)
	var rej protocol.Rejected
	if err := json.Unmarshal(read(t, c, protocol.TypeRejected).Data, &rej); err != nil {
		t.Fatal(err)
	}
	if rej.Reason != "unknown_session" || rej.Action != protocol.TypeResetBoard {
		t.Fatalf("unexpected rejection %+v", rej)
	}

	// still usable
	send(t, c, protocol.TypeJoinGame, map[string]string{"gameId": "g9"})
	read(t, c, protocol.TypeGameJoined)
}

func TestHTTPViews(t *testing.T) {
	ts, h := newTestServer(t)
	c := dial(t, ts)
	send(t, c, protocol.TypeJoinGame, map[string]string{"gameId": "lobby"})
	read(t, c, protocol.TypeGameJoined)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status %d", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/sessions/lobby")
	if err != nil {
		t.Fatal(err)
	}
	var v room.View
	err = json.NewDecoder(resp.Body).Decode(&v)
	resp.Body.Close()
	if err != nil || v.Key != "lobby" || v.White != "p1" || v.State != "WAITING" {
		t.Fatalf("session view %+v %v", v, err)
	}

	resp, err = http.Get(ts.URL + "/sessions")
	if err != nil {
		t.Fatal(err)
	}
	var list []room.View
	err = json.NewDecoder(resp.Body).Decode(&list)
	resp.Body.Close()
	if err != nil || len(list) != h.Len() || len(list) != 1 {
		t.Fatalf("sessions %+v %v", list, err)
	}

	resp, err = http.Get(ts.URL + "/sessions/nope")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing session status %d", resp.StatusCode)
	}
}

// Package wsserver exposes the hub over WebSocket and a small read-only HTTP API.
package wsserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/cooldown-chess/internal/board"
	"github.com/park285/cooldown-chess/internal/hub"
	"github.com/park285/cooldown-chess/internal/msgcat"
	"github.com/park285/cooldown-chess/internal/protocol"
	"github.com/park285/cooldown-chess/internal/room"
	"github.com/park285/cooldown-chess/internal/session"
)

// Texts renders player-facing messages.
type Texts interface {
	Text(key string, data any, fallback string) string
}

type Config struct {
	OutboxSize     int
	PingInterval   time.Duration
	WriteTimeout   time.Duration
	OriginPatterns []string
}

func DefaultConfig() Config {
	return Config{
		OutboxSize:   32,
		PingInterval: 30 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
}

type Server struct {
	hub   *hub.Hub
	cfg   Config
	log   *zap.Logger
	texts Texts
	newID func() string
}

type Option func(*Server)

func WithConfig(c Config) Option {
	return func(s *Server) {
		if c.OutboxSize > 0 {
			s.cfg.OutboxSize = c.OutboxSize
		}
		if c.PingInterval > 0 {
			s.cfg.PingInterval = c.PingInterval
		}
		if c.WriteTimeout > 0 {
			s.cfg.WriteTimeout = c.WriteTimeout
		}
		s.cfg.OriginPatterns = c.OriginPatterns
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

func WithTexts(t Texts) Option {
	return func(s *Server) {
		if t != nil {
			s.texts = t
		}
	}
}

// WithIDs replaces the participant id generator.
func WithIDs(gen func() string) Option {
	return func(s *Server) {
		if gen != nil {
			s.newID = gen
		}
	}
}

func New(h *hub.Hub, opts ...Option) *Server {
	s := &Server{
		hub:   h,
		cfg:   DefaultConfig(),
		log:   zap.NewNop(),
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.texts == nil {
		s.texts = msgcat.MustDefault()
	}
	return s
}

// conn is one participant's connection.
type conn struct {
	srv     *Server
	ws      *websocket.Conn
	pid     string
	out     chan protocol.Message
	ctx     context.Context
	cancel  context.CancelFunc
	dropped atomic.Bool
	log     *zap.Logger
}

// ServeHTTP upgrades the request and serves the participant until it disconnects.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:  s.cfg.OriginPatterns,
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		s.log.Debug("ws_accept_failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	c := &conn{
		srv:    s,
		ws:     ws,
		pid:    s.newID(),
		out:    make(chan protocol.Message, s.cfg.OutboxSize),
		ctx:    ctx,
		cancel: cancel,
	}
	c.log = s.log.With(zap.String("participant", c.pid))
	c.log.Info("ws_connected", zap.String("remote", r.RemoteAddr))

	c.serve()
}

func (c *conn) serve() {
	defer c.cancel()
	// leave must still reach the hub after the request context is gone
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.srv.hub.Leave(ctx, c.pid); err != nil {
			c.log.Warn("leave_failed", zap.Error(err))
		}
	}()

	go c.writeLoop()
	go c.pingLoop()

	err := c.readLoop()
	switch {
	case c.dropped.Load():
		_ = c.ws.Close(websocket.StatusPolicyViolation, "dropped")
		c.log.Warn("ws_dropped")
	case err == nil, errors.Is(err, context.Canceled):
		_ = c.ws.Close(websocket.StatusNormalClosure, "bye")
		c.log.Info("ws_disconnected")
	default:
		status := websocket.CloseStatus(err)
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			c.log.Info("ws_disconnected")
		} else {
			c.log.Info("ws_disconnected", zap.Error(err))
		}
		_ = c.ws.Close(websocket.StatusNormalClosure, "bye")
	}
}

// readLoop uses raw reads because wsjson.Read closes the connection on undecodable input.
func (c *conn) readLoop() error {
	for {
		typ, data, err := c.ws.Read(c.ctx)
		if err != nil {
			return err
		}
		if typ != websocket.MessageText {
			c.sendError("error.malformed", map[string]any{"Detail": "binary frames are not supported"}, "malformed request")
			continue
		}
		var in protocol.Inbound
		if err := json.Unmarshal(data, &in); err != nil {
			c.sendError("error.malformed", map[string]any{"Detail": err.Error()}, "malformed request")
			continue
		}
		c.dispatch(in)
	}
}

func (c *conn) dispatch(in protocol.Inbound) {
	h := c.srv.hub
	switch in.Type {
	case protocol.TypeJoinGame:
		var req protocol.JoinRequest
		if err := in.Decode(&req); err != nil {
			c.sendError("error.missing_game", nil, "gameId is required")
			return
		}
		client := room.Client{ID: c.pid, Outbox: c.out, Drop: c.drop}
		reply, err := h.Join(c.ctx, req.GameID, client)
		switch {
		case errors.Is(err, hub.ErrMissingKey):
			c.sendError("error.missing_game", nil, "gameId is required")
		case err != nil:
			c.log.Warn("join_failed", zap.String("session", req.GameID), zap.Error(err))
			c.send(protocol.NewError("could not join %q", req.GameID))
		default:
			c.log.Info("joined", zap.String("session", req.GameID), zap.String("color", reply.Color.String()))
		}

	case protocol.TypeMove:
		var req protocol.MoveRequest
		if err := in.Decode(&req); err != nil {
			c.sendError("error.malformed", map[string]any{"Detail": err.Error()}, "malformed request")
			return
		}
		from, to, piece, err := req.Parse()
		if err != nil {
			c.sendError("error.malformed", map[string]any{"Detail": err.Error()}, "malformed request")
			return
		}
		mv := session.Move{From: from, To: to, Piece: piece}
		c.routed(protocol.TypeMove, h.ProposeMove(c.ctx, c.pid, mv), from, to)

	case protocol.TypeResetBoard:
		c.routed(in.Type, h.Reset(c.ctx, c.pid), board.Square{}, board.Square{})

	case protocol.TypeClearBoard:
		c.routed(in.Type, h.Clear(c.ctx, c.pid), board.Square{}, board.Square{})

	default:
		c.sendError("error.unknown_type", map[string]any{"Type": in.Type}, "unknown request type")
	}
}

// routed answers requests the hub could not hand to a session.
func (c *conn) routed(action string, err error, from, to board.Square) {
	if err == nil {
		return
	}
	if errors.Is(err, session.ErrUnknownSession) {
		reason := string(session.ReasonUnknownSession)
		text := c.srv.texts.Text("reject."+reason, nil, "join a game first")
		c.send(protocol.NewRejected(action, reason, text, from, to, time.Time{}))
		return
	}
	if !errors.Is(err, context.Canceled) {
		c.log.Warn("route_failed", zap.String("action", action), zap.Error(err))
	}
}

func (c *conn) sendError(key string, data any, fallback string) {
	c.send(protocol.NewError("%s", c.srv.texts.Text(key, data, fallback)))
}

// send queues a direct reply. A full outbox drops the connection.
func (c *conn) send(m protocol.Message) {
	select {
	case c.out <- m:
	default:
		c.drop()
	}
}

func (c *conn) drop() {
	c.dropped.Store(true)
	c.cancel()
}

func (c *conn) writeLoop() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case m := <-c.out:
			ctx, cancel := context.WithTimeout(c.ctx, c.srv.cfg.WriteTimeout)
			err := wsjson.Write(ctx, c.ws, m)
			cancel()
			if err != nil {
				c.log.Debug("ws_write_failed", zap.String("type", m.Type), zap.Error(err))
				c.cancel()
				return
			}
		}
	}
}

func (c *conn) pingLoop() {
	t := time.NewTicker(c.srv.cfg.PingInterval)
	defer t.Stop()
	failures := 0
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-t.C:
			ctx, cancel := context.WithTimeout(c.ctx, 3*time.Second)
			err := c.ws.Ping(ctx)
			cancel()
			if err != nil {
				failures++
				if failures >= 2 {
					c.log.Info("ws_ping_failed", zap.Error(err))
					c.cancel()
					return
				}
				continue
			}
			failures = 0
		}
	}
}

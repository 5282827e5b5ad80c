// Package hub maps session keys to running rooms and participants to the session they
// are in. Rooms are created on first join and destroyed once nobody is left.
package hub

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/park285/cooldown-chess/internal/room"
	"github.com/park285/cooldown-chess/internal/session"
)

var (
	ErrMissingKey = errors.New("session key is required")
	ErrNotFound   = errors.New("session not found")
	ErrClosed     = errors.New("hub closed")
)

type Hub struct {
	mu      sync.Mutex
	rooms   map[string]*room.Room
	members map[string]string // participant -> session key
	pending map[string]int    // session key -> participants routed to it

	ctx      context.Context
	cancel   context.CancelFunc
	closed   bool
	log      *zap.Logger
	roomOpts []room.Option
}

type Option func(*Hub)

func WithLogger(l *zap.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.log = l
		}
	}
}

// WithRoomOptions is applied to every room the hub creates.
func WithRoomOptions(opts ...room.Option) Option {
	return func(h *Hub) { h.roomOpts = append(h.roomOpts, opts...) }
}

func New(parent context.Context, opts ...Option) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		rooms:   make(map[string]*room.Room),
		members: make(map[string]string),
		pending: make(map[string]int),
		ctx:     ctx,
		cancel:  cancel,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Join puts c into session key, creating it if needed. A participant already in another
// session leaves it first; joining the same session again is idempotent.
func (h *Hub) Join(ctx context.Context, key string, c room.Client) (room.JoinReply, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return room.JoinReply{}, ErrMissingKey
	}
	if cur, ok := h.sessionOf(c.ID); ok && cur != key {
		if err := h.Leave(ctx, c.ID); err != nil {
			return room.JoinReply{}, err
		}
	}

	r, added, err := h.attach(c.ID, key)
	if err != nil {
		return room.JoinReply{}, err
	}
	reply, err := r.Join(ctx, c)
	if err != nil {
		// a failed rejoin keeps the membership the session still holds
		if added {
			h.detach(c.ID, key, r)
		}
		return room.JoinReply{}, err
	}
	return reply, nil
}

// Leave removes pid from its session. Unknown participants are a no-op.
func (h *Hub) Leave(ctx context.Context, pid string) error {
	h.mu.Lock()
	key, ok := h.members[pid]
	r := h.rooms[key]
	h.mu.Unlock()
	if !ok || r == nil {
		return nil
	}

	if _, err := r.Leave(ctx, pid); err != nil && !errors.Is(err, room.ErrClosed) {
		return err
	}
	h.detach(pid, key, r)
	return nil
}

// ProposeMove routes a move to the sender's session. The outcome is delivered through
// the room's outboxes.
func (h *Hub) ProposeMove(ctx context.Context, pid string, mv session.Move) error {
	return h.route(ctx, pid, room.Propose{ParticipantID: pid, Move: mv})
}

func (h *Hub) Reset(ctx context.Context, pid string) error {
	return h.route(ctx, pid, room.Reset{ParticipantID: pid})
}

func (h *Hub) Clear(ctx context.Context, pid string) error {
	return h.route(ctx, pid, room.Clear{ParticipantID: pid})
}

func (h *Hub) route(ctx context.Context, pid string, m room.Msg) error {
	h.mu.Lock()
	r := h.rooms[h.members[pid]]
	h.mu.Unlock()
	if r == nil {
		return session.ErrUnknownSession
	}
	if err := r.Send(ctx, m); err != nil {
		if errors.Is(err, room.ErrClosed) {
			return session.ErrUnknownSession
		}
		return err
	}
	return nil
}

// Session describes one live session.
func (h *Hub) Session(ctx context.Context, key string) (room.View, error) {
	h.mu.Lock()
	r := h.rooms[key]
	h.mu.Unlock()
	if r == nil {
		return room.View{}, ErrNotFound
	}
	v, err := r.View(ctx)
	if errors.Is(err, room.ErrClosed) {
		return room.View{}, ErrNotFound
	}
	return v, err
}

// Sessions lists live sessions ordered by key.
func (h *Hub) Sessions(ctx context.Context) ([]room.View, error) {
	h.mu.Lock()
	rooms := make([]*room.Room, 0, len(h.rooms))
	for _, r := range h.rooms {
		rooms = append(rooms, r)
	}
	h.mu.Unlock()

	out := make([]room.View, 0, len(rooms))
	for _, r := range rooms {
		v, err := r.View(ctx)
		if errors.Is(err, room.ErrClosed) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Len is the number of live sessions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms)
}

// Shutdown stops every room and refuses further joins.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	rooms := h.rooms
	h.rooms = make(map[string]*room.Room)
	clear(h.members)
	clear(h.pending)
	h.mu.Unlock()

	h.cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, r := range rooms {
			<-r.Done()
		}
	}()
	select {
	case <-done:
		h.log.Info("hub_stopped", zap.Int("sessions", len(rooms)))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) sessionOf(pid string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	key, ok := h.members[pid]
	return key, ok
}

// attach routes pid to key; added reports whether the membership is new.
func (h *Hub) attach(pid, key string) (r *room.Room, added bool, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false, ErrClosed
	}
	r = h.rooms[key]
	if r == nil {
		r = room.New(h.ctx, key, append([]room.Option{room.WithLogger(h.log.Named("room"))}, h.roomOpts...)...)
		h.rooms[key] = r
		h.log.Info("session_created", zap.String("session", key))
	}
	if h.members[pid] != key {
		h.members[pid] = key
		h.pending[key]++
		added = true
	}
	return r, added, nil
}

// detach forgets pid and closes the session once nobody is routed to it. A member is
// counted before its room join and released only after its room leave, so a zero count
// means the room is empty regardless of the order concurrent leaves finish in.
func (h *Hub) detach(pid, key string, r *room.Room) {
	h.mu.Lock()
	if h.members[pid] == key {
		delete(h.members, pid)
		h.pending[key]--
	}
	destroy := h.pending[key] <= 0 && h.rooms[key] == r
	if destroy {
		delete(h.rooms, key)
		delete(h.pending, key)
	}
	h.mu.Unlock()

	if destroy {
		r.Close()
		h.log.Info("session_destroyed", zap.String("session", key))
	}
}

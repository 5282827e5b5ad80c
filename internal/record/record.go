// Package record carries session lifecycle events out of the game loop to optional sinks
// (live index, result archive, webhook). Emitting never blocks a session worker.
package record

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type Kind string

const (
	KindSessionUpdated Kind = "session_updated"
	KindSessionClosed  Kind = "session_closed"
	KindMatchFinished  Kind = "match_finished"
)

// SessionMeta is the public view of a live session.
type SessionMeta struct {
	Key        string    `json:"key"`
	State      string    `json:"state"`
	White      string    `json:"white,omitempty"`
	Black      string    `json:"black,omitempty"`
	Spectators int       `json:"spectators"`
	MatchID    string    `json:"match_id"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// MatchResult describes a game that ended by king capture.
type MatchResult struct {
	MatchID    string    `json:"match_id"`
	SessionKey string    `json:"session_key"`
	Winner     string    `json:"winner"`
	WhiteID    string    `json:"white_id"`
	BlackID    string    `json:"black_id"`
	Moves      []string  `json:"moves"`
	FinalFEN   string    `json:"final_fen"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
}

type Event struct {
	Kind   Kind
	Key    string
	Meta   *SessionMeta
	Result *MatchResult
}

// Sink consumes events. Handle is called from a single goroutine.
type Sink interface {
	Name() string
	Handle(ctx context.Context, ev Event) error
}

// Emitter is what session workers hold.
type Emitter interface {
	Emit(ev Event)
}

// Dispatcher queues events and feeds them to every sink in order.
type Dispatcher struct {
	queue   chan Event
	sinks   []Sink
	timeout time.Duration
	log     *zap.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

type Option func(*Dispatcher)

func WithQueueSize(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.queue = make(chan Event, n)
		}
	}
}

// WithTimeout bounds each sink call.
func WithTimeout(t time.Duration) Option {
	return func(d *Dispatcher) {
		if t > 0 {
			d.timeout = t
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.log = l
		}
	}
}

// NewDispatcher starts the worker. Nil sinks are skipped.
func NewDispatcher(sinks []Sink, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		queue:   make(chan Event, 256),
		timeout: 5 * time.Second,
		log:     zap.NewNop(),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	for _, s := range sinks {
		if s != nil {
			d.sinks = append(d.sinks, s)
		}
	}
	go d.run()
	return d
}

// Emit enqueues ev, dropping it when the queue is full. Safe on a nil Dispatcher and
// after Close.
func (d *Dispatcher) Emit(ev Event) {
	if d == nil || len(d.sinks) == 0 {
		return
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}
	select {
	case d.queue <- ev:
	default:
		d.log.Warn("record_queue_full", zap.String("kind", string(ev.Kind)), zap.String("session", ev.Key))
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for ev := range d.queue {
		for _, s := range d.sinks {
			ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
			err := s.Handle(ctx, ev)
			cancel()
			if err != nil {
				d.log.Warn("record_sink_failed",
					zap.String("sink", s.Name()),
					zap.String("kind", string(ev.Kind)),
					zap.String("session", ev.Key),
					zap.Error(err),
				)
			}
		}
	}
}

// Close stops accepting events and waits for queued ones to drain or ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

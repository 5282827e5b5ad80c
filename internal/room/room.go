// Package room runs one worker goroutine per game session. The worker owns the
// session.Session, applies inbox messages strictly in arrival order and fans results out
// to the participants' outboxes.
package room

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/park285/cooldown-chess/internal/board"
	"github.com/park285/cooldown-chess/internal/msgcat"
	"github.com/park285/cooldown-chess/internal/protocol"
	"github.com/park285/cooldown-chess/internal/record"
	"github.com/park285/cooldown-chess/internal/session"
)

var ErrClosed = errors.New("room closed")

// Texts renders player-facing rejection messages.
type Texts interface {
	Text(key string, data any, fallback string) string
}

type nopEmitter struct{}

func (nopEmitter) Emit(record.Event) {}

type Room struct {
	key     string
	inbox   chan Msg
	sess    *session.Session
	clients map[string]Client

	log   *zap.Logger
	rec   record.Emitter
	texts Texts
	now   func() time.Time

	inboxSize   int
	sessionOpts []session.Option

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

type Option func(*Room)

func WithLogger(l *zap.Logger) Option {
	return func(r *Room) {
		if l != nil {
			r.log = l
		}
	}
}

func WithEmitter(e record.Emitter) Option {
	return func(r *Room) {
		if e != nil {
			r.rec = e
		}
	}
}

func WithTexts(t Texts) Option {
	return func(r *Room) {
		if t != nil {
			r.texts = t
		}
	}
}

// WithClock sets the time source for the room and its session.
func WithClock(now func() time.Time) Option {
	return func(r *Room) {
		if now != nil {
			r.now = now
		}
	}
}

func WithSessionOptions(opts ...session.Option) Option {
	return func(r *Room) { r.sessionOpts = append(r.sessionOpts, opts...) }
}

func WithInboxSize(n int) Option {
	return func(r *Room) {
		if n > 0 {
			r.inboxSize = n
		}
	}
}

// New creates the session and starts its worker. The worker stops when parent is
// cancelled, on Shutdown or on Close.
func New(parent context.Context, key string, opts ...Option) *Room {
	ctx, cancel := context.WithCancel(parent)
	r := &Room{
		key:       key,
		clients:   make(map[string]Client),
		log:       zap.NewNop(),
		rec:       nopEmitter{},
		now:       time.Now,
		inboxSize: 64,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.texts == nil {
		r.texts = msgcat.MustDefault()
	}
	r.log = r.log.With(zap.String("session", key))
	r.inbox = make(chan Msg, r.inboxSize)
	r.sess = session.New(key, append([]session.Option{session.WithClock(r.now)}, r.sessionOpts...)...)

	go r.loop()
	return r
}

func (r *Room) Key() string { return r.key }

// Done is closed once the worker has exited.
func (r *Room) Done() <-chan struct{} { return r.done }

// Send queues m. It fails with ErrClosed once the worker is gone.
func (r *Room) Send(ctx context.Context, m Msg) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-r.done:
		return ErrClosed
	default:
	}
	select {
	case r.inbox <- m:
		return nil
	case <-r.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Join registers c and waits for its seat assignment.
func (r *Room) Join(ctx context.Context, c Client) (JoinReply, error) {
	reply := make(chan JoinReply, 1)
	if err := r.Send(ctx, Join{Client: c, Reply: reply}); err != nil {
		return JoinReply{}, err
	}
	return await(ctx, r.done, reply)
}

// Leave removes a participant and reports what is left.
func (r *Room) Leave(ctx context.Context, pid string) (LeaveReply, error) {
	reply := make(chan LeaveReply, 1)
	if err := r.Send(ctx, Leave{ParticipantID: pid, Reply: reply}); err != nil {
		return LeaveReply{}, err
	}
	return await(ctx, r.done, reply)
}

func (r *Room) View(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	if err := r.Send(ctx, GetView{Reply: reply}); err != nil {
		return View{}, err
	}
	return await(ctx, r.done, reply)
}

// Close stops the worker and waits for it.
func (r *Room) Close() {
	r.cancel()
	<-r.done
}

func await[T any](ctx context.Context, done <-chan struct{}, reply <-chan T) (T, error) {
	var zero T
	select {
	case v := <-reply:
		return v, nil
	case <-done:
		// the worker may have answered right before exiting
		select {
		case v := <-reply:
			return v, nil
		default:
			return zero, ErrClosed
		}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (r *Room) loop() {
	defer close(r.done)
	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return
		case m := <-r.inbox:
			if stop := r.handle(m); stop {
				r.shutdown()
				return
			}
		}
	}
}

func (r *Room) handle(m Msg) bool {
	switch msg := m.(type) {
	case Join:
		r.onJoin(msg)
	case Leave:
		r.onLeave(msg)
	case Propose:
		r.onPropose(msg)
	case Reset:
		r.onRestart(msg.ParticipantID, protocol.TypeResetBoard)
	case Clear:
		r.onRestart(msg.ParticipantID, protocol.TypeClearBoard)
	case GetView:
		msg.Reply <- r.view()
	case Shutdown:
		return true
	}
	return false
}

func (r *Room) onJoin(msg Join) {
	c := msg.Client
	res := r.sess.Join(c.ID)
	r.clients[c.ID] = c

	snap := res.Snapshot
	if res.Spectator() {
		r.sendTo(c.ID, protocol.NewSpectatorJoined(snap.Board, snap.Cooldowns))
	} else {
		r.sendTo(c.ID, protocol.NewGameJoined(res.Color, snap.Board, snap.Cooldowns))
	}
	if res.Started {
		r.broadcast(protocol.NewGameStart(snap.Board, snap.Cooldowns))
		r.log.Info("game_started", zap.String("match", r.sess.MatchID()))
	}
	if !res.Rejoined {
		r.log.Info("participant_joined", zap.String("participant", c.ID), zap.String("seat", seatName(res.Color)))
		r.publishMeta()
	}
	if msg.Reply != nil {
		msg.Reply <- JoinReply{Color: res.Color, Started: res.Started}
	}
}

func (r *Room) onLeave(msg Leave) {
	res := r.sess.Leave(msg.ParticipantID)
	delete(r.clients, msg.ParticipantID)
	if res.Removed {
		r.log.Info("participant_left",
			zap.String("participant", msg.ParticipantID),
			zap.String("seat", seatName(res.Color)),
			zap.Int("seated", res.Seated),
		)
		r.broadcast(protocol.NewPlayerDisconnected(res.Seated))
		if !res.Empty {
			r.publishMeta()
		}
	}
	if msg.Reply != nil {
		msg.Reply <- LeaveReply{Removed: res.Removed, Seated: res.Seated, Empty: res.Empty}
	}
}

func (r *Room) onPropose(msg Propose) {
	mv := msg.Move
	res, err := r.sess.ProposeMove(msg.ParticipantID, mv)
	if err != nil {
		r.log.Debug("move_rejected",
			zap.String("participant", msg.ParticipantID),
			zap.String("move", mv.Notation()),
			zap.Error(err),
		)
		r.reject(msg.ParticipantID, protocol.TypeMove, err, mv)
		return
	}

	r.broadcast(moveMade(res))
	r.log.Debug("move_accepted",
		zap.String("participant", msg.ParticipantID),
		zap.String("piece", mv.Piece.Code()),
		zap.String("move", mv.Notation()),
	)
	if res.Winner != board.NoColor {
		m := r.sess.Match()
		r.broadcast(protocol.NewGameOver(res.Winner, m.ID))
		r.log.Info("game_over", zap.String("winner", res.Winner.String()), zap.String("match", m.ID), zap.Int("moves", len(m.Moves)))
		r.rec.Emit(record.Event{Kind: record.KindMatchFinished, Key: r.key, Result: matchResult(r.key, m)})
		r.publishMeta()
	}
}

func (r *Room) onRestart(pid, action string) {
	var err error
	if action == protocol.TypeClearBoard {
		err = r.sess.Clear(pid)
	} else {
		err = r.sess.Reset(pid)
	}
	if err != nil {
		r.reject(pid, action, err, session.Move{})
		return
	}
	if action == protocol.TypeClearBoard {
		r.broadcast(protocol.NewBoardCleared())
	} else {
		r.broadcast(protocol.NewBoardReset())
	}
	r.log.Info("board_restarted", zap.String("action", action), zap.String("participant", pid), zap.String("match", r.sess.MatchID()))
	r.publishMeta()
}

// reject answers only the requester.
func (r *Room) reject(pid, action string, err error, mv session.Move) {
	var rej *session.Rejection
	if !errors.As(err, &rej) {
		rej = &session.Rejection{Reason: session.ReasonInvalidMove, Detail: err.Error()}
	}
	data := map[string]any{
		"Piece":     mv.Piece.Code(),
		"Source":    mv.From.String(),
		"Target":    mv.To.String(),
		"Seat":      seatName(r.sess.SeatOf(pid)),
		"Remaining": remaining(rej.Until, r.now()),
	}
	text := r.texts.Text("reject."+string(rej.Reason), data, rej.Error())
	r.sendTo(pid, protocol.NewRejected(action, string(rej.Reason), text, mv.From, mv.To, rej.Until))
}

func (r *Room) sendTo(pid string, m protocol.Message) {
	c, ok := r.clients[pid]
	if !ok || c.Outbox == nil {
		return
	}
	select {
	case c.Outbox <- m:
	default:
		r.drop(pid)
	}
}

func (r *Room) broadcast(m protocol.Message) {
	for id := range r.clients {
		r.sendTo(id, m)
	}
}

// drop forgets a client that cannot keep up. Session membership is left to the
// transport, which calls Leave once the connection is gone.
func (r *Room) drop(pid string) {
	c, ok := r.clients[pid]
	if !ok {
		return
	}
	delete(r.clients, pid)
	r.log.Warn("client_dropped", zap.String("participant", pid))
	if c.Drop != nil {
		c.Drop()
	}
}

func (r *Room) shutdown() {
	for id := range r.clients {
		r.drop(id)
	}
	r.rec.Emit(record.Event{Kind: record.KindSessionClosed, Key: r.key})
	r.log.Info("session_closed")
	r.cancel()
}

func (r *Room) publishMeta() {
	seats := r.sess.Seats()
	r.rec.Emit(record.Event{
		Kind: record.KindSessionUpdated,
		Key:  r.key,
		Meta: &record.SessionMeta{
			Key:        r.key,
			State:      string(r.sess.State()),
			White:      seats.White,
			Black:      seats.Black,
			Spectators: r.sess.SpectatorCount(),
			MatchID:    r.sess.MatchID(),
			UpdatedAt:  r.now().UTC(),
		},
	})
}

func (r *Room) view() View {
	seats := r.sess.Seats()
	v := View{
		Key:        r.key,
		State:      string(r.sess.State()),
		White:      seats.White,
		Black:      seats.Black,
		Spectators: r.sess.SpectatorCount(),
		Clients:    len(r.clients),
		MatchID:    r.sess.MatchID(),
		Moves:      len(r.sess.Moves()),
		FEN:        r.sess.Board().FEN(),
	}
	if w := r.sess.Winner(); w != board.NoColor {
		v.Winner = w.String()
	}
	return v
}

func moveMade(res session.MoveResult) protocol.Message {
	mm := protocol.MoveMade{
		Source:   res.Move.From.String(),
		Target:   res.Move.To.String(),
		Piece:    res.Move.Piece.Code(),
		Position: protocol.PositionOf(res.Board),
		Cooldown: protocol.CooldownOf(res.Cooldown),
	}
	if !res.Captured.IsZero() {
		mm.Captured = res.Captured.Code()
	}
	if res.Castle {
		mm.Castle = &protocol.Castle{RookFrom: res.RookFrom.String(), RookTo: res.RookTo.String()}
	}
	if res.Promoted {
		mm.Promotion = board.NewPiece(res.Move.Piece.Color, board.Queen).Code()
	}
	return protocol.Message{Type: protocol.TypeMoveMade, Data: mm}
}

func matchResult(key string, m session.Match) *record.MatchResult {
	return &record.MatchResult{
		MatchID:    m.ID,
		SessionKey: key,
		Winner:     m.Winner.String(),
		WhiteID:    m.White,
		BlackID:    m.Black,
		Moves:      m.Moves,
		FinalFEN:   m.FinalFEN,
		StartedAt:  m.StartedAt,
		EndedAt:    m.EndedAt,
	}
}

func seatName(c board.Color) string {
	if c == board.NoColor {
		return "spectator"
	}
	return c.String()
}

func remaining(until, now time.Time) string {
	if until.IsZero() || !until.After(now) {
		return "0s"
	}
	return until.Sub(now).Round(100 * time.Millisecond).String()
}

// Package session holds the per-game state machine: seats, spectators, the board, the
// cooldown table and piece history. A Session is not safe for concurrent use; exactly one
// worker goroutine owns it (see package room).
package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/park285/cooldown-chess/internal/board"
	"github.com/park285/cooldown-chess/internal/cooldown"
	"github.com/park285/cooldown-chess/internal/history"
	"github.com/park285/cooldown-chess/internal/rules"
)

type Session struct {
	key   string
	state State

	board     board.Board
	cooldowns *cooldown.Table
	history   *history.Tracker

	white      string
	black      string
	spectators map[string]struct{}

	matchID   string
	moves     []string
	startedAt time.Time
	endedAt   time.Time
	winner    board.Color

	initial func() board.Board
	now     func() time.Time
	newID   func() string
}

type Option func(*Session)

// WithClock injects the time source used for cooldowns.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// WithInitialBoard sets the layout a new session starts from. Reset still uses the
// standard start.
func WithInitialBoard(b board.Board) Option {
	return func(s *Session) { s.initial = func() board.Board { return b } }
}

// WithCooldowns overrides per-kind lock durations.
func WithCooldowns(d map[board.Kind]time.Duration) Option {
	return func(s *Session) { s.cooldowns = cooldown.NewTable(cooldown.WithDurations(d)) }
}

// WithMatchIDs replaces the match id generator.
func WithMatchIDs(gen func() string) Option {
	return func(s *Session) {
		if gen != nil {
			s.newID = gen
		}
	}
}

func New(key string, opts ...Option) *Session {
	s := &Session{
		key:        key,
		state:      StateWaiting,
		cooldowns:  cooldown.NewTable(),
		spectators: make(map[string]struct{}),
		initial:    board.Start,
		now:        time.Now,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.board = s.initial()
	s.history = history.NewTracker(s.board)
	s.matchID = s.newID()
	return s
}

func (s *Session) Key() string { return s.key }
func (s *Session) State() State { return s.state }
func (s *Session) Board() board.Board { return s.board }
func (s *Session) Winner() board.Color { return s.winner }
func (s *Session) MatchID() string { return s.matchID }
func (s *Session) Seats() Seats { return Seats{White: s.white, Black: s.black} }
func (s *Session) SpectatorCount() int { return len(s.spectators) }

// Moves returns a copy of the match log.
func (s *Session) Moves() []string { return append([]string(nil), s.moves...) }

// SeatOf returns the participant's seat color, NoColor for spectators and strangers.
func (s *Session) SeatOf(pid string) board.Color {
	switch {
	case pid == "":
		return board.NoColor
	case pid == s.white:
		return board.White
	case pid == s.black:
		return board.Black
	default:
		return board.NoColor
	}
}

func (s *Session) IsMember(pid string) bool {
	if s.SeatOf(pid) != board.NoColor {
		return true
	}
	_, ok := s.spectators[pid]
	return ok
}

// IsEmpty reports whether nobody is seated or watching.
func (s *Session) IsEmpty() bool {
	return s.white == "" && s.black == "" && len(s.spectators) == 0
}

// Participants lists every member, seats first.
func (s *Session) Participants() []string {
	out := make([]string, 0, 2+len(s.spectators))
	if s.white != "" {
		out = append(out, s.white)
	}
	if s.black != "" {
		out = append(out, s.black)
	}
	for pid := range s.spectators {
		out = append(out, pid)
	}
	return out
}

func (s *Session) Snapshot() Snapshot {
	return Snapshot{State: s.state, Board: s.board, Cooldowns: s.cooldowns.Entries(s.now())}
}

// Join seats pid in the first free seat (white, then black) or adds a spectator.
func (s *Session) Join(pid string) JoinResult {
	if s.IsMember(pid) {
		return JoinResult{Color: s.SeatOf(pid), Rejoined: true, Snapshot: s.Snapshot()}
	}
	res := JoinResult{}
	switch {
	case s.white == "":
		s.white = pid
		res.Color = board.White
	case s.black == "":
		s.black = pid
		res.Color = board.Black
	default:
		s.spectators[pid] = struct{}{}
	}
	if res.Color != board.NoColor && s.state == StateWaiting && s.white != "" && s.black != "" {
		s.state = StateActive
		if s.startedAt.IsZero() {
			s.startedAt = s.now()
		}
		res.Started = true
	}
	res.Snapshot = s.Snapshot()
	return res
}

// Leave removes pid from its seat or the spectator set. Unknown participants are a no-op.
func (s *Session) Leave(pid string) LeaveResult {
	res := LeaveResult{}
	switch s.SeatOf(pid) {
	case board.White:
		s.white = ""
		res.Removed, res.Color = true, board.White
	case board.Black:
		s.black = ""
		res.Removed, res.Color = true, board.Black
	default:
		if _, ok := s.spectators[pid]; ok {
			delete(s.spectators, pid)
			res.Removed = true
		}
	}
	if res.Color != board.NoColor && s.state == StateActive {
		s.state = StateWaiting
	}
	res.Seated = s.Seats().Count()
	res.Empty = s.IsEmpty()
	return res
}

// ProposeMove validates and applies a move by pid. Rejections leave the session untouched.
func (s *Session) ProposeMove(pid string, mv Move) (MoveResult, error) {
	switch s.state {
	case StateEnded:
		return MoveResult{}, reject(ReasonGameEnded, "%s won", s.winner)
	case StateWaiting:
		return MoveResult{}, reject(ReasonNotActive, "waiting for players")
	}
	seat := s.SeatOf(pid)
	if seat == board.NoColor {
		return MoveResult{}, reject(ReasonNotSeated, "participant %s has no seat", pid)
	}
	if seat != mv.Piece.Color {
		return MoveResult{}, reject(ReasonWrongSeat, "%s seat cannot move %s", seat, mv.Piece.Code())
	}
	now := s.now()
	if s.cooldowns.IsLocked(mv.From, now) {
		until, _ := s.cooldowns.Expiry(mv.From)
		return MoveResult{}, &Rejection{Reason: ReasonCooldown, Detail: mv.From.String(), Until: until}
	}
	if actual, ok := s.board.At(mv.From); !ok || actual != mv.Piece {
		return MoveResult{}, reject(ReasonPieceMismatch, "%s is not on %s", mv.Piece.Code(), mv.From)
	}
	if !rules.IsLegal(s.board, mv.From, mv.To, mv.Piece, s.history) {
		return MoveResult{}, reject(ReasonInvalidMove, "%s %s", mv.Piece.Code(), mv.Notation())
	}

	out := rules.Apply(s.board, mv.From, mv.To, mv.Piece)
	s.board = out.Board
	exp := s.cooldowns.Lock(mv.To, mv.Piece.Kind, now)
	s.history.RecordMove(mv.From, mv.To)
	if out.Castle {
		s.history.RecordMove(out.RookFrom, out.RookTo)
	}
	s.moves = append(s.moves, mv.Notation())

	res := MoveResult{
		Move:     mv,
		Board:    out.Board,
		Cooldown: cooldown.Entry{Square: mv.To, Expiry: exp},
		Captured: out.Captured,
		Castle:   out.Castle,
		RookFrom: out.RookFrom,
		RookTo:   out.RookTo,
		Promoted: out.Promoted,
	}
	if out.CapturedKing() {
		s.state = StateEnded
		s.winner = mv.Piece.Color
		s.endedAt = now
		res.Winner = s.winner
	}
	return res, nil
}

// Reset puts the standard start back on the board.
func (s *Session) Reset(pid string) error {
	return s.restart(pid, board.Start())
}

// Clear removes every piece.
func (s *Session) Clear(pid string) error {
	return s.restart(pid, board.Empty())
}

func (s *Session) restart(pid string, b board.Board) error {
	if s.SeatOf(pid) == board.NoColor {
		return reject(ReasonNotSeated, "only players can change the board")
	}
	s.board = b
	s.cooldowns.Clear()
	s.history.Seed(b)
	s.moves = nil
	s.winner = board.NoColor
	s.endedAt = time.Time{}
	s.startedAt = time.Time{}
	s.matchID = s.newID()
	if s.white != "" && s.black != "" {
		s.state = StateActive
		s.startedAt = s.now()
	} else {
		s.state = StateWaiting
	}
	return nil
}

// Match describes the current match.
func (s *Session) Match() Match {
	return Match{
		ID:        s.matchID,
		White:     s.white,
		Black:     s.black,
		Winner:    s.winner,
		Moves:     s.Moves(),
		StartedAt: s.startedAt,
		EndedAt:   s.endedAt,
		FinalFEN:  s.board.FEN(),
	}
}

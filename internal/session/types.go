package session

import (
	"fmt"
	"time"

	"github.com/park285/cooldown-chess/internal/board"
	"github.com/park285/cooldown-chess/internal/cooldown"
)

// State is the session lifecycle.
type State string

const (
	StateWaiting State = "WAITING"
	StateActive  State = "ACTIVE"
	StateEnded   State = "ENDED"
)

// Reason classifies a rejected request. The value doubles as the wire reason code.
type Reason string

const (
	ReasonInvalidMove    Reason = "invalid_move"
	ReasonCooldown       Reason = "cooldown"
	ReasonWrongSeat      Reason = "wrong_seat"
	ReasonNotSeated      Reason = "not_seated"
	ReasonNotActive      Reason = "not_active"
	ReasonGameEnded      Reason = "game_ended"
	ReasonPieceMismatch  Reason = "piece_mismatch"
	ReasonUnknownSession Reason = "unknown_session"
)

// Rejection is returned for requests that are refused without changing anything.
type Rejection struct {
	Reason Reason
	Detail string
	// Until is set for cooldown rejections.
	Until time.Time
}

func (r *Rejection) Error() string {
	if r.Detail == "" {
		return string(r.Reason)
	}
	return fmt.Sprintf("%s: %s", r.Reason, r.Detail)
}

// Is matches on reason so errors.Is(err, ErrCooldown) works for any detail.
func (r *Rejection) Is(target error) bool {
	t, ok := target.(*Rejection)
	return ok && t.Reason == r.Reason
}

var (
	ErrInvalidMove    = &Rejection{Reason: ReasonInvalidMove}
	ErrCooldown       = &Rejection{Reason: ReasonCooldown}
	ErrWrongSeat      = &Rejection{Reason: ReasonWrongSeat}
	ErrNotSeated      = &Rejection{Reason: ReasonNotSeated}
	ErrNotActive      = &Rejection{Reason: ReasonNotActive}
	ErrGameEnded      = &Rejection{Reason: ReasonGameEnded}
	ErrPieceMismatch  = &Rejection{Reason: ReasonPieceMismatch}
	ErrUnknownSession = &Rejection{Reason: ReasonUnknownSession}
)

func reject(reason Reason, format string, args ...any) *Rejection {
	return &Rejection{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// Move is a proposal as understood by the session.
type Move struct {
	From  board.Square
	To    board.Square
	Piece board.Piece
}

// Notation is the coordinate form kept in the match log ("e2e4").
func (m Move) Notation() string { return m.From.String() + m.To.String() }

// Snapshot is what a newcomer needs to render the game.
type Snapshot struct {
	State     State
	Board     board.Board
	Cooldowns []cooldown.Entry
}

type JoinResult struct {
	// Color is the seat taken; NoColor means spectator.
	Color board.Color
	// Started is set when this join filled the second seat.
	Started bool
	// Rejoined is set when the participant was already a member.
	Rejoined bool
	Snapshot Snapshot
}

func (r JoinResult) Spectator() bool { return r.Color == board.NoColor }

type LeaveResult struct {
	Removed bool
	// Color is the vacated seat, NoColor for spectators.
	Color board.Color
	// Seated counts the players left.
	Seated int
	Empty  bool
}

type MoveResult struct {
	Move     Move
	Board    board.Board
	Cooldown cooldown.Entry
	Captured board.Piece
	Castle   bool
	RookFrom board.Square
	RookTo   board.Square
	Promoted bool
	// Winner is set when the move captured the opposing king.
	Winner board.Color
}

// Seats lists current occupants; empty strings mark free seats.
type Seats struct {
	White string
	Black string
}

// Count is the number of occupied seats.
func (s Seats) Count() int {
	n := 0
	if s.White != "" {
		n++
	}
	if s.Black != "" {
		n++
	}
	return n
}

// Match summarizes the game played since the last start, reset or clear.
type Match struct {
	ID        string
	White     string
	Black     string
	Winner    board.Color
	Moves     []string
	StartedAt time.Time
	EndedAt   time.Time
	FinalFEN  string
}

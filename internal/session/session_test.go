package session

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/park285/cooldown-chess/internal/board"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time         { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *fakeClock { return &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)} }

func sq(s string) board.Square { return board.MustSquare(s) }

func mv(from, to, code string) Move {
	p, err := board.ParsePiece(code)
	if err != nil {
		panic(err)
	}
	return Move{From: sq(from), To: sq(to), Piece: p}
}

func activeSession(t *testing.T, clk *fakeClock, opts ...Option) *Session {
	t.Helper()
	opts = append([]Option{WithClock(clk.Now)}, opts...)
	s := New("g1", opts...)
	require.Equal(t, board.White, s.Join("alice").Color)
	res := s.Join("bob")
	require.Equal(t, board.Black, res.Color)
	require.True(t, res.Started)
	require.Equal(t, StateActive, s.State())
	return s
}

func TestJoinSeatsThenSpectators(t *testing.T) {
	s := New("g1")
	r := s.Join("a")
	require.Equal(t, board.White, r.Color)
	require.False(t, r.Started)
	require.Equal(t, StateWaiting, s.State())
	require.Equal(t, 32, r.Snapshot.Board.Len())

	r = s.Join("b")
	require.Equal(t, board.Black, r.Color)
	require.True(t, r.Started)

	r = s.Join("c")
	require.True(t, r.Spectator())
	require.False(t, r.Started)
	require.Equal(t, 1, s.SpectatorCount())

	r = s.Join("a")
	require.True(t, r.Rejoined)
	require.Equal(t, board.White, r.Color)
	require.Len(t, s.Participants(), 3)
}

// Scenario: white proposes e2->e4 on a fresh session.
func TestFirstMoveLocksTarget(t *testing.T) {
	clk := newClock()
	s := activeSession(t, clk)

	res, err := s.ProposeMove("alice", mv("e2", "e4", "wP"))
	require.NoError(t, err)
	require.Equal(t, sq("e4"), res.Cooldown.Square)
	require.Equal(t, clk.t.Add(2*time.Second), res.Cooldown.Expiry)
	p, ok := s.Board().At(sq("e4"))
	require.True(t, ok)
	require.Equal(t, "wP", p.Code())
	require.False(t, s.Board().Occupied(sq("e2")))
	require.Equal(t, []string{"e2e4"}, s.Moves())
}

// Scenario: the same pawn is locked for 2s, then free again.
func TestCooldownBlocksThenReleases(t *testing.T) {
	clk := newClock()
	s := activeSession(t, clk)
	_, err := s.ProposeMove("alice", mv("e2", "e4", "wP"))
	require.NoError(t, err)

	clk.Advance(500 * time.Millisecond)
	before := s.Board()
	_, err = s.ProposeMove("alice", mv("e4", "e5", "wP"))
	require.ErrorIs(t, err, ErrCooldown)
	var rej *Rejection
	require.True(t, errors.As(err, &rej))
	require.Equal(t, clk.t.Add(1500*time.Millisecond), rej.Until)
	require.True(t, before.Equal(s.Board()), "rejection must not touch the board")

	clk.Advance(1600 * time.Millisecond)
	_, err = s.ProposeMove("alice", mv("e4", "e5", "wP"))
	require.NoError(t, err)
}

// Scenario: the king is held for 4s on the square it moved to.
func TestKingCooldownBlocksFollowUp(t *testing.T) {
	clk := newClock()
	b := board.New(map[board.Square]board.Piece{
		sq("e1"): board.NewPiece(board.White, board.King),
		sq("e8"): board.NewPiece(board.Black, board.King),
	})
	s := activeSession(t, clk, WithInitialBoard(b))

	res, err := s.ProposeMove("alice", mv("e1", "e2", "wK"))
	require.NoError(t, err)
	require.Equal(t, clk.t.Add(4*time.Second), res.Cooldown.Expiry)

	clk.Advance(3999 * time.Millisecond)
	_, err = s.ProposeMove("alice", mv("e2", "e3", "wK"))
	require.ErrorIs(t, err, ErrCooldown)

	clk.Advance(time.Millisecond)
	_, err = s.ProposeMove("alice", mv("e2", "e3", "wK"))
	require.NoError(t, err)
}

func TestSourceSquareIsNotLocked(t *testing.T) {
	clk := newClock()
	s := activeSession(t, clk)

	_, err := s.ProposeMove("alice", mv("g1", "f3", "wN"))
	require.NoError(t, err)
	cds := s.Snapshot().Cooldowns
	require.Len(t, cds, 1)
	require.Equal(t, sq("f3"), cds[0].Square)

	// the vacated square takes a new piece at once
	_, err = s.ProposeMove("alice", mv("h1", "g1", "wR"))
	require.NoError(t, err)
}

// Both sides may move at once; there are no turns.
func TestNoTurnOrder(t *testing.T) {
	clk := newClock()
	s := activeSession(t, clk)
	_, err := s.ProposeMove("alice", mv("e2", "e4", "wP"))
	require.NoError(t, err)
	_, err = s.ProposeMove("alice", mv("d2", "d4", "wP"))
	require.NoError(t, err)
	_, err = s.ProposeMove("bob", mv("e7", "e5", "bP"))
	require.NoError(t, err)
}

// Scenario: a cooled-down rook may not leap over a pawn.
func TestRookCannotJump(t *testing.T) {
	clk := newClock()
	s := activeSession(t, clk)
	_, err := s.ProposeMove("alice", mv("a1", "a3", "wR"))
	require.ErrorIs(t, err, ErrInvalidMove)
}

func TestSeatAndStateChecks(t *testing.T) {
	clk := newClock()
	s := New("g1", WithClock(clk.Now))
	s.Join("alice")
	_, err := s.ProposeMove("alice", mv("e2", "e4", "wP"))
	require.ErrorIs(t, err, ErrNotActive)

	s.Join("bob")
	s.Join("carol")
	_, err = s.ProposeMove("bob", mv("e2", "e4", "wP"))
	require.ErrorIs(t, err, ErrWrongSeat)
	_, err = s.ProposeMove("carol", mv("e2", "e4", "wP"))
	require.ErrorIs(t, err, ErrNotSeated)
	_, err = s.ProposeMove("mallory", mv("e7", "e5", "bP"))
	require.ErrorIs(t, err, ErrNotSeated)
	_, err = s.ProposeMove("alice", mv("e3", "e4", "wP"))
	require.ErrorIs(t, err, ErrPieceMismatch)
	_, err = s.ProposeMove("alice", mv("e2", "e4", "wQ"))
	require.ErrorIs(t, err, ErrPieceMismatch)
}

// Scenario: white king takes black king.
func TestKingCaptureEndsGame(t *testing.T) {
	clk := newClock()
	b := board.New(map[board.Square]board.Piece{
		sq("e1"): board.NewPiece(board.White, board.King),
		sq("e2"): board.NewPiece(board.Black, board.King),
		sq("a7"): board.NewPiece(board.Black, board.Pawn),
	})
	s := activeSession(t, clk, WithInitialBoard(b))

	res, err := s.ProposeMove("alice", mv("e1", "e2", "wK"))
	require.NoError(t, err)
	require.Equal(t, board.White, res.Winner)
	require.Equal(t, "bK", res.Captured.Code())
	require.Equal(t, StateEnded, s.State())

	_, err = s.ProposeMove("bob", mv("a7", "a6", "bP"))
	require.ErrorIs(t, err, ErrGameEnded)

	m := s.Match()
	require.Equal(t, board.White, m.Winner)
	require.Equal(t, []string{"e1e2"}, m.Moves)
	require.False(t, m.EndedAt.IsZero())
}

// Scenario: castling after the rook has left and come back is refused.
func TestCastlingRightsFollowPieces(t *testing.T) {
	clk := newClock()
	b := board.New(map[board.Square]board.Piece{
		sq("e1"): board.NewPiece(board.White, board.King),
		sq("h1"): board.NewPiece(board.White, board.Rook),
		sq("e8"): board.NewPiece(board.Black, board.King),
	})
	s := activeSession(t, clk, WithInitialBoard(b))

	_, err := s.ProposeMove("alice", mv("h1", "h2", "wR"))
	require.NoError(t, err)
	clk.Advance(4 * time.Second)
	_, err = s.ProposeMove("alice", mv("h2", "h1", "wR"))
	require.NoError(t, err)
	clk.Advance(4 * time.Second)
	_, err = s.ProposeMove("alice", mv("e1", "g1", "wK"))
	require.ErrorIs(t, err, ErrInvalidMove)
}

func TestCastlingMovesRookAndLocksKingSquare(t *testing.T) {
	clk := newClock()
	b := board.New(map[board.Square]board.Piece{
		sq("e1"): board.NewPiece(board.White, board.King),
		sq("h1"): board.NewPiece(board.White, board.Rook),
		sq("e8"): board.NewPiece(board.Black, board.King),
	})
	s := activeSession(t, clk, WithInitialBoard(b))

	res, err := s.ProposeMove("alice", mv("e1", "g1", "wK"))
	require.NoError(t, err)
	require.True(t, res.Castle)
	require.Equal(t, sq("g1"), res.Cooldown.Square)
	require.Equal(t, clk.t.Add(4*time.Second), res.Cooldown.Expiry)
	rook, ok := s.Board().At(sq("f1"))
	require.True(t, ok)
	require.Equal(t, "wR", rook.Code())

	// only the king's landing square is locked
	_, err = s.ProposeMove("alice", mv("f1", "f2", "wR"))
	require.NoError(t, err)
}

// Scenario: queenside castle, then the king walks home and may not castle again.
func TestQueensideCastleThenNoSecondCastle(t *testing.T) {
	clk := newClock()
	b := board.New(map[board.Square]board.Piece{
		sq("e1"): board.NewPiece(board.White, board.King),
		sq("a1"): board.NewPiece(board.White, board.Rook),
		sq("e8"): board.NewPiece(board.Black, board.King),
	})
	s := activeSession(t, clk, WithInitialBoard(b))

	res, err := s.ProposeMove("alice", mv("e1", "c1", "wK"))
	require.NoError(t, err)
	require.True(t, res.Castle)
	require.Equal(t, sq("a1"), res.RookFrom)
	require.Equal(t, sq("d1"), res.RookTo)
	rook, ok := s.Board().At(sq("d1"))
	require.True(t, ok)
	require.Equal(t, "wR", rook.Code())
	require.False(t, s.Board().Occupied(sq("a1")))
	require.True(t, s.history.HasMoved(sq("d1")), "rook identity must carry its move from a1")
	require.True(t, s.history.HasMoved(sq("c1")))

	for _, step := range []Move{
		mv("c1", "c2", "wK"),
		mv("d1", "a1", "wR"),
		mv("c2", "d1", "wK"),
		mv("d1", "e1", "wK"),
	} {
		clk.Advance(5 * time.Second)
		_, err = s.ProposeMove("alice", step)
		require.NoError(t, err, step.Notation())
	}

	clk.Advance(5 * time.Second)
	_, err = s.ProposeMove("alice", mv("e1", "c1", "wK"))
	require.ErrorIs(t, err, ErrInvalidMove)
	require.Equal(t, []string{"e1c1", "c1c2", "d1a1", "c2d1", "d1e1"}, s.Moves())
}

// Scenario: reset returns the start and forgets cooldowns and history.
func TestResetClearsEverything(t *testing.T) {
	clk := newClock()
	s := activeSession(t, clk)
	first := s.MatchID()
	_, err := s.ProposeMove("alice", mv("e2", "e4", "wP"))
	require.NoError(t, err)

	require.NoError(t, s.Reset("bob"))
	require.True(t, s.Board().Equal(board.Start()))
	require.Empty(t, s.Snapshot().Cooldowns)
	require.Empty(t, s.Moves())
	require.NotEqual(t, first, s.MatchID())
	require.Equal(t, StateActive, s.State())

	// e2 pawn can move immediately after reset
	_, err = s.ProposeMove("alice", mv("e2", "e4", "wP"))
	require.NoError(t, err)
}

func TestResetAfterEndAndClear(t *testing.T) {
	clk := newClock()
	b := board.New(map[board.Square]board.Piece{
		sq("d1"): board.NewPiece(board.White, board.Queen),
		sq("d8"): board.NewPiece(board.Black, board.King),
	})
	s := activeSession(t, clk, WithInitialBoard(b))
	_, err := s.ProposeMove("alice", mv("d1", "d8", "wQ"))
	require.NoError(t, err)
	require.Equal(t, StateEnded, s.State())

	require.NoError(t, s.Clear("alice"))
	require.Equal(t, 0, s.Board().Len())
	require.Equal(t, StateActive, s.State())
	require.Equal(t, board.NoColor, s.Winner())

	s.Join("carol")
	require.ErrorIs(t, s.Reset("carol"), ErrNotSeated)
}

func TestLeaveTransitions(t *testing.T) {
	clk := newClock()
	s := activeSession(t, clk)
	s.Join("carol")

	r := s.Leave("carol")
	require.True(t, r.Removed)
	require.Equal(t, board.NoColor, r.Color)
	require.Equal(t, 2, r.Seated)
	require.Equal(t, StateActive, s.State())

	r = s.Leave("alice")
	require.Equal(t, board.White, r.Color)
	require.Equal(t, 1, r.Seated)
	require.Equal(t, StateWaiting, s.State())

	// second leave is a no-op
	r = s.Leave("alice")
	require.False(t, r.Removed)

	// a newcomer takes the free white seat and the game resumes on the same board
	j := s.Join("dave")
	require.Equal(t, board.White, j.Color)
	require.True(t, j.Started)

	s.Leave("bob")
	r = s.Leave("dave")
	require.True(t, r.Empty)
}

func TestEndedStaysEndedWhenPlayerLeaves(t *testing.T) {
	clk := newClock()
	b := board.New(map[board.Square]board.Piece{
		sq("d1"): board.NewPiece(board.White, board.Queen),
		sq("d8"): board.NewPiece(board.Black, board.King),
	})
	s := activeSession(t, clk, WithInitialBoard(b))
	_, err := s.ProposeMove("alice", mv("d1", "d8", "wQ"))
	require.NoError(t, err)
	s.Leave("bob")
	require.Equal(t, StateEnded, s.State())
}

func TestPromotionOnLastRank(t *testing.T) {
	clk := newClock()
	b := board.New(map[board.Square]board.Piece{
		sq("b7"): board.NewPiece(board.White, board.Pawn),
		sq("e1"): board.NewPiece(board.White, board.King),
		sq("e8"): board.NewPiece(board.Black, board.King),
	})
	s := activeSession(t, clk, WithInitialBoard(b))
	res, err := s.ProposeMove("alice", mv("b7", "b8", "wP"))
	require.NoError(t, err)
	require.True(t, res.Promoted)
	q, _ := s.Board().At(sq("b8"))
	require.Equal(t, "wQ", q.Code())
	require.Equal(t, clk.t.Add(2*time.Second), res.Cooldown.Expiry, "lock uses the mover's kind")
}

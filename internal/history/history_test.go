package history

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/park285/cooldown-chess/internal/board"
)

func sq(s string) board.Square { return board.MustSquare(s) }

func TestSeedMarksAllUnmoved(t *testing.T) {
	tr := NewTracker(board.Start())
	require.Equal(t, 32, tr.Len())
	for _, s := range []string{"e1", "h1", "a8", "d7"} {
		require.False(t, tr.HasMoved(sq(s)), "%s must start unmoved", s)
	}
	require.True(t, tr.HasMoved(sq("e4")), "empty square counts as moved")
}

func TestRecordMoveFollowsPiece(t *testing.T) {
	tr := NewTracker(board.Start())
	id, _ := tr.IdentityAt(sq("h1"))
	tr.RecordMove(sq("h1"), sq("h3"))

	got, ok := tr.IdentityAt(sq("h3"))
	require.True(t, ok)
	require.Equal(t, id, got)
	require.True(t, tr.HasMoved(sq("h3")))

	tr.RecordMove(sq("h3"), sq("h1"))
	require.True(t, tr.HasMoved(sq("h1")), "a rook returning to its corner keeps the moved flag")
}

// Rights belong to the piece, not the square.
func TestRightsBelongToPiece(t *testing.T) {
	b := board.New(map[board.Square]board.Piece{
		sq("e1"): board.NewPiece(board.White, board.King),
		sq("h1"): board.NewPiece(board.White, board.Rook),
		sq("h4"): board.NewPiece(board.Black, board.Queen),
	})
	tr := NewTracker(b)
	tr.RecordMove(sq("h4"), sq("h1"))
	require.True(t, tr.HasMoved(sq("h1")))
	require.Equal(t, 2, tr.Len(), "captured rook must be retired")
}

func TestSeedResetsFlags(t *testing.T) {
	tr := NewTracker(board.Start())
	tr.RecordMove(sq("e1"), sq("e2"))
	tr.Seed(board.Start())
	require.False(t, tr.HasMoved(sq("e1")), "reseed clears moved flags")

	tr.Seed(board.Empty())
	require.Zero(t, tr.Len())
}

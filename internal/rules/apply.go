package rules

import "github.com/park285/cooldown-chess/internal/board"

// Outcome is the server-derived result of an accepted move.
type Outcome struct {
	Board    board.Board
	Captured board.Piece

	Castle   bool
	RookFrom board.Square
	RookTo   board.Square

	Promoted bool
}

// CapturedKing reports whether the move took a king.
func (o Outcome) CapturedKing() bool { return o.Captured.Kind == board.King }

// Apply moves piece from -> to on b and returns the next board. Legality is not checked
// here; callers run IsLegal first. Castling also relocates the rook and a pawn reaching the
// last rank becomes a queen.
func Apply(b board.Board, from, to board.Square, piece board.Piece) Outcome {
	out := Outcome{}
	if captured, ok := b.At(to); ok {
		out.Captured = captured
	}
	next := b.Move(from, to)

	if IsCastle(from, to, piece) {
		rookFrom, rookTo := CastleRook(from, to)
		if rook, ok := next.At(rookFrom); ok && rook == board.NewPiece(piece.Color, board.Rook) {
			next = next.Move(rookFrom, rookTo)
			out.Castle = true
			out.RookFrom, out.RookTo = rookFrom, rookTo
		}
	}

	if piece.Kind == board.Pawn && to.Rank == piece.Color.Opponent().HomeRank() {
		next = next.Put(to, board.NewPiece(piece.Color, board.Queen))
		out.Promoted = true
	}

	out.Board = next
	return out
}

// Package rules decides move legality for cooldown chess and derives the board that
// results from an accepted move. There is no notion of turns, check or mate: only piece
// geometry, occupancy and castling rights matter.
package rules

import "github.com/park285/cooldown-chess/internal/board"

// History answers whether the piece currently standing on a square has moved since the
// board was seeded.
type History interface {
	HasMoved(sq board.Square) bool
}

// IsLegal reports whether piece may travel from -> to on b. A nil history treats every
// piece as unmoved.
func IsLegal(b board.Board, from, to board.Square, piece board.Piece, h History) bool {
	if !from.Valid() || !to.Valid() || from == to || piece.IsZero() {
		return false
	}
	target, occupied := b.At(to)
	if occupied && target.Color == piece.Color {
		return false
	}
	// Taking the enemy king is an ordinary capture; the mover's geometry below still applies.

	df, dr := from.Delta(to)
	switch piece.Kind {
	case board.Pawn:
		return pawnLegal(b, from, to, piece.Color, df, dr, occupied)
	case board.Rook:
		return (df == 0 || dr == 0) && !IsPathBlocked(b, from, to)
	case board.Knight:
		adf, adr := abs(df), abs(dr)
		return (adf == 1 && adr == 2) || (adf == 2 && adr == 1)
	case board.Bishop:
		return abs(df) == abs(dr) && !IsPathBlocked(b, from, to)
	case board.Queen:
		return (df == 0 || dr == 0 || abs(df) == abs(dr)) && !IsPathBlocked(b, from, to)
	case board.King:
		if abs(df) <= 1 && abs(dr) <= 1 {
			return true
		}
		return castleLegal(b, from, to, piece.Color, h)
	default:
		return false
	}
}

func pawnLegal(b board.Board, from, to board.Square, c board.Color, df, dr int, occupied bool) bool {
	fwd := c.Forward()
	switch {
	case abs(df) == 1 && dr == fwd:
		return occupied
	case df == 0 && dr == fwd:
		return !occupied
	case df == 0 && dr == 2*fwd:
		return !occupied && from.Rank == pawnHomeRank(c) && !IsPathBlocked(b, from, to)
	default:
		return false
	}
}

func pawnHomeRank(c board.Color) int {
	if c == board.Black {
		return 6
	}
	return 1
}

// IsPathBlocked reports whether any square strictly between from and to is occupied.
// It walks by the sign of each delta, so callers must already have checked the move is
// straight or diagonal.
func IsPathBlocked(b board.Board, from, to board.Square) bool {
	for _, sq := range from.Between(to) {
		if b.Occupied(sq) {
			return true
		}
	}
	return false
}

// IsCastle reports whether the move is a king's two-file castling step from its home
// square. It says nothing about whether the castle is allowed.
func IsCastle(from, to board.Square, piece board.Piece) bool {
	if piece.Kind != board.King {
		return false
	}
	home := piece.Color.HomeRank()
	return from.Rank == home && to.Rank == home && from.File == 4 && (to.File == 6 || to.File == 2)
}

// CastleRook returns the rook's origin and destination for a castling king move.
func CastleRook(from, to board.Square) (rookFrom, rookTo board.Square) {
	if to.File > from.File {
		return board.NewSquare(7, from.Rank), board.NewSquare(5, from.Rank)
	}
	return board.NewSquare(0, from.Rank), board.NewSquare(3, from.Rank)
}

func castleLegal(b board.Board, from, to board.Square, c board.Color, h History) bool {
	king := board.NewPiece(c, board.King)
	if !IsCastle(from, to, king) {
		return false
	}
	rookFrom, _ := CastleRook(from, to)
	rook, ok := b.At(rookFrom)
	if !ok || rook != board.NewPiece(c, board.Rook) {
		return false
	}
	if h != nil && (h.HasMoved(from) || h.HasMoved(rookFrom)) {
		return false
	}
	return !IsPathBlocked(b, from, rookFrom)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

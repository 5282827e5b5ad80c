package board

import (
	nchess "github.com/corentings/chess/v2"
)

var startLayout = fromEngine(nchess.NewGame().Position().Board())

// Start returns the standard initial arrangement.
func Start() Board { return New(startLayout.squares) }

// FEN renders the piece-placement field of a FEN record ("rnbqkbnr/pppppppp/8/...").
func (b Board) FEN() string {
	m := make(map[nchess.Square]nchess.Piece, len(b.squares))
	for sq, p := range b.squares {
		m[toEngineSquare(sq)] = toEnginePiece(p)
	}
	return nchess.NewBoard(m).String()
}

func fromEngine(eb *nchess.Board) Board {
	out := Empty()
	for sq, p := range eb.SquareMap() {
		if p == nchess.NoPiece {
			continue
		}
		out.squares[Square{File: int(sq.File()), Rank: int(sq.Rank())}] = fromEnginePiece(p)
	}
	return out
}

func toEngineSquare(sq Square) nchess.Square {
	return nchess.NewSquare(nchess.File(sq.File), nchess.Rank(sq.Rank))
}

var engineKinds = map[Kind]nchess.PieceType{
	Pawn:   nchess.Pawn,
	Knight: nchess.Knight,
	Bishop: nchess.Bishop,
	Rook:   nchess.Rook,
	Queen:  nchess.Queen,
	King:   nchess.King,
}

func toEnginePiece(p Piece) nchess.Piece {
	c := nchess.White
	if p.Color == Black {
		c = nchess.Black
	}
	return nchess.NewPiece(engineKinds[p.Kind], c)
}

func fromEnginePiece(p nchess.Piece) Piece {
	out := Piece{Color: White}
	if p.Color() == nchess.Black {
		out.Color = Black
	}
	for k, t := range engineKinds {
		if t == p.Type() {
			out.Kind = k
			break
		}
	}
	return out
}

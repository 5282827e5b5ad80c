package board

import (
	"sort"
	"strings"
)

// Board is a snapshot of piece placement. Methods that change placement return a new
// Board and leave the receiver untouched, so a Board can be shared freely once built.
type Board struct {
	squares map[Square]Piece
}

// New copies m into a Board, skipping invalid squares and empty pieces.
func New(m map[Square]Piece) Board {
	b := Board{squares: make(map[Square]Piece, len(m))}
	for sq, p := range m {
		if !sq.Valid() || p.IsZero() {
			continue
		}
		b.squares[sq] = p
	}
	return b
}

func Empty() Board { return Board{squares: map[Square]Piece{}} }

// At returns the piece on sq.
func (b Board) At(sq Square) (Piece, bool) {
	p, ok := b.squares[sq]
	return p, ok
}

func (b Board) Occupied(sq Square) bool {
	_, ok := b.squares[sq]
	return ok
}

func (b Board) Len() int { return len(b.squares) }

// Squares lists occupied squares ordered rank by rank from a1.
func (b Board) Squares() []Square {
	out := make([]Square, 0, len(b.squares))
	for sq := range b.squares {
		out = append(out, sq)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rank != out[j].Rank {
			return out[i].Rank < out[j].Rank
		}
		return out[i].File < out[j].File
	})
	return out
}

// Map returns a copy of the placement.
func (b Board) Map() map[Square]Piece {
	out := make(map[Square]Piece, len(b.squares))
	for sq, p := range b.squares {
		out[sq] = p
	}
	return out
}

// Put returns a copy with p on sq (a zero piece clears the square).
func (b Board) Put(sq Square, p Piece) Board {
	m := b.Map()
	if p.IsZero() {
		delete(m, sq)
	} else {
		m[sq] = p
	}
	return Board{squares: m}
}

// Move returns a copy with whatever stands on from relocated to to. Anything on to is
// replaced.
func (b Board) Move(from, to Square) Board {
	m := b.Map()
	p, ok := m[from]
	if !ok {
		return Board{squares: m}
	}
	delete(m, from)
	m[to] = p
	return Board{squares: m}
}

// Find returns the squares holding p.
func (b Board) Find(p Piece) []Square {
	var out []Square
	for _, sq := range b.Squares() {
		if b.squares[sq] == p {
			out = append(out, sq)
		}
	}
	return out
}

func (b Board) Equal(o Board) bool {
	if len(b.squares) != len(o.squares) {
		return false
	}
	for sq, p := range b.squares {
		if o.squares[sq] != p {
			return false
		}
	}
	return true
}

func (b Board) String() string {
	var sb strings.Builder
	for i, sq := range b.Squares() {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(sq.String())
		sb.WriteByte('=')
		sb.WriteString(b.squares[sq].Code())
	}
	return sb.String()
}

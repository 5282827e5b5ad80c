package board

import (
	"errors"
	"fmt"
	"strings"
)

type Color uint8

const (
	NoColor Color = iota
	White
	Black
)

func (c Color) String() string {
	switch c {
	case White:
		return "white"
	case Black:
		return "black"
	default:
		return ""
	}
}

func (c Color) Opponent() Color {
	switch c {
	case White:
		return Black
	case Black:
		return White
	default:
		return NoColor
	}
}

// HomeRank is the back rank of the color (0 for white, 7 for black).
func (c Color) HomeRank() int {
	if c == Black {
		return 7
	}
	return 0
}

// Forward is the rank direction pawns of this color advance in.
func (c Color) Forward() int {
	if c == Black {
		return -1
	}
	return 1
}

// ParseColor accepts "w"/"white" and "b"/"black".
func ParseColor(s string) (Color, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "w", "white":
		return White, true
	case "b", "black":
		return Black, true
	default:
		return NoColor, false
	}
}

type Kind uint8

const (
	NoKind Kind = iota
	Pawn
	Knight
	Bishop
	Rook
	Queen
	King
)

var kindLetters = map[Kind]byte{Pawn: 'P', Knight: 'N', Bishop: 'B', Rook: 'R', Queen: 'Q', King: 'K'}

func (k Kind) Letter() byte { return kindLetters[k] }

func (k Kind) String() string {
	switch k {
	case Pawn:
		return "pawn"
	case Knight:
		return "knight"
	case Bishop:
		return "bishop"
	case Rook:
		return "rook"
	case Queen:
		return "queen"
	case King:
		return "king"
	default:
		return ""
	}
}

func ParseKind(letter byte) (Kind, bool) {
	up := letter
	if up >= 'a' && up <= 'z' {
		up -= 'a' - 'A'
	}
	for k, l := range kindLetters {
		if l == up {
			return k, true
		}
	}
	return NoKind, false
}

// Piece is a colored chess man. The zero value means "no piece".
type Piece struct {
	Color Color
	Kind  Kind
}

var ErrBadPiece = errors.New("invalid piece code")

func NewPiece(c Color, k Kind) Piece { return Piece{Color: c, Kind: k} }

// ParsePiece reads the two-character code used on the wire ("wP", "bk").
func ParsePiece(code string) (Piece, error) {
	code = strings.TrimSpace(code)
	if len(code) != 2 {
		return Piece{}, fmt.Errorf("%w: %q", ErrBadPiece, code)
	}
	c, ok := ParseColor(code[:1])
	if !ok {
		return Piece{}, fmt.Errorf("%w: %q", ErrBadPiece, code)
	}
	k, ok := ParseKind(code[1])
	if !ok {
		return Piece{}, fmt.Errorf("%w: %q", ErrBadPiece, code)
	}
	return Piece{Color: c, Kind: k}, nil
}

func (p Piece) IsZero() bool { return p.Color == NoColor || p.Kind == NoKind }

// Code renders the wire form, e.g. "wP".
func (p Piece) Code() string {
	if p.IsZero() {
		return ""
	}
	c := byte('w')
	if p.Color == Black {
		c = 'b'
	}
	return string([]byte{c, p.Kind.Letter()})
}

func (p Piece) String() string { return p.Code() }

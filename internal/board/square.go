package board

import (
	"errors"
	"fmt"
	"strings"
)

// Square is a board coordinate. File and Rank are zero-based (a1 = {0,0}, h8 = {7,7}).
type Square struct {
	File int
	Rank int
}

var ErrBadSquare = errors.New("invalid square")

func NewSquare(file, rank int) Square { return Square{File: file, Rank: rank} }

// ParseSquare reads algebraic coordinates such as "e4".
func ParseSquare(s string) (Square, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 2 {
		return Square{}, fmt.Errorf("%w: %q", ErrBadSquare, s)
	}
	sq := Square{File: int(s[0] - 'a'), Rank: int(s[1] - '1')}
	if !sq.Valid() {
		return Square{}, fmt.Errorf("%w: %q", ErrBadSquare, s)
	}
	return sq, nil
}

func MustSquare(s string) Square {
	sq, err := ParseSquare(s)
	if err != nil {
		panic(err)
	}
	return sq
}

func (s Square) Valid() bool {
	return s.File >= 0 && s.File < 8 && s.Rank >= 0 && s.Rank < 8
}

func (s Square) String() string {
	if !s.Valid() {
		return "-"
	}
	return string([]byte{byte('a' + s.File), byte('1' + s.Rank)})
}

// Offset returns the square df files and dr ranks away; ok is false when it leaves the board.
func (s Square) Offset(df, dr int) (Square, bool) {
	n := Square{File: s.File + df, Rank: s.Rank + dr}
	return n, n.Valid()
}

// Delta reports to minus s as (files, ranks).
func (s Square) Delta(to Square) (df, dr int) {
	return to.File - s.File, to.Rank - s.Rank
}

// Between lists the squares strictly between s and to when they share a rank, file
// or diagonal. Other pairs yield nil.
func (s Square) Between(to Square) []Square {
	df, dr := s.Delta(to)
	if df != 0 && dr != 0 && abs(df) != abs(dr) {
		return nil
	}
	sf, sr := sign(df), sign(dr)
	steps := max(abs(df), abs(dr))
	if steps < 2 {
		return nil
	}
	out := make([]Square, 0, steps-1)
	for i := 1; i < steps; i++ {
		out = append(out, Square{File: s.File + sf*i, Rank: s.Rank + sr*i})
	}
	return out
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func sign(n int) int {
	switch {
	case n > 0:
		return 1
	case n < 0:
		return -1
	default:
		return 0
	}
}

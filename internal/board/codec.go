package board

import (
	"fmt"
	"strings"
)

// Sentinel layout names accepted in place of an explicit placement map.
const (
	SentinelStart = "start"
	SentinelEmpty = "empty"
)

// FromSentinel resolves "start" or "empty".
func FromSentinel(name string) (Board, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case SentinelStart:
		return Start(), true
	case SentinelEmpty:
		return Empty(), true
	default:
		return Board{}, false
	}
}

// Encode converts b to the wire map ("e4" -> "wP").
func Encode(b Board) map[string]string {
	out := make(map[string]string, len(b.squares))
	for sq, p := range b.squares {
		out[sq.String()] = p.Code()
	}
	return out
}

// Decode parses a wire map. The first malformed entry aborts decoding.
func Decode(m map[string]string) (Board, error) {
	out := Empty()
	for k, v := range m {
		sq, err := ParseSquare(k)
		if err != nil {
			return Board{}, err
		}
		p, err := ParsePiece(v)
		if err != nil {
			return Board{}, fmt.Errorf("square %s: %w", sq, err)
		}
		out.squares[sq] = p
	}
	return out, nil
}

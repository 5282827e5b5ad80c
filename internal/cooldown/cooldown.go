// Package cooldown keeps per-square lock expiries. A piece that lands on a square leaves
// that square locked for a duration that depends on the piece kind.
//
// A Table is not safe for concurrent use; it belongs to the session worker.
package cooldown

import (
	"sort"
	"time"

	"github.com/park285/cooldown-chess/internal/board"
)

// DefaultDuration applies to kinds without an explicit entry.
const DefaultDuration = 3 * time.Second

var defaultDurations = map[board.Kind]time.Duration{
	board.Pawn:   2000 * time.Millisecond,
	board.Knight: 3000 * time.Millisecond,
	board.Bishop: 3000 * time.Millisecond,
	board.Rook:   3000 * time.Millisecond,
	board.King:   4000 * time.Millisecond,
	board.Queen:  5000 * time.Millisecond,
}

// Defaults returns a copy of the built-in per-kind durations.
func Defaults() map[board.Kind]time.Duration {
	out := make(map[board.Kind]time.Duration, len(defaultDurations))
	for k, d := range defaultDurations {
		out[k] = d
	}
	return out
}

// Entry is a live lock.
type Entry struct {
	Square board.Square
	Expiry time.Time
}

type Table struct {
	expiry    map[board.Square]time.Time
	durations map[board.Kind]time.Duration
}

type Option func(*Table)

// WithDurations overrides durations for the given kinds; missing kinds keep the defaults.
func WithDurations(m map[board.Kind]time.Duration) Option {
	return func(t *Table) {
		for k, d := range m {
			if d > 0 {
				t.durations[k] = d
			}
		}
	}
}

func NewTable(opts ...Option) *Table {
	t := &Table{
		expiry:    make(map[board.Square]time.Time),
		durations: Defaults(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Duration is the lock length for kind.
func (t *Table) Duration(kind board.Kind) time.Duration {
	if d, ok := t.durations[kind]; ok {
		return d
	}
	return DefaultDuration
}

// IsLocked reports whether sq is still cooling down at now. The lock ends exactly at expiry.
func (t *Table) IsLocked(sq board.Square, now time.Time) bool {
	exp, ok := t.expiry[sq]
	return ok && now.Before(exp)
}

// Expiry returns the recorded expiry for sq, stale or not.
func (t *Table) Expiry(sq board.Square) (time.Time, bool) {
	exp, ok := t.expiry[sq]
	return exp, ok
}

// Lock records a new expiry for sq, overwriting any previous one, and returns it.
func (t *Table) Lock(sq board.Square, kind board.Kind, now time.Time) time.Time {
	exp := now.Add(t.Duration(kind))
	t.expiry[sq] = exp
	return exp
}

// Entries lists the locks still active at now, ordered by square. Stale entries are
// dropped as a side effect.
func (t *Table) Entries(now time.Time) []Entry {
	out := make([]Entry, 0, len(t.expiry))
	for sq, exp := range t.expiry {
		if !now.Before(exp) {
			delete(t.expiry, sq)
			continue
		}
		out = append(out, Entry{Square: sq, Expiry: exp})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Square, out[j].Square
		if a.Rank != b.Rank {
			return a.Rank < b.Rank
		}
		return a.File < b.File
	})
	return out
}

func (t *Table) Clear() { clear(t.expiry) }

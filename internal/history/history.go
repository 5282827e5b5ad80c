// Package history tracks piece identities so castling rights can be answered per piece
// rather than per square. Every piece on a seeded board receives an ID; the ID follows
// the piece as it moves and carries a moved flag.
package history

import "github.com/park285/cooldown-chess/internal/board"

type ID int

type Tracker struct {
	at    map[board.Square]ID
	moved map[ID]bool
	next  ID
}

// NewTracker seeds a tracker from b.
func NewTracker(b board.Board) *Tracker {
	t := &Tracker{}
	t.Seed(b)
	return t
}

// Seed forgets everything and assigns fresh identities to the pieces of b.
func (t *Tracker) Seed(b board.Board) {
	t.at = make(map[board.Square]ID, b.Len())
	t.moved = make(map[ID]bool, b.Len())
	for _, sq := range b.Squares() {
		t.next++
		t.at[sq] = t.next
		t.moved[t.next] = false
	}
}

// IdentityAt returns the identity standing on sq.
func (t *Tracker) IdentityAt(sq board.Square) (ID, bool) {
	id, ok := t.at[sq]
	return id, ok
}

// HasMoved reports whether the piece on sq has moved. A square without a tracked piece
// counts as moved, so it can never grant castling rights.
func (t *Tracker) HasMoved(sq board.Square) bool {
	id, ok := t.at[sq]
	if !ok {
		return true
	}
	return t.moved[id]
}

// RecordMove relocates the identity on from to to and marks it moved. An identity
// already on to is retired (captured).
func (t *Tracker) RecordMove(from, to board.Square) {
	id, ok := t.at[from]
	if !ok {
		return
	}
	if victim, ok := t.at[to]; ok && victim != id {
		delete(t.moved, victim)
	}
	delete(t.at, from)
	t.at[to] = id
	t.moved[id] = true
}

// Len is the number of tracked pieces.
func (t *Tracker) Len() int { return len(t.at) }

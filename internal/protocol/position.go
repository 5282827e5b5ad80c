package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/park285/cooldown-chess/internal/board"
)

// Position is a board on the wire: either a square->code object or one of the sentinel
// strings "start" and "empty".
type Position struct {
	Board board.Board
	// Sentinel, when set, is emitted instead of the object form.
	Sentinel string
}

func PositionOf(b board.Board) Position { return Position{Board: b} }

func StartPosition() Position { return Position{Board: board.Start(), Sentinel: board.SentinelStart} }

func (p Position) MarshalJSON() ([]byte, error) {
	if p.Sentinel != "" {
		return json.Marshal(p.Sentinel)
	}
	return json.Marshal(board.Encode(p.Board))
}

func (p *Position) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*p = Position{Board: board.Empty()}
		return nil
	}
	if data[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		b, ok := board.FromSentinel(name)
		if !ok {
			return fmt.Errorf("unknown position sentinel %q", name)
		}
		*p = Position{Board: b, Sentinel: name}
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("decode position: %w", err)
	}
	b, err := board.Decode(m)
	if err != nil {
		return err
	}
	*p = Position{Board: b}
	return nil
}

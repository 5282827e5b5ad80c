// Package protocol defines the JSON frames exchanged with clients.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/park285/cooldown-chess/internal/board"
	"github.com/park285/cooldown-chess/internal/cooldown"
)

// Inbound frame types.
const (
	TypeJoinGame   = "joinGame"
	TypeMove       = "move"
	TypeResetBoard = "resetBoard"
	TypeClearBoard = "clearBoard"
)

// Outbound frame types.
const (
	TypeGameJoined         = "gameJoined"
	TypeSpectatorJoined    = "spectatorJoined"
	TypeGameStart          = "gameStart"
	TypeMoveMade           = "moveMade"
	TypeGameOver           = "gameOver"
	TypeBoardReset         = "boardReset"
	TypeBoardCleared       = "boardCleared"
	TypePlayerDisconnected = "playerDisconnected"
	TypeRejected           = "rejected"
	TypeError              = "error"
)

var ErrMalformed = errors.New("malformed request")

// Inbound is a client frame. Data is decoded according to Type.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

func (in Inbound) Decode(v any) error {
	if len(in.Data) == 0 {
		return fmt.Errorf("%w: %s without data", ErrMalformed, in.Type)
	}
	if err := json.Unmarshal(in.Data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

type JoinRequest struct {
	GameID string `json:"gameId"`
}

// MoveRequest mirrors what board widgets send. NewPosition is kept raw and never decoded;
// the server derives the next position itself.
type MoveRequest struct {
	Source      string          `json:"source"`
	Target      string          `json:"target"`
	Piece       string          `json:"piece"`
	NewPosition json.RawMessage `json:"newPosition,omitempty"`
}

// Parse validates coordinates and the piece code.
func (r MoveRequest) Parse() (from, to board.Square, p board.Piece, err error) {
	if from, err = board.ParseSquare(r.Source); err != nil {
		return from, to, p, fmt.Errorf("%w: source: %v", ErrMalformed, err)
	}
	if to, err = board.ParseSquare(r.Target); err != nil {
		return from, to, p, fmt.Errorf("%w: target: %v", ErrMalformed, err)
	}
	if p, err = board.ParsePiece(r.Piece); err != nil {
		return from, to, p, fmt.Errorf("%w: piece: %v", ErrMalformed, err)
	}
	return from, to, p, nil
}

// Message is a server frame.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type Cooldown struct {
	Square string `json:"square"`
	// Expiry is Unix milliseconds.
	Expiry int64 `json:"expiry"`
}

func CooldownOf(e cooldown.Entry) Cooldown {
	return Cooldown{Square: e.Square.String(), Expiry: e.Expiry.UnixMilli()}
}

func CooldownsOf(entries []cooldown.Entry) []Cooldown {
	out := make([]Cooldown, 0, len(entries))
	for _, e := range entries {
		out = append(out, CooldownOf(e))
	}
	return out
}

type GameJoined struct {
	Color     string     `json:"color"`
	Position  Position   `json:"position"`
	Cooldowns []Cooldown `json:"cooldowns"`
}

type SpectatorJoined struct {
	Position  Position   `json:"position"`
	Cooldowns []Cooldown `json:"cooldowns"`
}

type GameStart struct {
	Position  Position   `json:"position"`
	Cooldowns []Cooldown `json:"cooldowns"`
}

type Castle struct {
	RookFrom string `json:"rookFrom"`
	RookTo   string `json:"rookTo"`
}

type MoveMade struct {
	Source    string   `json:"source"`
	Target    string   `json:"target"`
	Piece     string   `json:"piece"`
	Position  Position `json:"position"`
	Cooldown  Cooldown `json:"cooldown"`
	Captured  string   `json:"captured,omitempty"`
	Castle    *Castle  `json:"castle,omitempty"`
	Promotion string   `json:"promotion,omitempty"`
}

type GameOver struct {
	Winner  string `json:"winner"`
	MatchID string `json:"matchId,omitempty"`
}

type BoardReset struct {
	Position Position `json:"position"`
}

type PlayerDisconnected struct {
	RemainingPlayers int `json:"remainingPlayers"`
}

type Rejected struct {
	Action  string `json:"action"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
	Source  string `json:"source,omitempty"`
	Target  string `json:"target,omitempty"`
	Expiry  int64  `json:"expiry,omitempty"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

func NewGameJoined(c board.Color, b board.Board, cds []cooldown.Entry) Message {
	return Message{Type: TypeGameJoined, Data: GameJoined{Color: c.String(), Position: PositionOf(b), Cooldowns: CooldownsOf(cds)}}
}

func NewSpectatorJoined(b board.Board, cds []cooldown.Entry) Message {
	return Message{Type: TypeSpectatorJoined, Data: SpectatorJoined{Position: PositionOf(b), Cooldowns: CooldownsOf(cds)}}
}

func NewGameStart(b board.Board, cds []cooldown.Entry) Message {
	return Message{Type: TypeGameStart, Data: GameStart{Position: PositionOf(b), Cooldowns: CooldownsOf(cds)}}
}

func NewGameOver(winner board.Color, matchID string) Message {
	return Message{Type: TypeGameOver, Data: GameOver{Winner: winner.String(), MatchID: matchID}}
}

func NewBoardReset() Message {
	return Message{Type: TypeBoardReset, Data: BoardReset{Position: StartPosition()}}
}

func NewBoardCleared() Message { return Message{Type: TypeBoardCleared} }

func NewPlayerDisconnected(remaining int) Message {
	return Message{Type: TypePlayerDisconnected, Data: PlayerDisconnected{RemainingPlayers: remaining}}
}

func NewError(format string, args ...any) Message {
	return Message{Type: TypeError, Data: ErrorPayload{Message: fmt.Sprintf(format, args...)}}
}

// NewRejected builds the direct reply for a refused request. until may be zero.
func NewRejected(action, reason, text string, from, to board.Square, until time.Time) Message {
	r := Rejected{Action: action, Reason: reason, Message: strings.TrimSpace(text)}
	if from.Valid() && action == TypeMove {
		r.Source, r.Target = from.String(), to.String()
	}
	if !until.IsZero() {
		r.Expiry = until.UnixMilli()
	}
	return Message{Type: TypeRejected, Data: r}
}

package room

import (
	"github.com/park285/cooldown-chess/internal/board"
	"github.com/park285/cooldown-chess/internal/protocol"
	"github.com/park285/cooldown-chess/internal/session"
)

// Client is a connected participant as seen by a room.
type Client struct {
	ID     string
	Outbox chan<- protocol.Message
	// Drop is invoked when the outbox is full; it must not block.
	Drop func()
}

// Msg is anything a room worker accepts.
type Msg interface{ isRoomMsg() }

type Join struct {
	Client Client
	Reply  chan<- JoinReply
}

func (Join) isRoomMsg() {}

type Leave struct {
	ParticipantID string
	Reply         chan<- LeaveReply
}

func (Leave) isRoomMsg() {}

type Propose struct {
	ParticipantID string
	Move          session.Move
}

func (Propose) isRoomMsg() {}

type Reset struct{ ParticipantID string }

func (Reset) isRoomMsg() {}

type Clear struct{ ParticipantID string }

func (Clear) isRoomMsg() {}

type GetView struct {
	Reply chan<- View
}

func (GetView) isRoomMsg() {}

type Shutdown struct{}

func (Shutdown) isRoomMsg() {}

type JoinReply struct {
	Color   board.Color
	Started bool
}

type LeaveReply struct {
	Removed bool
	Seated  int
	Empty   bool
}

// View is a read-only summary for HTTP listings and tests.
type View struct {
	Key        string `json:"key"`
	State      string `json:"state"`
	White      string `json:"white,omitempty"`
	Black      string `json:"black,omitempty"`
	Spectators int    `json:"spectators"`
	Clients    int    `json:"clients"`
	MatchID    string `json:"matchId"`
	Moves      int    `json:"moves"`
	Winner     string `json:"winner,omitempty"`
	FEN        string `json:"fen"`
}

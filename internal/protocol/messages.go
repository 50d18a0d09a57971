package protocol

import (
	"encoding/json"
	"fmt"
)

// Client -> Server
const (
	EvtJoinGame    = "joinGame"
	EvtLeaveGame   = "leaveGame"
	EvtPlayerReady = "playerReady"
	EvtPlaceBet    = "placeBet"
	EvtHit         = "hit"
	EvtStand       = "stand"
	EvtDoubleDown  = "doubleDown"
	EvtNextGame    = "nextGame"
)

// Server -> Client
const (
	EvtConnect         = "connect"
	EvtGameStateUpdate = "gameStateUpdate"
	EvtPlayerJoined    = "playerJoined"
	EvtJoinError       = "joinError"
	EvtError           = "error"
)

// Envelope is the frame carried by every transport in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func NewEnvelope(event string, payload any) (Envelope, error) {
	if payload == nil {
		return Envelope{Event: event}, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s: %w", event, err)
	}
	return Envelope{Event: event, Data: data}, nil
}

// Decode unmarshals the payload into v.
func (e Envelope) Decode(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("decode %s: empty payload", e.Event)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("decode %s: %w", e.Event, err)
	}
	return nil
}

type JoinGame struct {
	PlayerName string `json:"playerName"`
	RoomID     string `json:"roomId"`
}

type RoomRef struct {
	RoomID string `json:"roomId"`
}

type PlaceBet struct {
	Amount int    `json:"amount"`
	RoomID string `json:"roomId"`
}

type Handshake struct {
	SID string `json:"sid"`
}

type GameStateUpdate struct {
	GameState *GameState `json:"gameState"`
}

type PlayerJoined struct {
	Player    Player     `json:"player"`
	GameState *GameState `json:"gameState"`
}

// ErrorPayload covers joinError and error. Servers send either an object
// with a message or a bare string.
type ErrorPayload struct {
	Message string `json:"message"`
}

func (p *ErrorPayload) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		p.Message = s
		return nil
	}
	type plain ErrorPayload
	var v plain
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*p = ErrorPayload(v)
	return nil
}

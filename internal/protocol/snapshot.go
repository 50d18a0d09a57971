package protocol

import (
	"errors"

	"github.com/DoyleJ11/blackjack-client/internal/game"
)

var ErrNoGameState = errors.New("message carries no game state")

// GameState is the JSON shape of a snapshot on the wire:
//
//	id: string (room id)
//	gamePhase: "waiting" | "betting" | "playing" | "dealerTurn" | "gameOver"
//	dealer: { cards: Card[], score: number, hideFirstCard: boolean }
//	players: Player[]
//	currentPlayer: string | null
//	winners: string[]
//	message: string
//	resetTimer: number
//	seq: number (optional)
type GameState struct {
	ID            string   `json:"id"`
	GamePhase     string   `json:"gamePhase"`
	Dealer        Dealer   `json:"dealer"`
	Players       []Player `json:"players"`
	CurrentPlayer *string  `json:"currentPlayer"`
	Winners       []string `json:"winners,omitempty"`
	Message       string   `json:"message,omitempty"`
	ResetTimer    int      `json:"resetTimer,omitempty"`
	Seq           uint64   `json:"seq,omitempty"`
}

type Dealer struct {
	Cards         []Card `json:"cards"`
	Score         int    `json:"score"`
	HideFirstCard bool   `json:"hideFirstCard"`
}

type Player struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Cards  []Card `json:"cards,omitempty"`
	Chips  int    `json:"chips"`
	Bet    int    `json:"bet"`
	Score  int    `json:"score"`
	Status string `json:"status,omitempty"`
}

type Card struct {
	Value int    `json:"value"`
	Suit  string `json:"suit"`
}

// ToSnapshot converts a decoded wire state into a validated domain snapshot.
// Absent fields stay at their zero value; nothing is inherited from earlier snapshots.
func (gs *GameState) ToSnapshot() (*game.Snapshot, error) {
	if gs == nil {
		return nil, ErrNoGameState
	}
	s := &game.Snapshot{
		RoomID:            gs.ID,
		Phase:             game.Phase(gs.GamePhase),
		Dealer:            game.DealerView{Cards: toCards(gs.Dealer.Cards), Score: gs.Dealer.Score, HidingFirstCard: gs.Dealer.HideFirstCard},
		Winners:           append([]string(nil), gs.Winners...),
		Message:           gs.Message,
		ResetTimerSeconds: gs.ResetTimer,
		Seq:               gs.Seq,
	}
	if gs.CurrentPlayer != nil {
		s.CurrentPlayerID = *gs.CurrentPlayer
	}
	s.Players = make([]game.PlayerView, 0, len(gs.Players))
	for _, p := range gs.Players {
		s.Players = append(s.Players, p.ToView())
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (p Player) ToView() game.PlayerView {
	status := game.PlayerStatus(p.Status)
	if status == "" {
		status = game.StatusWaiting
	}
	return game.PlayerView{
		ID:     p.ID,
		Name:   p.Name,
		Cards:  toCards(p.Cards),
		Chips:  p.Chips,
		Bet:    p.Bet,
		Score:  p.Score,
		Status: status,
	}
}

// FromSnapshot is the inverse of ToSnapshot, used by servers and tests.
func FromSnapshot(s *game.Snapshot) *GameState {
	gs := &GameState{
		ID:         s.RoomID,
		GamePhase:  string(s.Phase),
		Dealer:     Dealer{Cards: fromCards(s.Dealer.Cards), Score: s.Dealer.Score, HideFirstCard: s.Dealer.HidingFirstCard},
		Players:    make([]Player, 0, len(s.Players)),
		Winners:    s.Winners,
		Message:    s.Message,
		ResetTimer: s.ResetTimerSeconds,
		Seq:        s.Seq,
	}
	if s.CurrentPlayerID != "" {
		id := s.CurrentPlayerID
		gs.CurrentPlayer = &id
	}
	for _, p := range s.Players {
		gs.Players = append(gs.Players, Player{
			ID: p.ID, Name: p.Name, Cards: fromCards(p.Cards),
			Chips: p.Chips, Bet: p.Bet, Score: p.Score, Status: string(p.Status),
		})
	}
	return gs
}

func toCards(in []Card) []game.Card {
	out := make([]game.Card, 0, len(in))
	for _, c := range in {
		out = append(out, game.Card{Rank: c.Value, Suit: game.Suit(c.Suit)})
	}
	return out
}

func fromCards(in []game.Card) []Card {
	out := make([]Card, 0, len(in))
	for _, c := range in {
		out = append(out, Card{Value: c.Rank, Suit: string(c.Suit)})
	}
	return out
}

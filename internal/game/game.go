package game

import (
	"errors"
	"fmt"
	"slices"
)

var ErrUnknownPhase = errors.New("unknown game phase")
var ErrUnknownStatus = errors.New("unknown player status")
var ErrInvalidCard = errors.New("invalid card")
var ErrInvalidPlayer = errors.New("invalid player")
var ErrMissingRoom = errors.New("snapshot has no room id")

type Phase string

const (
	PhaseWaiting    Phase = "waiting"
	PhaseBetting    Phase = "betting"
	PhasePlaying    Phase = "playing"
	PhaseDealerTurn Phase = "dealerTurn"
	PhaseGameOver   Phase = "gameOver"
)

func (p Phase) Valid() bool {
	switch p {
	case PhaseWaiting, PhaseBetting, PhasePlaying, PhaseDealerTurn, PhaseGameOver:
		return true
	}
	return false
}

type PlayerStatus string

const (
	StatusWaiting   PlayerStatus = "waiting"
	StatusReady     PlayerStatus = "ready"
	StatusPlaying   PlayerStatus = "playing"
	StatusStand     PlayerStatus = "stand"
	StatusBust      PlayerStatus = "bust"
	StatusBlackjack PlayerStatus = "blackjack"
)

func (s PlayerStatus) Valid() bool {
	switch s {
	case StatusWaiting, StatusReady, StatusPlaying, StatusStand, StatusBust, StatusBlackjack:
		return true
	}
	return false
}

type PlayerView struct {
	ID     string
	Name   string
	Cards  []Card
	Chips  int
	Bet    int
	Score  int
	Status PlayerStatus
}

type DealerView struct {
	Cards           []Card
	Score           int
	HidingFirstCard bool
}

// Snapshot is one complete, server-authoritative description of a room.
// A Snapshot is never modified after construction; accessors hand out copies.
type Snapshot struct {
	RoomID            string
	Phase             Phase
	Dealer            DealerView
	Players           []PlayerView
	CurrentPlayerID   string
	Winners           []string
	Message           string
	ResetTimerSeconds int
	// Seq is zero when the server does not number its snapshots.
	Seq uint64
}

// Validate reports the first structural problem with s.
func (s *Snapshot) Validate() error {
	if s.RoomID == "" {
		return ErrMissingRoom
	}
	if !s.Phase.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownPhase, s.Phase)
	}
	for _, c := range s.Dealer.Cards {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("dealer: %w", err)
		}
	}
	for i, p := range s.Players {
		if p.ID == "" {
			return fmt.Errorf("%w: player %d has no id", ErrInvalidPlayer, i)
		}
		if p.Chips < 0 || p.Bet < 0 {
			return fmt.Errorf("%w: %s has negative chips or bet", ErrInvalidPlayer, p.ID)
		}
		if !p.Status.Valid() {
			return fmt.Errorf("%w: %q", ErrUnknownStatus, p.Status)
		}
		for _, c := range p.Cards {
			if err := c.Validate(); err != nil {
				return fmt.Errorf("player %s: %w", p.ID, err)
			}
		}
	}
	if s.ResetTimerSeconds < 0 {
		return fmt.Errorf("negative reset timer %d", s.ResetTimerSeconds)
	}
	return nil
}

// Player returns the seat with the given id.
func (s *Snapshot) Player(id string) (PlayerView, bool) {
	if s == nil || id == "" {
		return PlayerView{}, false
	}
	for _, p := range s.Players {
		if p.ID == id {
			return p.clone(), true
		}
	}
	return PlayerView{}, false
}

func (s *Snapshot) IsWinner(id string) bool {
	if s == nil || s.Phase != PhaseGameOver {
		return false
	}
	return slices.Contains(s.Winners, id)
}

// Clone returns a deep copy so callers can never alias the held snapshot.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := *s
	out.Dealer.Cards = slices.Clone(s.Dealer.Cards)
	out.Winners = slices.Clone(s.Winners)
	out.Players = make([]PlayerView, len(s.Players))
	for i, p := range s.Players {
		out.Players[i] = p.clone()
	}
	return &out
}

func (p PlayerView) clone() PlayerView {
	p.Cards = slices.Clone(p.Cards)
	return p
}

package reconciler

import (
	"slices"

	"github.com/DoyleJ11/blackjack-client/internal/game"
)

type CardFace struct {
	Card     game.Card
	FaceDown bool
}

func (f CardFace) String() string {
	if f.FaceDown {
		return "🂠"
	}
	return f.Card.String()
}

type DealerDisplay struct {
	Cards []CardFace
	// Score is zero whenever ScoreVisible is false.
	Score        int
	ScoreVisible bool
}

type Seat struct {
	game.PlayerView
	IsLocal       bool
	IsCurrentTurn bool
	IsWinner      bool
}

// View is the read-only projection handed to the presentation layer. Every
// flag a front end needs to enable or disable a control lives here so that
// the rule is written once.
type View struct {
	HasSnapshot       bool
	RoomID            string
	Phase             game.Phase
	Dealer            DealerDisplay
	Seats             []Seat
	CurrentPlayerID   string
	Winners           []string
	Message           string
	ResetTimerSeconds int
	Seq               uint64

	LocalPlayerID string
	// Seated is false when the local id is unset or no longer present in the
	// snapshot; a stale id is treated as "not yet joined".
	Seated      bool
	LocalPlayer *game.PlayerView

	IsLocalPlayersTurn bool
	CanReady           bool
	CanBet             bool
	MaxBet             int
	CanDoubleDown      bool
	CanNextGame        bool
}

// Derive computes the View for snapshot s as seen by localID. s may be nil.
func Derive(s *game.Snapshot, localID string) View {
	v := View{LocalPlayerID: localID}
	if s == nil {
		return v
	}
	s = s.Clone()

	v.HasSnapshot = true
	v.RoomID = s.RoomID
	v.Phase = s.Phase
	v.CurrentPlayerID = s.CurrentPlayerID
	v.Winners = s.Winners
	v.Message = s.Message
	v.ResetTimerSeconds = s.ResetTimerSeconds
	v.Seq = s.Seq
	v.Dealer = dealerDisplay(s.Dealer)

	v.Seats = make([]Seat, 0, len(s.Players))
	for _, p := range s.Players {
		seat := Seat{
			PlayerView:    p,
			IsLocal:       localID != "" && p.ID == localID,
			IsCurrentTurn: s.Phase == game.PhasePlaying && p.ID == s.CurrentPlayerID,
			IsWinner:      s.IsWinner(p.ID),
		}
		if seat.IsLocal {
			lp := p
			lp.Cards = slices.Clone(p.Cards)
			v.LocalPlayer = &lp
		}
		v.Seats = append(v.Seats, seat)
	}

	emptyLobby := s.Phase == game.PhaseWaiting && len(s.Players) == 0
	v.Seated = localID != "" && (v.LocalPlayer != nil || emptyLobby)

	v.IsLocalPlayersTurn = v.Seated &&
		s.Phase == game.PhasePlaying &&
		s.CurrentPlayerID != "" &&
		s.CurrentPlayerID == localID

	if lp := v.LocalPlayer; lp != nil {
		v.CanReady = s.Phase == game.PhaseWaiting && lp.Status != game.StatusReady
		v.CanBet = s.Phase == game.PhaseBetting && lp.Chips > 0
		if v.CanBet {
			v.MaxBet = lp.Chips
		}
		v.CanDoubleDown = v.IsLocalPlayersTurn && lp.Chips >= lp.Bet
	}
	v.CanNextGame = s.Phase == game.PhaseGameOver
	return v
}

// Clone returns a deep copy; mutating it never reaches the view it came from.
func (v View) Clone() View {
	v.Dealer.Cards = slices.Clone(v.Dealer.Cards)
	v.Winners = slices.Clone(v.Winners)
	if v.Seats != nil {
		seats := make([]Seat, len(v.Seats))
		for i, seat := range v.Seats {
			seat.Cards = slices.Clone(seat.Cards)
			seats[i] = seat
		}
		v.Seats = seats
	}
	if v.LocalPlayer != nil {
		lp := *v.LocalPlayer
		lp.Cards = slices.Clone(lp.Cards)
		v.LocalPlayer = &lp
	}
	return v
}

func dealerDisplay(d game.DealerView) DealerDisplay {
	out := DealerDisplay{Cards: make([]CardFace, 0, len(d.Cards))}
	for i, c := range d.Cards {
		out.Cards = append(out.Cards, CardFace{Card: c, FaceDown: d.HidingFirstCard && i == 0})
	}
	if !d.HidingFirstCard {
		out.Score = d.Score
		out.ScoreVisible = true
	}
	return out
}

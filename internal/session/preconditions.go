package session

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/DoyleJ11/blackjack-client/internal/clienterr"
	"github.com/DoyleJ11/blackjack-client/internal/game"
	"github.com/DoyleJ11/blackjack-client/internal/reconciler"
	"github.com/DoyleJ11/blackjack-client/internal/transport"
)

const (
	MinNameLength = 2
	MaxNameLength = 20
)

var (
	ErrNotConnected      = clienterr.New(clienterr.KindPrecondition, "Not connected to server. Please refresh the page.")
	ErrInvalidName       = clienterr.New(clienterr.KindPrecondition, "name must be 2 to 20 characters")
	ErrInvalidRoom       = clienterr.New(clienterr.KindPrecondition, "room id is required")
	ErrNotInRoom         = clienterr.New(clienterr.KindPrecondition, "not in a room")
	ErrNotSeated         = clienterr.New(clienterr.KindPrecondition, "not seated at this table")
	ErrWrongPhase        = clienterr.New(clienterr.KindPrecondition, "not allowed in this phase")
	ErrAlreadyReady      = clienterr.New(clienterr.KindPrecondition, "already ready")
	ErrInvalidBet        = clienterr.New(clienterr.KindPrecondition, "bet must be positive")
	ErrInsufficientChips = clienterr.New(clienterr.KindPrecondition, "insufficient chips")
	ErrNotYourTurn       = clienterr.New(clienterr.KindPrecondition, "not your turn")
	ErrUnknownAction     = clienterr.New(clienterr.KindPrecondition, "unknown action")
)

type ActionKind string

const (
	ActJoin       ActionKind = "join"
	ActReady      ActionKind = "ready"
	ActPlaceBet   ActionKind = "placeBet"
	ActHit        ActionKind = "hit"
	ActStand      ActionKind = "stand"
	ActDoubleDown ActionKind = "doubleDown"
	ActNextGame   ActionKind = "nextGame"
	ActLeave      ActionKind = "leave"
)

type Action struct {
	Kind   ActionKind
	Name   string
	RoomID string
	Amount int
}

// NormalizeName trims and NFC-normalizes a display name and checks its
// length in characters.
func NormalizeName(name string) (string, error) {
	n := norm.NFC.String(strings.TrimSpace(name))
	if l := utf8.RuneCountInString(n); l < MinNameLength || l > MaxNameLength {
		return "", ErrInvalidName
	}
	return n, nil
}

// Check reports whether a may be sent given the session state and the
// current view. It never touches the network. The per-phase rules come
// from the view's derived flags; Check only adds argument checks and picks
// the most specific reason for a refusal.
func Check(a Action, st State, v reconciler.View) error {
	switch a.Kind {
	case ActJoin:
		if st.ConnectionStatus != transport.StatusConnected {
			return ErrNotConnected
		}
		if _, err := NormalizeName(a.Name); err != nil {
			return err
		}
		if strings.TrimSpace(a.RoomID) == "" {
			return ErrInvalidRoom
		}
		return nil

	case ActLeave:
		if st.CurrentRoomID == "" {
			return ErrNotInRoom
		}
		return nil

	case ActNextGame:
		if !v.CanNextGame {
			return wrongPhase(a.Kind, v.Phase)
		}
		return nil
	}

	if st.LocalPlayerID == "" || !v.Seated || v.LocalPlayer == nil {
		return ErrNotSeated
	}

	switch a.Kind {
	case ActReady:
		if v.Phase != game.PhaseWaiting {
			return wrongPhase(a.Kind, v.Phase)
		}
		if !v.CanReady {
			return ErrAlreadyReady
		}

	case ActPlaceBet:
		if v.Phase != game.PhaseBetting {
			return wrongPhase(a.Kind, v.Phase)
		}
		if a.Amount <= 0 {
			return ErrInvalidBet
		}
		if !v.CanBet || a.Amount > v.MaxBet {
			return fmt.Errorf("%w: bet %d, chips %d", ErrInsufficientChips, a.Amount, v.LocalPlayer.Chips)
		}

	case ActHit, ActStand, ActDoubleDown:
		if v.Phase != game.PhasePlaying {
			return wrongPhase(a.Kind, v.Phase)
		}
		if !v.IsLocalPlayersTurn {
			return ErrNotYourTurn
		}
		if a.Kind == ActDoubleDown && !v.CanDoubleDown {
			return fmt.Errorf("%w: bet %d, chips %d", ErrInsufficientChips, v.LocalPlayer.Bet, v.LocalPlayer.Chips)
		}

	default:
		return ErrUnknownAction
	}
	return nil
}

func wrongPhase(k ActionKind, p game.Phase) error {
	if p == "" {
		return fmt.Errorf("%w: %s with no game in progress", ErrWrongPhase, k)
	}
	return fmt.Errorf("%w: %s during %s", ErrWrongPhase, k, p)
}

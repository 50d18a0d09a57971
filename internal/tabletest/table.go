package tabletest

import (
	"errors"
	"slices"
	"strings"

	"github.com/DoyleJ11/blackjack-client/internal/game"
)

var (
	ErrBetOutOfRange = errors.New("bet must be between 1 and your chip count")
	ErrNotBetting    = errors.New("bets are closed")
)

// table is the server's record of one room. It covers seating, readiness
// and betting; later phases are scripted by tests through Push and
// Broadcast. seq goes up by one on every change.
type table struct {
	id      string
	seq     uint64
	phase   game.Phase
	message string
	players []game.PlayerView
}

func newTable(id string) *table {
	return &table{id: id, phase: game.PhaseWaiting, message: "Waiting for players"}
}

func (t *table) snapshot() *game.Snapshot {
	return &game.Snapshot{
		RoomID:  t.id,
		Phase:   t.phase,
		Players: slices.Clone(t.players),
		Message: t.message,
		Seq:     t.seq,
	}
}

func (t *table) index(id string) int {
	return slices.IndexFunc(t.players, func(p game.PlayerView) bool { return p.ID == id })
}

// hasName reports whether someone other than id sits here under name.
func (t *table) hasName(name, id string) bool {
	return slices.ContainsFunc(t.players, func(p game.PlayerView) bool {
		return p.ID != id && strings.EqualFold(p.Name, name)
	})
}

// seat returns the player's index.
func (t *table) seat(id, name string, chips int) int {
	t.players = append(t.players, game.PlayerView{
		ID:     id,
		Name:   name,
		Chips:  chips,
		Status: game.StatusWaiting,
	})
	t.seq++
	return len(t.players) - 1
}

func (t *table) unseat(id string) {
	i := t.index(id)
	if i < 0 {
		return
	}
	t.players = slices.Delete(t.players, i, i+1)
	t.seq++
	t.maybeStartBetting()
}

// ready returns false when nothing changed.
func (t *table) ready(id string) bool {
	i := t.index(id)
	if i < 0 || t.phase != game.PhaseWaiting || t.players[i].Status == game.StatusReady {
		return false
	}
	t.players[i].Status = game.StatusReady
	t.seq++
	t.maybeStartBetting()
	return true
}

func (t *table) maybeStartBetting() {
	if t.phase != game.PhaseWaiting || len(t.players) == 0 {
		return
	}
	for _, p := range t.players {
		if p.Status != game.StatusReady {
			return
		}
	}
	t.phase = game.PhaseBetting
	t.message = "Place your bets!"
}

func (t *table) bet(id string, amount int) error {
	i := t.index(id)
	if i < 0 || t.phase != game.PhaseBetting {
		return ErrNotBetting
	}
	p := &t.players[i]
	if amount <= 0 || amount > p.Chips {
		return ErrBetOutOfRange
	}
	p.Bet += amount
	p.Chips -= amount
	t.seq++
	return nil
}

package main

import (
	"testing"

	"github.com/pterm/pterm"
	"github.com/stretchr/testify/assert"

	"github.com/DoyleJ11/blackjack-client/internal/game"
	"github.com/DoyleJ11/blackjack-client/internal/reconciler"
	"github.com/DoyleJ11/blackjack-client/internal/session"
	"github.com/DoyleJ11/blackjack-client/internal/transport"
)

func TestHints(t *testing.T) {
	connected := session.State{ConnectionStatus: transport.StatusConnected, ConnectionID: "p1"}
	seated := connected
	seated.LocalPlayerID = "p1"
	seated.CurrentRoomID = "room1"

	me := func(chips, bet int, st game.PlayerStatus) game.PlayerView {
		return game.PlayerView{ID: "p1", Name: "Alice", Chips: chips, Bet: bet, Status: st}
	}
	view := func(phase game.Phase, cur string, p game.PlayerView) reconciler.View {
		return reconciler.Derive(&game.Snapshot{RoomID: "room1", Phase: phase, CurrentPlayerID: cur, Players: []game.PlayerView{p}}, "p1")
	}

	cases := []struct {
		name string
		st   session.State
		v    reconciler.View
		want []string
	}{
		{name: "offline", st: session.State{ConnectionStatus: transport.StatusReconnecting}},
		{name: "not joined", st: connected, want: []string{"join <name>"}},
		{name: "waiting", st: seated, v: view(game.PhaseWaiting, "", me(1000, 0, game.StatusWaiting)), want: []string{"ready", "leave"}},
		{name: "betting", st: seated, v: view(game.PhaseBetting, "", me(15, 0, game.StatusReady)), want: []string{"bet <1-15>", "leave"}},
		{name: "my turn", st: seated, v: view(game.PhasePlaying, "p1", me(5, 10, game.StatusPlaying)), want: []string{"hit", "stand", "leave"}},
		{name: "my turn can double", st: seated, v: view(game.PhasePlaying, "p1", me(10, 10, game.StatusPlaying)), want: []string{"hit", "stand", "double", "leave"}},
		{name: "game over", st: seated, v: view(game.PhaseGameOver, "", me(1000, 0, game.StatusStand)), want: []string{"next", "leave"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, hints(tc.st, tc.v))
		})
	}
}

func TestStatusLine(t *testing.T) {
	st := session.State{ConnectionStatus: transport.StatusConnected, LocalPlayerID: "p1"}
	v := reconciler.Derive(&game.Snapshot{RoomID: "room1", Phase: game.PhaseBetting,
		Players: []game.PlayerView{{ID: "p1", Name: "Alice", Chips: 990, Status: game.StatusReady}}}, "p1")

	assert.Equal(t, "connected | room1 | betting | Alice, 990 chips", statusLine(st, v))
	assert.Equal(t, "failed", statusLine(session.State{ConnectionStatus: transport.StatusFailed}, reconciler.View{}))
}

func TestCardsLine(t *testing.T) {
	pterm.DisableColor()
	t.Cleanup(pterm.EnableColor)

	cards := []reconciler.CardFace{
		{Card: game.Card{Rank: game.Ace, Suit: game.Spades}, FaceDown: true},
		{Card: game.Card{Rank: 10, Suit: game.Hearts}},
	}
	assert.Equal(t, "🂠 10♥", cardsLine(cards))
	assert.Equal(t, "-", cardsLine(nil))
	assert.Equal(t, "Q♦", cardsLine(faceUp([]game.Card{{Rank: game.Queen, Suit: game.Diamonds}})))
}

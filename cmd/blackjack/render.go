package main

import (
	"fmt"
	"strings"

	"github.com/pterm/pterm"

	"github.com/DoyleJ11/blackjack-client/internal/game"
	"github.com/DoyleJ11/blackjack-client/internal/reconciler"
	"github.com/DoyleJ11/blackjack-client/internal/session"
	"github.com/DoyleJ11/blackjack-client/internal/transport"
)

func draw(st session.State, v reconciler.View) {
	pterm.Println()
	pterm.DefaultSection.Println(statusLine(st, v))
	if st.LastError != nil {
		pterm.Error.Println(st.LastError)
	}

	if v.HasSnapshot {
		panels := []pterm.Panel{{Data: dealerBox(v.Dealer)}}
		for _, seat := range v.Seats {
			panels = append(panels, pterm.Panel{Data: seatBox(seat)})
		}
		_ = pterm.DefaultPanel.WithPanels(pterm.Panels{panels}).Render()
		if v.Message != "" {
			pterm.Info.Println(v.Message)
		}
		if v.Phase == game.PhaseGameOver && v.ResetTimerSeconds > 0 {
			pterm.Info.Printfln("Next game in %ds", v.ResetTimerSeconds)
		}
	}

	if h := hints(st, v); len(h) > 0 {
		pterm.Println(pterm.Gray("> " + strings.Join(h, " | ")))
	}
}

func statusLine(st session.State, v reconciler.View) string {
	var b strings.Builder
	b.WriteString(st.ConnectionStatus.String())
	if v.RoomID != "" {
		fmt.Fprintf(&b, " | %s", v.RoomID)
	}
	if v.Phase != "" {
		fmt.Fprintf(&b, " | %s", v.Phase)
	}
	if v.LocalPlayer != nil {
		fmt.Fprintf(&b, " | %s, %d chips", v.LocalPlayer.Name, v.LocalPlayer.Chips)
	}
	return b.String()
}

// hints lists the commands that would pass their local checks right now.
func hints(st session.State, v reconciler.View) []string {
	if st.ConnectionStatus != transport.StatusConnected {
		return nil
	}
	if st.LocalPlayerID == "" {
		return []string{"join <name>"}
	}
	var out []string
	if v.CanReady {
		out = append(out, "ready")
	}
	if v.CanBet {
		out = append(out, fmt.Sprintf("bet <1-%d>", v.MaxBet))
	}
	if v.IsLocalPlayersTurn {
		out = append(out, "hit", "stand")
		if v.CanDoubleDown {
			out = append(out, "double")
		}
	}
	if v.CanNextGame {
		out = append(out, "next")
	}
	return append(out, "leave")
}

func cardsLine(cards []reconciler.CardFace) string {
	if len(cards) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(cards))
	for _, c := range cards {
		if !c.FaceDown && c.Card.IsRed() {
			parts = append(parts, pterm.LightRed(c.String()))
			continue
		}
		parts = append(parts, c.String())
	}
	return strings.Join(parts, " ")
}

func faceUp(cards []game.Card) []reconciler.CardFace {
	out := make([]reconciler.CardFace, 0, len(cards))
	for _, c := range cards {
		out = append(out, reconciler.CardFace{Card: c})
	}
	return out
}

func dealerBox(d reconciler.DealerDisplay) string {
	score := "?"
	if d.ScoreVisible {
		score = fmt.Sprint(d.Score)
	}
	pbox := pterm.DefaultBox.WithHorizontalPadding(4).WithTopPadding(1).WithBottomPadding(1)
	return pbox.WithTitle(pterm.LightYellow("Dealer")).WithTitleTopCenter().
		Sprintf("%s\nScore: %s", cardsLine(d.Cards), score)
}

func seatBox(s reconciler.Seat) string {
	title := s.Name
	if s.IsLocal {
		title = pterm.LightCyan(s.Name + " (you)")
	}
	status := string(s.Status)
	switch {
	case s.IsWinner:
		status = pterm.LightGreen("winner")
	case s.Status == game.StatusBust:
		status = pterm.LightRed(status)
	case s.IsCurrentTurn:
		status = pterm.LightYellow("to act")
	}
	pbox := pterm.DefaultBox.WithHorizontalPadding(2).WithTopPadding(1).WithBottomPadding(1)
	return pbox.WithTitle(title).WithTitleTopLeft().
		Sprintf("%s\nScore: %d\nBet: %d  Chips: %d\n%s", cardsLine(faceUp(s.Cards)), s.Score, s.Bet, s.Chips, status)
}

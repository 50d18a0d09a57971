package game

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSnapshot() *Snapshot {
	return &Snapshot{
		RoomID: "room1",
		Phase:  PhaseBetting,
		Dealer: DealerView{Cards: []Card{{Rank: Ace, Suit: Spades}}, HidingFirstCard: true},
		Players: []PlayerView{
			{ID: "p1", Name: "Alice", Chips: 1000, Status: StatusReady, Cards: []Card{{Rank: 10, Suit: Hearts}}},
		},
	}
}

func TestSnapshotValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(s *Snapshot)
		wantErr error
	}{
		{name: "valid", mutate: func(s *Snapshot) {}},
		{name: "missing room", mutate: func(s *Snapshot) { s.RoomID = "" }, wantErr: ErrMissingRoom},
		{name: "unknown phase", mutate: func(s *Snapshot) { s.Phase = "shuffling" }, wantErr: ErrUnknownPhase},
		{name: "bad dealer card", mutate: func(s *Snapshot) { s.Dealer.Cards[0].Rank = 14 }, wantErr: ErrInvalidCard},
		{name: "bad suit", mutate: func(s *Snapshot) { s.Players[0].Cards[0].Suit = "X" }, wantErr: ErrInvalidCard},
		{name: "negative chips", mutate: func(s *Snapshot) { s.Players[0].Chips = -1 }, wantErr: ErrInvalidPlayer},
		{name: "player without id", mutate: func(s *Snapshot) { s.Players[0].ID = "" }, wantErr: ErrInvalidPlayer},
		{name: "unknown status", mutate: func(s *Snapshot) { s.Players[0].Status = "sleeping" }, wantErr: ErrUnknownStatus},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := validSnapshot()
			tc.mutate(s)
			err := s.Validate()
			if tc.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.wantErr), "got %v", err)
		})
	}
}

func TestSnapshotCloneDoesNotAlias(t *testing.T) {
	s := validSnapshot()
	c := s.Clone()
	c.Players[0].Cards[0].Rank = King
	c.Dealer.Cards[0].Rank = Queen

	assert.Equal(t, 10, s.Players[0].Cards[0].Rank)
	assert.Equal(t, Ace, s.Dealer.Cards[0].Rank)
}

func TestIsWinnerOnlyDuringGameOver(t *testing.T) {
	s := validSnapshot()
	s.Winners = []string{"p1"}
	assert.False(t, s.IsWinner("p1"))

	s.Phase = PhaseGameOver
	assert.True(t, s.IsWinner("p1"))
	assert.False(t, s.IsWinner("p2"))
}

func TestCardString(t *testing.T) {
	cases := map[string]Card{
		"A♠":  {Rank: Ace, Suit: Spades},
		"10♥": {Rank: 10, Suit: Hearts},
		"J♦":  {Rank: Jack, Suit: Diamonds},
		"Q♣":  {Rank: Queen, Suit: Clubs},
		"K♥":  {Rank: King, Suit: Hearts},
	}
	for want, c := range cases {
		assert.Equal(t, want, c.String())
	}
	assert.True(t, Card{Rank: 2, Suit: Diamonds}.IsRed())
	assert.False(t, Card{Rank: 2, Suit: Clubs}.IsRed())
}

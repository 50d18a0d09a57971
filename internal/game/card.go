package game

import (
	"fmt"
	"strconv"
)

type Suit string

const (
	Spades   Suit = "♠"
	Hearts   Suit = "♥"
	Diamonds Suit = "♦"
	Clubs    Suit = "♣"
)

const (
	Ace   = 1
	Jack  = 11
	Queen = 12
	King  = 13
)

type Card struct {
	Rank int
	Suit Suit
}

func (c Card) Validate() error {
	if c.Rank < Ace || c.Rank > King {
		return fmt.Errorf("%w: rank %d", ErrInvalidCard, c.Rank)
	}
	switch c.Suit {
	case Spades, Hearts, Diamonds, Clubs:
		return nil
	}
	return fmt.Errorf("%w: suit %q", ErrInvalidCard, c.Suit)
}

func (c Card) IsRed() bool { return c.Suit == Hearts || c.Suit == Diamonds }

func (c Card) RankLabel() string {
	switch c.Rank {
	case Ace:
		return "A"
	case Jack:
		return "J"
	case Queen:
		return "Q"
	case King:
		return "K"
	}
	return strconv.Itoa(c.Rank)
}

// String renders the card as it is printed on the table, e.g. "A♠" or "10♥".
func (c Card) String() string { return c.RankLabel() + string(c.Suit) }

package concentration

import (
	"fmt"
	"strings"
)

// Rank is one of the 13 card ranks.
type Rank string

const (
	RankAce   Rank = "A"
	RankTwo   Rank = "2"
	RankThree Rank = "3"
	RankFour  Rank = "4"
	RankFive  Rank = "5"
	RankSix   Rank = "6"
	RankSeven Rank = "7"
	RankEight Rank = "8"
	RankNine  Rank = "9"
	RankTen   Rank = "10"
	RankJack  Rank = "J"
	RankQueen Rank = "Q"
	RankKing  Rank = "K"
)

// Ranks lists every rank in deal order.
var Ranks = []Rank{
	RankAce, RankTwo, RankThree, RankFour, RankFive, RankSix, RankSeven,
	RankEight, RankNine, RankTen, RankJack, RankQueen, RankKing,
}

// Suit is one of hearts, diamonds, clubs, spades.
type Suit byte

const (
	Hearts   Suit = 'H'
	Diamonds Suit = 'D'
	Clubs    Suit = 'C'
	Spades   Suit = 'S'
)

// Suits lists every suit in deal order.
var Suits = []Suit{Hearts, Diamonds, Clubs, Spades}

// Color is the suit color used for pairing.
type Color byte

const (
	Red   Color = 'R'
	Black Color = 'B'
)

var suitColors = map[Suit]Color{
	Hearts:   Red,
	Diamonds: Red,
	Clubs:    Black,
	Spades:   Black,
}

// Color returns the pairing color of the suit.
func (s Suit) Color() Color { return suitColors[s] }

func (s Suit) valid() bool {
	_, ok := suitColors[s]
	return ok
}

// Card is an immutable rank+suit value.
type Card struct {
	Rank Rank
	Suit Suit
}

// Color returns the color of the card's suit.
func (c Card) Color() Color { return c.Suit.Color() }

// Pairs reports whether two cards form a pair: same rank and same color.
func (c Card) Pairs(o Card) bool {
	if c.Rank != o.Rank {
		return false
	}
	return c.Color() == o.Color()
}

// Code renders the card as a fixed three character code, e.g. "_AH" or "10S".
func (c Card) Code() string {
	rank := string(c.Rank)
	if len(rank) < 2 {
		rank = "_" + rank
	}
	return rank + string(c.Suit)
}

func (c Card) String() string { return c.Code() }

// ParseCard parses the three character code produced by Code.
func ParseCard(code string) (Card, error) {
	code = strings.TrimSpace(code)
	if len(code) != 3 {
		return Card{}, fmt.Errorf("invalid card code %q", code)
	}
	rank := Rank(strings.TrimPrefix(code[:2], "_"))
	suit := Suit(code[2])
	if !suit.valid() {
		return Card{}, fmt.Errorf("invalid card suit in %q", code)
	}
	for _, r := range Ranks {
		if r == rank {
			return Card{Rank: rank, Suit: suit}, nil
		}
	}
	return Card{}, fmt.Errorf("invalid card rank in %q", code)
}

// MatchedCode is the stored form of a matched slot.
const MatchedCode = "---"

// Slot holds a card that is still in play, or nothing once the card was matched.
type Slot struct {
	card    Card
	present bool
}

// CardSlot returns a slot holding c.
func CardSlot(c Card) Slot { return Slot{card: c, present: true} }

// MatchedSlot returns the sentinel slot.
func MatchedSlot() Slot { return Slot{} }

// Matched reports whether the slot holds the sentinel.
func (s Slot) Matched() bool { return !s.present }

// Card returns the slot's card; ok is false for matched slots.
func (s Slot) Card() (Card, bool) { return s.card, s.present }

// Code returns the card code or MatchedCode.
func (s Slot) Code() string {
	if !s.present {
		return MatchedCode
	}
	return s.card.Code()
}

// ParseSlot parses a card code or MatchedCode.
func ParseSlot(code string) (Slot, error) {
	if strings.TrimSpace(code) == MatchedCode {
		return MatchedSlot(), nil
	}
	c, err := ParseCard(code)
	if err != nil {
		return Slot{}, err
	}
	return CardSlot(c), nil
}

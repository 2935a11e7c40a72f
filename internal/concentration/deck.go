package concentration

import (
	"fmt"
	"math/rand/v2"
)

const (
	// DeckSize is the number of slots on the table.
	DeckSize = 52
	// PairCount is the number of successful matches that wins a game.
	PairCount = DeckSize / 2
)

// DeckState is the ordered table of 52 slots. Order never changes after the deal.
type DeckState []Slot

// NewDeck returns the unshuffled 52 cards, suit by suit.
func NewDeck() DeckState {
	deck := make(DeckState, 0, DeckSize)
	for _, suit := range Suits {
		for _, rank := range Ranks {
			deck = append(deck, CardSlot(Card{Rank: rank, Suit: suit}))
		}
	}
	return deck
}

// Deal builds a fresh deck and shuffles it uniformly. A nil rng uses the global source.
func Deal(rng *rand.Rand) DeckState {
	deck := NewDeck()
	swap := func(i, j int) { deck[i], deck[j] = deck[j], deck[i] }
	if rng != nil {
		rng.Shuffle(len(deck), swap)
	} else {
		rand.Shuffle(len(deck), swap)
	}
	return deck
}

// Clone returns an independent copy.
func (d DeckState) Clone() DeckState {
	return append(DeckState(nil), d...)
}

// Remaining counts slots still holding a card.
func (d DeckState) Remaining() int {
	n := 0
	for _, s := range d {
		if !s.Matched() {
			n++
		}
	}
	return n
}

// Codes encodes the deck as card codes, MatchedCode for matched slots.
func (d DeckState) Codes() []string {
	out := make([]string, len(d))
	for i, s := range d {
		out[i] = s.Code()
	}
	return out
}

// DeckFromCodes decodes the output of Codes.
func DeckFromCodes(codes []string) (DeckState, error) {
	if len(codes) != DeckSize {
		return nil, fmt.Errorf("deck has %d slots, want %d", len(codes), DeckSize)
	}
	deck := make(DeckState, len(codes))
	for i, code := range codes {
		s, err := ParseSlot(code)
		if err != nil {
			return nil, fmt.Errorf("slot %d: %w", i, err)
		}
		deck[i] = s
	}
	return deck, nil
}

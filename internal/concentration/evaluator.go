package concentration

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Outcome tags a successfully evaluated move.
type Outcome string

const (
	Match   Outcome = "Match"
	NoMatch Outcome = "No_Match"
)

// Choice is one flipped slot.
type Choice struct {
	Index int    `json:"index"`
	Card  string `json:"card"`
}

// MoveEntry is one line of a game's move history.
type MoveEntry struct {
	Attempt int     `json:"attempt"`
	First   Choice  `json:"first"`
	Second  Choice  `json:"second"`
	Outcome Outcome `json:"outcome"`
}

// String renders the history form "[n]i:CARD~j:CARD|Outcome".
func (e MoveEntry) String() string {
	return fmt.Sprintf("[%d]%d:%s~%d:%s|%s", e.Attempt, e.First.Index, e.First.Card, e.Second.Index, e.Second.Card, e.Outcome)
}

// Summary renders the short per-move message "i:CARD ~ j:CARD | Outcome".
func (e MoveEntry) Summary() string {
	return fmt.Sprintf("%d:%s ~ %d:%s | %s", e.First.Index, e.First.Card, e.Second.Index, e.Second.Card, e.Outcome)
}

// RenderHistory joins entries in order with single spaces.
func RenderHistory(entries []MoveEntry) string {
	parts := make([]string, len(entries))
	for i, e := range entries {
		parts[i] = e.String()
	}
	return strings.Join(parts, " ")
}

// MoveErrorKind classifies a rejected move.
type MoveErrorKind string

const (
	InvalidInput    MoveErrorKind = "INVALID_INPUT"
	IndexOutOfRange MoveErrorKind = "INDEX_OUT_OF_RANGE"
	DuplicateChoice MoveErrorKind = "DUPLICATE_CHOICE"
	AlreadyMatched  MoveErrorKind = "ALREADY_MATCHED"
)

// Side names which of the two choices failed validation.
type Side string

const (
	SideNone   Side = ""
	SideFirst  Side = "first"
	SideSecond Side = "second"
)

// MoveError is a validation failure. It never mutates a game.
type MoveError struct {
	Kind MoveErrorKind
	Side Side
}

func (e *MoveError) Error() string {
	switch e.Kind {
	case InvalidInput:
		return "choices must be numbers in range 0-51"
	case IndexOutOfRange:
		return fmt.Sprintf("%s choice is not in range of 0-51", e.Side)
	case DuplicateChoice:
		return "first choice and second choice cannot be the same"
	case AlreadyMatched:
		return fmt.Sprintf("%s choice has already been matched", e.Side)
	default:
		return string(e.Kind)
	}
}

// Evaluate validates two raw choices against the deck and computes the outcome.
// It is pure: the deck is not modified. attempt is recorded in the entry.
func Evaluate(deck DeckState, attempt int, firstRaw, secondRaw string) (MoveEntry, *MoveError) {
	first, ok1 := parseChoice(firstRaw)
	second, ok2 := parseChoice(secondRaw)
	if !ok1 || !ok2 {
		return MoveEntry{}, &MoveError{Kind: InvalidInput}
	}
	if !inRange(deck, first) {
		return MoveEntry{}, &MoveError{Kind: IndexOutOfRange, Side: SideFirst}
	}
	if !inRange(deck, second) {
		return MoveEntry{}, &MoveError{Kind: IndexOutOfRange, Side: SideSecond}
	}
	if first == second {
		return MoveEntry{}, &MoveError{Kind: DuplicateChoice}
	}
	c1, ok := deck[first].Card()
	if !ok {
		return MoveEntry{}, &MoveError{Kind: AlreadyMatched, Side: SideFirst}
	}
	c2, ok := deck[second].Card()
	if !ok {
		return MoveEntry{}, &MoveError{Kind: AlreadyMatched, Side: SideSecond}
	}

	outcome := NoMatch
	if c1.Pairs(c2) {
		outcome = Match
	}
	return MoveEntry{
		Attempt: attempt,
		First:   Choice{Index: first, Card: c1.Code()},
		Second:  Choice{Index: second, Card: c2.Code()},
		Outcome: outcome,
	}, nil
}

// parseChoice reads an integer index. Integers too large for int are still numbers;
// they come back as -1 so the range check rejects them.
func parseChoice(raw string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if errors.Is(err, strconv.ErrRange) {
		return -1, true
	}
	return n, err == nil
}

func inRange(deck DeckState, i int) bool {
	return i >= 0 && i < DeckSize && i < len(deck)
}

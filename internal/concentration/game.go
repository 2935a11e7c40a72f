package concentration

import (
	"errors"
	"time"
)

var (
	ErrInvalidState       = errors.New("game is already over")
	ErrIntegrityViolation = errors.New("record missing for game owner")
)

// NewGame deals a fresh game for the user.
func NewGame(id string, user User, deck DeckState, now time.Time) *Game {
	return &Game{
		ID:          id,
		UserID:      user.ID,
		UserName:    user.Name,
		InitialDeck: deck.Clone(),
		Deck:        deck.Clone(),
		History:     []MoveEntry{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// MoveStatus is the kind of result ApplyMove produced.
type MoveStatus string

const (
	StatusAlreadyOver MoveStatus = "already_over"
	StatusRejected    MoveStatus = "rejected"
	StatusMatched     MoveStatus = "matched"
	StatusMissed      MoveStatus = "missed"
	StatusWon         MoveStatus = "won"
)

// MoveResult reports what ApplyMove did.
type MoveResult struct {
	Status MoveStatus
	// Entry is set when a move was evaluated.
	Entry *MoveEntry
	// Err is set for StatusRejected.
	Err *MoveError
	// Score is set when the move ended the game.
	Score *Score
}

// Mutated reports whether the game must be persisted.
func (r MoveResult) Mutated() bool {
	return r.Status != StatusAlreadyOver && r.Status != StatusRejected
}

// ApplyMove runs one move against an active game. Rejected and already-over results
// leave the game untouched. Reaching PairCount matches ends the game with a win.
func (g *Game) ApplyMove(firstRaw, secondRaw string, now time.Time) MoveResult {
	if g.Over {
		return MoveResult{Status: StatusAlreadyOver}
	}
	if g.Successful >= PairCount {
		return MoveResult{Status: StatusWon, Score: g.finish(true, now)}
	}

	entry, merr := Evaluate(g.Deck, g.Total, firstRaw, secondRaw)
	if merr != nil {
		return MoveResult{Status: StatusRejected, Err: merr}
	}

	g.Total++
	status := StatusMissed
	if entry.Outcome == Match {
		g.Successful++
		g.Deck[entry.First.Index] = MatchedSlot()
		g.Deck[entry.Second.Index] = MatchedSlot()
		status = StatusMatched
	} else {
		g.Failed++
	}
	g.History = append(g.History, entry)
	g.UpdatedAt = now

	res := MoveResult{Status: status, Entry: &entry}
	if g.Successful >= PairCount {
		res.Status = StatusWon
		res.Score = g.finish(true, now)
	}
	return res
}

// Cancel ends an active game as a loss.
func (g *Game) Cancel(now time.Time) (*Score, error) {
	if g.Over {
		return nil, ErrInvalidState
	}
	return g.finish(false, now), nil
}

// finish marks the game over and snapshots its score.
func (g *Game) finish(won bool, now time.Time) *Score {
	g.Over = true
	g.UpdatedAt = now
	y, m, d := now.UTC().Date()
	return &Score{
		UserID:     g.UserID,
		UserName:   g.UserName,
		GameID:     g.ID,
		Date:       time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
		Successful: g.Successful,
		Failed:     g.Failed,
		Total:      g.Total,
		Won:        won,
	}
}

// Apply adds one finished game to the record.
func (r *Record) Apply(s *Score) {
	if s == nil {
		return
	}
	if s.Won {
		r.Wins++
	} else {
		r.Losses++
	}
}

package store

import (
	"context"
	"errors"

	"github.com/park285/concentration/internal/concentration"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrDuplicateUser = errors.New("a user with that name already exists")
	ErrDuplicateGame = errors.New("game already exists")
)

// GameFilter narrows QueryGames. Zero values match everything.
type GameFilter struct {
	UserID string
	Over   *bool
}

// ScoreFilter narrows QueryScores. Limit <= 0 means no limit.
type ScoreFilter struct {
	UserID       string
	Won          *bool
	OrderByTotal bool
	Limit        int
}

// GameUpdate tells UpdateGame what to write after the mutator ran.
type GameUpdate struct {
	Save bool
	// Score, when set, is inserted and applied to the owner's record in the same transaction.
	Score *concentration.Score
}

// Repository is the account and game storage used by the service.
type Repository interface {
	CreateUser(ctx context.Context, name, email string) (*concentration.User, error)
	FindUserByName(ctx context.Context, name string) (*concentration.User, error)
	ListUsersWithEmail(ctx context.Context) ([]*concentration.User, error)

	GetRecord(ctx context.Context, userID string) (*concentration.Record, error)
	ListRecords(ctx context.Context, limit int) ([]*concentration.Record, error)

	CreateGame(ctx context.Context, game *concentration.Game) error
	LoadGame(ctx context.Context, id string) (*concentration.Game, error)
	// UpdateGame loads the game under an exclusive lock, runs fn and persists per its GameUpdate.
	// Returns ErrNotFound for unknown ids and the mutator's error untouched.
	UpdateGame(ctx context.Context, id string, fn func(*concentration.Game) (GameUpdate, error)) (*concentration.Game, error)
	QueryGames(ctx context.Context, filter GameFilter) ([]*concentration.Game, error)

	QueryScores(ctx context.Context, filter ScoreFilter) ([]*concentration.Score, error)

	Close() error
}

// Bool returns a pointer for filter fields.
func Bool(v bool) *bool { return &v }

func cloneGame(g *concentration.Game) *concentration.Game {
	if g == nil {
		return nil
	}
	c := *g
	c.Deck = g.Deck.Clone()
	c.InitialDeck = g.InitialDeck.Clone()
	c.History = append([]concentration.MoveEntry{}, g.History...)
	return &c
}

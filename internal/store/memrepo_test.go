package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
	"unsafe"

	"github.com/park285/concentration/internal/concentration"
)

func newGameFor(t *testing.T, repo Repository, user *concentration.User, id string) *concentration.Game {
	t.Helper()
	g := concentration.NewGame(id, *user, concentration.NewDeck(), time.Now().UTC())
	if err := repo.CreateGame(context.Background(), g); err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	return g
}

func TestCreateUserCreatesRecord(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	u, err := repo.CreateUser(ctx, " Alice ", "alice@example.com")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if u.Name != "Alice" || u.ID == "" {
		t.Fatalf("unexpected user %+v", u)
	}
	if _, err := repo.CreateUser(ctx, "Alice", ""); !errors.Is(err, ErrDuplicateUser) {
		t.Fatalf("duplicate err = %v", err)
	}
	rec, err := repo.GetRecord(ctx, u.ID)
	if err != nil || rec == nil {
		t.Fatalf("GetRecord: %v %v", rec, err)
	}
	if rec.Wins != 0 || rec.Losses != 0 || rec.UserName != "Alice" {
		t.Fatalf("unexpected record %+v", rec)
	}
	found, _ := repo.FindUserByName(ctx, "Alice")
	if found == nil || found.ID != u.ID {
		t.Fatalf("FindUserByName = %+v", found)
	}
	missing, err := repo.FindUserByName(ctx, "Bob")
	if missing != nil || err != nil {
		t.Fatalf("expected nil, nil for unknown user")
	}
}

func TestUpdateGameFinalizesAtomically(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	u, _ := repo.CreateUser(ctx, "Alice", "")
	g := newGameFor(t, repo, u, "g1")

	_, err := repo.UpdateGame(ctx, g.ID, func(cur *concentration.Game) (GameUpdate, error) {
		score, err := cur.Cancel(time.Now())
		return GameUpdate{Save: true, Score: score}, err
	})
	if err != nil {
		t.Fatalf("UpdateGame: %v", err)
	}
	loaded, _ := repo.LoadGame(ctx, g.ID)
	if !loaded.Over {
		t.Fatalf("game not over")
	}
	rec, _ := repo.GetRecord(ctx, u.ID)
	if rec.Losses != 1 || rec.Wins != 0 {
		t.Fatalf("record = %+v", rec)
	}
	scores, _ := repo.QueryScores(ctx, ScoreFilter{UserID: u.ID})
	if len(scores) != 1 || scores[0].Won || scores[0].GameID != g.ID || scores[0].ID == 0 {
		t.Fatalf("scores = %+v", scores)
	}

	_, err = repo.UpdateGame(ctx, g.ID, func(cur *concentration.Game) (GameUpdate, error) {
		score, err := cur.Cancel(time.Now())
		return GameUpdate{Save: true, Score: score}, err
	})
	if !errors.Is(err, concentration.ErrInvalidState) {
		t.Fatalf("second cancel err = %v", err)
	}
	if scores, _ := repo.QueryScores(ctx, ScoreFilter{}); len(scores) != 1 {
		t.Fatalf("second cancel wrote a score")
	}
}

func TestUpdateGameIntegrityViolationRollsBack(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	u, _ := repo.CreateUser(ctx, "Alice", "")
	g := newGameFor(t, repo, u, "g1")
	delete(repo.(*memrepo).records, u.ID)

	_, err := repo.UpdateGame(ctx, g.ID, func(cur *concentration.Game) (GameUpdate, error) {
		score, err := cur.Cancel(time.Now())
		return GameUpdate{Save: true, Score: score}, err
	})
	if !errors.Is(err, concentration.ErrIntegrityViolation) {
		t.Fatalf("err = %v", err)
	}
	loaded, _ := repo.LoadGame(ctx, g.ID)
	if loaded.Over {
		t.Fatalf("game write should have rolled back")
	}
}

func TestUpdateGameUnknownAndNoSave(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	if _, err := repo.UpdateGame(ctx, "nope", func(*concentration.Game) (GameUpdate, error) {
		return GameUpdate{}, nil
	}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v", err)
	}

	u, _ := repo.CreateUser(ctx, "Alice", "")
	g := newGameFor(t, repo, u, "g1")
	_, err := repo.UpdateGame(ctx, g.ID, func(cur *concentration.Game) (GameUpdate, error) {
		cur.Total = 99
		return GameUpdate{Save: false}, nil
	})
	if err != nil {
		t.Fatalf("UpdateGame: %v", err)
	}
	loaded, _ := repo.LoadGame(ctx, g.ID)
	if loaded.Total != 0 {
		t.Fatalf("unsaved mutation leaked: total=%d", loaded.Total)
	}
}

func TestConcurrentMovesDoNotLoseUpdates(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	u, _ := repo.CreateUser(ctx, "Alice", "")
	g := newGameFor(t, repo, u, "g1")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = repo.UpdateGame(ctx, g.ID, func(cur *concentration.Game) (GameUpdate, error) {
				res := cur.ApplyMove("0", "1", time.Now()) // _AH vs _2H never pairs
				return GameUpdate{Save: res.Mutated()}, nil
			})
		}()
	}
	wg.Wait()
	loaded, _ := repo.LoadGame(ctx, g.ID)
	if loaded.Total != 20 || loaded.Failed != 20 || len(loaded.History) != 20 {
		t.Fatalf("lost updates: total=%d failed=%d history=%d", loaded.Total, loaded.Failed, len(loaded.History))
	}
}

func TestQueryFilters(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	alice, _ := repo.CreateUser(ctx, "Alice", "a@example.com")
	bob, _ := repo.CreateUser(ctx, "Bob", "")

	finish := func(g *concentration.Game, won bool, total int) {
		_, err := repo.UpdateGame(ctx, g.ID, func(cur *concentration.Game) (GameUpdate, error) {
			cur.Total, cur.Failed = total, total
			if won {
				cur.Successful, cur.Failed = 0, total
			}
			score, err := cur.Cancel(time.Now())
			score.Won = won
			return GameUpdate{Save: true, Score: score}, err
		})
		if err != nil {
			t.Fatalf("finish: %v", err)
		}
	}
	finish(newGameFor(t, repo, alice, "a1"), true, 40)
	finish(newGameFor(t, repo, alice, "a2"), false, 10)
	finish(newGameFor(t, repo, bob, "b1"), true, 30)
	newGameFor(t, repo, bob, "b2")

	active, _ := repo.QueryGames(ctx, GameFilter{UserID: bob.ID, Over: Bool(false)})
	if len(active) != 1 || active[0].ID != "b2" || active[0].UserName != "Bob" {
		t.Fatalf("active = %+v", active)
	}
	over, _ := repo.QueryGames(ctx, GameFilter{Over: Bool(true)})
	if len(over) != 3 {
		t.Fatalf("over games = %d", len(over))
	}

	top, _ := repo.QueryScores(ctx, ScoreFilter{Won: Bool(true), OrderByTotal: true, Limit: 1})
	if len(top) != 1 || top[0].GameID != "b1" {
		t.Fatalf("top = %+v", top)
	}

	ranks, _ := repo.ListRecords(ctx, 0)
	if len(ranks) != 2 || ranks[0].UserName != "Bob" {
		t.Fatalf("ranks = %+v", ranks)
	}

	withEmail, _ := repo.ListUsersWithEmail(ctx)
	if len(withEmail) != 1 || withEmail[0].Name != "Alice" {
		t.Fatalf("withEmail = %+v", withEmail)
	}
}

func TestGameRowCodec(t *testing.T) {
	g := concentration.NewGame("g1", concentration.User{ID: "u1", Name: "Alice"}, concentration.NewDeck(), time.Now())
	g.ApplyMove("0", "13", time.Now())
	g.ApplyMove("1", "2", time.Now())

	row, err := encodeGame(g)
	if err != nil {
		t.Fatalf("encodeGame: %v", err)
	}
	var back concentration.Game
	if err := row.decodeInto(&back); err != nil {
		t.Fatalf("decodeInto: %v", err)
	}
	if !back.Deck[0].Matched() || back.InitialDeck[0].Matched() {
		t.Fatalf("deck columns mixed up")
	}
	if len(back.History) != 2 || back.History[0] != g.History[0] || back.History[1] != g.History[1] {
		t.Fatalf("history = %+v", back.History)
	}
}

func TestUpdateGameKeepsStoredKeyWhenCallerBufferIsReused(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	u, _ := repo.CreateUser(ctx, "Alice", "")
	g := newGameFor(t, repo, u, "game-one")

	buf := []byte(g.ID)
	aliased := unsafe.String(&buf[0], len(buf))
	_, err := repo.UpdateGame(ctx, aliased, func(cur *concentration.Game) (GameUpdate, error) {
		res := cur.ApplyMove("0", "1", time.Now())
		return GameUpdate{Save: res.Mutated()}, nil
	})
	if err != nil {
		t.Fatalf("UpdateGame: %v", err)
	}
	copy(buf, "xxxxxxxx")

	games, err := repo.QueryGames(ctx, GameFilter{UserID: u.ID})
	if err != nil {
		t.Fatalf("QueryGames: %v", err)
	}
	if len(games) != 1 || games[0].ID != "game-one" || games[0].Total != 1 {
		t.Fatalf("games = %+v", games)
	}
	if loaded, _ := repo.LoadGame(ctx, "game-one"); loaded == nil {
		t.Fatalf("game lost after caller buffer was reused")
	}
}

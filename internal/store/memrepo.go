package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/park285/concentration/internal/concentration"
)

// memrepo is an in-process Repository used when no database is configured, and by tests.
type memrepo struct {
	mu sync.RWMutex

	nextScoreID int64

	users     map[string]*concentration.User // id -> user
	userNames map[string]string              // name -> id
	records   map[string]*concentration.Record
	games     map[string]*concentration.Game
	gameOrder []string
	scores    []*concentration.Score
}

func NewMemoryRepository() Repository {
	return &memrepo{
		users:     make(map[string]*concentration.User),
		userNames: make(map[string]string),
		records:   make(map[string]*concentration.Record),
		games:     make(map[string]*concentration.Game),
	}
}

func (m *memrepo) Close() error { return nil }

func (m *memrepo) CreateUser(ctx context.Context, name, email string) (*concentration.User, error) {
	name = strings.TrimSpace(name)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.userNames[name]; exists {
		return nil, ErrDuplicateUser
	}
	u := &concentration.User{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     strings.TrimSpace(email),
		CreatedAt: time.Now().UTC(),
	}
	m.users[u.ID] = u
	m.userNames[name] = u.ID
	m.records[u.ID] = &concentration.Record{UserID: u.ID}
	copy := *u
	return &copy, nil
}

func (m *memrepo) FindUserByName(ctx context.Context, name string) (*concentration.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.userNames[strings.TrimSpace(name)]
	if !ok {
		return nil, nil
	}
	copy := *m.users[id]
	return &copy, nil
}

func (m *memrepo) ListUsersWithEmail(ctx context.Context) ([]*concentration.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*concentration.User
	for _, u := range m.users {
		if u.Email == "" {
			continue
		}
		copy := *u
		out = append(out, &copy)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memrepo) GetRecord(ctx context.Context, userID string) (*concentration.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.recordLocked(userID), nil
}

func (m *memrepo) recordLocked(userID string) *concentration.Record {
	rec, ok := m.records[userID]
	if !ok {
		return nil
	}
	copy := *rec
	if u, ok := m.users[userID]; ok {
		copy.UserName = u.Name
	}
	return &copy
}

func (m *memrepo) ListRecords(ctx context.Context, limit int) ([]*concentration.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*concentration.Record, 0, len(m.records))
	for id := range m.records {
		out = append(out, m.recordLocked(id))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Wins != out[j].Wins {
			return out[i].Wins > out[j].Wins
		}
		if out[i].Losses != out[j].Losses {
			return out[i].Losses < out[j].Losses
		}
		return out[i].UserName < out[j].UserName
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memrepo) CreateGame(ctx context.Context, game *concentration.Game) error {
	if game == nil {
		return fmt.Errorf("nil game payload")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.games[game.ID]; exists {
		return ErrDuplicateGame
	}
	if _, ok := m.users[game.UserID]; !ok {
		return fmt.Errorf("insert game: unknown user %s", game.UserID)
	}
	m.games[game.ID] = cloneGame(game)
	m.gameOrder = append(m.gameOrder, game.ID)
	return nil
}

func (m *memrepo) LoadGame(ctx context.Context, id string) (*concentration.Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gameLocked(id), nil
}

func (m *memrepo) gameLocked(id string) *concentration.Game {
	g, ok := m.games[id]
	if !ok {
		return nil
	}
	c := cloneGame(g)
	if u, ok := m.users[c.UserID]; ok {
		c.UserName = u.Name
	}
	return c
}

func (m *memrepo) UpdateGame(ctx context.Context, id string, fn func(*concentration.Game) (GameUpdate, error)) (*concentration.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g := m.gameLocked(id)
	if g == nil {
		return nil, ErrNotFound
	}
	upd, err := fn(g)
	if err != nil {
		return nil, err
	}
	if !upd.Save && upd.Score == nil {
		return g, nil
	}
	if s := upd.Score; s != nil {
		rec, ok := m.records[s.UserID]
		if !ok {
			return nil, fmt.Errorf("user %s: %w", s.UserID, concentration.ErrIntegrityViolation)
		}
		for _, existing := range m.scores {
			if existing.GameID == s.GameID {
				return nil, fmt.Errorf("insert score: duplicate game %s", s.GameID)
			}
		}
		m.nextScoreID++
		s.ID = m.nextScoreID
		stored := *s
		m.scores = append(m.scores, &stored)
		rec.Apply(s)
	}
	// Key by the stored id; the caller's string may alias a reused buffer.
	m.games[g.ID] = cloneGame(g)
	return g, nil
}

func (m *memrepo) QueryGames(ctx context.Context, filter GameFilter) ([]*concentration.Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*concentration.Game
	for _, id := range m.gameOrder {
		g := m.games[id]
		if filter.UserID != "" && g.UserID != filter.UserID {
			continue
		}
		if filter.Over != nil && g.Over != *filter.Over {
			continue
		}
		out = append(out, m.gameLocked(id))
	}
	return out, nil
}

func (m *memrepo) QueryScores(ctx context.Context, filter ScoreFilter) ([]*concentration.Score, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*concentration.Score
	for _, s := range m.scores {
		if filter.UserID != "" && s.UserID != filter.UserID {
			continue
		}
		if filter.Won != nil && s.Won != *filter.Won {
			continue
		}
		copy := *s
		if u, ok := m.users[s.UserID]; ok {
			copy.UserName = u.Name
		}
		out = append(out, &copy)
	}
	if filter.OrderByTotal {
		sort.SliceStable(out, func(i, j int) bool { return out[i].Total < out[j].Total })
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

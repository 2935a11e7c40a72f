package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/park285/concentration/internal/concentration"
)

//go:embed schema.sql
var schemaSQL string

const uniqueViolation = "23505"

type postgresRepository struct {
	db *sql.DB
}

// OpenPostgres connects, pings and migrates the schema.
func OpenPostgres(ctx context.Context, databaseURL string) (Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return NewPostgresRepository(db), nil
}

// NewPostgresRepository wraps an open database handle.
func NewPostgresRepository(db *sql.DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *postgresRepository) CreateUser(ctx context.Context, name, email string) (*concentration.User, error) {
	user := &concentration.User{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(name),
		Email:     strings.TrimSpace(email),
		CreatedAt: time.Now().UTC(),
	}
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		const insertUser = `
			INSERT INTO users (id, name, email, created_at)
			VALUES ($1, $2, NULLIF($3, ''), $4)`
		if _, err := tx.ExecContext(ctx, insertUser, user.ID, user.Name, user.Email, user.CreatedAt); err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
				return ErrDuplicateUser
			}
			return fmt.Errorf("insert user: %w", err)
		}
		const insertRecord = `INSERT INTO records (user_id, wins, losses) VALUES ($1, 0, 0)`
		if _, err := tx.ExecContext(ctx, insertRecord, user.ID); err != nil {
			return fmt.Errorf("insert record: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *postgresRepository) FindUserByName(ctx context.Context, name string) (*concentration.User, error) {
	const query = `
		SELECT id, name, COALESCE(email, ''), created_at
		FROM users
		WHERE name = $1`
	var u concentration.User
	err := r.db.QueryRowContext(ctx, query, strings.TrimSpace(name)).Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select user: %w", err)
	}
	return &u, nil
}

func (r *postgresRepository) ListUsersWithEmail(ctx context.Context) ([]*concentration.User, error) {
	const query = `
		SELECT id, name, email, created_at
		FROM users
		WHERE email IS NOT NULL AND email <> ''
		ORDER BY name`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("select users: %w", err)
	}
	defer rows.Close()

	var users []*concentration.User
	for rows.Next() {
		var u concentration.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, &u)
	}
	return users, rows.Err()
}

func (r *postgresRepository) GetRecord(ctx context.Context, userID string) (*concentration.Record, error) {
	const query = `
		SELECT r.user_id, u.name, r.wins, r.losses
		FROM records r
		JOIN users u ON u.id = r.user_id
		WHERE r.user_id = $1`
	var rec concentration.Record
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&rec.UserID, &rec.UserName, &rec.Wins, &rec.Losses)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select record: %w", err)
	}
	return &rec, nil
}

func (r *postgresRepository) ListRecords(ctx context.Context, limit int) ([]*concentration.Record, error) {
	query := `
		SELECT r.user_id, u.name, r.wins, r.losses
		FROM records r
		JOIN users u ON u.id = r.user_id
		ORDER BY r.wins DESC, r.losses ASC, u.name ASC`
	var args []any
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select records: %w", err)
	}
	defer rows.Close()

	var out []*concentration.Record
	for rows.Next() {
		var rec concentration.Record
		if err := rows.Scan(&rec.UserID, &rec.UserName, &rec.Wins, &rec.Losses); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

func (r *postgresRepository) CreateGame(ctx context.Context, game *concentration.Game) error {
	if game == nil {
		return fmt.Errorf("nil game payload")
	}
	row, err := encodeGame(game)
	if err != nil {
		return err
	}
	const query = `
		INSERT INTO games (
			id, user_id, initial_deck, deck,
			successful_attempts, failed_attempts, total_attempts,
			game_over, move_history, created_at, updated_at
		)
		VALUES ($1, $2, $3::jsonb, $4::jsonb, $5, $6, $7, $8, $9::jsonb, $10, $11)`
	_, err = r.db.ExecContext(ctx, query,
		game.ID, game.UserID, string(row.initialDeck), string(row.deck),
		game.Successful, game.Failed, game.Total,
		game.Over, string(row.history), game.CreatedAt, game.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrDuplicateGame
		}
		return fmt.Errorf("insert game: %w", err)
	}
	return nil
}

const selectGame = `
	SELECT
		g.id,
		g.user_id,
		u.name,
		g.initial_deck,
		g.deck,
		g.successful_attempts,
		g.failed_attempts,
		g.total_attempts,
		g.game_over,
		g.move_history,
		g.created_at,
		g.updated_at
	FROM games g
	JOIN users u ON u.id = g.user_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGame(s rowScanner) (*concentration.Game, error) {
	var (
		g    concentration.Game
		row  gameRow
		name string
	)
	if err := s.Scan(
		&g.ID,
		&g.UserID,
		&name,
		&row.initialDeck,
		&row.deck,
		&g.Successful,
		&g.Failed,
		&g.Total,
		&g.Over,
		&row.history,
		&g.CreatedAt,
		&g.UpdatedAt,
	); err != nil {
		return nil, err
	}
	g.UserName = name
	if err := row.decodeInto(&g); err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *postgresRepository) LoadGame(ctx context.Context, id string) (*concentration.Game, error) {
	g, err := scanGame(r.db.QueryRowContext(ctx, selectGame+` WHERE g.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select game: %w", err)
	}
	return g, nil
}

func (r *postgresRepository) UpdateGame(ctx context.Context, id string, fn func(*concentration.Game) (GameUpdate, error)) (*concentration.Game, error) {
	var out *concentration.Game
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		g, err := scanGame(tx.QueryRowContext(ctx, selectGame+` WHERE g.id = $1 FOR UPDATE OF g`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("select game for update: %w", err)
		}

		upd, err := fn(g)
		if err != nil {
			return err
		}
		out = g
		if !upd.Save && upd.Score == nil {
			return nil
		}

		row, err := encodeGame(g)
		if err != nil {
			return err
		}
		const update = `
			UPDATE games SET
				deck = $2::jsonb,
				successful_attempts = $3,
				failed_attempts = $4,
				total_attempts = $5,
				game_over = $6,
				move_history = $7::jsonb,
				updated_at = $8
			WHERE id = $1`
		if _, err := tx.ExecContext(ctx, update,
			g.ID, string(row.deck), g.Successful, g.Failed, g.Total, g.Over, string(row.history), g.UpdatedAt,
		); err != nil {
			return fmt.Errorf("update game: %w", err)
		}
		if upd.Score != nil {
			return finalizeTx(ctx, tx, upd.Score)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// finalizeTx inserts the score and bumps the owner's record.
func finalizeTx(ctx context.Context, tx *sql.Tx, s *concentration.Score) error {
	var rec concentration.Record
	const lockRecord = `SELECT user_id, wins, losses FROM records WHERE user_id = $1 FOR UPDATE`
	err := tx.QueryRowContext(ctx, lockRecord, s.UserID).Scan(&rec.UserID, &rec.Wins, &rec.Losses)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("user %s: %w", s.UserID, concentration.ErrIntegrityViolation)
	}
	if err != nil {
		return fmt.Errorf("select record for update: %w", err)
	}

	const insertScore = `
		INSERT INTO scores (user_id, game_id, date, successful_attempts, failed_attempts, total_attempts, won)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`
	if err := tx.QueryRowContext(ctx, insertScore,
		s.UserID, s.GameID, s.Date, s.Successful, s.Failed, s.Total, s.Won,
	).Scan(&s.ID); err != nil {
		return fmt.Errorf("insert score: %w", err)
	}

	rec.Apply(s)
	const updateRecord = `UPDATE records SET wins = $2, losses = $3 WHERE user_id = $1`
	if _, err := tx.ExecContext(ctx, updateRecord, rec.UserID, rec.Wins, rec.Losses); err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	return nil
}

func (r *postgresRepository) QueryGames(ctx context.Context, filter GameFilter) ([]*concentration.Game, error) {
	var (
		conds []string
		args  []any
	)
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		conds = append(conds, fmt.Sprintf("g.user_id = $%d", len(args)))
	}
	if filter.Over != nil {
		args = append(args, *filter.Over)
		conds = append(conds, fmt.Sprintf("g.game_over = $%d", len(args)))
	}
	query := selectGame
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY g.created_at ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select games: %w", err)
	}
	defer rows.Close()

	var games []*concentration.Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("scan game: %w", err)
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

func (r *postgresRepository) QueryScores(ctx context.Context, filter ScoreFilter) ([]*concentration.Score, error) {
	var (
		conds []string
		args  []any
	)
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		conds = append(conds, fmt.Sprintf("s.user_id = $%d", len(args)))
	}
	if filter.Won != nil {
		args = append(args, *filter.Won)
		conds = append(conds, fmt.Sprintf("s.won = $%d", len(args)))
	}
	query := `
		SELECT
			s.id,
			s.user_id,
			u.name,
			s.game_id,
			s.date,
			s.successful_attempts,
			s.failed_attempts,
			s.total_attempts,
			s.won
		FROM scores s
		JOIN users u ON u.id = s.user_id`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	if filter.OrderByTotal {
		query += " ORDER BY s.total_attempts ASC, s.id ASC"
	} else {
		query += " ORDER BY s.id ASC"
	}
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select scores: %w", err)
	}
	defer rows.Close()

	var scores []*concentration.Score
	for rows.Next() {
		var s concentration.Score
		if err := rows.Scan(&s.ID, &s.UserID, &s.UserName, &s.GameID, &s.Date, &s.Successful, &s.Failed, &s.Total, &s.Won); err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		scores = append(scores, &s)
	}
	return scores, rows.Err()
}

func (r *postgresRepository) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// gameRow carries the JSON encoded columns of a game. Pass them to lib/pq as strings;
// raw []byte is sent as bytea.
type gameRow struct {
	initialDeck []byte
	deck        []byte
	history     []byte
}

func encodeGame(g *concentration.Game) (gameRow, error) {
	var (
		row gameRow
		err error
	)
	if row.initialDeck, err = json.Marshal(g.InitialDeck.Codes()); err != nil {
		return row, fmt.Errorf("marshal initial_deck: %w", err)
	}
	if row.deck, err = json.Marshal(g.Deck.Codes()); err != nil {
		return row, fmt.Errorf("marshal deck: %w", err)
	}
	history := g.History
	if history == nil {
		history = []concentration.MoveEntry{}
	}
	if row.history, err = json.Marshal(history); err != nil {
		return row, fmt.Errorf("marshal move_history: %w", err)
	}
	return row, nil
}

func (row gameRow) decodeInto(g *concentration.Game) error {
	var codes []string
	if err := json.Unmarshal(row.initialDeck, &codes); err != nil {
		return fmt.Errorf("unmarshal initial_deck: %w", err)
	}
	initial, err := concentration.DeckFromCodes(codes)
	if err != nil {
		return fmt.Errorf("decode initial_deck: %w", err)
	}
	codes = nil
	if err := json.Unmarshal(row.deck, &codes); err != nil {
		return fmt.Errorf("unmarshal deck: %w", err)
	}
	deck, err := concentration.DeckFromCodes(codes)
	if err != nil {
		return fmt.Errorf("decode deck: %w", err)
	}
	var history []concentration.MoveEntry
	if err := json.Unmarshal(row.history, &history); err != nil {
		return fmt.Errorf("unmarshal move_history: %w", err)
	}
	if history == nil {
		history = []concentration.MoveEntry{}
	}
	g.InitialDeck, g.Deck, g.History = initial, deck, history
	return nil
}

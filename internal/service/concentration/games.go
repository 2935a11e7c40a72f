package concentration

import (
	"context"
	"errors"
	"fmt"
	"strings"

	core "github.com/park285/concentration/internal/concentration"
	"github.com/park285/concentration/internal/render"
	"github.com/park285/concentration/internal/store"
	"github.com/park285/concentration/pkg/concentrationdto"
	"go.uber.org/zap"
)

func (s *Service) NewGame(ctx context.Context, userName string) (*concentrationdto.GameForm, error) {
	u, err := s.lookupUser(ctx, userName)
	if err != nil {
		return nil, err
	}
	g := core.NewGame(s.newID(), *u, s.deal(), s.now())
	if err := s.repo.CreateGame(ctx, g); err != nil {
		return nil, s.internalErr("game_create", err, zap.String("user_id", u.ID))
	}
	s.logger.Info("game_new", zap.String("game_id", g.ID), zap.String("user_name", u.Name))
	s.enqueueRecompute(ctx)
	return toGameForm(g, s.text("game.new", nil)), nil
}

func (s *Service) loadGame(ctx context.Context, key string) (*core.Game, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, s.domainErr(concentrationdto.KindNotFound, "game.not_found", nil)
	}
	g, err := s.repo.LoadGame(ctx, key)
	if err != nil {
		return nil, s.internalErr("game_load", err, zap.String("game_id", key))
	}
	if g == nil {
		return nil, s.domainErr(concentrationdto.KindNotFound, "game.not_found", nil)
	}
	return g, nil
}

func (s *Service) GetGame(ctx context.Context, key string) (*concentrationdto.GameForm, error) {
	g, err := s.loadGame(ctx, key)
	if err != nil {
		return nil, err
	}
	msg := s.text("game.turn", nil)
	if g.Over {
		msg = s.text("game.over", nil)
	}
	return toGameForm(g, msg), nil
}

// ListUserGames returns the user's active games.
func (s *Service) ListUserGames(ctx context.Context, userName string) (*concentrationdto.GameForms, error) {
	u, err := s.lookupUser(ctx, userName)
	if err != nil {
		return nil, err
	}
	games, err := s.repo.QueryGames(ctx, store.GameFilter{UserID: u.ID, Over: store.Bool(false)})
	if err != nil {
		return nil, s.internalErr("game_list", err, zap.String("user_id", u.ID))
	}
	out := &concentrationdto.GameForms{Items: make([]concentrationdto.GameForm, 0, len(games))}
	turn := s.text("game.turn", nil)
	for _, g := range games {
		out.Items = append(out.Items, *toGameForm(g, turn))
	}
	return out, nil
}

func (s *Service) CancelGame(ctx context.Context, key string) (*concentrationdto.GameForm, error) {
	key = strings.TrimSpace(key)
	var score *core.Score
	g, err := s.repo.UpdateGame(ctx, key, func(g *core.Game) (store.GameUpdate, error) {
		sc, err := g.Cancel(s.now())
		if err != nil {
			return store.GameUpdate{}, err
		}
		score = sc
		return store.GameUpdate{Save: true, Score: sc}, nil
	})
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, s.domainErr(concentrationdto.KindNotFound, "game.cancel_not_found", nil)
	case errors.Is(err, core.ErrInvalidState):
		return nil, s.domainErr(concentrationdto.KindInvalidState, "game.cancel_over", nil)
	case err != nil:
		return nil, s.internalErr("game_cancel", err, zap.String("game_id", key))
	}
	s.logger.Info("game_cancelled",
		zap.String("game_id", g.ID),
		zap.String("user_name", g.UserName),
		zap.Int("total_attempts", score.Total),
	)
	s.enqueueRecompute(ctx)
	return toGameForm(g, s.text("game.cancelled", nil)), nil
}

// MakeMove applies one pair of choices. Validation failures come back as a normal form
// carrying guidance text; the game is left untouched in that case.
func (s *Service) MakeMove(ctx context.Context, key, firstRaw, secondRaw string) (*concentrationdto.GameForm, error) {
	key = strings.TrimSpace(key)
	var res core.MoveResult
	g, err := s.repo.UpdateGame(ctx, key, func(g *core.Game) (store.GameUpdate, error) {
		res = g.ApplyMove(firstRaw, secondRaw, s.now())
		return store.GameUpdate{Save: res.Mutated(), Score: res.Score}, nil
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, s.domainErr(concentrationdto.KindNotFound, "game.not_found", nil)
	}
	if err != nil {
		return nil, s.internalErr("game_move", err, zap.String("game_id", key))
	}

	fields := []zap.Field{
		zap.String("game_id", g.ID),
		zap.String("status", string(res.Status)),
		zap.Int("total_attempts", g.Total),
		zap.Int("successful_attempts", g.Successful),
	}
	if res.Err != nil {
		fields = append(fields, zap.String("reason", string(res.Err.Kind)))
	}
	s.logger.Debug("game_move", fields...)
	if res.Score != nil {
		s.logger.Info("game_won", zap.String("game_id", g.ID), zap.String("user_name", g.UserName), zap.Int("total_attempts", g.Total))
		s.enqueueRecompute(ctx)
	}
	return toGameForm(g, s.moveMessage(res)), nil
}

func (s *Service) moveMessage(res core.MoveResult) string {
	switch res.Status {
	case core.StatusAlreadyOver:
		return s.text("game.over", nil)
	case core.StatusWon:
		return s.text("game.won", nil)
	case core.StatusRejected:
		return s.text(rejectionKey(res.Err), nil)
	}
	if res.Entry != nil {
		return res.Entry.Summary()
	}
	return s.text("game.turn", nil)
}

func rejectionKey(e *core.MoveError) string {
	if e == nil {
		return "move.invalid_input"
	}
	switch e.Kind {
	case core.IndexOutOfRange:
		return fmt.Sprintf("move.%s_out_of_range", sideOrFirst(e.Side))
	case core.DuplicateChoice:
		return "move.duplicate"
	case core.AlreadyMatched:
		return fmt.Sprintf("move.%s_matched", sideOrFirst(e.Side))
	default:
		return "move.invalid_input"
	}
}

func sideOrFirst(side core.Side) string {
	if side == core.SideSecond {
		return "second"
	}
	return "first"
}

func (s *Service) GetMoveHistory(ctx context.Context, key string) (*concentrationdto.GameForm, error) {
	g, err := s.loadGame(ctx, key)
	if err != nil {
		return nil, err
	}
	return toGameForm(g, core.RenderHistory(g.History)), nil
}

// RenderBoard draws the game as PNG. The cards of a missed last move stay face up.
func (s *Service) RenderBoard(ctx context.Context, key string) ([]byte, error) {
	g, err := s.loadGame(ctx, key)
	if err != nil {
		return nil, err
	}
	opts := render.Options{
		Header: fmt.Sprintf("%s | attempts %d | matched %d/%d", g.UserName, g.Total, g.Successful, core.PairCount),
	}
	if g.Over {
		opts.Header += " | over"
	}
	if n := len(g.History); n > 0 && !g.Over {
		last := g.History[n-1]
		if last.Outcome == core.NoMatch {
			opts.Reveal = []int{last.First.Index, last.Second.Index}
		}
	}
	png, err := s.renderer.RenderPNG(ctx, g.Deck, g.InitialDeck, opts)
	if err != nil {
		return nil, s.internalErr("board_render", err, zap.String("game_id", g.ID))
	}
	return png, nil
}

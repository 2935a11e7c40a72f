package concentration

import (
	"context"
	"errors"

	"github.com/park285/concentration/internal/cache"
	core "github.com/park285/concentration/internal/concentration"
	"github.com/park285/concentration/internal/mailer"
	"github.com/park285/concentration/internal/store"
	"github.com/park285/concentration/pkg/concentrationdto"
	"go.uber.org/zap"
)

func (s *Service) ListScores(ctx context.Context) (*concentrationdto.ScoreForms, error) {
	scores, err := s.repo.QueryScores(ctx, store.ScoreFilter{})
	if err != nil {
		return nil, s.internalErr("score_list", err)
	}
	return toScoreForms(scores), nil
}

func (s *Service) ListUserScores(ctx context.Context, userName string) (*concentrationdto.ScoreForms, error) {
	u, err := s.lookupUser(ctx, userName)
	if err != nil {
		return nil, err
	}
	scores, err := s.repo.QueryScores(ctx, store.ScoreFilter{UserID: u.ID})
	if err != nil {
		return nil, s.internalErr("score_list", err, zap.String("user_id", u.ID))
	}
	return toScoreForms(scores), nil
}

// ListTopScores returns won games with the fewest attempts first. limit <= 0 uses the configured default.
func (s *Service) ListTopScores(ctx context.Context, limit int) (*concentrationdto.ScoreForms, error) {
	if limit <= 0 {
		limit = s.cfg.DefaultTopScores
	}
	scores, err := s.repo.QueryScores(ctx, store.ScoreFilter{Won: store.Bool(true), OrderByTotal: true, Limit: limit})
	if err != nil {
		return nil, s.internalErr("score_top", err)
	}
	return toScoreForms(scores), nil
}

// ListUserRankings returns records ordered by wins. limit <= 0 returns every record.
func (s *Service) ListUserRankings(ctx context.Context, limit int) (*concentrationdto.RecordForms, error) {
	records, err := s.repo.ListRecords(ctx, limit)
	if err != nil {
		return nil, s.internalErr("record_list", err)
	}
	out := &concentrationdto.RecordForms{Items: make([]concentrationdto.RecordForm, 0, len(records))}
	for _, r := range records {
		out.Items = append(out.Items, toRecordForm(r))
	}
	return out, nil
}

// GetAverageMoves returns the cached sentence, or an empty message when nothing is cached.
func (s *Service) GetAverageMoves(ctx context.Context) *concentrationdto.StringMessage {
	out := &concentrationdto.StringMessage{}
	if s.stats == nil {
		return out
	}
	v, ok, err := s.stats.Get(ctx, cache.AverageMovesKey)
	if err != nil {
		s.logger.Warn("average_cache_get_failed", zap.Error(err))
		return out
	}
	if ok {
		out.Message = v
	}
	return out
}

// RecomputeAverageMoves caches the mean attempts over finished games. With no finished games
// the previous value is kept.
func (s *Service) RecomputeAverageMoves(ctx context.Context) error {
	if s.stats == nil {
		return nil
	}
	games, err := s.repo.QueryGames(ctx, store.GameFilter{Over: store.Bool(true)})
	if err != nil {
		return err
	}
	if len(games) == 0 {
		s.logger.Debug("average_skip_no_games")
		return nil
	}
	sum := 0
	for _, g := range games {
		sum += g.Total
	}
	avg := float64(sum) / float64(len(games))
	msg := s.text("stats.average", map[string]any{"Average": avg})
	if err := s.stats.Set(ctx, cache.AverageMovesKey, msg); err != nil {
		return err
	}
	s.logger.Info("average_recomputed", zap.Int("games", len(games)), zap.Float64("average", avg))
	return nil
}

// SendReminders mails every user with an address. Per-user failures are logged and joined.
func (s *Service) SendReminders(ctx context.Context) (int, error) {
	if s.mail == nil {
		return 0, nil
	}
	users, err := s.repo.ListUsersWithEmail(ctx)
	if err != nil {
		return 0, err
	}
	subject := s.text("reminder.subject", nil)
	sent := 0
	var errs []error
	for _, u := range users {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		body, err := s.reminderBody(ctx, u)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		msg := mailer.Message{From: s.cfg.MailFrom, To: u.Email, Subject: subject, Body: body}
		if err := s.mail.Send(ctx, msg); err != nil {
			s.logger.Warn("reminder_send_failed", zap.String("user_name", u.Name), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		sent++
	}
	s.logger.Info("reminders_sent", zap.Int("sent", sent), zap.Int("users", len(users)))
	return sent, errors.Join(errs...)
}

func (s *Service) reminderBody(ctx context.Context, u *core.User) (string, error) {
	active, err := s.repo.QueryGames(ctx, store.GameFilter{UserID: u.ID, Over: store.Bool(false)})
	if err != nil {
		return "", err
	}
	data := map[string]any{"Name": u.Name}
	if len(active) > 0 {
		return s.text("reminder.active", data), nil
	}
	return s.text("reminder.invite", data), nil
}

package concentration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/park285/concentration/internal/cache"
	core "github.com/park285/concentration/internal/concentration"
	"github.com/park285/concentration/internal/mailer"
	"github.com/park285/concentration/internal/msgcat"
	"github.com/park285/concentration/internal/render"
	"github.com/park285/concentration/internal/store"
	"github.com/park285/concentration/internal/tasks"
	"github.com/park285/concentration/pkg/concentrationdto"
	"go.uber.org/zap"
)

const (
	defaultTopScores = 10
	defaultMailFrom  = "noreply@concentration.local"
)

type Config struct {
	DefaultTopScores int
	MailFrom         string
}

type Service struct {
	repo     store.Repository
	stats    cache.Stats
	trigger  tasks.Trigger
	mail     mailer.Mailer
	renderer render.BoardRenderer
	msgs     *msgcat.Catalog
	cfg      Config
	logger   *zap.Logger

	now   func() time.Time
	deal  func() core.DeckState
	newID func() string
}

type Option func(*Service)

func WithStats(s cache.Stats) Option { return func(svc *Service) { svc.stats = s } }
func WithTrigger(t tasks.Trigger) Option { return func(svc *Service) { svc.trigger = t } }
func WithMailer(m mailer.Mailer) Option { return func(svc *Service) { svc.mail = m } }
func WithRenderer(r render.BoardRenderer) Option { return func(svc *Service) { svc.renderer = r } }
func WithLogger(l *zap.Logger) Option { return func(svc *Service) { svc.logger = l } }
func WithClock(now func() time.Time) Option { return func(svc *Service) { svc.now = now } }

// WithDealer replaces the shuffler used for new games.
func WithDealer(deal func() core.DeckState) Option { return func(svc *Service) { svc.deal = deal } }

func WithIDGenerator(gen func() string) Option { return func(svc *Service) { svc.newID = gen } }

func NewService(repo store.Repository, msgs *msgcat.Catalog, cfg Config, opts ...Option) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("concentration repository is required")
	}
	if msgs == nil {
		return nil, fmt.Errorf("message catalog is required")
	}
	if cfg.DefaultTopScores <= 0 {
		cfg.DefaultTopScores = defaultTopScores
	}
	if strings.TrimSpace(cfg.MailFrom) == "" {
		cfg.MailFrom = defaultMailFrom
	}
	s := &Service{
		repo:  repo,
		msgs:  msgs,
		cfg:   cfg,
		now:   func() time.Time { return time.Now().UTC() },
		deal:  func() core.DeckState { return core.Deal(nil) },
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.renderer == nil {
		s.renderer = render.NewBoardRenderer()
	}
	return s, nil
}

func (s *Service) text(key string, data any) string {
	return s.msgs.Text(key, data)
}

func (s *Service) domainErr(kind concentrationdto.ErrorKind, key string, data any) error {
	return concentrationdto.DomainError{Kind: kind, Message: s.text(key, data)}
}

// internalErr logs err and hides it behind a generic INTERNAL or INTEGRITY_VIOLATION error.
func (s *Service) internalErr(op string, err error, fields ...zap.Field) error {
	kind := concentrationdto.KindInternal
	if errors.Is(err, core.ErrIntegrityViolation) {
		kind = concentrationdto.KindIntegrityViolation
	}
	s.logger.Error(op+"_failed", append(fields, zap.String("kind", string(kind)), zap.Error(err))...)
	return concentrationdto.DomainError{Kind: kind, Message: s.text("error.internal", nil)}
}

// enqueueRecompute asks the worker to refresh the average; failures are only logged.
func (s *Service) enqueueRecompute(ctx context.Context) {
	if s.trigger == nil {
		return
	}
	if err := s.trigger.Trigger(ctx, tasks.RecomputeAverageMoves); err != nil {
		s.logger.Warn("task_enqueue_failed", zap.String("task", tasks.RecomputeAverageMoves), zap.Error(err))
	}
}

func (s *Service) lookupUser(ctx context.Context, name string) (*core.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, s.domainErr(concentrationdto.KindNotFound, "user.not_found", nil)
	}
	u, err := s.repo.FindUserByName(ctx, name)
	if err != nil {
		return nil, s.internalErr("user_lookup", err, zap.String("user_name", name))
	}
	if u == nil {
		return nil, s.domainErr(concentrationdto.KindNotFound, "user.not_found", nil)
	}
	return u, nil
}

func (s *Service) CreateUser(ctx context.Context, name, email string) (*concentrationdto.StringMessage, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, s.domainErr(concentrationdto.KindInvalidInput, "user.name_required", nil)
	}
	u, err := s.repo.CreateUser(ctx, name, email)
	if errors.Is(err, store.ErrDuplicateUser) {
		return nil, s.domainErr(concentrationdto.KindConflict, "user.exists", nil)
	}
	if err != nil {
		return nil, s.internalErr("user_create", err, zap.String("user_name", name))
	}
	s.logger.Info("user_created", zap.String("user_id", u.ID), zap.String("user_name", u.Name), zap.Bool("has_email", u.Email != ""))
	return &concentrationdto.StringMessage{Message: s.text("user.created", map[string]any{"Name": u.Name})}, nil
}

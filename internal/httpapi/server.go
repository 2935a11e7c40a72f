package httpapi

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	svc "github.com/park285/concentration/internal/service/concentration"
	"github.com/park285/concentration/pkg/concentrationdto"
	"go.uber.org/zap"
)

type Handler struct {
	svc    *svc.Service
	logger *zap.Logger
}

// New builds the Fiber app with every route registered.
func New(service *svc.Service, logger *zap.Logger) *fiber.App {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{svc: service, logger: logger}
	app := fiber.New(fiber.Config{
		AppName:               "concentration",
		DisableStartupMessage: true,
		// Params and body strings outlive the handler (repository keys, logs).
		Immutable:             true,
		ErrorHandler:          h.errorHandler,
	})
	app.Use(recover.New())
	app.Use(h.accessLog)
	h.routes(app)
	return app
}

func (h *Handler) routes(app *fiber.App) {
	app.Get("/healthz", func(c *fiber.Ctx) error { return c.SendString("ok") })

	app.Post("/user", h.createUser)

	app.Post("/game", h.newGame)
	app.Put("/game/cancel/:key", h.cancelGame)
	app.Get("/game/history/:key", h.moveHistory)
	app.Get("/game/board/:key", h.board)
	app.Get("/game/:key", h.getGame)
	app.Put("/game/:key", h.makeMove)

	app.Get("/games/average_attempts", h.averageAttempts)
	app.Get("/games/:user_name", h.userGames)

	app.Get("/scores", h.scores)
	app.Get("/scores/high_scores", h.highScores)
	app.Get("/scores/ranks", h.rankings)
	app.Get("/scores/user/:user_name", h.userScores)

	app.Post("/tasks/cache_average_attempts", h.cacheAverage)
}

func (h *Handler) accessLog(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	status := c.Response().StatusCode()
	if err != nil {
		var fe *fiber.Error
		var de concentrationdto.DomainError
		switch {
		case errors.As(err, &de):
			status = statusFor(de.Kind)
		case errors.As(err, &fe):
			status = fe.Code
		default:
			status = fiber.StatusInternalServerError
		}
	}
	h.logger.Debug("http_request",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Int("status", status),
		zap.Duration("took", time.Since(start)),
	)
	return err
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (h *Handler) errorHandler(c *fiber.Ctx, err error) error {
	var de concentrationdto.DomainError
	if errors.As(err, &de) {
		return c.Status(statusFor(de.Kind)).JSON(errorBody{Error: string(de.Kind), Message: de.Error()})
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(errorBody{Error: string(kindForStatus(fe.Code)), Message: fe.Message})
	}
	h.logger.Error("http_unhandled_error", zap.String("path", c.Path()), zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(errorBody{Error: string(concentrationdto.KindInternal), Message: "internal error"})
}

func statusFor(kind concentrationdto.ErrorKind) int {
	switch kind {
	case concentrationdto.KindNotFound:
		return fiber.StatusNotFound
	case concentrationdto.KindConflict, concentrationdto.KindInvalidState:
		return fiber.StatusConflict
	case concentrationdto.KindInvalidInput, concentrationdto.KindIndexOutOfRange,
		concentrationdto.KindDuplicateChoice, concentrationdto.KindAlreadyMatched:
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

func kindForStatus(code int) concentrationdto.ErrorKind {
	switch code {
	case fiber.StatusNotFound:
		return concentrationdto.KindNotFound
	case fiber.StatusBadRequest, fiber.StatusUnprocessableEntity:
		return concentrationdto.KindInvalidInput
	case fiber.StatusConflict:
		return concentrationdto.KindConflict
	default:
		return concentrationdto.KindInternal
	}
}

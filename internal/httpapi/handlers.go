package httpapi

import (
	"github.com/gofiber/fiber/v2"
	"github.com/park285/concentration/pkg/concentrationdto"
	"go.uber.org/zap"
)

func badBody(err error) error {
	return concentrationdto.DomainError{Kind: concentrationdto.KindInvalidInput, Message: "invalid request body: " + err.Error()}
}

func (h *Handler) createUser(c *fiber.Ctx) error {
	var req concentrationdto.UserRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(err)
	}
	out, err := h.svc.CreateUser(c.UserContext(), req.UserName, req.Email)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

func (h *Handler) newGame(c *fiber.Ctx) error {
	var req concentrationdto.NewGameRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(err)
	}
	out, err := h.svc.NewGame(c.UserContext(), req.UserName)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

func (h *Handler) cancelGame(c *fiber.Ctx) error {
	out, err := h.svc.CancelGame(c.UserContext(), c.Params("key"))
	if err != nil {
		return err
	}
	return c.JSON(out)
}

func (h *Handler) getGame(c *fiber.Ctx) error {
	out, err := h.svc.GetGame(c.UserContext(), c.Params("key"))
	if err != nil {
		return err
	}
	return c.JSON(out)
}

func (h *Handler) makeMove(c *fiber.Ctx) error {
	var req concentrationdto.MakeMoveRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(err)
	}
	out, err := h.svc.MakeMove(c.UserContext(), c.Params("key"), string(req.FirstChoice), string(req.SecondChoice))
	if err != nil {
		return err
	}
	return c.JSON(out)
}

func (h *Handler) moveHistory(c *fiber.Ctx) error {
	out, err := h.svc.GetMoveHistory(c.UserContext(), c.Params("key"))
	if err != nil {
		return err
	}
	return c.JSON(out)
}

func (h *Handler) board(c *fiber.Ctx) error {
	png, err := h.svc.RenderBoard(c.UserContext(), c.Params("key"))
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, "image/png")
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Send(png)
}

func (h *Handler) userGames(c *fiber.Ctx) error {
	out, err := h.svc.ListUserGames(c.UserContext(), c.Params("user_name"))
	if err != nil {
		return err
	}
	return c.JSON(out)
}

func (h *Handler) averageAttempts(c *fiber.Ctx) error {
	return c.JSON(h.svc.GetAverageMoves(c.UserContext()))
}

func (h *Handler) scores(c *fiber.Ctx) error {
	out, err := h.svc.ListScores(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(out)
}

func (h *Handler) userScores(c *fiber.Ctx) error {
	out, err := h.svc.ListUserScores(c.UserContext(), c.Params("user_name"))
	if err != nil {
		return err
	}
	return c.JSON(out)
}

// numberOfResults reads ?number_of_results=; anything that is not an integer means "unset".
func numberOfResults(c *fiber.Ctx) int {
	return c.QueryInt("number_of_results", 0)
}

func (h *Handler) highScores(c *fiber.Ctx) error {
	out, err := h.svc.ListTopScores(c.UserContext(), numberOfResults(c))
	if err != nil {
		return err
	}
	return c.JSON(out)
}

func (h *Handler) rankings(c *fiber.Ctx) error {
	out, err := h.svc.ListUserRankings(c.UserContext(), numberOfResults(c))
	if err != nil {
		return err
	}
	return c.JSON(out)
}

func (h *Handler) cacheAverage(c *fiber.Ctx) error {
	if err := h.svc.RecomputeAverageMoves(c.UserContext()); err != nil {
		h.logger.Warn("average_recompute_failed", zap.Error(err))
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

package handlers

import (
	"duel-engine/middleware"
	"duel-engine/models"
	"duel-engine/services"

	"github.com/gofiber/fiber/v2"
)

func SetupTournamentRoutes(secured fiber.Router, tournamentService *services.TournamentService) {
	secured.Post("/tournaments", func(c *fiber.Ctx) error {
		var spec services.TournamentSpec
		if err := c.BodyParser(&spec); err != nil {
			return badRequest(c, "invalid request body")
		}
		spec.HostID = middleware.UserID(c)
		t, err := tournamentService.CreateTournament(c.UserContext(), spec)
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(t)
	})

	secured.Post("/arenas", func(c *fiber.Ctx) error {
		var spec services.ArenaSpec
		if err := c.BodyParser(&spec); err != nil {
			return badRequest(c, "invalid request body")
		}
		spec.HostID = middleware.UserID(c)
		t, err := tournamentService.CreateArena(c.UserContext(), spec)
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(t)
	})

	// Static paths before /tournaments/:id
	secured.Get("/tournaments/history", func(c *fiber.Ctx) error {
		page, err := tournamentService.GetHistoryPage(c.UserContext(), c.Query("scope_id"), c.QueryInt("page", 1), c.QueryInt("size", 20))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(page)
	})

	secured.Post("/tournaments/:id/rounds", func(c *fiber.Ctx) error {
		var plan services.RoundPlan
		if err := c.BodyParser(&plan); err != nil {
			return badRequest(c, "invalid request body")
		}
		round, err := tournamentService.StartRound(c.UserContext(), c.Params("id"), plan)
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(round)
	})

	secured.Post("/tournaments/:id/cancel", func(c *fiber.Ctx) error {
		if err := tournamentService.CancelTournament(c.UserContext(), c.Params("id"), middleware.UserID(c)); err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"id": c.Params("id"), "status": models.TournamentStatusCancelled})
	})

	secured.Get("/tournaments/:id/standings", func(c *fiber.Ctx) error {
		standings, err := tournamentService.GetStandings(c.UserContext(), c.Params("id"), c.Query("format"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"standings": standings})
	})

	secured.Get("/tournaments/:id/rounds", func(c *fiber.Ctx) error {
		rounds, err := tournamentService.ListRoundSummaries(c.UserContext(), c.Params("id"), 0)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"rounds": rounds})
	})

	secured.Get("/tournaments/:id/rounds/:number", func(c *fiber.Ctx) error {
		number, err := c.ParamsInt("number")
		if err != nil || number < 1 {
			return badRequest(c, "round number must be a positive integer")
		}
		rounds, err := tournamentService.ListRoundSummaries(c.UserContext(), c.Params("id"), number)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(rounds[0])
	})

	secured.Get("/tournaments/:id/rounds/:number/matches", func(c *fiber.Ctx) error {
		number, err := c.ParamsInt("number")
		if err != nil || number < 1 {
			return badRequest(c, "round number must be a positive integer")
		}
		matches, err := tournamentService.ListRoundMatches(c.UserContext(), c.Params("id"), number)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"matches": matches})
	})

	secured.Get("/tournaments/:id/history", func(c *fiber.Ctx) error {
		detail, err := tournamentService.GetHistoryDetail(c.UserContext(), c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(detail)
	})

	secured.Get("/tournaments/:id/recap", func(c *fiber.Ctx) error {
		recap, err := tournamentService.GetRecap(c.UserContext(), c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(recap)
	})
}

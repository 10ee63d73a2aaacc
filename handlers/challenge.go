package handlers

import (
	"context"
	"strings"

	"duel-engine/middleware"
	"duel-engine/services"

	"github.com/gofiber/fiber/v2"
)

// HandleLinker links a user to a judge handle within a scope.
type HandleLinker interface {
	LinkHandle(ctx context.Context, scopeID, userID, handle string) error
}

type createChallengeRequest struct {
	ScopeID        string   `json:"scope_id"`
	ContestID      int      `json:"contest_id"`
	Index          string   `json:"index"`
	LengthMinutes  int      `json:"length_minutes"`
	ParticipantIDs []string `json:"participant_ids"`
}

type linkHandleRequest struct {
	ScopeID string `json:"scope_id"`
	Handle  string `json:"handle"`
}

// SetupChallengeRoutes registers the challenge commands on a router that already runs
// middleware.UserContextMiddleware.
func SetupChallengeRoutes(secured fiber.Router, challengeService *services.ChallengeService, catalog services.ProblemCatalog, linker HandleLinker) {
	secured.Post("/handles", func(c *fiber.Ctx) error {
		var req linkHandleRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
		req.Handle = strings.TrimSpace(req.Handle)
		if req.ScopeID == "" || req.Handle == "" {
			return badRequest(c, "scope_id and handle are required")
		}
		if err := linker.LinkHandle(c.UserContext(), req.ScopeID, middleware.UserID(c), req.Handle); err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"scope_id": req.ScopeID,
			"user_id":  middleware.UserID(c),
			"handle":   req.Handle,
		})
	})

	secured.Post("/challenges", func(c *fiber.Ctx) error {
		var req createChallengeRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}

		problem := services.ProblemRef{ContestID: req.ContestID, Index: req.Index}
		if catalog != nil && req.ContestID > 0 && req.Index != "" {
			info, err := catalog.ResolveProblem(c.UserContext(), req.ContestID, req.Index)
			if err != nil {
				return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
					"error": "problem catalog unavailable",
					"code":  services.CodeExternal,
				})
			}
			if info == nil {
				return badRequest(c, "unknown problem")
			}
			problem.Name, problem.Rating = info.Name, info.Rating
		}

		ch, err := challengeService.CreateChallenge(c.UserContext(), services.ChallengeSpec{
			ScopeID:        req.ScopeID,
			HostID:         middleware.UserID(c),
			Problem:        problem,
			LengthMinutes:  req.LengthMinutes,
			ParticipantIDs: req.ParticipantIDs,
		})
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(ch)
	})

	secured.Post("/challenges/:id/cancel", func(c *fiber.Ctx) error {
		if err := challengeService.CancelChallenge(c.UserContext(), c.Params("id"), middleware.UserID(c)); err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"id": c.Params("id"), "status": "cancelled"})
	})

	secured.Get("/challenges/active", func(c *fiber.Ctx) error {
		var ids []string
		for _, id := range strings.Split(c.Query("user_ids"), ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			return badRequest(c, "user_ids is required")
		}
		active, err := challengeService.GetActiveChallengesForUsers(c.UserContext(), ids)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"active": active})
	})

	secured.Get("/challenges/recent", func(c *fiber.Ctx) error {
		challenges, err := challengeService.ListRecentCompletedChallenges(c.UserContext(), c.Query("scope_id"), c.QueryInt("limit", 0))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"challenges": challenges})
	})

	secured.Get("/users/:user_id/challenges/active", func(c *fiber.Ctx) error {
		challenges, err := challengeService.ListActiveChallengesForUser(c.UserContext(), c.Params("user_id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"challenges": challenges})
	})
}

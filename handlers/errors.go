package handlers

import (
	"errors"

	"duel-engine/services"

	"github.com/gofiber/fiber/v2"
)

func statusFor(code services.ErrorCode) int {
	switch code {
	case services.CodeInvalidSpec:
		return fiber.StatusBadRequest
	case services.CodeNotFound:
		return fiber.StatusNotFound
	case services.CodeForbidden:
		return fiber.StatusForbidden
	case services.CodeConflict:
		return fiber.StatusConflict
	case services.CodeExternal:
		return fiber.StatusBadGateway
	}
	return fiber.StatusInternalServerError
}

// respondError writes a service error as {"error", "code"} with the matching status.
func respondError(c *fiber.Ctx, err error) error {
	var appErr *services.AppError
	if !errors.As(err, &appErr) {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal error",
			"cause": err.Error(),
		})
	}
	return c.Status(statusFor(appErr.Code)).JSON(fiber.Map{
		"error": appErr.Message,
		"code":  appErr.Code,
	})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": msg,
		"code":  services.CodeInvalidSpec,
	})
}

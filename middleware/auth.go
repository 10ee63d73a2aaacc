// middleware/auth.go
package middleware

import (
	"github.com/gofiber/fiber/v2"
)

// UserContextMiddleware requires the X-User-ID header set by the gateway and stores it
// under c.Locals("user_id").
func UserContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Get("X-User-ID")
		if userID == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing X-User-ID, request must come through gateway with auth context",
			})
		}
		c.Locals("user_id", userID)
		return c.Next()
	}
}

// UserID returns the id stored by UserContextMiddleware.
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals("user_id").(string)
	return id
}

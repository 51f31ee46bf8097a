// middleware/auth.go
package middleware

import (
	"crypto/subtle"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// RefreshAuthMiddleware gates the refresh and reset triggers behind a shared
// secret: `Authorization: Bearer <secret>`, with a `?secret=` query fallback
// for cron vendors that cannot set headers. Rejects before any processing.
func RefreshAuthMiddleware(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		candidate := ""

		authHeader := c.Get("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			candidate = strings.TrimPrefix(authHeader, "Bearer ")
		} else if q := c.Query("secret"); q != "" {
			candidate = q
		}

		if candidate == "" {
			log.Printf("🚫 [AUTH] Missing refresh secret for %s", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}

		if subtle.ConstantTimeCompare([]byte(candidate), []byte(secret)) != 1 {
			log.Printf("❌ [AUTH] Invalid refresh secret for %s", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}

		return c.Next()
	}
}

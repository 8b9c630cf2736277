package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/gitwithuli/edgeofict/internal/pkg/env"
)

// RequireSharedSecret authenticates scheduler-invoked endpoints with a
// bearer token. The expected value comes from the first of envKeys that is
// set; an empty result is a hard 500 so a misconfigured deployment never
// runs an open sweep. The comparison is constant time.
func RequireSharedSecret(envKeys ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var expected string
		for _, key := range envKeys {
			if v := env.GetEnv(key, ""); v != "" {
				expected = v
				break
			}
		}
		if expected == "" {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error":   "server",
				"message": "cron secret is not configured",
			})
		}

		token := extractBearerToken(c)
		if len(token) != len(expected) ||
			subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   "unauthorized",
				"message": "invalid cron credential",
			})
		}
		return c.Next()
	}
}

func extractBearerToken(c *fiber.Ctx) string {
	auth := strings.TrimSpace(c.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

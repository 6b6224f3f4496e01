package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/mutamba/erp-backend/internal/dto"
)

const APIKeyHeader = "X-Api-Key"

// Paths reachable without the project API key.
var apiKeySkipPaths = []string{
	"/api/health",
	"/metrics",
}

// APIKey rejects requests that don't carry the configured project key.
func APIKey(key string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		path := c.Path()
		for _, skip := range apiKeySkipPaths {
			if strings.HasPrefix(path, skip) {
				return c.Next()
			}
		}
		if c.Method() == fiber.MethodOptions {
			return c.Next()
		}

		got := c.Get(APIKeyHeader)
		if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: "Chave de API inválida.",
			})
		}
		return c.Next()
	}
}

package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/mutamba/erp-backend/internal/dto"
)

const MisconfiguredMessage = "Variáveis de configuração não carregadas."

// Misconfigured answers every request while the server runs without its
// required configuration. Health still responds, reporting the state.
func Misconfigured(missing error) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Path() == "/api/health" {
			return c.Status(fiber.StatusServiceUnavailable).JSON(dto.HealthResponse{
				Status:    "misconfigured",
				Timestamp: time.Now().UTC().Format(time.RFC3339),
				DB:        "not connected",
				Detail:    missing.Error(),
			})
		}
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{
			Error: true, Message: MisconfiguredMessage,
		})
	}
}

package middleware

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/mutamba/erp-backend/internal/access"
	"github.com/mutamba/erp-backend/internal/authctx"
	"github.com/mutamba/erp-backend/internal/dto"
)

// Authorize builds per-route policy checks. The role is resolved again on
// every request; if that fails the caller is evaluated as a plain user, so
// admin-only actions are refused.
func Authorize(resolver RoleResolver, policy *access.Policy) func(resource, action string) fiber.Handler {
	return func(resource, action string) fiber.Handler {
		return func(c *fiber.Ctx) error {
			caller, err := authctx.FromFiber(c)
			if err != nil {
				return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
					Error: true, Message: "Não autenticado.",
				})
			}

			role, err := resolver.Resolve(c.UserContext(), caller.Identity())
			if err != nil {
				slog.Warn("role resolution failed, evaluating as user",
					"uid", caller.UID,
					"request_id", c.GetRespHeader(fiber.HeaderXRequestID),
					"error", err,
				)
				role = access.RoleUser
			}

			if !policy.Can(role, resource, action) {
				return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
					Error: true, Message: "Acesso negado.",
				})
			}
			c.Locals(RoleLocalsKey, role)
			return c.Next()
		}
	}
}

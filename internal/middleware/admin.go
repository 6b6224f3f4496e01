package middleware

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/mutamba/erp-backend/internal/access"
	"github.com/mutamba/erp-backend/internal/authctx"
	"github.com/mutamba/erp-backend/internal/dto"
)

type RoleResolver interface {
	Resolve(ctx context.Context, id *access.Identity) (access.Role, error)
}

// AdminRequired re-resolves the caller's role on every request. A failed
// resolution is treated as not admin.
func AdminRequired(resolver RoleResolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, err := authctx.FromFiber(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: "Não autenticado.",
			})
		}

		role, err := resolver.Resolve(c.UserContext(), caller.Identity())
		if err != nil {
			slog.Error("admin check failed",
				"uid", caller.UID,
				"request_id", c.GetRespHeader(fiber.HeaderXRequestID),
				"error", err,
			)
		}
		if err != nil || !role.IsAdmin() {
			return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
				Error: true, Message: "Acesso restrito a administradores.",
			})
		}

		c.Locals(RoleLocalsKey, role)
		return c.Next()
	}
}

// RoleLocalsKey holds the role resolved by AdminRequired for the request.
const RoleLocalsKey = "role"

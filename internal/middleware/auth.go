package middleware

import (
	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"

	"github.com/mutamba/erp-backend/internal/authctx"
	"github.com/mutamba/erp-backend/internal/callable"
	"github.com/mutamba/erp-backend/internal/config"
	"github.com/mutamba/erp-backend/internal/dto"
)

func JWTProtected(cfg *config.Config) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey: jwtware.SigningKey{JWTAlg: jwtware.HS256, Key: []byte(cfg.JWTSecret)},
		ContextKey: authctx.LocalsKey,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error:   true,
				Message: "Sessão inválida ou expirada.",
			})
		},
	})
}

// OptionalJWT verifies the bearer token when one is sent and lets anonymous
// requests through, so the callable layer can answer them with its own
// unauthenticated error. A bad token is rejected in the callable envelope.
func OptionalJWT(cfg *config.Config) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey: jwtware.SigningKey{JWTAlg: jwtware.HS256, Key: []byte(cfg.JWTSecret)},
		ContextKey: authctx.LocalsKey,
		Filter: func(c *fiber.Ctx) bool {
			return c.Get(fiber.HeaderAuthorization) == ""
		},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return callable.WriteError(c, callable.Wrap(callable.Unauthenticated, "Sessão inválida ou expirada.", err))
		},
	})
}

package handlers

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/mutamba/erp-backend/internal/authctx"
	"github.com/mutamba/erp-backend/internal/dto"
	"github.com/mutamba/erp-backend/internal/identity"
)

const loginFailedMessage = "Falha ao fazer login. Verifique suas credenciais."

type SessionIssuer interface {
	SignIn(ctx context.Context, email, password string) (*dto.AuthResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*dto.AuthResponse, error)
	SignOut(ctx context.Context, refreshToken string) error
}

type AuthHandler struct {
	provider SessionIssuer
}

func NewAuthHandler(provider SessionIssuer) *AuthHandler {
	return &AuthHandler{provider: provider}
}

// Login never tells the caller which of email or password was wrong.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Corpo da requisição inválido.",
		})
	}
	if req.Email == "" || req.Password == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: loginFailedMessage,
		})
	}

	resp, err := h.provider.SignIn(c.UserContext(), req.Email, req.Password)
	if err != nil {
		if !errors.Is(err, identity.ErrInvalidCredentials) {
			slog.Error("sign in failed", "action", "login", "error", err)
		}
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: loginFailedMessage,
		})
	}

	return c.JSON(resp)
}

func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req dto.RefreshRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Corpo da requisição inválido.",
		})
	}

	resp, err := h.provider.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidToken) {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: "Sessão expirada. Faça login novamente.",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Erro interno do servidor.",
		})
	}

	return c.JSON(resp)
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	var req dto.LogoutRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Corpo da requisição inválido.",
		})
	}

	if err := h.provider.SignOut(c.UserContext(), req.RefreshToken); err != nil {
		slog.Error("sign out failed", "action", "logout", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Falha ao sair.",
		})
	}

	return c.JSON(fiber.Map{"message": "Sessão encerrada."})
}

// Me returns the identity the bearer token was issued to.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	caller, err := authctx.FromFiber(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Não autenticado.",
		})
	}
	return c.JSON(caller.Identity())
}

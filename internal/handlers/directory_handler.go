package handlers

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/mutamba/erp-backend/internal/access"
	"github.com/mutamba/erp-backend/internal/authctx"
	"github.com/mutamba/erp-backend/internal/directory"
	"github.com/mutamba/erp-backend/internal/dto"
)

type DirectoryReader interface {
	Get(ctx context.Context, uid string) (*directory.Entry, error)
	List(ctx context.Context, excludeEmail string) ([]directory.Entry, error)
}

type DirectoryHandler struct {
	directory DirectoryReader
	resolver  *access.Resolver
	policy    *access.Policy
}

func NewDirectoryHandler(dir DirectoryReader, resolver *access.Resolver, policy *access.Policy) *DirectoryHandler {
	return &DirectoryHandler{directory: dir, resolver: resolver, policy: policy}
}

func toResponse(e *directory.Entry) dto.DirectoryEntryResponse {
	return dto.DirectoryEntryResponse{
		UID:         e.UID,
		Nome:        e.Nome,
		Email:       e.Email,
		Role:        e.Role,
		DataCriacao: e.DataCriacao,
	}
}

// Get returns one entry. Callers may read their own entry; admins may read any.
func (h *DirectoryHandler) Get(c *fiber.Ctx) error {
	caller, err := authctx.FromFiber(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Não autenticado.",
		})
	}

	uid := c.Params("uid")
	if uid != caller.UID {
		role, err := h.resolver.Resolve(c.UserContext(), caller.Identity())
		if err != nil || !role.IsAdmin() {
			return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
				Error: true, Message: "Acesso negado.",
			})
		}
	}

	entry, err := h.directory.Get(c.UserContext(), uid)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
				Error: true, Message: "Usuário não encontrado.",
			})
		}
		slog.Error("directory read failed", "uid", uid, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Erro interno do servidor.",
		})
	}

	return c.JSON(toResponse(entry))
}

// List is mounted behind AdminRequired. The super-admin is never listed.
func (h *DirectoryHandler) List(c *fiber.Ctx) error {
	entries, err := h.directory.List(c.UserContext(), h.resolver.SuperAdminEmail())
	if err != nil {
		slog.Error("directory list failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Erro interno do servidor.",
		})
	}

	out := make([]dto.DirectoryEntryResponse, 0, len(entries))
	for i := range entries {
		out = append(out, toResponse(&entries[i]))
	}
	return c.JSON(out)
}

// Navigation lists the screens the caller's current role may open. A
// failed resolution degrades to the user screens.
func (h *DirectoryHandler) Navigation(c *fiber.Ctx) error {
	caller, err := authctx.FromFiber(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Não autenticado.",
		})
	}

	role, err := h.resolver.Resolve(c.UserContext(), caller.Identity())
	if err != nil {
		slog.Warn("navigation role resolution failed", "uid", caller.UID, "error", err)
		role = access.RoleUser
	}

	return c.JSON(dto.NavigationResponse{
		Role:    role,
		Screens: h.policy.VisibleScreens(role),
	})
}

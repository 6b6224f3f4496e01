package materiasprimas

import (
	"errors"
	"log/slog"
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/mutamba/erp-backend/internal/authctx"
	"github.com/mutamba/erp-backend/internal/dto"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) List(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset, _ := strconv.Atoi(c.Query("offset", "0"))
	if offset < 0 {
		offset = 0
	}

	resp, err := h.service.List(c.UserContext(), c.Query("q"), c.QueryBool("abaixo_minimo"), limit, offset)
	if err != nil {
		return h.internal(c, "list", err)
	}
	return c.JSON(resp)
}

func (h *Handler) Get(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "ID inválido.")
	}

	item, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return h.fail(c, "get", err)
	}
	return c.JSON(item)
}

func (h *Handler) Create(c *fiber.Ctx) error {
	caller, err := authctx.FromFiber(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Não autenticado.",
		})
	}

	var req CreateRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Corpo da requisição inválido.")
	}

	item, err := h.service.Create(c.UserContext(), caller.UID, req)
	if err != nil {
		return h.fail(c, "create", err)
	}
	return c.Status(fiber.StatusCreated).JSON(item)
}

func (h *Handler) Update(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "ID inválido.")
	}

	var req UpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Corpo da requisição inválido.")
	}

	item, err := h.service.Update(c.UserContext(), id, req)
	if err != nil {
		return h.fail(c, "update", err)
	}
	return c.JSON(item)
}

func (h *Handler) Delete(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "ID inválido.")
	}

	if err := h.service.Delete(c.UserContext(), id); err != nil {
		return h.fail(c, "delete", err)
	}
	return c.JSON(fiber.Map{"message": "Matéria-prima removida."})
}

func (h *Handler) fail(c *fiber.Ctx, action string, err error) error {
	var verrs validation.Errors
	switch {
	case errors.Is(err, ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
			Error: true, Message: "Matéria-prima não encontrada.",
		})
	case errors.As(err, &verrs):
		return badRequest(c, verrs.Error())
	default:
		return h.internal(c, action, err)
	}
}

func (h *Handler) internal(c *fiber.Ctx, action string, err error) error {
	slog.Error("materias primas request failed",
		"action", action,
		"request_id", c.GetRespHeader(fiber.HeaderXRequestID),
		"error", err,
	)
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
		Error: true, Message: "Erro interno do servidor.",
	})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
		Error: true, Message: message,
	})
}

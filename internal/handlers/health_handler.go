package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/mutamba/erp-backend/internal/dto"
)

type HealthHandler struct {
	ping   func() error
	region string
}

func NewHealthHandler(ping func() error, region string) *HealthHandler {
	return &HealthHandler{ping: ping, region: region}
}

func (h *HealthHandler) Check(c *fiber.Ctx) error {
	status, dbStatus := "ok", "ok"
	if err := h.ping(); err != nil {
		status = "degraded"
		dbStatus = "unhealthy: " + err.Error()
	}

	return c.JSON(dto.HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		DB:        dbStatus,
		Region:    h.region,
	})
}

package materiasprimas

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/mutamba/erp-backend/internal/access"
	"github.com/mutamba/erp-backend/internal/apps"
	"github.com/mutamba/erp-backend/internal/config"
)

type Plugin struct{}

func New() *Plugin {
	return &Plugin{}
}

func (p *Plugin) ID() string { return access.ScreenMateriasPrimas }

func (p *Plugin) Models() []interface{} {
	return []interface{}{&MateriaPrima{}}
}

func (p *Plugin) RegisterRoutes(router fiber.Router, authorize apps.Authorizer, db *gorm.DB, _ *config.Config) {
	handler := NewHandler(NewService(db))
	read := authorize(p.ID(), access.ActionRead)
	write := authorize(p.ID(), access.ActionWrite)

	router.Get("/materias-primas", read, handler.List)
	router.Post("/materias-primas", write, handler.Create)
	router.Get("/materias-primas/:id", read, handler.Get)
	router.Put("/materias-primas/:id", write, handler.Update)
	router.Delete("/materias-primas/:id", authorize(p.ID(), access.ActionDelete), handler.Delete)
}

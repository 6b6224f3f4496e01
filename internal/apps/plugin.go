package apps

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/mutamba/erp-backend/internal/config"
)

// Authorizer returns a handler that admits the request only if the caller's
// current role may perform action on resource.
type Authorizer func(resource, action string) fiber.Handler

// Plugin is an ERP module mounted under /api/p.
type Plugin interface {
	// ID is the module's resource name in the access policy.
	ID() string

	// Models returns the list of GORM model pointers for AutoMigrate.
	Models() []interface{}

	// RegisterRoutes mounts the module's routes. The group is already
	// prefixed with /api/p and requires a verified session; per-action
	// checks go through authorize.
	RegisterRoutes(router fiber.Router, authorize Authorizer, db *gorm.DB, cfg *config.Config)
}

package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"gorm.io/gorm"

	"github.com/mutamba/erp-backend/internal/access"
	"github.com/mutamba/erp-backend/internal/apps"
	"github.com/mutamba/erp-backend/internal/callable"
	"github.com/mutamba/erp-backend/internal/config"
	"github.com/mutamba/erp-backend/internal/handlers"
	"github.com/mutamba/erp-backend/internal/metrics"
	"github.com/mutamba/erp-backend/internal/middleware"
)

func Setup(
	app *fiber.App,
	cfg *config.Config,
	db *gorm.DB,
	resolver *access.Resolver,
	policy *access.Policy,
	authHandler *handlers.AuthHandler,
	directoryHandler *handlers.DirectoryHandler,
	healthHandler *handlers.HealthHandler,
	functions *callable.Registry,
	plugins []apps.Plugin,
) {
	app.Get("/metrics", metrics.Handler())

	api := app.Group("/api")

	// General API rate limiter: 120 req/min per IP
	api.Use(limiter.New(limiter.Config{
		Max:               120,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))

	api.Get("/health", healthHandler.Check)

	// Auth: stricter limit against credential stuffing
	auth := api.Group("/auth")
	auth.Use(limiter.New(limiter.Config{
		Max:               10,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))
	auth.Post("/login", authHandler.Login)
	auth.Post("/refresh", authHandler.Refresh)
	api.Post("/auth/logout", middleware.JWTProtected(cfg), authHandler.Logout)

	// Session-bound reads
	api.Get("/me", middleware.JWTProtected(cfg), authHandler.Me)
	api.Get("/navigation", middleware.JWTProtected(cfg), directoryHandler.Navigation)
	api.Get("/directory/:uid", middleware.JWTProtected(cfg), directoryHandler.Get)

	// Admin (role re-resolved per request)
	api.Get("/usuarios", middleware.JWTProtected(cfg), middleware.AdminRequired(resolver), directoryHandler.List)

	// Callable functions: anonymous calls reach the function, which rejects them
	api.Post("/functions/:name", middleware.OptionalJWT(cfg), functions.Handler())

	// ERP modules
	protected := api.Group("/p", middleware.JWTProtected(cfg))
	authorize := middleware.Authorize(resolver, policy)
	for _, p := range plugins {
		p.RegisterRoutes(protected, authorize, db, cfg)
	}
}

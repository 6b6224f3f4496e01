package main

import (
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"github.com/mutamba/erp-backend/internal/access"
	"github.com/mutamba/erp-backend/internal/apps"
	"github.com/mutamba/erp-backend/internal/apps/materiasprimas"
	"github.com/mutamba/erp-backend/internal/apps/produtos"
	"github.com/mutamba/erp-backend/internal/callable"
	"github.com/mutamba/erp-backend/internal/config"
	"github.com/mutamba/erp-backend/internal/database"
	"github.com/mutamba/erp-backend/internal/directory"
	"github.com/mutamba/erp-backend/internal/handlers"
	"github.com/mutamba/erp-backend/internal/identity"
	"github.com/mutamba/erp-backend/internal/logging"
	"github.com/mutamba/erp-backend/internal/middleware"
	"github.com/mutamba/erp-backend/internal/provisioner"
	"github.com/mutamba/erp-backend/internal/routes"
)

func main() {
	cfg := config.Load()

	// Structured logging (JSON to stdout)
	logging.Setup(cfg.LogLevel)

	// Sentry error tracking
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
			Environment:      cfg.Env,
		}); err != nil {
			slog.Error("sentry init failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	app := fiber.New(fiber.Config{
		BodyLimit:    4 * 1024 * 1024,
		ErrorHandler: customErrorHandler,
	})

	app.Use(sentryfiber.New(sentryfiber.Options{
		Repanic:         true,
		WaitForDelivery: false,
	}))
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path}\n",
	}))
	app.Use(middleware.Metrics())
	app.Use(middleware.CORS(cfg))
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		return c.Next()
	})

	var cleanup func()
	if err := cfg.Validate(); err != nil {
		// Without its configuration the server never touches the backend.
		slog.Error("configuration missing, serving configuration error", "error", err)
		app.Use(middleware.Misconfigured(err))
		cleanup = func() {}
	} else {
		cleanup = setup(app, cfg)
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "port", cfg.Port, "region", cfg.FunctionsRegion)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-quit
	slog.Info("shutting down server...")

	if err := app.Shutdown(); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
	cleanup()
	sentry.Flush(2 * time.Second)

	slog.Info("server stopped")
}

// setup connects the backend and mounts the API. It returns the shutdown hook.
func setup(app *fiber.App, cfg *config.Config) func() {
	if err := database.Connect(cfg); err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(database.DB); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}

	// PostgreSQL log handler (ERROR+ async batch)
	pgLogHandler := logging.NewPGHandler(database.DB, 5*time.Second)
	logging.Setup(cfg.LogLevel, pgLogHandler)

	cleanupDone := make(chan struct{})
	logging.StartCleanup(database.DB, cfg.LogRetention, cleanupDone)

	plugins := []apps.Plugin{
		materiasprimas.New(),
		produtos.New(),
	}
	for _, p := range plugins {
		if models := p.Models(); len(models) > 0 {
			if err := database.MigrateModels(database.DB, models); err != nil {
				slog.Error("plugin migration failed", "plugin", p.ID(), "error", err)
				os.Exit(1)
			}
			slog.Info("plugin migrated", "plugin", p.ID(), "models", len(models))
		}
	}

	policy, err := access.NewPolicy()
	if err != nil {
		slog.Error("access policy failed to load", "error", err)
		os.Exit(1)
	}

	// Services
	dir := directory.NewStore(database.DB)
	resolver := access.NewResolver(dir, cfg.SuperAdminEmail)
	identities := identity.NewProvider(database.DB, cfg)
	provisioning := provisioner.NewService(identities, dir, resolver, slog.Default())

	functions := callable.NewRegistry()
	provisioning.Register(functions)

	// Handlers
	authHandler := handlers.NewAuthHandler(identities)
	directoryHandler := handlers.NewDirectoryHandler(dir, resolver, policy)
	healthHandler := handlers.NewHealthHandler(database.Ping, cfg.FunctionsRegion)

	app.Use(middleware.APIKey(cfg.APIKey))
	routes.Setup(app, cfg, database.DB, resolver, policy, authHandler, directoryHandler, healthHandler, functions, plugins)

	return func() {
		close(cleanupDone)
		pgLogHandler.Stop()
		if err := database.Close(); err != nil {
			slog.Error("database close error", "error", err)
		}
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Erro interno do servidor."
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		message = fe.Message
	}

	// Only expose error details for client errors (4xx), not server errors (5xx)
	if code >= 500 {
		slog.Error("unhandled server error", "method", c.Method(), "path", c.Path(), "error", err.Error())
		message = "Erro interno do servidor."
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}

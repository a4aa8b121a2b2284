package main

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"datagate/internal/auth"
	"datagate/internal/authz"
	"datagate/internal/config"
	"datagate/internal/engine"
	"datagate/internal/metadata"
	"datagate/internal/store"
)

func main() {
	ctx := context.Background()

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Printf("Config loaded (port: %d, db: %s:%d/%s)", cfg.Server.Port, cfg.Database.Host, cfg.Database.Port, cfg.Database.Name)

	// 2. Connect to database
	db, err := store.New(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	// 3. Bootstrap system tables
	if err := db.Bootstrap(ctx); err != nil {
		log.Fatalf("Failed to bootstrap system tables: %v", err)
	}
	log.Println("System tables ready")

	// 4. Load entity definitions and build the permission index.
	// A bad definition is fatal at startup; later reloads keep the old
	// snapshot instead.
	reg := metadata.NewRegistry()
	if err := metadata.LoadAll(ctx, db.Pool, reg); err != nil {
		log.Fatalf("Failed to load metadata: %v", err)
	}

	// 5. Create Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: errorHandler,
	})
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))
	app.Use(logger.New(logger.Config{
		Format: "${time} ${status} ${method} ${path} ${latency}\n",
	}))

	// 6. Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// 7. Auth routes (before middleware, no auth required)
	authHandler := auth.NewHandler(db, cfg.JWTSecret)
	auth.RegisterRoutes(app, authHandler)

	// 8. Request middleware: token validation + effective role resolution
	authMW := auth.Middleware(cfg.JWTSecret, cfg.Auth.RoleHeader, reg)
	adminMW := auth.RequireRole("admin")

	// 9. Dynamic entity routes
	engineHandler := engine.NewHandler(db, reg, cfg.Auth.RoleHeader)
	engine.RegisterDynamicRoutes(app, engineHandler, authMW, adminMW)

	// 10. Start server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("Starting server on %s", addr)
	log.Fatal(app.Listen(addr))
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
	}

	var appErr *engine.AppError
	if errors.As(err, &appErr) {
		return c.Status(appErr.Status).JSON(engine.ErrorResponse{Error: appErr})
	}

	var authzErr *authz.Error
	if errors.As(err, &authzErr) {
		return c.Status(authzErr.Status).JSON(engine.ErrorResponse{
			Error: &engine.AppError{Code: authzErr.Code, Status: authzErr.Status, Message: authzErr.Message},
		})
	}

	log.Printf("ERROR: %v", err)
	return c.Status(code).JSON(engine.ErrorResponse{
		Error: &engine.AppError{Code: "INTERNAL_ERROR", Status: code, Message: "Internal server error"},
	})
}

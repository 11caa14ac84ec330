package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/stp-platform/tokend/internal/audit"
	"github.com/stp-platform/tokend/internal/config"
	"github.com/stp-platform/tokend/internal/database"
	"github.com/stp-platform/tokend/internal/handlers"
	"github.com/stp-platform/tokend/internal/middleware"
	"github.com/stp-platform/tokend/internal/storage"
	"github.com/stp-platform/tokend/internal/token"
	"github.com/stp-platform/tokend/pkg/logger"
)

func main() {
	logger.Init()

	cfg := config.Load()

	db, err := database.Connect(cfg.DB)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}

	var archiveClient *storage.ArchiveClient
	if cfg.Archive.Enabled {
		archiveClient, err = storage.NewArchiveClient(cfg.Archive)
		if err != nil {
			log.Fatalf("archive storage initialization failed: %v", err)
		}
		if err := archiveClient.EnsureBucket(context.Background()); err != nil {
			log.Fatalf("failed ensuring archive bucket: %v", err)
		}
	}

	auditService := audit.NewService(db, archiveClient)
	auditService.StartExporter(cfg.Archive.ExportInterval)

	tokenService := token.NewService(db, auditService)
	startCleanup(tokenService, cfg.Cleanup)

	tokensHandler := handlers.NewTokensHandler(tokenService)
	auditHandler := handlers.NewAuditHandler(auditService)
	authMiddleware := middleware.NewAuthMiddleware(tokenService)

	app := fiber.New(fiber.Config{BodyLimit: 1 * 1024 * 1024})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS(cfg.Server.AllowOrigins))
	app.Use(middleware.RequestLogger())
	app.Use(middleware.SecurityLogger())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api", authMiddleware.RequireToken)

	api.Get("/auth/check", tokensHandler.Check)

	tokenRoutes := api.Group("/tokens")
	tokenRoutes.Post("/", middleware.RequirePermission("tokens", "create"), tokensHandler.Create)
	tokenRoutes.Get("/", middleware.RequirePermission("tokens", "list"), tokensHandler.List)
	tokenRoutes.Post("/:id/suspend", middleware.RequirePermission("tokens", "manage"), tokensHandler.Suspend)
	tokenRoutes.Post("/:id/resume", middleware.RequirePermission("tokens", "manage"), tokensHandler.Resume)
	tokenRoutes.Post("/:id/extend", middleware.RequirePermission("tokens", "manage"), tokensHandler.Extend)
	tokenRoutes.Delete("/:id", middleware.RequirePermission("tokens", "manage"), tokensHandler.Revoke)
	tokenRoutes.Get("/:id/audit", middleware.RequirePermission("tokens", "audit"), auditHandler.Trail)

	listenAddr := fmt.Sprintf(":%s", cfg.Server.Port)

	logger.Info("server_starting", map[string]interface{}{
		"port":    cfg.Server.Port,
		"address": listenAddr,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(listenAddr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Printf("shutting down server due to signal: %s", sig)
		shutdownDone := make(chan struct{})
		go func() {
			_ = app.Shutdown()
			close(shutdownDone)
		}()
		select {
		case <-shutdownDone:
		case <-time.After(10 * time.Second):
			log.Print("forced shutdown timeout reached")
		}
	case err := <-errCh:
		if err != nil {
			log.Fatalf("server error: %v", err)
		}
	}
}

// startCleanup drives the periodic sweep of dead tokens. The sweep itself
// lives in the token service; this is just the timer.
func startCleanup(tokens *token.Service, cfg config.CleanupConfig) {
	go func() {
		ticker := time.NewTicker(cfg.Interval)
		defer ticker.Stop()

		for range ticker.C {
			if _, err := tokens.Cleanup(context.Background(), cfg.InactiveDays); err != nil {
				logger.Error("scheduled_cleanup_failed", err, nil)
			}
		}
	}()

	logger.Info("cleanup_scheduled", map[string]interface{}{
		"interval":      cfg.Interval.String(),
		"inactive_days": cfg.InactiveDays,
	})
}

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/stp-platform/tokend/internal/audit"
	"github.com/stp-platform/tokend/internal/database"
	"github.com/stp-platform/tokend/internal/middleware"
	"github.com/stp-platform/tokend/internal/models"
	"github.com/stp-platform/tokend/internal/token"
	"github.com/stp-platform/tokend/pkg/logger"
	"gorm.io/gorm"
)

type testEnv struct {
	app    *fiber.App
	db     *gorm.DB
	tokens *token.Service
	audit  *audit.Service
}

var testSetupOnce sync.Once

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	testSetupOnce.Do(logger.Init)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed opening in-memory sqlite database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed getting sql.DB from gorm: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed migrating schema: %v", err)
	}

	auditService := audit.NewService(db, nil)
	tokenService := token.NewService(db, auditService)

	tokensHandler := NewTokensHandler(tokenService)
	auditHandler := NewAuditHandler(auditService)
	authMiddleware := middleware.NewAuthMiddleware(tokenService)

	app := fiber.New(fiber.Config{BodyLimit: 1 * 1024 * 1024})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
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

	return &testEnv{app: app, db: db, tokens: tokenService, audit: auditService}
}

// issueTestToken mints a token directly through the service, bypassing the
// HTTP surface, so handler tests can authenticate.
func issueTestToken(t *testing.T, env *testEnv, ownerID int64, name string, perms models.Permissions) (string, *models.Token) {
	t.Helper()

	raw, tok, err := env.tokens.Issue(context.Background(), token.IssueParams{
		OwnerID:     ownerID,
		Name:        name,
		Permissions: &perms,
	})
	if err != nil {
		t.Fatalf("failed issuing test token: %v", err)
	}
	return raw, tok
}

func adminPermissions() models.Permissions {
	return models.Permissions{Admin: true}
}

func performRequest(t *testing.T, env *testEnv, method, path, bearer string, body interface{}) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed encoding request body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := env.app.Test(req, -1)
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()

	defer resp.Body.Close()
	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed decoding response body: %v", err)
	}
	return body
}

func dataObject(t *testing.T, body map[string]interface{}) map[string]interface{} {
	t.Helper()

	data, ok := body["data"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected data object, got %T", body["data"])
	}
	return data
}

package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/stp-platform/tokend/internal/models"
	"github.com/stp-platform/tokend/internal/token"
	"github.com/stp-platform/tokend/pkg/logger"
	"github.com/stp-platform/tokend/pkg/utils"
)

const currentTokenKey = "currentToken"

type AuthMiddleware struct {
	Tokens *token.Service
}

func NewAuthMiddleware(tokens *token.Service) *AuthMiddleware {
	return &AuthMiddleware{Tokens: tokens}
}

func CORS(allowOrigins string) fiber.Handler {
	return cors.New(cors.Config{
		AllowOrigins: allowOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
	})
}

// RequireToken authenticates the request's bearer secret. A storage
// failure is answered with 503, never 401: an unreachable database must
// not look like a credential denial in monitoring.
func (a *AuthMiddleware) RequireToken(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		logger.Warn("auth_missing_header", map[string]interface{}{
			"ip":   c.IP(),
			"path": c.Path(),
		})
		return utils.Error(c, fiber.StatusUnauthorized, "missing authorization header")
	}

	// The scheme must be exactly "Bearer" followed by a single space and
	// the credential. "Bearerstp_..." or a doubled space is a malformed
	// header, not a bad token.
	scheme, raw, found := strings.Cut(authHeader, " ")
	if !found || scheme != "Bearer" || raw == "" || raw != strings.TrimSpace(raw) {
		logger.Warn("auth_invalid_format", map[string]interface{}{
			"ip":   c.IP(),
			"path": c.Path(),
		})
		return utils.Error(c, fiber.StatusUnauthorized, "invalid authorization format")
	}

	// Obviously foreign bearer strings are rejected before touching the
	// database; well-formed but unknown secrets fall through to Validate
	// so the miss lands in the audit trail.
	if !token.LooksLikeSecret(raw) {
		logger.Warn("auth_foreign_credential", map[string]interface{}{
			"ip":   c.IP(),
			"path": c.Path(),
		})
		return utils.Error(c, fiber.StatusUnauthorized, "invalid or expired token")
	}

	tok, err := a.Tokens.Validate(c.UserContext(), raw, token.RequestContext{
		IPAddress: c.IP(),
		UserAgent: c.Get("User-Agent"),
		Endpoint:  c.Path(),
	})
	if err != nil {
		if errors.Is(err, token.ErrNotFound) || errors.Is(err, token.ErrExpired) {
			return utils.Error(c, fiber.StatusUnauthorized, "invalid or expired token")
		}
		return utils.Error(c, fiber.StatusServiceUnavailable, "authentication temporarily unavailable")
	}

	c.Locals(currentTokenKey, tok)
	c.Locals("tokenID", tok.ID)
	return c.Next()
}

// RequirePermission guards a route with the permission evaluator. It must
// run after RequireToken.
func RequirePermission(resource, action string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tok := GetCurrentToken(c)
		if tok == nil {
			return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
		}
		if !tok.Permissions.Allows(resource, action) {
			logger.Warn("permission_denied", map[string]interface{}{
				"token_id": tok.ID,
				"resource": resource,
				"action":   action,
				"path":     c.Path(),
			})
			return utils.Error(c, fiber.StatusForbidden, "insufficient permissions")
		}
		return c.Next()
	}
}

func GetCurrentToken(c *fiber.Ctx) *models.Token {
	value := c.Locals(currentTokenKey)
	if value == nil {
		return nil
	}
	tok, ok := value.(*models.Token)
	if !ok {
		return nil
	}
	return tok
}

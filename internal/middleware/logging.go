package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stp-platform/tokend/pkg/logger"
)

func RequestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		requestID := logger.GenerateRequestID()
		c.Locals("requestID", requestID)

		err := c.Next()

		details := map[string]interface{}{
			"method":      c.Method(),
			"path":        c.Path(),
			"status_code": c.Response().StatusCode(),
			"latency_ms":  time.Since(start).Milliseconds(),
			"ip":          c.IP(),
			"request_id":  requestID,
		}
		if tokenID := logger.GetTokenIDFromContext(c); tokenID != nil {
			details["token_id"] = *tokenID
		}

		if c.Response().StatusCode() >= 400 {
			logger.Error("http_request", err, details)
		} else {
			logger.Info("http_request", details)
		}

		return err
	}
}

// SecurityLogger surfaces authorization denials so they stand out from
// ordinary request noise.
func SecurityLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		status := c.Response().StatusCode()
		if status != fiber.StatusForbidden && status != fiber.StatusUnauthorized {
			return err
		}

		details := map[string]interface{}{
			"method": c.Method(),
			"path":   c.Path(),
			"ip":     c.IP(),
			"status": status,
		}
		if tokenID := logger.GetTokenIDFromContext(c); tokenID != nil {
			details["token_id"] = *tokenID
		}
		logger.Warn("access_denied", details)

		return err
	}
}

package utils

import "github.com/gofiber/fiber/v2"

// Pagination is the metadata block attached to every list response.
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

func Success(c *fiber.Ctx, status int, data interface{}) error {
	return c.Status(status).JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}

func Error(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   message,
	})
}

// Paginated wraps one page of results with its window and totals. Total
// is the full row count before the window was applied.
func Paginated(c *fiber.Ctx, data interface{}, p PaginationParams, total int64) error {
	meta := Pagination{Page: p.Page, Limit: p.Limit, Total: total}
	if p.Limit > 0 {
		meta.TotalPages = int((total + int64(p.Limit) - 1) / int64(p.Limit))
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success":    true,
		"data":       data,
		"pagination": meta,
	})
}

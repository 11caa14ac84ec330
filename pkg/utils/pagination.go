package utils

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// PaginationParams is a sanitized page window parsed from the request
// query. Out-of-range or unparsable values are clamped, never rejected.
type PaginationParams struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

func ParsePagination(c *fiber.Ctx) PaginationParams {
	page, err := strconv.Atoi(c.Query("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}

	limit, err := strconv.Atoi(c.Query("limit", strconv.Itoa(defaultPageSize)))
	if err != nil || limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	return PaginationParams{Page: page, Limit: limit}
}

// Offset is the number of rows skipped before this page starts.
func (p PaginationParams) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Apply pushes the page window into the query as LIMIT/OFFSET so the
// database, not the caller, trims the result set.
func (p PaginationParams) Apply(db *gorm.DB) *gorm.DB {
	return db.Offset(p.Offset()).Limit(p.Limit)
}

package handlers

import (
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stp-platform/tokend/internal/audit"
	"github.com/stp-platform/tokend/pkg/utils"
)

const auditTrailMaxLimit = 1000

type AuditHandler struct {
	Audit *audit.Service
}

func NewAuditHandler(auditSvc *audit.Service) *AuditHandler {
	return &AuditHandler{Audit: auditSvc}
}

// Trail returns a token's audit records, newest first. format=csv streams
// the trail as an attachment for offline review; the default is the usual
// JSON envelope.
func (h *AuditHandler) Trail(c *fiber.Ctx) error {
	tokenID, err := parseID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid token ID")
	}

	limit := 100
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return utils.Error(c, fiber.StatusBadRequest, "invalid limit")
		}
		limit = parsed
	}
	if limit > auditTrailMaxLimit {
		limit = auditTrailMaxLimit
	}

	format := strings.ToLower(strings.TrimSpace(c.Query("format", "json")))
	if format != "json" && format != "csv" {
		return utils.Error(c, fiber.StatusBadRequest, "format must be json or csv")
	}

	records, err := h.Audit.ListByToken(c.UserContext(), tokenID, limit)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading audit records")
	}

	if format == "json" {
		return utils.Success(c, fiber.StatusOK, records)
	}

	c.Set("Content-Type", "text/csv")
	c.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "token-audit.csv"))

	writer := csv.NewWriter(c.Response().BodyWriter())
	_ = writer.Write([]string{"Timestamp", "Action", "Success", "IP Address", "Endpoint", "Error"})

	for _, record := range records {
		ip := ""
		if record.IPAddress != nil {
			ip = *record.IPAddress
		}
		endpoint := ""
		if record.Endpoint != nil {
			endpoint = *record.Endpoint
		}
		errMsg := ""
		if record.ErrorMessage != nil {
			errMsg = *record.ErrorMessage
		}

		_ = writer.Write([]string{
			record.CreatedAt.Format(time.RFC3339),
			string(record.Action),
			strconv.FormatBool(record.Success),
			ip,
			endpoint,
			errMsg,
		})
	}

	writer.Flush()
	return nil
}

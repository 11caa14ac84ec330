package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/stp-platform/tokend/internal/models"
	"github.com/stp-platform/tokend/pkg/logger"
	"gorm.io/gorm"
)

const exportBatchLimit = 10000

// StartExporter runs a background goroutine that periodically ships new
// audit rows to object storage as NDJSON. The export reads committed rows
// only and never blocks the write path; with no archive client configured
// it is a no-op.
func (s *Service) StartExporter(interval time.Duration) {
	if s.archive == nil {
		logger.Info("audit_exporter_disabled", map[string]interface{}{
			"reason": "no archive storage configured",
		})
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for range ticker.C {
			s.exportBatch()
		}
	}()

	logger.Info("audit_exporter_started", map[string]interface{}{
		"interval": interval.String(),
	})
}

func (s *Service) exportBatch() {
	var cursor models.ArchiveCursor
	err := s.db.First(&cursor).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			cursor = models.ArchiveCursor{
				LastExportAt: time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
			}
			if createErr := s.db.Create(&cursor).Error; createErr != nil {
				logger.Error("audit_export_cursor_create_failed", createErr, nil)
				return
			}
		} else {
			logger.Error("audit_export_cursor_load_failed", err, nil)
			return
		}
	}

	var records []models.AuditRecord
	if err := s.db.Where("created_at > ?", cursor.LastExportAt).
		Order("created_at ASC").
		Limit(exportBatchLimit).
		Find(&records).Error; err != nil {
		logger.Error("audit_export_query_failed", err, nil)
		return
	}

	if len(records) == 0 {
		return
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, record := range records {
		if err := enc.Encode(record); err != nil {
			logger.Error("audit_export_encode_failed", err, map[string]interface{}{
				"record_id": record.ID,
			})
			continue
		}
	}

	now := time.Now().UTC()
	objectName := fmt.Sprintf("token-audit/%s/%s.ndjson",
		now.Format("2006/01/02"),
		now.Format("15-04-05"),
	)

	if err := s.archive.Upload(
		context.Background(),
		objectName,
		&buf,
		int64(buf.Len()),
		"application/x-ndjson",
	); err != nil {
		logger.Error("audit_export_upload_failed", err, map[string]interface{}{
			"object_name": objectName,
			"count":       len(records),
		})
		return
	}

	lastCreatedAt := records[len(records)-1].CreatedAt
	s.db.Model(&cursor).Updates(map[string]interface{}{
		"last_export_at": lastCreatedAt,
		"exported_count": gorm.Expr("exported_count + ?", len(records)),
	})

	logger.Info("audit_export_success", map[string]interface{}{
		"object_name": objectName,
		"count":       len(records),
	})
}

package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/stp-platform/tokend/internal/models"
	"github.com/stp-platform/tokend/internal/storage"
	"github.com/stp-platform/tokend/pkg/logger"
	"gorm.io/gorm"
)

// Entry is the caller-facing shape of one audit event. TokenID may be nil
// for events that could not be attributed to a token, such as a failed
// lookup of an unknown digest; those rows are persisted with a NULL
// token id rather than dropped.
type Entry struct {
	TokenID      *int64
	Action       models.AuditAction
	Success      bool
	ErrorMessage *string
	IPAddress    *string
	UserAgent    *string
	Endpoint     *string
	Extra        map[string]interface{}
}

// Service writes and reads the persisted audit trail. It is deliberately
// separate from pkg/logger: the trail is queryable product data, the
// logger is ephemeral diagnostics.
type Service struct {
	db      *gorm.DB
	archive *storage.ArchiveClient
}

func NewService(db *gorm.DB, archive *storage.ArchiveClient) *Service {
	return &Service{db: db, archive: archive}
}

// Record appends one audit row in its own transaction scope. Failures are
// logged and returned, never escalated; callers on the validation path
// treat them as best effort.
func (s *Service) Record(ctx context.Context, entry Entry) (*models.AuditRecord, error) {
	return s.RecordTx(s.db.WithContext(ctx), entry)
}

// RecordTx appends one audit row using the caller's transaction handle so
// state-changing operations can commit their mutation and its audit record
// as a single unit.
func (s *Service) RecordTx(tx *gorm.DB, entry Entry) (*models.AuditRecord, error) {
	row := models.AuditRecord{
		TokenID:      entry.TokenID,
		Action:       entry.Action,
		IPAddress:    entry.IPAddress,
		UserAgent:    entry.UserAgent,
		Endpoint:     entry.Endpoint,
		Success:      entry.Success,
		ErrorMessage: entry.ErrorMessage,
		Extra:        entry.Extra,
		CreatedAt:    time.Now().UTC(),
	}

	if err := tx.Create(&row).Error; err != nil {
		logger.Error("audit_record_insert_failed", err, map[string]interface{}{
			"action": string(entry.Action),
		})
		return nil, fmt.Errorf("inserting audit record: %w", err)
	}
	return &row, nil
}

// ListByToken returns a token's trail, newest first, capped at limit.
func (s *Service) ListByToken(ctx context.Context, tokenID int64, limit int) ([]models.AuditRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	var records []models.AuditRecord
	err := s.db.WithContext(ctx).
		Where("token_id = ?", tokenID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		logger.Error("audit_list_failed", err, map[string]interface{}{
			"token_id": tokenID,
		})
		return nil, fmt.Errorf("listing audit records: %w", err)
	}
	return records, nil
}

package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stp-platform/tokend/internal/audit"
	"github.com/stp-platform/tokend/internal/models"
	"github.com/stp-platform/tokend/pkg/logger"
	"github.com/stp-platform/tokend/pkg/utils"
	"gorm.io/gorm"
)

// Expected negative outcomes. These are ordinary results, not faults:
// callers distinguish them from wrapped storage errors with errors.Is so
// "database unavailable" never masquerades as "bad token".
var (
	ErrNotFound = errors.New("token not found")
	ErrExpired  = errors.New("token expired")
	ErrRevoked  = errors.New("token revoked")
)

// RequestContext carries optional request metadata into the audit trail.
// Empty fields are stored as NULL.
type RequestContext struct {
	IPAddress string
	UserAgent string
	Endpoint  string
}

// Service orchestrates the token lifecycle: it mints secrets, validates
// bearer strings, drives the active/suspended/revoked state machine, and
// records every state-changing or validation event in the audit trail.
// Each operation runs in its own transaction scope; the database's
// isolation level is the only concurrency guarantee, which is acceptable
// for last-writer-wins fields like last_used_at.
type Service struct {
	db    *gorm.DB
	audit *audit.Service
}

func NewService(db *gorm.DB, auditSvc *audit.Service) *Service {
	return &Service{db: db, audit: auditSvc}
}

type IssueParams struct {
	OwnerID       int64
	Name          string
	Description   *string
	ExpiresInDays *int
	Permissions   *models.Permissions
	CreatedBy     *int64
}

// Issue mints a new active token for the owner and returns the raw secret
// exactly once; only its digest is stored. The token row and its
// token_created audit record commit as a single transaction, so a failed
// issuance leaves no partial state behind.
func (s *Service) Issue(ctx context.Context, p IssueParams) (string, *models.Token, error) {
	raw, err := GenerateSecret()
	if err != nil {
		logger.Error("token_secret_generation_failed", err, nil)
		return "", nil, fmt.Errorf("generating secret: %w", err)
	}

	now := time.Now().UTC()

	var expiresAt *time.Time
	if p.ExpiresInDays != nil {
		t := now.AddDate(0, 0, *p.ExpiresInDays)
		expiresAt = &t
	}

	perms := models.Permissions{}
	if p.Permissions != nil {
		perms = *p.Permissions
	}

	tok := models.Token{
		SecretDigest: DigestSecret(raw),
		OwnerID:      p.OwnerID,
		Name:         p.Name,
		Description:  p.Description,
		Status:       models.TokenStatusActive,
		ExpiresAt:    expiresAt,
		Permissions:  perms,
		CreatedBy:    p.CreatedBy,
		CreatedAt:    now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&tok).Error; err != nil {
			return err
		}
		_, err := s.audit.RecordTx(tx, audit.Entry{
			TokenID: &tok.ID,
			Action:  models.AuditTokenCreated,
			Success: true,
		})
		return err
	})
	if err != nil {
		logger.Error("token_issue_failed", err, map[string]interface{}{
			"owner_id": p.OwnerID,
			"name":     p.Name,
		})
		return "", nil, fmt.Errorf("issuing token: %w", err)
	}

	logger.Info("token_issued", map[string]interface{}{
		"token_id": tok.ID,
		"owner_id": tok.OwnerID,
		"name":     tok.Name,
	})
	return raw, &tok, nil
}

// Validate resolves a raw bearer secret to its active token. A miss or an
// expired token yields a failed audit record and a sentinel error; a hit
// bumps last_used_at and records token_used. The bump and the audit write
// are intentionally separate units: the trail on the validation path is
// best-effort telemetry.
func (s *Service) Validate(ctx context.Context, raw string, rc RequestContext) (*models.Token, error) {
	digest := DigestSecret(raw)

	var tok models.Token
	err := s.db.WithContext(ctx).
		Where("secret_digest = ? AND status = ?", digest, models.TokenStatusActive).
		First(&tok).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.recordValidationFailure(ctx, nil, "token not found or not active", rc)
		return nil, ErrNotFound
	}
	if err != nil {
		logger.Error("token_lookup_failed", err, nil)
		return nil, fmt.Errorf("looking up token: %w", err)
	}

	now := time.Now().UTC()
	if tok.IsExpiredAt(now) {
		s.recordValidationFailure(ctx, &tok.ID, "token expired", rc)
		return nil, ErrExpired
	}

	if err := s.db.WithContext(ctx).
		Model(&models.Token{}).
		Where("id = ?", tok.ID).
		Update("last_used_at", now).Error; err != nil {
		logger.Error("token_last_used_update_failed", err, map[string]interface{}{
			"token_id": tok.ID,
		})
		return nil, fmt.Errorf("updating last used time: %w", err)
	}
	tok.LastUsedAt = &now

	_, _ = s.audit.Record(ctx, audit.Entry{
		TokenID:   &tok.ID,
		Action:    models.AuditTokenUsed,
		Success:   true,
		IPAddress: optional(rc.IPAddress),
		UserAgent: optional(rc.UserAgent),
		Endpoint:  optional(rc.Endpoint),
	})

	return &tok, nil
}

// Suspend moves an active token to the suspended state. Suspending an
// already-suspended token succeeds; a revoked token cannot be suspended.
func (s *Service) Suspend(ctx context.Context, id int64) error {
	return s.transition(ctx, id, models.TokenStatusSuspended, models.AuditTokenSuspended)
}

// Resume moves a suspended token back to active. Revoked is terminal:
// resuming a revoked token fails with ErrRevoked.
func (s *Service) Resume(ctx context.Context, id int64) error {
	return s.transition(ctx, id, models.TokenStatusActive, models.AuditTokenResumed)
}

// Revoke permanently disables a token. The operation is idempotent —
// revoking a token that is already revoked still succeeds and still
// writes an audit record. The token row itself survives until cleanup.
func (s *Service) Revoke(ctx context.Context, id int64) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tok models.Token
		if err := tx.First(&tok, "id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Model(&tok).Update("status", models.TokenStatusRevoked).Error; err != nil {
			return err
		}
		_, err := s.audit.RecordTx(tx, audit.Entry{
			TokenID: &tok.ID,
			Action:  models.AuditTokenRevoked,
			Success: true,
		})
		return err
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		logger.Warn("token_revoke_missing", map[string]interface{}{"token_id": id})
		return ErrNotFound
	}
	if err != nil {
		logger.Error("token_revoke_failed", err, map[string]interface{}{"token_id": id})
		return fmt.Errorf("revoking token: %w", err)
	}

	logger.Info("token_revoked", map[string]interface{}{"token_id": id})
	return nil
}

func (s *Service) transition(ctx context.Context, id int64, target models.TokenStatus, action models.AuditAction) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tok models.Token
		if err := tx.First(&tok, "id = ?", id).Error; err != nil {
			return err
		}
		if tok.IsRevoked() {
			return ErrRevoked
		}
		if err := tx.Model(&tok).Update("status", target).Error; err != nil {
			return err
		}
		_, err := s.audit.RecordTx(tx, audit.Entry{
			TokenID: &tok.ID,
			Action:  action,
			Success: true,
		})
		return err
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, ErrRevoked) {
		logger.Warn("token_transition_rejected", map[string]interface{}{
			"token_id": id,
			"target":   string(target),
		})
		return ErrRevoked
	}
	if err != nil {
		logger.Error("token_transition_failed", err, map[string]interface{}{
			"token_id": id,
			"target":   string(target),
		})
		return fmt.Errorf("updating token status: %w", err)
	}

	logger.Info(string(action), map[string]interface{}{"token_id": id})
	return nil
}

// Extend pushes a token's expiry out by the given number of days. A token
// with no expiry becomes bounded at now + days; an existing expiry
// compounds rather than resetting from now.
func (s *Service) Extend(ctx context.Context, id int64, days int) (*models.Token, error) {
	var tok models.Token
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&tok, "id = ?", id).Error; err != nil {
			return err
		}

		var next time.Time
		if tok.ExpiresAt == nil {
			next = time.Now().UTC().AddDate(0, 0, days)
		} else {
			next = tok.ExpiresAt.AddDate(0, 0, days)
		}

		if err := tx.Model(&tok).Update("expires_at", next).Error; err != nil {
			return err
		}
		tok.ExpiresAt = &next

		_, err := s.audit.RecordTx(tx, audit.Entry{
			TokenID: &tok.ID,
			Action:  models.AuditTokenExtended,
			Success: true,
			Extra:   map[string]interface{}{"days": days},
		})
		return err
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		logger.Warn("token_extend_missing", map[string]interface{}{"token_id": id})
		return nil, ErrNotFound
	}
	if err != nil {
		logger.Error("token_extend_failed", err, map[string]interface{}{
			"token_id": id,
			"days":     days,
		})
		return nil, fmt.Errorf("extending token: %w", err)
	}

	logger.Info("token_extended", map[string]interface{}{
		"token_id": id,
		"days":     days,
	})
	return &tok, nil
}

// ListForOwner returns one page of the owner's tokens, most recently
// created first, together with the owner's total token count. The page
// window becomes LIMIT/OFFSET on the query.
func (s *Service) ListForOwner(ctx context.Context, ownerID int64, p utils.PaginationParams) ([]models.Token, int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).
		Model(&models.Token{}).
		Where("owner_id = ?", ownerID).
		Count(&total).Error; err != nil {
		logger.Error("token_count_failed", err, map[string]interface{}{
			"owner_id": ownerID,
		})
		return nil, 0, fmt.Errorf("counting tokens: %w", err)
	}

	var tokens []models.Token
	err := p.Apply(s.db.WithContext(ctx).Where("owner_id = ?", ownerID)).
		Order("created_at DESC, id DESC").
		Find(&tokens).Error
	if err != nil {
		logger.Error("token_list_failed", err, map[string]interface{}{
			"owner_id": ownerID,
		})
		return nil, 0, fmt.Errorf("listing tokens: %w", err)
	}
	return tokens, total, nil
}

// Cleanup deletes tokens that are no longer active AND expired longer ago
// than inactiveDays, together with their audit trails. Tokens that are
// merely expired but still active, or inactive but unexpired, are left
// alone. Meant to be driven by an external timer.
func (s *Service) Cleanup(ctx context.Context, inactiveDays int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -inactiveDays)

	var deleted int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []int64
		if err := tx.Model(&models.Token{}).
			Where("status <> ? AND expires_at IS NOT NULL AND expires_at < ?",
				models.TokenStatusActive, cutoff).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}

		// Trails go first so the sweep does not depend on the engine
		// enforcing the FK cascade (sqlite ships with foreign_keys off).
		if err := tx.Where("token_id IN ?", ids).Delete(&models.AuditRecord{}).Error; err != nil {
			return err
		}

		res := tx.Where("id IN ?", ids).Delete(&models.Token{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected
		return nil
	})
	if err != nil {
		logger.Error("token_cleanup_failed", err, map[string]interface{}{
			"inactive_days": inactiveDays,
		})
		return 0, fmt.Errorf("cleaning up tokens: %w", err)
	}

	if deleted > 0 {
		logger.Info("token_cleanup_done", map[string]interface{}{
			"deleted":       deleted,
			"inactive_days": inactiveDays,
		})
	}
	return deleted, nil
}

func (s *Service) recordValidationFailure(ctx context.Context, tokenID *int64, reason string, rc RequestContext) {
	_, _ = s.audit.Record(ctx, audit.Entry{
		TokenID:      tokenID,
		Action:       models.AuditTokenValidationFailed,
		Success:      false,
		ErrorMessage: &reason,
		IPAddress:    optional(rc.IPAddress),
		UserAgent:    optional(rc.UserAgent),
		Endpoint:     optional(rc.Endpoint),
	})
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

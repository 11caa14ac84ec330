package models

import (
	"time"
)

type AuditAction string

const (
	AuditTokenCreated          AuditAction = "token_created"
	AuditTokenUsed             AuditAction = "token_used"
	AuditTokenValidationFailed AuditAction = "token_validation_failed"
	AuditTokenSuspended        AuditAction = "token_suspended"
	AuditTokenResumed          AuditAction = "token_resumed"
	AuditTokenRevoked          AuditAction = "token_revoked"
	AuditTokenExtended         AuditAction = "token_extended"
)

// AuditRecord is one immutable entry in a token's audit trail. Rows are
// only ever inserted; the single deletion path is the cascade that fires
// when the owning token is removed by cleanup.
//
// TokenID is nullable on purpose: a failed validation of a secret that
// matches no token still produces a record, attributed to no token.
type AuditRecord struct {
	ID           int64                  `json:"id" gorm:"primaryKey;autoIncrement"`
	TokenID      *int64                 `json:"tokenID,omitempty" gorm:"index"`
	Action       AuditAction            `json:"action" gorm:"type:varchar(50);not null;index"`
	IPAddress    *string                `json:"ipAddress,omitempty" gorm:"type:varchar(45)"`
	UserAgent    *string                `json:"userAgent,omitempty" gorm:"type:text"`
	Endpoint     *string                `json:"endpoint,omitempty" gorm:"type:varchar(255)"`
	Success      bool                   `json:"success" gorm:"not null"`
	ErrorMessage *string                `json:"errorMessage,omitempty" gorm:"type:text"`
	Extra        map[string]interface{} `json:"extra,omitempty" gorm:"type:text;serializer:json"`
	CreatedAt    time.Time              `json:"createdAt" gorm:"not null;index"`
}

func (AuditRecord) TableName() string {
	return "token_audit_records"
}

// ArchiveCursor tracks the last audit record shipped to object storage so
// the periodic export only uploads new rows.
type ArchiveCursor struct {
	ID            int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	LastExportAt  time.Time `json:"lastExportAt" gorm:"not null"`
	ExportedCount int64     `json:"exportedCount" gorm:"not null;default:0"`
}

func (ArchiveCursor) TableName() string {
	return "audit_archive_cursors"
}

package models

import (
	"time"
)

type TokenStatus string

const (
	TokenStatusActive    TokenStatus = "active"
	TokenStatusSuspended TokenStatus = "suspended"
	TokenStatusRevoked   TokenStatus = "revoked"
)

// Token is an opaque API bearer credential. Only the SHA-256 digest of the
// secret is ever stored; the raw secret is shown to the caller exactly once
// at issuance and cannot be recovered afterwards.
//
// Lifecycle: active <-> suspended, and from either of those into revoked.
// Revoked is terminal. Expiry is not a stored state: an active token past
// ExpiresAt simply fails validation until it is extended or swept.
type Token struct {
	ID           int64       `json:"id" gorm:"primaryKey;autoIncrement"`
	SecretDigest string      `json:"-" gorm:"type:varchar(64);not null;uniqueIndex"`
	OwnerID      int64       `json:"ownerID" gorm:"not null;index"`
	Name         string      `json:"name" gorm:"type:varchar(100);not null"`
	Description  *string     `json:"description,omitempty" gorm:"type:text"`
	Status       TokenStatus `json:"status" gorm:"type:varchar(20);not null;default:'active';index"`
	ExpiresAt    *time.Time  `json:"expiresAt,omitempty" gorm:"index"`
	LastUsedAt   *time.Time  `json:"lastUsedAt,omitempty"`
	Permissions  Permissions `json:"permissions" gorm:"type:text;serializer:json"`
	CreatedBy    *int64      `json:"createdBy,omitempty"`
	CreatedAt    time.Time   `json:"createdAt" gorm:"not null;index"`

	AuditRecords []AuditRecord `json:"-" gorm:"foreignKey:TokenID;constraint:OnDelete:CASCADE"`
}

func (Token) TableName() string {
	return "tokens"
}

func (t *Token) IsActive() bool {
	return t.Status == TokenStatusActive
}

func (t *Token) IsRevoked() bool {
	return t.Status == TokenStatusRevoked
}

// IsExpiredAt reports whether the token is past its expiry at the given
// instant. Tokens without an expiry never expire.
func (t *Token) IsExpiredAt(now time.Time) bool {
	return t.ExpiresAt != nil && t.ExpiresAt.Before(now)
}
